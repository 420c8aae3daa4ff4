package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Env != "dev" || cfg.HTTPPort != "8080" {
		t.Fatalf("env/port = %q/%q", cfg.Env, cfg.HTTPPort)
	}
	if cfg.BaseXPPerMessage != 15 || cfg.MaxLengthBonus != 10 || cfg.RandomXPBonus != 5 {
		t.Fatalf("xp defaults = %d/%d/%d", cfg.BaseXPPerMessage, cfg.MaxLengthBonus, cfg.RandomXPBonus)
	}
	if cfg.XPCooldown != time.Minute {
		t.Fatalf("cooldown = %v", cfg.XPCooldown)
	}
	if cfg.XPPerLevelBase != 100 || cfg.BaseCoinsPerLevel != 50 || cfg.MinTransaction != 1 {
		t.Fatalf("economy defaults = %d/%d/%d", cfg.XPPerLevelBase, cfg.BaseCoinsPerLevel, cfg.MinTransaction)
	}
	if cfg.RoleRewards["VIP"] != 100 || cfg.RoleRewards["Active Member"] != 50 {
		t.Fatalf("role rewards = %v", cfg.RoleRewards)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("XP_COOLDOWN_SECONDS", "5")
	t.Setenv("BASE_XP_PER_MESSAGE", "30")
	t.Setenv("MIN_TRANSACTION_AMOUNT", "10")
	t.Setenv("ROLE_REWARDS", "Booster:500")

	cfg := Load()
	if cfg.XPCooldown != 5*time.Second {
		t.Fatalf("cooldown = %v", cfg.XPCooldown)
	}
	if cfg.BaseXPPerMessage != 30 || cfg.MinTransaction != 10 {
		t.Fatalf("overrides = %d/%d", cfg.BaseXPPerMessage, cfg.MinTransaction)
	}
	if len(cfg.RoleRewards) != 1 || cfg.RoleRewards["Booster"] != 500 {
		t.Fatalf("role rewards = %v", cfg.RoleRewards)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("BASE_XP_PER_MESSAGE", "lots")
	cfg := Load()
	if cfg.BaseXPPerMessage != 15 {
		t.Fatalf("malformed int should fall back: %d", cfg.BaseXPPerMessage)
	}
}

func TestParseRoleRewards(t *testing.T) {
	got := parseRoleRewards("VIP:100, Active Member:50 ,Broken,:5,Empty:,Late:Night:30")
	want := map[string]int64{"VIP": 100, "Active Member": 50, "Late:Night": 30}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("got[%q] = %d, want %d", k, got[k], v)
		}
	}
}
