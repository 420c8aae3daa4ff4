package leveling

import "testing"

func TestLevelForXPRoundTrip(t *testing.T) {
	for _, base := range []int64{50, 100, 250} {
		f := Formula{XPPerLevelBase: base, BaseCoinsPerLevel: 50}
		for level := 1; level <= 200; level++ {
			xp := f.XPForLevel(level)
			if got := f.LevelForXP(xp); got != level {
				t.Fatalf("base %d: LevelForXP(XPForLevel(%d)) = %d", base, level, got)
			}
			// one XP short of the boundary still belongs to the level below
			if level > 1 {
				if got := f.LevelForXP(xp - 1); got != level-1 {
					t.Fatalf("base %d: LevelForXP(%d) = %d, want %d", base, xp-1, got, level-1)
				}
			}
		}
	}
}

func TestXPForLevelMonotonic(t *testing.T) {
	f := Formula{XPPerLevelBase: 100}
	prev := f.XPForLevel(1)
	for level := 2; level <= 500; level++ {
		xp := f.XPForLevel(level)
		if xp <= prev {
			t.Fatalf("XPForLevel(%d) = %d, not greater than %d", level, xp, prev)
		}
		prev = xp
	}
}

func TestLevelForXPNonDecreasing(t *testing.T) {
	f := Formula{XPPerLevelBase: 100}
	prev := f.LevelForXP(0)
	for xp := int64(1); xp <= 50000; xp += 7 {
		l := f.LevelForXP(xp)
		if l < prev {
			t.Fatalf("LevelForXP(%d) = %d, below previous %d", xp, l, prev)
		}
		prev = l
	}
}

func TestLevelForXPClampsNegative(t *testing.T) {
	f := Formula{XPPerLevelBase: 100}
	if got := f.LevelForXP(-500); got != 1 {
		t.Fatalf("LevelForXP(-500) = %d, want 1", got)
	}
	if got := f.XPForLevel(0); got != 0 {
		t.Fatalf("XPForLevel(0) = %d, want 0", got)
	}
}

func TestRewardForLevelMilestones(t *testing.T) {
	f := Formula{BaseCoinsPerLevel: 50}
	cases := []struct {
		level int
		want  int64
	}{
		{2, 50}, {5, 100}, {7, 50}, {10, 150}, {15, 100}, {20, 150}, {25, 100}, {30, 150},
	}
	for _, c := range cases {
		if got := f.RewardForLevel(c.level); got != c.want {
			t.Errorf("RewardForLevel(%d) = %d, want %d", c.level, got, c.want)
		}
	}
}

func TestRewardForLevelsJump(t *testing.T) {
	f := Formula{BaseCoinsPerLevel: 50}
	// 4 -> 11 crosses 5..11: 100 + 50 + 50 + 50 + 50 + 150 + 50
	if got := f.RewardForLevels(4, 11); got != 500 {
		t.Fatalf("RewardForLevels(4, 11) = %d, want 500", got)
	}
	if got := f.RewardForLevels(3, 3); got != 0 {
		t.Fatalf("RewardForLevels(3, 3) = %d, want 0", got)
	}
	if got := f.RewardForLevels(1, 2); got != 50 {
		t.Fatalf("RewardForLevels(1, 2) = %d, want 50", got)
	}
}

func TestGainRuleBounds(t *testing.T) {
	g := GainRule{BaseXP: 15, MaxLengthBonus: 10, RandomBonus: 5}
	// length 50 -> 15 + 5 + rand(0..5)
	for i := 0; i < 200; i++ {
		got := g.ForMessage(50)
		if got < 20 || got > 25 {
			t.Fatalf("ForMessage(50) = %d, want in [20, 25]", got)
		}
	}
	// very long messages cap the length bonus
	for i := 0; i < 200; i++ {
		got := g.ForMessage(10000)
		if got < 25 || got > 30 {
			t.Fatalf("ForMessage(10000) = %d, want in [25, 30]", got)
		}
	}
}

func TestGainRuleFloor(t *testing.T) {
	g := GainRule{BaseXP: 0, MaxLengthBonus: 0, RandomBonus: 0}
	if got := g.ForMessage(0); got != 1 {
		t.Fatalf("ForMessage(0) = %d, want floor of 1", got)
	}
}

func TestIsqrt(t *testing.T) {
	cases := map[int64]int64{0: 0, 1: 1, 2: 1, 3: 1, 4: 2, 8: 2, 9: 3, 15: 3, 16: 4, 99: 9, 100: 10, 10000: 100, 10200: 100}
	for n, want := range cases {
		if got := isqrt(n); got != want {
			t.Errorf("isqrt(%d) = %d, want %d", n, got, want)
		}
	}
}
