package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	tok, exp, err := tm.Generate("admin")
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expiry in the past: %v", exp)
	}
	claims, err := tm.Parse(tok)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Role != "admin" {
		t.Fatalf("role = %q", claims.Role)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	tok, _, err := NewTokenManager("one", time.Hour).Generate("admin")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewTokenManager("two", time.Hour).Parse(tok); err == nil {
		t.Fatal("token verified with the wrong secret")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	tm := NewTokenManager("secret", -time.Minute)
	tok, _, err := tm.Generate("admin")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tm.Parse(tok); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if err := VerifyPassword("hunter2", hash); err != nil {
		t.Fatalf("correct password rejected: %v", err)
	}
	if err := VerifyPassword("wrong", hash); err == nil {
		t.Fatal("wrong password accepted")
	}
}
