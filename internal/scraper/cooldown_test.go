package scraper

import (
	"testing"
	"time"
)

func TestCooldownLifecycle(t *testing.T) {
	cooldown := NewCooldown()
	if cooldown.Active() {
		t.Fatal("new cooldown should be inactive")
	}
	if got := cooldown.Remaining(); got != 0 {
		t.Fatalf("inactive remaining = %v, want 0", got)
	}

	cooldown.Set(time.Minute)
	if !cooldown.Active() {
		t.Fatal("cooldown should be active after Set")
	}
	if got := cooldown.Remaining(); got <= 50*time.Second || got > time.Minute {
		t.Fatalf("remaining = %v, want close to 1m", got)
	}

	cooldown.Reset()
	if cooldown.Active() {
		t.Fatal("cooldown should be inactive after Reset")
	}
}

func TestCooldownShorterSetDoesNotTruncate(t *testing.T) {
	cooldown := NewCooldown()
	cooldown.Set(time.Hour)
	longUntil := cooldown.Until()

	cooldown.Set(time.Second)
	if got := cooldown.Until(); got.Before(longUntil) {
		t.Fatalf("until moved backwards: %v -> %v", longUntil, got)
	}
}

func TestCooldownExtends(t *testing.T) {
	cooldown := NewCooldown()
	cooldown.Set(time.Second)
	shortUntil := cooldown.Until()

	cooldown.Set(time.Hour)
	if got := cooldown.Until(); !got.After(shortUntil) {
		t.Fatalf("longer Set should extend the window: %v -> %v", shortUntil, got)
	}
}
