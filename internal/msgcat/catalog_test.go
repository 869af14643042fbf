package msgcat

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEmbeddedDefaults(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("headline.in_progress", map[string]any{"GameID": 7})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "Game #7 In Progress" {
		t.Fatalf("unexpected headline %q", got)
	}
	if ev, _ := c.Render("pgn.event", nil); ev != "Eternal Chess" {
		t.Fatalf("unexpected event %q", ev)
	}
}

func TestMissingKeyAndFallback(t *testing.T) {
	c := MustDefault()
	if _, err := c.Render("no.such.key", nil); err == nil {
		t.Fatalf("expected error for missing template")
	}
	if _, err := c.Render("headline.complete", map[string]any{}); err == nil {
		t.Fatalf("expected error for missing data key")
	}
	if got := c.RenderOr("no.such.key", nil, "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("pgn:\n  site: \"chess.example.org\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got, _ := c.Render("pgn.site", nil); got != "chess.example.org" {
		t.Fatalf("override not applied: %q", got)
	}
	if got, _ := c.Render("pgn.white", nil); got != "Random" {
		t.Fatalf("default lost after override: %q", got)
	}
}

func TestOverrideDuplicateKeys(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("pgn:\n  event: \"x\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected duplicate key error")
	}
}
