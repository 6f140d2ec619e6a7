package plugins

import (
	"path/filepath"
	"testing"

	"github.com/beigebox/beigebox/internal/tools"
)

func TestRegisterAll_DefaultsToEnabled(t *testing.T) {
	r := tools.NewRegistry()
	RegisterAll(r, filepath.Join(t.TempDir(), "wire.jsonl"), nil)

	for _, name := range []string{"dice", "units", "wiretap_summary"} {
		if _, ok := r.Get(name); !ok {
			t.Fatalf("expected plugin %q to be registered by default", name)
		}
	}
}

func TestRegisterAll_RespectsDisableFlag(t *testing.T) {
	r := tools.NewRegistry()
	RegisterAll(r, filepath.Join(t.TempDir(), "wire.jsonl"), map[string]bool{"dice": false})

	if _, ok := r.Get("dice"); ok {
		t.Fatal("expected dice to be disabled")
	}
	if _, ok := r.Get("units"); !ok {
		t.Fatal("expected units to remain enabled")
	}
}
