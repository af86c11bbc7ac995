// ABOUTME: Tests for sync and export command structure
// ABOUTME: Verifies subcommands and flags without contacting Charm
package commands

import (
	"strings"
	"testing"
)

func TestSyncCmd_Subcommands(t *testing.T) {
	cmd := NewSyncCmd()

	if !strings.Contains(cmd.Long, "local") {
		t.Error("Long description should mention local storage")
	}

	for _, name := range []string{"status", "push", "pull", "delete"} {
		t.Run(name, func(t *testing.T) {
			for _, sub := range cmd.Commands() {
				if sub.Use == name {
					if sub.Short == "" {
						t.Error("Short description should not be empty")
					}
					if sub.RunE == nil {
						t.Error("RunE should be set")
					}
					return
				}
			}
			t.Errorf("Subcommand %q not found", name)
		})
	}
}

func TestSyncDelete_RequiresConfirm(t *testing.T) {
	offlineEnv(t)

	out := mustRun(t, "sync", "delete")
	if !strings.Contains(out, "--confirm") {
		t.Errorf("output = %q, want a --confirm hint", out)
	}
}

func TestExportCmd_Flags(t *testing.T) {
	cmd := NewExportCmd()

	tests := []struct {
		flagName  string
		shorthand string
		defValue  string
	}{
		{"output", "o", ""},
		{"format", "f", "yaml"},
		{"limit", "", "50"},
	}

	for _, tt := range tests {
		t.Run(tt.flagName, func(t *testing.T) {
			flag := cmd.Flags().Lookup(tt.flagName)
			if flag == nil {
				t.Fatalf("--%s flag not found", tt.flagName)
			}
			if tt.shorthand != "" && flag.Shorthand != tt.shorthand {
				t.Errorf("--%s shorthand = %q, want %q", tt.flagName, flag.Shorthand, tt.shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("--%s default = %q, want %q", tt.flagName, flag.DefValue, tt.defValue)
			}
		})
	}

	for _, format := range []string{"yaml", "markdown"} {
		if !strings.Contains(strings.ToLower(cmd.Long), format) {
			t.Errorf("Long description should mention %q format", format)
		}
	}
}
