package main

import "testing"

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"serve", "status", "migrate"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestBuildRootCmdSilencesUsageOnError(t *testing.T) {
	cmd := buildRootCmd()
	if !cmd.SilenceUsage {
		t.Fatal("expected SilenceUsage to be set so command errors don't dump full usage text")
	}
}
