package main

import "testing"

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "migrate", "version"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil {
			t.Fatalf("find %s: %v", name, err)
		}
		if cmd.Name() != name {
			t.Fatalf("expected command %s, got %s", name, cmd.Name())
		}
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Fatalf("expected --config flag")
	}
}

func TestMigrateRequiresCommand(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"migrate"})
	root.SilenceErrors = true
	if err := root.Execute(); err == nil {
		t.Fatalf("expected migrate without arguments to fail")
	}
}
