package cmd

import (
	"bytes"
	"testing"
)

func TestRootCmd_Help(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	err := cmd.Execute()
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	output := buf.String()
	if !contains(output, "gatewayd") {
		t.Errorf("Help should contain 'gatewayd', got: %s", output)
	}
	for _, sub := range []string{"serve", "status", "stop", "version"} {
		if !contains(output, sub) {
			t.Errorf("Help should list %q subcommand, got: %s", sub, output)
		}
	}
}

func TestRootCmd_DirectFlag(t *testing.T) {
	cmd := NewRootCmd()
	flag := cmd.Flags().Lookup("direct")
	if flag == nil {
		t.Fatal("--direct flag not found")
	}
	if flag.DefValue != "false" {
		t.Errorf("--direct default = %q, want %q", flag.DefValue, "false")
	}
}

func TestRootCmd_DirectTransportFlag(t *testing.T) {
	cmd := NewRootCmd()
	flag := cmd.Flags().Lookup("direct-transport")
	if flag == nil {
		t.Fatal("--direct-transport flag not found")
	}
	if flag.DefValue != "stdio" {
		t.Errorf("--direct-transport default = %q, want %q", flag.DefValue, "stdio")
	}
}

func contains(s, substr string) bool {
	return bytes.Contains([]byte(s), []byte(substr))
}
