package main

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runCLI executes the command tree with the given args against an optional
// fake API server address, capturing stdout.
func runCLI(t *testing.T, args []string, address string) (string, error) {
	t.Helper()

	if address != "" {
		args = append(args, "--address", address)
	}

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// writeTestConfig drops a minimal config file and points MANGAWATCH_CONFIG
// at it so commands resolve temp directories instead of user paths.
func writeTestConfig(t *testing.T) string {
	t.Helper()

	base := t.TempDir()
	content := strings.Join([]string{
		"[paths]",
		`data_dir = "` + filepath.Join(base, "data") + `"`,
		`log_dir = "` + filepath.Join(base, "logs") + `"`,
		"",
		"[source]",
		`base_url = "https://source.test"`,
	}, "\n")

	path := filepath.Join(base, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	t.Setenv("MANGAWATCH_CONFIG", path)
	return path
}

func serverAddress(server *httptest.Server) string {
	return strings.TrimPrefix(server.URL, "http://")
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("output %q does not contain %q", output, want)
	}
}
