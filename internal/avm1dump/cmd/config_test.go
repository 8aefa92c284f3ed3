package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"avm1dump/internal/avm1"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "avm1dump.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    Config
		wantErr string
	}{
		{"empty object", `{}`, Config{MaxDepth: avm1.DefaultMaxDepth}, ""},
		{"all fields", `{"debug":true,"maxDepth":8,"noColor":true,"json":true}`,
			Config{Debug: true, MaxDepth: 8, NoColor: true, JSON: true}, ""},
		{"unknown key", `{"depth":3}`, Config{}, "unknown field"},
		{"negative depth", `{"maxDepth":-1}`, Config{}, "must be positive"},
		{"not json", `maxDepth=3`, Config{}, "invalid config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, tt.body))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadConfig failed: %v", err)
			}
			if cfg != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, cfg)
			}
		})
	}
}

func TestLoadConfigMissing(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func parseCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "avm1dump"}
	addFlags(c)
	if err := c.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	return c
}

func TestResolveConfig(t *testing.T) {
	path := writeConfig(t, `{"maxDepth":8,"json":true,"noColor":true}`)

	tests := []struct {
		name    string
		args    []string
		want    Config
		wantErr string
	}{
		{"defaults", nil, DefaultConfig(), ""},
		{"flags only", []string{"-d", "--max-depth", "3"}, Config{Debug: true, MaxDepth: 3}, ""},
		{"file", []string{"--config", path}, Config{MaxDepth: 8, JSON: true, NoColor: true}, ""},
		{"flag overrides file", []string{"--config", path, "--max-depth=2", "--json=false"},
			Config{MaxDepth: 2, NoColor: true}, ""},
		{"zero depth", []string{"--max-depth", "0"}, Config{}, "must be positive"},
		{"json and tui", []string{"-j", "-t"}, Config{}, "cannot be combined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := resolveConfig(parseCommand(t, tt.args...))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveConfig failed: %v", err)
			}
			if cfg != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, cfg)
			}
		})
	}
}

func TestConfigSchema(t *testing.T) {
	bts, err := configSchema()
	if err != nil {
		t.Fatalf("configSchema failed: %v", err)
	}
	for _, want := range []string{`"maxDepth"`, `"noColor"`, `"Enable debug logging"`} {
		if !strings.Contains(string(bts), want) {
			t.Errorf("schema missing %s:\n%s", want, bts)
		}
	}
}
