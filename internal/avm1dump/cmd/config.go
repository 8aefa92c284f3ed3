package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"avm1dump/internal/avm1"
)

// Config holds the settings that may come from a config file. Flags set on
// the command line take precedence.
type Config struct {
	Debug    bool `json:"debug" jsonschema:"title=Debug,description=Enable debug logging"`
	MaxDepth int  `json:"maxDepth,omitempty" jsonschema:"title=Max Depth,description=Maximum nesting of function bodies,minimum=1,default=64"`
	NoColor  bool `json:"noColor" jsonschema:"title=No Color,description=Disable colored trace output"`
	JSON     bool `json:"json" jsonschema:"title=JSON,description=Write traces as JSON"`
	TUI      bool `json:"tui" jsonschema:"title=TUI,description=Open the interactive viewer"`
}

// DefaultConfig is used when no config file is given.
func DefaultConfig() Config {
	return Config{MaxDepth: avm1.DefaultMaxDepth}
}

// LoadConfig reads a JSON config file over the defaults. Unknown keys are
// rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if cfg.MaxDepth < 0 {
		return cfg, fmt.Errorf("invalid config %s: maxDepth must be positive", path)
	}
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = avm1.DefaultMaxDepth
	}
	return cfg, nil
}

// resolveConfig loads --config if given and applies the flags that were set.
func resolveConfig(cmd *cobra.Command) (Config, error) {
	cfg := DefaultConfig()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("debug") {
		cfg.Debug, _ = flags.GetBool("debug")
	}
	if flags.Changed("max-depth") {
		cfg.MaxDepth, _ = flags.GetInt("max-depth")
		if cfg.MaxDepth <= 0 {
			return cfg, fmt.Errorf("--max-depth must be positive, got %d", cfg.MaxDepth)
		}
	}
	if flags.Changed("no-color") {
		cfg.NoColor, _ = flags.GetBool("no-color")
	}
	if flags.Changed("json") {
		cfg.JSON, _ = flags.GetBool("json")
	}
	if flags.Changed("tui") {
		cfg.TUI, _ = flags.GetBool("tui")
	}
	if cfg.JSON && cfg.TUI {
		return cfg, fmt.Errorf("--json and --tui cannot be combined")
	}
	return cfg, nil
}
