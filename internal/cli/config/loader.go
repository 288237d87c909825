package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Context keys for values shared between the root command and subcommands.
type (
	configKey struct{}
	loggerKey struct{}
)

// configFileNames are searched for in the working directory, in order.
var configFileNames = []string{"incidentgraph.yaml", "incidentgraph.yml"}

// flagKeys maps CLI flag names onto config keys. Flags not listed here are
// not configuration (for example --config itself).
var flagKeys = map[string]string{
	"raw":              "paths.raw",
	"cleaned":          "paths.cleaned",
	"edges":            "paths.edges",
	"degrees":          "paths.degrees",
	"plot":             "paths.plot",
	"timezone":         "ingest.timezone",
	"title":            "render.title",
	"width":            "render.width_in",
	"height":           "render.height_in",
	"drop-nonpositive": "render.drop_nonpositive",
	"log-level":        "log_level",
	"log-format":       "log_format",
	"output":           "output",
	"verbose":          "verbose",
}

// envSections are the nested config sections; INCIDENTGRAPH_PATHS_RAW maps
// to paths.raw, INCIDENTGRAPH_LOG_LEVEL to log_level.
var envSections = []string{"paths", "ingest", "render"}

// pathKeys lists the keys holding filesystem paths.
var pathKeys = []string{"paths.raw", "paths.cleaned", "paths.edges", "paths.degrees", "paths.plot"}

// findConfigFile finds the config file to use.
// Priority: explicit path > incidentgraph.yaml > incidentgraph.yml
func findConfigFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}
	for _, name := range configFileNames {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
	}
	return "", nil
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range envSections {
		if rest, ok := strings.CutPrefix(key, section+"_"); ok {
			return section + "." + rest
		}
	}
	return key
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// LoadConfig loads configuration from defaults, file, environment and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
//
// Relative paths coming from the config file or the defaults resolve
// against the config file's directory; paths given by flag or environment
// stay relative to the working directory.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	overridden := map[string]bool{}

	// 1. Defaults
	def := Default()
	if err := k.Load(confmap.Provider(map[string]any{
		"paths.raw":               def.Paths.Raw,
		"paths.cleaned":           def.Paths.Cleaned,
		"paths.edges":             def.Paths.Edges,
		"paths.degrees":           def.Paths.Degrees,
		"paths.plot":              def.Paths.Plot,
		"ingest.timezone":         def.Ingest.Timezone,
		"render.title":            def.Render.Title,
		"render.width_in":         def.Render.WidthIn,
		"render.height_in":        def.Render.HeightIn,
		"render.drop_nonpositive": def.Render.DropNonPositive,
		"log_level":               def.LogLevel,
		"log_format":              def.LogFormat,
		"output":                  def.OutputFormat,
		"verbose":                 def.Verbose,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	configFile, err := findConfigFile(cfgFile)
	if err != nil {
		return nil, err
	}
	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	// 3. Environment variables (INCIDENTGRAPH_ prefix)
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := envKey(s)
		overridden[key] = true
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (only those explicitly set)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			overridden[key] = true
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// 6. Resolve relative paths against the config file's directory
	if configFile != "" {
		abs, err := filepath.Abs(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config file path: %w", err)
		}
		cfg.ConfigFile = abs
		cfg.BaseDir = filepath.Dir(abs)
	}
	for _, key := range pathKeys {
		if overridden[key] {
			continue
		}
		p := cfg.pathField(key)
		*p = resolvePathRelativeTo(*p, cfg.BaseDir)
	}

	if err := cfg.Validate(); err != nil {
		if cfg.ConfigFile != "" {
			return nil, fmt.Errorf("%w\nHint: check %s", err, cfg.ConfigFile)
		}
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) pathField(key string) *string {
	switch key {
	case "paths.raw":
		return &c.Paths.Raw
	case "paths.cleaned":
		return &c.Paths.Cleaned
	case "paths.edges":
		return &c.Paths.Edges
	case "paths.degrees":
		return &c.Paths.Degrees
	case "paths.plot":
		return &c.Paths.Plot
	}
	panic("unknown path key " + key)
}

// WithConfig stores cfg in ctx.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// GetConfig retrieves the config from the command context, or the defaults.
func GetConfig(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	return Default()
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}
