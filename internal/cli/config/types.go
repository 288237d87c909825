// Package config loads incidentgraph CLI configuration.
//
// Values are layered, lowest to highest: built-in defaults, the YAML
// config file, INCIDENTGRAPH_* environment variables, and flags that were
// set explicitly on the command line.
package config

// Config holds all CLI configuration options.
type Config struct {
	Paths        PathsConfig  `koanf:"paths"`
	Ingest       IngestConfig `koanf:"ingest"`
	Render       RenderConfig `koanf:"render"`
	LogLevel     string       `koanf:"log_level"`
	LogFormat    string       `koanf:"log_format"`
	OutputFormat string       `koanf:"output"`
	Verbose      bool         `koanf:"verbose"`

	// ConfigFile is the file that was loaded, empty when none was found.
	ConfigFile string `koanf:"-"`
	// BaseDir is the directory relative paths were resolved against.
	BaseDir string `koanf:"-"`
}

// PathsConfig locates every table and image the pipeline reads or writes.
type PathsConfig struct {
	Raw     string `koanf:"raw"`
	Cleaned string `koanf:"cleaned"`
	Edges   string `koanf:"edges"`
	Degrees string `koanf:"degrees"`
	Plot    string `koanf:"plot"`
}

// IngestConfig configures timestamp interpretation.
type IngestConfig struct {
	// Timezone is an IANA zone name applied to timestamps without an offset.
	Timezone string `koanf:"timezone"`
}

// RenderConfig configures the degree distribution plot.
type RenderConfig struct {
	Title           string  `koanf:"title"`
	WidthIn         float64 `koanf:"width_in"`
	HeightIn        float64 `koanf:"height_in"`
	DropNonPositive bool    `koanf:"drop_nonpositive"`
}

// Default configuration values.
const (
	DefaultRawPath     = "data/lapd_crime_2020_present.csv"
	DefaultCleanedPath = "data/clean_crime.csv"
	DefaultEdgesPath   = "data/day_area.csv"
	DefaultDegreesPath = "report/degree_counts.csv"
	DefaultPlotPath    = "report/degree_loglog.png"
	DefaultTimezone    = "UTC"
	DefaultTitle       = "Log–Log Degree Distribution"
	DefaultWidthIn     = 4.0
	DefaultHeightIn    = 4.0
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultOutput      = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "INCIDENTGRAPH_"

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Raw:     DefaultRawPath,
			Cleaned: DefaultCleanedPath,
			Edges:   DefaultEdgesPath,
			Degrees: DefaultDegreesPath,
			Plot:    DefaultPlotPath,
		},
		Ingest: IngestConfig{Timezone: DefaultTimezone},
		Render: RenderConfig{
			Title:    DefaultTitle,
			WidthIn:  DefaultWidthIn,
			HeightIn: DefaultHeightIn,
		},
		LogLevel:     DefaultLogLevel,
		LogFormat:    DefaultLogFormat,
		OutputFormat: DefaultOutput,
	}
}
