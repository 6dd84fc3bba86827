package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

// CurrentVersion is the config schema version written by `archdoc init`
const CurrentVersion = 1

// DirName is the per-repository directory holding config, ledger and declarations
const DirName = ".archdoc"

// Config represents the complete archdoc configuration
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	System    SystemConfig    `json:"system" mapstructure:"system"`
	Discovery DiscoveryConfig `json:"discovery" mapstructure:"discovery"`
	Model     ModelConfig     `json:"model" mapstructure:"model"`
	Render    RenderConfig    `json:"render" mapstructure:"render"`
	Output    OutputConfig    `json:"output" mapstructure:"output"`
	Ledger    LedgerConfig    `json:"ledger" mapstructure:"ledger"`
	Mirror    MirrorConfig    `json:"mirror" mapstructure:"mirror"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
}

// SystemConfig overrides the system identity shown on diagrams
type SystemConfig struct {
	Name        string `json:"name,omitempty" mapstructure:"name"`
	Description string `json:"description,omitempty" mapstructure:"description"`
}

// DiscoveryConfig controls manifest discovery
type DiscoveryConfig struct {
	ManifestExtensions []string `json:"manifestExtensions" mapstructure:"manifestExtensions"`
	IgnoreDirs         []string `json:"ignoreDirs" mapstructure:"ignoreDirs"`
	IgnoreGlobs        []string `json:"ignoreGlobs" mapstructure:"ignoreGlobs"`
}

// ModelConfig controls model extraction
type ModelConfig struct {
	FollowLibraryReferences bool   `json:"followLibraryReferences" mapstructure:"followLibraryReferences"`
	SignaturesFile          string `json:"signaturesFile" mapstructure:"signaturesFile"`
	DeclarationFile         string `json:"declarationFile" mapstructure:"declarationFile"`
	ManifestCacheSize       int    `json:"manifestCacheSize" mapstructure:"manifestCacheSize"`
}

// RenderConfig controls the rendering toolchain
type RenderConfig struct {
	Enabled           bool   `json:"enabled" mapstructure:"enabled"`
	Format            string `json:"format" mapstructure:"format"`
	JavaBinary        string `json:"javaBinary" mapstructure:"javaBinary"`
	JavaArgs          string `json:"javaArgs" mapstructure:"javaArgs"`
	MinJavaVersion    string `json:"minJavaVersion" mapstructure:"minJavaVersion"`
	PlantUMLJar       string `json:"plantumlJar,omitempty" mapstructure:"plantumlJar"`
	DownloadURL       string `json:"downloadUrl" mapstructure:"downloadUrl"`
	DownloadChecksum  string `json:"downloadChecksum,omitempty" mapstructure:"downloadChecksum"`
	CacheDir          string `json:"cacheDir,omitempty" mapstructure:"cacheDir"`
	OnlineURL         string `json:"onlineUrl" mapstructure:"onlineUrl"`
	ProbeTimeoutMs    int    `json:"probeTimeoutMs" mapstructure:"probeTimeoutMs"`
	RenderTimeoutMs   int    `json:"renderTimeoutMs" mapstructure:"renderTimeoutMs"`
	DownloadTimeoutMs int    `json:"downloadTimeoutMs" mapstructure:"downloadTimeoutMs"`
}

// OutputConfig controls where artifacts and the documentation section go
type OutputConfig struct {
	Dir                    string `json:"dir" mapstructure:"dir"`
	Document               string `json:"document" mapstructure:"document"`
	SectionHeading         string `json:"sectionHeading" mapstructure:"sectionHeading"`
	LargeArtifactThreshold string `json:"largeArtifactThreshold" mapstructure:"largeArtifactThreshold"`
}

// LedgerConfig controls the SQLite run history
type LedgerConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	// MaxRuns bounds the history; older runs are pruned after each run
	MaxRuns int `json:"maxRuns" mapstructure:"maxRuns"`
}

// MirrorConfig configures the optional S3-compatible artifact mirror
type MirrorConfig struct {
	Endpoint  string `json:"endpoint,omitempty" mapstructure:"endpoint"`
	Region    string `json:"region,omitempty" mapstructure:"region"`
	Bucket    string `json:"bucket,omitempty" mapstructure:"bucket"`
	Prefix    string `json:"prefix,omitempty" mapstructure:"prefix"`
	AccessKey string `json:"-" mapstructure:"accessKey"`
	SecretKey string `json:"-" mapstructure:"secretKey"`
	UseSSL    bool   `json:"useSSL" mapstructure:"useSSL"`
}

// Enabled reports whether enough is configured to attempt uploads.
func (m MirrorConfig) Enabled() bool {
	return strings.TrimSpace(m.Endpoint) != "" && strings.TrimSpace(m.Bucket) != ""
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `json:"level" mapstructure:"level"`
	File       string `json:"file,omitempty" mapstructure:"file"`
	MaxSize    string `json:"maxSize,omitempty" mapstructure:"maxSize"`       // e.g. "10MB"
	MaxBackups int    `json:"maxBackups,omitempty" mapstructure:"maxBackups"` // rotated files kept
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Discovery: DiscoveryConfig{
			ManifestExtensions: []string{".csproj", ".vbproj", ".fsproj"},
			IgnoreDirs:         []string{"bin", "obj", ".git", ".vs", "node_modules", "packages", DirName},
			IgnoreGlobs:        []string{},
		},
		Model: ModelConfig{
			FollowLibraryReferences: true,
			SignaturesFile:          filepath.Join(DirName, "signatures.toml"),
			DeclarationFile:         filepath.Join(DirName, "SYSTEM.toml"),
			ManifestCacheSize:       512,
		},
		Render: RenderConfig{
			Enabled:           true,
			Format:            "svg",
			JavaBinary:        "java",
			JavaArgs:          "-Djava.awt.headless=true",
			MinJavaVersion:    "8",
			DownloadURL:       "https://github.com/plantuml/plantuml/releases/download/v1.2024.7/plantuml-1.2024.7.jar",
			OnlineURL:         "https://www.plantuml.com/plantuml",
			ProbeTimeoutMs:    3000,
			RenderTimeoutMs:   60000,
			DownloadTimeoutMs: 120000,
		},
		Output: OutputConfig{
			Dir:                    filepath.Join("docs", "architecture"),
			Document:               filepath.Join("docs", "ARCHITECTURE.md"),
			SectionHeading:         "## Architecture Diagrams",
			LargeArtifactThreshold: "1MB",
		},
		Ledger: LedgerConfig{
			Enabled: true,
			MaxRuns: 200,
		},
		Mirror: MirrorConfig{
			Prefix: "archdoc",
			UseSSL: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxBackups: 3,
		},
	}
}

// LoadConfig loads configuration from .archdoc/config.json under root.
// Values present in the file overlay the defaults.
func LoadConfig(root string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(root, DirName))

	// Mirror credentials never live in the config file
	_ = v.BindEnv("mirror.accessKey", "ARCHDOC_MIRROR_ACCESS_KEY")
	_ = v.BindEnv("mirror.secretKey", "ARCHDOC_MIRROR_SECRET_KEY")
	_ = v.BindEnv("mirror.endpoint", "ARCHDOC_MIRROR_ENDPOINT")
	_ = v.BindEnv("mirror.bucket", "ARCHDOC_MIRROR_BUCKET")
	_ = v.BindEnv("logging.level", "ARCHDOC_LOG_LEVEL")

	cfg := DefaultConfig()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to .archdoc/config.json
func (c *Config) Save(root string) error {
	dir := filepath.Join(root, DirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Path returns the config file location for root
func Path(root string) string {
	return filepath.Join(root, DirName, "config.json")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if len(c.Discovery.ManifestExtensions) == 0 {
		return &ConfigError{Field: "discovery.manifestExtensions", Message: "at least one extension is required"}
	}
	switch c.Render.Format {
	case "svg", "png":
	default:
		return &ConfigError{Field: "render.format", Message: "must be svg or png"}
	}
	if c.Output.Dir == "" {
		return &ConfigError{Field: "output.dir", Message: "must not be empty"}
	}
	if lvl := atxLevel(c.Output.SectionHeading); lvl < 1 || lvl > 5 {
		return &ConfigError{Field: "output.sectionHeading", Message: "must be a markdown heading from # to ##### followed by text"}
	}
	if _, err := c.LargeArtifactBytes(); err != nil {
		return &ConfigError{Field: "output.largeArtifactThreshold", Message: err.Error()}
	}
	if c.Logging.MaxSize != "" {
		if _, err := humanize.ParseBytes(c.Logging.MaxSize); err != nil {
			return &ConfigError{Field: "logging.maxSize", Message: err.Error()}
		}
	}
	return nil
}

// atxLevel is the level of an ATX heading with text, or 0.
func atxLevel(heading string) int {
	heading = strings.TrimSpace(heading)
	n := len(heading) - len(strings.TrimLeft(heading, "#"))
	if n == 0 || n > 6 || n == len(heading) {
		return 0
	}
	if c := heading[n]; c != ' ' && c != '\t' {
		return 0
	}
	return n
}

// LargeArtifactBytes parses the large-artifact threshold. An empty value disables the check.
func (c *Config) LargeArtifactBytes() (int64, error) {
	if strings.TrimSpace(c.Output.LargeArtifactThreshold) == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(c.Output.LargeArtifactThreshold)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
