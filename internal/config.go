package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/raido/internal/archive"
	"github.com/starford/raido/internal/metaloader"
	"github.com/starford/raido/internal/sampler"
	"github.com/starford/raido/internal/transport"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Sampler   SamplerConfig     `yaml:"sampler"`
	Metadata  MetadataConfig    `yaml:"metadata"`
	Transport TransportConfig   `yaml:"transport"`
	Archive   ArchiveConfig     `yaml:"archive"`
	MCP       MCPConfig         `yaml:"mcp"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Sampler.Validate(); err != nil {
		return err
	}
	if err := c.Metadata.Validate(); err != nil {
		return err
	}
	if err := c.Transport.Validate(); err != nil {
		return err
	}
	if err := c.Archive.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	Verbose  bool       `yaml:"verbose"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.Verbose {
		c.LogLevel = slog.LevelDebug
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.When(c.Enabled, validation.Required, validation.Min(1), validation.Max(65535))),
	)
}

// SamplerConfig controls the sampling loop.
type SamplerConfig struct {
	Period      time.Duration `yaml:"period"`
	FetchAI     bool          `yaml:"fetch_ai"`
	FetchAIInfo bool          `yaml:"fetch_ai_info"`
	// Source is the replay recording sampled each period.
	Source string `yaml:"source"`
}

// Validate validates the sampler configuration. Periods below the minimum
// are raised to it.
func (c *SamplerConfig) Validate() error {
	c.Period = sampler.ClampPeriod(c.Period)
	return validation.ValidateStruct(c,
		validation.Field(&c.Source, validation.Required),
	)
}

// MetadataConfig controls the model metadata cache and loader.
type MetadataConfig struct {
	Capacity  int      `yaml:"capacity"`
	QueueSize int      `yaml:"queue_size"`
	Fields    []string `yaml:"fields"`
	WatchDirs []string `yaml:"watch_dirs"`
}

// Validate validates the metadata configuration.
func (c *MetadataConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.QueueSize, validation.Min(0)),
	)
}

// TransportConfig selects where frames are written.
type TransportConfig struct {
	Kind     transport.Kind `yaml:"kind"`
	Path     string         `yaml:"path"`
	Capacity int            `yaml:"capacity"`
}

// Validate validates the transport configuration.
func (c *TransportConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Kind, validation.Required, validation.In(transport.KindSharedFile, transport.KindMemory)),
		validation.Field(&c.Path, validation.When(c.Kind == transport.KindSharedFile, validation.Required)),
		validation.Field(&c.Capacity, validation.Required, validation.Min(transport.MinCapacity)),
	)
}

// ArchiveConfig holds the track archive settings. An empty path disables it.
type ArchiveConfig struct {
	Path     string        `yaml:"path"`
	Interval time.Duration `yaml:"interval"`
}

// Enabled reports whether snapshots are archived.
func (c *ArchiveConfig) Enabled() bool {
	return c.Path != ""
}

// Validate validates the archive configuration.
func (c *ArchiveConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Interval, validation.Min(time.Duration(0))),
	)
}

// MCPConfig enables the stdio MCP server.
type MCPConfig struct {
	Enabled bool `yaml:"enabled"`
}

// AuthConfig holds authentication configuration for the HTTP API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Enabled: true,
				Port:    8080,
			},
		},
		Sampler: SamplerConfig{
			Period:      sampler.DefaultPeriod,
			FetchAI:     true,
			FetchAIInfo: true,
		},
		Metadata: MetadataConfig{
			Capacity:  256,
			QueueSize: metaloader.DefaultQueueSize,
		},
		Transport: TransportConfig{
			Kind:     transport.KindSharedFile,
			Path:     transport.DefaultPath,
			Capacity: 1 << 20,
		},
		Archive: ArchiveConfig{
			Interval: archive.DefaultInterval,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
