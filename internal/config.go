package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/echolog/internal/auth"
	"github.com/starford/echolog/internal/graph"
	"github.com/starford/echolog/internal/linker"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Linking LinkingConfig     `yaml:"linking"`
	Graph   GraphConfig       `yaml:"graph"`
	Layout  LayoutConfig      `yaml:"layout"`
	OpenAI  OpenAIConfig      `yaml:"openai"`
	Cache   CacheConfig       `yaml:"cache"`
	SSE     SSEConfig         `yaml:"sse"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validators := []interface{ Validate() error }{
		&c.App, &c.SQLite, &c.Auth, &c.Linking, &c.Graph, &c.Layout, &c.OpenAI, &c.Cache, &c.SSE,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how the request owner is resolved:
//   - "disabled" (default): every request belongs to DefaultOwner.
//   - "token": a shared Bearer token; requests belong to DefaultOwner.
//   - "jwt": HS256 Bearer JWTs; the subject claim is the owner.
type AuthConfig struct {
	Mode         string `yaml:"mode"`
	Token        string `yaml:"token"`
	JWTSecret    string `yaml:"jwt_secret"`
	JWTIssuer    string `yaml:"jwt_issuer"`
	DefaultOwner string `yaml:"default_owner"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = auth.ModeDisabled
	}
	if err := validation.Validate(c.Mode, validation.In(auth.ModeDisabled, auth.ModeToken, auth.ModeJWT)); err != nil {
		return fmt.Errorf("auth: invalid mode %q: %w", c.Mode, err)
	}
	switch {
	case c.Mode == auth.ModeToken && c.Token == "":
		return fmt.Errorf("auth: mode is %q but token is empty", c.Mode)
	case c.Mode == auth.ModeJWT && c.JWTSecret == "":
		return fmt.Errorf("auth: mode is %q but jwt_secret is empty", c.Mode)
	case c.Mode != auth.ModeJWT && c.DefaultOwner == "":
		return fmt.Errorf("auth: mode is %q but default_owner is empty", c.Mode)
	}
	return nil
}

// AuthEnabled returns true when requests must carry credentials.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == auth.ModeToken || c.Mode == auth.ModeJWT
}

// Authenticator converts the section to auth.Config.
func (c *AuthConfig) Authenticator() auth.Config {
	return auth.Config{
		Mode:         c.Mode,
		Token:        c.Token,
		JWTSecret:    c.JWTSecret,
		JWTIssuer:    c.JWTIssuer,
		DefaultOwner: c.DefaultOwner,
	}
}

// LinkingConfig tunes related-memo maintenance.
type LinkingConfig struct {
	Threshold    float64       `yaml:"threshold"`
	MaxNeighbors int           `yaml:"max_neighbors"`
	Workers      int           `yaml:"workers"`
	QueueSize    int           `yaml:"queue_size"`
	TaskTimeout  time.Duration `yaml:"task_timeout"`
	EmbeddingDim int           `yaml:"embedding_dim"`
}

// Validate validates the linking configuration.
func (c *LinkingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Threshold, validation.Min(-1.0), validation.Max(1.0)),
		validation.Field(&c.MaxNeighbors, validation.Required, validation.Min(1)),
		validation.Field(&c.Workers, validation.Required, validation.Min(1)),
		validation.Field(&c.QueueSize, validation.Required, validation.Min(1)),
		validation.Field(&c.TaskTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.EmbeddingDim, validation.Min(0)),
	)
}

// Params returns the linker parameters of this section.
func (c *LinkingConfig) Params() linker.Params {
	return linker.Params{Threshold: c.Threshold, MaxNeighbors: c.MaxNeighbors}
}

// Dispatcher returns the worker pool sizing of this section.
func (c *LinkingConfig) Dispatcher() linker.DispatcherConfig {
	return linker.DispatcherConfig{Workers: c.Workers, QueueSize: c.QueueSize, TaskTimeout: c.TaskTimeout}
}

// GraphConfig controls graph construction.
type GraphConfig struct {
	DefaultEdgeWeight float64 `yaml:"default_edge_weight"`
	MaxItems          int     `yaml:"max_items"`
	UseLiveScores     bool    `yaml:"use_live_scores"`
}

// Validate validates the graph configuration.
func (c *GraphConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DefaultEdgeWeight, validation.Required, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.MaxItems, validation.Required, validation.Min(1), validation.Max(1000)),
	)
}

// LayoutConfig holds the force-directed layout constants.
type LayoutConfig graph.LayoutParams

// Validate validates the layout configuration.
func (c *LayoutConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Iterations, validation.Min(0), validation.Max(1000)),
		validation.Field(&c.Repulsion, validation.Min(0.0)),
		validation.Field(&c.Attraction, validation.Min(0.0)),
		validation.Field(&c.Damping, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.Radius, validation.Min(0.0)),
	)
}

// Params returns the section as graph.LayoutParams.
func (c *LayoutConfig) Params() graph.LayoutParams {
	return graph.LayoutParams(*c)
}

// OpenAIConfig configures the language model backend. An empty APIKey
// selects the local fallbacks.
type OpenAIConfig struct {
	APIKey         string        `yaml:"api_key"`
	BaseURL        string        `yaml:"base_url"`
	ChatModel      string        `yaml:"chat_model"`
	EmbeddingModel string        `yaml:"embedding_model"`
	Timeout        time.Duration `yaml:"timeout"`
	Embeddings     bool          `yaml:"embeddings"`
}

// Validate validates the OpenAI configuration.
func (c *OpenAIConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ChatModel, validation.When(c.APIKey != "", validation.Required)),
		validation.Field(&c.EmbeddingModel, validation.When(c.Embeddings && c.APIKey != "", validation.Required)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// Enabled reports whether an API key is configured.
func (c *OpenAIConfig) Enabled() bool {
	return c.APIKey != ""
}

// CacheConfig configures the generation cache.
type CacheConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.SweepInterval, validation.Required, validation.Min(time.Second)),
	)
}

// SSEConfig configures live events.
type SSEConfig struct {
	GraphThrottle time.Duration `yaml:"graph_throttle"`
}

// Validate validates the SSE configuration.
func (c *SSEConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.GraphThrottle, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	lp := linker.DefaultParams()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./echolog.db",
		},
		Auth: AuthConfig{
			Mode:         auth.ModeDisabled,
			DefaultOwner: "local",
		},
		Linking: LinkingConfig{
			Threshold:    lp.Threshold,
			MaxNeighbors: lp.MaxNeighbors,
			Workers:      1,
			QueueSize:    256,
			EmbeddingDim: 1536,
		},
		Graph: GraphConfig{
			DefaultEdgeWeight: graph.DefaultEdgeWeight,
			MaxItems:          100,
		},
		Layout: LayoutConfig(graph.DefaultLayoutParams()),
		OpenAI: OpenAIConfig{
			ChatModel:      "gpt-3.5-turbo",
			EmbeddingModel: "text-embedding-3-small",
			Timeout:        30 * time.Second,
		},
		Cache: CacheConfig{
			TTL:           time.Hour,
			SweepInterval: 5 * time.Minute,
		},
		SSE: SSEConfig{
			GraphThrottle: 2 * time.Second,
		},
	}
}
