package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/caged/internal/clicks"
	"github.com/starford/caged/internal/export"
	"github.com/starford/caged/internal/fretboard"
	"github.com/starford/caged/internal/session"
	"github.com/starford/caged/internal/theory"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Auth       AuthConfig        `yaml:"auth"`
	Instrument InstrumentConfig  `yaml:"instrument"`
	Clicks     ClicksConfig      `yaml:"clicks"`
	Session    SessionConfig     `yaml:"session"`
	Tutorials  TutorialsConfig   `yaml:"tutorials"`
	Export     ExportConfig      `yaml:"export"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.SQLite, &c.Auth, &c.Instrument, &c.Clicks, &c.Session, &c.Tutorials, &c.Export,
	} {
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
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
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

// InstrumentConfig describes the fretboard.
type InstrumentConfig struct {
	Frets  int    `yaml:"frets"`
	Tuning string `yaml:"tuning"`
}

// Validate validates the instrument configuration.
func (c *InstrumentConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Frets, validation.Required, validation.Min(12), validation.Max(36)),
		validation.Field(&c.Tuning, validation.Required, validation.By(func(any) error {
			_, err := theory.LookupTuning(c.Tuning)
			return err
		})),
	)
}

// ClicksConfig holds the click classification window.
type ClicksConfig struct {
	DoubleClickWindow time.Duration `yaml:"double_click_window"`
}

// Validate validates the clicks configuration.
func (c *ClicksConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DoubleClickWindow, validation.Required,
			validation.Min(100*time.Millisecond), validation.Max(time.Second)),
	)
}

// SessionConfig holds the harmony of new sessions.
type SessionConfig struct {
	DefaultKey     string `yaml:"default_key"`
	DefaultQuality string `yaml:"default_quality"`
}

// Validate validates the session configuration.
func (c *SessionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DefaultKey, validation.Required, validation.By(func(any) error {
			_, err := theory.ParsePitchClass(c.DefaultKey)
			return err
		})),
		validation.Field(&c.DefaultQuality, validation.Required, validation.By(func(any) error {
			_, err := theory.ParseQuality(c.DefaultQuality)
			return err
		})),
	)
}

// TutorialsConfig holds the PDF tutorial directory.
type TutorialsConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// Validate validates the tutorials configuration.
func (c *TutorialsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ExportConfig holds export defaults.
type ExportConfig struct {
	DefaultFormat string `yaml:"default_format"`
}

// Validate validates the export configuration.
func (c *ExportConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DefaultFormat, validation.Required, validation.In("pdf", "midi")),
	)
}

// Defaults converts the session section into session defaults. The config
// must have been validated.
func (c *Config) Defaults() session.Defaults {
	key, _ := theory.ParsePitchClass(c.Session.DefaultKey)
	q, _ := theory.ParseQuality(c.Session.DefaultQuality)
	return session.Defaults{Key: key, Quality: q, Tuning: c.Instrument.Tuning}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./caged.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Instrument: InstrumentConfig{
			Frets:  fretboard.DefaultFrets,
			Tuning: theory.StandardTuning,
		},
		Clicks: ClicksConfig{
			DoubleClickWindow: clicks.DefaultWindow,
		},
		Session: SessionConfig{
			DefaultKey:     "C",
			DefaultQuality: string(theory.Maj7),
		},
		Tutorials: TutorialsConfig{
			Path:  "./tutorials",
			Watch: true,
		},
		Export: ExportConfig{
			DefaultFormat: string(export.PDF),
		},
	}
}
