package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/livepad/internal/ident"
	"github.com/starford/livepad/internal/kv"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Storage StorageConfig     `yaml:"storage"`
	Tree    TreeConfig        `yaml:"tree"`
	Preview PreviewConfig     `yaml:"preview"`
	Console ConsoleConfig     `yaml:"console"`
	Import  ImportConfig      `yaml:"import"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Tree.Validate(); err != nil {
		return err
	}
	if err := c.Console.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
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

// StorageConfig selects where the tree snapshot is kept.
//
// Path is the directory for the file driver and the database file for
// sqlite. DSN is only read by the postgres driver. The memory driver keeps
// nothing across restarts.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required,
			validation.In(kv.DriverMemory, kv.DriverFile, kv.DriverSQLite, kv.DriverPostgres)),
		validation.Field(&c.Path, validation.When(c.Driver == kv.DriverFile || c.Driver == kv.DriverSQLite, validation.Required)),
		validation.Field(&c.DSN, validation.When(c.Driver == kv.DriverPostgres, validation.Required)),
	)
}

// Location returns the driver-specific argument for kv.Open.
func (c *StorageConfig) Location() string {
	if c.Driver == kv.DriverPostgres {
		return c.DSN
	}
	return c.Path
}

// TreeConfig holds tree options.
type TreeConfig struct {
	IDScheme string `yaml:"id_scheme"`
}

// Validate validates the tree configuration.
func (c *TreeConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.IDScheme, validation.In(ident.SchemeShort, ident.SchemeUUID)),
	)
}

// PreviewConfig holds preview options.
type PreviewConfig struct {
	AutoUpdate bool `yaml:"auto_update"`
}

// ConsoleConfig holds console bridge options.
type ConsoleConfig struct {
	QueueSize int `yaml:"queue_size"`
}

// Validate validates the console configuration.
func (c *ConsoleConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.QueueSize, validation.Min(0), validation.Max(1<<16)),
	)
}

// ImportConfig holds the optional import directory. An empty WatchDir
// disables the watcher.
type ImportConfig struct {
	WatchDir string `yaml:"watch_dir"`
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

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Storage: StorageConfig{
			Driver: kv.DriverSQLite,
			Path:   "./livepad.db",
		},
		Tree: TreeConfig{
			IDScheme: ident.SchemeShort,
		},
		Preview: PreviewConfig{
			AutoUpdate: true,
		},
		Console: ConsoleConfig{
			QueueSize: 256,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
