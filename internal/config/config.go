// Package config loads the livelist.yaml application file.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/livefir/livelist"
)

const (
	// FileName is the default name of the config file
	FileName = "livelist.yaml"

	DefaultDatabasePath  = "livelist.db"
	DefaultDriver        = "sqlite"
	DefaultAddress       = "127.0.0.1:8080"
	DefaultChurnInterval = time.Second
	DefaultDebounce      = 100 * time.Millisecond
	DefaultPageSize      = 25
	DefaultTokenTTL      = time.Minute
)

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	List     ListConfig     `yaml:"list"`
	Churn    ChurnConfig    `yaml:"churn"`

	// Version tracks the config file version for future migrations
	Version string `yaml:"version,omitempty"`
}

type DatabaseConfig struct {
	// Path of the SQLite database file
	Path string `yaml:"path" validate:"required"`
	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo)
	Driver string `yaml:"driver" validate:"oneof=sqlite sqlite3"`
	// Debounce groups bursts of file events into one reload
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
}

type ServerConfig struct {
	Address string `yaml:"address" validate:"required,hostname_port"`
	// Tokens requires a single-use token to open the websocket
	Tokens   bool          `yaml:"tokens"`
	TokenTTL time.Duration `yaml:"token_ttl" validate:"gte=0"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json"`
}

// ListConfig drives the coordinator and the query behind it.
type ListConfig struct {
	AutomaticUpdate bool   `yaml:"automatic_update"`
	AnimateChanges  bool   `yaml:"animate_changes"`
	Grouping        bool   `yaml:"grouping"`
	GroupingKey     string `yaml:"grouping_key" validate:"required_if=Grouping true"`
	FoldLabels      bool   `yaml:"fold_labels"`
	OrderBy         string `yaml:"order_by" validate:"omitempty,oneof=id name city email"`
	LoadMore        bool   `yaml:"load_more"`
	// PageSize is the number of rows loaded per page when LoadMore is set
	PageSize int `yaml:"page_size" validate:"gte=0"`
}

type ChurnConfig struct {
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
}

// Default returns a new Config with default values
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:     DefaultDatabasePath,
			Driver:   DefaultDriver,
			Debounce: DefaultDebounce,
		},
		Server: ServerConfig{
			Address:  DefaultAddress,
			Tokens:   true,
			TokenTTL: DefaultTokenTTL,
		},
		Log:    LogConfig{Level: "info"},
		List: ListConfig{
			AutomaticUpdate: true,
			AnimateChanges:  true,
		},
		Churn:   ChurnConfig{Interval: DefaultChurnInterval},
		Version: "1.0",
	}
}

// Load reads the config file at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}
	return Parse(data)
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func Save(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "failed to create config directory")
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	return nil
}

// ApplyDefaults fills the fields left empty, including the ones derived from
// other settings. Call it again after overriding fields in code.
func (c *Config) ApplyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDriver
	}
	if c.Server.Address == "" {
		c.Server.Address = DefaultAddress
	}
	if c.Churn.Interval == 0 {
		c.Churn.Interval = DefaultChurnInterval
	}
	if c.List.OrderBy == "" {
		if c.List.Grouping {
			c.List.OrderBy = c.List.GroupingKey
		} else {
			c.List.OrderBy = "id"
		}
	}
	if c.List.LoadMore && c.List.PageSize == 0 {
		c.List.PageSize = DefaultPageSize
	}
	if c.Version == "" {
		c.Version = "1.0"
	}
}

var validate = validator.New()

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
			fe := fieldErrors[0]
			return errors.Mark(
				errors.Newf("config field %s is invalid (%s)", fe.Namespace(), fe.Tag()),
				livelist.ErrConfiguration)
		}
		return errors.Mark(errors.Wrap(err, "invalid config"), livelist.ErrConfiguration)
	}

	if c.List.Grouping && c.List.OrderBy != c.List.GroupingKey {
		return errors.Mark(
			errors.WithHint(
				errors.Newf("list.order_by %q must equal list.grouping_key %q", c.List.OrderBy, c.List.GroupingKey),
				"grouped lists must be sorted by the grouping key"),
			livelist.ErrConfiguration)
	}
	return nil
}

// Limit returns the query limit, 0 meaning unlimited.
func (c *Config) Limit() int {
	if !c.List.LoadMore {
		return 0
	}
	return c.List.PageSize
}

// Coordinator converts the list settings into a coordinator configuration.
func (c *Config) Coordinator() livelist.Config {
	return livelist.Config{
		AutomaticUpdate: c.List.AutomaticUpdate,
		AnimateChanges:  c.List.AnimateChanges,
		Grouping:        c.List.Grouping,
		GroupingKey:     c.List.GroupingKey,
	}
}

// HeaderLabel returns the label function selected by the list settings.
func (c *Config) HeaderLabel() livelist.LabelFunc {
	if c.List.FoldLabels {
		return livelist.FoldedHeaderLabel
	}
	return livelist.DefaultHeaderLabel
}
