package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Config is the engine configuration. Every field has a usable default, so an
// empty file (or no file) is a valid configuration.
type Config struct {
	DataDir         string   `json:"data_dir" validate:"required"`
	BufferPoolPages int      `json:"buffer_pool_pages" validate:"gte=1"`
	LockTimeout     Duration `json:"lock_timeout" validate:"gt=0"`
	Index           Index    `json:"index"`
	Logger          Logger   `json:"logger"`
}

// Index configures secondary indexes.
type Index struct {
	// MaxKeysPerPage caps the keys per B+ tree node; 0 fits as many as a page holds.
	MaxKeysPerPage int `json:"max_keys_per_page" validate:"eq=0|gte=3"`
}

// Logger is the configuration for the logger
type Logger struct {
	LogLevel    string `json:"log_level" validate:"oneof=debug info warn error"`
	FileLogName string `json:"file_log_name"`
	MaxBackups  int    `json:"max_backups" validate:"gte=0"`
	MaxAge      int    `json:"max_age" validate:"gte=0"`
	MaxSize     int    `json:"max_size" validate:"gte=0"`
	Compress    bool   `json:"compress"`
}

// Duration is a time.Duration written as "250ms" or "2s" in JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(err, "duration must be a string such as \"2s\"")
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", s)
	}
	*d = Duration(v)
	return nil
}

func Default() *Config {
	return &Config{
		DataDir:         "data",
		BufferPoolPages: 1024,
		LockTimeout:     Duration(2 * time.Second),
		Logger: Logger{
			LogLevel:   "info",
			MaxBackups: 3,
			MaxAge:     28,
			MaxSize:    100,
		},
	}
}

// Load reads the JSON file at path over the defaults and validates the result.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read config %s", path)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to parse config %s", path)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}
