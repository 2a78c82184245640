package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/vk/cleangrid/internal/errs"
	"gopkg.in/yaml.v3"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	JobPath string `yaml:"job"` // hcl file or directory

	// DatastorePath is the SQLite database file the job reads from.
	DatastorePath string `yaml:"datastore_path"`
	// DatastoreName overrides the datastore name declared by the job.
	DatastoreName string `yaml:"datastore_name" validate:"omitempty,max=64"`

	LogFormat       string `yaml:"log_format" validate:"oneof=text json"`
	LogLevel        string `yaml:"log_level" validate:"oneof=debug info warn error"`
	WorkerCount     int    `yaml:"workers" validate:"gte=0"`
	Partitions      int    `yaml:"partitions" validate:"gte=1"`
	HealthcheckPort int    `yaml:"healthcheck_port" validate:"gte=0,lte=65535"`

	// MonitorURL is the socket.io server progress events are sent to. Empty
	// disables progress publishing.
	MonitorURL       string `yaml:"monitor_url" validate:"omitempty,url"`
	MonitorNamespace string `yaml:"monitor_namespace"`
}

var configValidate = validator.New(validator.WithRequiredStructEnabled())

// DefaultConfig returns the settings used when neither a settings file nor
// a flag says otherwise.
func DefaultConfig() Config {
	return Config{
		LogFormat:   "text",
		LogLevel:    "info",
		WorkerCount: 0,
		Partitions:  1,
	}
}

// NewConfig normalizes and validates cfg.
func NewConfig(cfg Config) (*Config, error) {
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field values. It does not check that paths exist.
func (c *Config) Validate() error {
	err := configValidate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errs.Configuration("", "validate config", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("invalid %s %q: must satisfy %s", fe.Field(), fmt.Sprint(fe.Value()), describeTag(fe)))
	}
	return errs.Configuration("", "validate config", errors.New(strings.Join(msgs, "; ")))
}

func describeTag(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

// LoadSettings reads a YAML settings file on top of base. Keys missing
// from the file keep the value they have in base.
func LoadSettings(path string, base Config) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return base, errs.Configuration("", "load settings", err)
	}
	defer f.Close()

	cfg := base
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return base, errs.Configuration("", "load settings", fmt.Errorf("failed to parse %s: %w", path, err))
	}
	return cfg, nil
}
