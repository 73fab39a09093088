package config

import (
	"os"
	"sort"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/iancoleman/strcase"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

type Config struct {
	Username          string        `koanf:"username" validate:"required"`
	Password          string        `koanf:"password" validate:"required"`
	OutputDirectory   string        `koanf:"output_directory" validate:"required"`
	DownloadImages    bool          `koanf:"download_images"`
	BaseURL           string        `koanf:"base_url" default:"https://www.wattpad.com" validate:"required,url"`
	UserAgent         string        `koanf:"user_agent" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/103.0.0.0 Safari/537.36"`
	RetryMaxElapsed   time.Duration `koanf:"retry_max_elapsed" default:"15s" validate:"gt=0"`
	RequestTimeout    time.Duration `koanf:"request_timeout" default:"60s" validate:"gt=0"`
	RequestsPerSecond float64       `koanf:"requests_per_second" default:"4" validate:"gt=0"`
	StateFilename     string        `koanf:"state_filename" default:"download_history" validate:"required"`
}

const configFileENV = "CONFIG_FILE"

const defaultConfigFile = "./config.yaml"

// envKeys lists the environment variables that are read into the config.
// The variable name is the upper-cased config key.
var envKeys = map[string]bool{
	"USERNAME":            true,
	"PASSWORD":            true,
	"OUTPUT_DIRECTORY":    true,
	"DOWNLOAD_IMAGES":     true,
	"BASE_URL":            true,
	"USER_AGENT":          true,
	"RETRY_MAX_ELAPSED":   true,
	"REQUEST_TIMEOUT":     true,
	"REQUESTS_PER_SECOND": true,
	"STATE_FILENAME":      true,
}

// Overrides are values given on the command line. Nil fields leave the
// loaded value untouched.
type Overrides struct {
	Username        *string
	Password        *string
	OutputDirectory *string
	DownloadImages  *bool
}

// New loads the config from defaults, the optional YAML config file and the
// environment, in increasing order of precedence.
func New() (*Config, error) {
	return NewWithOverrides(Overrides{})
}

// NewWithOverrides is New with command line values applied on top of the
// environment before the config is validated.
func NewWithOverrides(o Overrides) (*Config, error) {
	k, err := load()
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	cfg.Apply(o)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Apply copies every set override into cfg.
func (cfg *Config) Apply(o Overrides) {
	if o.Username != nil {
		cfg.Username = *o.Username
	}
	if o.Password != nil {
		cfg.Password = *o.Password
	}
	if o.OutputDirectory != nil {
		cfg.OutputDirectory = *o.OutputDirectory
	}
	if o.DownloadImages != nil {
		cfg.DownloadImages = *o.DownloadImages
	}
}

// NewForTest returns a valid config without touching the environment.
func NewForTest() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	cfg.Username = "reader"
	cfg.Password = "secret"
	cfg.OutputDirectory = "./tmp/library"
	cfg.RetryMaxElapsed = 200 * time.Millisecond
	cfg.RequestsPerSecond = 1000
	return cfg
}

func load() (*koanf.Koanf, error) {
	k := koanf.New(".")

	path := os.Getenv(configFileENV)
	if path == "" {
		path = defaultConfigFile
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", path)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.WithStack(err)
	}

	err := k.Load(env.Provider("", ".", func(s string) string {
		if !envKeys[s] {
			return ""
		}
		return strings.ToLower(s)
	}), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load environment")
	}

	return k, nil
}

// Validate checks the config and reports every missing required key with
// both its environment variable and config file spelling.
func (cfg *Config) Validate() error {
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.WithStack(err)
	}

	var missing, invalid []string
	for _, fe := range verrs {
		key := toSnakeCase(fe.StructField())
		if fe.Tag() == "required" {
			missing = append(missing, strcase.ToScreamingSnake(key)+" ("+key+")")
			continue
		}
		invalid = append(invalid, key+" ("+fe.Tag()+")")
	}
	sort.Strings(missing)
	sort.Strings(invalid)

	if len(missing) > 0 {
		return errors.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return errors.Errorf("invalid config: %s", strings.Join(invalid, ", "))
}

func toSnakeCase(s string) string {
	// strcase splits "BaseURL" into "base_url", which matches the koanf tags.
	return strcase.ToSnake(s)
}
