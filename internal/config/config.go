package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for configuration.
const DefaultPath = ".questcheck/config.yaml"

// Config represents the runtime configuration from .questcheck/config.yaml.
type Config struct {
	LogLevel string         `yaml:"log_level" validate:"oneof=debug info warn error"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Store    StoreConfig    `yaml:"store"`
	Server   ServerConfig   `yaml:"server"`
	Validate ValidateConfig `yaml:"validate"`
}

// CatalogConfig selects where mission content comes from. With nothing
// set, the catalog embedded in the binary is used.
type CatalogConfig struct {
	Path           string       `yaml:"path"`
	URL            string       `yaml:"url" validate:"omitempty,url"`
	AllowedDomains []string     `yaml:"allowed_domains" validate:"dive,hostname"`
	GitHub         GitHubConfig `yaml:"github"`

	// Watch reloads a file catalog when it changes. Only used by serve.
	Watch bool `yaml:"watch"`
}

// GitHubConfig locates a catalog file inside a GitHub repository.
type GitHubConfig struct {
	Token string `yaml:"token"`
	Owner string `yaml:"owner" validate:"required_with=Repo"`
	Repo  string `yaml:"repo" validate:"required_with=Owner"`
	Path  string `yaml:"path"`
	Ref   string `yaml:"ref"`
}

// StoreConfig controls the attempt store.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr          string `yaml:"addr" validate:"required,hostname_port"`
	MaxSourceSize string `yaml:"max_source_size" validate:"required,size"`
}

// ValidateConfig controls batch validation.
type ValidateConfig struct {
	Workers int `yaml:"workers" validate:"min=1,max=64"`
}

// CatalogSource names the configured catalog source kind.
type CatalogSource string

const (
	SourceEmbedded CatalogSource = "embedded"
	SourceFile     CatalogSource = "file"
	SourceHTTP     CatalogSource = "http"
	SourceGitHub   CatalogSource = "github"
)

// Source reports which catalog source is configured.
func (c CatalogConfig) Source() CatalogSource {
	switch {
	case c.Path != "":
		return SourceFile
	case c.URL != "":
		return SourceHTTP
	case c.GitHub.Owner != "":
		return SourceGitHub
	default:
		return SourceEmbedded
	}
}

// MaxSourceBytes returns the parsed submission size limit.
func (s ServerConfig) MaxSourceBytes() int64 {
	n, err := ParseSize(s.MaxSourceSize)
	if err != nil {
		return 0
	}
	return n
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Catalog: CatalogConfig{
			GitHub: GitHubConfig{
				Path: "missions.yaml",
			},
		},
		Store: StoreConfig{
			Enabled: true,
			Path:    ".questcheck/attempts.db",
		},
		Server: ServerConfig{
			Addr:          "127.0.0.1:8080",
			MaxSourceSize: "256KB",
		},
		Validate: ValidateConfig{
			Workers: 4,
		},
	}
}

// LoadConfig reads, interpolates and validates a config YAML file.
// Returns the default config if the file doesn't exist.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	interpolated := interpolateEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	_ = configValidate.RegisterValidation("size", func(fl validator.FieldLevel) bool {
		_, err := ParseSize(fl.Field().String())
		return err == nil
	})
}

// Validate checks field constraints and that at most one catalog source
// is configured.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, len(verrs))
		for i, fe := range verrs {
			msgs[i] = fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}

	set := 0
	for _, v := range []string{c.Catalog.Path, c.Catalog.URL, c.Catalog.GitHub.Owner} {
		if v != "" {
			set++
		}
	}
	if set > 1 {
		return fmt.Errorf("invalid config: catalog.path, catalog.url and catalog.github are mutually exclusive")
	}
	if c.Catalog.Watch && c.Catalog.Path == "" {
		return fmt.Errorf("invalid config: catalog.watch needs catalog.path")
	}
	return nil
}

// envVarPattern matches ${VAR_NAME} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// interpolateEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func interpolateEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match // Leave unresolved if not set.
	})
}
