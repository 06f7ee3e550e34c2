package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go-simpler.org/env"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPath is read relative to the working directory.
	DefaultPath = "configuration.yaml"

	pathEnvVar = "APP_CONFIG_FILE"
)

// ErrConfig matches every error returned by Load.
var ErrConfig = errors.New("configuration error")

// ConfigError reports why a configuration file could not be turned into Settings.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

type Settings struct {
	Database        DatabaseSettings  `yaml:"database"`
	ApplicationHost string            `yaml:"application_host" env:"APP_APPLICATION_HOST" required:"true"`
	ApplicationPort uint16            `yaml:"application_port" env:"APP_APPLICATION_PORT" required:"true"`
	Log             LogSettings       `yaml:"log"`
	Metrics         MetricsSettings   `yaml:"metrics"`
	RateLimit       RateLimitSettings `yaml:"rate_limit"`
}

type DatabaseSettings struct {
	Username string `yaml:"username" env:"APP_DATABASE__USERNAME" required:"true"`
	Password string `yaml:"password" env:"APP_DATABASE__PASSWORD" required:"true"`
	DBName   string `yaml:"db_name" env:"APP_DATABASE__DB_NAME" required:"true"`
	Host     string `yaml:"host" env:"APP_DATABASE__HOST" required:"true"`
	Port     uint16 `yaml:"port" env:"APP_DATABASE__PORT" required:"true"`
	SSLMode  string `yaml:"ssl_mode" env:"APP_DATABASE__SSL_MODE" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
}

// LogSettings is optional; empty values fall back to info/text.
type LogSettings struct {
	Level  string `yaml:"level" env:"APP_LOG__LEVEL" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" env:"APP_LOG__FORMAT" validate:"omitempty,oneof=text json"`
}

// MetricsSettings enables the Prometheus listener when Port is non-zero.
type MetricsSettings struct {
	Port uint16 `yaml:"port" env:"APP_METRICS__PORT"`
}

// RateLimitSettings enables per-IP limiting of subscription requests when RequestsPerSecond is positive.
type RateLimitSettings struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"APP_RATE_LIMIT__REQUESTS_PER_SECOND" validate:"gte=0"`
	Burst             int     `yaml:"burst" env:"APP_RATE_LIMIT__BURST" validate:"gte=0"`
}

// Address is the host:port the application listener binds.
func (s *Settings) Address() string {
	return net.JoinHostPort(s.ApplicationHost, strconv.Itoa(int(s.ApplicationPort)))
}

// ConnectionString points at the configured database.
func (d DatabaseSettings) ConnectionString() string {
	u := d.serverURL()
	u.Path = "/" + d.DBName
	return u.String()
}

// ConnectionStringWithoutDB points at the server only, so the target database can be created first.
func (d DatabaseSettings) ConnectionStringWithoutDB() string {
	return d.serverURL().String()
}

func (d DatabaseSettings) serverURL() *url.URL {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.Username, d.Password),
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(int(d.Port))),
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
	}
	return u
}

// LoadDefault loads an optional .env file and then reads DefaultPath,
// or the file named by APP_CONFIG_FILE.
func LoadDefault() (*Settings, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	path := DefaultPath
	if p := os.Getenv(pathEnvVar); p != "" {
		path = p
	}
	return Load(path)
}

// Load reads the YAML file at path, applies APP_* environment overrides and
// validates the result. No defaults are substituted for required fields.
func Load(path string) (*Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	var settings Settings
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(&settings); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("file is empty")
		}
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("failed to parse YAML: %w", err)}
	}

	var document yaml.Node
	if err := yaml.Unmarshal(raw, &document); err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("failed to parse YAML: %w", err)}
	}

	if err := env.Load(&settings, nil); err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("failed to apply environment overrides: %w", err)}
	}

	if missing := missingKeys(reflect.TypeOf(settings), "", presentKeys(&document)); len(missing) > 0 {
		msgs := make([]string, 0, len(missing))
		for _, key := range missing {
			msgs = append(msgs, key+" is required")
		}
		return nil, &ConfigError{Path: path, Err: errors.New(strings.Join(msgs, "; "))}
	}

	if err := validate(&settings); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	return &settings, nil
}

// presentKeys lists the dotted paths of every non-null scalar or sequence in
// the document, e.g. "database.password". An explicitly empty string counts.
func presentKeys(document *yaml.Node) map[string]bool {
	present := make(map[string]bool)
	if document.Kind != yaml.DocumentNode || len(document.Content) == 0 {
		return present
	}

	var walk func(node *yaml.Node, prefix string)
	walk = func(node *yaml.Node, prefix string) {
		if node.Kind != yaml.MappingNode {
			return
		}
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i].Value, node.Content[i+1]
			if prefix != "" {
				key = prefix + "." + key
			}
			switch {
			case value.Kind == yaml.MappingNode:
				walk(value, key)
			case value.Kind == yaml.ScalarNode && value.Tag == "!!null":
			default:
				present[key] = true
			}
		}
	}
	walk(document.Content[0], "")
	return present
}

// missingKeys returns the yaml paths of fields tagged required:"true" that
// neither the file nor their env variable set. Zero values are accepted.
func missingKeys(t reflect.Type, prefix string, present map[string]bool) []string {
	var missing []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			continue
		}
		if prefix != "" {
			name = prefix + "." + name
		}

		if field.Type.Kind() == reflect.Struct {
			missing = append(missing, missingKeys(field.Type, name, present)...)
			continue
		}
		if field.Tag.Get("required") != "true" || present[name] {
			continue
		}
		if envName := field.Tag.Get("env"); envName != "" {
			if _, ok := os.LookupEnv(envName); ok {
				continue
			}
		}
		missing = append(missing, name)
	}
	return missing
}

var settingsValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

func validate(settings *Settings) error {
	err := settingsValidator.Struct(settings)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed to validate settings: %w", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := strings.TrimPrefix(fe.Namespace(), "Settings.")
		switch fe.Tag() {
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %q validation", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
