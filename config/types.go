package config

import (
	"fmt"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
)

// Config is the complete viewsync configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server" envPrefix:"SERVER_" jsonschema:"description=HTTP State API server"`
	Store   StoreConfig   `yaml:"store" toml:"store" envPrefix:"STORE_" jsonschema:"description=Backing key/value and pub/sub store"`
	Dataset DatasetConfig `yaml:"dataset" toml:"dataset" envPrefix:"DATASET_" jsonschema:"description=Reference dataset of facility classes"`
	Poll    PollConfig    `yaml:"poll" toml:"poll" envPrefix:"POLL_" jsonschema:"description=Consumer poll loop"`
	Client  ClientConfig  `yaml:"client" toml:"client" envPrefix:"CLIENT_" jsonschema:"description=HTTP client used by the CLI and MCP adapter"`
	Tracing TracingConfig `yaml:"tracing" toml:"tracing" envPrefix:"TRACING_" jsonschema:"description=OpenTelemetry tracing"`

	// Extensions holds free-form sections (e.g. "logging") decoded on demand
	// with UnmarshalExtension.
	Extensions map[string]interface{} `yaml:"extensions,omitempty" toml:"extensions,omitempty" jsonschema:"description=Component specific sections such as logging"`
}

// ServerConfig configures the HTTP State API.
type ServerConfig struct {
	Addr              string   `yaml:"addr" toml:"addr" env:"ADDR" jsonschema:"description=Listen address (host:port)"`
	ReadHeaderTimeout Duration `yaml:"read_header_timeout" toml:"read_header_timeout" env:"READ_HEADER_TIMEOUT"`
	ShutdownTimeout   Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	PidFile           string   `yaml:"pid_file,omitempty" toml:"pid_file,omitempty" env:"PID_FILE" jsonschema:"description=Optional PID file guarding against a second server"`
}

// StoreConfig selects and configures the backing store.
type StoreConfig struct {
	Backend   string       `yaml:"backend" toml:"backend" env:"BACKEND" jsonschema:"enum=redis,enum=memory,enum=sqlite"`
	Key       string       `yaml:"key" toml:"key" env:"KEY" jsonschema:"description=Key holding the serialized state document"`
	Channel   string       `yaml:"channel" toml:"channel" env:"CHANNEL" jsonschema:"description=Pub/sub channel carrying change events"`
	OpTimeout Duration     `yaml:"op_timeout" toml:"op_timeout" env:"OP_TIMEOUT" jsonschema:"description=Bound on every store call"`
	Redis     RedisConfig  `yaml:"redis" toml:"redis" envPrefix:"REDIS_"`
	SQLite    SQLiteConfig `yaml:"sqlite" toml:"sqlite" envPrefix:"SQLITE_"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" toml:"addr" env:"ADDR"`
	Password string `yaml:"password,omitempty" toml:"password,omitempty" env:"PASSWORD"`
	DB       int    `yaml:"db" toml:"db" env:"DB"`
}

// SQLiteConfig configures the sqlite backend.
type SQLiteConfig struct {
	Path string `yaml:"path,omitempty" toml:"path,omitempty" env:"PATH" jsonschema:"description=Database file; defaults to the viewsync state directory"`
}

// DatasetConfig points at the GeoJSON file listing valid facility classes.
type DatasetConfig struct {
	Path       string `yaml:"path" toml:"path" env:"PATH"`
	ClassField string `yaml:"class_field" toml:"class_field" env:"CLASS_FIELD"`
}

// PollConfig configures consumer poll loops.
type PollConfig struct {
	Interval     Duration `yaml:"interval" toml:"interval" env:"INTERVAL"`
	CheckTimeout Duration `yaml:"check_timeout" toml:"check_timeout" env:"CHECK_TIMEOUT" jsonschema:"description=Bounded wait of a single notification check (sub-second)"`
}

// ClientConfig configures State API clients.
type ClientConfig struct {
	BaseURL string   `yaml:"base_url" toml:"base_url" env:"BASE_URL"`
	Timeout Duration `yaml:"timeout" toml:"timeout" env:"TIMEOUT"`
}

// TracingConfig enables OTLP/HTTP trace export when Endpoint is set.
type TracingConfig struct {
	Endpoint    string `yaml:"endpoint,omitempty" toml:"endpoint,omitempty" env:"ENDPOINT"`
	ServiceName string `yaml:"service_name" toml:"service_name" env:"SERVICE_NAME"`
}

// Duration is a time.Duration that reads and writes as a Go duration string
// ("2s", "250ms") in yaml, toml and environment variables.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// JSONSchema describes Duration as a string for the generated config schema.
func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Description: "Go duration string such as 2s or 250ms",
	}
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8000",
			ReadHeaderTimeout: Duration(5 * time.Second),
			ShutdownTimeout:   Duration(5 * time.Second),
		},
		Store: StoreConfig{
			Backend:   BackendRedis,
			Key:       "app_state",
			Channel:   "app_state_changes",
			OpTimeout: Duration(2 * time.Second),
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Dataset: DatasetConfig{
			Path:       "data/health_sg.geojson",
			ClassField: "fclass",
		},
		Poll: PollConfig{
			Interval:     Duration(time.Second),
			CheckTimeout: Duration(10 * time.Millisecond),
		},
		Client: ClientConfig{
			BaseURL: "http://localhost:8000",
			Timeout: Duration(5 * time.Second),
		},
		Tracing: TracingConfig{
			ServiceName: "viewsync",
		},
	}
}

// Store backends.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// UnmarshalExtension decodes a specific extension's configuration from the
// Extensions map into the provided target struct.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		// A missing section leaves the target zero-valued.
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
