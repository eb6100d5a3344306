package config

import (
	"os"
	"slices"
	"strings"
	"time"
	_ "time/tzdata" // Timezone must resolve on hosts without a zoneinfo database.

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	// EnvPrefix is stripped from every environment variable before it is
	// matched against a configuration key.
	EnvPrefix = "PORTAL_"
	// FileEnv names the optional YAML file layered between defaults and the
	// environment.
	FileEnv = "PORTAL_CONFIG_FILE"
	// DotenvEnv names an optional dotenv file. Its entries sit below the real
	// environment.
	DotenvEnv = "PORTAL_ENV_FILE"
)

// Config captures the portal's runtime settings.
type Config struct {
	HTTPPort  int    `koanf:"http_port" yaml:"http_port"`
	LogLevel  string `koanf:"log_level" yaml:"log_level"`
	LogFormat string `koanf:"log_format" yaml:"log_format"`
	Timezone  string `koanf:"timezone" yaml:"timezone"`

	// SQLiteDSN enables persistence; empty keeps everything in memory.
	SQLiteDSN string `koanf:"sqlite_dsn" yaml:"sqlite_dsn"`

	SessionSecret string        `koanf:"session_secret" yaml:"session_secret"`
	SessionTTL    time.Duration `koanf:"session_ttl" yaml:"session_ttl"`
	SecretScheme  string        `koanf:"secret_scheme" yaml:"secret_scheme"`
	SeedDemoData  bool          `koanf:"seed_demo_data" yaml:"seed_demo_data"`

	RedisAddr     string `koanf:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `koanf:"redis_password" yaml:"redis_password"`

	// RevocationFile keeps revocations in a bbolt file when redis is not set.
	RevocationFile string `koanf:"revocation_file" yaml:"revocation_file"`

	FirebaseProjectID       string `koanf:"firebase_project_id" yaml:"firebase_project_id"`
	FirebaseCredentialsFile string `koanf:"firebase_credentials_file" yaml:"firebase_credentials_file"`
	AdminEmail              string `koanf:"admin_email" yaml:"admin_email"`

	NotifyProvider  string `koanf:"notify_provider" yaml:"notify_provider"`
	PubSubProjectID string `koanf:"pubsub_project_id" yaml:"pubsub_project_id"`
	PubSubTopic     string `koanf:"pubsub_topic" yaml:"pubsub_topic"`
	AMQPURL         string `koanf:"amqp_url" yaml:"amqp_url"`
	AMQPExchange    string `koanf:"amqp_exchange" yaml:"amqp_exchange"`

	ChatAPIKey   string `koanf:"chat_api_key" yaml:"chat_api_key"`
	ChatEndpoint string `koanf:"chat_endpoint" yaml:"chat_endpoint"`
	ChatModel    string `koanf:"chat_model" yaml:"chat_model"`
}

// Defaults returns the configuration used for every key nobody sets.
func Defaults() Config {
	return Config{
		HTTPPort:       8080,
		LogLevel:       "info",
		LogFormat:      "text",
		Timezone:       "Africa/Tunis",
		SQLiteDSN:      "file:portal.db",
		SessionTTL:     24 * time.Hour,
		SecretScheme:   "argon2id",
		SeedDemoData:   true,
		AdminEmail:     "admin@tbsuniversity.edu",
		NotifyProvider: "none",
		AMQPExchange:   "portal.calendar",
		ChatEndpoint:   "https://api.openai.com/v1/chat/completions",
		ChatModel:      "gpt-4o-mini",
	}
}

// Location resolves Timezone. Callers should only use it on a Config that
// passed Load.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load layers defaults, the optional PORTAL_CONFIG_FILE YAML file, the optional
// PORTAL_ENV_FILE dotenv file and PORTAL_* environment variables, then
// validates the result.
func Load() (Config, error) {
	return LoadFrom(os.Environ)
}

// LoadFrom is Load with an injectable environment.
func LoadFrom(environ func() []string) (Config, error) {
	if environ == nil {
		environ = os.Environ
	}
	environment := environ()
	if path := lookup(environment, DotenvEnv); path != "" {
		values, err := godotenv.Read(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read env file %s", path)
		}
		environment = withDotenv(environment, values)
	}

	k := koanf.New(".")

	if path := lookup(environment, FileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, errors.Wrapf(err, "read config file %s", path)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:      EnvPrefix,
		EnvironFunc: func() []string { return environment },
		TransformFunc: func(key, value string) (string, any) {
			if key == FileEnv || key == DotenvEnv {
				return "", nil
			}
			return strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), strings.TrimSpace(value)
		},
	}), nil); err != nil {
		return Config{}, errors.Wrap(err, "load env variables failed")
	}

	cfg := Defaults()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	}); err != nil {
		return Config{}, errors.Wrap(err, "unmarshal config failed")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports missing and invalid keys by their environment variable
// names.
func (c Config) Validate() error {
	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 4)

	if strings.TrimSpace(c.SessionSecret) == "" {
		missing = append(missing, envName("session_secret"))
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		invalid = append(invalid, envName("http_port"))
	}
	if c.SessionTTL <= 0 {
		invalid = append(invalid, envName("session_ttl"))
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.LogLevel)) {
		invalid = append(invalid, envName("log_level"))
	}
	if !slices.Contains([]string{"text", "json"}, strings.ToLower(c.LogFormat)) {
		invalid = append(invalid, envName("log_format"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil || strings.TrimSpace(c.Timezone) == "" {
		invalid = append(invalid, envName("timezone"))
	}
	if !slices.Contains([]string{"plain", "argon2id", "bcrypt"}, strings.ToLower(c.SecretScheme)) {
		invalid = append(invalid, envName("secret_scheme"))
	}

	switch strings.ToLower(c.NotifyProvider) {
	case "", "none":
	case "fcm":
		if c.FirebaseProjectID == "" {
			missing = append(missing, envName("firebase_project_id"))
		}
	case "pubsub":
		if c.PubSubProjectID == "" {
			missing = append(missing, envName("pubsub_project_id"))
		}
		if c.PubSubTopic == "" {
			missing = append(missing, envName("pubsub_topic"))
		}
	case "amqp":
		if c.AMQPURL == "" {
			missing = append(missing, envName("amqp_url"))
		}
	default:
		invalid = append(invalid, envName("notify_provider"))
	}

	if len(missing) > 0 {
		return errors.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return errors.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
	}
	return nil
}

// withDotenv puts the dotenv entries ahead of environ so that a variable set
// in both places resolves to the process value.
func withDotenv(environ []string, values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	merged := make([]string, 0, len(keys)+len(environ))
	for _, key := range keys {
		merged = append(merged, key+"="+values[key])
	}
	return append(merged, environ...)
}

func envName(key string) string {
	return EnvPrefix + strings.ToUpper(key)
}

func lookup(environ []string, key string) string {
	for _, entry := range environ {
		if name, value, ok := strings.Cut(entry, "="); ok && name == key {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
