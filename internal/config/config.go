// Package config loads ingsig settings from a YAML file and INGSIG_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/vitalvas/ingsig/mtls"
)

// EnvPrefix prefixes environment overrides: tls.cert is read from
// INGSIG_TLS_CERT.
const EnvPrefix = "INGSIG"

const redacted = "********"

var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	ClientID           string `mapstructure:"client_id" yaml:"client_id"`
	SigningKey         string `mapstructure:"signing_key" yaml:"signing_key"`
	BaseURL            string `mapstructure:"base_url" yaml:"base_url"`
	Scope              string `mapstructure:"scope" yaml:"scope"`
	ResourcePath       string `mapstructure:"resource_path" yaml:"resource_path"`
	StrictVerification bool   `mapstructure:"strict_verification" yaml:"strict_verification"`

	HTTP    HTTPConfig    `mapstructure:"http" yaml:"http"`
	TLS     TLSConfig     `mapstructure:"tls" yaml:"tls"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Sandbox SandboxConfig `mapstructure:"sandbox" yaml:"sandbox"`
}

type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type TLSConfig struct {
	Cert             string `mapstructure:"cert" yaml:"cert"`
	Key              string `mapstructure:"key" yaml:"key"`
	Keystore         string `mapstructure:"keystore" yaml:"keystore"`
	KeystorePassword string `mapstructure:"keystore_password" yaml:"keystore_password"`
	KeyPassword      string `mapstructure:"key_password" yaml:"key_password"`
	CA               string `mapstructure:"ca" yaml:"ca"`
	ServerName       string `mapstructure:"server_name" yaml:"server_name"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type SandboxConfig struct {
	Addr      string `mapstructure:"addr" yaml:"addr"`
	ClientID  string `mapstructure:"client_id" yaml:"client_id"`
	ClientKey string `mapstructure:"client_key" yaml:"client_key"`
	ServerKey string `mapstructure:"server_key" yaml:"server_key"`
	TLSCert   string `mapstructure:"tls_cert" yaml:"tls_cert"`
	TLSKey    string `mapstructure:"tls_key" yaml:"tls_key"`
	ClientCA  string `mapstructure:"client_ca" yaml:"client_ca"`
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("client_id", "")
	v.SetDefault("signing_key", "")
	v.SetDefault("base_url", "https://api.ing.com")
	v.SetDefault("scope", "greetings:view")
	v.SetDefault("resource_path", "/greetings/single")
	v.SetDefault("strict_verification", false)
	v.SetDefault("http.timeout", "30s")

	v.SetDefault("tls.cert", "")
	v.SetDefault("tls.key", "")
	v.SetDefault("tls.keystore", "")
	v.SetDefault("tls.keystore_password", "")
	v.SetDefault("tls.key_password", "")
	v.SetDefault("tls.ca", "")
	v.SetDefault("tls.server_name", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("sandbox.addr", ":8443")
	v.SetDefault("sandbox.client_id", "")
	v.SetDefault("sandbox.client_key", "")
	v.SetDefault("sandbox.server_key", "")
	v.SetDefault("sandbox.tls_cert", "")
	v.SetDefault("sandbox.tls_key", "")
	v.SetDefault("sandbox.client_ca", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads path when given, or ./ingsig.yaml when present, and applies
// environment overrides.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("ingsig")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings needed to run the client flow.
func (c *Config) Validate() error {
	var errs []error

	if c.ClientID == "" {
		errs = append(errs, fmt.Errorf("%w: client_id is required", ErrInvalidConfig))
	}

	if c.SigningKey == "" {
		errs = append(errs, fmt.Errorf("%w: signing_key is required", ErrInvalidConfig))
	}

	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("%w: base_url %q is not an absolute url", ErrInvalidConfig, c.BaseURL))
	}

	hasPair := c.TLS.Cert != "" && c.TLS.Key != ""
	switch {
	case c.TLS.Keystore == "" && !hasPair:
		errs = append(errs, fmt.Errorf("%w: tls.keystore or tls.cert and tls.key are required", ErrInvalidConfig))
	case c.TLS.Keystore != "" && (c.TLS.Cert != "" || c.TLS.Key != ""):
		errs = append(errs, fmt.Errorf("%w: tls.keystore and tls.cert/tls.key are exclusive", ErrInvalidConfig))
	}

	if c.HTTP.Timeout < 0 {
		errs = append(errs, fmt.Errorf("%w: http.timeout must not be negative", ErrInvalidConfig))
	}

	return errors.Join(errs...)
}

// MTLSOptions maps the tls section to mtls.Options.
func (c *Config) MTLSOptions() mtls.Options {
	return mtls.Options{
		CertPath:         c.TLS.Cert,
		KeyPath:          c.TLS.Key,
		KeystorePath:     c.TLS.Keystore,
		KeystorePassword: c.TLS.KeystorePassword,
		KeyPassword:      c.TLS.KeyPassword,
		CAPath:           c.TLS.CA,
		ServerName:       c.TLS.ServerName,
	}
}

// Redacted returns a copy with passwords masked.
func (c *Config) Redacted() Config {
	out := *c

	if out.TLS.KeystorePassword != "" {
		out.TLS.KeystorePassword = redacted
	}

	if out.TLS.KeyPassword != "" {
		out.TLS.KeyPassword = redacted
	}

	return out
}

// YAML renders the redacted configuration.
func (c *Config) YAML() ([]byte, error) {
	r := c.Redacted()
	return yaml.Marshal(&r)
}
