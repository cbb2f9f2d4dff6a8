// Package config loads and validates the service configuration from file,
// environment and flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/torchbox-forks/wagtail-transfer/pkg/model"
)

// Version is set at build time.
var Version = "dev"

// Config holds application-wide configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database" validate:"required"`
	Site       SiteConfig       `mapstructure:"site"`
	Pagination PaginationConfig `mapstructure:"pagination"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Users      []UserConfig     `mapstructure:"users" validate:"dive"`
	Groups     []GroupConfig    `mapstructure:"groups" validate:"dive"`
	Snippets   []map[string]any `mapstructure:"snippets"`
	PageTypes  []model.PageTypeConfig `mapstructure:"pageTypes"`
	Sources    []SourceConfig   `mapstructure:"sources" validate:"dive"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type ServerConfig struct {
	ListenAddr string `mapstructure:"listenAddr"`
	BaseURL    string `mapstructure:"baseURL"`
	TLSCert    string `mapstructure:"tlsCert"`
	TLSKey     string `mapstructure:"tlsKey"`
}

type DatabaseConfig struct {
	ConnString string `mapstructure:"connString" validate:"required"`
}

// SiteConfig locates the served site within the page tree: html_url is
// RootURL + (page url_path with RootPath stripped).
type SiteConfig struct {
	RootURL  string `mapstructure:"rootURL" validate:"omitempty,url"`
	RootPath string `mapstructure:"rootPath"`
}

type PaginationConfig struct {
	DefaultLimit int `mapstructure:"defaultLimit" validate:"gte=0"`
	MaxLimit     int `mapstructure:"maxLimit" validate:"gte=0"`
}

type AuthConfig struct {
	BasicAuthEnabled bool       `mapstructure:"basicAuthEnabled"`
	OIDC             OIDCConfig `mapstructure:"oidc"`
}

type OIDCConfig struct {
	ClientID      string `mapstructure:"clientID"`
	ClientSecret  string `mapstructure:"clientSecret"`
	Issuer        string `mapstructure:"issuer" validate:"omitempty,url"`
	UsernameClaim string `mapstructure:"usernameClaim"`
}

// Enabled reports whether bearer-token introspection is configured.
func (c OIDCConfig) Enabled() bool {
	return c.Issuer != ""
}

type UserConfig struct {
	Username  string   `mapstructure:"username" validate:"required"`
	Password  string   `mapstructure:"password"`
	Groups    []string `mapstructure:"groups"`
	Superuser bool     `mapstructure:"superuser"`
}

// GroupConfig names a group and the permission codenames it grants, e.g.
// "wagtail_transfer.wagtailtransfer_can_import".
type GroupConfig struct {
	Name        string   `mapstructure:"name" validate:"required"`
	Permissions []string `mapstructure:"permissions"`
}

// SourceConfig is one remote content source the transfer tool can pull from.
type SourceConfig struct {
	Name    string `mapstructure:"name" validate:"required"`
	BaseURL string `mapstructure:"baseURL" validate:"required,url"`
	Key     string `mapstructure:"key"`
}

type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listenAddr"`
}

// Default returns the configuration defaults applied before file and env
// values.
func Default() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
			BaseURL:    "/api",
		},
		Site: SiteConfig{
			RootURL:  "http://localhost",
			RootPath: "/home/",
		},
		Pagination: PaginationConfig{
			DefaultLimit: 20,
			MaxLimit:     20,
		},
		Auth: AuthConfig{
			BasicAuthEnabled: true,
			OIDC: OIDCConfig{
				UsernameClaim: ".preferred_username",
			},
		},
		Metrics: MetricsConfig{
			ListenAddr: ":9100",
		},
	}
}

// Load reads config from file or environment and validates it.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("wagtail-transfer")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config"))
		}
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("WT")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks structural constraints and cross-field consistency.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Pagination.DefaultLimit > c.Pagination.MaxLimit && c.Pagination.MaxLimit > 0 {
		return fmt.Errorf("invalid config: pagination defaultLimit %d exceeds maxLimit %d",
			c.Pagination.DefaultLimit, c.Pagination.MaxLimit)
	}
	groups := make(map[string]bool, len(c.Groups))
	for _, g := range c.Groups {
		groups[g.Name] = true
	}
	for _, u := range c.Users {
		for _, g := range u.Groups {
			if !groups[g] {
				return fmt.Errorf("invalid config: user %s references unknown group %s", u.Username, g)
			}
		}
	}
	return nil
}

// User finds a configured user by username.
func (c *Config) User(username string) (UserConfig, bool) {
	for _, u := range c.Users {
		if u.Username == username {
			return u, true
		}
	}
	return UserConfig{}, false
}

// GroupPermissions collects the permission codenames granted by the given
// groups.
func (c *Config) GroupPermissions(groupNames []string) map[string]bool {
	member := make(map[string]bool, len(groupNames))
	for _, g := range groupNames {
		member[g] = true
	}
	perms := make(map[string]bool)
	for _, g := range c.Groups {
		if !member[g.Name] {
			continue
		}
		for _, p := range g.Permissions {
			perms[p] = true
		}
	}
	return perms
}

// BasicAuthCredentials returns username → password for the basic auth
// middleware.
func (c *Config) BasicAuthCredentials() map[string]string {
	creds := make(map[string]string, len(c.Users))
	for _, u := range c.Users {
		if u.Password != "" {
			creds[u.Username] = u.Password
		}
	}
	return creds
}
