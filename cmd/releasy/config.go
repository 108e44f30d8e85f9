package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/adamwoolhether/releasy/client"
)

// Environment variables consulted when the matching flag is not set.
const (
	envURL         = "RELEASY_URL"
	envAPIKey      = "RELEASY_API_KEY"
	envAdminKey    = "RELEASY_ADMIN_KEY"
	envOperatorJWT = "RELEASY_OPERATOR_JWT"
	envConfig      = "RELEASY_CONFIG"
)

// profile is the on-disk configuration file:
//
//	url: https://releasy.example.com
//	admin_key: ...
//	timeout: 45s
//	user_agent: release-bot/1.0
type profile struct {
	URL         string        `yaml:"url"`
	APIKey      string        `yaml:"api_key"`
	AdminKey    string        `yaml:"admin_key"`
	OperatorJWT string        `yaml:"operator_jwt"`
	Timeout     time.Duration `yaml:"timeout"`
	UserAgent   string        `yaml:"user_agent"`
}

// globalFlags holds the persistent flags shared by every command.
type globalFlags struct {
	url         string
	apiKey      string
	adminKey    string
	operatorJWT string
	timeout     time.Duration
	json        bool
	config      string
	userAgent   string
	verbose     bool
}

// settings is the effective configuration after merging flags, environment
// and the profile file, in that order of precedence.
type settings struct {
	url       string
	auth      client.Auth
	timeout   time.Duration
	userAgent string
}

// usageError marks a mistake in how the command was invoked.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// defaultConfigPath is $XDG_CONFIG_HOME/releasy/config.yaml or its
// platform equivalent.
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}

	return filepath.Join(dir, "releasy", "config.yaml")
}

// loadProfile reads the profile at path. A missing file is only an error
// when the path was given explicitly.
func loadProfile(path string, explicit bool) (profile, error) {
	var p profile
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return p, nil
		}
		return p, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return p, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// resolve merges flags, environment and profile into settings. Exactly one
// credential may be configured across all sources.
func (a *app) resolve(timeoutSet bool) (settings, error) {
	g := a.flags

	path, explicit := g.config, g.config != ""
	if !explicit {
		if path = a.getenv(envConfig); path != "" {
			explicit = true
		} else {
			path = a.defaultConfig
		}
	}

	p, err := loadProfile(path, explicit)
	if err != nil {
		return settings{}, err
	}

	s := settings{
		url:       firstNonEmpty(g.url, a.getenv(envURL), p.URL),
		timeout:   g.timeout,
		userAgent: firstNonEmpty(g.userAgent, p.UserAgent, "releasy-cli"),
	}
	if !timeoutSet && p.Timeout > 0 {
		s.timeout = p.Timeout
	}
	if s.url == "" {
		return settings{}, usagef("no service url: set --url, %s or url in the config file", envURL)
	}

	creds := []struct {
		name  string
		value string
		auth  func(string) client.Auth
	}{
		{"api key", firstNonEmpty(g.apiKey, a.getenv(envAPIKey), p.APIKey), client.APIKey},
		{"admin key", firstNonEmpty(g.adminKey, a.getenv(envAdminKey), p.AdminKey), client.AdminKey},
		{"operator jwt", firstNonEmpty(g.operatorJWT, a.getenv(envOperatorJWT), p.OperatorJWT), client.OperatorJWT},
	}

	var set []string
	for _, c := range creds {
		if c.value == "" {
			continue
		}
		set = append(set, c.name)
		s.auth = c.auth(c.value)
	}
	if len(set) > 1 {
		return settings{}, usagef("more than one credential configured (%s): use exactly one", strings.Join(set, ", "))
	}

	return s, nil
}
