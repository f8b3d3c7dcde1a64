// Package cliconfig loads and saves the letterctl profile: the API address,
// the signed-in session and client settings.
package cliconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultServer = "http://localhost:8787"
	profileDir    = "letterctl"
	profileFile   = "profile.yaml"
)

// Profile models ~/.config/letterctl/profile.yaml.
type Profile struct {
	Server       string `yaml:"server"`
	Token        string `yaml:"token,omitempty"`
	RefreshToken string `yaml:"refresh_token,omitempty"`
	UserID       string `yaml:"user_id,omitempty"`
	UserName     string `yaml:"user_name,omitempty"`
	Role         string `yaml:"role,omitempty"`
	// Timeout bounds each API request. Empty or zero means no timeout.
	Timeout string `yaml:"timeout,omitempty"`
}

// DefaultPath returns the profile location under the user config directory.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(base, profileDir, profileFile), nil
}

// Load reads the profile at path and applies environment overrides. A missing
// file yields the defaults.
func Load(path string) (Profile, error) {
	profile := Profile{Server: DefaultServer}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Profile{}, fmt.Errorf("read profile: %w", err)
	default:
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
		}
	}
	profile.applyEnv()
	if strings.TrimSpace(profile.Server) == "" {
		profile.Server = DefaultServer
	}
	return profile, nil
}

func (p *Profile) applyEnv() {
	if value := strings.TrimSpace(os.Getenv("LETTERCTL_SERVER")); value != "" {
		p.Server = value
	}
	if value := strings.TrimSpace(os.Getenv("LETTERCTL_TOKEN")); value != "" {
		p.Token = value
	}
	if value := strings.TrimSpace(os.Getenv("LETTERCTL_TIMEOUT")); value != "" {
		p.Timeout = value
	}
}

// RequestTimeout parses Timeout as a Go duration or bare seconds.
func (p Profile) RequestTimeout() (time.Duration, error) {
	value := strings.TrimSpace(p.Timeout)
	if value == "" {
		return 0, nil
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed, nil
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	return 0, fmt.Errorf("invalid timeout %q", p.Timeout)
}

// Save writes the profile with owner-only permissions since it holds tokens.
func Save(path string, profile Profile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	data, err := yaml.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}

// SignedIn reports whether the profile carries an access token.
func (p Profile) SignedIn() bool {
	return strings.TrimSpace(p.Token) != ""
}
