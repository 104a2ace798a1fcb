package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
)

type AuditConfig struct {
	Enabled bool
	DBPath  string
}

// Config carries everything the bridge needs to serve: tracker credentials,
// listen address, log level, and the audit store location. It is built once
// at startup and treated as immutable afterwards.
type Config struct {
	BaseURL  string
	Username string
	APIToken string

	ListenAddr string
	ListenPort string
	LogLevel   string

	Audit AuditConfig
}

// Load reads the environment once and returns the resulting Config.
// Credentials are not validated here; call ValidateCredentials.
func Load() *Config {
	homeDir, _ := os.UserHomeDir()
	bridgeDir := filepath.Join(homeDir, ".jira-bridge")

	cfg := &Config{
		BaseURL:    strings.TrimRight(strings.TrimSpace(os.Getenv("JIRA_BASE_URL")), "/"),
		Username:   strings.TrimSpace(os.Getenv("JIRA_EMAIL")),
		APIToken:   strings.TrimSpace(os.Getenv("JIRA_API_TOKEN")),
		ListenAddr: "127.0.0.1",
		ListenPort: "8765",
		LogLevel:   "info",
		Audit: AuditConfig{
			Enabled: true,
			DBPath:  filepath.Join(bridgeDir, "audit.db"),
		},
	}

	if addr := os.Getenv("JIRA_BRIDGE_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.ListenPort = port
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if os.Getenv("JIRA_BRIDGE_NO_AUDIT") != "" {
		cfg.Audit.Enabled = false
	}

	return cfg
}

// ValidateCredentials reports the first missing credential field. Every /rpc
// call must fail server-side while this returns non-nil, without contacting
// the upstream tracker.
func (c *Config) ValidateCredentials() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("missing JIRA_BASE_URL")
	case c.Username == "":
		return fmt.Errorf("missing JIRA_EMAIL")
	case c.APIToken == "":
		return fmt.Errorf("missing JIRA_API_TOKEN")
	}
	return nil
}

// HTTPAddr returns the host:port the HTTP transport binds to.
func (c *Config) HTTPAddr() string {
	return net.JoinHostPort(c.ListenAddr, c.ListenPort)
}

func (c *Config) EnsureDirectories() error {
	if !c.Audit.Enabled {
		return nil
	}
	return os.MkdirAll(filepath.Dir(c.Audit.DBPath), 0700)
}
