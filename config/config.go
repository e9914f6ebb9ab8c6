// Package config provides configuration loading and management for
// courseops.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete courseops configuration
type Config struct {
	Gradebook GradebookConfig `yaml:"gradebook"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Org       OrgConfig       `yaml:"org"`
	Render    RenderConfig    `yaml:"render"`
}

// GradebookConfig configures the gradebook service connection
type GradebookConfig struct {
	// Server is the gradebook server address, with or without scheme
	Server string `yaml:"server"`
	// CourseID is the course identifier used in resource paths
	CourseID string `yaml:"course_id"`
	// ApplicationKey and ApplicationSecret are the client-credentials
	// grant service account
	ApplicationKey    string `yaml:"application_key"`
	ApplicationSecret string `yaml:"application_secret"`
}

// WorkspaceConfig configures the chat workspace connection
type WorkspaceConfig struct {
	// Token is the bearer API token; TokenFile, if set, takes
	// precedence and names a file whose first line is the token
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"`
	// BaseURL overrides the workspace API root (default: the public
	// API endpoint)
	BaseURL string `yaml:"base_url"`
	// SleepTime is the pause inserted between channel-setup calls
	SleepTime time.Duration `yaml:"sleep_time"`
}

// OrgConfig configures the code-hosting organization connection
type OrgConfig struct {
	// Name is the organization account name
	Name string `yaml:"name"`
	// Token is the personal access token; TokenFile, if set, takes
	// precedence and names a file whose first line is the token
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"`
	// BaseURL overrides the API root (default: the public API endpoint)
	BaseURL string `yaml:"base_url"`
}

// RenderConfig configures report flattening defaults
type RenderConfig struct {
	// KeyValueSeparator joins a key to its value in flattened reports
	KeyValueSeparator string `yaml:"key_value_separator"`
	// ItemSeparator precedes each entry in flattened reports
	ItemSeparator string `yaml:"item_separator"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Workspace: WorkspaceConfig{
			SleepTime: time.Second,
		},
		Render: RenderConfig{
			KeyValueSeparator: ": ",
			ItemSeparator:     "\n",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Gradebook.Server != "" {
		if c.Gradebook.CourseID == "" {
			return fmt.Errorf("gradebook.course_id is required when gradebook.server is set")
		}
		if c.Gradebook.ApplicationKey == "" || c.Gradebook.ApplicationSecret == "" {
			return fmt.Errorf("gradebook.application_key and gradebook.application_secret are required when gradebook.server is set")
		}
	}
	if c.Workspace.SleepTime < 0 {
		return fmt.Errorf("workspace.sleep_time must not be negative")
	}
	if c.Org.Name == "" && (c.Org.Token != "" || c.Org.TokenFile != "") {
		return fmt.Errorf("org.name is required when an org token is set")
	}
	return nil
}

// WorkspaceToken resolves the workspace API token, reading the first
// line of Workspace.TokenFile when one is named.
func (c *Config) WorkspaceToken() (string, error) {
	return resolveToken(c.Workspace.Token, c.Workspace.TokenFile)
}

// OrgToken resolves the organization access token, reading the first
// line of Org.TokenFile when one is named.
func (c *Config) OrgToken() (string, error) {
	return resolveToken(c.Org.Token, c.Org.TokenFile)
}

// resolveToken returns the literal token unless a token file is named,
// in which case the file's first line wins.
func resolveToken(token, tokenFile string) (string, error) {
	if tokenFile == "" {
		return token, nil
	}

	f, err := os.Open(tokenFile)
	if err != nil {
		return "", fmt.Errorf("failed to open token file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("failed to read token file: %w", err)
		}
		return "", fmt.Errorf("token file %s is empty", tokenFile)
	}
	return scanner.Text(), nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Gradebook
	if other.Gradebook.Server != "" {
		c.Gradebook.Server = other.Gradebook.Server
	}
	if other.Gradebook.CourseID != "" {
		c.Gradebook.CourseID = other.Gradebook.CourseID
	}
	if other.Gradebook.ApplicationKey != "" {
		c.Gradebook.ApplicationKey = other.Gradebook.ApplicationKey
	}
	if other.Gradebook.ApplicationSecret != "" {
		c.Gradebook.ApplicationSecret = other.Gradebook.ApplicationSecret
	}

	// Workspace
	if other.Workspace.Token != "" {
		c.Workspace.Token = other.Workspace.Token
	}
	if other.Workspace.TokenFile != "" {
		c.Workspace.TokenFile = other.Workspace.TokenFile
	}
	if other.Workspace.BaseURL != "" {
		c.Workspace.BaseURL = other.Workspace.BaseURL
	}
	if other.Workspace.SleepTime != 0 {
		c.Workspace.SleepTime = other.Workspace.SleepTime
	}

	// Org
	if other.Org.Name != "" {
		c.Org.Name = other.Org.Name
	}
	if other.Org.Token != "" {
		c.Org.Token = other.Org.Token
	}
	if other.Org.TokenFile != "" {
		c.Org.TokenFile = other.Org.TokenFile
	}
	if other.Org.BaseURL != "" {
		c.Org.BaseURL = other.Org.BaseURL
	}

	// Render
	if other.Render.KeyValueSeparator != "" {
		c.Render.KeyValueSeparator = other.Render.KeyValueSeparator
	}
	if other.Render.ItemSeparator != "" {
		c.Render.ItemSeparator = other.Render.ItemSeparator
	}
}
