package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	ProjectDir    string
	ClaudeHome    string
	LogLevel      string
	LogFormat     string
	AuthTokens    []string
	CoverageOwner string
	CoverageRepo  string
	CoverageURL   string
}

// Load reads configuration from .env, the environment and any config file
// already registered on the global viper instance.
func Load() (*Config, error) {
	godotenv.Load()

	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("coverage_url", "https://api.codecov.io")
	viper.SetEnvPrefix("ctodash")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	viper.BindEnv("project_dir", "CLAUDE_PROJECT_DIR", "CTODASH_PROJECT_DIR")
	viper.BindEnv("auth_tokens", "CTODASH_AUTH_TOKENS")

	cfg := &Config{
		ProjectDir:    viper.GetString("project_dir"),
		ClaudeHome:    viper.GetString("claude_home"),
		LogLevel:      viper.GetString("log_level"),
		LogFormat:     viper.GetString("log_format"),
		AuthTokens:    splitTokens(viper.GetString("auth_tokens")),
		CoverageOwner: viper.GetString("coverage_owner"),
		CoverageRepo:  viper.GetString("coverage_repo"),
		CoverageURL:   viper.GetString("coverage_url"),
	}

	if cfg.ProjectDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		cfg.ProjectDir = wd
	}

	if cfg.ClaudeHome == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.ClaudeHome = filepath.Join(home, ".claude")
		}
	}

	if len(cfg.AuthTokens) == 0 {
		cfg.AuthTokens = readTokenFile()
	}

	return cfg, nil
}

func (c *Config) StateDir() string {
	return filepath.Join(c.ProjectDir, ".claude", "state")
}

func (c *Config) SnapshotPath() string {
	return filepath.Join(c.StateDir(), "usage-snapshots.json")
}

func (c *Config) AgentHistoryPath() string {
	return filepath.Join(c.StateDir(), "agent-tracker-history.json")
}

func (c *Config) KeyRotationPath() string {
	return filepath.Join(c.ProjectDir, ".claude", "api-key-rotation.json")
}

func (c *Config) DeputyDBPath() string {
	return filepath.Join(c.ProjectDir, ".claude", "deputy-cto.db")
}

func (c *Config) TestFailuresDBPath() string {
	return filepath.Join(c.ProjectDir, ".claude", "test-failures.db")
}

func (c *Config) VaultMappingsPath() string {
	return filepath.Join(c.ProjectDir, ".claude", "vault-mappings.json")
}

// SessionDir is where Claude stores JSONL transcripts for the project.
// The directory name is the project path with every non-alphanumeric
// rune replaced by '-'.
func (c *Config) SessionDir() string {
	return filepath.Join(c.ClaudeHome, "projects", EncodeProjectPath(c.ProjectDir))
}

func EncodeProjectPath(p string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, p)
}

func splitTokens(raw string) []string {
	var tokens []string
	for _, t := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' || r == '\n' }) {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// TokenFile is where generated dashboard tokens are stored, one per line.
func TokenFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ctodash", "tokens"), nil
}

func readTokenFile() []string {
	path, err := TokenFile()
	if err != nil {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return splitTokens(string(data))
}

// AppendToken adds token to the token file at path, creating it with
// owner-only permissions when absent.
func AppendToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	content := token + "\n"
	if existing, err := os.ReadFile(path); err == nil && len(existing) > 0 {
		content = strings.TrimRight(string(existing), "\n") + "\n" + content
	}

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}
