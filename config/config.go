package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"phone_lister/models"
)

type Config struct {
	Browser   BrowserConfig
	Mail      MailConfig
	LLM       LLMConfig
	WorkerCap int
	// JobDeadline bounds one job end to end; exceeding it cancels every
	// state machine the job still owns.
	JobDeadline time.Duration
	TFAWait     time.Duration
	TFAAttempts int
	CookieDir   string
	JobsDBPath  string // optional SQLite job journal
	DatabaseURL string // optional Postgres archive
	MetricsAddr string
	LogPath     string
	Platforms   map[string]*models.PlatformDescriptor
}

type BrowserConfig struct {
	BinaryPath string
	RemoteURL  string
	Headless   bool
	UserAgent  string
	Timezone   string
}

type MailConfig struct {
	CredentialsPath string
	TokenPath       string
	Recipient       string
}

type LLMConfig struct {
	APIURL string
	APIKey string
	Model  string
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Browser: BrowserConfig{
			BinaryPath: os.Getenv("BROWSER_PATH"),
			RemoteURL:  os.Getenv("REMOTE_DRIVER_URL"),
			Headless:   getEnv("HEADLESS", "true") == "true",
			UserAgent:  getEnv("BROWSER_USER_AGENT", defaultUserAgent),
			Timezone:   getEnv("BROWSER_TIMEZONE", "America/New_York"),
		},
		Mail: MailConfig{
			CredentialsPath: getEnv("GMAIL_CREDENTIALS_PATH", "credentials.json"),
			TokenPath:       getEnv("GMAIL_TOKEN_PATH", "token.json"),
			Recipient:       os.Getenv("GMAIL_RECIPIENT"),
		},
		LLM: LLMConfig{
			APIURL: os.Getenv("LLM_API_URL"),
			APIKey: os.Getenv("LLM_API_KEY"),
			Model:  getEnv("LLM_MODEL", "gpt-4o-mini"),
		},
		WorkerCap:   getEnvInt("WORKER_CAP", 4),
		JobDeadline: getEnvDuration("JOB_DEADLINE", 30*time.Minute),
		TFAWait:     getEnvDuration("TFA_WAIT_TIME", 60*time.Second),
		TFAAttempts: getEnvInt("TFA_MAX_ATTEMPTS", 3),
		CookieDir:   getEnv("COOKIE_DIR", "cookies"),
		JobsDBPath:  os.Getenv("JOBS_DB_PATH"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		MetricsAddr: os.Getenv("METRICS_ADDR"),
		LogPath:     getEnv("LOG_PATH", "poster.log"),
		Platforms:   make(map[string]*models.PlatformDescriptor),
	}

	if err := cfg.loadPlatforms("config/platforms"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadPlatforms(configDir string) error {
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(configDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var desc models.PlatformDescriptor
		if err := yaml.Unmarshal(data, &desc); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		c.Platforms[desc.ID] = &desc
	}

	return nil
}

type Credentials struct {
	Username string
	Password string
}

// CredentialsFor reads <PLATFORM>_USERNAME / <PLATFORM>_PASSWORD. Missing
// credentials are fatal for the platform group, not the process.
func (c *Config) CredentialsFor(platform string) (Credentials, error) {
	key := strings.ToUpper(strings.ReplaceAll(platform, "-", "_"))
	creds := Credentials{
		Username: os.Getenv(key + "_USERNAME"),
		Password: os.Getenv(key + "_PASSWORD"),
	}
	if creds.Username == "" || creds.Password == "" {
		return creds, fmt.Errorf("%w: %s_USERNAME / %s_PASSWORD", models.ErrConfigurationMissing, key, key)
	}
	return creds, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}
