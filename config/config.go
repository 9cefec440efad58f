package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	PostgresURL string
	DBPath      string
	LogsDir     string
	LogLevel    string
	ListenAddr  string

	Scheduler SchedulerConfig
	Webhook   WebhookConfig
	Archive   ArchiveConfig

	Sites map[string]*SiteConfig
}

type SchedulerConfig struct {
	Interval       time.Duration // scrape cadence per site
	Cron           string        // optional cron override
	MinInterval    time.Duration // floor enforced on Interval
	InterSiteDelay time.Duration
}

type WebhookConfig struct {
	URL string
	// InterventionURL is the remote-intervention link included in the
	// escalation payload, e.g. a noVNC URL for the browser host.
	InterventionURL string
}

// ArchiveConfig configures S3-compatible upload of closed daily log
// files. Disabled when Bucket is empty.
type ArchiveConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Enabled  bool   `yaml:"enabled"`
	LoginURL string `yaml:"login_url"`
	OrderURL string `yaml:"order_url"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`

	MaxPages int `yaml:"max_pages"`

	Selectors SelectorMap `yaml:"selectors"`
	Risk      RiskConfig  `yaml:"risk"`

	// MerchantAllowList controls which scraped orders are retained;
	// rows from other merchants are purged on each pass.
	MerchantAllowList []string `yaml:"merchant_allow_list"`

	OfflineSync OfflineSyncConfig `yaml:"offline_sync"`
}

type SelectorMap struct {
	UsernameField string `yaml:"username_field"`
	PasswordField string `yaml:"password_field"`
	LoginButton   string `yaml:"login_button"`
	LoggedInProbe string `yaml:"logged_in_probe"`

	ListContainer string   `yaml:"list_container"`
	Rows          []string `yaml:"rows"`
	// RowIndexTemplate is a selector with a %d placeholder, populated
	// by counting the container's direct children (tier 2 fallback).
	RowIndexTemplate string `yaml:"row_index_template"`
	PaginationNext   string `yaml:"pagination_next"`
	PendingCount     string `yaml:"pending_count"`

	DetailLink     string `yaml:"detail_link"`
	LogisticsModal string `yaml:"logistics_modal"`
}

// RiskConfig is tunable policy: phrase lists and widget selectors for
// the challenge detector. Empty lists fall back to built-in defaults.
type RiskConfig struct {
	StrongPhrases   []string `yaml:"strong_phrases"`
	WeakPhrases     []string `yaml:"weak_phrases"`
	WidgetSelectors []string `yaml:"widget_selectors"`
}

type OfflineSyncConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		PostgresURL: os.Getenv("DATABASE_URL"),
		DBPath:      getEnv("DB_PATH", "rentsync.db"),
		LogsDir:     getEnv("LOGS_DIR", "logs"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		ListenAddr:  getEnv("LISTEN_ADDR", ":8321"),
		Scheduler: SchedulerConfig{
			Interval:       getEnvDuration("SYNC_INTERVAL", 30*time.Minute),
			Cron:           os.Getenv("SYNC_CRON"),
			MinInterval:    10 * time.Minute,
			InterSiteDelay: getEnvDuration("INTER_SITE_DELAY", 5*time.Second),
		},
		Webhook: WebhookConfig{
			URL:             os.Getenv("WEBHOOK_URL"),
			InterventionURL: os.Getenv("INTERVENTION_URL"),
		},
		Archive: ArchiveConfig{
			Bucket:          os.Getenv("LOG_ARCHIVE_BUCKET"),
			Region:          getEnv("LOG_ARCHIVE_REGION", "auto"),
			Endpoint:        os.Getenv("LOG_ARCHIVE_ENDPOINT"),
			AccessKeyID:     os.Getenv("LOG_ARCHIVE_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("LOG_ARCHIVE_SECRET_ACCESS_KEY"),
		},
		Sites: make(map[string]*SiteConfig),
	}

	if cfg.Scheduler.Interval < cfg.Scheduler.MinInterval {
		cfg.Scheduler.Interval = cfg.Scheduler.MinInterval
	}

	if err := cfg.loadSiteConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadSiteConfigs() error {
	configDir := getEnv("SITES_DIR", "config/sites")
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

		var site SiteConfig
		if err := yaml.Unmarshal(data, &site); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if err := site.validate(); err != nil {
			return fmt.Errorf("site %s: %w", path, err)
		}

		c.Sites[site.ID] = &site
	}

	return nil
}

// BaseURL is the portal origin, for resolving relative links.
func (s *SiteConfig) BaseURL() string {
	u, err := url.Parse(s.OrderURL)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func (s *SiteConfig) validate() error {
	if s.ID == "" {
		return fmt.Errorf("missing id")
	}
	if s.LoginURL == "" || s.OrderURL == "" {
		return fmt.Errorf("missing login_url or order_url")
	}
	if s.Selectors.ListContainer == "" {
		return fmt.Errorf("missing selectors.list_container")
	}
	if s.MaxPages <= 0 {
		s.MaxPages = 10
	}
	if s.OfflineSync.Interval <= 0 {
		s.OfflineSync.Interval = 10 * time.Minute
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
