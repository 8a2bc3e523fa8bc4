package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "ARTICLE_DESK_CONFIG"
	dataDirEnv        = "DATA_DIR"
	httpAddrEnv       = "HTTP_ADDR"
	logLevelEnv       = "LOG_LEVEL"
	databaseDSNEnv    = "DATABASE_DSN"
	openAIKeyEnv      = "OPENAI_API_KEY"
	chatGPTModelEnv   = "CHATGPT_MODEL"
	emailUserEnv      = "EMAIL_USER"
	emailPassEnv      = "EMAIL_PASS"
	sheetNameEnv      = "GOOGLE_SHEET_NAME"
	sheetsCredsEnv    = "GOOGLE_CREDENTIALS_FILE"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	metricsEnabledEnv = "METRICS_ENABLED"
	mirrorKindEnv     = "MIRROR"
)

// Mirror kinds accepted by storage.mirror.
const (
	MirrorNone     = "none"
	MirrorSheets   = "sheets"
	MirrorPostgres = "postgres"
)

// Config holds high-level settings required across the application.
type Config struct {
	Storage       StorageConfig      `yaml:"storage"`
	Database      DatabaseConfig     `yaml:"database"`
	Email         EmailConfig        `yaml:"email"`
	Sheets        SheetsConfig       `yaml:"sheets"`
	ChatGPT       ChatGPTConfig      `yaml:"chatgpt"`
	Scraper       ScraperConfig      `yaml:"scraper"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	HTTP          HTTPConfig         `yaml:"http"`
	Metrics       MetricsConfig      `yaml:"metrics"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// StorageConfig locates the local documents and picks the remote mirror
// (none, sheets or postgres).
type StorageConfig struct {
	DataDir       string        `yaml:"dataDir"`
	Mirror        string        `yaml:"mirror"`
	MirrorTimeout time.Duration `yaml:"mirrorTimeout"`
	// MirrorRetry is the minimum gap between attach attempts while the
	// remote mirror is unreachable.
	MirrorRetry time.Duration `yaml:"mirrorRetry"`
}

// DatabaseConfig describes Postgres connection details for the mirror.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// EmailConfig describes the IMAP inbox scanned for links.
type EmailConfig struct {
	Server      string `yaml:"server"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	Mailbox     string `yaml:"mailbox"`
	ScanLimit   int    `yaml:"scanLimit"`
	AutoQualify bool   `yaml:"autoQualify"`
}

// SheetsConfig points at the intake spreadsheet, by id or full URL.
type SheetsConfig struct {
	Sheet           string `yaml:"sheet"`
	CredentialsFile string `yaml:"credentialsFile"`
	AutoQualify     bool   `yaml:"autoQualify"`
}

// ChatGPTConfig defines how to contact the ChatGPT API.
type ChatGPTConfig struct {
	Endpoint      string        `yaml:"endpoint"`
	Model         string        `yaml:"model"`
	FallbackModel string        `yaml:"fallbackModel"`
	APIKey        string        `yaml:"apiKey"`
	SystemPrompt  string        `yaml:"systemPrompt"`
	Timeout       time.Duration `yaml:"timeout"`
}

// ScraperConfig tunes article fetching.
type ScraperConfig struct {
	MaxChars      int  `yaml:"maxChars"`
	InsecureRetry bool `yaml:"insecureRetry"`
}

// PipelineConfig bounds ingestion cycles.
type PipelineConfig struct {
	MaxPerCycle    int           `yaml:"maxPerCycle"`
	CycleDeadline  time.Duration `yaml:"cycleDeadline"`
	ItemBudget     time.Duration `yaml:"itemBudget"`
	IgnorePatterns []string      `yaml:"ignorePatterns"`

	// MaxTimeoutStrikes blacklists a URL after that many timeouts; 0 disables.
	MaxTimeoutStrikes int `yaml:"maxTimeoutStrikes"`
}

// SchedulerConfig defines when passive syncs run.
type SchedulerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Cooldown time.Duration `yaml:"cooldown"`
}

// HTTPConfig configures the reviewer API listener.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// MetricsConfig toggles Prometheus collection.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// LoggingConfig selects level and handler format (text or json).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			// Keys absent from the file keep their defaults.
			fileCfg := defaultConfig()
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = fileCfg
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.normalize()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	envString(dataDirEnv, &c.Storage.DataDir)
	envString(mirrorKindEnv, &c.Storage.Mirror)
	envString(httpAddrEnv, &c.HTTP.Addr)
	envString(logLevelEnv, &c.Logging.Level)
	envString(databaseDSNEnv, &c.Database.DSN)
	envString(openAIKeyEnv, &c.ChatGPT.APIKey)
	envString(chatGPTModelEnv, &c.ChatGPT.Model)
	envString(emailUserEnv, &c.Email.Username)
	envString(emailPassEnv, &c.Email.Password)
	envString(sheetNameEnv, &c.Sheets.Sheet)
	envString(sheetsCredsEnv, &c.Sheets.CredentialsFile)
	envString(telegramTokenEnv, &c.Notifications.Telegram.BotToken)
	envString(telegramChatIDEnv, &c.Notifications.Telegram.ChatID)

	if v := os.Getenv(metricsEnabledEnv); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Metrics.Enabled = enabled
		} else {
			log.Printf("config: ignoring %s=%q: %v", metricsEnabledEnv, v, err)
		}
	}
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// normalize repairs values a file or the environment may have broken.
func (c *Config) normalize() {
	switch c.Storage.Mirror {
	case MirrorNone, MirrorSheets, MirrorPostgres:
	case "":
		c.Storage.Mirror = MirrorNone
	default:
		log.Printf("config: unknown mirror %q, running without one", c.Storage.Mirror)
		c.Storage.Mirror = MirrorNone
	}
	if c.Pipeline.MaxTimeoutStrikes < 0 {
		c.Pipeline.MaxTimeoutStrikes = 0
	}
}

func defaultConfig() Config {
	return Config{
		Storage: StorageConfig{DataDir: "data", Mirror: MirrorNone, MirrorTimeout: 15 * time.Second, MirrorRetry: time.Minute},
		Email: EmailConfig{
			Server:      "imap.gmail.com:993",
			Mailbox:     "INBOX",
			ScanLimit:   50,
			AutoQualify: true,
		},
		Sheets: SheetsConfig{CredentialsFile: "credentials.json", AutoQualify: true},
		ChatGPT: ChatGPTConfig{
			Endpoint:      "https://api.openai.com/v1/chat/completions",
			Model:         "gpt-4o",
			FallbackModel: "gpt-4o-mini",
			Timeout:       60 * time.Second,
		},
		Scraper: ScraperConfig{MaxChars: 15000, InsecureRetry: true},
		Pipeline: PipelineConfig{
			MaxPerCycle:       10,
			CycleDeadline:     15 * time.Minute,
			ItemBudget:        60 * time.Second,
			MaxTimeoutStrikes: 3,
		},
		Scheduler: SchedulerConfig{Enabled: true, Interval: 5 * time.Minute, Cooldown: 300 * time.Second},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			RequestTimeout:  3 * time.Minute,
			ShutdownTimeout: 20 * time.Second,
		},
		Metrics: MetricsConfig{Enabled: true},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}
