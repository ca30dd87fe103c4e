package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	Environment string
	DBDSN       string
	Storage     string
	HTTPAddr    string
	CORSOrigins []string
	Location    *time.Location

	GenerationHorizon time.Duration
	ExpansionInterval time.Duration
	ReminderLead      time.Duration
	LedgerDebitPolicy string
	PublicSlotsLimit  int
	MigrationsAuto    bool

	TelegramToken   string
	SendGridAPIKey  string
	NotifyFromEmail string
	NotifyTimeout   time.Duration
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return FromEnv(os.Getenv)
}

// FromEnv собирает конфиг из произвольного источника переменных.
func FromEnv(getenv func(string) string) (*Config, error) {
	p := parser{getenv: getenv}

	cfg := &Config{
		Environment:       p.str("ENV", "development"),
		DBDSN:             p.str("DB_DSN", ""),
		Storage:           strings.ToLower(p.str("STORAGE", StoragePostgres)),
		HTTPAddr:          p.str("HTTP_ADDR", ":8080"),
		CORSOrigins:       p.list("CORS_ALLOWED_ORIGINS", "*"),
		GenerationHorizon: time.Duration(p.int("GENERATION_HORIZON_DAYS", 28)) * 24 * time.Hour,
		ExpansionInterval: p.duration("EXPANSION_INTERVAL", 24*time.Hour),
		ReminderLead:      p.duration("REMINDER_LEAD", 24*time.Hour),
		LedgerDebitPolicy: p.str("LEDGER_DEBIT_POLICY", "earliest_expiry"),
		PublicSlotsLimit:  p.int("PUBLIC_SLOTS_LIMIT", 20),
		MigrationsAuto:    p.bool("MIGRATIONS_AUTO", true),
		TelegramToken:     p.str("TELEGRAM_TOKEN", ""),
		SendGridAPIKey:    p.str("SENDGRID_API_KEY", ""),
		NotifyFromEmail:   p.str("NOTIFY_FROM_EMAIL", ""),
		NotifyTimeout:     p.duration("NOTIFY_TIMEOUT", 10*time.Second),
	}

	tz := p.str("TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("TIMEZONE: %v", err))
	}
	cfg.Location = loc

	switch cfg.Storage {
	case StoragePostgres:
		if cfg.DBDSN == "" {
			p.errs = append(p.errs, "DB_DSN is required but not set")
		}
	case StorageMemory:
	default:
		p.errs = append(p.errs, fmt.Sprintf("STORAGE: unknown value %q", cfg.Storage))
	}

	if cfg.GenerationHorizon <= 0 {
		p.errs = append(p.errs, "GENERATION_HORIZON_DAYS must be positive")
	}
	if cfg.ExpansionInterval <= 0 {
		p.errs = append(p.errs, "EXPANSION_INTERVAL must be positive")
	}
	if cfg.PublicSlotsLimit < 0 {
		p.errs = append(p.errs, "PUBLIC_SLOTS_LIMIT cannot be negative")
	}
	if cfg.SendGridAPIKey != "" && cfg.NotifyFromEmail == "" {
		p.errs = append(p.errs, "NOTIFY_FROM_EMAIL is required when SENDGRID_API_KEY is set")
	}

	if len(p.errs) > 0 {
		return nil, fmt.Errorf("invalid config: %s", strings.Join(p.errs, "; "))
	}
	return cfg, nil
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}

// IsProduction включает JSON-логи
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

type parser struct {
	getenv func(string) string
	errs   []string
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

// list разбирает значения через запятую
func (p *parser) list(key, def string) []string {
	var out []string
	for _, v := range strings.Split(p.str(key, def), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (p *parser) int(key string, def int) int {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("%s: %q is not a number", key, v))
		return def
	}
	return n
}

func (p *parser) bool(key string, def bool) bool {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("%s: %q is not a boolean", key, v))
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("%s: %q is not a duration", key, v))
		return def
	}
	return d
}
