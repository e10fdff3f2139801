package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// ClickHouseConfig содержит настройки подключения к ClickHouse.
// Protocol: "native" или "http".
type ClickHouseConfig struct {
	Address  string `yaml:"Address"`
	Username string `yaml:"Username"`
	Password string `yaml:"Password"`
	Database string `yaml:"Database"`
	Table    string `yaml:"Table"`
	Protocol string `yaml:"Protocol"`
}

// IngestConfig — параметры пакетной загрузки каталога техжурнала.
type IngestConfig struct {
	Directory   string `yaml:"Directory"`
	FilePattern string `yaml:"FilePattern"`
	Workers     int    `yaml:"Workers"`
	BatchSize   int    `yaml:"BatchSize"`
}

// WatchConfig — параметры режима непрерывного слежения за каталогами.
type WatchConfig struct {
	LogDirectoryMap  map[string]string `yaml:"LogDirectoryMap"`
	FilePattern      string            `yaml:"FilePattern"`
	BatchSize        int               `yaml:"BatchSize"`
	BatchInterval    int               `yaml:"BatchInterval"` // секунды
	ProcessedStorage string            `yaml:"ProcessedStorage"` // "file" или "redis"
	ProcessedFile    string            `yaml:"ProcessedFile"`
}

// RedisConfig содержит настройки подключения к Redis.
type RedisConfig struct {
	Host     string `yaml:"Host"`
	Port     int    `yaml:"Port"`
	DB       int    `yaml:"DB"`
	Password string `yaml:"Password"`
}

// AnalyzeConfig — параметры часового прогона анализа блокировок.
type AnalyzeConfig struct {
	Days int `yaml:"Days"`
}

// TelegramConfig — бот и чат для алертов.
type TelegramConfig struct {
	Token  string `yaml:"Token"`
	ChatID string `yaml:"ChatID"`
}

// JiraConfig — подключение к Jira REST API v3.
type JiraConfig struct {
	URL        string `yaml:"URL"`
	Username   string `yaml:"Username"`
	APIToken   string `yaml:"APIToken"`
	ProjectKey string `yaml:"ProjectKey"`
}

// RedmineConfig — подключение к Redmine REST API.
type RedmineConfig struct {
	URL       string `yaml:"URL"`
	APIKey    string `yaml:"APIKey"`
	ProjectID string `yaml:"ProjectID"`
}

// ITSMConfig — выбор и настройки тикет-системы.
// Type: "jira", "redmine" или "none".
type ITSMConfig struct {
	Type    string        `yaml:"Type"`
	Jira    JiraConfig    `yaml:"Jira"`
	Redmine RedmineConfig `yaml:"Redmine"`
}

// PostgresConfig — БД мониторинга для прогноза диска.
type PostgresConfig struct {
	Host     string `yaml:"Host"`
	Port     int    `yaml:"Port"`
	Database string `yaml:"Database"`
	User     string `yaml:"User"`
	Password string `yaml:"Password"`
}

// ForecastConfig — параметры прогноза заполнения диска.
type ForecastConfig struct {
	HistoryDays int     `yaml:"HistoryDays"`
	DiskLimitGB float64 `yaml:"DiskLimitGB"`
}

// WebhookConfig — HTTP-приёмник алертов Alertmanager.
type WebhookConfig struct {
	Port int `yaml:"Port"`
}

// LoggingConfig — вывод логов; при пустом LogFile пишем только в консоль.
type LoggingConfig struct {
	LogFile string `yaml:"LogFile"`
}

// Config описывает основные настройки сервиса.
type Config struct {
	ClickHouse ClickHouseConfig `yaml:"ClickHouse"`
	Ingest     IngestConfig     `yaml:"Ingest"`
	Watch      WatchConfig      `yaml:"Watch"`
	Redis      RedisConfig      `yaml:"Redis"`
	Analyze    AnalyzeConfig    `yaml:"Analyze"`
	Telegram   TelegramConfig   `yaml:"Telegram"`
	ITSM       ITSMConfig       `yaml:"ITSM"`
	Postgres   PostgresConfig   `yaml:"Postgres"`
	Forecast   ForecastConfig   `yaml:"Forecast"`
	Webhook    WebhookConfig    `yaml:"Webhook"`
	Logging    LoggingConfig    `yaml:"Logging"`
}

// LoadConfig загружает конфигурацию из YAML-файла.
// Поддерживает файлы с BOM, терпит табуляции, после разбора
// накладывает значения из переменных окружения (секреты).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	// Удаляем UTF-8 BOM, если есть
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	// Заменяем табуляции на два пробела, чтобы YAML-парсер не жаловался
	data = bytes.ReplaceAll(data, []byte("\t"), []byte("  "))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("разбор %s: %w", path, err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Ingest.FilePattern == "" {
		c.Ingest.FilePattern = "*.log"
	}
	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = 4
	}
	if c.Ingest.BatchSize <= 0 {
		c.Ingest.BatchSize = 10000
	}
	if c.Watch.FilePattern == "" {
		c.Watch.FilePattern = "*.log"
	}
	if c.Watch.BatchSize <= 0 {
		c.Watch.BatchSize = 10000
	}
	if c.Watch.BatchInterval <= 0 {
		c.Watch.BatchInterval = 5
	}
	if c.Watch.ProcessedFile == "" {
		c.Watch.ProcessedFile = "processed_files.json"
	}
	if c.Analyze.Days <= 0 {
		c.Analyze.Days = 7
	}
	if c.Forecast.HistoryDays <= 0 {
		c.Forecast.HistoryDays = 60
	}
	if c.Forecast.DiskLimitGB <= 0 {
		c.Forecast.DiskLimitGB = 200
	}
	if c.Webhook.Port <= 0 {
		c.Webhook.Port = 5000
	}
	if c.ClickHouse.Table == "" {
		c.ClickHouse.Table = "techlog"
	}
	if c.ITSM.Type == "" {
		c.ITSM.Type = "none"
	}
}

// applyEnv перекрывает секреты значениями из окружения,
// чтобы токены не приходилось хранить в config.yaml.
func (c *Config) applyEnv() {
	v := viper.New()
	v.AutomaticEnv()

	override := func(dst *string, key string) {
		if s := v.GetString(key); s != "" {
			*dst = s
		}
	}
	override(&c.ClickHouse.Password, "CLICKHOUSE_PASSWORD")
	override(&c.Redis.Password, "REDIS_PASSWORD")
	override(&c.Telegram.Token, "TELEGRAM_TOKEN")
	override(&c.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	override(&c.ITSM.Type, "ITSM_TYPE")
	override(&c.ITSM.Jira.URL, "JIRA_URL")
	override(&c.ITSM.Jira.Username, "JIRA_USERNAME")
	override(&c.ITSM.Jira.APIToken, "JIRA_API_TOKEN")
	override(&c.ITSM.Jira.ProjectKey, "JIRA_PROJECT_KEY")
	override(&c.ITSM.Redmine.URL, "REDMINE_URL")
	override(&c.ITSM.Redmine.APIKey, "REDMINE_API_KEY")
	override(&c.ITSM.Redmine.ProjectID, "REDMINE_PROJECT_ID")
	override(&c.Postgres.Password, "DB_PASSWORD")
}
