package config

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "LISTINGWATCH"

// Load reads the config file at path (toml, yaml or json by extension) and
// applies .env and LISTINGWATCH_* environment overrides on top of defaults.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return decode(v)
}

// ParseConfig decodes an in-memory config of the given format ("toml", "yaml", "json").
func ParseConfig(byteConfig []byte, format string) (*Config, error) {
	v := newViper()
	v.SetConfigType(format)
	if err := v.ReadConfig(bytes.NewReader(byteConfig)); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// secrets usually arrive through the environment
	_ = v.BindEnv("telegram.token", envPrefix+"_TELEGRAM_TOKEN", "TG_TOKEN")
	_ = v.BindEnv("telegram.chat_id", envPrefix+"_TELEGRAM_CHAT_ID", "TG_CHAT_ID")
	_ = v.BindEnv("storage.postgres_dsn", envPrefix+"_STORAGE_POSTGRES_DSN", "DATABASE_URL")
	_ = v.BindEnv("elasticsearch.password", envPrefix+"_ELASTICSEARCH_PASSWORD", "ELASTIC_PASSWORD")
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("parser.base_url", "https://www.avito.ru")
	v.SetDefault("parser.count", 5)
	v.SetDefault("parser.pause_between_links", "5s")
	v.SetDefault("parser.pause_general", "60s")
	v.SetDefault("parser.restart_delay", "30s")
	v.SetDefault("parser.max_count_of_retry", 5)
	v.SetDefault("parser.backoff", "1s")

	v.SetDefault("filter.min_price", 0)
	v.SetDefault("filter.max_price", 999_999_999)

	v.SetDefault("export.save_xlsx", true)
	v.SetDefault("export.result_dir", "result")

	v.SetDefault("colly.user_agent", defaultUserAgent)
	v.SetDefault("colly.request_timeout", "20s")

	v.SetDefault("browser.engine", "rod")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.target_url", "https://www.avito.ru/")
	v.SetDefault("browser.wait_after", "5s")
	v.SetDefault("browser.timeout", "60s")
	v.SetDefault("browser.mint_attempts", 3)
	v.SetDefault("browser.mint_delay", "2s")

	v.SetDefault("storage.cookies_file", "cookies.json")
	v.SetDefault("storage.dedup", "sqlite")
	v.SetDefault("storage.sqlite_path", "database.db")
	v.SetDefault("storage.redis_addr", "127.0.0.1:6379")

	v.SetDefault("elasticsearch.address", "http://127.0.0.1:9200")
	v.SetDefault("elasticsearch.index", "listingwatch-items")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "console")
	v.SetDefault("logger.output_paths", []string{"stdout", "logs/app.log"})
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
