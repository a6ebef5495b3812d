package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	Parser        Parser        `mapstructure:"parser"`
	Filter        Filter        `mapstructure:"filter"`
	Export        Export        `mapstructure:"export"`
	Proxy         Proxy         `mapstructure:"proxy"`
	Telegram      Telegram      `mapstructure:"telegram"`
	Colly         Colly         `mapstructure:"colly"`
	Browser       Browser       `mapstructure:"browser"`
	Storage       Storage       `mapstructure:"storage"`
	Elasticsearch Elasticsearch `mapstructure:"elasticsearch"`
	Logger        Logger        `mapstructure:"logger"`
	Metrics       Metrics       `mapstructure:"metrics"`
}

// Parser drives pagination and the outer run loop.
type Parser struct {
	URLs              []string      `mapstructure:"urls"`
	BaseURL           string        `mapstructure:"base_url"`
	Count             int           `mapstructure:"count"`
	PauseBetweenLinks time.Duration `mapstructure:"pause_between_links"`
	PauseGeneral      time.Duration `mapstructure:"pause_general"`
	RestartDelay      time.Duration `mapstructure:"restart_delay"`
	MaxCountOfRetry   int           `mapstructure:"max_count_of_retry"`
	Backoff           time.Duration `mapstructure:"backoff"`
	ParseViews        bool          `mapstructure:"parse_views"`
	OneTimeStart      bool          `mapstructure:"one_time_start"`
}

// Filter is immutable for the duration of a run.
type Filter struct {
	MinPrice          int      `mapstructure:"min_price"`
	MaxPrice          int      `mapstructure:"max_price"`
	KeysWordWhiteList []string `mapstructure:"keys_word_white_list"`
	KeysWordBlackList []string `mapstructure:"keys_word_black_list"`
	Geo               string   `mapstructure:"geo"`
	SellerBlackList   []string `mapstructure:"seller_black_list"`
	// MaxAge is in seconds; zero disables the recency filter.
	MaxAge          int  `mapstructure:"max_age"`
	IgnoreReserv    bool `mapstructure:"ignore_reserv"`
	IgnorePromotion bool `mapstructure:"ignore_promotion"`
}

type Export struct {
	SaveXLSX       bool   `mapstructure:"save_xlsx"`
	OneFileForLink bool   `mapstructure:"one_file_for_link"`
	ResultDir      string `mapstructure:"result_dir"`
	Elasticsearch  bool   `mapstructure:"elasticsearch"`
}

type Proxy struct {
	// ProxyString is host:port, optionally prefixed with user:pass@.
	ProxyString    string `mapstructure:"proxy_string"`
	ProxyChangeURL string `mapstructure:"proxy_change_url"`
}

type Telegram struct {
	Token  string `mapstructure:"token"`
	ChatID string `mapstructure:"chat_id"`
}

type Colly struct {
	UserAgent      string        `mapstructure:"user_agent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type Browser struct {
	Engine       string        `mapstructure:"engine"`
	Bin          string        `mapstructure:"bin"`
	Headless     bool          `mapstructure:"headless"`
	NoSandbox    bool          `mapstructure:"no_sandbox"`
	TargetURL    string        `mapstructure:"target_url"`
	WaitAfter    time.Duration `mapstructure:"wait_after"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MintAttempts int           `mapstructure:"mint_attempts"`
	MintDelay    time.Duration `mapstructure:"mint_delay"`
}

type Storage struct {
	CookiesFile string `mapstructure:"cookies_file"`
	// Dedup selects the seen-record backend: sqlite, postgres or redis.
	Dedup       string `mapstructure:"dedup"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
	RedisAddr   string `mapstructure:"redis_addr"`
	RedisDB     int    `mapstructure:"redis_db"`
}

type Elasticsearch struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Address  string `mapstructure:"address"`
	Index    string `mapstructure:"index"`
}

type Logger struct {
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"`
	Development bool     `mapstructure:"development"`
	OutputPaths []string `mapstructure:"output_paths"`
}

type Metrics struct {
	Addr string `mapstructure:"addr"`
}

// UseProxy reports whether both the proxy address and the rotation endpoint are set.
func (c *Config) UseProxy() bool {
	return c.Proxy.ProxyString != "" && c.Proxy.ProxyChangeURL != ""
}

// ProxyURL is the proxy string in URL form, or "" for direct connections.
func (c *Config) ProxyURL() string {
	if !c.UseProxy() {
		return ""
	}
	if strings.Contains(c.Proxy.ProxyString, "://") {
		return c.Proxy.ProxyString
	}
	return "http://" + c.Proxy.ProxyString
}

// NotifyEnabled reports whether telegram credentials are present.
func (c *Config) NotifyEnabled() bool {
	return c.Telegram.Token != "" && c.Telegram.ChatID != ""
}

func (c *Config) Validate() error {
	var errs []error
	if len(c.Parser.URLs) == 0 {
		errs = append(errs, errors.New("parser.urls is empty"))
	}
	for _, u := range c.Parser.URLs {
		if _, err := url.ParseRequestURI(u); err != nil {
			errs = append(errs, fmt.Errorf("parser.urls: %q: %w", u, err))
		}
	}
	if c.Parser.Count <= 0 {
		errs = append(errs, errors.New("parser.count must be positive"))
	}
	if c.Parser.MaxCountOfRetry <= 0 {
		errs = append(errs, errors.New("parser.max_count_of_retry must be positive"))
	}
	if c.Filter.MaxPrice > 0 && c.Filter.MinPrice > c.Filter.MaxPrice {
		errs = append(errs, fmt.Errorf("filter.min_price %d exceeds max_price %d", c.Filter.MinPrice, c.Filter.MaxPrice))
	}
	switch c.Storage.Dedup {
	case "sqlite", "postgres", "redis":
	default:
		errs = append(errs, fmt.Errorf("storage.dedup: unknown backend %q", c.Storage.Dedup))
	}
	switch c.Browser.Engine {
	case "rod", "chromedp":
	default:
		errs = append(errs, fmt.Errorf("browser.engine: unknown engine %q", c.Browser.Engine))
	}
	return errors.Join(errs...)
}

// Masked returns a copy safe to log: credentials are replaced with asterisks.
func (c Config) Masked() Config {
	c.Telegram.Token = mask(c.Telegram.Token)
	c.Elasticsearch.Password = mask(c.Elasticsearch.Password)
	if at := strings.LastIndex(c.Proxy.ProxyString, "@"); at >= 0 {
		c.Proxy.ProxyString = "***" + c.Proxy.ProxyString[at:]
	}
	if c.Proxy.ProxyChangeURL != "" {
		c.Proxy.ProxyChangeURL = mask(c.Proxy.ProxyChangeURL)
	}
	if c.Storage.PostgresDSN != "" {
		c.Storage.PostgresDSN = mask(c.Storage.PostgresDSN)
	}
	return c
}

func mask(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
