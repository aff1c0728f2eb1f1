package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"enteliwatch/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Points    PointsConfig    `mapstructure:"points"`
	Trend     TrendConfig     `mapstructure:"trend"`
	Server    ServerConfig    `mapstructure:"server"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Display   DisplayConfig   `mapstructure:"display"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// GatewayConfig covers EnteliWeb cloud gateway connectivity.
type GatewayConfig struct {
	Host           string        `mapstructure:"host"`
	Site           string        `mapstructure:"site"`
	Device         string        `mapstructure:"device"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// PointsConfig maps dashboard fields onto BACnet object references.
type PointsConfig struct {
	Temperature      string `mapstructure:"temperature"`
	ZoneSetpoint     string `mapstructure:"zone_setpoint"`
	HeatingSetpoint  string `mapstructure:"heating_setpoint"`
	CoolingSetpoint  string `mapstructure:"cooling_setpoint"`
	SystemMode       string `mapstructure:"system_mode"`
	PeakSavings      string `mapstructure:"peak_savings"`
	FanStatus        string `mapstructure:"fan_status"`
	UseDualSetpoints bool   `mapstructure:"use_dual_setpoints"`
	TrendLogInstance int    `mapstructure:"trend_log_instance"`
}

// TrendConfig tunes the trend pipeline.
type TrendConfig struct {
	ExpectedInterval time.Duration `mapstructure:"expected_interval"`
	MaxGapSamples    int           `mapstructure:"max_gap_samples"`
	MaxPoints        int           `mapstructure:"max_points"`
}

// ServerConfig governs the HTTP surface.
type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SchedulerConfig governs snapshot polling cadence.
type SchedulerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// AlertingConfig defines comfort-band thresholds and routing.
type AlertingConfig struct {
	Enabled    bool           `mapstructure:"enabled"`
	ComfortMin float64        `mapstructure:"comfort_min"`
	ComfortMax float64        `mapstructure:"comfort_max"`
	Cooldown   time.Duration  `mapstructure:"cooldown"`
	Channels   []string       `mapstructure:"channels"`
	Telegram   TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes Telegram alert delivery.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// DisplayConfig customises dashboard presentation.
type DisplayConfig struct {
	SiteName       string `mapstructure:"site_name"`
	DeviceName     string `mapstructure:"device_name"`
	CompanyName    string `mapstructure:"company_name"`
	LogoURL        string `mapstructure:"logo_url"`
	DashboardTitle string `mapstructure:"dashboard_title"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ENTELIWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "enteliwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("gateway.request_timeout", "30s")
	v.SetDefault("gateway.user_agent", "enteliwatch/1.0")

	v.SetDefault("points.temperature", "analog-input,301001")
	v.SetDefault("points.zone_setpoint", "analog-value,1")
	v.SetDefault("points.heating_setpoint", "analog-value,3")
	v.SetDefault("points.cooling_setpoint", "analog-value,2")
	v.SetDefault("points.system_mode", "multi-state-value,2")
	v.SetDefault("points.peak_savings", "binary-value,2025")
	v.SetDefault("points.fan_status", "binary-output,1")
	v.SetDefault("points.use_dual_setpoints", false)
	v.SetDefault("points.trend_log_instance", 27)

	v.SetDefault("trend.expected_interval", "5m")
	v.SetDefault("trend.max_gap_samples", 48)
	v.SetDefault("trend.max_points", 300)

	v.SetDefault("server.listen_addr", ":8000")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.interval", "5m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x656e7477))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.comfort_min", 65.0)
	v.SetDefault("alerting.comfort_max", 80.0)
	v.SetDefault("alerting.cooldown", "30m")
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("display.company_name", "Stasis Energy Group")
	v.SetDefault("display.dashboard_title", "Thermal Energy Storage Dashboard")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Gateway.Host == "" {
		return fmt.Errorf("gateway.host is required")
	}
	if c.Gateway.Site == "" {
		return fmt.Errorf("gateway.site is required")
	}
	if c.Gateway.Device == "" {
		return fmt.Errorf("gateway.device is required")
	}
	if c.Trend.ExpectedInterval <= 0 {
		return fmt.Errorf("trend.expected_interval must be greater than zero")
	}
	if c.Trend.MaxPoints <= 0 {
		return fmt.Errorf("trend.max_points must be greater than zero")
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Alerting.Enabled && c.Alerting.ComfortMin >= c.Alerting.ComfortMax {
		return fmt.Errorf("alerting.comfort_min must be below alerting.comfort_max")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// SiteDisplayName returns the configured display name, falling back to
// the raw site identifier.
func (c *Config) SiteDisplayName() string {
	if c.Display.SiteName != "" {
		return c.Display.SiteName
	}
	return c.Gateway.Site
}

// DeviceDisplayName returns the configured device label, or empty to
// let callers substitute the live object-name.
func (c *Config) DeviceDisplayName() string {
	return c.Display.DeviceName
}
