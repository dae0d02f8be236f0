package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	Redis         RedisConfig         `mapstructure:"redis"`
	MySQL         MySQLConfig         `mapstructure:"mysql"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Leader        LeaderConfig        `mapstructure:"leader"`
	Instance      InstanceConfig      `mapstructure:"instance"`
	Auction       AuctionConfig       `mapstructure:"auction"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Fees          FeesConfig          `mapstructure:"fees"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// RedisConfig.Enabled off runs the auction service standalone: no status
// cache, no leader election, notifications logged instead of published.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// StorageConfig selects the auction store. "memory" keeps everything in
// process and is meant for local runs.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type LeaderConfig struct {
	TTL     time.Duration `mapstructure:"ttl"`
	Enabled bool          `mapstructure:"enabled"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

type AuctionConfig struct {
	DefaultMinimumBidIncrement float64       `mapstructure:"default_minimum_bid_increment"`
	DefaultBidTimeBuffer       time.Duration `mapstructure:"default_bid_time_buffer"`
	MinBidTimeBuffer           time.Duration `mapstructure:"min_bid_time_buffer"`
	MaxBidTimeBuffer           time.Duration `mapstructure:"max_bid_time_buffer"`
	// MaxExtensions caps anti-sniping extensions per auction. 0 means unlimited.
	MaxExtensions int `mapstructure:"max_extensions"`
}

type SchedulerConfig struct {
	ActivationSpec   string        `mapstructure:"activation_spec"`
	ExpirySpec       string        `mapstructure:"expiry_spec"`
	EndingSoonSpec   string        `mapstructure:"ending_soon_spec"`
	ReconcileSpec    string        `mapstructure:"reconcile_spec"`
	EndingSoonWindow time.Duration `mapstructure:"ending_soon_window"`
}

type NotificationsConfig struct {
	Channel   string        `mapstructure:"channel"`
	QueueSize int           `mapstructure:"queue_size"`
	Workers   int           `mapstructure:"workers"`
	Timeout   time.Duration `mapstructure:"timeout"`
	History   int           `mapstructure:"history"`
}

type FeesConfig struct {
	ScheduleKey string `mapstructure:"schedule_key"`
	CacheSize   int    `mapstructure:"cache_size"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("log.level", "info")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("mysql.dsn", "auction_user:auction_pass@tcp(localhost:3306)/auction_db?parseTime=true&multiStatements=true")
	v.SetDefault("mysql.max_open_conns", 25)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("mysql.auto_migrate", true)
	v.SetDefault("storage.driver", "mysql")
	v.SetDefault("leader.ttl", 30*time.Second)
	v.SetDefault("leader.enabled", true)
	v.SetDefault("instance.id", "auction-service-1")
	v.SetDefault("auction.default_minimum_bid_increment", 500)
	v.SetDefault("auction.default_bid_time_buffer", 40*time.Second)
	v.SetDefault("auction.min_bid_time_buffer", 15*time.Second)
	v.SetDefault("auction.max_bid_time_buffer", 120*time.Second)
	v.SetDefault("auction.max_extensions", 0)
	v.SetDefault("scheduler.activation_spec", "@every 1m")
	v.SetDefault("scheduler.expiry_spec", "@every 1m")
	v.SetDefault("scheduler.ending_soon_spec", "@every 5m")
	v.SetDefault("scheduler.reconcile_spec", "@every 10m")
	v.SetDefault("scheduler.ending_soon_window", time.Hour)
	v.SetDefault("notifications.channel", "auction_events")
	v.SetDefault("notifications.queue_size", 1024)
	v.SetDefault("notifications.workers", 4)
	v.SetDefault("notifications.timeout", 5*time.Second)
	v.SetDefault("notifications.history", 200)
	v.SetDefault("fees.schedule_key", "fee_schedule")
	v.SetDefault("fees.cache_size", 64)
}

func bindEnv(v *viper.Viper) {
	bindings := map[string]string{
		"server.port":                           "SERVER_PORT",
		"server.host":                           "SERVER_HOST",
		"log.level":                             "LOG_LEVEL",
		"redis.enabled":                         "REDIS_ENABLED",
		"redis.address":                         "REDIS_ADDRESS",
		"redis.password":                        "REDIS_PASSWORD",
		"redis.db":                              "REDIS_DB",
		"mysql.dsn":                             "MYSQL_DSN",
		"mysql.max_open_conns":                  "MYSQL_MAX_OPEN_CONNS",
		"mysql.max_idle_conns":                  "MYSQL_MAX_IDLE_CONNS",
		"mysql.conn_max_lifetime":               "MYSQL_CONN_MAX_LIFETIME",
		"mysql.auto_migrate":                    "MYSQL_AUTO_MIGRATE",
		"storage.driver":                        "STORAGE_DRIVER",
		"leader.ttl":                            "LEADER_TTL",
		"leader.enabled":                        "LEADER_ENABLED",
		"instance.id":                           "INSTANCE_ID",
		"auction.default_minimum_bid_increment": "AUCTION_DEFAULT_MINIMUM_BID_INCREMENT",
		"auction.default_bid_time_buffer":       "AUCTION_DEFAULT_BID_TIME_BUFFER",
		"auction.max_extensions":                "AUCTION_MAX_EXTENSIONS",
		"scheduler.ending_soon_window":          "SCHEDULER_ENDING_SOON_WINDOW",
		"notifications.channel":                 "NOTIFICATIONS_CHANNEL",
	}
	for key, env := range bindings {
		_ = v.BindEnv(key, env)
	}
}

func Load() (*Config, error) {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	// Configuration file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/auction-engine/")

	v.AutomaticEnv()
	bindEnv(v)

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return unmarshal(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if c.Storage.Driver != "mysql" && c.Storage.Driver != "memory" {
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Auction.MinBidTimeBuffer <= 0 || c.Auction.MaxBidTimeBuffer < c.Auction.MinBidTimeBuffer {
		return fmt.Errorf("invalid bid time buffer bounds [%s, %s]", c.Auction.MinBidTimeBuffer, c.Auction.MaxBidTimeBuffer)
	}
	if c.Auction.DefaultBidTimeBuffer < c.Auction.MinBidTimeBuffer || c.Auction.DefaultBidTimeBuffer > c.Auction.MaxBidTimeBuffer {
		return fmt.Errorf("default bid time buffer %s outside [%s, %s]",
			c.Auction.DefaultBidTimeBuffer, c.Auction.MinBidTimeBuffer, c.Auction.MaxBidTimeBuffer)
	}
	if c.Auction.MaxExtensions < 0 {
		return fmt.Errorf("max_extensions must not be negative")
	}
	return nil
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, Redis: %s, Storage: %s, Instance: %s",
		c.Server.Host,
		c.Server.Port,
		c.Redis.Address,
		c.Storage.Driver,
		c.Instance.ID,
	)
}
