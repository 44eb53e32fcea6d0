package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Log         LogConfig
	Matchmaking MatchmakingConfig
	RateLimit   RateLimitConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	Mode            string // debug, release, test
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// AllowedOrigins for CORS; "*" allows any origin
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
	// ConnectAttempts covers the window where Postgres is still starting
	ConnectAttempts int
}

type RedisConfig struct {
	Host            string
	Port            int
	Password        string
	DB              int
	PoolSize        int
	DialTimeout     time.Duration
	ConnectAttempts int
}

type JWTConfig struct {
	Secret   string
	TokenTTL time.Duration
	Issuer   string
}

type LogConfig struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	OutputPath string
}

type MatchmakingConfig struct {
	SearchTimeout         time.Duration
	PollInterval          time.Duration
	MaxConcurrentSearches int64
	CleanupInterval       time.Duration
	RoomCodeLength        int
	RoomCodeAttempts      int
}

type RateLimitConfig struct {
	// APIRequestsPerMinute is shared by every node through Redis
	APIRequestsPerMinute int
	// SearchesPerMinute and SearchBurst bound search submissions per user on one node
	SearchesPerMinute int
	SearchBurst       int
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("MATCHROOM")
	viper.AutomaticEnv()

	setDefaults()

	// config file is optional
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVariables()

	cfg := &Config{
		Server: ServerConfig{
			Host:            viper.GetString("server.host"),
			Port:            viper.GetInt("server.port"),
			Mode:            viper.GetString("server.mode"),
			ReadTimeout:     viper.GetDuration("server.read_timeout"),
			WriteTimeout:    viper.GetDuration("server.write_timeout"),
			ShutdownTimeout: viper.GetDuration("server.shutdown_timeout"),
			AllowedOrigins:  viper.GetStringSlice("server.allowed_origins"),
		},
		Database: DatabaseConfig{
			Host:            viper.GetString("database.host"),
			Port:            viper.GetInt("database.port"),
			User:            viper.GetString("database.user"),
			Password:        viper.GetString("database.password"),
			DBName:          viper.GetString("database.dbname"),
			SSLMode:         viper.GetString("database.sslmode"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: viper.GetDuration("database.conn_max_lifetime"),
			ConnMaxIdleTime: viper.GetDuration("database.conn_max_idle_time"),
			ConnectTimeout:  viper.GetDuration("database.connect_timeout"),
			ConnectAttempts: viper.GetInt("database.connect_attempts"),
		},
		Redis: RedisConfig{
			Host:            viper.GetString("redis.host"),
			Port:            viper.GetInt("redis.port"),
			Password:        viper.GetString("redis.password"),
			DB:              viper.GetInt("redis.db"),
			PoolSize:        viper.GetInt("redis.pool_size"),
			DialTimeout:     viper.GetDuration("redis.dial_timeout"),
			ConnectAttempts: viper.GetInt("redis.connect_attempts"),
		},
		JWT: JWTConfig{
			Secret:   viper.GetString("jwt.secret"),
			TokenTTL: viper.GetDuration("jwt.token_ttl"),
			Issuer:   viper.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:      viper.GetString("log.level"),
			Format:     viper.GetString("log.format"),
			OutputPath: viper.GetString("log.output_path"),
		},
		Matchmaking: MatchmakingConfig{
			SearchTimeout:         viper.GetDuration("matchmaking.search_timeout"),
			PollInterval:          viper.GetDuration("matchmaking.poll_interval"),
			MaxConcurrentSearches: viper.GetInt64("matchmaking.max_concurrent_searches"),
			CleanupInterval:       viper.GetDuration("matchmaking.cleanup_interval"),
			RoomCodeLength:        viper.GetInt("matchmaking.room_code_length"),
			RoomCodeAttempts:      viper.GetInt("matchmaking.room_code_attempts"),
		},
		RateLimit: RateLimitConfig{
			APIRequestsPerMinute: viper.GetInt("ratelimit.api_requests_per_minute"),
			SearchesPerMinute:    viper.GetInt("ratelimit.searches_per_minute"),
			SearchBurst:          viper.GetInt("ratelimit.search_burst"),
		},
	}

	if err := cfg.Matchmaking.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.allowed_origins", []string{"*"})
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "matchroom")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("database.conn_max_idle_time", "1m")
	viper.SetDefault("database.connect_timeout", "5s")
	viper.SetDefault("database.connect_attempts", 5)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.dial_timeout", "5s")
	viper.SetDefault("redis.connect_attempts", 5)

	// JWT defaults
	viper.SetDefault("jwt.secret", "your-secret-key-change-in-production")
	viper.SetDefault("jwt.token_ttl", "24h") // only used when minting demo tokens
	viper.SetDefault("jwt.issuer", "matchroom")

	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output_path", "stdout")

	// Matchmaking defaults
	viper.SetDefault("matchmaking.search_timeout", "30s")
	viper.SetDefault("matchmaking.poll_interval", "3s")
	viper.SetDefault("matchmaking.max_concurrent_searches", 256)
	viper.SetDefault("matchmaking.cleanup_interval", "1m")
	viper.SetDefault("matchmaking.room_code_length", 6)
	viper.SetDefault("matchmaking.room_code_attempts", 5)

	// Rate limit defaults
	viper.SetDefault("ratelimit.api_requests_per_minute", 300)
	viper.SetDefault("ratelimit.searches_per_minute", 10)
	viper.SetDefault("ratelimit.search_burst", 3)
}

func bindEnvVariables() {
	// Server
	_ = viper.BindEnv("server.host", "SERVER_HOST")
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.mode", "SERVER_MODE")
	_ = viper.BindEnv("server.allowed_origins", "CORS_ALLOWED_ORIGINS")

	// Database
	_ = viper.BindEnv("database.host", "DB_HOST")
	_ = viper.BindEnv("database.port", "DB_PORT")
	_ = viper.BindEnv("database.user", "DB_USER")
	_ = viper.BindEnv("database.password", "DB_PASSWORD")
	_ = viper.BindEnv("database.dbname", "DB_NAME")
	_ = viper.BindEnv("database.sslmode", "DB_SSLMODE")

	// Redis
	_ = viper.BindEnv("redis.host", "REDIS_HOST")
	_ = viper.BindEnv("redis.port", "REDIS_PORT")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// JWT
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.issuer", "JWT_ISSUER")

	// Log
	_ = viper.BindEnv("log.level", "LOG_LEVEL")

	// Matchmaking
	_ = viper.BindEnv("matchmaking.search_timeout", "MATCH_SEARCH_TIMEOUT")
	_ = viper.BindEnv("matchmaking.poll_interval", "MATCH_POLL_INTERVAL")
	_ = viper.BindEnv("matchmaking.max_concurrent_searches", "MATCH_MAX_CONCURRENT")
}

// Validate rejects timings the polling loop cannot run with
func (c *MatchmakingConfig) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("matchmaking.poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.SearchTimeout < c.PollInterval {
		return fmt.Errorf("matchmaking.search_timeout (%s) must be at least poll_interval (%s)", c.SearchTimeout, c.PollInterval)
	}
	if c.MaxConcurrentSearches <= 0 {
		return fmt.Errorf("matchmaking.max_concurrent_searches must be positive, got %d", c.MaxConcurrentSearches)
	}
	if c.RoomCodeLength < 4 || c.RoomCodeLength > 32 {
		return fmt.Errorf("matchmaking.room_code_length must be between 4 and 32, got %d", c.RoomCodeLength)
	}
	if c.RoomCodeAttempts <= 0 {
		return fmt.Errorf("matchmaking.room_code_attempts must be positive, got %d", c.RoomCodeAttempts)
	}
	return nil
}

// MaxAttempts is the number of polling rounds that fit in SearchTimeout
func (c *MatchmakingConfig) MaxAttempts() int {
	n := int(c.SearchTimeout / c.PollInterval)
	if c.SearchTimeout%c.PollInterval != 0 {
		n++
	}
	return n
}

// GetDSN returns the lib/pq keyword DSN. Sessions are tagged with
// application_name so they can be told apart in pg_stat_activity.
func (c *DatabaseConfig) GetDSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s application_name=matchroom",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
	if secs := int(c.ConnectTimeout / time.Second); secs > 0 {
		dsn += fmt.Sprintf(" connect_timeout=%d", secs)
	}
	return dsn
}

// GetAddr returns Redis address
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetServerAddr returns server address
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
