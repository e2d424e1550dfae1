package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Generator GeneratorConfig
	Timeline  TimelineConfig
	Audio     AudioConfig
	R2        R2Config
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// GeneratorConfig describes the remote mashup generator service and the
// retry budgets used when talking to it.
type GeneratorConfig struct {
	BaseURL string
	Timeout int // seconds, per HTTP request

	// Retry budgets. Network covers transient transport failures on the
	// submit/status path, Decode covers malformed response bodies, Region
	// covers not-ready polls of a single region's content.
	MaxNetworkAttempts int
	MaxDecodeAttempts  int
	MaxRegionAttempts  int
	PollIntervalMs     int
}

// PollInterval returns the status poll cadence as a duration.
func (g GeneratorConfig) PollInterval() time.Duration {
	return time.Duration(g.PollIntervalMs) * time.Millisecond
}

type TimelineConfig struct {
	TotalBeats int
}

type AudioConfig struct {
	Dir string // directory for fetched region/mashup audio files
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type RateLimitConfig struct {
	GeneratePerHour int
	LibraryPerHour  int
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("generator.base_url", "GENERATOR_BASE_URL")
	_ = viper.BindEnv("generator.timeout", "GENERATOR_TIMEOUT")
	_ = viper.BindEnv("generator.max_network_attempts", "GENERATOR_MAX_NETWORK_ATTEMPTS")
	_ = viper.BindEnv("generator.max_decode_attempts", "GENERATOR_MAX_DECODE_ATTEMPTS")
	_ = viper.BindEnv("generator.max_region_attempts", "GENERATOR_MAX_REGION_ATTEMPTS")
	_ = viper.BindEnv("generator.poll_interval_ms", "GENERATOR_POLL_INTERVAL_MS")
	_ = viper.BindEnv("timeline.total_beats", "TIMELINE_TOTAL_BEATS")
	_ = viper.BindEnv("audio.dir", "AUDIO_DIR")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("ratelimit.generate_per_hour", "RATELIMIT_GENERATE_PER_HOUR")
	_ = viper.BindEnv("ratelimit.library_per_hour", "RATELIMIT_LIBRARY_PER_HOUR")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Generator defaults. The poll cadence and retry budgets reflect that a
	// generation can span minutes on a slow connection.
	viper.SetDefault("generator.base_url", "http://localhost:5000")
	viper.SetDefault("generator.timeout", 60)
	viper.SetDefault("generator.max_network_attempts", 100)
	viper.SetDefault("generator.max_decode_attempts", 3)
	viper.SetDefault("generator.max_region_attempts", 50)
	viper.SetDefault("generator.poll_interval_ms", 250)

	viper.SetDefault("timeline.total_beats", 32)
	viper.SetDefault("audio.dir", os.TempDir())
	viper.SetDefault("ratelimit.generate_per_hour", 30)
	viper.SetDefault("ratelimit.library_per_hour", 60)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Generator: GeneratorConfig{
			BaseURL:            viper.GetString("generator.base_url"),
			Timeout:            viper.GetInt("generator.timeout"),
			MaxNetworkAttempts: viper.GetInt("generator.max_network_attempts"),
			MaxDecodeAttempts:  viper.GetInt("generator.max_decode_attempts"),
			MaxRegionAttempts:  viper.GetInt("generator.max_region_attempts"),
			PollIntervalMs:     viper.GetInt("generator.poll_interval_ms"),
		},
		Timeline: TimelineConfig{
			TotalBeats: viper.GetInt("timeline.total_beats"),
		},
		Audio: AudioConfig{
			Dir: viper.GetString("audio.dir"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		RateLimit: RateLimitConfig{
			GeneratePerHour: viper.GetInt("ratelimit.generate_per_hour"),
			LibraryPerHour:  viper.GetInt("ratelimit.library_per_hour"),
		},
	}

	return cfg, nil
}
