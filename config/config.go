package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	ServerIP     string
	ServerPort   int
	FrontendURL  string
	FrontendPort int
	StaticDir    string // Root directory for serving static files (player page, overlay assets)
	MusicDir     string // Directory scanned for playable tracks

	// 播放调度
	TickInterval     time.Duration // Idle tick of the command processor
	StatusQueueSize  int           // Capacity of the processor -> broadcaster queue
	CommandQueueWarn int           // Command queue depth that triggers a warning (queue is unbounded)
	FadeDuration     time.Duration // Duration of fade_in / fade_out effects
	SendBufferSize   int           // Per-client outbound buffer

	// 音频输出
	AudioOutput     string        // speaker, null or sim
	AudioSampleRate int           // Output sample rate in Hz
	AudioBuffer     time.Duration // Output buffer length

	// 日志
	LogLevel      string
	LogPath       string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int

	// Redis配置 (status mirror)
	RedisEnabled   bool
	RedisHost      string
	RedisPort      string
	RedisPassword  string
	RedisDB        int
	RedisStatusKey string

	// MinIO配置 (remote music source)
	MinioEnabled   bool
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioPrefix    string
	MinioUseSSL    bool
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return boolVal
		}
	}
	return fallback
}

// getEnvMillis reads a millisecond count and returns it as a duration.
func getEnvMillis(key string, fallback time.Duration) time.Duration {
	ms := getEnvInt(key, int(fallback/time.Millisecond))
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}
	return fromEnv()
}

func fromEnv() *Config {
	fadeSeconds := getEnvInt("FADE_SECONDS", 5)
	if fadeSeconds <= 0 {
		fadeSeconds = 5
	}

	return &Config{
		ServerIP:     getEnv("SERVER_IP", "0.0.0.0"),
		ServerPort:   getEnvInt("SERVER_PORT", 8100),
		FrontendURL:  getEnv("FRONTEND_URL", "http://localhost"),
		FrontendPort: getEnvInt("FRONTEND_PORT", 5173),
		StaticDir:    getEnv("STATIC_DIR", "static"),
		MusicDir:     getEnv("MUSIC_DIR", filepath.Join("media", "music")),

		TickInterval:     getEnvMillis("TICK_INTERVAL_MS", 200*time.Millisecond),
		StatusQueueSize:  getEnvInt("STATUS_QUEUE_SIZE", 64),
		CommandQueueWarn: getEnvInt("COMMAND_QUEUE_WARN", 1024),
		FadeDuration:     time.Duration(fadeSeconds) * time.Second,
		SendBufferSize:   getEnvInt("WS_SEND_BUFFER", 256),

		AudioOutput:     strings.ToLower(getEnv("AUDIO_OUTPUT", "speaker")),
		AudioSampleRate: getEnvInt("AUDIO_SAMPLE_RATE", 44100),
		AudioBuffer:     getEnvMillis("AUDIO_BUFFER_MS", 100*time.Millisecond),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogPath:       getEnv("LOG_PATH", ""), // 为空时只输出到控制台
		LogMaxSize:    getEnvInt("LOG_MAX_SIZE_MB", 50),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAge:     getEnvInt("LOG_MAX_AGE_DAYS", 14),

		RedisEnabled:   getEnvBool("REDIS_ENABLED", false),
		RedisHost:      getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:      getEnv("REDIS_PORT", "6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""), // 默认无密码
		RedisDB:        getEnvInt("REDIS_DB", 0),     // 默认使用0号数据库
		RedisStatusKey: getEnv("REDIS_STATUS_KEY", "audio:status"),

		MinioEnabled:   getEnvBool("MINIO_ENABLED", false),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "music"),
		MinioRegion:    getEnv("MINIO_REGION", ""),
		MinioPrefix:    getEnv("MINIO_PREFIX", ""),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
	}
}

// ListenAddr returns the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return c.ServerIP + ":" + strconv.Itoa(c.ServerPort)
}

// AllowedOrigins lists the frontend origins accepted by CORS.
func (c *Config) AllowedOrigins() []string {
	base := strings.TrimRight(c.FrontendURL, "/")
	return []string{
		base + ":" + strconv.Itoa(c.FrontendPort),
		base + ":5174",
		base + ":8100",
	}
}
