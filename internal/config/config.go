// Package config 提供配置管理
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config 应用配置
type Config struct {
	App         AppConfig         `yaml:"app"`
	Database    DatabaseConfig    `yaml:"database"`
	Auth        AuthConfig        `yaml:"auth"`
	API         APIConfig         `yaml:"api"`
	Attendance  AttendanceConfig  `yaml:"attendance"`
	Visit       VisitConfig       `yaml:"visit"`
	AutoCorrect AutoCorrectConfig `yaml:"autocorrect"`
	FollowUp    FollowUpConfig    `yaml:"followup"`
	Quotation   QuotationConfig   `yaml:"quotation"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name     string `yaml:"name"`
	Env      string `yaml:"env"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// AuthConfig 认证配置
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	Issuer    string        `yaml:"issuer"`
}

// APIConfig API配置
type APIConfig struct {
	RateLimit int           `yaml:"rate_limit"`
	Timeout   time.Duration `yaml:"timeout"`
	CORS      CORSConfig    `yaml:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Origins []string `yaml:"origins"`
}

// AttendanceConfig 考勤规则配置
type AttendanceConfig struct {
	GraceMinutes  int     `yaml:"grace_minutes"`    // 迟到早退宽限
	HalfDayRatio  float64 `yaml:"half_day_ratio"`   // 半天判定比例
	MinOTMinutes  int     `yaml:"min_ot_minutes"`   // 加班起报门槛
	MaxOTPerDay   float64 `yaml:"max_ot_per_day"`   // 单日加班上限（小时）
	MaxOTPerMonth float64 `yaml:"max_ot_per_month"` // 当月加班上限（小时）
}

// VisitConfig 外访规则配置
type VisitConfig struct {
	MaxVisitHours   float64 `yaml:"max_visit_hours"`
	MaxPhotos       int     `yaml:"max_photos"`
	MaxPhotoBytes   int64   `yaml:"max_photo_bytes"`
	MaxDailyVisits  int     `yaml:"max_daily_visits"`
	RequireLocation bool    `yaml:"require_location"`
	PhotoDir        string  `yaml:"photo_dir"`
}

// AutoCorrectConfig 自动补卡引擎配置
type AutoCorrectConfig struct {
	Workers           int           `yaml:"workers"`
	QueueSize         int           `yaml:"queue_size"`
	Interval          time.Duration `yaml:"interval"`
	CutoffHour        int           `yaml:"cutoff_hour"` // 每日补卡截止时刻
	MaxAttempts       int           `yaml:"max_attempts"`
	InitialBackoff    time.Duration `yaml:"initial_backoff"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
}

// FollowUpConfig 回访推荐配置
type FollowUpConfig struct {
	WindowDays    int     `yaml:"window_days"` // 未约定回访日期时的默认跟进窗口
	MaxResults    int     `yaml:"max_results"`
	MaxDistanceKm float64 `yaml:"max_distance_km"`
}

// QuotationConfig 报价单配置
type QuotationConfig struct {
	ValidDays int     `yaml:"valid_days"`
	Currency  string  `yaml:"currency"`
	TaxRate   float64 `yaml:"tax_rate"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load 从环境变量加载配置
// 存在 .env 文件时先行载入，不存在则忽略
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name:     getEnv("APP_NAME", "kaoqin"),
			Env:      getEnv("APP_ENV", "development"),
			Port:     getEnvInt("APP_PORT", 7020),
			LogLevel: getEnv("APP_LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "kaoqin"),
			User:            getEnv("DB_USER", "kaoqin"),
			Password:        getEnv("DB_PASSWORD", "kaoqin123"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", "kaoqin-dev-secret"),
			TokenTTL:  getEnvDuration("AUTH_TOKEN_TTL", 12*time.Hour),
			Issuer:    getEnv("AUTH_ISSUER", "kaoqin"),
		},
		API: APIConfig{
			RateLimit: getEnvInt("API_RATE_LIMIT", 100),
			Timeout:   getEnvDuration("API_TIMEOUT", 30*time.Second),
			CORS: CORSConfig{
				Enabled: getEnvBool("API_CORS_ENABLED", true),
				Origins: []string{"*"},
			},
		},
		Attendance: AttendanceConfig{
			GraceMinutes:  getEnvInt("ATTENDANCE_GRACE_MINUTES", 10),
			HalfDayRatio:  getEnvFloat("ATTENDANCE_HALF_DAY_RATIO", 0.5),
			MinOTMinutes:  getEnvInt("ATTENDANCE_MIN_OT_MINUTES", 30),
			MaxOTPerDay:   getEnvFloat("ATTENDANCE_MAX_OT_PER_DAY", 6),
			MaxOTPerMonth: getEnvFloat("ATTENDANCE_MAX_OT_PER_MONTH", 36),
		},
		Visit: VisitConfig{
			MaxVisitHours:   getEnvFloat("VISIT_MAX_HOURS", 12),
			MaxPhotos:       getEnvInt("VISIT_MAX_PHOTOS", 9),
			MaxPhotoBytes:   int64(getEnvInt("VISIT_MAX_PHOTO_BYTES", 10*1024*1024)),
			MaxDailyVisits:  getEnvInt("VISIT_MAX_DAILY", 10),
			RequireLocation: getEnvBool("VISIT_REQUIRE_LOCATION", true),
			PhotoDir:        getEnv("VISIT_PHOTO_DIR", "data/photos"),
		},
		AutoCorrect: AutoCorrectConfig{
			Workers:           getEnvInt("AUTOCORRECT_WORKERS", 4),
			QueueSize:         getEnvInt("AUTOCORRECT_QUEUE_SIZE", 256),
			Interval:          getEnvDuration("AUTOCORRECT_INTERVAL", 10*time.Minute),
			CutoffHour:        getEnvInt("AUTOCORRECT_CUTOFF_HOUR", 22),
			MaxAttempts:       getEnvInt("AUTOCORRECT_MAX_ATTEMPTS", 3),
			InitialBackoff:    getEnvDuration("AUTOCORRECT_INITIAL_BACKOFF", time.Second),
			BackoffMultiplier: getEnvFloat("AUTOCORRECT_BACKOFF_MULTIPLIER", 2),
			MaxBackoff:        getEnvDuration("AUTOCORRECT_MAX_BACKOFF", 30*time.Second),
		},
		FollowUp: FollowUpConfig{
			WindowDays:    getEnvInt("FOLLOWUP_WINDOW_DAYS", 7),
			MaxResults:    getEnvInt("FOLLOWUP_MAX_RESULTS", 10),
			MaxDistanceKm: getEnvFloat("FOLLOWUP_MAX_DISTANCE", 15.0),
		},
		Quotation: QuotationConfig{
			ValidDays: getEnvInt("QUOTE_VALID_DAYS", 30),
			Currency:  getEnv("QUOTE_CURRENCY", "CNY"),
			TaxRate:   getEnvFloat("QUOTE_TAX_RATE", 0.06),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	return cfg, nil
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// IsTest 检查是否为测试环境
func (c *Config) IsTest() bool {
	return c.App.Env == "test"
}

// 辅助函数
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
