// Package logger 提供统一的日志框架
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

// Level 日志级别
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config 日志配置
type Config struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"` // json/console
	Output     string `yaml:"output" json:"output"` // stdout/stderr/file
	FilePath   string `yaml:"file_path,omitempty" json:"file_path,omitempty"`
	TimeFormat string `yaml:"time_format,omitempty" json:"time_format,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// Init 初始化日志器
func Init(cfg Config) {
	once.Do(func() {
		level := parseLevel(cfg.Level)
		zerolog.SetGlobalLevel(level)

		var output io.Writer
		switch cfg.Output {
		case "stderr":
			output = os.Stderr
		case "file":
			if cfg.FilePath != "" {
				f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
				if err == nil {
					output = f
				} else {
					output = os.Stdout
				}
			} else {
				output = os.Stdout
			}
		default:
			output = os.Stdout
		}

		if cfg.Format == "console" {
			output = zerolog.ConsoleWriter{
				Out:        output,
				TimeFormat: cfg.TimeFormat,
			}
		}

		logger = zerolog.New(output).With().Timestamp().Logger()
	})
}

// parseLevel 解析日志级别
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get 获取日志器
func Get() *zerolog.Logger {
	if logger.GetLevel() == zerolog.Disabled {
		Init(DefaultConfig())
	}
	return &logger
}

// WithContext 从上下文创建日志器
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Get().With().Logger()
	
	// 添加请求ID
	if reqID, ok := ctx.Value("request_id").(string); ok {
		l = l.With().Str("request_id", reqID).Logger()
	}
	
	// 添加组织ID
	if orgID, ok := ctx.Value("org_id").(string); ok {
		l = l.With().Str("org_id", orgID).Logger()
	}
	
	return &l
}

// Debug 记录调试日志
func Debug() *zerolog.Event {
	return Get().Debug()
}

// Info 记录信息日志
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn 记录警告日志
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error 记录错误日志
func Error() *zerolog.Event {
	return Get().Error()
}

// Fatal 记录致命错误日志
func Fatal() *zerolog.Event {
	return Get().Fatal()
}

// WithError 添加错误信息
func WithError(err error) *zerolog.Event {
	return Get().Error().Err(err)
}

// WithField 添加字段
func WithField(key string, value interface{}) *zerolog.Logger {
	l := Get().With().Interface(key, value).Logger()
	return &l
}

// WithFields 添加多个字段
func WithFields(fields map[string]interface{}) *zerolog.Logger {
	ctx := Get().With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	l := ctx.Logger()
	return &l
}

// PolicyLogger 考勤规则引擎专用日志器
type PolicyLogger struct {
	base *zerolog.Logger
}

// NewPolicyLogger 创建规则引擎日志器
func NewPolicyLogger() *PolicyLogger {
	l := Get().With().Str("component", "policy").Logger()
	return &PolicyLogger{base: &l}
}

// RuleFinding 记录规则发现
func (l *PolicyLogger) RuleFinding(rule, message string) {
	l.base.Warn().
		Str("rule", rule).
		Msg(message)
}

// EvaluationComplete 记录评估完成
func (l *PolicyLogger) EvaluationComplete(startDate, endDate string, hard, soft int, score float64) {
	l.base.Info().
		Str("start_date", startDate).
		Str("end_date", endDate).
		Int("hard_findings", hard).
		Int("soft_findings", soft).
		Float64("score", score).
		Msg("规则评估完成")
}

// CorrectionLogger 自动补卡引擎专用日志器
type CorrectionLogger struct {
	base *zerolog.Logger
}

// NewCorrectionLogger 创建自动补卡日志器
func NewCorrectionLogger() *CorrectionLogger {
	l := Get().With().Str("component", "autocorrect").Logger()
	return &CorrectionLogger{base: &l}
}

// StartSweep 记录补卡扫描开始
func (l *CorrectionLogger) StartSweep(date string, records int) {
	l.base.Info().
		Str("date", date).
		Int("records", records).
		Msg("开始补卡扫描")
}

// ItemFilled 记录签退时间补全
func (l *CorrectionLogger) ItemFilled(recordID, source string, confidence float64) {
	l.base.Info().
		Str("record_id", recordID).
		Str("source", source).
		Float64("confidence", confidence).
		Msg("签退时间已补全")
}

// SweepComplete 记录补卡扫描完成
func (l *CorrectionLogger) SweepComplete(date string, duration time.Duration, filled, skipped int) {
	l.base.Info().
		Str("date", date).
		Dur("duration", duration).
		Int("filled", filled).
		Int("skipped", skipped).
		Msg("补卡扫描完成")
}

