package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel определяет уровни логирования
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel разбирает уровень из строки; неизвестное значение дает INFO
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return TRACE
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// zapLevel отображает уровень на zap. TRACE у zap нет, пишем его как DEBUG.
func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case TRACE, DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger - логгер компонента поверх zap
type Logger struct {
	component string
	level     zap.AtomicLevel
	base      *zap.Logger
	sugar     *zap.SugaredLogger
}

// NewLogger создает консольный логгер компонента (вывод в stderr)
func NewLogger(component string, level LogLevel) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Level = zap.NewAtomicLevelAt(level.zapLevel())

	base, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("ошибка создания логгера %s: %w", component, err)
	}
	base = base.Named(component)

	return &Logger{
		component: component,
		level:     cfg.Level,
		base:      base,
		sugar:     base.Sugar(),
	}, nil
}

// NewNop возвращает логгер, который ничего не пишет
func NewNop() *Logger {
	base := zap.NewNop()
	return &Logger{
		component: "nop",
		level:     zap.NewAtomicLevelAt(zapcore.FatalLevel),
		base:      base,
		sugar:     base.Sugar(),
	}
}

// FromZap оборачивает готовый *zap.Logger
func FromZap(component string, base *zap.Logger) *Logger {
	return &Logger{
		component: component,
		level:     zap.NewAtomicLevelAt(zapcore.DebugLevel),
		base:      base,
		sugar:     base.Sugar(),
	}
}

// Named возвращает дочерний логгер подкомпонента с общим уровнем
func (l *Logger) Named(component string) *Logger {
	base := l.base.Named(component)
	return &Logger{
		component: l.component + "." + component,
		level:     l.level,
		base:      base,
		sugar:     base.Sugar(),
	}
}

// With возвращает логгер с постоянными полями (пары ключ-значение)
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	sugar := l.sugar.With(keysAndValues...)
	return &Logger{
		component: l.component,
		level:     l.level,
		base:      sugar.Desugar(),
		sugar:     sugar,
	}
}

// SetLevel меняет уровень логгера и всех его дочерних логгеров
func (l *Logger) SetLevel(level LogLevel) {
	l.level.SetLevel(level.zapLevel())
}

// Zap возвращает исходный *zap.Logger для структурных полей
func (l *Logger) Zap() *zap.Logger {
	return l.base
}

func (l *Logger) Trace(format string, args ...interface{}) {
	l.sugar.Debugf("[TRACE] "+format, args...)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// Close сбрасывает буферы. Ошибки sync для stderr игнорируются.
func (l *Logger) Close() error {
	_ = l.base.Sync()
	return nil
}

// Глобальный логгер по умолчанию; до инициализации ничего не пишет
var (
	defaultMu     sync.RWMutex
	defaultLogger = NewNop()
)

// InitDefaultLogger инициализирует логгер по умолчанию.
// Уровень берется из BLOCKCLIP_LOG_LEVEL (по умолчанию INFO).
func InitDefaultLogger(component string) error {
	logger, err := NewLogger(component, ParseLevel(os.Getenv("BLOCKCLIP_LOG_LEVEL")))
	if err != nil {
		return err
	}
	SetDefault(logger)
	return nil
}

// SetDefault заменяет логгер по умолчанию
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// Default возвращает логгер по умолчанию
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// CloseDefaultLogger закрывает логгер по умолчанию
func CloseDefaultLogger() {
	Default().Close()
}

// Trace логирует сообщение уровня TRACE
func Trace(format string, args ...interface{}) { Default().Trace(format, args...) }

// Debug логирует сообщение уровня DEBUG
func Debug(format string, args ...interface{}) { Default().Debug(format, args...) }

// Info логирует сообщение уровня INFO
func Info(format string, args ...interface{}) { Default().Info(format, args...) }

// Warn логирует сообщение уровня WARN
func Warn(format string, args ...interface{}) { Default().Warn(format, args...) }

// Error логирует сообщение уровня ERROR
func Error(format string, args ...interface{}) { Default().Error(format, args...) }
