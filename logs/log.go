package logs

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 定义日志级别常量（数值越大，级别越高）
const (
	LevelTrace   = iota // 0（最低，最详细）
	LevelDebug          // 1
	LevelVerbose        // 2
	LevelInfo           // 3
	LevelWarning        // 4
	LevelError          // 5（最高，最严重）
)

var (
	mu       sync.RWMutex
	logLevel = LevelInfo
	base     *zap.Logger
	sugar    *zap.SugaredLogger
)

// Logger 组件级日志接口，db / chain 通过它输出带名字的日志
type Logger interface {
	Debug(format string, v ...interface{})
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}

func init() {
	base = newZapLogger()
	sugar = base.Sugar()
}

func newZapLogger() *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	// 级别过滤在本包完成，zap 这里全部放行
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout),
			zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l < zapcore.ErrorLevel })),
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr),
			zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l >= zapcore.ErrorLevel })),
	)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}

// SetLevel 设置全局日志级别
func SetLevel(level int) {
	mu.Lock()
	defer mu.Unlock()
	logLevel = level
}

// GetLevel 返回当前全局日志级别
func GetLevel() int {
	mu.RLock()
	defer mu.RUnlock()
	return logLevel
}

// ParseLevel 把配置里的字符串转成级别常量
func ParseLevel(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "verbose":
		return LevelVerbose, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

func enabled(level int) bool {
	mu.RLock()
	defer mu.RUnlock()
	return logLevel <= level
}

// Sync 刷出缓冲日志，进程退出前调用
func Sync() {
	_ = base.Sync()
}

// 包级别的日志方法
func Trace(format string, v ...interface{}) {
	if enabled(LevelTrace) {
		sugar.Debugf("[TRACE] "+format, v...)
	}
}

func Debug(format string, v ...interface{}) {
	if enabled(LevelDebug) {
		sugar.Debugf(format, v...)
	}
}

func Verbose(format string, v ...interface{}) {
	if enabled(LevelVerbose) {
		sugar.Debugf("[VERBOSE] "+format, v...)
	}
}

func Info(format string, v ...interface{}) {
	if enabled(LevelInfo) {
		sugar.Infof(format, v...)
	}
}

func Warn(format string, v ...interface{}) {
	if enabled(LevelWarning) {
		sugar.Warnf(format, v...)
	}
}

func Error(format string, v ...interface{}) {
	if enabled(LevelError) {
		sugar.Errorf(format, v...)
	}
}

// nodeLogger 带组件名的 Logger 实现
type nodeLogger struct {
	s *zap.SugaredLogger
}

// NewNodeLogger 创建带名字的日志器，仍受全局级别控制
func NewNodeLogger(name string) Logger {
	return &nodeLogger{s: base.Named(name).Sugar()}
}

func (l *nodeLogger) Debug(format string, v ...interface{}) {
	if enabled(LevelDebug) {
		l.s.Debugf(format, v...)
	}
}

func (l *nodeLogger) Info(format string, v ...interface{}) {
	if enabled(LevelInfo) {
		l.s.Infof(format, v...)
	}
}

func (l *nodeLogger) Warn(format string, v ...interface{}) {
	if enabled(LevelWarning) {
		l.s.Warnf(format, v...)
	}
}

func (l *nodeLogger) Error(format string, v ...interface{}) {
	if enabled(LevelError) {
		l.s.Errorf(format, v...)
	}
}
