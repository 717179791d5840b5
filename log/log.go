package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"`
	Development bool   `mapstructure:"development"`
}

// This won't be as verbose as tracing, which is likely for testing only.
var VerboseEnabled = false

var logger = zap.NewNop()

// L returns the process logger. It is a no-op logger until Init is called.
func L() *zap.Logger {
	return logger
}

// Init builds the process logger. Logs go to stderr, since stdout carries
// the rendered report.
func Init(cfg LogConfig) (*zap.Logger, error) {
	level := zapcore.WarnLevel
	if cfg.Level != "" {
		if err := level.Set(strings.ToLower(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}
	if VerboseEnabled && level > zapcore.DebugLevel {
		level = zapcore.DebugLevel
	}

	encoding := cfg.Encoding
	if encoding == "" {
		encoding = "console"
	}

	zc := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Development,
		Encoding:          encoding,
		DisableStacktrace: !cfg.Development,
		EncoderConfig:     zap.NewProductionEncoderConfig(),
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
	}
	if encoding == "console" {
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	l, err := zc.Build()
	if err != nil {
		return nil, err
	}
	SetLogger(l)
	return l, nil
}

func SetLogger(l *zap.Logger) {
	logger = l
}

func Fverbosef(w io.Writer, format string, v ...interface{}) {
	if VerboseEnabled {
		fmt.Fprintf(w, format, v...)
	}
}

var tracingLoaded = false

// Tags enabled. Value ignored
var TraceSetting = map[string]bool{}

// Supply the TRACE environment variable with a comma-separated list of
// trace tags to enable.
func LoadTraceSetting() {
	tracingLoaded = true
	traceVar := os.Getenv("TRACE")
	if traceVar != "" {
		tags := strings.Split(traceVar, ",")
		for _, tag := range tags {
			TraceSetting[strings.TrimSpace(tag)] = true
		}
	}
}

func MaybeLoadTraceSetting() {
	if !tracingLoaded {
		LoadTraceSetting()
	}
}

// Tracef logs at debug level, but only for tags enabled through TRACE.
func Tracef(tag string, format string, v ...interface{}) {
	MaybeLoadTraceSetting()
	if _, ok := TraceSetting[tag]; ok {
		logger.Debug(fmt.Sprintf(format, v...), zap.String("trace", tag))
	}
}

// ErrorPrinter is how user-facing errors and warnings get reported. These are
// not log lines; they are part of the program output.
type ErrorPrinter interface {
	Ln(v ...interface{})
	F(format string, v ...interface{})
}

// The default ErrorPrinter
type StderrErrorPrinter struct{}

func (p *StderrErrorPrinter) Ln(v ...interface{}) {
	fmt.Fprintln(os.Stderr, v...)
}

func (p *StderrErrorPrinter) F(format string, v ...interface{}) {
	fmt.Fprintf(os.Stderr, format, v...)
}

// BufErrorPrinter collects messages, for tests and for callers which need to
// return them (eg. the http server).
type BufErrorPrinter struct {
	Buf strings.Builder
}

func (p *BufErrorPrinter) Ln(v ...interface{}) {
	fmt.Fprintln(&p.Buf, v...)
}

func (p *BufErrorPrinter) F(format string, v ...interface{}) {
	fmt.Fprintf(&p.Buf, format, v...)
}
