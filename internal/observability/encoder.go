// internal/observability/encoder.go
package observability

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/pagesync/internal/config"
)

const (
	ansiReset  = "\x1b[0m"
	timeLayout = "2006-01-02T15:04:05.000Z07:00"
)

var ansiColors = map[string]string{
	"black":   "\x1b[30m",
	"red":     "\x1b[31m",
	"green":   "\x1b[32m",
	"yellow":  "\x1b[33m",
	"blue":    "\x1b[34m",
	"magenta": "\x1b[35m",
	"cyan":    "\x1b[36m",
	"white":   "\x1b[37m",
}

// palette holds the escape sequence per level. Unknown colour names are dropped.
type palette map[zapcore.Level]string

func newPalette(c config.ColorConfig) palette {
	p := palette{}
	for level, name := range map[zapcore.Level]string{
		zapcore.DebugLevel:  c.Debug,
		zapcore.InfoLevel:   c.Info,
		zapcore.WarnLevel:   c.Warn,
		zapcore.ErrorLevel:  c.Error,
		zapcore.DPanicLevel: c.Error,
		zapcore.PanicLevel:  c.Fatal,
		zapcore.FatalLevel:  c.Fatal,
	} {
		if code, ok := ansiColors[strings.ToLower(name)]; ok {
			p[level] = code
		}
	}
	return p
}

func (p palette) levelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	label := level.CapitalString()
	if code, ok := p[level]; ok {
		enc.AppendString(code + label + ansiReset)
		return
	}
	enc.AppendString(label)
}

func baseEncoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	return ec
}

func jsonEncoder() zapcore.Encoder {
	return zapcore.NewJSONEncoder(baseEncoderConfig())
}

// consoleEncoder returns a single-line, optionally coloured encoder for "console"
// and a JSON encoder for anything else.
func consoleEncoder(cfg config.LoggerConfig) zapcore.Encoder {
	if cfg.Format != "console" {
		return jsonEncoder()
	}
	ec := baseEncoderConfig()
	ec.EncodeLevel = newPalette(cfg.Colors).levelEncoder
	ec.EncodeName = func(name string, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString("[" + name + "]")
	}
	return zapcore.NewConsoleEncoder(ec)
}
