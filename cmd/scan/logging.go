package scan

import (
	"fmt"
	"io"
	"unicode"

	"github.com/blendle/zapdriver"
	ipfslog "github.com/ipfs/go-log/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

type consoleEncoder struct {
	zapcore.Encoder
}

func (e consoleEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	buf, err := e.Encoder.EncodeEntry(entry, fields)
	if err != nil {
		return nil, err
	}

	b := buf.Bytes()
	for i := range b {
		if unicode.IsControl(rune(b[i])) && !unicode.IsSpace(rune(b[i])) {
			b[i] = '\x1A' // Substitute character
		}
	}

	return buf, nil
}

const (
	logFormatConsole = "console"
	logFormatJSON    = "json"
)

// newLogger returns a logger writing to w, either human readable or as Stackdriver-style JSON.
func newLogger(w io.Writer, lvl ipfslog.LogLevel, format string) (*zap.Logger, error) {
	var encoder zapcore.Encoder
	switch format {
	case logFormatConsole:
		encoder = consoleEncoder{zapcore.NewConsoleEncoder(
			zap.NewDevelopmentEncoderConfig())}
	case logFormatJSON:
		encoder = zapcore.NewJSONEncoder(zapdriver.NewProductionEncoderConfig())
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	return zap.New(zapcore.NewCore(
		encoder,
		zapcore.Lock(zapcore.AddSync(w)),
		zap.NewAtomicLevelAt(zapcore.Level(lvl)))), nil
}
