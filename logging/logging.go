// Package logging installs a zap-backed handler behind log/slog.
package logging

import (
	"io"
	"log/slog"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// Options select the output format and verbosity
type Options struct {
	Debug bool
	// JSON forces structured output; otherwise it is used only when the
	// output is not a terminal
	JSON bool
}

// New builds a slog.Logger writing to w through a zap core. The returned
// function flushes buffered entries.
func New(w io.Writer, opts Options) (*slog.Logger, func() error) {
	level := zapcore.InfoLevel
	if opts.Debug {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if opts.JSON || !isTerminal(w) {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(w), level)
	return slog.New(zapslog.NewHandler(core)), core.Sync
}

// Setup installs the logger as the slog default, writing to stderr
func Setup(opts Options) func() error {
	logger, sync := New(os.Stderr, opts)
	slog.SetDefault(logger)
	return sync
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
