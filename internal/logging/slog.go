package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const defaultService = "keeper"

// Options selects the outputs of a SlogManager.
type Options struct {
	// Level is one of debug, info, warn, error. Unknown values mean info.
	Level string
	// File receives text logs. When nil, logs go to Console instead.
	File io.Writer
	// Console defaults to os.Stdout.
	Console io.Writer
	// Provider enables the OpenTelemetry log bridge when set.
	Provider *sdklog.LoggerProvider
	// Graylog enables GELF output when set.
	Graylog GelfWriter
	// Service names the logger in OTel and the host in GELF messages.
	Service string
	// Context adds dynamic attributes (current turn, session) to every record.
	Context ContextProvider
}

// SlogManager owns the process logger and the OTel provider it flushes.
type SlogManager struct {
	logger   *slog.Logger
	provider *sdklog.LoggerProvider
}

// NewSlogManager returns a manager whose Logger is slog.Default until Setup.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel accepts the slog level names in any case. Anything else is info.
func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// utcTime renders record times as RFC3339 in UTC.
func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey {
		return a
	}
	if t, ok := a.Value.Any().(time.Time); ok {
		a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
	}
	return a
}

// outputs builds one handler per configured destination.
func (o Options) outputs(lvl slog.Level) []slog.Handler {
	text := o.File
	if text == nil {
		text = o.Console
	}
	if text == nil {
		text = os.Stdout
	}
	service := o.Service
	if service == "" {
		service = defaultService
	}

	out := []slog.Handler{slog.NewTextHandler(text, &slog.HandlerOptions{Level: lvl, ReplaceAttr: utcTime})}
	if o.Provider != nil {
		out = append(out, otelslog.NewHandler(service, otelslog.WithLoggerProvider(o.Provider)))
	}
	if o.Graylog != nil {
		out = append(out, NewGelfHandler(o.Graylog, service, lvl))
	}
	return out
}

// Setup builds the logger. Calling it again replaces the previous outputs.
func (m *SlogManager) Setup(opts Options) {
	lvl := parseLevel(opts.Level)

	var h slog.Handler = NewMultiHandler(opts.outputs(lvl)...)
	if opts.Context != nil {
		h = NewContextHandler(h, opts.Context)
	}

	m.provider = opts.Provider
	m.logger = slog.New(h)
	m.logger.Info("Logging initialized", "level", lvl.String())
}

// Logger returns the configured logger, or slog.Default before Setup.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush pushes buffered OTel records to their exporters.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	return m.provider.ForceFlush(ctx)
}
