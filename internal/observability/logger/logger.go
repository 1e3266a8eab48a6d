package logger

import (
	"cmp"
	"context"
	"fmt"
	"strings"
	"time"

	obscontext "github.com/smallbiznis/nanolite/internal/observability/context"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	ServiceName string
	Environment string
	Version     string
	Level       string
	Format      string
	Debug       bool

	IncludeCaller       bool
	IncludeStackOnError bool
}

// New builds the process logger, installs it as the zap global and flushes
// it on shutdown. Debug mode switches to colored console output without
// sampling.
func New(lc fx.Lifecycle, cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cmp.Or(strings.TrimSpace(cfg.Level), "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         "json",
		EncoderConfig:    encCfg,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
	}
	if cfg.Debug || strings.EqualFold(cfg.Format, "console") {
		zapCfg.Encoding = "console"
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if cfg.Debug {
		zapCfg.Development = true
		zapCfg.Sampling = nil
	}

	var opts []zap.Option
	if !cfg.IncludeCaller {
		opts = append(opts, zap.WithCaller(false))
	}
	if cfg.IncludeStackOnError {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	logger, err := zapCfg.Build(opts...)
	if err != nil {
		return nil, err
	}
	logger = logger.With(
		zap.String("service", cmp.Or(strings.TrimSpace(cfg.ServiceName), "nanolite")),
		zap.String("env", cfg.Environment),
		zap.String("version", cfg.Version),
	)
	zap.ReplaceGlobals(logger)

	if lc != nil {
		lc.Append(fx.StopHook(func() {
			_ = logger.Sync()
		}))
	}
	return logger, nil
}

// FromContext returns the global logger with request-scoped fields.
func FromContext(ctx context.Context) *zap.Logger {
	return WithContext(ctx, zap.L())
}

// WithContext adds request, company, actor and trace ids carried by ctx.
// Empty values are omitted.
func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if ctx == nil || base == nil {
		return base
	}

	actorType, actorID := obscontext.ActorFromContext(ctx)
	pairs := [][2]string{
		{"request_id", obscontext.RequestIDFromContext(ctx)},
		{"company_id", obscontext.CompanyIDFromContext(ctx)},
		{"actor_type", actorType},
		{"actor_id", actorID},
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		pairs = append(pairs,
			[2]string{"trace_id", sc.TraceID().String()},
			[2]string{"span_id", sc.SpanID().String()},
		)
	}

	fields := make([]zap.Field, 0, len(pairs))
	for _, kv := range pairs {
		if kv[1] != "" {
			fields = append(fields, zap.String(kv[0], kv[1]))
		}
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// Flush is used by short-lived commands that exit without fx shutdown.
func Flush(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		_ = zap.L().Sync()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}
