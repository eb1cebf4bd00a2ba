// Package logger is a context-carrying wrapper over zerolog. Identifiers
// attached with the With* helpers ride along on every later line.
package logger

import (
	"context"
	"io"
	"maps"
	"net/http"
	"os"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/angelmondragon/order-refunds/pkg/env"
	pkgerrors "github.com/angelmondragon/order-refunds/pkg/errors"
)

type Options struct {
	ServiceName string
	Level       zerolog.Level
	// WarnStack attaches a stack trace to warn lines as well as errors.
	WarnStack bool
	Output    io.Writer
	// Format is "json" or "console"; empty reads LOG_FORMAT.
	Format string
	// Static fields are stamped on every line, e.g. the instance id.
	Static map[string]any
}

type Logger struct {
	root      zerolog.Logger
	warnStack bool
}

type scopeKey struct{}

var timeFormatOnce sync.Once

func New(opts Options) *Logger {
	timeFormatOnce.Do(func() { zerolog.TimeFieldFormat = time.RFC3339Nano })

	if opts.Level == zerolog.NoLevel {
		opts.Level = zerolog.InfoLevel
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	format := opts.Format
	if format == "" {
		format = env.Get("LOG_FORMAT", "json")
	}
	if format == "console" {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
			NoColor:    env.Bool("LOG_NO_COLOR", false),
		}
	}

	builder := zerolog.New(out).With().Timestamp().Str("service", opts.ServiceName)
	builder = withSorted(builder, opts.Static)
	return &Logger{
		root:      builder.Logger().Level(opts.Level),
		warnStack: opts.WarnStack,
	}
}

// ParseLevel maps a config string to a level, defaulting to info.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) scoped(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if scoped, ok := ctx.Value(scopeKey{}).(*zerolog.Logger); ok {
			return scoped
		}
	}
	return &l.root
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.WithFields(ctx, map[string]any{key: value})
}

func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	next := withSorted(l.scoped(ctx).With(), fields).Logger()
	return context.WithValue(ctx, scopeKey{}, &next)
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.WithField(ctx, "request_id", requestID)
}

func (l *Logger) WithActorID(ctx context.Context, actorID string) context.Context {
	return l.WithField(ctx, "actor_id", actorID)
}

func (l *Logger) WithOrderID(ctx context.Context, orderID int64) context.Context {
	return l.WithField(ctx, "order_id", orderID)
}

func (l *Logger) WithRefundID(ctx context.Context, refundID int64) context.Context {
	return l.WithField(ctx, "refund_id", refundID)
}

func (l *Logger) WithTransactionID(ctx context.Context, transactionID int64) context.Context {
	return l.WithField(ctx, "transaction_id", transactionID)
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	l.scoped(ctx).Debug().Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	l.scoped(ctx).Info().Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	event := l.scoped(ctx).Warn()
	if l.warnStack {
		event = event.Str("stack", stack())
	}
	event.Msg(msg)
}

// Error logs err with its code when it is a typed error. Stacks are kept
// for untyped errors and server-side failures only.
func (l *Logger) Error(ctx context.Context, msg string, err error) {
	event := l.scoped(ctx).Error()
	if err == nil {
		event.Str("stack", stack()).Msg(msg)
		return
	}
	event = event.Err(err)
	if typed := pkgerrors.As(err); typed != nil {
		event = event.Str("error_code", string(typed.Code()))
		if pkgerrors.MetadataFor(typed.Code()).HTTPStatus < http.StatusInternalServerError {
			event.Msg(msg)
			return
		}
	}
	event.Str("stack", stack()).Msg(msg)
}

func withSorted(builder zerolog.Context, fields map[string]any) zerolog.Context {
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		builder = builder.Interface(key, fields[key])
	}
	return builder
}

func stack() string {
	return strings.TrimSpace(string(debug.Stack()))
}
