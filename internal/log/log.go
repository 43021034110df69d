package log

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hibiken/asynq"

	slogctx "github.com/veqryn/slog-context"

	careloopcontext "github.com/careloop/careloop/utils/context"
)

func InjectRequest(ctx context.Context, r *http.Request) context.Context {
	requestID, _ := careloopcontext.GetRequestID(ctx)

	attrs := []any{
		slog.String("requestId", requestID),
		slog.Group("requestData",
			slog.String("method", r.Method),
			slog.String("host", r.Host),
			slog.String("path", r.URL.Path),
		),
	}

	if org, err := careloopcontext.ExtractClaimedOrg(ctx); err == nil {
		attrs = append(attrs, slog.String("organizationId", org.String()))
	}

	return slogctx.With(ctx, attrs...)
}

func InjectTask(ctx context.Context, task *asynq.Task) context.Context {
	return slogctx.With(ctx, slog.String("taskType", task.Type()))
}

func InjectMigrationStep(ctx context.Context, state string) context.Context {
	return slogctx.With(ctx, slog.String("migrationState", state))
}

func ErrorAttr(err error) slog.Attr {
	return slog.Attr{
		Key:   slogctx.ErrKey,
		Value: slog.StringValue(err.Error()),
	}
}

func Debug(ctx context.Context, msg string, args ...slog.Attr) {
	slogctx.LogAttrs(ctx, slog.LevelDebug, msg, args...)
}

func Warn(ctx context.Context, msg string, args ...slog.Attr) {
	slogctx.LogAttrs(ctx, slog.LevelWarn, msg, args...)
}

func Info(ctx context.Context, msg string, args ...slog.Attr) {
	slogctx.LogAttrs(ctx, slog.LevelInfo, msg, args...)
}

func Error(ctx context.Context, msg string, err error, args ...slog.Attr) {
	args = append(args, slogctx.Err(err))

	slogctx.LogAttrs(ctx, slog.LevelError, msg, args...)
}
