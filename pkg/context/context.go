package context

import "context"

type ContextKey string

var (
	RequestIDKey = ContextKey("X-Request-Id")
	RunIDKey     = ContextKey("X-Run-Id")
	CaseIDKey    = ContextKey("X-Case-Id")
)

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	value, ok := ctx.Value(RequestIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

func GetRunID(ctx context.Context) string {
	value, ok := ctx.Value(RunIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetCaseID(ctx context.Context, caseID int64) context.Context {
	return context.WithValue(ctx, CaseIDKey, caseID)
}

func GetCaseID(ctx context.Context) int64 {
	value, ok := ctx.Value(CaseIDKey).(int64)
	if !ok {
		return 0
	}
	return value
}
