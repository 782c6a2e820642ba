package middleware

import "context"

type contextKey int

const (
	ctxUserID contextKey = iota
	ctxEmail
)

// UserIDFromContext returns the authenticated user id set by Auth, or "".
func UserIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxUserID)
}

// EmailFromContext returns the email claim carried by the access token, if any.
func EmailFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxEmail)
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return withString(ctx, ctxUserID, userID)
}

func WithEmail(ctx context.Context, email string) context.Context {
	return withString(ctx, ctxEmail, email)
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}
