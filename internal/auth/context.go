package auth

import (
	"context"
	"errors"
)

// Scheme names which credential class authenticated the request.
type Scheme string

const (
	SchemeAPIKey Scheme = "api_key"
	SchemeBearer Scheme = "bearer"
)

type ctxKey int

const (
	ctxCallerName ctxKey = iota
	ctxScheme
)

func WithCaller(ctx context.Context, name string, scheme Scheme) context.Context {
	ctx = context.WithValue(ctx, ctxCallerName, name)
	ctx = context.WithValue(ctx, ctxScheme, scheme)
	return ctx
}

func CallerName(ctx context.Context) (string, error) {
	if s, ok := ctx.Value(ctxCallerName).(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("caller not in context")
}

func CallerScheme(ctx context.Context) (Scheme, error) {
	if s, ok := ctx.Value(ctxScheme).(Scheme); ok && s != "" {
		return s, nil
	}
	return "", errors.New("scheme not in context")
}
