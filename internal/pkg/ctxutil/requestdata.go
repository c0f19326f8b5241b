package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type requestDataKey struct{}

// TokenKind distinguishes the credential a request authenticated with.
type TokenKind string

const (
	TokenKindAccess TokenKind = "access"
	TokenKindWidget TokenKind = "widget"
)

// RequestData carries the authenticated identity of the current request.
type RequestData struct {
	UserID      uuid.UUID
	BotID       uuid.UUID
	TokenString string
	TokenKind   TokenKind
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	val := ctx.Value(requestDataKey{})
	rd, ok := val.(*RequestData)
	if !ok {
		return nil
	}
	return rd
}
