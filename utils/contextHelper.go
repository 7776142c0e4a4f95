package utils

import (
	"context"

	"github.com/lalantsika/lalantsika_backend/appctx"
)

var (
	ContextKeyToken         = appctx.ContextKeyToken
	ContextKeyUserId        = appctx.ContextKeyUserId
	ContextKeyIdentifier    = appctx.ContextKeyIdentifier
	ContextKeyUserType      = appctx.ContextKeyUserType
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
)

func GetTokenFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyToken)
}

func GetUserIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyUserId)
}

func GetIdentifierFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyIdentifier)
}

func GetUserTypeFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserType)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, ContextKeyToken, token)
}

func SetUserIdInContext(ctx context.Context, userId int) context.Context {
	return appctx.Set(ctx, ContextKeyUserId, userId)
}

func SetIdentifierInContext(ctx context.Context, identifier string) context.Context {
	return appctx.Set(ctx, ContextKeyIdentifier, identifier)
}

func SetUserTypeInContext(ctx context.Context, userType string) context.Context {
	return appctx.Set(ctx, ContextKeyUserType, userType)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}
