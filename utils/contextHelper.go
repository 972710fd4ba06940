package utils

import (
	"context"

	"github.com/mjwconsult/accountsync/appctx"
)

var (
	ContextKeyConnectorId   = appctx.ContextKeyConnectorId
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
)

func GetConnectorIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyConnectorId)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetConnectorIdInContext(ctx context.Context, connectorId int) context.Context {
	return appctx.Set(ctx, ContextKeyConnectorId, connectorId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}
