package utils

import (
	"context"

	"github.com/gin-gonic/gin"
)

type CustomContext struct {
	AppSource  string
	UserId     string
	PetId      string
	MessageKey string
}

type customContextKeyType string

const customContextKey customContextKeyType = "CUSTOM_CONTEXT"

func WithCustomContext(ctx context.Context, customContext *CustomContext) context.Context {
	return context.WithValue(ctx, customContextKey, customContext)
}

func WithCustomContextFromGinRequest(c *gin.Context, appSource string) context.Context {
	customContext := &CustomContext{
		AppSource: appSource,
		UserId:    c.GetString("UserId"),
	}
	return WithCustomContext(c.Request.Context(), customContext)
}

func GetContext(ctx context.Context) *CustomContext {
	customContext, ok := ctx.Value(customContextKey).(*CustomContext)
	if !ok {
		return new(CustomContext)
	}
	return customContext
}

func GetAppSourceFromContext(ctx context.Context) string {
	return GetContext(ctx).AppSource
}

func GetUserIdFromContext(ctx context.Context) string {
	return GetContext(ctx).UserId
}

func GetPetIdFromContext(ctx context.Context) string {
	return GetContext(ctx).PetId
}

func GetMessageKeyFromContext(ctx context.Context) string {
	return GetContext(ctx).MessageKey
}

// WithPet returns a copy of the context carrying the resolved pet and its owner.
func WithPet(ctx context.Context, petId, userId string) context.Context {
	current := GetContext(ctx)
	next := *current
	next.PetId = petId
	next.UserId = userId
	return WithCustomContext(ctx, &next)
}

func WithMessageKey(ctx context.Context, messageKey string) context.Context {
	current := GetContext(ctx)
	next := *current
	next.MessageKey = messageKey
	return WithCustomContext(ctx, &next)
}
