package logger

import "context"

type contextKey string

const ConversationIDKey contextKey = "conversation_id"

// WithConversationID tags a context so every turn it starts logs under the
// owning conversation.
func WithConversationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ConversationIDKey, id)
}

func GetConversationID(ctx context.Context) string {
	if id, ok := ctx.Value(ConversationIDKey).(string); ok {
		return id
	}
	return ""
}
