package ctxutil

import "context"

type traceDataKey struct{}

// TraceData travels on the request context so logs and provider spans can be
// correlated with the inbound request and conversation.
type TraceData struct {
	TraceID        string
	RequestID      string
	ConversationID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	val := ctx.Value(traceDataKey{})
	if td, ok := val.(*TraceData); ok {
		return td
	}
	return nil
}

// LogFields returns request_id/trace_id/conversation_id pairs for whatever is
// set on ctx, ready to pass to logger.With.
func LogFields(ctx context.Context) []interface{} {
	td := GetTraceData(ctx)
	if td == nil {
		return nil
	}
	out := make([]interface{}, 0, 6)
	if td.RequestID != "" {
		out = append(out, "request_id", td.RequestID)
	}
	if td.TraceID != "" {
		out = append(out, "trace_id", td.TraceID)
	}
	if td.ConversationID != "" {
		out = append(out, "conversation_id", td.ConversationID)
	}
	return out
}
