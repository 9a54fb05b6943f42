package tools

import (
	"context"
	"strconv"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/providers"
)

// Tool is one capability the model can call by name.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) *ToolResult
}

// Invocation identifies the conversation a tool call runs for.
type Invocation struct {
	Channel string
	ChatID  string
}

type invocationKey struct{}

// WithInvocation attaches inv to ctx. Empty fields keep the value of an
// invocation already on ctx.
func WithInvocation(ctx context.Context, inv Invocation) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if outer, ok := InvocationFrom(ctx); ok {
		if inv.Channel == "" {
			inv.Channel = outer.Channel
		}
		if inv.ChatID == "" {
			inv.ChatID = outer.ChatID
		}
	}
	return context.WithValue(ctx, invocationKey{}, inv)
}

func InvocationFrom(ctx context.Context) (Invocation, bool) {
	if ctx == nil {
		return Invocation{}, false
	}
	inv, ok := ctx.Value(invocationKey{}).(Invocation)
	return inv, ok
}

// chatIDFromContext returns the numeric Telegram chat of the current call.
func chatIDFromContext(ctx context.Context) (int64, bool) {
	inv, ok := InvocationFrom(ctx)
	if !ok || inv.ChatID == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(inv.ChatID, 10, 64)
	return id, err == nil
}

func definitionOf(tool Tool) providers.ToolDefinition {
	return providers.ToolDefinition{
		Type: "function",
		Function: providers.ToolFunctionDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Parameters(),
		},
	}
}
