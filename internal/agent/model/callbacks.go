package model

import (
	"context"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
)

// ComponentContext rescopes the callback handlers carried by ctx to a component
// called from inside a lambda node, so typed observers see a chat model or
// prompt instead of the enclosing node.
func ComponentContext(ctx context.Context, name string, comp components.Component) context.Context {
	return callbacks.ReuseHandlers(ctx, &callbacks.RunInfo{
		Name:      name,
		Type:      name,
		Component: comp,
	})
}
