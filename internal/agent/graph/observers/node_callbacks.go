package observers

import (
	"context"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"

	logx "github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/pkg/logger"
)

type startKey struct{ name string }

// newNodeHandler logs graph node lifecycle with elapsed time.
func newNodeHandler() einocb.Handler {
	return einocb.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *einocb.RunInfo, _ einocb.CallbackInput) context.Context {
			if !isNode(info) {
				return ctx
			}
			logx.Debug().Str("node", info.Name).Str("type", info.Type).Msg("node start")
			return context.WithValue(ctx, startKey{info.Name}, time.Now())
		}).
		OnEndFn(func(ctx context.Context, info *einocb.RunInfo, _ einocb.CallbackOutput) context.Context {
			if !isNode(info) {
				return ctx
			}
			ev := logx.Debug().Str("node", info.Name)
			if start, ok := ctx.Value(startKey{info.Name}).(time.Time); ok {
				ev = ev.Dur("elapsed", time.Since(start))
			}
			ev.Msg("node end")
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			if !isNode(info) {
				return ctx
			}
			logx.Error().Err(err).Str("node", info.Name).Msg("node error")
			return ctx
		}).
		Build()
}

// isNode filters out chat model and prompt events; those have typed handlers.
func isNode(info *einocb.RunInfo) bool {
	if info == nil {
		return false
	}
	return info.Component != components.ComponentOfChatModel && info.Component != components.ComponentOfPrompt
}
