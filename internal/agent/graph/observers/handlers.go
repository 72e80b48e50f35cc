package observers

import (
	einocb "github.com/cloudwego/eino/callbacks"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"
)

// NewAllCallbacks aggregates all observer handlers (node, model, prompt) into callbacks.Handlers.
func NewAllCallbacks() []einocb.Handler {
	promptHandler := newPromptHandler()
	modelHandler := newModelHandler()

	return []einocb.Handler{
		newNodeHandler(),
		callbackHelper.NewHandlerHelper().
			ChatModel(modelHandler).
			Prompt(promptHandler).
			Handler(),
	}
}
