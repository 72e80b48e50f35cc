package prompts

import (
	"context"
	_ "embed"

	"github.com/cloudwego/eino/schema"
)

//go:embed template/preprocess_prompt.txt
var preprocessSystemPrompt string

const recognizedTextPrompt = "Original recognized text:\n{{ .Text }}"

// RenderPreprocess renders the classification prompt for one piece of recognised text.
func RenderPreprocess(ctx context.Context, raw string, mem MemoryView) ([]*schema.Message, error) {
	vars := mem.vars()
	vars["Text"] = raw
	return render(ctx, "preprocess", preprocessSystemPrompt, recognizedTextPrompt, vars)
}
