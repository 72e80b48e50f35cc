package prompts

import (
	"context"
	_ "embed"

	"github.com/cloudwego/eino/schema"
)

//go:embed template/single_stage_prompt.txt
var singleStageSystemPrompt string

// RenderSingleStage renders the combined review and answer prompt.
func RenderSingleStage(ctx context.Context, raw string, mem MemoryView, language string) ([]*schema.Message, error) {
	vars := mem.vars()
	vars["Text"] = raw
	vars["Language"] = LanguageName(language)
	return render(ctx, "single stage", singleStageSystemPrompt, recognizedTextPrompt, vars)
}
