package prompts

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/model"
)

// NormalizeLanguage maps language names and codes onto "en" or "zh".
func NormalizeLanguage(lang string) string {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "zh", "zh-cn", "zh_cn", "cn", "chinese", "中文":
		return "zh"
	default:
		return "en"
	}
}

// LanguageName is the word the prompts use for the output language.
func LanguageName(lang string) string {
	if NormalizeLanguage(lang) == "zh" {
		return "Chinese"
	}
	return "English"
}

// MemoryView is the slice of session memory shown to the models.
type MemoryView struct {
	Topics    []string
	Knowledge []string
}

// ViewOf selects the most frequent topics and the most recent knowledge entries.
// Non-positive limits show nothing of that kind.
func ViewOf(mem model.MemoryState, cfg model.MemoryConfig) MemoryView {
	var v MemoryView
	if cfg.PromptTopics > 0 && len(mem.TopicCounts) > 0 {
		topics := mem.ActiveTopics()
		sort.Slice(topics, func(i, j int) bool {
			ci, cj := mem.TopicCounts[topics[i]], mem.TopicCounts[topics[j]]
			if ci != cj {
				return ci > cj
			}
			return topics[i] < topics[j]
		})
		if len(topics) > cfg.PromptTopics {
			topics = topics[:cfg.PromptTopics]
		}
		v.Topics = topics
	}
	if cfg.PromptKnowledge > 0 && len(mem.BackgroundKnowledge) > 0 {
		n := min(cfg.PromptKnowledge, len(mem.BackgroundKnowledge))
		v.Knowledge = append([]string(nil), mem.BackgroundKnowledge[:n]...)
	}
	return v
}

func (v MemoryView) vars() map[string]any {
	return map[string]any{
		"Topics":    strings.Join(v.Topics, ", "),
		"Knowledge": strings.Join(v.Knowledge, " | "),
	}
}

// render formats a system template and a user template through the Eino
// prompt component so prompt callbacks fire.
func render(ctx context.Context, name, system, user string, vars map[string]any) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(system),
		schema.UserMessage(user),
	)
	msgs, err := tpl.Format(model.ComponentContext(ctx, name, components.ComponentOfPrompt), vars)
	if err != nil {
		return nil, fmt.Errorf("%s prompt render: %w", name, err)
	}
	if len(msgs) != 2 || msgs[0] == nil || msgs[1] == nil {
		return nil, fmt.Errorf("%s prompt render: empty result", name)
	}
	return msgs, nil
}
