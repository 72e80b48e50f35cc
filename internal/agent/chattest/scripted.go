// Package chattest provides a scripted chat model for exercising the
// pipeline without a provider.
package chattest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ErrScriptExhausted is returned once every scripted step has been used.
var ErrScriptExhausted = errors.New("chattest: script exhausted")

// Step is one scripted reply: either Content or Err.
type Step struct {
	Content string
	Err     error
	Usage   *schema.TokenUsage
}

// Reply scripts a successful response body.
func Reply(content string) Step { return Step{Content: content} }

// Fail scripts an error.
func Fail(err error) Step { return Step{Err: err} }

// Timeout scripts an expired deadline.
func Timeout() Step { return Step{Err: context.DeadlineExceeded} }

// Model replays Steps in order and records every call.
type Model struct {
	mu    sync.Mutex
	steps []Step
	calls [][]*schema.Message
}

var _ einomodel.BaseChatModel = (*Model)(nil)

func New(steps ...Step) *Model {
	return &Model{steps: steps}
}

func (m *Model) Generate(ctx context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, input)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(m.steps) == 0 {
		return nil, ErrScriptExhausted
	}
	step := m.steps[0]
	m.steps = m.steps[1:]
	if step.Err != nil {
		return nil, step.Err
	}
	msg := schema.AssistantMessage(step.Content, nil)
	if step.Usage != nil {
		msg.ResponseMeta = &schema.ResponseMeta{Usage: step.Usage}
	}
	return msg, nil
}

func (m *Model) Stream(context.Context, []*schema.Message, ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("chattest: stream not supported")
}

// Calls returns how many times Generate was called.
func (m *Model) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Inputs returns the messages of the i-th call.
func (m *Model) Inputs(i int) []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.calls) {
		return nil
	}
	return m.calls[i]
}

// Remaining returns how many scripted steps are unused.
func (m *Model) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.steps)
}
