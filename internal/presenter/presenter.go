// Package presenter renders pipeline reports for a terminal.
package presenter

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/graph"
	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/model"
)

const rule = "----------------------------------------"

// Presenter writes reports as text or JSON.
type Presenter struct {
	w       io.Writer
	json    bool
	verbose bool
}

type Option func(*Presenter)

// WithJSON switches output to one JSON document per report.
func WithJSON() Option {
	return func(p *Presenter) { p.json = true }
}

// WithVerbose adds per-call usage and memory details to text output.
func WithVerbose() Option {
	return func(p *Presenter) { p.verbose = true }
}

func New(w io.Writer, opts ...Option) *Presenter {
	p := &Presenter{w: w}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Report renders one run. A nil report renders only the error.
func (p *Presenter) Report(r *model.Report, err error) error {
	if p.json {
		return p.encode(reportDoc{Report: r, Error: errString(err)})
	}
	if r == nil {
		if err == nil {
			return nil
		}
		_, werr := fmt.Fprintf(p.w, "error: %v\n", err)
		return werr
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", rule)
	pre := r.Preprocess
	if r.ParseFailed {
		b.WriteString("classification: unavailable (forcing heavy model)\n")
	} else {
		fmt.Fprintf(&b, "type: %s", pre.QuestionType)
		if pre.ChoiceType != "" && pre.ChoiceType != model.ChoiceNone {
			fmt.Fprintf(&b, " (%s)", pre.ChoiceType)
		}
		fmt.Fprintf(&b, "  confidence: %.2f\n", pre.Confidence)
		if pre.Question != "" {
			fmt.Fprintf(&b, "question: %s\n", pre.Question)
		}
		for _, o := range pre.Options {
			fmt.Fprintf(&b, "  %s. %s\n", o.Label, o.Text)
		}
	}

	if r.StageMode == model.StageSingle {
		fmt.Fprintf(&b, "mode: single-stage on %s\n", r.Decision.ChosenModel)
	} else {
		fmt.Fprintf(&b, "recommended: %s  thinking: %d  chosen: %s\n",
			pre.RecommendedModel, pre.SuggestedThinkingLength, r.Decision.ChosenModel)
	}

	switch {
	case r.Skipped:
		b.WriteString("skipped: not a question")
		if pre.ContentSummary != "" {
			fmt.Fprintf(&b, " (%s)", pre.ContentSummary)
		}
		b.WriteString("\n")
	case r.Answer != nil:
		a := r.Answer
		fmt.Fprintf(&b, "answer: %s\n", a.Answer)
		if a.Explanation != "" {
			fmt.Fprintf(&b, "explanation: %s\n", a.Explanation)
		}
		fmt.Fprintf(&b, "answered by: %s", a.UsedModel)
		if a.FellBack {
			b.WriteString(" (fell back after heavy timeout)")
		}
		fmt.Fprintf(&b, "  confidence: %.2f\n", a.Confidence)
	}
	if r.Error != "" {
		fmt.Fprintf(&b, "error [%s]: %s\n", r.ErrorKind, r.Error)
	}

	if p.verbose {
		fmt.Fprintf(&b, "topics: %s\n", joinOr(r.ActiveTopics, "(none)"))
		fmt.Fprintf(&b, "knowledge: %s\n", joinOr(r.Knowledge, "(none)"))
		for _, u := range r.Usage {
			fmt.Fprintf(&b, "  %-10s %-22s in=%d out=%d $%.6f\n",
				u.Stage, u.Model, u.PromptTokens, u.CompletionTokens, u.CostUSD)
		}
	}
	fmt.Fprintf(&b, "cost: $%.6f  elapsed: %s\n", r.TotalCostUSD, r.Elapsed.Round(time.Millisecond))

	_, werr := io.WriteString(p.w, b.String())
	return werr
}

// Stats renders the lane counters.
func (p *Presenter) Stats(s graph.LaneStats) error {
	if p.json {
		return p.encode(s)
	}
	_, err := fmt.Fprintf(p.w, "runs: %d  fast: %d  heavy: %d  fell back: %d  skipped: %d  failed: %d\n",
		s.Runs, s.Fast, s.Heavy, s.FellBack, s.Skipped, s.Failed)
	return err
}

// Memory renders the topic counts, most frequent first, and the knowledge list.
func (p *Presenter) Memory(m model.MemoryState) error {
	if p.json {
		return p.encode(m)
	}
	topics := m.ActiveTopics()
	sort.Slice(topics, func(i, j int) bool {
		ci, cj := m.TopicCounts[topics[i]], m.TopicCounts[topics[j]]
		if ci != cj {
			return ci > cj
		}
		return topics[i] < topics[j]
	})

	var b strings.Builder
	fmt.Fprintf(&b, "topics (%d total):\n", m.TopicTotalCount)
	if len(topics) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, t := range topics {
		fmt.Fprintf(&b, "  %-30s %d\n", t, m.TopicCounts[t])
	}
	b.WriteString("knowledge:\n")
	if len(m.BackgroundKnowledge) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, k := range m.BackgroundKnowledge {
		fmt.Fprintf(&b, "  - %s\n", k)
	}
	_, err := io.WriteString(p.w, b.String())
	return err
}

// History renders recorded runs, oldest first.
func (p *Presenter) History(entries []model.HistoryEntry) error {
	if p.json {
		return p.encode(entries)
	}
	if len(entries) == 0 {
		_, err := io.WriteString(p.w, "no history\n")
		return err
	}
	var b strings.Builder
	for _, e := range entries {
		outcome := "-"
		switch {
		case e.Answer != nil:
			outcome = e.Answer.Answer
		case e.Skipped:
			outcome = "(skipped)"
		case e.ErrorKind != "":
			outcome = "(" + e.ErrorKind + ")"
		}
		fmt.Fprintf(&b, "%s  %-5s  %s  =>  %s\n",
			e.RecordedAt.Format(time.RFC3339), e.Decision.ChosenModel, clip(e.RawText, 60), outcome)
	}
	_, err := io.WriteString(p.w, b.String())
	return err
}

type reportDoc struct {
	Report *model.Report `json:"report,omitempty"`
	Error  string        `json:"error,omitempty"`
}

func (p *Presenter) encode(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func joinOr(items []string, empty string) string {
	if len(items) == 0 {
		return empty
	}
	return strings.Join(items, ", ")
}

func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
