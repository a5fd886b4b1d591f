// Package generation implements core.Generator on top of a model.Model by
// rendering the discussion prompts and post-processing the replies.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/internal/util"
	"github.com/hupe1980/roundtable/logging"
	"github.com/hupe1980/roundtable/model"
)

// ErrEmptyResponse is returned when the model produced no usable text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Options configures a Service.
type Options struct {
	// Timeout bounds every model call. 0 disables the bound.
	Timeout time.Duration
	// Words is the target length of a bot contribution.
	Words int
	// MaxTokens caps response tokens; analysis and summaries get twice as many.
	MaxTokens int64
	// Stream requests streaming responses from the provider.
	Stream bool
	// AnalysisWindow limits analysis to the most recent messages. 0 analyzes
	// the whole transcript.
	AnalysisWindow int
	// MaskLimit truncates prompts written to debug logs.
	MaskLimit int
	Logger    logging.Logger
}

// Service renders prompts and calls the model.
type Service struct {
	model  model.Model
	opts   Options
	logger logging.Logger
}

var _ core.Generator = (*Service)(nil)

// New creates a Service backed by m.
func New(m model.Model, optFns ...func(o *Options)) *Service {
	opts := Options{
		Timeout:   2 * time.Minute,
		Words:     120,
		MaxTokens: 512,
		MaskLimit: 200,
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Service{model: m, opts: opts, logger: logging.OrNoOp(opts.Logger)}
}

// Info describes the backing model.
func (s *Service) Info() model.Info { return s.model.Info() }

// Generate produces the next contribution for bot.
func (s *Service) Generate(ctx context.Context, bot core.Bot, history core.CompressedHistory, topic string) (string, error) {
	prompt, err := util.RenderTemplate(responsePrompt, map[string]any{
		"Topic":       topic,
		"Name":        bot.Name,
		"Role":        bot.Role,
		"Description": bot.Description,
		"Summary":     history.Summary,
		"History":     FormatHistory(history.Recent),
		"User":        core.UserSpeaker,
		"Words":       s.opts.Words,
	})
	if err != nil {
		return "", err
	}
	text, err := s.complete(ctx, "generate", prompt, s.opts.MaxTokens)
	if err != nil {
		return "", err
	}
	text = stripSpeakerPrefix(text, bot.Name)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// SummarizeFull compresses an entire transcript.
func (s *Service) SummarizeFull(ctx context.Context, topic string, history []core.Message, names []string) (string, error) {
	prompt, err := util.RenderTemplate(summaryPrompt, map[string]any{
		"Topic":        topic,
		"Participants": names,
		"History":      FormatHistory(history),
	})
	if err != nil {
		return "", err
	}
	return s.complete(ctx, "summarize_full", prompt, 2*s.opts.MaxTokens)
}

// SummarizeIncremental merges newSlice into prior.
func (s *Service) SummarizeIncremental(ctx context.Context, topic, prior string, newSlice []core.Message, names []string) (string, error) {
	prompt, err := util.RenderTemplate(incrementalSummaryPrompt, map[string]any{
		"Topic":        topic,
		"Participants": names,
		"Prior":        prior,
		"History":      FormatHistory(newSlice),
	})
	if err != nil {
		return "", err
	}
	return s.complete(ctx, "summarize_incremental", prompt, 2*s.opts.MaxTokens)
}

// Analyze returns the raw JSON text produced by the model. With an
// AnalysisWindow shorter than history only the most recent messages are sent.
func (s *Service) Analyze(ctx context.Context, topic string, history []core.Message, names []string) (string, error) {
	if w := s.opts.AnalysisWindow; w > 0 && len(history) > w {
		return s.AnalyzeRecent(ctx, topic, history, names, w)
	}
	prompt, err := util.RenderTemplate(analysisPrompt, map[string]any{
		"Topic":        topic,
		"Participants": names,
		"History":      FormatHistory(history),
		"User":         core.UserSpeaker,
	})
	if err != nil {
		return "", err
	}
	return s.complete(ctx, "analyze", prompt, 2*s.opts.MaxTokens)
}

// AnalyzeRecent analyzes only the last window messages of history. The
// reply has the same JSON shape as Analyze.
func (s *Service) AnalyzeRecent(ctx context.Context, topic string, history []core.Message, names []string, window int) (string, error) {
	recent, omitted := RecentWindow(history, window)
	prompt, err := util.RenderTemplate(recentAnalysisPrompt, map[string]any{
		"Topic":        topic,
		"Participants": names,
		"History":      FormatHistory(recent),
		"Omitted":      omitted,
		"User":         core.UserSpeaker,
	})
	if err != nil {
		return "", err
	}
	return s.complete(ctx, "analyze_recent", prompt, 2*s.opts.MaxTokens)
}

// RecentWindow returns the last window messages and how many were left out.
// A window <= 0 keeps everything.
func RecentWindow(msgs []core.Message, window int) ([]core.Message, int) {
	if window <= 0 || len(msgs) <= window {
		return msgs, 0
	}
	return msgs[len(msgs)-window:], len(msgs) - window
}

// Ping checks that the model answers at all.
func (s *Service) Ping(ctx context.Context) error {
	_, err := s.complete(ctx, "ping", "Reply with the single word: ready", 8)
	return err
}

func (s *Service) complete(ctx context.Context, op, prompt string, maxTokens int64) (string, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	req := model.UserRequest(systemPrompt, prompt)
	req.Stream = s.opts.Stream
	req.MaxTokens = maxTokens

	s.logger.Debug("Model request", "operation", op, "prompt", MaskPrompt(prompt, s.opts.MaskLimit))

	start := time.Now()
	resp, err := model.Collect(ctx, s.model, req)
	s.logCall(op, time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyResponse)
	}
	return text, nil
}

func (s *Service) logCall(op string, dur time.Duration, err error) {
	if sl, ok := s.logger.(*logging.StructuredLogger); ok {
		sl.LogModelCall(op, s.model.Info().String(), dur, err)
		return
	}
	if err != nil {
		s.logger.Error("Model call failed", "operation", op, "duration", dur, "error", err)
		return
	}
	s.logger.Debug("Model call completed", "operation", op, "duration", dur)
}

// FormatHistory renders messages one per line as "speaker: text".
func FormatHistory(msgs []core.Message) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteByte('\n')
		}
		speaker := m.Speaker
		if m.IsUser {
			speaker = core.UserSpeaker
		}
		b.WriteString(speaker)
		b.WriteString(": ")
		b.WriteString(m.Text)
	}
	return b.String()
}

// MaskPrompt shortens long prompts for logging, keeping the head and tail.
func MaskPrompt(prompt string, limit int) string {
	runes := []rune(prompt)
	if limit <= 0 || len(runes) <= limit {
		return prompt
	}
	half := limit / 2
	return fmt.Sprintf("%s ...[%d chars masked]... %s",
		string(runes[:half]), len(runes)-2*half, string(runes[len(runes)-half:]))
}

// stripSpeakerPrefix removes a leading "Name:" the model may echo.
func stripSpeakerPrefix(text, name string) string {
	text = strings.TrimSpace(text)
	for _, prefix := range []string{name + ":", name + "："} {
		if strings.HasPrefix(text, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(text, prefix))
		}
	}
	return text
}
