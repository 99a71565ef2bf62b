// Package reading turns a question into a tarot reading.
//
// A run draws cards, builds a prompt and makes one completion request. Any
// failure of that request (API error, empty answer, timeout, cancellation or
// a panic in the completer) is absorbed: the caller receives an offline
// reading composed from the same cards, flagged with IsOffline. Generate and
// GenerateQuick never return an error.
package reading

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arcanaland/oracle/internal/card"
	"github.com/arcanaland/oracle/internal/catalog"
	"github.com/arcanaland/oracle/internal/completion"
	"github.com/arcanaland/oracle/internal/prompt"
)

// Policy defaults
const (
	Temperature    = 0.7
	FullMaxTokens  = 1000
	QuickMaxTokens = 200
	FullSpreadSize = 3
	DefaultTimeout = 30 * time.Second
)

var errBlankReading = errors.New("completion returned blank text")

// Options overrides the policy defaults; zero fields keep the default.
type Options struct {
	Temperature    float64
	FullMaxTokens  int
	QuickMaxTokens int
	Timeout        time.Duration
}

func (o Options) withDefaults() Options {
	if o.Temperature <= 0 {
		o.Temperature = Temperature
	}
	if o.FullMaxTokens <= 0 {
		o.FullMaxTokens = FullMaxTokens
	}
	if o.QuickMaxTokens <= 0 {
		o.QuickMaxTokens = QuickMaxTokens
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Pipeline orchestrates draw, prompt, request and fallback.
// It holds no per-call state; concurrent calls do not coordinate.
type Pipeline struct {
	completer completion.Completer
	picker    *catalog.Picker
	opts      Options
	now       func() time.Time
	logger    *zap.Logger
}

type Option func(*Pipeline)

func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock replaces time.Now for timestamps
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

func WithOptions(o Options) Option {
	return func(p *Pipeline) {
		p.opts = o.withDefaults()
	}
}

func New(completer completion.Completer, picker *catalog.Picker, opts ...Option) *Pipeline {
	p := &Pipeline{
		completer: completer,
		picker:    picker,
		opts:      Options{}.withDefaults(),
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Generate produces a three-card reading
func (p *Pipeline) Generate(ctx context.Context, question string) Result {
	return p.GenerateWith(ctx, question, nil)
}

// GenerateWith produces a reading over the given cards, drawing a fresh
// spread when cards is empty
func (p *Pipeline) GenerateWith(ctx context.Context, question string, cards []card.Card) Result {
	p.transition(Drawing, question)
	if len(cards) == 0 {
		cards = p.picker.Draw(FullSpreadSize)
	} else {
		cards = append([]card.Card(nil), cards...)
	}

	p.transition(Prompting, question)
	pr := prompt.Full(question, cards)

	p.transition(Requesting, question)
	text, err := p.request(ctx, pr, p.opts.FullMaxTokens)
	if err != nil {
		p.fallenBack("reading", question, err)
		return Result{
			Outcome: FallenBack,
			Cause:   err,
			Reading: Reading{
				Reading:   FallbackText(question, cards),
				Cards:     cards,
				Timestamp: p.timestamp(),
				Question:  question,
				IsOffline: true,
			},
		}
	}

	p.transition(StateSucceeded, question)
	return Result{
		Outcome: Succeeded,
		Reading: Reading{
			Reading:   text,
			Cards:     cards,
			Timestamp: p.timestamp(),
			Question:  question,
		},
	}
}

// GenerateQuick produces a single-card reading
func (p *Pipeline) GenerateQuick(ctx context.Context, question string) QuickResult {
	p.transition(Drawing, question)
	c := p.picker.Pick()

	p.transition(Prompting, question)
	pr := prompt.Quick(question, c)

	p.transition(Requesting, question)
	text, err := p.request(ctx, pr, p.opts.QuickMaxTokens)
	if err != nil {
		p.fallenBack("quick reading", question, err)
		return QuickResult{
			Outcome: FallenBack,
			Cause:   err,
			Reading: QuickReading{
				Reading:   QuickFallbackText(c),
				Card:      c,
				Timestamp: p.timestamp(),
				Question:  question,
				IsOffline: true,
			},
		}
	}

	p.transition(StateSucceeded, question)
	return QuickResult{
		Outcome: Succeeded,
		Reading: QuickReading{
			Reading:   text,
			Card:      c,
			Timestamp: p.timestamp(),
			Question:  question,
		},
	}
}

// request makes the single completion call under the pipeline timeout.
// A panic inside the completer is turned into an error.
func (p *Pipeline) request(ctx context.Context, pr prompt.Prompt, maxTokens int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("completer panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	text, err = p.completer.Complete(ctx, completion.Request{
		System:      pr.System,
		User:        pr.User,
		MaxTokens:   maxTokens,
		Temperature: p.opts.Temperature,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errBlankReading
	}
	return text, nil
}

func (p *Pipeline) timestamp() string {
	return p.now().UTC().Format(TimestampFormat)
}

func (p *Pipeline) transition(s State, question string) {
	p.logger.Debug("reading state", zap.Stringer("state", s), zap.String("question", question))
}

func (p *Pipeline) fallenBack(what, question string, err error) {
	p.logger.Debug("reading state", zap.Stringer("state", StateFallenBack), zap.String("question", question))
	p.logger.Warn("completion failed, using offline "+what,
		zap.String("question", question),
		zap.Error(err))
}
