package reading_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanaland/oracle/internal/card"
	"github.com/arcanaland/oracle/internal/catalog"
	"github.com/arcanaland/oracle/internal/completion"
	"github.com/arcanaland/oracle/internal/prompt"
	"github.com/arcanaland/oracle/internal/reading"
)

type stubCompleter struct {
	mu    sync.Mutex
	text  string
	err   error
	panic any
	wait  bool
	reqs  []completion.Request
}

func (s *stubCompleter) Complete(ctx context.Context, req completion.Request) (string, error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()

	if s.panic != nil {
		panic(s.panic)
	}
	if s.wait {
		<-ctx.Done()
		return "", &completion.Error{Kind: completion.KindTransport, Err: ctx.Err()}
	}
	return s.text, s.err
}

func (s *stubCompleter) requests() []completion.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]completion.Request(nil), s.reqs...)
}

// sequenceRNG returns values from a pre-set sequence.
type sequenceRNG struct {
	mu     sync.Mutex
	values []int
	idx    int
}

func (r *sequenceRNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.values[r.idx%len(r.values)] % n
	r.idx++
	return v
}

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

func newPipeline(c completion.Completer, draws ...int) *reading.Pipeline {
	if len(draws) == 0 {
		draws = []int{0, 22, 17}
	}
	picker := catalog.NewPicker(catalog.Default(), &sequenceRNG{values: draws})
	return reading.New(c, picker, reading.WithClock(func() time.Time { return fixedNow }))
}

func TestGenerate_Success(t *testing.T) {
	stub := &stubCompleter{text: "The cards speak clearly."}
	p := newPipeline(stub)

	res := p.Generate(context.Background(), "Will I find love?")

	require.Equal(t, reading.Succeeded, res.Outcome)
	assert.NoError(t, res.Cause)

	r := res.Reading
	assert.Equal(t, "The cards speak clearly.", r.Reading)
	assert.Equal(t, "Will I find love?", r.Question)
	assert.False(t, r.IsOffline)
	assert.Equal(t, "2026-03-14T09:26:53.589Z", r.Timestamp)

	ts, err := reading.ParseTimestamp(r.Timestamp)
	require.NoError(t, err)
	assert.True(t, ts.Equal(fixedNow))

	require.Len(t, r.Cards, 3)
	assert.Equal(t, []string{"The Fool", "Ace of Cups", "The Star"},
		[]string{r.Cards[0].Name, r.Cards[1].Name, r.Cards[2].Name})

	reqs := stub.requests()
	require.Len(t, reqs, 1)
	want := prompt.Full("Will I find love?", r.Cards)
	assert.Equal(t, want.System, reqs[0].System)
	assert.Equal(t, want.User, reqs[0].User)
	assert.Equal(t, reading.FullMaxTokens, reqs[0].MaxTokens)
	assert.InDelta(t, reading.Temperature, reqs[0].Temperature, 1e-9)
}

func TestGenerate_SuccessJSONHasNoOfflineKey(t *testing.T) {
	p := newPipeline(&stubCompleter{text: "The cards speak clearly."})

	data, err := json.Marshal(p.Generate(context.Background(), "Will I find love?").Reading)
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.NotContains(t, payload, "isOffline")
	assert.Equal(t, "Will I find love?", payload["question"])
	assert.Len(t, payload["cards"], 3)
}

func TestGenerate_FallbackOnCompletionError(t *testing.T) {
	kinds := []error{
		&completion.Error{Kind: completion.KindAPI, Status: 500, Message: "boom"},
		&completion.Error{Kind: completion.KindEmptyResponse},
		&completion.Error{Kind: completion.KindTransport, Err: errors.New("dial tcp: connection refused")},
		errors.New("something unexpected"),
	}

	for _, cause := range kinds {
		t.Run(cause.Error(), func(t *testing.T) {
			stub := &stubCompleter{err: cause}
			p := newPipeline(stub)

			res := p.Generate(context.Background(), "test question")

			assert.Equal(t, reading.FallenBack, res.Outcome)
			assert.ErrorIs(t, res.Cause, cause)

			r := res.Reading
			assert.True(t, r.IsOffline)
			require.Len(t, r.Cards, 3)
			assert.NotEmpty(t, r.Reading)
			for _, c := range r.Cards {
				assert.Contains(t, r.Reading, c.Name)
			}
			assert.Len(t, stub.requests(), 1, "no retry")
		})
	}
}

func TestGenerate_FallbackUsesSameCards(t *testing.T) {
	p := newPipeline(&stubCompleter{err: errors.New("down")}, 13, 16, 19)

	r := p.Generate(context.Background(), "Is change coming?").Reading

	want := strings.Join([]string{
		`I sense your energy reaching across the veil with the question: "Is change coming?"`,
		"The cosmos has drawn Death, revealing endings, beginnings, change, transformation. This card speaks to the foundation of your current situation.",
		"The Tower appears in the present position, indicating sudden change, upheaval, chaos, revelation. The energies surrounding you now are shifting.",
		"Finally, The Sun illuminates your path forward with positivity, fun, warmth, success, vitality. Trust in the wisdom these cards offer.",
		"The universe speaks through these ancient symbols. Meditate upon their message, for within their imagery lies the guidance you seek. Remember, dear seeker, you hold the power to shape your destiny.",
	}, "\n\n")

	assert.Equal(t, want, r.Reading)
	assert.Equal(t, []string{"Death", "The Tower", "The Sun"},
		[]string{r.Cards[0].Name, r.Cards[1].Name, r.Cards[2].Name})
}

func TestGenerate_BlankTextFallsBack(t *testing.T) {
	for _, text := range []string{"", " \n\t "} {
		res := newPipeline(&stubCompleter{text: text}).Generate(context.Background(), "q")

		assert.Equal(t, reading.FallenBack, res.Outcome, "text %q", text)
		assert.True(t, res.Reading.IsOffline, "text %q", text)
		assert.NotEmpty(t, strings.TrimSpace(res.Reading.Reading), "text %q", text)

		quick := newPipeline(&stubCompleter{text: text}).GenerateQuick(context.Background(), "q")
		assert.Equal(t, reading.FallenBack, quick.Outcome, "text %q", text)
	}
}

func TestGenerate_PanicFallsBack(t *testing.T) {
	p := newPipeline(&stubCompleter{panic: "network layer exploded"})

	var res reading.Result
	require.NotPanics(t, func() {
		res = p.Generate(context.Background(), "q")
	})

	assert.Equal(t, reading.FallenBack, res.Outcome)
	assert.Contains(t, res.Cause.Error(), "network layer exploded")
	assert.True(t, res.Reading.IsOffline)
}

func TestGenerate_TimeoutScenario(t *testing.T) {
	stub := &stubCompleter{wait: true}
	picker := catalog.NewPicker(catalog.Default(), &sequenceRNG{values: []int{1, 9, 20}})
	p := reading.New(stub, picker, reading.WithOptions(reading.Options{Timeout: 20 * time.Millisecond}))

	question := "What does my future hold?"
	res := p.Generate(context.Background(), question)

	assert.Equal(t, reading.FallenBack, res.Outcome)
	assert.ErrorIs(t, res.Cause, completion.ErrTransport)

	r := res.Reading
	assert.True(t, r.IsOffline)
	assert.Equal(t, question, r.Question)
	require.Len(t, r.Cards, 3)
	for _, c := range r.Cards {
		_, ok := catalog.Default().Lookup(c.Name)
		assert.True(t, ok)
		assert.Contains(t, r.Reading, c.Name)
	}
}

func TestGenerate_CancelledContextFallsBack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newPipeline(&stubCompleter{wait: true}).Generate(ctx, "q")

	assert.Equal(t, reading.FallenBack, res.Outcome)
	assert.ErrorIs(t, res.Cause, context.Canceled)
}

func TestGenerateWith_ProvidedCards(t *testing.T) {
	stub := &stubCompleter{err: errors.New("down")}
	p := newPipeline(stub)
	cards := []card.Card{
		{Name: "Two of Cups", Suit: card.SuitCups, Number: 2, Meaning: "Unified love"},
		{Name: "Strength", Suit: card.SuitMajorArcana, Number: 8, Meaning: "Courage"},
		{Name: "The World", Suit: card.SuitMajorArcana, Number: 21, Meaning: "Completion"},
	}

	r := p.GenerateWith(context.Background(), "q", cards).Reading

	assert.Equal(t, cards, r.Cards)
	assert.Contains(t, r.Reading, "revealing unified love")
	cards[0].Name = "changed"
	assert.Equal(t, "Two of Cups", r.Cards[0].Name)
}

func TestGenerate_CustomOptions(t *testing.T) {
	stub := &stubCompleter{text: "ok"}
	picker := catalog.NewPicker(catalog.Default(), nil)
	p := reading.New(stub, picker, reading.WithOptions(reading.Options{Temperature: 0.2, FullMaxTokens: 500}))

	p.Generate(context.Background(), "q")
	p.GenerateQuick(context.Background(), "q")

	reqs := stub.requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, 500, reqs[0].MaxTokens)
	assert.Equal(t, reading.QuickMaxTokens, reqs[1].MaxTokens)
	assert.InDelta(t, 0.2, reqs[1].Temperature, 1e-9)
}

func TestGenerateQuick_Success(t *testing.T) {
	stub := &stubCompleter{text: "Yes, but slowly."}
	p := newPipeline(stub, 22)

	res := p.GenerateQuick(context.Background(), "Will she call?")

	require.Equal(t, reading.Succeeded, res.Outcome)
	r := res.Reading
	assert.Equal(t, "Yes, but slowly.", r.Reading)
	assert.Equal(t, "Ace of Cups", r.Card.Name)
	assert.False(t, r.IsOffline)

	reqs := stub.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, reading.QuickMaxTokens, reqs[0].MaxTokens)
	assert.Equal(t, prompt.Quick("Will she call?", r.Card).User, reqs[0].User)
}

func TestGenerateQuick_FallbackKeepsCard(t *testing.T) {
	stub := &stubCompleter{err: &completion.Error{Kind: completion.KindEmptyResponse}}
	p := newPipeline(stub, 0, 5)

	res := p.GenerateQuick(context.Background(), "Should I leave?")

	assert.Equal(t, reading.FallenBack, res.Outcome)
	r := res.Reading
	assert.True(t, r.IsOffline)
	assert.Equal(t, "The Fool", r.Card.Name)
	assert.Equal(t, "The Fool appears, speaking of new beginnings, innocence, spontaneity. Trust in this guidance, seeker.", r.Reading)

	data, err := json.Marshal(r)
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, true, payload["isOffline"])
	assert.Contains(t, payload, "card")
	assert.NotContains(t, payload, "cards")
}

func TestQuickFallbackText_MinorArcana(t *testing.T) {
	c := card.Card{Name: "Ace of Swords", Suit: card.SuitSwords, Number: 1, Meaning: "New ideas, mental clarity, breakthrough"}

	assert.Equal(t,
		"The Ace of Swords appears, speaking of new ideas, mental clarity, breakthrough. Trust in this guidance, seeker.",
		reading.QuickFallbackText(c))
}

func TestGenerate_ConcurrentCalls(t *testing.T) {
	p := reading.New(&stubCompleter{text: "ok"}, catalog.NewPicker(catalog.Default(), nil))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := p.Generate(context.Background(), "q").Reading
			assert.Len(t, r.Cards, 3)
		}()
	}
	wg.Wait()
}

func TestStateAndOutcomeStrings(t *testing.T) {
	assert.Equal(t, "requesting", reading.Requesting.String())
	assert.Equal(t, "fallen_back", reading.StateFallenBack.String())
	assert.Equal(t, "succeeded", reading.Succeeded.String())
}
