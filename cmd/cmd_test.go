package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanaland/oracle/internal/card"
	"github.com/arcanaland/oracle/internal/catalog"
	"github.com/arcanaland/oracle/internal/reading"
	"github.com/arcanaland/oracle/internal/session"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// fakeOracle answers without a completion API.
type fakeOracle struct {
	full, quick int
	onGenerate  func()
}

func (f *fakeOracle) Generate(ctx context.Context, question string) reading.Result {
	f.full++
	if f.onGenerate != nil {
		f.onGenerate()
	}
	cards := catalog.Default().Cards()[:3]
	return reading.Result{
		Outcome: reading.Succeeded,
		Reading: reading.Reading{Reading: "The cards agree.", Cards: cards, Question: question, Timestamp: "2026-03-14T09:26:53.589Z"},
	}
}

func (f *fakeOracle) GenerateQuick(ctx context.Context, question string) reading.QuickResult {
	f.quick++
	return reading.QuickResult{
		Outcome: reading.FallenBack,
		Reading: reading.QuickReading{Reading: "Trust it.", Card: catalog.Default().At(0), Question: question, IsOffline: true},
	}
}

func openTestStore(t *testing.T) *session.Store {
	t.Helper()
	store, err := session.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRunChat_FullThenQuick(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	oracle := &fakeOracle{}
	in := strings.NewReader("Will I move abroad?\n\nWhen?\nexit\nnever read\n")
	var out bytes.Buffer

	require.NoError(t, runChat(ctx, in, &out, "u1", oracle, store))
	assert.Equal(t, 1, oracle.full)
	assert.Equal(t, 1, oracle.quick)
	assert.Contains(t, out.String(), "The cards agree.")
	assert.Contains(t, out.String(), "Trust it.")

	sessions, err := store.ListSessions(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "Will I move abroad", sessions[0].Title)

	var payload reading.Reading
	require.NoError(t, json.Unmarshal(sessions[0].ReadingData, &payload))
	assert.Equal(t, "Will I move abroad?", payload.Question)

	msgs, err := store.Messages(ctx, sessions[0].ID)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, []string{session.RoleUser, session.RoleOracle, session.RoleUser, session.RoleOracle},
		[]string{msgs[0].Role, msgs[1].Role, msgs[2].Role, msgs[3].Role})
	assert.Len(t, msgs[1].Cards, 3)
	assert.False(t, msgs[1].Offline)
	assert.Equal(t, "When?", msgs[2].Content)
	assert.Equal(t, []card.Card{catalog.Default().At(0)}, msgs[3].Cards)
	assert.True(t, msgs[3].Offline)
}

func TestRunChat_EOF(t *testing.T) {
	store := openTestStore(t)
	oracle := &fakeOracle{}

	require.NoError(t, runChat(context.Background(), strings.NewReader(""), &bytes.Buffer{}, "u1", oracle, store))
	assert.Zero(t, oracle.full)
}

func TestRunChat_OverlongLine(t *testing.T) {
	store := openTestStore(t)
	oracle := &fakeOracle{}
	in := strings.NewReader("First question?\n" + strings.Repeat("a", maxChatLine+1) + "\n")

	err := runChat(context.Background(), in, &bytes.Buffer{}, "u1", oracle, store)
	assert.ErrorIs(t, err, bufio.ErrTooLong)
	assert.Equal(t, 1, oracle.full, "questions before the long line are still answered")
}

func TestRunChat_LongQuestionWithinLimit(t *testing.T) {
	store := openTestStore(t)
	oracle := &fakeOracle{}
	in := strings.NewReader(strings.Repeat("b", 100*1024) + "\n")

	require.NoError(t, runChat(context.Background(), in, &bytes.Buffer{}, "u1", oracle, store))
	assert.Equal(t, 1, oracle.full)
}

func TestRunChat_CancelDuringReadingSavesNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := openTestStore(t)
	oracle := &fakeOracle{onGenerate: cancel}

	require.NoError(t, runChat(ctx, strings.NewReader("Is it over?\n"), &bytes.Buffer{}, "u1", oracle, store))
	assert.Equal(t, 1, oracle.full)

	sessions, err := store.ListSessions(context.Background(), "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestResolveSession(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	mine, err := store.CreateSession(ctx, "u1", "mine")
	require.NoError(t, err)
	theirs, err := store.CreateSession(ctx, "u2", "theirs")
	require.NoError(t, err)

	got, err := resolveSession(ctx, store, "u1", mine.ID)
	require.NoError(t, err)
	assert.Equal(t, mine.ID, got.ID)

	got, err = resolveSession(ctx, store, "u1", mine.ID[:6])
	require.NoError(t, err)
	assert.Equal(t, mine.ID, got.ID)

	_, err = resolveSession(ctx, store, "u1", theirs.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)

	_, err = resolveSession(ctx, store, "u1", "zzzz")
	assert.ErrorIs(t, err, session.ErrNotFound)

	for _, ref := range []string{"", "  "} {
		_, err = resolveSession(ctx, store, "u1", ref)
		assert.ErrorContains(t, err, "session id cannot be empty", "ref %q", ref)
	}
}

func TestReadingMessages(t *testing.T) {
	r := reading.Reading{Question: "q", Reading: "r", Cards: catalog.Default().Cards()[:3], IsOffline: true}
	msgs := readingMessages(r)

	require.Len(t, msgs, 2)
	assert.Equal(t, session.Message{Role: session.RoleUser, Content: "q"}, msgs[0])
	assert.Equal(t, "r", msgs[1].Content)
	assert.True(t, msgs[1].Offline)
	assert.Len(t, msgs[1].Cards, 3)
}

func TestPrintValidation(t *testing.T) {
	var out bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&out)

	require.NoError(t, printValidation(c, "built-in catalog", catalog.Default().Cards()))
	assert.Contains(t, out.String(), "is valid (28 cards)")
	assert.NotContains(t, out.String(), "missing major arcana", "the built-in catalog has every major card")

	out.Reset()
	err := printValidation(c, "broken.toml", []card.Card{{Name: "X", Suit: "Coins", Number: 1, Meaning: "m"}})
	assert.EqualError(t, err, "validation failed")
	assert.Contains(t, out.String(), "has 1 validation errors")
}
