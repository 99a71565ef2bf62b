package session_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanaland/oracle/internal/card"
	"github.com/arcanaland/oracle/internal/session"
)

// steppingClock advances one second per call so orderings are stable.
type steppingClock struct {
	t time.Time
}

func (c *steppingClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func openStore(t *testing.T, start time.Time) *session.Store {
	t.Helper()
	clock := &steppingClock{t: start}
	s, err := session.Open(filepath.Join(t.TempDir(), "oracle", "history.db"), session.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var star = card.Card{Name: "The Star", Suit: card.SuitMajorArcana, Number: 17, Meaning: "Hope"}

func TestCreateSessionAndMessages(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))

	sess, err := s.CreateSession(ctx, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, session.DefaultTitle, sess.Title)
	assert.NotEmpty(t, sess.ID)

	_, err = s.SaveMessage(ctx, sess.ID, session.Message{Role: session.RoleUser, Content: "Will I travel?"})
	require.NoError(t, err)
	saved, err := s.SaveMessage(ctx, sess.ID, session.Message{Role: session.RoleOracle, Content: "I see roads.", Cards: []card.Card{star}, Offline: true})
	require.NoError(t, err)
	assert.True(t, saved.HasCards)

	msgs, err := s.Messages(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Will I travel?", msgs[0].Content)
	assert.False(t, msgs[0].HasCards)
	assert.Nil(t, msgs[0].Cards)
	assert.Equal(t, session.RoleOracle, msgs[1].Role)
	assert.Equal(t, []card.Card{star}, msgs[1].Cards)
	assert.True(t, msgs[1].Offline)
	assert.True(t, msgs[1].Timestamp.After(msgs[0].Timestamp))

	got, err := s.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.After(sess.UpdatedAt), "saving a message bumps updated_at")
}

func TestSaveMessage_UnknownSession(t *testing.T) {
	s := openStore(t, time.Now())

	_, err := s.SaveMessage(context.Background(), "missing", session.Message{Role: session.RoleUser, Content: "hi"})
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestSave_CreateThenReplace(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))

	payload := map[string]any{"reading": "I see...", "question": "Will it work out?"}
	id, err := s.Save(ctx, "", "u1", []session.Message{
		{Role: session.RoleUser, Content: "Will it work out?"},
		{Role: session.RoleOracle, Content: "I see...", Cards: []card.Card{star}},
	}, payload)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	sess, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Will it work out", sess.Title)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(sess.ReadingData, &decoded))
	assert.Equal(t, "I see...", decoded["reading"])

	again, err := s.Save(ctx, id, "u1", []session.Message{
		{Role: session.RoleUser, Content: "Will it work out?"},
		{Role: session.RoleOracle, Content: "I see..."},
		{Role: session.RoleUser, Content: "And then?"},
		{Role: session.RoleOracle, Content: "Patience."},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	msgs, err := s.Messages(ctx, id)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "Patience.", msgs[3].Content)

	sessions, err := s.ListSessions(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestSave_UnknownID(t *testing.T) {
	s := openStore(t, time.Now())

	_, err := s.Save(context.Background(), "nope", "u1", nil, nil)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestListSessions_OrderAndLimit(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))

	first, err := s.CreateSession(ctx, "u1", "first")
	require.NoError(t, err)
	_, err = s.CreateSession(ctx, "u1", "second")
	require.NoError(t, err)
	_, err = s.CreateSession(ctx, "u2", "someone else")
	require.NoError(t, err)
	require.NoError(t, s.Rename(ctx, first.ID, "first, renamed"))

	sessions, err := s.ListSessions(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "first, renamed", sessions[0].Title)
	assert.Equal(t, "second", sessions[1].Title)

	limited, err := s.ListSessions(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestFavoriteAndDelete(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, time.Now())

	sess, err := s.CreateSession(ctx, "u1", "keep")
	require.NoError(t, err)
	_, err = s.SaveMessage(ctx, sess.ID, session.Message{Role: session.RoleUser, Content: "hi"})
	require.NoError(t, err)

	require.NoError(t, s.SetFavorite(ctx, sess.ID, true))
	got, err := s.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, got.Favorite)

	require.NoError(t, s.Delete(ctx, sess.ID))
	_, err = s.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)

	msgs, err := s.Messages(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	assert.ErrorIs(t, s.Delete(ctx, sess.ID), session.ErrNotFound)
	assert.ErrorIs(t, s.Rename(ctx, sess.ID, "x"), session.ErrNotFound)
	assert.ErrorIs(t, s.SetFavorite(ctx, sess.ID, false), session.ErrNotFound)
}

func TestUsageAndStatistics(t *testing.T) {
	ctx := context.Background()
	// The clock starts on 30 April, so the first session lands in April.
	s := openStore(t, time.Date(2026, 4, 30, 23, 59, 58, 0, time.UTC))

	_, err := s.Save(ctx, "", "u1", []session.Message{
		{Role: session.RoleUser, Content: "abcd"},       // 1 token
		{Role: session.RoleOracle, Content: "abcdefghi"}, // 3 tokens
	}, nil)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = s.Save(ctx, "", "u1", []session.Message{
			{Role: session.RoleUser, Content: "abcde"}, // 2 tokens
		}, nil)
		require.NoError(t, err)
	}

	now := time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)
	current, previous, err := s.MonthlyUsage(ctx, "u1", now)
	require.NoError(t, err)
	assert.Equal(t, 2, current.Readings)
	assert.Equal(t, 4, current.Tokens)
	assert.Equal(t, 1, previous.Readings)
	assert.Equal(t, 4, previous.Tokens)
	assert.InDelta(t, 0.000008, current.Cost(0.002), 1e-12)

	empty, err := s.Usage(ctx, "nobody", time.Time{}, now)
	require.NoError(t, err)
	assert.Zero(t, empty.Readings)
	assert.Zero(t, empty.Tokens)

	st, err := s.Statistics(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, session.Statistics{TotalSessions: 3, TotalMessages: 4, AveragePerSession: 1.3}, st)

	none, err := s.Statistics(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, session.Statistics{}, none)
}
