package session

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

// DefaultTitle names a session that has no usable first message
const DefaultTitle = "New Reading Session"

const (
	titleMaxLen  = 40
	recentWindow = 7 * 24 * time.Hour
)

var nonTitleChars = regexp.MustCompile(`[^\w\s]`)

// Title derives a session title from the first user message
func Title(firstMessage string) string {
	if firstMessage == "" {
		return DefaultTitle
	}

	title := firstMessage
	if runes := []rune(title); len(runes) > titleMaxLen {
		title = string(runes[:titleMaxLen]) + "..."
	}

	title = strings.TrimSpace(nonTitleChars.ReplaceAllString(title, ""))
	if title == "" {
		return DefaultTitle
	}
	return title
}

// Filter selects a subset of sessions for the history listing
type Filter string

const (
	FilterAll       Filter = "all"
	FilterRecent    Filter = "recent"
	FilterFavorites Filter = "favorites"
)

// ParseFilter accepts all, recent or favorites (empty means all)
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FilterAll:
		return FilterAll, nil
	case FilterRecent, FilterFavorites:
		return f, nil
	default:
		return "", fmt.Errorf("unknown filter %q (expected all, recent or favorites)", s)
	}
}

// Apply narrows sessions by a search query and a filter. The query matches
// the title case-insensitively or any part of the id.
func Apply(sessions []Session, query string, filter Filter, now time.Time) []Session {
	query = strings.TrimSpace(query)
	lowered := strings.ToLower(query)
	cutoff := now.Add(-recentWindow)

	out := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		if query != "" &&
			!strings.Contains(strings.ToLower(s.Title), lowered) &&
			!strings.Contains(s.ID, query) {
			continue
		}

		switch filter {
		case FilterRecent:
			if !s.CreatedAt.After(cutoff) {
				continue
			}
		case FilterFavorites:
			if !s.Favorite {
				continue
			}
		}

		out = append(out, s)
	}
	return out
}

// EstimateTokens approximates tokens as one per four characters, rounded up
func EstimateTokens(content string) int {
	return int(math.Ceil(float64(len(content)) / 4))
}

// Usage summarises readings and estimated tokens over a period
type Usage struct {
	From     time.Time
	To       time.Time
	Readings int
	Tokens   int
}

// Cost estimates spend at the given price per thousand tokens
func (u Usage) Cost(perThousand float64) float64 {
	return float64(u.Tokens) / 1000 * perThousand
}

// Usage counts sessions created in [from, to] and the estimated tokens of their messages
func (s *Store) Usage(ctx context.Context, userID string, from, to time.Time) (Usage, error) {
	u := Usage{From: from, To: to}

	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reading_sessions WHERE user_id = ? AND created_at >= ? AND created_at <= ?`,
		userID, from.UTC().UnixNano(), to.UTC().UnixNano())
	if err := row.Scan(&u.Readings); err != nil {
		return Usage{}, fmt.Errorf("count sessions: %w", err)
	}
	if u.Readings == 0 {
		return u, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT m.content FROM reading_messages m
		 JOIN reading_sessions s ON s.id = m.session_id
		 WHERE s.user_id = ? AND s.created_at >= ? AND s.created_at <= ?`,
		userID, from.UTC().UnixNano(), to.UTC().UnixNano())
	if err != nil {
		return Usage{}, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return Usage{}, fmt.Errorf("scan message: %w", err)
		}
		u.Tokens += EstimateTokens(content)
	}
	return u, rows.Err()
}

// MonthlyUsage reports the current month to date and the whole previous month
func (s *Store) MonthlyUsage(ctx context.Context, userID string, now time.Time) (current, previous Usage, err error) {
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	startOfLast := startOfMonth.AddDate(0, -1, 0)
	endOfLast := startOfMonth.Add(-time.Nanosecond)

	current, err = s.Usage(ctx, userID, startOfMonth, now)
	if err != nil {
		return Usage{}, Usage{}, err
	}
	previous, err = s.Usage(ctx, userID, startOfLast, endOfLast)
	if err != nil {
		return Usage{}, Usage{}, err
	}
	return current, previous, nil
}

// Statistics summarises a user's history
type Statistics struct {
	TotalSessions     int
	TotalMessages     int
	AveragePerSession float64 // rounded to one decimal
}

// Statistics counts sessions and messages for a user
func (s *Store) Statistics(ctx context.Context, userID string) (Statistics, error) {
	var st Statistics
	row := s.db.QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM reading_sessions WHERE user_id = ?),
			(SELECT COUNT(*) FROM reading_messages m JOIN reading_sessions s ON s.id = m.session_id WHERE s.user_id = ?)`,
		userID, userID)
	if err := row.Scan(&st.TotalSessions, &st.TotalMessages); err != nil {
		return Statistics{}, fmt.Errorf("count history: %w", err)
	}

	if st.TotalSessions > 0 {
		avg := float64(st.TotalMessages) / float64(st.TotalSessions)
		st.AveragePerSession = math.Round(avg*10) / 10
	}
	return st, nil
}
