package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arcanaland/oracle/internal/reading"
	"github.com/arcanaland/oracle/internal/render"
	"github.com/arcanaland/oracle/internal/session"
)

const (
	shortIDLen     = 8
	resolveLimit   = 1000
	listTimeFormat = "2006-01-02 15:04"
)

// historyCmd represents the history command group
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse and manage past readings",
	Long: `Commands for browsing, searching and managing saved reading sessions.
Sessions can be referred to by their full id or any unique prefix.`,
}

var historyListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List saved sessions, most recent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		search, _ := cmd.Flags().GetString("search")
		filterFlag, _ := cmd.Flags().GetString("filter")
		limit, _ := cmd.Flags().GetInt("limit")

		filter, err := session.ParseFilter(filterFlag)
		if err != nil {
			return err
		}

		return withStore(func(ctx context.Context, a *app, store *session.Store) error {
			sessions, err := store.ListSessions(ctx, a.cfg.UserID, limit)
			if err != nil {
				return err
			}
			sessions = session.Apply(sessions, search, filter, time.Now())

			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions found.")
				return nil
			}
			for _, s := range sessions {
				star := " "
				if s.Favorite {
					star = color.YellowString("★")
				}
				fmt.Fprintf(out, "%s %s  %s  %s\n",
					star,
					color.CyanString("%s", shortID(s.ID)),
					color.New(color.Faint).Sprint(s.UpdatedAt.Local().Format(listTimeFormat)),
					s.Title)
			}
			return nil
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show the conversation of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, a *app, store *session.Store) error {
			sess, err := resolveSession(ctx, store, a.cfg.UserID, args[0])
			if err != nil {
				return err
			}
			msgs, err := store.Messages(ctx, sess.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			width := render.TerminalWidth()
			fmt.Fprintln(out, color.HiWhiteString("%s", sess.Title))
			fmt.Fprintln(out, color.New(color.Faint).Sprintf("%s · created %s", sess.ID, sess.CreatedAt.Local().Format(listTimeFormat)))
			if drawn, ok := readingTime(sess.ReadingData); ok {
				fmt.Fprintln(out, color.New(color.Faint).Sprintf("cards drawn %s", drawn.Local().Format(listTimeFormat)))
			}

			for _, m := range msgs {
				fmt.Fprintln(out)
				if m.Role == session.RoleUser {
					fmt.Fprintln(out, color.CyanString("You: ")+m.Content)
					continue
				}

				header := color.MagentaString("Oracle")
				if m.Offline {
					header += color.YellowString(" (offline)")
				}
				fmt.Fprintln(out, header)
				for i, c := range m.Cards {
					position := ""
					if len(m.Cards) == len(render.SpreadPositions) {
						position = render.SpreadPositions[i] + ": "
					}
					fmt.Fprintf(out, "  %s%s\n", position, c.Name)
				}
				for _, line := range render.WrapText(m.Content, width-2) {
					fmt.Fprintln(out, "  "+line)
				}
			}
			return nil
		})
	},
}

var historyRenameCmd = &cobra.Command{
	Use:   "rename [id] [title...]",
	Short: "Rename a session",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := strings.TrimSpace(strings.Join(args[1:], " "))
		if title == "" {
			return fmt.Errorf("title cannot be empty")
		}
		return withStore(func(ctx context.Context, a *app, store *session.Store) error {
			sess, err := resolveSession(ctx, store, a.cfg.UserID, args[0])
			if err != nil {
				return err
			}
			if err := store.Rename(ctx, sess.ID, title); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s renamed to: %s\n", shortID(sess.ID), title)
			return nil
		})
	},
}

var historyFavCmd = &cobra.Command{
	Use:   "fav [id]",
	Short: "Mark a session as a favorite",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		off, _ := cmd.Flags().GetBool("off")
		return withStore(func(ctx context.Context, a *app, store *session.Store) error {
			sess, err := resolveSession(ctx, store, a.cfg.UserID, args[0])
			if err != nil {
				return err
			}
			if err := store.SetFavorite(ctx, sess.ID, !off); err != nil {
				return err
			}
			if off {
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s removed from favorites\n", shortID(sess.ID))
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s added to favorites\n", shortID(sess.ID))
			}
			return nil
		})
	},
}

var historyRemoveCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete a session and its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, a *app, store *session.Store) error {
			sess, err := resolveSession(ctx, store, a.cfg.UserID, args[0])
			if err != nil {
				return err
			}
			if err := store.Delete(ctx, sess.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s deleted\n", shortID(sess.ID))
			return nil
		})
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise your reading history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, a *app, store *session.Store) error {
			st, err := store.Statistics(ctx, a.cfg.UserID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, color.CyanString("Sessions:          ")+color.HiWhiteString("%d", st.TotalSessions))
			fmt.Fprintln(out, color.CyanString("Messages:          ")+color.HiWhiteString("%d", st.TotalMessages))
			fmt.Fprintln(out, color.CyanString("Avg per session:   ")+color.HiWhiteString("%.1f", st.AveragePerSession))
			return nil
		})
	},
}

var historyUsageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Estimate readings and tokens for this month and last",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		perThousand, _ := cmd.Flags().GetFloat64("cost-per-1k")
		return withStore(func(ctx context.Context, a *app, store *session.Store) error {
			current, previous, err := store.MonthlyUsage(ctx, a.cfg.UserID, time.Now())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, u := range []struct {
				label string
				usage session.Usage
			}{
				{"This month", current},
				{"Last month", previous},
			} {
				fmt.Fprintf(out, "%s %s readings, ~%s tokens, ~$%.4f\n",
					color.CyanString("%-11s", u.label+":"),
					color.HiWhiteString("%d", u.usage.Readings),
					color.HiWhiteString("%d", u.usage.Tokens),
					u.usage.Cost(perThousand))
			}
			return nil
		})
	},
}

func init() {
	RootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyRenameCmd)
	historyCmd.AddCommand(historyFavCmd)
	historyCmd.AddCommand(historyRemoveCmd)
	historyCmd.AddCommand(historyStatsCmd)
	historyCmd.AddCommand(historyUsageCmd)

	historyListCmd.Flags().StringP("search", "q", "", "Only sessions whose title or id contains this text")
	historyListCmd.Flags().StringP("filter", "f", "all", "One of all, recent (last 7 days) or favorites")
	historyListCmd.Flags().IntP("limit", "n", session.DefaultListLimit, "Maximum number of sessions to fetch")
	historyFavCmd.Flags().Bool("off", false, "Remove the session from favorites instead")
	historyUsageCmd.Flags().Float64("cost-per-1k", 0.002, "Price per thousand tokens used for the estimate")
}

// withStore loads the app, opens the history database and runs fn
func withStore(fn func(ctx context.Context, a *app, store *session.Store) error) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(context.Background(), a, store)
}

// resolveSession finds a session of userID by full id or unique id prefix
func resolveSession(ctx context.Context, store *session.Store, userID, ref string) (session.Session, error) {
	if strings.TrimSpace(ref) == "" {
		return session.Session{}, fmt.Errorf("session id cannot be empty")
	}
	if sess, err := store.Get(ctx, ref); err == nil && sess.UserID == userID {
		return sess, nil
	}

	sessions, err := store.ListSessions(ctx, userID, resolveLimit)
	if err != nil {
		return session.Session{}, err
	}
	var matches []session.Session
	for _, s := range sessions {
		if strings.HasPrefix(s.ID, ref) {
			matches = append(matches, s)
		}
	}

	switch len(matches) {
	case 0:
		return session.Session{}, fmt.Errorf("%w: %s", session.ErrNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return session.Session{}, fmt.Errorf("session id %q is ambiguous (%d matches)", ref, len(matches))
	}
}

// readingTime extracts the timestamp of a stored reading payload
func readingTime(data json.RawMessage) (time.Time, bool) {
	if len(data) == 0 {
		return time.Time{}, false
	}
	var r reading.Reading
	if err := json.Unmarshal(data, &r); err != nil {
		return time.Time{}, false
	}
	ts, err := reading.ParseTimestamp(r.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}
