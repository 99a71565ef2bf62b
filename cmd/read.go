package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arcanaland/oracle/internal/card"
	"github.com/arcanaland/oracle/internal/reading"
	"github.com/arcanaland/oracle/internal/render"
	"github.com/arcanaland/oracle/internal/session"
)

var readCmd = &cobra.Command{
	Use:   "read [question...]",
	Short: "Draw three cards and receive a full reading",
	Long: `Read draws three cards (foundation, present, path forward) and asks the
Oracle to interpret them in light of your question. If the Oracle cannot be
reached, an offline reading is composed from the same cards.

Examples:
  oracle read Will the new job suit me?
  oracle read --json "What should I focus on this month?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		noSave, _ := cmd.Flags().GetBool("no-save")
		question := strings.Join(args, " ")

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		p, err := a.pipeline()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		res := p.Generate(ctx, question)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if asJSON {
			if err := writeJSON(cmd.OutOrStdout(), res.Reading); err != nil {
				return err
			}
		} else {
			render.Reading(cmd.OutOrStdout(), res.Reading, render.TerminalWidth())
		}

		if noSave {
			return nil
		}

		store, err := a.openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := store.Save(ctx, "", a.cfg.UserID, readingMessages(res.Reading), res.Reading)
		if err != nil {
			return fmt.Errorf("error saving reading: %w", err)
		}
		a.logger.Debug("reading saved", zap.String("session", id), zap.Stringer("outcome", res.Outcome))
		if !asJSON {
			fmt.Fprintln(cmd.OutOrStdout(), color.New(color.Faint).Sprintf("Saved as session %s", id))
		}
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask [question...]",
	Short: "Draw one card for a quick follow-up reading",
	Long: `Ask draws a single card and returns a short answer. Use --session to add
the exchange to an existing session; otherwise a new session is started.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		question := strings.Join(args, " ")

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		p, err := a.pipeline()
		if err != nil {
			return err
		}
		store, err := a.openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		if sessionID != "" {
			sess, err := resolveSession(ctx, store, a.cfg.UserID, sessionID)
			if err != nil {
				return err
			}
			sessionID = sess.ID
		}

		res := p.GenerateQuick(ctx, question)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		render.QuickReading(cmd.OutOrStdout(), res.Reading, render.TerminalWidth())

		msgs := quickMessages(res.Reading)
		if sessionID == "" {
			sessionID, err = store.Save(ctx, "", a.cfg.UserID, msgs, nil)
			if err != nil {
				return fmt.Errorf("error saving reading: %w", err)
			}
		} else {
			for _, m := range msgs {
				if _, err := store.SaveMessage(ctx, sessionID, m); err != nil {
					return fmt.Errorf("error saving reading: %w", err)
				}
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), color.New(color.Faint).Sprintf("Saved to session %s", sessionID))
		return nil
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Hold a conversation with the Oracle",
	Long: `Chat opens an interactive session. Your first question receives a full
three-card reading; every later question draws a single card. The whole
conversation is saved as one session. Type 'exit' or press Ctrl-D to leave;
Ctrl-C abandons the reading in progress and exits.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		p, err := a.pipeline()
		if err != nil {
			return err
		}
		store, err := a.openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		return runChat(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), a.cfg.UserID, p, store)
	},
}

func init() {
	RootCmd.AddCommand(readCmd)
	RootCmd.AddCommand(askCmd)
	RootCmd.AddCommand(chatCmd)

	readCmd.Flags().Bool("json", false, "Print the reading as JSON")
	readCmd.Flags().Bool("no-save", false, "Do not add the reading to the history")
	askCmd.Flags().StringP("session", "s", "", "Append to an existing session (id or unique id prefix)")
}

// readingGenerator is the part of the pipeline the chat loop needs
type readingGenerator interface {
	Generate(ctx context.Context, question string) reading.Result
	GenerateQuick(ctx context.Context, question string) reading.QuickResult
}

// maxChatLine bounds a single question read by chat
const maxChatLine = 1 << 20

// runChat reads one question per line. Readings are sequential: the next
// line is not read until the previous answer has been saved.
func runChat(ctx context.Context, in io.Reader, out io.Writer, userID string, p readingGenerator, store *session.Store) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxChatLine)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				scanErr <- nil
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	width := render.TerminalWidth()
	sessionID := ""
	fmt.Fprintln(out, color.MagentaString("The Oracle is listening. Ask your question."))

	for {
		fmt.Fprint(out, color.CyanString("> "))

		var question string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				if err := <-scanErr; err != nil {
					return fmt.Errorf("error reading input: %w", err)
				}
				return nil
			}
			question = strings.TrimSpace(line)
		}

		switch strings.ToLower(question) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		var (
			msgs    []session.Message
			payload any
		)
		if sessionID == "" {
			res := p.Generate(ctx, question)
			if ctx.Err() != nil {
				fmt.Fprintln(out)
				return nil
			}
			render.Reading(out, res.Reading, width)
			msgs, payload = readingMessages(res.Reading), res.Reading
		} else {
			res := p.GenerateQuick(ctx, question)
			if ctx.Err() != nil {
				fmt.Fprintln(out)
				return nil
			}
			render.QuickReading(out, res.Reading, width)
			msgs = quickMessages(res.Reading)
		}

		if sessionID == "" {
			id, err := store.Save(ctx, "", userID, msgs, payload)
			if err != nil {
				return fmt.Errorf("error saving reading: %w", err)
			}
			sessionID = id
			continue
		}
		for _, m := range msgs {
			if _, err := store.SaveMessage(ctx, sessionID, m); err != nil {
				return fmt.Errorf("error saving reading: %w", err)
			}
		}
	}
}

func readingMessages(r reading.Reading) []session.Message {
	return []session.Message{
		{Role: session.RoleUser, Content: r.Question},
		{Role: session.RoleOracle, Content: r.Reading, Cards: r.Cards, Offline: r.IsOffline},
	}
}

func quickMessages(q reading.QuickReading) []session.Message {
	return []session.Message{
		{Role: session.RoleUser, Content: q.Question},
		{Role: session.RoleOracle, Content: q.Reading, Cards: []card.Card{q.Card}, Offline: q.IsOffline},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
