package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arcanaland/oracle/internal/config"
	"github.com/arcanaland/oracle/internal/render"
)

// cardsCmd represents the cards command group
var cardsCmd = &cobra.Command{
	Use:   "cards",
	Short: "Browse the cards the Oracle draws from",
}

var cardsListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List every card in the catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		out := cmd.OutOrStdout()
		for _, c := range a.catalog.Cards() {
			fmt.Fprintf(out, "%s  %s  %s\n",
				color.CyanString("%-14s", c.Suit),
				color.HiWhiteString("%-20s", c.Name),
				color.New(color.Faint).Sprint(c.ImagePath()))
		}
		fmt.Fprintf(out, "\n%d cards\n", a.catalog.Len())
		return nil
	},
}

var cardsShowCmd = &cobra.Command{
	Use:   "show [name...]",
	Short: "Display a card, with ANSI art when its image is available",
	Long: `Show displays a card's suit, rank and meaning. When images.dir is set and
holds the card's image (for example fool.jpg for The Fool), the image is
converted to ANSI art and cached under $XDG_CACHE_HOME/oracle.

Examples:
  oracle cards show The Fool
  oracle cards show "ace of cups"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		name := strings.Join(args, " ")
		c, ok := a.catalog.Lookup(name)
		if !ok {
			return fmt.Errorf("card not found: %s", name)
		}

		art, err := render.CardArt(a.cfg.Images.Dir, config.GetCacheDir(), c)
		switch {
		case errors.Is(err, render.ErrNoImage):
			a.logger.Debug("no card image", zap.String("card", c.Name), zap.Error(err))
		case err != nil:
			a.logger.Warn("card art unavailable", zap.String("card", c.Name), zap.Error(err))
		}

		render.Card(cmd.OutOrStdout(), c, art, render.TerminalWidth())
		return nil
	},
}

func init() {
	RootCmd.AddCommand(cardsCmd)
	cardsCmd.AddCommand(cardsListCmd)
	cardsCmd.AddCommand(cardsShowCmd)
}
