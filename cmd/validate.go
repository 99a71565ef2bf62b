package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arcanaland/oracle/internal/card"
	"github.com/arcanaland/oracle/internal/catalog"
	"github.com/arcanaland/oracle/internal/validator"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate [catalog.toml]",
	Short: "Validate a card catalog",
	Long: `Validate checks that a card catalog can be used for readings: every card
needs a unique name, a known suit, a rank that fits its suit and a meaning.
Without an argument the built-in catalog is checked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := "built-in catalog"
		cards := catalog.Default().Cards()

		if len(args) == 1 {
			name = args[0]
			if _, err := os.Stat(name); os.IsNotExist(err) {
				return fmt.Errorf("catalog file not found: %s", name)
			}
			decoded, err := catalog.DecodeFile(name)
			if err != nil {
				return fmt.Errorf("validation error: %w", err)
			}
			cards = decoded
		}

		return printValidation(cmd, name, cards)
	},
}

func printValidation(cmd *cobra.Command, name string, cards []card.Card) error {
	results := validator.NewValidator(cards).Validate()
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Validation Results:")
	fmt.Fprintln(out, "-------------------")

	if results.OK() {
		fmt.Fprintf(out, "✅ Catalog '%s' is valid (%d cards).\n", name, len(cards))
	} else {
		fmt.Fprintf(out, "❌ Catalog '%s' has %d validation errors:\n", name, len(results.Errors))
		for i, err := range results.Errors {
			fmt.Fprintf(out, "%d. %s\n", i+1, err)
		}
	}

	if len(results.Warnings) > 0 {
		fmt.Fprintln(out, "\nWarnings:")
		for i, warn := range results.Warnings {
			fmt.Fprintf(out, "%d. %s\n", i+1, warn)
		}
	}

	if !results.OK() {
		return fmt.Errorf("validation failed")
	}
	return nil
}
