package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"mfcs/pkg/prompt"
	"mfcs/pkg/types"

	"github.com/spf13/cobra"
)

// newPromptCommand creates the prompt subcommand.
func newPromptCommand(c *cli) *cobra.Command {
	var (
		schemaPath string
		memory     bool
		showTokens bool
		maxTokens  int
	)

	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Render the calling-convention prompt for a set of functions",
		Long: `Prompt reads a JSON array of function schemas ({"name", "description",
"parameters", "required"}) and renders the system prompt section that teaches
a model the call envelope format for those functions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(schemaPath)
			if err != nil {
				return err
			}
			var schemas []types.FunctionSchema
			if err := json.Unmarshal(data, &schemas); err != nil {
				return fmt.Errorf("failed to parse schema file %s: %w", displayName(schemaPath), err)
			}

			generator, err := prompt.NewGenerator()
			if err != nil {
				return err
			}

			var out string
			if memory {
				out, err = generator.MemoryPrompt(schemas)
			} else {
				out, err = generator.FunctionCallingPrompt(schemas)
			}
			if err != nil {
				return err
			}
			if maxTokens > 0 {
				out = prompt.TruncateToTokens(out, maxTokens)
			}

			w := cmd.OutOrStdout()
			fmt.Fprint(w, out)
			if !strings.HasSuffix(out, "\n") {
				fmt.Fprintln(w)
			}
			if showTokens {
				fmt.Fprintln(cmd.ErrOrStderr(), gray(fmt.Sprintf("~%d tokens", prompt.CountTokens(out))))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", "", `JSON file with an array of function schemas ("-" for stdin)`)
	cmd.Flags().BoolVar(&memory, "memory", false, "Render the memory prompt instead of the function-calling prompt")
	cmd.Flags().BoolVar(&showTokens, "tokens", false, "Print a token estimate to stderr")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Truncate the rendered prompt to roughly this many tokens (0 keeps it whole)")
	_ = cmd.MarkFlagRequired("schema")

	return cmd
}
