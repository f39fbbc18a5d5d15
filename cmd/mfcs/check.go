package main

import (
	"encoding/json"
	"fmt"

	"mfcs/pkg/parser"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"
)

// newCheckCommand creates the check subcommand.
func newCheckCommand(c *cli) *cobra.Command {
	var chunkSizes []int

	cmd := &cobra.Command{
		Use:   "check [file]",
		Short: "Verify chunked parsing matches one-shot parsing",
		Long: `Check replays the input through a streaming session at several fragment
sizes and verifies every replay produces exactly the same content, calls and
diagnostics as parsing the whole input in one piece. Any difference is shown
as a diff and makes the command fail. The configured envelope size cap is
disabled for the comparison, so oversized envelopes parse instead of being
flushed back as content.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			data, err := readInput(path)
			if err != nil {
				return err
			}
			text := string(data)

			baseline, err := c.replay(cmd.Context(), text, 0, parser.WithMaxCallBytes(0))
			if err != nil {
				return err
			}
			baselineJSON, err := json.MarshalIndent(baseline, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode baseline result: %w", err)
			}

			for _, size := range chunkSizes {
				if size <= 0 {
					return fmt.Errorf("invalid chunk size %d (must be positive)", size)
				}
				result, err := c.replay(cmd.Context(), text, size, parser.WithMaxCallBytes(0))
				if err != nil {
					return err
				}
				resultJSON, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode result: %w", err)
				}
				if string(resultJSON) != string(baselineJSON) {
					fmt.Println(red(fmt.Sprintf("✗ chunk size %d differs from one-shot parse:", size)))
					fmt.Println(renderDiff(string(baselineJSON), string(resultJSON), c.cfg.Output.Color))
					return fmt.Errorf("chunked parse (size %d) differs from one-shot parse of %s", size, displayName(path))
				}
				c.log.Debug("chunk size %d matches one-shot parse", size)
			}

			fmt.Println(green(fmt.Sprintf("✓ %s: %d chunk size(s) match the one-shot parse (%d call(s), %d diagnostic(s))",
				displayName(path), len(chunkSizes), len(baseline.Calls), len(baseline.Diagnostics))))
			return nil
		},
	}

	cmd.Flags().IntSliceVar(&chunkSizes, "chunk-sizes", []int{1, 2, 3, 7, 16, 64}, "Fragment sizes to replay at")

	return cmd
}

// renderDiff shows how two result encodings differ, colored when enabled.
func renderDiff(baseline, got string, colored bool) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(baseline, got, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	if colored {
		return dmp.DiffPrettyText(diffs)
	}
	patches := dmp.PatchMake(baseline, diffs)
	return dmp.PatchToText(patches)
}
