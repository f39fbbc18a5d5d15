package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"mfcs/pkg/parser"
	"mfcs/pkg/types"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// fileOutput pairs a parse result with the input it came from.
type fileOutput struct {
	File string `json:"file,omitempty"`
	parser.Result
}

// newParseCommand creates the parse subcommand.
func newParseCommand(c *cli) *cobra.Command {
	var (
		chunkSize    int
		outputFormat string
		render       bool
		concurrency  int
	)

	cmd := &cobra.Command{
		Use:   "parse [file...]",
		Short: "Extract call envelopes from files or stdin",
		Long: `Parse reads model output from the given files (or stdin when no file is
given, or a file is "-") and splits it into display content and structured
call records. Input is replayed through a streaming session in fragments of
--chunk-size bytes, exactly as a live stream would arrive.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("chunk-size") {
				chunkSize = c.cfg.Parser.ChunkSize
			}
			if !cmd.Flags().Changed("output") {
				outputFormat = c.cfg.Output.Format
			}
			if !cmd.Flags().Changed("render") {
				render = c.cfg.Output.Render
			}
			switch outputFormat {
			case "text", "json", "yaml":
			default:
				return fmt.Errorf("invalid output format %q (want text, json or yaml)", outputFormat)
			}
			if concurrency <= 0 {
				concurrency = 1
			}

			if len(args) == 0 {
				args = []string{"-"}
			}

			outputs := make([]fileOutput, len(args))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(concurrency)
			for i, path := range args {
				g.Go(func() error {
					data, err := readInput(path)
					if err != nil {
						return err
					}
					result, err := c.replay(ctx, string(data), chunkSize)
					if err != nil {
						return fmt.Errorf("failed to parse %s: %w", displayName(path), err)
					}
					outputs[i] = fileOutput{File: displayName(path), Result: result}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			return c.printOutputs(outputs, outputFormat, render)
		},
	}

	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Fragment size in bytes for stream replay (default from config)")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "", "Output format: text, json or yaml (default from config)")
	cmd.Flags().BoolVar(&render, "render", false, "Render content as markdown in the terminal")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Number of files parsed in parallel")

	return cmd
}

// replay feeds text through a fresh session in chunkSize fragments and
// returns the merged result. A non-positive chunkSize feeds everything at
// once. Extra options land after the configured ones, so they take
// precedence.
func (c *cli) replay(ctx context.Context, text string, chunkSize int, extra ...parser.Option) (parser.Result, error) {
	session := parser.NewSession(c.sessionOptions(extra...)...)

	var merged parser.Result
	if chunkSize <= 0 {
		chunkSize = len(text)
	}
	for start := 0; start < len(text); start += chunkSize {
		if err := ctx.Err(); err != nil {
			return parser.Result{}, err
		}
		end := start + chunkSize
		if end > len(text) {
			end = len(text)
		}
		res, err := session.Feed(text[start:end])
		if err != nil {
			return parser.Result{}, err
		}
		merged = merged.Merge(res)
	}
	tail, err := session.Close()
	if err != nil {
		return parser.Result{}, err
	}
	return merged.Merge(tail), nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func displayName(path string) string {
	if path == "-" {
		return "(stdin)"
	}
	return path
}

func (c *cli) printOutputs(outputs []fileOutput, format string, render bool) error {
	switch format {
	case "json":
		var payload any = outputs
		if len(outputs) == 1 {
			payload = outputs[0]
		}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		fmt.Println(string(data))
	case "yaml":
		var payload any = outputs
		if len(outputs) == 1 {
			payload = outputs[0]
		}
		data, err := encodeYAML(payload)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
	default:
		for i, output := range outputs {
			if len(outputs) > 1 {
				if i > 0 {
					fmt.Println()
				}
				fmt.Println(bold("== " + output.File))
			}
			c.printTextResult(output.Result, render)
		}
	}
	return nil
}

// printTextResult writes one result in human-readable form: content first,
// then calls and diagnostics.
func (c *cli) printTextResult(result parser.Result, render bool) {
	content := result.Content
	if render {
		content = c.renderer.RenderIfMarkdown(content)
	}
	fmt.Print(content)
	if content != "" && !strings.HasSuffix(content, "\n") {
		fmt.Println()
	}

	if len(result.Calls) > 0 {
		fmt.Println(green(fmt.Sprintf("✓ %d call(s)", len(result.Calls))))
		for _, call := range result.Calls {
			fmt.Println("  " + formatCall(call))
			if call.Instructions != "" {
				fmt.Println(gray("    instructions: " + call.Instructions))
			}
		}
	}
	if len(result.Diagnostics) > 0 {
		fmt.Println(yellow(fmt.Sprintf("⚠ %d diagnostic(s)", len(result.Diagnostics))))
		for _, diag := range result.Diagnostics {
			fmt.Printf("  %s %s\n", yellow(string(diag.Code)+":"), diag.Message)
		}
	}
}

// formatCall renders one record as a single line.
func formatCall(call types.CallRecord) string {
	params := "{}"
	if call.DecodeError != nil {
		params = red(fmt.Sprintf("<decode error: %v>", call.DecodeError))
	} else if len(call.Parameters) > 0 {
		if data, err := json.Marshal(call.Parameters); err == nil {
			params = string(data)
		}
	}
	return fmt.Sprintf("%s %s %s %s", cyan("["+string(call.Kind)+"]"), bold(call.ID), call.Name, params)
}
