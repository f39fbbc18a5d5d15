package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"mfcs/pkg/parser"
	"mfcs/pkg/results"
	"mfcs/pkg/types"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

// newReplCommand creates the repl subcommand.
func newReplCommand(c *cli) *cobra.Command {
	var storePath string

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive streaming parse session",
		Long: `Repl feeds each input line to a persistent streaming session as one
fragment, so an envelope may span several lines. Completed calls are shown as
they close; results can be attached to calls and are reused when the same
function is called again with the same arguments.

Commands:
  :close               end the stream, report anything left open, start fresh
  :reset               drop parser state without diagnostics
  :result <id> <json>  attach a result to a completed call
  :results             show accumulated results as a prompt section
  :help                show this list
  :quit                exit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("store") {
				storePath = c.cfg.Store.Path
			}
			return c.runRepl(storePath)
		},
	}

	cmd.Flags().StringVar(&storePath, "store", "", "SQLite file persisting attached results (default from config)")

	return cmd
}

// repl bundles the state of one interactive session.
type repl struct {
	cli     *cli
	session *parser.Session
	manager *results.Manager
	cache   *results.Cache
	store   *results.SQLiteStore
	records map[string]types.CallRecord
}

func (c *cli) runRepl(storePath string) error {
	cache, err := results.NewCache(results.DefaultCacheConfig())
	if err != nil {
		return err
	}

	r := &repl{
		cli:     c,
		session: parser.NewSession(c.sessionOptions()...),
		manager: results.NewManager(),
		cache:   cache,
		records: make(map[string]types.CallRecord),
	}

	if storePath != "" {
		store, err := results.OpenSQLiteStore(storePath)
		if err != nil {
			return err
		}
		defer store.Close()
		r.store = store

		entries, err := store.Load(context.Background())
		if err != nil {
			return err
		}
		for _, entry := range entries {
			r.manager.Store(entry.ID, entry.Name, entry.Value)
		}
		if len(entries) > 0 {
			fmt.Println(gray(fmt.Sprintf("loaded %d stored result(s) from %s", len(entries), storePath)))
		}
	}

	homeDir, _ := os.UserHomeDir()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "mfcs> ",
		HistoryFile:       filepath.Join(homeDir, ".mfcs_history"),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdin:             readline.NewCancelableStdin(os.Stdin),
		Stdout:            os.Stdout,
		Stderr:            os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	fmt.Println(bold("mfcs interactive session"))
	fmt.Println("Paste model output; an envelope may span several lines.")
	fmt.Println("Type :help for commands, :quit to exit.")
	fmt.Println()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		} else if err == io.EOF {
			break
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if trimmed == "exit" || trimmed == "quit" {
			break
		}
		if strings.HasPrefix(trimmed, ":") {
			if quit := r.runCommand(trimmed); quit {
				break
			}
			continue
		}

		r.feed(line + "\n")
	}

	fmt.Println("Goodbye!")
	return nil
}

// runCommand dispatches a colon command, returning true to exit the loop.
func (r *repl) runCommand(input string) bool {
	command, rest, _ := strings.Cut(input, " ")
	switch command {
	case ":quit", ":q":
		return true
	case ":help":
		fmt.Println("  :close               end the stream, report anything left open, start fresh")
		fmt.Println("  :reset               drop parser state without diagnostics")
		fmt.Println("  :result <id> <json>  attach a result to a completed call")
		fmt.Println("  :results             show accumulated results as a prompt section")
		fmt.Println("  :quit                exit")
	case ":close":
		res, err := r.session.Close()
		if err != nil {
			fmt.Println(red("close failed: " + err.Error()))
			return false
		}
		r.printResult(res)
		r.session.Reset()
		fmt.Println(gray("stream closed, session re-armed"))
	case ":reset":
		r.session.Reset()
		fmt.Println(gray("session reset"))
	case ":results":
		section := r.manager.PromptSection()
		if section == "" {
			fmt.Println(gray("(no results stored)"))
		} else {
			fmt.Println(section)
		}
	case ":result":
		r.attachResult(rest)
	default:
		fmt.Println(yellow("unknown command " + command + ", try :help"))
	}
	return false
}

// feed pushes one fragment into the session and prints what came out.
func (r *repl) feed(fragment string) {
	res, err := r.session.Feed(fragment)
	if err != nil {
		fmt.Println(red("feed failed: " + err.Error()))
		r.session.Reset()
		return
	}
	r.printResult(res)
}

// printResult echoes the content delta and reports completed calls and
// diagnostics.
func (r *repl) printResult(res parser.Result) {
	if res.Content != "" {
		fmt.Print(res.Content)
		if !strings.HasSuffix(res.Content, "\n") {
			fmt.Println()
		}
	}
	for _, call := range res.Calls {
		fmt.Println(green("● ") + formatCall(call))
		r.records[call.ID] = call
		r.reuseCached(call)
	}
	for _, diag := range res.Diagnostics {
		fmt.Printf("%s %s\n", yellow(string(diag.Code)+":"), diag.Message)
	}
}

// reuseCached attaches a cached result when the same function was already
// answered for identical arguments.
func (r *repl) reuseCached(call types.CallRecord) {
	if call.Name == "" || call.DecodeError != nil {
		return
	}
	value, ok := r.cache.Get(call.Name, call.Parameters)
	if !ok {
		return
	}
	r.manager.Store(call.ID, call.Name, value)
	r.persist(results.Entry{ID: call.ID, Name: call.Name, Value: value})
	fmt.Println(gray("  cached result attached to " + call.ID))
}

// attachResult handles ":result <id> <json>".
func (r *repl) attachResult(rest string) {
	id, payload, ok := strings.Cut(strings.TrimSpace(rest), " ")
	if !ok || id == "" {
		fmt.Println(yellow("usage: :result <call_id> <json>"))
		return
	}
	record, known := r.records[id]
	if !known {
		fmt.Println(red("no completed call with id " + id))
		return
	}

	var value any
	if err := json.Unmarshal([]byte(payload), &value); err != nil {
		// Not JSON, keep the raw text as the result value.
		value = payload
	}

	r.manager.Store(id, record.Name, value)
	if record.DecodeError == nil {
		r.cache.Put(record.Name, record.Parameters, value)
	}
	r.persist(results.Entry{ID: id, Name: record.Name, Value: value})
	fmt.Println(green("✓ result stored for " + id))
}

func (r *repl) persist(entry results.Entry) {
	if r.store == nil {
		return
	}
	if err := r.store.Save(context.Background(), entry); err != nil {
		fmt.Println(red("failed to persist result: " + err.Error()))
	}
}
