// ABOUTME: CLI entrypoint for the tome book generation pipeline: run, resume, status, validate.
// ABOUTME: Wires the LLM client, checkpoint store, retry policy, and signal handling together.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/2389-research/tome/book"
	"github.com/2389-research/tome/config"
	"github.com/2389-research/tome/llm"
	"github.com/2389-research/tome/pipeline"
	"github.com/2389-research/tome/store"
)

var version = "dev"

type cliFlags struct {
	checkpointDir string
	dbPath        string
	outPath       string
	retryPolicy   string
	verbose       bool

	project string
	prompt  string
	budget  float64
}

func main() {
	// Missing .env is fine; real env vars still apply.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	root := &cobra.Command{
		Use:           "tome",
		Short:         "tome generates complete books through a staged LLM pipeline",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.checkpointDir, "checkpoint-dir", "checkpoints", "directory for checkpoint files")
	root.PersistentFlags().StringVar(&flags.dbPath, "db", "", "use a SQLite checkpoint database at this path instead of the file store")
	root.PersistentFlags().StringVar(&flags.retryPolicy, "retry", "", "override the retry policy: none, standard, aggressive, linear, patient")
	root.PersistentFlags().BoolVar(&flags.verbose, "verbose", false, "log every LLM call to stderr")

	root.AddCommand(newRunCmd(flags))
	root.AddCommand(newResumeCmd(flags))
	root.AddCommand(newStatusCmd(flags))
	root.AddCommand(newRollbackCmd(flags))
	root.AddCommand(newValidateCmd())

	return root
}

func newRunCmd(flags *cliFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [config.yaml]",
		Short: "Start a new book generation run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRunConfig(args, flags)
			if err != nil {
				return err
			}
			state := pipeline.NewState(cfg.Project)
			return executeRun(cmd.Context(), cfg, state, flags)
		},
	}
	cmd.Flags().StringVar(&flags.project, "project", "", "project ID (when not using a config file)")
	cmd.Flags().StringVar(&flags.prompt, "prompt", "", "book prompt (when not using a config file)")
	cmd.Flags().Float64Var(&flags.budget, "budget", 0, "hard budget in USD (when not using a config file)")
	cmd.Flags().StringVar(&flags.outPath, "out", "", "manuscript output path (default <project>.md)")
	return cmd
}

func newResumeCmd(flags *cliFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume <config.yaml>",
		Short: "Resume a paused or failed run from its latest checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			st, closeStore, err := openStore(flags)
			if err != nil {
				return err
			}
			defer closeStore()

			state, err := st.Load(cmd.Context(), cfg.Project)
			if errors.Is(err, pipeline.ErrNotFound) {
				return fmt.Errorf("no checkpoint found for project %q", cfg.Project)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "resuming %q from stage %d (status %s, spent $%.4f)\n",
				cfg.Project, state.StageIndex, state.Status, state.Cost())

			return executeRun(cmd.Context(), cfg, state, flags)
		},
	}
	cmd.Flags().StringVar(&flags.outPath, "out", "", "manuscript output path (default <project>.md)")
	return cmd
}

func newStatusCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status <project>",
		Short: "Show the latest checkpoint for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeStore, err := openStore(flags)
			if err != nil {
				return err
			}
			defer closeStore()

			state, err := st.Load(cmd.Context(), args[0])
			if errors.Is(err, pipeline.ErrNotFound) {
				return fmt.Errorf("no checkpoint found for project %q", args[0])
			}
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), state)
			return nil
		},
	}
}

func newRollbackCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <config.yaml> <stage>",
		Short: "Rewind a project so the named stage re-runs on the next resume",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			st, closeStore, err := openStore(flags)
			if err != nil {
				return err
			}
			defer closeStore()

			state, err := st.Load(cmd.Context(), cfg.Project)
			if errors.Is(err, pipeline.ErrNotFound) {
				return fmt.Errorf("no checkpoint found for project %q", cfg.Project)
			}
			if err != nil {
				return err
			}
			if err := pipeline.Rollback(state, cfg.Definitions(), args[1]); err != nil {
				return err
			}
			if err := st.Save(cmd.Context(), cfg.Project, state); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %q to stage %q (stage index %d). Run `tome resume` to continue.\n",
				cfg.Project, args[1], state.StageIndex)
			return nil
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config.yaml>",
		Short: "Validate a pipeline config without executing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			order, err := pipeline.ExecutionOrder(cfg.Definitions())
			if err != nil {
				return err
			}
			names := make([]string, len(order))
			for i, def := range order {
				names[i] = def.Name
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config is valid. %d stages: %s\n", len(order), strings.Join(names, " -> "))
			return nil
		},
	}
}

// loadRunConfig builds a Config from a YAML file or from the run flags.
func loadRunConfig(args []string, flags *cliFlags) (*config.Config, error) {
	if len(args) == 1 {
		return config.Load(args[0])
	}
	if flags.project == "" || flags.prompt == "" || flags.budget <= 0 {
		return nil, errors.New("pass a config file, or all of --project, --prompt, and --budget")
	}
	cfg := config.Default(flags.project, flags.prompt, flags.budget)
	return cfg, nil
}

// executeRun drives the orchestrator for both fresh and resumed states.
func executeRun(ctx context.Context, cfg *config.Config, state *pipeline.GenerationState, flags *cliFlags) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(flags)
	if err != nil {
		return err
	}
	defer closeStore()

	client, err := newClient(flags)
	if err != nil {
		return err
	}
	defer client.Close()

	reg := pipeline.NewRegistry()
	book.Register(reg, client, book.Options{
		Prompt:              cfg.Prompt,
		Provider:            cfg.Provider,
		Model:               resolveModel(cfg.Model),
		MaxSceneConcurrency: cfg.MaxSceneConcurrency,
		Threshold:           cfg.Threshold,
	})

	retryName := cfg.RetryPolicy
	if flags.retryPolicy != "" {
		retryName = flags.retryPolicy
	}

	orch := pipeline.NewOrchestrator(reg, st,
		pipeline.WithRetryPolicy(pipeline.RetryPolicyByName(retryName)),
		pipeline.WithEventHandler(eventPrinter(os.Stderr)),
	)

	final, err := orch.Run(ctx, state, cfg.Definitions(), cfg.BudgetUSD)
	if err != nil {
		return err
	}

	switch final.Status {
	case pipeline.StatusComplete:
		fmt.Printf("Run complete. Spent $%.4f.\n", final.Cost())
		return writeManuscript(final, cfg.Project, flags.outPath)
	case pipeline.StatusPaused:
		fmt.Printf("Run paused at stage %d. Spent $%.4f. Re-run `tome resume` to continue.\n",
			final.StageIndex, final.Cost())
		return nil
	case pipeline.StatusBlocked:
		fmt.Printf("Run blocked at stage %d. Spent $%.4f.\n", final.StageIndex, final.Cost())
		printErrorLog(os.Stdout, final)
		return errors.New("pipeline blocked")
	default:
		printErrorLog(os.Stdout, final)
		return fmt.Errorf("pipeline ended with status %s", final.Status)
	}
}

// openStore picks SQLite when --db is set, the file store otherwise.
func openStore(flags *cliFlags) (pipeline.CheckpointStore, func() error, error) {
	if flags.dbPath != "" {
		s, err := store.OpenSqlite(flags.dbPath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	s, err := store.NewFileStore(flags.checkpointDir)
	if err != nil {
		return nil, nil, err
	}
	return s, func() error { return nil }, nil
}

func newClient(flags *cliFlags) (*llm.Client, error) {
	opts := []llm.ClientOption{
		llm.WithMiddleware(llm.CostMiddleware(llm.NewCatalog())),
	}
	if flags.verbose {
		opts = append(opts, llm.WithMiddleware(llm.LoggingMiddleware(func(line string) {
			fmt.Fprintln(os.Stderr, line)
		})))
	}
	return llm.FromEnv(opts...)
}

// resolveModel maps catalog aliases like "sonnet" to full model IDs. Unknown
// names pass through untouched so new models work before the catalog learns
// about them.
func resolveModel(name string) string {
	if info, ok := llm.NewCatalog().Lookup(name); ok {
		return info.ID
	}
	return name
}

// writeManuscript extracts the assembled manuscript and writes it to disk.
func writeManuscript(state *pipeline.GenerationState, project, outPath string) error {
	out, ok := state.Output(book.StageAssemble)
	if !ok {
		return errors.New("completed run has no assembled manuscript")
	}
	var m book.Manuscript
	if err := book.Decode(out, book.KindManuscript, &m); err != nil {
		return err
	}
	if outPath == "" {
		outPath = project + ".md"
	}
	if err := os.WriteFile(outPath, []byte(m.Markdown), 0o644); err != nil {
		return err
	}
	fmt.Printf("Wrote %q (%d chapters, %d words) to %s\n", m.Title, m.Chapters, m.WordCount, outPath)
	return nil
}
