// Command worker is the pipeline entrypoint: one cobra subcommand per
// stage (plus "all" and a standalone "reaper"), each booting a Core and
// handing it to runtime.Run until told to shut down. Grounded in the
// teacher's cmd/main.go + cmd/service/command.go cobra-root-with-
// subcommands shape, generalized from the chat service's HTTP/process
// split to this pipeline's six stage workers.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ironvale-labs/dtcforge/app/core"
	"github.com/ironvale-labs/dtcforge/app/pipeline/chunk"
	"github.com/ironvale-labs/dtcforge/app/pipeline/crawl"
	"github.com/ironvale-labs/dtcforge/app/pipeline/embed"
	"github.com/ironvale-labs/dtcforge/app/pipeline/evaluate"
	"github.com/ironvale-labs/dtcforge/app/pipeline/extract"
	"github.com/ironvale-labs/dtcforge/app/pipeline/reaper"
	"github.com/ironvale-labs/dtcforge/app/pipeline/resolve"
	"github.com/ironvale-labs/dtcforge/app/pipeline/runtime"
	"github.com/ironvale-labs/dtcforge/pkg/types"
)

// stageDefs is the full roster this binary knows how to run. Crawl and
// Resolve set NextStage/NextQueue empty: both commit their own
// document-stage transition inside Do (Crawl discovers a fresh document
// and pushes jobs:chunk itself; Resolve's single transaction covers the
// complete transition), so the generic runtime.advance() step has
// nothing left to do for either.
func stageDefs() map[string]runtime.StageDef {
	return map[string]runtime.StageDef{
		"crawl": {
			Name:  "crawl",
			Queue: types.QueueCrawl,
			Do:    crawl.Do,
		},
		"chunk": {
			Name:      "chunking",
			Queue:     types.QueueChunk,
			NextStage: types.StageEmbedding,
			NextQueue: types.QueueEmbed,
			Do:        chunk.Do,
		},
		"embed": {
			Name:      "embedding",
			Queue:     types.QueueEmbed,
			NextStage: types.StageEvaluating,
			NextQueue: types.QueueEvaluate,
			Do:        embed.Do,
		},
		"evaluate": {
			Name:      "evaluating",
			Queue:     types.QueueEvaluate,
			NextStage: types.StageExtracting,
			NextQueue: types.QueueExtract,
			Do:        evaluate.Do,
		},
		"extract": {
			Name:      "extracting",
			Queue:     types.QueueExtract,
			NextStage: types.StageResolving,
			NextQueue: types.QueueResolve,
			Do:        extract.Do,
		},
		"resolve": {
			Name:  "resolving",
			Queue: types.QueueResolve,
			Do:    resolve.Do,
		},
	}
}

// stageOrder fixes the order "worker all" launches stages in; it has no
// bearing on correctness (each stage only ever reads its own queue) but
// keeps startup logs readable.
var stageOrder = []string{"crawl", "chunk", "embed", "evaluate", "extract", "resolve"}

type options struct {
	ConfigPath string
}

func (o *options) addFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&o.ConfigPath, "config", "c", "", "path to the worker TOML config file")
}

func main() {
	root := &cobra.Command{
		Use:   "worker",
		Short: "dtcforge pipeline worker",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("specify a stage subcommand, or \"all\"")
		},
	}

	for _, name := range stageOrder {
		root.AddCommand(newStageCommand(name))
	}
	root.AddCommand(newAllCommand())
	root.AddCommand(newReaperCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newStageCommand(name string) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("run the %s stage worker", name),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStages(opts, []string{name}, false)
		},
	}
	opts.addFlags(cmd.Flags())
	return cmd
}

func newAllCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "all",
		Short: "run every stage worker plus the reaper in one process",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStages(opts, stageOrder, true)
		},
	}
	opts.addFlags(cmd.Flags())
	return cmd
}

func newReaperCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "reaper",
		Short: "run only the stuck-document sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStages(opts, nil, true)
		},
	}
	opts.addFlags(cmd.Flags())
	return cmd
}

// runStages boots a Core, starts the named stage workers (and the reaper
// when withReaper is set), then blocks until SIGINT/SIGTERM. Every worker
// finishes its in-flight job before exiting (runtime.Run's own shutdown
// guarantee); this function just stops handing out new ones.
func runStages(opts *options, names []string, withReaper bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := core.MustSetupCore(ctx, core.MustLoadConfig(opts.ConfigPath))
	defs := stageDefs()

	var wg sync.WaitGroup
	for _, name := range names {
		def, ok := defs[name]
		if !ok {
			return fmt.Errorf("unknown stage %q", name)
		}
		app.Logger.Info("starting stage worker", slog.String("stage", name), slog.Int("workers", app.Config.Pipeline.WorkersPerStage))
		wg.Add(1)
		go func(def runtime.StageDef) {
			defer wg.Done()
			runtime.Run(ctx, app, def, app.Config.Pipeline.WorkersPerStage)
		}(def)
	}

	var r *reaper.Reaper
	if withReaper {
		r = reaper.New(app)
		if err := r.Start(ctx); err != nil {
			return fmt.Errorf("failed to start reaper: %w", err)
		}
		app.Logger.Info("reaper started", slog.Int("interval_seconds", app.Config.Pipeline.ReaperIntervalSeconds))
	}

	<-ctx.Done()
	app.Logger.Info("shutdown signal received, draining in-flight jobs")
	wg.Wait()
	if r != nil {
		r.Stop()
	}
	return nil
}
