package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alextrx818/matchpipe/internal/app"
	"github.com/alextrx818/matchpipe/internal/pipeline"
)

// cycler runs one pipeline cycle; both runner kinds satisfy it.
type cycler interface {
	RunOnce(ctx context.Context) (pipeline.Result, error)
}

// newFetchCmd is the origin stage command.
func newFetchCmd() *cobra.Command {
	var singleRun bool
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Pull the live board and start a pipeline cycle",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStage(cmd.Context(), pipeline.StageFetch, singleRun, func(rt *runtime) (cycler, error) {
				return rt.originRunner(), nil
			})
		},
	}
	cmd.Flags().BoolVar(&singleRun, "single-run", false, "run one cycle and exit")
	return cmd
}

// newStageCmd builds the command for a downstream stage.
func newStageCmd(stage string) *cobra.Command {
	var singleRun bool
	cmd := &cobra.Command{
		Use:   pipeline.CommandName(stage),
		Short: "Process one upstream frame through the " + stage + " stage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStage(cmd.Context(), stage, singleRun, func(rt *runtime) (cycler, error) {
				return rt.stageRunner(stage)
			})
		},
	}
	cmd.Flags().BoolVar(&singleRun, "single-run", false, "run one cycle and exit")
	return cmd
}

// runStage executes a stage once or in a poll loop until interrupted.
func runStage(parent context.Context, stage string, singleRun bool, build func(*runtime) (cycler, error)) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	runner, err := build(rt)
	if err != nil {
		return err
	}

	if singleRun {
		return cycle(ctx, stage, runner)
	}

	app.GetLogger().Info("%s: polling every %s", stage, rt.cfg.PollInterval)
	ticker := time.NewTicker(rt.cfg.PollInterval)
	defer ticker.Stop()

	if err := cycle(ctx, stage, runner); err != nil {
		app.GetLogger().Error("%s: %v", stage, err)
	}
	for {
		select {
		case <-ctx.Done():
			app.GetLogger().Info("%s: shutting down", stage)
			return nil
		case <-ticker.C:
			if err := cycle(ctx, stage, runner); err != nil {
				if ctx.Err() != nil {
					continue
				}
				// One bad cycle must not kill the poll loop.
				app.GetLogger().Error("%s: %v", stage, err)
			}
		}
	}
}

func cycle(ctx context.Context, stage string, runner cycler) error {
	res, err := runner.RunOnce(ctx)
	if err != nil {
		return err
	}
	if res.NoWork {
		app.GetLogger().Debug("%s: no unprocessed work", stage)
		return nil
	}
	app.GetLogger().Info("%s: processed %s", stage, res.FetchID)
	return nil
}
