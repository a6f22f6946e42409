package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/born-ml/armanet/internal/autodiff"
	"github.com/born-ml/armanet/internal/config"
	"github.com/born-ml/armanet/internal/dataset"
	"github.com/born-ml/armanet/internal/logger"
	"github.com/born-ml/armanet/internal/resnet"
	"github.com/born-ml/armanet/internal/train"
	"github.com/born-ml/armanet/internal/tui"
)

type trainOptions struct {
	configPath string
	useTUI     bool
	epochs     int
	resume     string
	ckptDir    string
}

func newTrainCmd() *cobra.Command {
	opts := &trainOptions{}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model described by a run file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			run, err := loadRun(opts.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("epochs") {
				run.Train.Epochs = opts.epochs
			}
			if opts.resume != "" {
				run.Resume = opts.resume
			}
			if opts.ckptDir != "" {
				run.Train.CheckpointDir = opts.ckptDir
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runTraining(ctx, cmd.OutOrStdout(), run, opts.useTUI)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "run file (default: synthetic smoke run)")
	f.BoolVar(&opts.useTUI, "tui", false, "show an interactive progress view")
	f.IntVar(&opts.epochs, "epochs", 0, "override train.epochs")
	f.StringVar(&opts.resume, "resume", "", "checkpoint to resume from")
	f.StringVar(&opts.ckptDir, "checkpoint-dir", "", "override checkpoint.dir")
	return cmd
}

func loadRun(path string) (config.Run, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// loadSplits reads the train split and, when available, the test split.
func loadSplits(run config.Run) (trainSet, testSet *dataset.Images, err error) {
	trainSet, err = dataset.Load(run.Data, true)
	if err != nil {
		return nil, nil, fmt.Errorf("load train split: %w", err)
	}
	testSrc := run.Data
	testSrc.Limit = run.TestLimit
	if testSrc.Name == "synthetic" && testSrc.Limit == 0 {
		testSrc.Limit = max(run.Data.Limit/4, 1)
	}
	testSet, err = dataset.Load(testSrc, false)
	if err != nil {
		return nil, nil, fmt.Errorf("load test split: %w", err)
	}
	return trainSet, testSet, nil
}

func runTraining(ctx context.Context, out io.Writer, run config.Run, useTUI bool) error {
	trainSet, testSet, err := loadSplits(run)
	if err != nil {
		return err
	}

	backend := autodiff.New(newBackend(run.Workers))
	model, err := resnet.New(run.Model, backend)
	if err != nil {
		return err
	}
	trainer, err := train.New(model, backend, run.Train)
	if err != nil {
		return err
	}
	if run.Resume != "" {
		if err := trainer.Resume(run.Resume); err != nil {
			return err
		}
	}

	title := fmt.Sprintf("%s %s on %s (%d examples, %d parameters)",
		run.Model.Arch, filterName(run.Model), trainSet.Name, trainSet.Len(), model.NumParameters())
	job := func(ctx context.Context, events chan<- train.Event) error {
		trainer.Notify(events)
		_, err := trainer.Fit(ctx, trainSet, testSet)
		return err
	}

	if useTUI {
		err = tui.Run(ctx, title, job)
	} else {
		err = runPlain(ctx, out, title, job)
	}
	if errors.Is(err, context.Canceled) {
		logger.L().Info("train.cancelled", "epoch", trainer.Epoch())
		_, _ = fmt.Fprintf(out, "stopped after %d epochs\n", trainer.Epoch())
		return nil
	}
	return err
}

// runPlain prints one line per epoch.
func runPlain(ctx context.Context, out io.Writer, title string, job tui.Job) error {
	_, _ = fmt.Fprintln(out, title)

	events := make(chan train.Event, 256)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for e := range events {
			switch e.Kind {
			case train.EpochDone:
				r := e.Result
				_, _ = fmt.Fprintf(out, "epoch %3d/%d  lr %.4g  loss %.4f  acc %6.2f%%  test loss %.4f  test acc %6.2f%%  (%s)\n",
					r.Epoch, e.Epochs, r.LR, r.Train.Loss, r.Train.Accuracy*100, r.Test.Loss, r.Test.Accuracy*100, r.Duration.Round(time.Millisecond))
			case train.CheckpointSaved:
				_, _ = fmt.Fprintf(out, "checkpoint %s\n", e.Path)
			}
		}
	}()

	err := job(ctx, events)
	close(events)
	<-printed
	return err
}

func filterName(cfg resnet.Config) string {
	if cfg.ARMA {
		return fmt.Sprintf("ARMA(w=%d, a=%d)", cfg.WKernelSize, cfg.AKernelSize)
	}
	return fmt.Sprintf("conv(w=%d)", cfg.WKernelSize)
}
