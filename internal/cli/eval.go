package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/born-ml/armanet/internal/dataset"
	"github.com/born-ml/armanet/internal/logger"
	"github.com/born-ml/armanet/internal/resnet"
	"github.com/born-ml/armanet/internal/serialization"
	"github.com/born-ml/armanet/internal/train"
)

func newEvalCmd() *cobra.Command {
	var configPath, checkpoint string
	var batchSize int

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Report loss and accuracy of a checkpoint on the test split",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if checkpoint == "" {
				return errors.New("--checkpoint is required")
			}
			run, err := loadRun(configPath)
			if err != nil {
				return err
			}

			sd, header, err := serialization.LoadModel(checkpoint)
			if err != nil {
				return err
			}
			if err := train.CheckMetadata(run.Model, header.Metadata); err != nil {
				return fmt.Errorf("%s: %w", checkpoint, err)
			}

			model, err := resnet.New(run.Model, newBackend(run.Workers))
			if err != nil {
				return err
			}
			if err := model.LoadStateDict(sd); err != nil {
				return err
			}

			src := run.Data
			src.Limit = run.TestLimit
			test, err := dataset.Load(src, false)
			if err != nil {
				return fmt.Errorf("load test split: %w", err)
			}

			m, err := train.Evaluate(cmd.Context(), model, test, batchSize)
			if err != nil {
				return err
			}
			logger.L().Info("eval.done", "checkpoint", checkpoint, "loss", m.Loss, "accuracy", m.Accuracy, "examples", m.Examples)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s on %s: loss %.4f  accuracy %.2f%% (%d examples)\n",
				checkpoint, test.Name, m.Loss, m.Accuracy*100, m.Examples)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "run file the checkpoint was trained with")
	f.StringVar(&checkpoint, "checkpoint", "", "checkpoint or weights file")
	f.IntVar(&batchSize, "batch-size", 100, "evaluation batch size")
	return cmd
}
