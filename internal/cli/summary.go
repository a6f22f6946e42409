package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/born-ml/armanet/internal/resnet"
	"github.com/born-ml/armanet/internal/tensor"
)

func newSummaryCmd() *cobra.Command {
	cfg := resnet.DefaultConfig()
	var (
		arch, ds  string
		batch     int
		imageSize int
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the layer table of a model and probe its output shape",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.Arch = resnet.Arch(arch)
			cfg.Dataset = resnet.Dataset(ds)

			backend := newBackend(0)
			model, err := resnet.New(cfg, backend)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := resnet.WriteSummary(out, model); err != nil {
				return err
			}
			if batch <= 0 {
				return nil
			}

			model.Eval()
			x := tensor.Randn[float32](tensor.Shape{batch, model.InputChannels(), imageSize, imageSize}, backend)
			y := model.Forward(x)
			_, err = fmt.Fprintf(out, "\ninput %v -> output %v\n", x.Shape(), y.Shape())
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&arch, "arch", string(cfg.Arch), "architecture: ResNet18, ResNet34, ResNet50, ResNet101, ResNet152")
	f.StringVar(&ds, "dataset", string(cfg.Dataset), "dataset: MNIST, CIFAR10, CIFAR100, ImageNet")
	f.BoolVar(&cfg.ARMA, "arma", cfg.ARMA, "use ARMA2D filters")
	f.Float32Var(&cfg.RFInit, "rf-init", cfg.RFInit, "initial AR coefficient")
	f.IntVar(&cfg.WKernelSize, "w-kernel", cfg.WKernelSize, "convolution kernel size")
	f.IntVar(&cfg.AKernelSize, "a-kernel", cfg.AKernelSize, "AR kernel size")
	f.IntVar(&batch, "probe", 2, "probe batch size (0 skips the forward pass)")
	f.IntVar(&imageSize, "image-size", 32, "probe image side")
	return cmd
}
