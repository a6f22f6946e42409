package resnet

import (
	"fmt"
	"io"
	"strings"

	"github.com/born-ml/armanet/internal/nn"
	"github.com/born-ml/armanet/internal/tensor"
)

// StageSummary describes one section of a model.
type StageSummary struct {
	Name        string
	Blocks      int
	Shortcuts   int
	OutChannels int
	Stride      int
	Parameters  int
}

// Summary lists the stem, the four stages and the head with their
// parameter counts.
func (m *ResNet[B]) Summary() []StageSummary {
	stem := nn.NumParameters(m.conv1.Parameters()) + nn.NumParameters(m.bn1.Parameters())
	rows := []StageSummary{{Name: "stem", OutChannels: stemPlanes, Stride: 1, Parameters: stem}}

	for i, stage := range m.stages {
		row := StageSummary{
			Name:       fmt.Sprintf("layer%d", i+1),
			Blocks:     stage.Len(),
			Stride:     stageStrides[i],
			Parameters: nn.NumParameters(stage.Parameters()),
		}
		for _, b := range m.Blocks(i) {
			row.OutChannels = b.OutChannels()
			if b.HasShortcut() {
				row.Shortcuts++
			}
		}
		rows = append(rows, row)
	}

	return append(rows, StageSummary{
		Name:        "linear",
		OutChannels: m.dataset.Classes,
		Stride:      1,
		Parameters:  nn.NumParameters(m.linear.Parameters()),
	})
}

// WriteSummary prints the summary as an aligned table.
func WriteSummary[B tensor.Backend](w io.Writer, m *ResNet[B]) error {
	cfg := m.Config()
	filters := "conv"
	if cfg.ARMA {
		filters = fmt.Sprintf("arma(a=%d, init=%g)", cfg.AKernelSize, cfg.RFInit)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s/%s  w=%d %s\n", cfg.Arch, m.arch.Kind, cfg.Dataset, cfg.WKernelSize, filters)
	fmt.Fprintf(&sb, "%-8s %6s %9s %8s %6s %12s\n", "stage", "blocks", "shortcuts", "channels", "stride", "params")
	for _, r := range m.Summary() {
		fmt.Fprintf(&sb, "%-8s %6d %9d %8d %6d %12d\n", r.Name, r.Blocks, r.Shortcuts, r.OutChannels, r.Stride, r.Parameters)
	}
	fmt.Fprintf(&sb, "total %d parameters\n", m.NumParameters())

	_, err := io.WriteString(w, sb.String())
	return err
}
