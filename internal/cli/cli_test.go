package cli_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/armanet/internal/cli"
	"github.com/born-ml/armanet/internal/resnet"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := cli.NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-dir", t.TempDir()}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestSummary(t *testing.T) {
	out, err := run(t, "summary", "--arch", "ResNet18", "--dataset", "MNIST", "--arma=false", "--probe", "1", "--image-size", "8")
	require.NoError(t, err)
	assert.Contains(t, out, "ResNet18 BasicBlock/MNIST")
	assert.Contains(t, out, "total 11172810 parameters")
	assert.Contains(t, out, "input [1 1 8 8] -> output [1 10]")
}

func TestSummaryUnknownArch(t *testing.T) {
	_, err := run(t, "summary", "--arch", "ResNet20", "--probe", "0")
	require.ErrorIs(t, err, resnet.ErrUnknownArch)
}

func TestInfo(t *testing.T) {
	out, err := run(t, "info")
	require.NoError(t, err)
	assert.Contains(t, out, "armanet dev")
	assert.Contains(t, out, "workers")
}

func TestTrainThenEval(t *testing.T) {
	if testing.Short() {
		t.Skip("trains a ResNet18")
	}
	dir := t.TempDir()
	ckpt := filepath.Join(dir, "ckpt")
	cfgPath := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
model:
  arch: ResNet18
  arma: false
  dataset: CIFAR10
data:
  source: synthetic
  limit: 8
  test_limit: 4
  image_size: 8
train:
  epochs: 1
  batch_size: 4
  optimizer: {lr: 0.01}
checkpoint:
  dir: `+ckpt+`
`), 0o600))

	out, err := run(t, "train", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "ResNet18 conv(w=3) on synthetic")
	assert.Contains(t, out, "epoch   1/1")

	path := filepath.Join(ckpt, "epoch-001.born")
	assert.Contains(t, out, "checkpoint "+path)

	out, err = run(t, "eval", "--config", cfgPath, "--checkpoint", path)
	require.NoError(t, err)
	assert.Contains(t, out, "accuracy")
	assert.Contains(t, out, "(4 examples)")
}

func TestEvalRequiresCheckpoint(t *testing.T) {
	_, err := run(t, "eval")
	require.Error(t, err)
}

func TestTrainBadConfig(t *testing.T) {
	_, err := run(t, "train", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
