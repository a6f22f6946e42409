package train_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/armanet/internal/autodiff"
	"github.com/born-ml/armanet/internal/backend/cpu"
	"github.com/born-ml/armanet/internal/config"
	"github.com/born-ml/armanet/internal/dataset"
	"github.com/born-ml/armanet/internal/optim"
	"github.com/born-ml/armanet/internal/resnet"
	"github.com/born-ml/armanet/internal/train"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newModel(t *testing.T, arma bool) (*resnet.ResNet[Backend], Backend) {
	t.Helper()
	backend := autodiff.New(cpu.New())
	cfg := resnet.DefaultConfig()
	cfg.ARMA = arma
	model, err := resnet.New(cfg, backend)
	require.NoError(t, err)
	return model, backend
}

func smallConfig() train.Config {
	cfg := train.DefaultConfig()
	cfg.Epochs = 2
	cfg.BatchSize = 4
	cfg.Optimizer = optim.Config{Name: "sgd", LR: 0.01, Momentum: 0.9}
	return cfg
}

func TestNewRejectsBadConfig(t *testing.T) {
	model, backend := newModel(t, false)

	cfg := smallConfig()
	cfg.Epochs = 0
	_, err := train.New(model, backend, cfg)
	require.Error(t, err)

	cfg = smallConfig()
	cfg.BatchSize = 0
	_, err = train.New(model, backend, cfg)
	require.Error(t, err)

	cfg = smallConfig()
	cfg.Optimizer.Name = "lbfgs"
	_, err = train.New(model, backend, cfg)
	require.ErrorIs(t, err, optim.ErrUnknownOptimizer)
}

func TestNewRebindsCosineToEpochOverride(t *testing.T) {
	run, err := config.Parse("run.yaml", []byte(
		"train: {epochs: 10, batch_size: 4, optimizer: {lr: 0.1}, schedule: {name: cosine, min_lr: 0}}\n"))
	require.NoError(t, err)
	run.Train.Epochs = 20

	model, backend := newModel(t, false)
	tr, err := train.New(model, backend, run.Train)
	require.NoError(t, err)

	sched := tr.Schedule()
	assert.Equal(t, optim.CosineLR{Base: 0.1, Min: 0, Epochs: 20}, sched)
	assert.InDelta(t, 0.05, sched.LR(10), 1e-6)
	for epoch := 0; epoch < 20; epoch++ {
		assert.Greater(t, sched.LR(epoch), float32(0), "epoch %d", epoch)
	}
	assert.Equal(t, float32(0), sched.LR(20))
}

func TestTrainBatchReducesLoss(t *testing.T) {
	model, backend := newModel(t, false)
	cfg := smallConfig()
	cfg.Optimizer = optim.Config{Name: "sgd", LR: 0.05}
	tr, err := train.New(model, backend, cfg)
	require.NoError(t, err)

	data := dataset.Synthetic(4, 3, 8, 10, 3)
	idx := []int{0, 1, 2, 3}
	first, _ := tr.TrainBatch(data, idx)
	var last float64
	for i := 0; i < 5; i++ {
		last, _ = tr.TrainBatch(data, idx)
	}
	assert.Less(t, last, first)
	assert.Equal(t, int64(6), tr.Step())
	assert.Zero(t, backend.Tape().NumOps(), "tape is cleared after each step")
	assert.False(t, backend.Tape().IsRecording())
}

func TestFitWritesCheckpointsAndEvents(t *testing.T) {
	if testing.Short() {
		t.Skip("trains a ResNet18")
	}
	model, backend := newModel(t, true)
	cfg := smallConfig()
	cfg.CheckpointDir = t.TempDir()
	tr, err := train.New(model, backend, cfg)
	require.NoError(t, err)

	events := make(chan train.Event, 64)
	tr.Notify(events)

	trainSet := dataset.Synthetic(8, 3, 8, 10, 1)
	testSet := dataset.Synthetic(4, 3, 8, 10, 2)
	history, err := tr.Fit(context.Background(), trainSet, testSet)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 2, tr.Epoch())
	assert.Equal(t, int64(4), tr.Step())
	assert.Equal(t, 8, history[0].Train.Examples)
	assert.Equal(t, 4, history[1].Test.Examples)
	assert.True(t, model.Training(), "evaluation restores training mode")

	close(events)
	kinds := map[train.EventKind]int{}
	for e := range events {
		kinds[e.Kind]++
	}
	assert.Equal(t, 4, kinds[train.BatchDone])
	assert.Equal(t, 2, kinds[train.EpochDone])
	assert.Equal(t, 2, kinds[train.CheckpointSaved])
	assert.Equal(t, 1, kinds[train.Finished])

	for _, name := range []string{"epoch-001.born", "epoch-002.born"} {
		_, err := os.Stat(filepath.Join(cfg.CheckpointDir, name))
		require.NoError(t, err, name)
	}

	// Resume into a fresh model and finish a third epoch.
	model2, backend2 := newModel(t, true)
	cfg.Epochs = 3
	tr2, err := train.New(model2, backend2, cfg)
	require.NoError(t, err)
	require.NoError(t, tr2.Resume(filepath.Join(cfg.CheckpointDir, "epoch-002.born")))
	assert.Equal(t, 2, tr2.Epoch())
	assert.Equal(t, int64(4), tr2.Step())

	sd1, sd2 := model.StateDict(), model2.StateDict()
	assert.Equal(t, sd1["layer1.0.conv1.ar.alpha"].AsFloat32(), sd2["layer1.0.conv1.ar.alpha"].AsFloat32())
	assert.Equal(t, sd1["bn1.running_var"].AsFloat32(), sd2["bn1.running_var"].AsFloat32())

	history, err = tr2.Fit(context.Background(), trainSet, nil)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 3, history[0].Epoch)
}

func TestFitHonoursCancellation(t *testing.T) {
	model, backend := newModel(t, false)
	tr, err := train.New(model, backend, smallConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	history, err := tr.Fit(ctx, dataset.Synthetic(8, 3, 8, 10, 1), nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, history)
	assert.Zero(t, tr.Step())
}

func TestFitRejectsMismatchedData(t *testing.T) {
	model, backend := newModel(t, false)
	tr, err := train.New(model, backend, smallConfig())
	require.NoError(t, err)

	_, err = tr.Fit(context.Background(), dataset.Synthetic(8, 1, 8, 10, 1), nil)
	require.ErrorIs(t, err, train.ErrShapeMismatch)

	_, err = tr.Fit(context.Background(), dataset.Synthetic(8, 3, 8, 100, 1), nil)
	require.ErrorIs(t, err, train.ErrShapeMismatch)
}

func TestEvaluate(t *testing.T) {
	model, _ := newModel(t, false)
	model.Train()

	m, err := train.Evaluate(context.Background(), model, dataset.Synthetic(6, 3, 8, 10, 1), 4)
	require.NoError(t, err)
	assert.Equal(t, 6, m.Examples)
	assert.Greater(t, m.Loss, 0.0)
	assert.GreaterOrEqual(t, m.Accuracy, 0.0)
	assert.LessOrEqual(t, m.Accuracy, 1.0)
	assert.True(t, model.Training())
}

func TestCheckMetadata(t *testing.T) {
	cfg := resnet.DefaultConfig()
	meta := train.ModelMetadata(cfg)
	require.NoError(t, train.CheckMetadata(cfg, meta))
	require.NoError(t, train.CheckMetadata(cfg, nil))

	meta["arch"] = string(resnet.ResNet50)
	require.ErrorIs(t, train.CheckMetadata(cfg, meta), train.ErrShapeMismatch)
}
