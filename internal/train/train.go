// Package train runs the supervised training loop for ResNet classifiers:
// mini-batch SGD on the NLL of the log-softmax output, per-epoch
// evaluation, learning rate schedules and .born checkpoints.
package train

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"strconv"
	"time"

	"github.com/born-ml/armanet/internal/autodiff"
	"github.com/born-ml/armanet/internal/dataset"
	"github.com/born-ml/armanet/internal/logger"
	"github.com/born-ml/armanet/internal/nn"
	"github.com/born-ml/armanet/internal/optim"
	"github.com/born-ml/armanet/internal/resnet"
	"github.com/born-ml/armanet/internal/serialization"
	"github.com/born-ml/armanet/internal/tensor"
)

// ErrShapeMismatch is returned when a dataset does not fit the model input.
var ErrShapeMismatch = errors.New("dataset does not match model")

// Config controls a training run.
type Config struct {
	Epochs    int
	BatchSize int
	Seed      int64

	Optimizer optim.Config
	Schedule  optim.Schedule // nil keeps Optimizer.LR

	CheckpointDir   string // "" disables checkpoints
	CheckpointEvery int    // epochs between checkpoints, default 1
}

// DefaultConfig returns a short SGD run.
func DefaultConfig() Config {
	return Config{
		Epochs:    1,
		BatchSize: 32,
		Seed:      1,
		Optimizer: optim.Config{Name: "sgd", LR: 0.1, Momentum: 0.9, WeightDecay: 5e-4},
	}
}

// Metrics are averaged over every example of a pass.
type Metrics struct {
	Loss     float64
	Accuracy float64
	Examples int
}

// EpochResult summarizes one epoch.
type EpochResult struct {
	Epoch    int
	LR       float32
	Train    Metrics
	Test     Metrics
	Duration time.Duration
}

// Trainer owns a model, its optimizer and the training progress.
type Trainer[B tensor.Backend] struct {
	cfg       Config
	model     *resnet.ResNet[*autodiff.AutodiffBackend[B]]
	backend   *autodiff.AutodiffBackend[B]
	opt       optim.Optimizer
	criterion *nn.NLLLoss[*autodiff.AutodiffBackend[B]]
	events    chan<- Event

	epoch int   // completed epochs
	step  int64 // completed optimizer steps
}

// New creates a trainer for model.
func New[B tensor.Backend](
	model *resnet.ResNet[*autodiff.AutodiffBackend[B]],
	backend *autodiff.AutodiffBackend[B],
	cfg Config,
) (*Trainer[B], error) {
	if cfg.Epochs <= 0 {
		return nil, fmt.Errorf("train: epochs must be positive, got %d", cfg.Epochs)
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("train: batch size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = 1
	}
	opt, err := optim.New(model.Parameters(), cfg.Optimizer, backend)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	if cfg.Schedule == nil {
		cfg.Schedule = optim.ConstantLR{Base: opt.LR()}
	}
	if b, ok := cfg.Schedule.(optim.EpochBound); ok {
		cfg.Schedule = b.WithEpochs(cfg.Epochs)
	}
	return &Trainer[B]{
		cfg:       cfg,
		model:     model,
		backend:   backend,
		opt:       opt,
		criterion: nn.NewNLLLoss(backend),
	}, nil
}

// Notify sends progress events to ch. Sends never block: events are
// dropped while ch is full.
func (t *Trainer[B]) Notify(ch chan<- Event) { t.events = ch }

// Epoch returns the number of completed epochs.
func (t *Trainer[B]) Epoch() int { return t.epoch }

// Step returns the number of optimizer steps taken.
func (t *Trainer[B]) Step() int64 { return t.step }

// Schedule returns the learning rate schedule in use.
func (t *Trainer[B]) Schedule() optim.Schedule { return t.cfg.Schedule }

// Optimizer returns the optimizer.
func (t *Trainer[B]) Optimizer() optim.Optimizer { return t.opt }

// Fit trains until cfg.Epochs epochs are complete, evaluating on test
// after each epoch when test is non-nil. A cancelled ctx stops the run
// between batches and returns ctx.Err().
func (t *Trainer[B]) Fit(ctx context.Context, trainSet, test *dataset.Images) ([]EpochResult, error) {
	if err := t.checkData(trainSet); err != nil {
		return nil, err
	}
	if test != nil {
		if err := t.checkData(test); err != nil {
			return nil, err
		}
	}

	log := logger.L().With("arch", string(t.model.Config().Arch), "dataset", trainSet.Name)
	log.Info("train.start",
		"epochs", t.cfg.Epochs,
		"resume_epoch", t.epoch,
		"batch_size", t.cfg.BatchSize,
		"examples", trainSet.Len(),
		"parameters", t.model.NumParameters(),
	)

	var history []EpochResult
	for t.epoch < t.cfg.Epochs {
		res, err := t.runEpoch(ctx, trainSet, test)
		if err != nil {
			log.Warn("train.stopped", "epoch", t.epoch+1, "err", err)
			return history, err
		}
		history = append(history, res)
		t.epoch++

		log.Info("train.epoch",
			"epoch", res.Epoch,
			"lr", res.LR,
			"loss", res.Train.Loss,
			"accuracy", res.Train.Accuracy,
			"test_loss", res.Test.Loss,
			"test_accuracy", res.Test.Accuracy,
			"duration_ms", res.Duration.Milliseconds(),
		)
		t.emit(Event{Kind: EpochDone, Epoch: res.Epoch, Epochs: t.cfg.Epochs, Result: res})

		if t.cfg.CheckpointDir != "" && (t.epoch%t.cfg.CheckpointEvery == 0 || t.epoch == t.cfg.Epochs) {
			path := filepath.Join(t.cfg.CheckpointDir, fmt.Sprintf("epoch-%03d.born", t.epoch))
			if err := t.SaveCheckpoint(path, res); err != nil {
				return history, err
			}
			t.emit(Event{Kind: CheckpointSaved, Epoch: res.Epoch, Epochs: t.cfg.Epochs, Path: path})
		}
	}

	t.emit(Event{Kind: Finished, Epoch: t.epoch, Epochs: t.cfg.Epochs})
	log.Info("train.done", "epochs", t.epoch, "steps", t.step)
	return history, nil
}

func (t *Trainer[B]) runEpoch(ctx context.Context, trainSet, test *dataset.Images) (EpochResult, error) {
	start := time.Now()
	lr := t.cfg.Schedule.LR(t.epoch)
	t.opt.SetLR(lr)

	rng := rand.New(rand.NewSource(t.cfg.Seed + int64(t.epoch))) //nolint:gosec // shuffling only
	batches := dataset.Batches(trainSet.Len(), t.cfg.BatchSize, rng, false)

	t.model.Train()
	var sum Metrics
	for i, idx := range batches {
		if err := ctx.Err(); err != nil {
			return EpochResult{}, err
		}
		loss, acc := t.TrainBatch(trainSet, idx)
		if math.IsNaN(loss) {
			return EpochResult{}, fmt.Errorf("train: loss is NaN at epoch %d batch %d", t.epoch+1, i+1)
		}
		sum.add(loss, acc, len(idx))

		logger.L().Debug("train.batch", "epoch", t.epoch+1, "batch", i+1, "loss", loss, "accuracy", acc)
		t.emit(Event{
			Kind:     BatchDone,
			Epoch:    t.epoch + 1,
			Epochs:   t.cfg.Epochs,
			Batch:    i + 1,
			Batches:  len(batches),
			Loss:     loss,
			Accuracy: acc,
		})
	}

	res := EpochResult{Epoch: t.epoch + 1, LR: lr, Train: sum.mean()}
	if test != nil {
		m, err := Evaluate(ctx, t.model, test, t.cfg.BatchSize)
		if err != nil {
			return EpochResult{}, err
		}
		res.Test = m
	}
	res.Duration = time.Since(start)
	return res, nil
}

// TrainBatch runs forward, backward and one optimizer step on the examples
// at idx, returning the batch loss and accuracy.
func (t *Trainer[B]) TrainBatch(data *dataset.Images, idx []int) (loss, accuracy float64) {
	x, y := batchTensors(data, idx, t.backend)

	tape := t.backend.Tape()
	tape.Clear()
	tape.StartRecording()
	out := t.model.Forward(x)
	l := t.criterion.Forward(out, y)
	grads := autodiff.Backward(l, t.backend)
	tape.StopRecording()

	nn.CollectGrads(t.model.Parameters(), grads)
	t.opt.Step(grads)
	t.opt.ZeroGrad()
	tape.Clear()
	t.step++

	return float64(l.Item()), nn.Accuracy(out, y)
}

// Evaluate runs model in eval mode over data and restores the previous
// mode afterwards.
func Evaluate[B tensor.Backend](ctx context.Context, model *resnet.ResNet[B], data *dataset.Images, batchSize int) (Metrics, error) {
	if data.Channels != model.InputChannels() {
		return Metrics{}, fmt.Errorf("%w: %d input channels, model expects %d", ErrShapeMismatch, data.Channels, model.InputChannels())
	}
	wasTraining := model.Training()
	model.Eval()
	defer model.SetTraining(wasTraining)

	backend := model.Backend()
	criterion := nn.NewNLLLoss(backend)
	var sum Metrics
	for _, idx := range dataset.Batches(data.Len(), batchSize, nil, false) {
		if err := ctx.Err(); err != nil {
			return Metrics{}, err
		}
		x, y := batchTensors(data, idx, backend)
		out := model.Forward(x)
		sum.add(float64(criterion.Forward(out, y).Item()), nn.Accuracy(out, y), len(idx))
	}
	return sum.mean(), nil
}

// SaveCheckpoint writes model weights, optimizer buffers and progress.
func (t *Trainer[B]) SaveCheckpoint(path string, res EpochResult) error {
	cfg := t.model.Config()
	err := serialization.SaveCheckpoint(path, serialization.Checkpoint{
		ModelType: string(cfg.Arch),
		Model:     t.model.StateDict(),
		Optimizer: t.opt.StateDict(),
		Meta: serialization.CheckpointMeta{
			Epoch:         t.epoch,
			Step:          t.step,
			Loss:          res.Train.Loss,
			Accuracy:      res.Test.Accuracy,
			OptimizerType: t.cfg.Optimizer.Name,
			TrainingMeta:  map[string]any{"lr": res.LR, "batch_size": t.cfg.BatchSize},
		},
		Metadata: ModelMetadata(cfg),
	})
	if err != nil {
		return err
	}
	logger.L().Info("checkpoint.saved", "path", path, "epoch", t.epoch, "step", t.step)
	return nil
}

// Resume restores a checkpoint written by SaveCheckpoint. Training then
// continues after the saved epoch.
func (t *Trainer[B]) Resume(path string) error {
	c, err := serialization.LoadCheckpoint(path)
	if err != nil {
		return err
	}
	if err := CheckMetadata(t.model.Config(), c.Metadata); err != nil {
		return fmt.Errorf("resume %s: %w", path, err)
	}
	if err := t.model.LoadStateDict(c.Model); err != nil {
		return fmt.Errorf("resume %s: %w", path, err)
	}
	if err := t.opt.LoadStateDict(c.Optimizer); err != nil {
		return fmt.Errorf("resume %s: %w", path, err)
	}
	t.epoch = c.Meta.Epoch
	t.step = c.Meta.Step
	logger.L().Info("checkpoint.resumed", "path", path, "epoch", t.epoch, "step", t.step)
	return nil
}

// ModelMetadata records the model configuration in checkpoint metadata.
func ModelMetadata(cfg resnet.Config) map[string]string {
	return map[string]string{
		"arch":          string(cfg.Arch),
		"dataset":       string(cfg.Dataset),
		"arma":          strconv.FormatBool(cfg.ARMA),
		"w_kernel_size": strconv.Itoa(cfg.WKernelSize),
		"a_kernel_size": strconv.Itoa(cfg.AKernelSize),
	}
}

// CheckMetadata reports a checkpoint written for a different model.
func CheckMetadata(cfg resnet.Config, meta map[string]string) error {
	for k, want := range ModelMetadata(cfg) {
		if got, ok := meta[k]; ok && got != want {
			return fmt.Errorf("%w: checkpoint %s=%s, model %s=%s", ErrShapeMismatch, k, got, k, want)
		}
	}
	return nil
}

func (t *Trainer[B]) checkData(d *dataset.Images) error {
	if d.Channels != t.model.InputChannels() {
		return fmt.Errorf("%w: %s has %d channels, model expects %d", ErrShapeMismatch, d.Name, d.Channels, t.model.InputChannels())
	}
	if d.Classes != t.model.NumClasses() {
		return fmt.Errorf("%w: %s has %d classes, model outputs %d", ErrShapeMismatch, d.Name, d.Classes, t.model.NumClasses())
	}
	if d.Len() == 0 {
		return fmt.Errorf("%w: %s is empty", ErrShapeMismatch, d.Name)
	}
	return nil
}

func (t *Trainer[B]) emit(e Event) {
	if t.events == nil {
		return
	}
	select {
	case t.events <- e:
	default:
	}
}

func batchTensors[B tensor.Backend](d *dataset.Images, idx []int, backend B) (*tensor.Tensor[float32, B], *tensor.Tensor[int32, B]) {
	xs, ys := d.Gather(idx)
	x, err := tensor.FromSlice(xs, tensor.Shape{len(idx), d.Channels, d.Height, d.Width}, backend)
	if err != nil {
		panic(err)
	}
	y, err := tensor.FromSlice(ys, tensor.Shape{len(idx)}, backend)
	if err != nil {
		panic(err)
	}
	return x, y
}

func (m *Metrics) add(loss, acc float64, n int) {
	m.Loss += loss * float64(n)
	m.Accuracy += acc * float64(n)
	m.Examples += n
}

func (m Metrics) mean() Metrics {
	if m.Examples == 0 {
		return m
	}
	return Metrics{Loss: m.Loss / float64(m.Examples), Accuracy: m.Accuracy / float64(m.Examples), Examples: m.Examples}
}
