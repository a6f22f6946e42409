package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/armanet/internal/train"
)

func collect(ch <-chan tea.Msg) []tea.Msg {
	var out []tea.Msg
	for msg := range ch {
		out = append(out, msg)
	}
	return out
}

func TestStartForwardsEventsThenDone(t *testing.T) {
	boom := errors.New("boom")
	msgs := collect(start(context.Background(), func(_ context.Context, events chan<- train.Event) error {
		events <- train.Event{Kind: train.BatchDone, Epoch: 1, Epochs: 1, Batch: 1, Batches: 2}
		events <- train.Event{Kind: train.EpochDone, Epoch: 1, Epochs: 1}
		return boom
	}))

	require.Len(t, msgs, 3)
	assert.Equal(t, train.BatchDone, train.Event(msgs[0].(trainEventMsg)).Kind)
	assert.Equal(t, train.EpochDone, train.Event(msgs[1].(trainEventMsg)).Kind)
	assert.Equal(t, jobDoneMsg{Err: boom}, msgs[2])
}

func TestModelTracksProgress(t *testing.T) {
	m := newModel("ResNet18", nil, nil)
	assert.Contains(t, m.View(), "loading")

	next, _ := m.Update(trainEventMsg{Kind: train.BatchDone, Epoch: 1, Epochs: 2, Batch: 1, Batches: 4, Loss: 2.5, Accuracy: 0.25})
	m = next.(model)
	assert.InDelta(t, 0.125, m.percent(), 1e-9)
	assert.Contains(t, m.View(), "epoch 1/2  batch 1/4")
	assert.Contains(t, m.View(), "loss 2.5000  acc 25.00%")

	res := train.EpochResult{Epoch: 1, LR: 0.1, Train: train.Metrics{Loss: 2, Accuracy: 0.5}}
	next, _ = m.Update(trainEventMsg{Kind: train.EpochDone, Epoch: 1, Epochs: 2, Result: res})
	m = next.(model)
	assert.InDelta(t, 0.5, m.percent(), 1e-9)
	assert.Contains(t, m.View(), "50.00%")

	next, _ = m.Update(trainEventMsg{Kind: train.CheckpointSaved, Epoch: 1, Epochs: 2, Path: "ckpt/epoch-001.born"})
	m = next.(model)
	assert.Contains(t, m.View(), "checkpoint ckpt/epoch-001.born")

	next, cmd := m.Update(jobDoneMsg{})
	m = next.(model)
	require.NotNil(t, cmd)
	assert.True(t, m.done)
	assert.Contains(t, m.View(), "done")
}

func TestModelCancelsOnQuitKey(t *testing.T) {
	cancelled := 0
	m := newModel("run", nil, func() { cancelled++ })

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = next.(model)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m = next.(model)

	assert.Equal(t, 1, cancelled)
	assert.True(t, m.stopping)
	assert.Contains(t, m.View(), "stopping")

	next, _ = m.Update(jobDoneMsg{Err: context.Canceled})
	m = next.(model)
	assert.Contains(t, m.View(), "failed: context canceled")
}
