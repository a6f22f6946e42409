// Package tui renders training progress in the terminal.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/born-ml/armanet/internal/train"
)

// Job is a training run reporting progress on events. It must stop when
// ctx is cancelled.
type Job func(ctx context.Context, events chan<- train.Event) error

// shown epochs in the history table
const historyRows = 8

type model struct {
	theme  Theme
	title  string
	msgs   <-chan tea.Msg
	cancel context.CancelFunc
	bar    progress.Model

	epoch, epochs  int
	batch, batches int
	loss, accuracy float64

	history    []train.EpochResult
	checkpoint string

	stopping bool
	done     bool
	err      error
}

// Run executes job while showing its progress and returns the job's error.
// q or ctrl+c cancels the job and waits for it to stop.
func Run(ctx context.Context, title string, job Job) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	msgs := start(ctx, job)
	final, err := tea.NewProgram(newModel(title, msgs, cancel)).Run()
	if err != nil {
		cancel()
		for range msgs {
		}
		return err
	}
	if m, ok := final.(model); ok {
		return m.err
	}
	return nil
}

// start runs job in a goroutine and converts its events to messages. The
// returned channel ends with a jobDoneMsg and is then closed.
func start(ctx context.Context, job Job) <-chan tea.Msg {
	msgs := make(chan tea.Msg, 256)
	events := make(chan train.Event, 256)
	forwarded := make(chan struct{})

	go func() {
		defer close(forwarded)
		for e := range events {
			msgs <- trainEventMsg(e)
		}
	}()
	go func() {
		err := job(ctx, events)
		close(events)
		<-forwarded
		msgs <- jobDoneMsg{Err: err}
		close(msgs)
	}()
	return msgs
}

func newModel(title string, msgs <-chan tea.Msg, cancel context.CancelFunc) model {
	return model{
		theme:  DefaultTheme(),
		title:  title,
		msgs:   msgs,
		cancel: cancel,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (m model) Init() tea.Cmd { return listen(m.msgs) }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = max(10, min(60, msg.Width-20))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if !m.stopping && m.cancel != nil {
				m.cancel()
			}
			m.stopping = true
		}
		return m, nil

	case trainEventMsg:
		m.apply(train.Event(msg))
		return m, listen(m.msgs)

	case jobDoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

func (m *model) apply(e train.Event) {
	m.epoch, m.epochs = e.Epoch, e.Epochs
	switch e.Kind {
	case train.BatchDone:
		m.batch, m.batches = e.Batch, e.Batches
		m.loss, m.accuracy = e.Loss, e.Accuracy
	case train.EpochDone:
		m.history = append(m.history, e.Result)
		m.batch = m.batches
	case train.CheckpointSaved:
		m.checkpoint = e.Path
	case train.Finished:
		m.batch = m.batches
	}
}

// percent is the overall completion across epochs.
func (m model) percent() float64 {
	if m.epochs == 0 {
		return 0
	}
	done := float64(len(m.history))
	if m.batches > 0 && m.batch < m.batches {
		done += float64(m.batch) / float64(m.batches)
	}
	return min(1, done/float64(m.epochs))
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(m.theme.Title.Render(m.title))
	b.WriteString("\n")
	if m.epochs > 0 {
		b.WriteString(m.theme.Subtitle.Render(fmt.Sprintf("epoch %d/%d  batch %d/%d", m.epoch, m.epochs, m.batch, m.batches)))
	} else {
		b.WriteString(m.theme.Subtitle.Render("loading"))
	}
	b.WriteString("\n\n")
	b.WriteString(m.bar.ViewAs(m.percent()))
	b.WriteString(fmt.Sprintf("\n\nloss %.4f  acc %.2f%%\n", m.loss, m.accuracy*100))

	if len(m.history) > 0 {
		var rows []string
		rows = append(rows, fmt.Sprintf("%-6s %-10s %-10s %-9s %-10s %-9s", "epoch", "lr", "loss", "acc", "test loss", "test acc"))
		for _, r := range m.history[max(0, len(m.history)-historyRows):] {
			rows = append(rows, fmt.Sprintf("%-6d %-10.4g %-10.4f %-9s %-10.4f %-9s",
				r.Epoch, r.LR, r.Train.Loss, pct(r.Train.Accuracy), r.Test.Loss, pct(r.Test.Accuracy)))
		}
		b.WriteString("\n")
		b.WriteString(m.theme.Card.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
		b.WriteString("\n")
	}
	if m.checkpoint != "" {
		b.WriteString("\ncheckpoint " + m.checkpoint + "\n")
	}

	switch {
	case m.done && m.err != nil:
		b.WriteString("\n" + m.theme.Bad.Render("failed: "+m.err.Error()) + "\n")
	case m.done:
		b.WriteString("\n" + m.theme.Good.Render("done") + "\n")
	case m.stopping:
		b.WriteString("\n" + m.theme.Help.Render("stopping after the current batch...") + "\n")
	default:
		b.WriteString("\n" + m.theme.Help.Render("q: stop") + "\n")
	}
	return b.String()
}

func pct(v float64) string { return fmt.Sprintf("%.2f%%", v*100) }
