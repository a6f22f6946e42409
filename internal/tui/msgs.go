package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/born-ml/armanet/internal/train"
)

type trainEventMsg train.Event

type jobDoneMsg struct {
	Err error
}

func listen(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return jobDoneMsg{}
		}
		return msg
	}
}
