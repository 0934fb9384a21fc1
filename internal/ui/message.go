package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/givecrm/internal/models"
	"github.com/desertthunder/givecrm/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgDeliveriesLoaded MsgKind = iota
	MsgProgressUpdate
	MsgReplayComplete
)

type deliveriesLoaded struct {
	deliveries []*models.Delivery
	err        error
}

type replayComplete struct {
	result *tasks.ReplayResult
	err    error
}

// deliveriesLoadedMsg is the constructor for [MsgDeliveriesLoaded]
func deliveriesLoadedMsg(deliveries []*models.Delivery, err error) Msg {
	return Msg{kind: MsgDeliveriesLoaded, data: deliveriesLoaded{deliveries, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// replayCompleteMsg is the constructor for [MsgReplayComplete]
func replayCompleteMsg(result *tasks.ReplayResult, err error) Msg {
	return Msg{kind: MsgReplayComplete, data: replayComplete{result, err}}
}
