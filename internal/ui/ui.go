package ui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/givecrm/internal/models"
	"github.com/desertthunder/givecrm/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	DeliveryListView ViewState = iota
	DetailView
	ConfirmView
	ReplayView
	ResultView
)

// listLimit caps how many deliveries are loaded at once.
const listLimit = 500

// Replayer re-processes deliveries; [tasks.DonationEngine] implements it.
type Replayer interface {
	Replay(ctx context.Context, prog chan<- tasks.ProgressUpdate, store tasks.DeliveryStore, opts tasks.ReplayOpts) (*tasks.ReplayResult, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	store        tasks.DeliveryStore
	replayer     Replayer
	width        int
	height       int
	deliveryList list.Model
	deliveries   []*models.Delivery
	selected     *models.Delivery
	failedOnly   bool
	progressChan chan tasks.ProgressUpdate
	progress     tasks.ProgressUpdate
	result       *tasks.ReplayResult
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model. replayer may be nil, which disables replay.
func NewModel(ctx context.Context, store tasks.DeliveryStore, replayer Replayer) *Model {
	return &Model{
		ctx:          ctx,
		view:         DeliveryListView,
		store:        store,
		replayer:     replayer,
		deliveryList: newDeliveryList(nil, false),
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// Init initializes the TUI by loading deliveries.
func (m *Model) Init() tea.Cmd {
	return m.loadDeliveries()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.deliveryList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case DeliveryListView:
			return m.handleListKeys(msg)
		case DetailView:
			return m.handleDetailKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		case ReplayView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
		}
		return m, nil

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	if m.view == DeliveryListView {
		m.deliveryList, cmd = m.deliveryList.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgDeliveriesLoaded:
		data := msg.data.(deliveriesLoaded)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.err = nil
		m.deliveries = data.deliveries
		m.deliveryList = newDeliveryList(data.deliveries, m.failedOnly)
		if m.width > 0 {
			m.deliveryList.SetSize(m.width-4, m.height-8)
		}
		return m, nil

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgReplayComplete:
		data := msg.data.(replayComplete)
		m.result = data.result
		m.err = data.err
		m.progressChan = nil
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress g to reload, q to quit", m.err))
	}

	switch m.view {
	case DeliveryListView:
		return m.renderList()
	case DetailView:
		return m.renderDetail()
	case ConfirmView:
		return m.renderConfirm()
	case ReplayView:
		return m.renderReplay()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.deliveryList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.deliveryList, cmd = m.deliveryList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.reload):
		return m, m.loadDeliveries()
	case key.Matches(msg, m.keys.filter):
		m.failedOnly = !m.failedOnly
		return m, m.loadDeliveries()
	case key.Matches(msg, m.keys.enter):
		if d := m.selectedDelivery(); d != nil {
			m.selected = d
			m.view = DetailView
		}
		return m, nil
	case key.Matches(msg, m.keys.replay):
		if d := m.selectedDelivery(); d != nil && m.canReplay(d) {
			m.selected = d
			m.view = ConfirmView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.deliveryList, cmd = m.deliveryList.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = DeliveryListView
	case key.Matches(msg, m.keys.replay):
		if m.canReplay(m.selected) {
			m.view = ConfirmView
		}
	}
	return m, nil
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		m.view = DetailView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		m.view = ReplayView
		return m, m.startReplay()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.reload):
		m.view = DeliveryListView
		m.selected = nil
		m.result = nil
		m.err = nil
		return m, m.loadDeliveries()
	}
	return m, nil
}

func (m *Model) selectedDelivery() *models.Delivery {
	if item, ok := m.deliveryList.SelectedItem().(deliveryItem); ok {
		return item.delivery
	}
	return nil
}

func (m *Model) canReplay(d *models.Delivery) bool {
	return m.replayer != nil && d != nil && d.Replayable(false)
}

func (m *Model) loadDeliveries() tea.Cmd {
	failedOnly := m.failedOnly
	return func() tea.Msg {
		criteria := map[string]any{"limit": listLimit}
		if failedOnly {
			criteria["status"] = models.DeliveryFailed
		}
		deliveries, err := m.store.List(criteria)
		return deliveriesLoadedMsg(deliveries, err)
	}
}

func (m *Model) startReplay() tea.Cmd {
	progress := make(chan tasks.ProgressUpdate, 50)
	m.progressChan = progress
	id := m.selected.ID()

	go func() {
		result, err := m.replayer.Replay(m.ctx, progress, m.store, tasks.ReplayOpts{IDs: []string{id}})
		m.result = result
		m.err = err
		close(progress)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress := m.progressChan
	return func() tea.Msg {
		if progress == nil {
			return replayCompleteMsg(m.result, m.err)
		}

		update, ok := <-progress
		if !ok {
			return replayCompleteMsg(m.result, m.err)
		}
		return progressUpdateMsg(update)
	}
}

func newDeliveryList(deliveries []*models.Delivery, failedOnly bool) list.Model {
	items := make([]list.Item, len(deliveries))
	for i, d := range deliveries {
		items[i] = deliveryItem{delivery: d}
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Deliveries"
	if failedOnly {
		l.Title = "Failed deliveries"
	}
	return l
}

func (m *Model) renderList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.filter, m.keys.reload, m.keys.quit}
	if m.replayer != nil {
		helpKeys = append([]key.Binding{m.keys.replay}, helpKeys...)
	}
	return fmt.Sprintf("%s\n\n%s", m.deliveryList.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderDetail() string {
	d := m.selected
	if d == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.title.Render(fmt.Sprintf("Delivery #%d", d.Sequence())))
	b.WriteString("\n")

	field := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(styles.label.Render(label) + value + "\n")
	}
	id := func(n int) string {
		if n <= 0 {
			return ""
		}
		return fmt.Sprint(n)
	}

	field("ID", d.ID())
	field("Request", d.RequestID())
	field("Received", d.CreatedAt().Format("2006-01-02 15:04:05"))
	field("Provider", d.Provider())
	field("Event", d.Event())
	field("Status", styles.status(d.Status()))
	field("Attempts", fmt.Sprint(d.Attempts()))
	field("Transaction", d.TransactionID())
	field("Email", d.Email())
	field("Contact", id(d.ContactID()))
	field("Contribution", id(d.ContributionID()))
	field("Membership", id(d.MembershipID()))
	field("Error", d.ErrorMessage())

	if payload := prettyPayload(d.Payload()); payload != "" {
		b.WriteString("\n" + payload + "\n")
	}

	helpKeys := []key.Binding{m.keys.back, m.keys.quit}
	if m.canReplay(d) {
		helpKeys = append([]key.Binding{m.keys.replay}, helpKeys...)
	}
	b.WriteString("\n" + m.help.ShortHelpView(helpKeys))
	return b.String()
}

func (m *Model) renderConfirm() string {
	d := m.selected
	title := styles.title.Render(fmt.Sprintf("Replay delivery #%d?", d.Sequence()))
	info := fmt.Sprintf("\nTransaction: %s\nEmail: %s\nStatus: %s (%d attempts)\n", d.TransactionID(), d.Email(), d.Status(), d.Attempts())
	warn := styles.warn.Render("Replaying creates a new contribution in the CRM.")

	helpKeys := []key.Binding{m.keys.yes, m.keys.no}
	return fmt.Sprintf("%s\n%s\n%s\n\n%s", title, info, warn, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderReplay() string {
	title := styles.title.Render("Replaying Delivery")
	message := m.progress.Message
	if message == "" {
		message = "Waiting for the CRM..."
	}
	return fmt.Sprintf("%s\n\n%s", title, message)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})

	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Replay failed: %v", m.err)) + "\n\n" + helpView
	}
	if m.result == nil || len(m.result.Items) == 0 {
		return styles.err.Render("No result available") + "\n\n" + helpView
	}

	item := m.result.Items[0]
	var body string
	switch {
	case item.Error != nil:
		body = styles.err.Render(fmt.Sprintf("✗ Replay of %s failed", item.DeliveryID)) + fmt.Sprintf("\n\n%v", item.Error)
	case item.Status == "skipped":
		body = styles.warn.Render(fmt.Sprintf("- Delivery %s was skipped", item.DeliveryID))
	default:
		body = styles.ok.Render("✓ Replay Complete!") + fmt.Sprintf(
			"\n\nContact: %d\nContribution: %d\nMembership: %d",
			item.ContactID, item.ContributionID, item.MembershipID,
		)
	}
	return fmt.Sprintf("%s\n\n%s", body, helpView)
}

func prettyPayload(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		return string(payload)
	}
	return buf.String()
}
