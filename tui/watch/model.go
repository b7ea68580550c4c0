// Package watch is a terminal consumer of the view state: it polls for
// change events and re-renders the current filters, map view and matching
// facilities whenever another writer changes them.
package watch

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vargaseous/sec-mcptest/internal/dataset"
	"github.com/vargaseous/sec-mcptest/state"
	"github.com/vargaseous/sec-mcptest/tui/theme"
)

// Source reads and resets the shared document. client.Client satisfies it.
type Source interface {
	GetState(ctx context.Context) (state.Document, error)
	ResetState(ctx context.Context) error
}

// Stepper performs one non-blocking change check. poll.Loop satisfies it.
type Stepper interface {
	Step(ctx context.Context) bool
}

// Facilities resolves the features matching a filter and the map center
// to use when the document sets none. May be nil. *dataset.Dataset
// satisfies it.
type Facilities interface {
	Visible(classes []string) ([]dataset.Feature, error)
	Center(classes []string) ([2]float64, bool, error)
}

type (
	tickMsg    time.Time
	checkedMsg struct{ changed bool }
	stateMsg   struct {
		doc state.Document
		err error
	}
	resetMsg struct{ err error }
)

// Model is the bubbletea model of the watch view.
type Model struct {
	ctx        context.Context
	source     Source
	stepper    Stepper
	facilities Facilities
	interval   time.Duration
	now        func() time.Time

	keys  KeyMap
	help  help.Model
	theme *theme.Theme

	doc       state.Document
	loaded    bool
	visible   []dataset.Feature
	center    *state.LatLng
	dataErr   error
	err       error
	refreshes int
	updatedAt time.Time
	width     int
}

// New creates the watch model. interval paces the change checks.
func New(ctx context.Context, source Source, stepper Stepper, facilities Facilities, interval time.Duration) *Model {
	return &Model{
		ctx:        ctx,
		source:     source,
		stepper:    stepper,
		facilities: facilities,
		interval:   interval,
		now:        time.Now,
		keys:       DefaultKeyMap,
		help:       help.New(),
		theme:      theme.DefaultTheme,
	}
}

// Init fetches the document once and starts the check ticker.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.tick())
}

// Update handles messages and updates the model accordingly.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Refresh):
			return m, m.fetch()
		case key.Matches(msg, m.keys.Reset):
			return m, m.reset()
		}
		return m, nil

	case tickMsg:
		return m, m.check()

	case checkedMsg:
		// Checks run one at a time; the next tick is armed only after this
		// one finished.
		if msg.changed {
			return m, tea.Batch(m.fetch(), m.tick())
		}
		return m, m.tick()

	case stateMsg:
		m.apply(msg)
		return m, nil

	case resetMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		return m, m.fetch()
	}
	return m, nil
}

func (m *Model) apply(msg stateMsg) {
	if msg.err != nil {
		// Keep showing the last good document.
		m.err = msg.err
		return
	}
	m.err = nil
	m.doc = msg.doc
	m.loaded = true
	m.refreshes++
	m.updatedAt = m.now()

	m.visible, m.center, m.dataErr = nil, nil, nil
	if m.facilities == nil {
		return
	}
	m.visible, m.dataErr = m.facilities.Visible(msg.doc.SelectedFClasses)
	if m.dataErr != nil || msg.doc.MapCenter != nil {
		return
	}
	center, ok, err := m.facilities.Center(msg.doc.SelectedFClasses)
	if err != nil {
		m.dataErr = err
		return
	}
	if ok {
		c := state.LatLng(center)
		m.center = &c
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) check() tea.Cmd {
	return func() tea.Msg {
		return checkedMsg{changed: m.stepper.Step(m.ctx)}
	}
}

func (m *Model) fetch() tea.Cmd {
	return func() tea.Msg {
		doc, err := m.source.GetState(m.ctx)
		return stateMsg{doc: doc, err: err}
	}
}

func (m *Model) reset() tea.Cmd {
	return func() tea.Msg {
		return resetMsg{err: m.source.ResetState(m.ctx)}
	}
}
