package viz

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/viscosim/internal/config"
	"github.com/san-kum/viscosim/internal/experiment"
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00cccc")).Bold(true)
	subStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#666688"))
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ffff")).Bold(true)
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Bold(true)
	descStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff88ff"))
	idleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#555566"))
	idleDesc    = lipgloss.NewStyle().Foreground(lipgloss.Color("#444455"))
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00aaaa")).Bold(true)
)

var variantInfo = map[string]string{
	config.VariantViscoplastic:  "yields freely, flows",
	config.VariantElastoplastic: "keeps its rest shape",
}

const (
	stateMenu = iota
	stateConfig
	stateSim
)

type entry struct{ variant, preset string }

// param is an editable scene parameter.
type param struct {
	name string
	get  func(*config.Config) float64
	set  func(*config.Config, float64)
}

var params = []param{
	{"viscosity", func(c *config.Config) float64 { return c.Body.Viscosity }, func(c *config.Config, v float64) { c.Body.Viscosity = v }},
	{"friction", func(c *config.Config) float64 { return c.Body.FrictionAngle }, func(c *config.Config, v float64) { c.Body.FrictionAngle = v }},
	{"cohesion", func(c *config.Config) float64 { return c.Body.Cohesion }, func(c *config.Config, v float64) { c.Body.Cohesion = v }},
	{"horizon", func(c *config.Config) float64 { return c.Body.Horizon }, func(c *config.Config, v float64) { c.Body.Horizon = v }},
	{"duration", func(c *config.Config) float64 { return c.Scene.TotalTime }, func(c *config.Config, v float64) { c.Scene.TotalTime = v }},
}

type model struct {
	state, cursor int
	entries       []entry
	cfg           *config.Config
	paramCursor   int
	editing       bool
	editBuf       string
	err           error
	liveModel     Model
}

func NewInteractiveApp() *model {
	entries := make([]entry, 0)
	for _, variant := range []string{config.VariantViscoplastic, config.VariantElastoplastic} {
		for _, preset := range config.ListPresets(variant) {
			entries = append(entries, entry{variant, preset})
		}
	}
	return &model{state: stateMenu, entries: entries}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.state == stateSim {
		newLive, cmd := m.liveModel.Update(msg)
		m.liveModel = newLive.(Model)
		return m, cmd
	}
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch m.state {
		case stateMenu:
			return m.menuKey(msg)
		case stateConfig:
			return m.configKey(msg)
		}
	}
	return m, nil
}

func (m model) menuKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.entries)-1 {
			m.cursor++
		}
	case "enter", " ":
		e := m.entries[m.cursor]
		m.cfg = config.GetPreset(e.variant, e.preset)
		m.state, m.paramCursor, m.err = stateConfig, 0, nil
	}
	return m, nil
}

func (m model) configKey(msg tea.KeyMsg) (model, tea.Cmd) {
	if m.editing {
		switch msg.String() {
		case "enter":
			if v, err := strconv.ParseFloat(m.editBuf, 64); err == nil {
				params[m.paramCursor].set(m.cfg, v)
			}
			m.editing, m.editBuf = false, ""
		case "esc":
			m.editing, m.editBuf = false, ""
		case "backspace":
			if len(m.editBuf) > 0 {
				m.editBuf = m.editBuf[:len(m.editBuf)-1]
			}
		default:
			if s := msg.String(); len(s) == 1 && strings.ContainsAny(s, "0123456789.-e") {
				m.editBuf += s
			}
		}
		return m, nil
	}

	p := params[m.paramCursor]
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc", "q":
		m.state = stateMenu
	case "up", "k":
		if m.paramCursor > 0 {
			m.paramCursor--
		}
	case "down", "j":
		if m.paramCursor < len(params)-1 {
			m.paramCursor++
		}
	case "left", "h":
		p.set(m.cfg, p.get(m.cfg)*0.9)
	case "right", "l":
		v := p.get(m.cfg)
		if v == 0 {
			v = 0.01
		}
		p.set(m.cfg, v*1.1)
	case "e", "enter":
		m.editing, m.editBuf = true, ""
	case "s":
		return m.start()
	}
	return m, nil
}

func (m model) start() (model, tea.Cmd) {
	exp, err := experiment.New(m.cfg)
	if err != nil {
		m.err = err
		return m, nil
	}
	e := m.entries[m.cursor]
	m.liveModel = NewModel(exp, e.variant+" / "+e.preset)
	m.state = stateSim
	return m, m.liveModel.Init()
}

func (m model) View() string {
	switch m.state {
	case stateMenu:
		return m.viewMenu()
	case stateConfig:
		return m.viewConfig()
	case stateSim:
		return m.liveModel.View()
	}
	return ""
}

func hints(pairs ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		b.WriteString(keyStyle.Render(pairs[i]) + idleStyle.Render(" "+pairs[i+1]+"  "))
	}
	return b.String()
}

func (m model) viewMenu() string {
	var b strings.Builder
	b.WriteString("\n\n    " + titleStyle.Render("VISCOSIM") + "\n    " + subStyle.Render("viscoplastic particle bodies") + "\n    " + subStyle.Render("─────────────────────────") + "\n\n")
	for i, e := range m.entries {
		label := fmt.Sprintf("%-14s %-8s", e.variant, e.preset)
		if i == m.cursor {
			b.WriteString(fmt.Sprintf("    %s %s  %s\n", cursorStyle.Render("▸"), activeStyle.Render(label), descStyle.Render(variantInfo[e.variant])))
		} else {
			b.WriteString(fmt.Sprintf("    %s  %s\n", idleStyle.Render("  "+label), idleDesc.Render(variantInfo[e.variant])))
		}
	}
	b.WriteString("\n    " + hints("j/k", "navigate", "enter", "select", "q", "quit") + "\n")
	return b.String()
}

func (m model) viewConfig() string {
	var b strings.Builder
	e := m.entries[m.cursor]
	b.WriteString("\n\n    " + titleStyle.Render(strings.ToUpper(e.variant+" "+e.preset)) + "\n    " + subStyle.Render(variantInfo[e.variant]) + "\n    " + subStyle.Render("─────────────────────────") + "\n\n")
	for i, p := range params {
		valStr := fmt.Sprintf("%10.4f", p.get(m.cfg))
		if m.editing && i == m.paramCursor {
			valStr = fmt.Sprintf("%10s", m.editBuf+"_")
		}
		if i == m.paramCursor {
			b.WriteString(fmt.Sprintf("    %s %s %s\n", cursorStyle.Render("▸"), activeStyle.Render(fmt.Sprintf("%-10s", p.name)), descStyle.Bold(true).Render(valStr)))
		} else {
			b.WriteString(fmt.Sprintf("    %s %s\n", idleStyle.Render(fmt.Sprintf("  %-10s", p.name)), idleDesc.Render(valStr)))
		}
	}
	if m.err != nil {
		b.WriteString("\n    " + errorStyle.Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n    " + hints("j/k", "select", "h/l", "adjust", "e", "edit", "s", "start", "esc", "back") + "\n")
	return b.String()
}

func RunInteractive() error {
	_, err := tea.NewProgram(NewInteractiveApp(), tea.WithAltScreen()).Run()
	return err
}
