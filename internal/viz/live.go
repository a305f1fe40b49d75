package viz

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/viscosim/internal/dynamo"
	"github.com/san-kum/viscosim/internal/experiment"
	"github.com/san-kum/viscosim/internal/metrics"
	"github.com/san-kum/viscosim/internal/sim"
)

const (
	width           = 72
	height          = 24
	historyCapacity = 300
)

// Snapshot is the particle state at one frame, kept for replay.
type Snapshot struct {
	Positions []dynamo.Coord
	Time      float64
	Energy    float64
}

type TickMsg time.Time

// Model is the live terminal view of a running scene. Every tick takes one
// frame of the scene graph.
type Model struct {
	exp           *experiment.Experiment
	title         string
	width, height int
	canvas        *Canvas
	camera        *Camera
	running       bool
	showBounds    bool
	showHelp      bool
	energy        *metrics.KineticEnergy
	energyHistory []float64
	yieldHistory  []float64
	history       []Snapshot
	playHead      int
	recording     bool
	frames        []*image.Paletted
	gifPath       string
	err           error
}

func NewModel(exp *experiment.Experiment, title string) Model {
	cam := NewCamera()
	g := exp.Graph()
	cam.Fit(g.Lower, g.Upper)
	spacing := exp.Config().Body.Block.Spacing

	return Model{
		exp:           exp,
		title:         title,
		width:         width,
		height:        height,
		canvas:        NewCanvas(width, height),
		camera:        cam,
		running:       true,
		showBounds:    true,
		energy:        metrics.NewKineticEnergy(1000 * spacing * spacing * spacing),
		energyHistory: make([]float64, 0, historyCapacity),
		yieldHistory:  make([]float64, 0, historyCapacity),
		history:       make([]Snapshot, 0, historyCapacity),
		playHead:      -1,
		gifPath:       "viscosim.gif",
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	if err := m.exp.Initialize(); err != nil {
		return func() tea.Msg { return errMsg{err} }
	}
	return tick()
}

type errMsg struct{ err error }

// Update handles input events and steps the scene.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "n":
			if !m.running {
				m.step()
			}
		case "[":
			m.scrub(-1)
		case "]":
			m.scrub(1)
		case "b":
			m.showBounds = !m.showBounds
		case "s":
			surface := m.exp.Body().SurfaceNode()
			surface.SetVisible(!surface.Visible())
		case "g":
			if m.recording {
				m.saveGIF()
				m.recording = false
				m.frames = nil
			} else {
				m.recording = true
				m.frames = make([]*image.Paletted, 0)
			}
		case "?":
			m.showHelp = !m.showHelp
		case "t":
			NextTheme()
		case "left", "h":
			m.camera.RotateY(-0.1)
		case "right", "l":
			m.camera.RotateY(0.1)
		case "up", "k":
			m.camera.RotateX(-0.1)
		case "down", "j":
			m.camera.RotateX(0.1)
		case "+", "=":
			m.camera.ZoomIn()
		case "-", "_":
			m.camera.ZoomOut()
		}
	case errMsg:
		m.err = msg.err
		m.running = false
	case TickMsg:
		if m.running && m.err == nil {
			if m.playHead == -1 {
				m.step()
			} else {
				m.playHead++
				if m.playHead >= len(m.history) {
					m.playHead = -1
				}
			}
		}
		m.draw()
		if m.recording {
			m.captureFrame()
		}
		return m, tick()
	}
	return m, nil
}

// step takes one frame and records it.
func (m *Model) step() {
	if m.exp.Graph().Done() {
		m.running = false
		return
	}
	if err := m.exp.Step(); err != nil {
		m.err = err
		m.running = false
		return
	}

	body := m.exp.Body()
	m.energy.Observe(&sim.Frame{Velocities: body.Velocities()})
	energy := m.energy.Value()
	m.energyHistory = appendBounded(m.energyHistory, energy)
	ratio := 0.0
	if n := body.Len(); n > 0 {
		ratio = float64(body.Yielded()) / float64(n)
	}
	m.yieldHistory = appendBounded(m.yieldHistory, ratio)

	snap := Snapshot{Positions: dynamo.CloneCoords(body.Positions()), Time: m.exp.Graph().Elapsed(), Energy: energy}
	if len(m.history) >= historyCapacity {
		m.history = m.history[1:]
	}
	m.history = append(m.history, snap)
}

func appendBounded(s []float64, v float64) []float64 {
	if len(s) >= historyCapacity {
		s = s[1:]
	}
	return append(s, v)
}

// scrub moves the replay position through the recorded frames.
func (m *Model) scrub(dir int) {
	if m.playHead == -1 {
		if len(m.history) == 0 {
			return
		}
		m.playHead = len(m.history) - 1
		m.running = false
	}
	m.playHead += dir
	if m.playHead < 0 {
		m.playHead = 0
	}
	if m.playHead >= len(m.history) {
		m.playHead = -1
	}
}

// positions returns the particles to draw: the replayed frame or the live
// state.
func (m *Model) positions() ([]dynamo.Coord, float64) {
	if m.playHead >= 0 && m.playHead < len(m.history) {
		snap := m.history[m.playHead]
		return snap.Positions, snap.Time
	}
	return m.exp.Body().Positions(), m.exp.Graph().Elapsed()
}

func (m *Model) draw() {
	m.canvas.Clear()
	w := NewWireframe()
	if m.showBounds {
		g := m.exp.Graph()
		w.AddBox(g.Lower, g.Upper)
	}
	pts, _ := m.positions()
	w.AddPoints(pts)
	if m.playHead == -1 && m.exp.Body().SurfaceNode().Visible() {
		mesh := m.exp.Body().Mesh()
		verts := mesh.Points()
		for _, t := range mesh.Triangles() {
			w.AddEdge(verts[t[0]], verts[t[1]])
			w.AddEdge(verts[t[1]], verts[t[2]])
			w.AddEdge(verts[t[2]], verts[t[0]])
		}
	}
	Render3D(m.canvas, w, m.camera)
}

// View renders the canvas beside the statistics panel.
func (m Model) View() string {
	m.draw()
	_, t := m.positions()
	g := m.exp.Graph()
	body := m.exp.Body()

	status := StatusRunning.Render("RUNNING")
	switch {
	case m.err != nil:
		status = errorStyle.Render("FAILED")
	case m.playHead != -1:
		status = StatusPaused.Render(fmt.Sprintf("REPLAY (%.2fs)", t-g.Elapsed()))
	case g.Done():
		status = StatusPaused.Render("DONE")
	case !m.running:
		status = StatusPaused.Render("PAUSED")
	}
	if m.recording {
		status += " " + StatusRecording.Render("● REC")
	}

	var s strings.Builder
	s.WriteString(headerStyle().Render(strings.ToUpper(m.title)) + "\n")
	s.WriteString(status + "\n\n")
	if len(m.energyHistory) > 1 {
		chart := asciigraph.Plot(m.energyHistory, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Kinetic energy"))
		s.WriteString(graphStyle.Render(chart) + "\n")
	}
	s.WriteString(labelStyle.Render("Time") + valueStyle.Render(fmt.Sprintf("%.3fs", t)) + "\n")
	s.WriteString(labelStyle.Render("Frame") + valueStyle.Render(fmt.Sprintf("%d", g.Frame())) + "\n")
	s.WriteString(labelStyle.Render("Particles") + valueStyle.Render(fmt.Sprintf("%d", body.Len())) + "\n")
	s.WriteString(labelStyle.Render("Neighbors") + valueStyle.Render(fmt.Sprintf("%.1f", body.Neighborhood().Mean())) + "\n")
	s.WriteString(labelStyle.Render("Frame cost") + valueStyle.Render(g.FrameCost().Round(time.Microsecond).String()) + "\n")
	if g.TotalTime > 0 {
		s.WriteString(labelStyle.Render("Progress") + ProgressBar(g.Elapsed()/g.TotalTime, 20) + "\n")
	}
	s.WriteString(labelStyle.Render("Yielding") + SparklineChart(m.yieldHistory, 20) + "\n")
	if m.err != nil {
		s.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	}
	s.WriteString(helpStyle.Render("\n─────────────────────\nSP:Pause N:Step Q:Quit\nS:Surface B:Bounds T:Theme\n[ ]:Replay G:Record ?:Help"))

	canvasView := canvasStyle.Render(particleStyle().Render(m.canvas.String()))
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))
	if m.showHelp {
		return `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume             ║
║  N        - Single frame when paused ║
║  Arrows   - Orbit camera             ║
║  + / -    - Zoom                     ║
║  S        - Toggle surface mesh      ║
║  B        - Toggle scene bounds      ║
║  [ / ]    - Replay recorded frames   ║
║  G        - Toggle GIF recording     ║
║  T        - Cycle themes             ║
║  Q        - Quit                     ║
╚══════════════════════════════════════╝
` + "\n\n" + mainView
	}
	return mainView
}

// captureFrame rasterizes the braille canvas into a two-colour GIF frame.
func (m *Model) captureFrame() {
	charW, charH := 8, 16
	img := image.NewPaletted(image.Rect(0, 0, m.width*charW, m.height*charH), color.Palette{color.Black, color.White})
	dotW, dotH := charW/2, charH/4
	m.canvas.EachDot(func(x, y int) {
		for py := 0; py < dotH; py++ {
			for px := 0; px < dotW; px++ {
				img.SetColorIndex(x*dotW+px, y*dotH+py, 1)
			}
		}
	})
	m.frames = append(m.frames, img)
}

func (m *Model) saveGIF() {
	if len(m.frames) == 0 {
		return
	}
	anim := gif.GIF{LoopCount: 0}
	for _, frame := range m.frames {
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, 4)
	}
	f, err := os.Create(m.gifPath)
	if err != nil {
		m.err = err
		return
	}
	defer f.Close()
	if err := gif.EncodeAll(f, &anim); err != nil {
		m.err = err
	}
}

// RunLive shows exp in the terminal until the user quits.
func RunLive(exp *experiment.Experiment, title string) error {
	_, err := tea.NewProgram(NewModel(exp, title), tea.WithAltScreen()).Run()
	return err
}
