package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"imgmatrix/internal/processor"
)

type fileLine struct {
	name  string
	total int
	done  int
}

// Model shows one progress bar per file being processed. Finished files are
// printed above the live area as a single tick or cross line.
type Model struct {
	updates    <-chan processor.ProgressUpdate
	started    time.Time
	width      int
	totalFiles int
	finished   int
	failed     int
	active     map[processor.FileHandle]*fileLine
	order      []processor.FileHandle
	interrupt  func()
	stopping   bool
	quitting   bool
}

type doneMsg struct{}

type updateMsg processor.ProgressUpdate

// NewModel consumes updates until the channel is closed. totalFiles is the
// size of the batch. interrupt is called once on ctrl+c; the model keeps
// draining updates until the batch winds down.
func NewModel(updates <-chan processor.ProgressUpdate, totalFiles int, interrupt func()) Model {
	return Model{
		updates:    updates,
		started:    time.Now(),
		totalFiles: totalFiles,
		active:     make(map[processor.FileHandle]*fileLine),
		interrupt:  interrupt,
	}
}

func (m Model) Init() tea.Cmd {
	return listenForUpdates(m.updates)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case updateMsg:
		next := listenForUpdates(m.updates)
		switch msg.Kind {
		case processor.UpdateStart:
			m.active[msg.File] = &fileLine{name: DisplayName(msg.Name), total: msg.Total}
			m.order = append(m.order, msg.File)
		case processor.UpdateIncrement:
			if line, ok := m.active[msg.File]; ok {
				line.done++
			}
		case processor.UpdateFinish:
			line, ok := m.active[msg.File]
			if !ok {
				return m, next
			}
			delete(m.active, msg.File)
			m.order = removeHandle(m.order, msg.File)
			m.finished++
			if !msg.OK {
				m.failed++
			}
			return m, tea.Sequence(tea.Println(FinishedLine(line.name, msg.OK)), next)
		}
		return m, next
	case doneMsg:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && !m.stopping {
			m.stopping = true
			if m.interrupt != nil {
				m.interrupt()
			}
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	default:
		return m, nil
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	barWidth := 40
	if m.width > 0 {
		barWidth = int(math.Min(40, float64(m.width-55)))
		if barWidth < 10 {
			barWidth = 10
		}
	}

	lines := make([]string, 0, len(m.order)+2)
	for _, h := range m.order {
		line := m.active[h]
		ratio := 0.0
		if line.total > 0 {
			ratio = float64(line.done) / float64(line.total)
		}
		lines = append(lines, fmt.Sprintf("  %s %s %s",
			labelStyle.Render(padRight(line.name, 35)),
			barStyle.Render(renderBar(barWidth, ratio)),
			dimStyle.Render(fmt.Sprintf("%2d/%-2d", line.done, line.total)),
		))
	}

	elapsed := time.Since(m.started).Round(time.Second)
	status := fmt.Sprintf("  files %d/%d  errors %d  elapsed %s", m.finished, m.totalFiles, m.failed, elapsed)
	if m.stopping {
		status += "  stopping..."
	}
	lines = append(lines, dimStyle.Render(status))

	return strings.Join(lines, "\n")
}

func listenForUpdates(updates <-chan processor.ProgressUpdate) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return doneMsg{}
		}
		return updateMsg(update)
	}
}

func removeHandle(order []processor.FileHandle, h processor.FileHandle) []processor.FileHandle {
	for i, v := range order {
		if v == h {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}

func renderBar(width int, ratio float64) string {
	filled := int(math.Round(ratio * float64(width)))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("━", filled) + strings.Repeat("─", width-filled) + "]"
}
