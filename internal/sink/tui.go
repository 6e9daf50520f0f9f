// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sink

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/relabs-tech/imu_scalogram/internal/composite"
	"github.com/relabs-tech/imu_scalogram/internal/frame"
	"github.com/relabs-tech/imu_scalogram/internal/imu"
	"github.com/relabs-tech/imu_scalogram/internal/render"
)

const (
	heatCols       = 72
	heatRows       = 20
	signalInterval = 50 * time.Millisecond
)

type signalMsg frame.SignalMessage

type scalogramMsg struct {
	meta frame.ScalogramMessage
	heat []string
}

// tuiModel is the bubbletea model for the terminal display
type tuiModel struct {
	title     string
	signal    frame.SignalMessage
	scalogram frame.ScalogramMessage
	heat      []string
	channels  []string
	quitting  bool
	quit      func()
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			m.quit()
			return m, tea.Quit
		}

	case signalMsg:
		m.signal = frame.SignalMessage(msg)
		return m, nil

	case scalogramMsg:
		m.scalogram = msg.meta
		m.heat = msg.heat
		return m, nil
	}

	return m, nil
}

func (m tuiModel) View() string {
	if m.quitting {
		return "Closing scalogram display...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginBottom(1)

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Time: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%.3fs  samples %d  window %d", m.signal.Time, m.signal.Seq, m.signal.Window)))
	b.WriteString("\n")

	for _, ch := range m.channels {
		b.WriteString(headerStyle.Render(fmt.Sprintf("%-8s ", imu.DisplayName(ch))))
		b.WriteString(valueStyle.Render(fmt.Sprintf("%10.2f", m.signal.Values[ch])))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(m.heat) == 0 {
		b.WriteString(valueStyle.Render("  Waiting for the first scalogram..."))
		b.WriteString("\n")
	} else {
		b.WriteString(headerStyle.Render(fmt.Sprintf("Scalogram %s  %s  %.1fms",
			strings.Join(imu.DisplayNames(m.scalogram.Channels), "/"), m.scalogram.Kernel, m.scalogram.TookMs)))
		b.WriteString("\n")
		for _, row := range m.heat {
			b.WriteString(row)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("Press 'q' or Ctrl+C to quit"))

	return b.String()
}

// heatmap draws a frame as rows of coloured cells, smallest scale on top.
func heatmap(f *composite.Frame, cols, rows int) []string {
	img := render.Scale(render.Image(f, nil), cols, rows, false)
	out := make([]string, rows)
	var b strings.Builder
	for y := 0; y < rows; y++ {
		b.Reset()
		for x := 0; x < cols; x++ {
			c := img.RGBAAt(x, y)
			hex := fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
			b.WriteString(lipgloss.NewStyle().Background(lipgloss.Color(hex)).Render(" "))
		}
		out[y] = b.String()
	}
	return out
}

// TUI shows the latest sample and a terminal heat map of the scalogram.
// Quitting the display makes every later publish return ErrClosed.
type TUI struct {
	program *tea.Program
	updates chan tea.Msg
	quit    chan struct{}
	done    chan struct{}
	runErr  error

	quitOnce   sync.Once
	closeOnce  sync.Once
	lastSignal time.Time
}

func newTUI() *TUI {
	return &TUI{
		updates: make(chan tea.Msg, 10),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// StartTUI takes over the terminal and runs the display until Close or the
// user quits.
func StartTUI(title string, channels []string) *TUI {
	t := newTUI()
	m := tuiModel{
		title:    title,
		channels: channels,
		quit:     t.signalQuit,
	}
	t.program = tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		defer close(t.done)
		_, t.runErr = t.program.Run()
		t.signalQuit()
	}()

	// Forward updates without ever blocking the session
	go func() {
		for msg := range t.updates {
			t.program.Send(msg)
		}
	}()
	return t
}

func (t *TUI) signalQuit() {
	t.quitOnce.Do(func() { close(t.quit) })
}

func (t *TUI) closed() bool {
	select {
	case <-t.quit:
		return true
	default:
		return false
	}
}

func (t *TUI) offer(msg tea.Msg) {
	select {
	case t.updates <- msg:
	default:
		// Don't block if channel is full
	}
}

func (t *TUI) PublishSignal(_ context.Context, s frame.Signal) error {
	if t.closed() {
		return ErrClosed
	}
	if now := time.Now(); now.Sub(t.lastSignal) >= signalInterval {
		t.lastSignal = now
		t.offer(signalMsg(s.Message()))
	}
	return nil
}

func (t *TUI) PublishScalogram(_ context.Context, s frame.Scalogram) error {
	if t.closed() {
		return ErrClosed
	}
	if s.Composite == nil {
		return nil
	}
	t.offer(scalogramMsg{meta: s.Message(), heat: heatmap(s.Composite, heatCols, heatRows)})
	return nil
}

// Close quits the display and restores the terminal.
func (t *TUI) Close() error {
	t.closeOnce.Do(func() {
		if t.program != nil {
			t.program.Quit()
			<-t.done
		}
		close(t.updates)
	})
	return t.runErr
}
