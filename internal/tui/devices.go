// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"

	"beatlamp/internal/audio"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E8A33D"))
)

// SampleRates are the rates offered on the configuration screen.
var SampleRates = []float64{44100, 48000, 88200, 96000}

// ScreenType defines which screen is currently active
type ScreenType int

const (
	ListScreen ScreenType = iota
	ConfigScreen
)

// Selection is the device and rate the user confirmed.
type Selection struct {
	DeviceID   int
	DeviceName string
	SampleRate float64
}

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Back   key.Binding
	Quit   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Select, k.Back, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func defaultKeys() keyMap {
	return keyMap{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		Back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// DevicePickerModel is the Bubble Tea model for choosing an input device.
type DevicePickerModel struct {
	devices       []audio.Device
	selectedIndex int
	viewport      viewport.Model
	help          help.Model
	keys          keyMap
	ready         bool
	err           error
	status        string
	activeScreen  ScreenType

	sampleRateIndex int
	selection       *Selection
}

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

// NewDevicePickerModel creates a picker. With nil devices the model asks
// PortAudio for them on Init.
func NewDevicePickerModel(devices []audio.Device) DevicePickerModel {
	m := DevicePickerModel{
		devices:      devices,
		help:         help.New(),
		keys:         defaultKeys(),
		activeScreen: ListScreen,
	}
	// Start on the default input when there is one.
	for i, d := range devices {
		if d.IsDefaultInput {
			m.selectedIndex = i
			break
		}
	}
	return m
}

// Init initializes the Bubble Tea model
func (m DevicePickerModel) Init() tea.Cmd {
	if m.devices != nil {
		return nil
	}
	return fetchDevices
}

func fetchDevices() tea.Msg {
	devices, err := audio.HostDevices()
	if err != nil {
		return errMsg{err}
	}
	return devicesMsg{devices}
}

// Selection returns the confirmed choice, if any.
func (m DevicePickerModel) Selection() (Selection, bool) {
	if m.selection == nil {
		return Selection{}, false
	}
	return *m.selection, true
}

func (m DevicePickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.help.Width = msg.Width
		m.refresh()

	case devicesMsg:
		m = m.withDevices(msg.devices)
		m.refresh()

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		if m.err != nil {
			return m, tea.Quit
		}

		switch m.activeScreen {
		case ListScreen:
			if quit := m.updateList(msg); quit {
				return m, tea.Quit
			}
		case ConfigScreen:
			if quit := m.updateConfig(msg); quit {
				return m, tea.Quit
			}
		}
		m.refresh()
		return m, nil
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// withDevices keeps the layout state and swaps in devices.
func (m DevicePickerModel) withDevices(devices []audio.Device) DevicePickerModel {
	fresh := NewDevicePickerModel(devices)
	fresh.viewport = m.viewport
	fresh.ready = m.ready
	fresh.help = m.help
	return fresh
}

func (m *DevicePickerModel) updateList(msg tea.KeyMsg) bool {
	m.status = ""
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.selectedIndex > 0 {
			m.selectedIndex--
		}
	case key.Matches(msg, m.keys.Down):
		if m.selectedIndex < len(m.devices)-1 {
			m.selectedIndex++
		}
	case key.Matches(msg, m.keys.Select):
		if len(m.devices) == 0 {
			return false
		}
		device := m.devices[m.selectedIndex]
		if device.MaxInputChannels == 0 {
			m.status = fmt.Sprintf("%s has no inputs", device.Name)
			return false
		}
		m.activeScreen = ConfigScreen
		m.sampleRateIndex = 0
		for i, rate := range SampleRates {
			if rate == device.DefaultSampleRate {
				m.sampleRateIndex = i
				break
			}
		}
	case key.Matches(msg, m.keys.Back):
		return true
	}
	return false
}

func (m *DevicePickerModel) updateConfig(msg tea.KeyMsg) bool {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.activeScreen = ListScreen
	case key.Matches(msg, m.keys.Up):
		if m.sampleRateIndex > 0 {
			m.sampleRateIndex--
		}
	case key.Matches(msg, m.keys.Down):
		if m.sampleRateIndex < len(SampleRates)-1 {
			m.sampleRateIndex++
		}
	case key.Matches(msg, m.keys.Select):
		device := m.devices[m.selectedIndex]
		m.selection = &Selection{
			DeviceID:   device.ID,
			DeviceName: device.Name,
			SampleRate: SampleRates[m.sampleRateIndex],
		}
		return true
	}
	return false
}

func (m *DevicePickerModel) refresh() {
	if !m.ready {
		return
	}
	if m.activeScreen == ConfigScreen {
		m.viewport.SetContent(m.renderDeviceConfig())
	} else {
		m.viewport.SetContent(m.renderDevices())
	}
}

// View renders the UI
func (m DevicePickerModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress any key to exit.", m.err)
	}
	if !m.ready {
		return "Initializing..."
	}

	title := titleStyle.Render("Input Devices")
	if m.activeScreen == ConfigScreen {
		title = titleStyle.Render("Device Configuration")
	}

	footer := m.help.View(m.keys)
	if m.status != "" {
		footer = warnStyle.Render(m.status) + "\n" + footer
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), footer)
}

// renderDevices formats the device list
func (m DevicePickerModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No audio devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		marker := "  "
		if i == m.selectedIndex {
			marker = "▶ "
		}
		deviceInfo := fmt.Sprintf("%s[%d] %s (%s)", marker, device.ID, device.Name, device.Type())
		if device.IsDefaultInput {
			deviceInfo += " [default]"
		}
		deviceInfo += fmt.Sprintf("\n    Inputs: %d, default rate: %.0f Hz, latency %.1f ms\n",
			device.MaxInputChannels, device.DefaultSampleRate,
			device.DefaultLowInputLatency.Seconds()*1000)

		switch {
		case i == m.selectedIndex:
			deviceInfo = highlightStyle.Render(deviceInfo)
		case device.MaxInputChannels == 0:
			deviceInfo = dimStyle.Render(deviceInfo)
		default:
			deviceInfo = infoStyle.Render(deviceInfo)
		}

		sb.WriteString(deviceInfo)
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderDeviceConfig formats the device configuration screen
func (m DevicePickerModel) renderDeviceConfig() string {
	var sb strings.Builder
	device := m.devices[m.selectedIndex]

	fmt.Fprintf(&sb, "Configure Device: %s\n\n", device.Name)
	sb.WriteString("Sample Rate:\n")

	for i, rate := range SampleRates {
		if i == m.sampleRateIndex {
			sb.WriteString(highlightStyle.Render(fmt.Sprintf("  ▶ %.0f Hz", rate)))
		} else {
			fmt.Fprintf(&sb, "    %.0f Hz", rate)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// RunDevicePicker launches the picker and returns the confirmed choice.
// ok is false when the user quit without choosing.
func RunDevicePicker() (sel Selection, ok bool, err error) {
	p := tea.NewProgram(NewDevicePickerModel(nil), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return Selection{}, false, err
	}
	m, isPicker := final.(DevicePickerModel)
	if !isPicker {
		return Selection{}, false, nil
	}
	if m.err != nil {
		return Selection{}, false, m.err
	}
	sel, ok = m.Selection()
	return sel, ok, nil
}
