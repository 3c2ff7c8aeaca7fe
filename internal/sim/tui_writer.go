package sim

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"voxsane-fleet/internal/fleet"
	"voxsane-fleet/internal/telemetry"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// FleetControl is the store surface the operator console needs: intents
// plus change notifications and snapshots. *fleet.Store satisfies it.
type FleetControl interface {
	SetDroneStatus(id string, status fleet.Status) error
	LaunchMission(id string) error
	PushAlert(a fleet.Alert) (fleet.Alert, error)
	Subscribe(fn func(fleet.Change)) (unsubscribe func())
	ListDrones() []fleet.Drone
	ListAlerts() []fleet.Alert
}

// logMsg carries a log line for the viewport.
type logMsg struct{ line string }

// alertMsg carries an alert feed line.
type alertMsg struct {
	line string
	row  telemetry.AlertRow
}

// adminMsg reports admin UI status.
type adminMsg struct{ active bool }

type droneMsg struct{ telemetry.DroneRow }

type setControlMsg struct{ ctl FleetControl }

const (
	maxLogLines         = 500
	maxSectionHeightPct = 0.25
	tuiAuthor           = "Operator"
)

// TUIWriter renders the fleet using a bubbletea TUI.
type TUIWriter struct {
	program    teaProgram
	clusterID  string
	done       chan struct{}
	sendSignal atomic.Bool

	mu          sync.Mutex
	unsubscribe func()
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter.
func NewTUIWriter(clusterID string, cfg Config) *TUIWriter {
	w := &TUIWriter{clusterID: clusterID, done: make(chan struct{})}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newTUIModel(clusterID, cfg), tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

// Write implements TelemetryWriter.
func (w *TUIWriter) Write(row telemetry.DroneRow) error {
	w.program.Send(droneMsg{row})
	return nil
}

// WriteBatch outputs multiple drone rows.
func (w *TUIWriter) WriteBatch(rows []telemetry.DroneRow) error {
	for _, r := range rows {
		_ = w.Write(r)
	}
	return nil
}

// WriteAlert implements AlertWriter.
func (w *TUIWriter) WriteAlert(a telemetry.AlertRow) error {
	w.program.Send(alertMsg{line: alertLine(a), row: a})
	return nil
}

func alertLine(a telemetry.AlertRow) string {
	col := colorRed
	switch fleet.AlertKind(a.Kind) {
	case fleet.AlertPending:
		col = colorYellow
	case fleet.AlertResolved:
		col = colorGreen
	}
	line := fmt.Sprintf("%s[%s]%s %s%s%s #%d %s %sby=%s%s",
		colorGray, a.Timestamp.Format(time.RFC3339), colorReset,
		col, strings.ToUpper(a.Kind), colorReset,
		a.AlertID, a.Title,
		colorBlue, a.Author, colorReset)
	if a.Description != "" {
		line += fmt.Sprintf(" %s%s%s", colorGray, a.Description, colorReset)
	}
	return line
}

// SetAdminStatus updates the admin UI indicator.
func (w *TUIWriter) SetAdminStatus(active bool) {
	w.program.Send(adminMsg{active: active})
}

// SetControl enables the operator keys and follows ctl's changes, so intents
// show up without waiting for the next export. Without it the TUI is
// read-only.
func (w *TUIWriter) SetControl(ctl FleetControl) {
	w.program.Send(setControlMsg{ctl: ctl})
	unsubscribe := ctl.Subscribe(func(c fleet.Change) {
		now := time.Now()
		switch c.Kind {
		case fleet.ChangeDrones:
			_ = w.WriteBatch(telemetry.FromDrones(w.clusterID, ctl.ListDrones(), now))
		case fleet.ChangeAlerts:
			alerts := ctl.ListAlerts()
			// The feed is newest first; replay it oldest first.
			for i := len(alerts) - 1; i >= 0; i-- {
				_ = w.WriteAlert(telemetry.FromAlert(w.clusterID, alerts[i], now))
			}
		}
	})

	w.mu.Lock()
	prev := w.unsubscribe
	w.unsubscribe = unsubscribe
	w.mu.Unlock()
	if prev != nil {
		prev()
	}
}

// Close shuts down the TUI program and waits for cleanup.
func (w *TUIWriter) Close() error {
	w.mu.Lock()
	unsubscribe := w.unsubscribe
	w.unsubscribe = nil
	w.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

type tuiModel struct {
	clusterID    string
	cfg          Config
	table        table.Model
	vp           viewport.Model
	alertVP      viewport.Model
	logs         []string
	alertLogs    []string
	order        []string
	drones       map[string]telemetry.DroneRow
	alertsSeen   int
	alertKinds   map[uint64]string
	ctl          FleetControl
	alertInput   textinput.Model
	alertDialog  bool
	admin        bool
	wrap         bool
	autoscroll   bool
	summary      bool
	help         bool
	header       string
	headerHeight int
	height       int
}

func newTUIModel(clusterID string, cfg Config) tuiModel {
	cols := []table.Column{
		{Title: "Drone", Width: 16},
		{Title: "Status", Width: 12},
		{Title: "Battery", Width: 8},
		{Title: "Signal", Width: 7},
		{Title: "Mission", Width: 8},
	}
	t := table.New(table.WithColumns(cols), table.WithHeight(2), table.WithFocused(true))
	in := textinput.New()
	in.Placeholder = "title|description"
	in.CharLimit = 120
	return tuiModel{
		clusterID:  clusterID,
		cfg:        cfg,
		table:      t,
		vp:         viewport.New(0, 0),
		alertVP:    viewport.New(0, 0),
		drones:     make(map[string]telemetry.DroneRow),
		alertKinds: make(map[uint64]string),
		alertInput: in,
		autoscroll: true,
	}
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetWidth(msg.Width / 2)
		m.vp.Width = msg.Width
		m.alertVP.Width = msg.Width
		m.height = msg.Height
		m.header = m.renderHeader()
		m.headerHeight = lipgloss.Height(m.header)
		m.updateViewportHeight()
		m.refreshViewport()
		m.refreshAlerts()
	case tea.KeyMsg:
		if m.alertDialog {
			switch msg.Type {
			case tea.KeyEnter:
				cmd := m.submitAlert(m.alertInput.Value())
				m.alertInput.SetValue("")
				m.alertDialog = false
				m.updateViewportHeight()
				return m, cmd
			case tea.KeyEsc:
				m.alertDialog = false
				m.updateViewportHeight()
			default:
				var cmd tea.Cmd
				m.alertInput, cmd = m.alertInput.Update(msg)
				return m, cmd
			}
			return m, nil
		}
		if m.help {
			switch msg.String() {
			case "h", "?", "esc", "q":
				m.help = false
			}
			return m, nil
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
			m.refreshAlerts()
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
				m.alertVP.GotoBottom()
			}
		case "t":
			m.summary = !m.summary
			m.updateViewportHeight()
		case "h", "?":
			m.help = true
		case "a":
			if m.ctl != nil {
				m.alertDialog = true
				m.updateViewportHeight()
				return m, m.alertInput.Focus()
			}
		case "l":
			return m, m.control("launch", func(id string) error { return m.ctl.LaunchMission(id) })
		case "o":
			return m, m.setStatus(fleet.StatusOnline)
		case "f":
			return m, m.setStatus(fleet.StatusFlying)
		case "x":
			return m, m.setStatus(fleet.StatusOffline)
		case "m":
			return m, m.setStatus(fleet.StatusMaintenance)
		case "up", "down", "k", "j":
			var cmd tea.Cmd
			m.table, cmd = m.table.Update(msg)
			return m, cmd
		default:
			if !m.autoscroll {
				var cmd tea.Cmd
				m.vp, cmd = m.vp.Update(msg)
				return m, cmd
			}
		}
	case logMsg:
		m.appendLog(msg.line)
	case alertMsg:
		if kind, ok := m.alertKinds[msg.row.AlertID]; ok && kind == msg.row.Kind {
			return m, nil
		}
		m.rememberAlert(msg.row)
		m.alertsSeen++
		m.alertLogs = append(m.alertLogs, msg.line)
		if len(m.alertLogs) > maxLogLines {
			m.alertLogs = m.alertLogs[len(m.alertLogs)-maxLogLines:]
		}
		m.updateViewportHeight()
		m.refreshAlerts()
	case droneMsg:
		prev, known := m.drones[msg.DroneID]
		if !known {
			m.order = append(m.order, msg.DroneID)
		}
		m.drones[msg.DroneID] = msg.DroneRow
		if known && prev.Status != msg.Status {
			m.appendLog(fmt.Sprintf("%s[%s]%s %s %s -> %s%s%s",
				colorGray, msg.Timestamp.Format(time.RFC3339), colorReset,
				msg.Name, prev.Status, statusColor(msg.Status), msg.Status, colorReset))
		}
		m.refreshTable()
	case adminMsg:
		m.admin = msg.active
	case setControlMsg:
		m.ctl = msg.ctl
	}
	return m, nil
}

// rememberAlert records the last kind shown per alert. IDs are increasing,
// so the oldest entries are dropped first.
func (m *tuiModel) rememberAlert(a telemetry.AlertRow) {
	m.alertKinds[a.AlertID] = a.Kind
	if a.AlertID <= maxLogLines {
		return
	}
	floor := a.AlertID - maxLogLines
	for id := range m.alertKinds {
		if id < floor {
			delete(m.alertKinds, id)
		}
	}
}

func (m *tuiModel) appendLog(line string) {
	m.logs = append(m.logs, line)
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[len(m.logs)-maxLogLines:]
	}
	m.refreshViewport()
}

// selected returns the drone id under the table cursor.
func (m tuiModel) selected() (string, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.order) {
		return "", false
	}
	return m.order[i], true
}

// control runs an operator action against the selected drone off the UI loop.
func (m tuiModel) control(action string, fn func(id string) error) tea.Cmd {
	id, ok := m.selected()
	if m.ctl == nil || !ok {
		return nil
	}
	return func() tea.Msg {
		if err := fn(id); err != nil {
			return logMsg{line: fmt.Sprintf("%s%s %s failed: %v%s", colorRed, action, id, err, colorReset)}
		}
		return logMsg{line: fmt.Sprintf("%s%s %s%s", colorGreen, action, id, colorReset)}
	}
}

func (m tuiModel) setStatus(status fleet.Status) tea.Cmd {
	return m.control("status "+string(status), func(id string) error { return m.ctl.SetDroneStatus(id, status) })
}

// submitAlert parses "title|description" and pushes a pending alert.
func (m tuiModel) submitAlert(val string) tea.Cmd {
	if m.ctl == nil {
		return nil
	}
	title, desc, _ := strings.Cut(val, "|")
	a := fleet.Alert{
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(desc),
		Author:      tuiAuthor,
		Kind:        fleet.AlertPending,
	}
	ctl, clusterID := m.ctl, m.clusterID
	return func() tea.Msg {
		pushed, err := ctl.PushAlert(a)
		if err != nil {
			return logMsg{line: fmt.Sprintf("%salert rejected: %v%s", colorRed, err, colorReset)}
		}
		row := telemetry.FromAlert(clusterID, pushed, time.Now())
		return alertMsg{line: alertLine(row), row: row}
	}
}

func (m *tuiModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.order))
	for _, id := range m.order {
		d := m.drones[id]
		progress := "-"
		if d.MissionProgress != nil {
			progress = fmt.Sprintf("%.0f%%", *d.MissionProgress)
		}
		rows = append(rows, table.Row{
			d.Name,
			d.Status,
			fmt.Sprintf("%.1f%%", d.Battery),
			fmt.Sprintf("%.0f", d.Signal),
			progress,
		})
	}
	m.table.SetRows(rows)
	m.table.SetHeight(len(rows) + 1)
	m.header = m.renderHeader()
	m.headerHeight = lipgloss.Height(m.header)
	m.updateViewportHeight()
}

func (m *tuiModel) updateViewportHeight() {
	bottomHeight := lipgloss.Height(m.renderBottom())

	alertLines := len(m.alertLogs)
	if alertLines == 0 {
		alertLines = 1
	}
	if limit := m.maxSectionLines(); alertLines > limit {
		alertLines = limit
	}
	m.alertVP.Height = alertLines

	dialogHeight := 0
	if m.alertDialog {
		dialogHeight = 2
	}
	h := m.height - m.headerHeight - bottomHeight - (1 + m.alertVP.Height) - dialogHeight - 4
	if h < 0 {
		h = 0
	}
	m.vp.Height = h
	if m.autoscroll {
		m.alertVP.GotoBottom()
		m.vp.GotoBottom()
	}
}

func (m *tuiModel) refreshViewport() {
	m.vp.SetContent(m.wrapLines(m.logs, m.vp.Width))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m *tuiModel) refreshAlerts() {
	content := "none"
	if len(m.alertLogs) > 0 {
		content = m.wrapLines(m.alertLogs, m.alertVP.Width)
	}
	m.alertVP.SetContent(content)
	if m.autoscroll {
		m.alertVP.GotoBottom()
	}
}

func (m tuiModel) wrapLines(lines []string, width int) string {
	if !m.wrap || width <= 0 {
		return strings.Join(lines, "\n")
	}
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, wordwrap.String(l, width))
	}
	return strings.Join(out, "\n")
}

func (m tuiModel) maxSectionLines() int {
	h := int(float64(m.height) * maxSectionHeightPct)
	if h < 1 {
		h = 1
	}
	return h
}

func (m tuiModel) View() string {
	if m.help {
		return m.renderHelp()
	}
	divider := strings.Repeat("─", m.vp.Width)
	sections := []string{
		m.header,
		divider,
		m.vp.View(),
		divider,
		"Alerts:",
		m.alertVP.View(),
	}
	if m.alertDialog {
		sections = append(sections, divider, "New alert:\n"+m.alertInput.View())
	}
	sections = append(sections, divider, m.renderBottom())
	return strings.Join(sections, "\n")
}

func (m tuiModel) renderHeader() string {
	tableView := m.table.View()
	settings := m.renderSettings()
	sep := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("│")
	return lipgloss.JoinHorizontal(lipgloss.Top, tableView, sep, settings)
}

func (m tuiModel) renderSettings() string {
	lines := []string{
		fmt.Sprintf("Cluster %s%s%s", colorBlue, m.clusterID, colorReset),
		fmt.Sprintf("├─ drain every %s [%.1f, %.1f)", m.cfg.DrainInterval, m.cfg.DrainMin, m.cfg.DrainMax),
		fmt.Sprintf("├─ battery floor %.0f", m.cfg.BatteryFloor),
		fmt.Sprintf("├─ alert every %s p=%.2f", m.cfg.AlertInterval, m.cfg.AlertProbability),
		fmt.Sprintf("└─ activity every %s", m.cfg.ActivityInterval),
	}
	if m.wrap && m.vp.Width > 0 {
		for i, l := range lines {
			lines[i] = wordwrap.String(l, m.vp.Width/2-1)
		}
	}
	return strings.Join(lines, "\n")
}

func (m tuiModel) renderSummary() string {
	counts := map[string]int{}
	var sum float64
	for _, d := range m.drones {
		counts[d.Status]++
		sum += d.Battery
	}
	avg := 0.0
	if len(m.drones) > 0 {
		avg = sum / float64(len(m.drones))
	}
	parts := make([]string, 0, len(fleet.Statuses))
	for _, s := range fleet.Statuses {
		parts = append(parts, fmt.Sprintf("%s%s=%d%s", statusColor(string(s)), s, counts[string(s)], colorReset))
	}
	return fmt.Sprintf("%sSUMMARY%s %sdrones=%d%s %savg_batt=%.1f%s %salerts=%d%s %s",
		colorBlue, colorReset,
		colorGreen, len(m.drones), colorReset,
		colorCyan, avg, colorReset,
		colorRed, m.alertsSeen, colorReset,
		strings.Join(parts, " "))
}

func indicator(on bool) string {
	c := lipgloss.Color("9")
	if on {
		c = lipgloss.Color("10")
	}
	return lipgloss.NewStyle().Foreground(c).Render("●")
}

func (m tuiModel) renderBottom() string {
	line := fmt.Sprintf("Admin UI %s | Control %s | Wrap %s | Scroll %s | Summary %s | h help",
		indicator(m.admin), indicator(m.ctl != nil), indicator(m.wrap), indicator(m.autoscroll), indicator(m.summary))
	if m.summary {
		return fmt.Sprintf("%s\n%s", m.renderSummary(), line)
	}
	return line
}

func (m tuiModel) renderHelp() string {
	lines := []string{
		"Key Bindings:",
		" q  quit",
		" ↑↓ select drone",
		" l  launch mission for selected drone",
		" o  set selected drone online",
		" f  set selected drone flying",
		" x  set selected drone offline",
		" m  set selected drone to maintenance",
		" a  submit alert (title|description)",
		" w  toggle wrap",
		" s  toggle auto-scroll",
		" t  toggle summary footer",
		" h/? toggle this help view",
		"",
		"When auto-scroll is disabled:",
		" pgdown/pgup       scroll the log",
	}
	return strings.Join(lines, "\n")
}
