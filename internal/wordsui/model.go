// Package wordsui provides the Bubble Tea view over the tracked words.
package wordsui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/weakwords/internal/model"
	"github.com/verte-zerg/weakwords/internal/stats"
	"github.com/verte-zerg/weakwords/internal/store"
)

const (
	tabSlow = iota
	tabErrors
	tabSettings
)

const (
	fieldWordsToShow = iota
	fieldMinSamples
	fieldHistory
	fieldCustomTracking
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7FBF7F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	slowStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF7A45"))
	fastStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#7FBF7F"))
	modalStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A")).
			Padding(1, 2)
)

type dataMsg struct {
	data model.Data
	err  error
}

type watchMsg struct {
	changes <-chan struct{}
	err     error
}

type changedMsg struct{}

type opDoneMsg struct {
	status string
	err    error
}

// Model implements the Bubble Tea words UI.
type Model struct {
	ctx   context.Context
	store *store.Store
	queue *store.Queue
	copy  func(string) error
	now   func() time.Time

	data     model.Data
	loaded   bool
	slowRows []stats.SlowRow
	errRows  []stats.ErrorRow
	changes  <-chan struct{}

	tabs      []string
	activeTab int
	tables    [2]table.Model

	width  int
	height int

	errMsg string
	status string

	confirmClear bool

	settingsMode  bool
	inputs        []textinput.Model
	inputIndex    int
	settingsError string
}

// NewModel constructs a words UI reading st and writing through q.
func NewModel(ctx context.Context, st *store.Store, q *store.Queue) *Model {
	m := &Model{
		ctx:   ctx,
		store: st,
		queue: q,
		copy:  clipboard.WriteAll,
		now:   time.Now,
		data:  model.DefaultData(),
		tabs:  []string{"Slow", "Errors", "Settings"},
	}
	m.tables[tabSlow] = newTable(slowColumns(0))
	m.tables[tabErrors] = newTable(errorColumns(0))
	m.tables[tabSlow].Focus()
	m.initInputs()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.load(), m.watch())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil
	case dataMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.errMsg = ""
		m.setData(msg.data)
		return m, nil
	case watchMsg:
		if msg.err != nil {
			m.errMsg = fmt.Sprintf("live reload unavailable: %v", msg.err)
			return m, nil
		}
		m.changes = msg.changes
		return m, waitChange(m.changes)
	case changedMsg:
		return m, tea.Batch(m.load(), waitChange(m.changes))
	case opDoneMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			m.status = ""
			return m, nil
		}
		m.errMsg = ""
		m.status = msg.status
		return m, m.load()
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.confirmClear {
			return m.updateConfirm(msg)
		}
		if m.settingsMode {
			return m.updateSettings(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m *Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "left", "h":
		m.moveTab(-1)
		return m, tea.ClearScreen
	case "right", "l", "tab":
		m.moveTab(1)
		return m, tea.ClearScreen
	case "d", "delete":
		return m, m.deleteSelected()
	case "x":
		if m.activeTab == tabSettings || m.shownCount() == 0 {
			return m, nil
		}
		m.confirmClear = true
		return m, nil
	case "c":
		return m, m.copyShown()
	case "s":
		return m.startSettings()
	case "g", "home":
		if t := m.activeTable(); t != nil {
			t.GotoTop()
		}
		return m, nil
	case "G", "end":
		if t := m.activeTable(); t != nil {
			t.GotoBottom()
		}
		return m, nil
	}
	if t := m.activeTable(); t != nil {
		var cmd tea.Cmd
		*t, cmd = t.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if m.confirmClear {
		return fitLines(m.renderConfirmModal(), m.width, m.height)
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) load() tea.Cmd {
	ctx, st := m.ctx, m.store
	return func() tea.Msg {
		data, err := st.Get(ctx)
		if err != nil {
			return dataMsg{err: fmt.Errorf("failed to load words: %w", err)}
		}
		return dataMsg{data: data}
	}
}

func (m *Model) watch() tea.Cmd {
	ctx, st := m.ctx, m.store
	return func() tea.Msg {
		changes, err := st.Watch(ctx)
		return watchMsg{changes: changes, err: err}
	}
}

// waitChange blocks until the record changes. A closed channel ends live
// reload.
func waitChange(changes <-chan struct{}) tea.Cmd {
	if changes == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return changedMsg{}
	}
}

// submit runs fn on the queue and reports its outcome as an opDoneMsg.
func (m *Model) submit(name, status string, fn store.Updater) tea.Cmd {
	done := m.queue.Update(name, fn)
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case err := <-done:
			if err != nil {
				return opDoneMsg{err: fmt.Errorf("failed to %s: %w", name, err)}
			}
			return opDoneMsg{status: status}
		case <-ctx.Done():
			return opDoneMsg{err: ctx.Err()}
		}
	}
}

func (m *Model) setData(data model.Data) {
	m.data = data
	m.loaded = true
	m.slowRows = stats.RankSlow(data)
	m.errRows = stats.RankErrors(data)

	slow := make([]table.Row, 0, len(m.slowRows))
	for _, r := range m.slowRows {
		slow = append(slow, table.Row{
			r.Word,
			fmt.Sprintf("%.0f wpm", r.AvgSpeed),
			fmt.Sprintf("%dx", r.Count),
			stats.Sparkline(r.Samples),
			string(r.Class),
		})
	}
	errs := make([]table.Row, 0, len(m.errRows))
	for _, r := range m.errRows {
		errs = append(errs, table.Row{r.Word, stats.Plural(r.Count)})
	}
	setRows(&m.tables[tabSlow], slow)
	setRows(&m.tables[tabErrors], errs)
}

// setRows replaces the rows and keeps the cursor inside them.
func setRows(t *table.Model, rows []table.Row) {
	t.SetRows(rows)
	if c := t.Cursor(); len(rows) > 0 && c >= len(rows) {
		t.SetCursor(maxInt(0, len(rows)-1))
	}
}

func (m *Model) activeTable() *table.Model {
	if m.activeTab == tabSettings {
		return nil
	}
	return &m.tables[m.activeTab]
}

func (m *Model) activeList() store.List {
	if m.activeTab == tabErrors {
		return store.ListErrors
	}
	return store.ListSlow
}

func (m *Model) shownWords() []string {
	switch m.activeTab {
	case tabSlow:
		return stats.SlowWords(m.slowRows)
	case tabErrors:
		return stats.ErrorWords(m.errRows)
	}
	return nil
}

func (m *Model) shownCount() int {
	return len(m.shownWords())
}

func (m *Model) selectedWord() (string, bool) {
	t := m.activeTable()
	if t == nil {
		return "", false
	}
	words := m.shownWords()
	c := t.Cursor()
	if c < 0 || c >= len(words) {
		return "", false
	}
	return words[c], true
}

func (m *Model) deleteSelected() tea.Cmd {
	word, ok := m.selectedWord()
	if !ok {
		return nil
	}
	return m.submit("delete word", fmt.Sprintf("Removed %q", word), store.DeleteWord(m.activeList(), word))
}

func (m *Model) copyShown() tea.Cmd {
	words := m.shownWords()
	if len(words) == 0 {
		m.status = "Nothing to copy."
		return nil
	}
	if err := m.copy(strings.Join(words, " ")); err != nil {
		m.errMsg = fmt.Sprintf("failed to copy: %v", err)
		m.status = ""
		return nil
	}
	m.errMsg = ""
	m.status = fmt.Sprintf("Copied %d words.", len(words))
	return nil
}

func (m *Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y", "enter":
		m.confirmClear = false
		list := m.activeList()
		return m, m.submit("clear list", fmt.Sprintf("Cleared %s words.", list), store.ClearList(list))
	case "n", "N", "esc", "q":
		m.confirmClear = false
		m.status = "Clear cancelled."
	}
	return m, nil
}

func (m *Model) renderConfirmModal() string {
	label := "slow"
	if m.activeTab == tabErrors {
		label = "error"
	}
	body := []string{
		cardValueStyle.Render("Clear list"),
		fmt.Sprintf("Remove all %d %s words?", m.shownCount(), label),
		headerStyle.Render("y to confirm / n to cancel"),
	}
	box := modalStyle.Width(modalWidth(m.width)).Render(strings.Join(body, "\n"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m *Model) initInputs() {
	m.inputs = []textinput.Model{
		newInput("Words to show: "),
		newInput("Min samples: "),
		newInput("History per word: "),
		newInput("Track custom mode (yes/no): "),
	}
}

func newInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 8
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) startSettings() (tea.Model, tea.Cmd) {
	s := m.data.Settings
	m.inputs[fieldWordsToShow].SetValue(strconv.Itoa(s.WordsToShow))
	m.inputs[fieldMinSamples].SetValue(strconv.Itoa(s.MinSamples))
	m.inputs[fieldHistory].SetValue(strconv.Itoa(s.SlowWordHistoryCount))
	m.inputs[fieldCustomTracking].SetValue(yesNo(!s.DisableTrackingInCustomMode))
	m.settingsMode = true
	m.settingsError = ""
	m.activeTab = tabSettings
	return m, m.setInputIndex(0)
}

func (m *Model) updateSettings(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.settingsMode = false
		m.settingsError = ""
		return m, nil
	case tea.KeyEnter:
		s, err := m.parseSettings()
		if err != nil {
			m.settingsError = err.Error()
			return m, nil
		}
		m.settingsMode = false
		m.settingsError = ""
		return m, m.submit("save settings", "Settings saved.", store.SaveSettings(s))
	case tea.KeyTab, tea.KeyDown:
		return m, m.setInputIndex(m.inputIndex + 1)
	case tea.KeyShiftTab, tea.KeyUp:
		return m, m.setInputIndex(m.inputIndex - 1)
	}
	var cmd tea.Cmd
	m.inputs[m.inputIndex], cmd = m.inputs[m.inputIndex].Update(msg)
	return m, cmd
}

func (m *Model) setInputIndex(idx int) tea.Cmd {
	count := len(m.inputs)
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	m.inputIndex = idx
	var cmd tea.Cmd
	for i := range m.inputs {
		if i == idx {
			cmd = m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
	return cmd
}

// parseSettings reads the form. Out-of-range numbers are accepted here and
// clamped when saved.
func (m *Model) parseSettings() (model.Settings, error) {
	s := m.data.Settings
	ints := []struct {
		field int
		name  string
		dst   *int
	}{
		{fieldWordsToShow, "words to show", &s.WordsToShow},
		{fieldMinSamples, "min samples", &s.MinSamples},
		{fieldHistory, "history per word", &s.SlowWordHistoryCount},
	}
	for _, f := range ints {
		v, err := strconv.Atoi(strings.TrimSpace(m.inputs[f.field].Value()))
		if err != nil {
			return model.Settings{}, fmt.Errorf("invalid %s (use an integer)", f.name)
		}
		*f.dst = v
	}
	track, err := parseYesNo(m.inputs[fieldCustomTracking].Value())
	if err != nil {
		return model.Settings{}, err
	}
	s.DisableTrackingInCustomMode = !track
	return s, nil
}

func parseYesNo(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	}
	if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
		return b, nil
	}
	return false, fmt.Errorf("invalid custom mode tracking (use yes or no)")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
	m.status = ""
	for i := range m.tables {
		if i == m.activeTab {
			m.tables[i].Focus()
		} else {
			m.tables[i].Blur()
		}
	}
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if m.errMsg != "" || m.status != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.tables[tabSlow].SetColumns(slowColumns(m.width))
	m.tables[tabErrors].SetColumns(errorColumns(m.width))
	for i := range m.tables {
		m.tables[i].SetWidth(m.width)
		m.tables[i].SetHeight(maxInt(1, bodyHeight-1))
	}
	for i := range m.inputs {
		promptWidth := lipgloss.Width(m.inputs[i].Prompt)
		m.inputs[i].Width = maxInt(4, minInt(12, m.width-promptWidth-2))
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	summary := fmt.Sprintf("Slow: %d  Errors: %d  Updated: %s",
		len(m.data.SlowWords), len(m.data.ErroredWords), stats.LastUpdate(m.data, m.now()))
	return tabs + "\n" + headerStyle.Render(truncateLine(summary, m.width))
}

func (m *Model) renderHelp() string {
	help := "Nav: left/right  Move: up/down  Delete: d  Clear: x  Copy: c  Settings: s  Quit: q"
	switch {
	case m.settingsMode:
		help = "tab/shift+tab: next field  enter: save  esc: cancel"
	case m.activeTab == tabSettings:
		help = "Nav: left/right  Edit: s  Quit: q"
	}
	return headerStyle.Render(truncateLine(help, m.width))
}

func (m *Model) renderFooter() string {
	help := m.renderHelp()
	switch {
	case m.errMsg != "":
		return help + "\n" + errorStyle.Render(truncateLine(m.errMsg, m.width))
	case m.status != "":
		return help + "\n" + statusStyle.Render(truncateLine(m.status, m.width))
	}
	return help
}

func (m *Model) renderBody() string {
	if !m.loaded {
		return "Loading..."
	}
	switch m.activeTab {
	case tabSlow:
		if len(m.slowRows) == 0 {
			return "No slow words tracked yet."
		}
		return m.colorClasses(m.tables[tabSlow].View())
	case tabErrors:
		if len(m.errRows) == 0 {
			return "No error words tracked yet."
		}
		return m.tables[tabErrors].View()
	}
	if m.settingsMode {
		return m.renderSettingsForm()
	}
	return m.renderSettings()
}

// colorClasses tints the speed class column.
func (m *Model) colorClasses(view string) string {
	lines := strings.Split(view, "\n")
	for i, line := range lines {
		trimmed := strings.TrimRight(line, " ")
		switch {
		case strings.HasSuffix(trimmed, string(stats.SpeedSlow)):
			lines[i] = strings.TrimSuffix(trimmed, string(stats.SpeedSlow)) + slowStyle.Render(string(stats.SpeedSlow))
		case strings.HasSuffix(trimmed, string(stats.SpeedFast)):
			lines[i] = strings.TrimSuffix(trimmed, string(stats.SpeedFast)) + fastStyle.Render(string(stats.SpeedFast))
		}
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderSettings() string {
	s := m.data.Settings
	cards := []string{
		metricCard("Slow words", strconv.Itoa(len(m.data.SlowWords))),
		metricCard("Error words", strconv.Itoa(len(m.data.ErroredWords))),
		metricCard("Last update", stats.LastUpdate(m.data, m.now())),
	}
	var top string
	if m.width < 60 {
		top = strings.Join(cards, "\n")
	} else {
		top = lipgloss.JoinHorizontal(lipgloss.Top, cards...)
	}
	lines := []string{
		fmt.Sprintf("Words to show:       %d", s.WordsToShow),
		fmt.Sprintf("Min samples:         %d", s.MinSamples),
		fmt.Sprintf("History per word:    %d", s.SlowWordHistoryCount),
		fmt.Sprintf("Track custom mode:   %s", yesNo(!s.DisableTrackingInCustomMode)),
	}
	return top + "\n\n" + strings.Join(lines, "\n")
}

func (m *Model) renderSettingsForm() string {
	lines := []string{"Settings (enter to save, esc to cancel)"}
	for _, input := range m.inputs {
		lines = append(lines, input.View())
	}
	if m.settingsError != "" {
		lines = append(lines, errorStyle.Render(m.settingsError))
	}
	return strings.Join(lines, "\n")
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func newTable(columns []table.Column) table.Model {
	t := table.New(table.WithColumns(columns), table.WithHeight(1))
	t.SetStyles(tableStyles())
	return t
}

func slowColumns(width int) []table.Column {
	word := maxInt(12, width-9-6-22-6-5)
	return []table.Column{
		{Title: "Word", Width: minInt(word, 32)},
		{Title: "Speed", Width: 9},
		{Title: "Seen", Width: 6},
		{Title: "Trend", Width: 22},
		{Title: "", Width: 6},
	}
}

func errorColumns(width int) []table.Column {
	word := maxInt(12, width-12-2)
	return []table.Column{
		{Title: "Word", Width: minInt(word, 32)},
		{Title: "Errors", Width: 12},
	}
}

func tableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func modalWidth(width int) int {
	return maxInt(30, minInt(width-4, 60))
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
