package tui

import (
	"fmt"
	"image/color"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/hylla/dragboard/internal/dnd"
	"github.com/hylla/dragboard/internal/domain"
)

// Rows above the first card inside a column: top border and top padding.
const columnChromeTop = 2

// columnLayout is one rendered lane and the screen region it covers.
type columnLayout struct {
	view   string
	region dnd.ColumnRegion
}

// cardSpan marks the task-window rows one card occupies.
type cardSpan struct {
	taskID string
	start  int
	end    int
}

// View handles view.
func (m Model) View() tea.View {
	if m.err != nil {
		return newView("error: " + m.err.Error() + "\n\npress r to retry • q quit\n")
	}
	if !m.ready {
		return newView("loading...")
	}

	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dim)

	if len(m.projects) == 0 {
		sections := []string{
			titleStyle.Render("dragboard"),
			"",
			"No projects yet.",
			"Run `dragboard seed` to create a demo board.",
			"Press q to quit.",
		}
		if strings.TrimSpace(m.status) != "" && m.status != "ready" {
			sections = append(sections, "", statusStyle.Render(m.status))
		}
		return newView(m.withHelpLine(strings.Join(sections, "\n"), muted, dim))
	}

	project := m.projects[clamp(m.selectedProject, 0, len(m.projects)-1)]
	header := titleStyle.Render("dragboard") + "  " + project.Name
	if session, ok := m.engine.Session(); ok {
		header += statusStyle.Render("  [dragging " + truncate(m.taskTitle(session.TaskID), 24) + "]")
	}
	if pending := m.engine.Pending(); pending > 0 {
		header += statusStyle.Render(fmt.Sprintf("  syncing %d", pending))
	}

	layouts := m.layoutColumns()
	columnViews := make([]string, 0, len(layouts))
	for _, layout := range layouts {
		columnViews = append(columnViews, layout.view)
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, columnViews...)

	sections := []string{header}
	if tabs := m.renderProjectTabs(accent, dim); tabs != "" {
		sections = append(sections, tabs)
	}
	sections = append(sections, "", body)
	if strings.TrimSpace(m.status) != "" && m.status != "ready" {
		sections = append(sections, statusStyle.Render(m.status))
	}
	content := m.withHelpLine(strings.Join(sections, "\n"), muted, dim)

	height := lipgloss.Height(content)
	if m.height > 0 {
		height = m.height
	}
	width := max(1, m.width)
	if ghost, x, y, ok := m.renderGhost(accent); ok {
		content = overlayAt(content, ghost, x, y, width, max(1, height))
	}

	overlay := m.renderModeOverlay(accent, muted, m.width-8)
	if m.help.ShowAll {
		overlay = m.renderHelpOverlay(accent, muted, dim, m.width-8)
	}
	if overlay != "" {
		content = overlayOnContent(content, overlay, width, max(1, height))
	}
	return newView(content)
}

func newView(content string) tea.View {
	v := tea.NewView(content)
	v.MouseMode = tea.MouseModeCellMotion
	v.AltScreen = true
	return v
}

// withHelpLine appends the short help bar and fits content to the terminal height.
func (m Model) withHelpLine(content string, muted, dim color.Color) string {
	helpBubble := m.help
	helpBubble.ShowAll = false
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))
	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(helpLine)))
	}
	return content + "\n" + helpLine
}

// layoutColumns renders every lane and records where it lands on screen.
func (m Model) layoutColumns() []columnLayout {
	model := m.engine.Board()
	lanes := model.Lanes()
	if len(lanes) == 0 {
		return nil
	}

	accent := lipgloss.Color("62")
	dim := lipgloss.Color("239")
	dropColor := lipgloss.Color("212")
	colWidth := m.columnWidthFor(m.width)
	colHeight := m.columnHeight()
	session, dragging := m.engine.Session()

	baseColStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dim).
		Padding(1, 2).
		MarginRight(1).
		Width(colWidth)
	selColStyle := baseColStyle.BorderForeground(accent)
	dropColStyle := baseColStyle.BorderForeground(dropColor)
	colTitle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	warningStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))

	out := make([]columnLayout, 0, len(lanes))
	top := m.boardTop()
	x := 0
	for laneIdx, lane := range lanes {
		ids := model.Tasks(lane)
		settings := m.laneSettings(lane)

		colHeader := fmt.Sprintf("%s (%d)", settings.Title, len(ids))
		if settings.WIPLimit > 0 {
			colHeader = fmt.Sprintf("%s (%d/%d)", settings.Title, len(ids), settings.WIPLimit)
		}
		headerLines := []string{colTitle.Render(colHeader)}
		if m.showWIPWarnings && settings.WIPLimit > 0 && len(ids) > settings.WIPLimit {
			headerLines = append(headerLines, warningStyle.Render(fmt.Sprintf("WIP limit exceeded: %d/%d", len(ids), settings.WIPLimit)))
		}

		taskLines, spans := m.renderCards(ids, laneIdx, colWidth, session, dragging)

		innerHeight := max(1, colHeight-4)
		window := max(1, innerHeight-len(headerLines))
		scrollTop := 0
		if laneIdx == m.selectedLane && m.selectedTask >= 0 && m.selectedTask < len(spans) {
			selected := spans[m.selectedTask]
			if selected.end >= scrollTop+window {
				scrollTop = selected.end - window + 1
			}
			if selected.start < scrollTop {
				scrollTop = selected.start
			}
		}
		scrollTop = clamp(scrollTop, 0, max(0, len(taskLines)-window))
		if len(taskLines) > window {
			taskLines = taskLines[scrollTop : scrollTop+window]
		}
		if len(taskLines) < window {
			taskLines = append(taskLines, make([]string, window-len(taskLines))...)
		}

		lines := append(append([]string{}, headerLines...), taskLines...)
		content := fitLines(strings.Join(lines, "\n"), innerHeight)
		style := baseColStyle
		switch {
		case dragging && m.drag.hasTarget && m.drag.target == lane:
			style = dropColStyle
		case laneIdx == m.selectedLane:
			style = selColStyle
		}
		view := style.Render(content)

		w := lipgloss.Width(view)
		h := lipgloss.Height(view)
		right := float64(x + w - 2)
		region := dnd.ColumnRegion{
			Lane: lane,
			Rect: dnd.Rect{Left: float64(x), Top: float64(top), Right: right, Bottom: float64(top + h - 1)},
		}
		cardTop := top + columnChromeTop + len(headerLines)
		for _, span := range spans {
			start, end := span.start-scrollTop, span.end-scrollTop
			if end < 0 || start >= window {
				continue
			}
			start, end = max(start, 0), min(end, window-1)
			region.Cards = append(region.Cards, dnd.CardRegion{
				TaskID: span.taskID,
				Rect:   dnd.Rect{Left: float64(x), Top: float64(cardTop + start), Right: right, Bottom: float64(cardTop + end)},
			})
		}
		out = append(out, columnLayout{view: view, region: region})
		x += w
	}
	return out
}

// columnRegions returns the current on-screen lane geometry.
func (m Model) columnRegions() []dnd.ColumnRegion {
	layouts := m.layoutColumns()
	out := make([]dnd.ColumnRegion, 0, len(layouts))
	for _, layout := range layouts {
		out = append(out, layout.region)
	}
	return out
}

// renderCards renders one lane's cards and the row span of each.
func (m Model) renderCards(ids []string, laneIdx, colWidth int, session dnd.Session, dragging bool) ([]string, []cardSpan) {
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	selectedTaskStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	grabbedTaskStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)
	itemSubStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	if len(ids) == 0 {
		return []string{emptyStyle.Render("(empty)")}, nil
	}
	textWidth := max(1, colWidth-8)
	lines := make([]string, 0, len(ids)*3)
	spans := make([]cardSpan, 0, len(ids))
	for idx, id := range ids {
		selected := laneIdx == m.selectedLane && idx == m.selectedTask
		grabbed := dragging && session.TaskID == id

		prefix := "   "
		switch {
		case grabbed:
			prefix = "┆  "
		case selected:
			prefix = "│  "
		}
		title := prefix + truncate(m.taskTitle(id), textWidth)
		switch {
		case grabbed:
			title = grabbedTaskStyle.Render(title)
		case selected:
			title = selectedTaskStyle.Render(title)
		}

		start := len(lines)
		lines = append(lines, title)
		if meta := m.cardMeta(m.tasks[id]); meta != "" {
			lines = append(lines, prefix+itemSubStyle.Render(truncate(meta, textWidth)))
		}
		spans = append(spans, cardSpan{taskID: id, start: start, end: len(lines) - 1})
		if idx < len(ids)-1 {
			lines = append(lines, "")
		}
	}
	return lines, spans
}

// cardMeta handles card meta.
func (m Model) cardMeta(task domain.Task) string {
	parts := make([]string, 0, 2)
	if task.Priority != "" {
		parts = append(parts, string(task.Priority))
	}
	if m.showLabels {
		if labels := summarizeLabels(task.Labels, 2); labels != "" {
			parts = append(parts, labels)
		}
	}
	return strings.Join(parts, " • ")
}

// renderGhost renders the grabbed card at the pointer-translated position.
func (m Model) renderGhost(accent color.Color) (string, int, int, bool) {
	session, ok := m.engine.Session()
	if !ok || !m.drag.moved {
		return "", 0, 0, false
	}
	rect := m.ghostRect()
	width := max(8, int(rect.Right-rect.Left)-1)
	ghost := lipgloss.NewStyle().
		Foreground(lipgloss.Color("252")).
		Background(accent).
		Bold(true).
		Width(width).
		Render(" " + truncate(m.taskTitle(session.TaskID), width-2))
	return ghost, max(0, int(rect.Left)), max(0, int(rect.Top)), true
}

// renderProjectTabs renders project names when more than one exists.
func (m Model) renderProjectTabs(accent, dim color.Color) string {
	if len(m.projects) < 2 {
		return ""
	}
	active := lipgloss.NewStyle().Bold(true).Foreground(accent)
	inactive := lipgloss.NewStyle().Foreground(dim)
	tabs := make([]string, 0, len(m.projects))
	for idx, project := range m.projects {
		if idx == m.selectedProject {
			tabs = append(tabs, active.Render("["+project.Name+"]"))
			continue
		}
		tabs = append(tabs, inactive.Render(project.Name))
	}
	return strings.Join(tabs, "  ")
}

// renderHelpOverlay renders the full key reference.
func (m Model) renderHelpOverlay(accent, muted, dim color.Color, maxWidth int) string {
	width := clamp(maxWidth, 56, 100)
	hb := m.help
	hb.ShowAll = true
	hb.SetWidth(width - 4)

	title := lipgloss.NewStyle().Bold(true).Foreground(accent).Render("dragboard help")
	workflow := []string{
		lipgloss.NewStyle().Bold(true).Foreground(accent).Render("Workflows"),
		"1. drag a card with the mouse and release over a lane to move it",
		"2. esc while dragging cancels; releasing outside every lane discards the drop",
		fmt.Sprintf("3. %s %s move across lanes  •  { } reorder within a lane", m.keys.moveTaskLeft.Help().Key, m.keys.moveTaskRight.Help().Key),
		"4. moves show immediately and roll back if saving fails",
		fmt.Sprintf("5. %s activity log  •  %s copy task id  •  p next project", m.keys.activityLog.Help().Key, m.keys.copyID.Help().Key),
	}
	lines := []string{
		title,
		"",
		hb.View(m.keys),
		"",
		lipgloss.NewStyle().Foreground(muted).Render(strings.Join(workflow, "\n")),
		lipgloss.NewStyle().Foreground(muted).Render("press ? or esc to close"),
	}
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dim).
		Padding(0, 1)
	if maxWidth > 0 {
		style = style.Width(width)
	}
	return style.Render(strings.Join(lines, "\n"))
}

// renderModeOverlay renders output for the current model state.
func (m Model) renderModeOverlay(accent, muted color.Color, maxWidth int) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	hintStyle := lipgloss.NewStyle().Foreground(muted)

	switch m.mode {
	case modeActivityLog:
		style := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1)
		if maxWidth > 0 {
			style = style.Width(clamp(maxWidth, 44, 96))
		}
		lines := []string{titleStyle.Render("Activity Log")}
		if len(m.activityLog) == 0 {
			lines = append(lines, hintStyle.Render("(no activity yet)"))
		} else {
			rendered := 0
			for idx := len(m.activityLog) - 1; idx >= 0; idx-- {
				entry := m.activityLog[idx]
				line := fmt.Sprintf("%s  %s • %s", formatActivityTimestamp(entry.At), entry.Summary, truncate(entry.Target, 36))
				if entry.Actor != "" {
					line += hintStyle.Render("  by " + entry.Actor)
				}
				lines = append(lines, line)
				rendered++
				if rendered >= activityLogViewWindow {
					break
				}
			}
		}
		lines = append(lines, hintStyle.Render("esc close • r refresh"))
		return style.Render(strings.Join(lines, "\n"))

	case modeTaskInfo:
		task, ok := m.tasks[m.infoTaskID]
		if !ok {
			return ""
		}
		boxStyle := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1)
		boxWidth := clamp(maxWidth, 24, 76)
		if maxWidth > 0 {
			boxStyle = boxStyle.Width(boxWidth)
		}
		lane, index, _ := m.engine.Board().IndexOf(task.ID)
		labels := "-"
		if len(task.Labels) > 0 {
			labels = strings.Join(task.Labels, ", ")
		}
		updatedBy := task.UpdatedByActor
		if updatedBy == "" {
			updatedBy = task.CreatedByActor
		}
		lines := []string{
			titleStyle.Render("Task Info"),
			task.Title,
			hintStyle.Render("id: " + task.ID),
			hintStyle.Render(fmt.Sprintf("lane: %s • position: %d", m.laneSettings(lane).Title, index+1)),
			hintStyle.Render("priority: " + string(task.Priority) + " • labels: " + labels),
			hintStyle.Render(fmt.Sprintf("updated %s by %s (%s)", formatActivityTimestamp(task.UpdatedAt), valueOrDash(updatedBy), valueOrDash(string(task.UpdatedByType)))),
		}
		if desc := m.markdown.render(task.Description, boxWidth-4); desc != "" {
			lines = append(lines, "", desc)
		}
		lines = append(lines, "", hintStyle.Render(fmt.Sprintf("esc close • %s copy id", m.keys.copyID.Help().Key)))
		return boxStyle.Render(strings.Join(lines, "\n"))
	}
	return ""
}

func valueOrDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}

// formatActivityTimestamp formats event times, dropping the date for today.
func formatActivityTimestamp(at time.Time) string {
	if at.IsZero() {
		return "--:--:--"
	}
	local := at.Local()
	now := time.Now().In(local.Location())
	if local.Year() != now.Year() || local.YearDay() != now.YearDay() {
		return local.Format("01-02 15:04")
	}
	return local.Format("15:04:05")
}

// columnWidthFor returns column width for.
func (m Model) columnWidthFor(boardWidth int) int {
	lanes := len(m.engine.Board().Lanes())
	if lanes == 0 {
		return 24
	}
	w := 28
	if boardWidth > 0 {
		// Per-column overhead: left/right border (2), horizontal padding (4), margin-right (1)
		const colOverhead = 7
		usable := boardWidth - lanes*colOverhead
		if candidate := usable / lanes; candidate > 0 {
			w = candidate
		}
	}
	return clamp(w, 24, 42)
}

// columnHeight returns column height.
func (m Model) columnHeight() int {
	headerLines := 3
	if len(m.projects) > 1 {
		headerLines++
	}
	footerLines := 4
	h := m.height - headerLines - footerLines
	if h < 10 {
		return 10
	}
	return h
}

// boardTop returns the zero-based row of the first column border: header,
// optional project tabs, then a spacer.
func (m Model) boardTop() int {
	top := 2
	if len(m.projects) > 1 {
		top++
	}
	return top
}

// clamp clamps the requested operation.
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// fitLines fits lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		padding := make([]string, maxLines-len(lines))
		lines = append(lines, padding...)
	}
	return strings.Join(lines, "\n")
}

// overlayOnContent centres overlay over base.
func overlayOnContent(base, overlay string, width, height int) string {
	centered := lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, overlay)
	return overlayAt(base, centered, 0, 0, width, height)
}

// overlayAt composes overlay over base with its top-left corner at x, y.
func overlayAt(base, overlay string, x, y, width, height int) string {
	if width <= 0 || height <= 0 {
		if strings.TrimSpace(overlay) == "" {
			return base
		}
		return overlay + "\n\n" + base
	}
	base = fitLines(base, height)
	canvas := lipgloss.NewCanvas(width, height)
	canvas.Compose(lipgloss.NewLayer(base).X(0).Y(0).Z(0))
	canvas.Compose(lipgloss.NewLayer(overlay).X(x).Y(y).Z(10))
	return canvas.Render()
}

// truncate truncates the requested operation.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	if max <= 1 {
		return string(rs[:max])
	}
	return string(rs[:max-1]) + "…"
}

// summarizeLabels summarizes labels.
func summarizeLabels(labels []string, maxLabels int) string {
	if len(labels) == 0 {
		return ""
	}
	if maxLabels <= 0 {
		maxLabels = 1
	}
	visible := labels
	extra := 0
	if len(labels) > maxLabels {
		visible = labels[:maxLabels]
		extra = len(labels) - maxLabels
	}
	joined := "#" + strings.Join(visible, ",#")
	if extra > 0 {
		joined += fmt.Sprintf("+%d", extra)
	}
	return joined
}
