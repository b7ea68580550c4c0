package watch

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vargaseous/sec-mcptest/internal/dataset"
	"github.com/vargaseous/sec-mcptest/state"
)

// View renders the current document and the facilities it selects.
func (m *Model) View() string {
	t := m.theme
	var b strings.Builder

	b.WriteString(t.Header.Render("viewsync watch"))
	b.WriteString("\n\n")

	if !m.loaded {
		if m.err != nil {
			b.WriteString(t.Error.Render("Error: " + m.err.Error()))
		} else {
			b.WriteString(t.Muted.Render("Loading state..."))
		}
		b.WriteString("\n\n" + m.help.View(m.keys))
		return b.String()
	}

	rows := []string{
		m.row("Filters", describeFilters(m.doc.SelectedFClasses)),
		m.row("Center", m.describeCenter()),
		m.row("Zoom", fmt.Sprintf("%d", m.doc.Zoom())),
	}
	if m.facilities != nil {
		if m.dataErr != nil {
			rows = append(rows, m.row("Facilities", t.Error.Render(m.dataErr.Error())))
		} else {
			rows = append(rows, m.row("Facilities", describeFacilities(m.visible)))
		}
	}

	box := t.Box
	if m.width > 4 {
		box = box.Width(m.width - 4)
	}
	b.WriteString(box.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
	b.WriteString("\n")

	status := fmt.Sprintf("Updated %s (%d refreshes)", m.updatedAt.Format("15:04:05"), m.refreshes)
	b.WriteString(t.Muted.Render(status))
	if m.err != nil {
		b.WriteString("\n" + t.Error.Render("Error: "+m.err.Error()))
	}

	b.WriteString("\n\n" + m.help.View(m.keys))
	return b.String()
}

func (m *Model) row(label, value string) string {
	return m.theme.Label.Render(label) + m.theme.Value.Render(value)
}

// Summary is the single-line form of a document used by plain output.
func Summary(doc state.Document) string {
	return fmt.Sprintf("filters=%s center=%s zoom=%d",
		describeFilters(doc.SelectedFClasses), describeCenter(doc.MapCenter), doc.Zoom())
}

func describeFilters(classes []string) string {
	if len(classes) == 0 {
		return "all classes"
	}
	return strings.Join(classes, ", ")
}

// describeCenter shows the document's center or, when it sets none, the
// mean position of the visible facilities.
func (m *Model) describeCenter() string {
	if m.doc.MapCenter == nil && m.center != nil {
		return describeCenter(m.center) + " (dataset default)"
	}
	return describeCenter(m.doc.MapCenter)
}

func describeCenter(center *state.LatLng) string {
	if center == nil {
		return "dataset default"
	}
	return fmt.Sprintf("%.5f, %.5f", center[0], center[1])
}

// describeFacilities counts features per class, largest first.
func describeFacilities(features []dataset.Feature) string {
	counts := make(map[string]int)
	for _, f := range features {
		counts[f.Class]++
	}
	classes := make([]string, 0, len(counts))
	for c := range counts {
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool {
		if counts[classes[i]] != counts[classes[j]] {
			return counts[classes[i]] > counts[classes[j]]
		}
		return classes[i] < classes[j]
	})

	parts := make([]string, len(classes))
	for i, c := range classes {
		parts[i] = fmt.Sprintf("%s %d", c, counts[c])
	}
	summary := fmt.Sprintf("%d shown", len(features))
	if len(parts) > 0 {
		summary += " (" + strings.Join(parts, ", ") + ")"
	}
	return summary
}
