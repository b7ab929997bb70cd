package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/papercomputeco/rovo/pkg/widget"
)

const workItemsType = "work-items"

type workItem struct {
	Key      string `json:"key"`
	Summary  string `json:"summary"`
	Status   string `json:"status"`
	Assignee string `json:"assignee"`
}

// renderWidget draws w as a bordered card at most width cells wide.
// Unknown widget types show their raw data.
func renderWidget(w *widget.Widget, width int) string {
	inner := width - cardStyle.GetHorizontalFrameSize()
	if inner < 10 {
		inner = 10
	}

	var lines []string
	switch w.Type {
	case workItemsType:
		lines = workItemLines(w.Data)
	default:
		lines = []string{dimStyle.Render(w.Type), string(w.Data)}
	}

	for i, line := range lines {
		lines[i] = ansi.Truncate(line, inner, "…")
	}
	return cardStyle.Width(inner + cardStyle.GetHorizontalPadding()).Render(strings.Join(lines, "\n"))
}

func workItemLines(data json.RawMessage) []string {
	var payload struct {
		Items []workItem `json:"items"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return []string{dimStyle.Render("work items unavailable")}
	}
	if len(payload.Items) == 0 {
		return []string{dimStyle.Render("No work items")}
	}

	lines := make([]string, 0, len(payload.Items))
	for _, item := range payload.Items {
		line := fmt.Sprintf("%s  %s", keyStyle.Render(item.Key), item.Summary)
		if item.Status != "" {
			line += "  " + statusStyle.Render("["+item.Status+"]")
		}
		if item.Assignee != "" {
			line += "  " + dimStyle.Render(item.Assignee)
		}
		lines = append(lines, line)
	}
	return lines
}
