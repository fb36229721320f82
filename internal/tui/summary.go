package tui

import (
	"fmt"
	"strconv"
	"strings"
)

type SummaryRow struct {
	Label string
	Value string
}

func RenderSummary(rows []SummaryRow) string {
	labelWidth := 0
	valueWidth := 0
	for _, row := range rows {
		if len(row.Label) > labelWidth {
			labelWidth = len(row.Label)
		}
		if len(row.Value) > valueWidth {
			valueWidth = len(row.Value)
		}
	}

	hline := strings.Repeat("-", labelWidth+valueWidth+3)
	lines := []string{hline}

	for _, row := range rows {
		label := padRight(row.Label, labelWidth)
		value := padRight(row.Value, valueWidth)
		line := fmt.Sprintf("%s | %s", labelStyle.Render(label), valueStyle.Render(value))
		lines = append(lines, line)
	}

	lines = append(lines, hline)
	return strings.Join(lines, "\n")
}

// RenderErrors renders a numbered list of per-file errors under a heading.
func RenderErrors(errs []error) string {
	if len(errs) == 0 {
		return ""
	}
	lines := []string{errorStyle.Render("⚠ Errors during processing:")}
	for i, err := range errs {
		lines = append(lines, fmt.Sprintf("  %s %s",
			errorStyle.Render(strconv.Itoa(i+1)+"."),
			dimStyle.Render(err.Error()),
		))
	}
	return strings.Join(lines, "\n")
}

// RenderHeader renders the settings block printed before processing starts.
func RenderHeader(rows []SummaryRow) string {
	lines := []string{titleStyle.Render("=== imgmatrix ===")}
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf("  %s %s", labelStyle.Render(row.Label+":"), valueStyle.Render(row.Value)))
	}
	return strings.Join(lines, "\n")
}

// RenderSuccess renders the closing line of a fully successful run.
func RenderSuccess(images int) string {
	noun := "images"
	if images == 1 {
		noun = "image"
	}
	return successStyle.Render("✓ Processing completed successfully!") + "\n" +
		dimStyle.Render(fmt.Sprintf("  %d %s optimized", images, noun))
}

// FinishedLine is the one-line result shown for a file.
func FinishedLine(name string, ok bool) string {
	if ok {
		return "  " + successStyle.Render("✓") + " " + labelStyle.Render(name)
	}
	return "  " + errorStyle.Render("✗") + " " + labelStyle.Render(name)
}

// DisplayName shortens names longer than 35 characters to their first 20
// and last 12 characters.
func DisplayName(name string) string {
	r := []rune(name)
	if len(r) <= 35 {
		return name
	}
	return string(r[:20]) + "..." + string(r[len(r)-12:])
}

func padRight(s string, width int) string {
	n := len([]rune(s))
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}
