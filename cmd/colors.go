package cmd

import (
	"strings"

	"github.com/fatih/color"
)

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
	colorWarn    = color.New(color.FgYellow).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()
	colorBold    = color.New(color.Bold).SprintFunc()
)

func formatStatusWithColor(status string) string {
	switch strings.ToLower(status) {
	case "ok", "success", "active", "ready", "done":
		return colorSuccess(status)
	case "error", "fail", "failed":
		return colorError(status)
	case "in_progress", "dns", "pending", "running":
		return colorInfo(status)
	default:
		return status
	}
}

// formatGradeWithColor colors A grades green, B yellow and anything worse red.
func formatGradeWithColor(grade string) string {
	switch {
	case strings.HasPrefix(grade, "A"):
		return colorSuccess(grade)
	case strings.HasPrefix(grade, "B"):
		return colorWarn(grade)
	case grade == "" || grade == "Unknown":
		return grade
	default:
		return colorError(grade)
	}
}
