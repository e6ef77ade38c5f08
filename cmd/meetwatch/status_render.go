package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"meetwatch/internal/meeting"
	"meetwatch/internal/preflight"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusReport(report *meeting.Report, dirs []preflight.Result, now time.Time, colorize bool) []string {
	lines := renderSectionHeader("Session", colorize)
	if !report.Active {
		lines = append(lines, renderStatusLine("Current", statusInfo, "none", colorize))
	} else {
		m := report.Meeting
		lines = append(lines,
			renderStatusLine("Current", statusOK, m.ID, colorize),
			renderStatusLine("Participant", statusInfo, m.ParticipantName, colorize),
			renderStatusLine("URL", statusInfo, m.URL, colorize),
			renderStatusLine("Started", statusInfo, fmt.Sprintf("%s (%s ago)", m.StartedAt.Local().Format("2006-01-02 15:04:05"), m.Duration(now).Round(time.Second)), colorize),
			renderStatusLine("Transcript lines", statusInfo, fmt.Sprint(report.TranscriptLines), colorize),
			renderStatusLine("Mentions", statusInfo, fmt.Sprint(report.Mentions), colorize),
			renderStatusLine("Directory", statusInfo, report.Dir, colorize),
		)
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Transcriber", colorize)...)
	running := report.PipelineState == "running"
	switch {
	case running:
		lines = append(lines, renderStatusLine("State", statusOK, fmt.Sprintf("running (pid %d)", report.PipelinePID), colorize))
	case report.Active:
		lines = append(lines, renderStatusLine("State", statusError, "stopped", colorize))
	default:
		lines = append(lines, renderStatusLine("State", statusInfo, "stopped", colorize))
	}
	if report.PipelineSession != "" {
		lines = append(lines, renderStatusLine("Recorded session", statusInfo, report.PipelineSession, colorize))
	}
	lines = append(lines, renderStatusLine("Running", statusInfo, yesNo(running), colorize))

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Directories", colorize)...)
	for _, dir := range dirs {
		kind := statusOK
		if !dir.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(dir.Name, kind, dir.Detail, colorize))
	}
	return lines
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
