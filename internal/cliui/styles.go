// Package cliui holds the status-line styles shared by every subcommand.
//
// Grounded on the teacher's cmd/styles.go palette and the waitingStyle /
// successStyle / warningStyle / infoStyle set from pkg/gh/client.go.
package cliui

import "github.com/charmbracelet/lipgloss"

var (
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	InfoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	FaintStyle   = lipgloss.NewStyle().Faint(true)
)

// Success renders s in the success style.
func Success(s string) string { return SuccessStyle.Render(s) }

// Warning renders s in the warning style.
func Warning(s string) string { return WarningStyle.Render(s) }

// Info renders s in the info style.
func Info(s string) string { return InfoStyle.Render(s) }

// Error renders s in the error style.
func Error(s string) string { return ErrorStyle.Render(s) }
