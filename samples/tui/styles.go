// Copyright (c) Microsoft. All rights reserved.

package main

import "github.com/charmbracelet/lipgloss"

var (
	dimColor     = lipgloss.Color("7")
	accentColor  = lipgloss.Color("12")
	successColor = lipgloss.Color("10")
	warningColor = lipgloss.Color("11")
	dangerColor  = lipgloss.Color("9")

	userStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	agentStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)

	toolStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(dangerColor).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	titleStyle = lipgloss.NewStyle().
			Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(warningColor).
			Bold(true)

	pickerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 1)
)
