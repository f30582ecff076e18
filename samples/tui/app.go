// Copyright (c) Microsoft. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	markdown "github.com/MichaelMure/go-term-markdown"
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"

	ak "github.com/agentplayground/agentkit/agentkit"
	"github.com/agentplayground/agentkit/catalog"
	"github.com/agentplayground/agentkit/runner"
)

const chatID = "tui"

type entryKind int

const (
	entryUser entryKind = iota
	entryAgent
	entryCall
	entryResult
	entryError
	entryInfo
)

type entry struct {
	kind entryKind
	text string
}

// roundMsg carries a finished round back to the update loop.
type roundMsg struct {
	reply *runner.Reply
	err   error
}

type app struct {
	runner   *runner.Runner
	profile  *catalog.Profile
	provider string

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	entries    []entry
	lastAnswer string
	status     string
	busy       bool
	cancel     context.CancelFunc

	width  int
	height int
	ready  bool

	// Profile picker
	picking bool
	filter  textinput.Model
	matches []*catalog.Profile
	cursor  int

	copyText func(string) error
}

func newApp(r *runner.Runner, profile *catalog.Profile, provider string) app {
	input := textinput.New()
	input.Placeholder = "Ask something, or ctrl+p to switch profile"
	input.Prompt = "› "
	input.Focus()

	filter := textinput.New()
	filter.Placeholder = "filter profiles"
	filter.Prompt = "/ "

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = dimStyle

	a := app{
		runner:   r,
		profile:  profile,
		provider: provider,
		viewport: viewport.New(0, 0),
		input:    input,
		filter:   filter,
		spinner:  sp,
		copyText: clipboard.WriteAll,
	}
	a.entries = append(a.entries, a.profileEntry())
	return a
}

func (a app) Init() tea.Cmd {
	return textinput.Blink
}

func (a app) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.viewport.Width = a.width
		a.viewport.Height = max(a.height-3, 1)
		a.input.Width = max(a.width-4, 10)
		a.ready = true
		a.refresh()
		return a, nil

	case spinner.TickMsg:
		if !a.busy {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case roundMsg:
		return a.finishRound(msg), nil

	case tea.KeyMsg:
		if a.picking {
			return a.updatePicker(msg)
		}
		return a.updateChat(msg)
	}

	var cmd tea.Cmd
	a.viewport, cmd = a.viewport.Update(msg)
	return a, cmd
}

func (a app) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		if a.cancel != nil {
			a.cancel()
		}
		return a, tea.Quit

	case "esc":
		if a.busy && a.cancel != nil {
			a.cancel()
			a.status = "cancelling..."
		}
		return a, nil

	case "enter":
		text := strings.TrimSpace(a.input.Value())
		if text == "" || a.busy {
			return a, nil
		}
		a.input.Reset()
		a.entries = append(a.entries, entry{kind: entryUser, text: text})
		a.busy = true
		a.status = ""
		ctx, cancel := context.WithCancel(context.Background())
		a.cancel = cancel
		a.refresh()
		return a, tea.Batch(a.spinner.Tick, a.round(ctx, text))

	case "ctrl+p":
		if a.busy {
			return a, nil
		}
		a.picking = true
		a.filter.SetValue("")
		a.matches = catalog.All()
		a.cursor = 0
		a.input.Blur()
		return a, a.filter.Focus()

	case "ctrl+y":
		if a.lastAnswer == "" {
			a.status = "nothing to copy yet"
			return a, nil
		}
		if err := a.copyText(a.lastAnswer); err != nil {
			a.status = "copy failed: " + err.Error()
		} else {
			a.status = "copied last answer"
		}
		return a, nil

	case "ctrl+r":
		switch err := a.runner.Reset(chatID); {
		case errors.Is(err, ak.ErrSessionBusy):
			a.status = "a round is still running"
			return a, nil
		case err != nil && !errors.Is(err, runner.ErrChatNotFound):
			a.status = err.Error()
			return a, nil
		}
		a.entries = []entry{a.profileEntry()}
		a.lastAnswer = ""
		a.status = "conversation reset"
		a.refresh()
		return a, nil

	case "ctrl+e":
		path, err := a.runner.ExportFile(chatID)
		if err != nil {
			a.status = "export failed: " + err.Error()
		} else {
			a.status = "exported to " + path
		}
		return a, nil

	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a app) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+c":
		return a.closePicker(), nil
	case "up":
		if a.cursor > 0 {
			a.cursor--
		}
		return a, nil
	case "down":
		if a.cursor < len(a.matches)-1 {
			a.cursor++
		}
		return a, nil
	case "enter":
		if len(a.matches) == 0 {
			return a, nil
		}
		p := a.matches[a.cursor]
		a = a.closePicker()
		if p.ID != a.profile.ID {
			a.profile = p
			a.entries = []entry{a.profileEntry()}
			a.lastAnswer = ""
			a.status = "switched to " + p.Name
			a.refresh()
		}
		return a, nil
	}

	var cmd tea.Cmd
	a.filter, cmd = a.filter.Update(msg)
	a.matches = filterProfiles(a.filter.Value())
	if a.cursor >= len(a.matches) {
		a.cursor = max(len(a.matches)-1, 0)
	}
	return a, cmd
}

func (a app) closePicker() app {
	a.picking = false
	a.filter.Blur()
	a.input.Focus()
	return a
}

// filterProfiles fuzzy-matches the query against profile ids and names.
func filterProfiles(query string) []*catalog.Profile {
	all := catalog.All()
	if query == "" {
		return all
	}
	targets := make([]string, len(all))
	for i, p := range all {
		targets[i] = p.ID + " " + p.Name
	}
	matches := fuzzy.Find(query, targets)
	out := make([]*catalog.Profile, len(matches))
	for i, m := range matches {
		out[i] = all[m.Index]
	}
	return out
}

func (a app) round(ctx context.Context, input string) tea.Cmd {
	r, profileID := a.runner, a.profile.ID
	return func() tea.Msg {
		reply, err := r.Chat(ctx, chatID, profileID, input)
		return roundMsg{reply: reply, err: err}
	}
}

func (a app) finishRound(msg roundMsg) app {
	a.busy = false
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}

	if msg.reply != nil && msg.reply.RoundResult != nil {
		res := msg.reply.RoundResult
		for _, t := range res.Turns {
			switch t.Kind {
			case ak.TurnToolCall:
				a.entries = append(a.entries, entry{kind: entryCall, text: fmt.Sprintf("%s(%s)", t.Call.Name, t.Call.Arguments)})
			case ak.TurnToolResult:
				kind := entryResult
				if !t.Result.Success {
					kind = entryError
				}
				a.entries = append(a.entries, entry{kind: kind, text: t.Result.Content()})
			case ak.TurnAgent:
				a.entries = append(a.entries, entry{kind: entryAgent, text: t.Text})
				a.lastAnswer = t.Text
			}
		}
		a.status = fmt.Sprintf("%s · %d round(s) · %d tool call(s) · %s",
			res.State, res.Rounds, res.ToolCalls, res.Duration.Round(time.Millisecond))
	}
	if msg.err != nil {
		a.entries = append(a.entries, entry{kind: entryError, text: describe(msg.err)})
	}
	a.refresh()
	return a
}

// describe maps a round error to a line for the transcript.
func describe(err error) string {
	switch {
	case errors.Is(err, ak.ErrToolLoopBudgetExceeded):
		return "stopped: tool round budget used up"
	case errors.Is(err, ak.ErrCancelled):
		return "cancelled"
	case errors.Is(err, ak.ErrBackendTimeout):
		return "the model did not answer in time"
	case errors.Is(err, ak.ErrAuth):
		return "authentication failed: " + err.Error()
	case errors.Is(err, ak.ErrBackendUnavailable):
		return "backend unavailable: " + err.Error()
	default:
		return err.Error()
	}
}

func (a app) profileEntry() entry {
	text := a.profile.Name + ": " + a.profile.Description
	if names := a.profile.ToolNames(); len(names) > 0 {
		text += "\ntools: " + strings.Join(names, ", ")
	}
	return entry{kind: entryInfo, text: text}
}

func (a *app) refresh() {
	if !a.ready {
		return
	}
	a.viewport.SetContent(a.render())
	a.viewport.GotoBottom()
}

func (a app) render() string {
	var b strings.Builder
	for _, e := range a.entries {
		switch e.kind {
		case entryUser:
			b.WriteString(userStyle.Render("You") + " " + e.text + "\n\n")
		case entryAgent:
			b.WriteString(agentStyle.Render("Agent") + "\n")
			b.Write(markdown.Render(e.text, max(a.width-4, 20), 2))
			b.WriteString("\n")
		case entryCall:
			b.WriteString(toolStyle.Render("  → "+a.clip(e.text, 6)) + "\n")
		case entryResult:
			b.WriteString(dimStyle.Render("  ← "+a.clip(e.text, 6)) + "\n")
		case entryError:
			b.WriteString(errorStyle.Render("  ! "+a.clip(e.text, 6)) + "\n\n")
		case entryInfo:
			b.WriteString(dimStyle.Render(e.text) + "\n\n")
		}
	}
	return b.String()
}

// clip flattens s to one line that fits the screen after indent columns.
func (a app) clip(s string, indent int) string {
	s = strings.Join(strings.Fields(s), " ")
	if a.width <= indent {
		return s
	}
	return runewidth.Truncate(s, a.width-indent, "…")
}

func (a app) View() string {
	if !a.ready {
		return "starting..."
	}

	title := titleStyle.Render("agentkit") + dimStyle.Render(" · "+a.profile.Name+" · "+a.provider)

	body := a.viewport.View()
	if a.picking {
		body = a.pickerView()
	}

	prompt := a.input.View()
	if a.busy {
		prompt = a.spinner.View() + dimStyle.Render(" thinking... (esc to cancel)")
	}

	status := a.status
	if status == "" {
		status = "enter send · ctrl+p profile · ctrl+y copy · ctrl+r reset · ctrl+e export · ctrl+c quit"
	}
	status = dimStyle.Render(runewidth.Truncate(status, max(a.width, 1), "…"))

	return strings.Join([]string{title, body, prompt, status}, "\n")
}

func (a app) pickerView() string {
	var b strings.Builder
	b.WriteString(a.filter.View() + "\n\n")
	if len(a.matches) == 0 {
		b.WriteString(dimStyle.Render("no matching profile"))
	}
	descWidth := max(a.width-30, 10)
	for i, p := range a.matches {
		line := fmt.Sprintf("%-14s %s", p.ID, runewidth.Truncate(p.Description, descWidth, "…"))
		if i == a.cursor {
			b.WriteString(selectedStyle.Render("> "+line) + "\n")
		} else {
			b.WriteString("  " + line + "\n")
		}
	}
	return pickerStyle.Render(b.String())
}
