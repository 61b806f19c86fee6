// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders command output for terminals and for machines.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Palette.
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")
	ColorWarning     = lipgloss.Color("#F4D03F")
	ColorError       = lipgloss.Color("#E74C3C")
)

// Styles used by Printer.
var Styles = struct {
	Title    lipgloss.Style
	Key      lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Box      lipgloss.Style
	ErrorBox lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Key:     lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Success: lipgloss.NewStyle().Foreground(ColorTealBright),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),
}

// Icon is a status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconBullet  Icon = "•"
)

// Mode selects how a Printer renders.
type Mode int

const (
	// ModeRich uses colors and boxes.
	ModeRich Mode = iota
	// ModePlain uses icons without styling.
	ModePlain
	// ModeMachine prints tab separated lines with no decoration.
	ModeMachine
)

// Field is one labeled value.
type Field struct {
	Key   string
	Value string
}

// Printer writes styled output to w.
type Printer struct {
	w    io.Writer
	mode Mode
}

// NewPrinter renders to w in mode.
func NewPrinter(w io.Writer, mode Mode) *Printer {
	return &Printer{w: w, mode: mode}
}

// ForWriter returns a Printer for w, rich when w is a terminal and plain
// otherwise. machine forces ModeMachine.
func ForWriter(w io.Writer, machine bool) *Printer {
	mode := ModePlain
	switch {
	case machine:
		mode = ModeMachine
	case isTerminal(w):
		mode = ModeRich
	}
	return NewPrinter(w, mode)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// Mode returns the rendering mode.
func (p *Printer) Mode() Mode {
	return p.mode
}

// Title prints a heading. Machine mode prints nothing.
func (p *Printer) Title(text string) {
	switch p.mode {
	case ModeMachine:
	case ModePlain:
		fmt.Fprintln(p.w, text)
	default:
		fmt.Fprintln(p.w, Styles.Title.Render(text))
	}
}

// Success prints a success line.
func (p *Printer) Success(text string) {
	p.status("OK", IconSuccess, Styles.Success, text)
}

// Warning prints a warning line.
func (p *Printer) Warning(text string) {
	p.status("WARN", IconWarning, Styles.Warning, text)
}

// Error prints an error line.
func (p *Printer) Error(text string) {
	p.status("ERROR", IconError, Styles.Error, text)
}

func (p *Printer) status(tag string, icon Icon, style lipgloss.Style, text string) {
	switch p.mode {
	case ModeMachine:
		fmt.Fprintf(p.w, "%s\t%s\n", tag, text)
	case ModePlain:
		fmt.Fprintf(p.w, "%s %s\n", icon, text)
	default:
		fmt.Fprintf(p.w, "%s %s\n", style.Render(string(icon)), style.Render(text))
	}
}

// Fields prints labeled values, aligned. Empty values are skipped.
func (p *Printer) Fields(fields []Field) {
	width := 0
	for _, f := range fields {
		if f.Value != "" && len(f.Key) > width {
			width = len(f.Key)
		}
	}
	for _, f := range fields {
		if f.Value == "" {
			continue
		}
		switch p.mode {
		case ModeMachine:
			fmt.Fprintf(p.w, "%s\t%s\n", f.Key, f.Value)
		case ModePlain:
			fmt.Fprintf(p.w, "%-*s  %s\n", width, f.Key, f.Value)
		default:
			fmt.Fprintf(p.w, "%s  %s\n", Styles.Key.Render(fmt.Sprintf("%-*s", width, f.Key)), f.Value)
		}
	}
}

// Box prints content under title inside a border. The border is dropped
// outside rich mode.
func (p *Printer) Box(title string, content string, failed bool) {
	switch p.mode {
	case ModeMachine:
		fmt.Fprintf(p.w, "%s\t%s\n", title, strings.ReplaceAll(content, "\n", " "))
	case ModePlain:
		fmt.Fprintf(p.w, "%s\n%s\n", title, content)
	default:
		style, head := Styles.Box, Styles.Title
		if failed {
			style, head = Styles.ErrorBox, Styles.Error.Bold(true)
		}
		fmt.Fprintln(p.w, style.Render(head.Render(title)+"\n"+content))
	}
}

// Table prints rows with a header. Machine mode omits the header.
func (p *Printer) Table(header []string, rows [][]string) {
	if p.mode == ModeMachine {
		for _, row := range rows {
			fmt.Fprintln(p.w, strings.Join(row, "\t"))
		}
		return
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	line := func(cells []string) string {
		parts := make([]string, len(cells))
		for i, c := range cells {
			if i < len(widths) {
				parts[i] = fmt.Sprintf("%-*s", widths[i], c)
			} else {
				parts[i] = c
			}
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	head := line(header)
	if p.mode == ModeRich {
		head = Styles.Key.Render(head)
	}
	fmt.Fprintln(p.w, head)
	for _, row := range rows {
		fmt.Fprintln(p.w, line(row))
	}
}
