// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the relmap CLI.
package ux

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Aleutian color palette - deep ocean teals and arctic waters
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // Bright teal - highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // Primary teal - main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // Deep teal - borders, accents
	ColorSlate       = lipgloss.Color("#2C4A54") // Slate - muted text, borders

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

func (i Icon) style() lipgloss.Style {
	switch i {
	case IconSuccess:
		return Styles.Success
	case IconWarning:
		return Styles.Warning
	case IconError:
		return Styles.Error
	default:
		return Styles.Muted
	}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Printer writes styled output to w. Styling is applied only when color is
// enabled, so piped output stays plain text.
type Printer struct {
	w     io.Writer
	color bool
}

// NewPrinter returns a Printer that styles output when w is a terminal and
// NO_COLOR is unset.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, color: IsTerminal(w) && os.Getenv("NO_COLOR") == ""}
}

// NewPlainPrinter returns a Printer that never styles output.
func NewPlainPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Color reports whether the printer styles output.
func (p *Printer) Color() bool {
	return p.color
}

func (p *Printer) render(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

// Title prints a styled title line.
func (p *Printer) Title(text string) {
	fmt.Fprintln(p.w, p.render(Styles.Title, text))
}

// Status prints a line prefixed with a status icon.
func (p *Printer) Status(icon Icon, text string) {
	fmt.Fprintf(p.w, "%s %s\n", p.render(icon.style(), string(icon)), text)
}

// Success prints a success message with checkmark.
func (p *Printer) Success(text string) {
	p.Status(IconSuccess, text)
}

// Warning prints a warning message.
func (p *Printer) Warning(text string) {
	p.Status(IconWarning, p.render(Styles.Warning, text))
}

// Error prints an error message.
func (p *Printer) Error(text string) {
	p.Status(IconError, p.render(Styles.Error, text))
}

// FileStatus prints a file with its extraction status
func (p *Printer) FileStatus(path string, status Icon, reason string) {
	if reason == "" {
		p.Status(status, path)
		return
	}
	p.Status(status, path+" "+p.render(Styles.Muted, "("+reason+")"))
}

// Summary prints a summary line with counts
func (p *Printer) Summary(files, failed, relationships int) {
	fmt.Fprintf(p.w, "\n%s %s  %s %s  %s %s\n",
		p.render(Styles.Bold, fmt.Sprintf("%d", files)), p.render(Styles.Muted, "files"),
		p.render(Styles.Error, fmt.Sprintf("%d", failed)), p.render(Styles.Muted, "failed"),
		p.render(Styles.Success, fmt.Sprintf("%d", relationships)), p.render(Styles.Muted, "relationships"),
	)
}
