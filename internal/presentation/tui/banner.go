package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the rewind banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"  _ __ _____      _(_)_ __   __| |", "#818cf8"},
		{" | '__/ _ \\ \\ /\\ / / | '_ \\ / _` |", "#a78bfa"},
		{" | | |  __/\\ V  V /| | | | | (_| |", "#c084fc"},
		{" |_|  \\___| \\_/\\_/ |_|_| |_|\\__,_|", "#e879f9"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String(" time-travel debugger "+version).Faint())
	fmt.Fprintln(w)
}
