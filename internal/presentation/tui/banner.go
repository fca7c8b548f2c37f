package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{"  ____                       _ ", "#34d399"},
	{" |  _ \\ __ _ _ __ ___   __ _| |", "#2dd4bf"},
	{" | |_) / _` | '_ ` _ \\ / _` | |", "#22d3ee"},
	{" |  _ < (_| | | | | | | (_| | |", "#38bdf8"},
	{" |_| \\_\\__,_|_| |_| |_|\\__,_|_|", "#60a5fa"},
}

// PrintBanner writes the ramal banner, colored when the terminal supports it.
func PrintBanner(w io.Writer) {
	p := termenv.EnvColorProfile()
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}

// Notice styles a runner notice (handoff, completion) in a muted color.
func Notice(text string) string {
	p := termenv.EnvColorProfile()
	return termenv.String(text).Foreground(p.Color("#a1a1aa")).Italic().String()
}
