package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

// PrintBanner writes the coherence banner followed by the version to w.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	// Cool-to-warm gradient, one step per line.
	lines := []struct {
		text, color string
	}{
		{"   ___ ___  _  _ ___ ___ ___ _  _  ___ ___ ", "#38bdf8"},
		{"  / __/ _ \\| || | __| _ \\ __| \\| |/ __| __|", "#818cf8"},
		{" | (_| (_) | __ | _||   / _|| .` | (__| _| ", "#c084fc"},
		{"  \\___\\___/|_||_|___|_|_\\___|_|\\_|\\___|___|", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintf(w, "  %s\n\n", out.String("v"+strings.TrimSpace(version)).Faint())
}
