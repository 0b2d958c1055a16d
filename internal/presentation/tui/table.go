package tui

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/aretw0/coherence/pkg/domain"
	"github.com/muesli/termenv"
)

var tagColors = map[domain.Tag]string{
	domain.TagModified: "#f472b6",
	domain.TagShared:   "#38bdf8",
	domain.TagInvalid:  "#9ca3af",
}

// WritePages prints pages as an aligned table. Tags are coloured when w is a terminal
// that supports colour.
func WritePages(w io.Writer, pages []domain.PageInfo) error {
	out := termenv.NewOutput(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "ADDR\tTAG\tSIZE")
	for _, p := range pages {
		tag := out.String(p.Tag.String()).Foreground(out.Color(tagColors[p.Tag]))
		fmt.Fprintf(tw, "%#x\t%s\t%d\n", p.Addr, tag, p.Size)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintln(w, Summary(pages))
	return err
}

// PagesMarkdown formats pages as a markdown table, for rendering with glamour.
func PagesMarkdown(title string, pages []domain.PageInfo) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", title)
	sb.WriteString("| Address | Tag | Size |\n")
	sb.WriteString("|---|---|---:|\n")
	for _, p := range pages {
		tag := p.Tag.String()
		if p.Tag == domain.TagModified {
			tag = "**" + tag + "**"
		}
		fmt.Fprintf(&sb, "| `%#x` | %s | %d |\n", p.Addr, tag, p.Size)
	}
	fmt.Fprintf(&sb, "\n%s\n", Summary(pages))
	return sb.String()
}

// Summary counts pages per tag.
func Summary(pages []domain.PageInfo) string {
	counts := map[domain.Tag]int{}
	for _, p := range pages {
		counts[p.Tag]++
	}
	return fmt.Sprintf("%d pages: %d Modified, %d Shared, %d Invalid",
		len(pages), counts[domain.TagModified], counts[domain.TagShared], counts[domain.TagInvalid])
}
