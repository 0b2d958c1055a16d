package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aretw0/coherence/internal/presentation/graph"
	"github.com/aretw0/coherence/internal/presentation/tui"
	"github.com/aretw0/coherence/pkg/domain"
)

// Output formats of the pages command.
const (
	FormatTable    = "table"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatMermaid  = "mermaid"
)

// FetchPages reads the page table from a node's admin API. tag filters by tag when set.
func FetchPages(ctx context.Context, client *http.Client, adminURL, tag string) ([]domain.PageInfo, error) {
	url := strings.TrimRight(adminURL, "/") + "/pages"
	if !strings.Contains(url, "://") {
		url = "http://" + url
	}
	if tag != "" {
		url += "?tag=" + tag
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach admin API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("admin API returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var pages []domain.PageInfo
	if err := json.NewDecoder(resp.Body).Decode(&pages); err != nil {
		return nil, fmt.Errorf("failed to decode pages: %w", err)
	}
	return pages, nil
}

// PrintPages writes pages to w in format. rich enables glamour rendering of the
// markdown format and is meant for terminals.
func PrintPages(w io.Writer, pages []domain.PageInfo, format, title string, rich bool) error {
	switch format {
	case FormatTable, "":
		return tui.WritePages(w, pages)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(pages)
	case FormatMermaid:
		_, err := io.WriteString(w, graph.GenerateMermaid(&graph.Overlay{Pages: pages}))
		return err
	case FormatMarkdown:
		md := tui.PagesMarkdown(title, pages)
		if rich {
			render, err := tui.NewRenderer(0)
			if err != nil {
				return err
			}
			if md, err = render(md); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, md)
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
