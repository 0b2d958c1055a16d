package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/coherence/pkg/domain"
)

// Overlay contains the page snapshot shown on top of the state diagram.
type Overlay struct {
	Pages []domain.PageInfo
}

type edge struct {
	from, to domain.Tag
	label    string
}

// protocolEdges are the MSI transitions a page can take on one node.
var protocolEdges = []edge{
	{domain.TagInvalid, domain.TagShared, "local fault"},
	{domain.TagInvalid, domain.TagShared, "serve request"},
	{domain.TagInvalid, domain.TagModified, "local write"},
	{domain.TagShared, domain.TagModified, "local write"},
	{domain.TagModified, domain.TagShared, "serve request"},
	{domain.TagShared, domain.TagInvalid, "peer invalidate"},
	{domain.TagModified, domain.TagInvalid, "peer invalidate"},
}

// GenerateMermaid produces a Mermaid flowchart of the page state machine.
// Each state is drawn as:
// - Modified: [[Subroutine]]
// - Shared: ([Stadium])
// - Invalid: [Rectangle]
// With an overlay, each state is labelled with how many pages hold it and states
// holding no page are dimmed.
func GenerateMermaid(overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	counts := map[domain.Tag]int{}
	if overlay != nil {
		for _, p := range overlay.Pages {
			counts[p.Tag]++
		}
	}

	for _, tag := range []domain.Tag{domain.TagInvalid, domain.TagShared, domain.TagModified} {
		opener, closer := "[", "]"
		switch tag {
		case domain.TagModified:
			opener, closer = "[[", "]]"
		case domain.TagShared:
			opener, closer = "([", "])"
		}

		label := tag.String()
		if overlay != nil {
			label = fmt.Sprintf("%s <br/> %d pages", tag, counts[tag])
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", nodeID(tag), opener, label, closer))
	}

	for _, e := range protocolEdges {
		arrow := fmt.Sprintf("-- \"%s\" -->", e.label)
		if strings.HasPrefix(e.label, "peer") || strings.HasPrefix(e.label, "serve") {
			// Remote-driven transitions are dotted.
			arrow = fmt.Sprintf("-. \"%s\" .->", e.label)
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", nodeID(e.from), arrow, nodeID(e.to)))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef empty fill:#eeeeee,stroke:#9e9e9e,color:#757575;\n")
		sb.WriteString("    classDef held fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		for _, tag := range []domain.Tag{domain.TagInvalid, domain.TagShared, domain.TagModified} {
			class := "held"
			if counts[tag] == 0 {
				class = "empty"
			}
			sb.WriteString(fmt.Sprintf("    class %s %s;\n", nodeID(tag), class))
		}
	}

	return sb.String()
}

func nodeID(t domain.Tag) string {
	return strings.ToLower(t.String())
}
