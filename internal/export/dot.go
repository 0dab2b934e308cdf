package export

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"sanigraph/internal/tech"
)

// WriteDOT renders the system as a GraphViz digraph. Nodes are
// technologies labeled "name\ngroup" and shaped by kind (source, sink,
// or processing step); edges are the system's Connections labeled by
// product. Stage order is preserved with rank groups so a left-to-right
// layout reads in construction order.
//
// Edges are emitted in sorted order, not discovery order, so two
// structurally equal systems render to identical bytes.
func WriteDOT(w io.Writer, sys *tech.System) error {
	if sys == nil {
		return fmt.Errorf("write dot: nil system")
	}

	var b strings.Builder
	b.WriteString("digraph system {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [fontname=\"Helvetica\"];\n")

	b.WriteString("\n")
	for _, stage := range sys.Stages {
		for _, t := range stage {
			fmt.Fprintf(&b, "  %s [label=%s shape=%s];\n", dotQuote(t.Name), dotLabel(t), dotShape(t))
		}
	}

	b.WriteString("\n")
	for _, stage := range sys.Stages {
		if len(stage) == 0 {
			continue
		}
		names := make([]string, len(stage))
		for i, t := range stage {
			names[i] = dotQuote(t.Name)
		}
		fmt.Fprintf(&b, "  { rank=same; %s; }\n", strings.Join(names, "; "))
	}

	if len(sys.Connections) > 0 {
		b.WriteString("\n")
		for _, c := range sortedConnections(sys.Connections) {
			fmt.Fprintf(&b, "  %s -> %s [label=%s];\n",
				dotQuote(c.Upstream), dotQuote(c.Downstream), dotQuote(c.Product.Name))
		}
	}

	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func dotShape(t tech.Technology) string {
	switch {
	case t.IsSource():
		return "invhouse"
	case t.IsSink():
		return "house"
	default:
		return "box"
	}
}

// dotLabel builds the two-line node label. The \n is a DOT escape
// interpreted by GraphViz, not a Go newline.
func dotLabel(t tech.Technology) string {
	return `"` + dotEscape(t.Name) + `\n` + dotEscape(t.Group) + `"`
}

func dotQuote(s string) string {
	return `"` + dotEscape(s) + `"`
}

func dotEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

func sortedConnections(conns []tech.Connection) []tech.Connection {
	out := make([]tech.Connection, len(conns))
	copy(out, conns)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Upstream != out[j].Upstream {
			return out[i].Upstream < out[j].Upstream
		}
		if out[i].Downstream != out[j].Downstream {
			return out[i].Downstream < out[j].Downstream
		}
		return out[i].Product.Name < out[j].Product.Name
	})
	return out
}
