package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xab-mack/contractscope/internal/model"
)

// Text writes a human-readable report: per contract its storage slots,
// constants, call trees, elements and diagnostics, then the run summary.
func Text(w io.Writer, result *model.Result, view View) error {
	var b strings.Builder
	for i, c := range result.Contracts {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s %s (%s)\n", c.Kind, c.Name, c.AbsolutePath)
		if view != ViewCalls {
			writeLayout(&b, c.Layout)
		}
		if view != ViewLayout {
			writeCalls(&b, c)
		}
		if view == ViewFull {
			writeElements(&b, c.Elements)
			writeDiagnostics(&b, c.Diagnostics)
		}
	}
	if view == ViewFull {
		writeSummary(&b, result)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeLayout(b *strings.Builder, l *model.Layout) {
	b.WriteString("  storage:\n")
	if l == nil {
		b.WriteString("    (none)\n")
		return
	}
	if l.Error != "" {
		fmt.Fprintf(b, "    error: %s\n", l.Error)
		return
	}
	if len(l.Slots) == 0 {
		b.WriteString("    (empty)\n")
	}
	for _, s := range l.Slots {
		writeSlot(b, s)
	}
	if len(l.Transient) > 0 {
		b.WriteString("  transient:\n")
		for _, s := range l.Transient {
			writeSlot(b, s)
		}
	}
	if len(l.Constants) > 0 {
		b.WriteString("  constants:\n")
		for _, k := range l.Constants {
			if k.Source != "" {
				fmt.Fprintf(b, "    %s\n", k.Source)
				continue
			}
			fmt.Fprintf(b, "    %s %s %s\n", k.Mutability, k.Type, k.Name)
		}
	}
}

func writeSlot(b *strings.Builder, s model.Slot) {
	fmt.Fprintf(b, "    %s", s.Key)
	if s.Span != "" {
		fmt.Fprintf(b, " (x%s)", s.Span)
	}
	fmt.Fprintf(b, " %d/32\n", s.Used())
	for _, m := range s.Members {
		name := m.Name
		for p := m.Parent; p != nil; p = p.Parent {
			name = p.Name + "." + name
		}
		fmt.Fprintf(b, "      [%d..%d) %s %s", m.Offset, m.Offset+m.Size, m.Type, name)
		if m.DataSlot != "" {
			fmt.Fprintf(b, " data=%s", m.DataSlot)
		}
		b.WriteString("\n")
	}
}

func writeCalls(b *strings.Builder, c *model.ContractReport) {
	fmt.Fprintf(b, "  call trees: %d roots, %d nodes\n", c.Stats.Roots, c.Stats.Nodes)
	for _, root := range c.CallTrees {
		fmt.Fprintf(b, "    %s\n", nodeLabel(root))
		writeChildren(b, root.Children, "    ")
	}
	if len(c.Stats.ByType) > 0 {
		types := make([]string, 0, len(c.Stats.ByType))
		for t := range c.Stats.ByType {
			types = append(types, string(t))
		}
		sort.Strings(types)
		parts := make([]string, 0, len(types))
		for _, t := range types {
			parts = append(parts, fmt.Sprintf("%s=%d", t, c.Stats.ByType[model.CallType(t)]))
		}
		fmt.Fprintf(b, "    by type: %s\n", strings.Join(parts, " "))
	}
}

func writeChildren(b *strings.Builder, nodes []*model.CallNode, indent string) {
	for i, n := range nodes {
		branch, next := "├─ ", "│  "
		if i == len(nodes)-1 {
			branch, next = "└─ ", "   "
		}
		fmt.Fprintf(b, "%s%s[%s] %s\n", indent, branch, n.CallType, nodeLabel(n))
		writeChildren(b, n.Children, indent+next)
	}
}

func nodeLabel(n *model.CallNode) string {
	r := n.Ref
	name := r.Name
	if r.Signature != "" {
		name = r.Signature
	}
	if r.Contract != "" && r.Kind != "builtin" {
		name = r.Contract + "." + name
	}
	var tags []string
	if r.Visibility != "" {
		tags = append(tags, r.Visibility)
	}
	if r.StateMutability != "" {
		tags = append(tags, r.StateMutability)
	}
	switch {
	case n.Unresolved:
		tags = append(tags, "unresolved")
	case n.Recursive:
		tags = append(tags, "recursive")
	case n.Truncated:
		tags = append(tags, "truncated")
	case n.Pruned:
		tags = append(tags, "pruned")
	}
	if len(tags) > 0 {
		name += " (" + strings.Join(tags, ", ") + ")"
	}
	if r.StartLine > 0 {
		name += fmt.Sprintf(" :%d", r.StartLine)
	}
	return name
}

func writeElements(b *strings.Builder, elems []model.Element) {
	if len(elems) == 0 {
		return
	}
	b.WriteString("  elements:\n")
	for _, e := range elems {
		text := e.Name
		if e.Signature != "" {
			text = e.Signature
		}
		fmt.Fprintf(b, "    %s %s\n", e.Kind, text)
	}
}

func writeDiagnostics(b *strings.Builder, diags []model.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	b.WriteString("  diagnostics:\n")
	for _, d := range diags {
		fmt.Fprintf(b, "    %s [%s] %s", d.Code, d.Severity, d.Message)
		if d.StartLine > 0 {
			fmt.Fprintf(b, " (%s:%d)", d.Path, d.StartLine)
		}
		b.WriteString("\n")
	}
}

func writeSummary(b *strings.Builder, result *model.Result) {
	s := result.Summary
	fmt.Fprintf(b, "\nsummary: %d succeeded, %d skipped, %d failed (elapsed %s)\n",
		len(s.Succeeded), len(s.Skipped), len(s.Failed), result.Elapsed)
	for _, f := range s.Failed {
		fmt.Fprintf(b, "  failed %s: %s\n", f.Name, f.Message)
	}
}
