package plan

import "strings"

// Explain renders the physical tree depth-first, one node per line with
// two-space indentation per level, delegating to each node's own
// String() method.
func Explain(p PhysicalPlan) string {
	var b strings.Builder
	explain(&b, p, 0)
	return strings.TrimRight(b.String(), "\n")
}

func explain(b *strings.Builder, p PhysicalPlan, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(p.String())
	b.WriteString("\n")
	for _, c := range p.Children() {
		explain(b, c, depth+1)
	}
}
