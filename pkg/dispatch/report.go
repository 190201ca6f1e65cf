package dispatch

import (
	"fmt"
	"strings"

	"github.com/janus-lang/janus/pkg/types"
)

// GenerateDiagnosticReport renders ambiguity reports as plain text suitable
// for emission as compiler diagnostics. Output is deterministic for a given
// report list: conflicts in discovery order, groups in the checker's sorted
// sweep order.
func GenerateDiagnosticReport(reg *types.Registry, reports []*Report) string {
	var b strings.Builder

	groups := len(reports)
	errs, warns := 0, 0
	for _, rep := range reports {
		for _, c := range rep.Conflicts {
			switch c.Severity {
			case SeverityError:
				errs++
			case SeverityWarning:
				warns++
			}
		}
	}
	fmt.Fprintf(&b, "dispatch analysis: %d %s audited: %d %s, %d %s\n",
		groups, plural(groups, "group", "groups"),
		errs, plural(errs, "error", "errors"),
		warns, plural(warns, "warning", "warnings"))

	for _, rep := range reports {
		for _, conflict := range rep.Conflicts {
			b.WriteString("\n")
			writeConflict(&b, reg, rep.Group, conflict)
		}
	}

	for _, rep := range reports {
		if len(rep.CoverageGaps) == 0 {
			continue
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "coverage: %s leaves %d probed %s unmatched\n",
			rep.Group, len(rep.CoverageGaps), plural(len(rep.CoverageGaps), "pattern", "patterns"))
		for _, gap := range rep.CoverageGaps {
			fmt.Fprintf(&b, "  no implementation accepts %s(%s)\n",
				rep.Group.Name, strings.Join(typeNames(reg, gap), ", "))
		}
	}

	for _, rep := range reports {
		for _, hint := range rep.Hints {
			fmt.Fprintf(&b, "\nhint: %s\n", hint)
		}
	}

	for _, rep := range reports {
		if rep.Truncated {
			fmt.Fprintf(&b, "\nnote: sweep of %s stopped at the %d-probe cap; results are best-effort\n",
				rep.Group, rep.Probed)
		}
	}

	return b.String()
}

func writeConflict(b *strings.Builder, reg *types.Registry, group GroupKey, conflict Conflict) {
	fmt.Fprintf(b, "%s[%s] in %s\n", conflict.Severity, conflict.Kind, group)
	for _, impl := range conflict.Impls {
		fmt.Fprintf(b, "  candidate: %s\n", impl.Signature())
		fmt.Fprintf(b, "    --> %s\n", impl.Loc)
	}
	if len(conflict.Example) > 0 {
		fmt.Fprintf(b, "  example call: %s(%s)\n",
			group.Name, strings.Join(typeNames(reg, conflict.Example), ", "))
	}
	fmt.Fprintf(b, "  %s\n", conflict.Explanation)
	for _, s := range conflict.Suggestions {
		fmt.Fprintf(b, "  help: %s\n", s)
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
