package main

import (
	"context"
	"fmt"
	"io"

	"charm.land/lipgloss/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/janus-lang/janus/pkg/dispatch"
)

var (
	errorBadge   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	warningBadge = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	okBadge      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
)

func runCheck(ctx context.Context, cfg Config, declPath string, out io.Writer) error {
	engine, err := loadEngine(cfg, declPath)
	if err != nil {
		return err
	}

	reports := engine.AnalyzeAllSignatures()

	switch cfg.Format {
	case "yaml":
		if err := writeYAMLReports(out, engine, reports); err != nil {
			return err
		}
	case "text":
		fmt.Fprint(out, dispatch.GenerateDiagnosticReport(engine.Registry, reports))
		fmt.Fprintln(out, summaryLine(reports))
	default:
		return errors.Errorf("unknown format %q (want text or yaml)", cfg.Format)
	}

	for _, rep := range reports {
		if rep.HasErrors() {
			return errors.Errorf("dispatch analysis failed: %s has unresolvable conflicts", rep.Group)
		}
	}
	return nil
}

func summaryLine(reports []*dispatch.Report) string {
	errs, warns := 0, 0
	for _, rep := range reports {
		for _, c := range rep.Conflicts {
			switch c.Severity {
			case dispatch.SeverityError:
				errs++
			case dispatch.SeverityWarning:
				warns++
			}
		}
	}
	switch {
	case errs > 0:
		return errorBadge.Render(fmt.Sprintf("✗ %d error(s), %d warning(s)", errs, warns))
	case warns > 0:
		return warningBadge.Render(fmt.Sprintf("⚠ %d warning(s)", warns))
	default:
		return okBadge.Render("✓ no dispatch conflicts")
	}
}

// yamlConflict is the structured form of one conflict for --format yaml.
type yamlConflict struct {
	Kind        string   `yaml:"kind"`
	Severity    string   `yaml:"severity"`
	Candidates  []string `yaml:"candidates"`
	Example     string   `yaml:"example,omitempty"`
	Explanation string   `yaml:"explanation"`
	Suggestions []string `yaml:"suggestions,omitempty"`
}

type yamlReport struct {
	Group        string         `yaml:"group"`
	Conflicts    []yamlConflict `yaml:"conflicts,omitempty"`
	CoverageGaps []string       `yaml:"coverage_gaps,omitempty"`
	Hints        []string       `yaml:"hints,omitempty"`
	Probed       int            `yaml:"probed"`
	Truncated    bool           `yaml:"truncated,omitempty"`
}

func writeYAMLReports(out io.Writer, engine *dispatch.Engine, reports []*dispatch.Report) error {
	docs := make([]yamlReport, 0, len(reports))
	for _, rep := range reports {
		doc := yamlReport{
			Group:     rep.Group.String(),
			Probed:    rep.Probed,
			Truncated: rep.Truncated,
			Hints:     rep.Hints,
		}
		for _, c := range rep.Conflicts {
			yc := yamlConflict{
				Kind:        c.Kind.String(),
				Severity:    c.Severity.String(),
				Explanation: c.Explanation,
				Suggestions: c.Suggestions,
			}
			for _, impl := range c.Impls {
				yc.Candidates = append(yc.Candidates, fmt.Sprintf("%s at %s", impl.Signature(), impl.Loc))
			}
			yc.Example = renderTuple(engine, rep.Group.Name, c.Example)
			doc.Conflicts = append(doc.Conflicts, yc)
		}
		for _, gap := range rep.CoverageGaps {
			doc.CoverageGaps = append(doc.CoverageGaps, renderTuple(engine, rep.Group.Name, gap))
		}
		docs = append(docs, doc)
	}
	enc := yaml.NewEncoder(out)
	defer enc.Close()
	return enc.Encode(docs)
}
