package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gotest.tools/v3/golden"

	"github.com/janus-lang/janus/pkg/types"
)

func TestGenerateDiagnosticReport(t *testing.T) {
	reg := types.NewRegistry()
	mustRegister := func(name string, kind types.Kind, supers ...types.TypeID) types.TypeID {
		id, err := reg.Register(name, kind, supers)
		require.NoError(t, err)
		return id
	}
	base := mustRegister("Base", types.KindOpenTable)
	left := mustRegister("Left", types.KindOpenTable, base)
	right := mustRegister("Right", types.KindOpenTable, base)
	mustRegister("Derived", types.KindPrimitive, left, right)
	shape := mustRegister("Shape", types.KindSealedTable)
	circle := mustRegister("Circle", types.KindPrimitive, shape)
	square := mustRegister("Square", types.KindPrimitive, shape)

	a := NewAnalyzer(reg)
	add := func(module, name, file string, line int, ret types.TypeID, params ...types.TypeID) {
		_, err := a.AddImplementation(FunctionID{Name: name, Module: module},
			params, ret, nil, &SourceLocation{Filename: file, Line: line, Column: 1})
		require.NoError(t, err)
	}
	add("main", "draw", "demo.janus", 3, base, left)
	add("main", "draw", "demo.janus", 7, base, right)
	add("main", "hash", "demo.janus", 11, base, left)
	add("main", "hash", "demo.janus", 15, base, left)
	add("geo", "overlap", "geo.janus", 4, shape, circle, circle)
	add("geo", "overlap", "geo.janus", 8, shape, square, square)

	checker := NewChecker(a, 0)
	out := GenerateDiagnosticReport(reg, checker.CheckAll())
	golden.Assert(t, out, "report.golden")
}

func TestGenerateDiagnosticReportEmpty(t *testing.T) {
	reg := types.NewRegistry()
	out := GenerateDiagnosticReport(reg, nil)
	require.Equal(t, "dispatch analysis: 0 groups audited: 0 errors, 0 warnings\n", out)
}
