package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janus-lang/janus/pkg/types"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultConfig())
	require.NoError(t, err)
	return e
}

// seedShapes registers a sealed Shape hierarchy with area overloads.
func seedShapes(t *testing.T, e *Engine) (circle, square, float types.TypeID) {
	t.Helper()
	shape, err := e.Registry.Register("Shape", types.KindSealedTable, nil)
	require.NoError(t, err)
	circle, err = e.Registry.Register("Circle", types.KindPrimitive, []types.TypeID{shape})
	require.NoError(t, err)
	square, err = e.Registry.Register("Square", types.KindPrimitive, []types.TypeID{shape})
	require.NoError(t, err)
	float, err = e.Registry.Register("Float", types.KindPrimitive, nil)
	require.NoError(t, err)

	for _, p := range []types.TypeID{circle, square} {
		_, err := e.Analyzer.AddImplementation(FunctionID{Name: "area", Module: "geo"},
			[]types.TypeID{p}, float, []string{"pure"},
			&SourceLocation{Filename: "geo.janus", Line: 1, Column: 1})
		require.NoError(t, err)
	}
	return circle, square, float
}

func TestEngineResolveDynamic(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	circle, _, _ := seedShapes(t, e)

	res, err := e.ResolveDispatch(ctx, "main.janus:5:1", "area", []types.TypeID{circle})
	require.NoError(t, err)
	require.Equal(t, ResolutionUnique, res.Kind)
	assert.Equal(t, []types.TypeID{circle}, res.Impl.Params)

	snap := e.Profiler.Snapshot()
	assert.Equal(t, uint64(0), snap.StaticCount)
	assert.Equal(t, uint64(1), snap.DynamicCount)
}

func TestEngineResolveStatic(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	circle, square, _ := seedShapes(t, e)

	require.NoError(t, e.Analyzer.SealGroup("area", 1))

	for _, arg := range []types.TypeID{circle, square} {
		res, err := e.ResolveDispatch(ctx, "", "area", []types.TypeID{arg})
		require.NoError(t, err)
		require.Equal(t, ResolutionUnique, res.Kind)
		assert.Equal(t, []types.TypeID{arg}, res.Impl.Params)
	}

	snap := e.Profiler.Snapshot()
	assert.Equal(t, uint64(2), snap.StaticCount)
	assert.Equal(t, uint64(0), snap.DynamicCount)
	assert.Equal(t, 1.0, snap.StaticRatio)
}

func TestEngineResolveErrors(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	_, _, float := seedShapes(t, e)

	t.Run("no such function", func(t *testing.T) {
		res, err := e.ResolveDispatch(ctx, "", "evaporate", []types.TypeID{float})
		assert.Equal(t, ResolutionNoMatch, res.Kind)

		var noMatch *NoApplicableImplementationError
		require.ErrorAs(t, err, &noMatch)
		assert.Equal(t, "evaporate", noMatch.Name)
		assert.Equal(t, []string{"Float"}, noMatch.ArgNames)
	})

	t.Run("no applicable overload", func(t *testing.T) {
		_, err := e.ResolveDispatch(ctx, "", "area", []types.TypeID{float})
		var noMatch *NoApplicableImplementationError
		require.ErrorAs(t, err, &noMatch)
	})

	t.Run("ambiguous", func(t *testing.T) {
		base, err := e.Registry.Register("Base", types.KindOpenTable, nil)
		require.NoError(t, err)
		l, err := e.Registry.Register("L", types.KindOpenTable, []types.TypeID{base})
		require.NoError(t, err)
		r, err := e.Registry.Register("R", types.KindOpenTable, []types.TypeID{base})
		require.NoError(t, err)
		both, err := e.Registry.Register("Both", types.KindPrimitive, []types.TypeID{l, r})
		require.NoError(t, err)

		for _, p := range []types.TypeID{l, r} {
			_, err := e.Analyzer.AddImplementation(FunctionID{Name: "pick", Module: "main"},
				[]types.TypeID{p}, base, nil, &SourceLocation{Filename: "m.janus", Line: 1, Column: 1})
			require.NoError(t, err)
		}

		res, err := e.ResolveDispatch(ctx, "", "pick", []types.TypeID{both})
		require.Equal(t, ResolutionAmbiguous, res.Kind)
		assert.Len(t, res.Tied, 2)

		var ambiguous *AmbiguousDispatchError
		require.ErrorAs(t, err, &ambiguous)
		assert.Equal(t, res.Tied, ambiguous.Tied)
	})
}

func TestEngineMemo(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	circle, square, float := seedShapes(t, e)

	first, err := e.ResolveDispatch(ctx, "s", "area", []types.TypeID{circle})
	require.NoError(t, err)
	second, err := e.ResolveDispatch(ctx, "s", "area", []types.TypeID{circle})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	snap := e.Profiler.Snapshot()
	require.Len(t, snap.Sites, 1)
	assert.InDelta(t, 0.5, snap.Sites[0].HitRatio, 1e-9, "second resolution must hit the memo")

	// Growing the group changes the memo key, so the stale entry is never
	// served.
	_, err = e.Analyzer.AddImplementation(FunctionID{Name: "area", Module: "geo2"},
		[]types.TypeID{square}, float, nil, &SourceLocation{Filename: "geo2.janus", Line: 1, Column: 1})
	require.NoError(t, err)

	res, err := e.ResolveDispatch(ctx, "s", "area", []types.TypeID{square})
	require.Equal(t, ResolutionAmbiguous, res.Kind)
	require.Error(t, err)
}

func TestEngineAnalyzeAllSignatures(t *testing.T) {
	e := newTestEngine(t)
	seedShapes(t, e)

	reports := e.AnalyzeAllSignatures()
	require.Len(t, reports, 1)
	assert.Equal(t, GroupKey{Name: "area", Arity: 1}, reports[0].Group)
	assert.False(t, reports[0].HasErrors())
}

func TestEngineBadStrategyConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TableStrategy = "quantum"
	_, err := NewEngine(cfg)
	assert.Error(t, err)
}
