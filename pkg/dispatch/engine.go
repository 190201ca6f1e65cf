package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/janus-lang/janus/pkg/types"
)

// memoSize bounds the per-session resolution memo.
const memoSize = 4096

type memoEntry struct {
	res  Resolution
	path DispatchPath
}

// Engine owns the dispatch state of one compilation session: the type
// registry, the signature analyzer, the checker, the module dispatcher, and
// the profiler. It is explicit owned state handed to collaborators, never a
// process-wide singleton.
type Engine struct {
	Registry   *types.Registry
	Analyzer   *Analyzer
	Resolver   *Resolver
	Checker    *Checker
	Dispatcher *Dispatcher
	Profiler   *Profiler

	cfg  *Config
	memo *lru.Cache[string, memoEntry]
}

// NewEngine builds a session from configuration. Profiler options (such as
// WithMeter) are passed through.
func NewEngine(cfg *Config, profOpts ...ProfilerOption) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	strategy, err := cfg.Strategy()
	if err != nil {
		return nil, err
	}
	memo, err := lru.New[string, memoEntry](memoSize)
	if err != nil {
		panic(err)
	}

	reg := types.NewRegistry()
	analyzer := NewAnalyzer(reg)
	return &Engine{
		Registry:   reg,
		Analyzer:   analyzer,
		Resolver:   NewResolver(reg),
		Checker:    NewChecker(analyzer, cfg.MaxProbes),
		Dispatcher: NewDispatcher(analyzer, strategy),
		Profiler:   NewProfiler(cfg.HotThreshold, profOpts...),
		cfg:        cfg,
		memo:       memo,
	}, nil
}

// Config returns the session configuration.
func (e *Engine) Config() *Config { return e.cfg }

// ResolveDispatch resolves a call for the code generator: a sealed group is
// answered statically from its compiled table, anything else runs the
// specificity analyzer. Repeated call patterns hit an LRU memo. The returned
// error is the driver-facing diagnostic for ambiguous or unmatched calls;
// the resolution itself always carries the full outcome.
func (e *Engine) ResolveDispatch(ctx context.Context, site, name string, args []types.TypeID) (Resolution, error) {
	if site == "" {
		site = fmt.Sprintf("%s/%d", name, len(args))
	}
	start := time.Now()

	group, ok := e.Analyzer.Group(name, len(args))

	// Groups are append-only, so a memoized outcome only goes stale when
	// its group grows; the implementation count in the key covers that.
	implCount := 0
	if ok {
		implCount = len(group.Impls)
	}
	key := memoKey(name, implCount, args)
	if entry, hit := e.memo.Get(key); hit {
		e.Profiler.RecordDispatch(ctx, site, entry.path, entry.res.Kind, time.Since(start), true)
		return entry.res, e.resolutionError(name, args, entry.res)
	}

	var res Resolution
	path := PathDynamic
	switch {
	case !ok:
		res = NoMatch()
	case group.Sealed:
		path = PathStatic
		res = e.Dispatcher.TableFor(group).Lookup(args)
	default:
		res = e.Resolver.FindMostSpecific(group, args)
	}

	e.memo.Add(key, memoEntry{res: res, path: path})
	e.Profiler.RecordDispatch(ctx, site, path, res.Kind, time.Since(start), false)

	slog.Debug("resolved dispatch",
		"site", site,
		"call", fmt.Sprintf("%s(%s)", name, strings.Join(typeNames(e.Registry, args), ", ")),
		"path", path.String(),
		"outcome", res.Kind.String())
	return res, e.resolutionError(name, args, res)
}

func (e *Engine) resolutionError(name string, args []types.TypeID, res Resolution) error {
	switch res.Kind {
	case ResolutionAmbiguous:
		return errors.WithStack(&AmbiguousDispatchError{
			Name:     name,
			Arity:    len(args),
			ArgNames: typeNames(e.Registry, args),
			Tied:     res.Tied,
		})
	case ResolutionNoMatch:
		return errors.WithStack(&NoApplicableImplementationError{
			Name:     name,
			Arity:    len(args),
			ArgNames: typeNames(e.Registry, args),
		})
	default:
		return nil
	}
}

// AnalyzeAllSignatures runs the static ambiguity sweep over every group.
func (e *Engine) AnalyzeAllSignatures() []*Report {
	return e.Checker.CheckAll()
}

func memoKey(name string, implCount int, args []types.TypeID) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s@%d", name, implCount)
	for _, arg := range args {
		fmt.Fprintf(&b, "/%d", uint32(arg))
	}
	return b.String()
}
