package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kr/pretty"
	"github.com/pkg/errors"

	"github.com/janus-lang/janus/pkg/dispatch"
	"github.com/janus-lang/janus/pkg/types"
)

func runResolve(ctx context.Context, cfg Config, declPath, name string, argNames []string, out io.Writer) error {
	engine, err := loadEngine(cfg, declPath)
	if err != nil {
		return err
	}

	args := make([]types.TypeID, 0, len(argNames))
	for _, argName := range argNames {
		id, ok := engine.Registry.LookupName(argName)
		if !ok {
			return errors.Errorf("unknown type %q", argName)
		}
		args = append(args, id)
	}

	res, resErr := engine.ResolveDispatch(ctx, "janusc", name, args)
	if cfg.Debug {
		fmt.Fprintf(out, "%# v\n", pretty.Formatter(res))
	}

	switch res.Kind {
	case dispatch.ResolutionUnique:
		fmt.Fprintf(out, "%s resolves %s to %s", okBadge.Render("unique:"),
			renderTuple(engine, name, args), res.Impl.Signature())
		if res.Impl.Loc != nil {
			fmt.Fprintf(out, " at %s", res.Impl.Loc)
		}
		fmt.Fprintln(out)
		return nil
	case dispatch.ResolutionAmbiguous:
		fmt.Fprintf(out, "%s %s has %d incomparable candidates:\n",
			errorBadge.Render("ambiguous:"), renderTuple(engine, name, args), len(res.Tied))
		for _, impl := range res.Tied {
			fmt.Fprintf(out, "  %s at %s\n", impl.Signature(), impl.Loc)
		}
	case dispatch.ResolutionNoMatch:
		fmt.Fprintf(out, "%s nothing accepts %s\n",
			errorBadge.Render("no match:"), renderTuple(engine, name, args))
	}
	return resErr
}

// runBench builds the group's table and times all lookup strategies over the
// checker's probe corpus for that group.
func runBench(ctx context.Context, cfg Config, declPath, name, arityArg string, out io.Writer) error {
	engine, err := loadEngine(cfg, declPath)
	if err != nil {
		return err
	}
	arity, err := strconv.Atoi(arityArg)
	if err != nil || arity < 0 {
		return errors.Errorf("invalid arity %q", arityArg)
	}

	group, ok := engine.Analyzer.Group(name, arity)
	if !ok {
		return errors.Errorf("no signature group %s/%d", name, arity)
	}

	table := engine.Dispatcher.TableFor(group)
	corpus := benchCorpus(engine, group)
	result := table.Benchmark(corpus)

	fmt.Fprintf(out, "benchmark %s: %d implementations, %d call patterns\n",
		group.Key, len(group.Impls), result.Corpus)
	for _, strategy := range dispatch.Strategies {
		marker := " "
		if strategy == result.Fastest {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %-11s %v/call\n", marker, strategy.Name(), result.PerCall[strategy])
	}

	stats := table.MemoryStats()
	fmt.Fprintf(out, "memory: %d B entries, %d B tree, %d B compressed (%d cache lines)\n",
		stats.EntryBytes, stats.TreeBytes, stats.CompressedBytes, stats.CacheLines)
	return nil
}

// benchCorpus enumerates every combination of declared parameter types and
// their subtypes, capped at the configured probe bound.
func benchCorpus(engine *dispatch.Engine, group *dispatch.SignatureGroup) [][]types.TypeID {
	reg := engine.Registry
	positions := make([][]types.TypeID, group.Key.Arity)
	for pos := range positions {
		seen := make(map[types.TypeID]bool)
		for _, impl := range group.Impls {
			p := impl.Params[pos]
			if !seen[p] {
				seen[p] = true
				positions[pos] = append(positions[pos], p)
			}
			for _, sub := range reg.SubtypesOf(p) {
				if !seen[sub] {
					seen[sub] = true
					positions[pos] = append(positions[pos], sub)
				}
			}
		}
	}

	var corpus [][]types.TypeID
	tuple := make([]types.TypeID, group.Key.Arity)
	var walk func(pos int)
	walk = func(pos int) {
		if len(corpus) >= engine.Config().MaxProbes {
			return
		}
		if pos == len(tuple) {
			corpus = append(corpus, append([]types.TypeID(nil), tuple...))
			return
		}
		for _, id := range positions[pos] {
			tuple[pos] = id
			walk(pos + 1)
		}
	}
	walk(0)
	return corpus
}

func renderTuple(engine *dispatch.Engine, name string, args []types.TypeID) string {
	names := make([]string, len(args))
	for i, arg := range args {
		names[i] = engine.Registry.Name(arg)
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(names, ", "))
}
