// Command weavecheck runs the bundled example campaigns and reports which
// ones deadlock, which produce more than one outcome, and which fail
// outright.
package main

import (
	"flag"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/jwaldmann/dejafu/conc"
	"github.com/jwaldmann/dejafu/memmodel"
	"github.com/jwaldmann/dejafu/runner"
	"github.com/jwaldmann/dejafu/scenarios"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), `Usage: %s [flags] [name-regexp]

weavecheck runs the bundled example campaigns (two-deadlock,
dining-philosophers, forgotten-unlock, racy-read, dekker-reorder,
masked-kill-is-safe, local-deadlock) and reports a summary of each.

With a name-regexp argument, only campaigns whose name matches it run.

`, os.Args[0])
		flag.PrintDefaults()
	}
	bound := flag.Int("bound", 2, "preemption bound")
	maxRuns := flag.Int("max-runs", 100000, "exit a campaign after this many executions")
	flag.Parse()

	var filter *regexp.Regexp
	if flag.NArg() > 0 {
		var err error
		filter, err = regexp.Compile(flag.Arg(0))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	reporter := NewStdoutReporter()
	reporter.StartStatus()
	exit := 0
	for _, s := range scenarios.All {
		if filter != nil && !filter.MatchString(s.Name) {
			continue
		}
		reporter.Status("running %s...", s.Name)
		if !runScenario(reporter, s, *bound, *maxRuns) {
			exit = 1
		}
	}
	reporter.StopStatus()
	os.Exit(exit)
}

func runScenario(reporter Reporter, s scenarios.Scenario, bound, maxRuns int) bool {
	cfg := runner.Config{MemType: s.MemType, Bound: bound, MaxSteps: 100000, MaxRuns: maxRuns}

	var seen []memmodel.Outcome
	observe := func(vals ...interface{}) {
		seen = append(seen, memmodel.Outcome(vals))
	}

	res := runner.RunTest(s.New(observe), cfg)

	if res.Aborted != nil {
		fmt.Fprintf(reporter, "%s: ABORTED: %s\n", s.Name, res.Aborted)
		return false
	}

	deadlocks := 0
	fails := 0
	for _, e := range res.Executions {
		if e.Truncated {
			fails++
			continue
		}
		if e.Failure == nil {
			continue
		}
		switch e.Failure.Kind {
		case conc.FailureDeadlock, conc.FailureStmDeadlock:
			deadlocks++
		default:
			fails++
		}
	}

	set := memmodel.NewOutcomeSet()
	for _, o := range seen {
		set.Add(o)
	}

	summary := []string{fmt.Sprintf("%d executions", len(res.Executions))}
	if deadlocks > 0 {
		summary = append(summary, fmt.Sprintf("%d deadlocked", deadlocks))
	}
	if fails > 0 {
		summary = append(summary, fmt.Sprintf("%d failed", fails))
	}
	if set.Len() > 0 {
		summary = append(summary, fmt.Sprintf("%d distinct outcomes", set.Len()))
	}
	fmt.Fprintf(reporter, "%s: %s\n", s.Name, strings.Join(summary, ", "))
	return fails == 0
}
