// Command meandra plans, runs, and inspects declarative workflows from the
// command line. It ships a single builtin node kind, exec, which runs a
// shell command per node; applications embedding the library register their
// own kinds in-process.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/eleven-am/meandra"
)

const (
	exitSuccess    = 0
	exitRunFailure = 1
	exitSpecError  = 2
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run is the testable entrypoint: it takes the argument slice without
// argv[0] and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return exitSpecError
	}
	switch args[0] {
	case "plan":
		return cmdPlan(ctx, args[1:], stdout, stderr)
	case "run":
		return cmdRun(ctx, args[1:], stdout, stderr)
	case "status":
		return cmdStatus(ctx, args[1:], stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return exitSuccess
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return exitSpecError
	}
}

func usage(w io.Writer) {
	fmt.Fprint(w, `usage: meandra <command> [flags]

commands:
  plan    resolve a workflow file into execution levels without running it
  run     execute a workflow file (--resume continues a checkpointed run)
  status  summarize the checkpoint records of past runs

common flags:
  --file PATH        workflow file to load (default workflow.yaml)
  --data-dir DIR     directory for checkpoints and catalog files (default data)
  --verbose          log node-level detail to stderr

run flags:
  --run-id ID        run identifier (default: from the file, else generated)
  --resume           resume the run named by --run-id from its checkpoints
  --workers N        maximum nodes executing at once (default: CPU count)
  --fail-fast        stop dispatching new nodes after the first failure
  --node-timeout D   per-node execution timeout, e.g. 30s (default: none)

exit codes: 0 run succeeded, 1 run failed, 2 invalid workflow or invocation.

exec nodes receive MEANDRA_RUN_ID, MEANDRA_NODE_ID, and one
MEANDRA_INPUT_<KEY> variable per resolved input, JSON-encoded.
`)
}

type options struct {
	file        string
	dataDir     string
	runID       string
	resume      bool
	workers     int
	failFast    bool
	nodeTimeout time.Duration
	verbose     bool
}

func newFlagSet(name string, opts *options, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.file, "file", "workflow.yaml", "workflow file to load")
	fs.StringVar(&opts.dataDir, "data-dir", "data", "directory for checkpoints and catalog files")
	fs.BoolVar(&opts.verbose, "verbose", false, "log node-level detail to stderr")
	return fs
}

func (o *options) logger(stderr io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
}

// buildRunner assembles a Runner for one invocation. The workflow's catalog
// section, when present, contributes entries on top of the CLI flags.
// memoryCheckpoints keeps planning-only commands from touching the store on
// disk.
func (o *options) buildRunner(wf *meandra.Workflow, stderr io.Writer, memoryCheckpoints bool) (*meandra.Runner, error) {
	logger := o.logger(stderr)
	cfg := meandra.NewConfig().WithDataDir(o.dataDir).WithLogger(logger)
	if o.workers > 0 {
		cfg.WithWorkers(o.workers)
	}
	if o.failFast {
		cfg.WithFailFast(true)
	}
	if o.nodeTimeout > 0 {
		cfg.WithNodeTimeout(o.nodeTimeout)
	}
	if memoryCheckpoints {
		cfg.WithInMemoryCheckpoints()
	}
	if wf != nil {
		if wf.Catalog.BaseDir != "" {
			cfg.Catalog.BaseDir = wf.Catalog.BaseDir
		}
		if wf.Catalog.DefaultFormat != "" {
			cfg.Catalog.DefaultFormat = wf.Catalog.DefaultFormat
		}
		cfg.WithEntries(wf.Catalog.Entries...)
	}

	runner, err := meandra.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := runner.RegisterNode(newExecNode(logger)); err != nil {
		runner.Close()
		return nil, err
	}
	return runner, nil
}

// runContext merges the file's run section with invocation flags. The
// command line wins.
func (o *options) runContext(wf *meandra.Workflow) *meandra.RunContext {
	rc := wf.Run
	if rc == nil {
		rc = meandra.NewRunContext("")
	}
	if o.runID != "" {
		rc.RunID = o.runID
	}
	return rc
}

func exitFor(err error) int {
	if meandra.IsSpecError(err) {
		return exitSpecError
	}
	return exitRunFailure
}

func cmdPlan(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := newFlagSet("plan", &opts, stderr)
	if err := fs.Parse(args); err != nil {
		return exitSpecError
	}

	wf, err := meandra.LoadWorkflowFile(opts.file)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitSpecError
	}
	runner, err := opts.buildRunner(wf, stderr, true)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitSpecError
	}
	defer runner.Close()

	plan, err := runner.Plan(wf.Spec, opts.runContext(wf))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFor(err)
	}
	renderPlan(stdout, plan)
	return exitSuccess
}

func renderPlan(w io.Writer, plan *meandra.ExecutionPlan) {
	fmt.Fprintf(w, "workflow %s: %d nodes in %d levels\n", plan.SpecID, plan.NodeCount(), len(plan.Levels))
	for i, level := range plan.Levels {
		fmt.Fprintf(w, "  level %d: %s\n", i, strings.Join(level, ", "))
	}
	if len(plan.Excluded) > 0 {
		fmt.Fprintf(w, "  excluded by condition: %s\n", strings.Join(plan.Excluded, ", "))
	}
}

func cmdRun(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := newFlagSet("run", &opts, stderr)
	fs.StringVar(&opts.runID, "run-id", "", "run identifier (default: from the file, else generated)")
	fs.BoolVar(&opts.resume, "resume", false, "resume the run named by --run-id from its checkpoints")
	fs.IntVar(&opts.workers, "workers", 0, "maximum nodes executing at once (default: CPU count)")
	fs.BoolVar(&opts.failFast, "fail-fast", false, "stop dispatching new nodes after the first failure")
	fs.DurationVar(&opts.nodeTimeout, "node-timeout", 0, "per-node execution timeout (default: none)")
	if err := fs.Parse(args); err != nil {
		return exitSpecError
	}

	wf, err := meandra.LoadWorkflowFile(opts.file)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitSpecError
	}
	rc := opts.runContext(wf)
	if opts.resume && rc.RunID == "" {
		fmt.Fprintln(stderr, "resume requires a run id: pass --run-id or set run.id in the workflow file")
		return exitSpecError
	}

	runner, err := opts.buildRunner(wf, stderr, false)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitSpecError
	}
	defer runner.Close()

	var result *meandra.RunResult
	if opts.resume {
		result, err = runner.Resume(ctx, wf.Spec, rc)
	} else {
		result, err = runner.Run(ctx, wf.Spec, rc)
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFor(err)
	}

	renderResult(stdout, result)
	if !result.Succeeded() {
		return exitRunFailure
	}
	return exitSuccess
}

func renderResult(w io.Writer, result *meandra.RunResult) {
	outcome := "succeeded"
	switch {
	case result.Canceled:
		outcome = "canceled"
	case !result.Succeeded():
		outcome = "failed"
	}
	fmt.Fprintf(w, "run %s (workflow %s) %s in %s\n",
		result.RunID, result.SpecID, outcome, result.Duration.Round(time.Millisecond))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, ns := range result.Nodes {
		detail := ""
		switch {
		case ns.Restored:
			detail = "restored"
		case ns.State == meandra.NodeStateSkipped:
			detail = "(" + string(ns.SkipReason) + ")"
		case ns.Error != "":
			detail = ns.Error
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n",
			ns.NodeID, ns.State, ns.Duration.Round(time.Millisecond), detail)
	}
	tw.Flush()
}

func cmdStatus(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := newFlagSet("status", &opts, stderr)
	fs.StringVar(&opts.runID, "run-id", "", "run to summarize (default: list all recorded runs)")
	if err := fs.Parse(args); err != nil {
		return exitSpecError
	}

	runner, err := opts.buildRunner(nil, stderr, false)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitSpecError
	}
	defer runner.Close()

	if opts.runID == "" {
		runs, err := runner.Runs(ctx)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return exitRunFailure
		}
		if len(runs) == 0 {
			fmt.Fprintln(stdout, "no recorded runs")
			return exitSuccess
		}
		sort.Strings(runs)
		for _, id := range runs {
			fmt.Fprintln(stdout, id)
		}
		return exitSuccess
	}

	log, err := runner.History(ctx, opts.runID)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitRunFailure
	}
	if len(log.Records) == 0 && len(log.Dropped) == 0 {
		fmt.Fprintf(stderr, "no records for run %q\n", opts.runID)
		return exitRunFailure
	}
	renderHistory(stdout, opts.runID, log)
	return exitSuccess
}

func renderHistory(w io.Writer, runID string, log meandra.CheckpointLog) {
	fmt.Fprintf(w, "run %s: %d records", runID, len(log.Records))
	if len(log.Dropped) > 0 {
		fmt.Fprintf(w, ", %d dropped", len(log.Dropped))
	}
	fmt.Fprintln(w)

	last := log.LastStates()
	nodeIDs := make([]string, 0, len(last))
	for id := range last {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Strings(nodeIDs)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, id := range nodeIDs {
		rec := last[id]
		detail := ""
		if rec.Error != "" {
			detail = rec.Error
		}
		fmt.Fprintf(tw, "  %s\t%s\tseq %d\t%s\t%s\n",
			id, rec.State, rec.Seq, rec.Timestamp.Format(time.RFC3339), detail)
	}
	tw.Flush()

	for _, d := range log.Dropped {
		fmt.Fprintf(w, "  dropped seq %d: %s\n", d.Seq, d.Reason)
	}
}
