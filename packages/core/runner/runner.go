package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/time/rate"

	"github.com/cmdspec/cmdspec/packages/command"
	"github.com/cmdspec/cmdspec/packages/containers"
	"github.com/cmdspec/cmdspec/packages/core/scope"
	"github.com/cmdspec/cmdspec/packages/core/tree"
	"github.com/cmdspec/cmdspec/packages/extractors"
	"github.com/cmdspec/cmdspec/packages/metrics"
	"github.com/cmdspec/cmdspec/packages/output"
	"github.com/cmdspec/cmdspec/packages/plugins"
	"github.com/cmdspec/cmdspec/packages/validators"
)

// AbortError stops the whole run when a test configured with the break error
// mode did not pass. The partial results gathered so far stay valid.
type AbortError struct {
	ID   string
	Path string
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("test %q failed and aborted the run (%s)", e.ID, e.Path)
}

// PrevError is raised when a test reuses the previous command result but no
// command ran before it in this branch.
type PrevError struct {
	ID   string
	Path string
}

func (e *PrevError) Error() string {
	return fmt.Sprintf("test %q references the previous command result, but no command was run yet (%s)", e.ID, e.Path)
}

// Options configure a Runner.
type Options struct {
	Console  *output.Console
	Recorder *metrics.Recorder

	// MaxRate limits test starts per second. Zero means unlimited.
	MaxRate float64
}

// Runner executes one built tree. It is single-use: state such as condition
// updates and hotplugged variables belongs to exactly one walk.
type Runner struct {
	console  *output.Console
	recorder *metrics.Recorder
	limiter  *rate.Limiter
}

func New(opts Options) *Runner {
	r := &Runner{
		console:  opts.Console,
		recorder: opts.Recorder,
	}
	if r.console == nil {
		r.console = output.NewConsole()
	}
	if r.recorder == nil {
		r.recorder = metrics.NewRecorder()
	}
	if opts.MaxRate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(opts.MaxRate), 1)
	}
	return r
}

// Run walks the tree. On an aborting failure the returned result still holds
// everything executed up to that point, alongside the error.
func (r *Runner) Run(ctx context.Context, root *tree.Tester) (*output.TesterResult, error) {
	r.recorder.Start()
	defer r.recorder.Stop()

	hot := root.Scope.Hotplug()
	return r.runTester(ctx, root, hot)
}

func (r *Runner) runTester(ctx context.Context, tester *tree.Tester, hot *scope.Hotplug) (*output.TesterResult, error) {
	result := &output.TesterResult{
		ID:    tester.ID,
		Title: tester.Title,
		File:  tester.Path,
	}

	if !tester.Gate.Check(tester.Conditions) {
		result.Skipped = true
		result.SkipReason = "conditions not satisfied"
		r.console.TesterSkipped(tester.Title, result.SkipReason)
		r.skipSubtree(tester, result)
		return result, nil
	}

	r.console.TesterStart(tester.Title)
	r.console.Push()
	defer r.console.Pop()

	var started []*containers.Container
	defer func() {
		for i := len(started) - 1; i >= 0; i-- {
			if err := started[i].Stop(context.Background()); err != nil {
				r.console.Warning("stopping container %q: %v", started[i].Name(), err)
			}
		}
	}()
	for _, container := range tester.Containers {
		if err := container.Start(ctx, hot); err != nil {
			return result, err
		}
		started = append(started, container)
	}

	var running []plugins.Plugin
	defer func() {
		for i := len(running) - 1; i >= 0; i-- {
			if err := running[i].Stop(); err != nil {
				r.console.Warning("stopping plugin %q: %v", running[i].Name(), err)
			}
		}
	}()
	for _, plugin := range tester.Plugins {
		running = append(running, plugin)
		if err := plugin.Run(hot); err != nil {
			return result, plugins.Wrap(err, plugin.Name(), tester.Path)
		}
	}

	total := len(tester.Tests)
	for i, test := range tester.Tests {
		testResult, err := r.runTest(ctx, tester, test, hot, i+1, total)
		result.Tests = append(result.Tests, testResult)
		if err != nil {
			return result, err
		}
	}

	for _, child := range tester.Children {
		childResult, err := r.runTester(ctx, child, hot.Fork())
		if childResult != nil {
			result.Children = append(result.Children, childResult)
		}
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return result, err
		}

		// A plugin failure below is subject to this tester's error mode:
		// break aborts the run, continue logs and moves to the next child.
		var runErr *plugins.RunError
		if errors.As(err, &runErr) && tester.ErrorMode != "break" {
			r.console.Error("%v", err)
			childResult.Skipped = true
			childResult.SkipReason = runErr.Error()
			continue
		}
		return result, err
	}

	// The tester's own on_success/on_error map reacts to the subtree as a
	// whole: any failed or errored test below counts as a failure.
	_, failed, _, errored := result.Counts()
	tester.Gate.Update(tester.Conditions, failed+errored > 0)

	return result, nil
}

// skipSubtree records every test below a gated-out tester as skipped, so the
// summary still accounts for them.
func (r *Runner) skipSubtree(tester *tree.Tester, result *output.TesterResult) {
	for i, test := range tester.Tests {
		r.recorder.RecordSkip()
		result.Tests = append(result.Tests, output.TestResult{
			ID:     test.ID,
			Title:  test.Title,
			Number: i + 1,
			File:   test.Path,
			Status: output.StatusSkipped,
		})
	}
	for _, child := range tester.Children {
		childResult := &output.TesterResult{
			ID:         child.ID,
			Title:      child.Title,
			File:       child.Path,
			Skipped:    true,
			SkipReason: result.SkipReason,
		}
		r.skipSubtree(child, childResult)
		result.Children = append(result.Children, childResult)
	}
}

func (r *Runner) runTest(ctx context.Context, tester *tree.Tester, test *tree.Test, hot *scope.Hotplug, number, total int) (output.TestResult, error) {
	testResult := output.TestResult{
		ID:     test.ID,
		Title:  test.Title,
		Number: number,
		File:   test.Path,
	}

	if !test.Gate.Check(tester.Conditions) {
		testResult.Status = output.StatusSkipped
		r.console.TestStart(number, total, test.Title)
		r.console.TestSkipped()
		r.recorder.RecordSkip()
		return testResult, nil
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return testResult, err
		}
	}

	r.console.TestStart(number, total, test.Title)

	result, err := r.execute(ctx, test, hot)
	if err != nil {
		if ctx.Err() != nil {
			return testResult, err
		}
		return r.finish(tester, test, testResult, nil, err)
	}
	testResult.Result = result
	testResult.Duration = result.Runtime

	err = r.extract(test, result, hot)
	if err == nil {
		err = r.validate(test, result, hot)
	}

	hot.SetPrev(result)

	if logErr := writeLogfile(test, result); logErr != nil {
		r.console.Warning("writing logfile for test %q: %v", test.ID, logErr)
	}

	return r.finish(tester, test, testResult, result, err)
}

// execute resolves the command against the live overlay and runs it. The
// reserved ${prev} token reuses the previous result instead of running
// anything.
func (r *Runner) execute(ctx context.Context, test *tree.Test, hot *scope.Hotplug) (*command.Result, error) {
	if len(test.Command) == 1 && test.Command[0] == "${prev}" {
		prev, ok := hot.Prev().(*command.Result)
		if !ok {
			return nil, &PrevError{ID: test.ID, Path: test.Path}
		}
		return prev, nil
	}

	argv, err := resolveArgv(test.Command, hot)
	if err != nil {
		return nil, err
	}

	return command.Run(ctx, argv, command.Options{
		Dir:     test.Dir(),
		Timeout: test.Timeout,
		Env:     test.Env,
		Shell:   test.Shell,
	})
}

// extract runs the extractors in order. A miss is handled per extractor
// policy; a break miss stops extracting and fails the test with the miss,
// skipping the validators.
func (r *Runner) extract(test *tree.Test, result *command.Result, hot *scope.Hotplug) error {
	for _, extractor := range test.Extractors {
		err := extractor.Extract(result, hot)
		if err == nil {
			continue
		}

		var miss *extractors.Failure
		if !errors.As(err, &miss) {
			return err
		}

		switch extractor.OnMiss() {
		case extractors.PolicyWarn:
			r.console.Warning("extractor %q: %v", extractor.Name(), miss)
		case extractors.PolicyBreak:
			return &validators.Failure{Message: miss.Message}
		}
	}
	return nil
}

func (r *Runner) validate(test *tree.Test, result *command.Result, hot *scope.Hotplug) error {
	for _, validator := range test.Validators {
		if err := validator.Run(result, hot); err != nil {
			return err
		}
	}
	return nil
}

// finish classifies the pipeline outcome, records it and applies the error
// mode and condition updates.
func (r *Runner) finish(tester *tree.Tester, test *tree.Test, testResult output.TestResult, result *command.Result, err error) (output.TestResult, error) {
	switch {
	case err == nil:
		testResult.Status = output.StatusPassed
		r.console.TestPassed()
		r.recorder.RecordPass(testResult.Duration)

	default:
		var failure *validators.Failure
		if errors.As(err, &failure) {
			testResult.Status = output.StatusFailed
			testResult.Message = failure.Message
			r.console.TestFailed(failure.Message, failureOutput(test, result))
			r.recorder.RecordFail(testResult.Duration)
		} else {
			testResult.Status = output.StatusError
			testResult.Message = err.Error()
			r.console.TestError(err)
			r.recorder.RecordError()
		}
	}

	failed := testResult.Status != output.StatusPassed
	test.Gate.Update(tester.Conditions, failed)

	if failed && test.ErrorMode == "break" {
		return testResult, &AbortError{ID: test.ID, Path: test.Path}
	}
	return testResult, nil
}

// failureOutput picks the command streams shown next to a failure message,
// honoring the test's output selector.
func failureOutput(test *tree.Test, result *command.Result) string {
	if result == nil {
		return ""
	}
	switch test.Output {
	case "stdout":
		return result.Stdout
	case "stderr":
		return result.Stderr
	default:
		return result.Output()
	}
}

func writeLogfile(test *tree.Test, result *command.Result) error {
	if test.Logfile == "" || result == nil {
		return nil
	}
	path := test.Logfile
	if !filepath.IsAbs(path) {
		path = filepath.Join(test.Dir(), path)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = fmt.Fprintf(file, "[%s] exit status %d\n%s\n", test.ID, result.Status, result.Output())
	return err
}

// resolveArgv applies the live overlay to the remaining command tokens and
// flattens list expansions into argv strings.
func resolveArgv(tokens []any, hot *scope.Hotplug) ([]string, error) {
	var argv []string
	for _, token := range tokens {
		value, err := hot.Resolve(token)
		if err != nil {
			return nil, err
		}
		if list, ok := value.([]any); ok {
			for _, item := range list {
				argv = append(argv, stringify(item))
			}
			continue
		}
		argv = append(argv, stringify(value))
	}
	return argv, nil
}

func stringify(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}
