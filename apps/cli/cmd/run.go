package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/cmdspec/cmdspec/packages/core/config"
	"github.com/cmdspec/cmdspec/packages/core/conds"
	"github.com/cmdspec/cmdspec/packages/core/runner"
	"github.com/cmdspec/cmdspec/packages/core/scope"
	"github.com/cmdspec/cmdspec/packages/core/tree"
	"github.com/cmdspec/cmdspec/packages/extractors"
	"github.com/cmdspec/cmdspec/packages/history"
	"github.com/cmdspec/cmdspec/packages/metrics"
	"github.com/cmdspec/cmdspec/packages/output"
	"github.com/cmdspec/cmdspec/packages/plugins"
	"github.com/cmdspec/cmdspec/packages/validators"
)

var runCmd = &cobra.Command{
	Use:   "run <file|directory>",
	Short: "Run command tests from cmdspec documents",
	Long: `Run command tests defined in .yml or .yaml documents.

Examples:
  cmdspec run suite.yml
  cmdspec run ./tests/ --groups "net,**"
  cmdspec run suite.yml --ids login-1 --ids login-2
  cmdspec run suite.yml --var token=s3cret -v
  cmdspec run suite.yml --output junit --output-file report.xml
  cmdspec run suite.yml --watch`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

// WatchDebounceDelay is the debounce delay for file watch events
const WatchDebounceDelay = 300 * time.Millisecond

var (
	idsFlag           []string
	groupsFlag        []string
	excludeIDsFlag    []string
	excludeGroupsFlag []string
	varFlags          []string

	verboseFlag    int
	quietFlag      bool
	noColorFlag    bool
	logfileFlag    string
	outputFlag     string
	outputFileFlag string

	watchFlag   bool
	maxRateFlag float64
	historyFlag string
)

func init() {
	// Selection flags
	runCmd.Flags().StringArrayVar(&idsFlag, "ids", nil, "Run only testers and tests with these ids")
	runCmd.Flags().StringArrayVarP(&groupsFlag, "groups", "g", nil, "Run only tests in these groups (supports * and **)")
	runCmd.Flags().StringArrayVar(&excludeIDsFlag, "exclude-ids", nil, "Skip testers and tests with these ids")
	runCmd.Flags().StringArrayVar(&excludeGroupsFlag, "exclude-groups", nil, "Skip tests in these groups")
	runCmd.Flags().StringArrayVar(&varFlags, "var", nil, "Set a runtime variable (key=value, repeatable)")

	// Output flags
	runCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v shows command output on failure)")
	runCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", getEnvBool("CMDSPEC_QUIET", false), "Only print pass/fail, no failure details (env: CMDSPEC_QUIET)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("CMDSPEC_NO_COLOR", false), "Disable colored output (env: CMDSPEC_NO_COLOR)")
	runCmd.Flags().StringVar(&logfileFlag, "logfile", getEnvString("CMDSPEC_LOGFILE", ""), "Tee console output into this file (env: CMDSPEC_LOGFILE)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("CMDSPEC_OUTPUT", "console"), "Output format: console, json, junit (env: CMDSPEC_OUTPUT)")
	_ = runCmd.RegisterFlagCompletionFunc("output", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"console", "json", "junit"}, cobra.ShellCompDirectiveNoFileComp
	})
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("CMDSPEC_OUTPUT_FILE", ""), "Write the report to a file instead of stdout (env: CMDSPEC_OUTPUT_FILE)")

	// Execution flags
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch documents for changes and re-run tests")
	runCmd.Flags().Float64Var(&maxRateFlag, "max-rate", 0, "Limit test starts per second (0 = unlimited)")
	runCmd.Flags().StringVar(&historyFlag, "history", getEnvString("CMDSPEC_HISTORY", ""), "Append the run summary to this SQLite database (env: CMDSPEC_HISTORY)")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func runCommand(cmd *cobra.Command, args []string) error {
	runtimeVars, err := parseVarFlags(varFlags)
	if err != nil {
		return err
	}

	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .yml or .yaml documents found")
	}

	consoleOpts := []output.ConsoleOption{
		output.WithVerbosity(verbosityLevel()),
		output.WithNoColor(noColorFlag),
	}
	if logfileFlag != "" {
		logfile, err := os.Create(logfileFlag)
		if err != nil {
			return fmt.Errorf("cannot create logfile: %w", err)
		}
		defer logfile.Close()
		consoleOpts = append(consoleOpts, output.WithLogfile(logfile))
	}
	console := output.NewConsole(consoleOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := runOnce(ctx, console, files, runtimeVars)

	if !watchFlag {
		if code != ExitSuccess {
			os.Exit(code)
		}
		return nil
	}

	return watchAndRerun(ctx, cmd, console, files, runtimeVars)
}

// runOnce builds and executes every document, renders the report and returns
// the process exit code.
func runOnce(ctx context.Context, console *output.Console, files []string, runtimeVars map[string]any) int {
	console.Header(version)

	recorder := metrics.NewRecorder()
	r := runner.New(runner.Options{
		Console:  console,
		Recorder: recorder,
		MaxRate:  maxRateFlag,
	})

	startedAt := time.Now()
	code := ExitSuccess
	var roots []*output.TesterResult

	for _, file := range files {
		root, err := buildFile(console, file, runtimeVars)
		if err != nil {
			console.Error("%v", err)
			return ExitConfigError
		}
		if root == nil {
			continue
		}

		result, err := r.Run(ctx, root)
		if result != nil {
			roots = append(roots, result)
		}
		if err != nil {
			if ctx.Err() != nil {
				console.Error("run interrupted: %v", ctx.Err())
				return ExitRunError
			}
			console.Error("%v", err)
			code = exitCodeFor(err)
			break
		}
	}

	summary := recorder.Summarize()
	if summary.Failed > 0 || summary.Errors > 0 {
		if code == ExitSuccess {
			code = ExitTestFailure
		}
	}

	runID, err := appendHistory(ctx, startedAt, summary)
	if err != nil {
		console.Warning("recording run history: %v", err)
	}

	if err := renderReport(console, runID, roots, summary); err != nil {
		console.Error("writing report: %v", err)
		if code == ExitSuccess {
			code = ExitRunError
		}
	}

	return code
}

// buildFile loads one document into a runnable tree, applying the selection
// flags. A nil tree means the selection matched nothing.
func buildFile(console *output.Console, file string, runtimeVars map[string]any) (*tree.Tester, error) {
	doc, warnings, err := config.Load(file)
	if err != nil {
		return nil, err
	}
	for _, warning := range warnings {
		console.Warning("%s", warning)
	}

	root, buildWarnings, err := tree.Build(doc, tree.Options{
		RuntimeVars: runtimeVars,
		Version:     version,
	})
	if err != nil {
		return nil, err
	}
	for _, warning := range buildWarnings {
		console.Warning("%s", warning)
	}

	selection := tree.NewSelection(idsFlag, groupsFlag, excludeIDsFlag, excludeGroupsFlag)
	if !selection.Apply(root) {
		console.Info("Nothing selected in %s", file)
		return nil, nil
	}
	return root, nil
}

func renderReport(console *output.Console, runID string, roots []*output.TesterResult, summary metrics.Summary) error {
	var w io.Writer = os.Stdout
	if outputFileFlag != "" {
		file, err := os.Create(outputFileFlag)
		if err != nil {
			return err
		}
		defer file.Close()
		w = file
	}

	switch strings.ToLower(outputFlag) {
	case "json":
		return output.WriteJSON(w, runID, roots, summary)
	case "junit":
		return output.WriteJUnit(w, roots, summary)
	default:
		console.Summary(roots, summary)
		return nil
	}
}

func appendHistory(ctx context.Context, startedAt time.Time, summary metrics.Summary) (string, error) {
	if historyFlag == "" {
		return "", nil
	}
	store, err := history.Open(historyFlag)
	if err != nil {
		return "", err
	}
	defer store.Close()
	return store.Append(ctx, startedAt, summary)
}

func watchAndRerun(ctx context.Context, cmd *cobra.Command, console *output.Console, files []string, runtimeVars map[string]any) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watchedDirs := make(map[string]bool)
	for _, file := range files {
		dir := filepath.Dir(file)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				console.Warning("failed to watch %s: %v", dir, err)
			}
			watchedDirs[dir] = true
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	var debounceTimer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) && isDocument(event.Name) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "\nFile changed: %s\nRe-running tests...\n\n", event.Name)
					runOnce(ctx, console, files, runtimeVars)
					fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			console.Warning("watcher error: %v", err)
		}
	}
}

func verbosityLevel() int {
	switch {
	case quietFlag:
		return output.VerbosityQuiet
	case verboseFlag > 0:
		return output.VerbosityFull
	default:
		return output.VerbosityNormal
	}
}

func parseVarFlags(flags []string) (map[string]any, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	vars := make(map[string]any, len(flags))
	for _, flag := range flags {
		key, value, ok := strings.Cut(flag, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --var %q, expected key=value", flag)
		}
		vars[key] = value
	}
	return vars, nil
}

// exitCodeFor maps a run error to the process exit code.
func exitCodeFor(err error) int {
	var (
		abortErr     *runner.AbortError
		pluginErr    *plugins.RunError
		parseErr     *config.ParseError
		keyErr       *config.KeyError
		condErr      *conds.FormatError
		validatorErr *validators.Error
		extractorErr *extractors.Error
		scopeErr     *scope.RuntimeVariableError
	)
	switch {
	case errors.As(err, &abortErr):
		return ExitTestFailure
	case errors.As(err, &parseErr), errors.As(err, &keyErr), errors.As(err, &condErr),
		errors.As(err, &validatorErr), errors.As(err, &extractorErr), errors.As(err, &scopeErr):
		return ExitConfigError
	case errors.As(err, &pluginErr):
		return ExitRunError
	default:
		return ExitRunError
	}
}

func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			err := filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && isDocument(path) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else {
			files = append(files, arg)
		}
	}

	return files, nil
}

func isDocument(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yml" || ext == ".yaml"
}
