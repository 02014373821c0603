package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Verbosity levels for failure reporting.
//
//	0: just print 'failed'
//	1: also show the failure message
//	2: also show the command output
const (
	VerbosityQuiet = iota
	VerbosityNormal
	VerbosityFull
)

// Console is the live progress sink the runner writes to while the tree
// walks. Indentation follows the tester nesting.
type Console struct {
	writer    io.Writer
	verbosity int
	noColor   bool
	indent    int

	green  func(a ...any) string
	red    func(a ...any) string
	yellow func(a ...any) string
	blue   func(a ...any) string
	bold   func(a ...any) string
}

type ConsoleOption func(*Console)

// NewConsole creates a console sink writing to stdout unless configured
// otherwise.
func NewConsole(opts ...ConsoleOption) *Console {
	c := &Console{
		writer:    os.Stdout,
		verbosity: VerbosityNormal,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.noColor {
		color.NoColor = true
	}
	c.green = color.New(color.FgGreen).SprintFunc()
	c.red = color.New(color.FgRed).SprintFunc()
	c.yellow = color.New(color.FgYellow).SprintFunc()
	c.blue = color.New(color.FgBlue).SprintFunc()
	c.bold = color.New(color.Bold).SprintFunc()
	return c
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(c *Console) {
		c.writer = w
	}
}

// WithLogfile tees everything the console prints into w as well.
func WithLogfile(w io.Writer) ConsoleOption {
	return func(c *Console) {
		c.writer = io.MultiWriter(c.writer, w)
	}
}

func WithVerbosity(level int) ConsoleOption {
	return func(c *Console) {
		c.verbosity = level
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(c *Console) {
		c.noColor = nc
	}
}

// Push increases the indentation level for a nested tester.
func (c *Console) Push() {
	c.indent++
}

// Pop decreases the indentation level when a tester finishes.
func (c *Console) Pop() {
	if c.indent > 0 {
		c.indent--
	}
}

func (c *Console) prefix() string {
	return "[+]" + strings.Repeat("    ", c.indent) + " "
}

// Header prints the engine banner at the start of a run.
func (c *Console) Header(version string) {
	fmt.Fprintf(c.writer, "%s %s - starting tests\n", c.bold("cmdspec"), c.yellow("v"+version))
}

// TesterStart announces a tester before its tests run.
func (c *Console) TesterStart(title string) {
	fmt.Fprintf(c.writer, "%sStarting test: %s\n", c.prefix(), c.blue(title))
}

// TesterSkipped reports a tester whose condition gate or selection filter
// skipped the whole subtree.
func (c *Console) TesterSkipped(title, reason string) {
	fmt.Fprintf(c.writer, "%sSkipping test: %s (%s)\n", c.prefix(), c.blue(title), c.yellow(reason))
}

// TestStart prints the numbered test line, leaving the outcome open.
func (c *Console) TestStart(number, total int, title string) {
	fmt.Fprintf(c.writer, "%s%s %s... ", c.prefix(), c.blue(fmt.Sprintf("%d/%d", number, total)), title)
}

// TestPassed completes a test line with success.
func (c *Console) TestPassed() {
	fmt.Fprintf(c.writer, "%s\n", c.green("success"))
}

// TestSkipped completes a test line for a gated-off test.
func (c *Console) TestSkipped() {
	fmt.Fprintf(c.writer, "%s\n", c.yellow("skipped"))
}

// TestFailed completes a test line with failure details according to the
// verbosity level. The output argument is the command's merged output.
func (c *Console) TestFailed(message, output string) {
	fmt.Fprintf(c.writer, "%s\n", c.red("failed"))
	if c.verbosity >= VerbosityNormal && message != "" {
		fmt.Fprintf(c.writer, "%s  %s %s\n", c.prefix(), c.red("-"), message)
	}
	if c.verbosity >= VerbosityFull && output != "" {
		for _, line := range strings.Split(strings.TrimRight(output, "\n"), "\n") {
			fmt.Fprintf(c.writer, "%s    %s\n", c.prefix(), line)
		}
	}
}

// TestError completes a test line for an unexpected collaborator failure.
// It is always rendered, regardless of verbosity, so a broken validator is
// never mistaken for a designed negative result.
func (c *Console) TestError(err error) {
	fmt.Fprintf(c.writer, "%s\n", c.red("error"))
	fmt.Fprintf(c.writer, "%s  %s %v\n", c.prefix(), c.red("Unexpected error:"), err)
}

// Warning prints a prefixed warning line.
func (c *Console) Warning(format string, args ...any) {
	fmt.Fprintf(c.writer, "%s%s %s\n", c.prefix(), c.yellow("Warning:"), fmt.Sprintf(format, args...))
}

// Error prints a prefixed error line.
func (c *Console) Error(format string, args ...any) {
	fmt.Fprintf(c.writer, "%s%s %s\n", c.prefix(), c.red("Error:"), fmt.Sprintf(format, args...))
}

// Info prints a plain prefixed line.
func (c *Console) Info(format string, args ...any) {
	fmt.Fprintf(c.writer, "%s%s\n", c.prefix(), fmt.Sprintf(format, args...))
}
