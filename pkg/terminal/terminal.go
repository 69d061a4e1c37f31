package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cosiner/argv"
	"github.com/go-delve/liner"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/unloop/unloop/pkg/config"
	"github.com/unloop/unloop/pkg/logflags"
	"github.com/unloop/unloop/pkg/proc"
)

const (
	historyFile                 string = ".unloop_history"
	terminalHighlightEscapeCode string = "\033[%2dm"
	terminalResetEscapeCode     string = "\033[0m"
)

const (
	namePrompt     = "Enter process name: "
	strategyPrompt = "Choose option: 1 - instruction skip, 2 - unwind: "
)

const (
	ansiRed    = 31
	ansiGreen  = 32
	ansiYellow = 33
	ansiBlue   = 34
)

// Term is the interactive front end: it asks for the process to attach
// to, shows the stopped thread and asks which strategy to apply.
type Term struct {
	conf   *config.Config
	line   *liner.State
	stdout io.Writer
	colors bool
	log    logflags.Logger
}

// New returns a new Term. The names function is called every time the
// user asks for completion of a process name, it may be nil.
func New(conf *config.Config, names func() []string) *Term {
	if conf == nil {
		conf = &config.Config{}
	}

	var w io.Writer
	dumb := strings.ToLower(os.Getenv("TERM")) == "dumb"
	if dumb {
		w = os.Stdout
	} else {
		w = colorable.NewColorableStdout()
	}

	t := &Term{
		conf:   conf,
		line:   liner.NewLiner(),
		stdout: w,
		colors: conf.ColorEnabled() && !dumb && isatty.IsTerminal(os.Stdout.Fd()),
		log:    logflags.TerminalLogger(),
	}
	t.line.SetCtrlCAborts(true)
	if names != nil {
		t.line.SetCompleter(completer(names))
	}
	t.loadHistory()
	return t
}

// Close saves the prompt history and returns the terminal to its previous
// mode.
func (t *Term) Close() {
	t.saveHistory()
	t.line.Close()
}

func (t *Term) loadHistory() {
	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		t.log.Warnf("unable to load history file: %v", err)
		return
	}
	f, err := os.Open(fullHistoryFile)
	if err != nil {
		f, err = os.Create(fullHistoryFile)
		if err != nil {
			t.log.Warnf("unable to open history file: %v, history will not be saved", err)
			return
		}
	}
	t.line.ReadHistory(f)
	f.Close()
}

func (t *Term) saveHistory() {
	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		t.log.Warnf("error saving history file: %v", err)
		return
	}
	f, err := os.OpenFile(fullHistoryFile, os.O_RDWR|os.O_TRUNC, 0666)
	if err != nil {
		return
	}
	defer f.Close()
	if _, err := t.line.WriteHistory(f); err != nil {
		t.log.Warnf("readline history error: %v", err)
	}
}

// PromptProcessName asks for the name of the process to attach to.
// Returns io.EOF if the input was closed and liner.ErrPromptAborted if
// the user pressed Ctrl-C.
func (t *Term) PromptProcessName() (string, error) {
	for {
		l, err := t.line.Prompt(namePrompt)
		if err != nil {
			return "", err
		}
		name, err := parseProcessName(l)
		if err != nil {
			t.Errorf("%v", err)
			continue
		}
		t.line.AppendHistory(l)
		return name, nil
	}
}

// ChooseStrategy prints the stopped thread and asks which strategy to
// apply. Anything other than a valid choice leaves the target unchanged.
func (t *Term) ChooseStrategy(insp proc.Inspection) proc.Strategy {
	fmt.Fprint(t.stdout, formatInspection(insp, t.conf.ShowOpaqueRegisters, t.colors))

	l, err := t.line.Prompt(strategyPrompt)
	if err != nil {
		if !errors.Is(err, io.EOF) && !errors.Is(err, liner.ErrPromptAborted) {
			t.Errorf("%v", err)
		}
		fmt.Fprintln(t.stdout, "No choice made, no changes made")
		return proc.StrategyNone
	}
	s := proc.ParseStrategy(l)
	if s == proc.StrategyNone {
		fmt.Fprintln(t.stdout, "Unrecognized choice, no changes made")
	}
	return s
}

// Errorf prints an error message to standard error.
func (t *Term) Errorf(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, highlight(fmt.Sprintf(format, args...), ansiRed, t.colors))
}

func parseProcessName(line string) (string, error) {
	v, err := argv.Argv(line,
		func(s string) (string, error) {
			return "", fmt.Errorf("Backtick not supported in '%s'", s)
		},
		nil)
	if err != nil {
		return "", err
	}
	if len(v) != 1 || len(v[0]) != 1 || v[0][0] == "" {
		return "", fmt.Errorf("expected exactly one process name, got '%s'", strings.TrimSpace(line))
	}
	return v[0][0], nil
}

func highlight(s string, color int, enabled bool) string {
	if !enabled {
		return s
	}
	return fmt.Sprintf(terminalHighlightEscapeCode, color) + s + terminalResetEscapeCode
}
