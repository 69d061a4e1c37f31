package cmds

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-delve/liner"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/unloop/unloop/pkg/config"
	"github.com/unloop/unloop/pkg/logflags"
	"github.com/unloop/unloop/pkg/proc"
	"github.com/unloop/unloop/pkg/proc/native"
	"github.com/unloop/unloop/pkg/proclist"
	"github.com/unloop/unloop/pkg/terminal"
	"github.com/unloop/unloop/pkg/version"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string
	// match is the policy used when several processes match a name.
	match string

	// strategy is the strategy applied by the attach subcommand.
	strategy strategyFlag

	// verbose prints build details in the version subcommand.
	verbose bool

	// rootCommand is the root of the command tree.
	rootCommand *cobra.Command

	conf *config.Config

	// procs finds processes by name and reports whether they are traced.
	procs = &proclist.Lister{}
)

// Exit statuses.
const (
	exitOK    = 0
	exitError = 1
	// exitFatal means the target could not be resumed and may still be
	// stopped.
	exitFatal = 2
)

const unloopCommandLongDesc = `unloop stops a running process, shows the registers of its only thread
and rewrites them to break it out of the code it is stuck in.

Two strategies are available:

	instruction skip	advances PC past the current instruction
	frame unwind		returns from the current function using the saved frame record

Without a subcommand unloop asks for the name of the process to stop and
then for the strategy to apply. The target is always resumed before unloop
exits.`

// backend is the capability surface used by sessions, plus a way to
// release it.
type backend interface {
	proc.Backend
	Close() error
}

var newBackend = func() (backend, error) {
	b, err := native.New()
	if err != nil {
		return nil, err
	}
	return b, nil
}

// New returns an initialized command tree.
func New() *cobra.Command {
	// Config setup and load.
	conf = config.LoadConfig()

	// Main unloop root command.
	rootCommand = &cobra.Command{
		Use:          "unloop",
		Short:        "unloop breaks a single threaded process out of a loop.",
		Long:         unloopCommandLongDesc,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		Run:          interactiveCmd,
	}

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", `Comma separated list of components that should produce debug output: session, native, proclist, terminal.`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor.")
	rootCommand.PersistentFlags().StringVarP(&match, "match", "", "", `Policy used when several processes match the name: "first" or "unique" (overrides match-policy in the config file).`)

	// 'attach' subcommand.
	attachCommand := &cobra.Command{
		Use:   "attach pid",
		Short: "Stop a process by pid and apply a strategy without prompting.",
		Long: `Stops the process with the given pid, applies the strategy selected by
--strategy to its only thread and resumes it.

With --strategy none the registers are printed and left unchanged.`,
		Args: cobra.ExactArgs(1),
		Run:  attachCmd,
	}
	attachCommand.Flags().VarP(&strategy, "strategy", "s", "Strategy to apply: skip, unwind or none.")
	rootCommand.AddCommand(attachCommand)

	// 'version' subcommand.
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("unloop\n%s\n", version.UnloopVersion)
			if verbose {
				fmt.Printf("Build Details: %s\n", version.BuildInfo())
			}
		},
	}
	versionCommand.Flags().BoolVarP(&verbose, "verbose", "v", false, "print verbose version info")
	rootCommand.AddCommand(versionCommand)

	return rootCommand
}

func interactiveCmd(cmd *cobra.Command, args []string) {
	status := func() int {
		if err := logflags.Setup(log, logOutput, logDest); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return exitError
		}
		defer logflags.Close()

		policy, err := matchPolicy(conf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return exitError
		}

		term := terminal.New(conf, func() []string {
			names, err := procs.Names()
			if err != nil {
				logflags.ProcListLogger().Debugf("listing processes: %v", err)
			}
			return names
		})
		defer term.Close()

		name, err := term.PromptProcessName()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				return exitOK
			}
			term.Errorf("%v", err)
			return exitError
		}

		matches, err := procs.FindByName(name)
		if err != nil {
			term.Errorf("%v", err)
			return exitError
		}
		p, err := proclist.Select(name, matches, policy)
		if err != nil {
			term.Errorf("%v", err)
			return exitError
		}
		fmt.Printf("Process %s found, pid %d\n", p.Name, p.Pid)

		return runSession(p.Pid, term.ChooseStrategy, os.Stdout)
	}()
	os.Exit(status)
}

func attachCmd(cmd *cobra.Command, args []string) {
	pid, err := strconv.Atoi(args[0])
	if err != nil || pid <= 0 {
		fmt.Fprintf(os.Stderr, "Invalid pid: %s\n", args[0])
		os.Exit(exitError)
	}
	status := func() int {
		if err := logflags.Setup(log, logOutput, logDest); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return exitError
		}
		defer logflags.Close()
		return runSession(pid, strategy.chooser(os.Stdout), os.Stdout)
	}()
	os.Exit(status)
}

// runSession runs a single session against pid and reports its outcome
// on out. Returns the process exit status.
func runSession(pid int, choose proc.Chooser, out io.Writer) int {
	if tracer, err := procs.TracerPid(pid); err != nil {
		logflags.ProcListLogger().Debugf("could not read tracer of %d: %v", pid, err)
	} else if tracer != 0 {
		fmt.Fprintf(os.Stderr, "Process %d is already traced by process %d\n", pid, tracer)
		return exitError
	}

	b, err := newBackend()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitError
	}
	defer b.Close()

	s := proc.NewSession(b, proc.ARM64Arch())
	s.Disassemble = conf == nil || conf.DisassembleEnabled()

	res, err := s.Run(pid, choose)
	if err == nil {
		fmt.Fprint(out, terminal.FormatResult(res, false))
	}
	return reportError(os.Stderr, err)
}

// reportError prints err to w and returns the exit status for it.
func reportError(w io.Writer, err error) int {
	switch {
	case err == nil:
		return exitOK
	case proc.IsFatal(err):
		fmt.Fprintf(w, "FATAL: %v\nThe target may still be stopped.\n", err)
		return exitFatal
	default:
		fmt.Fprintf(w, "%v\n", err)
		if code, ok := proc.StatusCode(err); ok {
			fmt.Fprintf(w, "status code: %d\n", code)
		}
		return exitError
	}
}

// matchPolicy returns the policy selected by --match, falling back to
// the config file.
func matchPolicy(conf *config.Config) (proclist.MatchPolicy, error) {
	if match != "" {
		return proclist.ParseMatchPolicy(match)
	}
	if conf != nil {
		return proclist.ParseMatchPolicy(conf.MatchPolicy)
	}
	return proclist.MatchFirst, nil
}

// strategyFlag is the value of --strategy.
type strategyFlag struct {
	s proc.Strategy
}

var _ pflag.Value = (*strategyFlag)(nil)

func (f *strategyFlag) String() string {
	switch f.s {
	case proc.InstructionSkip:
		return "skip"
	case proc.FrameUnwind:
		return "unwind"
	default:
		return "none"
	}
}

func (f *strategyFlag) Set(v string) error {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "skip", "1":
		f.s = proc.InstructionSkip
	case "unwind", "2":
		f.s = proc.FrameUnwind
	case "none", "":
		f.s = proc.StrategyNone
	default:
		return fmt.Errorf("unknown strategy %q (expected skip, unwind or none)", v)
	}
	return nil
}

func (f *strategyFlag) Type() string {
	return "strategy"
}

// chooser returns a Chooser that prints the stopped thread to out and
// picks the strategy set on the command line.
func (f *strategyFlag) chooser(out io.Writer) proc.Chooser {
	return func(insp proc.Inspection) proc.Strategy {
		fmt.Fprintf(out, "Process %d, thread %d: %s\n", insp.Pid, insp.Thread, insp.Regs)
		if insp.Instruction != "" {
			fmt.Fprintf(out, "%#016x:\t%s\n", insp.Regs.PC, insp.Instruction)
		}
		return f.s
	}
}
