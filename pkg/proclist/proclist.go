// Package proclist finds live processes by name.
package proclist

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/unloop/unloop/pkg/logflags"
)

// Process describes a live process.
type Process struct {
	Pid     int
	Name    string // the kernel's short name for the process (comm)
	Cmdline string // command line with arguments separated by spaces
}

// Lister scans a procfs mount.
type Lister struct {
	// Root is where procfs is mounted, "/proc" if empty.
	Root string
	// Self is excluded from results, os.Getpid() if zero.
	Self int
}

func (l *Lister) root() string {
	if l.Root == "" {
		return "/proc"
	}
	return l.Root
}

func (l *Lister) self() int {
	if l.Self == 0 {
		return os.Getpid()
	}
	return l.Self
}

func isProcDir(name string) bool {
	for _, ch := range name {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return name != ""
}

// List returns every process readable under the procfs root, ordered by
// pid.
func (l *Lister) List() ([]Process, error) {
	log := logflags.ProcListLogger()
	des, err := os.ReadDir(l.root())
	if err != nil {
		return nil, fmt.Errorf("could not list processes: %v", err)
	}
	self := l.self()
	var r []Process
	for _, de := range des {
		if !de.IsDir() || !isProcDir(de.Name()) {
			continue
		}
		pid, err := strconv.Atoi(de.Name())
		if err != nil || pid == self {
			continue
		}
		p, err := l.read(pid)
		if err != nil {
			// probably exited or we don't have permissions
			if logflags.ProcList() {
				log.Debugf("skipping %d: %v", pid, err)
			}
			continue
		}
		r = append(r, p)
	}
	sort.Slice(r, func(i, j int) bool { return r[i].Pid < r[j].Pid })
	return r, nil
}

func (l *Lister) read(pid int) (Process, error) {
	dir := filepath.Join(l.root(), strconv.Itoa(pid))
	comm, err := os.ReadFile(filepath.Join(dir, "comm"))
	if err != nil {
		return Process{}, err
	}
	p := Process{Pid: pid, Name: string(bytes.TrimSuffix(comm, []byte("\n")))}
	buf, err := os.ReadFile(filepath.Join(dir, "cmdline"))
	if err == nil {
		buf = bytes.TrimRight(buf, "\x00")
		for i := range buf {
			if buf[i] == 0 {
				buf[i] = ' '
			}
		}
		p.Cmdline = string(buf)
	}
	return p, nil
}

// exeName returns the base name of argv[0].
func (p Process) exeName() string {
	if p.Cmdline == "" {
		return ""
	}
	argv0 := p.Cmdline
	if i := strings.IndexByte(argv0, ' '); i >= 0 {
		argv0 = argv0[:i]
	}
	return filepath.Base(argv0)
}

// Matches reports whether name is contained in the process name or in the
// base name of its executable. comm is truncated by the kernel to 15
// bytes, the executable name catches longer names.
func (p Process) Matches(name string) bool {
	return strings.Contains(p.Name, name) || strings.Contains(p.exeName(), name)
}

// FindByName returns the processes matching name, ordered by pid.
func (l *Lister) FindByName(name string) ([]Process, error) {
	if name == "" {
		return nil, errors.New("empty process name")
	}
	all, err := l.List()
	if err != nil {
		return nil, err
	}
	var r []Process
	for _, p := range all {
		if p.Matches(name) {
			r = append(r, p)
		}
	}
	logflags.ProcListLogger().Debugf("%q matched %d processes", name, len(r))
	return r, nil
}

// Names returns the distinct names of the live processes, for completion.
func (l *Lister) Names() ([]string, error) {
	all, err := l.List()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(all))
	var r []string
	for _, p := range all {
		for _, n := range []string{p.Name, p.exeName()} {
			if n == "" {
				continue
			}
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			r = append(r, n)
		}
	}
	sort.Strings(r)
	return r, nil
}
