//go:build linux

package native

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/unloop/unloop/pkg/proc"
	"github.com/unloop/unloop/pkg/proclist"
)

const spinEnv = "UNLOOP_TEST_SPIN"

func TestMain(m *testing.M) {
	if os.Getenv(spinEnv) == "1" {
		// multi-threaded target for TestSessionRejectsMultiThreaded
		go func() {
			for {
			}
		}()
		for {
		}
	}
	os.Exit(m.Run())
}

// procState returns the state letter of /proc/<pid>/stat.
func procState(t *testing.T, pid int) byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	i := strings.LastIndexByte(s, ')')
	if i < 0 || i+2 >= len(s) {
		t.Fatalf("malformed stat for %d: %q", pid, s)
	}
	return s[i+2]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func waitForState(t *testing.T, pid int, state byte) {
	t.Helper()
	waitFor(t, "state "+string(state)+" of "+strconv.Itoa(pid), func() bool {
		return procState(t, pid) == state
	})
}

func taskCount(pid int) int {
	ents, err := os.ReadDir(filepath.Join("/proc", strconv.Itoa(pid), "task"))
	if err != nil {
		return 0
	}
	return len(ents)
}

func startTarget(t *testing.T, cmd *exec.Cmd) int {
	t.Helper()
	if err := cmd.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		cmd.Process.Kill()
		cmd.Wait()
	})
	return cmd.Process.Pid
}

// startBusyShell starts a single threaded shell spinning in a loop.
func startBusyShell(t *testing.T) int {
	t.Helper()
	pid := startTarget(t, exec.Command("sh", "-c", "while :; do :; done"))
	waitFor(t, "exec of sh", func() bool {
		comm, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "comm"))
		return err == nil && strings.TrimSpace(string(comm)) == "sh"
	})
	return pid
}

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func attachOrSkip(t *testing.T, b *Backend, pid int) proc.Handle {
	t.Helper()
	h, err := b.Attach(pid)
	if errors.Is(err, syscall.EPERM) {
		t.Skipf("ptrace not permitted: %v", err)
	}
	if err != nil {
		t.Fatalf("Attach(%d): %v", pid, err)
	}
	return h
}

func assertNotTraced(t *testing.T, pid int) {
	t.Helper()
	tracer, err := (&proclist.Lister{}).TracerPid(pid)
	if err != nil {
		t.Fatal(err)
	}
	if tracer != 0 {
		t.Fatalf("process %d still traced by %d", pid, tracer)
	}
}

func TestSuspendResume(t *testing.T) {
	pid := startBusyShell(t)
	b := newTestBackend(t)

	h := attachOrSkip(t, b, pid)
	if err := b.Suspend(h); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	if s := procState(t, pid); s != 't' {
		b.Resume(h)
		t.Fatalf("state after Suspend is %c, want t", s)
	}

	threads, err := b.ThreadList(h)
	if err != nil {
		b.Resume(h)
		t.Fatalf("ThreadList: %v", err)
	}
	if len(threads) != 1 || int(threads[0]) != pid {
		b.Resume(h)
		t.Fatalf("ThreadList = %v, want [%d]", threads, pid)
	}

	if err := b.Resume(h); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	waitForState(t, pid, 'R')
	assertNotTraced(t, pid)

	if _, err := b.ThreadList(h); err == nil {
		t.Fatal("handle still valid after Resume")
	}
}

func TestDetachWithoutSuspend(t *testing.T) {
	pid := startBusyShell(t)
	b := newTestBackend(t)

	h := attachOrSkip(t, b, pid)
	if err := b.Detach(h); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	waitForState(t, pid, 'R')
	assertNotTraced(t, pid)

	// the process can be attached again once released
	h = attachOrSkip(t, b, pid)
	if err := b.Detach(h); err != nil {
		t.Fatalf("second Detach: %v", err)
	}
}

func TestDetachSuspendedFails(t *testing.T) {
	pid := startBusyShell(t)
	b := newTestBackend(t)

	h := attachOrSkip(t, b, pid)
	if err := b.Suspend(h); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	if err := b.Detach(h); !errors.Is(err, syscall.EBUSY) {
		b.Resume(h)
		t.Fatalf("Detach of a suspended process: expected EBUSY, got %v", err)
	}
	if err := b.Resume(h); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	waitForState(t, pid, 'R')
}

func TestSessionRejectsMultiThreaded(t *testing.T) {
	cmd := exec.Command(os.Args[0])
	cmd.Env = append(os.Environ(), spinEnv+"=1")
	pid := startTarget(t, cmd)
	waitFor(t, "threads of "+strconv.Itoa(pid), func() bool { return taskCount(pid) >= 2 })

	b := newTestBackend(t)

	chose := false
	res, err := proc.NewSession(b, proc.ARM64Arch()).Run(pid, func(proc.Inspection) proc.Strategy {
		chose = true
		return proc.StrategyNone
	})
	if errors.Is(err, syscall.EPERM) {
		t.Skipf("ptrace not permitted: %v", err)
	}
	var terr *proc.TopologyError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TopologyError, got %v", err)
	}
	if terr.Threads < 2 {
		t.Fatalf("TopologyError reports %d threads", terr.Threads)
	}
	if chose {
		t.Fatal("chooser called for a multi-threaded process")
	}
	if res.State != proc.StateAborted {
		t.Fatalf("session state %v, want %v", res.State, proc.StateAborted)
	}
	waitFor(t, "resume of "+strconv.Itoa(pid), func() bool { return procState(t, pid) != 't' })
	assertNotTraced(t, pid)
}

func TestRegistersRoundTrip(t *testing.T) {
	if runtime.GOARCH != "arm64" {
		t.Skip("register access is only implemented on arm64")
	}
	pid := startBusyShell(t)
	b := newTestBackend(t)

	h := attachOrSkip(t, b, pid)
	if err := b.Suspend(h); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	defer func() {
		if err := b.Resume(h); err != nil {
			t.Fatalf("Resume: %v", err)
		}
		waitForState(t, pid, 'R')
	}()

	threads, err := b.ThreadList(h)
	if err != nil || len(threads) != 1 {
		t.Fatalf("ThreadList = %v, %v", threads, err)
	}
	regs, err := b.GetRegisters(threads[0])
	if err != nil {
		t.Fatalf("GetRegisters: %v", err)
	}
	if regs.PC == 0 || regs.SP == 0 {
		t.Fatalf("implausible registers: %v", regs)
	}
	if err := b.SetRegisters(threads[0], regs); err != nil {
		t.Fatalf("SetRegisters: %v", err)
	}
	again, err := b.GetRegisters(threads[0])
	if err != nil {
		t.Fatalf("GetRegisters after write: %v", err)
	}
	if again != regs {
		t.Fatalf("registers changed by identity write:\n%v\n%v", regs, again)
	}
}
