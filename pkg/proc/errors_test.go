package proc

import (
	"errors"
	"strings"
	"syscall"
	"testing"
)

func TestAttachReason(t *testing.T) {
	tests := []struct {
		err  error
		want AttachReason
	}{
		{syscall.EPERM, PermissionDenied},
		{syscall.EACCES, PermissionDenied},
		{syscall.ESRCH, NoSuchProcess},
		{syscall.ENOENT, NoSuchProcess},
		{errors.New("other"), AttachFailed},
	}
	for _, tt := range tests {
		if got := attachReason(tt.err); got != tt.want {
			t.Errorf("attachReason(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestErrorMessagesCarryStatus(t *testing.T) {
	errs := []StageError{
		&AttachError{Pid: 1, Reason: PermissionDenied, Err: syscall.EPERM},
		&SuspendError{Pid: 1, Err: syscall.ESRCH},
		&EnumerationError{Pid: 1, Err: syscall.ESRCH},
		&StateReadError{Thread: 1, Err: syscall.EIO},
		&StateWriteError{Thread: 1, Err: syscall.EIO},
		&MemoryReadError{Addr: 0x10, Len: 16, Err: syscall.EFAULT},
		&ResumeError{Pid: 1, Err: syscall.ESRCH},
	}
	for _, err := range errs {
		code, ok := StatusCode(err)
		if !ok {
			t.Errorf("%T: no status code", err)
			continue
		}
		if !strings.Contains(err.Error(), "status ") {
			t.Errorf("%T: message %q does not report status %d", err, err.Error(), code)
		}
		if err.Stage().String() == "" {
			t.Errorf("%T: empty stage", err)
		}
	}
}

func TestIsFatal(t *testing.T) {
	if IsFatal(&SuspendError{Pid: 1, Err: syscall.ESRCH}) {
		t.Fatal("suspend error reported as fatal")
	}
	if !IsFatal(&ResumeError{Pid: 1, Err: syscall.ESRCH}) {
		t.Fatal("resume error not reported as fatal")
	}
}
