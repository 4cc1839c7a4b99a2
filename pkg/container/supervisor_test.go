package container

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/oceanweave/minidocker/pkg/errdef"
	"github.com/pkg/errors"
)

type fakeOps struct {
	attachErr error
	startErr  error
	reapCode  int
	reapErr   error
	pid       int
	reapedPid int
	calls     []string
}

func (f *fakeOps) AttachTerminal() error {
	f.calls = append(f.calls, "attach")
	return f.attachErr
}

func (f *fakeOps) StartChild() (int, error) {
	f.calls = append(f.calls, "start")
	return f.pid, f.startErr
}

func (f *fakeOps) Reap(pid int) (int, error) {
	f.calls = append(f.calls, "reap")
	f.reapedPid = pid
	return f.reapCode, f.reapErr
}

func TestSupervisorHappyPath(t *testing.T) {
	ops := &fakeOps{pid: 2, reapCode: 3}
	var report bytes.Buffer
	s := NewSupervisor(ops, &report)
	if got := s.Run(); got != 3 {
		t.Errorf("Run() = %d, want shell status 3", got)
	}
	want := []SupervisorState{StateInit, StateTerminalAttached, StateAwaitingChild, StateReaping, StateTerminal}
	if !reflect.DeepEqual(s.Trace(), want) {
		t.Errorf("trace = %v, want %v", s.Trace(), want)
	}
	if ops.reapedPid != 2 {
		t.Errorf("reaped pid %d, want 2", ops.reapedPid)
	}
	if report.Len() != 0 {
		t.Errorf("unexpected report %q", report.String())
	}
}

func TestSupervisorSignalStatusPassedThrough(t *testing.T) {
	s := NewSupervisor(&fakeOps{pid: 2, reapCode: 137}, nil)
	if got := s.Run(); got != 137 {
		t.Errorf("Run() = %d, want 137", got)
	}
}

func TestSupervisorAttachFailure(t *testing.T) {
	ops := &fakeOps{attachErr: errors.New("no tty")}
	var report bytes.Buffer
	s := NewSupervisor(ops, &report)
	if got := s.Run(); got != 1 {
		t.Errorf("Run() = %d, want 1", got)
	}
	if want := []string{"attach"}; !reflect.DeepEqual(ops.calls, want) {
		t.Errorf("calls = %v, want %v", ops.calls, want)
	}
	if want := []SupervisorState{StateInit, StateTerminal}; !reflect.DeepEqual(s.Trace(), want) {
		t.Errorf("trace = %v, want %v", s.Trace(), want)
	}
	err := errdef.ReadReport(&report)
	if !errdef.Is(err, errdef.SupervisorFailed) {
		t.Errorf("report = %v, want SupervisorFailed", err)
	}
}

func TestSupervisorStartChildFailureKeepsKind(t *testing.T) {
	ops := &fakeOps{startErr: errdef.Wrap(errors.New("fork: EAGAIN"), errdef.CloneFailed, "start container shell process")}
	var report bytes.Buffer
	s := NewSupervisor(ops, &report)
	if got := s.Run(); got != 1 {
		t.Errorf("Run() = %d, want 1", got)
	}
	if s.State() != StateTerminal {
		t.Errorf("state = %v, want Terminal", s.State())
	}
	for _, c := range ops.calls {
		if c == "reap" {
			t.Error("reap called after start failure")
		}
	}
	if err := errdef.ReadReport(&report); !errdef.Is(err, errdef.CloneFailed) {
		t.Errorf("report = %v, want CloneFailed", err)
	}
}

func TestSupervisorReapFailure(t *testing.T) {
	s := NewSupervisor(&fakeOps{pid: 2, reapErr: errors.New("ECHILD")}, nil)
	if got := s.Run(); got != 1 {
		t.Errorf("Run() = %d, want 1", got)
	}
	if s.State() != StateTerminal {
		t.Errorf("state = %v, want Terminal", s.State())
	}
}

func TestSupervisorStateString(t *testing.T) {
	cases := map[SupervisorState]string{
		StateInit:             "Init",
		StateTerminalAttached: "TerminalAttached",
		StateAwaitingChild:    "AwaitingChild",
		StateReaping:          "Reaping",
		StateTerminal:         "Terminal",
		SupervisorState(42):   "Unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(state), got, want)
		}
	}
}
