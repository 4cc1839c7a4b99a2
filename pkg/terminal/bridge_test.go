package terminal

import (
	"bytes"
	"io"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/pkg/errors"
)

// fakeMaster 记录写入的内容，每次 Read 依次返回预设的输出
type fakeMaster struct {
	written bytes.Buffer
	replies []string
	readErr error
}

func (m *fakeMaster) Write(p []byte) (int, error) {
	return m.written.Write(p)
}

func (m *fakeMaster) Read(p []byte) (int, error) {
	if len(m.replies) == 0 {
		if m.readErr != nil {
			return 0, m.readErr
		}
		return 0, &os.PathError{Op: "read", Path: "/dev/ptmx", Err: syscall.EIO}
	}
	n := copy(p, m.replies[0])
	m.replies = m.replies[1:]
	return n, nil
}

func TestBridgeRelaysUntilSentinel(t *testing.T) {
	master := &fakeMaster{replies: []string{"bin  etc  proc\r\n# ", "/\r\n# "}}
	var out bytes.Buffer
	b := &Bridge{
		In:       strings.NewReader("ls\npwd\nexit\nnever-sent\n"),
		Out:      &out,
		Master:   master,
		Sentinel: "exit",
	}
	if err := b.Run(); err != ErrExitRequested {
		t.Fatalf("run = %v, want ErrExitRequested", err)
	}
	if got := master.written.String(); got != "ls\npwd\n" {
		t.Fatalf("written to master = %q", got)
	}
	if got := out.String(); got != "bin  etc  proc\r\n# /\r\n# " {
		t.Fatalf("echoed = %q", got)
	}
}

func TestBridgeStripsCarriageReturn(t *testing.T) {
	master := &fakeMaster{replies: []string{"ok"}}
	b := &Bridge{
		In:       strings.NewReader("echo ok\r\nexit\r\n"),
		Out:      io.Discard,
		Master:   master,
		Sentinel: "exit",
	}
	if err := b.Run(); err != ErrExitRequested {
		t.Fatalf("run = %v", err)
	}
	if got := master.written.String(); got != "echo ok\n" {
		t.Fatalf("written = %q", got)
	}
}

func TestBridgeInputEOFEndsCleanly(t *testing.T) {
	master := &fakeMaster{replies: []string{"a", "b"}}
	var out bytes.Buffer
	b := &Bridge{In: strings.NewReader("one\ntwo"), Out: &out, Master: master, Sentinel: "exit"}
	if err := b.Run(); err != nil {
		t.Fatalf("run = %v, want nil on input EOF", err)
	}
	if got := master.written.String(); got != "one\ntwo\n" {
		t.Fatalf("written = %q", got)
	}
	if out.String() != "ab" {
		t.Fatalf("out = %q", out.String())
	}
}

func TestBridgeShellClosed(t *testing.T) {
	master := &fakeMaster{}
	b := &Bridge{In: strings.NewReader("ls\n"), Out: io.Discard, Master: master, Sentinel: "exit"}
	if err := b.Run(); err != ErrShellClosed {
		t.Fatalf("run = %v, want ErrShellClosed", err)
	}
}

func TestBridgeReadErrorEndsLoop(t *testing.T) {
	boom := errors.New("boom")
	master := &fakeMaster{readErr: boom}
	b := &Bridge{In: strings.NewReader("ls\nls\n"), Out: io.Discard, Master: master, Sentinel: "exit"}
	err := b.Run()
	if !errors.Is(err, boom) {
		t.Fatalf("run = %v, want wrapped boom", err)
	}
	if master.written.String() != "ls\n" {
		t.Fatalf("loop must stop after the failed read, wrote %q", master.written.String())
	}
}

func TestBridgeFlush(t *testing.T) {
	master := &fakeMaster{replies: []string{"tail-1 ", "tail-2"}}
	var out bytes.Buffer
	b := &Bridge{Out: &out, Master: master}
	if err := b.Flush(); err != nil {
		t.Fatalf("flush = %v", err)
	}
	if out.String() != "tail-1 tail-2" {
		t.Fatalf("flushed = %q", out.String())
	}
}
