package terminal

import (
	"os"
	"testing"

	"github.com/oceanweave/minidocker/pkg/errdef"
)

func openOrSkip(t *testing.T) *Pair {
	t.Helper()
	pair, err := Open()
	if err != nil {
		if errdef.Is(err, errdef.PtyAllocationFailed) {
			t.Skipf("pty not available: %v", err)
		}
		t.Fatal(err)
	}
	return pair
}

func TestOpenAndCloseIdempotent(t *testing.T) {
	pair := openOrSkip(t)
	if pair.SlavePath == "" {
		t.Fatal("slave path empty")
	}
	if pair.Closed() {
		t.Fatal("fresh pair reported closed")
	}
	if err := pair.CloseSlave(); err != nil {
		t.Fatal(err)
	}
	if pair.Closed() {
		t.Fatal("master still open, pair must not report closed")
	}
	if err := pair.Close(); err != nil {
		t.Fatal(err)
	}
	if err := pair.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !pair.Closed() {
		t.Fatal("pair not closed")
	}
}

func TestSlaveWritesReachMaster(t *testing.T) {
	pair := openOrSkip(t)
	defer pair.Close()
	if _, err := pair.Slave.Write([]byte("hello\n")); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 64)
	n, err := pair.Master.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(buf[:n]); got != "hello\r\n" {
		t.Fatalf("master read %q", got)
	}
}

func TestInheritSizeIgnoresNonTerminal(t *testing.T) {
	pair := openOrSkip(t)
	defer pair.Close()
	f, err := os.CreateTemp(t.TempDir(), "not-a-tty")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := pair.InheritSize(f); err != nil {
		t.Fatalf("inherit from regular file: %v", err)
	}
}
