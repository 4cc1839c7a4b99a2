package container

import (
	"reflect"
	"testing"

	"github.com/oceanweave/minidocker/pkg/errdef"
	"github.com/pkg/errors"
)

func TestSessionReleasesInReverseOrder(t *testing.T) {
	var order []string
	s := &Session{}
	for _, name := range []string{"pty", "container", "cgroup"} {
		name := name
		s.Defer(name, func() error {
			order = append(order, name)
			return nil
		})
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if want := []string{"cgroup", "container", "pty"}; !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestSessionCloseRunsOnce(t *testing.T) {
	calls := 0
	s := &Session{}
	s.Defer("count", func() error {
		calls++
		return nil
	})
	for i := 0; i < 3; i++ {
		_ = s.Close()
	}
	if calls != 1 {
		t.Errorf("cleanup ran %d times, want 1", calls)
	}
}

func TestSessionContinuesAfterFailure(t *testing.T) {
	var ran []string
	s := &Session{}
	s.Defer("first", func() error {
		ran = append(ran, "first")
		return nil
	})
	s.Defer("broken", func() error {
		ran = append(ran, "broken")
		return errors.New("device or resource busy")
	})
	s.Defer("last", func() error {
		ran = append(ran, "last")
		return errors.New("second failure")
	})
	err := s.Close()
	if !errdef.Is(err, errdef.CleanupFailed) {
		t.Fatalf("Close() = %v, want CleanupFailed", err)
	}
	if errdef.OpOf(err) != "last" {
		t.Errorf("first reported failure op = %q, want last", errdef.OpOf(err))
	}
	if want := []string{"last", "broken", "first"}; !reflect.DeepEqual(ran, want) {
		t.Errorf("ran = %v, want %v", ran, want)
	}
	// 重复调用返回同一个结果
	if again := s.Close(); again != err {
		t.Errorf("second Close() = %v, want %v", again, err)
	}
}

func TestSessionKeepsTypedCleanupError(t *testing.T) {
	orig := errdef.New(errdef.CleanupFailed, "remove cgroup", "rmdir /sys/fs/cgroup/minidocker-1: busy")
	s := &Session{}
	s.Defer("destroy cgroup", func() error { return orig })
	if err := s.Close(); err != orig {
		t.Errorf("Close() = %v, want %v", err, orig)
	}
}
