package cglimit

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/oceanweave/minidocker/pkg/cglimit/types"
	"github.com/oceanweave/minidocker/pkg/errdef"
)

func newTestManager(t *testing.T, pid int) *CgroupManager {
	t.Helper()
	m := NewCgroupManager(t.TempDir(), pid)
	m.drainTimeout = 10 * time.Millisecond
	return m
}

func readCgroupFile(t *testing.T, m *CgroupManager, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(m.Path, name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

func TestCgroupNameDeterministic(t *testing.T) {
	if CgroupName(4242) != CgroupName(4242) {
		t.Fatal("cgroup name must be a pure function of the pid")
	}
	if CgroupName(4242) != "minidocker-4242" {
		t.Fatalf("CgroupName(4242) = %q", CgroupName(4242))
	}
	seen := make(map[string]int)
	for pid := 1; pid < 2000; pid++ {
		name := CgroupName(pid)
		if other, ok := seen[name]; ok {
			t.Fatalf("pid %d and %d collide on %q", pid, other, name)
		}
		seen[name] = pid
	}
}

func TestCgroupLifecycle(t *testing.T) {
	m := newTestManager(t, 1234)
	res, err := types.NewResourceSpec("ls", 128, 50)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Create(); err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Base(m.Path) != "minidocker-1234" {
		t.Fatalf("path = %s", m.Path)
	}
	if err := m.Set(res); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := m.Apply(1234); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := readCgroupFile(t, m, "memory.max"); got != "134217728" {
		t.Errorf("memory.max = %q", got)
	}
	if got := readCgroupFile(t, m, "cpu.max"); got != "50000 100000" {
		t.Errorf("cpu.max = %q", got)
	}
	if got := readCgroupFile(t, m, "cgroup.procs"); got != "1234" {
		t.Errorf("cgroup.procs = %q", got)
	}
	if err := m.Destroy(); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if _, err := os.Stat(m.Path); !os.IsNotExist(err) {
		t.Fatalf("cgroup dir still present: %v", err)
	}
	if err := m.Destroy(); err != nil {
		t.Fatalf("second destroy must be a no-op: %v", err)
	}
}

func TestCgroupUnconstrainedCPU(t *testing.T) {
	m := newTestManager(t, 77)
	res, _ := types.NewResourceSpec("ls", 64, 0)
	if err := m.Create(); err != nil {
		t.Fatal(err)
	}
	defer m.Destroy()
	if err := m.Set(res); err != nil {
		t.Fatal(err)
	}
	if got := readCgroupFile(t, m, "cpu.max"); got != "max 100000" {
		t.Fatalf("cpu.max = %q, want unconstrained sentinel", got)
	}
}

func TestCgroupCreateFailed(t *testing.T) {
	m := NewCgroupManager(filepath.Join(t.TempDir(), "no-such-root"), 1)
	err := m.Create()
	if !errdef.Is(err, errdef.CgroupCreateFailed) {
		t.Fatalf("err = %v, want CgroupCreateFailed", err)
	}
}

func TestCgroupWriteLimitFailed(t *testing.T) {
	m := newTestManager(t, 9)
	res, _ := types.NewResourceSpec("ls", 1, 1)
	// 目录未创建，写入必然失败
	if err := m.Set(res); !errdef.Is(err, errdef.WriteLimitFailed) {
		t.Fatalf("set err = %v, want WriteLimitFailed", err)
	}
	if err := m.Apply(9); !errdef.Is(err, errdef.WriteLimitFailed) {
		t.Fatalf("apply err = %v, want WriteLimitFailed", err)
	}
	if err := m.Apply(0); !errdef.Is(err, errdef.WriteLimitFailed) {
		t.Fatalf("apply(0) err = %v, want WriteLimitFailed", err)
	}
}

func TestDestroyRetriesOnceWhenBusy(t *testing.T) {
	m := newTestManager(t, 10)
	if err := m.Create(); err != nil {
		t.Fatal(err)
	}
	calls := 0
	m.removeDir = func(p string) error {
		calls++
		if calls == 1 {
			return &os.PathError{Op: "remove", Path: p, Err: syscall.EBUSY}
		}
		return removeCgroupDir(p)
	}
	if err := m.Destroy(); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if calls != 2 {
		t.Fatalf("remove called %d times, want 2", calls)
	}
}

func TestDestroyReportsCleanupFailed(t *testing.T) {
	m := newTestManager(t, 11)
	if err := m.Create(); err != nil {
		t.Fatal(err)
	}
	calls := 0
	m.removeDir = func(p string) error {
		calls++
		return &os.PathError{Op: "remove", Path: p, Err: syscall.EBUSY}
	}
	err := m.Destroy()
	if !errdef.Is(err, errdef.CleanupFailed) {
		t.Fatalf("err = %v, want CleanupFailed", err)
	}
	if calls != 2 {
		t.Fatalf("remove called %d times, want exactly one retry", calls)
	}
	// 之后恢复正常，再次调用可以完成清理
	m.removeDir = removeCgroupDir
	if err := m.Destroy(); err != nil {
		t.Fatalf("destroy after recovery: %v", err)
	}
}

func TestDestroyMissingDirIsSuccess(t *testing.T) {
	m := newTestManager(t, 12)
	if err := m.Destroy(); err != nil {
		t.Fatalf("destroy of never-created cgroup: %v", err)
	}
}

func TestEnableControllers(t *testing.T) {
	m := newTestManager(t, 13)
	if err := os.WriteFile(filepath.Join(m.Root, controllersFile), []byte("cpuset cpu io memory pids\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(m.Root, subtreeControlFile), []byte("memory\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := m.Create(); err != nil {
		t.Fatal(err)
	}
	defer m.Destroy()
	data, err := os.ReadFile(filepath.Join(m.Root, subtreeControlFile))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "+cpu" {
		t.Fatalf("subtree_control = %q, want only the missing controller", data)
	}
}
