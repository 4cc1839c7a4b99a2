package cglimit

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/oceanweave/minidocker/pkg/cglimit/subsystems"
	"github.com/oceanweave/minidocker/pkg/cglimit/types"
	"github.com/oceanweave/minidocker/pkg/constant"
	"github.com/oceanweave/minidocker/pkg/errdef"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	controllersFile    = "cgroup.controllers"
	subtreeControlFile = "cgroup.subtree_control"
	procsFile          = "cgroup.procs"
	killFile           = "cgroup.kill"

	defaultDrainTimeout = 2 * time.Second
	drainPollInterval   = 50 * time.Millisecond
)

type CgroupManager struct {
	// cgroup v2 统一层级的挂载点，例如 /sys/fs/cgroup
	Root string
	// 本容器的 cgroup 目录名，minidocker-<pid>
	Name string
	// 本容器 cgroup 的绝对路径
	Path string

	drainTimeout time.Duration
	removeDir    func(string) error
	destroyed    bool
}

// NewCgroupManager root 为空时从 mountinfo 中查找 cgroup2 挂载点
func NewCgroupManager(root string, pid int) *CgroupManager {
	if root == "" {
		root = subsystems.FindCgroupMountpoint()
	}
	name := CgroupName(pid)
	return &CgroupManager{
		Root:         root,
		Name:         name,
		Path:         filepath.Join(root, name),
		drainTimeout: defaultDrainTimeout,
		removeDir:    removeCgroupDir,
	}
}

// Create 创建容器的 cgroup 目录
// 创建前尝试在根 cgroup 的 subtree_control 中开启 cpu、memory 控制器，否则子目录下不会出现 cpu.max / memory.max
func (c *CgroupManager) Create() error {
	c.enableControllers()
	if err := os.Mkdir(c.Path, constant.Perm0755); err != nil {
		return errdef.Wrapf(err, errdef.CgroupCreateFailed, "create cgroup", "mkdir %s", c.Path)
	}
	c.destroyed = false
	logrus.Debugf("Created cgroup dir %s", c.Path)
	return nil
}

// Set 设置 cgroup 资源限制，遇到第一个失败的 subsystem 即返回
func (c *CgroupManager) Set(res types.ResourceSpec) error {
	for _, subSysIns := range subsystems.SubsystemsIns {
		if err := subSysIns.Set(c.Path, res); err != nil {
			logrus.Errorf("set subsystem: %s, err: %s", subSysIns.Name(), err)
			return errdef.Wrap(err, errdef.WriteLimitFailed, "set "+subSysIns.Name()+" limit")
		}
	}
	return nil
}

// Apply 将进程 pid 加入到这个 cgroup 中，其后 fork 出的子进程会自动继承
func (c *CgroupManager) Apply(pid int) error {
	if pid <= 0 {
		return errdef.New(errdef.WriteLimitFailed, "attach cgroup", "invalid pid %d", pid)
	}
	p := filepath.Join(c.Path, procsFile)
	if err := os.WriteFile(p, []byte(strconv.Itoa(pid)), constant.Perm0644); err != nil {
		return errdef.Wrapf(err, errdef.WriteLimitFailed, "attach cgroup", "write %s", p)
	}
	return nil
}

// Destroy 删除 cgroup 目录，可重复调用
// 目录中仍有进程时内核返回 EBUSY，此时先通过 cgroup.kill 清空进程，再重试一次
func (c *CgroupManager) Destroy() error {
	if c.destroyed {
		return nil
	}
	logrus.Infof("Cleaning cgroup dir %s", c.Path)
	err := c.remove()
	if err != nil && errors.Is(err, syscall.EBUSY) {
		logrus.Warnf("cgroup %s still has members, draining and retrying once", c.Path)
		c.drain()
		err = c.remove()
	}
	if err != nil {
		return errdef.Wrapf(err, errdef.CleanupFailed, "remove cgroup", "rmdir %s", c.Path)
	}
	c.destroyed = true
	logrus.Infof("Finish clean cgroup dir %s", c.Path)
	return nil
}

func (c *CgroupManager) remove() error {
	err := c.removeDir(c.Path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// drain 杀掉 cgroup 中残留的进程并等待 cgroup.procs 清空，超时后直接返回
func (c *CgroupManager) drain() {
	killPath := filepath.Join(c.Path, killFile)
	if _, err := os.Stat(killPath); err == nil {
		if err := os.WriteFile(killPath, []byte("1"), constant.Perm0600); err != nil {
			logrus.Warnf("write %s error %v", killPath, err)
		}
	}
	deadline := time.Now().Add(c.drainTimeout)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(filepath.Join(c.Path, procsFile))
		if err != nil || strings.TrimSpace(string(data)) == "" {
			return
		}
		time.Sleep(drainPollInterval)
	}
}

// enableControllers 在根 cgroup 中开启需要的控制器，只开启 cgroup.controllers 中可用的，失败只记录日志
func (c *CgroupManager) enableControllers() {
	available, err := os.ReadFile(filepath.Join(c.Root, controllersFile))
	if err != nil {
		logrus.Debugf("read %s error %v, skip controller delegation", controllersFile, err)
		return
	}
	enabled, _ := os.ReadFile(filepath.Join(c.Root, subtreeControlFile))
	have := make(map[string]bool)
	for _, name := range strings.Fields(string(available)) {
		have[name] = true
	}
	on := make(map[string]bool)
	for _, name := range strings.Fields(string(enabled)) {
		on[name] = true
	}
	var toWrite []string
	for _, sub := range subsystems.SubsystemsIns {
		if have[sub.Name()] && !on[sub.Name()] {
			toWrite = append(toWrite, "+"+sub.Name())
		}
	}
	if len(toWrite) == 0 {
		return
	}
	payload := strings.Join(toWrite, " ")
	if err := os.WriteFile(filepath.Join(c.Root, subtreeControlFile), []byte(payload), constant.Perm0644); err != nil {
		logrus.Warnf("enable controllers %q on %s error %v", payload, c.Root, err)
	}
}

// removeCgroupDir cgroupfs 上的目录只能 rmdir，内部的控制文件由内核负责
// 普通文件系统上（ENOTEMPTY）退化为递归删除
func removeCgroupDir(p string) error {
	err := os.Remove(p)
	if err != nil && errors.Is(err, syscall.ENOTEMPTY) {
		return os.RemoveAll(p)
	}
	return err
}
