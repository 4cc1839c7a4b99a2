package subsystems

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oceanweave/minidocker/pkg/constant"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	mountInfoPath   = "/proc/self/mountinfo"
	mountPointIndex = 4
	cgroup2FsType   = "cgroup2"
)

// FindCgroupMountpoint 找到 cgroup v2 统一层级的挂载点，找不到时返回默认的 /sys/fs/cgroup
func FindCgroupMountpoint() string {
	f, err := os.Open(mountInfoPath)
	if err != nil {
		log.Warnf("open %s error %v, fallback to %s", mountInfoPath, err, constant.DefaultCgroupRoot)
		return constant.DefaultCgroupRoot
	}
	defer f.Close()
	if mnt := parseCgroup2Mountpoint(f); mnt != "" {
		return mnt
	}
	return constant.DefaultCgroupRoot
}

// parseCgroup2Mountpoint 解析 mountinfo，行格式大概是这样的：
// 35 24 0:30 / /sys/fs/cgroup rw,nosuid,nodev,noexec,relatime shared:9 - cgroup2 cgroup2 rw,nsdelegate
// " - " 之后的第一个字段是文件系统类型，第 5 个字段是挂载点
func parseCgroup2Mountpoint(r io.Reader) string {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		txt := scanner.Text()
		pre, post, ok := strings.Cut(txt, " - ")
		if !ok {
			continue
		}
		fields := strings.Fields(pre)
		postFields := strings.Fields(post)
		if len(fields) <= mountPointIndex || len(postFields) == 0 {
			continue
		}
		if postFields[0] == cgroup2FsType {
			return fields[mountPointIndex]
		}
	}
	if err := scanner.Err(); err != nil {
		log.Errorf("read mountinfo error %v", err)
	}
	return ""
}

// writeCgroupFile 覆盖写入 cgroup 控制文件
func writeCgroupFile(cgroupDir, name, value string) error {
	p := filepath.Join(cgroupDir, name)
	if err := os.WriteFile(p, []byte(value), constant.Perm0644); err != nil {
		return errors.Wrapf(err, "write %s", p)
	}
	return nil
}
