package cglimit

import (
	"strconv"

	"github.com/oceanweave/minidocker/pkg/constant"
)

// CgroupName 根据容器 init 进程在宿主机上的 pid 生成 cgroup 目录名
// 同一时刻宿主机上的 pid 唯一，因此不同会话的 cgroup 目录不会冲突
func CgroupName(pid int) string {
	return constant.CgroupNamePrefix + strconv.Itoa(pid)
}
