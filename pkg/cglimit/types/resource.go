package types

import (
	"github.com/oceanweave/minidocker/pkg/errdef"
)

// ResourceSpec 一次容器会话的命令与资源限制，构造后不可修改
// memoryLimitMB 为 0 表示不限制内存，cpuLimitPercent 为 0 表示不限制 CPU
type ResourceSpec struct {
	command         string
	memoryLimitMB   uint64
	cpuLimitPercent uint64
}

// NewResourceSpec 校验命令行传入的原始参数并构造 ResourceSpec
// cpu 必须在 [0,100] 之内，内存必须非负，否则返回 InvalidLimit
func NewResourceSpec(command string, memoryMB int, cpuPercent int) (ResourceSpec, error) {
	if cpuPercent < 0 || cpuPercent > MaxCPUPercent {
		return ResourceSpec{}, errdef.New(errdef.InvalidLimit, "validate cpu limit",
			"cpu limit %d%% out of range [0,%d]", cpuPercent, MaxCPUPercent)
	}
	if memoryMB < 0 {
		return ResourceSpec{}, errdef.New(errdef.InvalidLimit, "validate memory limit",
			"memory limit %dMB must not be negative", memoryMB)
	}
	return ResourceSpec{
		command:         command,
		memoryLimitMB:   uint64(memoryMB),
		cpuLimitPercent: uint64(cpuPercent),
	}, nil
}

func (r ResourceSpec) Command() string { return r.command }

func (r ResourceSpec) MemoryLimitMB() uint64 { return r.memoryLimitMB }

func (r ResourceSpec) CPULimitPercent() uint64 { return r.cpuLimitPercent }

// IsConstrained 是否设置了任意一项资源限制
func (r ResourceSpec) IsConstrained() bool {
	return r.memoryLimitMB > 0 || r.cpuLimitPercent > 0
}
