package types

import "strconv"

const (
	// cpu.max 的调度周期，单位微秒
	CPUPeriodUs uint64 = 100000
	MaxCPUPercent      = 100
	// cgroup v2 中表示不限制的取值
	Unlimited = "max"
)

// MemoryBytes 将 MB 换算为字节
func MemoryBytes(mb uint64) uint64 {
	return mb * 1024 * 1024
}

// CPUQuota 按百分比计算一个周期内可用的 CPU 时间（微秒），先乘后除避免精度丢失
func CPUQuota(percent uint64) uint64 {
	return percent * CPUPeriodUs / MaxCPUPercent
}

// MemoryMaxValue 写入 memory.max 的内容
func MemoryMaxValue(mb uint64) string {
	if mb == 0 {
		return Unlimited
	}
	return strconv.FormatUint(MemoryBytes(mb), 10)
}

// CPUMaxValue 写入 cpu.max 的内容，格式为 "$QUOTA $PERIOD"
// percent 为 0 时写入 "max $PERIOD"，绝不写 "0 $PERIOD"
func CPUMaxValue(percent uint64) string {
	period := strconv.FormatUint(CPUPeriodUs, 10)
	if percent == 0 {
		return Unlimited + " " + period
	}
	return strconv.FormatUint(CPUQuota(percent), 10) + " " + period
}
