package subsystems

import (
	"github.com/oceanweave/minidocker/pkg/cglimit/types"
	log "github.com/sirupsen/logrus"
)

const cpuMaxFile = "cpu.max"

type CpuSubSystem struct {
}

func (s *CpuSubSystem) Name() string {
	return "cpu"
}

// Set 写入 cpu.max，v1 中的 cpu.cfs_quota_us / cpu.cfs_period_us 在 v2 中合并为一个文件
// 例如 50% -> "50000 100000"，0 -> "max 100000"
func (s *CpuSubSystem) Set(cgroupDir string, res types.ResourceSpec) error {
	value := types.CPUMaxValue(res.CPULimitPercent())
	log.Debugf("Set %s = %s in %s", cpuMaxFile, value, cgroupDir)
	return writeCgroupFile(cgroupDir, cpuMaxFile, value)
}
