package subsystems

import (
	"github.com/oceanweave/minidocker/pkg/cglimit/types"
	log "github.com/sirupsen/logrus"
)

const memoryMaxFile = "memory.max"

type MemorySubSystem struct {
}

// Name 返回 资源Subsystem名字
func (s *MemorySubSystem) Name() string {
	return "memory"
}

// Set 将内存上限（字节）写入 memory.max，0 MB 写入 max 表示不限制
func (s *MemorySubSystem) Set(cgroupDir string, res types.ResourceSpec) error {
	value := types.MemoryMaxValue(res.MemoryLimitMB())
	log.Debugf("Set %s = %s in %s", memoryMaxFile, value, cgroupDir)
	return writeCgroupFile(cgroupDir, memoryMaxFile, value)
}
