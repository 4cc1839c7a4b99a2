package types

/*
	cgroup v2 只有一个统一层级，每种资源由控制器（controller）负责，
	这里沿用 subsystem 的抽象：每种资源只负责把自己的限制写入 cgroup 目录下对应的文件，
	目录的创建、进程加入、删除统一由 CgroupManager 处理
*/

// Subsystem 单个资源控制器
type Subsystem interface {
	// Name 返回控制器名称，比如 cpu、memory，用于写入 cgroup.subtree_control
	Name() string
	// Set 将 res 中对应的限制写入 cgroupDir 下的控制文件
	// 例如 memory 写入 memory.max，cpu 写入 cpu.max
	Set(cgroupDir string, res ResourceSpec) error
}
