package constant

import (
	"os"
)

const (
	Perm0755 os.FileMode = 0755
	Perm0644 os.FileMode = 0644
	Perm0600 os.FileMode = 0600

	// 默认的容器 rootfs，需要提前解压好（如 busybox），本项目不负责镜像管理
	DefaultRootfs string = "/var/lib/minidocker/rootfs"
	// 默认配置文件，不存在时使用内置默认值
	DefaultConfigPath string = "/etc/minidocker/config.yaml"
	// cgroup v2 统一层级的默认挂载点
	DefaultCgroupRoot string = "/sys/fs/cgroup"
	// 每个容器的 cgroup 目录名前缀，后缀为 init 进程在宿主机上的 pid
	CgroupNamePrefix string = "minidocker-"

	DefaultShell    string = "/bin/sh"
	DefaultPath     string = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"
	DefaultExitWord string = "exit"
	DefaultTerm     string = "xterm"

	// 自身可执行文件，用于 re-exec 出 init / shell 进程
	SelfExe string = "/proc/self/exe"
	// 隐藏子命令名称
	InitCommandName  string = "init"
	ShellCommandName string = "shell"

	// 父进程通过环境变量把日志级别传给 init / shell 进程
	EnvLogLevel string = "MINIDOCKER_LOG_LEVEL"
)

// 父子进程之间约定的文件描述符编号
// 0 标准输入 1 标准输出 2 标准错误，ExtraFiles 从 3 开始
const (
	// init 进程: 3 读取 InitContext，4 pty slave，5 错误回报管道
	InitPipeFd   = 3
	InitSlaveFd  = 4
	InitReportFd = 5
	// shell 进程: 3 读取 InitContext，4 错误回报管道
	ShellPipeFd   = 3
	ShellReportFd = 4
)
