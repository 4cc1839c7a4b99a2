package errdef

import "strconv"

// Kind 错误类别，调用方根据类别决定重试、降级还是终止
type Kind uint8

const (
	Unknown Kind = iota
	// 参数非法，在创建任何资源之前被拒绝
	InvalidLimit
	// 创建 namespace 隔离进程失败
	CloneFailed
	// 容器内 chroot 失败
	ChrootFailed
	// 容器内无法启动目标程序
	ExecFailed
	// 分配 pty 失败
	PtyAllocationFailed
	// 创建 cgroup 目录失败
	CgroupCreateFailed
	// 写入 cgroup 限制文件失败
	WriteLimitFailed
	// 删除 cgroup 目录失败（仍有进程附着）
	CleanupFailed
	// init(1 号进程) 在启动 shell 之前失败
	SupervisorFailed
	// 配置文件非法
	ConfigInvalid
)

var kindNames = map[Kind]string{
	Unknown:             "Unknown",
	InvalidLimit:        "InvalidLimit",
	CloneFailed:         "CloneFailed",
	ChrootFailed:        "ChrootFailed",
	ExecFailed:          "ExecFailed",
	PtyAllocationFailed: "PtyAllocationFailed",
	CgroupCreateFailed:  "CgroupCreateFailed",
	WriteLimitFailed:    "WriteLimitFailed",
	CleanupFailed:       "CleanupFailed",
	SupervisorFailed:    "SupervisorFailed",
	ConfigInvalid:       "ConfigInvalid",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// ParseKind 按名称解析类别，未知名称返回 Unknown
func ParseKind(name string) Kind {
	for k, n := range kindNames {
		if n == name {
			return k
		}
	}
	return Unknown
}

// IsFatal 判断该类别的错误是否会终止整个会话
// cgroup 相关错误默认降级为无限制运行，CleanupFailed 只做上报
func (k Kind) IsFatal() bool {
	switch k {
	case CgroupCreateFailed, WriteLimitFailed, CleanupFailed:
		return false
	default:
		return true
	}
}
