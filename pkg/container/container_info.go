package container

import (
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	IDLength = 10
	// CreatedTimeFormat 日志中容器创建时间的格式
	CreatedTimeFormat = "2006-01-02 15:04:05"
)

// ContainerProcess 一次运行中的容器，只存在于 run 进程的内存中，不落盘
type ContainerProcess struct {
	Id          string
	Pid         int
	Command     string
	Rootfs      string
	CgroupPath  string
	SlavePath   string
	CreatedTime string
	// 是否成功加上了 cgroup 限制
	Constrained bool
}

// Fields 日志中携带的容器信息
func (p ContainerProcess) Fields() log.Fields {
	return log.Fields{
		"id":      p.Id,
		"pid":     p.Pid,
		"command": p.Command,
		"cgroup":  p.CgroupPath,
	}
}

func GenerateContainerID() string {
	return randStringsBytes(IDLength)
}

func randStringsBytes(n int) string {
	letterBytes := "1234567890"
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	b := make([]byte, n)
	// 随机生成一个 letterBytes 长度内的数字，获取 letterBytes 对应的元素，将其组合成指定的 n 长度，作为 containerID
	for i := range b {
		b[i] = letterBytes[r.Intn(len(letterBytes))]
	}
	return string(b)
}
