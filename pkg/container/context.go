package container

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
)

// InitContext 父进程通过匿名管道传给 init 进程、再由 init 原样传给 shell 进程的全部参数
// 采用管道而不是命令行参数或全局变量，避免参数过长，也避免跨进程共享可变状态
type InitContext struct {
	Rootfs  string `json:"rootfs"`
	Command string `json:"command"`
	Shell   string `json:"shell"`
	Path    string `json:"path"`
	Term    string `json:"term"`
}

// sendInitCommand 将 InitContext 写入管道并关闭写端，子进程读到 EOF 后才开始工作
func sendInitCommand(w io.WriteCloser, ctx InitContext) error {
	err := json.NewEncoder(w).Encode(ctx)
	if cerr := w.Close(); err == nil && cerr != nil {
		err = cerr
	}
	return errors.Wrap(err, "send init context")
}

// readInitContext 从约定的 fd 读取 InitContext，父进程写入之前会一直阻塞
func readInitContext(fd uintptr) (InitContext, error) {
	pipe := os.NewFile(fd, "init-pipe")
	defer pipe.Close()
	return decodeInitContext(pipe)
}

func decodeInitContext(r io.Reader) (InitContext, error) {
	var ctx InitContext
	if err := json.NewDecoder(r).Decode(&ctx); err != nil {
		return InitContext{}, errors.Wrap(err, "read init context")
	}
	return ctx, nil
}
