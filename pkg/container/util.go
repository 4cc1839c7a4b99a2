package container

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// exitCodeFromErr 从 cmd.Wait 的结果中取出退出码，被信号杀死时返回 128+信号值
func exitCodeFromErr(err error, state *os.ProcessState) int {
	if state == nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			if err == nil {
				return 0
			}
			return -1
		}
		state = exitErr.ProcessState
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok {
		return statusCode(unix.WaitStatus(ws))
	}
	return state.ExitCode()
}

// statusCode 与 shell 的约定一致: 正常退出返回退出码，被信号杀死返回 128+信号值
func statusCode(ws unix.WaitStatus) int {
	switch {
	case ws.Exited():
		return ws.ExitStatus()
	case ws.Signaled():
		return 128 + int(ws.Signal())
	}
	return 1
}
