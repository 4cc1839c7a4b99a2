package container

import (
	"os"
	"testing"

	"github.com/oceanweave/minidocker/pkg/constant"
)

// 测试二进制会通过 /proc/self/exe 被重新执行为 init / shell 进程
func TestMain(m *testing.M) {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case constant.InitCommandName:
			os.Exit(RunContainerInitProcess())
		case constant.ShellCommandName:
			os.Exit(RunContainerShell())
		}
	}
	os.Exit(m.Run())
}
