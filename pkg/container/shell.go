package container

import (
	"os"
	"syscall"

	"github.com/google/shlex"
	"github.com/oceanweave/minidocker/pkg/constant"
	"github.com/oceanweave/minidocker/pkg/errdef"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// RunContainerShell shell 进程的入口，成功时不会返回
/*
	1. 读取 1 号进程转发过来的 InitContext
	2. 挂载 proc，chroot 到 rootfs
	3. syscall.Exec 用 /bin/sh 覆盖当前进程的镜像、数据和堆栈，pid 不变
	chroot 或 exec 失败时通过回报管道告诉宿主机上的父进程，然后退出
*/
func RunContainerShell() int {
	report := os.NewFile(constant.ShellReportFd, "report-pipe")
	// exec 成功后用户命令不应该持有回报管道
	syscall.CloseOnExec(constant.ShellReportFd)

	ctx, err := readInitContext(constant.ShellPipeFd)
	if err != nil {
		return failShell(report, errdef.Wrap(err, errdef.SupervisorFailed, "read shell context"))
	}
	if err := enterRootfs(ctx.Rootfs); err != nil {
		return failShell(report, err)
	}
	env := setContainerEnv(ctx)
	argv, err := shellArgv(ctx)
	if err != nil {
		return failShell(report, err)
	}
	log.Debugf("Exec %v", argv)
	if err := unix.Exec(argv[0], argv, env); err != nil {
		return failShell(report, errdef.Wrap(err, errdef.ExecFailed, "exec "+argv[0]))
	}
	return 0
}

// shellArgv 有命令时执行 sh -c <command>，否则启动交互式 shell
// shell 可以带参数，例如 "/bin/busybox sh"
func shellArgv(ctx InitContext) ([]string, error) {
	shell := ctx.Shell
	if shell == "" {
		shell = constant.DefaultShell
	}
	argv, err := shlex.Split(shell)
	if err != nil {
		return nil, errdef.Wrapf(err, errdef.ExecFailed, "exec "+shell, "parse shell")
	}
	if len(argv) == 0 {
		return nil, errdef.New(errdef.ExecFailed, "exec", "empty shell")
	}
	if ctx.Command == "" {
		return append(argv, "-i"), nil
	}
	return append(argv, "-c", ctx.Command), nil
}

func failShell(report *os.File, err error) int {
	log.Errorf("Container shell failed: %v", err)
	if werr := errdef.WriteReport(report, err, errdef.ExecFailed); werr != nil {
		log.Errorf("Write shell report error %v", werr)
	}
	report.Close()
	return 1
}
