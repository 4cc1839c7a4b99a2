package container

import (
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/oceanweave/minidocker/pkg/constant"
	"github.com/oceanweave/minidocker/pkg/errdef"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// RunContainerInitProcess 容器 init 进程的入口，返回值作为进程退出码
/*
	这里的代码是在容器内部执行的，执行到这里时新的 PID/Mount namespace 已经创建好，当前进程就是容器中的 1 号进程
	1. 读取 fd 3 上的 InitContext，父进程在 cgroup 配置完成之前不会写入，因此这里天然是一个同步屏障
	2. 接管 pty slave 作为控制终端
	3. 再 fork 出 shell 进程，由它 chroot 并 exec 用户命令，自己留下来负责回收僵尸进程
	1 号进程不能直接 exec 成用户命令: 用户的 shell 不会回收被托孤的进程，也不会处理发给 1 号进程的信号
*/
func RunContainerInitProcess() int {
	report := os.NewFile(constant.InitReportFd, "report-pipe")
	ctx, err := readInitContext(constant.InitPipeFd)
	if err != nil {
		// 父进程在写入之前放弃了启动（比如 cgroup 严格模式失败），直接退出
		log.Debugf("Container init quit before start: %v", err)
		report.Close()
		return 1
	}
	log.Debugf("Init context %+v", ctx)
	ops := &initOps{
		ctx:    ctx,
		slave:  os.NewFile(constant.InitSlaveFd, "pty-slave"),
		report: report,
	}
	code := NewSupervisor(ops, report).Run()
	report.Close()
	return code
}

// initOps 1 号进程在真实系统上的实现
type initOps struct {
	ctx    InitContext
	slave  *os.File
	report *os.File
}

func (o *initOps) AttachTerminal() error {
	if err := setUpMount(); err != nil {
		return err
	}
	if _, err := unix.Setsid(); err != nil {
		return errdef.Wrap(err, errdef.SupervisorFailed, "setsid")
	}
	fd := int(o.slave.Fd())
	if err := unix.IoctlSetInt(fd, unix.TIOCSCTTY, 0); err != nil {
		return errdef.Wrap(err, errdef.SupervisorFailed, "set controlling terminal")
	}
	for _, target := range []int{0, 1, 2} {
		if err := unix.Dup3(fd, target, 0); err != nil {
			return errdef.Wrap(errors.WithMessagef(err, "dup slave to fd %d", target), errdef.SupervisorFailed, "attach terminal")
		}
	}
	o.slave.Close()
	return nil
}

// StartChild 通过 /proc/self/exe shell 启动 shell 进程
// shell 进程自己是会话首进程，并以 fd 0（pty slave）作为控制终端，这样 Ctrl-C 等作业控制只作用在用户命令上
func (o *initOps) StartChild() (int, error) {
	readPipe, writePipe, err := os.Pipe()
	if err != nil {
		return 0, errdef.Wrap(err, errdef.CloneFailed, "create shell pipe")
	}
	cmd := exec.Command(constant.SelfExe, constant.ShellCommandName)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
		Ctty:    0,
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{readPipe, o.report}
	if err := cmd.Start(); err != nil {
		readPipe.Close()
		writePipe.Close()
		return 0, errdef.Wrap(err, errdef.CloneFailed, "start container shell process")
	}
	readPipe.Close()
	if err := handOff(writePipe, o.report, o.ctx); err != nil {
		_ = cmd.Process.Kill()
		return 0, err
	}
	return cmd.Process.Pid, nil
}

// handOff 把 InitContext 交给 shell 进程，成功后才关闭 1 号进程持有的回报管道
// 失败时回报管道保持打开，Supervisor 还要通过它上报 SupervisorFailed
// shell 进程持有回报管道即可，1 号进程关闭自己的副本，父进程才能在所有进程退出后读到 EOF
func handOff(w io.WriteCloser, report io.Closer, ctx InitContext) error {
	if err := sendInitCommand(w, ctx); err != nil {
		return errdef.Wrap(err, errdef.SupervisorFailed, "send shell context")
	}
	if err := report.Close(); err != nil {
		log.Debugf("close report pipe error %v", err)
	}
	return nil
}

// Reap 作为 1 号进程回收所有退出的子进程，直到 shell 进程退出
// 收到的 SIGINT / SIGTERM / SIGHUP 转发给 shell 进程
func (o *initOps) Reap(pid int) (int, error) {
	sigs := make(chan os.Signal, 4)
	signal.Notify(sigs, unix.SIGINT, unix.SIGTERM, unix.SIGHUP)
	defer signal.Stop(sigs)
	done := make(chan struct{})
	defer close(done)
	go forwardSignals(pid, sigs, done)

	for {
		var ws unix.WaitStatus
		wpid, err := unix.Wait4(-1, &ws, 0, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 1, errors.Wrap(err, "wait4")
		}
		if wpid != pid {
			log.Debugf("Reaped orphan process %d", wpid)
			continue
		}
		return statusCode(ws), nil
	}
}

func forwardSignals(pid int, sigs <-chan os.Signal, done <-chan struct{}) {
	for {
		select {
		case sig := <-sigs:
			s, ok := sig.(syscall.Signal)
			if !ok {
				continue
			}
			if err := unix.Kill(pid, s); err != nil {
				log.Debugf("forward signal %v to %d error %v", s, pid, err)
			}
		case <-done:
			return
		}
	}
}
