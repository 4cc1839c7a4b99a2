package container

import (
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/oceanweave/minidocker/pkg/constant"
	"github.com/oceanweave/minidocker/pkg/errdef"
	log "github.com/sirupsen/logrus"
)

// 进程关系  run --> init --> shell（用户命令）
// run（minidocker run，持有 pty master，负责 cgroup 和终端转发）
// --> init（/proc/self/exe init，新 PID/Mount namespace 中的 1 号进程，负责回收子进程）
// --> shell（/proc/self/exe shell，chroot 到 rootfs 后 exec 成 /bin/sh）

// LaunchConfig 启动容器 init 进程所需的参数
type LaunchConfig struct {
	Context InitContext
	// pty slave，作为 init 进程的 fd 4
	Slave *os.File
	// init 进程接管终端之前的日志输出
	Stderr   io.Writer
	LogLevel string
}

// ExitResult init 进程的退出码，以及容器内回报的错误（ChrootFailed / ExecFailed / SupervisorFailed）
type ExitResult struct {
	ExitCode int
	Err      error
}

// ParentProcess 容器的 init 进程在宿主机侧的句柄
type ParentProcess struct {
	cmd        *exec.Cmd
	ctx        InitContext
	initRead   *os.File
	initWrite  *os.File
	reportRead *os.File
	reportW    *os.File

	started    bool
	resumeOnce sync.Once
	waitOnce   sync.Once
	result     ExitResult
}

// NewParentProcess 构建 /proc/self/exe init 命令
/*
	1. /proc/self/exe 指向当前运行的二进制，init 是隐藏子命令，会进入 RunContainerInitProcess
	2. Cloneflags 创建新的 PID 和 Mount namespace，init 进程在新 namespace 中就是 1 号进程
	3. 约定的 fd: 3 为 InitContext 管道读端，4 为 pty slave，5 为错误回报管道写端
*/
func NewParentProcess(cfg LaunchConfig) (*ParentProcess, error) {
	initRead, initWrite, err := os.Pipe()
	if err != nil {
		return nil, errdef.Wrap(err, errdef.CloneFailed, "create init pipe")
	}
	reportRead, reportWrite, err := os.Pipe()
	if err != nil {
		initRead.Close()
		initWrite.Close()
		return nil, errdef.Wrap(err, errdef.CloneFailed, "create report pipe")
	}
	cmd := exec.Command(constant.SelfExe, constant.InitCommandName)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: syscall.CLONE_NEWPID | syscall.CLONE_NEWNS,
		// run 进程异常退出时内核会杀掉 init，namespace 随之销毁
		Pdeathsig: syscall.SIGKILL,
	}
	cmd.Stderr = cfg.Stderr
	cmd.Env = os.Environ()
	if cfg.LogLevel != "" {
		cmd.Env = append(cmd.Env, constant.EnvLogLevel+"="+cfg.LogLevel)
	}
	// ExtraFiles 中第 i 个文件在子进程中的 fd 为 3+i
	cmd.ExtraFiles = []*os.File{initRead, cfg.Slave, reportWrite}
	return &ParentProcess{
		cmd:        cmd,
		ctx:        cfg.Context,
		initRead:   initRead,
		initWrite:  initWrite,
		reportRead: reportRead,
		reportW:    reportWrite,
	}, nil
}

// Launch 创建并启动容器 init 进程
func Launch(cfg LaunchConfig) (*ParentProcess, error) {
	p, err := NewParentProcess(cfg)
	if err != nil {
		return nil, err
	}
	if err := p.Start(); err != nil {
		return nil, err
	}
	return p, nil
}

// Start 启动 init 进程，失败时关闭本次创建的所有管道，不留下任何资源
// 启动成功后 init 会阻塞在读取 InitContext 上，直到 Resume 被调用
func (p *ParentProcess) Start() error {
	if err := p.cmd.Start(); err != nil {
		p.initRead.Close()
		p.initWrite.Close()
		p.reportRead.Close()
		p.reportW.Close()
		return errdef.Wrap(err, errdef.CloneFailed, "start container init process")
	}
	p.started = true
	// 子进程已经持有副本，父进程关闭自己不用的一端
	p.initRead.Close()
	p.reportW.Close()
	log.Debugf("Container init process started, pid %d", p.cmd.Process.Pid)
	return nil
}

// Pid init 进程在宿主机上的 pid
func (p *ParentProcess) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Resume 把 InitContext 发给 init 进程，相当于放开同步屏障
// 必须在 cgroup 限制写入并且 init 加入 cgroup 之后调用
func (p *ParentProcess) Resume() error {
	var err error
	p.resumeOnce.Do(func() {
		err = sendInitCommand(p.initWrite, p.ctx)
	})
	return err
}

// Kill 向 init 进程发送 SIGKILL，1 号进程退出后内核会杀掉 namespace 中的所有进程
func (p *ParentProcess) Kill() {
	if !p.started {
		return
	}
	if err := p.cmd.Process.Kill(); err != nil && err != os.ErrProcessDone {
		log.Debugf("kill container init %d error %v", p.Pid(), err)
	}
}

// Wait 等待 init 进程退出并读取容器内的错误回报，可重复调用，结果只计算一次
func (p *ParentProcess) Wait() ExitResult {
	p.waitOnce.Do(func() {
		if !p.started {
			p.result = ExitResult{ExitCode: -1}
			return
		}
		// 没有放开屏障时关闭写端，init 读到 EOF 后自行退出
		p.resumeOnce.Do(func() { p.initWrite.Close() })
		waitErr := p.cmd.Wait()
		code := exitCodeFromErr(waitErr, p.cmd.ProcessState)
		reportErr := errdef.ReadReport(p.reportRead)
		p.reportRead.Close()
		p.result = ExitResult{ExitCode: code, Err: reportErr}
		log.Debugf("Container init process %d exited with %d", p.Pid(), code)
	})
	return p.result
}

// Stop 杀掉 init 进程并等待退出，用于异常路径上的清理
func (p *ParentProcess) Stop() error {
	p.Kill()
	p.Wait()
	return nil
}
