package container

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/oceanweave/minidocker/pkg/cglimit"
	"github.com/oceanweave/minidocker/pkg/cglimit/types"
	"github.com/oceanweave/minidocker/pkg/terminal"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// 进程关系  run --> init --> shell（用户命令）
// run 进程: 分配 pty，创建 namespace，配置 cgroup，然后在用户终端和 pty master 之间转发输入输出
// 所有申请的资源都登记在 Session 上，任何一条退出路径都会按相反顺序释放

// 终端默认的 VEOF 字符，行首输入时读端得到 EOF
const eofChar = 0x04

// RunOptions 一次 minidocker run 的全部参数，已经合并了配置文件和命令行
type RunOptions struct {
	Command    string
	MemoryMB   int
	CPUPercent int

	Rootfs     string
	Shell      string
	Path       string
	ExitWord   string
	CgroupRoot string
	// cgroup 失败时直接退出，而不是告警后不受限运行
	Strict   bool
	LogLevel string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// OnStarted cgroup 就绪、容器开始执行用户命令之前调用
	OnStarted func(ContainerProcess)
}

// Container 一次容器会话
type Container struct {
	opts    RunOptions
	session *Session
	pty     *terminal.Pair
	parent  *ParentProcess
	cgroup  *cglimit.CgroupManager
	process ContainerProcess
}

func NewContainer(opts RunOptions) *Container {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return &Container{
		opts:    opts,
		session: &Session{},
	}
}

// Run 运行容器直到用户输入退出词、输入结束、shell 退出或 ctx 被取消
func Run(ctx context.Context, opts RunOptions) error {
	return NewContainer(opts).Run(ctx)
}

// Process 容器的运行信息，Run 启动容器之后才有值
func (c *Container) Process() ContainerProcess {
	return c.process
}

// Terminal 本次会话使用的 pty
func (c *Container) Terminal() *terminal.Pair {
	return c.pty
}

// Run 完整执行一次容器会话
/*
	1. 校验资源限制，分配 pty
	2. 启动 init 进程（新 PID/Mount namespace），关闭 run 进程持有的 slave
	3. 创建 cgroup，写入限制并把 init 加入 cgroup
	4. 放开同步屏障，init 此时才会启动 shell，保证用户命令从第一条指令起就受到限制
	5. 转发终端输入输出，等待容器结束
	6. 按相反顺序释放: 杀掉并回收 init、删除 cgroup、关闭 pty
*/
func (c *Container) Run(ctx context.Context) (err error) {
	res, err := types.NewResourceSpec(c.opts.Command, c.opts.MemoryMB, c.opts.CPUPercent)
	if err != nil {
		return err
	}
	log.Debugf("Run command %q, memory %dMB, cpu %d%%", res.Command(), res.MemoryLimitMB(), res.CPULimitPercent())

	defer func() {
		cerr := c.session.Close()
		if cerr == nil {
			return
		}
		if err == nil {
			err = cerr
			return
		}
		log.Errorf("Cleanup after failure error %v", cerr)
	}()

	pair, err := terminal.Open()
	if err != nil {
		return err
	}
	c.pty = pair
	c.session.Defer("close pty", pair.Close)
	if f, ok := c.opts.Stdin.(*os.File); ok {
		if err := pair.InheritSize(f); err != nil {
			log.Debugf("Inherit terminal size error %v", err)
		}
	}

	parent, err := Launch(LaunchConfig{
		Context: InitContext{
			Rootfs:  c.opts.Rootfs,
			Command: res.Command(),
			Shell:   c.opts.Shell,
			Path:    c.opts.Path,
			Term:    os.Getenv("TERM"),
		},
		Slave:    pair.Slave,
		Stderr:   c.opts.Stderr,
		LogLevel: c.opts.LogLevel,
	})
	if err != nil {
		return err
	}
	c.parent = parent
	c.session.Defer("stop container", parent.Stop)
	// init 进程已经持有 slave，run 进程关闭自己的副本，shell 退出后 master 才能读到 EIO
	if err := pair.CloseSlave(); err != nil {
		log.Debugf("Close pty slave error %v", err)
	}

	c.process = ContainerProcess{
		Id:          GenerateContainerID(),
		Pid:         parent.Pid(),
		Command:     res.Command(),
		Rootfs:      c.opts.Rootfs,
		SlavePath:   pair.SlavePath,
		CreatedTime: time.Now().Format(CreatedTimeFormat),
	}
	if err := c.setupCgroup(res, parent.Pid()); err != nil {
		return err
	}
	logger := log.WithFields(c.process.Fields())
	logger.Infof("Container started, constrained %v", c.process.Constrained)
	if c.opts.OnStarted != nil {
		c.opts.OnStarted(c.process)
	}

	if err := parent.Resume(); err != nil {
		// init 已经退出，错误原因会在 Wait 时从回报管道中读到
		logger.Warnf("Resume container init error %v", err)
	}
	return c.attach(ctx, logger)
}

// setupCgroup 创建 cgroup 并加上资源限制
// 失败时严格模式直接返回错误，否则告警并以不受限方式继续运行
func (c *Container) setupCgroup(res types.ResourceSpec, pid int) error {
	cg := cglimit.NewCgroupManager(c.opts.CgroupRoot, pid)
	c.cgroup = cg
	c.process.CgroupPath = cg.Path
	if err := cg.Create(); err != nil {
		return c.degrade(err)
	}
	// 只能在 init 进程完全退出之后删除 cgroup 目录
	c.session.Defer("destroy cgroup", func() error {
		_ = c.parent.Stop()
		return cg.Destroy()
	})
	if err := cg.Set(res); err != nil {
		return c.degrade(err)
	}
	if err := cg.Apply(pid); err != nil {
		return c.degrade(err)
	}
	c.process.Constrained = true
	return nil
}

// endInput 向容器终端发送 EOF 字符（^D），读取标准输入的命令和交互式 shell 都会看到输入结束
func (c *Container) endInput() {
	if _, err := c.pty.Master.Write([]byte{eofChar}); err != nil {
		log.Debugf("Send EOF to container terminal error %v", err)
	}
}

func (c *Container) degrade(err error) error {
	if c.opts.Strict {
		return err
	}
	log.Warnf("Cgroup setup failed, continue without resource limits: %v", err)
	fmt.Fprintf(c.opts.Stderr, "minidocker: warning: %v; the container runs WITHOUT resource limits\n", err)
	return nil
}

// attach 在用户终端和 pty master 之间转发，同时等待容器退出和外部信号
func (c *Container) attach(ctx context.Context, logger *log.Entry) error {
	bridge := &terminal.Bridge{
		In:       c.opts.Stdin,
		Out:      c.opts.Stdout,
		Master:   c.pty.Master,
		Sentinel: c.opts.ExitWord,
	}
	bridgeDone := make(chan error, 1)
	go func() {
		bridgeDone <- bridge.Run()
	}()
	waitDone := make(chan ExitResult, 1)
	go func() {
		waitDone <- c.parent.Wait()
	}()

	var result ExitResult
	input := bridgeDone
wait:
	for {
		select {
		case berr := <-input:
			input = nil
			if berr == nil {
				// 输入结束不代表命令结束，继续转发输出直到 shell 自己退出
				logger.Debug("Terminal input closed, waiting for container to exit")
				c.endInput()
				go func() {
					if err := bridge.Flush(); err != nil {
						logger.Debugf("Drain container output error %v", err)
					}
				}()
				continue
			}
			switch {
			case errors.Is(berr, terminal.ErrExitRequested):
				logger.Info("Exit word received, stopping container")
			case errors.Is(berr, terminal.ErrShellClosed):
				logger.Debug("Container shell closed the terminal")
			default:
				logger.Warnf("Terminal relay stopped: %v", berr)
			}
			if !errors.Is(berr, terminal.ErrShellClosed) {
				c.parent.Kill()
			}
			result = <-waitDone
			break wait
		case result = <-waitDone:
			break wait
		case <-ctx.Done():
			logger.Infof("Session interrupted (%v), stopping container", ctx.Err())
			c.parent.Kill()
			result = <-waitDone
			break wait
		}
	}

	if err := bridge.Flush(); err != nil {
		logger.Debugf("Flush container output error %v", err)
	}
	if result.Err != nil {
		return result.Err
	}
	if result.ExitCode != 0 {
		logger.Infof("Container exited with status %d", result.ExitCode)
	} else {
		logger.Info("Container exited")
	}
	return nil
}
