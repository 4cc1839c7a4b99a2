package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/oceanweave/minidocker/pkg/config"
	"github.com/oceanweave/minidocker/pkg/container"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

// RunCommand 首字母要大写，小写表示私有（别的包无法使用）
var RunCommand = cli.Command{
	Name: "run",
	Usage: `Run a command in a new PID/mount namespace with cgroup limits
			minidocker run -c "ls -l /" -m 128 -p 50`,
	ArgsUsage: "[command]",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "cmd, c",
			Usage: "command to run inside the container, an interactive shell if empty",
		},
		cli.IntFlag{
			Name:  "mem, m",
			Usage: "memory limit in MB, 0 means unlimited",
		},
		cli.IntFlag{
			Name:  "cpu, p",
			Usage: "cpu limit in percent of one core (0-100), 0 means unlimited",
		},
		cli.StringFlag{
			Name:  "rootfs",
			Usage: "root filesystem of the container",
		},
		cli.BoolFlag{
			Name:  "strict",
			Usage: "fail instead of running unconstrained when cgroup setup fails",
		},
		cli.StringFlag{
			Name:  "exit-word",
			Usage: "input line that ends the session",
		},
	},
	/*
		这里是 run 命令执行的真正函数
		1. 合并配置文件和命令行参数
		2. 收到 SIGINT / SIGTERM 时取消会话，保证资源被释放
		3. 调用 Run function 去启动容器并等待结束
	*/
	Action: func(ctx *cli.Context) error {
		opts := runOptions(ctx, appConfig(ctx))
		log.Debugf("Run options cmd=%q mem=%d cpu=%d rootfs=%s", opts.Command, opts.MemoryMB, opts.CPUPercent, opts.Rootfs)
		sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := container.Run(sigCtx, opts); err != nil {
			return exitError(err)
		}
		return nil
	},
}

// runOptions 命令行参数优先，未指定时使用配置文件中的值
func runOptions(ctx *cli.Context, cfg config.Config) container.RunOptions {
	command := ctx.String("cmd")
	if command == "" && ctx.NArg() > 0 {
		command = strings.Join(ctx.Args(), " ")
	}
	opts := container.RunOptions{
		Command:    command,
		MemoryMB:   ctx.Int("mem"),
		CPUPercent: ctx.Int("cpu"),
		Rootfs:     cfg.Rootfs,
		Shell:      cfg.Shell,
		Path:       cfg.Path,
		ExitWord:   cfg.ExitWord,
		CgroupRoot: cfg.Cgroup.Root,
		Strict:     cfg.Cgroup.Strict || ctx.Bool("strict"),
		LogLevel:   cfg.Log.Level,
	}
	if rootfs := ctx.String("rootfs"); rootfs != "" {
		opts.Rootfs = rootfs
	}
	if word := ctx.String("exit-word"); word != "" {
		opts.ExitWord = word
	}
	return opts
}

// InitCommand 容器 init 进程的入口，由 run 进程通过 /proc/self/exe init 调用
var InitCommand = cli.Command{
	Name:   "init",
	Usage:  "Init container process, supervise the container shell. Do not call it outside",
	Hidden: true,
	Action: func(ctx *cli.Context) error {
		log.Debugf("init come on")
		if code := container.RunContainerInitProcess(); code != 0 {
			os.Exit(code)
		}
		return nil
	},
}

// ShellCommand 容器 shell 进程的入口，由 init 进程通过 /proc/self/exe shell 调用，成功时被用户命令替换
var ShellCommand = cli.Command{
	Name:   "shell",
	Usage:  "Enter the container rootfs and exec the user's command. Do not call it outside",
	Hidden: true,
	Action: func(ctx *cli.Context) error {
		if code := container.RunContainerShell(); code != 0 {
			os.Exit(code)
		}
		return nil
	},
}

// exitError 致命错误统一输出为 minidocker: <op>: <cause>，退出码为 1
func exitError(err error) error {
	return cli.NewExitError("minidocker: "+err.Error(), 1)
}
