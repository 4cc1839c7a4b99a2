package cmd

import (
	"io"
	"os"

	"github.com/oceanweave/minidocker/pkg/config"
	"github.com/oceanweave/minidocker/pkg/constant"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"golang.org/x/term"
)

const configMetadataKey = "config"

// GlobalFlags 所有子命令共用的参数
var GlobalFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "config",
		Usage: "path of the YAML config file",
		Value: constant.DefaultConfigPath,
	},
	cli.StringFlag{
		Name:   "log-level",
		Usage:  "log level: debug, info, warn, error",
		EnvVar: constant.EnvLogLevel,
	},
	cli.StringFlag{
		Name:  "log-format",
		Usage: "log format: json, text or auto",
	},
}

// Before 加载配置并初始化日志
// init / shell 由 run 进程重新执行，不读取配置文件，日志级别通过环境变量传入
func Before(ctx *cli.Context) error {
	cfg := config.Default()
	switch ctx.Args().First() {
	case InitCommand.Name, ShellCommand.Name:
	default:
		loaded, err := config.Load(ctx.String("config"))
		if err != nil {
			return exitError(err)
		}
		cfg = loaded
	}
	if level := ctx.String("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if format := ctx.String("log-format"); format != "" {
		cfg.Log.Format = format
	}
	if err := cfg.Validate(); err != nil {
		return exitError(err)
	}
	if err := SetupLogging(cfg.Log, os.Stderr); err != nil {
		return exitError(err)
	}
	if ctx.App.Metadata == nil {
		ctx.App.Metadata = map[string]interface{}{}
	}
	ctx.App.Metadata[configMetadataKey] = cfg
	return nil
}

// SetupLogging 日志统一输出到 stderr，stdout 留给容器的终端输出
// auto 格式下 stderr 是终端时使用文本格式，否则使用 JSON
func SetupLogging(cfg config.LogConfig, out io.Writer) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetOutput(out)
	switch cfg.Format {
	case "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
		} else {
			log.SetFormatter(&log.JSONFormatter{})
		}
	}
	return nil
}

func appConfig(ctx *cli.Context) config.Config {
	if cfg, ok := ctx.App.Metadata[configMetadataKey].(config.Config); ok {
		return cfg
	}
	return config.Default()
}
