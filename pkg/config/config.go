// Package config 读取可选的 YAML 配置文件，与内置默认值合并
package config

import (
	"os"
	"strings"

	"github.com/google/shlex"
	"github.com/oceanweave/minidocker/pkg/constant"
	"github.com/oceanweave/minidocker/pkg/errdef"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config 运行容器所需的宿主机侧配置，命令行参数会覆盖其中的值
type Config struct {
	// 容器 rootfs 在宿主机上的路径
	Rootfs   string       `yaml:"rootfs"`
	Shell    string       `yaml:"shell"`
	Path     string       `yaml:"path"`
	ExitWord string       `yaml:"exitWord"`
	Cgroup   CgroupConfig `yaml:"cgroup"`
	Log      LogConfig    `yaml:"log"`
}

type CgroupConfig struct {
	// 为空时从 /proc/self/mountinfo 查找 cgroup2 挂载点
	Root string `yaml:"root"`
	// true 时 cgroup 创建或写入失败直接终止会话，false 时告警后以不受限方式继续运行
	Strict bool `yaml:"strict"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// json / text / auto，auto 根据 stderr 是否为终端选择
	Format string `yaml:"format"`
}

// Default 内置默认配置
func Default() Config {
	return Config{
		Rootfs:   constant.DefaultRootfs,
		Shell:    constant.DefaultShell,
		Path:     constant.DefaultPath,
		ExitWord: constant.DefaultExitWord,
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load 读取 YAML 配置并与默认值合并
// path 为默认路径且文件不存在时直接使用默认值，显式指定的文件不存在则报错
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && path == constant.DefaultConfigPath {
			logrus.Debugf("config %s not found, using defaults", path)
			return cfg, nil
		}
		return Config{}, errdef.Wrap(err, errdef.ConfigInvalid, "read config "+path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errdef.Wrap(err, errdef.ConfigInvalid, "parse config "+path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 检查必填项
func (c Config) Validate() error {
	if strings.TrimSpace(c.Rootfs) == "" {
		return errdef.New(errdef.ConfigInvalid, "validate config", "rootfs is required")
	}
	shell, err := shlex.Split(c.Shell)
	if err != nil {
		return errdef.Wrapf(err, errdef.ConfigInvalid, "validate config", "parse shell %q", c.Shell)
	}
	if len(shell) == 0 || !strings.HasPrefix(shell[0], "/") {
		return errdef.New(errdef.ConfigInvalid, "validate config", "shell %q must be an absolute path inside the rootfs", c.Shell)
	}
	if c.ExitWord == "" {
		return errdef.New(errdef.ConfigInvalid, "validate config", "exitWord must not be empty")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return errdef.Wrap(err, errdef.ConfigInvalid, "validate config")
	}
	switch c.Log.Format {
	case "json", "text", "auto":
	default:
		return errdef.New(errdef.ConfigInvalid, "validate config", "unknown log format %q", c.Log.Format)
	}
	return nil
}
