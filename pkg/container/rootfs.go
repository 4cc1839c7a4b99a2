package container

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/oceanweave/minidocker/pkg/constant"
	"github.com/oceanweave/minidocker/pkg/errdef"
	"github.com/oceanweave/minidocker/pkg/util"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

/*
	chroot 和 pivot_root 有什么区别？
	- pivot_root 是把整个 mount namespace 切换到新的 root 目录，旧的 root 可以被 umount 掉，要求 new_root 是一个挂载点
	- chroot 只改变当前进程（及其子进程）看到的根目录，不要求 rootfs 是挂载点，也不需要准备 put_old 目录
	这里只需要让 shell 看到解压好的 rootfs，所以使用 chroot
*/

// setUpMount 将新 mount namespace 中的挂载点全部改为 private
// systemd 加入 linux 之后，mount namespace 默认是 shared，不显式声明 private 会导致挂载事件外泄到宿主机
// 例如容器内挂载 proc 后宿主机的 /proc 被覆盖，需要手动 mount -t proc proc /proc 修复
func setUpMount() error {
	if err := unix.Mount("", "/", "", unix.MS_PRIVATE|unix.MS_REC, ""); err != nil {
		return errdef.Wrap(err, errdef.SupervisorFailed, "make mounts private")
	}
	return nil
}

// mountProc 在 rootfs 下挂载新的 proc，让 ps 等命令只看到容器内的进程
// rootfs 中没有 proc 目录或挂载失败都不影响容器运行，只记录日志
/*
	MS_NOEXEC 禁止在 /proc 目录下执行二进制文件
	MS_NOSUID 在 /proc 目录下 setuid 和 setgid 位不会生效
	MS_NODEV  禁止在 /proc 目录中访问设备文件
*/
func mountProc(rootfs string) {
	target := filepath.Join(rootfs, "proc")
	if !util.IsDir(target) {
		log.Debugf("%s not exist, skip mounting proc", target)
		return
	}
	flags := uintptr(unix.MS_NOEXEC | unix.MS_NOSUID | unix.MS_NODEV)
	if err := unix.Mount("proc", target, "proc", flags, ""); err != nil {
		log.Debugf("mount proc on %s error %v", target, err)
	}
}

// enterRootfs 切换根目录到 rootfs，并把工作目录设为新的 /
func enterRootfs(rootfs string) error {
	ok, err := util.PathExists(rootfs)
	if err != nil {
		return errdef.Wrap(err, errdef.ChrootFailed, "chroot "+rootfs)
	}
	if !ok {
		return errdef.New(errdef.ChrootFailed, "chroot "+rootfs, "rootfs does not exist")
	}
	mountProc(rootfs)
	if err := unix.Chroot(rootfs); err != nil {
		return errdef.Wrap(err, errdef.ChrootFailed, "chroot "+rootfs)
	}
	if err := unix.Chdir("/"); err != nil {
		return errdef.Wrap(errors.WithMessage(err, "chdir to / failed"), errdef.ChrootFailed, "chroot "+rootfs)
	}
	return nil
}

// setContainerEnv 清空宿主机继承下来的环境变量，只保留容器需要的几项，返回 exec 使用的 envp
func setContainerEnv(ctx InitContext) []string {
	env := constant.ContainerEnv(ctx.Path, ctx.Term)
	os.Clearenv()
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok {
			os.Setenv(k, v)
		}
	}
	return env
}
