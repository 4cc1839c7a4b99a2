package terminal

import (
	"fmt"
	"os"
	"sync"
	"syscall"

	"github.com/oceanweave/minidocker/pkg/errdef"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

const ptmxPath = "/dev/ptmx"

// Pair 一对伪终端，master 留在宿主机侧由 Bridge 读写，slave 交给容器进程作为标准输入输出
type Pair struct {
	Master    *os.File
	Slave     *os.File
	SlavePath string

	masterOnce   sync.Once
	slaveOnce    sync.Once
	masterClosed bool
	slaveClosed  bool
	mu           sync.Mutex
}

// Open 通过 devpts 分配一对 pty: 打开 /dev/ptmx，取得编号 N，解锁后打开 /dev/pts/N
func Open() (*Pair, error) {
	master, err := os.OpenFile(ptmxPath, os.O_RDWR|syscall.O_NOCTTY|syscall.O_CLOEXEC, 0)
	if err != nil {
		return nil, errdef.Wrap(err, errdef.PtyAllocationFailed, "open "+ptmxPath)
	}
	fd := int(master.Fd())
	ptyNumber, err := unix.IoctlGetInt(fd, unix.TIOCGPTN)
	if err != nil {
		master.Close()
		return nil, errdef.Wrap(err, errdef.PtyAllocationFailed, "get pty number (TIOCGPTN)")
	}
	if err := unix.IoctlSetPointerInt(fd, unix.TIOCSPTLCK, 0); err != nil {
		master.Close()
		return nil, errdef.Wrap(err, errdef.PtyAllocationFailed, "unlock pty slave (TIOCSPTLCK)")
	}
	slavePath := fmt.Sprintf("/dev/pts/%d", ptyNumber)
	slave, err := os.OpenFile(slavePath, os.O_RDWR|syscall.O_NOCTTY|syscall.O_CLOEXEC, 0)
	if err != nil {
		master.Close()
		return nil, errdef.Wrap(err, errdef.PtyAllocationFailed, "open pty slave "+slavePath)
	}
	log.Debugf("Allocated pty %s", slavePath)
	return &Pair{
		Master:    master,
		Slave:     slave,
		SlavePath: slavePath,
	}, nil
}

// InheritSize 将调用方终端的窗口大小同步到 pty，from 不是终端时什么都不做
func (p *Pair) InheritSize(from *os.File) error {
	fd := int(from.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}
	width, height, err := term.GetSize(fd)
	if err != nil {
		return err
	}
	ws := &unix.Winsize{
		Row: uint16(height),
		Col: uint16(width),
	}
	return unix.IoctlSetWinsize(int(p.Master.Fd()), unix.TIOCSWINSZ, ws)
}

// CloseSlave 关闭宿主机侧持有的 slave，容器进程启动后必须关闭，否则 shell 退出后 master 读不到 EIO
func (p *Pair) CloseSlave() error {
	var err error
	p.slaveOnce.Do(func() {
		err = p.Slave.Close()
		p.mu.Lock()
		p.slaveClosed = true
		p.mu.Unlock()
	})
	return err
}

// Close 关闭 master 和 slave，可重复调用
func (p *Pair) Close() error {
	slaveErr := p.CloseSlave()
	var err error
	p.masterOnce.Do(func() {
		err = p.Master.Close()
		p.mu.Lock()
		p.masterClosed = true
		p.mu.Unlock()
	})
	if err != nil {
		return err
	}
	return slaveErr
}

// Closed 两端是否都已关闭
func (p *Pair) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.masterClosed && p.slaveClosed
}
