package terminal

import (
	"bufio"
	"io"
	"strings"
	"sync"
	"syscall"

	"github.com/pkg/errors"
)

const readBufferSize = 4096

var (
	// ErrExitRequested 用户输入了退出词
	ErrExitRequested = errors.New("exit requested by user")
	// ErrShellClosed slave 的所有持有者都已关闭，容器内 shell 已退出
	ErrShellClosed = errors.New("container shell closed the terminal")
)

// Bridge 在调用方终端和 pty master 之间按行转发
// 每一轮：从 In 读取一行，追加换行写入 Master，再对 Master 做一次阻塞读，把读到的内容写到 Out
type Bridge struct {
	In       io.Reader
	Out      io.Writer
	Master   io.ReadWriter
	Sentinel string

	mu sync.Mutex
}

// Run 执行转发循环，直到用户输入退出词、输入结束或读写出错
// 任何读写错误都会结束循环，不做重试
func (b *Bridge) Run() error {
	reader := bufio.NewReader(b.In)
	buf := make([]byte, readBufferSize)
	for {
		line, err := reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return nil
			}
			return errors.Wrap(err, "read terminal input")
		}
		line = strings.TrimRight(line, "\r\n")
		if line == b.Sentinel {
			return ErrExitRequested
		}
		if _, err := b.Master.Write([]byte(line + "\n")); err != nil {
			return classify(err, "write pty master")
		}
		if err := b.readOnce(buf); err != nil {
			return err
		}
	}
}

func (b *Bridge) readOnce(buf []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.Master.Read(buf)
	if n > 0 {
		if _, werr := b.Out.Write(buf[:n]); werr != nil {
			return errors.Wrap(werr, "write terminal output")
		}
	}
	if err != nil {
		return classify(err, "read pty master")
	}
	return nil
}

// Flush 容器进程退出后，把 master 中剩余的输出全部写到 Out
// 只能在 slave 全部关闭之后调用，否则会一直阻塞
func (b *Bridge) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf := make([]byte, readBufferSize)
	for {
		n, err := b.Master.Read(buf)
		if n > 0 {
			if _, werr := b.Out.Write(buf[:n]); werr != nil {
				return errors.Wrap(werr, "write terminal output")
			}
		}
		if err != nil {
			if err = classify(err, "flush pty master"); err == ErrShellClosed {
				return nil
			}
			return err
		}
	}
}

// classify Linux 上 slave 全部关闭后读 master 返回 EIO，视为 shell 正常结束
func classify(err error, op string) error {
	if err == io.EOF || errors.Is(err, syscall.EIO) {
		return ErrShellClosed
	}
	return errors.Wrap(err, op)
}
