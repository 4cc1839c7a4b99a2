package container

import (
	"io"

	"github.com/oceanweave/minidocker/pkg/errdef"
	log "github.com/sirupsen/logrus"
)

// SupervisorState 容器 1 号进程的生命周期
// Init -> TerminalAttached -> AwaitingChild -> Reaping -> Terminal
type SupervisorState int

const (
	StateInit SupervisorState = iota
	StateTerminalAttached
	StateAwaitingChild
	StateReaping
	StateTerminal
)

func (s SupervisorState) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateTerminalAttached:
		return "TerminalAttached"
	case StateAwaitingChild:
		return "AwaitingChild"
	case StateReaping:
		return "Reaping"
	case StateTerminal:
		return "Terminal"
	}
	return "Unknown"
}

// supervisorOps 1 号进程依赖的系统操作，测试中可以替换
type supervisorOps interface {
	// AttachTerminal 新建会话，把 pty slave 设为控制终端并接到 0/1/2
	AttachTerminal() error
	// StartChild 启动 shell 进程，返回其 pid（namespace 内视角）
	StartChild() (int, error)
	// Reap 回收所有子进程直到 pid 退出，返回用于 1 号进程自身的退出码
	Reap(pid int) (int, error)
}

// Supervisor 容器内 1 号进程: 接管终端，启动 shell，回收孤儿进程，透传 shell 的退出码
type Supervisor struct {
	ops    supervisorOps
	report io.Writer
	state  SupervisorState
	trace  []SupervisorState
}

func NewSupervisor(ops supervisorOps, report io.Writer) *Supervisor {
	return &Supervisor{
		ops:    ops,
		report: report,
		state:  StateInit,
		trace:  []SupervisorState{StateInit},
	}
}

// State 当前所处状态
func (s *Supervisor) State() SupervisorState {
	return s.state
}

// Trace 经历过的全部状态，按先后顺序
func (s *Supervisor) Trace() []SupervisorState {
	return append([]SupervisorState(nil), s.trace...)
}

// Run 执行完整的生命周期并返回 1 号进程应使用的退出码
// 进入 AwaitingChild 之前的任何失败都会写入错误回报并返回 1
func (s *Supervisor) Run() int {
	if err := s.ops.AttachTerminal(); err != nil {
		return s.fail(err)
	}
	s.transition(StateTerminalAttached)

	pid, err := s.ops.StartChild()
	if err != nil {
		return s.fail(err)
	}
	s.transition(StateAwaitingChild)
	log.Debugf("Container shell process started, pid %d", pid)

	s.transition(StateReaping)
	code, err := s.ops.Reap(pid)
	if err != nil {
		log.Errorf("Reap shell process %d error %v", pid, err)
		code = 1
	}
	s.transition(StateTerminal)
	return code
}

func (s *Supervisor) transition(next SupervisorState) {
	log.Debugf("Supervisor %s -> %s", s.state, next)
	s.state = next
	s.trace = append(s.trace, next)
}

func (s *Supervisor) fail(err error) int {
	log.Errorf("Supervisor failed in state %s: %v", s.state, err)
	if s.report != nil {
		if werr := errdef.WriteReport(s.report, err, errdef.SupervisorFailed); werr != nil {
			log.Errorf("Write supervisor report error %v", werr)
		}
	}
	s.transition(StateTerminal)
	return 1
}
