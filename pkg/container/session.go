package container

import (
	"sync"

	"github.com/oceanweave/minidocker/pkg/errdef"
	log "github.com/sirupsen/logrus"
)

type cleanupStep struct {
	name string
	fn   func() error
}

// Session 记录一次容器运行中申请的资源，退出时按申请的相反顺序释放
// 无论正常退出、出错还是被信号中断，Close 都只会执行一次
type Session struct {
	steps []cleanupStep
	once  sync.Once
	mu    sync.Mutex
	err   error
}

// Defer 注册一个释放动作，后注册的先执行
func (s *Session) Defer(name string, fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, cleanupStep{name: name, fn: fn})
}

// Close 依次执行所有释放动作，某一步失败不会中断后面的步骤
// 返回第一个失败，类别为 CleanupFailed
func (s *Session) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		steps := s.steps
		s.steps = nil
		s.mu.Unlock()
		for i := len(steps) - 1; i >= 0; i-- {
			step := steps[i]
			if err := step.fn(); err != nil {
				log.Errorf("Cleanup %s error %v", step.name, err)
				if s.err == nil {
					s.err = err
					if errdef.KindOf(err) != errdef.CleanupFailed {
						s.err = errdef.Wrap(err, errdef.CleanupFailed, step.name)
					}
				}
				continue
			}
			log.Debugf("Cleanup %s done", step.name)
		}
	})
	return s.err
}
