package errdef

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error 带类别的错误，Op 标识失败的操作，Err 为底层系统错误
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New 创建一个没有底层错误的 Error
func New(kind Kind, op string, format string, args ...interface{}) error {
	return &Error{
		Kind: kind,
		Op:   op,
		Err:  errors.Errorf(format, args...),
	}
}

// Wrap 给底层错误打上类别，err 为 nil 时返回 nil
func Wrap(err error, kind Kind, op string) error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind: kind,
		Op:   op,
		Err:  err,
	}
}

// Wrapf 同 Wrap，额外附加一段上下文信息
func Wrapf(err error, kind Kind, op string, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind: kind,
		Op:   op,
		Err:  errors.WithMessagef(err, format, args...),
	}
}

// KindOf 取出错误链上第一个 Error 的类别
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is 判断错误链上是否为指定类别
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// OpOf 取出失败的操作名称
func OpOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}
