package errdef

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// Report 子进程通过管道回报给父进程的错误，跨进程边界只能传递类别和文本
type Report struct {
	Kind    string `json:"kind"`
	Op      string `json:"op"`
	Message string `json:"message"`
}

// WriteReport 将错误编码后写入 w，非 Error 类型的错误按 fallback 类别写入
func WriteReport(w io.Writer, err error, fallback Kind) error {
	if err == nil {
		return nil
	}
	kind := KindOf(err)
	if kind == Unknown {
		kind = fallback
	}
	rep := Report{
		Kind:    kind.String(),
		Op:      OpOf(err),
		Message: err.Error(),
	}
	var e *Error
	if errors.As(err, &e) && e.Err != nil {
		rep.Message = e.Err.Error()
	}
	return json.NewEncoder(w).Encode(rep)
}

// ReadReport 从 r 读取子进程的错误回报，管道直接关闭（EOF）表示没有错误
func ReadReport(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "read error report")
	}
	if len(data) == 0 {
		return nil
	}
	var rep Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return errors.Wrapf(err, "decode error report %q", string(data))
	}
	return &Error{
		Kind: ParseKind(rep.Kind),
		Op:   rep.Op,
		Err:  errors.New(rep.Message),
	}
}
