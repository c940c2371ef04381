package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput 输入参数不合法
	ErrInvalidInput = errors.New("invalid input")
	// ErrNumericOverflow 计算过程中出现非有限值
	ErrNumericOverflow = errors.New("numeric overflow")
)

// InputError 描述具体哪个字段不合法
type InputError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *InputError) Error() string {
	if e.Value != 0 {
		return fmt.Sprintf("invalid input: %s %s (got %v)", e.Field, e.Reason, e.Value)
	}
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

// Unwrap 使 errors.Is(err, ErrInvalidInput) 成立
func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

func overflow(what string, v float64) error {
	return fmt.Errorf("%w: %s evaluated to %v", ErrNumericOverflow, what, v)
}
