package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrClaimNotFound 理赔不存在
	ErrClaimNotFound = errors.New("claim not found")
	// ErrPolicyNotFound 保单不存在
	ErrPolicyNotFound = errors.New("policy not found")
	// ErrAlreadyDecided 理赔已有终局裁决，拒绝重复写入
	ErrAlreadyDecided = errors.New("claim already decided")
	// ErrInconsistentState 内部不变式被破坏
	ErrInconsistentState = errors.New("inconsistent claim state")
	// ErrTransientCollaborator 协作方暂时性失败，可重试
	ErrTransientCollaborator = errors.New("transient collaborator failure")
)

// MalformedInputError 输入校验失败，指明问题字段
type MalformedInputError struct {
	Field  string
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input: field %q %s", e.Field, e.Reason)
}

// IsMalformedInput 判断错误是否为输入校验失败
func IsMalformedInput(err error) bool {
	var m *MalformedInputError
	return errors.As(err, &m)
}

// StageFailureError 编排阶段在耗尽重试后失败
type StageFailureError struct {
	Stage Stage
	Err   error
}

func (e *StageFailureError) Error() string {
	return fmt.Sprintf("%s stage unavailable: %v", e.Stage, e.Err)
}

func (e *StageFailureError) Unwrap() error { return e.Err }
