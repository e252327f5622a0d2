// Package errors 提供统一的错误定义
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用/校验错误 (1xxx)
	CodeSuccess       ErrorCode = "0"
	CodeUnknown       ErrorCode = "1000"
	CodeInvalidParam  ErrorCode = "1001"
	CodeForbidden     ErrorCode = "1003"
	CodeNotFound      ErrorCode = "1004"
	CodeInternalError ErrorCode = "1007"

	// 资源错误 (3xxx)
	CodeBookNotFound    ErrorCode = "3001"
	CodeChapterNotFound ErrorCode = "3002"
	CodeJobNotFound     ErrorCode = "3003"

	// 状态冲突 (41xx)：章节状态机已被其他进程推进，同一调用方不应原样重试
	CodeChapterNotOpen    ErrorCode = "4101"
	CodeInvalidTransition ErrorCode = "4102"
	CodeBookBusy          ErrorCode = "4103"

	// 数据未就绪 (42xx)：延迟后可重试
	CodeNoEmotionData ErrorCode = "4201"

	// 计算退化 (43xx)：上游输入有问题，重试无意义
	CodeDegenerateVector ErrorCode = "4301"
	CodePromptTooLarge   ErrorCode = "4302"

	// 外部服务瞬时错误 (51xx)：带退避的有界重试
	CodeGenerationUnavailable ErrorCode = "5101"
	CodeClassifierUnavailable ErrorCode = "5102"

	// 外部服务永久错误 (52xx)：立即上抛，不重试
	CodeContentPolicy     ErrorCode = "5201"
	CodeMalformedResponse ErrorCode = "5202"

	// 基础设施错误 (55xx)
	CodeDatabaseError ErrorCode = "5501"
	CodeCacheError    ErrorCode = "5502"
)

// AppError 应用错误
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Retryable  bool      `json:"-"`
	Err        error     `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 支持 errors.Is 按错误码匹配
func (e *AppError) Is(target error) bool {
	var appErr *AppError
	if !errors.As(target, &appErr) {
		return false
	}
	return e.Code == appErr.Code
}

// WithDetail 返回带详细信息的副本（不修改预定义单例）
func (e *AppError) WithDetail(detail string) *AppError {
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithError 返回带底层错误的副本
func (e *AppError) WithError(err error) *AppError {
	clone := *e
	clone.Err = err
	return &clone
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Retryable:  codeRetryable(code),
	}
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	e := New(code, message)
	e.Err = err
	return e
}

// codeToHTTPStatus 错误码转 HTTP 状态码
func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidParam:
		return http.StatusBadRequest
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound, CodeBookNotFound, CodeChapterNotFound, CodeJobNotFound:
		return http.StatusNotFound
	case CodeChapterNotOpen, CodeInvalidTransition, CodeBookBusy:
		return http.StatusConflict
	case CodeNoEmotionData:
		return http.StatusServiceUnavailable
	case CodeDegenerateVector, CodeContentPolicy:
		return http.StatusUnprocessableEntity
	case CodePromptTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeGenerationUnavailable, CodeClassifierUnavailable:
		return http.StatusServiceUnavailable
	case CodeMalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// codeRetryable 判断错误码是否可重试
// 状态冲突与计算退化类错误重试无意义；外部瞬时错误与数据未就绪可重试。
func codeRetryable(code ErrorCode) bool {
	switch code {
	case CodeNoEmotionData, CodeGenerationUnavailable, CodeClassifierUnavailable,
		CodeBookBusy, CodeCacheError:
		return true
	default:
		return false
	}
}

// 预定义错误
var (
	ErrInvalidParam  = New(CodeInvalidParam, "invalid parameter")
	ErrForbidden     = New(CodeForbidden, "forbidden")
	ErrNotFound      = New(CodeNotFound, "resource not found")
	ErrInternalError = New(CodeInternalError, "internal server error")

	ErrBookNotFound    = New(CodeBookNotFound, "book not found")
	ErrChapterNotFound = New(CodeChapterNotFound, "chapter not found")
	ErrJobNotFound     = New(CodeJobNotFound, "job not found")

	ErrChapterNotOpen    = New(CodeChapterNotOpen, "chapter is not open")
	ErrInvalidTransition = New(CodeInvalidTransition, "invalid chapter state transition")
	ErrBookBusy          = New(CodeBookBusy, "another transition holds the book lease")

	ErrNoEmotionData    = New(CodeNoEmotionData, "no emotion data attached to any turn")
	ErrDegenerateVector = New(CodeDegenerateVector, "target feature vector is zero")
	ErrPromptTooLarge   = New(CodePromptTooLarge, "user message exceeds prompt budget")

	ErrGenerationUnavailable = New(CodeGenerationUnavailable, "generation service unavailable")
	ErrClassifierUnavailable = New(CodeClassifierUnavailable, "classifier service unavailable")
	ErrContentPolicy         = New(CodeContentPolicy, "generation rejected by content policy")
	ErrMalformedResponse     = New(CodeMalformedResponse, "malformed response from external service")

	ErrDatabaseError = New(CodeDatabaseError, "database error")
	ErrCacheError    = New(CodeCacheError, "cache error")
)

// IsAppError 检查是否为 AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError 将错误转换为 AppError
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeUnknown, "unknown error")
}

// IsCode 检查错误是否携带指定错误码
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}

// IsRetryable 检查错误是否可重试
// 非 AppError 的未知错误一律不重试。
func IsRetryable(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Retryable
}
