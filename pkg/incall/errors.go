package incall

import (
	"errors"
	"fmt"
)

// SetupErrorCode код ошибки SetUp
type SetupErrorCode string

const (
	SetupMissingDependency SetupErrorCode = "MISSING_DEPENDENCY"
	SetupCallListMismatch  SetupErrorCode = "CALL_LIST_MISMATCH"
	SetupHostMismatch      SetupErrorCode = "HOST_MISMATCH"
	SetupAudioModeMismatch SetupErrorCode = "AUDIO_MODE_MISMATCH"
)

// ErrMissingDependency обязательная зависимость не передана
var ErrMissingDependency = errors.New("missing dependency")

// SetupError ошибка подключения сессии
type SetupError struct {
	Code    SetupErrorCode
	Message string
	Cause   error
}

func (e *SetupError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[SETUP:%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[SETUP:%s] %s", e.Code, e.Message)
}

func (e *SetupError) Unwrap() error {
	return e.Cause
}

func newSetupError(code SetupErrorCode, message string, cause error) *SetupError {
	return &SetupError{Code: code, Message: message, Cause: cause}
}

// IsSetupError проверяет что err содержит SetupError с кодом code
func IsSetupError(err error, code SetupErrorCode) bool {
	var se *SetupError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}
