package errors

import "fmt"

// Warning is a non-fatal condition reported alongside a completed run.
type Warning struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Subject string    `json:"subject,omitempty"` // file or diagram the warning is about
}

// String renders the warning for humans.
func (w Warning) String() string {
	if w.Subject != "" {
		return fmt.Sprintf("[%s] %s (%s)", w.Code, w.Message, w.Subject)
	}
	return fmt.Sprintf("[%s] %s", w.Code, w.Message)
}

// NewWarning creates a warning.
func NewWarning(code ErrorCode, subject, format string, args ...interface{}) Warning {
	return Warning{Code: code, Subject: subject, Message: fmt.Sprintf(format, args...)}
}

// WarningFromError downgrades an error to a warning, keeping its code.
func WarningFromError(err error, subject string) Warning {
	msg := err.Error()
	if archErr, ok := err.(*ArchError); ok {
		msg = archErr.Message
		if archErr.cause != nil {
			msg += ": " + archErr.cause.Error()
		}
	}
	return Warning{Code: CodeOf(err), Subject: subject, Message: msg}
}
