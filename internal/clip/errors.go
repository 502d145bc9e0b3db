package clip

import (
	"errors"
	"fmt"
)

// ErrorKind - категория ошибки ядра подрезки
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	DegenerateBoundary
	NoGeometry
	CycleSuspected
	InstanceNotFound
	NoClippedBlocksFound
	TransactionFailed
	InvalidInput
)

func (k ErrorKind) String() string {
	switch k {
	case DegenerateBoundary:
		return "DegenerateBoundary"
	case NoGeometry:
		return "NoGeometry"
	case CycleSuspected:
		return "CycleSuspected"
	case InstanceNotFound:
		return "InstanceNotFound"
	case NoClippedBlocksFound:
		return "NoClippedBlocksFound"
	case TransactionFailed:
		return "TransactionFailed"
	case InvalidInput:
		return "InvalidInput"
	default:
		return "Unknown"
	}
}

// Error - ошибка операции ядра: категория, сообщение для пользователя и причина.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сопоставляет ошибку с образцом-категорией (Error без сообщения и причины).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Message == "" && t.Err == nil {
		return t.Kind == e.Kind
	}
	return t == e
}

// Образцы для errors.Is
var (
	ErrDegenerateBoundary   = &Error{Kind: DegenerateBoundary}
	ErrNoGeometry           = &Error{Kind: NoGeometry}
	ErrCycleSuspected       = &Error{Kind: CycleSuspected}
	ErrInstanceNotFound     = &Error{Kind: InstanceNotFound}
	ErrNoClippedBlocksFound = &Error{Kind: NoClippedBlocksFound}
	ErrTransactionFailed    = &Error{Kind: TransactionFailed}
	ErrInvalidInput         = &Error{Kind: InvalidInput}
)

// KindOf возвращает категорию ошибки или KindUnknown
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind ErrorKind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}
