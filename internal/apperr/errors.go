// Package apperr содержит таксономию ошибок ядра расписания и леджера.
//
// Сервисы возвращают *Error с конкретным Kind, транспорт переводит Kind в
// HTTP-статус. Инфраструктурные ошибки (БД, сеть) оборачиваются через
// fmt.Errorf и считаются внутренними.
package apperr

import (
	"errors"
	"fmt"
)

// Kind классифицирует ошибку.
type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
	KindForbidden  Kind = "forbidden"
	KindUpstream   Kind = "upstream"
)

// ErrInsufficientBalance возвращается, когда списание увело бы баланс в минус.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Error ошибка домена с классификацией.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is позволяет сравнивать по виду: errors.Is(err, apperr.Conflict("")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation создаёт ошибку валидации входных данных.
func Validation(format string, args ...any) error {
	return newf(KindValidation, format, args...)
}

// Conflict создаёт ошибку конфликта состояния (слот занят, недопустимый переход).
func Conflict(format string, args ...any) error {
	return newf(KindConflict, format, args...)
}

// NotFound создаёт ошибку отсутствующей сущности.
func NotFound(format string, args ...any) error {
	return newf(KindNotFound, format, args...)
}

// Forbidden создаёт ошибку авторизации на уровне сущности.
func Forbidden(format string, args ...any) error {
	return newf(KindForbidden, format, args...)
}

// Upstream оборачивает отказ внешнего коллаборатора (уведомления, платежи).
func Upstream(err error, format string, args ...any) error {
	e := newf(KindUpstream, format, args...)
	e.Err = err
	return e
}

// KindOf возвращает вид ошибки или пустую строку для внутренних ошибок.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsNotFound сообщает, что err (или обёрнутая ошибка) имеет вид NotFound.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsConflict сообщает, что err (или обёрнутая ошибка) имеет вид Conflict.
func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}

// ErrSlotUnavailable текст, который видит пользователь при гонке за слот.
const ErrSlotUnavailable = "this time is no longer available"

// SlotUnavailable конфликт при попытке занять уже занятый слот.
func SlotUnavailable() error {
	return Conflict(ErrSlotUnavailable)
}

// InsufficientBalanceError подробности нехватки минут на балансе.
type InsufficientBalanceError struct {
	StudentID int64
	TeacherID int64
	Requested int
	Available int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: student %d has %d usable minutes, lesson needs %d",
		e.StudentID, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}
