// Package shared содержит таксономию ошибок, общую для доменных пакетов.
// Зависимостей, кроме стандартной библиотеки, нет.
package shared

import (
	"errors"
	"fmt"
)

// ══════════════════════════════════════════════════════════════════════════════
// БАЗОВЫЕ ВИДЫ ОШИБОК
// ══════════════════════════════════════════════════════════════════════════════

// Виды ошибок. Проверяются через errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("empty value")
	ErrNegativeValue   = errors.New("negative value")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// ErrConcurrentModification - условная запись проиграла гонку.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrExternalService - сбой Telegram API или другой внешней системы.
	ErrExternalService = errors.New("external service error")
)

// validationKinds перечисляет виды, о которых пользователю можно сказать прямо.
var validationKinds = []error{
	ErrValidation,
	ErrInvalidID,
	ErrInvalidInput,
	ErrEmptyValue,
	ErrNegativeValue,
	ErrValueOutOfRange,
	ErrInvalidFormat,
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERROR
// ══════════════════════════════════════════════════════════════════════════════

// DomainError - ошибка с контекстом: где случилась, какого вида, что сказать.
type DomainError struct {
	Domain  string // "player", "result", "leaderboard"
	Op      string
	Kind    error
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	msg := e.Domain + "." + e.Op + ": " + e.Message
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap отдаёт причину, а при её отсутствии - вид.
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is сопоставляет и вид, и причину.
func (e *DomainError) Is(target error) bool {
	return (e.Kind != nil && errors.Is(e.Kind, target)) ||
		(e.Err != nil && errors.Is(e.Err, target))
}

// NewDomainError создаёт сторожевую ошибку.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError добавляет доменный контекст к err.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// ══════════════════════════════════════════════════════════════════════════════
// СТОРОЖЕВЫЕ ОШИБКИ
// ══════════════════════════════════════════════════════════════════════════════

// Игрок
var (
	ErrPlayerNotFound      = NewDomainError("player", "Find", ErrNotFound, "player not found")
	ErrPlayerAlreadyExists = NewDomainError("player", "Create", ErrAlreadyExists, "player already exists")
	ErrInvalidUserID       = NewDomainError("player", "Validate", ErrInvalidID, "invalid Telegram user ID")
	ErrInvalidChatID       = NewDomainError("player", "Validate", ErrInvalidID, "invalid Telegram chat ID")
	ErrEmptyUsername       = NewDomainError("player", "Validate", ErrEmptyValue, "username cannot be empty")
	ErrInvalidAvg          = NewDomainError("player", "Validate", ErrValueOutOfRange, "score average cannot be above 7.0")
	ErrNegativeStat        = NewDomainError("player", "Validate", ErrNegativeValue, "statistic cannot be negative")
	ErrInvalidGames        = NewDomainError("player", "Validate", ErrValueOutOfRange, "number of games must be at least 1")
	ErrStatTooLarge        = NewDomainError("player", "Validate", ErrValueOutOfRange, "statistic cannot exceed 1000000")
	ErrStaleAggregate      = NewDomainError("player", "Update", ErrConcurrentModification, "aggregate changed since it was read")
	ErrMissingArgument     = NewDomainError("player", "ManualUpdate", ErrInvalidInput, "command expects a value")
	ErrNotANumber          = NewDomainError("player", "ManualUpdate", ErrInvalidFormat, "value is not a number")
	ErrUnknownOperation    = NewDomainError("player", "ManualUpdate", ErrInvalidInput, "unknown manual operation")
)

// Результат
var (
	ErrInvalidEdition = NewDomainError("result", "Validate", ErrValueOutOfRange, "edition must be between 0 and 1000000")
	ErrInvalidTries   = NewDomainError("result", "Validate", ErrValueOutOfRange, "tries must be between 1 and 7")
)

// Лидерборд
var (
	ErrLeaderboardEmpty = NewDomainError("leaderboard", "Build", ErrNotFound, "no players recorded in this chat")
)

// ══════════════════════════════════════════════════════════════════════════════
// ПРОВЕРКИ
// ══════════════════════════════════════════════════════════════════════════════

func IsNotFound(err error) bool      { return errors.Is(err, ErrNotFound) }
func IsAlreadyExists(err error) bool { return errors.Is(err, ErrAlreadyExists) }

// IsValidation - ошибка во входных данных пользователя.
func IsValidation(err error) bool {
	for _, kind := range validationKinds {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

func IsConcurrentModification(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService)
}
