package domain

import "errors"

var (
	// ErrInvalidInput は入力値が不正であることを表す。
	ErrInvalidInput = errors.New("入力値が不正です")
	// ErrNotFound は対象が存在しない、または呼び出し元から見えないことを表す。
	ErrNotFound = errors.New("対象が見つかりません")
	// ErrConflict は現在の状態と矛盾する操作であることを表す。
	ErrConflict = errors.New("現在の状態と競合しています")
	// ErrUnauthorized は認証情報がないことを表す。
	ErrUnauthorized = errors.New("認証が必要です")
	// ErrForbidden は操作する権限がないことを表す。
	ErrForbidden = errors.New("操作する権限がありません")
)

// ValidationError はフィールド単位の検証エラー。
// errors.Is(err, ErrInvalidInput) で判定できる。
type ValidationError struct {
	// Field は不正だったフィールド名。
	Field string
	// Message はエラーの説明。
	Message string
}

// NewValidationError は新しいValidationErrorを生成する。
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}
