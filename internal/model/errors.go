// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, product, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeProductNotFound    = "PRODUCT_NOT_FOUND"
	ErrCodePermissionDenied   = "PERMISSION_DENIED"
	ErrCodeDuplicateName      = "DUPLICATE_NAME"
	ErrCodeInvalidPrice       = "INVALID_PRICE"
	ErrCodeValidationError    = "VALIDATION_ERROR"
	ErrCodeInvalidPagination  = "INVALID_PAGINATION"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeDuplicateEmail     = "DUPLICATE_EMAIL"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
)

// NewProductNotFoundError は商品未検出エラーを生成する。
func NewProductNotFoundError(productID string) *APIError {
	return &APIError{
		Code:     ErrCodeProductNotFound,
		Message:  fmt.Sprintf("指定された商品が見つかりません: %s", productID),
		Category: "product",
		Action:   "商品IDを確認してください。",
	}
}

// NewPermissionDeniedError は所有者以外による更新・削除の拒否エラーを生成する。
func NewPermissionDeniedError() *APIError {
	return &APIError{
		Code:     ErrCodePermissionDenied,
		Message:  "この商品を変更する権限がありません。",
		Category: "auth",
		Action:   "商品の更新・削除は作成したユーザーのみが行えます。",
	}
}

// NewDuplicateNameError は商品名の重複エラーを生成する。
func NewDuplicateNameError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateName,
		Message:  fmt.Sprintf("この商品名は既に登録されています: %s", name),
		Category: "validation",
		Action:   "別の商品名を指定してください。",
	}
}

// NewInvalidPriceError は負の価格エラーを生成する。
func NewInvalidPriceError(price int64) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPrice,
		Message:  fmt.Sprintf("商品の価格に負の値は指定できません: %d", price),
		Category: "validation",
		Action:   "0以上の価格を指定してください。",
	}
}

// NewValidationError は入力不正エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationError,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewInvalidPaginationError はページネーションパラメータ不正エラーを生成する。
func NewInvalidPaginationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPagination,
		Message:  fmt.Sprintf("無効なページ指定です: %s", reason),
		Category: "validation",
		Action:   "pageは1以上、page_sizeは1〜100の範囲で指定してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidCredentialsError は認証情報不正エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "認証情報を確認して再度お試しください。",
	}
}

// NewDuplicateEmailError はメールアドレス重複エラーを生成する。
func NewDuplicateEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "登録済みのアカウントでログインしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
