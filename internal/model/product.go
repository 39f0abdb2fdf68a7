// Package model はドメインモデルを定義する。
package model

import "time"

// Product は販売商品を表す。
// CreatedByは作成時に一度だけ設定され、以降変更されない。
// 商品の更新・削除はCreatedByのユーザーのみが行える。
type Product struct {
	ID          string
	Name        string
	Description string
	Price       int64
	CreatedAt   time.Time
	CreatedBy   string
}

// ProductNameMaxLength は商品名の最大文字数。
const ProductNameMaxLength = 50
