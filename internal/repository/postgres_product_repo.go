package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/prodman/internal/model"
)

// PostgresProductRepo はPostgreSQLを使用した商品リポジトリ。
type PostgresProductRepo struct {
	db *sql.DB
}

// NewPostgresProductRepo はPostgresProductRepoを生成する。
func NewPostgresProductRepo(db *sql.DB) *PostgresProductRepo {
	return &PostgresProductRepo{db: db}
}

// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
func (r *PostgresProductRepo) FindByID(ctx context.Context, id string) (*model.Product, error) {
	product := &model.Product{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, price, created_at, created_by
		 FROM products WHERE id = $1`,
		id,
	).Scan(&product.ID, &product.Name, &product.Description, &product.Price,
		&product.CreatedAt, &product.CreatedBy)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// FindByName は商品名で商品を検索する。見つからない場合はnilを返す。
func (r *PostgresProductRepo) FindByName(ctx context.Context, name string) (*model.Product, error) {
	product := &model.Product{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, price, created_at, created_by
		 FROM products WHERE name = $1`,
		name,
	).Scan(&product.ID, &product.Name, &product.Description, &product.Price,
		&product.CreatedAt, &product.CreatedBy)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product by name: %w", err)
	}

	return product, nil
}

// Create は商品を作成する。
func (r *PostgresProductRepo) Create(ctx context.Context, product *model.Product) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO products (id, name, description, price, created_at, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		product.ID, product.Name, product.Description, product.Price,
		product.CreatedAt, product.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}

	return nil
}

// Update は商品のname、description、priceを更新する。
// created_at、created_byはUPDATE対象に含めず、不変性をSQLレベルでも保証する。
func (r *PostgresProductRepo) Update(ctx context.Context, product *model.Product) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE products SET name = $1, description = $2, price = $3 WHERE id = $4`,
		product.Name, product.Description, product.Price, product.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("product not found: %s", product.ID)
	}
	return nil
}

// DeleteByID は指定IDの商品を削除する。
func (r *PostgresProductRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM products WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("product not found: %s", id)
	}
	return nil
}

// List は商品一覧をcreated_at昇順（同時刻はid昇順）で取得する。
// 並び順を固定することでページをまたいだ取得でも順序が安定する。
func (r *PostgresProductRepo) List(ctx context.Context, limit, offset int) ([]*model.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, price, created_at, created_by
		 FROM products
		 ORDER BY created_at, id
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*model.Product
	for rows.Next() {
		product := &model.Product{}
		if err := rows.Scan(&product.ID, &product.Name, &product.Description,
			&product.Price, &product.CreatedAt, &product.CreatedBy); err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate product rows: %w", err)
	}

	return products, nil
}

// CountAll は商品の総数を返す。
func (r *PostgresProductRepo) CountAll(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM products`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ ProductRepository = (*PostgresProductRepo)(nil)
