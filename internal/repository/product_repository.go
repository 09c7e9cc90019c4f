// This file defines the product queries used by checkout and by the public
// product listing.  Products are managed elsewhere; this layer only reads.
package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/storefront/internal/model"
)

// ProductRepo encapsulates all database queries related to products.
type ProductRepo struct {
	db *sql.DB
}

func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{db: db} }

// ProductListQuery defines filters & pagination for the product listing.
// Page is 1-based.
type ProductListQuery struct {
	Category string
	Sort     string // "asc" or "desc" on created_at
	Limit    int
	Page     int
}

const productColumns = "id,user_id,name,COALESCE(description,''),category,price_cents,COALESCE(price_id,''),approved_for_sale,created_at"

// FindByIDs returns the products whose id is in ids.  Unknown ids are
// skipped; order follows the table, not the input.
func (r *ProductRepo) FindByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	if len(ids) == 0 {
		return []model.Product{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProducts(rows, len(ids))
}

// ListApproved returns one page of products approved for sale and whether
// another page follows.  One extra row is fetched to answer the latter.
func (r *ProductRepo) ListApproved(ctx context.Context, q ProductListQuery) ([]model.Product, bool, error) {
	where := []string{"approved_for_sale = ?"}
	args := []any{model.ApprovalApproved}
	if q.Category != "" {
		where = append(where, "category = ?")
		args = append(args, q.Category)
	}
	dir := "DESC"
	if strings.EqualFold(q.Sort, "asc") {
		dir = "ASC"
	}
	limit := q.Limit
	if limit < 1 {
		limit = 1
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	args = append(args, limit+1, (page-1)*limit)

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE "+strings.Join(where, " AND ")+
			" ORDER BY created_at "+dir+", id "+dir+" LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()
	out, err := scanProducts(rows, limit+1)
	if err != nil {
		return nil, false, err
	}
	if len(out) > limit {
		return out[:limit], true, nil
	}
	return out, false, nil
}

func scanProducts(rows *sql.Rows, capHint int) ([]model.Product, error) {
	out := make([]model.Product, 0, capHint)
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.Category,
			&p.PriceCents, &p.PriceID, &p.ApprovedForSale, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
