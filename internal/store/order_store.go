package store

import (
	"context"

	"boostledger/internal/models"

	"github.com/lib/pq"
)

// OrderCodeConstraint keeps order codes unique.
const OrderCodeConstraint = "orders_code_key"

const orderColumns = `id, code, description, product_ids, cost, commission, status, image, created_at`

type OrderStore struct {
	db DB
}

func NewOrderStore(db DB) *OrderStore {
	return &OrderStore{db: db}
}

func (s *OrderStore) Create(ctx context.Context, tx Execer, order models.Order) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, code, description, product_ids, cost, commission, status, image)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, order.ID, order.Code, order.Description, order.ProductIDs, order.Cost, order.Commission, order.Status, order.Image)
	return err
}

func (s *OrderStore) GetByID(ctx context.Context, q Getter, orderID string) (models.Order, error) {
	var row models.Order
	err := q.GetContext(ctx, &row, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return models.Order{}, err
	}
	return row, nil
}

func (s *OrderStore) GetForUpdate(ctx context.Context, tx Getter, orderID string) (models.Order, error) {
	var row models.Order
	err := tx.GetContext(ctx, &row, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID)
	if err != nil {
		return models.Order{}, err
	}
	return row, nil
}

func (s *OrderStore) List(ctx context.Context, status models.OrderStatus, limit, offset int) ([]models.Order, error) {
	var rows []models.Order
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, string(status), limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *OrderStore) UpdateStatus(ctx context.Context, tx Execer, orderID string, status models.OrderStatus) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE orders SET status = $1 WHERE id = $2`, status, orderID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *OrderStore) ReplaceProducts(ctx context.Context, tx Execer, orderID string, productIDs []string) error {
	_, err := tx.ExecContext(ctx, `UPDATE orders SET product_ids = $1 WHERE id = $2`, pq.StringArray(productIDs), orderID)
	return err
}

func (s *OrderStore) Exists(ctx context.Context, q Getter, orderID string) (bool, error) {
	return exists(ctx, q, "orders", orderID)
}
