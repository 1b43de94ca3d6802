package services

import (
	"context"
	"fmt"
	"strings"

	"boostledger/internal/db"
	"boostledger/internal/models"
	"boostledger/internal/store"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// CatalogService owns orders: the cost and product list every boost is
// sized from.
type CatalogService struct {
	deps Deps
}

func NewCatalogService(deps Deps) *CatalogService {
	return &CatalogService{deps: deps.withDefaults()}
}

type CreateOrderRequest struct {
	Code        string
	Description string
	ProductIDs  []string
	Cost        int64
	Commission  int64
	Image       string
}

func (s *CatalogService) CreateOrder(ctx context.Context, actorID string, req CreateOrderRequest) (models.Order, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return models.Order{}, ErrInvalidOrderCode
	}
	products := cleanProducts(req.ProductIDs)
	if len(products) == 0 {
		return models.Order{}, ErrEmptyProductList
	}
	if req.Cost <= 0 || req.Commission < 0 {
		return models.Order{}, ErrInvalidAmount
	}
	order := models.Order{
		Code:        code,
		Description: strings.TrimSpace(req.Description),
		ProductIDs:  products,
		Cost:        req.Cost,
		Commission:  req.Commission,
		Status:      models.OrderOpen,
		Image:       optional(req.Image),
	}
	err := s.deps.TxRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		id, err := s.deps.nextID(ctx, tx, s.deps.Stores.Orders.Exists)
		if err != nil {
			return fmt.Errorf("order id: %w", err)
		}
		order.ID = id
		order.CreatedAt = s.deps.Now()
		if err := s.deps.Stores.Orders.Create(ctx, tx, order); err != nil {
			if db.IsUniqueViolation(err, store.OrderCodeConstraint) {
				return ErrDuplicateOrderCode
			}
			return err
		}
		return s.deps.audit(ctx, tx, actorID, "create", "order", order.ID, map[string]any{
			"code":     order.Code,
			"cost":     order.Cost,
			"products": len(order.ProductIDs),
		})
	})
	if err != nil {
		return models.Order{}, err
	}
	s.deps.Logger.Info("order created", zap.String("order_id", order.ID), zap.String("code", order.Code))
	return order, nil
}

// lookupInTx is the read boosts are sized from.
func (s *CatalogService) lookupInTx(ctx context.Context, tx *sqlx.Tx, orderID string) (models.Order, error) {
	order, err := s.deps.Stores.Orders.GetByID(ctx, tx, orderID)
	if err != nil {
		return models.Order{}, notFound(err, ErrOrderNotFound)
	}
	return order, nil
}

func (s *CatalogService) GetOrder(ctx context.Context, orderID string) (models.Order, error) {
	var order models.Order
	err := s.deps.TxRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		order, err = s.lookupInTx(ctx, tx, orderID)
		return err
	})
	return order, err
}

func (s *CatalogService) ListOrders(ctx context.Context, status models.OrderStatus, limit, offset int) ([]models.Order, error) {
	rows, err := s.deps.Stores.Orders.List(ctx, status, limit, offset)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.Order{}
	}
	return rows, nil
}

func (s *CatalogService) CompleteOrder(ctx context.Context, actorID, orderID string) (models.Order, error) {
	var order models.Order
	err := s.deps.TxRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		order, err = s.deps.Stores.Orders.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			return notFound(err, ErrOrderNotFound)
		}
		if order.Status == models.OrderCompleted {
			return ErrOrderClosed
		}
		if _, err := s.deps.Stores.Orders.UpdateStatus(ctx, tx, orderID, models.OrderCompleted); err != nil {
			return err
		}
		order.Status = models.OrderCompleted
		return s.deps.audit(ctx, tx, actorID, "complete", "order", orderID, map[string]any{})
	})
	if err != nil {
		return models.Order{}, err
	}
	s.deps.Logger.Info("order completed", zap.String("order_id", orderID), zap.String("actor_id", actorID))
	return order, nil
}

// ReplaceProducts rewrites an order's product list. Once a boost references
// the order its list is frozen and the call fails with ErrOrderLocked.
func (s *CatalogService) ReplaceProducts(ctx context.Context, actorID, orderID string, productIDs []string) (models.Order, error) {
	products := cleanProducts(productIDs)
	if len(products) == 0 {
		return models.Order{}, ErrEmptyProductList
	}
	var order models.Order
	err := s.deps.TxRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		order, err = s.deps.Stores.Orders.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			return notFound(err, ErrOrderNotFound)
		}
		count, err := s.deps.Stores.Boosts.CountByOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrOrderLocked
		}
		if err := s.deps.Stores.Orders.ReplaceProducts(ctx, tx, orderID, products); err != nil {
			return err
		}
		order.ProductIDs = products
		return s.deps.audit(ctx, tx, actorID, "replace_products", "order", orderID, map[string]any{"products": products})
	})
	if err != nil {
		return models.Order{}, err
	}
	return order, nil
}

func cleanProducts(productIDs []string) []string {
	out := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
