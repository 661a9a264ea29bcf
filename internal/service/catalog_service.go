package service

import (
	"context"
	"fmt"

	"inventory-ledger/internal/models"
	"inventory-ledger/internal/store"
	"inventory-ledger/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogService covers the manual side of stock keeping: warehouses,
// product creation, restocking and archiving
type CatalogService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store *store.Store) *CatalogService {
	return &CatalogService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// CreateProductRequest represents a new catalog entry
type CreateProductRequest struct {
	Name         string           `json:"name"`
	WarehouseID  *int64           `json:"warehouse_id,omitempty"`
	Quantity     int              `json:"quantity"`
	CostPrice    *decimal.Decimal `json:"cost_price,omitempty"`
	SellingPrice decimal.Decimal  `json:"selling_price"`
}

// CreateWarehouse registers a stock location for principalID
func (s *CatalogService) CreateWarehouse(ctx context.Context, principalID int64, name string) (*models.Warehouse, error) {
	v := Violations{}
	required("name", name, v)
	if err := v.Err(); err != nil {
		return nil, err
	}

	w := &models.Warehouse{OwnerID: principalID, Name: name}
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		if err := tx.CreateWarehouse(ctx, w); err != nil {
			return fmt.Errorf("failed to create warehouse: %w", err)
		}
		return recordAudit(ctx, tx, principalID, models.ActionAdd, "Warehouse %q added", w.Name)
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// CreateProduct adds a product with its opening stock
func (s *CatalogService) CreateProduct(ctx context.Context, principalID int64, req *CreateProductRequest) (*models.Product, error) {
	v := Violations{}
	required("name", req.Name, v)
	nonNegativeInt("quantity", req.Quantity, v)
	nonNegativeMoney("selling_price", req.SellingPrice, v)
	optionalNonNegativeMoney("cost_price", req.CostPrice, v)
	if err := v.Err(); err != nil {
		return nil, err
	}

	product := &models.Product{
		OwnerID:      principalID,
		WarehouseID:  req.WarehouseID,
		Name:         req.Name,
		Quantity:     req.Quantity,
		SellingPrice: req.SellingPrice,
	}
	if req.CostPrice != nil {
		product.CostPrice = decimal.NewNullDecimal(*req.CostPrice)
	}

	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		if req.WarehouseID != nil {
			if _, err := tx.GetWarehouse(ctx, principalID, *req.WarehouseID); err != nil {
				return err
			}
		}
		if err := tx.CreateProduct(ctx, product); err != nil {
			return fmt.Errorf("failed to create product: %w", err)
		}
		return recordAudit(ctx, tx, principalID, models.ActionAdd,
			"Product %q added with %d unit(s)", product.Name, product.Quantity)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Product created", zap.Int64("product_id", product.ID), zap.Int64("owner_id", principalID))
	return product, nil
}

// GetProduct retrieves a product of principalID
func (s *CatalogService) GetProduct(ctx context.Context, principalID, productID int64) (*models.Product, error) {
	return s.store.GetProduct(ctx, principalID, productID)
}

// ListProducts lists the products of principalID
func (s *CatalogService) ListProducts(ctx context.Context, principalID int64) ([]models.Product, error) {
	return s.store.GetProducts(ctx, principalID)
}

// Restock adds delivered units to a product's on-hand quantity
func (s *CatalogService) Restock(ctx context.Context, principalID, productID int64, quantity int) (*models.Product, error) {
	v := Violations{}
	positiveInt("quantity", quantity, v)
	if err := v.Err(); err != nil {
		return nil, err
	}

	var product *models.Product
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		p, err := tx.GetProduct(ctx, principalID, productID)
		if err != nil {
			return err
		}
		if err := tx.IncrementStock(ctx, p.ID, quantity); err != nil {
			return err
		}
		if product, err = tx.GetProduct(ctx, principalID, productID); err != nil {
			return err
		}
		return recordAudit(ctx, tx, principalID, models.ActionEdit,
			"Product %q restocked by %d to %d", p.Name, quantity, product.Quantity)
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

// Archive withdraws a product from sale while keeping its history
func (s *CatalogService) Archive(ctx context.Context, principalID, productID int64) (*models.Product, error) {
	var product *models.Product
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		p, err := tx.GetProduct(ctx, principalID, productID)
		if err != nil {
			return err
		}
		if p.Archived() {
			product = p
			return nil
		}
		at, err := tx.ArchiveProduct(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("failed to archive product: %w", err)
		}
		p.ArchivedAt = &at
		product = p
		return recordAudit(ctx, tx, principalID, models.ActionDelete, "Product %q archived", p.Name)
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}
