package service

import (
	"context"
	"fmt"
	"strings"

	"atelier-checkout/internal/model"
	"atelier-checkout/internal/repository"

	"github.com/rs/zerolog"
)

// InventoryService exposes read-only stock lookups for operators.
type InventoryService interface {
	// GetProduct retrieves a product with its current stock.
	GetProduct(ctx context.Context, id string) (*model.Product, error)

	// GetVariantStock retrieves a variant with its stock movement history.
	GetVariantStock(ctx context.Context, id string) (*model.VariantStockResponse, error)
}

// inventoryService implements InventoryService.
type inventoryService struct {
	productRepo repository.ProductRepository
	logger      zerolog.Logger
}

// NewInventoryService creates a new inventory service.
func NewInventoryService(productRepo repository.ProductRepository, logger zerolog.Logger) InventoryService {
	return &inventoryService{
		productRepo: productRepo,
		logger:      logger.With().Str("service", "inventory").Logger(),
	}
}

// GetProduct retrieves a product by its ID.
func (s *inventoryService) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, model.NewDomainError(model.ErrCodeMissingField, "product ID is required")
	}

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", id).Msg("failed to get product")
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	if product == nil {
		s.logger.Debug().Str("product_id", id).Msg("product not found")
		return nil, model.ErrProductNotFound
	}

	return product, nil
}

// GetVariantStock retrieves a variant and every stock movement recorded for it.
func (s *inventoryService) GetVariantStock(ctx context.Context, id string) (*model.VariantStockResponse, error) {
	if strings.TrimSpace(id) == "" {
		return nil, model.NewDomainError(model.ErrCodeMissingField, "variant ID is required")
	}

	variant, err := s.productRepo.GetVariantByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("variant_id", id).Msg("failed to get variant")
		return nil, fmt.Errorf("failed to get variant: %w", err)
	}

	if variant == nil {
		return nil, model.ErrVariantNotFound
	}

	movements, err := s.productRepo.ListMovements(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("variant_id", id).Msg("failed to list stock movements")
		return nil, fmt.Errorf("failed to list stock movements: %w", err)
	}
	if movements == nil {
		movements = []model.StockMovement{}
	}

	return &model.VariantStockResponse{Variant: *variant, Movements: movements}, nil
}
