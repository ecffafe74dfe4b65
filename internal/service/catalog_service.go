package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/redisclient"
	"storefront/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const featuredItems = 3

// CatalogService serves the item catalog and admin item edits
type CatalogService struct {
	store          ItemStore
	stock          StockCache
	eventPublisher EventPublisher
	pageSize       int
	logger         *zap.Logger
	now            func() time.Time
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store ItemStore, stock StockCache, eventPublisher EventPublisher, pageSize int) *CatalogService {
	return &CatalogService{
		store:          store,
		stock:          stock,
		eventPublisher: eventPublisher,
		pageSize:       pageSize,
		logger:         util.GetLogger(),
		now:            time.Now,
	}
}

// ItemRequest is the admin create/update form
type ItemRequest struct {
	Title       string          `json:"title" binding:"required,max=100"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url"`
	Quantity    int             `json:"quantity" binding:"min=0"`
}

// ItemPage is one page of the catalog
type ItemPage struct {
	Items    []models.Item `json:"items"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Total    int           `json:"total"`
}

// StockLevel reports the current stock of an item and where it came from
type StockLevel struct {
	ItemID   int64  `json:"item_id"`
	Quantity int    `json:"quantity"`
	Source   string `json:"source"`
}

// ListItems returns one page of the catalog
func (s *CatalogService) ListItems(ctx context.Context, page int) (*ItemPage, error) {
	if page < 1 {
		page = 1
	}
	limit, offset := pageOffset(page, s.pageSize)

	items, err := s.store.ListItems(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	total, err := s.store.CountItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count items: %w", err)
	}

	return &ItemPage{Items: items, Page: page, PageSize: s.pageSize, Total: total}, nil
}

// Featured returns the first few catalog items for the front page
func (s *CatalogService) Featured(ctx context.Context) ([]models.Item, error) {
	items, err := s.store.ListItems(ctx, featuredItems, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list featured items: %w", err)
	}
	return items, nil
}

// GetItem retrieves an item by ID
func (s *CatalogService) GetItem(ctx context.Context, itemID int64) (*models.Item, error) {
	return s.store.GetItemByID(ctx, itemID)
}

// GetStock reads the stock projection, falling back to the database
// when the item is not tracked in Redis or Redis is unavailable.
func (s *CatalogService) GetStock(ctx context.Context, itemID int64) (*StockLevel, error) {
	quantity, err := s.stock.GetStock(ctx, itemID)
	if err == nil {
		return &StockLevel{ItemID: itemID, Quantity: quantity, Source: "cache"}, nil
	}
	if !errors.Is(err, redisclient.ErrNotCached) {
		s.logger.Warn("Stock projection read failed, falling back to DB",
			zap.Int64("item_id", itemID),
			zap.Error(err))
	}

	item, err := s.store.GetItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return &StockLevel{ItemID: itemID, Quantity: item.Quantity, Source: "database"}, nil
}

// CreateItem adds an item to the catalog
func (s *CatalogService) CreateItem(ctx context.Context, id auth.Identity, req *ItemRequest) (*models.Item, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}
	if err := validateItem(req); err != nil {
		return nil, err
	}

	item := req.toItem()
	if err := s.store.CreateItem(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Info("Item created", zap.Int64("item_id", item.ID), zap.String("title", item.Title))
	s.publishUpserted(ctx, item)
	return item, nil
}

// UpdateItem overwrites an existing item
func (s *CatalogService) UpdateItem(ctx context.Context, id auth.Identity, itemID int64, req *ItemRequest) (*models.Item, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}
	if err := validateItem(req); err != nil {
		return nil, err
	}

	item := req.toItem()
	item.ID = itemID
	if err := s.store.UpdateItem(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Info("Item updated", zap.Int64("item_id", item.ID), zap.Int("quantity", item.Quantity))
	s.publishUpserted(ctx, item)
	return item, nil
}

func (s *CatalogService) publishUpserted(ctx context.Context, item *models.Item) {
	event := &models.ItemUpsertedEvent{
		BaseEvent: newBaseEvent(models.EventTypeItemUpserted, s.now()),
		ItemID:    item.ID,
		Quantity:  item.Quantity,
	}
	if err := s.eventPublisher.PublishItemUpserted(ctx, event); err != nil {
		s.logger.Error("Failed to publish ItemUpserted event", zap.Error(err))
	}
}

// ErrInvalidItem is returned for item forms the binding tags cannot reject
var ErrInvalidItem = errors.New("invalid item")

func validateItem(req *ItemRequest) error {
	if req.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidItem)
	}
	if req.Quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalidItem)
	}
	return nil
}

func (r *ItemRequest) toItem() *models.Item {
	imageURL := r.ImageURL
	if imageURL == "" {
		imageURL = "default.png"
	}
	return &models.Item{
		Title:       r.Title,
		Description: r.Description,
		Price:       r.Price.Round(2),
		ImageURL:    imageURL,
		Quantity:    r.Quantity,
	}
}
