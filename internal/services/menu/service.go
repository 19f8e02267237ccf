package menu

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"restaurant-system/internal/apperrors"
	"restaurant-system/internal/auth"
	"restaurant-system/internal/logger"
	"restaurant-system/internal/models"
)

const (
	maxCategoryNameLength    = 50
	maxCategoryDescLength    = 200
	maxItemNameLength        = 100
	maxItemDescriptionLength = 300
)

// menuLoadTimeout bounds a shared menu load once it no longer follows the
// caller's context
const menuLoadTimeout = 10 * time.Second

var maxPrice = decimal.RequireFromString("999999.99")

// Service serves the public menu and its admin maintenance
type Service struct {
	repo   Repository
	cache  Cache
	sfg    singleflight.Group
	logger *logger.Logger
}

func NewService(repo Repository, cache Cache, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		cache:  cache,
		logger: log,
	}
}

// ItemFilter narrows ListItems. Query matches name or description,
// case-insensitively.
type ItemFilter struct {
	CategoryID    string
	Query         string
	OnlyAvailable bool
}

// Menu returns the full menu, from cache when possible. Concurrent callers
// share one cache lookup and at most one database load, which is not
// aborted when the caller that started it goes away.
func (s *Service) Menu(ctx context.Context) (*models.Menu, error) {
	requestID := logger.RequestIDFromContext(ctx)

	v, err, _ := s.sfg.Do(menuCacheKey, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), menuLoadTimeout)
		defer cancel()

		menu, err := s.cache.Get(ctx)
		if err == nil {
			return menu, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Error("cache_get_failed", "Menu cache read failed, falling back to database", requestID, err, nil)
		}

		menu, err = s.load(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, menu); err != nil {
			s.logger.Error("cache_set_failed", "Failed to store menu in cache", requestID, err, nil)
		}
		return menu, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Menu), nil
}

func (s *Service) load(ctx context.Context) (*models.Menu, error) {
	var menu models.Menu
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		categories, err := s.repo.ListCategories(gctx)
		menu.Categories = categories
		return err
	})
	g.Go(func() error {
		items, err := s.repo.ListItems(gctx)
		menu.Items = items
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &menu, nil
}

// ListCategories returns every category ordered by name
func (s *Service) ListCategories(ctx context.Context) ([]models.MenuCategory, error) {
	menu, err := s.Menu(ctx)
	if err != nil {
		return nil, err
	}
	return menu.Categories, nil
}

// ListItems returns the items matching f ordered by name. No match is an
// empty list, not an error.
func (s *Service) ListItems(ctx context.Context, f ItemFilter) ([]models.MenuItem, error) {
	menu, err := s.Menu(ctx)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(f.Query))
	items := make([]models.MenuItem, 0, len(menu.Items))
	for _, item := range menu.Items {
		if f.CategoryID != "" && item.CategoryID != f.CategoryID {
			continue
		}
		if f.OnlyAvailable && !item.IsAvailable {
			continue
		}
		if query != "" && !matches(item, query) {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func matches(item models.MenuItem, query string) bool {
	if strings.Contains(strings.ToLower(item.Name), query) {
		return true
	}
	return item.Description != nil && strings.Contains(strings.ToLower(*item.Description), query)
}

// GetItem reads one item from the database so carts always see the live price
func (s *Service) GetItem(ctx context.Context, id string) (*models.MenuItem, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("menu item %s: %w", id, apperrors.ErrNotFound)
	}
	return s.repo.GetItem(ctx, id)
}

// CategoryInput is the editable part of a category
type CategoryInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// ItemInput is the editable part of a menu item
type ItemInput struct {
	CategoryID  string          `json:"category_id"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	IsAvailable *bool           `json:"is_available,omitempty"`
	ImageURL    *string         `json:"image_url,omitempty"`
}

func (s *Service) CreateCategory(ctx context.Context, actor auth.Actor, in CategoryInput) (*models.MenuCategory, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validateCategory(in); err != nil {
		return nil, err
	}

	c := &models.MenuCategory{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Description: trimmed(in.Description),
	}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	s.invalidate(ctx, "category_created", c.ID)
	return c, nil
}

func (s *Service) UpdateCategory(ctx context.Context, actor auth.Actor, id string, in CategoryInput) (*models.MenuCategory, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("category %s: %w", id, apperrors.ErrNotFound)
	}
	if err := validateCategory(in); err != nil {
		return nil, err
	}

	c := &models.MenuCategory{
		ID:          id,
		Name:        strings.TrimSpace(in.Name),
		Description: trimmed(in.Description),
	}
	if err := s.repo.UpdateCategory(ctx, c); err != nil {
		return nil, err
	}
	s.invalidate(ctx, "category_updated", id)
	return c, nil
}

// DeleteCategory removes a category together with its items
func (s *Service) DeleteCategory(ctx context.Context, actor auth.Actor, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("category %s: %w", id, apperrors.ErrNotFound)
	}
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, "category_deleted", id)
	return nil
}

func (s *Service) CreateItem(ctx context.Context, actor auth.Actor, in ItemInput) (*models.MenuItem, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validateItem(ctx, in); err != nil {
		return nil, err
	}

	item := newItem(uuid.NewString(), in)
	if err := s.repo.CreateItem(ctx, item); err != nil {
		return nil, err
	}
	s.invalidate(ctx, "menu_item_created", item.ID)
	return item, nil
}

func (s *Service) UpdateItem(ctx context.Context, actor auth.Actor, id string, in ItemInput) (*models.MenuItem, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("menu item %s: %w", id, apperrors.ErrNotFound)
	}
	if err := s.validateItem(ctx, in); err != nil {
		return nil, err
	}

	item := newItem(id, in)
	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return nil, err
	}
	s.invalidate(ctx, "menu_item_updated", id)
	return item, nil
}

// DeleteItem removes a menu item. Orders keep their own copy of its name
// and price.
func (s *Service) DeleteItem(ctx context.Context, actor auth.Actor, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("menu item %s: %w", id, apperrors.ErrNotFound)
	}
	if err := s.repo.DeleteItem(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, "menu_item_deleted", id)
	return nil
}

func (s *Service) invalidate(ctx context.Context, action, id string) {
	requestID := logger.RequestIDFromContext(ctx)
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Error("cache_invalidate_failed", "Failed to invalidate menu cache", requestID, err, map[string]interface{}{
			"id": id,
		})
	}
	s.logger.Info(action, fmt.Sprintf("Menu changed: %s", id), requestID, map[string]interface{}{
		"id": id,
	})
}

func newItem(id string, in ItemInput) *models.MenuItem {
	available := true
	if in.IsAvailable != nil {
		available = *in.IsAvailable
	}
	return &models.MenuItem{
		ID:          id,
		CategoryID:  in.CategoryID,
		Name:        strings.TrimSpace(in.Name),
		Description: trimmed(in.Description),
		Price:       in.Price.Round(2),
		IsAvailable: available,
		ImageURL:    trimmed(in.ImageURL),
	}
}

func validateCategory(in CategoryInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return apperrors.Invalid("name", "category name is required")
	}
	if utf8.RuneCountInString(name) > maxCategoryNameLength {
		return apperrors.Invalid("name", fmt.Sprintf("category name must be at most %d characters", maxCategoryNameLength))
	}
	if in.Description != nil && utf8.RuneCountInString(*in.Description) > maxCategoryDescLength {
		return apperrors.Invalid("description", fmt.Sprintf("description must be at most %d characters", maxCategoryDescLength))
	}
	return nil
}

func (s *Service) validateItem(ctx context.Context, in ItemInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return apperrors.Invalid("name", "item name is required")
	}
	if utf8.RuneCountInString(name) > maxItemNameLength {
		return apperrors.Invalid("name", fmt.Sprintf("item name must be at most %d characters", maxItemNameLength))
	}
	if in.Description != nil && utf8.RuneCountInString(*in.Description) > maxItemDescriptionLength {
		return apperrors.Invalid("description", fmt.Sprintf("description must be at most %d characters", maxItemDescriptionLength))
	}
	if !in.Price.Round(2).IsPositive() {
		return apperrors.Invalid("price", "price must be greater than 0")
	}
	if in.Price.GreaterThan(maxPrice) {
		return apperrors.Invalid("price", "price is too large")
	}

	if _, err := uuid.Parse(in.CategoryID); err != nil {
		return apperrors.Invalid("category_id", "category does not exist")
	}
	if _, err := s.repo.GetCategory(ctx, in.CategoryID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.Invalid("category_id", "category does not exist")
		}
		return err
	}
	return nil
}

func requireAdmin(actor auth.Actor) error {
	if actor.UserID == "" {
		return apperrors.ErrUnauthenticated
	}
	if actor.Role != models.RoleAdmin {
		return fmt.Errorf("role %s cannot manage the menu: %w", actor.Role, apperrors.ErrForbidden)
	}
	return nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
