package menu

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"restaurant-system/internal/apperrors"
	"restaurant-system/internal/database"
	"restaurant-system/internal/models"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Repository stores menu categories and items
type Repository interface {
	ListCategories(ctx context.Context) ([]models.MenuCategory, error)
	GetCategory(ctx context.Context, id string) (*models.MenuCategory, error)
	CreateCategory(ctx context.Context, c *models.MenuCategory) error
	UpdateCategory(ctx context.Context, c *models.MenuCategory) error
	DeleteCategory(ctx context.Context, id string) error

	ListItems(ctx context.Context) ([]models.MenuItem, error)
	GetItem(ctx context.Context, id string) (*models.MenuItem, error)
	CreateItem(ctx context.Context, item *models.MenuItem) error
	UpdateItem(ctx context.Context, item *models.MenuItem) error
	DeleteItem(ctx context.Context, id string) error
}

// PostgresRepository is the PostgreSQL Repository
type PostgresRepository struct {
	db *database.DB
}

func NewPostgresRepository(db *database.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ListCategories(ctx context.Context) ([]models.MenuCategory, error) {
	rows, err := r.db.Query(ctx, database.ListCategoriesSQL)
	if err != nil {
		return nil, apperrors.Platform("list categories", err)
	}
	defer rows.Close()

	categories := make([]models.MenuCategory, 0)
	for rows.Next() {
		var c models.MenuCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, apperrors.Platform("scan category", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Platform("list categories", err)
	}
	return categories, nil
}

func (r *PostgresRepository) GetCategory(ctx context.Context, id string) (*models.MenuCategory, error) {
	var c models.MenuCategory
	err := r.db.QueryRow(ctx, database.GetCategorySQL, id).Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("category %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, apperrors.Platform("get category", err)
	}
	return &c, nil
}

func (r *PostgresRepository) CreateCategory(ctx context.Context, c *models.MenuCategory) error {
	err := r.db.QueryRow(ctx, database.InsertCategorySQL, c.ID, c.Name, c.Description).Scan(&c.CreatedAt)
	return classify("create category", err)
}

func (r *PostgresRepository) UpdateCategory(ctx context.Context, c *models.MenuCategory) error {
	err := r.db.QueryRow(ctx, database.UpdateCategorySQL, c.Name, c.Description, c.ID).Scan(&c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("category %s: %w", c.ID, apperrors.ErrNotFound)
	}
	return classify("update category", err)
}

// DeleteCategory removes the category and, by cascade, its items
func (r *PostgresRepository) DeleteCategory(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, database.DeleteCategorySQL, id)
	if err != nil {
		return apperrors.Platform("delete category", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("category %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func (r *PostgresRepository) ListItems(ctx context.Context) ([]models.MenuItem, error) {
	rows, err := r.db.Query(ctx, database.ListMenuItemsSQL)
	if err != nil {
		return nil, apperrors.Platform("list menu items", err)
	}
	defer rows.Close()

	items := make([]models.MenuItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, apperrors.Platform("scan menu item", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Platform("list menu items", err)
	}
	return items, nil
}

func (r *PostgresRepository) GetItem(ctx context.Context, id string) (*models.MenuItem, error) {
	item, err := scanItem(r.db.QueryRow(ctx, database.GetMenuItemSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("menu item %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, apperrors.Platform("get menu item", err)
	}
	return item, nil
}

func (r *PostgresRepository) CreateItem(ctx context.Context, item *models.MenuItem) error {
	err := r.db.QueryRow(ctx, database.InsertMenuItemSQL,
		item.ID, item.CategoryID, item.Name, item.Description, item.Price, item.IsAvailable, item.ImageURL,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	return classify("create menu item", err)
}

func (r *PostgresRepository) UpdateItem(ctx context.Context, item *models.MenuItem) error {
	err := r.db.QueryRow(ctx, database.UpdateMenuItemSQL,
		item.CategoryID, item.Name, item.Description, item.Price, item.IsAvailable, item.ImageURL, item.ID,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("menu item %s: %w", item.ID, apperrors.ErrNotFound)
	}
	return classify("update menu item", err)
}

func (r *PostgresRepository) DeleteItem(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, database.DeleteMenuItemSQL, id)
	if err != nil {
		return apperrors.Platform("delete menu item", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("menu item %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func scanItem(row pgx.Row) (*models.MenuItem, error) {
	var item models.MenuItem
	err := row.Scan(
		&item.ID,
		&item.CategoryID,
		&item.Name,
		&item.Description,
		&item.Price,
		&item.IsAvailable,
		&item.ImageURL,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// classify maps constraint violations onto the error taxonomy
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return apperrors.ConflictError{Message: "a record with this name already exists"}
		case pgForeignKeyViolation:
			return apperrors.Invalid("category_id", "category does not exist")
		}
	}
	return apperrors.Platform(op, err)
}
