package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/finance-dashboard/internal/models"
)

type BudgetRepository struct {
	db *pgxpool.Pool
}

type BudgetCategoryInput struct {
	Category        string
	AllocatedAmount int64
	Color           string
}

// NewBudgetRepository создает репозиторий бюджетов.
func NewBudgetRepository(db *pgxpool.Pool) *BudgetRepository {
	return &BudgetRepository{db: db}
}

// Create создает бюджет вместе с категориями.
func (r *BudgetRepository) Create(ctx context.Context, name string, categories []BudgetCategoryInput) (models.Budget, []models.BudgetCategory, error) {
	var budget models.Budget
	created := make([]models.BudgetCategory, 0, len(categories))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return budget, nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = tx.QueryRow(ctx,
		`INSERT INTO budgets (id, name)
		 VALUES ($1, $2)
		 RETURNING id, name, created_at, updated_at`,
		uuid.New(), name,
	).Scan(&budget.ID, &budget.Name, &budget.CreatedAt, &budget.UpdatedAt)
	if err != nil {
		return budget, nil, mapError(err)
	}

	for _, input := range categories {
		if strings.TrimSpace(input.Category) == "" || input.AllocatedAmount < 0 {
			return budget, nil, ErrInvalid
		}

		category := models.BudgetCategory{
			ID:              uuid.New(),
			BudgetID:        budget.ID,
			Category:        input.Category,
			AllocatedAmount: input.AllocatedAmount,
			Color:           input.Color,
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO budget_categories (id, budget_id, category, allocated_amount, color)
			 VALUES ($1, $2, $3, $4, $5)`,
			category.ID, category.BudgetID, category.Category, category.AllocatedAmount, category.Color,
		)
		if err != nil {
			return budget, nil, mapError(err)
		}
		created = append(created, category)
	}

	if err := tx.Commit(ctx); err != nil {
		return budget, nil, err
	}

	return budget, created, nil
}

// List возвращает все бюджеты.
func (r *BudgetRepository) List(ctx context.Context) ([]models.Budget, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, created_at, updated_at
		 FROM budgets
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	budgets := []models.Budget{}
	for rows.Next() {
		var budget models.Budget
		if err := rows.Scan(&budget.ID, &budget.Name, &budget.CreatedAt, &budget.UpdatedAt); err != nil {
			return nil, err
		}
		budgets = append(budgets, budget)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return budgets, nil
}

// GetByID возвращает бюджет по идентификатору.
func (r *BudgetRepository) GetByID(ctx context.Context, id uuid.UUID) (models.Budget, error) {
	var budget models.Budget

	err := r.db.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at
		 FROM budgets
		 WHERE id = $1`,
		id,
	).Scan(&budget.ID, &budget.Name, &budget.CreatedAt, &budget.UpdatedAt)
	if err != nil {
		return budget, mapError(err)
	}

	return budget, nil
}

// Delete удаляет бюджет вместе с категориями.
func (r *BudgetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM budgets WHERE id = $1`, id)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ListCategories возвращает категории бюджета.
func (r *BudgetRepository) ListCategories(ctx context.Context, budgetID uuid.UUID) ([]models.BudgetCategory, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, budget_id, category, allocated_amount, color
		 FROM budget_categories
		 WHERE budget_id = $1
		 ORDER BY category`,
		budgetID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []models.BudgetCategory{}
	for rows.Next() {
		var category models.BudgetCategory
		if err := rows.Scan(&category.ID, &category.BudgetID, &category.Category, &category.AllocatedAmount, &category.Color); err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return categories, nil
}

// AddCategory добавляет категорию в бюджет.
func (r *BudgetRepository) AddCategory(ctx context.Context, budgetID uuid.UUID, input BudgetCategoryInput) (models.BudgetCategory, error) {
	var category models.BudgetCategory

	err := r.db.QueryRow(ctx,
		`INSERT INTO budget_categories (id, budget_id, category, allocated_amount, color)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, budget_id, category, allocated_amount, color`,
		uuid.New(), budgetID, input.Category, input.AllocatedAmount, input.Color,
	).Scan(&category.ID, &category.BudgetID, &category.Category, &category.AllocatedAmount, &category.Color)
	if err != nil {
		return category, mapError(err)
	}

	_, err = r.db.Exec(ctx, `UPDATE budgets SET updated_at = NOW() WHERE id = $1`, budgetID)
	if err != nil {
		return category, err
	}

	return category, nil
}

// DeleteCategory удаляет категорию бюджета.
func (r *BudgetRepository) DeleteCategory(ctx context.Context, categoryID uuid.UUID) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM budget_categories WHERE id = $1`, categoryID)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
