package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jask/arkark/internal/database"
)

type NewCategory struct {
	Name      string
	Type      CategoryType
	Icon      *string
	Color     *string
	ParentID  *string
	SortOrder int
	IsSystem  bool
}

type CategoryPatch struct {
	Name      *string
	Icon      Nullable[string]
	Color     Nullable[string]
	ParentID  Nullable[string]
	SortOrder *int
}

func (p CategoryPatch) assignments() assignments {
	var as assignments
	if p.Name != nil {
		as = as.add("name", *p.Name)
	}
	if p.Icon.set {
		as = as.add("icon", p.Icon.arg())
	}
	if p.Color.set {
		as = as.add("color", p.Color.arg())
	}
	if p.ParentID.set {
		as = as.add("parent_id", p.ParentID.arg())
	}
	if p.SortOrder != nil {
		as = as.add("sort_order", *p.SortOrder)
	}
	return as
}

// CategoryRepo handles categories. Parent links form a tree; cycles are not
// detected.
type CategoryRepo struct {
	db DBTX
}

func NewCategoryRepo(db DBTX) *CategoryRepo {
	return &CategoryRepo{db: db}
}

const categoryColumns = `id, name, type, icon, color, parent_id, sort_order, is_system, created_at`

func scanCategory(s scanner) (Category, error) {
	var c Category
	err := s.Scan(&c.ID, &c.Name, &c.Type, &c.Icon, &c.Color, &c.ParentID, &c.SortOrder, &c.IsSystem, &c.CreatedAt)
	return c, err
}

func (r *CategoryRepo) Create(ctx context.Context, in NewCategory) (*Category, error) {
	id := database.NewID()
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO categories(id, name, type, icon, color, parent_id, sort_order, is_system, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.Name, string(in.Type), nullable(in.Icon), nullable(in.Color), nullable(in.ParentID),
		in.SortOrder, boolInt(in.IsSystem), database.Timestamp())
	if err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}
	c, err := r.GetByID(ctx, id)
	return mustGet(c, err, "category", id)
}

// Update applies p. Categories carry no updated_at column.
func (r *CategoryRepo) Update(ctx context.Context, id string, p CategoryPatch) (*Category, error) {
	if err := update(ctx, r.db, "categories", id, p.assignments(), false); err != nil {
		return nil, err
	}
	c, err := r.GetByID(ctx, id)
	return mustGet(c, err, "category", id)
}

func (r *CategoryRepo) GetByID(ctx context.Context, id string) (*Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByName returns the category of type t with the given name.
func (r *CategoryRepo) GetByName(ctx context.Context, name string, t CategoryType) (*Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE name = ? AND type = ? ORDER BY sort_order LIMIT 1`, name, string(t)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns all categories, or only those of type t when t is non-nil.
func (r *CategoryRepo) List(ctx context.Context, t *CategoryType) ([]Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories`
	var args []any
	if t != nil {
		query += ` WHERE type = ?`
		args = append(args, string(*t))
	}
	query += ` ORDER BY sort_order, name`
	return r.query(ctx, query, args...)
}

// Children returns the direct children of parentID.
func (r *CategoryRepo) Children(ctx context.Context, parentID string) ([]Category, error) {
	return r.query(ctx, `SELECT `+categoryColumns+` FROM categories WHERE parent_id = ? ORDER BY sort_order, name`, parentID)
}

func (r *CategoryRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	return err
}

func (r *CategoryRepo) query(ctx context.Context, query string, args ...any) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
