package service

import (
	"context"
	"fmt"

	"github.com/jask/arkark/internal/database/repository"
)

type defaultCategory struct {
	name     string
	typ      repository.CategoryType
	icon     string
	children []string
}

var defaultCategories = []defaultCategory{
	{name: "Food", typ: repository.CategoryExpense, icon: "🍱", children: []string{"Groceries", "Dining", "Coffee"}},
	{name: "Transport", typ: repository.CategoryExpense, icon: "🚇"},
	{name: "Housing", typ: repository.CategoryExpense, icon: "🏠", children: []string{"Rent", "Utilities"}},
	{name: "Insurance", typ: repository.CategoryExpense, icon: "🛡"},
	{name: "Health", typ: repository.CategoryExpense, icon: "💊"},
	{name: "Shopping", typ: repository.CategoryExpense, icon: "🛍"},
	{name: "Entertainment", typ: repository.CategoryExpense, icon: "🎬"},
	{name: "Other", typ: repository.CategoryExpense, icon: "📦"},
	{name: "Salary", typ: repository.CategoryIncome, icon: "💰"},
	{name: "Bonus", typ: repository.CategoryIncome, icon: "🎁"},
	{name: "Investment Income", typ: repository.CategoryIncome, icon: "📈"},
	{name: "Other Income", typ: repository.CategoryIncome, icon: "💵"},
}

// SeedDefaults ensures the system categories exist. It is idempotent and safe
// to run on every startup.
func SeedDefaults(ctx context.Context, db repository.DBTX) error {
	repo := repository.NewCategoryRepo(db)
	for idx, d := range defaultCategories {
		parent, err := ensureCategory(ctx, repo, repository.NewCategory{
			Name: d.name, Type: d.typ, Icon: &d.icon, SortOrder: idx * 10, IsSystem: true,
		})
		if err != nil {
			return err
		}
		for i, child := range d.children {
			if _, err := ensureCategory(ctx, repo, repository.NewCategory{
				Name: child, Type: d.typ, ParentID: &parent.ID, SortOrder: idx*10 + i + 1, IsSystem: true,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func ensureCategory(ctx context.Context, repo *repository.CategoryRepo, in repository.NewCategory) (*repository.Category, error) {
	existing, err := repo.GetByName(ctx, in.Name, in.Type)
	if err != nil {
		return nil, fmt.Errorf("lookup category %s: %w", in.Name, err)
	}
	if existing != nil {
		return existing, nil
	}
	c, err := repo.Create(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("seed category %s: %w", in.Name, err)
	}
	return c, nil
}
