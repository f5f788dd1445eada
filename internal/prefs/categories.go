// Package prefs keeps the user's own categories in a portable JSON file so
// they survive a reset or move to another database.
package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jask/arkark/internal/database/repository"
)

const categoriesFile = "categories.json"

// Category is the portable form of a user category. The parent is referenced
// by name since ids differ between databases.
type Category struct {
	Name      string                  `json:"name"`
	Type      repository.CategoryType `json:"type"`
	Icon      *string                 `json:"icon,omitempty"`
	Color     *string                 `json:"color,omitempty"`
	Parent    string                  `json:"parent,omitempty"`
	SortOrder int                     `json:"sort_order"`
}

// DefaultPath is categories.json under the user config dir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "arkark", categoriesFile), nil
}

// Collect returns the non-system categories, parents before children.
func Collect(ctx context.Context, db repository.DBTX) ([]Category, error) {
	all, err := repository.NewCategoryRepo(db).List(ctx, nil)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(all))
	for _, c := range all {
		names[c.ID] = c.Name
	}
	var roots, children []Category
	for _, c := range all {
		if c.IsSystem {
			continue
		}
		p := Category{Name: c.Name, Type: c.Type, Icon: c.Icon, Color: c.Color, SortOrder: c.SortOrder}
		if c.ParentID != nil {
			p.Parent = names[*c.ParentID]
			children = append(children, p)
			continue
		}
		roots = append(roots, p)
	}
	return append(roots, children...), nil
}

// Restore creates the categories that do not exist yet and reports how many
// were created. A parent missing from both cats and the database leaves the
// child at the top level.
func Restore(ctx context.Context, db repository.DBTX, cats []Category) (int, error) {
	repo := repository.NewCategoryRepo(db)
	created := 0
	for _, c := range cats {
		existing, err := repo.GetByName(ctx, c.Name, c.Type)
		if err != nil {
			return created, err
		}
		if existing != nil {
			continue
		}
		in := repository.NewCategory{Name: c.Name, Type: c.Type, Icon: c.Icon, Color: c.Color, SortOrder: c.SortOrder}
		if c.Parent != "" {
			parent, err := repo.GetByName(ctx, c.Parent, c.Type)
			if err != nil {
				return created, err
			}
			if parent != nil {
				in.ParentID = &parent.ID
			}
		}
		if _, err := repo.Create(ctx, in); err != nil {
			return created, fmt.Errorf("restore category %s: %w", c.Name, err)
		}
		created++
	}
	return created, nil
}

func SaveCategories(path string, cats []Category) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cats, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadCategories returns nil, nil when the file does not exist.
func LoadCategories(path string) ([]Category, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var cats []Category
	if err := json.Unmarshal(data, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}
