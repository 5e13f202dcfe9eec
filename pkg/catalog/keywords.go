package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/productbaker/pkg/core"
	"github.com/aretw0/productbaker/pkg/typed"
)

// KeywordRoot groups keyword variations around a seed term.
type KeywordRoot struct {
	ID        string    `json:"id"`
	Root      string    `json:"root"`
	Keywords  []string  `json:"keywords"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// KeywordInput holds the user-editable fields of a KeywordRoot.
type KeywordInput struct {
	Root     string   `validate:"required,max=100"`
	Keywords []string `validate:"max=500,dive,max=100"`
	Notes    string   `validate:"max=2000"`
}

// Keywords manages keyword roots and the selected root.
type Keywords struct {
	list     *typed.List[KeywordRoot]
	selected *typed.Value[string]
	opts     options
}

// NewKeywords creates the keyword manager.
func NewKeywords(store Storage, opts ...Option) *Keywords {
	return &Keywords{
		list:     typed.NewList[KeywordRoot](store, core.KeyKeywordRoots),
		selected: typed.NewValue[string](store, core.KeySelectedKeywordRoot),
		opts:     newOptions(opts),
	}
}

// List returns every keyword root.
func (k *Keywords) List(ctx context.Context) ([]KeywordRoot, error) {
	roots, err := k.list.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load keyword roots: %w", err)
	}
	return roots, nil
}

// Get returns the root with id.
func (k *Keywords) Get(ctx context.Context, id string) (KeywordRoot, error) {
	root, found, err := k.list.Find(ctx, func(r KeywordRoot) bool { return r.ID == id })
	if err != nil {
		return KeywordRoot{}, fmt.Errorf("failed to load keyword roots: %w", err)
	}
	if !found {
		return KeywordRoot{}, fmt.Errorf("keyword root %s: %w", id, ErrNotFound)
	}
	return root, nil
}

// Create validates in and appends a new root.
func (k *Keywords) Create(ctx context.Context, in KeywordInput) (KeywordRoot, error) {
	if err := validateInput(in); err != nil {
		return KeywordRoot{}, err
	}
	id, err := newID("kw-")
	if err != nil {
		return KeywordRoot{}, err
	}
	now := k.opts.now()
	root := KeywordRoot{ID: id, CreatedAt: now}
	applyKeywordInput(&root, in, now)
	if err := k.list.Append(ctx, root); err != nil {
		k.opts.logger.Error("failed to save keyword roots", "error", err)
		return KeywordRoot{}, fmt.Errorf("failed to save keyword roots: %w", err)
	}
	return root, nil
}

// Update replaces the editable fields of root id.
func (k *Keywords) Update(ctx context.Context, id string, in KeywordInput) (KeywordRoot, error) {
	if err := validateInput(in); err != nil {
		return KeywordRoot{}, err
	}
	var updated KeywordRoot
	err := k.list.Update(ctx, func(roots []KeywordRoot) ([]KeywordRoot, error) {
		for i := range roots {
			if roots[i].ID == id {
				applyKeywordInput(&roots[i], in, k.opts.now())
				updated = roots[i]
				return roots, nil
			}
		}
		return nil, fmt.Errorf("keyword root %s: %w", id, ErrNotFound)
	})
	if err != nil {
		return KeywordRoot{}, fmt.Errorf("failed to update keyword root: %w", err)
	}
	return updated, nil
}

func applyKeywordInput(r *KeywordRoot, in KeywordInput, now time.Time) {
	r.Root = in.Root
	r.Keywords = cleanList(in.Keywords)
	r.Notes = in.Notes
	r.UpdatedAt = now
}

// Delete removes root id and clears the selection when it pointed at it.
func (k *Keywords) Delete(ctx context.Context, id string) error {
	removed, err := k.list.RemoveWhere(ctx, func(r KeywordRoot) bool { return r.ID == id })
	if err != nil {
		return fmt.Errorf("failed to delete keyword root: %w", err)
	}
	if removed == 0 {
		return fmt.Errorf("keyword root %s: %w", id, ErrNotFound)
	}
	selected, _, err := k.selected.Get(ctx)
	if err != nil {
		return err
	}
	if selected == id {
		return k.selected.Delete(ctx)
	}
	return nil
}

// Select marks root id as current.
func (k *Keywords) Select(ctx context.Context, id string) error {
	if _, err := k.Get(ctx, id); err != nil {
		return err
	}
	return k.selected.Set(ctx, id)
}

// Selected returns the current root, if any.
func (k *Keywords) Selected(ctx context.Context) (KeywordRoot, bool, error) {
	id, found, err := k.selected.Get(ctx)
	if err != nil || !found {
		return KeywordRoot{}, false, err
	}
	root, err := k.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return KeywordRoot{}, false, nil
	}
	if err != nil {
		k.opts.logger.Error("failed to load selected root", "id", id, "error", err)
		return KeywordRoot{}, false, err
	}
	return root, true, nil
}
