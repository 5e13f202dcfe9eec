package catalog

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/productbaker/pkg/core"
	"github.com/aretw0/productbaker/pkg/typed"
)

// Options manages the user-defined product categories and tags.
type Options struct {
	categories *typed.List[string]
	tags       *typed.List[string]
	opts       options
}

// NewOptions creates the options manager.
func NewOptions(store Storage, opts ...Option) *Options {
	return &Options{
		categories: typed.NewList[string](store, core.KeyCustomCategories),
		tags:       typed.NewList[string](store, core.KeyCustomTags),
		opts:       newOptions(opts),
	}
}

// Categories returns the custom categories sorted case-insensitively.
func (o *Options) Categories(ctx context.Context) ([]string, error) {
	return sortedAll(ctx, o.categories)
}

// AddCategory adds name unless an equal category exists. It reports
// whether the list changed.
func (o *Options) AddCategory(ctx context.Context, name string) (bool, error) {
	return addTo(ctx, o.categories, name)
}

// RemoveCategory removes name, ignoring case.
func (o *Options) RemoveCategory(ctx context.Context, name string) (bool, error) {
	return removeFrom(ctx, o.categories, name)
}

// Tags returns the custom tags sorted case-insensitively.
func (o *Options) Tags(ctx context.Context) ([]string, error) {
	return sortedAll(ctx, o.tags)
}

// AddTag adds name unless an equal tag exists.
func (o *Options) AddTag(ctx context.Context, name string) (bool, error) {
	return addTo(ctx, o.tags, name)
}

// RemoveTag removes name, ignoring case.
func (o *Options) RemoveTag(ctx context.Context, name string) (bool, error) {
	return removeFrom(ctx, o.tags, name)
}

type optionName struct {
	Name string `validate:"required,max=60"`
}

func sortedAll(ctx context.Context, list *typed.List[string]) ([]string, error) {
	items, err := list.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", list.Key(), err)
	}
	items = cleanList(items)
	slices.SortFunc(items, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	return items, nil
}

func addTo(ctx context.Context, list *typed.List[string], name string) (bool, error) {
	name = strings.TrimSpace(name)
	if err := validateInput(optionName{Name: name}); err != nil {
		return false, err
	}
	added := false
	err := list.Update(ctx, func(items []string) ([]string, error) {
		for _, item := range items {
			if strings.EqualFold(item, name) {
				return items, nil
			}
		}
		added = true
		return append(items, name), nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to save %s: %w", list.Key(), err)
	}
	return added, nil
}

func removeFrom(ctx context.Context, list *typed.List[string], name string) (bool, error) {
	name = strings.TrimSpace(name)
	removed, err := list.RemoveWhere(ctx, func(item string) bool {
		return strings.EqualFold(strings.TrimSpace(item), name)
	})
	if err != nil {
		return false, err
	}
	return removed > 0, nil
}
