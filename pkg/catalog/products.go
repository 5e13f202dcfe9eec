package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/productbaker/pkg/core"
	"github.com/aretw0/productbaker/pkg/typed"
)

// Product is a software product in the catalog.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	Tagline     string    `json:"tagline,omitempty"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	LogoURL     string    `json:"logoUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProductInput holds the user-editable fields of a Product.
type ProductInput struct {
	Name        string   `validate:"required,max=120"`
	URL         string   `validate:"required,url"`
	Tagline     string   `validate:"max=200"`
	Description string   `validate:"max=5000"`
	Category    string   `validate:"max=60"`
	Tags        []string `validate:"max=20,dive,max=40"`
	LogoURL     string   `validate:"omitempty,url"`
}

// Products manages the product list and the selected product.
type Products struct {
	list        *typed.List[Product]
	selected    *typed.Value[string]
	submissions *typed.List[Submission]
	opts        options
}

// NewProducts creates the product manager.
func NewProducts(store Storage, opts ...Option) *Products {
	return &Products{
		list:        typed.NewList[Product](store, core.KeyProducts),
		selected:    typed.NewValue[string](store, core.KeySelectedProduct),
		submissions: typed.NewList[Submission](store, core.KeyBacklinkSubmissions),
		opts:        newOptions(opts),
	}
}

// List returns every product.
func (p *Products) List(ctx context.Context) ([]Product, error) {
	products, err := p.list.All(ctx)
	if err != nil {
		p.opts.logger.Error("failed to load products", "error", err)
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	return products, nil
}

// Get returns the product with id.
func (p *Products) Get(ctx context.Context, id string) (Product, error) {
	product, found, err := p.list.Find(ctx, func(x Product) bool { return x.ID == id })
	if err != nil {
		return Product{}, fmt.Errorf("failed to load products: %w", err)
	}
	if !found {
		return Product{}, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	return product, nil
}

// Create validates in and appends a new product.
func (p *Products) Create(ctx context.Context, in ProductInput) (Product, error) {
	if err := validateInput(in); err != nil {
		return Product{}, err
	}
	id, err := newID("prd-")
	if err != nil {
		return Product{}, err
	}
	now := p.opts.now()
	product := Product{ID: id, CreatedAt: now}
	applyProductInput(&product, in, now)

	if err := p.list.Append(ctx, product); err != nil {
		p.opts.logger.Error("failed to save products", "error", err)
		return Product{}, fmt.Errorf("failed to save products: %w", err)
	}
	p.opts.logger.Info("product created", slog.String("id", id), slog.String("name", product.Name))
	return product, nil
}

// Update replaces the editable fields of product id.
func (p *Products) Update(ctx context.Context, id string, in ProductInput) (Product, error) {
	if err := validateInput(in); err != nil {
		return Product{}, err
	}
	var updated Product
	err := p.list.Update(ctx, func(products []Product) ([]Product, error) {
		for i := range products {
			if products[i].ID == id {
				applyProductInput(&products[i], in, p.opts.now())
				updated = products[i]
				return products, nil
			}
		}
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	})
	if err != nil {
		return Product{}, fmt.Errorf("failed to update product: %w", err)
	}
	return updated, nil
}

func applyProductInput(p *Product, in ProductInput, now time.Time) {
	p.Name = in.Name
	p.URL = in.URL
	p.Tagline = in.Tagline
	p.Description = in.Description
	p.Category = in.Category
	p.Tags = cleanList(in.Tags)
	p.LogoURL = in.LogoURL
	p.UpdatedAt = now
}

// Delete removes product id, its backlink submissions and, when it was
// selected, the selection.
func (p *Products) Delete(ctx context.Context, id string) error {
	removed, err := p.list.RemoveWhere(ctx, func(x Product) bool { return x.ID == id })
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if removed == 0 {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}

	if _, err := p.submissions.RemoveWhere(ctx, func(s Submission) bool { return s.ProductID == id }); err != nil {
		return fmt.Errorf("failed to delete submissions of product %s: %w", id, err)
	}

	selected, _, err := p.selected.Get(ctx)
	if err != nil {
		return err
	}
	if selected == id {
		if err := p.selected.Delete(ctx); err != nil {
			return err
		}
	}
	p.opts.logger.Info("product deleted", "id", id)
	return nil
}

// Select marks product id as the current product.
func (p *Products) Select(ctx context.Context, id string) error {
	if _, err := p.Get(ctx, id); err != nil {
		return err
	}
	return p.selected.Set(ctx, id)
}

// Selected returns the current product. The bool is false when none is
// selected or the selection points at a deleted product.
func (p *Products) Selected(ctx context.Context) (Product, bool, error) {
	id, found, err := p.selected.Get(ctx)
	if err != nil || !found {
		return Product{}, false, err
	}
	product, err := p.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Product{}, false, nil
	}
	if err != nil {
		p.opts.logger.Error("failed to load selected product", "id", id, "error", err)
		return Product{}, false, err
	}
	return product, true, nil
}
