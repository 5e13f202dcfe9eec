// Package catalog holds the ProductBaker domain managers: products, backlink
// outreach, keyword roots, custom options and image upload settings. Every
// manager persists whole lists under the well-known keys of pkg/core.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	nanoid "github.com/matoous/go-nanoid/v2"

	"github.com/aretw0/productbaker/pkg/typed"
)

// Storage is the persistence the managers need; *core.Store satisfies it.
type Storage = typed.Storage

var (
	// ErrNotFound is returned when an ID does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput wraps validation failures.
	ErrInvalidInput = errors.New("invalid input")
)

// idAlphabet defines the character set used for the random portion of IDs.
const idAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// idLength is the number of random characters generated (excluding the prefix).
const idLength = 10

// newID returns a new unique ID with the given prefix.
func newID(prefix string) (string, error) {
	id, err := nanoid.Generate(idAlphabet, idLength)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

var validate = validator.New()

func validateInput(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

// Option configures a manager.
type Option func(*options)

type options struct {
	logger *slog.Logger
	now    func() time.Time
}

// WithLogger sets the logger used for store failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func newOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Catalog bundles every manager over one store.
type Catalog struct {
	Products  *Products
	Backlinks *Backlinks
	Keywords  *Keywords
	Options   *Options
	Images    *ImageConfig
}

// New creates all managers.
func New(store Storage, opts ...Option) *Catalog {
	return &Catalog{
		Products:  NewProducts(store, opts...),
		Backlinks: NewBacklinks(store, opts...),
		Keywords:  NewKeywords(store, opts...),
		Options:   NewOptions(store, opts...),
		Images:    NewImageConfig(store, opts...),
	}
}

// cleanList trims, drops empties and de-duplicates case-insensitively,
// keeping the first spelling.
func cleanList(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || seen[strings.ToLower(item)] {
			continue
		}
		seen[strings.ToLower(item)] = true
		out = append(out, item)
	}
	return out
}
