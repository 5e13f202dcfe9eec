package catalog

import (
	"context"

	"github.com/aretw0/productbaker/pkg/core"
	"github.com/aretw0/productbaker/pkg/typed"
)

// ImageUploadConfig controls where product images are uploaded.
type ImageUploadConfig struct {
	Provider  string   `json:"provider" validate:"required,oneof=none imgur cloudinary custom"`
	Endpoint  string   `json:"endpoint,omitempty" validate:"required_if=Provider custom,omitempty,url"`
	APIKey    string   `json:"apiKey,omitempty" validate:"required_if=Provider imgur,required_if=Provider cloudinary"`
	MaxSizeKB int      `json:"maxSizeKb" validate:"min=1,max=20480"`
	Formats   []string `json:"formats" validate:"min=1,dive,oneof=png jpg jpeg webp gif svg"`
}

// DefaultImageUploadConfig is used until a configuration is saved.
func DefaultImageUploadConfig() ImageUploadConfig {
	return ImageUploadConfig{
		Provider:  "none",
		MaxSizeKB: 2048,
		Formats:   []string{"png", "jpg", "webp"},
	}
}

// ImageConfig manages the image upload configuration.
type ImageConfig struct {
	value *typed.Value[ImageUploadConfig]
	opts  options
}

// NewImageConfig creates the image configuration manager.
func NewImageConfig(store Storage, opts ...Option) *ImageConfig {
	return &ImageConfig{
		value: typed.NewValue[ImageUploadConfig](store, core.KeyImageUploadConfig),
		opts:  newOptions(opts),
	}
}

// Get returns the saved configuration or the defaults.
func (c *ImageConfig) Get(ctx context.Context) (ImageUploadConfig, error) {
	return c.value.GetOr(ctx, DefaultImageUploadConfig())
}

// Set validates and saves cfg.
func (c *ImageConfig) Set(ctx context.Context, cfg ImageUploadConfig) error {
	cfg.Formats = cleanList(cfg.Formats)
	if err := validateInput(cfg); err != nil {
		return err
	}
	if err := c.value.Set(ctx, cfg); err != nil {
		c.opts.logger.Error("failed to save image upload config", "error", err)
		return err
	}
	return nil
}
