package catalog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/productbaker/pkg/adapters/memory"
	"github.com/aretw0/productbaker/pkg/catalog"
	"github.com/aretw0/productbaker/pkg/core"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newCatalog(t *testing.T) (*catalog.Catalog, *core.Store) {
	t.Helper()
	store := core.NewStore(memory.New(), core.Config{})
	t.Cleanup(func() { _ = store.Close() })
	return catalog.New(store, catalog.WithClock(func() time.Time { return fixedNow })), store
}

func productInput(name string) catalog.ProductInput {
	return catalog.ProductInput{
		Name: name,
		URL:  "https://example.com/" + name,
		Tags: []string{" SaaS ", "saas", "", "tools"},
	}
}

func TestProductsLifecycle(t *testing.T) {
	c, store := newCatalog(t)
	ctx := context.Background()

	list, err := c.Products.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list)

	p, err := c.Products.Create(ctx, productInput("foo"))
	require.NoError(t, err)
	assert.Regexp(t, `^prd-[A-Za-z0-9]{10}$`, p.ID)
	assert.Equal(t, fixedNow, p.CreatedAt)
	assert.Equal(t, []string{"SaaS", "tools"}, p.Tags)

	got, err := c.Products.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "foo", got.Name)
	assert.Equal(t, fixedNow, got.CreatedAt.UTC())

	in := productInput("bar")
	in.Tagline = "better"
	updated, err := c.Products.Update(ctx, p.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "bar", updated.Name)
	assert.Equal(t, p.CreatedAt, updated.CreatedAt)

	// Stored under the well-known key as a plain JSON array.
	raw, err := store.Load(ctx, core.KeyProducts)
	require.NoError(t, err)
	require.Len(t, raw, 1)

	_, err = c.Products.Update(ctx, "prd-missing", in)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	_, err = c.Products.Get(ctx, "prd-missing")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestDeleteUnknownWritesNothing(t *testing.T) {
	c, store := newCatalog(t)
	ctx := context.Background()

	assert.ErrorIs(t, c.Products.Delete(ctx, "prd-missing"), catalog.ErrNotFound)
	assert.ErrorIs(t, c.Keywords.Delete(ctx, "kw-missing"), catalog.ErrNotFound)
	assert.ErrorIs(t, c.Backlinks.DeleteSite(ctx, "site-missing"), catalog.ErrNotFound)
	assert.ErrorIs(t, c.Backlinks.DeleteSubmission(ctx, "sub-missing"), catalog.ErrNotFound)

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestProductValidation(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := context.Background()

	_, err := c.Products.Create(ctx, catalog.ProductInput{Name: "", URL: "https://x.io"})
	assert.ErrorIs(t, err, catalog.ErrInvalidInput)

	_, err = c.Products.Create(ctx, catalog.ProductInput{Name: "x", URL: "not a url"})
	assert.ErrorIs(t, err, catalog.ErrInvalidInput)

	list, err := c.Products.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestProductSelectionAndCascade(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := context.Background()

	a, err := c.Products.Create(ctx, productInput("a"))
	require.NoError(t, err)
	b, err := c.Products.Create(ctx, productInput("b"))
	require.NoError(t, err)

	_, found, err := c.Products.Selected(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	assert.ErrorIs(t, c.Products.Select(ctx, "prd-missing"), catalog.ErrNotFound)
	require.NoError(t, c.Products.Select(ctx, a.ID))
	sel, found, err := c.Products.Selected(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, a.ID, sel.ID)

	site, err := c.Backlinks.CreateSite(ctx, catalog.SiteInput{Name: "Hunt", URL: "https://hunt.example"})
	require.NoError(t, err)
	_, err = c.Backlinks.Submit(ctx, a.ID, site.ID, catalog.StatusSubmitted, "")
	require.NoError(t, err)
	_, err = c.Backlinks.Submit(ctx, b.ID, site.ID, catalog.StatusPending, "")
	require.NoError(t, err)

	require.NoError(t, c.Products.Delete(ctx, a.ID))
	assert.ErrorIs(t, c.Products.Delete(ctx, a.ID), catalog.ErrNotFound)

	_, found, err = c.Products.Selected(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	subs, err := c.Backlinks.ListSubmissions(ctx, "")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, b.ID, subs[0].ProductID)
}

func TestBacklinkSubmissions(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := context.Background()

	p, err := c.Products.Create(ctx, productInput("p"))
	require.NoError(t, err)
	site, err := c.Backlinks.CreateSite(ctx, catalog.SiteInput{
		Name:            "Directory",
		URL:             "https://dir.example",
		SubmitURL:       "https://dir.example/submit",
		DomainAuthority: 55,
	})
	require.NoError(t, err)
	assert.Regexp(t, `^site-`, site.ID)

	_, err = c.Backlinks.CreateSite(ctx, catalog.SiteInput{Name: "x", URL: "https://x.example", DomainAuthority: 101})
	assert.ErrorIs(t, err, catalog.ErrInvalidInput)

	_, err = c.Backlinks.Submit(ctx, p.ID, "site-missing", catalog.StatusPending, "")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	_, err = c.Backlinks.Submit(ctx, "prd-missing", site.ID, catalog.StatusPending, "")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	_, err = c.Backlinks.Submit(ctx, p.ID, site.ID, "sent", "")
	assert.ErrorIs(t, err, catalog.ErrInvalidInput)

	sub, err := c.Backlinks.Submit(ctx, p.ID, site.ID, catalog.StatusPending, "drafting")
	require.NoError(t, err)
	assert.Nil(t, sub.SubmittedAt)

	again, err := c.Backlinks.Submit(ctx, p.ID, site.ID, catalog.StatusSubmitted, "sent")
	require.NoError(t, err)
	assert.Equal(t, sub.ID, again.ID, "same product and site update one submission")
	require.NotNil(t, again.SubmittedAt)

	approved, err := c.Backlinks.UpdateSubmissionStatus(ctx, sub.ID, catalog.StatusApproved, "live")
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusApproved, approved.Status)
	assert.Equal(t, again.SubmittedAt.UTC(), approved.SubmittedAt.UTC())

	_, err = c.Backlinks.UpdateSubmissionStatus(ctx, "sub-missing", catalog.StatusApproved, "")
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	subs, err := c.Backlinks.ListSubmissions(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "live", subs[0].Notes)

	none, err := c.Backlinks.ListSubmissions(ctx, "prd-other")
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, c.Backlinks.DeleteSite(ctx, site.ID))
	subs, err = c.Backlinks.ListSubmissions(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, subs)
	assert.ErrorIs(t, c.Backlinks.DeleteSubmission(ctx, sub.ID), catalog.ErrNotFound)
}

func TestUpdateSite(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := context.Background()

	site, err := c.Backlinks.CreateSite(ctx, catalog.SiteInput{Name: "a", URL: "https://a.example"})
	require.NoError(t, err)
	updated, err := c.Backlinks.UpdateSite(ctx, site.ID, catalog.SiteInput{Name: "b", URL: "https://b.example", Paid: true})
	require.NoError(t, err)
	assert.Equal(t, "b", updated.Name)
	assert.True(t, updated.Paid)

	sites, err := c.Backlinks.ListSites(ctx)
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, "https://b.example", sites[0].URL)
}

func TestKeywords(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := context.Background()

	root, err := c.Keywords.Create(ctx, catalog.KeywordInput{Root: "invoice", Keywords: []string{"invoice app", "Invoice App", "billing"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"invoice app", "billing"}, root.Keywords)

	_, err = c.Keywords.Create(ctx, catalog.KeywordInput{})
	assert.ErrorIs(t, err, catalog.ErrInvalidInput)

	updated, err := c.Keywords.Update(ctx, root.ID, catalog.KeywordInput{Root: "invoicing"})
	require.NoError(t, err)
	assert.Equal(t, "invoicing", updated.Root)
	assert.Empty(t, updated.Keywords)

	require.NoError(t, c.Keywords.Select(ctx, root.ID))
	sel, found, err := c.Keywords.Selected(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, root.ID, sel.ID)

	require.NoError(t, c.Keywords.Delete(ctx, root.ID))
	_, found, err = c.Keywords.Selected(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	roots, err := c.Keywords.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, roots)
}

func TestCustomOptions(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := context.Background()

	for _, name := range []string{"Marketing", " devtools ", "marketing", "AI"} {
		_, err := c.Options.AddCategory(ctx, name)
		require.NoError(t, err)
	}
	cats, err := c.Options.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AI", "devtools", "Marketing"}, cats)

	added, err := c.Options.AddCategory(ctx, "MARKETING")
	require.NoError(t, err)
	assert.False(t, added)

	_, err = c.Options.AddCategory(ctx, "   ")
	assert.ErrorIs(t, err, catalog.ErrInvalidInput)

	removed, err := c.Options.RemoveCategory(ctx, "marketing")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = c.Options.RemoveCategory(ctx, "marketing")
	require.NoError(t, err)
	assert.False(t, removed)

	added, err = c.Options.AddTag(ctx, "open-source")
	require.NoError(t, err)
	assert.True(t, added)
	tags, err := c.Options.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"open-source"}, tags)
	_, err = c.Options.RemoveTag(ctx, "OPEN-SOURCE")
	require.NoError(t, err)
	tags, err = c.Options.Tags(ctx)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestImageConfig(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := context.Background()

	cfg, err := c.Images.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, catalog.DefaultImageUploadConfig(), cfg)

	err = c.Images.Set(ctx, catalog.ImageUploadConfig{Provider: "imgur", MaxSizeKB: 512, Formats: []string{"png"}})
	assert.ErrorIs(t, err, catalog.ErrInvalidInput, "imgur needs an api key")

	err = c.Images.Set(ctx, catalog.ImageUploadConfig{Provider: "custom", MaxSizeKB: 512, Formats: []string{"png"}})
	assert.ErrorIs(t, err, catalog.ErrInvalidInput, "custom needs an endpoint")

	want := catalog.ImageUploadConfig{
		Provider:  "custom",
		Endpoint:  "https://img.example/upload",
		MaxSizeKB: 512,
		Formats:   []string{"png", "webp"},
	}
	require.NoError(t, c.Images.Set(ctx, want))
	cfg, err = c.Images.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, cfg)
}

// failingStorage fails LoadInto for one key and delegates everything else.
type failingStorage struct {
	catalog.Storage
	key string
	err error
}

func (s *failingStorage) LoadInto(ctx context.Context, key string, dst any) (bool, error) {
	if key == s.key {
		return false, s.err
	}
	return s.Storage.LoadInto(ctx, key, dst)
}

func TestSelectedReportsStorageFailure(t *testing.T) {
	c, store := newCatalog(t)
	ctx := context.Background()

	p, err := c.Products.Create(ctx, productInput("foo"))
	require.NoError(t, err)
	require.NoError(t, c.Products.Select(ctx, p.ID))
	root, err := c.Keywords.Create(ctx, catalog.KeywordInput{Root: "invoice"})
	require.NoError(t, err)
	require.NoError(t, c.Keywords.Select(ctx, root.ID))

	loadErr := core.NewError("load", core.KeyProducts, core.ReasonInvalidState, errors.New("corrupt page"))
	broken := catalog.New(&failingStorage{Storage: store, key: core.KeyProducts, err: loadErr})
	_, found, err := broken.Products.Selected(ctx)
	assert.False(t, found)
	require.Error(t, err)
	assert.Equal(t, core.ReasonInvalidState, core.ReasonOf(err))

	loadErr = core.NewError("load", core.KeyKeywordRoots, core.ReasonInvalidState, errors.New("corrupt page"))
	broken = catalog.New(&failingStorage{Storage: store, key: core.KeyKeywordRoots, err: loadErr})
	_, found, err = broken.Keywords.Selected(ctx)
	assert.False(t, found)
	require.Error(t, err)
	assert.Equal(t, core.ReasonInvalidState, core.ReasonOf(err))

	// A dangling selection is still reported as nothing selected.
	require.NoError(t, c.Keywords.Delete(ctx, root.ID))
	_, found, err = c.Keywords.Selected(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}
