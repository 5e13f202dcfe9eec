package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/productbaker/pkg/core"
	"github.com/aretw0/productbaker/pkg/typed"
)

// SubmissionStatus is the outreach state of a product on a backlink site.
type SubmissionStatus string

const (
	StatusPending   SubmissionStatus = "pending"
	StatusSubmitted SubmissionStatus = "submitted"
	StatusApproved  SubmissionStatus = "approved"
	StatusRejected  SubmissionStatus = "rejected"
)

// Statuses lists the valid submission states in workflow order.
var Statuses = []SubmissionStatus{StatusPending, StatusSubmitted, StatusApproved, StatusRejected}

// Site is a directory or launch site where products can be listed.
type Site struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	URL             string    `json:"url"`
	SubmitURL       string    `json:"submitUrl,omitempty"`
	Category        string    `json:"category,omitempty"`
	DomainAuthority int       `json:"domainAuthority,omitempty"`
	Paid            bool      `json:"paid,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// SiteInput holds the user-editable fields of a Site.
type SiteInput struct {
	Name            string `validate:"required,max=120"`
	URL             string `validate:"required,url"`
	SubmitURL       string `validate:"omitempty,url"`
	Category        string `validate:"max=60"`
	DomainAuthority int    `validate:"min=0,max=100"`
	Paid            bool
	Notes           string `validate:"max=2000"`
}

// Submission tracks one product on one site.
type Submission struct {
	ID          string           `json:"id"`
	ProductID   string           `json:"productId"`
	SiteID      string           `json:"siteId"`
	Status      SubmissionStatus `json:"status"`
	Notes       string           `json:"notes,omitempty"`
	SubmittedAt *time.Time       `json:"submittedAt,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

type statusInput struct {
	Status SubmissionStatus `validate:"required,oneof=pending submitted approved rejected"`
	Notes  string           `validate:"max=2000"`
}

// Backlinks manages backlink sites and per-product submissions.
type Backlinks struct {
	sites       *typed.List[Site]
	submissions *typed.List[Submission]
	products    *typed.List[Product]
	opts        options
}

// NewBacklinks creates the backlink manager.
func NewBacklinks(store Storage, opts ...Option) *Backlinks {
	return &Backlinks{
		sites:       typed.NewList[Site](store, core.KeyBacklinkSites),
		submissions: typed.NewList[Submission](store, core.KeyBacklinkSubmissions),
		products:    typed.NewList[Product](store, core.KeyProducts),
		opts:        newOptions(opts),
	}
}

// ListSites returns every site.
func (b *Backlinks) ListSites(ctx context.Context) ([]Site, error) {
	sites, err := b.sites.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load backlink sites: %w", err)
	}
	return sites, nil
}

// GetSite returns the site with id.
func (b *Backlinks) GetSite(ctx context.Context, id string) (Site, error) {
	site, found, err := b.sites.Find(ctx, func(s Site) bool { return s.ID == id })
	if err != nil {
		return Site{}, fmt.Errorf("failed to load backlink sites: %w", err)
	}
	if !found {
		return Site{}, fmt.Errorf("site %s: %w", id, ErrNotFound)
	}
	return site, nil
}

// CreateSite validates in and appends a new site.
func (b *Backlinks) CreateSite(ctx context.Context, in SiteInput) (Site, error) {
	if err := validateInput(in); err != nil {
		return Site{}, err
	}
	id, err := newID("site-")
	if err != nil {
		return Site{}, err
	}
	now := b.opts.now()
	site := Site{ID: id, CreatedAt: now}
	applySiteInput(&site, in, now)
	if err := b.sites.Append(ctx, site); err != nil {
		b.opts.logger.Error("failed to save backlink sites", "error", err)
		return Site{}, fmt.Errorf("failed to save backlink sites: %w", err)
	}
	return site, nil
}

// UpdateSite replaces the editable fields of site id.
func (b *Backlinks) UpdateSite(ctx context.Context, id string, in SiteInput) (Site, error) {
	if err := validateInput(in); err != nil {
		return Site{}, err
	}
	var updated Site
	err := b.sites.Update(ctx, func(sites []Site) ([]Site, error) {
		for i := range sites {
			if sites[i].ID == id {
				applySiteInput(&sites[i], in, b.opts.now())
				updated = sites[i]
				return sites, nil
			}
		}
		return nil, fmt.Errorf("site %s: %w", id, ErrNotFound)
	})
	if err != nil {
		return Site{}, fmt.Errorf("failed to update site: %w", err)
	}
	return updated, nil
}

func applySiteInput(s *Site, in SiteInput, now time.Time) {
	s.Name = in.Name
	s.URL = in.URL
	s.SubmitURL = in.SubmitURL
	s.Category = in.Category
	s.DomainAuthority = in.DomainAuthority
	s.Paid = in.Paid
	s.Notes = in.Notes
	s.UpdatedAt = now
}

// DeleteSite removes site id and every submission to it.
func (b *Backlinks) DeleteSite(ctx context.Context, id string) error {
	removed, err := b.sites.RemoveWhere(ctx, func(s Site) bool { return s.ID == id })
	if err != nil {
		return fmt.Errorf("failed to delete site: %w", err)
	}
	if removed == 0 {
		return fmt.Errorf("site %s: %w", id, ErrNotFound)
	}
	if _, err := b.submissions.RemoveWhere(ctx, func(s Submission) bool { return s.SiteID == id }); err != nil {
		return fmt.Errorf("failed to delete submissions to site %s: %w", id, err)
	}
	b.opts.logger.Info("backlink site deleted", "id", id)
	return nil
}

// ListSubmissions returns the submissions of productID, or all of them
// when productID is empty.
func (b *Backlinks) ListSubmissions(ctx context.Context, productID string) ([]Submission, error) {
	all, err := b.submissions.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load submissions: %w", err)
	}
	if productID == "" {
		return all, nil
	}
	out := []Submission{}
	for _, s := range all {
		if s.ProductID == productID {
			out = append(out, s)
		}
	}
	return out, nil
}

// Submit records the status of productID on siteID. An existing
// submission for the same pair is updated in place.
func (b *Backlinks) Submit(ctx context.Context, productID, siteID string, status SubmissionStatus, notes string) (Submission, error) {
	if err := validateInput(statusInput{Status: status, Notes: notes}); err != nil {
		return Submission{}, err
	}
	if _, found, err := b.products.Find(ctx, func(p Product) bool { return p.ID == productID }); err != nil {
		return Submission{}, err
	} else if !found {
		return Submission{}, fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	if _, err := b.GetSite(ctx, siteID); err != nil {
		return Submission{}, err
	}

	var result Submission
	err := b.submissions.Update(ctx, func(subs []Submission) ([]Submission, error) {
		now := b.opts.now()
		for i := range subs {
			if subs[i].ProductID == productID && subs[i].SiteID == siteID {
				applyStatus(&subs[i], status, notes, now)
				result = subs[i]
				return subs, nil
			}
		}
		id, err := newID("sub-")
		if err != nil {
			return nil, err
		}
		sub := Submission{ID: id, ProductID: productID, SiteID: siteID, CreatedAt: now}
		applyStatus(&sub, status, notes, now)
		result = sub
		return append(subs, sub), nil
	})
	if err != nil {
		return Submission{}, fmt.Errorf("failed to save submissions: %w", err)
	}
	b.opts.logger.Info("backlink submission recorded",
		"product", productID, "site", siteID, "status", string(status))
	return result, nil
}

// UpdateSubmissionStatus changes the status and notes of submission id.
func (b *Backlinks) UpdateSubmissionStatus(ctx context.Context, id string, status SubmissionStatus, notes string) (Submission, error) {
	if err := validateInput(statusInput{Status: status, Notes: notes}); err != nil {
		return Submission{}, err
	}
	var result Submission
	err := b.submissions.Update(ctx, func(subs []Submission) ([]Submission, error) {
		for i := range subs {
			if subs[i].ID == id {
				applyStatus(&subs[i], status, notes, b.opts.now())
				result = subs[i]
				return subs, nil
			}
		}
		return nil, fmt.Errorf("submission %s: %w", id, ErrNotFound)
	})
	if err != nil {
		return Submission{}, fmt.Errorf("failed to update submission: %w", err)
	}
	return result, nil
}

// applyStatus stamps SubmittedAt the first time a submission leaves pending.
func applyStatus(s *Submission, status SubmissionStatus, notes string, now time.Time) {
	s.Status = status
	s.Notes = notes
	s.UpdatedAt = now
	if status != StatusPending && s.SubmittedAt == nil {
		at := now
		s.SubmittedAt = &at
	}
}

// DeleteSubmission removes submission id.
func (b *Backlinks) DeleteSubmission(ctx context.Context, id string) error {
	removed, err := b.submissions.RemoveWhere(ctx, func(s Submission) bool { return s.ID == id })
	if err != nil {
		return fmt.Errorf("failed to delete submission: %w", err)
	}
	if removed == 0 {
		return fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	return nil
}
