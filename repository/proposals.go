// Package repository owns the proposal and issued-policy stores.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jinzhu/now"
	"gorm.io/gorm"

	"presale/models"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrVersionConflict  = errors.New("proposal was modified by another session")
	ErrAlreadyConverted = errors.New("proposal already converted")
)

// Proposals is the proposal store. Rows hold the full canonical record as JSON
// plus a few columns for search and guarded writes.
type Proposals struct {
	db  *gorm.DB
	now func() time.Time
}

func NewProposals(db *gorm.DB) *Proposals {
	return &Proposals{db: db, now: time.Now}
}

// Create stores a new proposal, assigning an id and version 1.
func (r *Proposals) Create(ctx context.Context, p *models.Proposal) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	ts := r.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = ts
	}
	p.UpdatedAt = ts
	p.Version = 1
	applyDefaults(p)

	rec, err := toRecord(p)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("create proposal %s: %w", p.ID, err)
	}
	return nil
}

// Import normalizes a raw record of any known shape and stores it.
func (r *Proposals) Import(ctx context.Context, raw []byte) (*models.Proposal, error) {
	p, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	if err := r.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Proposals) Get(ctx context.Context, id string) (*models.Proposal, error) {
	var rec models.ProposalRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load proposal %s: %w", id, err)
	}
	return fromRecord(&rec)
}

// Save writes p if nobody else has written since it was read. On success
// p.Version and p.UpdatedAt reflect the stored row. Converted rows are never rewritten.
func (r *Proposals) Save(ctx context.Context, p *models.Proposal) error {
	return r.guardedUpdate(r.db.WithContext(ctx), p)
}

// SaveConverted writes the converted proposal and its issued policy in one
// transaction. At most one call can ever succeed per proposal.
func (r *Proposals) SaveConverted(ctx context.Context, p *models.Proposal, issued *models.IssuedPolicy) error {
	snapshot, err := json.Marshal(issued)
	if err != nil {
		return fmt.Errorf("encode issued policy: %w", err)
	}

	version, updated := p.Version, p.UpdatedAt
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.guardedUpdate(tx, p); err != nil {
			return err
		}
		rec := &models.IssuedPolicyRecord{
			PolicyNumber:      issued.PolicyNumber,
			CertificateNumber: issued.CertificateNumber,
			ProposalID:        issued.ProposalID,
			IssuedAt:          issued.IssuedAt,
			Snapshot:          snapshot,
		}
		if err := tx.Create(rec).Error; err != nil {
			return fmt.Errorf("store issued policy %s: %w", issued.PolicyNumber, err)
		}
		return nil
	})
	if err != nil {
		p.Version, p.UpdatedAt = version, updated
		return err
	}
	return nil
}

func (r *Proposals) guardedUpdate(db *gorm.DB, p *models.Proposal) error {
	expected := p.Version
	prevUpdated := p.UpdatedAt

	p.Version = expected + 1
	p.UpdatedAt = r.now()
	rec, err := toRecord(p)
	if err != nil {
		p.Version, p.UpdatedAt = expected, prevUpdated
		return err
	}

	res := db.Model(&models.ProposalRecord{}).
		Where("id = ? AND version = ? AND status <> ?", p.ID, expected, models.ProposalConverted).
		Updates(map[string]interface{}{
			"status":        rec.Status,
			"customer_name": rec.CustomerName,
			"email":         rec.Email,
			"phone":         rec.Phone,
			"policy_number": rec.PolicyNumber,
			"version":       rec.Version,
			"data":          rec.Data,
			"updated_at":    rec.UpdatedAt,
		})
	if res.Error != nil {
		p.Version, p.UpdatedAt = expected, prevUpdated
		return fmt.Errorf("save proposal %s: %w", p.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		p.Version, p.UpdatedAt = expected, prevUpdated
		return missOrConflict(db, p.ID)
	}
	return nil
}

// missOrConflict explains why a guarded write touched no row.
func missOrConflict(db *gorm.DB, id string) error {
	var rec models.ProposalRecord
	err := db.Select("id", "status").Where("id = ?", id).First(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case err != nil:
		return fmt.Errorf("load proposal %s: %w", id, err)
	case rec.Status == string(models.ProposalConverted):
		return ErrAlreadyConverted
	}
	return ErrVersionConflict
}

// Delete removes a proposal that has not been converted.
func (r *Proposals) Delete(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	res := db.Where("id = ? AND status <> ?", id, models.ProposalConverted).Delete(&models.ProposalRecord{})
	if res.Error != nil {
		return fmt.Errorf("delete proposal %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return missOrConflict(db, id)
	}
	return nil
}

// Filter narrows a proposal listing. Converted proposals are hidden unless
// asked for or filtered by status explicitly.
type Filter struct {
	Status           models.ProposalStatus
	Email            string
	Phone            string
	PolicyNumber     string
	Text             string
	CreatedOn        *time.Time
	IncludeConverted bool
	Page             int
	Limit            int
}

type Page struct {
	Items []*models.Proposal `json:"items"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}

func (r *Proposals) Search(ctx context.Context, f Filter) (*Page, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}

	query := r.db.WithContext(ctx).Model(&models.ProposalRecord{})
	switch {
	case f.Status != "":
		query = query.Where("status = ?", f.Status)
	case !f.IncludeConverted:
		query = query.Where("status <> ?", models.ProposalConverted)
	}
	if f.Email != "" {
		query = query.Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(f.Email)))
	}
	if f.Phone != "" {
		query = query.Where("phone = ?", strings.TrimSpace(f.Phone))
	}
	if f.PolicyNumber != "" {
		query = query.Where("policy_number = ?", strings.TrimSpace(f.PolicyNumber))
	}
	if text := strings.ToLower(strings.TrimSpace(f.Text)); text != "" {
		like := "%" + text + "%"
		query = query.Where(
			"LOWER(customer_name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ? OR LOWER(policy_number) LIKE ? OR id LIKE ?",
			like, like, like, like, like,
		)
	}
	if f.CreatedOn != nil {
		day := now.With(*f.CreatedOn)
		query = query.Where("created_at BETWEEN ? AND ?", day.BeginningOfDay(), day.EndOfDay())
	}

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count proposals: %w", err)
	}

	var recs []models.ProposalRecord
	err := query.Order("created_at DESC").
		Offset((f.Page - 1) * f.Limit).
		Limit(f.Limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("search proposals: %w", err)
	}

	page := &Page{Items: make([]*models.Proposal, 0, len(recs)), Total: total, Page: f.Page, Limit: f.Limit}
	for i := range recs {
		p, err := fromRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, p)
	}
	return page, nil
}

func toRecord(p *models.Proposal) (*models.ProposalRecord, error) {
	data, err := encode(p)
	if err != nil {
		return nil, fmt.Errorf("encode proposal %s: %w", p.ID, err)
	}
	rec := &models.ProposalRecord{
		ID:           p.ID,
		Status:       string(p.Status),
		CustomerName: p.CustomerInfo.DisplayName(),
		Email:        strings.ToLower(p.CustomerInfo.Email),
		Phone:        p.CustomerInfo.Phone,
		Version:      p.Version,
		Data:         data,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	if p.SelectedQuote != nil {
		rec.PolicyNumber = p.SelectedQuote.PolicyNumber
	}
	return rec, nil
}

// fromRecord decodes through Normalize; row columns win for identity and version.
func fromRecord(rec *models.ProposalRecord) (*models.Proposal, error) {
	p, err := Normalize(rec.Data)
	if err != nil {
		return nil, fmt.Errorf("proposal %s: %w", rec.ID, err)
	}
	p.ID = rec.ID
	p.Version = rec.Version
	p.CreatedAt = rec.CreatedAt
	p.UpdatedAt = rec.UpdatedAt
	return p, nil
}
