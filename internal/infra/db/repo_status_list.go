package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dhis2/certification-app-sub003/internal/domain"
	"github.com/dhis2/certification-app-sub003/internal/infra/statuslist"
)

// StatusListRepository persists the revocation bitstring. Allocate and Revoke
// lock the row so concurrent issuances cannot hand out the same index.
type StatusListRepository struct {
	db      *gorm.DB
	purpose string
}

func NewStatusListRepository(db *gorm.DB) *StatusListRepository {
	return &StatusListRepository{db: db, purpose: domain.StatusPurposeRevocation}
}

func (r *StatusListRepository) Allocate(ctx context.Context) (int, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	index := -1
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model, err := r.lockRow(tx)
		if err != nil {
			return err
		}
		capacity := statuslist.FromBytes(model.Bitmap).Len()
		if model.NextIndex >= capacity {
			return domain.ErrStatusListFull
		}
		index = model.NextIndex
		model.NextIndex++
		model.UpdatedAt = time.Now().UTC()
		return tx.Save(model).Error
	})
	if err != nil {
		return 0, err
	}
	return index, nil
}

// Reclaim returns an index handed out by Allocate whose credential was never
// persisted. Only the most recent allocation can be taken back; older indexes
// stay burned rather than risking reuse of an index a credential references.
func (r *StatusListRepository) Reclaim(ctx context.Context, index int) error {
	if r.db == nil {
		return errDBUnavailable
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model, err := r.lockRow(tx)
		if err != nil {
			return err
		}
		if index != model.NextIndex-1 {
			return nil
		}
		model.NextIndex--
		model.UpdatedAt = time.Now().UTC()
		return tx.Save(model).Error
	})
}

func (r *StatusListRepository) Revoke(ctx context.Context, index int) error {
	if r.db == nil {
		return errDBUnavailable
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model, err := r.lockRow(tx)
		if err != nil {
			return err
		}
		bits := statuslist.FromBytes(model.Bitmap)
		if err := bits.Set(index); err != nil {
			return err
		}
		model.Bitmap = bits.Bytes()
		model.UpdatedAt = time.Now().UTC()
		return tx.Save(model).Error
	})
}

func (r *StatusListRepository) IsRevoked(ctx context.Context, index int) (bool, error) {
	if r.db == nil {
		return false, errDBUnavailable
	}
	var model StatusListModel
	err := r.db.WithContext(ctx).First(&model, "purpose = ?", r.purpose).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return statuslist.FromBytes(model.Bitmap).Get(index)
}

// EncodedList returns the published compressed form of the bitmap.
func (r *StatusListRepository) EncodedList(ctx context.Context) (string, error) {
	if r.db == nil {
		return "", errDBUnavailable
	}
	var model StatusListModel
	err := r.db.WithContext(ctx).First(&model, "purpose = ?", r.purpose).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return statuslist.NewBitstring(0).Encoded()
	}
	if err != nil {
		return "", err
	}
	return statuslist.FromBytes(model.Bitmap).Encoded()
}

// lockRow loads the list row for update, creating it on first use.
func (r *StatusListRepository) lockRow(tx *gorm.DB) (*StatusListModel, error) {
	var model StatusListModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "purpose = ?", r.purpose).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		model = StatusListModel{
			Purpose:   r.purpose,
			Bitmap:    statuslist.NewBitstring(0).Bytes(),
			NextIndex: 0,
			UpdatedAt: time.Now().UTC(),
		}
		if err := tx.Create(&model).Error; err != nil {
			return nil, err
		}
		return &model, nil
	}
	if err != nil {
		return nil, err
	}
	return &model, nil
}
