package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dhis2/certification-app-sub003/internal/domain"
	"github.com/dhis2/certification-app-sub003/internal/usecase"
)

// AuditEntryRepository appends entries to the hash chain. Seq, PrevHash,
// CurrHash and Signature are assigned inside one transaction that locks the
// chain head, so concurrent appends serialize instead of forking the chain.
type AuditEntryRepository struct {
	db        *gorm.DB
	integrity *usecase.AuditIntegrity
}

func NewAuditEntryRepository(db *gorm.DB, integrity *usecase.AuditIntegrity) *AuditEntryRepository {
	return &AuditEntryRepository{db: db, integrity: integrity}
}

func (r *AuditEntryRepository) Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	if r.db == nil {
		return domain.AuditEntry{}, errDBUnavailable
	}
	if !r.integrity.Configured() {
		return domain.AuditEntry{}, domain.ErrAuditKeyMissing
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var head AuditEntryModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Order("seq DESC").
			First(&head).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			entry.Seq = 1
			entry.PrevHash = domain.ZeroAuditHash
		case err != nil:
			return err
		default:
			entry.Seq = head.Seq + 1
			entry.PrevHash = head.CurrHash
		}

		sealed, err := r.integrity.Seal(ctx, entry)
		if err != nil {
			return err
		}
		entry = sealed

		model := toAuditModel(entry)
		return tx.Create(&model).Error
	})
	if err != nil {
		return domain.AuditEntry{}, err
	}
	return entry, nil
}

func (r *AuditEntryRepository) List(ctx context.Context) ([]domain.AuditEntry, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []AuditEntryModel
	if err := r.db.WithContext(ctx).Order("seq ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	entries := make([]domain.AuditEntry, 0, len(models))
	for _, model := range models {
		entries = append(entries, fromAuditModel(model))
	}
	return entries, nil
}

func toAuditModel(entry domain.AuditEntry) AuditEntryModel {
	return AuditEntryModel{
		ID:         entry.ID,
		Seq:        entry.Seq,
		EventType:  string(entry.EventType),
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		ActorID:    entry.ActorID,
		ActorIP:    entry.ActorIP,
		OldValues:  entry.OldValues,
		NewValues:  entry.NewValues,
		PrevHash:   entry.PrevHash,
		CurrHash:   entry.CurrHash,
		Signature:  entry.Signature,
		CreatedAt:  entry.CreatedAt,
	}
}

func fromAuditModel(model AuditEntryModel) domain.AuditEntry {
	return domain.AuditEntry{
		ID:         model.ID,
		Seq:        model.Seq,
		EventType:  domain.AuditEventType(model.EventType),
		Action:     model.Action,
		EntityType: model.EntityType,
		EntityID:   model.EntityID,
		ActorID:    model.ActorID,
		ActorIP:    model.ActorIP,
		OldValues:  model.OldValues,
		NewValues:  model.NewValues,
		PrevHash:   model.PrevHash,
		CurrHash:   model.CurrHash,
		Signature:  model.Signature,
		CreatedAt:  model.CreatedAt,
	}
}
