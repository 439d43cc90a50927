package db

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/gorm"

	"github.com/dhis2/certification-app-sub003/internal/domain"
)

type CredentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) Save(ctx context.Context, cred domain.StoredCredential) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if cred.ID == "" || cred.Code == "" {
		return errors.New("credential id and code are required")
	}
	credentialJSON, err := json.Marshal(cred.Credential)
	if err != nil {
		return err
	}
	model := CredentialModel{
		ID:              cred.ID,
		Code:            cred.Code,
		CredentialJSON:  credentialJSON,
		Hash:            cred.Hash,
		Signature:       cred.Signature,
		KeyVersion:      cred.KeyVersion,
		StatusListIndex: cred.StatusListIndex,
		CreatedAt:       cred.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *CredentialRepository) GetByCode(ctx context.Context, code string) (domain.StoredCredential, error) {
	return r.getOne(ctx, "code = ?", code)
}

func (r *CredentialRepository) GetByID(ctx context.Context, id string) (domain.StoredCredential, error) {
	return r.getOne(ctx, "id = ?", id)
}

func (r *CredentialRepository) getOne(ctx context.Context, query string, arg any) (domain.StoredCredential, error) {
	if r.db == nil {
		return domain.StoredCredential{}, errDBUnavailable
	}
	var model CredentialModel
	err := r.db.WithContext(ctx).First(&model, query, arg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.StoredCredential{}, domain.ErrNotFound
		}
		return domain.StoredCredential{}, err
	}

	var cred domain.Credential
	if err := json.Unmarshal(model.CredentialJSON, &cred); err != nil {
		return domain.StoredCredential{}, err
	}
	return domain.StoredCredential{
		ID:              model.ID,
		Code:            model.Code,
		Credential:      cred,
		Hash:            model.Hash,
		Signature:       model.Signature,
		KeyVersion:      model.KeyVersion,
		StatusListIndex: model.StatusListIndex,
		CreatedAt:       model.CreatedAt,
	}, nil
}
