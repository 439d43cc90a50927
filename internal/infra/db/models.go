package db

import "time"

type CredentialModel struct {
	ID              string    `gorm:"type:uuid;primaryKey"`
	Code            string    `gorm:"uniqueIndex;not null"`
	CredentialJSON  []byte    `gorm:"type:jsonb;not null"`
	Hash            []byte    `gorm:"type:bytea;not null"`
	Signature       []byte    `gorm:"type:bytea;not null"`
	KeyVersion      int       `gorm:"not null"`
	StatusListIndex int       `gorm:"uniqueIndex;not null"`
	CreatedAt       time.Time `gorm:"not null"`
}

func (CredentialModel) TableName() string {
	return "credentials"
}

type AuditEntryModel struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	Seq        int64  `gorm:"uniqueIndex;not null"`
	EventType  string `gorm:"column:event_type;index;not null"`
	Action     string `gorm:"not null"`
	EntityType string `gorm:"index;not null"`
	EntityID   string `gorm:"index"`
	ActorID    string `gorm:"index"`
	ActorIP    string
	OldValues  []byte    `gorm:"type:jsonb"`
	NewValues  []byte    `gorm:"type:jsonb"`
	PrevHash   string    `gorm:"not null"`
	CurrHash   string    `gorm:"not null"`
	Signature  string    `gorm:"not null"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}

func (AuditEntryModel) TableName() string {
	return "audit_entries"
}

type StatusListModel struct {
	Purpose   string    `gorm:"primaryKey"`
	Bitmap    []byte    `gorm:"type:bytea;not null"`
	NextIndex int       `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (StatusListModel) TableName() string {
	return "status_lists"
}
