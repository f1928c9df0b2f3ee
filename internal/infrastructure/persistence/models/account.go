package models

import (
	"github.com/erp/posting/internal/domain/account"
	"github.com/google/uuid"
)

// AccountModel is the persistence model for a chart of accounts node
type AccountModel struct {
	BaseModel
	Code     string     `gorm:"type:varchar(30);not null;uniqueIndex"`
	Name     string     `gorm:"type:varchar(200);not null"`
	Type     string     `gorm:"type:varchar(20);not null"`
	Nature   string     `gorm:"type:varchar(10);not null"`
	ParentID *uuid.UUID `gorm:"type:uuid;index"`
	Active   bool       `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (AccountModel) TableName() string {
	return "accounts"
}

// ToDomain converts the persistence model to a domain Account
func (m *AccountModel) ToDomain() *account.Account {
	return &account.Account{
		BaseEntity: m.BaseModel.ToDomain(),
		Code:       m.Code,
		Name:       m.Name,
		Type:       account.AccountType(m.Type),
		Nature:     account.Nature(m.Nature),
		ParentID:   m.ParentID,
		Active:     m.Active,
	}
}

// AccountModelFromDomain creates a persistence model from a domain Account
func AccountModelFromDomain(a *account.Account) *AccountModel {
	m := &AccountModel{
		Code:     a.Code,
		Name:     a.Name,
		Type:     string(a.Type),
		Nature:   string(a.Nature),
		ParentID: a.ParentID,
		Active:   a.Active,
	}
	m.FromDomainBaseEntity(a.BaseEntity)
	return m
}
