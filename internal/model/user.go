package model

import "time"

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         Role      `gorm:"type:varchar(16);not null" json:"role"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CanView reports whether u may see doc.
func (u *User) CanView(doc *Document) bool {
	return u.Role.CanViewAllDocuments() || doc.UserID == u.ID
}

// CanDelete reports whether u may delete doc.
func (u *User) CanDelete(doc *Document) bool {
	return u.Role.CanDeleteAnyDocument() || doc.UserID == u.ID
}
