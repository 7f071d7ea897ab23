package models

import (
	"errors"

	"gorm.io/gorm"

	"teamdesk/apperr"
)

// User represents a user account in the system
type User struct {
	gorm.Model

	// Authentication fields
	Username     string `gorm:"uniqueIndex;not null" json:"username"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`

	// Profile information
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	About     string `gorm:"size:1023" json:"about"`

	// Account status
	IsActive bool `gorm:"default:true" json:"is_active"`

	// Relations
	Memberships   []Membership `gorm:"foreignKey:UserID" json:"memberships,omitempty"`
	CreatedItems  []Item       `gorm:"foreignKey:CreatorID" json:"created_items,omitempty"`
	AssignedItems []Item       `gorm:"foreignKey:AssignedUserID" json:"assigned_items,omitempty"`
}

// FindUser loads a user by ID, mapping a missing row to a NotFound failure.
func FindUser(db *gorm.DB, id uint) (*User, error) {
	var user User
	if err := db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "user not found")
		}
		return nil, apperr.Wrap(apperr.Internal, "failed to fetch user", err)
	}
	return &user, nil
}
