package models

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"teamdesk/apperr"
)

// Device holds the latest sensor readings reported for a team. At most one
// row per team; writes upsert in place.
type Device struct {
	gorm.Model
	TeamID uint `gorm:"not null;uniqueIndex" json:"team_id"`

	Temperature string `gorm:"size:50" json:"temperature"`
	Humidity    string `gorm:"size:50" json:"humidity"`
	Dosimeter   string `gorm:"size:50" json:"dosimeter"`
	Message     string `json:"message"`
	Result      *int16 `json:"result"`

	// Relations
	Team Team `json:"-"`
}

// FindDeviceByTeam loads the device row for the given team.
func FindDeviceByTeam(db *gorm.DB, teamID uint) (*Device, error) {
	var device Device
	if err := db.Where("team_id = ?", teamID).First(&device).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "device not found")
		}
		return nil, apperr.Wrap(apperr.Internal, "failed to fetch device", err)
	}
	return &device, nil
}

// IsUniqueViolation reports whether err is a unique-constraint rejection
// from the database, across the postgres and sqlite drivers.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint")
}
