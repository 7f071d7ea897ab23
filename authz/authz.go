// Package authz resolves what a user may do with a team-owned resource.
// Every entity type maps to its owning team through a TeamOwned resolver and
// all checks are evaluated against that single team. Checks fail closed: no
// membership row means no access.
package authz

import (
	"gorm.io/gorm"

	"teamdesk/apperr"
	"teamdesk/models"
)

// Role is the privilege level a user holds on a specific team.
type Role int

const (
	RoleNone Role = iota
	RoleMember
	RoleManager
	RoleCreator
)

func (r Role) String() string {
	switch r {
	case RoleCreator:
		return "creator"
	case RoleManager:
		return "manager"
	case RoleMember:
		return "member"
	default:
		return "none"
	}
}

// TeamOwned is implemented by every entity that belongs to a team, directly
// or through its parent chain (item/backlog, list/collection).
type TeamOwned interface {
	OwningTeamID(db *gorm.DB) (uint, error)
}

// RoleOf returns the role the user's membership row grants on the team.
// A missing team is a NotFound failure, not a forbidden one.
func RoleOf(db *gorm.DB, userID, teamID uint) (Role, error) {
	if _, err := models.FindTeam(db, teamID); err != nil {
		return RoleNone, err
	}

	membership, err := models.MembershipOf(db, teamID, userID)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return RoleNone, nil
		}
		return RoleNone, err
	}

	switch {
	case membership.IsCreator:
		return RoleCreator, nil
	case membership.IsManager:
		return RoleManager, nil
	default:
		return RoleMember, nil
	}
}

// resolve walks the resource to its owning team.
func resolve(db *gorm.DB, resource TeamOwned) (*models.Team, error) {
	teamID, err := resource.OwningTeamID(db)
	if err != nil {
		return nil, err
	}
	return models.FindTeam(db, teamID)
}

// IsCreator reports whether the user is the effective creator of the
// resource's team. For groups the main team's creator counts too.
func IsCreator(db *gorm.DB, userID uint, resource TeamOwned) (bool, error) {
	team, err := resolve(db, resource)
	if err != nil {
		return false, err
	}

	creatorID, err := team.CreatorID(db)
	if err != nil {
		return false, err
	}
	if userID == creatorID {
		return true, nil
	}

	membership, err := models.MembershipOf(db, team.ID, userID)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return false, nil
		}
		return false, err
	}
	return membership.IsCreator && membership.IsManager, nil
}

// IsManagerOrCreator reports whether the user may manage resources on the
// resource's team. Creator implies manager.
func IsManagerOrCreator(db *gorm.DB, userID uint, resource TeamOwned) (bool, error) {
	team, err := resolve(db, resource)
	if err != nil {
		return false, err
	}

	creatorID, err := team.CreatorID(db)
	if err != nil {
		return false, err
	}
	if userID == creatorID {
		return true, nil
	}

	membership, err := models.MembershipOf(db, team.ID, userID)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return false, nil
		}
		return false, err
	}
	return membership.IsManager, nil
}

// IsMemberOrCreator reports whether the user may read the resource.
func IsMemberOrCreator(db *gorm.DB, userID uint, resource TeamOwned) (bool, error) {
	team, err := resolve(db, resource)
	if err != nil {
		return false, err
	}

	creatorID, err := team.CreatorID(db)
	if err != nil {
		return false, err
	}
	if userID == creatorID {
		return true, nil
	}
	return team.IsMember(db, userID)
}

// RequireManagerOrCreator turns a failed manager check into a typed
// Forbidden failure, propagating NotFound from the resolution walk.
func RequireManagerOrCreator(db *gorm.DB, userID uint, resource TeamOwned) error {
	ok, err := IsManagerOrCreator(db, userID, resource)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.Forbidden, "manager role required")
	}
	return nil
}

// RequireMemberOrCreator turns a failed member check into a typed
// Forbidden failure.
func RequireMemberOrCreator(db *gorm.DB, userID uint, resource TeamOwned) error {
	ok, err := IsMemberOrCreator(db, userID, resource)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.Forbidden, "team membership required")
	}
	return nil
}

// RequireCreator turns a failed creator check into a typed Forbidden failure.
func RequireCreator(db *gorm.DB, userID uint, resource TeamOwned) error {
	ok, err := IsCreator(db, userID, resource)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.Forbidden, "creator role required")
	}
	return nil
}
