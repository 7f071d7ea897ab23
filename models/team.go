package models

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"teamdesk/apperr"
)

// Team is a node in the two-level team tree. A main team has IsGroup=false
// and no parent; a group has IsGroup=true and always points at a main team.
type Team struct {
	gorm.Model
	ParentTeamID *uint  `gorm:"index" json:"parent_team_id,omitempty"`
	IsGroup      bool   `gorm:"default:false" json:"is_group"`
	Name         string `gorm:"not null" json:"name"`
	Description  string `gorm:"size:1023" json:"description"`

	// Relations
	Groups      []Team       `gorm:"foreignKey:ParentTeamID" json:"groups,omitempty"`
	Members     []Membership `gorm:"foreignKey:TeamID" json:"members,omitempty"`
	Collections []Collection `gorm:"foreignKey:TeamID" json:"collections,omitempty"`
}

// Membership joins a user to a team. Exactly one membership per team has
// IsCreator=true, assigned at team creation and never reassigned.
type Membership struct {
	gorm.Model
	TeamID uint `gorm:"not null;uniqueIndex:idx_memberships_team_user" json:"team_id"`
	UserID uint `gorm:"not null;uniqueIndex:idx_memberships_team_user" json:"user_id"`

	IsManager bool      `gorm:"default:false" json:"is_manager"`
	IsCreator bool      `gorm:"default:false" json:"is_creator"`
	StartedAt time.Time `json:"started_at"`

	// Relations
	Team Team `json:"-"`
	User User `json:"-"`
}

// OwningTeamID lets a team act as its own ownership root.
func (t *Team) OwningTeamID(db *gorm.DB) (uint, error) {
	return t.ID, nil
}

// FindTeam loads a team by ID, mapping a missing row to a NotFound failure.
func FindTeam(db *gorm.DB, id uint) (*Team, error) {
	var team Team
	if err := db.First(&team, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "team not found")
		}
		return nil, apperr.Wrap(apperr.Internal, "failed to fetch team", err)
	}
	return &team, nil
}

// MembershipOf returns the membership row for (team, user).
func MembershipOf(db *gorm.DB, teamID, userID uint) (*Membership, error) {
	var m Membership
	err := db.Where("team_id = ? AND user_id = ?", teamID, userID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "membership not found")
		}
		return nil, apperr.Wrap(apperr.Internal, "failed to fetch membership", err)
	}
	return &m, nil
}

// IsMember reports whether the user holds a membership row on the team.
func (t *Team) IsMember(db *gorm.DB, userID uint) (bool, error) {
	var count int64
	err := db.Model(&Membership{}).
		Where("team_id = ? AND user_id = ?", t.ID, userID).
		Count(&count).Error
	if err != nil {
		return false, apperr.Wrap(apperr.Internal, "failed to check membership", err)
	}
	return count > 0, nil
}

// CreatorID resolves the effective creator of the team. For a group this is
// the creator of its parent main team, so the main-team creator keeps
// authority inside every group.
func (t *Team) CreatorID(db *gorm.DB) (uint, error) {
	teamID := t.ID
	if t.IsGroup {
		if t.ParentTeamID == nil {
			return 0, apperr.New(apperr.Invalid, "group has no parent team")
		}
		teamID = *t.ParentTeamID
	}
	var m Membership
	err := db.Where("team_id = ? AND is_creator = ?", teamID, true).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperr.New(apperr.NotFound, "membership not found")
		}
		return 0, apperr.Wrap(apperr.Internal, "failed to fetch creator membership", err)
	}
	return m.UserID, nil
}

// CreateTeam creates a main team together with the creator membership and
// the team backlog. Must run inside a transaction.
func CreateTeam(tx *gorm.DB, creator *User, name, description string) (*Team, error) {
	team := Team{
		Name:        name,
		Description: description,
	}
	if err := tx.Create(&team).Error; err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to create team", err)
	}

	membership := Membership{
		TeamID:    team.ID,
		UserID:    creator.ID,
		IsManager: true,
		IsCreator: true,
		StartedAt: time.Now(),
	}
	if err := tx.Create(&membership).Error; err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to create creator membership", err)
	}

	if err := tx.Create(&Backlog{TeamID: team.ID}).Error; err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to create backlog", err)
	}

	return &team, nil
}

// CreateGroup creates a group under a main team. Groups cannot nest: the
// parent must itself not be a group. The acting user becomes the group's
// creator and manager, and the group gets its own backlog.
func CreateGroup(tx *gorm.DB, parent *Team, creator *User, name, description string) (*Team, error) {
	if parent.IsGroup {
		return nil, apperr.New(apperr.Invalid, "team is already a group")
	}

	group := Team{
		ParentTeamID: &parent.ID,
		IsGroup:      true,
		Name:         name,
		Description:  description,
	}
	if err := tx.Create(&group).Error; err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to create group", err)
	}

	membership := Membership{
		TeamID:    group.ID,
		UserID:    creator.ID,
		IsManager: true,
		IsCreator: true,
		StartedAt: time.Now(),
	}
	if err := tx.Create(&membership).Error; err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to create creator membership", err)
	}

	if err := tx.Create(&Backlog{TeamID: group.ID}).Error; err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to create backlog", err)
	}

	return &group, nil
}

// AddMember inserts a plain membership for the candidate. Duplicates are a
// conflict, the effective creator is always implicitly "in", and groups can
// only draw members from their parent team.
func AddMember(tx *gorm.DB, team *Team, candidate *User) (*Membership, error) {
	creatorID, err := team.CreatorID(tx)
	if err != nil {
		return nil, err
	}
	if candidate.ID == creatorID {
		return nil, apperr.New(apperr.Conflict, "user is already a member of the team")
	}

	member, err := team.IsMember(tx, candidate.ID)
	if err != nil {
		return nil, err
	}
	if member {
		return nil, apperr.New(apperr.Conflict, "user is already a member of the team")
	}

	if team.IsGroup {
		parent, err := FindTeam(tx, *team.ParentTeamID)
		if err != nil {
			return nil, err
		}
		inParent, err := parent.IsMember(tx, candidate.ID)
		if err != nil {
			return nil, err
		}
		if !inParent {
			return nil, apperr.New(apperr.Forbidden, "user is not a member of the main team")
		}
	}

	membership := Membership{
		TeamID:    team.ID,
		UserID:    candidate.ID,
		StartedAt: time.Now(),
	}
	if err := tx.Create(&membership).Error; err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to create membership", err)
	}
	return &membership, nil
}

// CanManageMember reports whether the actor may manage the target's
// membership on the team. Self-management never passes through here. The
// effective creator outranks everyone; a manager outranks non-managers; the
// group's own creator outranks the group's managers.
func CanManageMember(db *gorm.DB, team *Team, actorID, targetID uint) (bool, error) {
	if actorID == targetID {
		return false, nil
	}

	creatorID, err := team.CreatorID(db)
	if err != nil {
		return false, err
	}
	if actorID == creatorID {
		return true, nil
	}

	actorMembership, err := MembershipOf(db, team.ID, actorID)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return false, nil
		}
		return false, err
	}
	targetMembership, err := MembershipOf(db, team.ID, targetID)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return false, nil
		}
		return false, err
	}

	if actorMembership.IsManager && !targetMembership.IsManager {
		return true, nil
	}
	if actorMembership.IsCreator && targetMembership.IsManager {
		return true, nil
	}
	return false, nil
}

// RemoveMember deletes the target's membership. On a main team the removal
// cascades into every child group. Must run inside a transaction.
func RemoveMember(tx *gorm.DB, team *Team, actorID, targetID uint) error {
	allowed, err := CanManageMember(tx, team, actorID, targetID)
	if err != nil {
		return err
	}
	if !allowed {
		return apperr.New(apperr.Forbidden, "not allowed to manage this member")
	}

	membership, err := MembershipOf(tx, team.ID, targetID)
	if err != nil {
		return err
	}
	if err := tx.Unscoped().Delete(membership).Error; err != nil {
		return apperr.Wrap(apperr.Internal, "failed to delete membership", err)
	}

	if !team.IsGroup {
		// Leaving the main team revokes every group membership under it.
		err := tx.Unscoped().
			Where("user_id = ? AND team_id IN (?)", targetID,
				tx.Model(&Team{}).Select("id").Where("parent_team_id = ?", team.ID)).
			Delete(&Membership{}).Error
		if err != nil {
			return apperr.Wrap(apperr.Internal, "failed to cascade group removals", err)
		}
	}
	return nil
}

// SetManager toggles the manager flag on the target's membership. Only the
// effective creator may promote or demote, and never themselves.
func SetManager(tx *gorm.DB, team *Team, actorID, targetID uint, manager bool) (*Membership, error) {
	if actorID == targetID {
		return nil, apperr.New(apperr.Forbidden, "cannot change own manager role")
	}

	creatorID, err := team.CreatorID(tx)
	if err != nil {
		return nil, err
	}
	if actorID != creatorID {
		actorMembership, err := MembershipOf(tx, team.ID, actorID)
		if err != nil || !actorMembership.IsCreator {
			return nil, apperr.New(apperr.Forbidden, "only the team creator can change manager roles")
		}
	}

	membership, err := MembershipOf(tx, team.ID, targetID)
	if err != nil {
		return nil, err
	}

	membership.IsManager = manager
	if err := tx.Model(membership).Update("is_manager", manager).Error; err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to update membership", err)
	}
	return membership, nil
}

// DeleteTeam removes a team and everything it owns: memberships, backlog,
// items, collections, lists, device, and for a main team its child groups.
// Must run inside a transaction.
func DeleteTeam(tx *gorm.DB, team *Team) error {
	teamIDs := []uint{team.ID}
	if !team.IsGroup {
		var groupIDs []uint
		if err := tx.Model(&Team{}).Where("parent_team_id = ?", team.ID).Pluck("id", &groupIDs).Error; err != nil {
			return apperr.Wrap(apperr.Internal, "failed to list groups", err)
		}
		teamIDs = append(teamIDs, groupIDs...)
	}

	var collectionIDs []uint
	if err := tx.Model(&Collection{}).Where("team_id IN ?", teamIDs).Pluck("id", &collectionIDs).Error; err != nil {
		return apperr.Wrap(apperr.Internal, "failed to list collections", err)
	}

	steps := []struct {
		msg string
		run func() error
	}{
		{"failed to delete items", func() error {
			return tx.Unscoped().Where("backlog_id IN (?)",
				tx.Model(&Backlog{}).Select("id").Where("team_id IN ?", teamIDs)).Delete(&Item{}).Error
		}},
		{"failed to delete lists", func() error {
			if len(collectionIDs) == 0 {
				return nil
			}
			return tx.Unscoped().Where("collection_id IN ?", collectionIDs).Delete(&List{}).Error
		}},
		{"failed to delete collections", func() error {
			return tx.Unscoped().Where("team_id IN ?", teamIDs).Delete(&Collection{}).Error
		}},
		{"failed to delete backlogs", func() error {
			return tx.Unscoped().Where("team_id IN ?", teamIDs).Delete(&Backlog{}).Error
		}},
		{"failed to delete devices", func() error {
			return tx.Unscoped().Where("team_id IN ?", teamIDs).Delete(&Device{}).Error
		}},
		{"failed to delete memberships", func() error {
			return tx.Unscoped().Where("team_id IN ?", teamIDs).Delete(&Membership{}).Error
		}},
		{"failed to delete teams", func() error {
			return tx.Unscoped().Where("id IN ?", teamIDs).Delete(&Team{}).Error
		}},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return apperr.Wrap(apperr.Internal, step.msg, err)
		}
	}
	return nil
}
