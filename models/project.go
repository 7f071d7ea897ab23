package models

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"teamdesk/apperr"
)

// Backlog is the always-present item container of a team, one per team.
type Backlog struct {
	gorm.Model
	TeamID uint `gorm:"not null;uniqueIndex" json:"team_id"`

	// Relations
	Team  Team   `json:"-"`
	Items []Item `gorm:"foreignKey:BacklogID" json:"items,omitempty"`
}

// Collection groups lists inside a team.
type Collection struct {
	gorm.Model
	TeamID      uint   `gorm:"not null;index" json:"team_id"`
	Name        string `gorm:"not null" json:"name"`
	Description string `gorm:"size:1023" json:"description"`

	// Relations
	Team  Team   `json:"-"`
	Lists []List `gorm:"foreignKey:CollectionID" json:"lists,omitempty"`
}

// List holds items inside a collection.
type List struct {
	gorm.Model
	CollectionID uint   `gorm:"not null;index" json:"collection_id"`
	Name         string `gorm:"not null" json:"name"`

	// Relations
	Collection Collection `json:"-"`
	Items      []Item     `gorm:"foreignKey:ListID" json:"items,omitempty"`
}

// Item is a unit of work. It always belongs to exactly one backlog and may
// additionally sit on a list, as long as the list's collection and the
// backlog agree on the owning team.
type Item struct {
	gorm.Model
	Name        string `gorm:"not null" json:"name"`
	Description string `gorm:"size:1023" json:"description"`

	Units      uint       `gorm:"default:0" json:"units"`
	StartDate  time.Time  `json:"start_date"`
	EndDate    *time.Time `json:"end_date"`
	LastChange time.Time  `json:"last_change"`

	CreatorID      uint  `gorm:"not null;index" json:"creator_id"`
	AssignedUserID *uint `gorm:"index" json:"assigned_user_id"`

	BacklogID uint  `gorm:"not null;index" json:"backlog_id"`
	ListID    *uint `gorm:"index" json:"list_id"`

	// Relations
	Creator      User  `json:"-"`
	AssignedUser *User `json:"-"`
	Backlog      Backlog
	List         *List `json:"-"`
}

// FindBacklogByTeam loads the backlog owned by the given team.
func FindBacklogByTeam(db *gorm.DB, teamID uint) (*Backlog, error) {
	var backlog Backlog
	if err := db.Where("team_id = ?", teamID).First(&backlog).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "backlog not found")
		}
		return nil, apperr.Wrap(apperr.Internal, "failed to fetch backlog", err)
	}
	return &backlog, nil
}

// FindCollection loads a collection by ID.
func FindCollection(db *gorm.DB, id uint) (*Collection, error) {
	var collection Collection
	if err := db.First(&collection, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "collection not found")
		}
		return nil, apperr.Wrap(apperr.Internal, "failed to fetch collection", err)
	}
	return &collection, nil
}

// FindList loads a list by ID.
func FindList(db *gorm.DB, id uint) (*List, error) {
	var list List
	if err := db.First(&list, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "list not found")
		}
		return nil, apperr.Wrap(apperr.Internal, "failed to fetch list", err)
	}
	return &list, nil
}

// FindItem loads an item by ID.
func FindItem(db *gorm.DB, id uint) (*Item, error) {
	var item Item
	if err := db.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "item not found")
		}
		return nil, apperr.Wrap(apperr.Internal, "failed to fetch item", err)
	}
	return &item, nil
}

// OwningTeamID resolves the team owning the collection.
func (c *Collection) OwningTeamID(db *gorm.DB) (uint, error) {
	return c.TeamID, nil
}

// OwningTeamID resolves the team owning the list through its collection.
func (l *List) OwningTeamID(db *gorm.DB) (uint, error) {
	collection, err := FindCollection(db, l.CollectionID)
	if err != nil {
		return 0, err
	}
	return collection.TeamID, nil
}

// OwningTeamID resolves the team owning the item through its backlog.
func (i *Item) OwningTeamID(db *gorm.DB) (uint, error) {
	var backlog Backlog
	if err := db.First(&backlog, i.BacklogID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperr.New(apperr.NotFound, "backlog not found")
		}
		return 0, apperr.Wrap(apperr.Internal, "failed to fetch backlog", err)
	}
	return backlog.TeamID, nil
}

// AssignTo assigns the item to a user. The user must belong to (or be the
// effective creator of) the item's owning team.
func (i *Item) AssignTo(db *gorm.DB, user *User) error {
	teamID, err := i.OwningTeamID(db)
	if err != nil {
		return err
	}
	team, err := FindTeam(db, teamID)
	if err != nil {
		return err
	}

	eligible, err := team.IsMember(db, user.ID)
	if err != nil {
		return err
	}
	if !eligible {
		creatorID, err := team.CreatorID(db)
		if err != nil {
			return err
		}
		eligible = user.ID == creatorID
	}
	if !eligible {
		return apperr.New(apperr.Forbidden, "user is not eligible for assignment")
	}

	i.AssignedUserID = &user.ID
	i.LastChange = time.Now()
	err = db.Model(i).Updates(map[string]interface{}{
		"assigned_user_id": user.ID,
		"last_change":      i.LastChange,
	}).Error
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to assign item", err)
	}
	return nil
}

// MoveToTeam moves the item into the target team's backlog. When the backlog
// changes, the list reference is cleared: a list from another team's
// collection hierarchy cannot stay attached.
func (i *Item) MoveToTeam(db *gorm.DB, target *Team) error {
	backlog, err := FindBacklogByTeam(db, target.ID)
	if err != nil {
		return err
	}
	if backlog.ID == i.BacklogID {
		return nil
	}

	i.BacklogID = backlog.ID
	i.ListID = nil
	i.LastChange = time.Now()
	err = db.Model(i).Updates(map[string]interface{}{
		"backlog_id":  backlog.ID,
		"list_id":     nil,
		"last_change": i.LastChange,
	}).Error
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to move item", err)
	}
	return nil
}

// MoveToList puts the item on a list of its own team. The backlog reference
// never changes here; cross-team lists are rejected.
func (i *Item) MoveToList(db *gorm.DB, target *List) error {
	itemTeamID, err := i.OwningTeamID(db)
	if err != nil {
		return err
	}
	listTeamID, err := target.OwningTeamID(db)
	if err != nil {
		return err
	}
	if itemTeamID != listTeamID {
		return apperr.New(apperr.Forbidden, "list belongs to another team")
	}

	i.ListID = &target.ID
	i.LastChange = time.Now()
	err = db.Model(i).Updates(map[string]interface{}{
		"list_id":     target.ID,
		"last_change": i.LastChange,
	}).Error
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to move item", err)
	}
	return nil
}
