package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"teamdesk/authz"
	"teamdesk/models"
	"teamdesk/utils"
)

type ItemController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewItemController(db *gorm.DB, logger *log.Logger) *ItemController {
	return &ItemController{
		DB:     db,
		Logger: logger,
	}
}

type itemInput struct {
	Name        string     `json:"name" validate:"required,max=255"`
	Description string     `json:"description" validate:"max=1023"`
	Units       uint       `json:"units"`
	EndDate     *time.Time `json:"end_date"`
}

// CreateBacklogItem creates an item directly on a team's backlog, with no
// list attached. Manager-or-creator on the team.
func (ic *ItemController) CreateBacklogItem(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	teamID := utils.ParseUint(c.Params("id"))

	var input itemInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	team, err := models.FindTeam(ic.DB, teamID)
	if err != nil {
		return utils.FailResponse(c, err)
	}
	if err := authz.RequireManagerOrCreator(ic.DB, user.ID, team); err != nil {
		return utils.FailResponse(c, err)
	}

	backlog, err := models.FindBacklogByTeam(ic.DB, team.ID)
	if err != nil {
		return utils.FailResponse(c, err)
	}

	item := models.Item{
		Name:        input.Name,
		Description: input.Description,
		Units:       input.Units,
		StartDate:   time.Now(),
		LastChange:  time.Now(),
		EndDate:     input.EndDate,
		CreatorID:   user.ID,
		BacklogID:   backlog.ID,
	}
	if err := ic.DB.Create(&item).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create item", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(item))
}

// CreateListItem creates an item on a list. The backlog follows from the
// list's team, so the list/backlog team agreement holds by construction.
func (ic *ItemController) CreateListItem(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	listID := utils.ParseUint(c.Params("id"))

	var input itemInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	list, err := models.FindList(ic.DB, listID)
	if err != nil {
		return utils.FailResponse(c, err)
	}
	if err := authz.RequireManagerOrCreator(ic.DB, user.ID, list); err != nil {
		return utils.FailResponse(c, err)
	}

	teamID, err := list.OwningTeamID(ic.DB)
	if err != nil {
		return utils.FailResponse(c, err)
	}
	backlog, err := models.FindBacklogByTeam(ic.DB, teamID)
	if err != nil {
		return utils.FailResponse(c, err)
	}

	item := models.Item{
		Name:        input.Name,
		Description: input.Description,
		Units:       input.Units,
		StartDate:   time.Now(),
		LastChange:  time.Now(),
		EndDate:     input.EndDate,
		CreatorID:   user.ID,
		BacklogID:   backlog.ID,
		ListID:      &list.ID,
	}
	if err := ic.DB.Create(&item).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create item", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(item))
}

// GetItem returns a single item.
func (ic *ItemController) GetItem(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	itemID := utils.ParseUint(c.Params("id"))

	item, err := models.FindItem(ic.DB, itemID)
	if err != nil {
		return utils.FailResponse(c, err)
	}
	if err := authz.RequireMemberOrCreator(ic.DB, user.ID, item); err != nil {
		return utils.FailResponse(c, err)
	}

	return c.JSON(utils.SuccessResponse(item))
}

// UpdateItem merges the editable fields (name, description, units,
// end_date) and writes once. Everything else is read-only.
func (ic *ItemController) UpdateItem(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	itemID := utils.ParseUint(c.Params("id"))

	var input struct {
		Name        *string    `json:"name" validate:"omitempty,max=255"`
		Description *string    `json:"description" validate:"omitempty,max=1023"`
		Units       *uint      `json:"units"`
		EndDate     *time.Time `json:"end_date"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	item, err := models.FindItem(ic.DB, itemID)
	if err != nil {
		return utils.FailResponse(c, err)
	}
	if err := authz.RequireManagerOrCreator(ic.DB, user.ID, item); err != nil {
		return utils.FailResponse(c, err)
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		if *input.Name == "" {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Item name cannot be empty", nil)
		}
		updates["name"] = *input.Name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Units != nil {
		updates["units"] = *input.Units
	}
	if input.EndDate != nil {
		updates["end_date"] = *input.EndDate
	}
	if len(updates) > 0 {
		updates["last_change"] = time.Now()
		if err := ic.DB.Model(item).Updates(updates).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update item", err)
		}
	}

	return c.JSON(utils.SuccessResponse(item))
}

// DeleteItem removes an item.
func (ic *ItemController) DeleteItem(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	itemID := utils.ParseUint(c.Params("id"))

	item, err := models.FindItem(ic.DB, itemID)
	if err != nil {
		return utils.FailResponse(c, err)
	}
	if err := authz.RequireManagerOrCreator(ic.DB, user.ID, item); err != nil {
		return utils.FailResponse(c, err)
	}

	if err := ic.DB.Unscoped().Delete(item).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete item", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "Item deleted successfully",
	}))
}

// AssignItem assigns the item to a member of its team.
func (ic *ItemController) AssignItem(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	itemID := utils.ParseUint(c.Params("id"))

	var input struct {
		UserID uint `json:"user_id" validate:"required"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	item, err := models.FindItem(ic.DB, itemID)
	if err != nil {
		return utils.FailResponse(c, err)
	}
	if err := authz.RequireManagerOrCreator(ic.DB, user.ID, item); err != nil {
		return utils.FailResponse(c, err)
	}

	assignee, err := models.FindUser(ic.DB, input.UserID)
	if err != nil {
		return utils.FailResponse(c, err)
	}

	if err := item.AssignTo(ic.DB, assignee); err != nil {
		return utils.FailResponse(c, err)
	}

	return c.JSON(utils.SuccessResponse(item))
}

// MoveItemToTeam moves the item into another team's backlog. Only a user
// who is creator of both the source and the destination team may do this.
func (ic *ItemController) MoveItemToTeam(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	itemID := utils.ParseUint(c.Params("id"))

	var input struct {
		TeamID uint `json:"team_id" validate:"required"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	item, err := models.FindItem(ic.DB, itemID)
	if err != nil {
		return utils.FailResponse(c, err)
	}
	target, err := models.FindTeam(ic.DB, input.TeamID)
	if err != nil {
		return utils.FailResponse(c, err)
	}

	if err := authz.RequireCreator(ic.DB, user.ID, item); err != nil {
		return utils.FailResponse(c, err)
	}
	if err := authz.RequireCreator(ic.DB, user.ID, target); err != nil {
		return utils.FailResponse(c, err)
	}

	tx := ic.DB.Begin()
	if err := item.MoveToTeam(tx, target); err != nil {
		tx.Rollback()
		return utils.FailResponse(c, err)
	}
	if err := tx.Commit().Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to commit transaction", err)
	}

	utils.LogEvent("item_moved_team", map[string]interface{}{
		"item_id": item.ID,
		"team_id": target.ID,
		"user_id": user.ID,
	})

	return c.JSON(utils.SuccessResponse(item))
}

// MoveItemToList puts the item on a list belonging to its own team. The
// backlog reference never changes.
func (ic *ItemController) MoveItemToList(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	itemID := utils.ParseUint(c.Params("id"))

	var input struct {
		ListID uint `json:"list_id" validate:"required"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	item, err := models.FindItem(ic.DB, itemID)
	if err != nil {
		return utils.FailResponse(c, err)
	}
	if err := authz.RequireManagerOrCreator(ic.DB, user.ID, item); err != nil {
		return utils.FailResponse(c, err)
	}

	list, err := models.FindList(ic.DB, input.ListID)
	if err != nil {
		return utils.FailResponse(c, err)
	}

	if err := item.MoveToList(ic.DB, list); err != nil {
		return utils.FailResponse(c, err)
	}

	return c.JSON(utils.SuccessResponse(item))
}
