package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"teamdesk/authz"
	"teamdesk/models"
	"teamdesk/utils"
)

type ListController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewListController(db *gorm.DB, logger *log.Logger) *ListController {
	return &ListController{
		DB:     db,
		Logger: logger,
	}
}

// CreateList creates a list in a collection. Manager-or-creator on the
// collection's team.
func (lc *ListController) CreateList(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	collectionID := utils.ParseUint(c.Params("id"))

	var input struct {
		Name string `json:"name" validate:"required,max=255"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	collection, err := models.FindCollection(lc.DB, collectionID)
	if err != nil {
		return utils.FailResponse(c, err)
	}
	if err := authz.RequireManagerOrCreator(lc.DB, user.ID, collection); err != nil {
		return utils.FailResponse(c, err)
	}

	list := models.List{
		CollectionID: collection.ID,
		Name:         input.Name,
	}
	if err := lc.DB.Create(&list).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create list", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(list))
}

// GetList returns a list with its items.
func (lc *ListController) GetList(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	listID := utils.ParseUint(c.Params("id"))

	list, err := models.FindList(lc.DB, listID)
	if err != nil {
		return utils.FailResponse(c, err)
	}
	if err := authz.RequireMemberOrCreator(lc.DB, user.ID, list); err != nil {
		return utils.FailResponse(c, err)
	}

	if err := lc.DB.Preload("Items").First(list, list.ID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch list", err)
	}

	return c.JSON(utils.SuccessResponse(list))
}

// UpdateList renames a list.
func (lc *ListController) UpdateList(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	listID := utils.ParseUint(c.Params("id"))

	var input struct {
		Name string `json:"name" validate:"required,max=255"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	list, err := models.FindList(lc.DB, listID)
	if err != nil {
		return utils.FailResponse(c, err)
	}
	if err := authz.RequireManagerOrCreator(lc.DB, user.ID, list); err != nil {
		return utils.FailResponse(c, err)
	}

	if err := lc.DB.Model(list).Update("name", input.Name).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update list", err)
	}

	return c.JSON(utils.SuccessResponse(list))
}

// DeleteList deletes a list; its items stay on the backlog.
func (lc *ListController) DeleteList(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	listID := utils.ParseUint(c.Params("id"))

	list, err := models.FindList(lc.DB, listID)
	if err != nil {
		return utils.FailResponse(c, err)
	}
	if err := authz.RequireManagerOrCreator(lc.DB, user.ID, list); err != nil {
		return utils.FailResponse(c, err)
	}

	tx := lc.DB.Begin()

	if err := tx.Model(&models.Item{}).Where("list_id = ?", list.ID).Update("list_id", nil).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to detach items", err)
	}

	if err := tx.Unscoped().Delete(list).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete list", err)
	}

	if err := tx.Commit().Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to commit transaction", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "List deleted successfully",
	}))
}
