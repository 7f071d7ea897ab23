package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"teamdesk/authz"
	"teamdesk/models"
	"teamdesk/utils"
)

type CollectionController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewCollectionController(db *gorm.DB, logger *log.Logger) *CollectionController {
	return &CollectionController{
		DB:     db,
		Logger: logger,
	}
}

// CreateCollection creates a collection under a team. Manager-or-creator.
func (cc *CollectionController) CreateCollection(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	teamID := utils.ParseUint(c.Params("id"))

	var input struct {
		Name        string `json:"name" validate:"required,max=255"`
		Description string `json:"description" validate:"max=1023"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	team, err := models.FindTeam(cc.DB, teamID)
	if err != nil {
		return utils.FailResponse(c, err)
	}
	if err := authz.RequireManagerOrCreator(cc.DB, user.ID, team); err != nil {
		return utils.FailResponse(c, err)
	}

	collection := models.Collection{
		TeamID:      team.ID,
		Name:        input.Name,
		Description: input.Description,
	}
	if err := cc.DB.Create(&collection).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create collection", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(collection))
}

// GetCollections lists the collections of a team.
func (cc *CollectionController) GetCollections(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	teamID := utils.ParseUint(c.Params("id"))

	team, err := models.FindTeam(cc.DB, teamID)
	if err != nil {
		return utils.FailResponse(c, err)
	}
	if err := authz.RequireMemberOrCreator(cc.DB, user.ID, team); err != nil {
		return utils.FailResponse(c, err)
	}

	var collections []models.Collection
	err = cc.DB.Preload("Lists").
		Where("team_id = ?", team.ID).
		Order("created_at DESC").
		Find(&collections).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch collections", err)
	}

	return c.JSON(utils.SuccessResponse(collections))
}

// GetCollection returns a collection with its lists.
func (cc *CollectionController) GetCollection(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	collectionID := utils.ParseUint(c.Params("id"))

	collection, err := models.FindCollection(cc.DB, collectionID)
	if err != nil {
		return utils.FailResponse(c, err)
	}
	if err := authz.RequireMemberOrCreator(cc.DB, user.ID, collection); err != nil {
		return utils.FailResponse(c, err)
	}

	if err := cc.DB.Preload("Lists").First(collection, collection.ID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch collection", err)
	}

	return c.JSON(utils.SuccessResponse(collection))
}

// UpdateCollection merges the allowed fields (name, description).
func (cc *CollectionController) UpdateCollection(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	collectionID := utils.ParseUint(c.Params("id"))

	var input struct {
		Name        *string `json:"name" validate:"omitempty,max=255"`
		Description *string `json:"description" validate:"omitempty,max=1023"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	collection, err := models.FindCollection(cc.DB, collectionID)
	if err != nil {
		return utils.FailResponse(c, err)
	}
	if err := authz.RequireManagerOrCreator(cc.DB, user.ID, collection); err != nil {
		return utils.FailResponse(c, err)
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		if *input.Name == "" {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Collection name cannot be empty", nil)
		}
		updates["name"] = *input.Name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if len(updates) > 0 {
		if err := cc.DB.Model(collection).Updates(updates).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update collection", err)
		}
	}

	return c.JSON(utils.SuccessResponse(collection))
}

// DeleteCollection deletes a collection with its lists; items on those
// lists fall back to the plain backlog.
func (cc *CollectionController) DeleteCollection(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	collectionID := utils.ParseUint(c.Params("id"))

	collection, err := models.FindCollection(cc.DB, collectionID)
	if err != nil {
		return utils.FailResponse(c, err)
	}
	if err := authz.RequireManagerOrCreator(cc.DB, user.ID, collection); err != nil {
		return utils.FailResponse(c, err)
	}

	tx := cc.DB.Begin()

	err = tx.Model(&models.Item{}).
		Where("list_id IN (?)", tx.Model(&models.List{}).Select("id").Where("collection_id = ?", collection.ID)).
		Update("list_id", nil).Error
	if err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to detach items", err)
	}

	if err := tx.Unscoped().Where("collection_id = ?", collection.ID).Delete(&models.List{}).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete lists", err)
	}

	if err := tx.Unscoped().Delete(collection).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete collection", err)
	}

	if err := tx.Commit().Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to commit transaction", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "Collection deleted successfully",
	}))
}
