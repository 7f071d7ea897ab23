package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"teamdesk/authz"
	"teamdesk/models"
	"teamdesk/utils"
)

type BacklogController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewBacklogController(db *gorm.DB, logger *log.Logger) *BacklogController {
	return &BacklogController{
		DB:     db,
		Logger: logger,
	}
}

// GetBacklog returns a team's backlog with its items.
func (bc *BacklogController) GetBacklog(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	teamID := utils.ParseUint(c.Params("id"))

	team, err := models.FindTeam(bc.DB, teamID)
	if err != nil {
		return utils.FailResponse(c, err)
	}
	if err := authz.RequireMemberOrCreator(bc.DB, user.ID, team); err != nil {
		return utils.FailResponse(c, err)
	}

	backlog, err := models.FindBacklogByTeam(bc.DB, team.ID)
	if err != nil {
		return utils.FailResponse(c, err)
	}

	var items []models.Item
	if err := bc.DB.Where("backlog_id = ?", backlog.ID).Order("start_date DESC").Find(&items).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch items", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"backlog": backlog,
		"items":   items,
	}))
}
