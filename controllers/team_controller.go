package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"teamdesk/authz"
	"teamdesk/models"
	"teamdesk/utils"
)

type TeamController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewTeamController(db *gorm.DB, logger *log.Logger) *TeamController {
	return &TeamController{
		DB:     db,
		Logger: logger,
	}
}

// CreateTeam creates a main team. The acting user becomes its creator and
// manager, and the team backlog is created in the same transaction.
func (tc *TeamController) CreateTeam(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

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

	tx := tc.DB.Begin()
	team, err := models.CreateTeam(tx, user, input.Name, input.Description)
	if err != nil {
		tx.Rollback()
		return utils.FailResponse(c, err)
	}
	if err := tx.Commit().Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to commit transaction", err)
	}

	utils.LogEvent("team_created", map[string]interface{}{
		"team_id": team.ID,
		"user_id": user.ID,
	})

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(team))
}

// GetTeams returns the teams the user belongs to, paginated.
func (tc *TeamController) GetTeams(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	page, limit := utils.Pagination(c)

	var total int64
	err := tc.DB.Model(&models.Team{}).
		Joins("JOIN memberships ON memberships.team_id = teams.id").
		Where("memberships.user_id = ? AND memberships.deleted_at IS NULL", user.ID).
		Count(&total).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count teams", err)
	}

	var teams []models.Team
	err = tc.DB.
		Joins("JOIN memberships ON memberships.team_id = teams.id").
		Where("memberships.user_id = ? AND memberships.deleted_at IS NULL", user.ID).
		Order("teams.created_at DESC").
		Limit(limit).Offset((page - 1) * limit).
		Find(&teams).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch teams", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  teams,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetTeam returns a single team with its members and groups.
func (tc *TeamController) GetTeam(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	teamID := utils.ParseUint(c.Params("id"))

	team, err := models.FindTeam(tc.DB, teamID)
	if err != nil {
		return utils.FailResponse(c, err)
	}
	if err := authz.RequireMemberOrCreator(tc.DB, user.ID, team); err != nil {
		return utils.FailResponse(c, err)
	}

	if err := tc.DB.Preload("Members").Preload("Groups").First(team, team.ID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch team", err)
	}

	return c.JSON(utils.SuccessResponse(team))
}

// UpdateTeam merges the allowed fields (name, description) and writes once.
func (tc *TeamController) UpdateTeam(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	teamID := utils.ParseUint(c.Params("id"))

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

	team, err := models.FindTeam(tc.DB, teamID)
	if err != nil {
		return utils.FailResponse(c, err)
	}
	if err := authz.RequireManagerOrCreator(tc.DB, user.ID, team); err != nil {
		return utils.FailResponse(c, err)
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		if *input.Name == "" {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Team name cannot be empty", nil)
		}
		updates["name"] = *input.Name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if len(updates) == 0 {
		return c.JSON(utils.SuccessResponse(team))
	}

	if err := tc.DB.Model(team).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update team", err)
	}

	return c.JSON(utils.SuccessResponse(team))
}

// DeleteTeam removes a team and everything it owns. Creator only.
func (tc *TeamController) DeleteTeam(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	teamID := utils.ParseUint(c.Params("id"))

	team, err := models.FindTeam(tc.DB, teamID)
	if err != nil {
		return utils.FailResponse(c, err)
	}
	if err := authz.RequireCreator(tc.DB, user.ID, team); err != nil {
		return utils.FailResponse(c, err)
	}

	tx := tc.DB.Begin()
	if err := models.DeleteTeam(tx, team); err != nil {
		tx.Rollback()
		return utils.FailResponse(c, err)
	}
	if err := tx.Commit().Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to commit transaction", err)
	}

	utils.LogEvent("team_deleted", map[string]interface{}{
		"team_id": team.ID,
		"user_id": user.ID,
	})

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "Team deleted successfully",
	}))
}

// CreateGroup creates a group under a main team. Manager-or-creator on the
// parent; nesting a group under a group is rejected.
func (tc *TeamController) CreateGroup(c *fiber.Ctx) error {
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

	parent, err := models.FindTeam(tc.DB, teamID)
	if err != nil {
		return utils.FailResponse(c, err)
	}
	if err := authz.RequireManagerOrCreator(tc.DB, user.ID, parent); err != nil {
		return utils.FailResponse(c, err)
	}

	tx := tc.DB.Begin()
	group, err := models.CreateGroup(tx, parent, user, input.Name, input.Description)
	if err != nil {
		tx.Rollback()
		return utils.FailResponse(c, err)
	}
	if err := tx.Commit().Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to commit transaction", err)
	}

	utils.LogEvent("group_created", map[string]interface{}{
		"team_id":  parent.ID,
		"group_id": group.ID,
		"user_id":  user.ID,
	})

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(group))
}

// GetGroups lists the groups under a main team.
func (tc *TeamController) GetGroups(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	teamID := utils.ParseUint(c.Params("id"))

	team, err := models.FindTeam(tc.DB, teamID)
	if err != nil {
		return utils.FailResponse(c, err)
	}
	if err := authz.RequireMemberOrCreator(tc.DB, user.ID, team); err != nil {
		return utils.FailResponse(c, err)
	}

	var groups []models.Team
	if err := tc.DB.Where("parent_team_id = ?", team.ID).Find(&groups).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch groups", err)
	}

	return c.JSON(utils.SuccessResponse(groups))
}
