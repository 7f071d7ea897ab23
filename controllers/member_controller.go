package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"teamdesk/authz"
	"teamdesk/models"
	"teamdesk/utils"
)

type MemberController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewMemberController(db *gorm.DB, logger *log.Logger) *MemberController {
	return &MemberController{
		DB:     db,
		Logger: logger,
	}
}

// GetMembers lists memberships of a team, paginated.
func (mc *MemberController) GetMembers(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	teamID := utils.ParseUint(c.Params("id"))
	page, limit := utils.Pagination(c)

	team, err := models.FindTeam(mc.DB, teamID)
	if err != nil {
		return utils.FailResponse(c, err)
	}
	if err := authz.RequireMemberOrCreator(mc.DB, user.ID, team); err != nil {
		return utils.FailResponse(c, err)
	}

	var total int64
	if err := mc.DB.Model(&models.Membership{}).Where("team_id = ?", team.ID).Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count members", err)
	}

	var members []models.Membership
	err = mc.DB.Where("team_id = ?", team.ID).Order("started_at").
		Limit(limit).Offset((page - 1) * limit).
		Find(&members).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch members", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  members,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// AddMember adds a user to a team or group as a plain member.
func (mc *MemberController) AddMember(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	teamID := utils.ParseUint(c.Params("id"))

	var input struct {
		UserID uint `json:"user_id" validate:"required"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	team, err := models.FindTeam(mc.DB, teamID)
	if err != nil {
		return utils.FailResponse(c, err)
	}
	if err := authz.RequireManagerOrCreator(mc.DB, user.ID, team); err != nil {
		return utils.FailResponse(c, err)
	}

	candidate, err := models.FindUser(mc.DB, input.UserID)
	if err != nil {
		return utils.FailResponse(c, err)
	}

	tx := mc.DB.Begin()
	membership, err := models.AddMember(tx, team, candidate)
	if err != nil {
		tx.Rollback()
		return utils.FailResponse(c, err)
	}
	if err := tx.Commit().Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to commit transaction", err)
	}

	utils.LogEvent("member_added", map[string]interface{}{
		"team_id":   team.ID,
		"member_id": candidate.ID,
		"actor_id":  user.ID,
	})

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(membership))
}

// RemoveMember removes a user from a team. Removing from a main team also
// removes the user from every group under it.
func (mc *MemberController) RemoveMember(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	teamID := utils.ParseUint(c.Params("id"))
	targetID := utils.ParseUint(c.Params("userID"))

	team, err := models.FindTeam(mc.DB, teamID)
	if err != nil {
		return utils.FailResponse(c, err)
	}
	if _, err := models.FindUser(mc.DB, targetID); err != nil {
		return utils.FailResponse(c, err)
	}

	tx := mc.DB.Begin()
	if err := models.RemoveMember(tx, team, user.ID, targetID); err != nil {
		tx.Rollback()
		return utils.FailResponse(c, err)
	}
	if err := tx.Commit().Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to commit transaction", err)
	}

	utils.LogEvent("member_removed", map[string]interface{}{
		"team_id":   team.ID,
		"member_id": targetID,
		"actor_id":  user.ID,
	})

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "Member removed successfully",
	}))
}

// PromoteManager grants the manager flag. Creator only, never on self.
func (mc *MemberController) PromoteManager(c *fiber.Ctx) error {
	return mc.setManager(c, true)
}

// DemoteManager revokes the manager flag. Creator only, never on self.
func (mc *MemberController) DemoteManager(c *fiber.Ctx) error {
	return mc.setManager(c, false)
}

func (mc *MemberController) setManager(c *fiber.Ctx, manager bool) error {
	user := c.Locals("user").(*models.User)
	teamID := utils.ParseUint(c.Params("id"))
	targetID := utils.ParseUint(c.Params("userID"))

	team, err := models.FindTeam(mc.DB, teamID)
	if err != nil {
		return utils.FailResponse(c, err)
	}
	if _, err := models.FindUser(mc.DB, targetID); err != nil {
		return utils.FailResponse(c, err)
	}

	tx := mc.DB.Begin()
	membership, err := models.SetManager(tx, team, user.ID, targetID, manager)
	if err != nil {
		tx.Rollback()
		return utils.FailResponse(c, err)
	}
	if err := tx.Commit().Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to commit transaction", err)
	}

	utils.LogEvent("member_role_changed", map[string]interface{}{
		"team_id":    team.ID,
		"member_id":  targetID,
		"actor_id":   user.ID,
		"is_manager": manager,
	})

	return c.JSON(utils.SuccessResponse(membership))
}
