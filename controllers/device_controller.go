package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"teamdesk/apperr"
	"teamdesk/authz"
	"teamdesk/models"
	"teamdesk/utils"
)

type DeviceController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewDeviceController(db *gorm.DB, logger *log.Logger) *DeviceController {
	return &DeviceController{
		DB:     db,
		Logger: logger,
	}
}

// GetDevice returns the team's device readings. Member-or-creator.
func (dc *DeviceController) GetDevice(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	teamID := utils.ParseUint(c.Params("id"))

	team, err := models.FindTeam(dc.DB, teamID)
	if err != nil {
		return utils.FailResponse(c, err)
	}
	if err := authz.RequireMemberOrCreator(dc.DB, user.ID, team); err != nil {
		return utils.FailResponse(c, err)
	}

	device, err := models.FindDeviceByTeam(dc.DB, team.ID)
	if err != nil {
		return utils.FailResponse(c, err)
	}

	return c.JSON(utils.SuccessResponse(device))
}

// PutDevice writes the team's device readings, creating the row on first
// write and updating it in place afterwards. Manager-or-creator.
func (dc *DeviceController) PutDevice(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	teamID := utils.ParseUint(c.Params("id"))

	var input struct {
		Temperature string `json:"temperature" validate:"max=50"`
		Humidity    string `json:"humidity" validate:"max=50"`
		Dosimeter   string `json:"dosimeter" validate:"max=50"`
		Message     string `json:"message" validate:"max=255"`
		Result      *int16 `json:"result"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	team, err := models.FindTeam(dc.DB, teamID)
	if err != nil {
		return utils.FailResponse(c, err)
	}
	if err := authz.RequireManagerOrCreator(dc.DB, user.ID, team); err != nil {
		return utils.FailResponse(c, err)
	}

	var device models.Device
	err = dc.DB.Where("team_id = ?", team.ID).First(&device).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch device", err)
	}

	created := errors.Is(err, gorm.ErrRecordNotFound)
	device.TeamID = team.ID
	device.Temperature = input.Temperature
	device.Humidity = input.Humidity
	device.Dosimeter = input.Dosimeter
	device.Message = input.Message
	device.Result = input.Result

	if err := dc.DB.Save(&device).Error; err != nil {
		// A concurrent first write can slip in between the lookup and the
		// insert; the unique index turns that race into a conflict.
		if models.IsUniqueViolation(err) {
			return utils.FailResponse(c, apperr.New(apperr.Conflict, "device already recorded for this team"))
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save device", err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(utils.SuccessResponse(device))
}
