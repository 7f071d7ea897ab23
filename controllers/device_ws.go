package controller

import (
	"log"
	"time"

	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"

	"teamdesk/apperr"
	"teamdesk/models"
	"teamdesk/utils"
)

// authorizeDeviceStream validates the first-message credentials of a device
// stream: the token must parse and its user must be a member or the
// effective creator of the team.
func authorizeDeviceStream(db *gorm.DB, token string, teamID uint) (*models.Team, error) {
	claims, err := utils.ParseJWTToken(token)
	if err != nil {
		return nil, apperr.New(apperr.Forbidden, "invalid token")
	}

	team, err := models.FindTeam(db, teamID)
	if err != nil {
		return nil, err
	}

	member, err := team.IsMember(db, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !member {
		creatorID, err := team.CreatorID(db)
		if err != nil || claims.UserID != creatorID {
			return nil, apperr.New(apperr.Forbidden, "team membership required")
		}
	}
	return team, nil
}

// HandleDeviceStatusWS streams the latest device readings for a team until
// the client disconnects. The connection is authenticated with the same
// access token used for the REST API, passed as the first message.
func HandleDeviceStatusWS(db *gorm.DB) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		var input struct {
			Token  string `json:"token"`
			TeamID uint   `json:"team_id"`
		}
		if err := c.ReadJSON(&input); err != nil {
			log.Printf("Error reading JSON: %v", err)
			return
		}

		team, err := authorizeDeviceStream(db, input.Token, input.TeamID)
		if err != nil {
			_ = c.WriteJSON(map[string]string{"error": err.Error()})
			return
		}

		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			device, err := models.FindDeviceByTeam(db, team.ID)
			if err != nil {
				_ = c.WriteJSON(map[string]string{"status": "no device"})
				continue
			}
			if err := c.WriteJSON(device); err != nil {
				log.Printf("Error writing JSON: %v", err)
				return
			}
		}
	}
}
