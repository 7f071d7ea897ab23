package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"teamdesk/models"
)

// newTestApp wires the team routes behind a header-based auth stub so the
// handlers see the same Locals the JWT middleware would set.
func newTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Team{}, &models.Membership{},
		&models.Device{}, &models.Backlog{},
		&models.Collection{}, &models.List{}, &models.Item{},
	))

	app := fiber.New()
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		var user models.User
		if err := db.First(&user, c.Get("X-User-ID")).Error; err != nil {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		c.Locals("user", &user)
		c.Locals("userID", user.ID)
		return c.Next()
	})

	discard := log.New(io.Discard, "", 0)
	teamController := NewTeamController(db, discard)
	memberController := NewMemberController(db, discard)
	itemController := NewItemController(db, discard)
	backlogController := NewBacklogController(db, discard)
	deviceController := NewDeviceController(db, discard)

	team := api.Group("/teams")
	team.Post("/", teamController.CreateTeam)
	team.Get("/", teamController.GetTeams)
	team.Get("/:id", teamController.GetTeam)
	team.Delete("/:id", teamController.DeleteTeam)
	team.Post("/:id/groups", teamController.CreateGroup)
	team.Get("/:id/members", memberController.GetMembers)
	team.Post("/:id/members", memberController.AddMember)
	team.Delete("/:id/members/:userID", memberController.RemoveMember)
	team.Post("/:id/members/:userID/promote", memberController.PromoteManager)
	team.Get("/:id/backlog", backlogController.GetBacklog)
	team.Post("/:id/backlog/items", itemController.CreateBacklogItem)
	team.Put("/:id/device", deviceController.PutDevice)
	team.Get("/:id/device", deviceController.GetDevice)

	item := api.Group("/items")
	item.Post("/:id/assign", itemController.AssignItem)
	item.Post("/:id/move-team", itemController.MoveItemToTeam)

	return app, db
}

func seedUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		IsActive:     true,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func doJSON(t *testing.T, app *fiber.App, userID uint, method, path string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", fmt.Sprint(userID))

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeData(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()

	var envelope struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.NoError(t, resp.Body.Close())
	return envelope.Data
}

// TestTeamGroupFlow walks a team through its lifecycle: create, add a
// member, a failed group creation by a plain member, promotion, and a
// successful group creation by the new manager.
func TestTeamGroupFlow(t *testing.T) {
	app, db := newTestApp(t)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	resp := doJSON(t, app, alice.ID, "POST", "/api/v1/teams/", fiber.Map{"name": "Eng"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	teamID := uint(decodeData(t, resp)["id"].(float64))

	resp = doJSON(t, app, alice.ID, "POST", fmt.Sprintf("/api/v1/teams/%d/members", teamID),
		fiber.Map{"user_id": bob.ID})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	// Bob is a plain member, so creating a group is forbidden.
	resp = doJSON(t, app, bob.ID, "POST", fmt.Sprintf("/api/v1/teams/%d/groups", teamID),
		fiber.Map{"name": "Backend"})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, app, alice.ID, "POST",
		fmt.Sprintf("/api/v1/teams/%d/members/%d/promote", teamID, bob.ID), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, bob.ID, "POST", fmt.Sprintf("/api/v1/teams/%d/groups", teamID),
		fiber.Map{"name": "Backend"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	group := decodeData(t, resp)
	assert.Equal(t, true, group["is_group"])
	groupID := uint(group["id"].(float64))

	// Nesting a group under the group is rejected as invalid input.
	resp = doJSON(t, app, bob.ID, "POST", fmt.Sprintf("/api/v1/teams/%d/groups", groupID),
		fiber.Map{"name": "Nested"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestMembershipEndpoints(t *testing.T) {
	app, db := newTestApp(t)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	carol := seedUser(t, db, "carol")

	resp := doJSON(t, app, alice.ID, "POST", "/api/v1/teams/", fiber.Map{"name": "Eng"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	teamID := uint(decodeData(t, resp)["id"].(float64))

	resp = doJSON(t, app, alice.ID, "POST", fmt.Sprintf("/api/v1/teams/%d/members", teamID),
		fiber.Map{"user_id": bob.ID})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	// Adding the same user twice is a conflict.
	resp = doJSON(t, app, alice.ID, "POST", fmt.Sprintf("/api/v1/teams/%d/members", teamID),
		fiber.Map{"user_id": bob.ID})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	// A non-member cannot add anyone.
	resp = doJSON(t, app, carol.ID, "POST", fmt.Sprintf("/api/v1/teams/%d/members", teamID),
		fiber.Map{"user_id": carol.ID})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// A member cannot remove another member, the creator can.
	resp = doJSON(t, app, bob.ID, "DELETE",
		fmt.Sprintf("/api/v1/teams/%d/members/%d", teamID, alice.ID), nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	resp = doJSON(t, app, alice.ID, "DELETE",
		fmt.Sprintf("/api/v1/teams/%d/members/%d", teamID, bob.ID), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// An unknown team is a plain 404.
	resp = doJSON(t, app, alice.ID, "POST", "/api/v1/teams/9999/members",
		fiber.Map{"user_id": bob.ID})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

// TestItemAcrossTeamsFlow mirrors a two-team setup where only the creator of
// both teams may move items between them.
func TestItemAcrossTeamsFlow(t *testing.T) {
	app, db := newTestApp(t)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	resp := doJSON(t, app, alice.ID, "POST", "/api/v1/teams/", fiber.Map{"name": "Eng"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	engID := uint(decodeData(t, resp)["id"].(float64))
	resp = doJSON(t, app, alice.ID, "POST", "/api/v1/teams/", fiber.Map{"name": "Ops"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	opsID := uint(decodeData(t, resp)["id"].(float64))

	resp = doJSON(t, app, alice.ID, "POST", fmt.Sprintf("/api/v1/teams/%d/members", engID),
		fiber.Map{"user_id": bob.ID})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp = doJSON(t, app, alice.ID, "POST",
		fmt.Sprintf("/api/v1/teams/%d/members/%d/promote", engID, bob.ID), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, bob.ID, "POST", fmt.Sprintf("/api/v1/teams/%d/backlog/items", engID),
		fiber.Map{"name": "Ship it"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	itemID := uint(decodeData(t, resp)["id"].(float64))

	// Bob manages Eng but is no creator of Ops, so the move is forbidden.
	resp = doJSON(t, app, bob.ID, "POST", fmt.Sprintf("/api/v1/items/%d/move-team", itemID),
		fiber.Map{"team_id": opsID})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// Alice created both teams, so she may move the item.
	resp = doJSON(t, app, alice.ID, "POST", fmt.Sprintf("/api/v1/items/%d/move-team", itemID),
		fiber.Map{"team_id": opsID})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// Assignment requires membership of the owning team; Bob is not in Ops.
	resp = doJSON(t, app, alice.ID, "POST", fmt.Sprintf("/api/v1/items/%d/assign", itemID),
		fiber.Map{"user_id": bob.ID})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func decodePage(t *testing.T, resp *http.Response) (items []map[string]interface{}, total int64, page, limit int) {
	t.Helper()

	var envelope struct {
		Data  []map[string]interface{} `json:"data"`
		Total int64                    `json:"total"`
		Page  int                      `json:"page"`
		Limit int                      `json:"limit"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.NoError(t, resp.Body.Close())
	return envelope.Data, envelope.Total, envelope.Page, envelope.Limit
}

func TestTeamsPagination(t *testing.T) {
	app, db := newTestApp(t)
	alice := seedUser(t, db, "alice")

	for _, name := range []string{"Eng", "Ops", "Design"} {
		resp := doJSON(t, app, alice.ID, "POST", "/api/v1/teams/", fiber.Map{"name": name})
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
		require.NoError(t, resp.Body.Close())
	}

	resp := doJSON(t, app, alice.ID, "GET", "/api/v1/teams/?page=1&limit=2", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	items, total, page, limit := decodePage(t, resp)
	assert.EqualValues(t, 3, total)
	assert.Len(t, items, 2)
	assert.Equal(t, 1, page)
	assert.Equal(t, 2, limit)

	resp = doJSON(t, app, alice.ID, "GET", "/api/v1/teams/?page=2&limit=2", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	items, total, page, _ = decodePage(t, resp)
	assert.EqualValues(t, 3, total)
	assert.Len(t, items, 1)
	assert.Equal(t, 2, page)

	// Out-of-range parameters fall back to the defaults.
	resp = doJSON(t, app, alice.ID, "GET", "/api/v1/teams/?page=0&limit=9000", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	items, _, page, limit = decodePage(t, resp)
	assert.Len(t, items, 3)
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, limit)
}

func TestMembersPagination(t *testing.T) {
	app, db := newTestApp(t)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	resp := doJSON(t, app, alice.ID, "POST", "/api/v1/teams/", fiber.Map{"name": "Eng"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	teamID := uint(decodeData(t, resp)["id"].(float64))

	resp = doJSON(t, app, alice.ID, "POST", fmt.Sprintf("/api/v1/teams/%d/members", teamID),
		fiber.Map{"user_id": bob.ID})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	resp = doJSON(t, app, alice.ID, "GET",
		fmt.Sprintf("/api/v1/teams/%d/members?limit=1", teamID), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	items, total, _, limit := decodePage(t, resp)
	assert.EqualValues(t, 2, total)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, limit)
}

// TestCreateTeamDBFailure closes the database out from under the handler; a
// write that cannot go through must never report success.
func TestCreateTeamDBFailure(t *testing.T) {
	_, db := newTestApp(t)
	alice := seedUser(t, db, "alice")

	app := fiber.New()
	app.Post("/teams", func(c *fiber.Ctx) error {
		c.Locals("user", alice)
		return c.Next()
	}, NewTeamController(db, log.New(io.Discard, "", 0)).CreateTeam)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	resp := doJSON(t, app, alice.ID, "POST", "/teams", fiber.Map{"name": "Eng"})
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestDeviceUpsert(t *testing.T) {
	app, db := newTestApp(t)
	alice := seedUser(t, db, "alice")

	resp := doJSON(t, app, alice.ID, "POST", "/api/v1/teams/", fiber.Map{"name": "Eng"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	teamID := uint(decodeData(t, resp)["id"].(float64))

	// No readings yet.
	resp = doJSON(t, app, alice.ID, "GET", fmt.Sprintf("/api/v1/teams/%d/device", teamID), nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, app, alice.ID, "PUT", fmt.Sprintf("/api/v1/teams/%d/device", teamID),
		fiber.Map{"temperature": "21.5", "humidity": "40"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	// The second write overwrites the single per-team record.
	resp = doJSON(t, app, alice.ID, "PUT", fmt.Sprintf("/api/v1/teams/%d/device", teamID),
		fiber.Map{"temperature": "22.0", "humidity": "41"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, alice.ID, "GET", fmt.Sprintf("/api/v1/teams/%d/device", teamID), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	device := decodeData(t, resp)
	assert.Equal(t, "22.0", device["temperature"])

	var count int64
	require.NoError(t, db.Model(&models.Device{}).Where("team_id = ?", teamID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
