package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"

	controller "teamdesk/controllers"
	"teamdesk/middleware"
)

func SetupAuthRoutes(app *fiber.App, db *gorm.DB) {
	// Auth routes group with logging middleware
	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Public auth endpoints (no authentication required)
	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)
	auth.Post("/refresh", controller.RefreshToken)

	// Protected auth endpoints (require valid JWT)
	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Post("/change-password", controller.ChangePassword)
	protectedAuth.Get("/me", controller.GetCurrentUser)
}

func SetupAPIRoutes(app *fiber.App, db *gorm.DB) {
	teamController := controller.NewTeamController(db, log.New(os.Stdout, "TEAM: ", log.LstdFlags))
	memberController := controller.NewMemberController(db, log.New(os.Stdout, "MEMBER: ", log.LstdFlags))
	collectionController := controller.NewCollectionController(db, log.New(os.Stdout, "COLLECTION: ", log.LstdFlags))
	listController := controller.NewListController(db, log.New(os.Stdout, "LIST: ", log.LstdFlags))
	itemController := controller.NewItemController(db, log.New(os.Stdout, "ITEM: ", log.LstdFlags))
	backlogController := controller.NewBacklogController(db, log.New(os.Stdout, "BACKLOG: ", log.LstdFlags))
	deviceController := controller.NewDeviceController(db, log.New(os.Stdout, "DEVICE: ", log.LstdFlags))

	// API group with versioning, protection and write rate limiting
	api := app.Group("/api/v1", middleware.Protected(), middleware.MutationRateLimiter(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Team routes
	team := api.Group("/teams")
	team.Post("/", teamController.CreateTeam)
	team.Get("/", teamController.GetTeams)
	team.Get("/:id", teamController.GetTeam)
	team.Put("/:id", teamController.UpdateTeam)
	team.Delete("/:id", teamController.DeleteTeam)
	team.Post("/:id/groups", teamController.CreateGroup)
	team.Get("/:id/groups", teamController.GetGroups)

	// Membership routes
	team.Get("/:id/members", memberController.GetMembers)
	team.Post("/:id/members", memberController.AddMember)
	team.Delete("/:id/members/:userID", memberController.RemoveMember)
	team.Post("/:id/members/:userID/promote", memberController.PromoteManager)
	team.Post("/:id/members/:userID/demote", memberController.DemoteManager)

	// Backlog and backlog items
	team.Get("/:id/backlog", backlogController.GetBacklog)
	team.Post("/:id/backlog/items", itemController.CreateBacklogItem)

	// Collection routes
	team.Post("/:id/collections", collectionController.CreateCollection)
	team.Get("/:id/collections", collectionController.GetCollections)

	collection := api.Group("/collections")
	collection.Get("/:id", collectionController.GetCollection)
	collection.Put("/:id", collectionController.UpdateCollection)
	collection.Delete("/:id", collectionController.DeleteCollection)
	collection.Post("/:id/lists", listController.CreateList)

	// List routes
	list := api.Group("/lists")
	list.Get("/:id", listController.GetList)
	list.Put("/:id", listController.UpdateList)
	list.Delete("/:id", listController.DeleteList)
	list.Post("/:id/items", itemController.CreateListItem)

	// Item routes
	item := api.Group("/items")
	item.Get("/:id", itemController.GetItem)
	item.Put("/:id", itemController.UpdateItem)
	item.Delete("/:id", itemController.DeleteItem)
	item.Post("/:id/assign", itemController.AssignItem)
	item.Post("/:id/move-team", itemController.MoveItemToTeam)
	item.Post("/:id/move-list", itemController.MoveItemToList)

	// Device routes
	team.Get("/:id/device", deviceController.GetDevice)
	team.Put("/:id/device", deviceController.PutDevice)

	// WebSocket route for live device readings
	app.Get("/api/v1/devices/status", websocket.New(controller.HandleDeviceStatusWS(db)))

	log.Println("API routes initialized successfully")
}

func SetupRoutes(app *fiber.App, db *gorm.DB) {
	// Setup health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	SetupAuthRoutes(app, db)
	SetupAPIRoutes(app, db)

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
