package main

import (
	"log"

	"github.com/gin-contrib/sessions"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/harusame/workshop-live-api/internal/config"
	"github.com/harusame/workshop-live-api/internal/database"
	"github.com/harusame/workshop-live-api/internal/handlers"
	"github.com/harusame/workshop-live-api/internal/middleware"
	"github.com/harusame/workshop-live-api/internal/realtime"
	"github.com/harusame/workshop-live-api/internal/repository"
	"github.com/harusame/workshop-live-api/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	// Connect to database
	if err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Change event bus shared by services and live feeds
	bus := realtime.NewBus()
	defer bus.Close()

	// Initialize Gin router
	r := gin.Default()

	// Setup session middleware with Redis
	redisAddr := cfg.RedisHost + ":" + cfg.RedisPort
	store, err := redisStore.NewStore(
		10,        // Redis pool size
		"tcp",     // network type
		redisAddr, // Redis address from config
		"",        // password (empty = no password)
		[]byte(cfg.SessionSecret), // authentication key
	)
	if err != nil {
		log.Fatalf("Failed to create Redis store: %v", err)
	}
	isProduction := cfg.GinMode == "release"
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: 2, // SameSite=Lax
	})
	r.Use(sessions.Sessions("workshop_session", store))

	// Initialize repositories and services
	db := database.GetDB()
	userRepo := repository.NewUserRepository(db)
	workshopRepo := repository.NewWorkshopRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	groupRepo := repository.NewGroupRepository(db)

	authService := services.NewAuthService(userRepo)
	workshopService := services.NewWorkshopService(workshopRepo, bus, cfg)
	taskService := services.NewTaskService(taskRepo, workshopRepo, bus, cfg)
	groupService := services.NewGroupService(groupRepo, taskRepo, bus,
		cfg.PartyCodeAttempts, services.CollisionPolicy(cfg.PartyCodePolicy))

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	workshopHandler := handlers.NewWorkshopHandler(workshopService)
	taskHandler := handlers.NewTaskHandler(taskService)
	groupHandler := handlers.NewGroupHandler(groupService)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "Workshop Live API is running",
		})
	})

	// API routes
	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/signup", authHandler.Signup)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", middleware.RequireAuth(), authHandler.GetCurrentUser)
		}

		// Workshop routes (protected)
		workshops := api.Group("/workshops")
		workshops.Use(middleware.RequireAuth())
		{
			workshops.GET("", workshopHandler.ListWorkshops)
			workshops.GET("/live", workshopHandler.LiveWorkshops)
			workshops.POST("", middleware.RequireAdmin(), workshopHandler.CreateWorkshop)
			workshops.PUT("/reorder", middleware.RequireAdmin(), workshopHandler.ReorderWorkshops)
			workshops.GET("/:id", middleware.RequireWorkshopAccess(), workshopHandler.GetWorkshop)
			workshops.PATCH("/:id", middleware.RequireWorkshopAccess(), middleware.RequireAdmin(), workshopHandler.UpdateWorkshop)
			workshops.DELETE("/:id", middleware.RequireWorkshopAccess(), middleware.RequireAdmin(), workshopHandler.DeleteWorkshop)
			workshops.POST("/:id/register", middleware.RequireWorkshopAccess(), workshopHandler.Register)
			workshops.DELETE("/:id/register", middleware.RequireWorkshopAccess(), workshopHandler.Unregister)
			workshops.GET("/:id/tasks", middleware.RequireWorkshopAccess(), taskHandler.ListTasks)
			workshops.GET("/:id/tasks/live", middleware.RequireWorkshopAccess(), taskHandler.LiveTasks)
			workshops.POST("/:id/tasks", middleware.RequireWorkshopAccess(), middleware.RequireAdmin(), taskHandler.CreateTask)
			workshops.PUT("/:id/tasks/reorder", middleware.RequireWorkshopAccess(), middleware.RequireAdmin(), taskHandler.ReorderTasks)
		}

		// Task routes (protected)
		tasks := api.Group("/tasks")
		tasks.Use(middleware.RequireAuth())
		{
			tasks.GET("/:id", taskHandler.GetTask)
			tasks.PATCH("/:id", middleware.RequireAdmin(), taskHandler.UpdateTask)
			tasks.DELETE("/:id", middleware.RequireAdmin(), taskHandler.DeleteTask)
			tasks.POST("/:id/submissions", taskHandler.Submit)
			tasks.DELETE("/:id/submissions", taskHandler.WithdrawSubmission)
			tasks.POST("/:id/groups", groupHandler.CreateGroup)
			tasks.GET("/:id/groups", groupHandler.ListGroups)
		}

		// Group routes (protected)
		groups := api.Group("/groups")
		groups.Use(middleware.RequireAuth())
		{
			groups.POST("/join", groupHandler.JoinGroup)
			groups.GET("/:id/members", groupHandler.ListMembers)
			groups.DELETE("/:id/members/:user_id", groupHandler.RemoveMember)
			groups.DELETE("/:id", groupHandler.DeleteGroup)
		}
	}

	// Start server
	log.Println("Server starting on :8080")
	if err := r.Run(":8080"); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
