package main

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yukikurage/unica-api/internal/config"
	"github.com/yukikurage/unica-api/internal/constants"
	"github.com/yukikurage/unica-api/internal/handlers"
	"github.com/yukikurage/unica-api/internal/metrics"
	"github.com/yukikurage/unica-api/internal/middleware"
	"github.com/yukikurage/unica-api/internal/repository"
	"github.com/yukikurage/unica-api/internal/sequence"
	"github.com/yukikurage/unica-api/internal/services"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newRouter(cfg *config.Config, db *gorm.DB, store sessions.Store, m *metrics.Metrics, log *zap.Logger) *gin.Engine {
	// Repositories
	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	discussionRepo := repository.NewDiscussionRepository(db)

	allocator := sequence.NewAllocator(db, m, log)

	// Services
	authService := services.NewAuthService(userRepo, log)
	orgService := services.NewOrganizationService(orgRepo, userRepo, log)
	projectService := services.NewProjectService(projectRepo, orgRepo, log)
	propertyService := services.NewPropertyService(projectRepo, m, log)
	taskService := services.NewTaskService(taskRepo, allocator, m, log, cfg.App.MaxPinnedTasks)
	discussionService := services.NewDiscussionService(discussionRepo, allocator, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, log)
	orgHandler := handlers.NewOrganizationHandler(orgService, log)
	projectHandler := handlers.NewProjectHandler(projectService, propertyService, taskService, log)
	taskHandler := handlers.NewTaskHandler(taskService, log)
	discussionHandler := handlers.NewDiscussionHandler(discussionService, log)

	r := gin.New()
	r.Use(
		middleware.Recovery(log),
		middleware.RequestLogger(log),
		middleware.Metrics(m),
		sessions.Sessions(constants.SessionCookieName, store),
	)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Unica API is running",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	requireOrg := middleware.RequireOrganizationAccess(orgService, log)
	requireOwner := middleware.RequireOrganizationOwner()
	requireDiscussion := middleware.RequireDiscussion(discussionService, log)
	requireProject := middleware.RequireProjectAccess(projectService, log)
	requireProjectAdmin := middleware.RequireProjectAdmin(projectService, log)

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

		// Organization routes (protected)
		orgs := api.Group("/organizations")
		orgs.Use(middleware.RequireAuth())
		{
			orgs.POST("", orgHandler.CreateOrganization)
			orgs.GET("", orgHandler.ListOrganizations)
			orgs.GET("/invitations", orgHandler.ListMyInvitations)
			orgs.POST("/:id/invitations/respond", orgHandler.RespondToInvitation)

			org := orgs.Group("/:id", requireOrg)
			{
				org.GET("", orgHandler.GetOrganization)
				org.PUT("", requireOwner, orgHandler.UpdateOrganization)
				org.DELETE("", requireOwner, orgHandler.DeleteOrganization)
				org.POST("/leave", orgHandler.LeaveOrganization)

				org.POST("/invitations", requireOwner, orgHandler.InviteMember)
				org.GET("/invitations", requireOwner, orgHandler.ListInvitations)
				org.DELETE("/invitations/:user_id", requireOwner, orgHandler.CancelInvitation)

				org.DELETE("/members/:user_id", requireOwner, orgHandler.RemoveMember)
				org.PUT("/members/:user_id/role", requireOwner, orgHandler.ChangeMemberRole)

				org.GET("/projects", projectHandler.ListOrganizationProjects)
				org.POST("/projects", projectHandler.CreateOrganizationProject)

				org.POST("/discussion", requireOwner, discussionHandler.EnableDiscussion)

				discussion := org.Group("/discussion", requireDiscussion)
				{
					discussion.GET("", discussionHandler.GetDiscussion)

					discussion.GET("/categories", discussionHandler.ListCategories)
					discussion.POST("/categories", requireOwner, discussionHandler.CreateCategory)
					discussion.PUT("/categories", requireOwner, discussionHandler.ReplaceCategories)
					discussion.PATCH("/categories/:category_id", requireOwner, discussionHandler.UpdateCategory)
					discussion.DELETE("/categories/:category_id", requireOwner, discussionHandler.DeleteCategory)

					discussion.GET("/topics", discussionHandler.ListTopics)
					discussion.POST("/topics", discussionHandler.CreateTopic)
					discussion.GET("/topics/:topic_id", discussionHandler.GetTopic)
					discussion.PATCH("/topics/:topic_id", discussionHandler.UpdateTopic)
					discussion.DELETE("/topics/:topic_id", discussionHandler.DeleteTopic)

					discussion.GET("/topics/:topic_id/comments", discussionHandler.ListComments)
					discussion.POST("/topics/:topic_id/comments", discussionHandler.CreateComment)
					discussion.PATCH("/topics/:topic_id/comments/:comment_id", discussionHandler.EditComment)
					discussion.DELETE("/topics/:topic_id/comments/:comment_id", discussionHandler.DeleteComment)
				}
			}
		}

		// Project routes (protected)
		projects := api.Group("/projects")
		projects.Use(middleware.RequireAuth())
		{
			projects.POST("", projectHandler.CreateProject)
			projects.GET("", projectHandler.ListProjects)

			project := projects.Group("/:id", requireProject)
			{
				project.GET("", projectHandler.GetProject)
				project.PATCH("", projectHandler.UpdateProject)
				project.DELETE("", requireProjectAdmin, projectHandler.DeleteProject)

				project.PATCH("/tasks/properties", projectHandler.UpsertProperty)
				project.POST("/tasks/properties/remove", projectHandler.RemoveProperty)
				project.POST("/tasks/properties/purge", requireProjectAdmin, projectHandler.PurgeOrphanedValues)

				project.GET("/tasks", taskHandler.ListTasks)
				project.POST("/tasks", taskHandler.CreateTask)
				project.POST("/tasks/delete", taskHandler.DeleteTasks)
				project.GET("/tasks/:task_id", taskHandler.GetTask)
				project.PATCH("/tasks/:task_id", taskHandler.UpdateTask)
				project.POST("/tasks/:task_id/archive", taskHandler.ArchiveTask)
				project.POST("/tasks/:task_id/unarchive", taskHandler.UnarchiveTask)
				project.POST("/tasks/:task_id/pin", taskHandler.PinTask)
				project.DELETE("/tasks/:task_id/pin", taskHandler.UnpinTask)
			}
		}

		// Pins span every project the caller can see
		tasks := api.Group("/tasks")
		tasks.Use(middleware.RequireAuth())
		{
			tasks.GET("/pinned", taskHandler.ListPinnedTasks)
		}
	}

	return r
}
