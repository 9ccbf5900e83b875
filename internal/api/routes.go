package api

import (
	"coachshare/backend/internal/config"
	"coachshare/backend/internal/domain"
	"coachshare/backend/internal/metrics"
	"coachshare/backend/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Services are the dependencies of the HTTP layer.
type Services struct {
	Auth          service.AuthService
	Users         service.UserService
	Regimens      service.RegimenService
	WorkoutLogs   service.WorkoutLogService
	Notifications service.NotificationService
	Achievements  service.AchievementService
	Reconcile     service.ReconcileService
}

func SetupRoutes(router *gin.Engine, jwt config.JWTConfig, svc Services) {
	authHandler := NewAuthHandler(svc.Auth, jwt)
	userHandler := NewUserHandler(svc.Auth, svc.Users, svc.Achievements)
	regimenHandler := NewRegimenHandler(svc.Regimens)
	workoutLogHandler := NewWorkoutLogHandler(svc.WorkoutLogs)
	notificationHandler := NewNotificationHandler(svc.Notifications)
	toolsHandler := NewToolsHandler()
	adminHandler := NewAdminHandler(svc.Reconcile)

	authMiddleware := AuthMiddleware(jwt.Secret, jwt.CookieName)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/logout", authHandler.Logout)
			authGroup.POST("/accept-invitation", authHandler.AcceptInvitation)
			authGroup.POST("/forgot-password", authHandler.ForgotPassword)
			authGroup.POST("/reset-password", authHandler.ResetPassword)
		}

		// Pure calculator, no account needed.
		apiV1.POST("/tools/pace", toolsHandler.CalculatePace)
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", userHandler.Me)
		protected.GET("/users/:userId", userHandler.GetUser)
		protected.DELETE("/users/:userId", userHandler.DeleteUser)
		protected.GET("/athletes/:athleteId/achievements", userHandler.Achievements)

		// --- Coach roster ---
		coachGroup := protected.Group("/coach")
		coachGroup.Use(RoleMiddleware(domain.RoleCoach))
		{
			coachGroup.POST("/athletes", userHandler.InviteAthlete)
			coachGroup.GET("/athletes", userHandler.ListAthletes)
			coachGroup.DELETE("/athletes/:athleteId", userHandler.RemoveAthlete)
		}

		// --- Athlete side of the relationship ---
		athleteGroup := protected.Group("/athlete")
		athleteGroup.Use(RoleMiddleware(domain.RoleAthlete))
		{
			athleteGroup.GET("/coaches", userHandler.ListCoaches)
			athleteGroup.PUT("/coaches/:coachId/primary", userHandler.SetPrimaryCoach)
			athleteGroup.DELETE("/coaches/:coachId", userHandler.LeaveCoach)
		}

		// --- Regimens ---
		regimenGroup := protected.Group("/regimens")
		{
			regimenGroup.GET("", regimenHandler.List)
			regimenGroup.GET("/:regimenId", regimenHandler.Get)
			regimenGroup.POST("", RoleMiddleware(domain.RoleCoach), regimenHandler.Create)
			regimenGroup.PUT("/:regimenId", RoleMiddleware(domain.RoleCoach), regimenHandler.Update)
			regimenGroup.DELETE("/:regimenId", RoleMiddleware(domain.RoleCoach, domain.RoleAdmin), regimenHandler.Delete)
			regimenGroup.PUT("/:regimenId/athletes/:athleteId", RoleMiddleware(domain.RoleCoach), regimenHandler.Assign)
			regimenGroup.DELETE("/:regimenId/athletes/:athleteId", RoleMiddleware(domain.RoleCoach), regimenHandler.Unassign)
		}

		// --- Workout logs ---
		logGroup := protected.Group("/workout-logs")
		{
			logGroup.POST("", RoleMiddleware(domain.RoleAthlete), workoutLogHandler.Create)
			logGroup.GET("", RoleMiddleware(domain.RoleAthlete), workoutLogHandler.ListMine)
			logGroup.GET("/shared", RoleMiddleware(domain.RoleCoach), workoutLogHandler.ListShared)
			logGroup.GET("/:logId", workoutLogHandler.Get)
			logGroup.PATCH("/:logId", RoleMiddleware(domain.RoleAthlete), workoutLogHandler.Update)
			logGroup.PUT("/:logId/share", RoleMiddleware(domain.RoleAthlete), workoutLogHandler.Share)
			logGroup.DELETE("/:logId", RoleMiddleware(domain.RoleAthlete, domain.RoleAdmin), workoutLogHandler.Delete)
		}

		// --- Notifications ---
		notificationGroup := protected.Group("/notifications")
		{
			notificationGroup.GET("", notificationHandler.List)
			notificationGroup.POST("/read-all", notificationHandler.MarkAllRead)
			notificationGroup.POST("/:notificationId/read", notificationHandler.MarkRead)
		}

		// --- Reconciliation ---
		adminGroup := protected.Group("/admin")
		adminGroup.Use(RoleMiddleware(domain.RoleAdmin))
		{
			adminGroup.POST("/reconcile/relationships", adminHandler.RepairRelationships)
			adminGroup.POST("/reconcile/sweep", adminHandler.Sweep)
			adminGroup.POST("/reconcile/orphans", adminHandler.PurgeOrphans)
		}
	}
}
