package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"mak3-crm/internal/config"
	"mak3-crm/internal/handlers"
	"mak3-crm/internal/middleware"
	"mak3-crm/internal/models"
	"mak3-crm/internal/services"
	"mak3-crm/internal/storage"
)

// Deps — всё, что нужно роутеру; собирается в main.
type Deps struct {
	Config    *config.Config
	DB        *gorm.DB
	Redis     *redis.Client
	Contacts  *services.ContactService
	Deals     *services.DealService
	Pipelines *services.PipelineService
	Importer  *services.ImportService
	Local     *storage.LocalStorage
	Log       *slog.Logger
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.Default()

	authH := handlers.NewAuthHandler(d.DB, []byte(d.Config.JWTSecret), d.Log)
	contactH := handlers.NewContactHandler(d.Contacts, d.Importer)
	dealH := handlers.NewDealHandler(d.Deals)
	pipelineH := handlers.NewPipelineHandler(d.Pipelines)
	userH := handlers.NewUserHandler(d.DB, d.Redis, d.Log)

	api := r.Group("/api")

	// AUTH
	api.POST("/auth/register", authH.Register)
	api.POST("/auth/login", authH.Login)
	api.POST("/auth/logout", authH.Logout)

	auth := api.Group("/")
	auth.Use(middleware.Auth(d.DB, d.Redis, []byte(d.Config.JWTSecret), d.Log))

	auth.GET("/auth/me", authH.Me)
	auth.GET("/dashboard", handlers.NewDashboardHandler(d.DB).Summary)

	// КОНТАКТЫ
	auth.GET("/contacts", contactH.List)
	auth.POST("/contacts", contactH.Create)
	auth.GET("/contacts/search", contactH.Search)
	auth.GET("/contacts/sources", contactH.Sources)
	auth.GET("/contacts/statuses", contactH.Statuses)
	auth.POST("/contacts/import", contactH.Import)
	auth.GET("/contacts/:id", contactH.Get)
	auth.PATCH("/contacts/:id", contactH.Update)
	auth.DELETE("/contacts/:id", contactH.Delete)
	auth.GET("/contacts/:id/history", contactH.History)
	auth.GET("/contacts/:id/comments", contactH.Comments)
	auth.POST("/contacts/:id/comments", contactH.AddComment)
	auth.GET("/contacts/:id/attachments", contactH.Attachments)
	auth.POST("/contacts/:id/attachments", contactH.AddAttachment)
	auth.DELETE("/contacts/:id/attachments/:attachmentId", contactH.RemoveAttachment)

	// СДЕЛКИ
	auth.GET("/deals", dealH.List)
	auth.POST("/deals", dealH.Create)
	auth.GET("/deals/:id", dealH.Get)
	auth.PATCH("/deals/:id", dealH.Update)
	auth.DELETE("/deals/:id", dealH.Delete)
	auth.GET("/deals/:id/history", dealH.History)
	auth.GET("/deals/:id/comments", dealH.Comments)
	auth.POST("/deals/:id/comments", dealH.AddComment)
	auth.GET("/deals/:id/attachments", dealH.Attachments)
	auth.POST("/deals/:id/attachments", dealH.AddAttachment)
	auth.DELETE("/deals/:id/attachments/:attachmentId", dealH.RemoveAttachment)

	// ВОРОНКИ: читают все, меняют админ и менеджер
	auth.GET("/pipelines", pipelineH.List)
	auth.GET("/pipelines/:id", pipelineH.Get)
	auth.GET("/pipelines/:id/stages", pipelineH.Stages)
	auth.GET("/stages/:stageId", pipelineH.GetStage)

	pipelineAdmin := auth.Group("/")
	pipelineAdmin.Use(middleware.RequireRole(models.RoleAdmin, models.RoleManager))
	pipelineAdmin.POST("/pipelines", pipelineH.Create)
	pipelineAdmin.PATCH("/pipelines/:id", pipelineH.Update)
	pipelineAdmin.DELETE("/pipelines/:id", pipelineH.Delete)
	pipelineAdmin.POST("/pipelines/:id/stages/reorder", pipelineH.ReorderStages)
	pipelineAdmin.POST("/stages", pipelineH.CreateStage)
	pipelineAdmin.PATCH("/stages/:stageId", pipelineH.UpdateStage)
	pipelineAdmin.DELETE("/stages/:stageId", pipelineH.DeleteStage)

	// ПОЛЬЗОВАТЕЛИ — только админ
	admin := auth.Group("/")
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	admin.GET("/users", userH.List)
	admin.GET("/users/:id", userH.Get)
	admin.PATCH("/users/:id", userH.Update)

	// локальное файловое хранилище отдаёт файлы само, S3 — напрямую из бакета
	if d.Local != nil {
		fileH := handlers.NewFileHandler(d.Local)
		api.GET("/files/:filename", fileH.Download)
	}

	// HEALTHCHECK
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	return r
}
