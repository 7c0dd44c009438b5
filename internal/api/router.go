package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/in-nis/untis-back/docs"
	"github.com/in-nis/untis-back/internal/auth"
)

// @title           Untis Timetable API
// @version         1.0
// @description     Timetable, exams and course mappings on top of a WebUntis school account.
// @host            localhost:8000
// @BasePath        /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func SetupRouter(h *Handler, authSvc *auth.Service) *gin.Engine {
	r := gin.Default()
	r.Use(CORS(h.cfg.CORSOrigins))

	// Public routes
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Google login
	r.GET("/auth/google/login", authSvc.GoogleLoginHandler())
	r.GET("/auth/google/callback", authSvc.GoogleCallbackHandler())

	api := r.Group("/api")
	{
		api.GET("/grades", h.GetGrades)
		api.GET("/timetable", h.GetTimetable)
		api.GET("/timetable.xlsx", h.GetTimetableXLSX)
		api.GET("/exams", h.GetExams)
		api.GET("/exams.xlsx", h.GetExamsXLSX)
		api.GET("/mappings", h.GetMappings)
		api.GET("/courses", h.GetCourses)
		api.GET("/vacations", h.GetVacations)
		api.GET("/debug", h.GetDebug)

		authGroup := api.Group("/auth")
		authGroup.POST("/register", authSvc.RegisterHandler())
		authGroup.POST("/login", authSvc.LoginHandler())
		authGroup.POST("/logout", authSvc.LogoutHandler())
		authGroup.POST("/refresh", authSvc.RefreshHandler())
		authGroup.GET("/status", authSvc.StatusHandler())
	}

	// Protected
	user := api.Group("")
	user.Use(authSvc.AuthMiddleware())
	{
		user.GET("/profile", h.GetProfile)
		user.PUT("/profile", h.PutProfile)
	}

	admin := user.Group("/admin")
	admin.Use(auth.AdminMiddleware(h.cfg))
	{
		admin.GET("/mappings/:kind", h.GetMappingEntries)
		admin.PUT("/mappings/:kind", h.PutMappingEntry)
		admin.DELETE("/mappings/:kind", h.DeleteMappingEntry)
		admin.GET("/variants/:kind", h.GetVariants)

		admin.POST("/vacations", h.CreateVacation)
		admin.PUT("/vacations/:id", h.UpdateVacation)
		admin.DELETE("/vacations/:id", h.DeleteVacation)

		admin.GET("/exams", h.ListManualExams)
		admin.POST("/exams", h.CreateManualExam)
		admin.DELETE("/exams/:id", h.DeleteManualExam)

		admin.GET("/backup", h.DownloadBackup)
		admin.POST("/backup", h.StoreBackup)
		admin.POST("/restore", h.RestoreBackup)
		admin.POST("/cache/invalidate", h.InvalidateCache)
	}

	return r
}
