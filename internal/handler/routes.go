package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-center-api/internal/middleware"
	"github.com/noah-isme/edu-center-api/internal/service"
)

// Handlers groups the API handlers mounted under the versioned prefix.
// A nil Settlements handler leaves the ledger routes unmounted.
type Handlers struct {
	Bookings      *BookingHandler
	Registrations *RegistrationHandler
	FeeCascade    *FeeCascadeHandler
	Directory     *DirectoryHandler
	Settlements   *SettlementHandler
}

// RegisterRoutes mounts every authenticated route on api. Route guards use the
// same role predicates the services enforce.
func RegisterRoutes(api *gin.RouterGroup, auth gin.HandlerFunc, h Handlers) {
	api.Use(auth)

	read := middleware.RequireRoles(service.ReaderRoles...)
	manage := middleware.Allow(service.CanManageBookings)
	frontDesk := middleware.Allow(service.CanOperateFrontDesk)

	bookings := api.Group("/bookings")
	bookings.GET("", read, h.Bookings.List)
	bookings.GET("/:id", read, h.Bookings.Get)
	bookings.POST("", manage, h.Bookings.Create)
	bookings.PATCH("/:id/fee", manage, h.Bookings.UpdateFee)
	bookings.PATCH("/:id/schedule", manage, h.Bookings.Reschedule)
	bookings.PATCH("/:id/status", manage, h.Bookings.UpdateStatus)
	bookings.DELETE("/:id", manage, h.Bookings.Delete)

	api.GET("/halls", read, h.Directory.Halls)
	api.GET("/students", read, h.Directory.Students)
	api.GET("/audit/:resource/:id", manage, h.Directory.AuditTrail)

	teachers := api.Group("/teachers")
	teachers.GET("", read, h.Directory.Teachers)
	teachers.GET("/:id/fee-cascade", manage, h.FeeCascade.Candidates)
	teachers.POST("/:id/fee-cascade", manage, h.FeeCascade.Apply)

	registrations := api.Group("/registrations")
	registrations.GET("", read, h.Registrations.List)
	registrations.GET("/:id", read, h.Registrations.Get)
	registrations.GET("/:id/payments", read, h.Registrations.ListPayments)
	registrations.GET("/:id/monthly-status", read, h.Registrations.MonthlyStatus)
	registrations.GET("/:id/attendance", read, h.Registrations.AttendanceSheet)
	registrations.POST("", frontDesk, h.Registrations.Register)
	registrations.POST("/:id/payments", frontDesk, h.Registrations.RecordPayment)
	registrations.POST("/:id/attendance", frontDesk, h.Registrations.MarkAttendance)
	registrations.PATCH("/:id/fee", manage, h.Registrations.UpdateFee)
	registrations.DELETE("/:id", manage, h.Registrations.Delete)
	api.POST("/fast-process", frontDesk, h.Registrations.FastProcess)

	if h.Settlements == nil {
		return
	}
	view := middleware.Allow(service.CanViewSettlements)
	write := middleware.Allow(service.CanCreateSettlement)
	settlements := api.Group("/settlements")
	settlements.GET("", view, h.Settlements.List)
	settlements.GET("/summary", view, h.Settlements.Summary)
	settlements.POST("", write, h.Settlements.Create)
	settlements.PATCH("/:id", write, h.Settlements.Update)
	settlements.DELETE("/:id", write, h.Settlements.Delete)

	requests := api.Group("/settlement-requests")
	requests.GET("", view, h.Settlements.ListRequests)
	requests.POST("/:id/review", middleware.Allow(service.CanModerateSettlement), h.Settlements.Review)
}
