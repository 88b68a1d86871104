package server

import (
	"member-core/internal/handler"
	"member-core/pkg/monitor"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPRouter wires the gin engine. The public web product talks to its own
// gateway; these routes are the service surface (payment intents and status)
// plus the admin and operations endpoints.
func NewHTTPRouter(payment *handler.PaymentHandler, admin *handler.AdminHandler) *gin.Engine {
	monitor.Init()

	r := gin.Default()
	r.Use(monitor.PrometheusMiddleware())

	r.GET("/health", handler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		payments := api.Group("/payments")
		{
			payments.POST("", payment.CreatePayment)
			payments.GET("/:id", payment.GetPayment)
		}

		adminGroup := api.Group("/admin")
		{
			adminGroup.POST("/memberships/credit", admin.CreditMembership)
		}
	}

	return r
}
