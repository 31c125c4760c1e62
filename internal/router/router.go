// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/minghsiao/lamp-reservation/internal/config"
	"github.com/minghsiao/lamp-reservation/internal/handler"
	"github.com/minghsiao/lamp-reservation/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check for load balancers.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// Deps collects everything the authenticated route tree needs: the
// handlers, the JWT secret, and the optional Redis-backed middleware
// configs. A nil Redis client disables rate limiting and caching.
type Deps struct {
	Layout  *handler.LayoutHandler
	SlotOps *handler.SlotOpsHandler
	Booking *handler.BookingHandler

	JWTSecret string
	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
}

// RegisterAPI registers all authenticated endpoints under /v1. Layout
// administration and slot operations require the ADMIN role; booking
// endpoints accept both ADMIN and MEMBER.
func RegisterAPI(e *echo.Echo, d Deps) {
	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(d.JWTSecret))

	// Administrative surface: structure is mutated here, so only ADMIN.
	admin := v1.Group("")
	admin.Use(middleware.RequireRole("ADMIN"))
	admin.POST("/towers", d.Layout.CreateTower)
	admin.POST("/towers/:id/blocks", d.Layout.CreateBlock)
	admin.PUT("/blocks/:id/rows", d.Layout.DefineRows)
	admin.POST("/blocks/:id/slots/generate", d.Layout.GenerateSlots)
	admin.DELETE("/blocks/:id/slots", d.Layout.RetireSlots)
	admin.POST("/slots/:id/block", d.SlotOps.BlockSlot)
	admin.DELETE("/slots/:id/block", d.SlotOps.UnblockSlot)
	admin.POST("/admin/sweep", d.SlotOps.Sweep)

	// Shared read surface and the booking lifecycle.
	member := v1.Group("")
	member.Use(middleware.RequireRole("ADMIN", "MEMBER"))

	member.GET("/towers", d.Layout.ListTowers)
	member.GET("/towers/:id/blocks", d.Layout.ListBlocks)
	member.GET("/blocks/:id/rows", d.Layout.ListRows)
	member.GET("/payment-modes", d.Booking.ListPaymentModes)

	// Summaries are aggregate reads and benefit most from the response
	// cache; a stale window is acceptable because reserve re-checks
	// under the row lock anyway.
	summaries := member.Group("")
	if d.Redis != nil && d.Cache.Enabled {
		summaries.Use(middleware.NewRedisCache(d.Cache, d.Redis))
	}
	summaries.GET("/towers/:id/summary", d.SlotOps.TowerSummary)
	summaries.GET("/blocks/:id/summary", d.SlotOps.BlockSummary)

	// Booking endpoints are rate limited: reserve storms around popular
	// dates are the expected abuse pattern.
	booking := member.Group("")
	if d.Redis != nil && d.RateLimit.Enabled {
		booking.Use(middleware.NewTokenBucket(d.RateLimit, d.Redis))
	}
	booking.GET("/slots/next-available", d.Booking.NextAvailable)
	booking.GET("/slots/:code", d.Booking.CheckSlot)
	booking.POST("/reservations", d.Booking.Reserve)
	booking.POST("/reservations/:id/confirm", d.Booking.Confirm)
	booking.POST("/reservations/:id/cancel", d.Booking.Cancel)
	booking.GET("/reservations/:id", d.Booking.GetReservation)
	booking.GET("/my-reservations", d.Booking.MyReservations)
}
