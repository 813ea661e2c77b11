package handlers

import (
	"geo-challenge-tracker/middleware"
	"geo-challenge-tracker/services"

	"github.com/gofiber/fiber/v2"
)

func SetupTrackerRoutes(app *fiber.App, trackerService *services.TrackerService) {
	// 🔓 Public liveness probe
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	// 🔐 Everything else requires the service token
	secured := app.Group("/s", middleware.ServiceAuthMiddleware())

	// Manual triggers — same code paths as the scheduled jobs
	secured.Post("/challenge/acquire", trackerService.TriggerDailyAcquisition)
	secured.Post("/results/poll", trackerService.TriggerResultPoll)
	secured.Post("/roster/sync", trackerService.TriggerRosterSync)
	secured.Post("/session/refresh", trackerService.TriggerSessionRefresh)

	// Identity registration + queries for the chat front end
	secured.Post("/participants/register", trackerService.RegisterParticipant)
	secured.Get("/participants", trackerService.ListParticipants)
	secured.Get("/results/today", trackerService.ListTodaysResults)
}
