package api

import (
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewApp returns a fiber app that encodes and decodes JSON with goccy/go-json.
func NewApp(name string) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:     name,
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
	})
}

func SetupRouter(app *fiber.App, handler *Handler, auth *Authenticator) {
	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/health", handler.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API Versioning
	v1 := app.Group("/v1")
	v1.Get("/questions", handler.Questions)
	v1.Get("/context/:category", handler.CategoryContext)

	sessions := v1.Group("/sessions", auth.Middleware())
	sessions.Post("/", handler.CreateSession)
	sessions.Get("/", handler.ListSessions)
	sessions.Get("/:id", handler.GetSession)
	sessions.Post("/:id/recommendations", handler.Recommend)
	sessions.Get("/:id/messages", handler.Messages)
	sessions.Post("/:id/messages", handler.Chat)
	sessions.Post("/:id/reset", handler.StartOver)
}
