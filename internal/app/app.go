// Package app assembles the fiber application serving the job ledger API
package app

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/celestiaorg/cloudjob/internal/logger"
	"github.com/celestiaorg/cloudjob/internal/types"
	"github.com/celestiaorg/cloudjob/pkg/api/v1/handlers"
	"github.com/celestiaorg/cloudjob/pkg/api/v1/routes"
)

// NewApp creates the fiber app with middleware and the v1 routes
func NewApp(jobHandler *handlers.JobHandler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "cloudjob",
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(RequestLogger())

	routes.RegisterRoutes(app, jobHandler)
	return app
}

// ErrorHandler renders unhandled errors as slug responses
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	var body types.SlugResponse
	switch {
	case code == fiber.StatusNotFound:
		body = types.ErrNotFound(err.Error())
	case code < fiber.StatusInternalServerError:
		body = types.ErrInvalidInput(err.Error())
	default:
		logger.Errorf("Unhandled error on %s %s: %v", c.Method(), c.Path(), err)
		body = types.ErrServer(err.Error())
	}
	return c.Status(code).JSON(body)
}
