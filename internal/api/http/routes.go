package httpapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/wxagent/weather-agent/internal/agent"
	"github.com/wxagent/weather-agent/internal/store"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app. bot may be nil
// when no OpenAI key is configured; /query then reports the feature as
// unavailable.
func RegisterRoutes(app *fiber.App, router *agent.Router, bot *agent.Bot, st *store.Store) {
	app.Post("/query", func(c *fiber.Ctx) error {
		if bot == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "conversational agent is not configured")
		}

		var req queryRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		answer, err := bot.Chat(c.Context(), req.Message)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to process query")
		}
		return c.JSON(fiber.Map{"response": answer})
	})

	v1 := app.Group("/api/v1")

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		var req cityQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		result := router.CurrentWeather(c.Context(), req.City)
		if e, ok := result.(agent.ErrorResult); ok {
			switch {
			case e.NotFound:
				return fiber.NewError(fiber.StatusNotFound, e.Error)
			case e.Upstream:
				return fiber.NewError(fiber.StatusBadGateway, e.Error)
			default:
				return fiber.NewError(fiber.StatusInternalServerError, e.Error)
			}
		}
		return c.JSON(result)
	})

	v1.Get("/weather/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		result := router.History(c.Context(), req.City, req.Days)
		if e, ok := result.(agent.ErrorResult); ok {
			return fiber.NewError(fiber.StatusInternalServerError, e.Error)
		}
		return c.JSON(fiber.Map{
			"city":    req.City,
			"days":    req.Days,
			"history": result,
		})
	})

	app.Get("/metrics", func(c *fiber.Ctx) error {
		stats, err := st.Stats(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read store statistics")
		}
		return c.JSON(stats)
	})
}

type queryRequest struct {
	Message string `json:"message" validate:"required"`
}

// cityQuery holds the query parameter identifying a city.
type cityQuery struct {
	City string `validate:"required"`
}

func (q *cityQuery) bind(c *fiber.Ctx) error {
	q.City = c.Query("city")
	return validate.Struct(q)
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	City string `validate:"required"`
	Days int    `validate:"gte=1,lte=60"`
}

func (q *historyQuery) bind(c *fiber.Ctx) error {
	q.City = c.Query("city")
	q.Days = c.QueryInt("days", agent.DefaultHistoryDays)
	return validate.Struct(q)
}
