package httpapi

import (
	"context"
	"errors"
	"html/template"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/smog-density-map/internal/present"
	"github.com/i474232898/smog-density-map/internal/smog"
	"github.com/i474232898/smog-density-map/internal/store"
)

var validate = validator.New()

// backgroundTimeout bounds fetches that outlive the request that started them.
const backgroundTimeout = 30 * time.Second

type handler struct {
	service *smog.Service
	store   smog.SessionStore
	opts    present.Options
	page    *template.Template
}

// RegisterRoutes wires the HTML pages and the JSON API into the Fiber app.
func RegisterRoutes(app *fiber.App, service *smog.Service, sessions smog.SessionStore, opts present.Options) {
	h := &handler{
		service: service,
		store:   sessions,
		opts:    opts,
		page:    pageTemplate,
	}

	app.Get("/", h.index)
	app.Post("/compare", h.submitCompare)
	app.Post("/locations/:id/fetch", h.submitFetch)
	app.Post("/variation", h.submitVariation)
	app.Post("/dismiss", h.submitDismiss)

	v1 := app.Group("/api/v1")

	v1.Post("/sessions", func(c *fiber.Ctx) error {
		sess, err := h.store.Create()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to create session")
		}
		return c.Status(fiber.StatusCreated).JSON(present.Build(sess, h.opts))
	})

	v1.Get("/sessions/:sid", func(c *fiber.Ctx) error {
		sess, err := h.session(c)
		if err != nil {
			return err
		}
		return c.JSON(present.Build(sess, h.opts))
	})

	v1.Put("/sessions/:sid/locations/:id", func(c *fiber.Ctx) error {
		sess, err := h.session(c)
		if err != nil {
			return err
		}

		var req fieldUpdate
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := sess.Input.SetField(smog.LocationID(c.Params("id")), smog.Axis(req.Axis), req.Value); err != nil {
			return mapError(err)
		}
		return c.JSON(present.Build(sess, h.opts))
	})

	v1.Post("/sessions/:sid/compare", func(c *fiber.Ctx) error {
		sess, err := h.session(c)
		if err != nil {
			return err
		}
		pending, err := h.service.StartCompare(sess)
		return h.run(c, sess, pending, err)
	})

	v1.Post("/sessions/:sid/locations/:id/fetch", func(c *fiber.Ctx) error {
		sess, err := h.session(c)
		if err != nil {
			return err
		}
		pending, err := h.service.StartFetchOne(sess, smog.LocationID(c.Params("id")))
		return h.run(c, sess, pending, err)
	})

	v1.Post("/sessions/:sid/variation", func(c *fiber.Ctx) error {
		sess, err := h.session(c)
		if err != nil {
			return err
		}
		pending, err := h.service.StartVariate(sess)
		return h.run(c, sess, pending, err)
	})

	v1.Post("/sessions/:sid/locations/:id/dismiss", func(c *fiber.Ctx) error {
		sess, err := h.session(c)
		if err != nil {
			return err
		}
		if err := sess.Tracker.Dismiss(smog.LocationID(c.Params("id"))); err != nil {
			return mapError(err)
		}
		return c.JSON(present.Build(sess, h.opts))
	})

	v1.Post("/sessions/:sid/dismiss", func(c *fiber.Ctx) error {
		sess, err := h.session(c)
		if err != nil {
			return err
		}
		sess.Tracker.DismissAll()
		return c.JSON(present.Build(sess, h.opts))
	})
}

// fieldUpdate is the body of a coordinate field edit.
type fieldUpdate struct {
	Axis  string `json:"axis" validate:"required,oneof=lat lng"`
	Value string `json:"value"`
}

func (h *handler) session(c *fiber.Ctx) (*smog.Session, error) {
	sess, err := h.store.Get(c.Params("sid"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "session not found")
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to load session")
	}
	return sess, nil
}

// run finishes a started fetch. With ?wait=true it blocks and answers 200
// with the settled page; otherwise the fetch continues in the background and
// the answer is 202 with the page in its loading state.
func (h *handler) run(c *fiber.Ctx, sess *smog.Session, pending smog.Pending, err error) error {
	if err != nil {
		return mapError(err)
	}

	if c.QueryBool("wait") {
		ctx, cancel := context.WithTimeout(c.UserContext(), backgroundTimeout)
		defer cancel()
		_ = pending(ctx)
		return c.JSON(present.Build(sess, h.opts))
	}

	page := present.Build(sess, h.opts)
	background(sess, pending)
	return c.Status(fiber.StatusAccepted).JSON(page)
}

// background lets a fetch outlive the request that started it.
func background(sess *smog.Session, pending smog.Pending) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		if err := pending(ctx); err != nil {
			log.Printf("INFO: background fetch for session %s finished with errors: %v", sess.ID, err)
		}
	}()
}

func mapError(err error) error {
	switch {
	case errors.Is(err, smog.ErrUnknownLocation):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, smog.ErrUnknownAxis):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, smog.ErrNothingToVary):
		return fiber.NewError(fiber.StatusConflict, "fetch smog data before simulating variation")
	case errors.Is(err, smog.ErrJoinedFetch):
		return fiber.NewError(fiber.StatusConflict, "locations are fetched together; use compare")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
