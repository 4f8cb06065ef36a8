package httpapi

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/smog-density-map/internal/present"
	"github.com/i474232898/smog-density-map/internal/smog"
)

//go:embed templates/index.html
var templates embed.FS

var pageTemplate = template.Must(template.ParseFS(templates, "templates/index.html"))

// sessionCookie carries the browser's session id.
const sessionCookie = "smog_session"

// dismissForm is posted by an error banner's close button. An empty ID
// dismisses every error.
type dismissForm struct {
	ID string `form:"id" validate:"omitempty,numeric"`
}

func (h *handler) index(c *fiber.Ctx) error {
	sess, err := h.browserSession(c)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := h.page.Execute(&buf, present.Build(sess, h.opts)); err != nil {
		log.Printf("ERROR: rendering page for session %s: %v", sess.ID, err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to render page")
	}
	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}

func (h *handler) submitCompare(c *fiber.Ctx) error {
	sess, err := h.browserSession(c)
	if err != nil {
		return err
	}
	for _, id := range sess.Input.IDs() {
		storeFields(c, sess, id)
	}

	pending, err := h.service.StartCompare(sess)
	if err != nil {
		return mapError(err)
	}
	background(sess, pending)
	return c.Redirect("/", fiber.StatusSeeOther)
}

func (h *handler) submitFetch(c *fiber.Ctx) error {
	sess, err := h.browserSession(c)
	if err != nil {
		return err
	}
	id := smog.LocationID(c.Params("id"))
	storeFields(c, sess, id)

	pending, err := h.service.StartFetchOne(sess, id)
	if err != nil {
		return mapError(err)
	}
	background(sess, pending)
	return c.Redirect("/", fiber.StatusSeeOther)
}

func (h *handler) submitVariation(c *fiber.Ctx) error {
	sess, err := h.browserSession(c)
	if err != nil {
		return err
	}

	pending, err := h.service.StartVariate(sess)
	switch {
	case errors.Is(err, smog.ErrNothingToVary):
		// Nothing shown yet; the button is not rendered in this state anyway.
	case err != nil:
		return mapError(err)
	default:
		background(sess, pending)
	}
	return c.Redirect("/", fiber.StatusSeeOther)
}

func (h *handler) submitDismiss(c *fiber.Ctx) error {
	sess, err := h.browserSession(c)
	if err != nil {
		return err
	}

	var form dismissForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid form")
	}
	if err := validate.Struct(form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if form.ID == "" {
		sess.Tracker.DismissAll()
	} else if err := sess.Tracker.Dismiss(smog.LocationID(form.ID)); err != nil {
		return mapError(err)
	}
	return c.Redirect("/", fiber.StatusSeeOther)
}

// storeFields copies the posted lat/lng text of one location into the session.
// Fields missing from the form are left as they were.
func storeFields(c *fiber.Ctx, sess *smog.Session, id smog.LocationID) {
	for _, axis := range []smog.Axis{smog.AxisLat, smog.AxisLng} {
		key := string(axis) + "-" + string(id)
		if c.Request().PostArgs().Has(key) {
			_ = sess.Input.SetField(id, axis, c.FormValue(key))
		}
	}
}

// browserSession returns the session named by the cookie, creating a new one
// (and setting the cookie) when it is missing or expired.
func (h *handler) browserSession(c *fiber.Ctx) (*smog.Session, error) {
	if id := c.Cookies(sessionCookie); id != "" {
		if sess, err := h.store.Get(id); err == nil {
			return sess, nil
		}
	}

	sess, err := h.store.Create()
	if err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to create session")
	}
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return sess, nil
}
