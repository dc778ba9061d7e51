// Package admin serves the state of a launched unit and the image it was
// built from over HTTP.
package admin

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/memtensor/memos-bootstrap/pkg/api"
	"github.com/memtensor/memos-bootstrap/pkg/build"
	"github.com/memtensor/memos-bootstrap/pkg/build/strategies/dockerfile"
	"github.com/memtensor/memos-bootstrap/pkg/run"
	utillog "github.com/memtensor/memos-bootstrap/pkg/util/log"
)

var log = utillog.StderrLog

// StateResponse is returned by GET /v1/state.
type StateResponse struct {
	State   string    `json:"state"`
	Since   time.Time `json:"since,omitempty"`
	Address string    `json:"address"`
	App     string    `json:"app"`
}

// DirectiveResponse is one ordered directive of the image.
type DirectiveResponse struct {
	Kind  string            `json:"kind"`
	Args  []string          `json:"args,omitempty"`
	Pairs map[string]string `json:"pairs,omitempty"`
}

// SpecResponse is returned by GET /v1/spec.
type SpecResponse struct {
	BaseImage   string              `json:"baseImage"`
	WorkDir     string              `json:"workDir"`
	ExposedPort int                 `json:"exposedPort"`
	Command     []string            `json:"command"`
	Directives  []DirectiveResponse `json:"directives"`
}

// Handler answers the status requests.
type Handler struct {
	tracker *run.Tracker
	config  *api.Config
}

// NewHandler creates a Handler reporting on the unit tracked by tracker and
// described by config.
func NewHandler(tracker *run.Tracker, config *api.Config) *Handler {
	return &Handler{tracker: tracker, config: config}
}

// Healthz reports that the bootstrap itself is alive.
func (h *Handler) Healthz(c *fiber.Ctx) error {
	return c.SendString("ok")
}

// State returns the current run state. It answers 503 until the unit is
// SERVING so it can be used as a readiness probe.
func (h *Handler) State(c *fiber.Ctx) error {
	state, since := h.tracker.State()
	rc := h.config.RuntimeConfig()
	status := fiber.StatusOK
	if state != api.RunServing {
		status = fiber.StatusServiceUnavailable
	}
	if len(state) == 0 {
		state = api.RunStarting
	}
	return c.Status(status).JSON(StateResponse{
		State:   string(state),
		Since:   since,
		Address: rc.Address(),
		App:     rc.AppTarget,
	})
}

// Spec returns the image specification.
func (h *Handler) Spec(c *fiber.Ctx) error {
	spec, err := build.NewImageSpec(h.config, nil)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	resp := SpecResponse{
		BaseImage:   spec.BaseImage,
		WorkDir:     spec.WorkDir,
		ExposedPort: spec.ExposedPort,
		Command:     spec.Runtime.Args(),
	}
	for _, d := range spec.Directives {
		dr := DirectiveResponse{Kind: string(d.Kind), Args: d.Args}
		if len(d.Pairs) > 0 {
			dr.Pairs = map[string]string{}
			for _, p := range d.Pairs {
				dr.Pairs[p.Name] = p.Value
			}
		}
		resp.Directives = append(resp.Directives, dr)
	}
	return c.JSON(resp)
}

// Dockerfile returns the rendered Dockerfile.
func (h *Handler) Dockerfile(c *fiber.Ctx) error {
	spec, err := build.NewImageSpec(h.config, nil)
	if err == nil {
		var content string
		if content, err = dockerfile.Render(spec); err == nil {
			return c.SendString(content)
		}
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// NewApp wires the routes.
func NewApp(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/v1/state", fiber.StatusTemporaryRedirect)
	})
	app.Get("/healthz", h.Healthz)

	v1 := app.Group("/v1")
	v1.Get("/state", h.State)
	v1.Get("/spec", h.Spec)
	v1.Get("/dockerfile", h.Dockerfile)
	return app
}

// Serve listens on addr until ctx is done.
func Serve(ctx context.Context, addr string, tracker *run.Tracker, config *api.Config) error {
	app := NewApp(NewHandler(tracker, config))
	errc := make(chan error, 1)
	go func() {
		log.V(1).Infof("Status endpoint listening on %s", addr)
		errc <- app.Listen(addr)
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	}
}
