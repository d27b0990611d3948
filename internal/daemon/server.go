package daemon

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/theirongolddev/books/internal/apperr"
	"github.com/theirongolddev/books/internal/period"
)

// App builds the HTTP API.
func (s *Service) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "books",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		IdleTimeout:           120 * time.Second,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	app.Use(s.requestLogger)

	app.Get("/healthz", s.handleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))

	v1 := app.Group("/v1")
	v1.Get("/status", s.handleStatus)
	v1.Get("/events", s.handleEvents)
	v1.Get("/stream", s.handleStream)
	v1.Get("/dashboard", s.handleDashboard)
	v1.Get("/budgets", s.handleBudgets)
	v1.Get("/trends", s.handleTrends)
	v1.Get("/templates", s.handleTemplates)

	v1.Post("/expenses/:id/pay", s.handlePay)
	v1.Post("/months/instantiate", s.handleInstantiate)
	v1.Post("/trends/scan", s.handleScan)

	return app
}

func (s *Service) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.log.Debug("request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("latency", time.Since(start)),
	)
	return err
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return fiber.StatusBadRequest
	case apperr.KindNotFound:
		return fiber.StatusNotFound
	case apperr.KindDuplicate:
		return fiber.StatusConflict
	case apperr.KindPolicy:
		return fiber.StatusForbidden
	case apperr.KindInternal:
		return fiber.StatusInternalServerError
	}
	return fiber.StatusInternalServerError
}

func (s *Service) handleError(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	body := fiber.Map{"error": err.Error()}

	var ae *apperr.Error
	if errors.As(err, &ae) {
		body["code"] = ae.Code
		body["error"] = ae.Message
	}
	if code >= fiber.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		body["error"] = "internal error"
	}
	return c.Status(code).JSON(body)
}

func (s *Service) handleHealth(c *fiber.Ctx) error {
	return c.SendString("ok\n")
}

func (s *Service) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.snapshotStatus())
}

func (s *Service) handleEvents(c *fiber.Ctx) error {
	since, err := strconv.ParseInt(c.Query("since", "0"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "since must be an event id")
	}
	return c.JSON(s.eventsSince(since))
}

func (s *Service) handleStream(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	current := Event{
		Type:      EventSnapshot,
		Timestamp: s.ledger.Now(),
		Snapshot:  s.snapshotStatus().Summary,
	}

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer s.removeSubscriber(id)

		keepalive := time.NewTicker(30 * time.Second)
		defer keepalive.Stop()

		writeSSE(w, current)
		if w.Flush() != nil {
			return
		}
		for {
			select {
			case ev := <-ch:
				writeSSE(w, ev)
			case <-keepalive.C:
				_, _ = w.WriteString(": keepalive\n\n")
			}
			// A failed flush means the client went away.
			if w.Flush() != nil {
				return
			}
		}
	})
	return nil
}

func writeSSE(w *bufio.Writer, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "id: %d\n", ev.ID)
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Service) handleDashboard(c *fiber.Ctx) error {
	d, err := s.ledger.Dashboard(c.UserContext(), s.ledger.Now())
	if err != nil {
		return err
	}
	return c.JSON(newDashboardView(d))
}

// handleBudgets lists a period's budgets. It runs the trend scan first so
// the alerts served alongside are current.
func (s *Service) handleBudgets(c *fiber.Ctx) error {
	ctx := c.UserContext()
	now := s.ledger.Now()

	m := period.Of(now)
	if q := c.Query("month"); q != "" {
		var err error
		if m, err = period.ParseMonth(q); err != nil {
			return apperr.Validation("month: %v", err)
		}
	}

	if _, err := s.ledger.ScanTrends(ctx, now); err != nil {
		return err
	}
	views, err := s.ledger.ListBudgets(ctx, m)
	if err != nil {
		return err
	}
	return c.JSON(newBudgetsView(m, views))
}

func (s *Service) handleTrends(c *fiber.Ctx) error {
	as, err := s.ledger.ListTrendAlerts(c.UserContext(), !c.QueryBool("all"))
	if err != nil {
		return err
	}
	return c.JSON(newTrendViews(as))
}

func (s *Service) handleTemplates(c *fiber.Ctx) error {
	ts, err := s.ledger.ListTemplates(c.UserContext(), !c.QueryBool("all"))
	if err != nil {
		return err
	}
	return c.JSON(newTemplateViews(ts))
}

type payRequest struct {
	PaidBy string `json:"paid_by"`
}

func (s *Service) handlePay(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return apperr.Validation("expense id must be a positive integer")
	}

	var req payRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperr.Validation("invalid request body")
		}
	}
	if req.PaidBy == "" {
		req.PaidBy = s.cfg.Actor
	}

	res, err := s.ledger.PayExpense(c.UserContext(), int64(id), req.PaidBy, s.ledger.Now())
	if err != nil {
		return err
	}
	if !res.AlreadyPaid {
		s.pollOnce(c.UserContext())
	}
	return c.JSON(newPayView(res))
}

func (s *Service) handleInstantiate(c *fiber.Ctx) error {
	m := period.Of(s.ledger.Now())
	if q := c.Query("month"); q != "" {
		var err error
		if m, err = period.ParseMonth(q); err != nil {
			return apperr.Validation("month: %v", err)
		}
	}

	res, err := s.ledger.InstantiateMonth(c.UserContext(), m)
	if err != nil {
		return err
	}
	if res.Created > 0 {
		s.pollOnce(c.UserContext())
	}
	details := res.Details
	if details == nil {
		details = []string{}
	}
	return c.JSON(instantiateView{
		Period:   res.Period.String(),
		Created:  res.Created,
		Existing: res.Existing,
		Errors:   res.Errors,
		Details:  details,
	})
}

func (s *Service) handleScan(c *fiber.Ctx) error {
	res, err := s.ledger.ScanTrends(c.UserContext(), s.ledger.Now())
	if err != nil {
		return err
	}
	return c.JSON(scanView{
		Checked:    res.Checked,
		Raised:     newTrendViews(res.Raised),
		Suppressed: res.Suppressed,
	})
}
