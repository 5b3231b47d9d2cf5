// Package http exposes the scan, loading and resolution use cases over
// a JSON API built on fiber.
package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/example/dispatch/internal/core/scan"
	"github.com/example/dispatch/internal/ctxutil"
	"github.com/example/dispatch/internal/ports/primary"
)

// RequestIDHeader carries the correlation ID in both directions.
const RequestIDHeader = "X-Request-ID"

// Services are the primary ports served over HTTP.
type Services struct {
	Invoices primary.InvoiceService
	Audit    primary.AuditService
	Loading  primary.LoadingService
	Mismatch primary.MismatchService
}

// Server wraps the fiber application.
type Server struct {
	app      *fiber.App
	services Services
	logger   logrus.FieldLogger
}

// NewServer builds the fiber application with all routes registered.
func NewServer(services Services, logger logrus.FieldLogger) *Server {
	s := &Server{services: services, logger: logger}
	s.app = fiber.New(fiber.Config{
		AppName:               "dispatch",
		DisableStartupMessage: true,
		Immutable:             true,
		ErrorHandler:          s.handleError,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
	})
	s.app.Use(s.requestContext)
	s.routes()
	return s
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.WithField("addr", addr).Info("http server listening")
	return s.app.Listen(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) routes() {
	api := s.app.Group("/api")

	api.Post("/invoices", s.createInvoice)
	api.Get("/invoices", s.listInvoices)
	api.Get("/invoices/:id", s.getInvoice)
	api.Get("/invoices/:id/progress", s.getProgress)

	api.Post("/invoices/:id/scans/customer", s.recordCustomerScan)
	api.Post("/invoices/:id/scans/carrier", s.recordCarrierScan)
	api.Post("/invoices/:id/scans/pair", s.recordPairedScan)
	api.Get("/scans", s.listScans)

	api.Post("/invoices/:id/loads", s.recordLoad)
	api.Delete("/loads/:scanId", s.deleteLoad)
	api.Post("/dispatches", s.dispatchVehicle)

	api.Get("/alerts", s.listAlerts)
	api.Get("/alerts/:id", s.getAlert)
	api.Post("/alerts/:id/approve", s.approveAlert)
	api.Post("/alerts/:id/reject", s.rejectAlert)
}

// requestContext attaches a request ID to the handler context.
func (s *Server) requestContext(c *fiber.Ctx) error {
	id := c.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(RequestIDHeader, id)
	c.SetUserContext(ctxutil.WithRequestID(c.UserContext(), id))
	return c.Next()
}

// StatusFor maps an operation error to its HTTP status.
func StatusFor(err error) int {
	switch scan.Classify(err) {
	case scan.ClassParse, scan.ClassMatching:
		return fiber.StatusUnprocessableEntity
	case scan.ClassBlocked:
		return fiber.StatusLocked
	case scan.ClassBusiness, scan.ClassOverScan, scan.ClassConflict:
		return fiber.StatusConflict
	case scan.ClassNotFound:
		return fiber.StatusNotFound
	case scan.ClassInvalid:
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(errorView{Error: fe.Message, Class: string(scan.ClassInvalid)})
	}

	status := StatusFor(err)
	view := errorView{Error: err.Error(), Class: string(scan.Classify(err))}
	var overScan *scan.OverScanError
	if errors.As(err, &overScan) {
		view.AlertID = overScan.AlertID
	}
	if status == fiber.StatusInternalServerError {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"method":     c.Method(),
			"path":       c.Path(),
			"request_id": ctxutil.RequestIDFromContext(c.UserContext()),
		}).Error("request failed")
		view.Error = "internal error"
	}
	return c.Status(status).JSON(view)
}

func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return nil
}
