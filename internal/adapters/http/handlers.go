package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/example/dispatch/internal/core/alert"
	"github.com/example/dispatch/internal/core/scan"
	"github.com/example/dispatch/internal/ctxutil"
	"github.com/example/dispatch/internal/ports/primary"
)

// POST /api/invoices
func (s *Server) createInvoice(c *fiber.Ctx) error {
	var body createInvoiceBody
	if err := parseBody(c, &body); err != nil {
		return err
	}
	req := primary.CreateInvoiceRequest{ID: body.ID, CustomerName: body.CustomerName}
	for _, l := range body.Lines {
		req.Lines = append(req.Lines, primary.CreateInvoiceLine{
			CustomerPartCode: l.CustomerPartCode,
			CarrierPartCode:  l.CarrierPartCode,
			ExpectedQuantity: l.ExpectedQuantity,
		})
	}
	detail, err := s.services.Invoices.CreateInvoice(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(toInvoiceView(detail.Invoice, detail.Lines))
}

// GET /api/invoices?blocked=true&customer=ACME
func (s *Server) listInvoices(c *fiber.Ctx) error {
	filters := primary.InvoiceFilters{CustomerName: c.Query("customer")}
	if v := c.Query("blocked"); v != "" {
		blocked, err := strconv.ParseBool(v)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "blocked must be true or false")
		}
		filters.Blocked = &blocked
	}
	invoices, err := s.services.Invoices.ListInvoices(c.UserContext(), filters)
	if err != nil {
		return err
	}
	views := make([]invoiceView, len(invoices))
	for i, inv := range invoices {
		views[i] = toInvoiceView(*inv, nil)
	}
	return c.JSON(views)
}

// GET /api/invoices/:id
func (s *Server) getInvoice(c *fiber.Ctx) error {
	detail, err := s.services.Invoices.GetInvoice(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(toInvoiceView(detail.Invoice, detail.Lines))
}

// GET /api/invoices/:id/progress
func (s *Server) getProgress(c *fiber.Ctx) error {
	progress, err := s.services.Invoices.GetProgress(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(toProgressView(progress))
}

// POST /api/invoices/:id/scans/customer
func (s *Server) recordCustomerScan(c *fiber.Ctx) error {
	var body customerScanBody
	if err := parseBody(c, &body); err != nil {
		return err
	}
	ctx := ctxutil.WithOperator(c.UserContext(), body.ScannedBy)
	result, err := s.services.Audit.RecordCustomerScan(ctx, primary.CustomerScanRequest{
		InvoiceID: c.Params("id"),
		Payload:   body.Payload,
		ScannedBy: body.ScannedBy,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(toScanResultView(result))
}

// POST /api/invoices/:id/scans/carrier
func (s *Server) recordCarrierScan(c *fiber.Ctx) error {
	var body carrierScanBody
	if err := parseBody(c, &body); err != nil {
		return err
	}
	ctx := ctxutil.WithOperator(c.UserContext(), body.ScannedBy)
	result, err := s.services.Audit.RecordCarrierScan(ctx, primary.CarrierScanRequest{
		InvoiceID:       c.Params("id"),
		CarrierPayload:  body.CarrierPayload,
		CustomerPayload: body.CustomerPayload,
		ScannedBy:       body.ScannedBy,
	})
	if err != nil {
		return err
	}
	return c.JSON(toScanResultView(result))
}

// POST /api/invoices/:id/scans/pair
func (s *Server) recordPairedScan(c *fiber.Ctx) error {
	var body pairedScanBody
	if err := parseBody(c, &body); err != nil {
		return err
	}
	ctx := ctxutil.WithOperator(c.UserContext(), body.ScannedBy)
	result, err := s.services.Audit.RecordPairedScan(ctx, primary.PairedScanRequest{
		InvoiceID:       c.Params("id"),
		CustomerPayload: body.CustomerPayload,
		CarrierPayload:  body.CarrierPayload,
		ScannedBy:       body.ScannedBy,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(toScanResultView(result))
}

// GET /api/scans?invoice_id=&line_id=&context=&status=
func (s *Server) listScans(c *fiber.Ctx) error {
	scans, err := s.services.Audit.ListScans(c.UserContext(), primary.ScanFilters{
		InvoiceID: c.Query("invoice_id"),
		LineID:    c.Query("line_id"),
		Context:   scan.Context(c.Query("context")),
		Status:    scan.Status(c.Query("status")),
	})
	if err != nil {
		return err
	}
	views := make([]scanView, len(scans))
	for i, sc := range scans {
		views[i] = toScanView(*sc)
	}
	return c.JSON(views)
}

// POST /api/invoices/:id/loads
func (s *Server) recordLoad(c *fiber.Ctx) error {
	var body loadBody
	if err := parseBody(c, &body); err != nil {
		return err
	}
	ctx := ctxutil.WithOperator(c.UserContext(), body.ScannedBy)
	result, err := s.services.Loading.RecordLoadingScan(ctx, primary.LoadingScanRequest{
		InvoiceID: c.Params("id"),
		Payload:   body.Payload,
		ScannedBy: body.ScannedBy,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(toLoadingResultView(*result))
}

// DELETE /api/loads/:scanId?deleted_by=
func (s *Server) deleteLoad(c *fiber.Ctx) error {
	deletedBy := c.Query("deleted_by")
	err := s.services.Loading.DeleteLoadingScan(ctxutil.WithOperator(c.UserContext(), deletedBy), primary.DeleteLoadingScanRequest{
		ScanID:    c.Params("scanId"),
		DeletedBy: deletedBy,
	})
	if err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// POST /api/dispatches
func (s *Server) dispatchVehicle(c *fiber.Ctx) error {
	var body dispatchBody
	if err := parseBody(c, &body); err != nil {
		return err
	}
	req := primary.DispatchRequest{VehicleID: body.VehicleID, ScannedBy: body.ScannedBy}
	for _, l := range body.Loads {
		req.Loads = append(req.Loads, primary.DispatchLoad{InvoiceID: l.InvoiceID, Payload: l.Payload})
	}
	result, err := s.services.Loading.DispatchVehicle(ctxutil.WithOperator(c.UserContext(), body.ScannedBy), req)
	if err != nil {
		return err
	}
	view := dispatchView{VehicleID: result.VehicleID, Loads: make([]loadingResultView, len(result.Loads))}
	for i, l := range result.Loads {
		view.Loads[i] = toLoadingResultView(l)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

// GET /api/alerts?invoice_id=&status=
func (s *Server) listAlerts(c *fiber.Ctx) error {
	alerts, err := s.services.Mismatch.ListAlerts(c.UserContext(), primary.AlertFilters{
		InvoiceID: c.Query("invoice_id"),
		Status:    alert.Status(c.Query("status")),
	})
	if err != nil {
		return err
	}
	views := make([]alertView, len(alerts))
	for i, a := range alerts {
		views[i] = toAlertView(*a)
	}
	return c.JSON(views)
}

// GET /api/alerts/:id
func (s *Server) getAlert(c *fiber.Ctx) error {
	a, err := s.services.Mismatch.GetAlert(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(toAlertView(*a))
}

// POST /api/alerts/:id/approve
func (s *Server) approveAlert(c *fiber.Ctx) error {
	var body resolveBody
	if err := parseBody(c, &body); err != nil {
		return err
	}
	result, err := s.services.Mismatch.ApproveAlert(ctxutil.WithOperator(c.UserContext(), body.ReviewedBy), primary.ResolveAlertRequest{
		AlertID:    c.Params("id"),
		ReviewedBy: body.ReviewedBy,
		Note:       body.Note,
	})
	if err != nil {
		return err
	}
	rolledBack := result.RolledBack
	if rolledBack == nil {
		rolledBack = []string{}
	}
	return c.JSON(approveView{Alert: toAlertView(result.Alert), RolledBack: rolledBack, Unblocked: result.Unblocked})
}

// POST /api/alerts/:id/reject
func (s *Server) rejectAlert(c *fiber.Ctx) error {
	var body resolveBody
	if err := parseBody(c, &body); err != nil {
		return err
	}
	a, err := s.services.Mismatch.RejectAlert(ctxutil.WithOperator(c.UserContext(), body.ReviewedBy), primary.ResolveAlertRequest{
		AlertID:    c.Params("id"),
		ReviewedBy: body.ReviewedBy,
		Note:       body.Note,
	})
	if err != nil {
		return err
	}
	return c.JSON(toAlertView(*a))
}
