package api

import (
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/Veraticus/the-paperwork-must-flow/internal/classification"
	"github.com/Veraticus/the-paperwork-must-flow/internal/common"
	"github.com/Veraticus/the-paperwork-must-flow/internal/importer"
	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
)

// uploadResponse acknowledges an accepted upload.
type uploadResponse struct {
	SessionID       string                `json:"session_id"`
	Filename        string                `json:"filename"`
	Status          model.SessionStatus   `json:"status"`
	ProcessingStage model.ProcessingStage `json:"processing_stage"`
}

type testRulesRequest struct {
	Transactions []model.Transaction `json:"transactions"`
}

type snoozeRequest struct {
	Days int `json:"days"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleUpload(c *fiber.Ctx) error {
	principal := principalFrom(c)
	if !s.allowUpload(principal.ID) {
		return fiber.NewError(fiber.StatusTooManyRequests, "too many uploads, try again later")
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return common.ValidationError("multipart field 'file' is required")
	}
	if fh.Size > s.cfg.MaxUploadBytes {
		return common.ValidationError("statement file exceeds %d bytes", s.cfg.MaxUploadBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("failed to open upload: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return fmt.Errorf("failed to read upload: %w", err)
	}

	session, err := s.imports.UploadStatement(c.UserContext(), principal, data, fh.Filename, importer.UploadOptions{
		RuleSetID: c.FormValue("rule_set_id"),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(uploadResponse{
		SessionID:       session.ID,
		Filename:        session.Filename,
		Status:          session.Status,
		ProcessingStage: session.ProcessingStage,
	})
}

func (s *Server) handleListSessions(c *fiber.Ctx) error {
	page, err := s.imports.ListSessions(c.UserContext(), principalFrom(c), importer.ListOptions{
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", importer.DefaultPageLimit),
		Status: model.SessionStatus(c.Query("status")),
	})
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (s *Server) handleGetSession(c *fiber.Ctx) error {
	session, err := s.imports.GetSession(c.UserContext(), principalFrom(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(session)
}

func (s *Server) handleGetStatus(c *fiber.Ctx) error {
	status, err := s.imports.GetStatus(c.UserContext(), principalFrom(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(status)
}

func (s *Server) handleConfirm(c *fiber.Ctx) error {
	var req importer.ConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return common.ValidationError("invalid confirmation body: %v", err)
	}
	result, err := s.imports.ConfirmSuggestions(c.UserContext(), principalFrom(c), c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (s *Server) handleDeleteSession(c *fiber.Ctx) error {
	if err := s.imports.DeleteSession(c.UserContext(), principalFrom(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleTestRules(c *fiber.Ctx) error {
	var req testRulesRequest
	if err := c.BodyParser(&req); err != nil {
		return common.ValidationError("invalid test body: %v", err)
	}
	ruleSetID := c.Params("id")
	if ruleSetID == "default" {
		ruleSetID = ""
	}
	suggestions, err := s.imports.TestDetectionRules(c.UserContext(), principalFrom(c), ruleSetID, req.Transactions)
	if err != nil {
		return err
	}
	if suggestions == nil {
		suggestions = []model.RecurringPaymentSuggestion{}
	}
	return c.JSON(fiber.Map{"suggestions": suggestions})
}

func (s *Server) handleSuggestDomain(c *fiber.Ctx) error {
	var in classification.Input
	if err := c.BodyParser(&in); err != nil {
		return common.ValidationError("invalid suggestion body: %v", err)
	}
	return c.JSON(s.domains.Suggest(in))
}

func (s *Server) handleUpcoming(c *fiber.Ctx) error {
	reminders, err := s.renewals.Upcoming(c.UserContext(), principalFrom(c), c.QueryInt("days", 30))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"renewals": reminders})
}

func (s *Server) handleOverdue(c *fiber.Ctx) error {
	reminders, err := s.renewals.Overdue(c.UserContext(), principalFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"renewals": reminders})
}

func (s *Server) handleTimeline(c *fiber.Ctx) error {
	buckets, err := s.renewals.Timeline(c.UserContext(), principalFrom(c), c.QueryInt("months", 12))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"timeline": buckets})
}

func (s *Server) handleSnooze(c *fiber.Ctx) error {
	var req snoozeRequest
	if err := c.BodyParser(&req); err != nil {
		return common.ValidationError("invalid snooze body: %v", err)
	}
	record, err := s.renewals.Snooze(c.UserContext(), principalFrom(c), c.Params("id"), req.Days)
	if err != nil {
		return err
	}
	return c.JSON(record)
}

func (s *Server) handleSweep(c *fiber.Ctx) error {
	if !principalFrom(c).IsAdmin() {
		return fmt.Errorf("renewal sweep: %w", common.ErrForbidden)
	}
	result, err := s.renewals.Sweep(c.UserContext())
	if err != nil {
		return fmt.Errorf("renewal sweep failed: %w", err)
	}
	return c.JSON(result)
}
