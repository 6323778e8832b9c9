// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sheets

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianSheets/services/sheets/document"
	"github.com/AleutianAI/AleutianSheets/services/sheets/formula"
)

// Handlers contains the HTTP handlers for the sheets service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// writeError maps a service error onto the HTTP taxonomy: unknown ids
// are 404, malformed formulas and out-of-range shifts are 400, empty
// style targets are 409, I/O failures are 500.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	statusCode := http.StatusInternalServerError
	errCode := "INTERNAL"

	var parseErr *formula.ParseError
	var ioErr *document.IOError
	switch {
	case errors.Is(err, ErrForkNotFound):
		statusCode = http.StatusNotFound
		errCode = "FORK_NOT_FOUND"
	case errors.Is(err, ErrCheckpointNotFound):
		statusCode = http.StatusNotFound
		errCode = "CHECKPOINT_NOT_FOUND"
	case errors.Is(err, ErrStagedChangeNotFound):
		statusCode = http.StatusNotFound
		errCode = "STAGED_CHANGE_NOT_FOUND"
	case errors.Is(err, ErrSheetNotFound):
		statusCode = http.StatusNotFound
		errCode = "SHEET_NOT_FOUND"
	case errors.As(err, &parseErr):
		statusCode = http.StatusBadRequest
		errCode = "PARSE_ERROR"
	case errors.Is(err, ErrBeforeA1):
		statusCode = http.StatusBadRequest
		errCode = "OUT_OF_BOUNDS"
	case errors.Is(err, ErrInvalidReference):
		statusCode = http.StatusBadRequest
		errCode = "INVALID_REFERENCE"
	case errors.Is(err, ErrConflictingTarget):
		statusCode = http.StatusConflict
		errCode = "CONFLICTING_TARGET"
	case errors.As(err, &ioErr):
		statusCode = http.StatusInternalServerError
		errCode = "IO_FAILURE"
	}

	if statusCode >= http.StatusInternalServerError {
		logger.Error("Operation failed", "error", err)
	} else {
		logger.Warn("Operation rejected", "error", err, "code", errCode)
	}
	c.JSON(statusCode, ErrorResponse{Error: err.Error(), Code: errCode})
}

func badRequest(c *gin.Context, logger *slog.Logger, err error) {
	logger.Warn("Invalid request body", "error", err)
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: "Invalid request body",
		Code:  "INVALID_REQUEST",
	})
}

// HandleHealth handles GET /v1/sheets/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: ServiceVersion})
}

// HandleCreateFork handles POST /v1/sheets/forks.
//
// Response:
//
//	201 Created: ForkResponse
//	400 Bad Request: Validation error
//	500 Internal Server Error: Copy failure
func (h *Handlers) HandleCreateFork(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleCreateFork")

	var req CreateForkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, err)
		return
	}

	info, err := h.svc.CreateFork(c.Request.Context(), req.BasePath)
	if err != nil {
		writeError(c, logger, err)
		return
	}

	logger.Info("Created fork", "fork_id", info.ID, "base", req.BasePath)
	c.JSON(http.StatusCreated, ForkResponse{Fork: info})
}

// HandleListForks handles GET /v1/sheets/forks.
func (h *Handlers) HandleListForks(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleListForks")

	forks, err := h.svc.ListForks(c.Request.Context())
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, ForkListResponse{Forks: forks})
}

// HandleGetFork handles GET /v1/sheets/forks/:id.
func (h *Handlers) HandleGetFork(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGetFork")

	info, err := h.svc.GetFork(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, ForkResponse{Fork: info})
}

// HandleDiscardFork handles DELETE /v1/sheets/forks/:id.
func (h *Handlers) HandleDiscardFork(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDiscardFork")

	if err := h.svc.DiscardFork(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, logger, err)
		return
	}

	logger.Info("Discarded fork", "fork_id", c.Param("id"))
	c.Status(http.StatusNoContent)
}

// HandleApplyEdits handles POST /v1/sheets/forks/:id/edits.
//
// Response:
//
//	200 OK: ApplyResponse
//	404 Not Found: Unknown fork or sheet
func (h *Handlers) HandleApplyEdits(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleApplyEdits")

	var req ApplyEditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, err)
		return
	}

	result, err := h.svc.ApplyEdits(c.Request.Context(), c.Param("id"), req.Edits)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, ApplyResponse{Result: result})
}

// HandleStageChange handles POST /v1/sheets/forks/:id/staged.
func (h *Handlers) HandleStageChange(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleStageChange")

	var req StageChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, err)
		return
	}

	change, err := h.svc.StageChange(c.Request.Context(), c.Param("id"), req.Label, req.Ops)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusCreated, StagedChangeResponse{Change: change})
}

// HandleListStagedChanges handles GET /v1/sheets/forks/:id/staged.
func (h *Handlers) HandleListStagedChanges(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleListStagedChanges")

	changes, err := h.svc.ListStagedChanges(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, StagedChangeListResponse{Changes: changes})
}

// HandleApplyStagedChange handles
// POST /v1/sheets/forks/:id/staged/:change_id/apply.
func (h *Handlers) HandleApplyStagedChange(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleApplyStagedChange")

	result, err := h.svc.ApplyStagedChange(c.Request.Context(), c.Param("id"), c.Param("change_id"))
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, ApplyResponse{Result: result})
}

// HandleApplyStyleBatch handles POST /v1/sheets/forks/:id/styles.
//
// Response:
//
//	200 OK: StyleBatchResponse
//	409 Conflict: Target resolves to zero cells
func (h *Handlers) HandleApplyStyleBatch(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleApplyStyleBatch")

	var req StyleBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, err)
		return
	}

	summary, err := h.svc.ApplyStyleBatch(c.Request.Context(), c.Param("id"), req.Ops)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, StyleBatchResponse{Summary: summary})
}

// HandleCreateCheckpoint handles POST /v1/sheets/forks/:id/checkpoints.
func (h *Handlers) HandleCreateCheckpoint(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleCreateCheckpoint")

	var req CheckpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, err)
		return
	}

	cp, err := h.svc.CreateCheckpoint(c.Request.Context(), c.Param("id"), req.Label)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusCreated, CheckpointResponse{Checkpoint: cp})
}

// HandleListCheckpoints handles GET /v1/sheets/forks/:id/checkpoints.
func (h *Handlers) HandleListCheckpoints(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleListCheckpoints")

	checkpoints, err := h.svc.ListCheckpoints(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, CheckpointListResponse{Checkpoints: checkpoints})
}

// HandleRestoreCheckpoint handles
// POST /v1/sheets/forks/:id/checkpoints/:checkpoint_id/restore.
func (h *Handlers) HandleRestoreCheckpoint(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleRestoreCheckpoint")

	err := h.svc.RestoreCheckpoint(c.Request.Context(), c.Param("id"), c.Param("checkpoint_id"))
	if err != nil {
		writeError(c, logger, err)
		return
	}

	logger.Info("Restored checkpoint",
		"fork_id", c.Param("id"),
		"checkpoint_id", c.Param("checkpoint_id"))
	c.Status(http.StatusNoContent)
}

// HandleShiftFormula handles POST /v1/sheets/formulas/shift.
//
// Response:
//
//	200 OK: ShiftFormulaResponse
//	400 Bad Request: Parse error or out-of-bounds shift
func (h *Handlers) HandleShiftFormula(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleShiftFormula")

	var req ShiftFormulaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, err)
		return
	}

	shifted, err := h.svc.ShiftFormula(req.Formula, req.ColDelta, req.RowDelta, req.Mode)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, ShiftFormulaResponse{Formula: shifted})
}

// HandleFillPattern handles POST /v1/sheets/formulas/fill.
func (h *Handlers) HandleFillPattern(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleFillPattern")

	var req FillPatternRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, err)
		return
	}

	filled, err := h.svc.FillFormulaPattern(req.Formula, req.Anchor, req.Targets, req.Mode)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, FillPatternResponse{Formulas: filled})
}

// HandleChangeset handles POST /v1/sheets/changesets.
func (h *Handlers) HandleChangeset(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleChangeset")

	var req ChangesetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, err)
		return
	}

	changes, err := h.svc.ComputeChangeset(c.Request.Context(), req.PathA, req.PathB, req.Sheet)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, ChangesetResponse{Changes: changes})
}

// HandleForkChangeset handles GET /v1/sheets/forks/:id/changeset.
// An optional "sheet" query restricts the comparison to one sheet.
func (h *Handlers) HandleForkChangeset(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleForkChangeset")

	changes, err := h.svc.ForkChangeset(c.Request.Context(), c.Param("id"), c.Query("sheet"))
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, ChangesetResponse{Changes: changes})
}
