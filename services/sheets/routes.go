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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all sheets routes with the router.
//
// Description:
//
//	Registers all /v1/sheets/* endpoints with the given Gin router
//	group. The router group should already have any required middleware
//	applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Fork Endpoints:
//
//	POST   /v1/sheets/forks - Fork a base workbook
//	GET    /v1/sheets/forks - List live forks
//	GET    /v1/sheets/forks/:id - Fork info
//	DELETE /v1/sheets/forks/:id - Discard a fork
//	POST   /v1/sheets/forks/:id/edits - Commit a batch of cell edits
//	POST   /v1/sheets/forks/:id/styles - Apply a style batch
//	GET    /v1/sheets/forks/:id/changeset - Changeset base vs current
//
// Staged Change Endpoints:
//
//	POST /v1/sheets/forks/:id/staged - Stage a change
//	GET  /v1/sheets/forks/:id/staged - List staged changes
//	POST /v1/sheets/forks/:id/staged/:change_id/apply - Apply a change
//
// Checkpoint Endpoints:
//
//	POST /v1/sheets/forks/:id/checkpoints - Create a checkpoint
//	GET  /v1/sheets/forks/:id/checkpoints - List checkpoints
//	POST /v1/sheets/forks/:id/checkpoints/:checkpoint_id/restore - Restore
//
// Formula and Diff Endpoints:
//
//	POST /v1/sheets/formulas/shift - Shift a formula's references
//	POST /v1/sheets/formulas/fill - Fill a formula pattern
//	POST /v1/sheets/changesets - Changeset between two workbook files
//
// Health Endpoints:
//
//	GET /v1/sheets/health - Health check
//
// Example:
//
//	service, _ := sheets.NewService(sheets.DefaultServiceConfig())
//	handlers := sheets.NewHandlers(service)
//
//	v1 := router.Group("/v1")
//	sheets.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	group := rg.Group("/sheets")
	{
		// Fork lifecycle
		group.POST("/forks", handlers.HandleCreateFork)
		group.GET("/forks", handlers.HandleListForks)
		group.GET("/forks/:id", handlers.HandleGetFork)
		group.DELETE("/forks/:id", handlers.HandleDiscardFork)

		// Committed and staged mutations
		group.POST("/forks/:id/edits", handlers.HandleApplyEdits)
		group.POST("/forks/:id/styles", handlers.HandleApplyStyleBatch)
		group.POST("/forks/:id/staged", handlers.HandleStageChange)
		group.GET("/forks/:id/staged", handlers.HandleListStagedChanges)
		group.POST("/forks/:id/staged/:change_id/apply", handlers.HandleApplyStagedChange)

		// Checkpoints
		group.POST("/forks/:id/checkpoints", handlers.HandleCreateCheckpoint)
		group.GET("/forks/:id/checkpoints", handlers.HandleListCheckpoints)
		group.POST("/forks/:id/checkpoints/:checkpoint_id/restore", handlers.HandleRestoreCheckpoint)

		// Formula shifting and diffs
		group.POST("/formulas/shift", handlers.HandleShiftFormula)
		group.POST("/formulas/fill", handlers.HandleFillPattern)
		group.POST("/changesets", handlers.HandleChangeset)
		group.GET("/forks/:id/changeset", handlers.HandleForkChangeset)

		// Health checks
		group.GET("/health", handlers.HandleHealth)
	}
}
