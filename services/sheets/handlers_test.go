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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	// Set Gin to test mode to reduce noise
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(svc *Service) *gin.Engine {
	router := gin.New()
	handlers := NewHandlers(svc)
	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandlers_HandleHealth(t *testing.T) {
	router := setupTestRouter(newTestService(t))

	w := doJSON(t, router, "GET", "/v1/sheets/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, ServiceVersion, resp.Version)
}

func TestHandlers_ForkLifecycle(t *testing.T) {
	router := setupTestRouter(newTestService(t))
	base := newBaseWorkbook(t)

	w := doJSON(t, router, "POST", "/v1/sheets/forks", CreateForkRequest{BasePath: base})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var created ForkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	forkID := created.Fork.ID
	require.NotEmpty(t, forkID)

	w = doJSON(t, router, "GET", "/v1/sheets/forks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list ForkListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Forks, 1)

	w = doJSON(t, router, "POST", "/v1/sheets/forks/"+forkID+"/edits", map[string]any{
		"edits": []map[string]any{
			{"sheet": "Sheet1", "cell": "A1", "value": "5"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, router, "GET", "/v1/sheets/forks/"+forkID+"/changeset", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var changeset ChangesetResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &changeset))
	require.Len(t, changeset.Changes, 1)

	w = doJSON(t, router, "DELETE", "/v1/sheets/forks/"+forkID, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	t.Run("operations on a discarded fork are 404", func(t *testing.T) {
		w := doJSON(t, router, "GET", "/v1/sheets/forks/"+forkID, nil)
		require.Equal(t, http.StatusNotFound, w.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "FORK_NOT_FOUND", resp.Code)
	})

	t.Run("missing body is 400", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/v1/sheets/forks", nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandlers_ErrorMapping(t *testing.T) {
	router := setupTestRouter(newTestService(t))
	base := newBaseWorkbook(t)

	w := doJSON(t, router, "POST", "/v1/sheets/forks", CreateForkRequest{BasePath: base})
	require.Equal(t, http.StatusCreated, w.Code)
	var created ForkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	forkID := created.Fork.ID

	cases := []struct {
		name     string
		method   string
		path     string
		body     any
		wantCode int
		wantErr  string
	}{
		{
			name:   "parse error",
			method: "POST", path: "/v1/sheets/formulas/shift",
			body:     ShiftFormulaRequest{Formula: "=SUM(", ColDelta: 1},
			wantCode: http.StatusBadRequest, wantErr: "PARSE_ERROR",
		},
		{
			name:   "out of bounds shift",
			method: "POST", path: "/v1/sheets/formulas/shift",
			body:     ShiftFormulaRequest{Formula: "A1", ColDelta: -3},
			wantCode: http.StatusBadRequest, wantErr: "OUT_OF_BOUNDS",
		},
		{
			name:   "conflicting style target",
			method: "POST", path: "/v1/sheets/forks/" + forkID + "/styles",
			body: map[string]any{"ops": []map[string]any{
				{"sheet": "Sheet1", "mode": "merge", "patch": map[string]any{}},
			}},
			wantCode: http.StatusConflict, wantErr: "CONFLICTING_TARGET",
		},
		{
			name:   "unknown staged change",
			method: "POST", path: "/v1/sheets/forks/" + forkID + "/staged/nope/apply",
			wantCode: http.StatusNotFound, wantErr: "STAGED_CHANGE_NOT_FOUND",
		},
		{
			name:   "unknown checkpoint",
			method: "POST", path: "/v1/sheets/forks/" + forkID + "/checkpoints/nope/restore",
			wantCode: http.StatusNotFound, wantErr: "CHECKPOINT_NOT_FOUND",
		},
		{
			name:   "malformed cell reference",
			method: "POST", path: "/v1/sheets/forks/" + forkID + "/edits",
			body: map[string]any{"edits": []map[string]any{
				{"sheet": "Sheet1", "cell": "A1:B2", "value": "1"},
			}},
			wantCode: http.StatusBadRequest, wantErr: "INVALID_REFERENCE",
		},
		{
			name:   "unknown fork",
			method: "POST", path: "/v1/sheets/forks/nope/edits",
			body: map[string]any{"edits": []map[string]any{
				{"sheet": "Sheet1", "cell": "A1", "value": "1"},
			}},
			wantCode: http.StatusNotFound, wantErr: "FORK_NOT_FOUND",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, router, tc.method, tc.path, tc.body)
			require.Equal(t, tc.wantCode, w.Code, w.Body.String())

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.wantErr, resp.Code)
		})
	}
}

func TestHandlers_FormulaEndpoints(t *testing.T) {
	router := setupTestRouter(newTestService(t))

	w := doJSON(t, router, "POST", "/v1/sheets/formulas/shift", ShiftFormulaRequest{
		Formula:  "A1+B1",
		ColDelta: 1,
		RowDelta: 2,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var shifted ShiftFormulaResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &shifted))
	assert.Equal(t, "=B3 + C3", shifted.Formula)

	w = doJSON(t, router, "POST", "/v1/sheets/formulas/fill", FillPatternRequest{
		Formula: "=A1*2",
		Anchor:  "B1",
		Targets: []string{"B2", "B3"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var filled FillPatternResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &filled))
	assert.Equal(t, map[string]string{"B2": "=A2 * 2", "B3": "=A3 * 2"}, filled.Formulas)
}
