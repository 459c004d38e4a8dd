// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/signalcart/internal/models"
)

const readinessTimeout = 2 * time.Second

// healthLive reports that the process is up.
//
// @Summary Liveness probe
// @Tags Health
// @Produce json
// @Success 200 {object} models.APIResponse
// @Router /health/live [get]
func (rt *Router) healthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// healthReady runs every readiness check.
//
// @Summary Readiness probe
// @Tags Health
// @Produce json
// @Success 200 {object} models.APIResponse
// @Failure 503 {object} models.APIResponse
// @Router /health/ready [get]
func (rt *Router) healthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := make(map[string]string, len(rt.deps.Checks))
	ready := true
	for _, c := range rt.deps.Checks {
		if err := c.Check(ctx); err != nil {
			ready = false
			checks[c.Name] = err.Error()
			continue
		}
		checks[c.Name] = "ok"
	}

	status, code := "success", http.StatusOK
	if !ready {
		status, code = "error", http.StatusServiceUnavailable
	}
	resp := &models.APIResponse{Status: status, Data: map[string]any{"ready": ready, "checks": checks}}
	if !ready {
		resp.Error = &models.APIError{Code: ErrCodeUnavailable, Message: "not ready"}
	}
	respondJSON(w, r, code, resp)
}
