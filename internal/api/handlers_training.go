// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package api

import (
	"net/http"

	"github.com/tomtom215/signalcart/internal/training"
)

// TrainRequest is the body of POST /api/v1/training. ForceRetrainAll must
// be present so a client never starts a full rebuild by omission.
type TrainRequest struct {
	ForceRetrainAll *bool  `json:"force_retrain_all" validate:"required"`
	ModelVersionTag string `json:"model_version_tag,omitempty" validate:"omitempty,version_tag"`
}

// startTraining starts a background training run.
//
// @Summary Start training
// @Tags Training
// @Accept json
// @Produce json
// @Param body body TrainRequest true "Training request"
// @Success 202 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Failure 409 {object} models.APIResponse "Training already in progress or tag taken"
// @Router /api/v1/training [post]
func (rt *Router) startTraining(w http.ResponseWriter, r *http.Request) {
	var body TrainRequest
	if err := decodeJSON(w, r, &body); err != nil {
		respondErr(w, r, err)
		return
	}

	run, err := rt.deps.Trainer.Start(r.Context(), training.Request{
		ForceRetrainAll: *body.ForceRetrainAll,
		VersionTag:      body.ModelVersionTag,
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondData(w, r, http.StatusAccepted, run)
}

// trainingStatus reports the orchestrator state.
//
// @Summary Training status
// @Tags Training
// @Produce json
// @Success 200 {object} models.APIResponse
// @Router /api/v1/training/status [get]
func (rt *Router) trainingStatus(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, rt.deps.Trainer.Status())
}

// cancelTraining cancels the in-flight run.
//
// @Summary Cancel training
// @Tags Training
// @Produce json
// @Success 200 {object} models.APIResponse
// @Router /api/v1/training/cancel [post]
func (rt *Router) cancelTraining(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, map[string]bool{"cancelled": rt.deps.Trainer.Cancel()})
}
