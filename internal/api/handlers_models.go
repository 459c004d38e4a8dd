// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/signalcart/internal/apperr"
	"github.com/tomtom215/signalcart/internal/registry"
)

// listModels returns every stored version in publication order.
//
// @Summary List model versions
// @Tags Models
// @Produce json
// @Success 200 {object} models.APIResponse
// @Router /api/v1/models [get]
func (rt *Router) listModels(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, rt.deps.Models.List())
}

// activeModel describes the serving version.
//
// @Summary Active model version
// @Tags Models
// @Produce json
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /api/v1/models/active [get]
func (rt *Router) activeModel(w http.ResponseWriter, r *http.Request) {
	a := rt.deps.Models.Active()
	if a == nil {
		respondErr(w, r, apperr.NotFoundf("no active model"))
		return
	}
	info, err := rt.deps.Models.Info(a.VersionTag)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, info)
}

// activateModel makes a stored version active.
//
// @Summary Activate a model version
// @Tags Models
// @Produce json
// @Param tag path string true "Version tag"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /api/v1/models/{tag}/activate [post]
func (rt *Router) activateModel(w http.ResponseWriter, r *http.Request) {
	tag, err := registry.NormalizeTag(chi.URLParam(r, "tag"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if tag == "" {
		respondErr(w, r, apperr.Validationf("version tag is required"))
		return
	}
	a, err := rt.deps.Models.Activate(r.Context(), tag)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	info, err := rt.deps.Models.Info(a.VersionTag)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, info)
}
