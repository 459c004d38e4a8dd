// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/signalcart/internal/apperr"
	"github.com/tomtom215/signalcart/internal/recommend"
)

// homepage returns popular products.
//
// @Summary Homepage recommendations
// @Tags Recommendations
// @Produce json
// @Param count query int false "Number of products"
// @Param exclude query string false "Comma-separated product IDs to leave out"
// @Success 200 {object} models.APIResponse
// @Failure 503 {object} models.APIResponse
// @Router /api/v1/recommendations/homepage [get]
func (rt *Router) homepage(w http.ResponseWriter, r *http.Request) {
	rt.serveRecommendation(w, r, recommend.StrategyHomepage, 0)
}

// similar returns products similar to a seed product.
//
// @Summary Similar products
// @Tags Recommendations
// @Produce json
// @Param productId path int true "Seed product"
// @Param count query int false "Number of products"
// @Param exclude query string false "Comma-separated product IDs to leave out"
// @Success 200 {object} models.APIResponse
// @Failure 503 {object} models.APIResponse
// @Router /api/v1/recommendations/similar/{productId} [get]
func (rt *Router) similar(w http.ResponseWriter, r *http.Request) {
	seed, err := strconv.ParseInt(chi.URLParam(r, "productId"), 10, 64)
	if err != nil {
		respondErr(w, r, apperr.Validationf("product id must be an integer"))
		return
	}
	rt.serveRecommendation(w, r, recommend.StrategySimilar, seed)
}

func (rt *Router) serveRecommendation(w http.ResponseWriter, r *http.Request, strategy recommend.Strategy, seed int64) {
	q := r.URL.Query()
	count := rt.cfg.DefaultCount
	if raw := q.Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondErr(w, r, apperr.Validationf("count must be an integer"))
			return
		}
		count = n
	}
	exclude, err := parseIDList(q.Get("exclude"))
	if err != nil {
		respondErr(w, r, err)
		return
	}

	res, err := rt.deps.Recommender.Recommend(r.Context(), recommend.Request{
		Strategy:      strategy,
		SeedProductID: seed,
		Count:         count,
		Exclude:       exclude,
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, res)
}

func parseIDList(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, apperr.Validationf("exclude must list integer product ids, got %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
