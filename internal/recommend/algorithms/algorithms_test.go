// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package algorithms

import (
	"context"
	"math"
	"math/rand/v2"
	"reflect"
	"slices"
	"testing"

	"github.com/tomtom215/signalcart/internal/models"
)

func rec(user, product int64, kind models.InteractionKind) models.InteractionRecord {
	return models.InteractionRecord{UserID: user, ProductID: product, Kind: kind, Weight: kind.Weight()}
}

func build(t *testing.T, tr Trainer, base *Model, recs []models.InteractionRecord) *Model {
	t.Helper()
	acc := tr.NewAccumulator(base)
	for _, r := range recs {
		acc.Add(r)
	}
	m, err := acc.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return m
}

func randomHistory(n int) []models.InteractionRecord {
	r := rand.New(rand.NewPCG(7, 11))
	out := make([]models.InteractionRecord, n)
	for i := range out {
		kind := models.InteractionKinds[r.IntN(len(models.InteractionKinds))]
		out[i] = rec(int64(r.IntN(40)+1), int64(r.IntN(60)+1), kind)
	}
	return out
}

func TestCoVisitationScores(t *testing.T) {
	t.Parallel()

	m := build(t, NewCoVisitation(DefaultConfig()), nil, []models.InteractionRecord{
		rec(1, 10, models.KindPurchase),
		rec(1, 11, models.KindClick),
		rec(2, 10, models.KindPurchase),
		rec(2, 11, models.KindPurchase),
		rec(3, 12, models.KindClick),
	})

	if m.ItemScores[10] != 6 || m.ItemScores[11] != 4 || m.ItemScores[12] != 1 {
		t.Errorf("ItemScores = %v", m.ItemScores)
	}
	if got := m.CoOccur[10][11]; got != 4 {
		t.Errorf("CoOccur[10][11] = %d, want 4", got)
	}
	if m.CoOccur[11][10] != m.CoOccur[10][11] {
		t.Error("co-occurrence is not symmetric")
	}
	if !slices.Equal(m.Popular, []int64{10, 11, 12}) {
		t.Errorf("Popular = %v, want [10 11 12]", m.Popular)
	}

	n := m.Similar[10]
	if len(n) != 1 || n[0].ProductID != 11 {
		t.Fatalf("Similar[10] = %+v", n)
	}
	want := 4 / math.Sqrt(24)
	if math.Abs(n[0].Score-want) > 1e-12 {
		t.Errorf("sim(10,11) = %v, want %v", n[0].Score, want)
	}
	if _, ok := m.Similar[12]; ok {
		t.Error("product with no co-occurrence has a neighbor list")
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestRepeatedInteractionsUseMinWeight(t *testing.T) {
	t.Parallel()

	// Five clicks on 20 against one purchase of 21 co-occur with weight 3.
	recs := []models.InteractionRecord{rec(1, 21, models.KindPurchase)}
	for range 5 {
		recs = append(recs, rec(1, 20, models.KindClick))
	}
	m := build(t, NewCoVisitation(DefaultConfig()), nil, recs)

	if got := m.CoOccur[20][21]; got != 3 {
		t.Errorf("CoOccur[20][21] = %d, want 3", got)
	}
	if m.UserItems[1][20] != 5 {
		t.Errorf("UserItems[1][20] = %d, want 5", m.UserItems[1][20])
	}
}

func TestIncrementalMatchesFull(t *testing.T) {
	t.Parallel()

	history := randomHistory(2000)
	tests := []struct {
		name    string
		trainer Trainer
	}{
		{"covisit", NewCoVisitation(Config{MaxNeighbors: 10, MinCoOccurrence: 1, Workers: 3})},
		{"popularity", NewPopularity()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			full := build(t, tt.trainer, nil, history)

			for _, split := range []int{0, 1, 750, 1999, 2000} {
				base := build(t, tt.trainer, nil, history[:split])
				inc := build(t, tt.trainer, base, history[split:])
				if !reflect.DeepEqual(full, inc) {
					t.Fatalf("split %d: incremental model differs from full model", split)
				}
			}
		})
	}
}

func TestIncrementalLeavesBaseUntouched(t *testing.T) {
	t.Parallel()

	tr := NewCoVisitation(DefaultConfig())
	base := build(t, tr, nil, []models.InteractionRecord{rec(1, 1, models.KindClick), rec(1, 2, models.KindClick)})
	before := base.CoOccur[1][2]
	popular := slices.Clone(base.Popular)

	_ = build(t, tr, base, []models.InteractionRecord{rec(1, 2, models.KindPurchase), rec(1, 3, models.KindClick)})

	if base.CoOccur[1][2] != before || !slices.Equal(base.Popular, popular) || base.Interactions != 2 {
		t.Error("incremental build mutated its base model")
	}
	if _, ok := base.ItemScores[3]; ok {
		t.Error("base model gained a product")
	}
}

func TestIncrementalFromOtherAlgorithmStartsFresh(t *testing.T) {
	t.Parallel()

	pop := build(t, NewPopularity(), nil, []models.InteractionRecord{rec(1, 1, models.KindClick)})
	m := build(t, NewCoVisitation(DefaultConfig()), pop, []models.InteractionRecord{rec(2, 2, models.KindClick)})
	if _, ok := m.ItemScores[1]; ok || m.Interactions != 1 {
		t.Errorf("covisit build reused popularity statistics: %+v", m.ItemScores)
	}
}

func TestPopularTieBreak(t *testing.T) {
	t.Parallel()

	m := build(t, NewPopularity(), nil, []models.InteractionRecord{
		rec(1, 30, models.KindClick),
		rec(1, 5, models.KindClick),
		rec(2, 17, models.KindAddToCart),
		rec(3, 9, models.KindClick),
	})
	if !slices.Equal(m.Popular, []int64{17, 5, 9, 30}) {
		t.Errorf("Popular = %v, want [17 5 9 30]", m.Popular)
	}
	if len(m.Similar) != 0 {
		t.Errorf("popularity model has neighbor lists: %v", m.Similar)
	}
}

func TestTopKAndSimilarTo(t *testing.T) {
	t.Parallel()

	var recs []models.InteractionRecord
	for u := int64(1); u <= 3; u++ {
		for p := int64(1); p <= 6; p++ {
			if p <= u+3 {
				recs = append(recs, rec(u, p, models.KindClick))
			}
		}
	}
	m := build(t, NewCoVisitation(Config{MaxNeighbors: 3, MinCoOccurrence: 1, Workers: 2}), nil, recs)

	skip := func(id int64) bool { return id == 2 }
	top := m.TopK(3, skip)
	if len(top) != 3 || slices.Contains(top, 2) {
		t.Errorf("TopK(3) = %v", top)
	}

	sim := m.SimilarTo(1, 10, nil)
	if len(sim) != 3 {
		t.Errorf("SimilarTo(1) returned %d neighbors, cap is 3", len(sim))
	}
	if slices.Contains(sim, 1) {
		t.Error("SimilarTo returned the seed")
	}
	if got := m.SimilarTo(999, 5, nil); len(got) != 0 {
		t.Errorf("SimilarTo(unknown) = %v", got)
	}

	var nilModel *Model
	if nilModel.TopK(3, nil) != nil || nilModel.Products() != 0 {
		t.Error("nil model should produce nothing")
	}
}

func TestMinCoOccurrenceFiltersNeighbors(t *testing.T) {
	t.Parallel()

	recs := []models.InteractionRecord{
		rec(1, 1, models.KindPurchase), rec(1, 2, models.KindPurchase),
		rec(2, 1, models.KindClick), rec(2, 3, models.KindClick),
	}
	m := build(t, NewCoVisitation(Config{MaxNeighbors: 10, MinCoOccurrence: 2, Workers: 1}), nil, recs)

	if got := m.SimilarTo(1, 10, nil); !slices.Equal(got, []int64{2}) {
		t.Errorf("SimilarTo(1) = %v, want [2]", got)
	}
	if m.CoOccur[1][3] != 1 {
		t.Error("weak pair must stay in the statistics")
	}
}

func TestBuildCancelled(t *testing.T) {
	t.Parallel()

	acc := NewCoVisitation(DefaultConfig()).NewAccumulator(nil)
	for _, r := range randomHistory(200) {
		acc.Add(r)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := acc.Build(ctx); err == nil {
		t.Error("Build() with cancelled context should fail")
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"popularity", func(c *Config) { c.Algorithm = NamePopularity }, false},
		{"unknown algorithm", func(c *Config) { c.Algorithm = "als" }, true},
		{"zero neighbors", func(c *Config) { c.MaxNeighbors = 0 }, true},
		{"zero workers", func(c *Config) { c.Workers = 0 }, true},
		{"zero min co-occurrence", func(c *Config) { c.MinCoOccurrence = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
