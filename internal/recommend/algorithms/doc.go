// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

// Package algorithms builds recommendation models from interaction records.
//
// Training is split into two steps. An Accumulator folds records into
// sufficient statistics one at a time, and Build turns the statistics into a
// queryable Model. Accumulators can start from an earlier Model, which is how
// incremental training works: the statistics are additive, so folding the new
// records into a copy of the old statistics yields the same Model as folding
// the whole history from scratch.
//
// # Algorithms
//
//   - covisit: item co-occurrence across users, producing a popularity
//     ranking and per-item neighbor lists
//   - popularity: popularity ranking only, with no neighbor lists
//
// # Thread Safety
//
// An Accumulator is owned by a single goroutine. A built Model is immutable
// and safe for concurrent reads.
package algorithms
