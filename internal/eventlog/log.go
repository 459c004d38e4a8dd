// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package eventlog

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/signalcart/internal/apperr"
	"github.com/tomtom215/signalcart/internal/metrics"
	"github.com/tomtom215/signalcart/internal/models"
)

// ErrClosed is returned by operations on a closed log.
var ErrClosed = errors.New("event log is closed")

var eventPrefix = []byte("ev/")

// errStopScan ends a scan early when the consumer stops iterating.
var errStopScan = errors.New("scan stopped")

// Stats reports log counters for status endpoints.
type Stats struct {
	Head         uint64 `json:"head"`
	Appends      int64  `json:"appends"`
	Batches      int64  `json:"batches"`
	Failures     int64  `json:"failures"`
	LSMBytes     int64  `json:"lsm_bytes"`
	ValueLogSize int64  `json:"value_log_bytes"`
}

type appendResult struct {
	seq uint64
	err error
}

type appendRequest struct {
	payload []byte
	result  chan appendResult
}

// Log is the Badger-backed interaction log.
type Log struct {
	db     *badger.DB
	config Config
	logger zerolog.Logger

	requests chan *appendRequest
	quit     chan struct{}
	done     chan struct{}

	head     atomic.Uint64
	appends  atomic.Int64
	batches  atomic.Int64
	failures atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the log and starts the appender.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func Open(cfg Config, logger zerolog.Logger) (*Log, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid event log config: %w", err)
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites && !cfg.InMemory
	if cfg.MemTableSize > 0 {
		opts.MemTableSize = cfg.MemTableSize
	}
	if cfg.ValueLogFileSize > 0 && !cfg.InMemory {
		opts.ValueLogFileSize = cfg.ValueLogFileSize
	}
	if cfg.NumCompactors > 0 {
		opts.NumCompactors = cfg.NumCompactors
	}
	if cfg.Compression {
		opts.Compression = options.Snappy
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, apperr.Storage("open event log", err)
	}

	l := &Log{
		db:       db,
		config:   cfg,
		logger:   logger.With().Str("component", "eventlog").Logger(),
		requests: make(chan *appendRequest, cfg.QueueSize),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	head, err := l.loadHead()
	if err != nil {
		_ = db.Close()
		return nil, apperr.Storage("restore log head", err)
	}
	l.head.Store(head)

	go l.run()

	l.logger.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", opts.SyncWrites).
		Uint64("head", head).
		Msg("Event log opened")
	return l, nil
}

// loadHead finds the highest sequence already stored.
func (l *Log) loadHead() (uint64, error) {
	var head uint64
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(eventKey(^uint64(0)))
		if it.ValidForPrefix(eventPrefix) {
			head = decodeKey(it.Item().Key())
		}
		return nil
	})
	return head, err
}

// Append durably stores ev and returns its sequence number. The event's own
// Seq field is ignored; the log assigns it. Append returns only after the
// batch containing ev has committed or failed. If ctx ends first, the event
// may still be written.
func (l *Log) Append(ctx context.Context, ev *models.InteractionEvent) (uint64, error) {
	if err := l.checkOpen(); err != nil {
		return 0, err
	}

	stored := *ev
	stored.Seq = 0
	payload, err := json.Marshal(&stored)
	if err != nil {
		return 0, fmt.Errorf("marshal event: %w", err)
	}

	req := &appendRequest{payload: payload, result: make(chan appendResult, 1)}
	select {
	case l.requests <- req:
	case <-l.quit:
		return 0, apperr.Storage("append", ErrClosed)
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	select {
	case res := <-req.result:
		return res.seq, res.err
	case <-l.done:
		// The appender may have answered just before exiting.
		select {
		case res := <-req.result:
			return res.seq, res.err
		default:
		}
		return 0, apperr.Storage("append", ErrClosed)
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (l *Log) run() {
	defer close(l.done)

	batch := make([]*appendRequest, 0, l.config.BatchSize)
	for {
		select {
		case <-l.quit:
			l.drain()
			return
		case req := <-l.requests:
			batch = append(batch[:0], req)
		fill:
			for len(batch) < l.config.BatchSize {
				select {
				case next := <-l.requests:
					batch = append(batch, next)
				default:
					break fill
				}
			}
			l.commit(batch)
		}
	}
}

// commit writes one batch in a single transaction; all or nothing.
func (l *Log) commit(batch []*appendRequest) {
	start := l.head.Load()
	err := l.db.Update(func(txn *badger.Txn) error {
		for i, req := range batch {
			if err := txn.Set(eventKey(start+uint64(i)+1), req.payload); err != nil {
				return err
			}
		}
		return nil
	})

	if errors.Is(err, badger.ErrTxnTooBig) && len(batch) > 1 {
		half := len(batch) / 2
		l.commit(batch[:half])
		l.commit(batch[half:])
		return
	}

	metrics.RecordLogBatch(len(batch), err)
	if err != nil {
		l.failures.Add(int64(len(batch)))
		l.logger.Error().Err(err).Int("batch", len(batch)).Msg("Event log batch commit failed")
		storageErr := apperr.Storage("append", err)
		for _, req := range batch {
			req.result <- appendResult{err: storageErr}
		}
		return
	}

	l.head.Store(start + uint64(len(batch)))
	l.appends.Add(int64(len(batch)))
	l.batches.Add(1)
	for i, req := range batch {
		req.result <- appendResult{seq: start + uint64(i) + 1}
	}
}

func (l *Log) drain() {
	for {
		select {
		case req := <-l.requests:
			req.result <- appendResult{err: apperr.Storage("append", ErrClosed)}
		default:
			return
		}
	}
}

// Scan lazily yields every event with a sequence greater than after, in
// sequence order, from a snapshot taken when iteration begins. A failure is
// yielded once as the final element; storage failures are StorageErrors and
// context errors are passed through unchanged.
func (l *Log) Scan(ctx context.Context, after uint64) iter.Seq2[models.InteractionEvent, error] {
	return func(yield func(models.InteractionEvent, error) bool) {
		if err := l.checkOpen(); err != nil {
			yield(models.InteractionEvent{}, err)
			return
		}

		err := l.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = eventPrefix
			opts.PrefetchSize = 256
			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(eventKey(after + 1)); it.ValidForPrefix(eventPrefix); it.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}

				ev, err := decodeItem(it.Item())
				if err != nil {
					return err
				}
				if !yield(ev, nil) {
					return errStopScan
				}
			}
			return nil
		})

		switch {
		case err == nil, errors.Is(err, errStopScan):
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			yield(models.InteractionEvent{}, err)
		default:
			yield(models.InteractionEvent{}, apperr.Storage("scan", err))
		}
	}
}

// Tail returns up to n of the most recent events, newest first.
func (l *Log) Tail(ctx context.Context, n int) ([]models.InteractionEvent, error) {
	if err := l.checkOpen(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}

	events := make([]models.InteractionEvent, 0, n)
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = eventPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(eventKey(^uint64(0))); it.ValidForPrefix(eventPrefix) && len(events) < n; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			ev, err := decodeItem(it.Item())
			if err != nil {
				return err
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, apperr.Storage("tail", err)
	}
	return events, nil
}

// Head returns the sequence of the last committed event, 0 when empty.
func (l *Log) Head() uint64 {
	return l.head.Load()
}

// Stats returns log counters.
func (l *Log) Stats() Stats {
	s := Stats{
		Head:     l.head.Load(),
		Appends:  l.appends.Load(),
		Batches:  l.batches.Load(),
		Failures: l.failures.Load(),
	}
	if l.checkOpen() == nil {
		s.LSMBytes, s.ValueLogSize = l.db.Size()
	}
	return s
}

// Close stops the appender, fails queued appends, and closes BadgerDB.
func (l *Log) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	close(l.quit)
	<-l.done

	timeout := l.config.CloseTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	closed := make(chan error, 1)
	go func() { closed <- l.db.Close() }()

	select {
	case err := <-closed:
		if err != nil {
			return apperr.Storage("close event log", err)
		}
		l.logger.Info().Uint64("head", l.head.Load()).Msg("Event log closed")
		return nil
	case <-time.After(timeout):
		return apperr.Storage("close event log", fmt.Errorf("timed out after %v", timeout))
	}
}

func (l *Log) checkOpen() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return apperr.Storage("event log", ErrClosed)
	}
	return nil
}

func eventKey(seq uint64) []byte {
	key := make([]byte, len(eventPrefix)+8)
	copy(key, eventPrefix)
	binary.BigEndian.PutUint64(key[len(eventPrefix):], seq)
	return key
}

func decodeKey(key []byte) uint64 {
	if len(key) != len(eventPrefix)+8 {
		return 0
	}
	return binary.BigEndian.Uint64(key[len(eventPrefix):])
}

func decodeItem(item *badger.Item) (models.InteractionEvent, error) {
	var ev models.InteractionEvent
	seq := decodeKey(item.Key())
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &ev)
	}); err != nil {
		return ev, fmt.Errorf("decode event %d: %w", seq, err)
	}
	ev.Seq = seq
	return ev, nil
}
