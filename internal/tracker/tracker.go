// Package tracker composes the cached table reads, the reconciliation
// engine, and the status mutation protocol into the operations the CLI and
// the HTTP API expose.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/formtrack/internal/cache"
	"github.com/mesh-intelligence/formtrack/internal/metrics"
	"github.com/mesh-intelligence/formtrack/internal/mutation"
	"github.com/mesh-intelligence/formtrack/internal/reconcile"
	"github.com/mesh-intelligence/formtrack/internal/sheet"
	"github.com/mesh-intelligence/formtrack/pkg/types"
)

// Tables serves cached table reads and accepts invalidations.
type Tables interface {
	Get(ctx context.Context, table string) (types.RowSet, error)
	Invalidate(tables ...string)
	InvalidateAll()
}

// StatusWriter applies mutations to the status log.
type StatusWriter interface {
	Upsert(ctx context.Context, personID, documentName string) (types.MutationResult, error)
	Retract(ctx context.Context, personID, documentName string) (types.MutationResult, error)
}

// Service answers per-person and report queries and records completions.
type Service struct {
	tables  Tables
	writer  StatusWriter
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Open passes it on to every component it
// builds.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics. Open passes them on to every component it
// builds.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New returns a Service over already constructed components.
func New(tables Tables, writer StatusWriter, opts ...Option) *Service {
	s := &Service{
		tables: tables,
		writer: writer,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open builds the full read and write path over wb: a source adapter, a
// freshness cache configured from cfg.Cache, and a mutator writing
// timestamps in cfg's timezone.
func Open(wb types.Workbook, cfg types.Config, opts ...Option) (*Service, error) {
	s := New(nil, nil, opts...)

	loc, err := cfg.Location()
	if err != nil {
		return nil, errors.Join(types.ErrTimezoneUnknown, err)
	}

	src := sheet.New(wb, sheet.WithLogger(s.logger), sheet.WithMetrics(s.metrics))
	s.tables = cache.New(src,
		cache.WithTTLs(cfg.Cache.TTLs()),
		cache.WithServeStale(cfg.Cache.ServeStale),
		cache.WithLogger(s.logger),
		cache.WithMetrics(s.metrics),
	)
	s.writer = mutation.New(wb,
		mutation.WithLocation(loc),
		mutation.WithLogger(s.logger),
		mutation.WithMetrics(s.metrics),
	)
	return s, nil
}

// View returns the completion view of one person. The id is matched
// against the matrix ignoring case; status records are then matched with
// the id as written in the matrix.
func (s *Service) View(ctx context.Context, personID string) (types.PersonView, error) {
	personID = strings.TrimSpace(personID)
	if personID == "" {
		return types.PersonView{}, &types.Error{
			Op:   "view",
			Kind: types.ErrInvalidInput,
			Err:  errors.New("person id is required"),
		}
	}

	sets, err := s.load(ctx)
	if err != nil {
		return types.PersonView{}, withRequest(err, personID, "")
	}
	matrix, registry, status := sets[0], sets[1], sets[2]

	person, row, err := reconcile.FindPerson(personID, matrix)
	if err != nil {
		s.logger.InfoContext(ctx, "person not found", "person_id", personID)
		return types.PersonView{}, err
	}
	required := reconcile.RequiredDocuments(matrix.Columns, row)
	view := reconcile.ComputeView(person.ID, required, registry, status)

	return types.PersonView{
		Person:   person,
		View:     view,
		Progress: view.Progress(),
	}, nil
}

// Report aggregates every person in the matrix. Matrix rows without an id
// are listed in Report.Skipped rather than failing the report.
func (s *Service) Report(ctx context.Context) (types.Report, error) {
	sets, err := s.load(ctx)
	if err != nil {
		return types.Report{}, err
	}
	report := reconcile.Aggregate(sets[0], sets[1], sets[2])
	for _, sk := range report.Skipped {
		s.logger.WarnContext(ctx, "matrix row skipped",
			"row", sk.Row,
			"reason", sk.Reason,
		)
	}
	return report, nil
}

// MarkComplete records documentName as complete for personID. The id is
// resolved against the matrix first, so the status row is written with the
// id as the matrix spells it. The cached status table is invalidated only
// after the write succeeds.
func (s *Service) MarkComplete(ctx context.Context, personID, documentName string) (types.MutationResult, error) {
	id, err := s.resolve(ctx, "mark complete", personID, documentName)
	if err != nil {
		return "", err
	}
	result, err := s.writer.Upsert(ctx, id, documentName)
	if err != nil {
		return "", err
	}
	s.tables.Invalidate(types.StatusTable)
	return result, nil
}

// MarkIncomplete removes the completion record of documentName for
// personID. ResultNotFound leaves the cache as it is.
func (s *Service) MarkIncomplete(ctx context.Context, personID, documentName string) (types.MutationResult, error) {
	id, err := s.resolve(ctx, "mark incomplete", personID, documentName)
	if err != nil {
		return "", err
	}
	result, err := s.writer.Retract(ctx, id, documentName)
	if err != nil {
		return "", err
	}
	if result == types.ResultDeleted {
		s.tables.Invalidate(types.StatusTable)
	}
	return result, nil
}

// resolve returns the matrix id of personID. Mutations key status rows by
// this id so View reads back what was written.
func (s *Service) resolve(ctx context.Context, op, personID, documentName string) (string, error) {
	personID = strings.TrimSpace(personID)
	if personID == "" || strings.TrimSpace(documentName) == "" {
		return "", &types.Error{
			Op:       op,
			PersonID: personID,
			Document: documentName,
			Kind:     types.ErrInvalidInput,
			Err:      errors.New("person id and document name are required"),
		}
	}

	matrix, err := s.tables.Get(ctx, types.MatrixTable)
	if err != nil {
		return "", withRequest(err, personID, documentName)
	}
	person, _, err := reconcile.FindPerson(personID, matrix)
	if err != nil {
		s.logger.InfoContext(ctx, "person not found", "op", op, "person_id", personID)
		return "", err
	}
	return person.ID, nil
}

// Refresh drops every cached table. It is called when the backing store
// was regenerated outside this process.
func (s *Service) Refresh(ctx context.Context) {
	s.tables.InvalidateAll()
	s.logger.InfoContext(ctx, "cache refreshed")
}

// Warm loads the three standard tables into the cache.
func (s *Service) Warm(ctx context.Context) error {
	_, err := s.load(ctx)
	return err
}

// load reads the matrix, registry and status tables concurrently, in that
// order in the result.
func (s *Service) load(ctx context.Context) ([]types.RowSet, error) {
	sets := make([]types.RowSet, len(types.StandardTableNames))
	g, gctx := errgroup.WithContext(ctx)
	for i, table := range types.StandardTableNames {
		g.Go(func() error {
			rs, err := s.tables.Get(gctx, table)
			if err != nil {
				return err
			}
			sets[i] = rs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sets, nil
}

// withRequest returns a copy of err's *types.Error carrying the requested
// person and document. The original may be shared by concurrent callers
// and is left untouched.
func withRequest(err error, personID, documentName string) error {
	var opErr *types.Error
	if !errors.As(err, &opErr) {
		return err
	}
	e := *opErr
	if e.PersonID == "" {
		e.PersonID = personID
	}
	if e.Document == "" {
		e.Document = documentName
	}
	return &e
}
