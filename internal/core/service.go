package core

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"boqcore/internal/blob"
	"boqcore/internal/infra/persistence/memory"
	"boqcore/internal/onlv"
	"boqcore/pkg/domain"
	"boqcore/pkg/identifier"
)

// Service exposes transactional operations over projects, bills of
// quantities and their document trees. Every mutation runs inside a store
// transaction evaluated by the rules engine.
type Service struct {
	store    PersistentStore
	logger   Logger
	metrics  MetricsRecorder
	tracer   Tracer
	audit    AuditRecorder
	clock    Clock
	nowFn    func() time.Time
	reserved ReservedCodes
}

// ServiceOption customizes service construction.
type ServiceOption func(*Service)

// WithLogger overrides the logger. Nil restores the no-op logger.
func WithLogger(l Logger) ServiceOption {
	return func(s *Service) {
		if l == nil {
			l = noopLogger{}
		}
		s.logger = l
	}
}

// WithClock overrides the time source used for audit timestamps.
func WithClock(c Clock) ServiceOption {
	return func(s *Service) { s.clock = c }
}

// WithMetricsRecorder attaches a metrics sink.
func WithMetricsRecorder(m MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if m == nil {
			m = noopMetricsRecorder{}
		}
		s.metrics = m
	}
}

// WithTracer attaches a tracing sink.
func WithTracer(t Tracer) ServiceOption {
	return func(s *Service) {
		if t == nil {
			t = noopTracer{}
		}
		s.tracer = t
	}
}

// WithAuditRecorder attaches an audit sink.
func WithAuditRecorder(a AuditRecorder) ServiceOption {
	return func(s *Service) {
		if a == nil {
			a = noopAuditRecorder{}
		}
		s.audit = a
	}
}

// WithReservedCodes overrides the reserved-code set consulted by
// ProbeIdentifier.
func WithReservedCodes(codes ReservedCodes) ServiceOption {
	return func(s *Service) { s.reserved = codes }
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		logger:   noopLogger{},
		metrics:  noopMetricsRecorder{},
		tracer:   noopTracer{},
		audit:    noopAuditRecorder{},
		reserved: DefaultReservedCodes(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.nowFn = selectNowFunc(store, s.clock)
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store. A nil
// engine gets the default rule set.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

type nowFuncProvider interface {
	NowFunc() func() time.Time
}

type rulesEngineProvider interface {
	RulesEngine() *RulesEngine
}

// selectNowFunc prefers the store's injected time source, then the configured
// clock, then system UTC.
func selectNowFunc(store PersistentStore, clock Clock) func() time.Time {
	if p, ok := store.(nowFuncProvider); ok {
		if fn := p.NowFunc(); fn != nil {
			return func() time.Time { return fn().UTC() }
		}
	}
	if clock != nil {
		return clock.Now
	}
	return func() time.Time { return time.Now().UTC() }
}

// extractRulesEngine returns the store's engine when it exposes one.
func extractRulesEngine(store PersistentStore) *RulesEngine {
	if p, ok := store.(rulesEngineProvider); ok {
		return p.RulesEngine()
	}
	return nil
}

// run executes fn in a store transaction with tracing, metrics, audit and
// logging around it. entityID is resolved after fn so created IDs are
// captured.
func (s *Service) run(ctx context.Context, op string, entityID func() string, fn func(Transaction) error) (Result, error) {
	ctx, span := s.tracer.Start(ctx, op)
	started := time.Now()
	res, err := s.store.RunInTransaction(ctx, fn)
	duration := time.Since(started)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)
	id := ""
	if entityID != nil {
		id = entityID()
	}
	if err != nil {
		s.logger.Error("operation failed", "operation", op, "entity_id", id, "error", err)
		s.recordAudit(ctx, op, id, AuditStatusError, duration, err)
		return res, err
	}
	s.logger.Debug("operation committed", "operation", op, "entity_id", id, "violations", len(res.Violations))
	s.recordAudit(ctx, op, id, AuditStatusSuccess, duration, nil)
	return res, nil
}

func (s *Service) recordAudit(ctx context.Context, op, entityID string, status AuditStatus, duration time.Duration, opErr error) {
	spec, ok := auditSpecs[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: op,
		Entity:    spec.Entity,
		Action:    spec.Action,
		EntityID:  entityID,
		Status:    status,
		Duration:  duration,
		Timestamp: s.nowFn(),
	}
	if opErr != nil {
		entry.Error = opErr.Error()
	}
	s.audit.Record(ctx, entry)
}

// recordAuditSuccess emits a success entry outside the run helper. Used by
// callers that batch several sub-operations under one logical name.
func (s *Service) recordAuditSuccess(ctx context.Context, op, entityID string, duration time.Duration) {
	s.recordAudit(ctx, op, entityID, AuditStatusSuccess, duration, nil)
}

// ErrNotFound is returned when reference validation fails within
// transactional helpers.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ValidationError lists the reasons a record was rejected before it reached
// the store.
type ValidationError struct {
	Entity  EntityType
	Reasons []string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed: %s", e.Entity, strings.Join(e.Reasons, "; "))
}

func validateProject(p Project) error {
	var reasons []string
	if strings.TrimSpace(p.Name) == "" {
		reasons = append(reasons, "name must not be empty")
	}
	if len(p.Name) > 255 {
		reasons = append(reasons, "name must not exceed 255 characters")
	}
	if len(reasons) > 0 {
		return ValidationError{Entity: EntityProject, Reasons: reasons}
	}
	return nil
}

func validateBillOfQuantities(b BillOfQuantities) error {
	var reasons []string
	if strings.TrimSpace(b.Name) == "" {
		reasons = append(reasons, "name must not be empty")
	}
	if len(b.Name) > 255 {
		reasons = append(reasons, "name must not exceed 255 characters")
	}
	if strings.TrimSpace(b.LVCode) == "" {
		reasons = append(reasons, "lv code must not be empty")
	}
	if b.WorkType == "" {
		reasons = append(reasons, "work type must not be empty")
	}
	if len(reasons) > 0 {
		return ValidationError{Entity: EntityBillOfQuantities, Reasons: reasons}
	}
	return nil
}

// CreateProject persists a new project.
func (s *Service) CreateProject(ctx context.Context, project Project) (Project, Result, error) {
	if err := validateProject(project); err != nil {
		return Project{}, Result{}, err
	}
	var created Project
	res, err := s.run(ctx, "create_project", func() string { return created.ID }, func(tx Transaction) error {
		var err error
		created, err = tx.CreateProject(project)
		return err
	})
	return created, res, err
}

// UpdateProject mutates a project using the provided mutator.
func (s *Service) UpdateProject(ctx context.Context, id string, mutator func(*Project) error) (Project, Result, error) {
	var updated Project
	res, err := s.run(ctx, "update_project", func() string { return id }, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateProject(id, mutator)
		if err != nil {
			return err
		}
		return validateProject(updated)
	})
	return updated, res, err
}

// DeleteProject removes a project record.
func (s *Service) DeleteProject(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "delete_project", func() string { return id }, func(tx Transaction) error {
		return tx.DeleteProject(id)
	})
}

// CreateBillOfQuantities persists a new bill of quantities.
func (s *Service) CreateBillOfQuantities(ctx context.Context, boq BillOfQuantities) (BillOfQuantities, Result, error) {
	if err := validateBillOfQuantities(boq); err != nil {
		return BillOfQuantities{}, Result{}, err
	}
	var created BillOfQuantities
	res, err := s.run(ctx, "create_boq", func() string { return created.ID }, func(tx Transaction) error {
		var err error
		created, err = tx.CreateBillOfQuantities(boq)
		return err
	})
	return created, res, err
}

// UpdateBillOfQuantities mutates a bill of quantities.
func (s *Service) UpdateBillOfQuantities(ctx context.Context, id string, mutator func(*BillOfQuantities) error) (BillOfQuantities, Result, error) {
	var updated BillOfQuantities
	res, err := s.run(ctx, "update_boq", func() string { return id }, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateBillOfQuantities(id, mutator)
		if err != nil {
			return err
		}
		return validateBillOfQuantities(updated)
	})
	return updated, res, err
}

// DeleteBillOfQuantities removes a bill of quantities and its document.
func (s *Service) DeleteBillOfQuantities(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "delete_boq", func() string { return id }, func(tx Transaction) error {
		return tx.DeleteBillOfQuantities(id)
	})
}

// PutDocument stores or replaces the document tree of a bill of quantities.
func (s *Service) PutDocument(ctx context.Context, record DocumentRecord) (DocumentRecord, Result, error) {
	var stored DocumentRecord
	res, err := s.run(ctx, "put_document", func() string { return stored.BoQID }, func(tx Transaction) error {
		var err error
		stored, err = tx.PutDocument(record)
		return err
	})
	return stored, res, err
}

// UpdateDocument applies mutator to the stored document of boqID.
func (s *Service) UpdateDocument(ctx context.Context, boqID string, mutator func(*DocumentRecord) error) (DocumentRecord, Result, error) {
	var updated DocumentRecord
	res, err := s.run(ctx, "update_document", func() string { return boqID }, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateDocument(boqID, mutator)
		return err
	})
	return updated, res, err
}

// DeleteDocument removes the stored document of boqID.
func (s *Service) DeleteDocument(ctx context.Context, boqID string) (Result, error) {
	return s.run(ctx, "delete_document", func() string { return boqID }, func(tx Transaction) error {
		return tx.DeleteDocument(boqID)
	})
}

// InsertGroup adds a main group to the stored document of boqID.
func (s *Service) InsertGroup(ctx context.Context, boqID, nr, title string) (DocumentRecord, Result, error) {
	var updated DocumentRecord
	res, err := s.run(ctx, "insert_group", func() string { return boqID }, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateDocument(boqID, func(rec *DocumentRecord) error {
			rec.Document = domain.AddGroup(rec.Document, nr, title)
			return nil
		})
		return err
	})
	return updated, res, err
}

// InsertSubGroup adds a sub-group below groupNr. subKey may carry the
// compound "<groupNr>.<nr>" form.
func (s *Service) InsertSubGroup(ctx context.Context, boqID, groupNr, subKey, title string) (DocumentRecord, Result, error) {
	var updated DocumentRecord
	res, err := s.run(ctx, "insert_subgroup", func() string { return boqID }, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateDocument(boqID, func(rec *DocumentRecord) error {
			next, err := domain.AddSubGroup(rec.Document, groupNr, subKey, title)
			if err != nil {
				return err
			}
			rec.Document = next
			return nil
		})
		return err
	})
	return updated, res, err
}

// InsertItem appends a line item to the addressed sub-group, creating the
// group and sub-group as needed.
func (s *Service) InsertItem(ctx context.Context, boqID, groupNr, subGroupNr string, item Item) (DocumentRecord, Result, error) {
	var updated DocumentRecord
	res, err := s.run(ctx, "insert_item", func() string { return boqID }, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateDocument(boqID, func(rec *DocumentRecord) error {
			rec.Document = domain.AddItem(rec.Document, groupNr, subGroupNr, item)
			return nil
		})
		return err
	})
	return updated, res, err
}

// InsertVariant attaches a follow-up position to the base text addressed by
// path ("lg.ulg.itemNr").
func (s *Service) InsertVariant(ctx context.Context, boqID, path string, v Variant) (DocumentRecord, Result, error) {
	var updated DocumentRecord
	res, err := s.run(ctx, "insert_variant", func() string { return boqID }, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateDocument(boqID, func(rec *DocumentRecord) error {
			next, err := domain.AddVariant(rec.Document, path, v)
			if err != nil {
				return err
			}
			rec.Document = next
			return nil
		})
		return err
	})
	return updated, res, err
}

// ProposeIdentifier suggests the number for the next item appended to the
// addressed sub-group: the successor of the last item, or the sub-group's
// first child when it is empty.
func (s *Service) ProposeIdentifier(ctx context.Context, boqID, groupNr, subGroupNr string) (identifier.Components, error) {
	var proposed identifier.Components
	err := s.store.View(ctx, func(view TransactionView) error {
		record, ok := view.FindDocument(boqID)
		if !ok {
			return ErrNotFound{Entity: EntityDocument, ID: boqID}
		}
		last, ok := domain.LastItemNumber(record.Document, groupNr, subGroupNr)
		if !ok {
			first, err := identifier.FirstChild(identifier.Components{LG: groupNr, ULG: subGroupNr})
			if err != nil {
				return err
			}
			proposed = first
			return nil
		}
		next, err := identifier.Next(last)
		if err != nil {
			return err
		}
		proposed = next
		return nil
	})
	return proposed, err
}

// Probe reports the outcome of a collision and reservation check for a typed
// identifier. Taken is set when the value is syntactically valid but cannot
// be used; Reason carries the display text.
type Probe struct {
	Valid  bool
	Errors []string
	Taken  bool
	Reason string
}

// ProbeIdentifier validates raw and consults the reserved-code set and the
// structured projection of the stored document. Collisions do not invalidate
// the value itself.
func (s *Service) ProbeIdentifier(ctx context.Context, boqID, raw string) (Probe, error) {
	validation := identifier.Validate(raw)
	if !validation.Valid {
		return Probe{Errors: validation.Errors}, nil
	}
	nr, err := identifier.Parse(raw)
	if err != nil {
		return Probe{Errors: []string{err.Error()}}, nil
	}
	probe := Probe{Valid: true}
	if taken, reason := s.reserved.Check(nr); taken {
		probe.Taken = true
		probe.Reason = reason
		return probe, nil
	}
	err = s.store.View(ctx, func(view TransactionView) error {
		record, ok := view.FindDocument(boqID)
		if !ok {
			return ErrNotFound{Entity: EntityDocument, ID: boqID}
		}
		if domain.Contains(record.Document, nr) {
			probe.Taken = true
			probe.Reason = fmt.Sprintf("identifier %s is already present", nr.Format())
		}
		return nil
	})
	if err != nil {
		return Probe{}, err
	}
	return probe, nil
}

// ExportDocument serializes the stored document of boqID and writes it to
// the artifact store under exports/<boqID>/<filename>. The filename defaults
// to the BoQ's original filename, falling back to <boqID>.onlv.
func (s *Service) ExportDocument(ctx context.Context, boqID string, artifacts blob.Store) (blob.Info, error) {
	ctx, span := s.tracer.Start(ctx, "export_document")
	started := time.Now()
	info, err := s.exportDocument(ctx, boqID, artifacts)
	span.End(err)
	s.metrics.Observe(ctx, "export_document", err == nil, time.Since(started))
	if err != nil {
		s.logger.Error("export failed", "operation", "export_document", "boq_id", boqID, "error", err)
		return blob.Info{}, err
	}
	s.logger.Info("document exported", "boq_id", boqID, "key", info.Key, "size", info.Size)
	return info, nil
}

func (s *Service) exportDocument(ctx context.Context, boqID string, artifacts blob.Store) (blob.Info, error) {
	var record DocumentRecord
	var boq BillOfQuantities
	err := s.store.View(ctx, func(view TransactionView) error {
		rec, ok := view.FindDocument(boqID)
		if !ok {
			return ErrNotFound{Entity: EntityDocument, ID: boqID}
		}
		record = rec
		boq, _ = view.FindBillOfQuantities(boqID)
		return nil
	})
	if err != nil {
		return blob.Info{}, err
	}
	payload, err := onlv.EncodeBytes(onlv.FromDocument(record.Document))
	if err != nil {
		return blob.Info{}, err
	}
	filename := boq.OriginalFilename
	if filename == "" {
		filename = boqID + ".onlv"
	}
	key := fmt.Sprintf("exports/%s/%s", boqID, filename)
	return artifacts.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/xml",
		Metadata:    map[string]string{"boq_id": boqID},
	})
}
