// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"boqcore/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Project aliases domain.Project for in-memory persistence operations.
	Project = domain.Project
	// BillOfQuantities aliases domain.BillOfQuantities.
	BillOfQuantities = domain.BillOfQuantities
	// DocumentRecord aliases domain.DocumentRecord.
	DocumentRecord = domain.DocumentRecord
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore abstraction.
	PersistentStore = domain.PersistentStore
)

type memoryState struct {
	projects  map[string]Project
	boqs      map[string]BillOfQuantities
	documents map[string]DocumentRecord
}

// Snapshot captures a point-in-time clone of the store state. Documents are
// keyed by their owning bill-of-quantities ID.
type Snapshot struct {
	Projects  map[string]Project          `json:"projects"`
	BoQs      map[string]BillOfQuantities `json:"boqs"`
	Documents map[string]DocumentRecord   `json:"documents"`
}

func newMemoryState() memoryState {
	return memoryState{
		projects:  make(map[string]Project),
		boqs:      make(map[string]BillOfQuantities),
		documents: make(map[string]DocumentRecord),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Projects:  make(map[string]Project, len(state.projects)),
		BoQs:      make(map[string]BillOfQuantities, len(state.boqs)),
		Documents: make(map[string]DocumentRecord, len(state.documents)),
	}
	for k, v := range state.projects {
		s.Projects[k] = cloneProject(v)
	}
	for k, v := range state.boqs {
		s.BoQs[k] = cloneBoQ(v)
	}
	for k, v := range state.documents {
		s.Documents[k] = cloneDocumentRecord(v)
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Projects {
		state.projects[k] = cloneProject(v)
	}
	for k, v := range s.BoQs {
		state.boqs[k] = cloneBoQ(v)
	}
	for k, v := range s.Documents {
		state.documents[k] = cloneDocumentRecord(v)
	}
	return state
}

// migrateSnapshot fills nil buckets so snapshots from older exports import
// cleanly.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Projects == nil {
		snapshot.Projects = map[string]Project{}
	}
	if snapshot.BoQs == nil {
		snapshot.BoQs = map[string]BillOfQuantities{}
	}
	if snapshot.Documents == nil {
		snapshot.Documents = map[string]DocumentRecord{}
	}
	return snapshot
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.projects {
		cloned.projects[k] = cloneProject(v)
	}
	for k, v := range s.boqs {
		cloned.boqs[k] = cloneBoQ(v)
	}
	for k, v := range s.documents {
		cloned.documents[k] = cloneDocumentRecord(v)
	}
	return cloned
}

func cloneProject(p Project) Project               { return p }
func cloneBoQ(b BillOfQuantities) BillOfQuantities { return b }

func cloneDocumentRecord(r DocumentRecord) DocumentRecord {
	cp := r
	cp.Document = r.Document.Clone()
	return cp
}

// Store is a thread-safe copy-on-write store holding the full domain state in
// memory. Mutations run through RunInTransaction so rules evaluate against
// the candidate state before it becomes visible.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine for integration points.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc overrides the time provider, primarily for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListProjects returns all projects within the transaction snapshot.
func (v transactionView) ListProjects() []Project {
	out := make([]Project, 0, len(v.state.projects))
	for _, p := range v.state.projects {
		out = append(out, cloneProject(p))
	}
	return out
}

// ListBillsOfQuantities returns all bill-of-quantities records.
func (v transactionView) ListBillsOfQuantities() []BillOfQuantities {
	out := make([]BillOfQuantities, 0, len(v.state.boqs))
	for _, b := range v.state.boqs {
		out = append(out, cloneBoQ(b))
	}
	return out
}

// ListDocuments returns all stored document trees.
func (v transactionView) ListDocuments() []DocumentRecord {
	out := make([]DocumentRecord, 0, len(v.state.documents))
	for _, r := range v.state.documents {
		out = append(out, cloneDocumentRecord(r))
	}
	return out
}

// FindProject retrieves a project by ID from the snapshot.
func (v transactionView) FindProject(id string) (Project, bool) {
	p, ok := v.state.projects[id]
	if !ok {
		return Project{}, false
	}
	return cloneProject(p), true
}

// FindBillOfQuantities retrieves a bill of quantities by ID from the snapshot.
func (v transactionView) FindBillOfQuantities(id string) (BillOfQuantities, bool) {
	b, ok := v.state.boqs[id]
	if !ok {
		return BillOfQuantities{}, false
	}
	return cloneBoQ(b), true
}

// FindDocument retrieves the document tree of a bill of quantities.
func (v transactionView) FindDocument(boqID string) (DocumentRecord, bool) {
	r, ok := v.state.documents[boqID]
	if !ok {
		return DocumentRecord{}, false
	}
	return cloneDocumentRecord(r), true
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindProject retrieves a project from the transactional state.
func (tx *transaction) FindProject(id string) (Project, bool) {
	p, ok := tx.state.projects[id]
	if !ok {
		return Project{}, false
	}
	return cloneProject(p), true
}

// FindBillOfQuantities retrieves a bill of quantities from the transactional state.
func (tx *transaction) FindBillOfQuantities(id string) (BillOfQuantities, bool) {
	b, ok := tx.state.boqs[id]
	if !ok {
		return BillOfQuantities{}, false
	}
	return cloneBoQ(b), true
}

// CreateProject stores a new project.
func (tx *transaction) CreateProject(p Project) (Project, error) {
	if p.ID == "" {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.projects[p.ID]; exists {
		return Project{}, fmt.Errorf("project %q already exists", p.ID)
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.projects[p.ID] = cloneProject(p)
	tx.recordChange(Change{Entity: domain.EntityProject, Action: domain.ActionCreate, After: cloneProject(p)})
	return cloneProject(p), nil
}

// UpdateProject mutates a project using the provided mutator function.
func (tx *transaction) UpdateProject(id string, mutator func(*Project) error) (Project, error) {
	current, ok := tx.state.projects[id]
	if !ok {
		return Project{}, fmt.Errorf("project %q not found", id)
	}
	before := cloneProject(current)
	if err := mutator(&current); err != nil {
		return Project{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.projects[id] = cloneProject(current)
	tx.recordChange(Change{Entity: domain.EntityProject, Action: domain.ActionUpdate, Before: before, After: cloneProject(current)})
	return cloneProject(current), nil
}

// DeleteProject removes a project from the transaction state.
func (tx *transaction) DeleteProject(id string) error {
	current, ok := tx.state.projects[id]
	if !ok {
		return fmt.Errorf("project %q not found", id)
	}
	for _, boq := range tx.state.boqs {
		if boq.ProjectID == id {
			return fmt.Errorf("project %q still referenced by bill of quantities %q", id, boq.ID)
		}
	}
	delete(tx.state.projects, id)
	tx.recordChange(Change{Entity: domain.EntityProject, Action: domain.ActionDelete, Before: cloneProject(current)})
	return nil
}

// CreateBillOfQuantities stores a new bill-of-quantities record.
func (tx *transaction) CreateBillOfQuantities(b BillOfQuantities) (BillOfQuantities, error) {
	if b.ID == "" {
		b.ID = tx.store.newID()
	}
	if _, exists := tx.state.boqs[b.ID]; exists {
		return BillOfQuantities{}, fmt.Errorf("bill of quantities %q already exists", b.ID)
	}
	if b.ProjectID != "" {
		if _, ok := tx.state.projects[b.ProjectID]; !ok {
			return BillOfQuantities{}, fmt.Errorf("project %q not found", b.ProjectID)
		}
	}
	b.CreatedAt = tx.now
	b.UpdatedAt = tx.now
	tx.state.boqs[b.ID] = cloneBoQ(b)
	tx.recordChange(Change{Entity: domain.EntityBillOfQuantities, Action: domain.ActionCreate, After: cloneBoQ(b)})
	return cloneBoQ(b), nil
}

// UpdateBillOfQuantities mutates an existing bill-of-quantities record.
func (tx *transaction) UpdateBillOfQuantities(id string, mutator func(*BillOfQuantities) error) (BillOfQuantities, error) {
	current, ok := tx.state.boqs[id]
	if !ok {
		return BillOfQuantities{}, fmt.Errorf("bill of quantities %q not found", id)
	}
	before := cloneBoQ(current)
	if err := mutator(&current); err != nil {
		return BillOfQuantities{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.boqs[id] = cloneBoQ(current)
	tx.recordChange(Change{Entity: domain.EntityBillOfQuantities, Action: domain.ActionUpdate, Before: before, After: cloneBoQ(current)})
	return cloneBoQ(current), nil
}

// DeleteBillOfQuantities removes a bill of quantities and its document tree.
func (tx *transaction) DeleteBillOfQuantities(id string) error {
	current, ok := tx.state.boqs[id]
	if !ok {
		return fmt.Errorf("bill of quantities %q not found", id)
	}
	if doc, ok := tx.state.documents[id]; ok {
		delete(tx.state.documents, id)
		tx.recordChange(Change{Entity: domain.EntityDocument, Action: domain.ActionDelete, Before: cloneDocumentRecord(doc)})
	}
	delete(tx.state.boqs, id)
	tx.recordChange(Change{Entity: domain.EntityBillOfQuantities, Action: domain.ActionDelete, Before: cloneBoQ(current)})
	return nil
}

// PutDocument stores or replaces the document tree of a bill of quantities.
func (tx *transaction) PutDocument(r DocumentRecord) (DocumentRecord, error) {
	if r.BoQID == "" {
		return DocumentRecord{}, fmt.Errorf("document record requires a bill of quantities ID")
	}
	if _, ok := tx.state.boqs[r.BoQID]; !ok {
		return DocumentRecord{}, fmt.Errorf("bill of quantities %q not found", r.BoQID)
	}
	existing, exists := tx.state.documents[r.BoQID]
	if r.ID == "" {
		if exists {
			r.ID = existing.ID
		} else {
			r.ID = tx.store.newID()
		}
	}
	if exists {
		r.CreatedAt = existing.CreatedAt
	} else {
		r.CreatedAt = tx.now
	}
	r.UpdatedAt = tx.now
	tx.state.documents[r.BoQID] = cloneDocumentRecord(r)
	if exists {
		tx.recordChange(Change{Entity: domain.EntityDocument, Action: domain.ActionUpdate, Before: cloneDocumentRecord(existing), After: cloneDocumentRecord(r)})
	} else {
		tx.recordChange(Change{Entity: domain.EntityDocument, Action: domain.ActionCreate, After: cloneDocumentRecord(r)})
	}
	return cloneDocumentRecord(r), nil
}

// UpdateDocument mutates the stored document tree of a bill of quantities.
func (tx *transaction) UpdateDocument(boqID string, mutator func(*DocumentRecord) error) (DocumentRecord, error) {
	current, ok := tx.state.documents[boqID]
	if !ok {
		return DocumentRecord{}, fmt.Errorf("document for bill of quantities %q not found", boqID)
	}
	before := cloneDocumentRecord(current)
	working := cloneDocumentRecord(current)
	if err := mutator(&working); err != nil {
		return DocumentRecord{}, err
	}
	working.ID = current.ID
	working.BoQID = boqID
	working.CreatedAt = current.CreatedAt
	working.UpdatedAt = tx.now
	tx.state.documents[boqID] = cloneDocumentRecord(working)
	tx.recordChange(Change{Entity: domain.EntityDocument, Action: domain.ActionUpdate, Before: before, After: cloneDocumentRecord(working)})
	return cloneDocumentRecord(working), nil
}

// DeleteDocument removes the document tree of a bill of quantities.
func (tx *transaction) DeleteDocument(boqID string) error {
	current, ok := tx.state.documents[boqID]
	if !ok {
		return fmt.Errorf("document for bill of quantities %q not found", boqID)
	}
	delete(tx.state.documents, boqID)
	tx.recordChange(Change{Entity: domain.EntityDocument, Action: domain.ActionDelete, Before: cloneDocumentRecord(current)})
	return nil
}

// GetProject retrieves a project by ID.
func (s *Store) GetProject(id string) (Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.projects[id]
	if !ok {
		return Project{}, false
	}
	return cloneProject(p), true
}

// ListProjects returns all projects.
func (s *Store) ListProjects() []Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Project, 0, len(s.state.projects))
	for _, p := range s.state.projects {
		out = append(out, cloneProject(p))
	}
	return out
}

// GetBillOfQuantities retrieves a bill of quantities by ID.
func (s *Store) GetBillOfQuantities(id string) (BillOfQuantities, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.state.boqs[id]
	if !ok {
		return BillOfQuantities{}, false
	}
	return cloneBoQ(b), true
}

// ListBillsOfQuantities returns all bill-of-quantities records.
func (s *Store) ListBillsOfQuantities() []BillOfQuantities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]BillOfQuantities, 0, len(s.state.boqs))
	for _, b := range s.state.boqs {
		out = append(out, cloneBoQ(b))
	}
	return out
}

// GetDocument retrieves the document tree of a bill of quantities.
func (s *Store) GetDocument(boqID string) (DocumentRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state.documents[boqID]
	if !ok {
		return DocumentRecord{}, false
	}
	return cloneDocumentRecord(r), true
}

// ListDocuments returns all stored document trees.
func (s *Store) ListDocuments() []DocumentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DocumentRecord, 0, len(s.state.documents))
	for _, r := range s.state.documents {
		out = append(out, cloneDocumentRecord(r))
	}
	return out
}
