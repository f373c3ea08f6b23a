package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateProject(Project) (Project, error)
	UpdateProject(id string, mutator func(*Project) error) (Project, error)
	DeleteProject(id string) error
	CreateBillOfQuantities(BillOfQuantities) (BillOfQuantities, error)
	UpdateBillOfQuantities(id string, mutator func(*BillOfQuantities) error) (BillOfQuantities, error)
	DeleteBillOfQuantities(id string) error
	PutDocument(DocumentRecord) (DocumentRecord, error)
	UpdateDocument(boqID string, mutator func(*DocumentRecord) error) (DocumentRecord, error)
	DeleteDocument(boqID string) error
	FindProject(id string) (Project, bool)
	FindBillOfQuantities(id string) (BillOfQuantities, bool)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	ListProjects() []Project
	ListBillsOfQuantities() []BillOfQuantities
	ListDocuments() []DocumentRecord
	FindProject(id string) (Project, bool)
	FindBillOfQuantities(id string) (BillOfQuantities, bool)
	FindDocument(boqID string) (DocumentRecord, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetProject(id string) (Project, bool)
	ListProjects() []Project
	GetBillOfQuantities(id string) (BillOfQuantities, bool)
	ListBillsOfQuantities() []BillOfQuantities
	GetDocument(boqID string) (DocumentRecord, bool)
	ListDocuments() []DocumentRecord
}
