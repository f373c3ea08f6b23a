package memory

import (
	"context"
	"testing"

	"boqcore/pkg/domain"
)

func TestRunInTransactionCommitsState(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	var boqID string
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		project, err := tx.CreateProject(Project{Name: "Bridge"})
		if err != nil {
			return err
		}
		boq, err := tx.CreateBillOfQuantities(BillOfQuantities{ProjectID: project.ID, Name: "Tender A"})
		if err != nil {
			return err
		}
		boqID = boq.ID
		return nil
	}); err != nil {
		t.Fatalf("transaction: %v", err)
	}

	boq, ok := store.GetBillOfQuantities(boqID)
	if !ok {
		t.Fatal("bill of quantities not committed")
	}
	if boq.Name != "Tender A" {
		t.Fatalf("name = %q", boq.Name)
	}
	if boq.CreatedAt.IsZero() || boq.UpdatedAt.IsZero() {
		t.Fatal("timestamps not stamped")
	}
}

func TestRunInTransactionRollsBackOnError(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	wantErr := func(tx Transaction) error {
		if _, err := tx.CreateProject(Project{Name: "Doomed"}); err != nil {
			return err
		}
		return context.Canceled
	}
	if _, err := store.RunInTransaction(ctx, wantErr); err == nil {
		t.Fatal("expected error")
	}
	if got := len(store.ListProjects()); got != 0 {
		t.Fatalf("state leaked from failed transaction, projects = %d", got)
	}
}

type blockEverything struct{}

func (blockEverything) Name() string { return "block_everything" }

func (blockEverything) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	if len(changes) == 0 {
		return domain.Result{}, nil
	}
	return domain.Result{Violations: []domain.Violation{{Rule: "block_everything", Severity: domain.SeverityBlock}}}, nil
}

func TestBlockingViolationAbortsCommit(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(blockEverything{})
	store := NewStore(engine)

	res, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateProject(Project{Name: "Blocked"})
		return err
	})
	if err == nil {
		t.Fatal("expected rule violation error")
	}
	if _, ok := err.(domain.RuleViolationError); !ok {
		t.Fatalf("error type = %T", err)
	}
	if !res.HasBlocking() {
		t.Fatal("result should carry the blocking violation")
	}
	if got := len(store.ListProjects()); got != 0 {
		t.Fatalf("blocked transaction committed, projects = %d", got)
	}
}

func TestDeleteProjectGuardsReferences(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	var projectID string
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		project, err := tx.CreateProject(Project{Name: "Guarded"})
		if err != nil {
			return err
		}
		projectID = project.ID
		_, err = tx.CreateBillOfQuantities(BillOfQuantities{ProjectID: project.ID, Name: "Tender"})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteProject(projectID)
	}); err == nil {
		t.Fatal("delete of referenced project should fail")
	}
	if _, ok := store.GetProject(projectID); !ok {
		t.Fatal("project should survive failed delete")
	}
}

func TestPutDocumentCreateThenUpdate(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	var boqID string
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		boq, err := tx.CreateBillOfQuantities(BillOfQuantities{Name: "Tender"})
		if err != nil {
			return err
		}
		boqID = boq.ID
		_, err = tx.PutDocument(DocumentRecord{
			BoQID:    boq.ID,
			Document: domain.AddGroup(domain.Document{}, "01", "Earthworks"),
		})
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	first, ok := store.GetDocument(boqID)
	if !ok {
		t.Fatal("document not stored")
	}

	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateDocument(boqID, func(r *DocumentRecord) error {
			r.Document = domain.AddGroup(r.Document, "02", "Concrete")
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	second, _ := store.GetDocument(boqID)
	if second.ID != first.ID {
		t.Fatalf("document identity changed on update: %s -> %s", first.ID, second.ID)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatal("created timestamp changed on update")
	}
	if got := len(second.Document.Groups); got != 2 {
		t.Fatalf("groups = %d, want 2", got)
	}
}

func TestPutDocumentRequiresExistingBoQ(t *testing.T) {
	store := NewStore(nil)
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.PutDocument(DocumentRecord{BoQID: "missing"})
		return err
	}); err == nil {
		t.Fatal("document without owner should fail")
	}
}

func TestDeleteBillOfQuantitiesCascadesDocument(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	var boqID string
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		boq, err := tx.CreateBillOfQuantities(BillOfQuantities{Name: "Tender"})
		if err != nil {
			return err
		}
		boqID = boq.ID
		_, err = tx.PutDocument(DocumentRecord{BoQID: boq.ID})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteBillOfQuantities(boqID)
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := store.GetDocument(boqID); ok {
		t.Fatal("document should be removed with its bill of quantities")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	store := NewStore(nil)
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateProject(Project{Name: "Exported"})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	snapshot := store.ExportState()
	restored := NewStore(nil)
	restored.ImportState(snapshot)
	if got := len(restored.ListProjects()); got != 1 {
		t.Fatalf("restored projects = %d, want 1", got)
	}
}

func TestImportStateMigratesNilBuckets(t *testing.T) {
	store := NewStore(nil)
	store.ImportState(Snapshot{})
	if store.ListProjects() == nil || len(store.ListProjects()) != 0 {
		t.Fatal("nil bucket import should yield empty state")
	}
}

func TestViewSeesIsolatedClone(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		boq, err := tx.CreateBillOfQuantities(BillOfQuantities{Name: "Tender"})
		if err != nil {
			return err
		}
		_, err = tx.PutDocument(DocumentRecord{
			BoQID:    boq.ID,
			Document: domain.AddGroup(domain.Document{}, "01", "Earthworks"),
		})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := store.View(ctx, func(view TransactionView) error {
		docs := view.ListDocuments()
		if len(docs) != 1 {
			t.Fatalf("documents = %d", len(docs))
		}
		docs[0].Document.Groups[0].Title = "mutated"
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}

	for _, r := range store.ListDocuments() {
		if r.Document.Groups[0].Title != "Earthworks" {
			t.Fatal("view mutation leaked into store state")
		}
	}
}
