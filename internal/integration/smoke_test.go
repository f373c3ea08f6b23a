package integration

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"boqcore/internal/blob"
	"boqcore/internal/core"
	"boqcore/internal/onlv"
	"boqcore/pkg/domain"
)

// TestIntegrationSmoke exercises a minimal end-to-end cycle for each
// supported in-process storage and blob adapter. It intentionally keeps
// scope tiny so it can act as a fast CI health check.
func TestIntegrationSmoke(t *testing.T) {
	ctx := context.Background()

	storeVariants := []struct {
		name string
		open func(t *testing.T) core.PersistentStore
	}{
		{
			name: "memory-store",
			open: func(_ *testing.T) core.PersistentStore {
				return core.NewMemoryStore(core.NewDefaultRulesEngine())
			},
		},
		{
			name: "sqlite-store",
			open: func(t *testing.T) core.PersistentStore {
				path := filepath.Join(t.TempDir(), "boq.db")
				s, err := core.NewSQLiteStore(path, core.NewDefaultRulesEngine())
				if err != nil {
					t.Fatalf("new sqlite store: %v", err)
				}
				t.Cleanup(func() { _ = s.Close() })
				return s
			},
		},
	}

	blobVariants := []struct {
		name string
		open func(t *testing.T) blob.Store
	}{
		{
			name: "memory-blob",
			open: func(_ *testing.T) blob.Store { return blob.NewMemory() },
		},
		{
			name: "fs-blob",
			open: func(t *testing.T) blob.Store {
				s, err := blob.NewFilesystem(t.TempDir())
				if err != nil {
					t.Fatalf("new fs blob store: %v", err)
				}
				return s
			},
		},
		{
			name: "s3-blob",
			open: func(_ *testing.T) blob.Store { return blob.NewMockS3ForTests() },
		},
	}

	for _, sv := range storeVariants {
		for _, bv := range blobVariants {
			t.Run(sv.name+"/"+bv.name, func(t *testing.T) {
				svc := core.NewService(sv.open(t))
				artifacts := bv.open(t)

				project, _, err := svc.CreateProject(ctx, core.Project{Name: "Smoke Project"})
				if err != nil {
					t.Fatalf("create project: %v", err)
				}
				boq, _, err := svc.CreateBillOfQuantities(ctx, core.BillOfQuantities{
					ProjectID:        project.ID,
					Name:             "Smoke BoQ",
					OriginalFilename: "smoke.onlv",
					LVCode:           "LB-HB022",
					WorkType:         domain.WorkTypeBuilding,
				})
				if err != nil {
					t.Fatalf("create boq: %v", err)
				}

				doc := domain.Document{Groups: []domain.Group{{
					Nr:    "01",
					Title: "Shell",
					SubGroups: []domain.SubGroup{{
						Nr:    "02",
						Title: "Walls",
						Items: []domain.Item{{Nr: "01", Kind: domain.ItemUndivided, Properties: domain.Properties{Keyword: "Brickwork"}}},
					}},
				}}}
				if _, _, err := svc.PutDocument(ctx, core.DocumentRecord{BoQID: boq.ID, Document: doc}); err != nil {
					t.Fatalf("put document: %v", err)
				}

				next, err := svc.ProposeIdentifier(ctx, boq.ID, "01", "02")
				if err != nil {
					t.Fatalf("propose identifier: %v", err)
				}
				if next.Format() != "01.02.02" {
					t.Fatalf("expected 01.02.02, got %s", next.Format())
				}
				if _, _, err := svc.InsertItem(ctx, boq.ID, "01", "02", core.Item{Nr: next.BaseNr, Kind: domain.ItemUndivided, Properties: core.Properties{Keyword: "Plaster"}}); err != nil {
					t.Fatalf("insert item: %v", err)
				}

				probe, err := svc.ProbeIdentifier(ctx, boq.ID, "010202")
				if err != nil {
					t.Fatalf("probe identifier: %v", err)
				}
				if !probe.Valid || !probe.Taken {
					t.Fatalf("expected taken identifier, got %+v", probe)
				}

				info, err := svc.ExportDocument(ctx, boq.ID, artifacts)
				if err != nil {
					t.Fatalf("export document: %v", err)
				}
				wantKey := "exports/" + boq.ID + "/smoke.onlv"
				if info.Key != wantKey {
					t.Fatalf("expected key %s, got %s", wantKey, info.Key)
				}

				_, rc, err := artifacts.Get(ctx, wantKey)
				if err != nil {
					t.Fatalf("read export: %v", err)
				}
				payload, err := io.ReadAll(rc)
				_ = rc.Close()
				if err != nil {
					t.Fatalf("read payload: %v", err)
				}
				if !strings.Contains(string(payload), "Brickwork") {
					t.Fatalf("unexpected export payload: %s", payload)
				}

				raw, err := onlv.DecodeBytes(payload)
				if err != nil {
					t.Fatalf("decode export: %v", err)
				}
				round, err := onlv.ToDocument(raw)
				if err != nil {
					t.Fatalf("interpret export: %v", err)
				}
				sg, ok := round.FindSubGroup("01", "02")
				if !ok || len(sg.Items) != 2 {
					t.Fatalf("unexpected round-tripped sub-group: %+v", sg)
				}
			})
		}
	}
}
