package msel

import (
	"testing"

	"github.com/cyroid/cyroid/pkg/cyerr"
	"github.com/cyroid/cyroid/pkg/types"
)

func TestManagerImportCreatesMSELAndInjects(t *testing.T) {
	repo := newFakeRepo()
	mgr := NewManager(repo)

	doc := "## T+0:00 - Setup\n**Actions:**\n- Run command on web: echo hi\n"
	msel, err := mgr.Import("range-1", "exercise-1", doc)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	injects, err := repo.ListInjectsByMSEL(msel.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(injects) != 1 {
		t.Fatalf("len(injects) = %d, want 1", len(injects))
	}
	if injects[0].Status != types.InjectStatusPending {
		t.Errorf("inject status = %s, want pending", injects[0].Status)
	}
}

func TestManagerImportReplacesPriorMSEL(t *testing.T) {
	repo := newFakeRepo()
	mgr := NewManager(repo)

	first, err := mgr.Import("range-1", "v1", "## T+0:00 - A\n**Actions:**\n- Run command on web: a\n")
	if err != nil {
		t.Fatal(err)
	}

	second, err := mgr.Import("range-1", "v2", "## T+0:00 - B\n**Actions:**\n- Run command on web: b\n## T+0:05 - C\n**Actions:**\n- Run command on web: c\n")
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if second.ID == first.ID {
		t.Error("expected a new MSEL id on replace")
	}

	if _, err := repo.GetMSEL(first.ID); !cyerr.Is(err, cyerr.KindNotFound) {
		t.Errorf("expected prior MSEL to be deleted, got err = %v", err)
	}

	oldInjects, _ := repo.ListInjectsByMSEL(first.ID)
	if len(oldInjects) != 0 {
		t.Errorf("expected prior injects deleted, found %d", len(oldInjects))
	}

	newInjects, _ := repo.ListInjectsByMSEL(second.ID)
	if len(newInjects) != 2 {
		t.Errorf("len(newInjects) = %d, want 2", len(newInjects))
	}
}

func TestManagerSkipOnlyPending(t *testing.T) {
	repo := newFakeRepo()
	mgr := NewManager(repo)

	msel, err := mgr.Import("range-1", "v1", "## T+0:00 - A\n**Actions:**\n- Run command on web: a\n")
	if err != nil {
		t.Fatal(err)
	}
	injects, _ := repo.ListInjectsByMSEL(msel.ID)
	injectID := injects[0].ID

	if err := mgr.Skip(injectID); err != nil {
		t.Fatalf("Skip() error = %v", err)
	}
	got, _ := repo.GetInject(injectID)
	if got.Status != types.InjectStatusSkipped {
		t.Errorf("status = %s, want skipped", got.Status)
	}

	if err := mgr.Skip(injectID); !cyerr.Is(err, cyerr.KindValidation) {
		t.Errorf("Skip() on non-pending error = %v, want Validation", err)
	}
}
