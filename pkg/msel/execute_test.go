package msel

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/cyroid/cyroid/pkg/events"
	"github.com/cyroid/cyroid/pkg/runtime"
	"github.com/cyroid/cyroid/pkg/types"
)

type fakeExecRuntime struct {
	runtime.Adapter
	exitCode int
	output   string
	execErr  error
	copied   []string
}

func (f *fakeExecRuntime) Exec(ctx context.Context, handle string, argv []string, opts runtime.ExecOptions) (int, string, error) {
	return f.exitCode, f.output, f.execErr
}

func (f *fakeExecRuntime) CopyTo(ctx context.Context, handle, src, dst string) error {
	f.copied = append(f.copied, dst)
	return nil
}

type fakeBlobStore struct {
	blobs map[string]string
}

func (f *fakeBlobStore) Get(ctx context.Context, digest string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewBufferString(f.blobs[digest])), nil
}

func newTestEngine(repo *fakeRepo, rt *fakeExecRuntime, blobs *fakeBlobStore) *Engine {
	broker := events.NewBroker()
	journal := events.NewJournal(repo, broker)
	return NewEngine(repo, rt, blobs, journal)
}

func seedInject(t *testing.T, repo *fakeRepo, rangeID string, actions []types.Action) (*types.MSEL, *types.Inject) {
	t.Helper()
	msel := &types.MSEL{ID: "msel-1", RangeID: rangeID, Name: "exercise"}
	if err := repo.CreateMSEL(msel); err != nil {
		t.Fatal(err)
	}
	inject := &types.Inject{ID: "inject-1", MSELID: msel.ID, Sequence: 1, Actions: actions, Status: types.InjectStatusPending}
	if err := repo.CreateInject(inject); err != nil {
		t.Fatal(err)
	}
	return msel, inject
}

func TestExecuteRunCommandSuccess(t *testing.T) {
	repo := newFakeRepo()
	repo.vms["vm-1"] = &types.VM{ID: "vm-1", RangeID: "range-1", Hostname: "web", RuntimeHandle: "ctr-1", Status: types.VMStatusRunning}
	_, inject := seedInject(t, repo, "range-1", []types.Action{
		{Kind: types.ActionKindRunCommand, TargetHostname: "web", Command: "echo hi"},
	})

	rt := &fakeExecRuntime{exitCode: 0, output: "hi"}
	engine := newTestEngine(repo, rt, &fakeBlobStore{})

	if err := engine.Execute(context.Background(), inject.ID); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	got, _ := repo.GetInject(inject.ID)
	if got.Status != types.InjectStatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if got.ExecutedAt.IsZero() {
		t.Error("expected ExecutedAt to be stamped")
	}
}

func TestExecutePartialFailureMarksFailed(t *testing.T) {
	repo := newFakeRepo()
	repo.vms["vm-1"] = &types.VM{ID: "vm-1", RangeID: "range-1", Hostname: "web", RuntimeHandle: "ctr-1", Status: types.VMStatusRunning}
	_, inject := seedInject(t, repo, "range-1", []types.Action{
		{Kind: types.ActionKindRunCommand, TargetHostname: "web", Command: "ok"},
		{Kind: types.ActionKindRunCommand, TargetHostname: "missing-host", Command: "ignored"},
	})

	rt := &fakeExecRuntime{exitCode: 0, output: ""}
	engine := newTestEngine(repo, rt, &fakeBlobStore{})

	if err := engine.Execute(context.Background(), inject.ID); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	got, _ := repo.GetInject(inject.ID)
	if got.Status != types.InjectStatusFailed {
		t.Errorf("status = %s, want failed (one action targets an unknown hostname)", got.Status)
	}
	if got.ExecutionLog == "" {
		t.Error("expected a non-empty execution log")
	}
}

func TestExecutePlaceFileCopiesArtifactBytes(t *testing.T) {
	repo := newFakeRepo()
	repo.vms["vm-1"] = &types.VM{ID: "vm-1", RangeID: "range-1", Hostname: "db", RuntimeHandle: "ctr-1", Status: types.VMStatusRunning}
	repo.artifacts = []*types.Artifact{{ID: "art-1", Name: "a.exe", SHA256: "deadbeef"}}
	_, inject := seedInject(t, repo, "range-1", []types.Action{
		{Kind: types.ActionKindPlaceFile, Filename: "a.exe", TargetHostname: "db", TargetPath: "/tmp/a.exe"},
	})

	rt := &fakeExecRuntime{}
	blobs := &fakeBlobStore{blobs: map[string]string{"deadbeef": "MZ..."}}
	engine := newTestEngine(repo, rt, blobs)

	if err := engine.Execute(context.Background(), inject.ID); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	got, _ := repo.GetInject(inject.ID)
	if got.Status != types.InjectStatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if len(rt.copied) != 1 || rt.copied[0] != "/tmp/a.exe" {
		t.Errorf("copied = %v, want one copy to /tmp/a.exe", rt.copied)
	}
}

func TestExecuteRejectsNonPendingInject(t *testing.T) {
	repo := newFakeRepo()
	_, inject := seedInject(t, repo, "range-1", nil)
	inject.Status = types.InjectStatusCompleted
	repo.UpdateInject(inject)

	engine := newTestEngine(repo, &fakeExecRuntime{}, &fakeBlobStore{})
	if err := engine.Execute(context.Background(), inject.ID); err == nil {
		t.Error("expected an error executing a non-pending inject")
	}
}
