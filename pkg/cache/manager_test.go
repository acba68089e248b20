package cache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cyroid/cyroid/pkg/runtime"
)

type fakeAdapter struct {
	pullCh      chan runtime.PullProgress
	imageExists bool
}

func (f *fakeAdapter) CreateNetwork(ctx context.Context, spec runtime.NetworkSpec) (string, error) {
	return "", nil
}
func (f *fakeAdapter) DeleteNetwork(ctx context.Context, handle string) error { return nil }
func (f *fakeAdapter) CreateContainer(ctx context.Context, spec runtime.ContainerSpec) (string, error) {
	return "", nil
}
func (f *fakeAdapter) Start(ctx context.Context, handle string) error   { return nil }
func (f *fakeAdapter) Stop(ctx context.Context, handle string, grace time.Duration) error {
	return nil
}
func (f *fakeAdapter) Restart(ctx context.Context, handle string, grace time.Duration) error {
	return nil
}
func (f *fakeAdapter) Remove(ctx context.Context, handle string, force bool) error { return nil }
func (f *fakeAdapter) Exec(ctx context.Context, handle string, argv []string, opts runtime.ExecOptions) (int, string, error) {
	return 0, "", nil
}
func (f *fakeAdapter) ExecInteractive(ctx context.Context, handle string, argv []string) (runtime.PTYStream, error) {
	return nil, nil
}
func (f *fakeAdapter) CopyTo(ctx context.Context, handle, src, dst string) error { return nil }
func (f *fakeAdapter) Commit(ctx context.Context, handle, repoTag string) (string, error) {
	return "", nil
}
func (f *fakeAdapter) PullStream(ctx context.Context, image string) (<-chan runtime.PullProgress, error) {
	return f.pullCh, nil
}
func (f *fakeAdapter) ImageExists(ctx context.Context, image string) (bool, error) {
	return f.imageExists, nil
}
func (f *fakeAdapter) Stats(ctx context.Context, handle string) (runtime.ContainerStats, error) {
	return runtime.ContainerStats{}, nil
}
func (f *fakeAdapter) ContainerIP(ctx context.Context, handle, networkHandle string) (string, error) {
	return "", nil
}
func (f *fakeAdapter) ListContainers(ctx context.Context, labelFilter map[string]string) ([]string, error) {
	return nil, nil
}
func (f *fakeAdapter) ListNetworks(ctx context.Context, labelFilter map[string]string) ([]string, error) {
	return nil, nil
}
func (f *fakeAdapter) Close() error { return nil }

var _ runtime.Adapter = (*fakeAdapter)(nil)

func TestStartPullRejectsDuplicate(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	adapter := &fakeAdapter{pullCh: make(chan runtime.PullProgress)}
	ctx := context.Background()

	if _, err := mgr.StartPull(ctx, adapter, "alpine:latest"); err != nil {
		t.Fatalf("StartPull() error = %v", err)
	}

	if _, err := mgr.StartPull(ctx, adapter, "alpine:latest"); err == nil {
		t.Error("expected Conflict error on duplicate in-flight pull")
	}

	close(adapter.pullCh)
}

func TestStartPullRejectsAlreadyPresent(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	adapter := &fakeAdapter{pullCh: make(chan runtime.PullProgress), imageExists: true}

	if _, err := mgr.StartPull(context.Background(), adapter, "alpine:latest"); err == nil {
		t.Error("expected Conflict error for an image already present in the image store")
	}
}

func TestStartPullCompletes(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	adapter := &fakeAdapter{pullCh: make(chan runtime.PullProgress, 2)}
	adapter.pullCh <- runtime.PullProgress{LayerID: "layer1", BytesCurrent: 50, BytesTotal: 100, Status: runtime.PullStatusPulling}
	adapter.pullCh <- runtime.PullProgress{LayerID: "layer1", BytesCurrent: 100, BytesTotal: 100, Status: runtime.PullStatusComplete}
	close(adapter.pullCh)

	key, err := mgr.StartPull(context.Background(), adapter, "alpine:latest")
	if err != nil {
		t.Fatalf("StartPull() error = %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		status, ok := mgr.Status(key)
		if ok && status.State == StateCompleted {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("pull did not reach StateCompleted in time")
}

func TestStartDownloadAtomicity(t *testing.T) {
	content := []byte("fake-iso-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer srv.Close()

	root := t.TempDir()
	mgr, err := NewManager(root)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	key, err := mgr.StartDownload(context.Background(), DownloadKindLinux, "ubuntu", srv.URL)
	if err != nil {
		t.Fatalf("StartDownload() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	var finalStatus Status
	for time.Now().Before(deadline) {
		status, ok := mgr.Status(key)
		if ok && (status.State == StateCompleted || status.State == StateFailed) {
			finalStatus = status
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if finalStatus.State != StateCompleted {
		t.Fatalf("download finished in state %v, error %q", finalStatus.State, finalStatus.Error)
	}

	expectedPath := mgr.linuxISOPath("ubuntu")
	data, err := os.ReadFile(expectedPath)
	if err != nil {
		t.Fatalf("read final file: %v", err)
	}
	if string(data) != string(content) {
		t.Errorf("final file contents = %q, want %q", data, content)
	}

	if _, err := os.Stat(expectedPath + ".part"); !os.IsNotExist(err) {
		t.Error("temp .part file should not survive a completed download")
	}
}

func TestStartDownloadRejectsAlreadyPresent(t *testing.T) {
	root := t.TempDir()
	mgr, err := NewManager(root)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	existing := mgr.linuxISOPath("ubuntu")
	if err := os.WriteFile(existing, []byte("already here"), 0644); err != nil {
		t.Fatalf("seed existing ISO: %v", err)
	}

	if _, err := mgr.StartDownload(context.Background(), DownloadKindLinux, "ubuntu", "http://example.invalid/ubuntu.iso"); err == nil {
		t.Error("expected Conflict error for an ISO already present at the final path")
	}
}

func TestCancelDownloadLeavesNoFinalFile(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, _ := w.(http.Flusher)
		for i := 0; i < 5; i++ {
			w.Write(make([]byte, 1024))
			if flusher != nil {
				flusher.Flush()
			}
		}
		<-block
	}))
	defer srv.Close()

	root := t.TempDir()
	mgr, err := NewManager(root)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	key, err := mgr.StartDownload(context.Background(), DownloadKindLinux, "debian", srv.URL)
	if err != nil {
		t.Fatalf("StartDownload() error = %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if err := mgr.Cancel(key); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	close(block)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status, ok := mgr.Status(key)
		if ok && status.State == StateCancelled {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	finalPath := mgr.linuxISOPath("debian")
	if _, err := os.Stat(finalPath); !os.IsNotExist(err) {
		t.Error("cancelled download should not leave a final file")
	}
	if _, err := os.Stat(finalPath + ".part"); !os.IsNotExist(err) {
		t.Error("cancelled download should clean up its temp file")
	}
}

func TestNewManagerCreatesLayout(t *testing.T) {
	root := t.TempDir()
	if _, err := NewManager(root); err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	for _, sub := range []string{"windows-isos", "linux-isos", "custom-isos"} {
		if _, err := os.Stat(filepath.Join(root, sub)); err != nil {
			t.Errorf("expected subdirectory %s to exist: %v", sub, err)
		}
	}
}

