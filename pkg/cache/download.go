package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/cyroid/cyroid/pkg/cyerr"
)

// chunkSize is the read granularity for downloads; cancellation is
// checked between chunks rather than mid-chunk so a cancel request is
// honored within one chunk's worth of latency.
const chunkSize = 1 << 20 // 1 MiB

var filenameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func sanitizeFilename(name string) string {
	return strings.Trim(filenameSanitizer.ReplaceAllString(name, "-"), "-")
}

// DownloadKind selects the destination naming scheme for StartDownload.
type DownloadKind string

const (
	DownloadKindWindows DownloadKind = "windows"
	DownloadKindLinux   DownloadKind = "linux"
	DownloadKindCustom  DownloadKind = "custom"
)

// customISOMetadata is one entry in a custom-isos/metadata.json sidecar.
type customISOMetadata struct {
	Name                 string    `json:"name"`
	URL                  string    `json:"url"`
	DownloadedAt         time.Time `json:"downloaded_at"`
	ExtractedFromArchive bool      `json:"extracted_from_archive"`
}

// StartDownload begins a cancellable chunked HTTP download of url into
// the cache layout position determined by kind and versionOrName. The
// file is only visible at its final path once the download (and any
// archive extraction) completes successfully; a cancelled or failed
// download leaves no partial file at the final path.
func (m *Manager) StartDownload(ctx context.Context, kind DownloadKind, versionOrName, url string) (string, error) {
	var finalPath string
	switch kind {
	case DownloadKindWindows:
		finalPath = m.windowsISOPath(versionOrName)
	case DownloadKindLinux:
		finalPath = m.linuxISOPath(versionOrName)
	case DownloadKindCustom:
		finalPath = m.customISOPath(versionOrName)
	default:
		return "", cyerr.Validation("unknown download kind %q", kind)
	}

	if _, err := os.Stat(finalPath); err == nil {
		return "", cyerr.Conflict("%s is already present", finalPath)
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("stat %s: %w", finalPath, err)
	}

	key := finalPath
	entry, err := m.register(key, "download")
	if err != nil {
		return "", err
	}
	entry.State = StateDownloading

	go m.runDownload(ctx, entry, url, finalPath, kind, versionOrName)

	return key, nil
}

func (m *Manager) runDownload(ctx context.Context, entry *Entry, url, finalPath string, kind DownloadKind, versionOrName string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		m.finish(entry, StateFailed, fmt.Errorf("build request: %w", err))
		return
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.finish(entry, StateFailed, fmt.Errorf("download %s: %w", url, err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		m.finish(entry, StateFailed, fmt.Errorf("download %s: unexpected status %s", url, resp.Status))
		return
	}

	entry.BytesTotal = resp.ContentLength

	tmpPath := finalPath + ".part"
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		m.finish(entry, StateFailed, fmt.Errorf("create temp file: %w", err))
		return
	}

	buf := make([]byte, chunkSize)
	var written int64
	for {
		if entry.isCancelled() {
			tmpFile.Close()
			os.Remove(tmpPath)
			m.finish(entry, StateCancelled, nil)
			return
		}

		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := tmpFile.Write(buf[:n]); werr != nil {
				tmpFile.Close()
				os.Remove(tmpPath)
				m.finish(entry, StateFailed, fmt.Errorf("write chunk: %w", werr))
				return
			}
			written += int64(n)
			entry.BytesDone = written
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
			m.finish(entry, StateFailed, fmt.Errorf("read response body: %w", rerr))
			return
		}
	}
	tmpFile.Close()

	if entry.isCancelled() {
		os.Remove(tmpPath)
		m.finish(entry, StateCancelled, nil)
		return
	}

	extractedFromArchive := false
	resultPath := tmpPath
	if ext := archiveExtension(url); ext != "" {
		entry.State = StateExtracting
		scratchDir, err := os.MkdirTemp(filepath.Dir(finalPath), "extract-*")
		if err != nil {
			os.Remove(tmpPath)
			m.finish(entry, StateFailed, fmt.Errorf("create scratch directory: %w", err))
			return
		}
		defer os.RemoveAll(scratchDir)

		extractedPath, err := extractLargestISO(tmpPath, ext, scratchDir, m.journalArchiveWarning)
		os.Remove(tmpPath)
		if err != nil {
			m.finish(entry, StateFailed, fmt.Errorf("extract archive: %w", err))
			return
		}
		resultPath = extractedPath
		extractedFromArchive = true
	}

	if err := os.Rename(resultPath, finalPath); err != nil {
		os.Remove(resultPath)
		m.finish(entry, StateFailed, fmt.Errorf("rename to final path: %w", err))
		return
	}

	if kind == DownloadKindCustom {
		if err := writeCustomISOMetadata(filepath.Dir(finalPath), filepath.Base(finalPath), versionOrName, url, extractedFromArchive); err != nil {
			m.finish(entry, StateFailed, fmt.Errorf("write metadata sidecar: %w", err))
			return
		}
	}

	entry.FinalPath = finalPath
	entry.BytesDone = entry.BytesTotal
	m.finish(entry, StateCompleted, nil)
}

// writeCustomISOMetadata merges a new entry into custom-isos/metadata.json,
// which maps every custom ISO's filename to its provenance.
func writeCustomISOMetadata(dir, filename, name, url string, extracted bool) error {
	path := filepath.Join(dir, "metadata.json")

	entries := map[string]customISOMetadata{}
	if data, err := os.ReadFile(path); err == nil {
		json.Unmarshal(data, &entries)
	}

	entries[filename] = customISOMetadata{
		Name:                 name,
		URL:                  url,
		DownloadedAt:         time.Now(),
		ExtractedFromArchive: extracted,
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
