package cache

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/nwaples/rardecode"
	"github.com/ulikunitz/xz"
)

// archiveExtensions lists every extension StartDownload's extraction
// policy recognizes, longest suffix first so ".tar.gz" matches before
// the bare ".gz" fallback.
var archiveExtensions = []string{
	".tar.gz", ".tgz", ".tar.bz2", ".tbz2", ".tar.xz", ".txz",
	".zip", ".7z", ".rar", ".tar",
	".gz", ".bz2", ".xz", ".lzma",
}

// archiveExtension returns the recognized archive extension of url, or
// "" if it names a plain file (most commonly a bare .iso).
func archiveExtension(url string) string {
	lower := strings.ToLower(url)
	for _, ext := range archiveExtensions {
		if strings.HasSuffix(lower, ext) {
			return ext
		}
	}
	return ""
}

// archiveWarn reports a non-fatal condition encountered while picking the
// winning ISO out of an archive (e.g. a smaller candidate being discarded).
// The cache manager is process-wide and range-agnostic, so these warnings
// go to the structured logger rather than the per-range event journal.
type archiveWarn func(message string)

// extractLargestISO extracts srcPath (an archive of the given extension)
// into destDir and returns the path of the single resulting ISO: when an
// archive contains several, the largest wins and the rest are discarded,
// per the cache's archive extraction policy. warn is called once per
// discarded candidate.
func extractLargestISO(srcPath, ext, destDir string, warn archiveWarn) (string, error) {
	switch ext {
	case ".zip":
		return extractZip(srcPath, destDir, warn)
	case ".7z":
		return extract7z(srcPath, destDir, warn)
	case ".rar":
		return extractRar(srcPath, destDir, warn)
	case ".tar":
		f, err := os.Open(srcPath)
		if err != nil {
			return "", err
		}
		defer f.Close()
		return extractTar(tar.NewReader(f), destDir, warn)
	case ".tar.gz", ".tgz":
		return extractTarCompressed(srcPath, destDir, gzip.NewReader, warn)
	case ".tar.bz2", ".tbz2":
		return extractTarCompressed(srcPath, destDir, func(r io.Reader) (io.Reader, error) {
			return bzip2.NewReader(r), nil
		}, warn)
	case ".tar.xz", ".txz":
		return extractTarCompressed(srcPath, destDir, func(r io.Reader) (io.Reader, error) {
			return xz.NewReader(r)
		}, warn)
	case ".gz":
		return decompressSingle(srcPath, destDir, gzip.NewReader)
	case ".bz2":
		return decompressSingle(srcPath, destDir, func(r io.Reader) (io.Reader, error) {
			return bzip2.NewReader(r), nil
		})
	case ".xz", ".lzma":
		return decompressSingle(srcPath, destDir, func(r io.Reader) (io.Reader, error) {
			return xz.NewReader(r)
		})
	default:
		return "", fmt.Errorf("unsupported archive extension %q", ext)
	}
}

// keepLargest copies src (an open reader for one archive entry named
// name) into destDir if it's larger than the previously kept winner,
// removing the loser. Returns the path now considered the winner. warn
// is called when a second (or later) ISO candidate is found, since that
// means the archive is ambiguous about which ISO it meant to ship.
func keepLargest(r io.Reader, size int64, name, destDir, winnerPath string, winnerSize int64, warn archiveWarn) (string, int64, error) {
	if !strings.HasSuffix(strings.ToLower(name), ".iso") {
		io.Copy(io.Discard, r)
		return winnerPath, winnerSize, nil
	}

	out, err := os.CreateTemp(destDir, "candidate-*.iso")
	if err != nil {
		return winnerPath, winnerSize, err
	}
	candidate := out.Name()
	n, err := io.Copy(out, r)
	out.Close()
	if err != nil {
		os.Remove(candidate)
		return winnerPath, winnerSize, err
	}

	if winnerPath != "" && warn != nil {
		warn(fmt.Sprintf("archive contains multiple ISO candidates; keeping the larger of %q (%d bytes) and %q (%d bytes)",
			name, n, filepath.Base(winnerPath), winnerSize))
	}

	if n <= winnerSize {
		os.Remove(candidate)
		return winnerPath, winnerSize, nil
	}
	if winnerPath != "" {
		os.Remove(winnerPath)
	}
	return candidate, n, nil
}

func extractZip(srcPath, destDir string, warn archiveWarn) (string, error) {
	r, err := zip.OpenReader(srcPath)
	if err != nil {
		return "", err
	}
	defer r.Close()

	var winnerPath string
	var winnerSize int64
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		winnerPath, winnerSize, err = keepLargest(rc, int64(f.UncompressedSize64), f.Name, destDir, winnerPath, winnerSize, warn)
		rc.Close()
		if err != nil {
			return "", err
		}
	}
	if winnerPath == "" {
		return "", fmt.Errorf("no .iso file found in archive")
	}
	return winnerPath, nil
}

func extract7z(srcPath, destDir string, warn archiveWarn) (string, error) {
	r, err := sevenzip.OpenReader(srcPath)
	if err != nil {
		return "", err
	}
	defer r.Close()

	var winnerPath string
	var winnerSize int64
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		winnerPath, winnerSize, err = keepLargest(rc, int64(f.FileInfo().Size()), f.Name, destDir, winnerPath, winnerSize, warn)
		rc.Close()
		if err != nil {
			return "", err
		}
	}
	if winnerPath == "" {
		return "", fmt.Errorf("no .iso file found in archive")
	}
	return winnerPath, nil
}

func extractRar(srcPath, destDir string, warn archiveWarn) (string, error) {
	r, err := rardecode.OpenReader(srcPath, "")
	if err != nil {
		return "", err
	}
	defer r.Close()

	var winnerPath string
	var winnerSize int64
	for {
		hdr, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if hdr.IsDir {
			continue
		}
		winnerPath, winnerSize, err = keepLargest(r, hdr.UnPackedSize, hdr.Name, destDir, winnerPath, winnerSize, warn)
		if err != nil {
			return "", err
		}
	}
	if winnerPath == "" {
		return "", fmt.Errorf("no .iso file found in archive")
	}
	return winnerPath, nil
}

func extractTarCompressed(srcPath, destDir string, newReader func(io.Reader) (io.Reader, error), warn archiveWarn) (string, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	decompressed, err := newReader(f)
	if err != nil {
		return "", err
	}
	return extractTar(tar.NewReader(decompressed), destDir, warn)
}

func extractTar(tr *tar.Reader, destDir string, warn archiveWarn) (string, error) {
	var winnerPath string
	var winnerSize int64
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		winnerPath, winnerSize, err = keepLargest(tr, hdr.Size, hdr.Name, destDir, winnerPath, winnerSize, warn)
		if err != nil {
			return "", err
		}
	}
	if winnerPath == "" {
		return "", fmt.Errorf("no .iso file found in archive")
	}
	return winnerPath, nil
}

// decompressSingle handles a bare single-file compressed download
// (e.g. a plain "distro.iso.xz") where the decompressed stream is the
// ISO itself, not a container of multiple files.
func decompressSingle(srcPath, destDir string, newReader func(io.Reader) (io.Reader, error)) (string, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	r, err := newReader(f)
	if err != nil {
		return "", err
	}

	out := filepath.Join(destDir, "decompressed.iso")
	outFile, err := os.Create(out)
	if err != nil {
		return "", err
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, r); err != nil {
		os.Remove(out)
		return "", err
	}
	return out, nil
}
