package app

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/naz-az/petpilot-local/internal/storage"
)

const (
	archiveFormatVersion = 1

	archiveManifestFileName = "manifest.json"

	// maxArchiveFileSize caps archive reads to 256 MiB to prevent memory
	// exhaustion from crafted archives.
	maxArchiveFileSize = 256 << 20

	// maxTarEntrySize caps individual tar entries during extraction.
	maxTarEntrySize = 128 << 20
)

var ErrValidation = errors.New("app: validation")

// Manifest describes an exported snapshot archive: one entry per table dump
// with its checksum and row count.
type Manifest struct {
	Version    int                     `json:"version"`
	SnapshotID string                  `json:"snapshot_id"`
	CreatedAt  string                  `json:"created_at"`
	Files      map[string]ManifestFile `json:"files"`
}

type ManifestFile struct {
	SHA256    string `json:"sha256"`
	SizeBytes int64  `json:"size_bytes"`
	Rows      int    `json:"rows"`
}

type ExportRequest struct {
	OutputPath string
	Overwrite  bool
}

type ImportRequest struct {
	InputPath string
}

// BackupService exports store snapshots to tar.gz archives on disk and
// imports them back, verifying per-table checksums before any row is written.
type BackupService struct {
	store *storage.Store
}

func NewBackupService(store *storage.Store) *BackupService {
	return &BackupService{store: store}
}

func (s *BackupService) Export(ctx context.Context, req ExportRequest) (*Manifest, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("export snapshot: store is nil")
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return nil, fmt.Errorf("%w: output path is required", ErrValidation)
	}
	if _, err := os.Stat(req.OutputPath); err == nil && !req.Overwrite {
		return nil, fmt.Errorf("%w: output exists; pass overwrite", ErrValidation)
	}

	snapshot, err := s.store.Backup(ctx)
	if err != nil {
		return nil, fmt.Errorf("export snapshot: %w", err)
	}

	manifest := &Manifest{
		Version:    archiveFormatVersion,
		SnapshotID: snapshot.ID,
		CreatedAt:  snapshot.CreatedAt.Format(time.RFC3339Nano),
		Files:      map[string]ManifestFile{},
	}

	entries := map[string][]byte{}
	for table, dump := range snapshot.Tables {
		data, err := json.Marshal(dump)
		if err != nil {
			return nil, fmt.Errorf("export snapshot: encode %s: %w", table, err)
		}
		name := table + ".json"
		entries[name] = data
		manifest.Files[name] = ManifestFile{
			SHA256:    sha256Hex(data),
			SizeBytes: int64(len(data)),
			Rows:      len(dump.Rows),
		}
	}

	manifestBytes, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("export snapshot: encode manifest: %w", err)
	}
	entries[archiveManifestFileName] = manifestBytes

	payload, err := createTarGzEntries(entries)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o700); err != nil {
		return nil, fmt.Errorf("export snapshot: create output directory: %w", err)
	}
	if err := os.WriteFile(req.OutputPath, payload, 0o600); err != nil {
		return nil, fmt.Errorf("export snapshot: write output: %w", err)
	}
	return manifest, nil
}

func (s *BackupService) Import(ctx context.Context, req ImportRequest) (*Manifest, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("import snapshot: store is nil")
	}
	if strings.TrimSpace(req.InputPath) == "" {
		return nil, fmt.Errorf("%w: input path is required", ErrValidation)
	}

	info, err := os.Stat(req.InputPath)
	if err != nil {
		return nil, fmt.Errorf("import snapshot: %w", err)
	}
	if info.Size() > maxArchiveFileSize {
		return nil, fmt.Errorf("import snapshot: file exceeds %d MiB limit", maxArchiveFileSize>>20)
	}

	payload, err := os.ReadFile(req.InputPath)
	if err != nil {
		return nil, fmt.Errorf("import snapshot: %w", err)
	}
	entries, err := extractTarGzEntries(payload)
	if err != nil {
		return nil, err
	}

	manifestRaw, ok := entries[archiveManifestFileName]
	if !ok {
		return nil, fmt.Errorf("import snapshot: manifest missing")
	}
	var manifest Manifest
	if err := json.Unmarshal(manifestRaw, &manifest); err != nil {
		return nil, fmt.Errorf("import snapshot: decode manifest: %w", err)
	}
	if manifest.Version != archiveFormatVersion {
		return nil, fmt.Errorf("import snapshot: unsupported archive version %d", manifest.Version)
	}
	for name, meta := range manifest.Files {
		data, ok := entries[name]
		if !ok {
			return nil, fmt.Errorf("import snapshot: missing file %q from archive", name)
		}
		if got := sha256Hex(data); !strings.EqualFold(got, meta.SHA256) {
			return nil, fmt.Errorf("import snapshot: checksum mismatch for %q", name)
		}
	}

	createdAt, err := time.Parse(time.RFC3339Nano, manifest.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("import snapshot: parse created_at: %w", err)
	}

	snapshot := &storage.Snapshot{
		ID:        manifest.SnapshotID,
		CreatedAt: createdAt,
		Tables:    map[string]storage.TableDump{},
	}
	for name := range manifest.Files {
		dump, err := decodeTableDump(entries[name])
		if err != nil {
			return nil, fmt.Errorf("import snapshot: decode %s: %w", name, err)
		}
		snapshot.Tables[strings.TrimSuffix(name, ".json")] = dump
	}

	if err := s.store.Restore(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("import snapshot: %w", err)
	}
	return &manifest, nil
}

// decodeTableDump parses a table dump keeping integer values as int64, so a
// restore writes the same representation the export read.
func decodeTableDump(data []byte) (storage.TableDump, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var dump storage.TableDump
	if err := decoder.Decode(&dump); err != nil {
		return storage.TableDump{}, err
	}
	for _, row := range dump.Rows {
		for i, value := range row {
			number, ok := value.(json.Number)
			if !ok {
				continue
			}
			if n, err := number.Int64(); err == nil {
				row[i] = n
				continue
			}
			f, err := number.Float64()
			if err != nil {
				return storage.TableDump{}, fmt.Errorf("parse number %q: %w", number, err)
			}
			row[i] = f
		}
	}
	return dump, nil
}

func createTarGzEntries(entries map[string][]byte) ([]byte, error) {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var out bytes.Buffer
	gz := gzip.NewWriter(&out)
	tw := tar.NewWriter(gz)
	for _, name := range names {
		data := entries[name]
		header := &tar.Header{
			Name:    name,
			Mode:    0o600,
			Size:    int64(len(data)),
			ModTime: time.Unix(0, 0).UTC(),
		}
		if err := tw.WriteHeader(header); err != nil {
			_ = tw.Close()
			_ = gz.Close()
			return nil, fmt.Errorf("create tar.gz payload: write header %q: %w", name, err)
		}
		if _, err := tw.Write(data); err != nil {
			_ = tw.Close()
			_ = gz.Close()
			return nil, fmt.Errorf("create tar.gz payload: write file %q: %w", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		_ = gz.Close()
		return nil, fmt.Errorf("create tar.gz payload: close tar writer: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("create tar.gz payload: close gzip writer: %w", err)
	}
	return out.Bytes(), nil
}

func extractTarGzEntries(payload []byte) (map[string][]byte, error) {
	gzReader, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("extract tar.gz entries: gzip reader: %w", err)
	}
	defer gzReader.Close()

	tr := tar.NewReader(gzReader)
	entries := map[string][]byte{}
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("extract tar.gz entries: read header: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		if header.Size > maxTarEntrySize {
			return nil, fmt.Errorf("extract tar.gz entries: %q exceeds %d MiB entry limit", header.Name, maxTarEntrySize>>20)
		}
		data, err := io.ReadAll(io.LimitReader(tr, maxTarEntrySize+1))
		if err != nil {
			return nil, fmt.Errorf("extract tar.gz entries: read %q: %w", header.Name, err)
		}
		if int64(len(data)) > maxTarEntrySize {
			return nil, fmt.Errorf("extract tar.gz entries: %q exceeded size limit during read", header.Name)
		}
		entries[header.Name] = data
	}
	return entries, nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
