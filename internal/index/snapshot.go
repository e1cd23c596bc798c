package index

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
	"github.com/kailas-cloud/catalogsearch/internal/domain/product"
)

// Artifact file names inside the snapshot directory.
const (
	MetaFile    = "meta.json"
	FaissFile   = "faiss.index"
	VectorsFile = "vectors.npy"
)

// Snapshot is one immutable, loaded index generation.
// Row i of Vectors belongs to Meta[i]; Meta is authoritative when the counts differ.
type Snapshot struct {
	Meta        []product.Meta
	Vectors     *Matrix
	Index       Index
	Fingerprint string
	LoadedAt    time.Time
}

// Len returns the metadata count.
func (s *Snapshot) Len() int { return len(s.Meta) }

// Artifacts is the raw artifact pair read from disk.
type Artifacts struct {
	Meta        []product.Meta
	Vectors     *Matrix
	Fingerprint string
}

// ReadArtifacts reads meta.json plus a vector file from dir. faiss.index
// (IndexFlatIP) is preferred when present, otherwise vectors.npy is used.
// A missing file yields an error wrapping domain.ErrIndexUnavailable.
// A row/meta count mismatch is logged and tolerated.
func ReadArtifacts(dir string, logger *zap.Logger) (*Artifacts, error) {
	metaPath := filepath.Join(dir, MetaFile)

	metaRaw, err := os.ReadFile(filepath.Clean(metaPath))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: meta file not found at %s", domain.ErrIndexUnavailable, metaPath)
	}
	if err != nil {
		return nil, fmt.Errorf("read meta: %w", err)
	}
	var meta []product.Meta
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		return nil, fmt.Errorf("parse meta: %w", err)
	}

	vecPath, vecRaw, err := readVectorFile(dir)
	if err != nil {
		return nil, err
	}
	decode := ReadNPY
	if filepath.Base(vecPath) == FaissFile {
		decode = ReadFaissFlatIP
	}
	m, err := decode(bytes.NewReader(vecRaw))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(vecPath), err)
	}

	if m.Rows != len(meta) {
		logger.Warn("vector rows differ from meta size",
			zap.Int("vectors", m.Rows),
			zap.Int("meta", len(meta)),
			zap.String("dir", dir),
			zap.String("source", filepath.Base(vecPath)),
		)
	}

	h := sha256.New()
	h.Write(metaRaw)
	h.Write(vecRaw)

	return &Artifacts{
		Meta:        meta,
		Vectors:     m,
		Fingerprint: hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// readVectorFile returns the first existing vector file in preference order.
func readVectorFile(dir string) (string, []byte, error) {
	for _, name := range []string{FaissFile, VectorsFile} {
		path := filepath.Join(dir, name)
		raw, err := os.ReadFile(filepath.Clean(path))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", nil, fmt.Errorf("read %s: %w", name, err)
		}
		return path, raw, nil
	}
	return "", nil, fmt.Errorf("%w: no index file found (%s or %s) in %s",
		domain.ErrIndexUnavailable, FaissFile, VectorsFile, dir)
}

// Load reads the artifact pair from dir and builds a backend over the vectors.
func Load(ctx context.Context, dir string, build Builder, logger *zap.Logger) (*Snapshot, error) {
	art, err := ReadArtifacts(dir, logger)
	if err != nil {
		return nil, err
	}
	idx, err := build(ctx, art)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	return &Snapshot{
		Meta:        art.Meta,
		Vectors:     art.Vectors,
		Index:       idx,
		Fingerprint: art.Fingerprint,
		LoadedAt:    time.Now(),
	}, nil
}

// Save writes meta.json and vectors.npy into dir, creating it if needed.
// Counts must match.
func Save(dir string, m *Matrix, meta []product.Meta) error {
	if m.Rows != len(meta) {
		return domain.NewDimensionMismatch("vectors vs meta", m.Rows, len(meta))
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, MetaFile), buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}

	f, err := os.Create(filepath.Clean(filepath.Join(dir, VectorsFile)))
	if err != nil {
		return fmt.Errorf("create vectors: %w", err)
	}
	if err := WriteNPY(f, m); err != nil {
		_ = f.Close()
		return fmt.Errorf("write vectors: %w", err)
	}
	return f.Close()
}
