package reconciliation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"erptools/internal/logger"
	"erptools/pkg/services"
)

// FileCommitter writes confirmed payloads as JSON files into a directory.
// It implements services.Committer for runs without an ERP backend.
type FileCommitter struct {
	dir  string
	file string // fixed file name; empty derives one per invoice
	log  zerolog.Logger
}

// NewFileCommitter creates a committer writing into dir.
func NewFileCommitter(dir string) *FileCommitter {
	return &FileCommitter{
		dir: dir,
		log: logger.WithComponent("file-committer"),
	}
}

// NewFileCommitterTo creates a committer that always writes to path.
func NewFileCommitterTo(path string) *FileCommitter {
	fc := NewFileCommitter(filepath.Dir(path))
	fc.file = filepath.Base(path)
	return fc
}

// Path returns the file a payload is written to.
func (fc *FileCommitter) Path(payload *services.CommitPayload) string {
	if fc.file != "" {
		return filepath.Join(fc.dir, fc.file)
	}
	name := fmt.Sprintf("%s_%s.json", safeName(payload.SupplierID), safeName(payload.InvoiceNumber))
	return filepath.Join(fc.dir, name)
}

// Commit writes payload. An existing file for the same invoice is replaced.
func (fc *FileCommitter) Commit(ctx context.Context, payload *services.CommitPayload) error {
	const op = "Commit"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.MkdirAll(fc.dir, 0o755); err != nil {
		return fmt.Errorf("%s: failed to create %s: %w", op, fc.dir, err)
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("%s: failed to marshal payload: %w", op, err)
	}

	path := fc.Path(payload)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%s: failed to write %s: %w", op, path, err)
	}

	fc.log.Info().
		Str("file", path).
		Str("payload_id", payload.ID).
		Int("lines", len(payload.Lines)).
		Msg("Payload written")
	return nil
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, s)
}
