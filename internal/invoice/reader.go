package invoice

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"erptools/internal/logger"
	"erptools/pkg/models"
)

// FileSource reads parser output (JSON or YAML) from disk.
type FileSource struct {
	path string
	log  zerolog.Logger
}

// NewFileSource creates an invoice source for the given file.
func NewFileSource(path string) *FileSource {
	return &FileSource{
		path: path,
		log:  logger.WithComponent("invoice-reader"),
	}
}

// LoadInvoice implements services.InvoiceSource.
func (fs *FileSource) LoadInvoice(ctx context.Context) (*models.Invoice, error) {
	const op = "LoadInvoice"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	fs.log.Info().Str("file", fs.path).Msg("Reading parsed invoice")

	data, err := os.ReadFile(fs.path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read %s: %w", op, fs.path, err)
	}

	inv, err := Decode(data, filepath.Ext(fs.path))
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", op, fs.path, err)
	}

	fs.log.Info().
		Str("invoice_number", inv.Header.InvoiceNumber).
		Str("supplier", inv.Header.SupplierName).
		Int("items", len(inv.Items)).
		Str("total", inv.Header.TotalAmount.String()).
		Msg("Parsed invoice read successfully")

	return inv, nil
}

// Decode parses invoice data; ext selects the format (".json", ".yaml" or ".yml").
func Decode(data []byte, ext string) (*models.Invoice, error) {
	var inv models.Invoice

	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, &inv); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &inv); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	return &inv, nil
}
