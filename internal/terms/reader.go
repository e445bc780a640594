package terms

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"erptools/internal/logger"
	"erptools/pkg/models"
)

// catalogFile is the on-disk layout of a payment term catalog.
type catalogFile struct {
	PaymentTerms []models.PaymentTerm `yaml:"payment_terms"`
}

// FileCatalog reads payment terms from a YAML file. It implements
// services.PaymentTermCatalog.
type FileCatalog struct {
	path string
	log  zerolog.Logger
}

// NewFileCatalog creates a catalog reader for path.
func NewFileCatalog(path string) *FileCatalog {
	return &FileCatalog{
		path: path,
		log:  logger.WithComponent("terms-reader"),
	}
}

// ListPaymentTerms returns the valid terms of one operation type. Invalid
// definitions are skipped with a warning.
func (fc *FileCatalog) ListPaymentTerms(ctx context.Context, operationType string) ([]models.PaymentTerm, error) {
	const op = "ListPaymentTerms"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	data, err := os.ReadFile(fc.path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read %s: %w", op, fc.path, err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%s: invalid YAML in %s: %w", op, fc.path, err)
	}

	var out []models.PaymentTerm
	for _, term := range NewCatalog(file.PaymentTerms).ForOperation(operationType).Terms() {
		if err := Validate(term); err != nil {
			fc.log.Warn().
				Err(err).
				Str("term_id", term.ID).
				Msg("Skipping invalid payment term")
			continue
		}
		out = append(out, term)
	}

	fc.log.Info().
		Str("file", fc.path).
		Str("operation_type", operationType).
		Int("total_terms", len(file.PaymentTerms)).
		Int("usable_terms", len(out)).
		Msg("Payment terms read successfully")

	return out, nil
}

// Load reads the payable terms of a catalog file into a snapshot.
func Load(ctx context.Context, path string) (*Catalog, error) {
	list, err := NewFileCatalog(path).ListPaymentTerms(ctx, models.OperationPayable)
	if err != nil {
		return nil, err
	}
	return NewCatalog(list), nil
}
