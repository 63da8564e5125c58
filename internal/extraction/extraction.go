package extraction

import (
	"context"

	"github.com/jmordret/macave/internal/domain"
)

// Extractor turns a label photo into structured wine metadata.
type Extractor interface {
	Extract(ctx context.Context, imageData []byte) (*domain.WineExtraction, error)
}
