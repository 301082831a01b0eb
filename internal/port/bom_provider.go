package port

import (
	"context"

	"github.com/Skund404/WAWI-Claude-sub001/internal/core/domain"
)

// BOMProvider is the external project collaborator: it enumerates the raw
// bill-of-materials lines for a project. The engine performs all
// aggregation; the provider only reads.
type BOMProvider interface {
	Requirements(ctx context.Context, projectID string) ([]domain.BOMRequirement, error)
}
