package processor

import (
	"context"

	"github.com/pauljones0/fly4deals/internal/ai"
	"github.com/pauljones0/fly4deals/internal/models"
)

// PostStore abstracts the persistence backend for the post table.
type PostStore interface {
	Load(ctx context.Context) ([]models.PostRecord, error)
	Save(ctx context.Context, records []models.PostRecord) error
	Close() error
}

// DealExtractor turns a post into a structured deal.
type DealExtractor interface {
	Extract(ctx context.Context, record models.PostRecord) ai.Result
}

// DealNotifier abstracts the notification layer.
type DealNotifier interface {
	Notify(ctx context.Context, deal models.Deal) error
}
