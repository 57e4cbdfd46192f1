package syncer

import (
	"context"
	"time"

	"famlysync/pkg/catalog"
	"famlysync/pkg/famly"
)

// FamlyClient is the part of the Famly API a sync needs
type FamlyClient interface {
	ListChildren(ctx context.Context) ([]famly.Child, error)
	TaggedImages(ctx context.Context, childID string, limit int, olderThan string) ([]famly.Image, error)
	DownloadImage(ctx context.Context, url string) ([]byte, error)
}

// Recorder stores what each run wrote. A nil Recorder disables recording.
type Recorder interface {
	StartRun(ctx context.Context, startedAt time.Time) (string, error)
	FinishRun(ctx context.Context, runID string, downloaded, failed int, finishedAt time.Time) error
	Record(ctx context.Context, e catalog.Entry) error
	Has(ctx context.Context, imageID string) (bool, error)
}
