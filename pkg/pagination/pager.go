// Package pagination walks a child's tagged-image history page by page.
package pagination

import (
	"context"
	"time"

	"famlysync/pkg/famly"
	"famlysync/pkg/logger"
)

// PageFetcher fetches one page of a child's tagged images, newest first
type PageFetcher interface {
	TaggedImages(ctx context.Context, childID string, limit int, olderThan string) ([]famly.Image, error)
}

// Pager collects every image newer than a cutoff by following olderThan cursors
type Pager struct {
	fetcher PageFetcher
	limit   int
	logger  logger.Logger

	// MaxPages stops the walk after that many pages; 0 means unlimited
	MaxPages int
}

// New creates a pager requesting limit items per page
func New(fetcher PageFetcher, limit int, log logger.Logger) *Pager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Pager{
		fetcher: fetcher,
		limit:   limit,
		logger:  log,
	}
}

// Collect returns the images of childID newer than cutoff, newest first and
// unique by image id. A nil cutoff returns the whole history.
//
// A page shorter than the limit ends the walk, as does a full page whose
// oldest item is not newer than the cutoff. Only that last page is filtered.
// A failed page ends the walk and yields what earlier pages returned; the
// error is logged, never returned.
func (p *Pager) Collect(ctx context.Context, childID string, cutoff *time.Time) []famly.Image {
	log := p.logger.WithField("child_id", childID)

	var (
		collected []famly.Image
		olderThan string
		pages     int
	)

	for {
		page, err := p.fetcher.TaggedImages(ctx, childID, p.limit, olderThan)
		if err != nil {
			log.WithError(err).WarnWithFields("Failed to fetch tagged images page", map[string]interface{}{
				"older_than": olderThan,
				"pages":      pages,
			})
			return dedupe(collected)
		}
		pages++

		log.DebugWithFields("Got page", map[string]interface{}{
			"count":      len(page),
			"older_than": olderThan,
		})

		if len(page) == 0 || len(page) < p.limit {
			collected = append(collected, filterNewer(page, cutoff)...)
			break
		}

		oldest := page[len(page)-1]
		if cutoff != nil && !oldest.CreatedAt.After(*cutoff) {
			collected = append(collected, filterNewer(page, cutoff)...)
			break
		}

		collected = append(collected, page...)

		if oldest.RawCreatedAt == olderThan {
			log.WarnWithFields("Upstream returned the same page twice, stopping", map[string]interface{}{
				"older_than": olderThan,
			})
			break
		}
		if p.MaxPages > 0 && pages >= p.MaxPages {
			log.WarnWithFields("Page limit reached, stopping", map[string]interface{}{
				"max_pages": p.MaxPages,
			})
			break
		}

		log.DebugWithFields("Full page, fetching the next one", map[string]interface{}{
			"limit": p.limit,
		})
		olderThan = oldest.RawCreatedAt
	}

	return dedupe(collected)
}

// filterNewer keeps images strictly newer than cutoff
func filterNewer(images []famly.Image, cutoff *time.Time) []famly.Image {
	if cutoff == nil {
		return images
	}

	out := make([]famly.Image, 0, len(images))
	for _, img := range images {
		if img.CreatedAt.After(*cutoff) {
			out = append(out, img)
		}
	}
	return out
}

// dedupe drops repeated image ids, keeping the first occurrence
func dedupe(images []famly.Image) []famly.Image {
	seen := make(map[string]struct{}, len(images))
	out := make([]famly.Image, 0, len(images))
	for _, img := range images {
		if _, ok := seen[img.ID]; ok {
			continue
		}
		seen[img.ID] = struct{}{}
		out = append(out, img)
	}
	return out
}
