package syncer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"famlysync/internal/downloader"
	"famlysync/pkg/catalog"
	"famlysync/pkg/checkpoint"
	"famlysync/pkg/config"
	"famlysync/pkg/exifdate"
	"famlysync/pkg/famly"
	"famlysync/pkg/logger"
	"famlysync/pkg/pagination"
	"famlysync/pkg/storage"
	"famlysync/pkg/ui"
)

// Options adjust a single run
type Options struct {
	// DryRun lists what would be downloaded without writing images or checkpoints
	DryRun bool
	// Children limits the run to these child ids or names (case-insensitive); empty means all
	Children []string
}

// Syncer downloads each child's new images and advances their checkpoints
type Syncer struct {
	client     FamlyClient
	pager      *pagination.Pager
	store      *checkpoint.Store
	storage    *storage.Manager
	downloader *downloader.Downloader
	recorder   Recorder
	out        io.Writer
	logger     logger.Logger
}

// New wires a syncer from settings. recorder may be nil.
func New(cfg *config.Config, client FamlyClient, store *checkpoint.Store, recorder Recorder, log logger.Logger) *Syncer {
	if log == nil {
		log = logger.GetLogger()
	}

	storageManager := storage.NewManager(cfg.OutputDir)

	return &Syncer{
		client:     client,
		pager:      pagination.New(client, cfg.ItemsPerRequest, log),
		store:      store,
		storage:    storageManager,
		downloader: downloader.New(client, storageManager, exifdate.NewTagger(log), log),
		recorder:   recorder,
		out:        ui.Out,
		logger:     log,
	}
}

// SetOutput redirects status lines and progress bars
func (s *Syncer) SetOutput(w io.Writer) {
	s.out = w
}

// Run syncs every selected child in turn. Only a checkpoint that cannot be
// loaded, or cancellation of ctx, ends the run with an error; per-child
// failures are logged and reflected in the report.
func (s *Syncer) Run(ctx context.Context, opts Options) (*Report, error) {
	report := &Report{DryRun: opts.DryRun, StartedAt: time.Now()}

	state, err := s.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	if s.recorder != nil && !opts.DryRun {
		runID, err := s.recorder.StartRun(ctx, report.StartedAt)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to record run start in catalog")
		}
		report.RunID = runID
	}
	defer s.finish(report)

	children, err := s.client.ListChildren(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		s.logger.WithError(err).Error("Failed to list children")
		s.printf("%s\n", ui.Red("Could not list children: "+err.Error()))
		return report, nil
	}

	selected := selectChildren(children, opts.Children)
	if len(opts.Children) > 0 && len(selected) == 0 {
		s.logger.WarnWithFields("No child matched the filter", map[string]interface{}{
			"filter": opts.Children,
		})
	}

	s.logger.InfoWithFields("Starting sync", map[string]interface{}{
		"children":   len(selected),
		"dry_run":    opts.DryRun,
		"run_id":     report.RunID,
		"output_dir": s.storage.GetOutputDir(),
	})

	for _, child := range selected {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		cr := s.syncChild(ctx, child, state, opts, report.RunID)
		report.Children = append(report.Children, cr)

		if cr.Interrupted {
			return report, ctx.Err()
		}
	}

	return report, nil
}

func (s *Syncer) syncChild(ctx context.Context, child famly.Child, state *checkpoint.State, opts Options, runID string) ChildReport {
	cr := ChildReport{ID: child.ID, Name: child.Name, Cutoff: state.CutoffFor(child.ID)}
	log := s.logger.WithFields(map[string]interface{}{
		"child_id":   child.ID,
		"child_name": child.Name,
	})

	s.printf("\n%s %s\n", ui.Cyan("Fetching images for"), ui.Yellow(child.Name))

	images := s.pager.Collect(ctx, child.ID, cr.Cutoff)
	cr.Found = len(images)

	if ctx.Err() != nil {
		cr.Interrupted = true
		return cr
	}

	if len(images) == 0 {
		s.printf("%s\n", ui.Dim("No new images"))
		log.Info("No new images")
		return cr
	}

	s.printf("Found %d new images\n", len(images))
	log.InfoWithFields("Found new images", map[string]interface{}{
		"count":  len(images),
		"cutoff": formatCutoff(cr.Cutoff),
	})

	if opts.DryRun {
		for _, img := range images {
			path := s.storage.ImagePath(child.Name, img.ID, img.CreatedAt)
			cr.Planned = append(cr.Planned, path)
			s.printf("  %s  %s\n", img.CreatedAt.Format(time.RFC3339), path)
		}
		return cr
	}

	bar := ui.NewProgressBar(s.out)
	for i, img := range images {
		if ctx.Err() != nil {
			cr.Interrupted = true
			break
		}

		s.noteExisting(ctx, log, child, img)

		if err := s.storage.EnsureDir(s.storage.ImageDir(child.Name, img.CreatedAt)); err != nil {
			log.WithError(err).Error("Failed to create image directory")
		}

		res := s.downloader.Process(ctx, downloader.Job{Image: img, ChildID: child.ID, ChildName: child.Name})
		switch {
		case !res.Success():
			cr.Failed++
		default:
			cr.Downloaded++
			if res.TagErr != nil {
				cr.TagWarnings++
			}
			s.record(ctx, runID, child, res)
		}

		bar.Update(i+1, len(images))
	}
	bar.Finish()

	if cr.Interrupted {
		// a partial batch must not move the cutoff past images never visited
		log.Warn("Sync interrupted, checkpoint left unchanged")
		return cr
	}

	newest := newestCreatedAt(images)
	if err := s.store.Save(child.ID, newest); err != nil {
		log.WithError(err).Error("Failed to save checkpoint")
		s.printf("%s\n", ui.Red("Could not save checkpoint: "+err.Error()))
		return cr
	}
	cr.NewCutoff = &newest

	log.InfoWithFields("Child synced", map[string]interface{}{
		"downloaded":   cr.Downloaded,
		"failed":       cr.Failed,
		"tag_warnings": cr.TagWarnings,
		"cutoff":       newest.Format(time.RFC3339Nano),
	})

	return cr
}

// noteExisting logs when an image is about to overwrite a file already on
// disk, as happens after a checkpoint reset
func (s *Syncer) noteExisting(ctx context.Context, log logger.Logger, child famly.Child, img famly.Image) {
	if !s.storage.Exists(child.Name, img.ID, img.CreatedAt) {
		return
	}

	fields := map[string]interface{}{"image_id": img.ID}
	if s.recorder != nil {
		if has, err := s.recorder.Has(ctx, img.ID); err == nil {
			fields["cataloged"] = has
		}
	}
	log.InfoWithFields("Image already on disk, replacing", fields)
}

func (s *Syncer) record(ctx context.Context, runID string, child famly.Child, res downloader.Result) {
	if s.recorder == nil {
		return
	}

	err := s.recorder.Record(ctx, catalog.Entry{
		ImageID:   res.Job.Image.ID,
		ChildID:   child.ID,
		ChildName: child.Name,
		CreatedAt: res.Job.Image.CreatedAt,
		Path:      res.Path,
		SizeBytes: int64(res.Size),
		Tagged:    res.Tagged,
		RunID:     runID,
	})
	if err != nil {
		s.logger.WithError(err).Warn("Failed to record image in catalog")
	}
}

func (s *Syncer) finish(report *Report) {
	report.FinishedAt = time.Now()

	if s.recorder == nil || report.RunID == "" {
		return
	}
	// the run context may already be cancelled
	err := s.recorder.FinishRun(context.Background(), report.RunID, report.Downloaded(), report.Failed(), report.FinishedAt)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to record run finish in catalog")
	}
}

func (s *Syncer) printf(format string, args ...interface{}) {
	fmt.Fprintf(s.out, format, args...)
}

// newestCreatedAt returns the latest createdAt in images. Results arrive
// newest first, so this is normally images[0].
func newestCreatedAt(images []famly.Image) time.Time {
	newest := images[0].CreatedAt
	for _, img := range images[1:] {
		if img.CreatedAt.After(newest) {
			newest = img.CreatedAt
		}
	}
	return newest
}

// selectChildren keeps children whose id or name matches filter
func selectChildren(children []famly.Child, filter []string) []famly.Child {
	if len(filter) == 0 {
		return children
	}

	var selected []famly.Child
	for _, c := range children {
		for _, f := range filter {
			if c.ID == f || strings.EqualFold(c.Name, f) {
				selected = append(selected, c)
				break
			}
		}
	}
	return selected
}

func formatCutoff(t *time.Time) string {
	if t == nil {
		return "none"
	}
	return t.Format(time.RFC3339Nano)
}
