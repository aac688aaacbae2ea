package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pauljones0/fly4deals/internal/models"
	"github.com/pauljones0/fly4deals/internal/scraper"
	"github.com/pauljones0/fly4deals/internal/state"
	"github.com/pauljones0/fly4deals/internal/validator"
)

type Processor interface {
	Run(ctx context.Context) (RunReport, error)
}

// RunReport summarizes one pass of the pipeline.
type RunReport struct {
	RunID           string
	NoNewPosts      bool
	Discovered      int
	Added           int
	Extracted       int
	ExtractFailures int
	Notified        int
	NotifyFailures  int
}

type RunController struct {
	store     PostStore
	scraper   scraper.Scraper
	extractor DealExtractor
	notifier  DealNotifier
	validator *validator.Validator
	now       func() time.Time
}

func New(store PostStore, s scraper.Scraper, e DealExtractor, n DealNotifier) *RunController {
	return &RunController{
		store:     store,
		scraper:   s,
		extractor: e,
		notifier:  n,
		validator: validator.New(),
		now:       time.Now,
	}
}

// Run performs one discover, extract, notify and persist pass. Errors from
// loading, discovery and saving are returned; per-post failures are logged
// and counted in the report.
func (p *RunController) Run(ctx context.Context) (RunReport, error) {
	report := RunReport{RunID: uuid.NewString()}
	log := slog.With("run_id", report.RunID)

	prev, err := p.store.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to load state: %w", err)
	}
	log.Info("Loaded state", "rows", len(prev))

	discovered, err := p.scraper.DiscoverNewPosts(ctx, p.now())
	if err != nil {
		return report, fmt.Errorf("failed to discover posts: %w", err)
	}
	discovered = p.validPosts(log, discovered)
	report.Discovered = len(discovered)
	if len(discovered) == 0 {
		report.NoNewPosts = true
		log.Info("No new posts")
		return report, nil
	}

	table, added := state.Merge(prev, discovered)
	report.Added = added
	log.Info("Merged discovered posts", "discovered", len(discovered), "added", added)

	table = p.extract(ctx, log, table, &report)

	table, interrupted := p.notify(ctx, log, table, &report)

	if err := state.CheckMonotonic(prev, table); err != nil {
		return report, fmt.Errorf("refusing to save state: %w", err)
	}
	if err := p.store.Save(ctx, table); err != nil {
		return report, fmt.Errorf("failed to save state: %w", err)
	}
	if interrupted != nil {
		return report, fmt.Errorf("run interrupted: %w", interrupted)
	}

	log.Info("Finished run",
		"rows", len(table),
		"extracted", report.Extracted,
		"extract_failures", report.ExtractFailures,
		"notified", report.Notified,
		"notify_failures", report.NotifyFailures)
	return report, nil
}

func (p *RunController) validPosts(log *slog.Logger, posts []models.PostRecord) []models.PostRecord {
	valid := posts[:0:0]
	for _, post := range posts {
		if err := p.validator.Post(post); err != nil {
			log.Warn("Skipping invalid post", "url", post.URL, "error", err)
			continue
		}
		valid = append(valid, post)
	}
	return valid
}

// extract fills in the response of every row that has none. Rows whose
// extraction fails stay pending for the next run.
func (p *RunController) extract(ctx context.Context, log *slog.Logger, table []models.PostRecord, report *RunReport) []models.PostRecord {
	for _, i := range state.PendingExtraction(table) {
		if ctx.Err() != nil {
			break
		}
		res := p.extractor.Extract(ctx, table[i])
		if !res.OK() {
			report.ExtractFailures++
			log.Warn("Extraction failed", "url", table[i].URL, "status", res.Status, "error", res.Err)
			continue
		}
		updated, err := state.WithResponse(table, i, *res.Deal)
		if err != nil {
			log.Error("Could not record extraction", "url", table[i].URL, "error", err)
			continue
		}
		table = updated
		report.Extracted++
	}
	return table
}

// notify sends one message per extracted, unchecked row and marks it checked
// whatever the outcome, so a row is attempted at most once. It stops early
// when ctx is done and returns the context error; unsent rows stay unchecked.
func (p *RunController) notify(ctx context.Context, log *slog.Logger, table []models.PostRecord, report *RunReport) ([]models.PostRecord, error) {
	for _, i := range state.PendingNotification(table) {
		if err := ctx.Err(); err != nil {
			return table, err
		}
		if err := p.notifier.Notify(ctx, *table[i].Response); err != nil {
			report.NotifyFailures++
			log.Error("Notification failed", "url", table[i].URL, "error", err)
		} else {
			report.Notified++
		}
		updated, err := state.MarkChecked(table, i)
		if err != nil {
			log.Error("Could not mark post checked", "url", table[i].URL, "error", err)
			continue
		}
		table = updated
	}
	return table, nil
}
