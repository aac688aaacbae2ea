package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pauljones0/fly4deals/internal/models"
)

const firestoreCollection = "posts"

// postDoc is the Firestore shape of a row. Seq preserves table order.
type postDoc struct {
	Seq       int          `firestore:"seq"`
	Title     string       `firestore:"title"`
	CreatedAt time.Time    `firestore:"createdAt"`
	URL       string       `firestore:"url"`
	Content   string       `firestore:"content"`
	ImgCount  int          `firestore:"imgCount"`
	Response  *models.Deal `firestore:"response"`
	Checked   bool         `firestore:"checked"`
}

type FirestoreStore struct {
	client *firestore.Client
	loc    *time.Location
}

func NewFirestoreStore(ctx context.Context, projectID string, loc *time.Location) (*FirestoreStore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &FirestoreStore{client: client, loc: loc}, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// docID derives a stable document id from the post URL.
func docID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

func toDoc(seq int, rec models.PostRecord) postDoc {
	return postDoc{
		Seq:       seq,
		Title:     rec.Title,
		CreatedAt: rec.CreatedAt,
		URL:       rec.URL,
		Content:   rec.Content,
		ImgCount:  rec.ImgCount,
		Response:  rec.Response,
		Checked:   rec.Checked,
	}
}

func (d postDoc) record(loc *time.Location) models.PostRecord {
	return models.PostRecord{
		Title:     d.Title,
		CreatedAt: d.CreatedAt.In(loc),
		URL:       d.URL,
		Content:   d.Content,
		ImgCount:  d.ImgCount,
		Response:  d.Response,
		Checked:   d.Checked,
	}
}

func (s *FirestoreStore) Load(ctx context.Context) ([]models.PostRecord, error) {
	iter := s.client.Collection(firestoreCollection).
		OrderBy("seq", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var records []models.PostRecord
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate posts: %w", err)
		}

		var d postDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, fmt.Errorf("failed to unmarshal post %s: %w", doc.Ref.ID, err)
		}
		records = append(records, d.record(s.loc))
	}
	return records, nil
}

// Save writes every row with a BulkWriter and reports the first failed write.
func (s *FirestoreStore) Save(ctx context.Context, records []models.PostRecord) error {
	coll := s.client.Collection(firestoreCollection)
	bw := s.client.BulkWriter(ctx)

	jobs := make([]*firestore.BulkWriterJob, 0, len(records))
	for i, rec := range records {
		job, err := bw.Set(coll.Doc(docID(rec.URL)), toDoc(i, rec))
		if err != nil {
			bw.End()
			return fmt.Errorf("queueing post %s: %w", rec.URL, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	var failed int
	var firstErr error
	for i, job := range jobs {
		if _, err := job.Results(); err != nil {
			failed++
			if firstErr == nil {
				firstErr = fmt.Errorf("writing post %s: %w", records[i].URL, err)
			}
		}
	}
	if firstErr != nil {
		slog.Error("Firestore save incomplete", "failed", failed, "total", len(jobs))
		return firstErr
	}
	slog.Debug("Firestore save complete", "written", len(jobs))
	return nil
}
