package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pauljones0/fly4deals/internal/models"
)

// TimeLayout is the created_at format shared by the CSV file and log output.
const TimeLayout = "2006-01-02 15:04:05"

var csvHeader = []string{"title", "created_at", "url", "content", "img_count", "response", "checked"}

// CSVStore keeps the table in a single CSV file.
type CSVStore struct {
	path string
	loc  *time.Location
}

func NewCSVStore(path string, loc *time.Location) *CSVStore {
	if loc == nil {
		loc = time.UTC
	}
	return &CSVStore{path: path, loc: loc}
}

// Load reads the file. A missing file is an empty table.
func (s *CSVStore) Load(_ context.Context) ([]models.PostRecord, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening state file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(csvHeader)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading state file %s: %w", s.path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols := make(map[string]int, len(csvHeader))
	for i, name := range rows[0] {
		cols[name] = i
	}
	for _, name := range csvHeader {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("state file %s: missing column %q", s.path, name)
		}
	}

	records := make([]models.PostRecord, 0, len(rows)-1)
	for n, row := range rows[1:] {
		rec, err := s.decodeRow(row, cols)
		if err != nil {
			return nil, fmt.Errorf("state file %s line %d: %w", s.path, n+2, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *CSVStore) decodeRow(row []string, cols map[string]int) (models.PostRecord, error) {
	get := func(name string) string { return row[cols[name]] }

	created, err := time.ParseInLocation(TimeLayout, get("created_at"), s.loc)
	if err != nil {
		return models.PostRecord{}, fmt.Errorf("created_at: %w", err)
	}
	imgCount, err := strconv.Atoi(get("img_count"))
	if err != nil {
		return models.PostRecord{}, fmt.Errorf("img_count: %w", err)
	}
	checked, err := strconv.ParseBool(get("checked"))
	if err != nil {
		return models.PostRecord{}, fmt.Errorf("checked: %w", err)
	}
	response, err := decodeResponse(get("response"))
	if err != nil {
		return models.PostRecord{}, err
	}

	return models.PostRecord{
		Title:     get("title"),
		CreatedAt: created,
		URL:       get("url"),
		Content:   get("content"),
		ImgCount:  imgCount,
		Response:  response,
		Checked:   checked,
	}, nil
}

// Save replaces the file with the full table. The new content is written to
// a temporary file in the same directory and renamed over the old one.
func (s *CSVStore) Save(_ context.Context, records []models.PostRecord) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(csvHeader); err != nil {
		tmp.Close()
		return fmt.Errorf("writing header: %w", err)
	}
	for _, rec := range records {
		response, err := encodeResponse(rec.Response)
		if err != nil {
			tmp.Close()
			return err
		}
		checked := "0"
		if rec.Checked {
			checked = "1"
		}
		row := []string{
			rec.Title,
			rec.CreatedAt.In(s.loc).Format(TimeLayout),
			rec.URL,
			rec.Content,
			strconv.Itoa(rec.ImgCount),
			response,
			checked,
		}
		if err := w.Write(row); err != nil {
			tmp.Close()
			return fmt.Errorf("writing row %s: %w", rec.URL, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}

func (s *CSVStore) Close() error { return nil }

func encodeResponse(d *models.Deal) (string, error) {
	if d == nil {
		return "", nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encoding response: %w", err)
	}
	return string(b), nil
}

func decodeResponse(raw string) (*models.Deal, error) {
	if raw == "" {
		return nil, nil
	}
	var d models.Deal
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("response: %w", err)
	}
	return &d, nil
}
