package scraper

import (
	"errors"
	"testing"
	"time"
)

func TestParseForumTimestamp(t *testing.T) {
	warsaw, err := time.LoadLocation("Europe/Warsaw")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}

	tests := []struct {
		name    string
		input   string
		loc     *time.Location
		want    time.Time
		wantErr error
	}{
		{
			name:  "Standard",
			input: "Wysłany: 05 Sty 2025 14:30",
			loc:   time.UTC,
			want:  time.Date(2025, time.January, 5, 14, 30, 0, 0, time.UTC),
		},
		{
			name:  "Diacritic month",
			input: "Wysłany: 31 Paź 2025 09:05",
			loc:   time.UTC,
			want:  time.Date(2025, time.October, 31, 9, 5, 0, 0, time.UTC),
		},
		{
			name:  "Single digit day and hour",
			input: "Wysłany: 7 Lip 2025 8:15",
			loc:   time.UTC,
			want:  time.Date(2025, time.July, 7, 8, 15, 0, 0, time.UTC),
		},
		{
			name:  "Forum time zone",
			input: "Wysłany: 05 Sty 2025 14:30",
			loc:   warsaw,
			want:  time.Date(2025, time.January, 5, 13, 30, 0, 0, time.UTC),
		},
		{
			name:  "Nil location is UTC",
			input: "Wysłany: 01 Gru 2024 00:00",
			want:  time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:    "Unknown month",
			input:   "Wysłany: 05 Xyz 2025 14:30",
			loc:     time.UTC,
			wantErr: ErrUnknownMonth,
		},
		{
			name:    "Three tokens",
			input:   "Wysłany: 05 Sty 2025",
			loc:     time.UTC,
			wantErr: ErrTimestampFormat,
		},
		{
			name:    "Empty",
			input:   "",
			loc:     time.UTC,
			wantErr: ErrTimestampFormat,
		},
		{
			name:    "Day out of range",
			input:   "Wysłany: 32 Sty 2025 14:30",
			loc:     time.UTC,
			wantErr: ErrTimestampValue,
		},
		{
			name:    "Bad clock",
			input:   "Wysłany: 05 Sty 2025 14h30",
			loc:     time.UTC,
			wantErr: ErrTimestampValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseForumTimestamp(tt.input, tt.loc)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseForumTimestamp() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseForumTimestamp() unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseForumTimestamp() = %v, want %v", got, tt.want)
			}
		})
	}
}
