package scraper

import (
	"encoding/json"
	"fmt"
	"os"
)

type SelectorConfig struct {
	Listing ListingSelectors `json:"listing"`
	Post    PostSelectors    `json:"post"`
}

type ListingSelectors struct {
	Content       string `json:"content"`        // e.g., "#pagecontent"
	TopicLink     string `json:"topic_link"`     // e.g., ".topictitle"
	TimestampAttr string `json:"timestamp_attr"` // hover title carrying the post date
}

type PostSelectors struct {
	Content         string `json:"content"`
	Body            string `json:"body"`
	AttachmentBlock string `json:"attachment_block"` // only doubly-nested blocks hold attachments
	Image           string `json:"image"`
}

// LoadSelectors loads the selector configuration from the specified JSON file.
func LoadSelectors(path string) (SelectorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SelectorConfig{}, fmt.Errorf("failed to read selector config file: %w", err)
	}

	return LoadSelectorsFromBytes(data)
}

// LoadSelectorsFromBytes parses selector configuration from raw JSON bytes.
// Fields missing from the JSON keep their default values.
func LoadSelectorsFromBytes(data []byte) (SelectorConfig, error) {
	config := DefaultSelectors()
	if err := json.Unmarshal(data, &config); err != nil {
		return SelectorConfig{}, fmt.Errorf("failed to parse selector config JSON: %w", err)
	}

	return config, nil
}

// DefaultSelectors returns the fallback configuration if no JSON file is loaded.
func DefaultSelectors() SelectorConfig {
	return SelectorConfig{
		Listing: ListingSelectors{
			Content:       "#pagecontent",
			TopicLink:     ".topictitle",
			TimestampAttr: "title",
		},
		Post: PostSelectors{
			Content:         "#pagecontent",
			Body:            ".postbody",
			AttachmentBlock: ".tablebg",
			Image:           "img",
		},
	}
}
