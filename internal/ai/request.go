package ai

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/pauljones0/fly4deals/internal/models"
	"github.com/pauljones0/fly4deals/internal/util"
)

const jpegMIMEType = "image/jpeg"

// Request is one multi-part extraction request: the rendered prompt and
// the post's attached images, in order.
type Request struct {
	Text   string
	Images []Image
}

type Image struct {
	Name     string
	MIMEType string
	Data     []byte
}

// BuildRequest assembles the request for a post. Images are read from
// file1.jpg through file{ImgCount}.jpg; files that are missing because their
// download failed are skipped.
func BuildRequest(prompt Prompt, record models.PostRecord, imageRoot string) Request {
	req := Request{Text: prompt.Render(record.Title, record.Content)}

	for i := 1; i <= record.ImgCount; i++ {
		path := util.ImagePath(imageRoot, record.URL, i)
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				slog.Warn("Attachment missing, skipping", "post", record.URL, "path", path)
			} else {
				slog.Warn("Failed to read attachment, skipping", "post", record.URL, "path", path, "error", err)
			}
			continue
		}
		req.Images = append(req.Images, Image{Name: path, MIMEType: jpegMIMEType, Data: data})
	}
	return req
}
