package imagesync

import (
	"mime"
	"net/url"
	"path"
	"strings"
)

// guessMimeType guesses the MIME type from the source URL's extension, per
// spec §4.11.
func guessMimeType(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "application/octet-stream"
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
