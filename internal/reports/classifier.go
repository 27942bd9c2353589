package reports

import (
	"fmt"
	"path"
	"strings"
)

var (
	DefaultImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif"}
	DefaultTextExtensions  = []string{".txt"}
)

type Classifier struct {
	extensionKinds map[string]Kind
}

func NewClassifier(imageExtensions, textExtensions []string) *Classifier {
	kinds := make(map[string]Kind, len(imageExtensions)+len(textExtensions))
	for _, ext := range imageExtensions {
		kinds[normalizeExtension(ext)] = KindImage
	}
	for _, ext := range textExtensions {
		kinds[normalizeExtension(ext)] = KindText
	}
	return &Classifier{extensionKinds: kinds}
}

// CheckExtensions returns an error if an extension is listed as both an image
// and a text type.
func CheckExtensions(imageExtensions, textExtensions []string) error {
	images := make(map[string]bool, len(imageExtensions))
	for _, ext := range imageExtensions {
		images[normalizeExtension(ext)] = true
	}
	for _, ext := range textExtensions {
		if images[normalizeExtension(ext)] {
			return fmt.Errorf("extension '%s' is listed as both image and text", normalizeExtension(ext))
		}
	}
	return nil
}

func DefaultClassifier() *Classifier {
	return NewClassifier(DefaultImageExtensions, DefaultTextExtensions)
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Classify derives the report id and upload kind from an object key. Keys that
// cannot name a report (no base name, no extension) are unsupported rather than
// errors.
func (c *Classifier) Classify(objectKey string) (string, Kind) {
	if objectKey == "" || strings.HasSuffix(objectKey, "/") {
		return "", KindUnsupported
	}

	base := path.Base(objectKey)
	ext := path.Ext(base)
	reportId := strings.TrimSuffix(base, ext)
	if ext == "" || reportId == "" {
		return reportId, KindUnsupported
	}

	kind, ok := c.extensionKinds[strings.ToLower(ext)]
	if !ok {
		return reportId, KindUnsupported
	}
	return reportId, kind
}

func Classify(objectKey string) (string, Kind) {
	return defaultClassifier.Classify(objectKey)
}

var defaultClassifier = DefaultClassifier()
