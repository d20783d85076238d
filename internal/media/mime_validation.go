package media

import (
	"fmt"
	"mime"
	"net/http"
	"sort"
	"strings"
)

var allowedImageTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// sniffImageType inspects the leading bytes of an upload and returns its
// canonical mime type and file extension. Declared content types are ignored.
func sniffImageType(head []byte) (string, string, error) {
	if len(head) == 0 {
		return "", "", fmt.Errorf("file is empty")
	}
	mediaType, _, err := mime.ParseMediaType(http.DetectContentType(head))
	if err != nil {
		return "", "", fmt.Errorf("mime type invalid: %w", err)
	}
	mediaType = strings.ToLower(mediaType)
	ext, ok := allowedImageTypes[mediaType]
	if !ok {
		return "", "", fmt.Errorf("file must be %s, got %s", allowedDescription(), mediaType)
	}
	return mediaType, ext, nil
}

func allowedDescription() string {
	list := make([]string, 0, len(allowedImageTypes))
	for name := range allowedImageTypes {
		list = append(list, strings.TrimPrefix(name, "image/"))
	}
	sort.Strings(list)
	return "an image (" + strings.Join(list, ", ") + ")"
}
