package client

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// FromDataURL turns a base64 data URL, as produced by a camera capture
// canvas, into a PendingFile named camera_capture_<unix ms>.jpg.
func FromDataURL(dataURL string, at time.Time) (PendingFile, error) {
	header, payload, ok := strings.Cut(dataURL, ",")
	if !ok || !strings.HasPrefix(header, "data:") {
		return PendingFile{}, fmt.Errorf("not a data URL")
	}
	meta := strings.TrimPrefix(header, "data:")
	mimeType, params, _ := strings.Cut(meta, ";")
	if mimeType == "" {
		mimeType = "text/plain"
	}

	var data []byte
	if strings.Contains(";"+params, ";base64") {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return PendingFile{}, fmt.Errorf("decoding data URL: %w", err)
		}
		data = decoded
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return PendingFile{}, fmt.Errorf("decoding data URL: %w", err)
		}
		data = []byte(unescaped)
	}
	if len(data) == 0 {
		return PendingFile{}, fmt.Errorf("data URL is empty")
	}

	return PendingFile{
		Name:        fmt.Sprintf("camera_capture_%d.jpg", at.UnixMilli()),
		ContentType: mimeType,
		Content:     data,
		PreviewURL:  dataURL,
	}, nil
}
