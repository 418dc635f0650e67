package analysis

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// recording formats browsers and recorders produce; the system mime table
// often lacks them
var recordingTypes = map[string]string{
	".webm": "video/webm",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
}

// Media is a recording attached to an analysis request
type Media struct {
	Name     string
	MIMEType string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// MediaFromFile describes a file on disk without reading it
func MediaFromFile(path string) (Media, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Media{}, fmt.Errorf("failed to stat media: %w", err)
	}
	if info.IsDir() {
		return Media{}, fmt.Errorf("media %s is a directory", path)
	}
	ext := strings.ToLower(filepath.Ext(path))
	mimeType, ok := recordingTypes[ext]
	if !ok {
		mimeType = mime.TypeByExtension(ext)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return Media{
		Name:     filepath.Base(path),
		MIMEType: mimeType,
		Size:     info.Size(),
		Open:     func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// MediaFromBytes wraps an in-memory recording
func MediaFromBytes(name, mimeType string, data []byte) Media {
	return Media{
		Name:     name,
		MIMEType: mimeType,
		Size:     int64(len(data)),
		Open:     func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

func (m Media) read() ([]byte, error) {
	rc, err := m.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open media %s: %w", m.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read media %s: %w", m.Name, err)
	}
	return data, nil
}

func totalSize(media []Media) int64 {
	var n int64
	for _, m := range media {
		n += m.Size
	}
	return n
}
