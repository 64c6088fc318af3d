package recording

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrEmptyFileID       = errors.New("empty file ID")
	ErrMediaNotSupported = errors.New("media not supported")
)

var extensions = map[string]string{
	"video/webm":  "webm",
	"audio/webm":  "webm",
	"video/mp4":   "mp4",
	"video/x-ivf": "ivf",
	"video/ivf":   "ivf",
	"video/h264":  "h264",
	"audio/ogg":   "ogg",
	"video/ogg":   "ogv",
}

// Extension maps a negotiated mime type (parameters allowed) to a file extension.
func Extension(mimeType string) (string, error) {
	base, _, _ := strings.Cut(mimeType, ";")
	ext, ok := extensions[strings.ToLower(strings.TrimSpace(base))]
	if !ok {
		return "", fmt.Errorf("%q: %w", mimeType, ErrMediaNotSupported)
	}
	return ext, nil
}

// Filename builds <room>-<participant>-<yyyymmdd-hhmmss>.<ext> with the time in UTC.
func Filename(room, participant string, startedAt time.Time, mimeType string) (string, error) {
	room, participant = sanitize(room), sanitize(participant)
	if room == "" || participant == "" {
		return "", ErrEmptyFileID
	}
	ext, err := Extension(mimeType)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%s.%s", room, participant, startedAt.UTC().Format("20060102-150405"), ext), nil
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		case r == ' ', r == '-', r == '.':
			return '_'
		}
		return -1
	}, strings.TrimSpace(s))
}
