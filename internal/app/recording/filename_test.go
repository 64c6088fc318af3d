package recording

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExtension(t *testing.T) {
	for mime, want := range map[string]string{
		"video/webm":                 "webm",
		"video/webm;codecs=vp8,opus": "webm",
		"VIDEO/MP4":                  "mp4",
		"video/x-ivf":                "ivf",
		"video/h264":                 "h264",
		"audio/ogg":                  "ogg",
	} {
		ext, err := Extension(mime)
		require.NoError(t, err, mime)
		require.Equal(t, want, ext, mime)
	}
}

func TestExtensionUnsupported(t *testing.T) {
	_, err := Extension("video/quicktime")
	require.ErrorIs(t, err, ErrMediaNotSupported)
}

func TestFilenameIsDeterministic(t *testing.T) {
	ts := time.Date(2026, 10, 18, 23, 5, 9, 0, time.UTC)
	name, err := Filename("Room 1", "bob.smith", ts, "video/x-ivf")
	require.NoError(t, err)
	require.Equal(t, "Room_1-bob_smith-20261018-230509.ivf", name)

	again, err := Filename("Room 1", "bob.smith", ts, "video/x-ivf")
	require.NoError(t, err)
	require.Equal(t, name, again)
}

func TestFilenameEmptyID(t *testing.T) {
	_, err := Filename("", "bob", time.Now(), "video/webm")
	require.ErrorIs(t, err, ErrEmptyFileID)

	_, err = Filename("room", "???", time.Now(), "video/webm")
	require.ErrorIs(t, err, ErrEmptyFileID)
}
