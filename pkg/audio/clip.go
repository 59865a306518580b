package audio

import (
	"bytes"
	"path/filepath"
	"strings"
	"time"
)

// Container formats recognised by [Detect].
const (
	FormatWAV     = "wav"
	FormatMP3     = "mp3"
	FormatOGG     = "ogg"
	FormatWebM    = "webm"
	FormatFLAC    = "flac"
	FormatM4A     = "m4a"
	FormatUnknown = ""
)

// Clip is a complete, encoded audio file held in memory.
type Clip struct {
	// Data is the encoded file content.
	Data []byte

	// Format is one of the Format* constants.
	Format string
}

// Ext returns the file extension for the clip, without a dot. Unknown
// formats fall back to "bin".
func (c Clip) Ext() string {
	if c.Format == FormatUnknown {
		return "bin"
	}
	return c.Format
}

// ContentType returns the MIME type for the clip.
func (c Clip) ContentType() string {
	switch c.Format {
	case FormatWAV:
		return "audio/wav"
	case FormatMP3:
		return "audio/mpeg"
	case FormatOGG:
		return "audio/ogg"
	case FormatWebM:
		return "audio/webm"
	case FormatFLAC:
		return "audio/flac"
	case FormatM4A:
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}

// Duration returns the playback length for WAV clips. Other formats report
// zero.
func (c Clip) Duration() time.Duration {
	if c.Format != FormatWAV {
		return 0
	}
	info, err := ParseWAV(c.Data)
	if err != nil || info.SampleRate <= 0 || info.Channels <= 0 || info.BitsPerSample <= 0 {
		return 0
	}
	bytesPerSec := info.SampleRate * info.Channels * info.BitsPerSample / 8
	return time.Duration(float64(len(c.Data)-info.DataOffset) / float64(bytesPerSec) * float64(time.Second))
}

// Detect identifies the container format of data, consulting the file name's
// extension only when the content has no recognisable signature.
func Detect(filename string, data []byte) string {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return FormatWAV
	case bytes.HasPrefix(data, []byte("ID3")),
		len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3
	case bytes.HasPrefix(data, []byte("OggS")):
		return FormatOGG
	case bytes.HasPrefix(data, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return FormatWebM
	case bytes.HasPrefix(data, []byte("fLaC")):
		return FormatFLAC
	case len(data) >= 8 && string(data[4:8]) == "ftyp":
		return FormatM4A
	}

	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case "wav":
		return FormatWAV
	case "mp3", "mpeg", "mpga":
		return FormatMP3
	case "ogg", "oga", "opus":
		return FormatOGG
	case "webm":
		return FormatWebM
	case "flac":
		return FormatFLAC
	case "m4a", "mp4":
		return FormatM4A
	}
	return FormatUnknown
}

// NewClip wraps data, detecting its format.
func NewClip(filename string, data []byte) Clip {
	return Clip{Data: data, Format: Detect(filename, data)}
}
