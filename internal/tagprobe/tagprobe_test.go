package tagprobe

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildID3v23Tag assembles a minimal ID3v2.3 tag containing one
// ISO-8859-1 text frame per (id, text) pair, followed by trailing
// audio-like padding bytes. Mirrors the byte layout id3v2.Scan expects:
// a 10-byte tag header with a syncsafe size, then one 10-byte frame
// header (plain big-endian size for v2.3) plus a leading encoding byte
// per frame.
func buildID3v23Tag(t *testing.T, frames map[string]string) []byte {
	t.Helper()

	var body bytes.Buffer
	for id, text := range frames {
		require.Len(t, id, 4)

		data := append([]byte{0x00}, []byte(text)...) // 0x00 = ISO-8859-1

		body.WriteString(id)
		var size [4]byte
		binary.BigEndian.PutUint32(size[:], uint32(len(data)))
		body.Write(size[:])
		body.Write([]byte{0x00, 0x00}) // frame flags

		body.Write(data)
	}

	var out bytes.Buffer
	out.WriteString("ID3")
	out.Write([]byte{0x03, 0x00, 0x00}) // version 2.3, revision 0, flags 0

	var syncsafeSize [4]byte
	n := uint32(body.Len())
	syncsafeSize[0] = byte(n >> 21 & 0x7f)
	syncsafeSize[1] = byte(n >> 14 & 0x7f)
	syncsafeSize[2] = byte(n >> 7 & 0x7f)
	syncsafeSize[3] = byte(n & 0x7f)
	out.Write(syncsafeSize[:])

	out.Write(body.Bytes())
	out.Write(bytes.Repeat([]byte{0xff, 0xfb, 0x90, 0x00}, 16)) // trailing "audio"

	return out.Bytes()
}

func TestRead_ExtractsArtistAlbumTitle(t *testing.T) {
	tag := buildID3v23Tag(t, map[string]string{
		"TIT2": "Come Together",
		"TPE1": "The Beatles",
		"TALB": "Abbey Road",
	})

	tags, err := Read(bytes.NewReader(tag))
	require.NoError(t, err)
	assert.Equal(t, "Come Together", tags.Title)
	assert.Equal(t, "The Beatles", tags.Artist)
	assert.Equal(t, "Abbey Road", tags.Album)
}

func TestRead_MissingArtistAndAlbum_TitleOnlyStillSucceeds(t *testing.T) {
	tag := buildID3v23Tag(t, map[string]string{
		"TIT2": "Instrumental",
	})

	tags, err := Read(bytes.NewReader(tag))
	require.NoError(t, err)
	assert.Equal(t, "Instrumental", tags.Title)
	assert.Empty(t, tags.Artist)
	assert.Empty(t, tags.Album)
}

func TestRead_NoTitleFrame_ReturnsError(t *testing.T) {
	tag := buildID3v23Tag(t, map[string]string{
		"TPE1": "The Beatles",
	})

	_, err := Read(bytes.NewReader(tag))
	assert.Error(t, err)
}

func TestReadFile_MissingFile_ReturnsError(t *testing.T) {
	_, err := ReadFile("/nonexistent/path/does-not-exist.mp3")
	assert.Error(t, err)
}
