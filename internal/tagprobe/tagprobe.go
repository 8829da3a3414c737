// Package tagprobe reads the artist/album/title triple out of an
// audio file's ID3v2 tag, for feeding straight into the search engine
// as a query (the tag-lookup CLI's one job). Grounded on
// github.com/tmthrgd/id3v2's examples/id3-music-renamer.go, which
// reads the same two frames (TIT2/TPE1) to rename files; this adds
// TALB for the release name the search engine also wants.
package tagprobe

import (
	"fmt"
	"io"
	"os"

	"github.com/tmthrgd/id3v2"
)

// Tags holds the fields a search query can be built from.
type Tags struct {
	Artist string
	Album  string
	Title  string
}

// ReadFile opens path and extracts its ID3v2 tag.
func ReadFile(path string) (Tags, error) {
	f, err := os.Open(path)
	if err != nil {
		return Tags{}, fmt.Errorf("tagprobe: open %s: %w", path, err)
	}
	defer f.Close()

	return Read(f)
}

// Read extracts the ID3v2 tag from r. TIT2 (title) must be present;
// TPE1 (artist) and TALB (album) are optional since some recordings
// carry only a title.
func Read(r io.Reader) (Tags, error) {
	frames, err := id3v2.Scan(r)
	if err != nil {
		return Tags{}, fmt.Errorf("tagprobe: scan: %w", err)
	}

	var tags Tags

	if f := frames.Lookup(id3v2.FrameTIT2); f != nil {
		text, err := f.Text()
		if err != nil {
			return Tags{}, fmt.Errorf("tagprobe: TIT2: %w", err)
		}
		tags.Title = text
	}
	if f := frames.Lookup(id3v2.FrameTPE1); f != nil {
		text, err := f.Text()
		if err != nil {
			return Tags{}, fmt.Errorf("tagprobe: TPE1: %w", err)
		}
		tags.Artist = text
	}
	if f := frames.Lookup(id3v2.FrameTALB); f != nil {
		text, err := f.Text()
		if err != nil {
			return Tags{}, fmt.Errorf("tagprobe: TALB: %w", err)
		}
		tags.Album = text
	}

	if tags.Title == "" {
		return Tags{}, fmt.Errorf("tagprobe: no TIT2 (title) frame present")
	}

	return tags, nil
}
