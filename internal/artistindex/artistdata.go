package artistindex

import (
	"context"
	"fmt"
	"os"

	"github.com/mayhem/fuzzyindex/internal/binio"
	"github.com/mayhem/fuzzyindex/internal/normalize"
	"github.com/mayhem/fuzzyindex/internal/store"
)

// WriteArtistDataFiles emits the two flat artist-name lookup files used
// by a separate artist-name lookup front-end: artistDataPath holds one
// <u32 id><u32 text_len><text> record per
// artist whose strictly-encoded name is non-empty, stupidArtistDataPath
// the same keyed by the loosely-encoded name. An artist whose name
// encodes to "" under a given scheme is omitted from that scheme's
// file, since there would be nothing for the front-end to match on.
func WriteArtistDataFiles(ctx context.Context, db *store.DB, artistDataPath, stupidArtistDataPath string) error {
	artists, err := db.DistinctArtists(ctx)
	if err != nil {
		return fmt.Errorf("artistindex: write artist data: %w", err)
	}

	strict := binio.NewWriter()
	loose := binio.NewWriter()

	for _, a := range artists {
		if encoded, ok := normalize.Encode(a.ArtistCreditName); ok {
			strict.WriteU32(a.ArtistCreditID)
			strict.WriteString(encoded)
		}
		if encoded, ok := normalize.EncodeLoose(a.ArtistCreditName); ok {
			loose.WriteU32(a.ArtistCreditID)
			loose.WriteString(encoded)
		}
	}

	if err := os.WriteFile(artistDataPath, strict.Bytes(), 0o644); err != nil {
		return fmt.Errorf("artistindex: write %s: %w", artistDataPath, err)
	}
	if err := os.WriteFile(stupidArtistDataPath, loose.Bytes(), 0o644); err != nil {
		return fmt.Errorf("artistindex: write %s: %w", stupidArtistDataPath, err)
	}
	return nil
}

// ReadArtistDataFile parses a file written by WriteArtistDataFiles back
// into an id->text map, used by tests and by tooling that wants to
// inspect what was emitted without re-running the query.
func ReadArtistDataFile(path string) (map[uint32]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("artistindex: read artist data %s: %w", path, err)
	}

	out := make(map[uint32]string)
	r := binio.NewReader(data)
	for r.Remaining() > 0 {
		id, err := r.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("artistindex: corrupt artist data %s: %w", path, err)
		}
		text, err := r.ReadString()
		if err != nil {
			return nil, fmt.Errorf("artistindex: corrupt artist data %s: %w", path, err)
		}
		out[id] = text
	}
	return out, nil
}
