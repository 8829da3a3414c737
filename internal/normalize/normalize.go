// Package normalize folds free-text artist, release, and recording
// names into the canonical romanized ASCII fingerprint the fuzzy index
// is built and queried against.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/rainycape/unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxLength is the longest encoded string this package ever produces.
// Truncation happens after transliteration, never before.
const MaxLength = 30

var (
	// wordClass matches everything that is not a letter, digit,
	// underscore or space in any script, mirroring the Unicode-aware
	// Python re.sub(r'[^\w ]+', '', text) step, so non-Latin names
	// survive to be transliterated below.
	wordClass = regexp.MustCompile(`[^\p{L}\p{N}_ ]+`)

	// spaceOrUnderscoreRuns collapses runs of space/underscore to nothing,
	// matching re.sub("[ _]+", "", text).
	spaceOrUnderscoreRuns = regexp.MustCompile(`[ _]+`)

	// nfkcFold canonicalizes width/compatibility variants (full-width
	// Latin, combining marks, etc.) before handing off to unidecode, so
	// e.g. fullwidth "Ｃｏｍｅ" folds the same as "Come".
	nfkcFold = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFKC)
)

// Encode applies the full normalization pipeline: strip non-word
// characters, collapse whitespace/underscore runs, transliterate to
// ASCII, lowercase, and truncate to MaxLength bytes. Returns ("",
// false) for empty input or input that encodes to nothing usable.
func Encode(text string) (string, bool) {
	return encode(text, true)
}

// EncodeLoose performs the same pipeline but skips the non-word-class
// stripping step, so punctuation survives transliteration. Used for
// artist names that would otherwise encode to empty, e.g. "!!!".
func EncodeLoose(text string) (string, bool) {
	return encode(text, false)
}

func encode(text string, stripPunctuation bool) (string, bool) {
	if text == "" {
		return "", false
	}

	if stripPunctuation {
		text = wordClass.ReplaceAllString(text, "")
	}
	text = spaceOrUnderscoreRuns.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	if folded, _, err := transform.String(nfkcFold, text); err == nil {
		text = folded
	}

	text = unidecode.Unidecode(text)
	// unidecode inserts a trailing space after each transliterated
	// multi-codepoint character (CJK etc.); strip those too so the
	// result is idempotent under a second encode() pass.
	text = spaceOrUnderscoreRuns.ReplaceAllString(text, "")
	text = strings.ToLower(text)

	if len(text) > MaxLength {
		text = text[:MaxLength]
	}

	if text == "" {
		return "", false
	}
	return text, true
}
