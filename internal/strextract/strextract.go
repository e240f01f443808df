// Package strextract implements printable-string extraction over an
// image, backing the `strings` CLI. Grounded on analysis/strings.c's
// extract_strings: scan every byte, accumulate a run of printable
// characters (plus tab and newline), and flush the run — tagged with its
// starting file offset — once it breaks or the image ends, discarding
// runs shorter than min_len.
package strextract

import "github.com/0xWelsh/rekit/internal/image"

// Match is one extracted string and the file offset it starts at.
type Match struct {
	Offset int64
	Value  string
}

func printable(b byte) bool {
	return (b >= 0x20 && b < 0x7F) || b == '\t' || b == '\n'
}

// Extract returns every printable run of at least minLen bytes in im.
func Extract(im *image.Image, minLen int) ([]Match, error) {
	if minLen < 1 {
		minLen = 1
	}
	data, err := im.Bytes(0, im.Len())
	if err != nil {
		return nil, err
	}

	var matches []Match
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		if end-start >= minLen {
			matches = append(matches, Match{Offset: int64(start), Value: string(data[start:end])})
		}
		start = -1
	}

	for i, b := range data {
		if printable(b) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(data))
	return matches, nil
}
