package chunker

import (
	"fmt"
	"strings"
)

// Chunk is a bounded text segment extracted from a document for indexing.
// Start and End are byte offsets into the source text; consecutive chunks
// overlap by the configured overlap, so Start of chunk i+1 equals End of
// chunk i minus the overlap.
type Chunk struct {
	ID       string
	Document string
	Index    int
	Text     string
	Start    int
	End      int
}

// Chunker splits raw document text into overlapping fixed-size segments.
type Chunker struct {
	size    int
	overlap int
}

// sentence boundaries considered when snapping a chunk end, in the order the
// original splitter probes them.
var boundaries = []string{". ", ".\n", "!\n", "?\n"}

// New validates the chunking parameters. Overlap must be smaller than size so
// every iteration makes forward progress.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be > 0, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, size), got %d", overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split produces the ordered chunk sequence covering text. Chunk ends snap to
// a sentence boundary when one falls in the last 30% of the window; the final
// chunk may be shorter than the configured size. Concatenating the chunks and
// dropping each chunk's leading overlap reconstructs the input exactly.
func (c *Chunker) Split(document, text string) []Chunk {
	if text == "" {
		return nil
	}
	var chunks []Chunk
	start := 0
	index := 0
	for start < len(text) {
		end := start + c.size
		if end > len(text) {
			end = len(text)
		}
		if end < len(text) {
			if snapped, ok := snapToBoundary(text[start:end], c.size); ok {
				end = start + snapped
			}
		}
		chunks = append(chunks, Chunk{
			ID:       fmt.Sprintf("%s_%d", document, index),
			Document: document,
			Index:    index,
			Text:     text[start:end],
			Start:    start,
			End:      end,
		})
		index++
		if end == len(text) {
			break
		}
		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// snapToBoundary finds the last sentence boundary inside window, accepting it
// only when it keeps at least 70% of the target size.
func snapToBoundary(window string, size int) (int, bool) {
	for _, b := range boundaries {
		pos := strings.LastIndex(window, b)
		if pos < 0 {
			continue
		}
		cut := pos + len(b)
		if float64(cut) > float64(size)*0.7 {
			return cut, true
		}
	}
	return 0, false
}

// Reassemble reverses Split: it concatenates chunks, dropping each chunk's
// overlap with its predecessor. Used to verify lossless chunking.
func Reassemble(chunks []Chunk) string {
	var sb strings.Builder
	prevEnd := 0
	for i, ch := range chunks {
		if i == 0 {
			sb.WriteString(ch.Text)
			prevEnd = ch.End
			continue
		}
		skip := prevEnd - ch.Start
		if skip < 0 {
			skip = 0
		}
		if skip > len(ch.Text) {
			skip = len(ch.Text)
		}
		sb.WriteString(ch.Text[skip:])
		prevEnd = ch.End
	}
	return sb.String()
}
