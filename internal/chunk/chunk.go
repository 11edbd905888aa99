// Package chunk splits normalized page text into bounded, heading-tagged
// passages for triage and extraction. Splitting is deterministic and pure:
// the same input always yields the same chunk boundaries.
package chunk

import (
	"strings"
	"unicode/utf8"
)

// minMeaningfulChars is the input length below which a document carries too
// little signal to process at all.
const minMeaningfulChars = 200

// headingMaxChars is the longest first line still treated as a heading hint.
const headingMaxChars = 80

// Chunk is one bounded passage of a source document. Chunks are ephemeral
// units of work, never persisted.
type Chunk struct {
	Index   int
	Heading string
	Text    string
}

// Split breaks cleanText into at most maxChunks chunks of at most maxChars
// bytes each. Text is split on blank-line boundaries into paragraphs which
// are packed greedily; a single paragraph longer than maxChars is hard-split
// into fixed-size slices rather than dropped, with cut points backed off to
// rune boundaries so multi-byte text never splits mid-rune. All length
// thresholds count bytes. Inputs shorter than 200 bytes yield no chunks; any
// longer input yields at least one.
func Split(cleanText string, maxChars, maxChunks int) []Chunk {
	text := strings.TrimSpace(cleanText)
	if len(text) < minMeaningfulChars {
		return nil
	}

	paras := paragraphs(text)
	if len(paras) == 0 {
		paras = []string{text}
	}

	var chunks []string
	var cur []string
	curLen := 0

	flush := func() {
		if len(cur) == 0 {
			return
		}
		if joined := strings.TrimSpace(strings.Join(cur, "\n\n")); joined != "" {
			chunks = append(chunks, joined)
		}
		cur = nil
		curLen = 0
	}

	for _, p := range paras {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		if curLen+len(p)+2 > maxChars && len(cur) > 0 {
			flush()
		}

		// A paragraph that alone exceeds the budget is hard-split so no
		// text is silently lost.
		if len(p) > maxChars {
			for start := 0; start < len(p); {
				end := runeFloor(p, start+maxChars)
				if end <= start {
					end = len(p)
				}
				if part := strings.TrimSpace(p[start:end]); part != "" {
					chunks = append(chunks, part)
				}
				start = end
			}
			continue
		}

		cur = append(cur, p)
		curLen += len(p) + 2

		if len(chunks) >= maxChunks {
			break
		}
	}
	flush()

	// A non-trivial document must never be silently skipped.
	if len(chunks) == 0 {
		chunks = []string{text[:runeFloor(text, maxChars)]}
	}

	if len(chunks) > maxChunks {
		chunks = chunks[:maxChunks]
	}

	out := make([]Chunk, 0, len(chunks))
	for i, c := range chunks {
		out = append(out, Chunk{Index: i + 1, Heading: headingFor(c), Text: c})
	}
	return out
}

// runeFloor backs a byte offset off to the nearest rune boundary at or
// before it, so slicing at the returned offset never cuts mid-rune.
func runeFloor(s string, end int) int {
	if end >= len(s) {
		return len(s)
	}
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	return end
}

// paragraphs groups contiguous non-blank lines, joining them with single
// spaces; blank lines delimit paragraphs.
func paragraphs(text string) []string {
	var paras []string
	var buf []string
	for _, line := range strings.Split(text, "\n") {
		ln := strings.TrimSpace(line)
		if ln == "" {
			if len(buf) > 0 {
				paras = append(paras, strings.Join(buf, " "))
				buf = nil
			}
			continue
		}
		buf = append(buf, ln)
	}
	if len(buf) > 0 {
		paras = append(paras, strings.Join(buf, " "))
	}
	return paras
}

// headingFor returns the chunk's first line when it is short enough to look
// like a heading, else a generic marker. A hint for triage, not a structural
// guarantee.
func headingFor(c string) string {
	firstLine := c
	if i := strings.IndexByte(c, '\n'); i >= 0 {
		firstLine = c[:i]
	}
	firstLine = strings.TrimSpace(firstLine)
	if len(firstLine) > 0 && len(firstLine) <= headingMaxChars {
		return firstLine
	}
	return "BODY"
}
