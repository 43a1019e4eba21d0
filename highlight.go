package reprompt

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// HighlightKind tags a highlighted range.
type HighlightKind string

// Highlight kinds.
const (
	HighlightSectionHeader HighlightKind = "sectionHeader"
	HighlightSectionBody   HighlightKind = "sectionBody"
	// HighlightNone marks plain text in a Segment.
	HighlightNone HighlightKind = ""
)

// Highlight is a half-open byte range [StartIndex, EndIndex) of the source
// text. Text is the substring the range covers.
type Highlight struct {
	Text       string        `json:"text"`
	Kind       HighlightKind `json:"kind"`
	Section    Section       `json:"section"`
	StartIndex int           `json:"startIndex"`
	EndIndex   int           `json:"endIndex"`
}

// Segment is one run of text produced by Segments.
type Segment struct {
	Text    string
	Kind    HighlightKind
	Section Section
}

// Detection order. Display order comes from the final sort.
var sectionLabels = []struct {
	section Section
	pattern *regexp.Regexp
}{
	{SectionRules, regexp.MustCompile(`(?i)Rules:`)},
	{SectionTask, regexp.MustCompile(`(?i)Task:`)},
	{SectionExamples, regexp.MustCompile(`(?i)Examples:`)},
}

type labelMatch struct {
	section    Section
	start, end int
}

// ExtractHighlights locates the Task:, Rules: and Examples: labels in text and
// returns a header and a body highlight for each label found, sorted by
// StartIndex.
//
// Only the first occurrence of each label counts, so a label word quoted
// inside another section's body is taken as that section's header. This is a
// known approximation, not a parse.
func ExtractHighlights(text string) []Highlight {
	matches := make([]labelMatch, 0, len(sectionLabels))
	for _, label := range sectionLabels {
		loc := label.pattern.FindStringIndex(text)
		if loc == nil {
			continue
		}
		matches = append(matches, labelMatch{section: label.section, start: loc[0], end: loc[1]})
	}

	highlights := make([]Highlight, 0, len(matches)*2)
	for _, m := range matches {
		highlights = append(highlights, Highlight{
			Text:       text[m.start:m.end],
			Kind:       HighlightSectionHeader,
			Section:    m.section,
			StartIndex: m.start,
			EndIndex:   m.end,
		})

		bodyEnd := len(text)
		for _, other := range matches {
			if other.section != m.section && other.start >= m.end && other.start < bodyEnd {
				bodyEnd = other.start
			}
		}

		trimmedEnd := m.end + len(strings.TrimRightFunc(text[m.end:bodyEnd], unicode.IsSpace))
		if trimmedEnd <= m.end {
			continue
		}

		highlights = append(highlights, Highlight{
			Text:       text[m.end:trimmedEnd],
			Kind:       HighlightSectionBody,
			Section:    m.section,
			StartIndex: m.end,
			EndIndex:   trimmedEnd,
		})
	}

	sort.SliceStable(highlights, func(i, j int) bool {
		return highlights[i].StartIndex < highlights[j].StartIndex
	})
	return highlights
}

// Segments splits text into consecutive plain and highlighted runs.
// Highlights are applied in StartIndex order; any that fall outside text or
// overlap an earlier one are ignored.
func Segments(text string, highlights []Highlight) []Segment {
	if text == "" {
		return nil
	}

	sorted := make([]Highlight, len(highlights))
	copy(sorted, highlights)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartIndex < sorted[j].StartIndex
	})

	var segments []Segment
	last := 0
	for _, h := range sorted {
		if h.StartIndex < last || h.EndIndex <= h.StartIndex || h.EndIndex > len(text) {
			continue
		}
		if h.StartIndex > last {
			segments = append(segments, Segment{Text: text[last:h.StartIndex], Kind: HighlightNone})
		}
		segments = append(segments, Segment{
			Text:    text[h.StartIndex:h.EndIndex],
			Kind:    h.Kind,
			Section: h.Section,
		})
		last = h.EndIndex
	}
	if last < len(text) {
		segments = append(segments, Segment{Text: text[last:], Kind: HighlightNone})
	}
	return segments
}
