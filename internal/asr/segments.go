package asr

import "strings"

// transcriptLog accumulates committed segments plus the newest interim
// hypothesis. Recognizers revise interim text freely, so an interim only
// becomes a segment once it is finalized or replaced by unrelated speech.
type transcriptLog struct {
	segments []string
	interim  string
}

func (l *transcriptLog) record(h Hypothesis) {
	text := normalizeSpace(h.Transcript)
	if text == "" {
		return
	}
	if h.Final {
		l.segments = mergeSegment(l.segments, text)
		l.interim = ""
		return
	}
	if l.interim != "" && !revises(l.interim, text) {
		l.segments = mergeSegment(l.segments, l.interim)
	}
	l.interim = text
}

// text joins committed segments and any trailing interim.
func (l *transcriptLog) text() string {
	segments := append([]string(nil), l.segments...)
	if l.interim != "" {
		segments = mergeSegment(segments, l.interim)
	}
	return strings.Join(segments, " ")
}

// mergeSegment appends text unless it restates or extends the last segment.
func mergeSegment(segments []string, text string) []string {
	if text == "" {
		return segments
	}
	if len(segments) == 0 {
		return append(segments, text)
	}

	last := segments[len(segments)-1]
	switch {
	case strings.HasPrefix(last, text):
		return segments
	case strings.HasPrefix(text, last):
		segments[len(segments)-1] = text
		return segments
	default:
		return append(segments, text)
	}
}

// revises reports whether next is a rewrite of prev rather than new speech:
// either is a prefix of the other, or at least half the shorter one's
// leading words agree.
func revises(prev, next string) bool {
	if strings.HasPrefix(next, prev) || strings.HasPrefix(prev, next) {
		return true
	}

	a, b := strings.Fields(prev), strings.Fields(next)
	shorter := min(len(a), len(b))
	if shorter == 0 {
		return true
	}
	shared := 0
	for shared < shorter && a[shared] == b[shared] {
		shared++
	}
	return shared*2 >= shorter
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
