// Package mailbridge turns inbound client email into communication threads.
package mailbridge

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	NoText    = "(no text)"
	NoSubject = "(no subject)"
)

var (
	replyPrefix = regexp.MustCompile(`(?i)^(re|fwd?|ответ)\s*:\s*`)
	subjectTag  = regexp.MustCompile(`\[[^\]]*\]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// NormalizeSubject reduces a subject to the form threads are matched on:
// reply and forward prefixes and [tags] removed, whitespace collapsed,
// NFKC-normalised and lower-cased. The NoSubject placeholder stored for
// subjectless mail normalizes to "" like an empty subject.
func NormalizeSubject(subject string) string {
	s := norm.NFKC.String(subject)
	s = subjectTag.ReplaceAllString(s, " ")
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	for {
		stripped := strings.TrimSpace(replyPrefix.ReplaceAllString(s, ""))
		if stripped == s {
			break
		}
		s = stripped
	}
	s = strings.ToLower(s)
	if s == NoSubject {
		return ""
	}
	return s
}

var quoteMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^On .+(?:\n[ \t]*)?wrote:`),
	regexp.MustCompile(`(?im)^От: `),
	regexp.MustCompile(`(?im)^С: `),
	regexp.MustCompile(`(?im)^From: `),
	regexp.MustCompile(`(?m)^>( |$)`),
	regexp.MustCompile(`(?im)^-----Original Message-----`),
}

// ExtractReply keeps the text above the first quoted-reply marker.
func ExtractReply(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	cut := len(text)
	for _, marker := range quoteMarkers {
		if loc := marker.FindStringIndex(text); loc != nil && loc[0] < cut {
			cut = loc[0]
		}
	}
	reply := strings.TrimSpace(text[:cut])
	if reply == "" {
		return NoText
	}
	return reply
}
