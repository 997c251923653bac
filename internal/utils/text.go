package utils

import (
	"regexp"
	"strings"
)

var (
	unsafePathChars   = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)
	repeatedUnderline = regexp.MustCompile(`_+`)
	replyHeaderLine   = regexp.MustCompile(`(?i)^\s*(on\s.+wrote:|le\s.+a écrit\s?:|am\s.+schrieb.+:|-{2,}\s*original message\s*-{2,})$`)
)

// SanitizePathSegment turns an arbitrary string into something safe to use
// as a single object storage path segment.
func SanitizePathSegment(s string) string {
	s = strings.TrimSpace(s)
	s = unsafePathChars.ReplaceAllString(s, "_")
	s = repeatedUnderline.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_.")
	if s == "" {
		return "file"
	}
	return s
}

// StripQuotedReply removes reply-chain content: everything from the first
// "On ... wrote:" style header and any ">" quoted lines.
func StripQuotedReply(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	lines := strings.Split(body, "\n")

	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if replyHeaderLine.MatchString(line) {
			break
		}
		if strings.HasPrefix(strings.TrimSpace(line), ">") {
			continue
		}
		kept = append(kept, line)
	}

	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}
