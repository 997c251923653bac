package parser

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/customeros/mailsherpa/mailvalidate"

	"github.com/pawpal/petmail/dto"
)

var namedAddressRegex = regexp.MustCompile(`^\s*"?([^"<]*?)"?\s*<([^>]+)>\s*$`)

// ParseAddress accepts both `Name <addr>` and a bare `addr`.
func ParseAddress(raw string) (dto.Address, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return dto.Address{}, false
	}

	var name, email string
	if parsed, err := mail.ParseAddress(raw); err == nil {
		name, email = parsed.Name, parsed.Address
	} else if m := namedAddressRegex.FindStringSubmatch(raw); m != nil {
		name, email = strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	} else {
		email = strings.Trim(raw, "<>\" ")
	}

	validation := mailvalidate.ValidateEmailSyntax(email)
	if !validation.IsValid {
		return dto.Address{}, false
	}
	return dto.Address{Name: name, Email: validation.CleanEmail}, true
}

// ParseAddressList splits a comma separated header value. Unparseable
// entries are dropped.
func ParseAddressList(raw string) []dto.Address {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []dto.Address{}
	}

	if list, err := mail.ParseAddressList(raw); err == nil {
		out := make([]dto.Address, 0, len(list))
		for _, a := range list {
			if addr, ok := ParseAddress(a.String()); ok {
				out = append(out, addr)
			}
		}
		return out
	}

	out := make([]dto.Address, 0)
	for _, part := range splitAddressList(raw) {
		if addr, ok := ParseAddress(part); ok {
			out = append(out, addr)
		}
	}
	return out
}

// splitAddressList splits on commas outside quotes and angle brackets.
func splitAddressList(raw string) []string {
	var parts []string
	var current strings.Builder
	inQuotes, inAngle := false, false
	for _, r := range raw {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == '<' && !inQuotes:
			inAngle = true
		case r == '>' && !inQuotes:
			inAngle = false
		case r == ',' && !inQuotes && !inAngle:
			parts = append(parts, current.String())
			current.Reset()
			continue
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}
