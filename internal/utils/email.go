package utils

import (
	"strings"
)

// NormalizeEmailAddress lowercases and trims an address, dropping any
// "Name <addr>" wrapper.
func NormalizeEmailAddress(email string) string {
	email = strings.TrimSpace(email)

	if strings.Contains(email, "<") && strings.Contains(email, ">") {
		startIdx := strings.LastIndex(email, "<") + 1
		endIdx := strings.LastIndex(email, ">")
		if startIdx > 0 && endIdx > startIdx {
			email = email[startIdx:endIdx]
		}
	}

	return strings.ToLower(strings.TrimSpace(email))
}

// ExtractLocalPart returns the part of the address before the @, without any
// +tag suffix.
func ExtractLocalPart(email string) string {
	email = NormalizeEmailAddress(email)
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return ""
	}
	local := email[:at]
	if plus := strings.Index(local, "+"); plus > 0 {
		local = local[:plus]
	}
	return local
}


// ExtractDomainFromEmail returns the lowercased domain of an address.
func ExtractDomainFromEmail(email string) string {
	email = NormalizeEmailAddress(email)
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return email[at+1:]
}
