package dto

import "strings"

type Address struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	return a.Name + " <" + a.Email + ">"
}

// ParsedAttachment holds decoded attachment bytes. Content is base64 encoded
// when marshalled to JSON.
type ParsedAttachment struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
	Content  []byte `json:"content"`
}

type ParsedEmail struct {
	From         *Address           `json:"from,omitempty"`
	To           []Address          `json:"to"`
	Cc           []Address          `json:"cc"`
	Recipient    string             `json:"recipient,omitempty"`
	Subject      string             `json:"subject"`
	Date         string             `json:"date,omitempty"`
	MessageID    string             `json:"messageId,omitempty"`
	TextBody     string             `json:"textBody,omitempty"`
	HTMLBody     string             `json:"htmlBody,omitempty"`
	StrippedText string             `json:"strippedText,omitempty"`
	Attachments  []ParsedAttachment `json:"attachments"`
	// Headers holds the first value of each top level header, keys lowercased.
	Headers      map[string]string  `json:"headers,omitempty"`
}

func (e *ParsedEmail) Header(name string) string {
	if e.Headers == nil {
		return ""
	}
	return e.Headers[strings.ToLower(name)]
}

// RecipientAddress is the envelope recipient, falling back to the first To.
func (e *ParsedEmail) RecipientAddress() string {
	if r := strings.TrimSpace(e.Recipient); r != "" {
		return r
	}
	for _, to := range e.To {
		if to.Email != "" {
			return to.Email
		}
	}
	return ""
}

func (e *ParsedEmail) SenderAddress() string {
	if e.From == nil {
		return ""
	}
	return e.From.Email
}

func AddressList(addresses []Address) []string {
	out := make([]string, 0, len(addresses))
	for _, a := range addresses {
		out = append(out, a.String())
	}
	return out
}
