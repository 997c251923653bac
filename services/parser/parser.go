package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/jhillyerd/enmime"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/pawpal/petmail/dto"
	"github.com/pawpal/petmail/interfaces"
	petmailerrors "github.com/pawpal/petmail/internal/errors"
	"github.com/pawpal/petmail/internal/logger"
	"github.com/pawpal/petmail/internal/tracing"
	"github.com/pawpal/petmail/internal/utils"
)

// MaxAttachmentSize bounds a single attachment read from a webhook.
const MaxAttachmentSize = 25 << 20

type emailParser struct {
	log logger.Logger
}

func NewEmailParser(log logger.Logger) interfaces.EmailParser {
	return &emailParser{log: log}
}

// ParseMailgunForm reads a Mailgun inbound route post. When Mailgun forwards
// the full MIME message (body-mime) it is parsed with enmime and the form
// only contributes the envelope recipient and stripped text.
func (p *emailParser) ParseMailgunForm(ctx context.Context, form *multipart.Form) (*dto.ParsedEmail, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EmailParser.ParseMailgunForm")
	defer span.Finish()
	tracing.TagComponentWebhook(span)

	if form == nil || (len(form.Value) == 0 && len(form.File) == 0) {
		return nil, petmailerrors.ErrUnparseablePayload
	}

	if rawMime := formValue(form, "body-mime"); rawMime != "" {
		email, err := p.ParseRawMIME(ctx, []byte(rawMime))
		if err != nil {
			return nil, err
		}
		if recipient := formValue(form, "recipient"); recipient != "" {
			email.Recipient = recipient
		}
		email.StrippedText = formValue(form, "stripped-text")
		return email, nil
	}

	headers := messageHeaders(formValue(form, "message-headers"))

	email := &dto.ParsedEmail{
		Subject:      formValue(form, "subject"),
		Recipient:    formValue(form, "recipient"),
		TextBody:     formValue(form, "body-plain"),
		HTMLBody:     formValue(form, "body-html"),
		StrippedText: formValue(form, "stripped-text"),
		MessageID:    firstNonEmpty(formValue(form, "Message-Id"), headers["message-id"]),
		Date:         firstNonEmpty(formValue(form, "Date"), headers["date"]),
		To:           ParseAddressList(firstNonEmpty(formValue(form, "To"), headers["to"])),
		Cc:           ParseAddressList(firstNonEmpty(formValue(form, "Cc"), headers["cc"])),
		Headers:      headers,
	}

	if from, ok := ParseAddress(firstNonEmpty(formValue(form, "from"), formValue(form, "From"))); ok {
		email.From = &from
	} else if sender, ok := ParseAddress(formValue(form, "sender")); ok {
		email.From = &sender
	}

	if email.TextBody == "" && email.HTMLBody != "" {
		if text, err := htmlToPlainText(email.HTMLBody); err == nil {
			email.TextBody = text
		}
	}

	email.Attachments = p.readFormAttachments(ctx, form)
	span.LogKV("attachments", len(email.Attachments))

	return email, nil
}

func (p *emailParser) readFormAttachments(ctx context.Context, form *multipart.Form) []dto.ParsedAttachment {
	keys := make([]string, 0, len(form.File))
	for key := range form.File {
		if strings.HasPrefix(key, "attachment") {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return attachmentIndex(keys[i]) < attachmentIndex(keys[j]) })

	attachments := make([]dto.ParsedAttachment, 0, len(keys))
	for _, key := range keys {
		for _, fh := range form.File[key] {
			attachment, err := readFileHeader(fh)
			if err != nil {
				p.log.Warnf("dropping unreadable attachment %s (%s): %v", key, fh.Filename, err)
				continue
			}
			attachments = append(attachments, attachment)
		}
	}
	return attachments
}

func readFileHeader(fh *multipart.FileHeader) (dto.ParsedAttachment, error) {
	if fh.Size > MaxAttachmentSize {
		return dto.ParsedAttachment{}, fmt.Errorf("attachment too large: %d bytes", fh.Size)
	}
	f, err := fh.Open()
	if err != nil {
		return dto.ParsedAttachment{}, err
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, MaxAttachmentSize+1))
	if err != nil {
		return dto.ParsedAttachment{}, err
	}
	if len(content) == 0 {
		return dto.ParsedAttachment{}, errors.New("attachment is empty")
	}
	if len(content) > MaxAttachmentSize {
		return dto.ParsedAttachment{}, errors.New("attachment too large")
	}

	return buildAttachment(fh.Filename, fh.Header.Get("Content-Type"), content), nil
}

// ParseRawMIME parses a complete RFC 5322 message.
func (p *emailParser) ParseRawMIME(ctx context.Context, raw []byte) (*dto.ParsedEmail, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EmailParser.ParseRawMIME")
	defer span.Finish()
	tracing.TagComponentWebhook(span)

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, petmailerrors.ErrUnparseablePayload
	}

	envelope, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(petmailerrors.ErrUnparseablePayload, err.Error())
	}
	for _, perr := range envelope.Errors {
		p.log.Debugf("mime parse warning: %v", perr)
	}

	email := &dto.ParsedEmail{
		Subject:   envelope.GetHeader("Subject"),
		Date:      envelope.GetHeader("Date"),
		MessageID: envelope.GetHeader("Message-Id"),
		TextBody:  envelope.Text,
		HTMLBody:  envelope.HTML,
		To:        ParseAddressList(envelope.GetHeader("To")),
		Cc:        ParseAddressList(envelope.GetHeader("Cc")),
		Recipient: firstNonEmpty(envelope.GetHeader("X-Original-To"), envelope.GetHeader("Delivered-To")),
		Headers:   map[string]string{},
	}
	if envelope.Root != nil {
		for key, values := range envelope.Root.Header {
			if len(values) > 0 {
				email.Headers[strings.ToLower(key)] = values[0]
			}
		}
	}
	if from, ok := ParseAddress(envelope.GetHeader("From")); ok {
		email.From = &from
	}
	if email.TextBody == "" && email.HTMLBody != "" {
		if text, err := htmlToPlainText(email.HTMLBody); err == nil {
			email.TextBody = text
		}
	}

	email.Attachments = make([]dto.ParsedAttachment, 0, len(envelope.Attachments))
	for i, part := range envelope.Attachments {
		if len(part.Content) == 0 {
			p.log.Warnf("dropping empty mime attachment %d (%s)", i, part.FileName)
			continue
		}
		if len(part.Content) > MaxAttachmentSize {
			p.log.Warnf("dropping oversized mime attachment %d (%s)", i, part.FileName)
			continue
		}
		email.Attachments = append(email.Attachments, buildAttachment(part.FileName, part.ContentType, part.Content))
	}
	span.LogKV("attachments", len(email.Attachments))

	return email, nil
}

// buildAttachment recovers the content type from the bytes when the declared
// one is missing or generic.
func buildAttachment(filename, declaredType string, content []byte) dto.ParsedAttachment {
	contentType := strings.ToLower(strings.TrimSpace(strings.Split(declaredType, ";")[0]))
	if contentType == "" || contentType == "application/octet-stream" || contentType == "binary/octet-stream" {
		contentType = strings.Split(mimetype.Detect(content).String(), ";")[0]
	}
	if filename == "" {
		filename = "attachment." + utils.FileExtensionForContentType(contentType)
	}
	return dto.ParsedAttachment{
		Filename: filepath.Base(filename),
		MimeType: contentType,
		Size:     int64(len(content)),
		Content:  content,
	}
}

// messageHeaders decodes Mailgun's message-headers JSON list of pairs into a
// lower-cased map keeping the first value of each header.
func messageHeaders(raw string) map[string]string {
	headers := map[string]string{}
	if raw == "" {
		return headers
	}
	var pairs [][]string
	if err := json.Unmarshal([]byte(raw), &pairs); err != nil {
		return headers
	}
	for _, pair := range pairs {
		if len(pair) != 2 {
			continue
		}
		key := strings.ToLower(pair[0])
		if _, ok := headers[key]; !ok {
			headers[key] = pair[1]
		}
	}
	return headers
}

func formValue(form *multipart.Form, key string) string {
	if values, ok := form.Value[key]; ok && len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func attachmentIndex(key string) int {
	idx, err := strconv.Atoi(strings.TrimPrefix(strings.TrimPrefix(key, "attachment"), "-"))
	if err != nil {
		return 1 << 30
	}
	return idx
}
