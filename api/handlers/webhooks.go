package handlers

import (
	"context"
	"encoding/base64"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	apierrors "github.com/pawpal/petmail/api/errors"
	"github.com/pawpal/petmail/dto"
	"github.com/pawpal/petmail/interfaces"
	petmailerrors "github.com/pawpal/petmail/internal/errors"
	"github.com/pawpal/petmail/internal/logger"
	"github.com/pawpal/petmail/internal/tracing"
	"github.com/pawpal/petmail/internal/utils"
)

const (
	// mailgun caps messages at 25MB before transfer encoding
	maxWebhookBodyBytes = 64 << 20
	maxFormMemoryBytes  = 32 << 20
)

type WebhookHandler struct {
	verifier  interfaces.SignatureVerifier
	parser    interfaces.EmailParser
	processor interfaces.EmailProcessor
	log       logger.Logger
}

func NewWebhookHandler(verifier interfaces.SignatureVerifier, parser interfaces.EmailParser, processor interfaces.EmailProcessor, log logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifier:  verifier,
		parser:    parser,
		processor: processor,
		log:       log,
	}
}

// InboundRequest is the body of the raw MIME webhook. Raw is the base64
// encoded RFC 5322 message.
type InboundRequest struct {
	Recipient string `json:"recipient"`
	Sender    string `json:"sender"`
	Raw       string `json:"raw" binding:"required"`
}

// MailgunInbound handles Mailgun inbound route posts. The signature is
// checked before anything in the payload is trusted.
func (h *WebhookHandler) MailgunInbound() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "WebhookHandler.MailgunInbound")
		defer span.Finish()
		tracing.TagComponentWebhook(span)

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
		form, err := readForm(c)
		if err != nil {
			tracing.TraceErr(span, err)
			h.respondError(c, errors.Wrap(petmailerrors.ErrUnparseablePayload, err.Error()))
			return
		}
		defer form.RemoveAll() // nolint: errcheck

		token := firstValue(form, "token")
		if !h.verifier.Verify(ctx, firstValue(form, "timestamp"), token, firstValue(form, "signature")) {
			h.log.Warnf("rejected mailgun webhook with invalid signature from %s", c.ClientIP())
			h.respondError(c, petmailerrors.ErrInvalidSignature)
			return
		}
		defer h.spendToken(ctx, c, token)

		email, err := h.parser.ParseMailgunForm(ctx, form)
		if err != nil {
			tracing.TraceErr(span, err)
			h.respondError(c, err)
			return
		}

		h.process(ctx, c, span, email)
	}
}

// RawInbound handles the JSON webhook carrying a full MIME message. The
// envelope recipient overrides the To header; the envelope sender is only
// used when the message has no From.
func (h *WebhookHandler) RawInbound() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "WebhookHandler.RawInbound")
		defer span.Finish()
		tracing.TagComponentWebhook(span)

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
		var request InboundRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			tracing.TraceErr(span, err)
			h.respondError(c, errors.Wrap(petmailerrors.ErrUnparseablePayload, err.Error()))
			return
		}
		span.LogKV("recipient", request.Recipient, "sender", request.Sender)

		raw, err := decodeBase64(request.Raw)
		if err != nil {
			tracing.TraceErr(span, err)
			h.respondError(c, errors.Wrap(petmailerrors.ErrUnparseablePayload, "raw is not valid base64"))
			return
		}

		email, err := h.parser.ParseRawMIME(ctx, raw)
		if err != nil {
			tracing.TraceErr(span, err)
			h.respondError(c, err)
			return
		}
		if recipient := strings.TrimSpace(request.Recipient); recipient != "" {
			email.Recipient = recipient
		}
		if email.SenderAddress() == "" && request.Sender != "" {
			email.From = &dto.Address{Email: utils.NormalizeEmailAddress(request.Sender)}
		}

		h.process(ctx, c, span, email)
	}
}

func (h *WebhookHandler) process(ctx context.Context, c *gin.Context, span opentracing.Span, email *dto.ParsedEmail) {
	response, err := h.processor.Process(ctx, email)
	if err != nil {
		tracing.TraceErr(span, err)
		if apierrors.StatusCode(err) == http.StatusInternalServerError {
			h.log.Errorf("inbound email %s failed: %v", email.MessageID, err)
		}
		h.respondError(c, err)
		return
	}
	span.LogKV("status", response.Status, "success", response.Success)

	// a failed pipeline has already released its lock, retrying cannot help
	c.JSON(http.StatusOK, response)
}

// spendToken burns the webhook token unless the answer invites a retry. A
// panic leaves nothing written yet, and recovery answers 500.
func (h *WebhookHandler) spendToken(ctx context.Context, c *gin.Context, token string) {
	if !c.Writer.Written() || c.Writer.Status() >= http.StatusInternalServerError {
		return
	}
	h.verifier.Consume(ctx, token)
}

func (h *WebhookHandler) respondError(c *gin.Context, err error) {
	code, body := apierrors.NewErrorResponse(err)
	c.JSON(code, body)
}

// readForm accepts multipart posts and the urlencoded posts Mailgun sends
// for messages without attachments.
func readForm(c *gin.Context) (*multipart.Form, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.Request.ParseMultipartForm(maxFormMemoryBytes); err != nil {
			return nil, err
		}
		return c.Request.MultipartForm, nil
	}
	if err := c.Request.ParseForm(); err != nil {
		return nil, err
	}
	return &multipart.Form{Value: c.Request.PostForm}, nil
}

func firstValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

func decodeBase64(value string) ([]byte, error) {
	value = strings.Join(strings.Fields(value), "")
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
		return decoded, nil
	}
	return base64.RawStdEncoding.DecodeString(value)
}
