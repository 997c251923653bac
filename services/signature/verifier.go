package signature

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/pawpal/petmail/config"
	"github.com/pawpal/petmail/interfaces"
	"github.com/pawpal/petmail/internal/logger"
	"github.com/pawpal/petmail/internal/tracing"
)

const (
	DefaultReplayWindow = 900 * time.Second

	// unix seconds with at most 10 digits, good until 2286
	maxTimestamp = 9_999_999_999
)

// TokenCache remembers spent webhook tokens so a captured request cannot be
// replayed inside the timestamp window.
type TokenCache interface {
	Seen(ctx context.Context, token string) (bool, error)
	Remember(ctx context.Context, token string) error
}

type verifier struct {
	secret string
	window time.Duration
	cache  TokenCache
	log    logger.Logger
	now    func() time.Time
}

func NewSignatureVerifier(cfg *config.MailgunConfig, cache TokenCache, log logger.Logger) interfaces.SignatureVerifier {
	window := cfg.ReplayWindow
	if window <= 0 {
		window = DefaultReplayWindow
	}
	return &verifier{
		secret: cfg.WebhookSigningKey,
		window: window,
		cache:  cache,
		log:    log,
		now:    time.Now,
	}
}

func (v *verifier) Verify(ctx context.Context, timestamp, token, signature string) bool {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SignatureVerifier.Verify")
	defer span.Finish()
	tracing.TagComponentWebhook(span)

	if !Verify(timestamp, token, signature, v.secret, v.now(), v.window) {
		span.SetTag("valid", false)
		return false
	}

	if v.cache != nil {
		seen, err := v.cache.Seen(ctx, token)
		if err != nil {
			// cache outage must not block mail intake
			v.log.Warnf("token replay cache unavailable: %v", err)
		} else if seen {
			v.log.Warnf("rejecting replayed webhook token")
			span.SetTag("replay", true)
			return false
		}
	}

	span.SetTag("valid", true)
	return true
}

// Consume marks token as spent. Callers spend it only once the request got an
// answer the provider will not retry, so a redelivery after a 5xx still verifies.
func (v *verifier) Consume(ctx context.Context, token string) {
	if v.cache == nil || token == "" {
		return
	}
	span, ctx := opentracing.StartSpanFromContext(ctx, "SignatureVerifier.Consume")
	defer span.Finish()
	tracing.TagComponentWebhook(span)

	if err := v.cache.Remember(ctx, token); err != nil {
		tracing.TraceErr(span, err)
		v.log.Warnf("failed to remember webhook token: %v", err)
	}
}

// Verify checks a Mailgun style webhook signature: the hex HMAC-SHA256 of
// timestamp+token keyed with secret, with timestamp no further than window
// from now.
func Verify(timestamp, token, signature, secret string, now time.Time, window time.Duration) bool {
	if secret == "" || timestamp == "" || token == "" || signature == "" {
		return false
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(timestamp), 10, 64)
	if err != nil || ts <= 0 || ts > maxTimestamp {
		return false
	}
	// seconds on both sides, a Duration product overflows for far off timestamps
	skew := now.Unix() - ts
	if skew < 0 {
		skew = -skew
	}
	if skew > int64(window/time.Second) {
		return false
	}

	expected := Sign(timestamp, token, secret)
	provided := strings.ToLower(strings.TrimSpace(signature))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}

// Sign returns the lower-case hex signature for timestamp and token.
func Sign(timestamp, token, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + token))
	return hex.EncodeToString(mac.Sum(nil))
}
