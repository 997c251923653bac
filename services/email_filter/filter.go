package email_filter

import (
	"context"
	"strings"

	"github.com/opentracing/opentracing-go"

	"github.com/pawpal/petmail/dto"
	"github.com/pawpal/petmail/interfaces"
	"github.com/pawpal/petmail/internal/tracing"
)

var bounceSubjects = []string{
	"mail delivery failure",
	"undelivered mail returned to sender",
	"delivery status notification",
	"undeliverable",
	"undelivered",
	"delivery failure",
	"failure notice",
	"returned mail",
	"returned to sender",
}

type automatedMailFilter struct{}

func NewAutomatedMailFilter() interfaces.AutomatedMailFilter {
	return &automatedMailFilter{}
}

// IsAutomated reports bounces and auto replies. They would otherwise reach
// sender verification and ask the owner to approve a mailer daemon.
func (f *automatedMailFilter) IsAutomated(ctx context.Context, email *dto.ParsedEmail) (bool, string) {
	span, _ := opentracing.StartSpanFromContext(ctx, "automatedMailFilter.IsAutomated")
	defer span.Finish()
	tracing.TagComponentService(span)

	if automated, reason := f.isBounceNotification(email); automated {
		span.LogKV("automated", true, "reason", reason)
		return true, reason
	}
	if automated, reason := f.isAutoresponder(email); automated {
		span.LogKV("automated", true, "reason", reason)
		return true, reason
	}
	return false, ""
}

func (f *automatedMailFilter) isAutoresponder(email *dto.ParsedEmail) (bool, string) {
	autoSubmitted := strings.ToLower(email.Header("Auto-Submitted"))
	precedence := strings.ToLower(email.Header("Precedence"))

	switch {
	case autoSubmitted != "" && autoSubmitted != "no":
		return true, "AUTO-SUBMITTED header present"
	case email.Header("X-Autoreply") != "":
		return true, "X-AUTOREPLY header present"
	case email.Header("X-Autoresponse") != "":
		return true, "X-AUTORESPONSE header present"
	case email.Header("X-Loop") != "":
		return true, "X-LOOP header present"
	case precedence == "auto_reply":
		return true, "PRECEDENCE: AUTO_REPLY header present"
	default:
		return false, ""
	}
}

func (f *automatedMailFilter) isBounceNotification(email *dto.ParsedEmail) (bool, string) {
	from := email.SenderAddress()
	switch {
	case email.Header("X-Failed-Recipients") != "":
		return true, "X-FAILED-RECIPIENTS header present"
	case strings.EqualFold(email.Header("Content-Description"), "delivery report"):
		return true, "CONTENT-DESCRIPTION: DELIVERY REPORT header present"
	case hasBounceKeywords(email.Header("Return-Path")):
		return true, "RETURN-PATH contains bounce keywords"
	case hasBounceKeywords(from):
		return true, "FROM is a mailer daemon"
	case isBounceSubject(email.Subject):
		return true, "SUBJECT contains bounce keywords"
	default:
		return false, ""
	}
}

// noreply@ senders are left alone, practice management systems use them.
func hasBounceKeywords(value string) bool {
	value = strings.ToLower(value)
	return strings.Contains(value, "mailer-daemon") || strings.Contains(value, "postmaster@")
}

func isBounceSubject(subject string) bool {
	subject = strings.ToLower(subject)
	for _, phrase := range bounceSubjects {
		if strings.Contains(subject, phrase) {
			return true
		}
	}
	return false
}
