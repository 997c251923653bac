package sender

import (
	"context"
	"fmt"
	"time"

	"github.com/customeros/mailwatcher/blscan"
	"github.com/customeros/mailwatcher/domainage"
	"github.com/opentracing/opentracing-go"

	"github.com/pawpal/petmail/dto"
	"github.com/pawpal/petmail/interfaces"
	"github.com/pawpal/petmail/internal/logger"
	"github.com/pawpal/petmail/internal/tracing"
)

const DefaultReputationTimeout = 10 * time.Second

type domainReputation struct {
	timeout          time.Duration
	log              logger.Logger
	agePenalty       func(domain string) (int, error)
	blacklistPenalty func(domain string) int
}

// NewDomainReputation checks domain age (WHOIS) and blacklist listings (DNSBL)
// for a sender domain.
func NewDomainReputation(timeout time.Duration, log logger.Logger) interfaces.SenderReputation {
	if timeout <= 0 {
		timeout = DefaultReputationTimeout
	}
	return &domainReputation{
		timeout:          timeout,
		log:              log,
		agePenalty:       domainAgePenalty,
		blacklistPenalty: blacklistPenaltyPercent,
	}
}

type agePenaltyResult struct {
	penalty int
	err     error
}

// Score runs both lookups in parallel. Neither takes a context, so a lookup
// that outlives the timeout finishes in the background and is ignored.
func (r *domainReputation) Score(ctx context.Context, domain string) *dto.SenderReputation {
	span, ctx := opentracing.StartSpanFromContext(ctx, "DomainReputation.Score")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("domain", domain)

	if domain == "" {
		return nil
	}

	ageCh := make(chan agePenaltyResult, 1)
	blacklistCh := make(chan int, 1)
	go func() {
		penalty, err := r.agePenalty(domain)
		ageCh <- agePenaltyResult{penalty: penalty, err: err}
	}()
	go func() {
		blacklistCh <- r.blacklistPenalty(domain)
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	var age agePenaltyResult
	var blacklistPct int
	for pending := 2; pending > 0; pending-- {
		select {
		case age = <-ageCh:
		case blacklistPct = <-blacklistCh:
		case <-timer.C:
			r.log.Warnf("reputation lookup for %s timed out after %s", domain, r.timeout)
			span.SetTag("timeout", true)
			return nil
		case <-ctx.Done():
			tracing.TraceErr(span, ctx.Err())
			return nil
		}
	}

	if age.err != nil {
		// unknown age is not a penalty
		tracing.TraceErr(span, fmt.Errorf("cannot determine domain dates: %v", age.err))
	}

	reputation := &dto.SenderReputation{
		Domain:              domain,
		DomainAgePenalty:    age.penalty,
		BlacklistPenaltyPct: blacklistPct,
		Score:               reputationScore(age.penalty, blacklistPct),
	}
	span.LogKV("score", reputation.Score)
	return reputation
}

func reputationScore(agePenalty, blacklistPct int) int {
	score := (100 - agePenalty) * (100 - blacklistPct) / 100
	if score < 0 {
		return 0
	}
	return score
}

// domainAgePenalty weighs freshly registered domains, a common trait of
// phishing senders.
func domainAgePenalty(domain string) (int, error) {
	domainDates, err := domainage.GetDomainDates(domain)
	if err != nil {
		return 0, err
	}
	if !domainDates.Success {
		return 0, nil
	}

	domainAgeInDays := domainDates.CreationAge

	switch {
	case domainAgeInDays <= 1:
		return 75, nil
	case domainAgeInDays <= 7:
		return 60, nil
	case domainAgeInDays <= 10:
		return 50, nil
	case domainAgeInDays <= 15:
		return 40, nil
	case domainAgeInDays <= 30:
		return 30, nil
	case domainAgeInDays <= 90:
		return 15, nil
	default:
		return 0, nil
	}
}

func blacklistPenaltyPercent(domain string) int {
	blacklists := blscan.ScanBlacklists(domain, "domain")

	pct := (blacklists.MajorLists * 80) + (blacklists.MinorLists * 10) + (blacklists.SpamTrapLists * 20)
	if pct > 100 {
		return 100
	}
	return pct
}
