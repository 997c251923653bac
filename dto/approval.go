package dto

import "github.com/pawpal/petmail/internal/enum"

type ApprovalDecision struct {
	ApprovalID  string              `json:"approvalId"`
	Status      enum.ApprovalStatus `json:"status"`
	SenderEmail string              `json:"senderEmail"`
	Reprocessed *PipelineResponse   `json:"reprocessed,omitempty"`
}

type SignedURLResponse struct {
	URL       string `json:"url"`
	ExpiresIn int64  `json:"expiresIn"`
}

// SenderReputation scores an unknown sender's domain from 0 to 100. The
// penalties follow domain age and blacklist listings.
type SenderReputation struct {
	Domain              string `json:"domain"`
	DomainAgePenalty    int    `json:"domainAgePenalty"`
	BlacklistPenaltyPct int    `json:"blacklistPenaltyPct"`
	Score               int    `json:"score"`
}
