package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// EscalationType is the insight row type written when a county defeats
// every research mode.
const EscalationType = "ESCALATE"

// EscalationRecord is an append-only row in the insights table flagging a
// county for manual review.
type EscalationRecord struct {
	Type           string `json:"type"`
	County         string `json:"county"`
	Message        string `json:"message"`
	Error          string `json:"error"`
	ModesAttempted []int  `json:"modes_attempted"`
	Action         string `json:"action"`
	CreatedAt      string `json:"created_at"`
}

// NewEscalationRecord builds the standard escalation row for a county from
// the run's accumulated errors.
func NewEscalationRecord(countyName, countySlug string, errs []string) EscalationRecord {
	if errs == nil {
		errs = []string{}
	}
	detail, err := json.Marshal(errs)
	if err != nil {
		detail = []byte("[]")
	}
	return EscalationRecord{
		Type:           EscalationType,
		County:         countySlug,
		Message:        fmt.Sprintf("County Research Agent: All 3 modes failed for %s County", countyName),
		Error:          string(detail),
		ModesAttempted: []int{1, 2, 3},
		Action:         fmt.Sprintf("Create Traycer GitHub Issue: [SKILL] Manual review %s County portal", countyName),
		CreatedAt:      time.Now().UTC().Format(time.RFC3339),
	}
}
