package domain

import "time"

// BankDecision records why an item landed in the content bank.
type BankDecision string

const (
	BankDecisionSalvaged BankDecision = "salvaged"
	BankDecisionKilled   BankDecision = "killed"
)

// IsValid checks if the decision is a known value.
func (d BankDecision) IsValid() bool {
	return d == BankDecisionSalvaged || d == BankDecisionKilled
}

// UsableParts lists reusable fragments salvaged from a killed draft.
type UsableParts struct {
	GoodLines []string `json:"good_lines,omitempty"`
}

// ContentBankEntry archives a salvaged or killed trial output outside
// the active queue. Killed entries contribute their topic to the
// generator blacklist.
type ContentBankEntry struct {
	ID             string
	OriginItemID   string
	Topic          string
	Kind           ItemKind
	Format         *string
	Payload        Payload
	Decision       BankDecision
	Reason         string
	UsableParts    UsableParts
	MarkedForReuse bool
	CreatedBy      string
	CreatedAt      time.Time
}
