package model

// VerificationOutcome is what a fiscal agent sees after checking a plate.
// Permit is set only for VALID.
type VerificationOutcome struct {
	Status         VerificationResult `json:"status"`
	Plate          string             `json:"plate"`
	Permit         *Permit            `json:"permit,omitempty"`
	FiscalActionID string             `json:"fiscalActionId"`
}

type ZoneWithPrice struct {
	Zone         Zone         `json:"zone"`
	CurrentPrice *PriceConfig `json:"currentPrice"`
}
