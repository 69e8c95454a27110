package dto

type CreateBookingRequest struct {
	ProviderID  string `json:"provider_id"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	Pillar      string `json:"pillar"`
	PayerSource string `json:"payer_source"`
}

type RescheduleRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
}

type GrantRequest struct {
	SubjectID string `json:"subject_id"`
	PoolType  string `json:"pool_type"`
	Sessions  int    `json:"sessions"`
}

// BlackoutRequest with no times on DELETE clears the whole day.
type BlackoutRequest struct {
	Date   string   `json:"date"`
	Times  []string `json:"times"`
	Reason string   `json:"reason,omitempty"`
}
