package leads

import "time"

// Lead is the slice of the business lead record the session engine needs:
// enough to match an inbound phone number and hand the session to the
// assigned agent. The full lead CRUD surface lives elsewhere.
type Lead struct {
	LeadID string `json:"lead_id" db:"lead_id"`
	Name   string `json:"name" db:"name"`

	// PrimaryNumber and AlternateNumber are E.164.
	PrimaryNumber   string `json:"primary_number" db:"primary_number"`
	AlternateNumber string `json:"alternate_number,omitempty" db:"alternate_number"`

	AssignedAgentID string `json:"assigned_agent_id,omitempty" db:"assigned_agent_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
