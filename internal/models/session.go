package models

import "time"

// Session identifies an authenticated client acting on one company's calendar.
type Session struct {
	ClientID  string    `json:"client_id"`
	CompanyID string    `json:"company_id"`
	ExpiresAt time.Time `json:"expires_at"`
}
