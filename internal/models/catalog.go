package models

import "time"

// Company is a tenant with one shared calendar.
type Company struct {
	ID             string    `json:"id" yaml:"id"`
	Name           string    `json:"name" yaml:"name"`
	Active         bool      `json:"active" yaml:"active"`
	Address        string    `json:"address,omitempty" yaml:"address"`
	TelegramChatID int64     `json:"telegram_chat_id,omitempty" yaml:"telegram_chat_id"`
	CreatedAt      time.Time `json:"created_at" yaml:"-"`
	UpdatedAt      time.Time `json:"updated_at" yaml:"-"`
}

// Service is something a company sells. DurationMinutes is informational and does not
// change the slot grid.
type Service struct {
	ID              string  `json:"id" yaml:"id"`
	CompanyID       string  `json:"company_id" yaml:"-"`
	Name            string  `json:"name" yaml:"name"`
	Price           float64 `json:"price" yaml:"price"`
	DurationMinutes int     `json:"duration_minutes" yaml:"duration_minutes"`
	Active          bool    `json:"active" yaml:"active"`
}
