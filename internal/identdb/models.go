package identdb

import (
	"fmt"
	"strings"
	"time"
)

// RadioUser represents one radio-ID/callsign record, keyed by a numeric
// radio ID shared by both protocols' addressing schemes (DMR radio ID or
// P25 unit ID/WACN-local ID).
type RadioUser struct {
	RadioID   uint32    `gorm:"primarykey;not null" json:"radio_id"`
	Callsign  string    `gorm:"index;size:20" json:"callsign"`
	FirstName string    `gorm:"size:50" json:"first_name"`
	LastName  string    `gorm:"size:50" json:"last_name"`
	City      string    `gorm:"size:50" json:"city"`
	State     string    `gorm:"size:50" json:"state"`
	Country   string    `gorm:"size:50" json:"country"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (RadioUser) TableName() string {
	return "radio_users"
}

// FullName returns the formatted full name.
func (u RadioUser) FullName() string {
	parts := []string{}
	if u.FirstName != "" {
		parts = append(parts, u.FirstName)
	}
	if u.LastName != "" {
		parts = append(parts, u.LastName)
	}
	return strings.Join(parts, " ")
}

// Location returns the formatted location string.
func (u RadioUser) Location() string {
	parts := []string{}
	if u.City != "" {
		parts = append(parts, u.City)
	}
	if u.State != "" {
		parts = append(parts, u.State)
	}
	if u.Country != "" {
		parts = append(parts, u.Country)
	}
	return strings.Join(parts, ", ")
}

// String returns a formatted string representation.
func (u RadioUser) String() string {
	fullName := u.FullName()
	location := u.Location()

	result := fmt.Sprintf("%s (%d)", u.Callsign, u.RadioID)
	if fullName != "" {
		result += fmt.Sprintf(" - %s", fullName)
	}
	if location != "" {
		result += fmt.Sprintf(" [%s]", location)
	}
	return result
}

// IsValid checks if the record has its required fields.
func (u RadioUser) IsValid() bool {
	return u.RadioID > 0 && u.Callsign != ""
}

// SanitizeCallsign normalises the callsign's case and whitespace.
func (u *RadioUser) SanitizeCallsign() {
	u.Callsign = strings.ToUpper(strings.TrimSpace(u.Callsign))
}

// SanitizeFields cleans up all record fields.
func (u *RadioUser) SanitizeFields() {
	u.SanitizeCallsign()
	u.FirstName = strings.TrimSpace(u.FirstName)
	u.LastName = strings.TrimSpace(u.LastName)
	u.City = strings.TrimSpace(u.City)
	u.State = strings.TrimSpace(u.State)
	u.Country = strings.TrimSpace(u.Country)
}
