package identdb

import "testing"

func TestRadioUserIsValid(t *testing.T) {
	valid := RadioUser{RadioID: 3113, Callsign: "G4KLX"}
	if !valid.IsValid() {
		t.Fatalf("expected valid record to pass IsValid")
	}
	if (RadioUser{Callsign: "G4KLX"}).IsValid() {
		t.Fatalf("expected zero radio ID to be invalid")
	}
	if (RadioUser{RadioID: 3113}).IsValid() {
		t.Fatalf("expected empty callsign to be invalid")
	}
}

func TestRadioUserSanitizeFields(t *testing.T) {
	u := RadioUser{Callsign: "  g4klx  ", FirstName: " Jon ", City: " London "}
	u.SanitizeFields()
	if u.Callsign != "G4KLX" {
		t.Errorf("expected uppercased trimmed callsign, got %q", u.Callsign)
	}
	if u.FirstName != "Jon" || u.City != "London" {
		t.Errorf("expected trimmed fields, got %+v", u)
	}
}

func TestRadioUserString(t *testing.T) {
	u := RadioUser{RadioID: 3113, Callsign: "G4KLX", FirstName: "Jon", City: "London", Country: "UK"}
	s := u.String()
	if s == "" {
		t.Fatalf("expected non-empty string representation")
	}
}
