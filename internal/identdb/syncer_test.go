package identdb

import (
	"strings"
	"testing"
)

func TestSyncerParseCSVRecord(t *testing.T) {
	s := &Syncer{}

	rec := []string{"3113", "g4klx", "Jon", "Cake", "London", "", "United Kingdom"}
	user, err := s.parseCSVRecord(rec, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.RadioID != 3113 || user.Callsign != "G4KLX" {
		t.Errorf("unexpected user: %+v", user)
	}
}

func TestSyncerParseCSVRecordRejectsZeroID(t *testing.T) {
	s := &Syncer{}
	_, err := s.parseCSVRecord([]string{"0", "G4KLX", "", "", "", "", ""}, 2)
	if err == nil {
		t.Fatalf("expected error for zero radio ID")
	}
}

func TestSyncerParseCSVRecordRejectsShortRow(t *testing.T) {
	s := &Syncer{}
	_, err := s.parseCSVRecord([]string{"3113", "G4KLX"}, 2)
	if err == nil {
		t.Fatalf("expected error for insufficient fields")
	}
}

func TestSyncerParseCSV(t *testing.T) {
	s := &Syncer{}
	data := "RADIO_ID,CALLSIGN,FIRST_NAME,LAST_NAME,CITY,STATE,COUNTRY\n" +
		"3113,G4KLX,Jon,Cake,London,,United Kingdom\n" +
		"invalid,BADROW\n" +
		"3114,M1ABC,Jane,Doe,Leeds,,United Kingdom\n"

	users, err := s.parseCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 valid users, got %d", len(users))
	}
}
