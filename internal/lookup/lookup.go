// Package lookup provides the radio-ID/callsign lookup service Host
// consults when rendering or validating addresses; per spec this
// functionality itself is out of scope, but the interface the core
// protocol logic depends on is carried in full.
package lookup

var (
	_ RadioLookupInterface = (*RadioLookup)(nil)
	_ RadioLookupInterface = (*RadioDatabaseAdapter)(nil)
)
