// Package config loads the YAML configuration document describing system
// identity, per-protocol parameters, modem port settings, and the network
// layer.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root of the YAML configuration document.
type Config struct {
	Daemon  bool          `yaml:"daemon"`
	System  SystemConfig  `yaml:"system"`
	Protocols ProtocolsConfig `yaml:"protocols"`
	Network NetworkConfig `yaml:"network"`
}

// SystemConfig holds the site identity and the parameters shared across
// both protocols.
type SystemConfig struct {
	Duplex          bool   `yaml:"duplex"`
	FixedMode       string `yaml:"fixedMode"` // "", "dmr", or "p25"
	Timeout         uint32 `yaml:"timeout"`
	RFModeHang      uint32 `yaml:"rfModeHang"`
	NetModeHang     uint32 `yaml:"netModeHang"`
	RFTalkgroupHang uint32 `yaml:"rfTalkgroupHang"`
	LockFile        string `yaml:"lockFile"` // path written with "DMR"/"P25" while that mode is active; empty disables it

	CWId       CWIdConfig       `yaml:"cwId"`
	Modem      ModemConfig      `yaml:"modem"`
	IdenTable  IdenTableConfig  `yaml:"iden_table"`
	SiteConfig SiteConfigConfig `yaml:"config"`
	Lookup     LookupConfig     `yaml:"lookup"`
}

// LookupConfig selects how the radio-ID/callsign lookup is sourced:
// "database" (SQLite via internal/identdb, optionally kept in sync from
// a radio-ID registry), "file" (a flat text table reloaded on a timer),
// or "" to disable the lookup entirely.
type LookupConfig struct {
	Mode         string `yaml:"mode"`
	File         string `yaml:"file"`
	ReloadHours  uint32 `yaml:"reloadHours"`
	DatabasePath string `yaml:"databasePath"`
	CacheSize    int    `yaml:"cacheSize"`
	SyncEnable   bool   `yaml:"syncEnable"`
}

// CWIdConfig configures periodic Morse identification.
type CWIdConfig struct {
	Enable   bool   `yaml:"enable"`
	Time     uint32 `yaml:"time"` // seconds
	Callsign string `yaml:"callsign"`
}

// ModemConfig configures the physical modem port.
type ModemConfig struct {
	Port         string `yaml:"port"` // e.g. "uart:/dev/ttyUSB0", "udp:127.0.0.1:3334", "null"
	RXInvert     bool   `yaml:"rxInvert"`
	TXInvert     bool   `yaml:"txInvert"`
	PTTInvert    bool   `yaml:"pttInvert"`
	TXDelay      uint32 `yaml:"txDelay"`
	RXLevel      int32  `yaml:"rxLevel"`
	TXLevel      int32  `yaml:"txLevel"`
	Trace        bool   `yaml:"trace"`
}

// IdenTableConfig configures the channel-identity table reload.
type IdenTableConfig struct {
	File string `yaml:"file"`
	Time uint32 `yaml:"time"` // hours
}

// SiteConfigConfig holds the local RF/site identifiers used to build
// sitedata.SiteData.
type SiteConfigConfig struct {
	ChannelID uint32 `yaml:"channelId"`
	ChannelNo uint32 `yaml:"channelNo"`
	SiteID    uint32 `yaml:"siteId"`
	NetID     uint32 `yaml:"netId"`
	ColorCode uint8  `yaml:"colorCode"`
	SiteModel string `yaml:"siteModel"` // "TINY", "SMALL", "LARGE", "HUGE"
	PartID    uint32 `yaml:"partId"`
	RequireRegistration bool `yaml:"requireRegistration"`
}

// ProtocolsConfig groups the two protocol-specific parameter blocks.
type ProtocolsConfig struct {
	DMR DMRConfig `yaml:"dmr"`
	P25 P25Config `yaml:"p25"`
}

// DMRConfig configures the TDMA protocol control unit.
type DMRConfig struct {
	Enable    bool   `yaml:"enable"`
	Beacons   bool   `yaml:"beacons"`
	Control   bool   `yaml:"control"`
	TrunkSlot uint8  `yaml:"trunkSlot"`
	CallHang  uint32 `yaml:"callHang"`
	TGHang    uint32 `yaml:"tgHang"`
	QueueSize uint32 `yaml:"queueSize"`
}

// P25Config configures the FDMA protocol control unit.
type P25Config struct {
	Enable           bool   `yaml:"enable"`
	Beacons          bool   `yaml:"beacons"`
	Control          bool   `yaml:"control"`
	NAC              uint16 `yaml:"nac"`
	TDUPreambleCount uint32 `yaml:"tduPreambleCount"`
	CallHang         uint32 `yaml:"callHang"`
	QueueSize        uint32 `yaml:"queueSize"`
}

// NetworkConfig configures the Network adapter.
type NetworkConfig struct {
	Enable   bool   `yaml:"enable"`
	Address  string `yaml:"address"`
	Port     uint32 `yaml:"port"`
	ID       uint32 `yaml:"id"`
	Password string `yaml:"password"`
	Jitter   uint32 `yaml:"jitter"`
	Slot1    bool   `yaml:"slot1"`
	Slot2    bool   `yaml:"slot2"`
}

// Default returns a Config populated with the same defaults the reference
// configuration ships with.
func Default() Config {
	return Config{
		System: SystemConfig{
			Timeout:         120,
			RFModeHang:      10,
			NetModeHang:     3,
			RFTalkgroupHang: 10,
			CWId:            CWIdConfig{Time: 600},
			IdenTable:       IdenTableConfig{Time: 24},
			SiteConfig:      SiteConfigConfig{SiteModel: "TINY", PartID: 3},
			Lookup:          LookupConfig{ReloadHours: 24, CacheSize: 1000},
		},
		Protocols: ProtocolsConfig{
			DMR: DMRConfig{CallHang: 3, TGHang: 5, QueueSize: 5120},
			P25: P25Config{TDUPreambleCount: 8, CallHang: 3, QueueSize: 8192},
		},
		Network: NetworkConfig{Jitter: 500},
	}
}

// Load reads and parses a YAML configuration file, starting from Default
// so unspecified fields keep their defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML document into a Config, starting from Default.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	return cfg, nil
}

// Validate checks the cross-field invariants SPEC_FULL.md requires before
// a Config can drive the Host: fixed mode must name exactly one protocol
// when set, and a dedicated control channel requires duplex plus fixed
// mode on that same protocol.
func (c Config) Validate() error {
	switch c.System.FixedMode {
	case "", "dmr", "p25":
	default:
		return fmt.Errorf("config: system.fixedMode must be \"\", \"dmr\", or \"p25\", got %q", c.System.FixedMode)
	}

	switch c.System.Lookup.Mode {
	case "", "file", "database":
	default:
		return fmt.Errorf("config: system.lookup.mode must be \"\", \"file\", or \"database\", got %q", c.System.Lookup.Mode)
	}

	if c.Protocols.DMR.Control || c.Protocols.P25.Control {
		if !c.System.Duplex {
			return fmt.Errorf("config: a dedicated control channel requires system.duplex")
		}
		if c.Protocols.DMR.Control && c.Protocols.P25.Control {
			return fmt.Errorf("config: only one protocol may run a dedicated control channel")
		}
		if c.Protocols.DMR.Control && c.System.FixedMode != "dmr" {
			return fmt.Errorf("config: protocols.dmr.control requires system.fixedMode: dmr")
		}
		if c.Protocols.P25.Control && c.System.FixedMode != "p25" {
			return fmt.Errorf("config: protocols.p25.control requires system.fixedMode: p25")
		}
	}

	if c.Protocols.DMR.TrunkSlot != 0 && c.Protocols.DMR.TrunkSlot != 1 && c.Protocols.DMR.TrunkSlot != 2 {
		return fmt.Errorf("config: protocols.dmr.trunkSlot must be 0, 1, or 2")
	}

	return nil
}
