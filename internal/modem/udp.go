package modem

import (
	"net"

	"github.com/openrepeater/dvmhost-go/internal/frame"
	"github.com/openrepeater/dvmhost-go/internal/netio"
	"github.com/openrepeater/dvmhost-go/internal/timing"
)

// Wire commands for the modem's framed byte protocol: one length-prefixed
// packet per request/response, [len][cmd][payload...].
const (
	cmdGetVersion  = 0x00
	cmdGetStatus   = 0x01
	cmdSendCWId    = 0x02
	cmdClearP25    = 0x03
	cmdTDMAData1   = 0x10
	cmdTDMAData2   = 0x11
	cmdFDMAData    = 0x12
	cmdTDMAStart   = 0x13
	cmdShortLC     = 0x14
	statusPollMS   = 50
	maxPacketBytes = 512
)

// statusFlags mirrors the bitfield the modem reports in a cmdGetStatus
// response: lockout, error, TX-active, hotspot-vs-repeater.
type statusFlags struct {
	lockout bool
	errFlag bool
	tx      bool
	hotspot bool
}

// UDPModem talks the modem's request/response protocol over a local UDP
// socket, the transport MMDVM-style hotspots and repeater boards expose.
type UDPModem struct {
	socket  *netio.UDPSocket
	remote  *net.UDPAddr
	status  statusFlags
	version string

	spaceTDMA1, spaceTDMA2, spaceFDMA bool
	pendingTDMA1, pendingTDMA2        []frame.Frame
	pendingFDMA                       []frame.Frame

	poll *timing.Timer
}

// NewUDPModem builds a modem adapter bound to localPort that talks to a
// modem listening on address:port.
func NewUDPModem(address string, port int, localPort int) (*UDPModem, error) {
	remote, err := netio.ParseUDPAddr(address, port)
	if err != nil {
		return nil, err
	}
	return &UDPModem{
		socket: netio.NewUDPSocket("", localPort),
		remote: remote,
		poll:   timing.New(statusPollMS),
	}, nil
}

func (m *UDPModem) Open() error {
	if err := m.socket.Open(); err != nil {
		return err
	}
	m.poll.Start()
	return m.socket.Write([]byte{1, cmdGetVersion}, m.remote)
}

func (m *UDPModem) Close() error {
	m.socket.Close()
	return nil
}

func (m *UDPModem) Clock(elapsedMS int) {
	m.poll.Clock(elapsedMS)
	if m.poll.HasExpired() {
		m.poll.Start()
		m.socket.Write([]byte{1, cmdGetStatus}, m.remote)
	}

	buf := make([]byte, maxPacketBytes)
	for {
		n, addr, err := m.socket.Read(buf)
		if err != nil || n <= 0 {
			return
		}
		if addr == nil || addr.IP.String() != m.remote.IP.String() {
			continue
		}
		m.handlePacket(buf[:n])
	}
}

func (m *UDPModem) handlePacket(data []byte) {
	if len(data) < 2 {
		return
	}
	cmd := data[1]
	payload := data[2:]
	switch cmd {
	case cmdGetVersion:
		m.version = string(payload)
	case cmdGetStatus:
		if len(payload) < 1 {
			return
		}
		flags := payload[0]
		m.status = statusFlags{
			lockout: flags&0x01 != 0,
			errFlag: flags&0x02 != 0,
			tx:      flags&0x04 != 0,
			hotspot: flags&0x08 != 0,
		}
		if len(payload) >= 4 {
			m.spaceTDMA1 = payload[1] > 0
			m.spaceTDMA2 = payload[2] > 0
			m.spaceFDMA = payload[3] > 0
		}
	case cmdTDMAData1:
		m.pendingTDMA1 = append(m.pendingTDMA1, frame.Frame{Protocol: frame.ProtoTDMA, Slot: 1, Payload: append([]byte(nil), payload...)})
	case cmdTDMAData2:
		m.pendingTDMA2 = append(m.pendingTDMA2, frame.Frame{Protocol: frame.ProtoTDMA, Slot: 2, Payload: append([]byte(nil), payload...)})
	case cmdFDMAData:
		m.pendingFDMA = append(m.pendingFDMA, frame.Frame{Protocol: frame.ProtoFDMA, Payload: append([]byte(nil), payload...)})
	}
}

func (m *UDPModem) HasLockout() bool   { return m.status.lockout }
func (m *UDPModem) HasError() bool     { return m.status.errFlag }
func (m *UDPModem) HasTX() bool        { return m.status.tx }
func (m *UDPModem) IsHotspot() bool    { return m.status.hotspot }
func (m *UDPModem) GetVersion() string { return m.version }

func (m *UDPModem) HasSpace(p frame.Protocol) bool {
	if p == frame.ProtoFDMA {
		return m.spaceFDMA
	}
	return m.spaceTDMA1 || m.spaceTDMA2
}

func (m *UDPModem) ReadData(p frame.Protocol) (frame.Frame, bool) {
	if p == frame.ProtoFDMA {
		if len(m.pendingFDMA) == 0 {
			return frame.Frame{}, false
		}
		f := m.pendingFDMA[0]
		m.pendingFDMA = m.pendingFDMA[1:]
		return f, true
	}
	if len(m.pendingTDMA1) > 0 {
		f := m.pendingTDMA1[0]
		m.pendingTDMA1 = m.pendingTDMA1[1:]
		return f, true
	}
	if len(m.pendingTDMA2) > 0 {
		f := m.pendingTDMA2[0]
		m.pendingTDMA2 = m.pendingTDMA2[1:]
		return f, true
	}
	return frame.Frame{}, false
}

func (m *UDPModem) WriteData(p frame.Protocol, f frame.Frame) bool {
	cmd := byte(cmdFDMAData)
	if p == frame.ProtoTDMA {
		if f.Slot == 2 {
			cmd = cmdTDMAData2
		} else {
			cmd = cmdTDMAData1
		}
	}
	packet := append([]byte{byte(len(f.Payload) + 1), cmd}, f.Payload...)
	return m.socket.Write(packet, m.remote) == nil
}

func (m *UDPModem) WriteStart(p frame.Protocol) bool {
	return m.socket.Write([]byte{1, cmdTDMAStart}, m.remote) == nil
}

func (m *UDPModem) SendCWId(callsign string) bool {
	packet := append([]byte{byte(len(callsign) + 1), cmdSendCWId}, []byte(callsign)...)
	return m.socket.Write(packet, m.remote) == nil
}

func (m *UDPModem) ClearP25Data() {
	m.pendingFDMA = nil
	m.socket.Write([]byte{1, cmdClearP25}, m.remote)
}

func (m *UDPModem) WriteShortLC(payload []byte) bool {
	packet := append([]byte{byte(len(payload) + 1), cmdShortLC}, payload...)
	return m.socket.Write(packet, m.remote) == nil
}
