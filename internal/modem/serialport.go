package modem

import (
	"fmt"
	"os"
	"syscall"

	"github.com/openrepeater/dvmhost-go/internal/frame"
	"golang.org/x/sys/unix"
)

var supportedBaudRates = map[int]uint32{
	1200:   unix.B1200,
	2400:   unix.B2400,
	4800:   unix.B4800,
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
}

// cfmakeraw configures non-canonical mode: no line editing, no signal
// generation, no input/output translation — just the byte stream the
// modem's framed protocol expects.
func cfmakeraw(t *unix.Termios) {
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8
}

func openSerial(device string, baud int) (*os.File, error) {
	rate, ok := supportedBaudRates[baud]
	if !ok {
		return nil, fmt.Errorf("modem: unsupported baud rate %d", baud)
	}

	f, err := os.OpenFile(device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0666)
	if err != nil {
		return nil, fmt.Errorf("modem: open %s: %w", device, err)
	}
	// Downstream reads/writes want blocking semantics; use syscall (not
	// unix) so the runtime poller is told about the change.
	if err := syscall.SetNonblock(int(f.Fd()), false); err != nil {
		f.Close()
		return nil, err
	}

	t := unix.Termios{}
	cfmakeraw(&t)
	t.Iflag |= unix.IGNPAR
	t.Cflag |= unix.CREAD | unix.CLOCAL
	t.Cflag &^= unix.CSTOPB
	t.Cflag &^= unix.CRTSCTS
	t.Cc[unix.VTIME] = 0
	t.Cc[unix.VMIN] = 1
	t.Ispeed = rate
	t.Ospeed = rate

	if err := unix.IoctlSetTermios(int(f.Fd()), unix.TCSETS, &t); err != nil {
		f.Close()
		return nil, fmt.Errorf("modem: configure %s: %w", device, err)
	}
	return f, nil
}

// SerialModem talks the same framed request/response protocol as UDPModem,
// but over a directly attached UART instead of a loopback socket — the
// transport used when the modem board is a serial HAT rather than a
// network-addressable hotspot.
type SerialModem struct {
	device string
	baud   int
	port   *os.File
	rx     []byte

	inner *framedState
}

// framedState holds the same decoded fields UDPModem keeps, so both
// transports share one wire format and one parsing shape.
type framedState struct {
	version                           string
	status                            statusFlags
	spaceTDMA1, spaceTDMA2, spaceFDMA bool
	pendingTDMA1, pendingTDMA2        []frame.Frame
	pendingFDMA                       []frame.Frame
}

// NewSerialModem builds a modem adapter over a UART device, e.g.
// "/dev/ttyUSB0" at 115200 baud.
func NewSerialModem(device string, baud int) *SerialModem {
	return &SerialModem{device: device, baud: baud, inner: &framedState{}}
}

func (m *SerialModem) Open() error {
	f, err := openSerial(m.device, m.baud)
	if err != nil {
		return err
	}
	m.port = f
	_, err = m.port.Write([]byte{1, cmdGetVersion})
	return err
}

func (m *SerialModem) Close() error {
	if m.port == nil {
		return nil
	}
	err := m.port.Close()
	m.port = nil
	return err
}

func (m *SerialModem) Clock(elapsedMS int) {
	if m.port == nil {
		return
	}
	buf := make([]byte, maxPacketBytes)
	n, err := m.port.Read(buf)
	if err != nil || n <= 0 {
		return
	}
	m.rx = append(m.rx, buf[:n]...)
	for len(m.rx) >= 2 {
		length := int(m.rx[0])
		if len(m.rx) < length+1 {
			return
		}
		m.handlePacket(m.rx[1 : length+1])
		m.rx = m.rx[length+1:]
	}
}

func (m *SerialModem) handlePacket(data []byte) {
	if len(data) < 1 {
		return
	}
	cmd := data[0]
	payload := data[1:]
	switch cmd {
	case cmdGetVersion:
		m.inner.version = string(payload)
	case cmdGetStatus:
		if len(payload) < 1 {
			return
		}
		flags := payload[0]
		m.inner.status = statusFlags{
			lockout: flags&0x01 != 0,
			errFlag: flags&0x02 != 0,
			tx:      flags&0x04 != 0,
			hotspot: flags&0x08 != 0,
		}
		if len(payload) >= 4 {
			m.inner.spaceTDMA1 = payload[1] > 0
			m.inner.spaceTDMA2 = payload[2] > 0
			m.inner.spaceFDMA = payload[3] > 0
		}
	case cmdTDMAData1:
		m.inner.pendingTDMA1 = append(m.inner.pendingTDMA1, frame.Frame{Protocol: frame.ProtoTDMA, Slot: 1, Payload: append([]byte(nil), payload...)})
	case cmdTDMAData2:
		m.inner.pendingTDMA2 = append(m.inner.pendingTDMA2, frame.Frame{Protocol: frame.ProtoTDMA, Slot: 2, Payload: append([]byte(nil), payload...)})
	case cmdFDMAData:
		m.inner.pendingFDMA = append(m.inner.pendingFDMA, frame.Frame{Protocol: frame.ProtoFDMA, Payload: append([]byte(nil), payload...)})
	}
}

func (m *SerialModem) HasLockout() bool   { return m.inner.status.lockout }
func (m *SerialModem) HasError() bool     { return m.inner.status.errFlag }
func (m *SerialModem) HasTX() bool        { return m.inner.status.tx }
func (m *SerialModem) IsHotspot() bool    { return m.inner.status.hotspot }
func (m *SerialModem) GetVersion() string { return m.inner.version }

func (m *SerialModem) HasSpace(p frame.Protocol) bool {
	if p == frame.ProtoFDMA {
		return m.inner.spaceFDMA
	}
	return m.inner.spaceTDMA1 || m.inner.spaceTDMA2
}

func (m *SerialModem) ReadData(p frame.Protocol) (frame.Frame, bool) {
	if p == frame.ProtoFDMA {
		if len(m.inner.pendingFDMA) == 0 {
			return frame.Frame{}, false
		}
		f := m.inner.pendingFDMA[0]
		m.inner.pendingFDMA = m.inner.pendingFDMA[1:]
		return f, true
	}
	if len(m.inner.pendingTDMA1) > 0 {
		f := m.inner.pendingTDMA1[0]
		m.inner.pendingTDMA1 = m.inner.pendingTDMA1[1:]
		return f, true
	}
	if len(m.inner.pendingTDMA2) > 0 {
		f := m.inner.pendingTDMA2[0]
		m.inner.pendingTDMA2 = m.inner.pendingTDMA2[1:]
		return f, true
	}
	return frame.Frame{}, false
}

func (m *SerialModem) WriteData(p frame.Protocol, f frame.Frame) bool {
	if m.port == nil {
		return false
	}
	cmd := byte(cmdFDMAData)
	if p == frame.ProtoTDMA {
		if f.Slot == 2 {
			cmd = cmdTDMAData2
		} else {
			cmd = cmdTDMAData1
		}
	}
	packet := append([]byte{byte(len(f.Payload) + 1), cmd}, f.Payload...)
	_, err := m.port.Write(packet)
	return err == nil
}

func (m *SerialModem) WriteStart(p frame.Protocol) bool {
	if m.port == nil {
		return false
	}
	_, err := m.port.Write([]byte{1, cmdTDMAStart})
	return err == nil
}

func (m *SerialModem) SendCWId(callsign string) bool {
	if m.port == nil {
		return false
	}
	packet := append([]byte{byte(len(callsign) + 1), cmdSendCWId}, []byte(callsign)...)
	_, err := m.port.Write(packet)
	return err == nil
}

func (m *SerialModem) WriteShortLC(payload []byte) bool {
	if m.port == nil {
		return false
	}
	packet := append([]byte{byte(len(payload) + 1), cmdShortLC}, payload...)
	_, err := m.port.Write(packet)
	return err == nil
}

func (m *SerialModem) ClearP25Data() {
	m.inner.pendingFDMA = nil
	if m.port != nil {
		m.port.Write([]byte{1, cmdClearP25})
	}
}
