// Package netio provides the non-blocking UDP transport primitive shared
// by the modem and network adapters.
package netio

import (
	"fmt"
	"log"
	"net"
	"time"
)

// UDPSocket is a non-blocking UDP endpoint: reads never block, returning
// zero bytes when nothing is available instead of waiting.
type UDPSocket struct {
	conn      *net.UDPConn
	address   string
	port      int
	localAddr *net.UDPAddr
}

// NewUDPSocket builds a client-mode socket bound to a specific local
// address and port.
func NewUDPSocket(address string, port int) *UDPSocket {
	return &UDPSocket{address: address, port: port}
}

// NewUDPSocketServer builds a server-mode socket bound to any local
// address on the given port.
func NewUDPSocketServer(port int) *UDPSocket {
	return &UDPSocket{address: "", port: port}
}

// Open binds the socket (or leaves it unbound with an ephemeral port when
// constructed with port 0) and puts it into non-blocking mode.
func (s *UDPSocket) Open() error {
	var err error

	if s.port > 0 {
		if s.address == "" {
			s.localAddr = &net.UDPAddr{IP: net.IPv4zero, Port: s.port}
		} else {
			ip := net.ParseIP(s.address)
			if ip == nil {
				return fmt.Errorf("invalid address: %s", s.address)
			}
			s.localAddr = &net.UDPAddr{IP: ip, Port: s.port}
		}
	} else {
		s.localAddr = &net.UDPAddr{IP: net.IPv4zero, Port: 0}
	}

	s.conn, err = net.ListenUDP("udp4", s.localAddr)
	if err != nil {
		log.Printf("netio: error opening UDP socket: %v", err)
		return err
	}
	log.Printf("netio: UDP socket bound to %s", s.conn.LocalAddr().String())

	if err := s.conn.SetReadDeadline(time.Now()); err != nil {
		s.conn.Close()
		return err
	}
	return nil
}

// Read performs a non-blocking read. It returns (0, nil, nil) when no
// datagram is currently available rather than blocking.
func (s *UDPSocket) Read(buffer []byte) (int, *net.UDPAddr, error) {
	if s.conn == nil {
		return -1, nil, fmt.Errorf("netio: socket not open")
	}

	s.conn.SetReadDeadline(time.Now())

	n, addr, err := s.conn.ReadFromUDP(buffer)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return 0, nil, nil
		}
		log.Printf("netio: UDP read error: %v", err)
		return -1, nil, err
	}
	return n, addr, nil
}

// Write sends a datagram to the given address.
func (s *UDPSocket) Write(buffer []byte, addr *net.UDPAddr) error {
	if s.conn == nil {
		return fmt.Errorf("netio: socket not open")
	}
	if _, err := s.conn.WriteToUDP(buffer, addr); err != nil {
		log.Printf("netio: UDP write error: %v", err)
		return err
	}
	return nil
}

// Close releases the underlying socket.
func (s *UDPSocket) Close() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
		log.Print("netio: UDP socket closed")
	}
}

// Lookup resolves a hostname to its first IPv4 address, or parses it
// directly if it's already an IP literal.
func Lookup(hostname string) (net.IP, error) {
	if ip := net.ParseIP(hostname); ip != nil {
		return ip, nil
	}
	ips, err := net.LookupIP(hostname)
	if err != nil {
		return nil, err
	}
	for _, ip := range ips {
		if ip.To4() != nil {
			return ip, nil
		}
	}
	return nil, fmt.Errorf("netio: no IPv4 address found for %s", hostname)
}

// ParseUDPAddr resolves address and pairs it with port into a *net.UDPAddr.
func ParseUDPAddr(address string, port int) (*net.UDPAddr, error) {
	ip, err := Lookup(address)
	if err != nil {
		return nil, err
	}
	return &net.UDPAddr{IP: ip, Port: port}, nil
}
