package pcap

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Libpcap file format constants (the classic tcpdump format, version 2.4,
// written in little-endian host order with magic 0xA1B2C3D4).
const (
	magicNumber  uint32 = 0xA1B2C3D4
	versionMajor uint16 = 2
	versionMinor uint16 = 4
	snapLen      uint32 = 0xFFFFFFFF

	// The global link type is NULL/loopback: each packet starts with a
	// 4-byte protocol family word.
	linkTypeNull uint32 = 0

	// Protocol family words for the per-packet prefix.
	familyIPv4 uint32 = 2
	familyIPv6 uint32 = 24
)

// MaxDataSegment is the largest payload carried in one synthesised TCP
// segment: 2^16-1 minus 40 bytes of IPv4+TCP headers. Longer transfers are
// sliced into multiple DATA records.
const MaxDataSegment = 65495

// fallback addresses used when the transport is not IP (e.g. a Unix
// socket or an in-memory pipe).
var (
	fallbackLocalAddr  = &net.TCPAddr{IP: net.IPv4(111, 111, 111, 111), Port: 1111}
	fallbackRemoteAddr = &net.TCPAddr{IP: net.IPv4(222, 222, 222, 222), Port: 2222}
)

// FileHeader returns the 24-byte libpcap global header.
func FileHeader() []byte {
	header := make([]byte, 24)
	binary.LittleEndian.PutUint32(header[0:4], magicNumber)
	binary.LittleEndian.PutUint16(header[4:6], versionMajor)
	binary.LittleEndian.PutUint16(header[6:8], versionMinor)
	// thiszone and sigfigs stay zero
	binary.LittleEndian.PutUint32(header[16:20], snapLen)
	binary.LittleEndian.PutUint32(header[20:24], linkTypeNull)
	return header
}

// Writer synthesises pcap records for one TCP connection and hands each
// finished record to its sink. It is not safe for concurrent use; the
// owning connection serialises calls.
type Writer struct {
	sink func([]byte)

	localAddr  *net.TCPAddr
	remoteAddr *net.TCPAddr

	localSeq  uint32
	remoteSeq uint32
}

// NewWriter creates a writer for a connection between local and remote.
// Non-TCP addresses fall back to the fixed placeholder endpoints so
// captures from Unix sockets stay well-formed.
func NewWriter(sink func([]byte), local, remote net.Addr) *Writer {
	return &Writer{
		sink:       sink,
		localAddr:  tcpAddrOrFallback(local, fallbackLocalAddr),
		remoteAddr: tcpAddrOrFallback(remote, fallbackRemoteAddr),
	}
}

func tcpAddrOrFallback(addr net.Addr, fallback *net.TCPAddr) *net.TCPAddr {
	if tcpAddr, ok := addr.(*net.TCPAddr); ok && tcpAddr.IP != nil {
		return tcpAddr
	}
	return fallback
}

// ConnectionEstablished emits the three-way handshake: SYN from local,
// SYN/ACK from remote, ACK from local.
func (w *Writer) ConnectionEstablished() error {
	now := time.Now()

	if err := w.emit(now, w.localAddr, w.remoteAddr, w.localSeq, 0, tcpFlags{syn: true}, nil); err != nil {
		return err
	}
	w.localSeq++

	if err := w.emit(now, w.remoteAddr, w.localAddr, w.remoteSeq, w.localSeq, tcpFlags{syn: true, ack: true}, nil); err != nil {
		return err
	}
	w.remoteSeq++

	return w.emit(now, w.localAddr, w.remoteAddr, w.localSeq, w.remoteSeq, tcpFlags{ack: true}, nil)
}

// InboundData emits DATA records from remote to local, slicing at
// MaxDataSegment. The remote sequence number advances modulo 2^32.
func (w *Writer) InboundData(data []byte) error {
	return w.data(w.remoteAddr, w.localAddr, &w.remoteSeq, w.localSeq, data)
}

// OutboundData emits DATA records from local to remote.
func (w *Writer) OutboundData(data []byte) error {
	return w.data(w.localAddr, w.remoteAddr, &w.localSeq, w.remoteSeq, data)
}

func (w *Writer) data(src, dst *net.TCPAddr, seq *uint32, ack uint32, data []byte) error {
	now := time.Now()
	for len(data) > 0 {
		segment := data
		if len(segment) > MaxDataSegment {
			segment = segment[:MaxDataSegment]
		}
		data = data[len(segment):]

		if err := w.emit(now, src, dst, *seq, ack, tcpFlags{ack: true, psh: true}, segment); err != nil {
			return err
		}
		*seq += uint32(len(segment)) // wraps modulo 2^32
	}
	return nil
}

// ConnectionClosed emits the teardown: FIN from whichever side initiated,
// FIN/ACK from the other, final ACK from the initiator.
func (w *Writer) ConnectionClosed(initiatedByLocal bool) error {
	now := time.Now()

	initiator, initiatorSeq := w.localAddr, &w.localSeq
	responder, responderSeq := w.remoteAddr, &w.remoteSeq
	if !initiatedByLocal {
		initiator, initiatorSeq = w.remoteAddr, &w.remoteSeq
		responder, responderSeq = w.localAddr, &w.localSeq
	}

	if err := w.emit(now, initiator, responder, *initiatorSeq, *responderSeq, tcpFlags{fin: true, ack: true}, nil); err != nil {
		return err
	}
	*initiatorSeq++

	if err := w.emit(now, responder, initiator, *responderSeq, *initiatorSeq, tcpFlags{fin: true, ack: true}, nil); err != nil {
		return err
	}
	*responderSeq++

	return w.emit(now, initiator, responder, *initiatorSeq, *responderSeq, tcpFlags{ack: true}, nil)
}

type tcpFlags struct {
	syn, ack, psh, fin bool
}

// emit serialises one packet (family word + IP header + TCP header +
// payload), frames it as a pcap record, and hands it to the sink.
func (w *Writer) emit(ts time.Time, src, dst *net.TCPAddr, seq, ack uint32, flags tcpFlags, payload []byte) error {
	packet, family, err := buildPacket(src, dst, seq, ack, flags, payload)
	if err != nil {
		return err
	}

	record := make([]byte, 16+4+len(packet))
	binary.LittleEndian.PutUint32(record[0:4], uint32(ts.Unix()))
	binary.LittleEndian.PutUint32(record[4:8], uint32(ts.Nanosecond()/1000))
	binary.LittleEndian.PutUint32(record[8:12], uint32(4+len(packet)))
	binary.LittleEndian.PutUint32(record[12:16], uint32(4+len(packet)))
	binary.LittleEndian.PutUint32(record[16:20], family)
	copy(record[20:], packet)

	w.sink(record)
	return nil
}

// buildPacket serialises the IP and TCP layers with computed lengths and
// checksums.
func buildPacket(src, dst *net.TCPAddr, seq, ack uint32, flags tcpFlags, payload []byte) ([]byte, uint32, error) {
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(src.Port),
		DstPort: layers.TCPPort(dst.Port),
		Seq:     seq,
		Ack:     ack,
		SYN:     flags.syn,
		ACK:     flags.ack,
		PSH:     flags.psh,
		FIN:     flags.fin,
		Window:  65535,
	}

	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	buf := gopacket.NewSerializeBuffer()

	if src4, dst4 := src.IP.To4(), dst.IP.To4(); src4 != nil && dst4 != nil {
		ip := &layers.IPv4{
			Version:  4,
			IHL:      5,
			TTL:      64,
			Protocol: layers.IPProtocolTCP,
			SrcIP:    src4,
			DstIP:    dst4,
		}
		if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, 0, fmt.Errorf("pcap: bind checksum layer: %w", err)
		}
		if err := gopacket.SerializeLayers(buf, opts, ip, tcp, gopacket.Payload(payload)); err != nil {
			return nil, 0, fmt.Errorf("pcap: serialize IPv4 packet: %w", err)
		}
		return buf.Bytes(), familyIPv4, nil
	}

	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: layers.IPProtocolTCP,
		SrcIP:      src.IP.To16(),
		DstIP:      dst.IP.To16(),
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, 0, fmt.Errorf("pcap: bind checksum layer: %w", err)
	}
	if err := gopacket.SerializeLayers(buf, opts, ip, tcp, gopacket.Payload(payload)); err != nil {
		return nil, 0, fmt.Errorf("pcap: serialize IPv6 packet: %w", err)
	}
	return buf.Bytes(), familyIPv6, nil
}
