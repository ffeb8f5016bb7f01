// Package decoder extracts addresses and radio metadata from an 802.11
// MAC header. It is called from the sniffer's driver-context callback
// (internal/sniffer) and must not allocate: every return value is a
// fixed-size array copied out of the input buffer.
package decoder

import "errors"

// ErrFrameTooShort is returned for any buffer under the 24-byte MAC
// header length. The driver callback discards such frames silently;
// this error exists for the decoder's own tests and callers that do
// want to log it off the hot path.
var ErrFrameTooShort = errors.New("decoder: frame shorter than 24 bytes")

// MACHeaderLen is the fixed length of the IEEE 802.11 MAC header this
// decoder understands: frame control (2) + duration (2) + addr1 (6) +
// addr2 (6) + addr3 (6) + seq ctrl (2) = 24 bytes.
const MACHeaderLen = 24

// Addr is a raw 48-bit MAC address.
type Addr [6]byte

// IsBroadcast reports whether addr is FF:FF:FF:FF:FF:FF.
func (a Addr) IsBroadcast() bool {
	for _, b := range a {
		if b != 0xFF {
			return false
		}
	}
	return true
}

// IsMulticast reports whether the group bit (LSB of the first octet)
// is set, per IEEE 802 addressing.
func (a Addr) IsMulticast() bool {
	return a[0]&0x01 != 0
}

// Frame is the set of fields pulled out of a single 802.11 frame: the
// three MAC-header addresses plus the driver's receive-control metadata.
type Frame struct {
	Receiver    Addr // addr1
	Transmitter Addr // addr2 — the source address used for tracking
	BSSID       Addr // addr3
	RSSI        int8
	Channel     uint8
}

// Decode reads the first 24 bytes of buf as an 802.11 MAC header and
// combines them with the driver-supplied rssi/channel metadata.
//
// Decode performs no allocation and tolerates any frame subtype —
// callers that only want data/management frames must filter upstream
// (e.g. the driver's promiscuous filter mask) since this decoder does
// not inspect the frame-control field's type/subtype bits.
// internal/sniffer does not filter by frame type either.
func Decode(buf []byte, rssi int8, channel uint8) (Frame, error) {
	if len(buf) < MACHeaderLen {
		return Frame{}, ErrFrameTooShort
	}
	var f Frame
	copy(f.Receiver[:], buf[4:10])
	copy(f.Transmitter[:], buf[10:16])
	copy(f.BSSID[:], buf[16:22])
	f.RSSI = rssi
	f.Channel = channel
	return f, nil
}
