// Package lorawan implements the LoRaWAN v1.0.2 wire format: PHY payload
// framing, the AES-CMAC/CTR cryptographic primitives used for message
// integrity and payload confidentiality, and the MAC command codec. It has
// no knowledge of timing, regions, or retries — those live in pkg/region
// and pkg/mac, which build on top of the types defined here.
package lorawan

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// EUI64 is an 8-byte Extended Unique Identifier (DevEUI or AppEUI).
type EUI64 [8]byte

func (e EUI64) String() string {
	return hex.EncodeToString(e[:])
}

// MarshalJSON implements json.Marshaler.
func (e EUI64) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *EUI64) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(b) != 8 {
		return fmt.Errorf("lorawan: invalid EUI64 length %d", len(b))
	}

	copy(e[:], b)
	return nil
}

// DevAddr is the 32-bit network-issued device address, on-air little-endian.
type DevAddr [4]byte

func (d DevAddr) String() string {
	return hex.EncodeToString(d[:])
}

// Uint32 returns the little-endian on-wire value as a host integer.
func (d DevAddr) Uint32() uint32 {
	return uint32(d[0]) | uint32(d[1])<<8 | uint32(d[2])<<16 | uint32(d[3])<<24
}

// NetID is the 24-bit network identifier assigned at join time.
type NetID [3]byte

func (n NetID) String() string {
	return hex.EncodeToString(n[:])
}

// AES128Key is a 128-bit AES key (AppKey, NwkSKey, or AppSKey).
type AES128Key [16]byte

func (k AES128Key) String() string {
	return hex.EncodeToString(k[:])
}

// MType is the LoRaWAN message type, the top 3 bits of MHDR.
type MType byte

const (
	JoinRequest MType = iota
	JoinAccept
	UnconfirmedDataUp
	UnconfirmedDataDown
	ConfirmedDataUp
	ConfirmedDataDown
	RFU
	Proprietary
)

func (t MType) String() string {
	switch t {
	case JoinRequest:
		return "JoinRequest"
	case JoinAccept:
		return "JoinAccept"
	case UnconfirmedDataUp:
		return "UnconfirmedDataUp"
	case UnconfirmedDataDown:
		return "UnconfirmedDataDown"
	case ConfirmedDataUp:
		return "ConfirmedDataUp"
	case ConfirmedDataDown:
		return "ConfirmedDataDown"
	case Proprietary:
		return "Proprietary"
	default:
		return "RFU"
	}
}

// IsUplink reports whether the message type originates at the device.
func (t MType) IsUplink() bool {
	return t == JoinRequest || t == UnconfirmedDataUp || t == ConfirmedDataUp
}

// Major is the LoRaWAN major version, the bottom 2 bits of MHDR.
type Major byte

const (
	LoRaWAN1_0 Major = 0
)

// Direction selects the B0/Ai block's Dir byte for MIC and CTR crypto.
type Direction byte

const (
	Up   Direction = 0
	Down Direction = 1
)

// MHDR is the single-byte MAC header: MType in bits 7:5, Major in bits 1:0.
type MHDR struct {
	MType MType
	Major Major
}

// Byte encodes the MHDR to its on-air representation.
func (h MHDR) Byte() byte {
	return byte(h.MType)<<5 | byte(h.Major)
}

// SetByte decodes the MHDR from its on-air representation.
func (h *MHDR) SetByte(b byte) {
	h.MType = MType((b >> 5) & 0x07)
	h.Major = Major(b & 0x03)
}

// FCtrl is the frame-control byte. ADRACKReq/ClassB are uplink-only bits;
// FPending is downlink-only. Both share the ACK bit.
type FCtrl struct {
	ADR       bool
	ADRACKReq bool
	ACK       bool
	ClassB    bool
	FPending  bool
	FOptsLen  uint8
}

// Byte encodes FCtrl for the given direction.
func (c FCtrl) Byte(uplink bool) byte {
	var b byte
	if c.ADR {
		b |= 0x80
	}
	if uplink {
		if c.ADRACKReq {
			b |= 0x40
		}
		if c.ACK {
			b |= 0x20
		}
		if c.ClassB {
			b |= 0x10
		}
	} else {
		if c.ACK {
			b |= 0x20
		}
		if c.FPending {
			b |= 0x10
		}
	}
	b |= c.FOptsLen & 0x0F
	return b
}

// SetByte decodes FCtrl for the given direction.
func (c *FCtrl) SetByte(b byte, uplink bool) {
	c.ADR = b&0x80 != 0
	if uplink {
		c.ADRACKReq = b&0x40 != 0
		c.ACK = b&0x20 != 0
		c.ClassB = b&0x10 != 0
	} else {
		c.ACK = b&0x20 != 0
		c.FPending = b&0x10 != 0
	}
	c.FOptsLen = b & 0x0F
}

// MaxFOptsLen is the maximum size of the in-header MAC command field.
const MaxFOptsLen = 15

// FHDR is DevAddr + FCtrl + FCnt (16 bits on-air) + FOpts.
type FHDR struct {
	DevAddr DevAddr
	FCtrl   FCtrl
	FCnt    uint16
	FOpts   []byte
}

// MACPayload is the FHDR + optional FPort + FRMPayload.
type MACPayload struct {
	FHDR       FHDR
	FPort      *uint8
	FRMPayload []byte
}

// PHYPayload is the full over-the-air message: MHDR + MACPayload (encrypted
// FRMPayload in the data-message case) + MIC, modulo JoinAccept which
// encrypts the whole payload including the MIC (see frame.go).
type PHYPayload struct {
	MHDR       MHDR
	MACPayload []byte
	MIC        [4]byte
}

// JoinRequestPayload is the device-to-network join request body.
type JoinRequestPayload struct {
	AppEUI   EUI64
	DevEUI   EUI64
	DevNonce uint16
}

// DLSettings carries RX1DROffset and the RX2 datarate from a JoinAccept.
type DLSettings struct {
	RX1DROffset uint8
	RX2DataRate uint8
}

// Byte encodes DLSettings to its on-air representation.
func (s DLSettings) Byte() byte {
	return (s.RX1DROffset&0x07)<<4 | (s.RX2DataRate & 0x0F)
}

// SetByte decodes DLSettings from its on-air representation.
func (s *DLSettings) SetByte(b byte) {
	s.RX1DROffset = (b >> 4) & 0x07
	s.RX2DataRate = b & 0x0F
}

// CFListType distinguishes the CFList encodings. Only the frequency-list
// form has a constant here; US915's ApplyCFList accepts the channel-mask
// form (type byte 1) on its own.
type CFListType byte

const (
	// CFListFrequencies is 5 additional channel frequencies, 3 bytes each.
	CFListFrequencies CFListType = 0
)

// JoinAcceptPayload is the network-to-device join accept body (decrypted,
// pre-MIC-stripped view).
type JoinAcceptPayload struct {
	AppNonce   [3]byte
	NetID      NetID
	DevAddr    DevAddr
	DLSettings DLSettings
	RxDelay    uint8
	CFList     []byte // 16 bytes when present, nil otherwise
}
