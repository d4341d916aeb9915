package mac

import "github.com/lorawan-edge/mac-core/pkg/lorawan"

// maxFCntGap is MAX_FCNT_GAP (§3 "Counters"): a downlink whose
// reconstructed counter jumps further than this past DownLinkCounter is
// treated as too many lost frames rather than accepted.
const maxFCntGap = 16384

// Session holds everything that is wiped on rejoin: derived keys, DevAddr,
// and the three 32-bit counters whose low 16 bits travel on-air.
//
// Adapted from the server-side device-session bookkeeping pattern
// (FCnt rollover via a forward difference window) to the device side: the
// MAC tracks its own UpLinkCounter locally and only needs to reconstruct
// the full DownLinkCounter from the 16-bit value on the wire.
type Session struct {
	DevEUI lorawan.EUI64
	AppEUI lorawan.EUI64
	AppKey lorawan.AES128Key

	DevAddr lorawan.DevAddr
	NwkSKey lorawan.AES128Key
	AppSKey lorawan.AES128Key
	NetID   lorawan.NetID

	DevNonce uint16

	Joined bool

	UpLinkCounter   uint32
	DownLinkCounter uint32
	AdrAckCounter   uint32

	// UplinksSinceDownlink counts transmitted uplinks since the last
	// downlink of any kind was received, exposed read-only via
	// MibRejoinCounters for a caller layering 1.1-style rejoin policy on
	// top (§4.10). It is inert: this core never acts on it itself.
	UplinksSinceDownlink uint32
}

// ResolveDownlinkFCnt reconstructs the full 32-bit downlink counter from
// the 16-bit value carried on-air: the wire value is taken to be the
// smallest counter ≥ the current one whose low 16 bits match, i.e. the
// current counter plus the forward difference of the low 16 bits modulo
// 2^16. A wire value below the current low 16 bits therefore resolves
// into the next 2^16 block.
//
// It returns ok=false when the gap exceeds maxFCntGap, per §3's
// DOWNLINK_TOO_MANY_FRAMES_LOSS invariant; the caller must not advance
// DownLinkCounter in that case.
func (s *Session) ResolveDownlinkFCnt(wireFCnt uint16) (full uint32, isRepeat bool, ok bool) {
	current := s.DownLinkCounter
	currentLow := uint16(current)

	candidate := current + uint32(wireFCnt-currentLow)

	if candidate == current && current != 0 {
		return candidate, true, true
	}

	var gap uint32
	if candidate >= current {
		gap = candidate - current
	} else {
		gap = current - candidate
	}
	if gap > maxFCntGap {
		return candidate, false, false
	}

	return candidate, false, true
}

// Reset clears session material back to the unjoined state, keeping
// provisioned identity (DevEUI/AppEUI/AppKey).
func (s *Session) Reset() {
	s.DevAddr = lorawan.DevAddr{}
	s.NwkSKey = lorawan.AES128Key{}
	s.AppSKey = lorawan.AES128Key{}
	s.NetID = lorawan.NetID{}
	s.Joined = false
	s.UpLinkCounter = 0
	s.DownLinkCounter = 0
	s.AdrAckCounter = 0
	s.UplinksSinceDownlink = 0
}
