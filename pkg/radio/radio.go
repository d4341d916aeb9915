// Package radio defines the RadioPort abstraction: the capability set the
// MAC consumes from a physical LoRa transceiver. Only the interface and
// its event types live here — a concrete driver (SX127x, SX126x, ...) is
// out of scope; see DESIGN.md.
package radio

import "github.com/lorawan-edge/mac-core/pkg/timerport"

// Modem selects the radio's modulation scheme.
type Modem int

const (
	ModemLoRa Modem = iota
	ModemFSK
)

// Status mirrors the radio driver's coarse state machine.
type Status int

const (
	Idle Status = iota
	RxRunning
	TxRunning
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "Idle"
	case RxRunning:
		return "RxRunning"
	case TxRunning:
		return "TxRunning"
	default:
		return "unknown"
	}
}

// TxConfig is the full parameter set for SetTxConfig, matching the
// SX127x/SX126x driver surface (§4.3): power and spreading factor vary
// per transmission, the rest default to the values LoRaWAN always uses.
type TxConfig struct {
	Modem          Modem
	PowerDBm       int8
	FreqDeviation  uint32
	BandwidthHz    uint32
	SpreadingFactor int
	CodingRate     int // 1 = 4/5
	PreambleLen    int
	FixLen         bool
	CRCOn          bool
	FreqHopOn      bool
	HopPeriod      int
	IQInverted     bool
	TxTimeoutMs    uint32
}

// RxConfig is the full parameter set for SetRxConfig.
type RxConfig struct {
	Modem           Modem
	BandwidthHz     uint32
	SpreadingFactor int
	CodingRate      int
	BandwidthAFCHz  uint32
	PreambleLen     int
	SymbTimeout     uint16
	FixLen          bool
	PayloadLen      int
	CRCOn           bool
	FreqHopOn       bool
	HopPeriod       int
	IQInverted      bool
	RxContinuous    bool
}

// RxDoneEvent carries a received frame and its link-quality metrics.
type RxDoneEvent struct {
	Payload []byte
	RSSIDBm int
	SNR     float32
}

// EventSink is how the radio pushes asynchronous events back into the
// MAC. Every method runs on the MAC's single-threaded cooperative
// context, the same as TimerPort callbacks.
type EventSink interface {
	OnTxDone(t timerport.Time)
	OnRxDone(t timerport.Time, ev RxDoneEvent)
	OnTxTimeout(t timerport.Time)
	OnRxError(t timerport.Time)
	OnRxTimeout(t timerport.Time)
}

// Port is the capability set a physical LoRa transceiver driver exposes
// to the MAC (§4.3). It owns no MAC state; the MAC owns all sequencing.
type Port interface {
	SetChannel(freqHz uint32)
	SetPublicNetwork(on bool)
	SetMaxPayloadLength(modem Modem, n int)

	SetTxConfig(cfg TxConfig)
	SetRxConfig(cfg RxConfig)

	Send(buf []byte) error
	// Rx starts a receive window. timeoutMs == 0 means continuous
	// (Class C) reception.
	Rx(timeoutMs uint32) error
	Sleep()
	Standby()

	TimeOnAir(modem Modem, pktLen int) uint32
	Random() uint32
	CheckRfFrequency(freqHz uint32) bool
	GetStatus() Status
	SetTxContinuousWave(freqHz uint32, powerDBm int8, timeoutS uint16)

	// SetEventSink registers where asynchronous radio events are
	// delivered. The MAC calls this once during initialization.
	SetEventSink(sink EventSink)
}
