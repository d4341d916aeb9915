// Package region implements the regional PHY-layer rules a LoRaWAN end
// device must follow: channel plans, datarate tables, duty-cycle back-off,
// TX power bounds, and the downlink MAC-command verification logic that is
// specific to a frequency plan (LinkAdrReq, RxParamSetupReq, NewChannelReq,
// DlChannelReq, TxParamSetupReq). Two reference variants are implemented,
// EU868 and US915, representative of the ten regions LoRaWAN defines; the
// remaining eight have no implementation here.
package region

// TimerTime is a monotonic millisecond timestamp, matching pkg/timerport.
type TimerTime = int64

// Name identifies a region variant. Only EU868 and US915 have a concrete
// implementation; the others are listed so callers and MIB attribute
// validation can reason about the full LoRaWAN region space.
type Name string

const (
	AS923       Name = "AS923"
	AU915       Name = "AU915"
	CN470       Name = "CN470"
	CN779       Name = "CN779"
	EU433       Name = "EU433"
	EU868       Name = "EU868"
	KR920       Name = "KR920"
	IN865       Name = "IN865"
	US915       Name = "US915"
	US915Hybrid Name = "US915_HYBRID"
)

// DataRate describes one entry of a region's DR table.
type DataRate struct {
	SpreadingFactor int
	BandwidthHz     int
	IsFSK           bool
	FSKBitRate      int
}

// Channel is one enabled-or-not uplink channel.
type Channel struct {
	FrequencyHz    uint32
	RX1FrequencyHz uint32 // 0 means "derive from the uplink channel"
	DRMin, DRMax   int
	BandIdx        int
	Enabled        bool
}

// Band groups channels under a shared duty-cycle and TX power ceiling.
type Band struct {
	DutyCycleDenom   uint16
	TxMaxPowerDBm    int8
	LastTxDoneMs     TimerTime
	LastJoinTxDoneMs TimerTime
	TimeOffMs        TimerTime
}

// RX2Config is the single RX2 channel every region keeps, independent of
// the main channel plan.
type RX2Config struct {
	FrequencyHz uint32
	Datarate    int
}

// TxConfigResult is what the scheduler feeds to RadioPort.SetTxConfig.
type TxConfigResult struct {
	FrequencyHz uint32
	Datarate    int
	TxPowerDBm  int8
	TimeOnAirMs TimerTime
}

// RxConfigResult is what the scheduler feeds to RadioPort.SetRxConfig.
type RxConfigResult struct {
	FrequencyHz uint32
	Datarate    int
}

// RxWindowParams is ComputeRxWindow's result (§4.4).
type RxWindowParams struct {
	WindowTimeoutSymbols int
	WindowOffsetMs       int64
}

// ADRNextInput is what the scheduler knows when asking for the next ADR
// decision (§4.4 "ADR-next").
type ADRNextInput struct {
	AdrEnabled     bool
	AdrAckCounter  uint32
	Datarate       int
	TxPowerIndex   int8
	MinDatarate    int
	MaxTxPowerDBm  int8
}

// ADRNextResult carries the decision plus the flags the scheduler needs to
// set FCtrl.ADRACKReq and, on decay, reset the channel mask.
type ADRNextResult struct {
	Datarate          int
	TxPowerIndex      int8
	AdrAckReq         bool
	ResetChannelMask  bool
}

const (
	// AdrAckLimit is the ADRAckCounter threshold that raises ADRACKReq.
	AdrAckLimit = 64
	// AdrAckDelay is the number of additional frames after AdrAckLimit
	// before the first datarate step-down.
	AdrAckDelay = 32
)

// LinkAdrReqResult is the cumulative effect of one or more consecutive
// LinkAdrReq commands (§4.4 "LinkAdrReq processing").
type LinkAdrReqResult struct {
	Statuses     []byte // one per parsed request, bit2=power bit1=dr bit0=mask
	Datarate     int
	TxPowerIndex int8
	NbRep        uint8
	ChannelsMask []uint16
}

// RxParamSetupResult carries the decoded RxParamSetupReq fields alongside
// the 3-bit status (§4.4).
type RxParamSetupResult struct {
	Status      byte // bit2=freq_ok bit1=dr_ok bit0=dr_offset_ok
	FrequencyHz uint32
	Datarate    int
	DROffset    int
}

// NextChannelInput is what NextChannel needs from the scheduler to pick a
// transmit channel (§4.4).
type NextChannelInput struct {
	Now      TimerTime
	Datarate int
}

// NextChannelResult is the chosen channel plus how long to wait if none is
// currently available.
type NextChannelResult struct {
	Available  bool
	ChannelIdx int
	WaitMs     TimerTime
}

// BackOffInput is what CalcBackOff needs (§4.4).
type BackOffInput struct {
	Now           TimerTime
	Joined        bool
	JoinTrialTime TimerTime // wall time elapsed since the very first join attempt
	TimeOnAirMs   TimerTime
	BandIdx       int
	DutyCycleOn   bool
}

// Region is the polymorphic capability set the scheduler drives. Every
// concrete region (EU868, US915) owns its channel/band state; the
// scheduler never reaches into it directly.
type Region interface {
	Name() Name

	PhyParams(dr int) (DataRate, bool)
	MaxPayload(dr int) int
	NumChannels() int
	ChannelsMask() []uint16
	SetChannelsMask(mask []uint16) error
	DefaultChannelsMask() []uint16

	DefaultRX2() RX2Config
	RxConfig(window int, channelIdx int, uplinkDR int, rx1DROffset int, rx2 RX2Config) (RxConfigResult, error)
	TxConfig(channelIdx int, dr int, txPowerIndex int8, payloadLen int) (TxConfigResult, error)

	ADRNext(in ADRNextInput) ADRNextResult
	LinkAdrReq(payloads [][]byte, curDatarate int, curTxPowerIndex int8, curNbRep uint8) (LinkAdrReqResult, error)
	RxParamSetupReq(payload []byte) RxParamSetupResult
	NewChannelReq(payload []byte) byte
	TxParamSetupReq(payload []byte) byte
	DlChannelReq(payload []byte) byte
	ApplyCFList(cfList []byte) error

	NextChannel(in NextChannelInput, random func() uint32) NextChannelResult
	ComputeRxWindow(dr int, minRxSymbols int, systemMaxRxErrorMs int64) RxWindowParams
	CalcBackOff(in BackOffInput) TimerTime
	UpdateBandTimeOff(bandIdx int, now TimerTime)
	AlternateDr(trial int, base int) int

	SetContinuousWave(freq uint32, power int8, timeoutS uint16) TxConfigResult
}
