package mac

import (
	"github.com/google/uuid"

	"github.com/lorawan-edge/mac-core/pkg/lorawan"
	"github.com/lorawan-edge/mac-core/pkg/region"
)

// MlmeType selects which management primitive an MlmeRequest performs
// (§4.8).
type MlmeType int

const (
	MlmeJoin MlmeType = iota
	MlmeLinkCheck
	MlmeTxCw
	MlmeTxCw1
	// MlmeDeviceTime requests the network's GPS-epoch clock via the
	// DeviceTimeReq/DeviceTimeAns MAC command pair (§4.9).
	MlmeDeviceTime
)

// McpsType selects which data primitive an McpsRequest performs (§4.8).
type McpsType int

const (
	McpsUnconfirmed McpsType = iota
	McpsConfirmed
	McpsProprietary
	McpsMulticast // indication only; never valid on a request
)

// MlmeReq is the MLME-Request parameter block. RequestID correlates this
// request with its eventual Confirm and every log line emitted while
// servicing it; leave it uuid.Nil and the MIB stamps a fresh v4 itself.
type MlmeReq struct {
	Type      MlmeType
	RequestID uuid.UUID

	// TxCwFrequencyHz/TxCwPowerDBm/TxCwTimeoutS are only read for
	// MlmeTxCw/MlmeTxCw1.
	TxCwFrequencyHz uint32
	TxCwPowerDBm    int8
	TxCwTimeoutS    uint16
}

// MlmeConfirm is delivered via Confirms.MlmeConfirm once an MlmeReq
// completes.
type MlmeConfirm struct {
	Type      MlmeType
	RequestID uuid.UUID
	Status    Status
	EventInfo EventInfo

	// DeviceTimeSeconds/Fractional carry the decoded DeviceTimeAns
	// payload for a MlmeDeviceTime confirm; zero otherwise.
	DeviceTimeSeconds    uint32
	DeviceTimeFractional uint8

	// Cause carries the underlying error behind a non-OK Status/EventInfo
	// for logging, without changing the typed status contract (§7).
	Cause error
}

// McpsReq is the MCPS-Request parameter block. RequestID correlates this
// request with its McpsConfirm, and with every McpsIndication delivered
// while its transmit cycle is still open.
type McpsReq struct {
	Type      McpsType
	RequestID uuid.UUID

	FPort    uint8
	HasFPort bool
	FBuffer  []byte
	NbTrials int // confirmed uplink retry budget, 1..MaxAckRetries
}

// McpsConfirm is delivered via Confirms.McpsConfirm once an McpsReq's
// transmit cycle (including any confirmed retries) completes.
type McpsConfirm struct {
	Type          McpsType
	RequestID     uuid.UUID
	Status        Status
	EventInfo     EventInfo
	UpLinkCounter uint32
	Datarate      int
	TxPowerDBm    int8
	AckReceived   bool
	NbRetries     int

	// Cause carries the underlying error behind a non-OK Status/EventInfo
	// for logging, without changing the typed status contract (§7).
	Cause error
}

// McpsIndication is delivered via Confirms.McpsIndication for every
// downlink that passes MIC validation, and is re-delivered (with
// Repeated=true, no payload) for a duplicate confirmed downlink whose ACK
// must still be honored. RequestID carries the RequestID of the uplink
// whose RX windows the downlink arrived in, or the zero UUID for a
// Class C/multicast indication with no associated request.
type McpsIndication struct {
	Status          Status
	RequestID       uuid.UUID
	EventInfo       EventInfo
	FPort           uint8
	HasFPort        bool
	Buffer          []byte
	RxSlot          int // 0 = RX1, 1 = RX2
	RxDatarate      int
	DownLinkCounter uint32
	AckReceived     bool
	Repeated        bool
	Multicast       bool

	// Cause carries the underlying error behind a non-OK Status/EventInfo
	// for logging, without changing the typed status contract (§7).
	Cause error
}

// Attribute names one of the MibApi's managed parameters (§4.8/§6).
type Attribute int

const (
	MibDevEUI Attribute = iota
	MibAppEUI
	MibAppKey
	MibNetworkJoined
	MibDevAddr
	MibNetID
	MibNwkSKey
	MibAppSKey
	MibAdrEnable
	MibPublicNetwork
	MibRepeaterSupport
	MibDeviceClass
	MibReceiveDelay1
	MibReceiveDelay2
	MibJoinAcceptDelay1
	MibJoinAcceptDelay2
	MibMaxRxWindow
	MibSystemMaxRxError
	MibMinRxSymbols
	MibChannelsTxPower
	MibChannelsDatarate
	MibRx1DROffset
	MibRx2Channel
	MibChannelsMask
	MibChannelsNbRep
	MibAntennaGain
	MibMaxEIRP
	MibUplinkDwellTime
	MibDownlinkDwellTime
	MibMaxDutyCycle
	MibUpLinkCounter
	MibDownLinkCounter
	// MibRejoinCounters is read-only bookkeeping (§4.10): uplinks
	// transmitted since the last downlink of any kind was received.
	MibRejoinCounters
)

// Value is the tagged-union payload carried by MibGetRequestConfirm and
// MibSetRequestConfirm; only the fields relevant to Attribute are read or
// written.
type Value struct {
	Bool         bool
	Int          int
	Int8         int8
	Uint8        uint8
	Uint32       uint32
	EUI          lorawan.EUI64
	Key          lorawan.AES128Key
	DevAddr      lorawan.DevAddr
	NetID        lorawan.NetID
	Class        DeviceClass
	ChannelsMask []uint16
	Rx2          region.RX2Config
}

// MibGetRequestConfirm reads one managed attribute.
func (c *Context) MibGetRequestConfirm(attr Attribute) (Value, Status) {
	switch attr {
	case MibDevEUI:
		return Value{EUI: c.session.DevEUI}, StatusOK
	case MibAppEUI:
		return Value{EUI: c.session.AppEUI}, StatusOK
	case MibAppKey:
		return Value{Key: c.session.AppKey}, StatusOK
	case MibNetworkJoined:
		return Value{Bool: c.session.Joined}, StatusOK
	case MibDevAddr:
		return Value{DevAddr: c.session.DevAddr}, StatusOK
	case MibNetID:
		return Value{NetID: c.session.NetID}, StatusOK
	case MibNwkSKey:
		return Value{Key: c.session.NwkSKey}, StatusOK
	case MibAppSKey:
		return Value{Key: c.session.AppSKey}, StatusOK
	case MibAdrEnable:
		return Value{Bool: c.params.AdrEnabled}, StatusOK
	case MibPublicNetwork:
		return Value{Bool: c.params.PublicNetwork}, StatusOK
	case MibRepeaterSupport:
		return Value{Bool: c.params.RepeaterSupport}, StatusOK
	case MibDeviceClass:
		return Value{Class: c.params.DeviceClass}, StatusOK
	case MibReceiveDelay1:
		return Value{Uint32: uint32(c.params.ReceiveDelay1)}, StatusOK
	case MibReceiveDelay2:
		return Value{Uint32: uint32(c.params.ReceiveDelay2)}, StatusOK
	case MibJoinAcceptDelay1:
		return Value{Uint32: uint32(c.params.JoinAcceptDelay1)}, StatusOK
	case MibJoinAcceptDelay2:
		return Value{Uint32: uint32(c.params.JoinAcceptDelay2)}, StatusOK
	case MibMaxRxWindow:
		return Value{Uint32: uint32(c.params.MaxRxWindow)}, StatusOK
	case MibSystemMaxRxError:
		return Value{Uint32: uint32(c.params.SystemMaxRxError)}, StatusOK
	case MibMinRxSymbols:
		return Value{Int: c.params.MinRxSymbols}, StatusOK
	case MibChannelsTxPower:
		return Value{Int8: c.params.ChannelsTxPower}, StatusOK
	case MibChannelsDatarate:
		return Value{Int: c.params.ChannelsDatarate}, StatusOK
	case MibRx1DROffset:
		return Value{Int: c.params.Rx1DROffset}, StatusOK
	case MibRx2Channel:
		return Value{Rx2: c.params.Rx2Channel}, StatusOK
	case MibChannelsMask:
		return Value{ChannelsMask: c.region.ChannelsMask()}, StatusOK
	case MibChannelsNbRep:
		return Value{Uint8: c.params.ChannelsNbRep}, StatusOK
	case MibAntennaGain:
		return Value{Int8: c.params.AntennaGain}, StatusOK
	case MibMaxEIRP:
		return Value{Int8: c.params.MaxEIRP}, StatusOK
	case MibUplinkDwellTime:
		return Value{Bool: c.params.UplinkDwellTime}, StatusOK
	case MibDownlinkDwellTime:
		return Value{Bool: c.params.DownlinkDwellTime}, StatusOK
	case MibMaxDutyCycle:
		return Value{Uint8: c.params.MaxDutyCycle}, StatusOK
	case MibUpLinkCounter:
		return Value{Uint32: c.session.UpLinkCounter}, StatusOK
	case MibDownLinkCounter:
		return Value{Uint32: c.session.DownLinkCounter}, StatusOK
	case MibRejoinCounters:
		return Value{Uint32: c.session.UplinksSinceDownlink}, StatusOK
	default:
		return Value{}, StatusServiceUnknown
	}
}

// MibSetRequestConfirm writes one managed attribute. It returns BUSY if a
// TX cycle is running and the attribute affects an in-flight
// transmission, and PARAMETER_INVALID on bounds failures.
func (c *Context) MibSetRequestConfirm(attr Attribute, v Value) Status {
	if c.txAffecting(attr) && !c.hasState(StateIdle) {
		return StatusBusy
	}

	switch attr {
	case MibDevAddr:
		c.session.DevAddr = v.DevAddr
		return StatusOK
	case MibNetID:
		c.session.NetID = v.NetID
		return StatusOK
	case MibNwkSKey:
		c.session.NwkSKey = v.Key
		return StatusOK
	case MibAppSKey:
		c.session.AppSKey = v.Key
		return StatusOK
	case MibAdrEnable:
		c.params.AdrEnabled = v.Bool
		return StatusOK
	case MibPublicNetwork:
		c.params.PublicNetwork = v.Bool
		c.radioPort.SetPublicNetwork(v.Bool)
		return StatusOK
	case MibRepeaterSupport:
		c.params.RepeaterSupport = v.Bool
		return StatusOK
	case MibDeviceClass:
		return c.setDeviceClass(v.Class)
	case MibReceiveDelay1:
		c.params.ReceiveDelay1 = int64(v.Uint32)
		return StatusOK
	case MibReceiveDelay2:
		c.params.ReceiveDelay2 = int64(v.Uint32)
		return StatusOK
	case MibChannelsTxPower:
		c.params.ChannelsTxPower = v.Int8
		return StatusOK
	case MibChannelsDatarate:
		if _, ok := c.region.PhyParams(v.Int); !ok {
			return StatusParameterInvalid
		}
		c.params.ChannelsDatarate = v.Int
		return StatusOK
	case MibRx1DROffset:
		c.params.Rx1DROffset = v.Int
		return StatusOK
	case MibRx2Channel:
		c.params.Rx2Channel = v.Rx2
		return StatusOK
	case MibChannelsMask:
		if err := c.region.SetChannelsMask(v.ChannelsMask); err != nil {
			return StatusParameterInvalid
		}
		return StatusOK
	case MibChannelsNbRep:
		if v.Uint8 < 1 || v.Uint8 > 15 {
			return StatusParameterInvalid
		}
		c.params.ChannelsNbRep = v.Uint8
		return StatusOK
	case MibAntennaGain:
		c.params.AntennaGain = v.Int8
		return StatusOK
	case MibMaxEIRP:
		c.params.MaxEIRP = v.Int8
		return StatusOK
	case MibUplinkDwellTime:
		c.params.UplinkDwellTime = v.Bool
		return StatusOK
	case MibDownlinkDwellTime:
		c.params.DownlinkDwellTime = v.Bool
		return StatusOK
	case MibMaxDutyCycle:
		c.params.MaxDutyCycle = v.Uint8
		return StatusOK
	default:
		return StatusServiceUnknown
	}
}

func (c *Context) txAffecting(attr Attribute) bool {
	switch attr {
	case MibChannelsTxPower, MibChannelsDatarate, MibChannelsMask, MibDeviceClass:
		return true
	default:
		return false
	}
}

func (c *Context) setDeviceClass(class DeviceClass) Status {
	prev := c.params.DeviceClass
	c.params.DeviceClass = class
	if class == ClassC && prev != ClassC && c.hasState(StateIdle) {
		c.openClassCWindow()
	}
	if class != ClassC && prev == ClassC {
		c.closeClassCWindow()
	}
	return StatusOK
}

// ResetMacParameters reloads Params from the region's defaults without
// touching identity keys, DevAddr, or counters (§3).
func (c *Context) ResetMacParameters() {
	class := c.params.DeviceClass
	c.params = Defaults(c.region)
	c.params.DeviceClass = class
}
