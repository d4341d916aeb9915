package mac

import "github.com/lorawan-edge/mac-core/pkg/region"

// Params is LoRaMacParams (§3 "Global MAC parameters"): the tunables that
// govern every transmit/receive cycle, independent of session identity.
// ResetMacParameters reloads this from Defaults without touching keys,
// DevAddr, or counters.
type Params struct {
	ChannelsTxPower  int8
	ChannelsDatarate int

	MaxRxWindow int64 // ms, upper bound a receive window may stretch to

	ReceiveDelay1     int64 // ms
	ReceiveDelay2     int64
	JoinAcceptDelay1  int64
	JoinAcceptDelay2  int64

	Rx1DROffset int
	Rx2Channel  region.RX2Config

	UplinkDwellTime   bool
	DownlinkDwellTime bool
	MaxEIRP           int8
	AntennaGain       int8

	ChannelsNbRep uint8

	SystemMaxRxError int64
	MinRxSymbols     int

	AdrEnabled    bool
	PublicNetwork bool
	RepeaterSupport bool
	DeviceClass   DeviceClass

	MaxDutyCycle uint8 // 255 => DEVICE_OFF
}

// Defaults returns the LoRaWAN v1.0.2 defaults for a freshly constructed
// region, before any join or MIB Set has touched them.
func Defaults(r region.Region) Params {
	return Params{
		ChannelsTxPower:   0,
		ChannelsDatarate:  0,
		MaxRxWindow:       3000,
		ReceiveDelay1:     1000,
		ReceiveDelay2:     2000,
		JoinAcceptDelay1:  5000,
		JoinAcceptDelay2:  6000,
		Rx1DROffset:       0,
		Rx2Channel:        r.DefaultRX2(),
		UplinkDwellTime:   false,
		DownlinkDwellTime: false,
		MaxEIRP:           16,
		AntennaGain:       0,
		ChannelsNbRep:     1,
		SystemMaxRxError:  10,
		MinRxSymbols:      6,
		AdrEnabled:        false,
		PublicNetwork:     true,
		DeviceClass:       ClassA,
		MaxDutyCycle:      0,
	}
}
