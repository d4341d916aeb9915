package region

import "github.com/pkg/errors"

// eu868DataRates is the EU868 DR0-DR7 table (DR0-DR5 LoRa, DR6 LoRa/BW250,
// DR7 FSK), matching the Regional Parameters table used by LoRaMac-node's
// RegionEU868.
var eu868DataRates = []DataRate{
	{SpreadingFactor: 12, BandwidthHz: 125000},
	{SpreadingFactor: 11, BandwidthHz: 125000},
	{SpreadingFactor: 10, BandwidthHz: 125000},
	{SpreadingFactor: 9, BandwidthHz: 125000},
	{SpreadingFactor: 8, BandwidthHz: 125000},
	{SpreadingFactor: 7, BandwidthHz: 125000},
	{SpreadingFactor: 7, BandwidthHz: 250000},
	{IsFSK: true, FSKBitRate: 50000},
}

var eu868MaxPayload = []int{51, 51, 51, 115, 242, 242, 242, 242}

// eu868Rx1DROffset[uplinkDR][offset] is the downlink DR used in RX1.
var eu868Rx1DROffset = [][]int{
	{0, 0, 0, 0, 0, 0},
	{1, 0, 0, 0, 0, 0},
	{2, 1, 0, 0, 0, 0},
	{3, 2, 1, 0, 0, 0},
	{4, 3, 2, 1, 0, 0},
	{5, 4, 3, 2, 1, 0},
	{6, 5, 4, 3, 2, 1},
	{7, 6, 5, 4, 3, 2},
}

// eu868TxPowerDBm[index] is the ERP ceiling for a given LinkADRReq TX power
// field; index 0 is the regulatory maximum.
var eu868TxPowerDBm = []int8{16, 14, 12, 10, 8, 6, 4, 2}

// EU868 implements the 863-870MHz ISM band plan: three default channels,
// a single duty-cycle band at 1%, and the 8-step EU TX power table.
type EU868 struct {
	channels     []Channel
	channelsMask []uint16
	band         Band
	joinBand     Band
	rx2          RX2Config
}

// NewEU868 returns a region configured with the three mandatory default
// channels (868.1/868.3/868.5 MHz, DR0-DR5) and RX2 at 869.525MHz/DR0.
func NewEU868() *EU868 {
	r := &EU868{
		channels: []Channel{
			{FrequencyHz: 868100000, DRMin: 0, DRMax: 5, Enabled: true},
			{FrequencyHz: 868300000, DRMin: 0, DRMax: 5, Enabled: true},
			{FrequencyHz: 868500000, DRMin: 0, DRMax: 5, Enabled: true},
		},
		channelsMask: []uint16{0x0007},
		band:         Band{DutyCycleDenom: 100, TxMaxPowerDBm: 16},
		joinBand:     Band{DutyCycleDenom: 100, TxMaxPowerDBm: 16},
		rx2:          RX2Config{FrequencyHz: 869525000, Datarate: 0},
	}
	return r
}

func (r *EU868) Name() Name { return EU868 }

func (r *EU868) PhyParams(dr int) (DataRate, bool) {
	if dr < 0 || dr >= len(eu868DataRates) {
		return DataRate{}, false
	}
	return eu868DataRates[dr], true
}

func (r *EU868) MaxPayload(dr int) int {
	if dr < 0 || dr >= len(eu868MaxPayload) {
		return 0
	}
	return eu868MaxPayload[dr]
}

func (r *EU868) NumChannels() int { return len(r.channels) }

func (r *EU868) ChannelsMask() []uint16 { return cloneMask(r.channelsMask) }

func (r *EU868) DefaultChannelsMask() []uint16 { return []uint16{0x0007} }

func (r *EU868) SetChannelsMask(mask []uint16) error {
	if len(mask) != len(r.channelsMask) {
		return errors.New("region: eu868 channel mask must be 1 word")
	}
	r.channelsMask = cloneMask(mask)
	return nil
}

func (r *EU868) enabledChannels(dr int) []int {
	var out []int
	for i, ch := range r.channels {
		if !ch.Enabled {
			continue
		}
		if r.channelsMask[0]&(1<<uint(i)) == 0 {
			continue
		}
		if dr < ch.DRMin || dr > ch.DRMax {
			continue
		}
		out = append(out, i)
	}
	return out
}

func (r *EU868) DefaultRX2() RX2Config { return RX2Config{FrequencyHz: 869525000, Datarate: 0} }

func (r *EU868) RxConfig(window int, channelIdx int, uplinkDR int, rx1DROffset int, rx2 RX2Config) (RxConfigResult, error) {
	if window == 2 {
		if rx2.FrequencyHz == 0 {
			rx2 = r.rx2
		}
		return RxConfigResult{FrequencyHz: rx2.FrequencyHz, Datarate: rx2.Datarate}, nil
	}
	if channelIdx < 0 || channelIdx >= len(r.channels) {
		return RxConfigResult{}, errors.Errorf("region: eu868 channel index %d out of range", channelIdx)
	}
	ch := r.channels[channelIdx]
	freq := ch.FrequencyHz
	if ch.RX1FrequencyHz != 0 {
		freq = ch.RX1FrequencyHz
	}
	return RxConfigResult{FrequencyHz: freq, Datarate: r.rx1Datarate(uplinkDR, rx1DROffset)}, nil
}

func (r *EU868) rx1Datarate(uplinkDR, offset int) int {
	if uplinkDR < 0 || uplinkDR >= len(eu868Rx1DROffset) {
		uplinkDR = 0
	}
	row := eu868Rx1DROffset[uplinkDR]
	if offset < 0 || offset >= len(row) {
		offset = 0
	}
	return row[offset]
}

func (r *EU868) TxConfig(channelIdx int, dr int, txPowerIndex int8, payloadLen int) (TxConfigResult, error) {
	if channelIdx < 0 || channelIdx >= len(r.channels) {
		return TxConfigResult{}, errors.Errorf("region: eu868 channel index %d out of range", channelIdx)
	}
	drParams, ok := r.PhyParams(dr)
	if !ok {
		return TxConfigResult{}, errors.Errorf("region: eu868 invalid datarate %d", dr)
	}
	power := eu868TxPowerDBm[0]
	if int(txPowerIndex) < len(eu868TxPowerDBm) {
		power = eu868TxPowerDBm[txPowerIndex]
	}
	if payloadLen <= 0 || payloadLen > r.MaxPayload(dr) {
		payloadLen = r.MaxPayload(dr)
	}
	toa := timeOnAirLoRa(drParams, payloadLen)
	return TxConfigResult{
		FrequencyHz: r.channels[channelIdx].FrequencyHz,
		Datarate:    dr,
		TxPowerDBm:  power,
		TimeOnAirMs: toa,
	}, nil
}

func (r *EU868) ADRNext(in ADRNextInput) ADRNextResult {
	result := adrNext(in)
	if result.ResetChannelMask {
		r.channelsMask = r.DefaultChannelsMask()
	}
	return result
}

func (r *EU868) LinkAdrReq(payloads [][]byte, curDatarate int, curTxPowerIndex int8, curNbRep uint8) (LinkAdrReqResult, error) {
	res := LinkAdrReqResult{Datarate: curDatarate, TxPowerIndex: curTxPowerIndex, NbRep: curNbRep, ChannelsMask: cloneMask(r.channelsMask)}

	for _, p := range payloads {
		if len(p) != 4 {
			return res, errors.New("region: malformed LinkADRReq payload")
		}
		dr := int(p[0] >> 4)
		txPower := int8(p[0] & 0x0F)
		chMask := uint16(p[1]) | uint16(p[2])<<8
		chMaskCtrl := p[3] >> 4
		nbRep := p[3] & 0x0F

		datarateOk := dr == 0x0F || (dr >= 0 && dr < len(eu868DataRates))
		powerOk := txPower == 0x0F || int(txPower) < len(eu868TxPowerDBm)
		maskOk := chMaskCtrl == 0

		if maskOk {
			res.ChannelsMask[0] = chMask
		}
		if datarateOk && dr != 0x0F {
			res.Datarate = dr
		}
		if powerOk && txPower != 0x0F {
			res.TxPowerIndex = txPower
		}
		if nbRep != 0x0F {
			res.NbRep = nbRep
		}

		res.Statuses = append(res.Statuses, verifyLinkAdrStatus(powerOk, datarateOk, maskOk))
	}

	return res, nil
}

func (r *EU868) RxParamSetupReq(payload []byte) RxParamSetupResult {
	if len(payload) != 4 {
		return RxParamSetupResult{}
	}
	dlSettings := payload[0]
	freq := uint32(payload[1]) | uint32(payload[2])<<8 | uint32(payload[3])<<16
	freqHz := freq * 100

	dr := int(dlSettings & 0x0F)
	offset := int((dlSettings >> 4) & 0x07)

	_, drOk := r.PhyParams(dr)
	offsetOk := offset < len(eu868Rx1DROffset[0])
	freqOk := freqHz != 0

	status := verifyLinkAdrStatus(freqOk, drOk, offsetOk) // reuse bit layout: power->freq, dr->dr, mask->offset
	return RxParamSetupResult{Status: status, FrequencyHz: freqHz, Datarate: dr, DROffset: offset}
}

func (r *EU868) NewChannelReq(payload []byte) byte {
	if len(payload) != 5 {
		return 0
	}
	chIndex := int(payload[0])
	freqHz := (uint32(payload[1]) | uint32(payload[2])<<8 | uint32(payload[3])<<16) * 100
	drRange := payload[4]
	drMin, drMax := int(drRange&0x0F), int(drRange>>4)

	freqOk := freqHz != 0
	drOk := drMin <= drMax && drMax < len(eu868DataRates)
	if !freqOk || !drOk {
		return verifyLinkAdrStatus(false, drOk, freqOk) & 0x03
	}

	for len(r.channels) <= chIndex {
		r.channels = append(r.channels, Channel{})
	}
	r.channels[chIndex] = Channel{FrequencyHz: freqHz, DRMin: drMin, DRMax: drMax, Enabled: true}
	if needed := (chIndex / 16) + 1; needed > len(r.channelsMask) {
		r.channelsMask = append(r.channelsMask, make([]uint16, needed-len(r.channelsMask))...)
	}
	r.channelsMask[chIndex/16] |= 1 << uint(chIndex%16)

	return 0x03
}

func (r *EU868) TxParamSetupReq(payload []byte) byte {
	// EU868 does not use dwell-time/EIRP limits; the device answers OK
	// without changing behavior (§4.4, region capability is a no-op here).
	return 0
}

func (r *EU868) DlChannelReq(payload []byte) byte {
	if len(payload) != 4 {
		return 0
	}
	chIndex := int(payload[0])
	freqHz := (uint32(payload[1]) | uint32(payload[2])<<8 | uint32(payload[3])<<16) * 100

	if chIndex < 0 || chIndex >= len(r.channels) {
		return 0x01 // uplink frequency exists bit only, channel unknown -> not ok
	}
	if freqHz == 0 {
		return 0
	}
	r.channels[chIndex].RX1FrequencyHz = freqHz
	return 0x03
}

func (r *EU868) ApplyCFList(cfList []byte) error {
	if len(cfList) != 16 {
		return errors.New("region: eu868 CFList must be 16 bytes")
	}
	for i := 0; i < 5; i++ {
		off := i * 3
		freqHz := (uint32(cfList[off]) | uint32(cfList[off+1])<<8 | uint32(cfList[off+2])<<16) * 100
		if freqHz == 0 {
			continue
		}
		r.channels = append(r.channels, Channel{FrequencyHz: freqHz, DRMin: 0, DRMax: 5, Enabled: true})
		idx := len(r.channels) - 1
		r.channelsMask[0] |= 1 << uint(idx)
	}
	return nil
}

func (r *EU868) NextChannel(in NextChannelInput, random func() uint32) NextChannelResult {
	candidates := r.enabledChannels(in.Datarate)
	if len(candidates) == 0 {
		return NextChannelResult{Available: false, WaitMs: 1000}
	}

	var free []int
	minWait := TimerTime(-1)
	for _, idx := range candidates {
		wait := r.band.TimeOffMs - in.Now
		if wait <= 0 {
			free = append(free, idx)
			continue
		}
		if minWait < 0 || wait < minWait {
			minWait = wait
		}
	}
	if len(free) == 0 {
		return NextChannelResult{Available: false, WaitMs: minWait}
	}

	pick := free[random()%uint32(len(free))]
	return NextChannelResult{Available: true, ChannelIdx: pick}
}

func (r *EU868) ComputeRxWindow(dr int, minRxSymbols int, systemMaxRxErrorMs int64) RxWindowParams {
	drParams, ok := r.PhyParams(dr)
	if !ok {
		drParams = eu868DataRates[0]
	}
	return computeRxWindowParameters(drParams, minRxSymbols, systemMaxRxErrorMs)
}

func (r *EU868) CalcBackOff(in BackOffInput) TimerTime {
	if !in.Joined {
		off := calcJoinBackOff(in.JoinTrialTime, in.TimeOnAirMs)
		r.joinBand.TimeOffMs = in.Now + off
		r.band.TimeOffMs = in.Now + off
		return off
	}
	if !in.DutyCycleOn {
		return 0
	}
	off := calcDutyCycleTimeOff(in.TimeOnAirMs, r.band.DutyCycleDenom)
	r.band.TimeOffMs = in.Now + off
	return off
}

func (r *EU868) UpdateBandTimeOff(bandIdx int, now TimerTime) {
	r.band.LastTxDoneMs = now
}

func (r *EU868) AlternateDr(trial int, base int) int {
	// EU-like regions cycle DR0..DR5 across successive join attempts.
	return trial % 6
}

func (r *EU868) SetContinuousWave(freq uint32, power int8, timeoutS uint16) TxConfigResult {
	return TxConfigResult{FrequencyHz: freq, TxPowerDBm: power}
}
