package region

import "github.com/pkg/errors"

// us915DataRates is indexed by the full US915 DR space: DR0-DR3 are
// 125kHz LoRa uplink-only channels, DR4 is the 500kHz uplink channel,
// DR5-DR7 are reserved, DR8-DR13 are the 500kHz downlink-only datarates
// used in RX1/RX2.
var us915DataRates = []DataRate{
	{SpreadingFactor: 10, BandwidthHz: 125000},
	{SpreadingFactor: 9, BandwidthHz: 125000},
	{SpreadingFactor: 8, BandwidthHz: 125000},
	{SpreadingFactor: 7, BandwidthHz: 125000},
	{SpreadingFactor: 8, BandwidthHz: 500000},
	{}, {}, {},
	{SpreadingFactor: 12, BandwidthHz: 500000},
	{SpreadingFactor: 11, BandwidthHz: 500000},
	{SpreadingFactor: 10, BandwidthHz: 500000},
	{SpreadingFactor: 9, BandwidthHz: 500000},
	{SpreadingFactor: 8, BandwidthHz: 500000},
	{SpreadingFactor: 7, BandwidthHz: 500000},
}

var us915MaxPayload = []int{19, 61, 133, 250, 250, 0, 0, 0, 41, 117, 230, 230, 230, 230}

// us915Rx1DROffset[uplinkDR][offset] is the RX1 downlink DR (8-13 range).
var us915Rx1DROffset = [][]int{
	{10, 9, 8, 8},
	{11, 10, 9, 8},
	{12, 11, 10, 9},
	{13, 12, 11, 10},
	{13, 13, 12, 11},
}

// us915TxPowerDBm[index] is the conducted power ceiling for a LinkADRReq
// TX power field.
var us915TxPowerDBm = []int8{30, 28, 26, 24, 22, 20, 18, 16, 14, 12, 10}

const (
	us915Num125kHz = 64
	us915Num500kHz = 8
	us915NumChans  = us915Num125kHz + us915Num500kHz
)

// US915 implements the 902-928MHz fixed channel plan: 64 125kHz uplink
// channels (DR0-DR3) paired with 8 500kHz uplink channels (DR4), and 8
// 500kHz downlink channels used for every RX1/RX2. No duty-cycle limit
// applies in this band.
type US915 struct {
	channels     []Channel
	channelsMask []uint16 // 5 words: word[0..3] cover the 64 125kHz channels, word[4] bits0-7 the 500kHz channels
	// channelsMaskRemaining is the FCC 15.247 hopping set: NextChannel
	// picks from and clears bits in this mask rather than channelsMask
	// directly, repopulating it from channelsMask once a sub-band empties
	// (RegionUS915.c's ChannelsMaskRemaining).
	channelsMaskRemaining []uint16
	rx2                   RX2Config
	// band records the join back-off deadline set by CalcBackOff;
	// NextChannel does not read it.
	band Band
}

// NewUS915 returns a region with all 72 channels enabled, matching the
// device's power-up default before any ADR channel mask narrows it.
func NewUS915() *US915 {
	channels := make([]Channel, 0, us915NumChans)
	for i := 0; i < us915Num125kHz; i++ {
		channels = append(channels, Channel{FrequencyHz: 902300000 + uint32(i)*200000, DRMin: 0, DRMax: 3, Enabled: true})
	}
	for i := 0; i < us915Num500kHz; i++ {
		channels = append(channels, Channel{FrequencyHz: 903000000 + uint32(i)*1600000, DRMin: 4, DRMax: 4, Enabled: true})
	}

	mask := []uint16{0xFFFF, 0xFFFF, 0xFFFF, 0xFFFF, 0x00FF}
	return &US915{
		channels:              channels,
		channelsMask:          mask,
		channelsMaskRemaining: cloneMask(mask),
		rx2:                   RX2Config{FrequencyHz: 923300000, Datarate: 8},
	}
}

func (r *US915) Name() Name { return US915 }

func (r *US915) PhyParams(dr int) (DataRate, bool) {
	if dr < 0 || dr >= len(us915DataRates) || (dr >= 5 && dr <= 7) {
		return DataRate{}, false
	}
	return us915DataRates[dr], true
}

func (r *US915) MaxPayload(dr int) int {
	if dr < 0 || dr >= len(us915MaxPayload) {
		return 0
	}
	return us915MaxPayload[dr]
}

func (r *US915) NumChannels() int { return len(r.channels) }

func (r *US915) ChannelsMask() []uint16 { return cloneMask(r.channelsMask) }

func (r *US915) DefaultChannelsMask() []uint16 {
	return []uint16{0xFFFF, 0xFFFF, 0xFFFF, 0xFFFF, 0x00FF}
}

func (r *US915) SetChannelsMask(mask []uint16) error {
	if len(mask) != len(r.channelsMask) {
		return errors.New("region: us915 channel mask must be 5 words")
	}
	r.channelsMask = cloneMask(mask)
	r.andRemainingMask()
	return nil
}

// andRemainingMask narrows channelsMaskRemaining to the newly set
// channelsMask (RegionUS915.c ANDs rather than replaces, so a channel
// already consumed this hop stays consumed even if still enabled in the
// new mask).
func (r *US915) andRemainingMask() {
	for i := range r.channelsMaskRemaining {
		r.channelsMaskRemaining[i] &= r.channelsMask[i]
	}
}

// maskWordEnabled reports whether channel idx is set in mask (US915's
// word[0..3]=125kHz/word[4]=500kHz layout).
func maskWordEnabled(mask []uint16, idx int) bool {
	word, bit := idx/16, uint(idx%16)
	if word >= len(mask) {
		return false
	}
	return mask[word]&(1<<bit) != 0
}

func countMaskBits(mask []uint16, fromWord, toWord int) int {
	n := 0
	for w := fromWord; w <= toWord && w < len(mask); w++ {
		for b := 0; b < 16; b++ {
			if mask[w]&(1<<uint(b)) != 0 {
				n++
			}
		}
	}
	return n
}

func clearMaskBit(mask []uint16, idx int) {
	word, bit := idx/16, uint(idx%16)
	if word < len(mask) {
		mask[word] &^= 1 << bit
	}
}

// remainingEnabledChannels picks candidates from channelsMaskRemaining
// rather than channelsMask, repopulating the relevant sub-band first if
// it has been hopped dry (RegionUS915NextChannel).
func (r *US915) remainingEnabledChannels(dr int) []int {
	if countMaskBits(r.channelsMaskRemaining, 0, 3) == 0 {
		copy(r.channelsMaskRemaining[0:4], r.channelsMask[0:4])
	}
	if dr >= 4 && r.channelsMaskRemaining[4]&0x00FF == 0 {
		r.channelsMaskRemaining[4] = r.channelsMask[4]
	}

	var out []int
	for i, ch := range r.channels {
		if !ch.Enabled || !maskWordEnabled(r.channelsMaskRemaining, i) {
			continue
		}
		if dr < ch.DRMin || dr > ch.DRMax {
			continue
		}
		out = append(out, i)
	}
	return out
}

func (r *US915) rx1Frequency(uplinkChannelIdx int) uint32 {
	return 923300000 + uint32(uplinkChannelIdx%8)*600000
}

func (r *US915) DefaultRX2() RX2Config { return RX2Config{FrequencyHz: 923300000, Datarate: 8} }

func (r *US915) RxConfig(window int, channelIdx int, uplinkDR int, rx1DROffset int, rx2 RX2Config) (RxConfigResult, error) {
	if window == 2 {
		if rx2.FrequencyHz == 0 {
			rx2 = r.rx2
		}
		return RxConfigResult{FrequencyHz: rx2.FrequencyHz, Datarate: rx2.Datarate}, nil
	}
	if channelIdx < 0 || channelIdx >= len(r.channels) {
		return RxConfigResult{}, errors.Errorf("region: us915 channel index %d out of range", channelIdx)
	}
	return RxConfigResult{FrequencyHz: r.rx1Frequency(channelIdx), Datarate: r.rx1Datarate(uplinkDR, rx1DROffset)}, nil
}

func (r *US915) rx1Datarate(uplinkDR, offset int) int {
	if uplinkDR < 0 || uplinkDR >= len(us915Rx1DROffset) {
		uplinkDR = 0
	}
	row := us915Rx1DROffset[uplinkDR]
	if offset < 0 || offset >= len(row) {
		offset = 0
	}
	return row[offset]
}

func (r *US915) TxConfig(channelIdx int, dr int, txPowerIndex int8, payloadLen int) (TxConfigResult, error) {
	if channelIdx < 0 || channelIdx >= len(r.channels) {
		return TxConfigResult{}, errors.Errorf("region: us915 channel index %d out of range", channelIdx)
	}
	drParams, ok := r.PhyParams(dr)
	if !ok {
		return TxConfigResult{}, errors.Errorf("region: us915 invalid datarate %d", dr)
	}
	power := us915TxPowerDBm[0]
	if int(txPowerIndex) < len(us915TxPowerDBm) {
		power = us915TxPowerDBm[txPowerIndex]
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

func (r *US915) ADRNext(in ADRNextInput) ADRNextResult {
	result := adrNext(in)
	if result.ResetChannelMask {
		r.channelsMask = r.DefaultChannelsMask()
		r.channelsMaskRemaining = cloneMask(r.channelsMask)
	}
	return result
}

// LinkAdrReq applies the US915-specific channel-mask control codes: 6
// enables all 64 125kHz channels plus all eight 500kHz channels, 7
// disables all 125kHz channels leaving the 500kHz bank alone, and 0-4
// address one of the five channel mask words directly.
func (r *US915) LinkAdrReq(payloads [][]byte, curDatarate int, curTxPowerIndex int8, curNbRep uint8) (LinkAdrReqResult, error) {
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

		maskOk := true
		switch {
		case chMaskCtrl == 6:
			for i := 0; i < 4; i++ {
				res.ChannelsMask[i] = 0xFFFF
			}
			res.ChannelsMask[4] = 0x00FF
		case chMaskCtrl == 7:
			for i := 0; i < 4; i++ {
				res.ChannelsMask[i] = 0x0000
			}
		case int(chMaskCtrl) < len(res.ChannelsMask):
			res.ChannelsMask[chMaskCtrl] = chMask
		default:
			maskOk = false
		}

		datarateOk := dr == 0x0F || (dr >= 0 && dr <= 4)
		powerOk := txPower == 0x0F || int(txPower) < len(us915TxPowerDBm)

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

func (r *US915) RxParamSetupReq(payload []byte) RxParamSetupResult {
	// US915 fixes RX2 at 923.3MHz/DR8; the server may only move RX2's
	// datarate, never its frequency, so freq_ok is only set when the
	// request's frequency matches the fixed plan.
	if len(payload) != 4 {
		return RxParamSetupResult{}
	}
	dlSettings := payload[0]
	freq := uint32(payload[1]) | uint32(payload[2])<<8 | uint32(payload[3])<<16
	freqHz := freq * 100

	dr := int(dlSettings & 0x0F)
	offset := int((dlSettings >> 4) & 0x07)

	_, drOk := r.PhyParams(dr)
	freqOk := freqHz == r.rx2.FrequencyHz
	offsetOk := offset < len(us915Rx1DROffset[0])

	return RxParamSetupResult{Status: verifyLinkAdrStatus(freqOk, drOk, offsetOk), FrequencyHz: freqHz, Datarate: dr, DROffset: offset}
}

func (r *US915) NewChannelReq(payload []byte) byte {
	// The fixed US915 plan has no room for server-defined extra channels.
	return 0
}

func (r *US915) TxParamSetupReq(payload []byte) byte {
	return 0
}

func (r *US915) DlChannelReq(payload []byte) byte {
	// RX1 frequency is derived from the uplink channel in US915; DlChannelReq has no effect.
	return 0
}

func (r *US915) ApplyCFList(cfList []byte) error {
	if len(cfList) != 16 {
		return errors.New("region: us915 CFList must be 16 bytes")
	}
	if cfList[15] != 1 {
		return errors.New("region: us915 CFList type must be 1 (channel mask)")
	}
	mask := make([]uint16, 5)
	for i := 0; i < 5; i++ {
		mask[i] = uint16(cfList[i*2]) | uint16(cfList[i*2+1])<<8
	}
	r.channelsMask = mask
	r.andRemainingMask()
	return nil
}

// NextChannel picks uniformly among the datarate's enabled channels that
// haven't already been used this hopping cycle, per the FCC §15.247
// requirement of at least 2 channels per sub-band transmit interval: once
// chosen, a channel is cleared from channelsMaskRemaining, and a sub-band
// that empties is repopulated from channelsMask before the next pick
// (RegionUS915NextChannel).
func (r *US915) NextChannel(in NextChannelInput, random func() uint32) NextChannelResult {
	candidates := r.remainingEnabledChannels(in.Datarate)
	if len(candidates) == 0 {
		return NextChannelResult{Available: false, WaitMs: 0}
	}
	pick := candidates[random()%uint32(len(candidates))]
	clearMaskBit(r.channelsMaskRemaining, pick)
	return NextChannelResult{Available: true, ChannelIdx: pick}
}

func (r *US915) ComputeRxWindow(dr int, minRxSymbols int, systemMaxRxErrorMs int64) RxWindowParams {
	drParams, ok := r.PhyParams(dr)
	if !ok {
		drParams = us915DataRates[8]
	}
	return computeRxWindowParameters(drParams, minRxSymbols, systemMaxRxErrorMs)
}

func (r *US915) CalcBackOff(in BackOffInput) TimerTime {
	if !in.Joined {
		off := calcJoinBackOff(in.JoinTrialTime, in.TimeOnAirMs)
		r.band.TimeOffMs = in.Now + off
		return off
	}
	// No duty-cycle restriction applies in the US915 band.
	return 0
}

func (r *US915) UpdateBandTimeOff(bandIdx int, now TimerTime) {}

func (r *US915) AlternateDr(trial int, base int) int {
	// US/AU915 alternate between DR0 and DR4 to exercise both sub-bands.
	if trial%2 == 0 {
		return 0
	}
	return 4
}

func (r *US915) SetContinuousWave(freq uint32, power int8, timeoutS uint16) TxConfigResult {
	return TxConfigResult{FrequencyHz: freq, TxPowerDBm: power}
}
