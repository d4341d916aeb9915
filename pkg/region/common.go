package region

import "math"

// symbolTimeMs returns the on-air time of one symbol at dr, in milliseconds.
func symbolTimeMs(dr DataRate) float64 {
	if dr.IsFSK {
		return 8000.0 / float64(dr.FSKBitRate)
	}
	return float64(uint32(1)<<uint(dr.SpreadingFactor)) / float64(dr.BandwidthHz) * 1000.0
}

// computeRxWindowParameters approximates LoRaMac-node's
// RegionCommonComputeRxWindowParameters: the receive window must be long
// enough to absorb the clock drift budgeted by systemMaxRxErrorMs on both
// sides of the expected preamble, expressed in symbols at dr.
func computeRxWindowParameters(dr DataRate, minRxSymbols int, systemMaxRxErrorMs int64) RxWindowParams {
	tSymbol := symbolTimeMs(dr)

	winSymb := int(math.Ceil((2*float64(systemMaxRxErrorMs) + float64(minRxSymbols)*tSymbol) / tSymbol))
	if winSymb < minRxSymbols {
		winSymb = minRxSymbols
	}

	offset := -int64(math.Ceil(tSymbol*float64(minRxSymbols)/2.0)) - systemMaxRxErrorMs
	return RxWindowParams{WindowTimeoutSymbols: winSymb, WindowOffsetMs: offset}
}

// calcDutyCycleTimeOff returns the silence period a transmission of
// timeOnAirMs imposes under a 1/dutyCycleDenom duty cycle: the total cycle
// (on-air + silence) must equal timeOnAirMs * dutyCycleDenom.
func calcDutyCycleTimeOff(timeOnAirMs TimerTime, dutyCycleDenom uint16) TimerTime {
	if dutyCycleDenom == 0 {
		return 0
	}
	return timeOnAirMs*TimerTime(dutyCycleDenom) - timeOnAirMs
}

// Join back-off thresholds per LoRaWAN v1.0.2 Regional Parameters: the
// duty cycle allowed for join attempts tightens the longer a device has
// been trying to join.
const (
	hourMs      TimerTime = 3600 * 1000
	elevenHours TimerTime = 11 * hourMs
)

// calcJoinBackOff applies the join-specific duty-cycle schedule: 1% in the
// first hour after the first join attempt, 0.1% for the following ten
// hours, 0.01% thereafter.
func calcJoinBackOff(trialElapsedMs, timeOnAirMs TimerTime) TimerTime {
	switch {
	case trialElapsedMs < hourMs:
		return calcDutyCycleTimeOff(timeOnAirMs, 100)
	case trialElapsedMs < elevenHours:
		return calcDutyCycleTimeOff(timeOnAirMs, 1000)
	default:
		return calcDutyCycleTimeOff(timeOnAirMs, 10000)
	}
}

// adrNext implements the §4.4 "ADR-next" algorithm shared by every region:
// datarate decays by one step for every ADR_ACK_DELAY frames once
// ADR_ACK_LIMIT+ADR_ACK_DELAY has been exceeded, clipped at minDatarate,
// with TX power and the channel mask reset to full power/default on
// reaching the floor.
func adrNext(in ADRNextInput) ADRNextResult {
	out := ADRNextResult{Datarate: in.Datarate, TxPowerIndex: in.TxPowerIndex}
	if !in.AdrEnabled {
		return out
	}

	if in.AdrAckCounter >= AdrAckLimit {
		out.AdrAckReq = true
	}

	if in.AdrAckCounter >= AdrAckLimit+AdrAckDelay && (in.AdrAckCounter-AdrAckLimit)%AdrAckDelay == 1 {
		if out.Datarate > in.MinDatarate {
			out.Datarate--
		} else {
			out.TxPowerIndex = 0
			out.ResetChannelMask = true
		}
	}

	return out
}

// verifyLinkAdrStatus folds the three 1-bit checks LinkADRAns reports into
// the combined status byte (bit2=power bit1=datarate bit0=channel mask).
func verifyLinkAdrStatus(powerOk, datarateOk, channelMaskOk bool) byte {
	var status byte
	if channelMaskOk {
		status |= 0x01
	}
	if datarateOk {
		status |= 0x02
	}
	if powerOk {
		status |= 0x04
	}
	return status
}

// timeOnAirLoRa approximates the SX1272/76 LoRa time-on-air formula (8
// symbol preamble, explicit header, CRC on, coding rate 4/5, low-datarate
// optimization above SF10) used throughout the reference implementations
// to budget duty-cycle and retry timing.
func timeOnAirLoRa(dr DataRate, payloadLen int) TimerTime {
	if dr.IsFSK {
		return TimerTime(math.Ceil(float64(payloadLen+6) * 8000.0 / float64(dr.FSKBitRate)))
	}

	tSym := symbolTimeMs(dr)
	tPreamble := (8 + 4.25) * tSym

	de := 0.0
	if dr.SpreadingFactor >= 11 {
		de = 1
	}
	cr := 1.0 // coding rate 4/5

	numerator := 8*float64(payloadLen) - 4*float64(dr.SpreadingFactor) + 28 + 16
	denominator := 4 * (float64(dr.SpreadingFactor) - 2*de)
	payloadSymbNb := 8.0
	if n := math.Ceil(numerator/denominator) * (cr + 4); n > 0 {
		payloadSymbNb += n
	}

	tPayload := payloadSymbNb * tSym
	return TimerTime(math.Ceil(tPreamble + tPayload))
}

func cloneMask(mask []uint16) []uint16 {
	out := make([]uint16, len(mask))
	copy(out, mask)
	return out
}
