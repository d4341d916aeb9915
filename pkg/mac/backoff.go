package mac

// MaxAckRetries is MAX_ACK_RETRIES (§4.7): the hard ceiling on confirmed
// uplink retransmissions before the scheduler gives up and reports ERROR.
const MaxAckRetries = 8

// confirmedRetryDatarate implements the §4.7/§18.4 retry ladder: the
// first two tries (1-indexed) use the base datarate, then every
// subsequent pair of tries steps one datarate lower, floored at 0.
// Reproduces S3's 5,5,4,4,3,3,2,2 sequence for a DR5 base.
func confirmedRetryDatarate(baseDR, tryIndex int) int {
	step := (tryIndex - 1) / 2
	dr := baseDR - step
	if dr < 0 {
		dr = 0
	}
	return dr
}
