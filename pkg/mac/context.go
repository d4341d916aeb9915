// Package mac implements the LoRaWAN v1.0.2 Class A/B/C end-device MAC
// state machine: the join handshake, the transmit/RX1/RX2 cycle,
// confirmed-uplink retries, ADR, and the attribute-based MibApi surface
// that drives all of it. It is single-threaded and cooperative: every
// entry point, including timer and radio callbacks, runs on the same
// logical context and may re-enter the MAC synchronously.
package mac

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lorawan-edge/mac-core/pkg/lorawan"
	"github.com/lorawan-edge/mac-core/pkg/radio"
	"github.com/lorawan-edge/mac-core/pkg/region"
	"github.com/lorawan-edge/mac-core/pkg/timerport"
)

// maxCmdBufLen is cmd_buf's capacity (§3 "Command buffers").
const maxCmdBufLen = 128

// Confirms is how the MAC reports completions back to the application:
// MLME/MCPS confirms for requests it made, and MCPS indications for
// unsolicited downlinks. Every call happens synchronously from inside a
// timer or radio callback, on the MAC's own context.
type Confirms interface {
	MlmeConfirm(c MlmeConfirm)
	McpsConfirm(c McpsConfirm)
	McpsIndication(ind McpsIndication)
}

// txJob captures the application request currently being serviced, from
// McpsRequest through to McpsConfirm.
type txJob struct {
	active     bool
	requestID  uuid.UUID
	mcpsType   McpsType
	confirmed  bool
	fPort      uint8
	hasFPort   bool
	appPayload []byte

	nbTrials  int
	tryIndex  int
	baseDR    int
	channelDR int
	channelIdx int
	timeOnAirMs int64

	ackReceived bool
}

// joinJob tracks an in-flight OTAA attempt.
type joinJob struct {
	active      bool
	requestID   uuid.UUID
	firstTryMs  timerport.Time
	trialCount  int
}

// Context is the MAC instance: one per physical device, owning all
// protocol state. Construct with New and drive it exclusively through
// its request methods and the Radio/Timer event callbacks wired in New.
type Context struct {
	log zerolog.Logger
	// reqLog is log scoped to whichever request is currently being
	// serviced (stamped with its RequestID by McpsRequest/MlmeRequest),
	// and is what the scheduler's own call sites actually log through.
	reqLog zerolog.Logger

	region region.Region
	radioPort radio.Port
	timer  timerport.Port
	confirms Confirms

	session Session
	params  Params

	state State
	multicast multicastList

	cmdBuf       []lorawan.MACCommand
	cmdRepeatBuf []lorawan.MACCommand

	tx   txJob
	join joinJob

	rxSlotHit  bool // true once RX1 or RX2 has already yielded a valid frame this cycle
	lastRxSlot int
	lastRxDR   int

	// pendingDownlinkAck is set when a confirmed downlink was accepted
	// and cleared once the resulting FCtrl.ACK bit has gone out on the
	// next uplink (§4.6).
	pendingDownlinkAck bool

	// linkCheckReqID correlates a queued LinkCheckReq with the
	// MlmeConfirm eventually raised by its LinkCheckAns.
	linkCheckReqID uuid.UUID

	// deviceTimeReqID correlates a queued DeviceTimeReq with the
	// MlmeConfirm eventually raised by its DeviceTimeAns (§4.9).
	deviceTimeReqID uuid.UUID

	// lastCause holds the error behind the next finishTx/finishJoin call,
	// surfaced on its Confirm's Cause field (§7) and cleared once read.
	lastCause error

	// txFrame holds the encoded PHYPayload most recently handed to the
	// radio (JoinRequest or data frame).
	txFrame []byte
}

// New constructs a Context bound to r/radioPort/timer/confirms and a freshly
// provisioned identity. The region's defaults populate Params; call
// MibSetRequestConfirm to override any of them before the first request.
func New(r region.Region, radioPort radio.Port, timer timerport.Port, confirms Confirms, devEUI, appEUI lorawan.EUI64, appKey lorawan.AES128Key, logger zerolog.Logger) *Context {
	ctx := &Context{
		log:       logger,
		reqLog:    logger,
		region:    r,
		radioPort: radioPort,
		timer:     timer,
		confirms:  confirms,
		params:    Defaults(r),
		state:     StateIdle,
	}
	ctx.session.DevEUI = devEUI
	ctx.session.AppEUI = appEUI
	ctx.session.AppKey = appKey

	radioPort.SetEventSink(ctx)
	radioPort.SetPublicNetwork(ctx.params.PublicNetwork)
	timer.OnExpire(ctx.onTimerExpire)

	return ctx
}

func (c *Context) hasState(s State) bool { return c.state&s != 0 }
func (c *Context) setState(s State)      { c.state |= s; c.state &^= StateIdle }
func (c *Context) clearState(s State) {
	c.state &^= s
	if c.state == 0 {
		c.state = StateIdle
	}
}

// LinkMulticast and UnlinkMulticast manage the caller-owned multicast
// group chain (§3 "Multicast groups").
func (c *Context) LinkMulticast(g *MulticastGroup)   { c.multicast.Link(g) }
func (c *Context) UnlinkMulticast(g *MulticastGroup) { c.multicast.Unlink(g) }
