package mac

import (
	"github.com/google/uuid"

	"github.com/lorawan-edge/mac-core/pkg/lorawan"
	"github.com/lorawan-edge/mac-core/pkg/region"
	"github.com/lorawan-edge/mac-core/pkg/timerport"
)

// startJoin builds and transmits a JoinRequest, capturing DevNonce from
// the radio's RNG as §4.1 requires. reqID correlates the eventual
// MlmeConfirm with the request that started this join attempt. When no
// channel is available (duty-cycle back-off), startJoin returns BUSY
// without transmitting; it does not schedule a delayed retry.
func (c *Context) startJoin(reqID uuid.UUID) Status {
	if c.session.Joined && c.hasState(StateIdle) {
		return StatusOK
	}
	if !c.hasState(StateIdle) {
		return StatusBusy
	}

	c.session.DevNonce = uint16(c.radioPort.Random())
	buf, err := lorawan.EncodeJoinRequest(c.session.AppEUI, c.session.DevEUI, c.session.DevNonce, c.session.AppKey)
	if err != nil {
		c.reqLog.Error().Err(err).Msg("encode join request")
		return StatusParameterInvalid
	}

	dr := c.region.AlternateDr(c.join.trialCount, c.params.ChannelsDatarate)
	next := c.region.NextChannel(channelInput(c, dr), c.radioPort.Random)
	if !next.Available {
		return StatusBusy
	}

	cfg, err := c.region.TxConfig(next.ChannelIdx, dr, c.params.ChannelsTxPower, len(buf))
	if err != nil {
		c.reqLog.Error().Err(err).Msg("join tx config")
		return StatusParameterInvalid
	}

	c.join = joinJob{active: true, requestID: reqID, firstTryMs: timerport.Time(firstTry(c)), trialCount: c.join.trialCount + 1}
	c.tx = txJob{channelIdx: next.ChannelIdx, channelDR: dr, timeOnAirMs: int64(cfg.TimeOnAirMs)}
	c.txFrame = buf

	c.radioPort.SetChannel(cfg.FrequencyHz)
	c.radioPort.SetTxConfig(c.buildRadioTxConfig(cfg))
	c.setState(StateTxRunning)
	if err := c.radioPort.Send(buf); err != nil {
		c.reqLog.Error().Err(err).Msg("radio send join request")
		c.clearState(StateTxRunning)
		return StatusParameterInvalid
	}

	return StatusOK
}

func firstTry(c *Context) int64 {
	if c.join.active {
		return int64(c.join.firstTryMs)
	}
	return int64(c.timer.Now())
}

// onJoinTxDone arms the join-accept receive windows, per §4.5/§4.7 using
// JoinAcceptDelay1/2 instead of ReceiveDelay1/2.
func (c *Context) onJoinTxDone() {
	c.clearState(StateTxRunning)
	c.setState(StateRx)
	c.rxSlotHit = false

	c.region.CalcBackOff(region.BackOffInput{
		Now:           region.TimerTime(c.timer.Now()),
		Joined:        false,
		JoinTrialTime: region.TimerTime(c.timer.Now()) - region.TimerTime(c.join.firstTryMs),
		TimeOnAirMs:   region.TimerTime(c.tx.timeOnAirMs),
		DutyCycleOn:   true,
	})

	c.timer.Set(rxTimer1, c.params.JoinAcceptDelay1)
	c.timer.Start(rxTimer1)
	c.timer.Set(rxTimer2, c.params.JoinAcceptDelay2)
	c.timer.Start(rxTimer2)
}

// onJoinAccept handles a decoded, MIC-verified JoinAccept arriving in
// either window.
func (c *Context) onJoinAccept(ja *lorawan.JoinAcceptPayload) {
	nwkSKey, appSKey, err := lorawan.DeriveSessionKeys(c.session.AppKey, ja.AppNonce, ja.NetID, c.session.DevNonce)
	if err != nil {
		c.lastCause = err
		c.finishJoin(StatusParameterInvalid, EventJoinFail)
		return
	}

	c.session.DevAddr = ja.DevAddr
	c.session.NetID = ja.NetID
	c.session.NwkSKey = nwkSKey
	c.session.AppSKey = appSKey
	c.session.Joined = true
	c.session.UpLinkCounter = 0
	c.session.DownLinkCounter = 0
	c.session.AdrAckCounter = 0

	c.params.Rx1DROffset = int(ja.DLSettings.RX1DROffset)
	c.params.Rx2Channel.Datarate = int(ja.DLSettings.RX2DataRate)

	delay1 := int64(ja.RxDelay)
	if delay1 == 0 {
		delay1 = 1
	}
	c.params.ReceiveDelay1 = delay1 * 1000
	c.params.ReceiveDelay2 = c.params.ReceiveDelay1 + 1000

	if len(ja.CFList) > 0 {
		if err := c.region.ApplyCFList(ja.CFList); err != nil {
			c.reqLog.Warn().Err(err).Msg("apply CFList")
		}
	}

	c.finishJoin(StatusOK, EventOK)
}

func (c *Context) finishJoin(status Status, evt EventInfo) {
	reqID := c.join.requestID
	cause := c.lastCause
	c.lastCause = nil
	c.timer.Stop(rxTimer1)
	c.timer.Stop(rxTimer2)
	c.join = joinJob{}
	c.clearState(StateRx | StateTxRunning | StateRxAbort)
	c.radioPort.Sleep()

	if c.confirms != nil {
		c.confirms.MlmeConfirm(MlmeConfirm{Type: MlmeJoin, RequestID: reqID, Status: status, EventInfo: evt, Cause: cause})
	}

	if c.params.DeviceClass == ClassC {
		c.openClassCWindow()
	}
}
