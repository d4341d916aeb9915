package mac

import (
	"github.com/google/uuid"

	"github.com/lorawan-edge/mac-core/internal/obslog"
	"github.com/lorawan-edge/mac-core/pkg/lorawan"
	"github.com/lorawan-edge/mac-core/pkg/radio"
	"github.com/lorawan-edge/mac-core/pkg/region"
	"github.com/lorawan-edge/mac-core/pkg/timerport"
)

// Timer identities the scheduler owns, named after §3's five owned
// timers but expressed in terms of the timerport.ID the Port understands.
const (
	stateCheckTimer = timerport.MacStateCheckTimer
	txDelayTimer    = timerport.TxDelayedTimer
	rxTimer1        = timerport.RxWindowTimer1
	rxTimer2        = timerport.RxWindowTimer2
	ackTimer        = timerport.AckTimeoutTimer
)

func channelInput(c *Context, dr int) region.NextChannelInput {
	return region.NextChannelInput{Now: region.TimerTime(c.timer.Now()), Datarate: dr}
}

func (c *Context) buildRadioTxConfig(cfg region.TxConfigResult) radio.TxConfig {
	dr, _ := c.region.PhyParams(cfg.Datarate)
	modem := radio.ModemLoRa
	if dr.IsFSK {
		modem = radio.ModemFSK
	}
	return radio.TxConfig{
		Modem:           modem,
		PowerDBm:        cfg.TxPowerDBm,
		BandwidthHz:     uint32(dr.BandwidthHz),
		SpreadingFactor: dr.SpreadingFactor,
		CodingRate:      1,
		PreambleLen:     8,
		CRCOn:           true,
		TxTimeoutMs:     3000,
	}
}

func (c *Context) buildRadioRxConfig(dr region.DataRate, symbTimeout int) radio.RxConfig {
	modem := radio.ModemLoRa
	if dr.IsFSK {
		modem = radio.ModemFSK
	}
	return radio.RxConfig{
		Modem:           modem,
		BandwidthHz:     uint32(dr.BandwidthHz),
		SpreadingFactor: dr.SpreadingFactor,
		CodingRate:      1,
		PreambleLen:     8,
		SymbTimeout:     uint16(symbTimeout),
		CRCOn:           false,
		IQInverted:      true,
	}
}

// buildFOpts concatenates sticky answers still pending repetition with
// freshly queued answers/requests, per §3/§4.6.
func (c *Context) buildFOpts() []byte {
	cmds := make([]lorawan.MACCommand, 0, len(c.cmdRepeatBuf)+len(c.cmdBuf))
	cmds = append(cmds, c.cmdRepeatBuf...)
	cmds = append(cmds, c.cmdBuf...)
	out := lorawan.EncodeMACCommands(cmds)
	if len(out) > maxCmdBufLen {
		out = out[:maxCmdBufLen]
	}
	return out
}

// rebuildRepeatBuf recomputes cmd_repeat_buf from what was just
// transmitted, keeping only sticky opcodes (§4.6).
func (c *Context) rebuildRepeatBuf(sent []lorawan.MACCommand) {
	var sticky []lorawan.MACCommand
	for _, cmd := range sent {
		if lorawan.IsSticky(cmd.CID) {
			sticky = append(sticky, cmd)
		}
	}
	c.cmdRepeatBuf = sticky
	c.cmdBuf = nil
}

// MlmeRequest issues a management request (§4.8). A zero RequestID is
// replaced with a fresh v4, correlating this request with its eventual
// Confirm and every log line emitted while servicing it.
func (c *Context) MlmeRequest(req MlmeReq) Status {
	if req.RequestID == uuid.Nil {
		req.RequestID = uuid.New()
	}

	switch req.Type {
	case MlmeJoin:
		c.reqLog = obslog.WithRequest(c.log, req.RequestID)
		return c.startJoin(req.RequestID)
	case MlmeLinkCheck:
		if !c.session.Joined {
			return StatusNoNetworkJoined
		}
		c.linkCheckReqID = req.RequestID
		c.cmdBuf = append(c.cmdBuf, lorawan.MACCommand{CID: lorawan.LinkCheckReq})
		return StatusOK
	case MlmeDeviceTime:
		if !c.session.Joined {
			return StatusNoNetworkJoined
		}
		c.deviceTimeReqID = req.RequestID
		c.cmdBuf = append(c.cmdBuf, lorawan.MACCommand{CID: lorawan.DeviceTimeReq})
		return StatusOK
	case MlmeTxCw, MlmeTxCw1:
		if !c.hasState(StateIdle) {
			return StatusBusy
		}
		c.region.SetContinuousWave(req.TxCwFrequencyHz, req.TxCwPowerDBm, req.TxCwTimeoutS)
		c.radioPort.SetTxContinuousWave(req.TxCwFrequencyHz, req.TxCwPowerDBm, req.TxCwTimeoutS)
		return StatusOK
	default:
		return StatusServiceUnknown
	}
}

// McpsRequest issues a data request (§4.8). A zero RequestID is replaced
// with a fresh v4, correlating this request with its McpsConfirm and
// every McpsIndication delivered while its transmit cycle is open.
func (c *Context) McpsRequest(req McpsReq) Status {
	if req.RequestID == uuid.Nil {
		req.RequestID = uuid.New()
	}
	if req.Type == McpsMulticast {
		return StatusServiceUnknown
	}
	if !c.session.Joined {
		return StatusNoNetworkJoined
	}
	if c.params.MaxDutyCycle == 255 {
		return StatusDeviceOff
	}
	if !c.hasState(StateIdle) {
		return StatusBusy
	}

	c.reqLog = obslog.WithRequest(c.log, req.RequestID)

	dr := c.params.ChannelsDatarate
	fOpts := c.buildFOpts()
	maxPayload := c.region.MaxPayload(dr)
	if !lorawan.ValidatePayloadLength(len(req.FBuffer), len(fOpts), maxPayload) {
		return StatusLengthError
	}

	nbTrials := req.NbTrials
	if req.Type != McpsConfirmed || nbTrials < 1 {
		nbTrials = 1
	}
	if nbTrials > MaxAckRetries {
		nbTrials = MaxAckRetries
	}

	c.tx = txJob{
		active:     true,
		requestID:  req.RequestID,
		mcpsType:   req.Type,
		confirmed:  req.Type == McpsConfirmed,
		fPort:      req.FPort,
		hasFPort:   req.HasFPort,
		appPayload: req.FBuffer,
		nbTrials:   nbTrials,
		tryIndex:   1,
		baseDR:     dr,
	}

	return c.transmitDataFrame()
}

// transmitDataFrame builds and sends (or delays, on duty-cycle
// unavailability) the frame for the current try of the active tx job.
func (c *Context) transmitDataFrame() Status {
	tryDR := c.tx.baseDR
	if c.tx.confirmed {
		tryDR = confirmedRetryDatarate(c.tx.baseDR, c.tx.tryIndex)
	}

	next := c.region.NextChannel(channelInput(c, tryDR), c.radioPort.Random)
	if !next.Available {
		c.setState(StateTxDelayed)
		c.timer.Set(txDelayTimer, int64(next.WaitMs))
		c.timer.Start(txDelayTimer)
		return StatusOK
	}
	c.clearState(StateTxDelayed)
	c.tx.channelIdx = next.ChannelIdx
	c.tx.channelDR = tryDR

	fOptsBytes := c.buildFOpts()
	var fOptsForFrame []byte
	var fPortPtr *uint8
	var payload []byte

	if len(fOptsBytes) > lorawan.MaxFOptsLen {
		zero := uint8(0)
		fPortPtr = &zero
		payload = fOptsBytes
	} else {
		fOptsForFrame = fOptsBytes
		if c.tx.hasFPort {
			p := c.tx.fPort
			fPortPtr = &p
			payload = c.tx.appPayload
		}
	}

	mtype := lorawan.UnconfirmedDataUp
	if c.tx.confirmed {
		mtype = lorawan.ConfirmedDataUp
	}

	adrResult := c.region.ADRNext(region.ADRNextInput{
		AdrEnabled:    c.params.AdrEnabled,
		AdrAckCounter: c.session.AdrAckCounter,
		Datarate:      c.params.ChannelsDatarate,
		TxPowerIndex:  c.params.ChannelsTxPower,
	})
	c.params.ChannelsDatarate = adrResult.Datarate
	c.params.ChannelsTxPower = adrResult.TxPowerIndex

	fctrl := lorawan.FCtrl{
		ADR:       c.params.AdrEnabled,
		ADRACKReq: adrResult.AdrAckReq,
		ACK:       c.pendingDownlinkAck,
	}
	c.pendingDownlinkAck = false

	buf, err := lorawan.EncodeDataFrame(lorawan.EncodeDataFrameInput{
		MType:      mtype,
		DevAddr:    c.session.DevAddr,
		FCtrl:      fctrl,
		FCnt:       c.session.UpLinkCounter,
		FOpts:      fOptsForFrame,
		FPort:      fPortPtr,
		FRMPayload: payload,
		NwkSKey:    c.session.NwkSKey,
		AppSKey:    c.session.AppSKey,
	})
	if err != nil {
		c.reqLog.Error().Err(err).Msg("encode data frame")
		return StatusParameterInvalid
	}

	cfg, err := c.region.TxConfig(next.ChannelIdx, tryDR, c.params.ChannelsTxPower, len(buf))
	if err != nil {
		c.reqLog.Error().Err(err).Msg("tx config")
		return StatusParameterInvalid
	}

	sentCmds := append(append([]lorawan.MACCommand(nil), c.cmdRepeatBuf...), c.cmdBuf...)
	c.rebuildRepeatBuf(sentCmds)

	c.tx.timeOnAirMs = int64(cfg.TimeOnAirMs)
	c.txFrame = buf
	c.radioPort.SetChannel(cfg.FrequencyHz)
	c.radioPort.SetTxConfig(c.buildRadioTxConfig(cfg))
	c.setState(StateTxRunning)
	if err := c.radioPort.Send(buf); err != nil {
		c.reqLog.Error().Err(err).Msg("radio send")
		c.clearState(StateTxRunning)
		return StatusParameterInvalid
	}

	return StatusOK
}

// onTimerExpire is wired into the TimerPort at construction and
// dispatches every one of the MAC's five owned timers.
func (c *Context) onTimerExpire(id timerport.ID) {
	switch id {
	case rxTimer1:
		c.openRxWindow(1)
	case rxTimer2:
		c.setState(StateRxAbort)
		c.openRxWindow(2)
	case ackTimer:
		c.handleWindowMiss(EventRx1Timeout, EventRx2Timeout)
	case txDelayTimer:
		c.clearState(StateTxDelayed)
		if c.join.active {
			c.startJoin(c.join.requestID)
		} else if c.tx.active {
			c.transmitDataFrame()
		}
	case stateCheckTimer:
		c.region.UpdateBandTimeOff(c.tx.channelIdx, region.TimerTime(c.timer.Now()))
	}
}

// openRxWindow configures the radio for RX1 (window==1) or RX2
// (window==2) and starts listening, per §4.7.
func (c *Context) openRxWindow(window int) {
	uplinkDR := c.tx.channelDR
	channelIdx := c.tx.channelIdx

	cfg, err := c.region.RxConfig(window, channelIdx, uplinkDR, c.params.Rx1DROffset, c.params.Rx2Channel)
	if err != nil {
		c.reqLog.Warn().Err(err).Msg("rx config")
		return
	}
	dr, ok := c.region.PhyParams(cfg.Datarate)
	if !ok {
		return
	}

	win := c.region.ComputeRxWindow(cfg.Datarate, c.params.MinRxSymbols, c.params.SystemMaxRxError)
	c.radioPort.SetChannel(cfg.FrequencyHz)
	c.radioPort.SetRxConfig(c.buildRadioRxConfig(dr, win.WindowTimeoutSymbols))
	c.setState(StateRx)
	if err := c.radioPort.Rx(uint32(c.params.MaxRxWindow)); err != nil {
		c.reqLog.Warn().Err(err).Msg("radio rx")
	}
}

// --- radio.EventSink ---

func (c *Context) OnTxDone(t timerport.Time) {
	if c.join.active {
		c.onJoinTxDone()
		return
	}
	if !c.tx.active {
		return
	}

	c.session.UpLinkCounter++
	c.session.AdrAckCounter++
	c.session.UplinksSinceDownlink++

	c.region.CalcBackOff(region.BackOffInput{
		Now:         region.TimerTime(c.timer.Now()),
		Joined:      true,
		TimeOnAirMs: region.TimerTime(c.tx.timeOnAirMs),
		BandIdx:     c.tx.channelIdx,
		DutyCycleOn: true,
	})

	c.clearState(StateTxRunning)
	c.radioPort.Sleep()
	c.rxSlotHit = false

	if c.tx.confirmed {
		c.setState(StateAckReq)
	}

	c.timer.Set(rxTimer1, c.params.ReceiveDelay1)
	c.timer.Start(rxTimer1)
	if c.params.DeviceClass != ClassC {
		c.timer.Set(rxTimer2, c.params.ReceiveDelay2)
		c.timer.Start(rxTimer2)
	} else {
		// Class C opens no bounded RX2 window, so no RX2 timeout ever
		// reports an RX2 miss. The radio is not put back into continuous
		// RX2 reception here: after RX1 it stays off until finishTx
		// reopens the continuous window (openClassCWindow). ackTimer
		// closes the cycle instead, firing at the delay RX2 would have
		// opened at, so a cycle with no RX1 hit still eventually reaches
		// finishCycleAfterRx2Miss (§4.7).
		c.timer.Set(ackTimer, c.params.ReceiveDelay2)
		c.timer.Start(ackTimer)
	}
}

func (c *Context) OnRxDone(t timerport.Time, ev radio.RxDoneEvent) {
	c.lastRxDR = c.tx.channelDR
	if c.join.active {
		c.handleJoinRx(ev)
		return
	}
	c.handleDataRx(ev)
}

func (c *Context) OnTxTimeout(t timerport.Time) {
	c.clearState(StateTxRunning)
	if c.join.active {
		c.finishJoin(StatusOK, EventTxTimeout)
		return
	}
	c.finishTx(StatusOK, EventTxTimeout, false)
}

func (c *Context) OnRxError(t timerport.Time) {
	c.handleWindowMiss(EventRx1Error, EventRx2Error)
}

func (c *Context) OnRxTimeout(t timerport.Time) {
	c.handleWindowMiss(EventRx1Timeout, EventRx2Timeout)
}

// handleWindowMiss is reached when RX1 (or RX2) yields no usable frame.
// It waits for RX2 if RX1 just missed, or finalizes the cycle if RX2
// (already the second slot) missed.
func (c *Context) handleWindowMiss(rx1Evt, rx2Evt EventInfo) {
	if c.rxSlotHit {
		return
	}

	if c.join.active {
		if !c.hasState(StateRxAbort) {
			c.setState(StateRxAbort) // RX1 missed, RX2 timer still pending
			return
		}
		c.finishJoin(StatusOK, EventJoinFail)
		return
	}

	if !c.hasState(StateRxAbort) {
		c.setState(StateRxAbort) // RX1 missed, wait for RX2
		return
	}

	c.finishCycleAfterRx2Miss(rx2Evt)
}

func (c *Context) finishCycleAfterRx2Miss(evt EventInfo) {
	c.clearState(StateRxAbort | StateRx)

	if c.tx.confirmed && c.tx.tryIndex < c.tx.nbTrials {
		c.tx.tryIndex++
		c.setState(StateAckRetry)
		if status := c.transmitDataFrame(); status != StatusOK {
			c.finishTx(status, evt, false)
		}
		return
	}

	c.finishTx(StatusOK, evt, c.tx.confirmed)
}

func (c *Context) finishTx(status Status, evt EventInfo, failedConfirm bool) {
	c.timer.Stop(rxTimer1)
	c.timer.Stop(rxTimer2)
	c.timer.Stop(ackTimer)
	c.clearState(StateRx | StateAckReq | StateAckRetry | StateRxAbort | StateTxRunning)
	c.radioPort.Sleep()

	if c.params.DeviceClass == ClassC {
		c.openClassCWindow()
	}

	if !c.tx.active {
		return
	}

	nbRetries := c.tx.tryIndex
	evtInfo := evt
	if failedConfirm {
		evtInfo = EventError
	}
	cause := c.lastCause
	c.lastCause = nil

	if c.confirms != nil {
		c.confirms.McpsConfirm(McpsConfirm{
			Type:          c.tx.mcpsType,
			RequestID:     c.tx.requestID,
			Status:        status,
			EventInfo:     evtInfo,
			UpLinkCounter: c.session.UpLinkCounter,
			Datarate:      c.tx.channelDR,
			TxPowerDBm:    c.params.ChannelsTxPower,
			AckReceived:   c.tx.ackReceived,
			NbRetries:     nbRetries,
			Cause:         cause,
		})
	}

	c.tx = txJob{}
}

// handleJoinRx attempts to decode ev's payload as a JoinAccept. A decode
// or MIC failure is treated the same as a miss: wait for the other
// window, then give up.
func (c *Context) handleJoinRx(ev radio.RxDoneEvent) {
	ja, err := lorawan.DecodeJoinAccept(ev.Payload, c.session.AppKey)
	if err != nil {
		c.reqLog.Debug().Err(err).Msg("decode join accept")
		c.lastCause = err
		c.handleWindowMiss(EventJoinFail, EventJoinFail)
		return
	}

	c.rxSlotHit = true
	c.timer.Stop(rxTimer1)
	c.timer.Stop(rxTimer2)
	c.onJoinAccept(ja)
}

// handleDataRx processes a frame arriving during RX1 or RX2 of a data
// (non-join) cycle.
func (c *Context) handleDataRx(ev radio.RxDoneEvent) {
	slot := 0
	if c.hasState(StateRxAbort) {
		slot = 1
	}

	df, err := lorawan.DecodeDataFrame(ev.Payload)
	if err != nil {
		c.reqLog.Debug().Err(err).Msg("decode data frame")
		c.lastCause = err
		c.handleWindowMiss(EventRx1Error, EventRx2Error)
		return
	}

	if df.DevAddr != c.session.DevAddr {
		if g := c.multicast.Find(df.DevAddr); g != nil {
			c.rxSlotHit = true
			c.handleMulticastRx(df, g, slot)
			c.finishAfterRx(slot)
			return
		}
		c.deliverIndication(McpsIndication{Status: StatusOK, EventInfo: EventAddressFail}, slot)
		c.handleWindowMiss(EventAddressFail, EventAddressFail)
		return
	}

	full, isRepeat, ok := c.session.ResolveDownlinkFCnt(df.FCnt)
	if !ok {
		c.rxSlotHit = true
		c.deliverIndication(McpsIndication{Status: StatusOK, EventInfo: EventDownlinkTooManyFramesLoss}, slot)
		c.finishAfterRx(slot)
		return
	}

	micBuf := ev.Payload[:len(ev.Payload)-4]
	expectedMIC, err := lorawan.ComputeMIC(micBuf, c.session.NwkSKey, c.session.DevAddr, lorawan.Down, full)
	if err != nil || expectedMIC != df.MIC {
		c.deliverIndication(McpsIndication{Status: StatusOK, EventInfo: EventMICFail, Cause: err}, slot)
		c.handleWindowMiss(EventMICFail, EventMICFail)
		return
	}

	c.rxSlotHit = true
	c.session.UplinksSinceDownlink = 0
	c.cmdRepeatBuf = nil
	confirmedDown := df.MHDR.MType == lorawan.ConfirmedDataDown

	if isRepeat {
		if confirmedDown {
			c.pendingDownlinkAck = true
			c.deliverIndication(McpsIndication{Status: StatusOK, EventInfo: EventDownlinkRepeated, Repeated: true, AckReceived: true}, slot)
		}
		c.tx.ackReceived = c.tx.ackReceived || df.FCtrl.ACK
		c.finishAfterRx(slot)
		return
	}

	c.session.DownLinkCounter = full
	c.session.AdrAckCounter = 0

	var plain []byte
	if df.FPort != nil {
		key := c.session.AppSKey
		if *df.FPort == 0 {
			key = c.session.NwkSKey
		}
		plain, err = lorawan.PayloadDecrypt(df.FRMPayload, key, c.session.DevAddr, lorawan.Down, full)
		if err != nil {
			c.deliverIndication(McpsIndication{Status: StatusOK, EventInfo: EventMICFail, Cause: err}, slot)
			c.finishAfterRx(slot)
			return
		}
	}

	var macData []byte
	if df.FPort != nil && *df.FPort == 0 {
		macData = plain
	} else {
		macData = df.FOpts
	}
	if len(macData) > 0 {
		cmds, parseErr := lorawan.ParseMACCommands(false, macData)
		if parseErr != nil {
			c.reqLog.Debug().Err(parseErr).Msg("parse mac commands")
		}
		c.processDownlinkCommands(cmds)
	}

	if confirmedDown {
		c.pendingDownlinkAck = true
	}
	c.tx.ackReceived = c.tx.ackReceived || df.FCtrl.ACK

	ind := McpsIndication{
		Status:          StatusOK,
		EventInfo:       EventOK,
		RxDatarate:      c.lastRxDR,
		DownLinkCounter: full,
		AckReceived:     df.FCtrl.ACK,
	}
	if df.FPort != nil && (*df.FPort != 0 || len(plain) > 0) {
		ind.FPort = *df.FPort
		ind.HasFPort = true
		if *df.FPort != 0 {
			ind.Buffer = plain
		}
	}
	c.deliverIndication(ind, slot)
	c.finishAfterRx(slot)
}

func (c *Context) handleMulticastRx(df *lorawan.DataFrame, g *MulticastGroup, slot int) {
	if uint32(df.FCnt) < g.DownLinkCounter && g.DownLinkCounter-uint32(df.FCnt) < 1<<15 {
		return
	}
	g.DownLinkCounter = uint32(df.FCnt)
	c.deliverIndication(McpsIndication{Status: StatusOK, EventInfo: EventOK, Multicast: true}, slot)
}

func (c *Context) deliverIndication(ind McpsIndication, slot int) {
	ind.RxSlot = slot
	ind.RequestID = c.tx.requestID
	if c.confirms != nil {
		c.confirms.McpsIndication(ind)
	}
}

// finishAfterRx decides whether the cycle is over once slot has yielded
// a definitive (non-miss) outcome.
func (c *Context) finishAfterRx(slot int) {
	c.timer.Stop(rxTimer1)
	c.timer.Stop(rxTimer2)
	c.timer.Stop(ackTimer)

	if c.tx.confirmed && !c.tx.ackReceived {
		c.finishCycleAfterRx2Miss(EventOK)
		return
	}

	c.finishTx(StatusOK, EventOK, false)
}

// processDownlinkCommands applies every parsed downlink MAC command to
// region/Params state and queues the matching mote answer (§4.6).
func (c *Context) processDownlinkCommands(cmds []lorawan.MACCommand) {
	for _, cmd := range cmds {
		switch cmd.CID {
		case lorawan.LinkCheckAns:
			// Delivered as an MlmeConfirm rather than folded into an
			// indication: it answers the MlmeLinkCheck request.
			if c.confirms != nil && len(cmd.Payload) >= 2 {
				c.confirms.MlmeConfirm(MlmeConfirm{Type: MlmeLinkCheck, RequestID: c.linkCheckReqID, Status: StatusOK, EventInfo: EventOK})
			}
			c.linkCheckReqID = uuid.Nil

		case lorawan.LinkADRReq:
			result, err := c.region.LinkAdrReq([][]byte{cmd.Payload}, c.params.ChannelsDatarate, c.params.ChannelsTxPower, c.params.ChannelsNbRep)
			if err != nil {
				c.reqLog.Debug().Err(err).Msg("link adr req")
				continue
			}
			c.params.ChannelsDatarate = result.Datarate
			c.params.ChannelsTxPower = result.TxPowerIndex
			c.params.ChannelsNbRep = result.NbRep
			for _, status := range result.Statuses {
				c.cmdBuf = append(c.cmdBuf, lorawan.MACCommand{CID: lorawan.LinkADRAns, Payload: []byte{status}})
			}

		case lorawan.DutyCycleReq:
			if len(cmd.Payload) == 1 {
				c.params.MaxDutyCycle = cmd.Payload[0]
			}
			c.cmdBuf = append(c.cmdBuf, lorawan.MACCommand{CID: lorawan.DutyCycleAns})

		case lorawan.RXParamSetupReq:
			result := c.region.RxParamSetupReq(cmd.Payload)
			if result.Status == 0x07 {
				c.params.Rx1DROffset = result.DROffset
				c.params.Rx2Channel = region.RX2Config{FrequencyHz: result.FrequencyHz, Datarate: result.Datarate}
			}
			c.cmdBuf = append(c.cmdBuf, lorawan.MACCommand{CID: lorawan.RXParamSetupAns, Payload: []byte{result.Status}})

		case lorawan.DevStatusReq:
			c.cmdBuf = append(c.cmdBuf, lorawan.MACCommand{CID: lorawan.DevStatusAns, Payload: []byte{255, 0}})

		case lorawan.NewChannelReq:
			status := c.region.NewChannelReq(cmd.Payload)
			c.cmdBuf = append(c.cmdBuf, lorawan.MACCommand{CID: lorawan.NewChannelAns, Payload: []byte{status}})

		case lorawan.RXTimingSetupReq:
			if len(cmd.Payload) == 1 {
				delay := int64(cmd.Payload[0] & 0x0F)
				if delay == 0 {
					delay = 1
				}
				c.params.ReceiveDelay1 = delay * 1000
				c.params.ReceiveDelay2 = c.params.ReceiveDelay1 + 1000
			}
			c.cmdBuf = append(c.cmdBuf, lorawan.MACCommand{CID: lorawan.RXTimingSetupAns})

		case lorawan.TxParamSetupReq:
			status := c.region.TxParamSetupReq(cmd.Payload)
			if status == 0 && len(cmd.Payload) == 1 {
				c.params.UplinkDwellTime = cmd.Payload[0]&0x08 != 0
				c.params.DownlinkDwellTime = cmd.Payload[0]&0x04 != 0
				c.params.MaxEIRP = dwellMaxEIRP(cmd.Payload[0] & 0x0F)
			}
			c.cmdBuf = append(c.cmdBuf, lorawan.MACCommand{CID: lorawan.TxParamSetupAns})

		case lorawan.DlChannelReq:
			status := c.region.DlChannelReq(cmd.Payload)
			c.cmdBuf = append(c.cmdBuf, lorawan.MACCommand{CID: lorawan.DlChannelAns, Payload: []byte{status}})

		case lorawan.DeviceTimeAns:
			// GPS epoch time sync (§4.9): no local clock to set here,
			// the decoded Seconds/Fractional are simply surfaced to the
			// MlmeDeviceTime caller.
			if c.confirms != nil && len(cmd.Payload) >= 5 {
				seconds := uint32(cmd.Payload[0]) | uint32(cmd.Payload[1])<<8 | uint32(cmd.Payload[2])<<16 | uint32(cmd.Payload[3])<<24
				c.confirms.MlmeConfirm(MlmeConfirm{
					Type:                 MlmeDeviceTime,
					RequestID:            c.deviceTimeReqID,
					Status:               StatusOK,
					EventInfo:            EventOK,
					DeviceTimeSeconds:    seconds,
					DeviceTimeFractional: cmd.Payload[4],
				})
			}
			c.deviceTimeReqID = uuid.Nil
		}
	}
}

var maxEIRPTable = [16]int8{8, 10, 12, 13, 14, 16, 18, 20, 21, 24, 26, 27, 29, 30, 33, 36}

func dwellMaxEIRP(code byte) int8 {
	if int(code) >= len(maxEIRPTable) {
		return maxEIRPTable[len(maxEIRPTable)-1]
	}
	return maxEIRPTable[code]
}
