package mac

// openClassCWindow puts the radio into continuous RX2 reception, the
// defining behavior of Class C (§4.7). It is a no-op while a TX/RX cycle
// owns the radio; the cycle's own finishTx/finishJoin re-opens it.
func (c *Context) openClassCWindow() {
	if !c.hasState(StateIdle) {
		return
	}
	cfg, err := c.region.RxConfig(2, 0, c.params.ChannelsDatarate, 0, c.params.Rx2Channel)
	if err != nil {
		c.log.Warn().Err(err).Msg("class C rx config")
		return
	}
	dr, ok := c.region.PhyParams(cfg.Datarate)
	if !ok {
		return
	}
	rcfg := c.buildRadioRxConfig(dr, 0)
	rcfg.RxContinuous = true
	c.radioPort.SetChannel(cfg.FrequencyHz)
	c.radioPort.SetRxConfig(rcfg)
	if err := c.radioPort.Rx(0); err != nil {
		c.log.Warn().Err(err).Msg("class C rx")
	}
}

// closeClassCWindow returns to idle reception, letting Class A/B timing
// own the radio again.
func (c *Context) closeClassCWindow() {
	c.radioPort.Sleep()
}
