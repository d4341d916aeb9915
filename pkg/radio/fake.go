package radio

import "github.com/lorawan-edge/mac-core/pkg/timerport"

// Fake is an in-memory Port used by scheduler tests. It records every
// configuration call and lets the test drive TxDone/RxDone/timeouts by
// calling the matching method directly, simulating what a real driver's
// interrupt handler would report.
type Fake struct {
	sink EventSink

	TxConfig TxConfig
	RxConfig RxConfig
	Sent     [][]byte
	Status   Status

	NextRandom  uint32
	TimeOnAirMs uint32
}

func NewFake() *Fake {
	return &Fake{Status: Idle}
}

func (f *Fake) SetChannel(freqHz uint32)                {}
func (f *Fake) SetPublicNetwork(on bool)                {}
func (f *Fake) SetMaxPayloadLength(modem Modem, n int)  {}
func (f *Fake) SetTxConfig(cfg TxConfig)                { f.TxConfig = cfg }
func (f *Fake) SetRxConfig(cfg RxConfig)                { f.RxConfig = cfg }

func (f *Fake) Send(buf []byte) error {
	f.Sent = append(f.Sent, append([]byte(nil), buf...))
	f.Status = TxRunning
	return nil
}

func (f *Fake) Rx(timeoutMs uint32) error {
	f.Status = RxRunning
	return nil
}

func (f *Fake) Sleep()   { f.Status = Idle }
func (f *Fake) Standby() { f.Status = Idle }

func (f *Fake) TimeOnAir(modem Modem, pktLen int) uint32 { return f.TimeOnAirMs }
func (f *Fake) Random() uint32                           { return f.NextRandom }
func (f *Fake) CheckRfFrequency(freqHz uint32) bool      { return true }
func (f *Fake) GetStatus() Status                        { return f.Status }
func (f *Fake) SetTxContinuousWave(freqHz uint32, powerDBm int8, timeoutS uint16) {}

func (f *Fake) SetEventSink(sink EventSink) { f.sink = sink }

// Deliver* let a test simulate the driver reporting an asynchronous
// event, exactly as an interrupt handler would.

func (f *Fake) DeliverTxDone(t int64) {
	f.Status = Idle
	if f.sink != nil {
		f.sink.OnTxDone(timerport.Time(t))
	}
}

func (f *Fake) DeliverRxDone(t int64, ev RxDoneEvent) {
	f.Status = Idle
	if f.sink != nil {
		f.sink.OnRxDone(timerport.Time(t), ev)
	}
}

func (f *Fake) DeliverTxTimeout(t int64) {
	f.Status = Idle
	if f.sink != nil {
		f.sink.OnTxTimeout(timerport.Time(t))
	}
}

func (f *Fake) DeliverRxError(t int64) {
	f.Status = Idle
	if f.sink != nil {
		f.sink.OnRxError(timerport.Time(t))
	}
}

func (f *Fake) DeliverRxTimeout(t int64) {
	f.Status = Idle
	if f.sink != nil {
		f.sink.OnRxTimeout(timerport.Time(t))
	}
}
