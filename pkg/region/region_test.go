package region

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestEU868TxConfig(t *testing.T) {
	Convey("Given a freshly constructed EU868 region", t, func() {
		r := NewEU868()

		Convey("TxConfig on channel 0 at DR5 returns the expected frequency and power", func() {
			out, err := r.TxConfig(0, 5, 0, 12)
			So(err, ShouldBeNil)
			So(out.FrequencyHz, ShouldEqual, uint32(868100000))
			So(out.TxPowerDBm, ShouldEqual, int8(16))
			So(out.TimeOnAirMs, ShouldBeGreaterThan, 0)
		})

		Convey("A shorter frame reports less time on air than the worst-case payload", func() {
			short, err := r.TxConfig(0, 5, 0, 5)
			So(err, ShouldBeNil)
			worst, err := r.TxConfig(0, 5, 0, r.MaxPayload(5))
			So(err, ShouldBeNil)
			So(short.TimeOnAirMs, ShouldBeLessThan, worst.TimeOnAirMs)
		})

		Convey("An out-of-range channel is rejected", func() {
			_, err := r.TxConfig(9, 5, 0, 12)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestEU868LinkAdrReq(t *testing.T) {
	Convey("Given a LinkADRReq lowering datarate and power", t, func() {
		r := NewEU868()
		payload := []byte{(3 << 4) | 2, 0x07, 0x00, (0 << 4) | 1}

		res, err := r.LinkAdrReq([][]byte{payload}, 5, 0, 0)
		So(err, ShouldBeNil)
		So(res.Statuses, ShouldResemble, []byte{0x07})
		So(res.Datarate, ShouldEqual, 3)
		So(res.TxPowerIndex, ShouldEqual, int8(2))
		So(res.NbRep, ShouldEqual, uint8(1))
	})
}

func TestADRNextDecaysOneStepPerDelay(t *testing.T) {
	Convey("Given ADR enabled and the ack counter well past the limit+delay", t, func() {
		in := ADRNextInput{
			AdrEnabled:    true,
			AdrAckCounter: AdrAckLimit + AdrAckDelay + 1,
			Datarate:      5,
			TxPowerIndex:  0,
			MinDatarate:   0,
		}

		Convey("Datarate steps down by exactly one", func() {
			out := adrNext(in)
			So(out.Datarate, ShouldEqual, 4)
			So(out.AdrAckReq, ShouldBeTrue)
		})

		Convey("At the datarate floor, power and channel mask reset instead", func() {
			in.Datarate = 0
			out := adrNext(in)
			So(out.Datarate, ShouldEqual, 0)
			So(out.TxPowerIndex, ShouldEqual, int8(0))
			So(out.ResetChannelMask, ShouldBeTrue)
		})
	})
}

func TestUS915LinkAdrReqChannelMaskCtrl(t *testing.T) {
	Convey("Given a LinkADRReq with ChMaskCntl 6 (enable all 125kHz)", t, func() {
		r := NewUS915()
		So(r.SetChannelsMask([]uint16{0, 0, 0, 0, 0}), ShouldBeNil)

		payload := []byte{(0 << 4) | 0, 0x00, 0x00, (6 << 4) | 0}
		res, err := r.LinkAdrReq([][]byte{payload}, 0, 0, 0)
		So(err, ShouldBeNil)
		So(res.ChannelsMask[0], ShouldEqual, uint16(0xFFFF))
		So(res.ChannelsMask[4], ShouldEqual, uint16(0x00FF))
	})
}

func TestUS915NextChannelDepletesAndRepopulatesSubBand(t *testing.T) {
	Convey("Given a US915 region with only two 125kHz channels enabled", t, func() {
		r := NewUS915()
		So(r.SetChannelsMask([]uint16{0x0003, 0, 0, 0, 0}), ShouldBeNil)

		// random always returns 0, so each pick is candidates[0] -- with
		// depletion, that still visits every remaining channel once
		// before the sub-band repopulates and repeats.
		zero := func() uint32 { return 0 }

		first := r.NextChannel(NextChannelInput{Datarate: 0}, zero)
		So(first.Available, ShouldBeTrue)

		second := r.NextChannel(NextChannelInput{Datarate: 0}, zero)
		So(second.Available, ShouldBeTrue)
		So(second.ChannelIdx, ShouldNotEqual, first.ChannelIdx)

		Convey("both channels are exhausted before either repeats", func() {
			So([]int{first.ChannelIdx, second.ChannelIdx}, ShouldContain, 0)
			So([]int{first.ChannelIdx, second.ChannelIdx}, ShouldContain, 1)
		})

		Convey("the sub-band repopulates once it empties, so a third pick still succeeds", func() {
			third := r.NextChannel(NextChannelInput{Datarate: 0}, zero)
			So(third.Available, ShouldBeTrue)
			So(third.ChannelIdx, ShouldEqual, first.ChannelIdx)
		})
	})
}

func TestUS915NextChannel500kHzSubBandRepopulatesIndependently(t *testing.T) {
	Convey("Given a US915 region with only one 500kHz channel enabled", t, func() {
		r := NewUS915()
		So(r.SetChannelsMask([]uint16{0xFFFF, 0xFFFF, 0xFFFF, 0xFFFF, 0x0001}), ShouldBeNil)
		zero := func() uint32 { return 0 }

		first := r.NextChannel(NextChannelInput{Datarate: 4}, zero)
		So(first.Available, ShouldBeTrue)
		So(first.ChannelIdx, ShouldEqual, 64)

		Convey("depleting the single DR4 channel still repopulates on the next pick", func() {
			second := r.NextChannel(NextChannelInput{Datarate: 4}, zero)
			So(second.Available, ShouldBeTrue)
			So(second.ChannelIdx, ShouldEqual, 64)
		})
	})
}

func TestCalcJoinBackOffEscalatesByTrialTime(t *testing.T) {
	Convey("Given a fixed time on air", t, func() {
		toa := TimerTime(100)

		Convey("Within the first hour the duty cycle is 1 percent", func() {
			So(calcJoinBackOff(0, toa), ShouldEqual, toa*100-toa)
		})

		Convey("Between 1 and 11 hours it tightens to 0.1 percent", func() {
			So(calcJoinBackOff(2*hourMs, toa), ShouldEqual, toa*1000-toa)
		})

		Convey("After 11 hours it tightens further to 0.01 percent", func() {
			So(calcJoinBackOff(12*hourMs, toa), ShouldEqual, toa*10000-toa)
		})
	})
}

func TestComputeRxWindowParametersGrowsWithError(t *testing.T) {
	Convey("Given an EU868 region at DR0", t, func() {
		r := NewEU868()

		Convey("A larger system max RX error widens the window", func() {
			small := r.ComputeRxWindow(0, 8, 20)
			large := r.ComputeRxWindow(0, 8, 200)
			So(large.WindowTimeoutSymbols, ShouldBeGreaterThan, small.WindowTimeoutSymbols)
		})
	})
}
