package mac

import (
	"testing"

	"github.com/lorawan-edge/mac-core/pkg/lorawan"
	"github.com/lorawan-edge/mac-core/pkg/radio"
	"github.com/lorawan-edge/mac-core/pkg/region"
	"github.com/lorawan-edge/mac-core/pkg/timerport"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/rs/zerolog"
)

func newTestContext() *Context {
	r := region.NewEU868()
	return New(r, radio.NewFake(), timerport.NewVirtualClock(), &fakeConfirms{}, lorawan.EUI64{}, lorawan.EUI64{}, lorawan.AES128Key{}, zerolog.Nop())
}

func TestMibGetSetRoundTrip(t *testing.T) {
	Convey("Given a freshly constructed Context", t, func() {
		c := newTestContext()

		Convey("MibSetRequestConfirm MibAdrEnable then MibGetRequestConfirm reads it back", func() {
			status := c.MibSetRequestConfirm(MibAdrEnable, Value{Bool: true})
			So(status, ShouldEqual, StatusOK)

			v, status := c.MibGetRequestConfirm(MibAdrEnable)
			So(status, ShouldEqual, StatusOK)
			So(v.Bool, ShouldBeTrue)
		})

		Convey("MibChannelsDatarate rejects a datarate the region doesn't support", func() {
			status := c.MibSetRequestConfirm(MibChannelsDatarate, Value{Int: 99})
			So(status, ShouldEqual, StatusParameterInvalid)
		})

		Convey("MibNetworkJoined defaults to false", func() {
			v, status := c.MibGetRequestConfirm(MibNetworkJoined)
			So(status, ShouldEqual, StatusOK)
			So(v.Bool, ShouldBeFalse)
		})

		Convey("an unknown attribute reports SERVICE_UNKNOWN", func() {
			_, status := c.MibGetRequestConfirm(Attribute(9999))
			So(status, ShouldEqual, StatusServiceUnknown)
		})
	})
}

func TestMibSetDeviceClassOpensAndClosesClassCWindow(t *testing.T) {
	Convey("Given an idle Context", t, func() {
		c := newTestContext()
		fake := c.radioPort.(*radio.Fake)

		Convey("switching to Class C puts the radio into continuous RX", func() {
			status := c.MibSetRequestConfirm(MibDeviceClass, Value{Class: ClassC})
			So(status, ShouldEqual, StatusOK)
			So(fake.RxConfig.RxContinuous, ShouldBeTrue)
			So(fake.Status, ShouldEqual, radio.RxRunning)
		})

		Convey("switching back to Class A puts the radio to sleep", func() {
			c.MibSetRequestConfirm(MibDeviceClass, Value{Class: ClassC})
			status := c.MibSetRequestConfirm(MibDeviceClass, Value{Class: ClassA})
			So(status, ShouldEqual, StatusOK)
			So(fake.Status, ShouldEqual, radio.Idle)
		})
	})
}

func TestMibSetBusyWhileTxAffectingAttributeAndTxRunning(t *testing.T) {
	Convey("Given a Context mid-transmission", t, func() {
		c := newTestContext()
		c.setState(StateTxRunning)

		Convey("setting the channel mask is rejected as BUSY", func() {
			status := c.MibSetRequestConfirm(MibChannelsMask, Value{ChannelsMask: []uint16{0x0007}})
			So(status, ShouldEqual, StatusBusy)
		})

		Convey("setting an attribute that doesn't affect an in-flight tx still succeeds", func() {
			status := c.MibSetRequestConfirm(MibAdrEnable, Value{Bool: true})
			So(status, ShouldEqual, StatusOK)
		})
	})
}

// fakeConfirms records every callback the MAC issues, for assertions in
// tests that drive it through a full request/response cycle.
type fakeConfirms struct {
	mlme []MlmeConfirm
	mcps []McpsConfirm
	inds []McpsIndication
}

func (f *fakeConfirms) MlmeConfirm(c MlmeConfirm)           { f.mlme = append(f.mlme, c) }
func (f *fakeConfirms) McpsConfirm(c McpsConfirm)           { f.mcps = append(f.mcps, c) }
func (f *fakeConfirms) McpsIndication(ind McpsIndication)   { f.inds = append(f.inds, ind) }
