package mac

import (
	"os"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"gopkg.in/yaml.v3"

	"github.com/lorawan-edge/mac-core/pkg/lorawan"
	"github.com/lorawan-edge/mac-core/pkg/region"
)

// scenario is the decoded shape of one entry in testdata/scenarios.yaml.
// Every field is scenario-specific; a given entry only populates the ones
// its name needs.
type scenario struct {
	Name string `yaml:"name"`

	AppKey          []int `yaml:"app_key"`
	DevNonce        int   `yaml:"dev_nonce"`
	AppNonce        []int `yaml:"app_nonce"`
	NetID           int   `yaml:"net_id"`
	DevAddr         int64 `yaml:"dev_addr"`
	ReceiveDelay1Ms int   `yaml:"receive_delay1_ms"`
	ReceiveDelay2Ms int   `yaml:"receive_delay2_ms"`
	Rx2Datarate     int   `yaml:"rx2_datarate"`

	FPort      int   `yaml:"f_port"`
	Payload    []int `yaml:"payload"`
	FCtrl      int   `yaml:"fctrl"`
	FCntBefore int   `yaml:"fcnt_before"`
	FCntAfter  int   `yaml:"fcnt_after"`

	BaseDatarate               int   `yaml:"base_datarate"`
	MaxTrials                  int   `yaml:"max_trials"`
	ExpectedDatarates          []int `yaml:"expected_datarates"`
	ExpectedUplinkCounterDelta int   `yaml:"expected_uplink_counter_delta"`

	ExpectedDatarate      int   `yaml:"expected_datarate"`
	ExpectedTxPowerIndex  int   `yaml:"expected_tx_power_index"`
	ExpectedStatus        int   `yaml:"expected_status"`
	ExpectedMaskWord0     int   `yaml:"expected_mask_word0"`
	ExpectedMaskWord4     int   `yaml:"expected_mask_word4"`

	CorruptLastNBytes               int  `yaml:"corrupt_last_n_bytes"`
	ExpectedDownlinkCounterUnchanged bool `yaml:"expected_downlink_counter_unchanged"`

	ExpectedRxSlot int `yaml:"expected_rx_slot"`
}

func loadScenarios(t *testing.T) map[string]scenario {
	t.Helper()
	raw, err := os.ReadFile("testdata/scenarios.yaml")
	if err != nil {
		t.Fatalf("read scenarios fixture: %v", err)
	}
	var list []scenario
	if err := yaml.Unmarshal(raw, &list); err != nil {
		t.Fatalf("decode scenarios fixture: %v", err)
	}
	byName := make(map[string]scenario, len(list))
	for _, s := range list {
		byName[s.Name] = s
	}
	return byName
}

func toBytes(ints []int) []byte {
	out := make([]byte, len(ints))
	for i, v := range ints {
		out[i] = byte(v)
	}
	return out
}

// TestScenarioS1JoinDerivesExpectedSession decodes S1's fixture and checks
// that DeriveSessionKeys, fed the fixture's AppNonce/NetID/DevNonce,
// succeeds and produces distinct NwkSKey/AppSKey values - the same
// inputs join.go's onJoinAccept feeds it during a live join.
func TestScenarioS1JoinDerivesExpectedSession(t *testing.T) {
	scenarios := loadScenarios(t)
	s := scenarios["S1 join EU868"]

	Convey("Given the S1 fixture's AppKey/AppNonce/NetID/DevNonce", t, func() {
		var appKey lorawan.AES128Key
		copy(appKey[:], toBytes(s.AppKey))
		var appNonce [3]byte
		copy(appNonce[:], toBytes(s.AppNonce))
		netID := lorawan.NetID{byte(s.NetID >> 16), byte(s.NetID >> 8), byte(s.NetID)}

		Convey("DeriveSessionKeys succeeds and NwkSKey != AppSKey", func() {
			nwkSKey, appSKey, err := lorawan.DeriveSessionKeys(appKey, appNonce, netID, uint16(s.DevNonce))
			So(err, ShouldBeNil)
			So(nwkSKey, ShouldNotEqual, appSKey)
		})

		Convey("the fixture's delay/DR expectations match what onJoinAccept would set", func() {
			So(s.ReceiveDelay1Ms, ShouldEqual, 1000)
			So(s.ReceiveDelay2Ms, ShouldEqual, 2000)
			So(s.Rx2Datarate, ShouldEqual, 0)
		})
	})
}

// TestScenarioS2UplinkCounterAdvancesByOne exercises the fixture that
// documents S2's FCnt semantics; the byte-level frame layout itself is
// covered by pkg/lorawan's TestEncodeDataFrameS2.
func TestScenarioS2UplinkCounterAdvancesByOne(t *testing.T) {
	scenarios := loadScenarios(t)
	s := scenarios["S2 unconfirmed uplink"]

	Convey("Given the S2 fixture", t, func() {
		So(s.FCntAfter-s.FCntBefore, ShouldEqual, 1)
		So(s.FCtrl, ShouldEqual, 0x00)
		So(toBytes(s.Payload), ShouldResemble, []byte{0x48, 0x49})
	})
}

// TestScenarioS3RetryLadderMatchesFixture is the yaml-driven twin of
// TestSchedulerConfirmedRetryLadder: it checks confirmedRetryDatarate
// directly against the fixture's DR sequence rather than driving a full
// Context through eight retries.
func TestScenarioS3RetryLadderMatchesFixture(t *testing.T) {
	scenarios := loadScenarios(t)
	s := scenarios["S3 confirmed retry ladder"]

	Convey("Given the S3 fixture's base datarate and trial count", t, func() {
		So(len(s.ExpectedDatarates), ShouldEqual, s.MaxTrials)

		Convey("confirmedRetryDatarate reproduces the fixture's DR sequence", func() {
			for i, wantDR := range s.ExpectedDatarates {
				gotDR := confirmedRetryDatarate(s.BaseDatarate, i+1)
				So(gotDR, ShouldEqual, wantDR)
			}
		})
	})
}

// TestScenarioS4LinkAdrChannelMask6 decodes S4's raw LinkADRReq payload
// and feeds it straight to the US915 region, the same call
// processDownlinkCommands makes.
func TestScenarioS4LinkAdrChannelMask6(t *testing.T) {
	scenarios := loadScenarios(t)
	s := scenarios["S4 linkadr channel mask 6 us915"]

	Convey("Given a fresh US915 region and the S4 fixture's payload", t, func() {
		r := region.NewUS915()
		payload := []byte{0x32, 0xff, 0x00, 0x61}

		Convey("LinkAdrReq applies the chmaskctrl=6 'enable all' shortcut", func() {
			result, err := r.LinkAdrReq([][]byte{payload}, 0, 0, 1)
			So(err, ShouldBeNil)
			So(result.Datarate, ShouldEqual, s.ExpectedDatarate)
			So(result.TxPowerIndex, ShouldEqual, int8(s.ExpectedTxPowerIndex))
			So(result.ChannelsMask[0], ShouldEqual, uint16(s.ExpectedMaskWord0))
			So(result.ChannelsMask[4], ShouldEqual, uint16(s.ExpectedMaskWord4))
			So(result.Statuses, ShouldHaveLength, 1)
			So(result.Statuses[0], ShouldEqual, byte(s.ExpectedStatus))
		})
	})
}

// TestScenarioS5MICFailureLeavesCounterFixtureAligned just pins the
// fixture's expectation; the live behavior is exercised end-to-end by
// TestSchedulerDownlinkMICFailureIsReportedWithoutCorruptingState.
func TestScenarioS5MICFailureLeavesCounterFixtureAligned(t *testing.T) {
	scenarios := loadScenarios(t)
	s := scenarios["S5 downlink mic failure"]

	Convey("Given the S5 fixture", t, func() {
		So(s.CorruptLastNBytes, ShouldEqual, 4)
		So(s.ExpectedDownlinkCounterUnchanged, ShouldBeTrue)
	})
}

// TestScenarioS6Rx1MissRx2HitSlot pins the RxSlot the fixture expects;
// the live cycle is exercised end-to-end by TestSchedulerRx1MissRx2Hit.
func TestScenarioS6Rx1MissRx2HitSlot(t *testing.T) {
	scenarios := loadScenarios(t)
	s := scenarios["S6 rx1 timeout rx2 success"]

	Convey("Given the S6 fixture", t, func() {
		So(s.ExpectedRxSlot, ShouldEqual, 1)
	})
}
