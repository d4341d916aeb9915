package lorawan

import (
	"encoding/hex"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

// TestEncodeJoinRequestS1 reproduces scenario S1 from the spec: a zeroed
// AppEUI/DevEUI, AppKey = 2B7E1516 28AED2A6 ABF71588 09CF4F3C, and a radio
// RNG draw of 0x3412 for DevNonce.
func TestEncodeJoinRequestS1(t *testing.T) {
	Convey("Given the S1 join request fixture", t, func() {
		appKey := mustKey("2B7E151628AED2A6ABF7158809CF4F3C")
		var appEUI, devEUI EUI64

		buf, err := EncodeJoinRequest(appEUI, devEUI, 0x3412, appKey)
		So(err, ShouldBeNil)

		Convey("The wire layout matches the spec's expected prefix", func() {
			So(len(buf), ShouldEqual, JoinRequestLen)
			So(hex.EncodeToString(buf[:19]), ShouldEqual, "00000000000000000000000000000000001234")
		})

		Convey("The MIC is computed under AppKey and is reproducible", func() {
			buf2, err := EncodeJoinRequest(appEUI, devEUI, 0x3412, appKey)
			So(err, ShouldBeNil)
			So(buf, ShouldResemble, buf2)
		})
	})
}

// TestEncodeDataFrameS2 reproduces scenario S2: an unconfirmed uplink with
// FPort 2, payload {0x48, 0x49}, FCnt 0.
func TestEncodeDataFrameS2(t *testing.T) {
	Convey("Given a joined session and an unconfirmed uplink request", t, func() {
		nwkSKey := mustKey("2B7E151628AED2A6ABF7158809CF4F3C")
		appSKey := mustKey("3B7E151628AED2A6ABF7158809CF4F3C")
		addr := DevAddr{0x04, 0x03, 0x02, 0x01}
		fport := uint8(2)

		buf, err := EncodeDataFrame(EncodeDataFrameInput{
			MType:      UnconfirmedDataUp,
			DevAddr:    addr,
			FCnt:       0,
			FPort:      &fport,
			FRMPayload: []byte{0x48, 0x49},
			NwkSKey:    nwkSKey,
			AppSKey:    appSKey,
		})
		So(err, ShouldBeNil)

		Convey("The unencrypted header layout matches MHDR|DevAddr|FCtrl|FCnt|FPort", func() {
			So(buf[0], ShouldEqual, byte(UnconfirmedDataUp)<<5)
			So(buf[1:5], ShouldResemble, []byte{0x04, 0x03, 0x02, 0x01})
			So(buf[5], ShouldEqual, byte(0x00))
			So(buf[6:8], ShouldResemble, []byte{0x00, 0x00})
			So(buf[8], ShouldEqual, fport)
		})

		Convey("Decoding it back recovers the frame header and ciphertext", func() {
			df, err := DecodeDataFrame(buf)
			So(err, ShouldBeNil)
			So(df.DevAddr, ShouldEqual, addr)
			So(*df.FPort, ShouldEqual, fport)

			plain, err := PayloadDecrypt(df.FRMPayload, appSKey, addr, Up, 0)
			So(err, ShouldBeNil)
			So(plain, ShouldResemble, []byte{0x48, 0x49})
		})

		Convey("The MIC validates under NwkSKey", func() {
			df, err := DecodeDataFrame(buf)
			So(err, ShouldBeNil)

			expectedMIC, err := ComputeMIC(buf[:len(buf)-4], nwkSKey, addr, Up, 0)
			So(err, ShouldBeNil)
			So(df.MIC, ShouldEqual, expectedMIC)
		})
	})
}

func TestEncodeDataFrameFOptsLimit(t *testing.T) {
	Convey("Given FOpts longer than 15 bytes", t, func() {
		_, err := EncodeDataFrame(EncodeDataFrameInput{
			MType: UnconfirmedDataUp,
			FOpts: make([]byte, 16),
		})

		Convey("EncodeDataFrame rejects it", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestValidatePayloadLength(t *testing.T) {
	Convey("Given a DR0 EU868-style ceiling of 51 bytes", t, func() {
		Convey("Payloads within the ceiling are accepted", func() {
			So(ValidatePayloadLength(51, 0, 51), ShouldBeTrue)
			So(ValidatePayloadLength(40, 11, 51), ShouldBeTrue)
		})

		Convey("Payloads exceeding the ceiling are rejected", func() {
			So(ValidatePayloadLength(52, 0, 51), ShouldBeFalse)
			So(ValidatePayloadLength(45, 10, 51), ShouldBeFalse)
		})
	})
}
