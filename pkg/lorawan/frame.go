package lorawan

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// MinPHYPayloadLen is MHDR(1) + DevAddr(4) + FCtrl(1) + FCnt(2) + MIC(4),
// the smallest possible data-message PHYPayload (no FOpts, no FPort).
const MinPHYPayloadLen = 12

// JoinRequestLen is the fixed size of an encoded JoinRequest PHYPayload.
const JoinRequestLen = 23

// DataFrame is the decoded-header, still-encrypted view of a data message:
// everything except the FRMPayload plaintext and the validated counter,
// both of which require session/region context the codec does not have.
type DataFrame struct {
	MHDR       MHDR
	DevAddr    DevAddr
	FCtrl      FCtrl
	FCnt       uint16
	FOpts      []byte
	FPort      *uint8
	FRMPayload []byte // ciphertext as received, or plaintext prior to encode
	MIC        uint32
}

// EncodeJoinRequest builds the fixed 23-byte JoinRequest PHYPayload:
// MHDR | AppEUI_LE | DevEUI_LE | DevNonce_LE | MIC_LE.
func EncodeJoinRequest(appEUI, devEUI EUI64, devNonce uint16, appKey AES128Key) ([]byte, error) {
	buf := make([]byte, 1, JoinRequestLen)
	buf[0] = MHDR{MType: JoinRequest, Major: LoRaWAN1_0}.Byte()

	appEUILE := reverseEUI(appEUI)
	devEUILE := reverseEUI(devEUI)
	buf = append(buf, appEUILE[:]...)
	buf = append(buf, devEUILE[:]...)

	nonce := make([]byte, 2)
	binary.LittleEndian.PutUint16(nonce, devNonce)
	buf = append(buf, nonce...)

	mic, err := JoinMIC(buf, appKey)
	if err != nil {
		return nil, errors.Wrap(err, "join request mic")
	}

	micBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(micBuf, mic)
	return append(buf, micBuf...), nil
}

// reverseEUI returns the byte-reversed EUI64: LoRaWAN carries EUI64 values
// MSB-first in their canonical string form but LSB-first on the air.
func reverseEUI(e EUI64) EUI64 {
	var out EUI64
	for i := range e {
		out[i] = e[len(e)-1-i]
	}
	return out
}

// DecodeJoinAccept decrypts and parses a JoinAccept PHYPayload. The caller
// has already stripped nothing; buf is the full on-air frame starting at
// MHDR. MIC validation happens over MHDR||plaintext, per §4.5.
func DecodeJoinAccept(buf []byte, appKey AES128Key) (*JoinAcceptPayload, error) {
	if len(buf) < 1+12+4 {
		return nil, errors.Errorf("lorawan: join accept too short: %d bytes", len(buf))
	}

	var mhdr MHDR
	mhdr.SetByte(buf[0])
	if mhdr.MType != JoinAccept {
		return nil, errors.Errorf("lorawan: expected JoinAccept MHDR, got %s", mhdr.MType)
	}

	plaintext, err := JoinDecrypt(buf[1:], appKey)
	if err != nil {
		return nil, errors.Wrap(err, "decrypt join accept")
	}
	if len(plaintext) < 12+4 {
		return nil, errors.Errorf("lorawan: decrypted join accept too short: %d bytes", len(plaintext))
	}

	body := plaintext[:len(plaintext)-4]
	micBytes := plaintext[len(plaintext)-4:]

	micInput := append([]byte{buf[0]}, body...)
	expectedMIC, err := JoinMIC(micInput, appKey)
	if err != nil {
		return nil, errors.Wrap(err, "join accept mic")
	}
	if expectedMIC != binary.LittleEndian.Uint32(micBytes) {
		return nil, errors.New("lorawan: join accept mic mismatch")
	}

	ja := &JoinAcceptPayload{}
	copy(ja.AppNonce[:], body[0:3])
	copy(ja.NetID[:], body[3:6])
	copy(ja.DevAddr[:], body[6:10])
	ja.DLSettings.SetByte(body[10])
	ja.RxDelay = body[11]

	if len(body) > 12 {
		ja.CFList = append([]byte(nil), body[12:]...)
	}

	return ja, nil
}

// DecodeDataFrame parses the header of a data PHYPayload without touching
// FRMPayload's plaintext: decryption needs the full 32-bit counter and key
// selection, both of which are session/MAC-command concerns.
func DecodeDataFrame(buf []byte) (*DataFrame, error) {
	if len(buf) < MinPHYPayloadLen {
		return nil, errors.Errorf("lorawan: phy payload too short: %d bytes", len(buf))
	}

	df := &DataFrame{}
	df.MHDR.SetByte(buf[0])
	uplink := df.MHDR.MType.IsUplink()

	copy(df.DevAddr[:], buf[1:5])
	df.FCtrl.SetByte(buf[5], uplink)
	df.FCnt = binary.LittleEndian.Uint16(buf[6:8])

	pos := 8
	foptsLen := int(df.FCtrl.FOptsLen)
	if pos+foptsLen+4 > len(buf) {
		return nil, errors.New("lorawan: fopts overruns phy payload")
	}
	if foptsLen > 0 {
		df.FOpts = append([]byte(nil), buf[pos:pos+foptsLen]...)
		pos += foptsLen
	}

	end := len(buf) - 4
	if pos < end {
		fport := buf[pos]
		df.FPort = &fport
		pos++
		df.FRMPayload = append([]byte(nil), buf[pos:end]...)
	}

	df.MIC = binary.LittleEndian.Uint32(buf[end:])
	return df, nil
}

// EncodeDataFrameInput carries everything EncodeDataFrame needs to build
// and MIC-protect a single uplink frame.
type EncodeDataFrameInput struct {
	MType      MType
	DevAddr    DevAddr
	FCtrl      FCtrl
	FCnt       uint32 // full 32-bit counter; only the low 16 bits travel
	FOpts      []byte // already built command bytes, <= MaxFOptsLen
	FPort      *uint8
	FRMPayload []byte // plaintext application (or FPort-0 command) payload
	NwkSKey    AES128Key
	AppSKey    AES128Key
}

// EncodeDataFrame builds a complete uplink PHYPayload: it selects the
// encryption key by FPort (0 => NwkSKey, 1..223 => AppSKey), computes the
// MIC over the assembled plaintext header with the encrypted FRMPayload,
// and appends it. FOpts must already satisfy MaxFOptsLen; the caller
// decides whether to push commands into FOpts or FPort 0 (§4.5).
func EncodeDataFrame(in EncodeDataFrameInput) ([]byte, error) {
	if len(in.FOpts) > MaxFOptsLen {
		return nil, errors.Errorf("lorawan: fopts length %d exceeds maximum %d", len(in.FOpts), MaxFOptsLen)
	}

	in.FCtrl.FOptsLen = uint8(len(in.FOpts))

	buf := make([]byte, 0, MinPHYPayloadLen+len(in.FOpts)+1+len(in.FRMPayload))
	mhdr := MHDR{MType: in.MType, Major: LoRaWAN1_0}
	buf = append(buf, mhdr.Byte())
	buf = append(buf, in.DevAddr[:]...)
	buf = append(buf, in.FCtrl.Byte(true))
	buf = append(buf, byte(in.FCnt), byte(in.FCnt>>8))
	buf = append(buf, in.FOpts...)

	if in.FPort != nil {
		key := in.AppSKey
		if *in.FPort == 0 {
			key = in.NwkSKey
		}

		enc, err := PayloadEncrypt(in.FRMPayload, key, in.DevAddr, Up, in.FCnt)
		if err != nil {
			return nil, errors.Wrap(err, "encrypt frm payload")
		}

		buf = append(buf, *in.FPort)
		buf = append(buf, enc...)
	}

	mic, err := ComputeMIC(buf, in.NwkSKey, in.DevAddr, Up, in.FCnt)
	if err != nil {
		return nil, errors.Wrap(err, "compute mic")
	}

	micBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(micBuf, mic)
	return append(buf, micBuf...), nil
}

// ValidatePayloadLength reports whether an application payload of appLen
// bytes plus foptsLen bytes of FOpts fits within maxPayload, the region's
// per-datarate ceiling (§4.5, QueryTxPossible in §8).
func ValidatePayloadLength(appLen, foptsLen, maxPayload int) bool {
	return appLen+foptsLen <= maxPayload
}
