package lorawan

import "github.com/pkg/errors"

// MACCommand is a single parsed MAC command: a command ID and its
// fixed-length payload (length determined by cid and direction).
type MACCommand struct {
	CID     byte
	Payload []byte
}

// MAC command identifiers. Request/answer share a CID; direction
// disambiguates which payload layout applies.
const (
	LinkCheckReq     byte = 0x02
	LinkCheckAns     byte = 0x02
	LinkADRReq       byte = 0x03
	LinkADRAns       byte = 0x03
	DutyCycleReq     byte = 0x04
	DutyCycleAns     byte = 0x04
	RXParamSetupReq  byte = 0x05
	RXParamSetupAns  byte = 0x05
	DevStatusReq     byte = 0x06
	DevStatusAns     byte = 0x06
	NewChannelReq    byte = 0x07
	NewChannelAns    byte = 0x07
	RXTimingSetupReq byte = 0x08
	RXTimingSetupAns byte = 0x08
	TxParamSetupReq  byte = 0x09
	TxParamSetupAns  byte = 0x09
	DlChannelReq     byte = 0x0A
	DlChannelAns     byte = 0x0A
	DeviceTimeReq    byte = 0x0D
	DeviceTimeAns    byte = 0x0D
)

// stickyCommands must be re-sent in every uplink until a downlink arrives,
// per §3 "Command buffers".
var stickyCommands = map[byte]bool{
	DlChannelAns:     true,
	RXParamSetupAns:  true,
	RXTimingSetupAns: true,
}

// IsSticky reports whether a mote answer with this CID must be repeated
// across retransmissions until a downlink is received.
func IsSticky(cid byte) bool {
	return stickyCommands[cid]
}

// downlinkPayloadLen returns the request payload length the device expects
// to receive for cid, or -1 if cid is unknown to this device.
func downlinkPayloadLen(cid byte) int {
	switch cid {
	case LinkCheckAns:
		return 2
	case LinkADRReq:
		return 4
	case DutyCycleReq:
		return 1
	case RXParamSetupReq:
		return 4
	case DevStatusReq:
		return 0
	case NewChannelReq:
		return 5
	case RXTimingSetupReq:
		return 1
	case TxParamSetupReq:
		return 1
	case DlChannelReq:
		return 4
	case DeviceTimeAns:
		return 5
	default:
		return -1
	}
}

// uplinkPayloadLen returns the answer payload length produced by this
// device, used when re-parsing the device's own cmd_repeat_buf.
func uplinkPayloadLen(cid byte) int {
	switch cid {
	case LinkCheckReq:
		return 0
	case LinkADRAns:
		return 1
	case DutyCycleAns:
		return 0
	case RXParamSetupAns:
		return 1
	case DevStatusAns:
		return 2
	case NewChannelAns:
		return 1
	case RXTimingSetupAns:
		return 0
	case TxParamSetupAns:
		return 0
	case DlChannelAns:
		return 1
	case DeviceTimeReq:
		return 0
	default:
		return -1
	}
}

// ParseMACCommands consumes data left to right. An unknown CID aborts
// parsing at that byte; commands already parsed are returned alongside the
// error so the caller can still act on them, per §4.6/§7 "Parser failures".
func ParseMACCommands(uplink bool, data []byte) ([]MACCommand, error) {
	lenOf := downlinkPayloadLen
	if uplink {
		lenOf = uplinkPayloadLen
	}

	var commands []MACCommand
	for i := 0; i < len(data); {
		cid := data[i]
		i++

		payloadLen := lenOf(cid)
		if payloadLen < 0 {
			return commands, errors.Errorf("lorawan: unknown mac command id 0x%02x", cid)
		}
		if i+payloadLen > len(data) {
			return commands, errors.Errorf("lorawan: short payload for mac command 0x%02x", cid)
		}

		commands = append(commands, MACCommand{CID: cid, Payload: data[i : i+payloadLen]})
		i += payloadLen
	}

	return commands, nil
}

// EncodeMACCommands serializes a list of device answers/requests in order.
func EncodeMACCommands(commands []MACCommand) []byte {
	var out []byte
	for _, cmd := range commands {
		out = append(out, cmd.CID)
		out = append(out, cmd.Payload...)
	}
	return out
}
