package lorawan

import (
	"crypto/aes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// ComputeMIC computes the 4-byte MIC (little-endian, first 4 bytes of the
// CMAC) over buf, which must be MHDR||FHDR||FPort||FRMPayload (i.e. the
// PHYPayload minus the MIC itself).
func ComputeMIC(buf []byte, key AES128Key, devAddr DevAddr, dir Direction, seqCounter uint32) (uint32, error) {
	b0 := make([]byte, 16, 16+len(buf))
	b0[0] = 0x49
	b0[5] = byte(dir)
	copy(b0[6:10], devAddr[:])
	binary.LittleEndian.PutUint32(b0[10:14], seqCounter)
	b0[15] = byte(len(buf))

	b0 = append(b0, buf...)

	tag, err := aesCMAC(key[:], b0)
	if err != nil {
		return 0, errors.Wrap(err, "compute mic")
	}

	return binary.LittleEndian.Uint32(tag[:4]), nil
}

// cryptoBlocks returns the A_i keystream blocks used by both payload
// encryption and decryption, which are identical CTR-mode operations.
func cryptoBlocks(key AES128Key, devAddr DevAddr, dir Direction, seqCounter uint32, numBlocks int) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errors.Wrap(err, "new cipher")
	}

	a := make([]byte, 16)
	a[0] = 0x01
	a[5] = byte(dir)
	copy(a[6:10], devAddr[:])
	binary.LittleEndian.PutUint32(a[10:14], seqCounter)

	s := make([]byte, 16*numBlocks)
	for i := 0; i < numBlocks; i++ {
		a[15] = byte(i + 1)
		block.Encrypt(s[i*16:(i+1)*16], a)
	}

	return s, nil
}

// PayloadEncrypt XORs buf against the LoRaWAN CTR keystream. It is its own
// inverse: PayloadEncrypt(PayloadEncrypt(x, ...), ...) == x.
func PayloadEncrypt(buf []byte, key AES128Key, devAddr DevAddr, dir Direction, seqCounter uint32) ([]byte, error) {
	if len(buf) == 0 {
		return buf, nil
	}

	numBlocks := (len(buf) + 15) / 16
	s, err := cryptoBlocks(key, devAddr, dir, seqCounter, numBlocks)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(buf))
	for i := range buf {
		out[i] = buf[i] ^ s[i]
	}
	return out, nil
}

// PayloadDecrypt is identical to PayloadEncrypt (CTR mode XOR is symmetric);
// it exists as a distinct name for call-site clarity.
func PayloadDecrypt(buf []byte, key AES128Key, devAddr DevAddr, dir Direction, seqCounter uint32) ([]byte, error) {
	return PayloadEncrypt(buf, key, devAddr, dir, seqCounter)
}

// JoinMIC computes the plain CMAC (no B0 block) used for JoinRequest and
// JoinAccept messages.
func JoinMIC(buf []byte, key AES128Key) (uint32, error) {
	tag, err := aesCMAC(key[:], buf)
	if err != nil {
		return 0, errors.Wrap(err, "join mic")
	}
	return binary.LittleEndian.Uint32(tag[:4]), nil
}

// JoinDecrypt decrypts a JoinAccept payload. The network server encrypts a
// JoinAccept with AES-ECB *decrypt* under AppKey, so the device must run
// AES-ECB *encrypt* to recover the plaintext.
func JoinDecrypt(buf []byte, key AES128Key) ([]byte, error) {
	return aesECBTranscode(buf, key, true)
}

// JoinEncrypt is the network-side counterpart of JoinDecrypt (ECB decrypt);
// the device never calls this in normal operation, but it is the inverse
// operation needed to build test fixtures and to support compliance-test
// tooling that must assemble a JoinAccept to a device under test.
func JoinEncrypt(buf []byte, key AES128Key) ([]byte, error) {
	return aesECBTranscode(buf, key, false)
}

func aesECBTranscode(buf []byte, key AES128Key, encryptOp bool) ([]byte, error) {
	if len(buf)%16 != 0 {
		return nil, errors.Errorf("lorawan: join payload length %d is not a multiple of 16", len(buf))
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errors.Wrap(err, "new cipher")
	}

	out := make([]byte, len(buf))
	for i := 0; i < len(buf); i += 16 {
		if encryptOp {
			block.Encrypt(out[i:i+16], buf[i:i+16])
		} else {
			block.Decrypt(out[i:i+16], buf[i:i+16])
		}
	}
	return out, nil
}

// DeriveSessionKeys derives NwkSKey and AppSKey from the join handshake
// material per LoRaWAN 1.0.2 §6.2.5.
func DeriveSessionKeys(appKey AES128Key, appNonce [3]byte, netID NetID, devNonce uint16) (nwkSKey, appSKey AES128Key, err error) {
	block, err := aes.NewCipher(appKey[:])
	if err != nil {
		return nwkSKey, appSKey, errors.Wrap(err, "new cipher")
	}

	buildMsg := func(kind byte) []byte {
		msg := make([]byte, 16)
		msg[0] = kind
		copy(msg[1:4], appNonce[:])
		copy(msg[4:7], netID[:])
		binary.LittleEndian.PutUint16(msg[7:9], devNonce)
		return msg
	}

	block.Encrypt(nwkSKey[:], buildMsg(0x01))
	block.Encrypt(appSKey[:], buildMsg(0x02))

	return nwkSKey, appSKey, nil
}
