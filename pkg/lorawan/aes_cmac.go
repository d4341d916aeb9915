package lorawan

import (
	"crypto/aes"
	"crypto/cipher"
)

// aesCMAC implements AES-CMAC (RFC 4493) under the given 128-bit key.
func aesCMAC(key []byte, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	k1, k2 := cmacSubkeys(block)

	n := len(data)
	var mLast []byte
	var completeLastBlock bool

	if n == 0 {
		mLast = make([]byte, 16)
		mLast[0] = 0x80
		xorBlock(mLast, k2)
	} else if n%16 == 0 {
		completeLastBlock = true
		mLast = make([]byte, 16)
		copy(mLast, data[n-16:])
		xorBlock(mLast, k1)
	} else {
		mLast = make([]byte, 16)
		remainder := n % 16
		copy(mLast, data[n-remainder:])
		mLast[remainder] = 0x80
		xorBlock(mLast, k2)
	}

	numFullBlocks := n / 16
	if completeLastBlock {
		numFullBlocks--
	}

	x := make([]byte, 16)
	y := make([]byte, 16)
	for i := 0; i < numFullBlocks; i++ {
		for j := 0; j < 16; j++ {
			y[j] = x[j] ^ data[i*16+j]
		}
		block.Encrypt(x, y)
	}

	for j := 0; j < 16; j++ {
		y[j] = x[j] ^ mLast[j]
	}
	block.Encrypt(x, y)

	return x, nil
}

// cmacSubkeys derives K1 and K2 from the cipher per RFC 4493 §2.3.
func cmacSubkeys(block cipher.Block) (k1, k2 []byte) {
	const rb = 0x87

	k0 := make([]byte, 16)
	block.Encrypt(k0, k0)

	k1 = cmacLeftShift(k0)
	if k0[0]&0x80 != 0 {
		k1[15] ^= rb
	}

	k2 = cmacLeftShift(k1)
	if k1[0]&0x80 != 0 {
		k2[15] ^= rb
	}

	return k1, k2
}

func cmacLeftShift(b []byte) []byte {
	out := make([]byte, len(b))
	var carry byte
	for i := len(b) - 1; i >= 0; i-- {
		out[i] = b[i]<<1 | carry
		carry = b[i] >> 7
	}
	return out
}

func xorBlock(dst, src []byte) {
	for i := range dst {
		dst[i] ^= src[i]
	}
}
