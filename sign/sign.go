// Package sign computes the ATT authentication signature carried by
// signed write commands [Vol 3, Part C, 10.4.1].
package sign

import (
	"crypto/aes"
	"encoding/binary"

	"github.com/aead/cmac"
	"github.com/pkg/errors"
	"github.com/rigado/gattc/sliceops"
)

// SignatureLength is the size of the authentication signature: a 4 byte
// sign counter followed by an 8 byte MAC.
const SignatureLength = 12

const signedWriteOpcode = 0xd2

// WritePDU builds the portion of a signed write PDU covered by the
// signature: opcode, attribute handle and value, all little endian.
func WritePDU(valueHandle uint16, value []byte) []byte {
	pdu := make([]byte, 3, 3+len(value))
	pdu[0] = signedWriteOpcode
	binary.LittleEndian.PutUint16(pdu[1:], valueHandle)
	return append(pdu, value...)
}

// Signature computes the 12 byte authentication signature over pdu with
// the given CSRK and sign counter.
func Signature(csrk []byte, counter uint32, pdu []byte) ([]byte, error) {
	if len(csrk) != 16 {
		return nil, errors.Errorf("csrk must be 16 bytes, got %d", len(csrk))
	}

	cnt := make([]byte, 4)
	binary.LittleEndian.PutUint32(cnt, counter)

	m := make([]byte, 0, len(pdu)+4)
	m = append(m, pdu...)
	m = append(m, cnt...)

	mac, err := aesCMAC(csrk, m)
	if err != nil {
		return nil, errors.Wrap(err, "can't compute signature")
	}

	// Signature is the counter followed by the 8 most significant MAC
	// bytes, transmitted least significant octet first.
	sig := make([]byte, 0, SignatureLength)
	sig = append(sig, cnt...)
	sig = append(sig, mac[8:]...)
	return sig, nil
}

// aesCMAC follows the SMP convention: keys and messages are handled most
// significant octet first.
func aesCMAC(key, msg []byte) ([]byte, error) {
	mCipher, err := aes.NewCipher(sliceops.SwapBuf(key))
	if err != nil {
		return nil, err
	}

	mMac, err := cmac.New(mCipher)
	if err != nil {
		return nil, err
	}

	mMac.Write(sliceops.SwapBuf(msg))

	return sliceops.SwapBuf(mMac.Sum(nil)), nil
}
