package broadlink

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"net"
)

// Protocol constants.
const (
	// DefaultPort is the UDP port every unit listens on.
	DefaultPort = 80

	headerLen = 0x38

	checksumSeed = 0xBEAF

	cmdHello = 0x06
	cmdAuth  = 0x65
	cmdData  = 0x6A

	helloLen = 0x30
)

// Header offsets.
const (
	offMagic        = 0x00
	offChecksum     = 0x20
	offErrorCode    = 0x22
	offDevType      = 0x24
	offCommand      = 0x26
	offCount        = 0x28
	offMAC          = 0x2A
	offID           = 0x30
	offPayloadSum   = 0x34
	offHelloDevType = 0x34
	offHelloMAC     = 0x3A
	offHelloName    = 0x40
)

// RM payload commands.
const (
	rmSendData      = 0x02
	rmEnterLearning = 0x03
	rmCheckData     = 0x04
)

var (
	magic = []byte{0x5a, 0xa5, 0xaa, 0x55, 0x5a, 0xa5, 0xaa, 0x55}

	initialKey = []byte{0x09, 0x76, 0x28, 0x34, 0x3f, 0xe9, 0x9e, 0x23, 0x76, 0x5c, 0x15, 0x13, 0xac, 0xcf, 0x8b, 0x02}
	initialIV  = []byte{0x56, 0x2e, 0x17, 0x99, 0x6d, 0x09, 0x3d, 0x28, 0xdd, 0xb3, 0xba, 0x69, 0x5a, 0x2e, 0x6f, 0x58}
)

// checksum sums data onto the 0xBEAF seed, truncated to 16 bits.
func checksum(data []byte) uint16 {
	sum := uint32(checksumSeed)
	for _, b := range data {
		sum += uint32(b)
	}
	return uint16(sum)
}

// padBlock zero-pads data to the AES block size.
func padBlock(data []byte) []byte {
	if rem := len(data) % aes.BlockSize; rem != 0 {
		data = append(data, make([]byte, aes.BlockSize-rem)...)
	}
	return data
}

func encrypt(key, plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	plain = padBlock(bytes.Clone(plain))
	out := make([]byte, len(plain))
	cipher.NewCBCEncrypter(block, initialIV).CryptBlocks(out, plain)
	return out, nil
}

func decrypt(key, data []byte) ([]byte, error) {
	if len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: payload length %d not block aligned", ErrInvalidResponse, len(data))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, initialIV).CryptBlocks(out, data)
	return out, nil
}

// frame describes one request to a unit.
type frame struct {
	devType uint16
	command uint16
	count   uint16
	mac     net.HardwareAddr
	id      uint32
	key     []byte
	payload []byte
}

// encode builds the wire bytes for f.
func (f frame) encode() ([]byte, error) {
	header := make([]byte, headerLen)
	copy(header[offMagic:], magic)
	binary.LittleEndian.PutUint16(header[offDevType:], f.devType)
	binary.LittleEndian.PutUint16(header[offCommand:], f.command)
	binary.LittleEndian.PutUint16(header[offCount:], f.count)
	copy(header[offMAC:offMAC+6], reverse(f.mac))
	binary.LittleEndian.PutUint32(header[offID:], f.id)

	payload := padBlock(bytes.Clone(f.payload))
	binary.LittleEndian.PutUint16(header[offPayloadSum:], checksum(payload))

	enc, err := encrypt(f.key, payload)
	if err != nil {
		return nil, err
	}

	packet := append(header, enc...)
	binary.LittleEndian.PutUint16(packet[offChecksum:], checksum(packet))
	return packet, nil
}

// response is a validated reply from a unit.
type response struct {
	command uint16
	code    int16
	body    []byte
}

// decodeResponse validates a reply and decrypts its payload with key.
func decodeResponse(packet, key []byte) (response, error) {
	if len(packet) < headerLen {
		return response{}, fmt.Errorf("%w: %d bytes, want at least %d", ErrInvalidResponse, len(packet), headerLen)
	}

	want := binary.LittleEndian.Uint16(packet[offChecksum:])
	if got := checksum(packet) - checksum(packet[offChecksum:offChecksum+2]) + checksumSeed; got != want {
		return response{}, fmt.Errorf("%w: checksum %#04x, want %#04x", ErrInvalidResponse, got, want)
	}

	resp := response{
		command: binary.LittleEndian.Uint16(packet[offCommand:]),
		code:    int16(binary.LittleEndian.Uint16(packet[offErrorCode:])),
	}
	if resp.code != 0 {
		return resp, nil
	}

	body, err := decrypt(key, packet[headerLen:])
	if err != nil {
		return response{}, err
	}
	resp.body = body
	return resp, nil
}

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}
