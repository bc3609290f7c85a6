// Package smf decodes Solace Message Format v2/v3 framing headers to locate
// the payload bytes inside a received WebSocket binary frame. It performs no
// I/O: callers are responsible for seeking past the header and reading the
// message bytes it reports.
//
// Bit-layout grounded on the original implementation's decoder
// (browser/src/copart/browser/smf.rs): two big-endian 32-bit words are read
// at offsets 0 and 4; smf_version occupies bits [26:24] of word1 and
// protocol occupies bits [21:16].
package smf

import "fmt"

// knownReceivableProtocols is the hard-coded set of protocol values observed
// in upstream traffic for which the payload length is the reported message
// length minus the header length (spec §4.1's "known receivable protocol"
// set); for any other protocol Decode subtracts only the bytes it consumed
// reading the header words. Surfacing this
// as configuration is an open question noted in DESIGN.md.
var knownReceivableProtocols = map[uint32]bool{
	3: true, 9: true, 10: true, 11: true, 12: true,
	13: true, 14: true, 15: true, 19: true, 20: true,
}

// Error wraps a decode failure with the reason it occurred, per spec §4.1's
// "SmfError(reason)" contract.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return fmt.Sprintf("smf: %s", e.Reason) }

func newError(format string, args ...any) *Error {
	return &Error{Reason: fmt.Sprintf(format, args...)}
}

// Sizes is the result of decoding an SMF frame header.
type Sizes struct {
	// HeaderBytes is the length of the frame's header in bytes.
	HeaderBytes int
	// MsgBytes is the length of the message payload in bytes, after the
	// frame's reported total length has been adjusted for the header (or,
	// outside the known protocol set, for the bytes consumed). It still
	// includes the 40-byte trailing footer, which PayloadLen subtracts.
	MsgBytes int
}

// Decode reads the SMF header at the start of data and computes the header
// and payload byte lengths, per spec §4.1. data must be at least 8 bytes.
func Decode(data []byte) (Sizes, error) {
	word1, err := fourByteToUint(data, 0)
	if err != nil {
		return Sizes{}, err
	}
	word2, err := fourByteToUint(data, 4)
	if err != nil {
		return Sizes{}, err
	}

	version := extractBits(word1, 3, 24)
	protocol := extractBits(word1, 6, 16)

	var hdrLenBytes, bytesRead, reportedMsgLen uint32
	switch version {
	case 2:
		hdrLenWords := extractBits(word1, 12, 0)
		hdrLenBytes = hdrLenWords * 4
		reportedMsgLen = extractBits(word2, 24, 0)
		bytesRead = 8
	case 3:
		hdrLenBytes = word2
		word3, err := fourByteToUint(data, 8)
		if err != nil {
			return Sizes{}, err
		}
		reportedMsgLen = word3
		bytesRead = 12
	default:
		return Sizes{}, newError("unsupported SMF version: version = `%d`", version)
	}

	var msgLen uint32
	if knownReceivableProtocols[protocol] {
		if reportedMsgLen < hdrLenBytes {
			return Sizes{}, newError("reported message length `%d` underflows header length `%d`", reportedMsgLen, hdrLenBytes)
		}
		msgLen = reportedMsgLen - hdrLenBytes
	} else {
		if reportedMsgLen < bytesRead {
			return Sizes{}, newError("reported message length `%d` underflows bytes consumed `%d`", reportedMsgLen, bytesRead)
		}
		msgLen = reportedMsgLen - bytesRead
	}

	return Sizes{HeaderBytes: int(hdrLenBytes), MsgBytes: int(msgLen)}, nil
}

// PayloadLen subtracts the 40-byte trailing footer spec §4.1 describes,
// returning the number of bytes the caller should read (starting just past
// the header) before Base64-decoding the application payload.
func (s Sizes) PayloadLen() (int, error) {
	const footer = 40
	if s.MsgBytes < footer {
		return 0, newError("message length `%d` underflows footer length `%d`", s.MsgBytes, footer)
	}
	return s.MsgBytes - footer, nil
}

func fourByteToUint(data []byte, offset int) (uint32, error) {
	if offset+4 > len(data) {
		return 0, newError("slice overflow error: data_len = `%d`, offset = `%d`", len(data), offset)
	}
	b := data[offset : offset+4]
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

func extractBits(x uint32, numBits, shiftRight uint32) uint32 {
	return (x >> shiftRight) & ((1 << numBits) - 1)
}
