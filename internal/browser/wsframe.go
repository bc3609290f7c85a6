package browser

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/wonderooo/cars/internal/smf"
)

// wsOpcodeText is the WebSocket frame opcode for a text (UTF-8) frame, per
// RFC 6455 §11.8. Any other opcode this handler sees is treated as binary.
const wsOpcodeText = 1

// SoldLot is the payload of a sale-completion message broadcast over the
// site's own websocket, in either its plaintext or SMF-framed form.
type SoldLot struct {
	LotNumber int32     `json:"lot_number"`
	SoldPrice string    `json:"sold_price"`
	SoldAt    time.Time `json:"sold_at"`
	ViaSMF    bool      `json:"-"`
}

// HandleWebSocketFrame implements C5 (spec §4.5). opcode and body are the
// raw CDP-reported frame opcode and payload bytes. It returns the decoded
// message and true, or ok=false if the frame could not be decoded (already
// logged by the caller using the returned error).
func HandleWebSocketFrame(opcode int, body []byte) (SoldLot, bool, error) {
	var raw []byte
	if opcode == wsOpcodeText {
		raw = body
	} else {
		decoded, err := base64.StdEncoding.DecodeString(string(body))
		if err != nil {
			return SoldLot{}, false, fmt.Errorf("browser: base64-decode frame: %w", err)
		}
		raw = decoded
	}

	if utf8.Valid(raw) {
		var lot SoldLot
		if err := json.Unmarshal(raw, &lot); err != nil {
			return SoldLot{}, false, fmt.Errorf("browser: decode plain SoldMessage: %w", err)
		}
		return lot, true, nil
	}

	sizes, err := smf.Decode(raw)
	if err != nil {
		return SoldLot{}, false, fmt.Errorf("browser: smf decode: %w", err)
	}
	payloadLen, err := sizes.PayloadLen()
	if err != nil {
		return SoldLot{}, false, fmt.Errorf("browser: smf payload length: %w", err)
	}
	if sizes.HeaderBytes+payloadLen > len(raw) {
		return SoldLot{}, false, fmt.Errorf("browser: smf payload overruns frame: header=%d payload=%d frame=%d",
			sizes.HeaderBytes, payloadLen, len(raw))
	}
	inner := raw[sizes.HeaderBytes : sizes.HeaderBytes+payloadLen]

	decoded, err := base64.StdEncoding.DecodeString(string(inner))
	if err != nil {
		return SoldLot{}, false, fmt.Errorf("browser: base64-decode smf payload: %w", err)
	}

	var lot SoldLot
	if err := json.Unmarshal(decoded, &lot); err != nil {
		return SoldLot{}, false, fmt.Errorf("browser: decode solace SoldMessage: %w", err)
	}
	lot.ViaSMF = true
	return lot, true, nil
}
