package browser_test

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/wonderooo/cars/internal/browser"
)

func TestHandleWebSocketFrameTextOpcode(t *testing.T) {
	payload, _ := json.Marshal(map[string]any{
		"lot_number": 123,
		"sold_price": "4500.00",
		"sold_at":    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339),
	})

	lot, ok, err := browser.HandleWebSocketFrame(1, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true")
	}
	if lot.LotNumber != 123 || lot.SoldPrice != "4500.00" {
		t.Errorf("lot = %+v", lot)
	}
	if lot.ViaSMF {
		t.Error("plaintext frame should not be marked ViaSMF")
	}
}

func TestHandleWebSocketFrameBinaryBase64Plaintext(t *testing.T) {
	payload, _ := json.Marshal(map[string]any{"lot_number": 7, "sold_price": "1.00"})
	encoded := base64.StdEncoding.EncodeToString(payload)

	lot, ok, err := browser.HandleWebSocketFrame(2, []byte(encoded))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || lot.LotNumber != 7 {
		t.Fatalf("lot = %+v, ok = %v", lot, ok)
	}
}

func TestHandleWebSocketFrameMalformedDropped(t *testing.T) {
	_, ok, err := browser.HandleWebSocketFrame(1, []byte(`not json`))
	if ok || err == nil {
		t.Fatal("expected decode failure")
	}
}
