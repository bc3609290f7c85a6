package browser_test

import (
	"testing"

	"github.com/wonderooo/cars/internal/browser"
)

// TestExtractResponsePreflightDropped covers §4.4 step 1 and error kind
// "preflight_artifact": a response with no Cookie header on the preserved
// request is dropped without emitting.
func TestExtractResponsePreflightDropped(t *testing.T) {
	_, emit := browser.ExtractResponse("https://site/lots/x?pageNumber=1", false, []byte(`{}`), nil)
	if emit {
		t.Fatal("expected preflight response to be dropped")
	}
}

// TestExtractResponseLotSearch covers invariant 2: pageNumber on the emitted
// response equals the query-string value of the originating URL.
func TestExtractResponseLotSearch(t *testing.T) {
	body := []byte(`{"results":[{"ln":42,"mkn":"Toyota","lm":"Camry","lcy":2018,"frv":"1500.50","erc":"200.00"}]}`)
	resp, emit := browser.ExtractResponse("https://site/lots/x?pageNumber=3", true, body, nil)
	if !emit {
		t.Fatal("expected emit=true")
	}
	if resp.Kind != "lot_search_response" {
		t.Fatalf("Kind = %q", resp.Kind)
	}
	if resp.LotSearch == nil {
		t.Fatal("LotSearch is nil")
	}
	if resp.LotSearch.PageNumber != 3 {
		t.Errorf("PageNumber = %d, want 3", resp.LotSearch.PageNumber)
	}
	if len(resp.LotSearch.Vehicles) != 1 || resp.LotSearch.Vehicles[0].LotNumber != 42 {
		t.Errorf("Vehicles = %+v", resp.LotSearch.Vehicles)
	}
}

// TestExtractResponseLotImages covers the /solr/lotImages dispatch branch.
func TestExtractResponseLotImages(t *testing.T) {
	body := []byte(`{"images":[{"sequence":0,"type":"main","url":"https://img/1.jpg"}]}`)
	resp, emit := browser.ExtractResponse("https://site/solr/lotImages?lotNumber=77", true, body, nil)
	if !emit {
		t.Fatal("expected emit=true")
	}
	if resp.LotImages == nil || resp.LotImages.LotNumber != 77 {
		t.Fatalf("LotImages = %+v", resp.LotImages)
	}
	if len(resp.LotImages.Images) != 1 || resp.LotImages.Images[0].LotNumber != 77 {
		t.Errorf("Images = %+v", resp.LotImages.Images)
	}
}

// TestExtractResponseOtherURLDropped covers §4.4 step 2's "any other
// intercepted URL" row.
func TestExtractResponseOtherURLDropped(t *testing.T) {
	_, emit := browser.ExtractResponse("https://site/static/app.js", true, []byte(`{}`), nil)
	if emit {
		t.Fatal("expected non-matching URL to be dropped")
	}
}

// TestExtractResponseMalformedBodyEmitsFailure covers §7's "malformed
// payload" policy: log, emit a failed response, never error the caller.
func TestExtractResponseMalformedBodyEmitsFailure(t *testing.T) {
	resp, emit := browser.ExtractResponse("https://site/lots/x?pageNumber=1", true, []byte(`not json`), nil)
	if !emit {
		t.Fatal("expected a failure response to be emitted")
	}
	if resp.Kind != "failure" || resp.Failure == nil {
		t.Fatalf("expected failure response, got %+v", resp)
	}
	if resp.Failure.Kind != "malformed_payload" {
		t.Errorf("Failure.Kind = %q", resp.Failure.Kind)
	}
}
