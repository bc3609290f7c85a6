package browser_test

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/wonderooo/cars/internal/browser"
)

// TestRewriteRequestLotSearch exercises scenario S1 from spec §8.
func TestRewriteRequestLotSearch(t *testing.T) {
	rawURL := "https://site/lots/x?pageNumber=2&dateStart=2025-01-01T00:00:00Z&dateEnd=2025-01-01T01:00:00Z&yearStart=2010&yearEnd=2010"

	result, err := browser.RewriteRequest(rawURL, browser.Credentials{})
	if err != nil {
		t.Fatalf("RewriteRequest: unexpected error: %v", err)
	}
	if !result.Rewritten {
		t.Fatal("expected rewrite, got passthrough")
	}
	if result.Method != "POST" {
		t.Errorf("Method = %q, want POST", result.Method)
	}
	if result.ContentType != "application/json" {
		t.Errorf("ContentType = %q, want application/json", result.ContentType)
	}

	raw, err := base64.StdEncoding.DecodeString(result.PostDataBase64)
	if err != nil {
		t.Fatalf("decode postData: %v", err)
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}

	if page, _ := body["page"].(float64); page != 2 {
		t.Errorf("page = %v, want 2", body["page"])
	}
	if start, _ := body["start"].(float64); start != 2000 {
		t.Errorf("start = %v, want 2000", body["start"])
	}
	if size, _ := body["size"].(float64); size != 1000 {
		t.Errorf("size = %v, want 1000", body["size"])
	}

	filter, ok := body["filter"].(map[string]any)
	if !ok {
		t.Fatalf("filter missing or wrong shape: %v", body["filter"])
	}
	year, _ := filter["YEAR"].([]any)
	if len(year) != 1 || year[0] != "lot_year:[2010 TO 2010]" {
		t.Errorf("YEAR filter = %v, want [lot_year:[2010 TO 2010]]", year)
	}
	sdat, _ := filter["SDAT"].([]any)
	want := `auction_date_utc:["2025-01-01T00:00:00Z" TO "2025-01-01T01:00:00Z"]`
	if len(sdat) != 1 || sdat[0] != want {
		t.Errorf("SDAT filter = %v, want [%s]", sdat, want)
	}
}

// TestRewriteRequestPassthrough covers the "anything else" row of §4.3's
// dispatch table.
func TestRewriteRequestPassthrough(t *testing.T) {
	result, err := browser.RewriteRequest("https://site/healthz", browser.Credentials{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Rewritten {
		t.Fatal("expected passthrough, got rewrite")
	}
}

// TestRewriteRequestMalformedFailsOpen covers §4.3's fail-open rule: a
// missing/invalid query parameter continues the request unchanged rather
// than erroring.
func TestRewriteRequestMalformedFailsOpen(t *testing.T) {
	result, err := browser.RewriteRequest("https://site/lots/x?pageNumber=not-a-number", browser.Credentials{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Rewritten {
		t.Fatal("expected fail-open passthrough, got rewrite")
	}
}

// TestRewriteRequestLogin covers the /processLogin branch.
func TestRewriteRequestLogin(t *testing.T) {
	creds := browser.Credentials{
		Username:      "bidder1",
		Password:      "hunter2",
		LocationBlock: map[string]any{"yardId": "TX01"},
	}
	result, err := browser.RewriteRequest("https://site/processLogin", creds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Rewritten || result.Method != "POST" {
		t.Fatalf("expected login rewrite to POST, got %+v", result)
	}

	raw, err := base64.StdEncoding.DecodeString(result.PostDataBase64)
	if err != nil {
		t.Fatalf("decode postData: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["username"] != "bidder1" || body["password"] != "hunter2" {
		t.Errorf("login body = %v", body)
	}
}

// TestDecodeSearchBodyRoundTrip covers invariant 7.
func TestDecodeSearchBodyRoundTrip(t *testing.T) {
	rawURL := "https://site/lots/x?pageNumber=5&dateStart=2025-02-01T00:00:00Z&dateEnd=2025-02-01T01:00:00Z&yearStart=2015&yearEnd=2020"
	result, err := browser.RewriteRequest(rawURL, browser.Credentials{})
	if err != nil || !result.Rewritten {
		t.Fatalf("RewriteRequest: %v, %+v", err, result)
	}

	page, yearStart, yearEnd, err := browser.DecodeSearchBody(result.PostDataBase64)
	if err != nil {
		t.Fatalf("DecodeSearchBody: %v", err)
	}
	if page != 5 || yearStart != 2015 || yearEnd != 2020 {
		t.Errorf("got page=%d yearStart=%d yearEnd=%d, want 5,2015,2020", page, yearStart, yearEnd)
	}
}
