// Package browser implements C3–C8 of the interception pipeline: rewriting
// outbound requests, extracting typed responses, decoding websocket frames,
// driving page navigation, and the worker/pool that own the underlying
// browser processes.
package browser

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Credentials are the site login credentials the request rewriter injects
// into a /processLogin body. Read from the environment by internal/appconfig
// — never logged, never round-tripped through the bus.
type Credentials struct {
	Username string
	Password string
	// LocationBlock is the static location payload the site's login API
	// expects alongside credentials (branch/yard identifiers), opaque to this
	// package.
	LocationBlock map[string]any
}

// searchFilter mirrors spec §6.2's nested "filter" object.
type searchFilter struct {
	SDAT []string `json:"SDAT"`
	YEAR []string `json:"YEAR"`
}

// searchRequestBody is the exact JSON shape spec §6.2 specifies for a
// rewritten /lots/ search request.
type searchRequestBody struct {
	Query              []string     `json:"query"`
	Filter             searchFilter `json:"filter"`
	Sort               []string     `json:"sort"`
	Page               int          `json:"page"`
	Size               int          `json:"size"`
	Start              int          `json:"start"`
	WatchListOnly      bool         `json:"watchListOnly"`
	FreeFormSearch     bool         `json:"freeFormSearch"`
	HideImages         bool         `json:"hideImages"`
	DefaultSort        bool         `json:"defaultSort"`
	SpecificRowProvide bool         `json:"specificRowProvided"`
	DisplayName        string       `json:"displayName"`
	SearchName         string       `json:"searchName"`
	BackURL            string       `json:"backUrl"`
	IncludeTagByField  map[string]any `json:"includeTagByField"`
	RawParams          map[string]any `json:"rawParams"`
}

const searchPageSize = 1000

// buildSearchBody constructs the §6.2 body for the given query parameters.
func buildSearchBody(pageNumber, yearStart, yearEnd int, dateStart, dateEnd time.Time) searchRequestBody {
	sdat := fmt.Sprintf("auction_date_utc:[\"%s\" TO \"%s\"]",
		dateStart.UTC().Format(time.RFC3339), dateEnd.UTC().Format(time.RFC3339))
	year := fmt.Sprintf("lot_year:[%d TO %d]", yearStart, yearEnd)

	return searchRequestBody{
		Query: []string{"*"},
		Filter: searchFilter{
			SDAT: []string{sdat},
			YEAR: []string{year},
		},
		Sort: []string{
			"salelight_priority asc",
			"member_damage_group_priority asc",
			"auction_date_type desc",
			"auction_date_utc asc",
		},
		Page:              pageNumber,
		Size:              searchPageSize,
		Start:             pageNumber * searchPageSize,
		WatchListOnly:     false,
		FreeFormSearch:    true,
		HideImages:        false,
		DefaultSort:       false,
		IncludeTagByField: map[string]any{},
		RawParams:         map[string]any{},
	}
}

// loginRequestBody is the body posted to /processLogin.
type loginRequestBody struct {
	Username string         `json:"username"`
	Password string         `json:"password"`
	Location map[string]any `json:"location"`
}

// RewriteResult describes how a Request-stage event should be applied to the
// outgoing HTTP request. Rewritten is false for "continue unchanged" — either
// the URL matched no rewrite pattern, or parsing failed and the spec's "fail
// open" rule applies.
type RewriteResult struct {
	Rewritten      bool
	Method         string
	ContentType    string
	PostDataBase64 string
}

// RewriteRequest implements C3 (spec §4.3): given the raw request URL, decide
// whether to rewrite it into a POST with a JSON body, per the two patterns
// below. A parsing failure is never an error the caller should propagate —
// per spec §4.3 "If any parsing step fails the request is continued
// unchanged" — so this always returns (RewriteResult{}, nil) on failure,
// never a non-nil error; the error return exists for symmetry with the rest
// of the package and is currently always nil.
func RewriteRequest(rawURL string, creds Credentials) (RewriteResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return RewriteResult{}, nil
	}

	switch {
	case strings.Contains(u.Path, "/lots/"):
		body, ok := rewriteLotSearch(u)
		if !ok {
			return RewriteResult{}, nil
		}
		return body, nil
	case strings.Contains(u.Path, "/processLogin"):
		return rewriteLogin(creds), nil
	default:
		return RewriteResult{}, nil
	}
}

func rewriteLotSearch(u *url.URL) (RewriteResult, bool) {
	q := u.Query()

	pageNumber, err := strconv.Atoi(q.Get("pageNumber"))
	if err != nil {
		return RewriteResult{}, false
	}
	yearStart, err := strconv.Atoi(q.Get("yearStart"))
	if err != nil {
		return RewriteResult{}, false
	}
	yearEnd, err := strconv.Atoi(q.Get("yearEnd"))
	if err != nil {
		return RewriteResult{}, false
	}
	dateStart, err := time.Parse(time.RFC3339, q.Get("dateStart"))
	if err != nil {
		return RewriteResult{}, false
	}
	dateEnd, err := time.Parse(time.RFC3339, q.Get("dateEnd"))
	if err != nil {
		return RewriteResult{}, false
	}

	body := buildSearchBody(pageNumber, yearStart, yearEnd, dateStart, dateEnd)
	raw, err := json.Marshal(body)
	if err != nil {
		return RewriteResult{}, false
	}

	return RewriteResult{
		Rewritten:      true,
		Method:         "POST",
		ContentType:    "application/json",
		PostDataBase64: base64.StdEncoding.EncodeToString(raw),
	}, true
}

func rewriteLogin(creds Credentials) RewriteResult {
	body := loginRequestBody{
		Username: creds.Username,
		Password: creds.Password,
		Location: creds.LocationBlock,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return RewriteResult{}
	}
	return RewriteResult{
		Rewritten:      true,
		Method:         "POST",
		ContentType:    "application/json",
		PostDataBase64: base64.StdEncoding.EncodeToString(raw),
	}
}

// DecodeSearchBody reverses buildSearchBody's JSON encoding, for invariant 7
// (round-trip: encode then decode a rewritten request body yields the
// original structured search object).
func DecodeSearchBody(postDataBase64 string) (pageNumber, yearStart, yearEnd int, err error) {
	raw, err := base64.StdEncoding.DecodeString(postDataBase64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("browser: decode search body: %w", err)
	}
	var body searchRequestBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return 0, 0, 0, fmt.Errorf("browser: unmarshal search body: %w", err)
	}
	var ys, ye int
	if _, err := fmt.Sscanf(body.Filter.YEAR[0], "lot_year:[%d TO %d]", &ys, &ye); err != nil {
		return 0, 0, 0, fmt.Errorf("browser: parse year filter: %w", err)
	}
	return body.Page, ys, ye, nil
}
