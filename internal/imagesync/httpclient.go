// Package imagesync implements C11 (spec §4.11): it consumes
// LotImagesResponse messages, downloads each image's three URL variants,
// uploads them to the object store, and emits a SyncedImagesResponse.
package imagesync

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// newDownloadClient builds the *http.Client the image downloader uses.
//
// Adapted from the teacher's client.NewHTTPClient: C11's downloader is
// exactly the "thousands of concurrent outbound HTTP requests from one
// process" shape that factory was built for, so the same transport-tuning
// idiom (pool sizing, idle-conn eviction, TLS handshake timeout) applies
// here — sized for the ~384 in-flight ceiling spec §4.11/§5 and invariant 10
// describe, rather than the teacher's per-session figures.
func newDownloadClient() (*http.Client, error) {
	transport := &http.Transport{
		DisableKeepAlives:     false,
		MaxIdleConns:          400,
		MaxIdleConnsPerHost:   100,
		MaxConnsPerHost:       200,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("imagesync: create cookie jar: %w", err)
	}

	return &http.Client{
		Transport: transport,
		Jar:       jar,
		Timeout:   30 * time.Second,
	}, nil
}
