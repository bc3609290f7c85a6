// Package fingerprint builds the Chrome launcher profile every browser
// worker uses to start its own instance of the DevTools-controlled browser.
//
// Advanced anti-bot systems correlate the TLS ClientHello, HTTP/2 SETTINGS
// frame, User-Agent header, and a long tail of `navigator`/`window` JS
// properties automation frameworks tend to leave inconsistent. Because
// every request here is driven through a real rendering engine rather than
// a spoofed HTTP client, the single signal that matters is the set of
// Chrome command-line flags passed at launch: they decide whether the page
// sees `navigator.webdriver`, a consistent WebGL renderer string, and a
// plausible window size. This package bundles that flag set into one
// Profile so every worker launches an identical, coherent browser.
package fingerprint

import (
	"fmt"

	"github.com/go-rod/rod/lib/launcher"
)

// Profile bundles the launch-time anti-detection flags and the viewport
// every worker applies to its own browser instance.
type Profile struct {
	// UserAgent overrides the default Chrome UA string the page reports.
	UserAgent string

	// ViewportWidth/ViewportHeight set the emulated window size.
	ViewportWidth  int
	ViewportHeight int
}

// ChromeProfile returns a Profile that mimics a recent desktop Chrome on
// Windows, consistent across TLS, UA, and rendering signals.
func ChromeProfile() *Profile {
	return &Profile{
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
			"AppleWebKit/537.36 (KHTML, like Gecko) " +
			"Chrome/124.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
	}
}

// NewLauncher builds a launcher.Launcher configured per this Profile. When
// proxyAddr is non-empty the browser is pointed at it for all outbound
// traffic (the local proxychain.Server address for proxied workers; empty
// for the spawn-on-demand auction worker, which must bypass the allow-list
// entirely).
func (p *Profile) NewLauncher(proxyAddr string) *launcher.Launcher {
	l := launcher.New().
		Headless(true).
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-infobars").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("window-size", dims(p.ViewportWidth, p.ViewportHeight)).
		Set("force-webrtc-ip-handling-policy", "disable_non_proxied_udp").
		Set("accept-lang", "en-US,en;q=0.9")

	if p.UserAgent != "" {
		l = l.Set("user-agent", p.UserAgent)
	}
	if proxyAddr != "" {
		l = l.Set("proxy-server", proxyAddr)
	}
	return l
}

func dims(w, h int) string {
	if w <= 0 {
		w = 1920
	}
	if h <= 0 {
		h = 1080
	}
	return fmt.Sprintf("%d,%d", w, h)
}
