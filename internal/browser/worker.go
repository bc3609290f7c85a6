package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog"

	"github.com/wonderooo/cars/internal/domain"
	"github.com/wonderooo/cars/internal/fingerprint"
)

// interceptionPatterns enables the browser-level request/response
// interception patterns per spec §6.3: document requests under /lots/ are
// intercepted at both stages, /solr/ and /solr/lotImages/ responses, and
// /processLogin requests.
var interceptionPatterns = []*proto.FetchRequestPattern{
	{URLPattern: "*/lots/*", ResourceType: proto.NetworkResourceTypeDocument, RequestStage: proto.FetchRequestStageRequest},
	{URLPattern: "*/lots/*", ResourceType: proto.NetworkResourceTypeDocument, RequestStage: proto.FetchRequestStageResponse},
	{URLPattern: "*/solr/*", ResourceType: proto.NetworkResourceTypeDocument, RequestStage: proto.FetchRequestStageResponse},
	{URLPattern: "*/solr/lotImages/*", ResourceType: proto.NetworkResourceTypeDocument, RequestStage: proto.FetchRequestStageResponse},
	{URLPattern: "*/processLogin", ResourceType: proto.NetworkResourceTypeDocument, RequestStage: proto.FetchRequestStageRequest},
}

// WorkerConfig carries everything a single worker needs to launch its own
// browser process and navigate it.
type WorkerConfig struct {
	// ProxyAddr is the local proxychain.Server address this worker's browser
	// should be launched against. Empty for the auction spawn-on-demand
	// worker, which must bypass the allow-listed proxy entirely (spec §4.8).
	ProxyAddr string
	Nav       NavigatorConfig
	Profile   *fingerprint.Profile
}

// Worker owns one browser process, one page, and the four cooperating
// long-lived tasks spec §4.7 describes: engine, commands (Navigator),
// HTTP, and WS.
type Worker struct {
	cfg WorkerConfig
	log zerolog.Logger

	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page
	router   *rod.HijackRouter

	nav *Navigator

	out   chan<- domain.Response
	drift *SchemaDrift

	done chan struct{}
}

// NewWorker constructs a Worker. It does not launch the browser; call
// Start for that.
func NewWorker(cfg WorkerConfig, out chan<- domain.Response, log zerolog.Logger) *Worker {
	return &Worker{
		cfg:   cfg,
		out:   out,
		drift: NewSchemaDrift(),
		log:   log.With().Str("component", "browser_worker").Logger(),
		done:  make(chan struct{}),
	}
}

// Start implements spec §4.7's strict startup order: engine first, then page
// creation, then enabling the interception patterns, then the remaining
// tasks.
func (w *Worker) Start(ctx context.Context) error {
	profile := w.cfg.Profile
	if profile == nil {
		profile = fingerprint.ChromeProfile()
	}
	w.launcher = profile.NewLauncher(w.cfg.ProxyAddr)

	controlURL, err := w.launcher.Launch()
	if err != nil {
		return fmt.Errorf("browser worker: launch: %w", err)
	}
	w.browser = rod.New().ControlURL(controlURL)
	if err := w.browser.Connect(); err != nil {
		return fmt.Errorf("browser worker: connect: %w", err)
	}

	// engine task: logs driver-level crash events for the lifetime of the
	// browser; it exits on its own when the browser connection closes.
	go w.runEngineTask()

	// stealth.Page patches the page's navigator/window properties that
	// distinguish a CDP-controlled Chrome from a human-driven one, on top
	// of the launch-time flags fingerprint.Profile already sets.
	page, err := stealth.Page(w.browser)
	if err != nil {
		return fmt.Errorf("browser worker: create stealth page: %w", err)
	}
	w.page = page

	if err := proto.FetchEnable{Patterns: interceptionPatterns}.Call(page); err != nil {
		return fmt.Errorf("browser worker: enable interception: %w", err)
	}

	w.nav = newNavigator(&rodPageDriver{page: page}, w.cfg.Nav, w.log)

	w.router = page.HijackRequests()
	w.router.MustAdd("*", w.handleHijack)
	go w.router.Run()

	go w.nav.Run(ctx)
	go w.runWSTask(ctx)

	go func() {
		<-ctx.Done()
		w.shutdown()
	}()

	return nil
}

// Commands returns the channel the pool dispatcher sends navigation
// commands to.
func (w *Worker) Commands() chan<- domain.Command { return w.nav.Commands }

// Done returns a channel that closes once the worker has fully shut down.
func (w *Worker) Done() <-chan struct{} { return w.done }

func (w *Worker) shutdown() {
	if w.router != nil {
		_ = w.router.Stop()
	}
	if w.browser != nil {
		if err := w.browser.Close(); err != nil {
			w.log.Warn().Err(err).Msg("browser close failed")
		}
	}
	close(w.done)
}

func (w *Worker) runEngineTask() {
	wait := w.browser.EachEvent(func(e *proto.InspectorTargetCrashed) {
		w.log.Error().Msg("browser target crashed")
	})
	wait()
}

func (w *Worker) runWSTask(ctx context.Context) {
	wait := w.page.EachEvent(func(e *proto.NetworkWebSocketFrameReceived) {
		opcode := int(e.Response.Opcode)
		lot, ok, err := HandleWebSocketFrame(opcode, []byte(e.Response.PayloadData))
		if err != nil {
			w.log.Warn().Err(err).Msg("websocket frame decode failed")
			return
		}
		if !ok {
			return
		}
		// The original (browser/src/copart/browser/handlers/ws.rs:86-97)
		// only logs sold-lot notifications; there is no typed Response
		// variant for them, so nothing is emitted onto the outbound channel.
		w.log.Info().
			Int32("lot_number", lot.LotNumber).
			Str("sold_price", lot.SoldPrice).
			Time("sold_at", lot.SoldAt).
			Bool("via_smf", lot.ViaSMF).
			Msg("lot sold")
	})
	done := make(chan struct{})
	go func() { wait(); close(done) }()
	select {
	case <-ctx.Done():
	case <-done:
	}
}

func (w *Worker) handleHijack(ctx *rod.Hijack) {
	reqURL := ctx.Request.URL().String()

	rewrite, _ := RewriteRequest(reqURL, w.cfg.Nav.Creds)
	if rewrite.Rewritten {
		ctx.Request.Req().Method = rewrite.Method
		ctx.Request.Req().Header.Set("Content-Type", rewrite.ContentType)
		raw, err := base64.StdEncoding.DecodeString(rewrite.PostDataBase64)
		if err == nil {
			ctx.Request.SetBody(raw)
		}
	}

	if err := ctx.LoadResponse(http.DefaultClient, true); err != nil {
		w.log.Warn().Err(err).Str("url", reqURL).Msg("load response failed")
		return
	}

	hasCookie := ctx.Request.Req().Header.Get("Cookie") != ""
	body := ctx.Response.Body()
	resp, emit := ExtractResponse(reqURL, hasCookie, []byte(body), w.drift)
	if emit {
		w.emit(resp)
	}
}

func (w *Worker) emit(resp domain.Response) {
	select {
	case w.out <- resp:
	default:
		w.log.Warn().Msg("outbound response channel full, dropping response")
	}
}

// rodPageDriver adapts *rod.Page to the pageDriver interface Navigator uses.
type rodPageDriver struct {
	page *rod.Page
	mu   sync.Mutex
}

func (d *rodPageDriver) Navigate(rawURL string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.page.Navigate(rawURL)
}

func (d *rodPageDriver) WaitLoad() error {
	return d.page.WaitLoad()
}
