package browser

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonderooo/cars/internal/domain"
)

// navigatorCommandCapacity is the Navigator's command channel buffer, per
// spec §4.6.
const navigatorCommandCapacity = 32

// pageDriver is the subset of *rod.Page's navigation surface the Navigator
// needs. Abstracted out so the dispatch logic in Run can be exercised
// without a real browser; Worker wires a *rod.Page-backed implementation.
type pageDriver interface {
	Navigate(rawURL string) error
	WaitLoad() error
}

// Navigator is the single-threaded driver for one browser page (C6, spec
// §4.6). It owns strict command sequencing: one command is fully applied
// (navigate, then await) before the next is read off Commands.
type Navigator struct {
	Commands chan domain.Command

	driver    pageDriver
	siteRoot  string
	searchURL string
	imagesURL string
	auctionURL string
	creds     Credentials
	log       zerolog.Logger
	sleep     func(time.Duration)
}

// NavigatorConfig carries the URL templates and credentials a Navigator
// needs to compose each command's destination URL.
type NavigatorConfig struct {
	SiteRoot   string
	SearchURL  string
	ImagesURL  string
	AuctionURL string
	Creds      Credentials
}

func newNavigator(driver pageDriver, cfg NavigatorConfig, log zerolog.Logger) *Navigator {
	return &Navigator{
		Commands:   make(chan domain.Command, navigatorCommandCapacity),
		driver:     driver,
		siteRoot:   cfg.SiteRoot,
		searchURL:  cfg.SearchURL,
		imagesURL:  cfg.ImagesURL,
		auctionURL: cfg.AuctionURL,
		creds:      cfg.Creds,
		log:        log.With().Str("component", "navigator").Logger(),
		sleep:      time.Sleep,
	}
}

// Run is the commands task (spec §4.7 item 2): it always performs a
// LoginRefresh first — no command is processed before the session is primed
// — then drains Commands until ctx is cancelled.
func (n *Navigator) Run(ctx context.Context) {
	if err := n.loginRefresh(); err != nil {
		n.log.Error().Err(err).Msg("initial login refresh failed")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-n.Commands:
			if !ok {
				return
			}
			n.dispatch(cmd)
		}
	}
}

func (n *Navigator) dispatch(cmd domain.Command) {
	var err error
	switch cmd.Kind {
	case domain.CommandLoginRefresh:
		err = n.loginRefresh()
	case domain.CommandLotSearch:
		err = n.lotSearch(cmd)
	case domain.CommandLotImages:
		err = n.lotImages(cmd.LotNumber)
	case domain.CommandAuction:
		err = n.auction(cmd.AuctionID)
	default:
		err = fmt.Errorf("navigator: unknown command kind %q", cmd.Kind)
	}
	if err != nil {
		n.log.Error().Err(err).Str("kind", string(cmd.Kind)).Msg("command navigation failed")
	}
}

func (n *Navigator) loginRefresh() error {
	if err := n.driver.Navigate(n.siteRoot); err != nil {
		return fmt.Errorf("navigator: navigate site root: %w", err)
	}
	// Required for the site's bootstrap JS to initialize before the login
	// POST is meaningful.
	n.sleep(3 * time.Second)
	if err := n.driver.Navigate(n.siteRoot + "/processLogin"); err != nil {
		return fmt.Errorf("navigator: navigate processLogin: %w", err)
	}
	return n.driver.WaitLoad()
}

func (n *Navigator) lotSearch(cmd domain.Command) error {
	q := url.Values{}
	q.Set("pageNumber", strconv.Itoa(cmd.PageNumber))
	q.Set("dateStart", cmd.DateStart.UTC().Format(time.RFC3339))
	q.Set("dateEnd", cmd.DateEnd.UTC().Format(time.RFC3339))
	q.Set("yearStart", strconv.Itoa(cmd.YearStart))
	q.Set("yearEnd", strconv.Itoa(cmd.YearEnd))

	dest := n.searchURL + "?" + q.Encode()
	if err := n.driver.Navigate(dest); err != nil {
		return fmt.Errorf("navigator: navigate lot search: %w", err)
	}
	return n.driver.WaitLoad()
}

func (n *Navigator) lotImages(lotNumber int32) error {
	q := url.Values{}
	q.Set("lotNumber", strconv.Itoa(int(lotNumber)))
	dest := n.imagesURL + "?" + q.Encode()
	if err := n.driver.Navigate(dest); err != nil {
		return fmt.Errorf("navigator: navigate lot images: %w", err)
	}
	return n.driver.WaitLoad()
}

func (n *Navigator) auction(auctionID string) error {
	q := url.Values{}
	q.Set("auctionId", auctionID)
	dest := n.auctionURL + "?" + q.Encode()
	if err := n.driver.Navigate(dest); err != nil {
		return fmt.Errorf("navigator: navigate auction: %w", err)
	}
	return n.driver.WaitLoad()
}
