package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/wonderooo/cars/internal/domain"
)

// dispatchTarget is the subset of *Worker the pool's dispatch policies need.
// Abstracted out so the round-robin/broadcast/spawn-on-demand logic can be
// exercised in tests without launching a real browser.
type dispatchTarget interface {
	Commands() chan<- domain.Command
	Done() <-chan struct{}
}

// Pool implements C8 (spec §4.8): it holds a fixed array of per-worker
// command senders, fans worker responses into a single outbound channel,
// and applies the dispatch policy per inbound command kind.
//
// Dispatch state (the round-robin cursor and the worker array) is guarded by
// a sync.RWMutex, in the spirit of the teacher's session.SessionManager
// registry: broadcast and the shutdown snapshot take RLock; round-robin
// (which advances the cursor) and the spawn-on-demand append take a full
// Lock.
type Pool struct {
	mu      sync.RWMutex
	workers []dispatchTarget
	next    int // round-robin cursor

	// auctionWorkers holds spawn-on-demand workers (spec §4.8's Auction
	// policy). They are tracked here, never in workers, so they are awaited
	// on shutdown but can never receive round-robin or broadcast traffic.
	auctionWorkers []dispatchTarget

	proxyAddr string
	navCfg    NavigatorConfig
	log       zerolog.Logger

	in  chan domain.Command
	out chan domain.Response

	doneOnce sync.Once
	done     chan struct{}

	// spawn overrides spawnWorker in tests so the dispatch policies can be
	// exercised without launching a real browser. Defaults to p.spawnWorker.
	spawn func(ctx context.Context, proxyAddr string) (dispatchTarget, error)
}

// NewPool constructs a Pool with n pre-started proxied workers.
func NewPool(ctx context.Context, n int, proxyAddr string, navCfg NavigatorConfig, log zerolog.Logger) (*Pool, error) {
	p := &Pool{
		proxyAddr: proxyAddr,
		navCfg:    navCfg,
		log:       log.With().Str("component", "browser_pool").Logger(),
		in:        make(chan domain.Command, 256),
		out:       make(chan domain.Response, 256),
		done:      make(chan struct{}),
	}
	p.spawn = p.spawnWorker

	for i := 0; i < n; i++ {
		w, err := p.spawn(ctx, proxyAddr)
		if err != nil {
			return nil, fmt.Errorf("browser pool: spawn worker %d: %w", i, err)
		}
		p.workers = append(p.workers, w)
	}

	go p.runDispatcher(ctx)
	return p, nil
}

func (p *Pool) spawnWorker(ctx context.Context, proxyAddr string) (dispatchTarget, error) {
	w := NewWorker(WorkerConfig{ProxyAddr: proxyAddr, Nav: p.navCfg}, p.out, p.log)
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// Inbound returns the channel the bus bridge's inbound adapter sends
// commands to.
func (p *Pool) Inbound() chan<- domain.Command { return p.in }

// Outbound returns the pool's fan-in response channel, read by the bus
// bridge's outbound adapter.
func (p *Pool) Outbound() <-chan domain.Response { return p.out }

// Done returns a channel that closes once every worker has shut down.
func (p *Pool) Done() <-chan struct{} { return p.done }

func (p *Pool) runDispatcher(ctx context.Context) {
	defer p.awaitWorkersAndNotifyDone()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-p.in:
			if !ok {
				return
			}
			p.dispatch(ctx, cmd)
		}
	}
}

func (p *Pool) dispatch(ctx context.Context, cmd domain.Command) {
	switch cmd.Kind {
	case domain.CommandLotSearch, domain.CommandLotImages:
		p.dispatchRoundRobin(cmd)
	case domain.CommandLoginRefresh:
		p.dispatchBroadcast(cmd)
	case domain.CommandAuction:
		p.dispatchSpawnOnDemand(ctx, cmd)
	default:
		p.log.Warn().Str("kind", string(cmd.Kind)).Msg("unknown command kind dropped")
	}
}

// dispatchRoundRobin implements the pop-front/push-back policy of §4.8's
// table for LotSearch/LotImages commands, and invariant 3: the k-th such
// command goes to worker k mod N.
func (p *Pool) dispatchRoundRobin(cmd domain.Command) {
	p.mu.Lock()
	n := len(p.workers)
	if n == 0 {
		p.mu.Unlock()
		p.log.Error().Err(domain.ErrBrowserPoolEmpty).Msg("round-robin dispatch with no workers")
		return
	}
	w := p.workers[p.next%n]
	p.next = (p.next + 1) % n
	p.mu.Unlock()

	w.Commands() <- cmd
}

// dispatchBroadcast implements the LoginRefresh policy (invariant 4): a copy
// is delivered to every worker.
func (p *Pool) dispatchBroadcast(cmd domain.Command) {
	p.mu.RLock()
	workers := make([]dispatchTarget, len(p.workers))
	copy(workers, p.workers)
	p.mu.RUnlock()

	for _, w := range workers {
		w.Commands() <- cmd
	}
}

// dispatchSpawnOnDemand implements the Auction policy: launch a fresh,
// non-proxied worker (auction hosts differ from the allow-listed proxy
// target), forward the command once, and drop the sender. The original
// (browser/src/copart/pool.rs:135-140) never re-enters the round-robin set
// after spawning an auction browser, so this worker is tracked separately
// from p.workers: it is awaited on shutdown but is never eligible for
// dispatchRoundRobin or dispatchBroadcast.
func (p *Pool) dispatchSpawnOnDemand(ctx context.Context, cmd domain.Command) {
	w, err := p.spawn(ctx, "")
	if err != nil {
		p.log.Error().Err(err).Msg("spawn-on-demand auction worker failed")
		return
	}

	p.mu.Lock()
	p.auctionWorkers = append(p.auctionWorkers, w)
	p.mu.Unlock()

	w.Commands() <- cmd
}

func (p *Pool) awaitWorkersAndNotifyDone() {
	p.mu.RLock()
	workers := make([]dispatchTarget, len(p.workers))
	copy(workers, p.workers)
	auctionWorkers := make([]dispatchTarget, len(p.auctionWorkers))
	copy(auctionWorkers, p.auctionWorkers)
	p.mu.RUnlock()

	for _, w := range workers {
		<-w.Done()
	}
	for _, w := range auctionWorkers {
		<-w.Done()
	}
	p.doneOnce.Do(func() { close(p.done) })
}
