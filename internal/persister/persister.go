// Package persister implements C12: it drains LotSearchResponse and
// SyncedImagesResponse messages off the bus and writes them to Postgres,
// emitting a LotImages follow-up command for every newly inserted lot.
package persister

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/wonderooo/cars/internal/domain"
)

// sinkPermits bounds concurrent inbound-message handlers at 32, per spec
// §4.12: "each inbound message is handled on its own task under a 32-permit
// semaphore."
const sinkPermits = 32

// Store is the persistence surface the Sink needs (PGStore implements it
// over a pgxpool.Pool), abstracted out so the Sink's dispatch and follow-up
// logic can be exercised against a fake in tests without a real Postgres
// instance.
type Store interface {
	InsertNewLots(ctx context.Context, vehicles []domain.LotVehicle) (inserted []int32, err error)
	InsertImages(ctx context.Context, lotNumber int32, images []domain.SyncedImage) error
}

// Sink is the DB persister: it owns a Store and the bus channels it drains
// from / emits commands to.
type Sink struct {
	store Store
	log   zerolog.Logger
	sem   *semaphore.Weighted
}

// NewSink constructs a Sink backed by store.
func NewSink(store Store, log zerolog.Logger) *Sink {
	return &Sink{
		store: store,
		log:   log.With().Str("component", "persister_sink").Logger(),
		sem:   semaphore.NewWeighted(sinkPermits),
	}
}

// Run drains in until ctx is cancelled or in is closed. Each message is
// handled on its own goroutine gated by the 32-permit semaphore; LotSearch
// responses that insert new rows emit a LotImages command per newly
// inserted lot onto cmdOut.
func (s *Sink) Run(ctx context.Context, in <-chan domain.Response, cmdOut chan<- domain.Command) {
	for {
		select {
		case <-ctx.Done():
			return
		case resp, ok := <-in:
			if !ok {
				return
			}
			if resp.Kind != domain.ResponseLotSearch && resp.Kind != domain.ResponseSyncedImages {
				continue
			}

			if err := s.sem.Acquire(ctx, 1); err != nil {
				return
			}
			resp := resp
			go func() {
				defer s.sem.Release(1)
				s.handle(ctx, resp, cmdOut)
			}()
		}
	}
}

func (s *Sink) handle(ctx context.Context, resp domain.Response, cmdOut chan<- domain.Command) {
	switch resp.Kind {
	case domain.ResponseLotSearch:
		s.persistLotSearch(ctx, *resp.LotSearch, cmdOut)
	case domain.ResponseSyncedImages:
		s.persistSyncedImages(ctx, *resp.SyncedImages)
	}
}

// persistLotSearch implements spec §4.12's LotSearchResponse path: load the
// existing lot_numbers among the batch, insert the non-existing rows with
// ON CONFLICT DO NOTHING, and emit a LotImages command per newly inserted
// lot (invariant 8: replaying the same response twice inserts new rows only
// on the first replay, so the second replay emits zero follow-ups).
func (s *Sink) persistLotSearch(ctx context.Context, resp domain.LotSearchResponse, cmdOut chan<- domain.Command) {
	inserted, err := s.store.InsertNewLots(ctx, resp.Vehicles)
	if err != nil {
		s.log.Error().Err(err).Int("page_number", resp.PageNumber).Msg("persist lot search batch failed")
		return
	}

	for _, lotNumber := range inserted {
		cmd := domain.NewLotImages(lotNumber)
		select {
		case cmdOut <- cmd:
		case <-ctx.Done():
			return
		}
	}
}

// persistSyncedImages implements spec §4.12's SyncedImagesResponse path:
// insert the image rows linked to lot_vehicle_number = lot_number. No
// follow-up command.
func (s *Sink) persistSyncedImages(ctx context.Context, resp domain.SyncedImagesResponse) {
	if err := s.store.InsertImages(ctx, resp.LotNumber, resp.Images); err != nil {
		s.log.Error().Err(err).Int32("lot_number", resp.LotNumber).Msg("persist synced images failed")
	}
}

// PGStore is the pgxpool-backed Store implementation.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PGStore from a DSN, per appconfig.DatabaseConfig.DSN.
func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("persister: new pool: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (p *PGStore) Close() {
	p.pool.Close()
}

// InsertNewLots implements spec §4.12 steps 1-2 inside a single transaction:
// load existing lot_numbers among the batch, then insert the rest with
// ON CONFLICT DO NOTHING. Returns the lot numbers that were newly inserted.
func (p *PGStore) InsertNewLots(ctx context.Context, vehicles []domain.LotVehicle) ([]int32, error) {
	if len(vehicles) == 0 {
		return nil, nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("persister: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	lotNumbers := make([]int32, len(vehicles))
	for i, v := range vehicles {
		lotNumbers[i] = v.LotNumber
	}

	existing := make(map[int32]bool, len(lotNumbers))
	rows, err := tx.Query(ctx, `SELECT lot_number FROM lot_vehicle WHERE lot_number = ANY($1)`, lotNumbers)
	if err != nil {
		return nil, fmt.Errorf("persister: query existing lot numbers: %w", err)
	}
	for rows.Next() {
		var n int32
		if err := rows.Scan(&n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("persister: scan existing lot number: %w", err)
		}
		existing[n] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("persister: iterate existing lot numbers: %w", err)
	}

	var inserted []int32
	for _, v := range vehicles {
		if existing[v.LotNumber] {
			continue
		}

		tag, err := tx.Exec(ctx, insertLotVehicleSQL,
			v.LotNumber, v.Make, v.Model, v.Year, v.VehicleType, v.VIN,
			v.EstimatedRetailValue, v.EstimatedRepairCost, v.Odometer, v.OdometerStatus,
			v.EngineName, v.EngineCylinders, v.Currency, v.SaleDate, v.MainDamage,
			v.OtherDamage, v.Country, v.State, v.Transmission, v.Color,
			v.Description, v.AuctionHouse,
		)
		if err != nil {
			return nil, fmt.Errorf("persister: insert lot %d: %w", v.LotNumber, err)
		}
		if tag.RowsAffected() > 0 {
			inserted = append(inserted, v.LotNumber)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("persister: commit tx: %w", err)
	}
	return inserted, nil
}

// InsertImages inserts the image rows for lotNumber, linked via
// lot_vehicle_number.
func (p *PGStore) InsertImages(ctx context.Context, lotNumber int32, images []domain.SyncedImage) error {
	if len(images) == 0 {
		return nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("persister: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, img := range images {
		for variant, slot := range map[string]*domain.SyncedImageSlot{
			"standard": img.Standard, "thumbnail": img.Thumbnail, "high_res": img.HighRes,
		} {
			if slot == nil {
				continue
			}
			if _, err := tx.Exec(ctx, insertLotImageSQL,
				lotNumber, img.SequenceNumber, img.ImageType, variant,
				slot.ObjectKey, slot.SourceURL, slot.MimeType, slot.ContentLength,
			); err != nil {
				return fmt.Errorf("persister: insert image for lot %d: %w", lotNumber, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("persister: commit tx: %w", err)
	}
	return nil
}

const insertLotVehicleSQL = `
INSERT INTO lot_vehicle (
	lot_number, make, model, year, vehicle_type, vin,
	estimated_retail_value, estimated_repair_cost, odometer, odometer_status,
	engine_name, engine_cylinders, currency, sale_date, main_damage,
	other_damage, country, state, transmission, color,
	description, auction_house
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22
)
ON CONFLICT (lot_number) DO NOTHING`

const insertLotImageSQL = `
INSERT INTO lot_image (
	lot_vehicle_number, sequence_number, image_type, variant,
	object_key, source_url, mime_type, content_length
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (lot_vehicle_number, sequence_number, variant) DO NOTHING`
