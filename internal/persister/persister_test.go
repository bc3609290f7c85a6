package persister_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/wonderooo/cars/internal/domain"
	"github.com/wonderooo/cars/internal/persister"
)

// fakeStore models a lot_vehicle table in memory, replicating the
// ON CONFLICT DO NOTHING uniqueness policy so tests can exercise S5 and
// invariants 5/8 without a real Postgres instance.
type fakeStore struct {
	mu       sync.Mutex
	existing map[int32]bool
	images   map[int32][]domain.SyncedImage
}

func newFakeStore(seed ...int32) *fakeStore {
	existing := make(map[int32]bool, len(seed))
	for _, n := range seed {
		existing[n] = true
	}
	return &fakeStore{existing: existing, images: make(map[int32][]domain.SyncedImage)}
}

func (f *fakeStore) InsertNewLots(_ context.Context, vehicles []domain.LotVehicle) ([]int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var inserted []int32
	for _, v := range vehicles {
		if f.existing[v.LotNumber] {
			continue
		}
		f.existing[v.LotNumber] = true
		inserted = append(inserted, v.LotNumber)
	}
	return inserted, nil
}

func (f *fakeStore) InsertImages(_ context.Context, lotNumber int32, images []domain.SyncedImage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[lotNumber] = append(f.images[lotNumber], images...)
	return nil
}

func vehicle(lotNumber int32) domain.LotVehicle {
	return domain.LotVehicle{
		LotNumber:            lotNumber,
		Make:                 "Toyota",
		Model:                "Camry",
		Year:                 2018,
		VehicleType:          "Automobile",
		EstimatedRetailValue: decimal.NewFromInt(10000),
		EstimatedRepairCost:  decimal.NewFromInt(500),
	}
}

// TestPersistLotSearchDeduplicatesAndEmitsFollowUps covers S5: a batch
// {1001,1002,1003} against a store seeded with 1001 inserts 2 rows and
// emits LotImages follow-ups for {1002,1003} only.
func TestPersistLotSearchDeduplicatesAndEmitsFollowUps(t *testing.T) {
	store := newFakeStore(1001)
	sink := persister.NewSink(store, zerolog.Nop())

	in := make(chan domain.Response, 1)
	cmdOut := make(chan domain.Command, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sink.Run(ctx, in, cmdOut)

	in <- domain.Response{
		Kind: domain.ResponseLotSearch,
		LotSearch: &domain.LotSearchResponse{
			PageNumber: 1,
			Vehicles:   []domain.LotVehicle{vehicle(1001), vehicle(1002), vehicle(1003)},
		},
	}

	got := map[int32]bool{}
	for i := 0; i < 2; i++ {
		select {
		case cmd := <-cmdOut:
			if cmd.Kind != domain.CommandLotImages {
				t.Fatalf("cmd.Kind = %v, want CommandLotImages", cmd.Kind)
			}
			got[cmd.LotNumber] = true
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for follow-up command %d", i)
		}
	}
	if !got[1002] || !got[1003] || got[1001] {
		t.Errorf("follow-up lot numbers = %v, want exactly {1002,1003}", got)
	}

	select {
	case cmd := <-cmdOut:
		t.Fatalf("unexpected extra follow-up command: %+v", cmd)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestPersistLotSearchReplayIsIdempotent covers invariant 8: replaying the
// same LotSearchResponse twice inserts new rows only on the first replay.
func TestPersistLotSearchReplayIsIdempotent(t *testing.T) {
	store := newFakeStore()
	sink := persister.NewSink(store, zerolog.Nop())

	in := make(chan domain.Response, 2)
	cmdOut := make(chan domain.Command, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sink.Run(ctx, in, cmdOut)

	resp := domain.Response{
		Kind: domain.ResponseLotSearch,
		LotSearch: &domain.LotSearchResponse{
			PageNumber: 1,
			Vehicles:   []domain.LotVehicle{vehicle(2001)},
		},
	}
	in <- resp

	select {
	case cmd := <-cmdOut:
		if cmd.LotNumber != 2001 {
			t.Fatalf("cmd.LotNumber = %d, want 2001", cmd.LotNumber)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for first-replay follow-up")
	}

	in <- resp

	select {
	case cmd := <-cmdOut:
		t.Fatalf("second replay emitted an unexpected follow-up: %+v", cmd)
	case <-time.After(100 * time.Millisecond):
	}
}

// TestPersistSyncedImagesInsertsWithoutFollowUp covers the SyncedImages
// path of spec §4.12: image rows are inserted, no command is emitted.
func TestPersistSyncedImagesInsertsWithoutFollowUp(t *testing.T) {
	store := newFakeStore(3001)
	sink := persister.NewSink(store, zerolog.Nop())

	in := make(chan domain.Response, 1)
	cmdOut := make(chan domain.Command, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sink.Run(ctx, in, cmdOut)

	in <- domain.Response{
		Kind: domain.ResponseSyncedImages,
		SyncedImages: &domain.SyncedImagesResponse{
			LotNumber: 3001,
			Images: []domain.SyncedImage{{
				SequenceNumber: 1,
				Standard:       &domain.SyncedImageSlot{ObjectKey: "3001_1_standard"},
			}},
		},
	}

	select {
	case cmd := <-cmdOut:
		t.Fatalf("unexpected follow-up command from SyncedImages: %+v", cmd)
	case <-time.After(150 * time.Millisecond):
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.images[3001]) != 1 {
		t.Errorf("stored images for lot 3001 = %d, want 1", len(store.images[3001]))
	}
}
