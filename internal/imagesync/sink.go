package imagesync

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/wonderooo/cars/internal/domain"
)

const (
	// sinkJobPermits bounds concurrent LotImagesResponse jobs at 32, per
	// spec §4.11/invariant 10.
	sinkJobPermits = 32
	// imageBufferWidth is the per-job "outer unordered buffer of width 4"
	// that bounds how many of a lot's images are processed concurrently.
	imageBufferWidth = 4
	// downloadPermitsPerJob is the per-job "inner semaphore (32 permits)"
	// bounding concurrent URL downloads within one job.
	downloadPermitsPerJob = 32
	// uploadPermits is the sink-wide semaphore uploads share, per §4.11.
	uploadPermits = 32
)

// uploader is the subset of *ObjectStore the sink needs, abstracted out so
// the concurrency/retry logic can be exercised without a real S3 endpoint.
type uploader interface {
	Upload(ctx context.Context, key, mimeType string, data []byte) error
}

// Sink implements C11: it drains LotImagesResponse messages, downloads and
// uploads their images, and emits SyncedImagesResponse.
type Sink struct {
	httpClient *http.Client
	store      uploader
	log        zerolog.Logger

	jobSem    *semaphore.Weighted
	uploadSem *semaphore.Weighted
}

// NewSink constructs a Sink backed by store.
func NewSink(store *ObjectStore, log zerolog.Logger) (*Sink, error) {
	client, err := newDownloadClient()
	if err != nil {
		return nil, err
	}
	return &Sink{
		httpClient: client,
		store:      store,
		log:        log.With().Str("component", "imagesync_sink").Logger(),
		jobSem:     semaphore.NewWeighted(sinkJobPermits),
		uploadSem:  semaphore.NewWeighted(uploadPermits),
	}, nil
}

// Run drains in for LotImagesResponse messages (anything else is ignored —
// the bus topic this sink subscribes to should only ever carry that kind)
// until ctx is cancelled or in is closed, emitting a SyncedImagesResponse
// per job to out.
func (s *Sink) Run(ctx context.Context, in <-chan domain.Response, out chan<- domain.Response) {
	var wg errgroup.Group
	defer wg.Wait() //nolint:errcheck

	for {
		select {
		case <-ctx.Done():
			return
		case resp, ok := <-in:
			if !ok {
				return
			}
			if resp.Kind != domain.ResponseLotImages || resp.LotImages == nil {
				continue
			}

			if err := s.jobSem.Acquire(ctx, 1); err != nil {
				return
			}
			job := *resp.LotImages
			wg.Go(func() error {
				defer s.jobSem.Release(1)
				synced := s.processJob(ctx, job)
				select {
				case out <- synced:
				case <-ctx.Done():
				}
				return nil
			})
		}
	}
}

func (s *Sink) processJob(ctx context.Context, job domain.LotImagesResponse) domain.Response {
	results := make([]domain.SyncedImage, len(job.Images))

	var g errgroup.Group
	imgSem := semaphore.NewWeighted(imageBufferWidth)
	dlSem := semaphore.NewWeighted(downloadPermitsPerJob)

	for i, img := range job.Images {
		i, img := i, img
		if err := imgSem.Acquire(ctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer imgSem.Release(1)
			results[i] = s.syncImage(ctx, job.LotNumber, img, dlSem)
			return nil
		})
	}
	_ = g.Wait()

	return domain.Response{
		Kind: domain.ResponseSyncedImages,
		SyncedImages: &domain.SyncedImagesResponse{
			LotNumber: job.LotNumber,
			Images:    results,
		},
	}
}

func (s *Sink) syncImage(ctx context.Context, lotNumber int32, img domain.LotImage, dlSem *semaphore.Weighted) domain.SyncedImage {
	var g errgroup.Group
	var standard, thumbnail, highRes *domain.SyncedImageSlot

	g.Go(func() error {
		standard = s.syncSlot(ctx, lotNumber, img.SequenceNumber, "standard", img.StandardURL, dlSem)
		return nil
	})
	g.Go(func() error {
		thumbnail = s.syncSlot(ctx, lotNumber, img.SequenceNumber, "thumbnail", img.ThumbnailURL, dlSem)
		return nil
	})
	g.Go(func() error {
		highRes = s.syncSlot(ctx, lotNumber, img.SequenceNumber, "high-res", img.HighResURL, dlSem)
		return nil
	})
	_ = g.Wait()

	return domain.SyncedImage{
		SequenceNumber: img.SequenceNumber,
		ImageType:      img.ImageType,
		Standard:       standard,
		Thumbnail:      thumbnail,
		HighRes:        highRes,
	}
}

// syncSlot downloads and uploads one of an image's three URL variants. A
// nil sourceURL, or a persistent download/upload failure, leaves the slot
// nil (spec §7: "a persistent failure leaves that slot None").
func (s *Sink) syncSlot(ctx context.Context, lotNumber int32, sequenceNumber int, variant string, sourceURL *string, dlSem *semaphore.Weighted) *domain.SyncedImageSlot {
	if sourceURL == nil || *sourceURL == "" {
		return nil
	}

	if err := dlSem.Acquire(ctx, 1); err != nil {
		return nil
	}
	var data []byte
	err := withRetry(ctx, func() error {
		b, dlErr := s.download(ctx, *sourceURL)
		if dlErr != nil {
			return dlErr
		}
		data = b
		return nil
	})
	dlSem.Release(1)
	if err != nil {
		s.log.Warn().Err(err).Str("url", *sourceURL).Msg("image download failed, leaving slot empty")
		return nil
	}

	mimeType := guessMimeType(*sourceURL)
	key := fmt.Sprintf("%d_%d_%s", lotNumber, sequenceNumber, variant)

	if err := s.uploadSem.Acquire(ctx, 1); err != nil {
		return nil
	}
	err = withRetry(ctx, func() error {
		return s.store.Upload(ctx, key, mimeType, data)
	})
	s.uploadSem.Release(1)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("image upload failed, leaving slot empty")
		return nil
	}

	return &domain.SyncedImageSlot{
		ObjectKey:     key,
		SourceURL:     *sourceURL,
		MimeType:      mimeType,
		ContentLength: int64(len(data)),
	}
}

func (s *Sink) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("imagesync: build download request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("imagesync: download request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("imagesync: download returned HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
