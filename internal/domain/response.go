package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ResponseKind discriminates the Response variants emitted by the core.
type ResponseKind string

const (
	ResponseLotSearch    ResponseKind = "lot_search_response"
	ResponseLotImages    ResponseKind = "lot_images_response"
	ResponseSyncedImages ResponseKind = "synced_images_response"
	ResponseFailure      ResponseKind = "failure"
)

// Response is a typed record produced by the core, or a terminal failure.
type Response struct {
	Kind ResponseKind `json:"kind"`

	// CorrelationID is the opaque id attached to the originating intercepted
	// exchange, when one exists. Used as the bus message key when present.
	CorrelationID string `json:"correlation_id,omitempty"`

	LotSearch    *LotSearchResponse    `json:"lot_search,omitempty"`
	LotImages    *LotImagesResponse    `json:"lot_images,omitempty"`
	SyncedImages *SyncedImagesResponse `json:"synced_images,omitempty"`
	Failure      *Failure              `json:"failure,omitempty"`
}

// Topic returns the bus topic a Response of this Kind is produced to, per
// spec §6.1. A Failure does not record which variant it stands in for, so
// Topic returns "" for it and the bus bridge's OutboundAdapter drops it
// instead of publishing it.
func (r Response) Topic() string {
	switch r.Kind {
	case ResponseLotSearch:
		return TopicRespLotSearch
	case ResponseLotImages:
		return TopicRespLotImages
	case ResponseSyncedImages:
		return TopicRespSyncedImages
	default:
		return ""
	}
}

// Failure is a terminal failure response: the underlying browser request was
// always continued, but no typed record could be produced.
type Failure struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func NewFailure(kind ErrorKind, message string) Response {
	return Response{Kind: ResponseFailure, Failure: &Failure{Kind: kind, Message: message}}
}

// LotSearchResponse carries one page of search results.
type LotSearchResponse struct {
	PageNumber int          `json:"page_number"`
	Vehicles   []LotVehicle `json:"vehicles"`
}

// LotVehicle is one auction lot. See spec §3 for the field-level invariants:
// lot_number uniquely identifies the vehicle and never changes after ingest;
// numeric fields are non-negative.
type LotVehicle struct {
	LotNumber            int32           `json:"lot_number"`
	Make                 string          `json:"make"`
	Model                string          `json:"model"`
	Year                 int             `json:"year"`
	VehicleType          string          `json:"vehicle_type"`
	VIN                  *string         `json:"vin,omitempty"`
	EstimatedRetailValue decimal.Decimal `json:"estimated_retail_value"`
	EstimatedRepairCost  decimal.Decimal `json:"estimated_repair_cost"`
	Odometer             int64           `json:"odometer"`
	OdometerStatus       string          `json:"odometer_status"`
	EngineName           string          `json:"engine_name"`
	EngineCylinders      int             `json:"engine_cylinders"`
	Currency             string          `json:"currency"`
	SaleDate             *time.Time      `json:"sale_date,omitempty"`
	MainDamage           string          `json:"main_damage"`
	OtherDamage          string          `json:"other_damage"`
	Country              string          `json:"country"`
	State                string          `json:"state"`
	Transmission         string          `json:"transmission"`
	Color                string          `json:"color"`
	FuelType             string          `json:"fuel_type"`
	DriveType            string          `json:"drive_type"`
	KeysStatus           string          `json:"keys_status"`

	// Supplemented from original_source/ (persister/src/orm/models.rs):
	// present in the upstream search response but dropped from spec.md's
	// 22-field enumeration. Optional, provider-agnostic.
	Description  *string `json:"description,omitempty"`
	AuctionHouse string  `json:"auction_house,omitempty"`
}

// Valid reports whether v satisfies the non-negativity invariants spec §3
// requires of numeric fields.
func (v LotVehicle) Valid() bool {
	if v.EstimatedRetailValue.IsNegative() || v.EstimatedRepairCost.IsNegative() {
		return false
	}
	if v.Odometer < 0 || v.Year < 0 || v.EngineCylinders < 0 {
		return false
	}
	return true
}

// LotImagesResponse carries the ordered images for one lot.
type LotImagesResponse struct {
	LotNumber int32      `json:"lot_number"`
	Images    []LotImage `json:"images"`
}

// LotImage is one presentation slot within a lot's image sequence. Each of
// the three URL triples is either fully nullable together or the URL is set.
type LotImage struct {
	SequenceNumber int     `json:"sequence_number"`
	ImageType      string  `json:"image_type"`
	StandardURL    *string `json:"standard_url,omitempty"`
	ThumbnailURL   *string `json:"thumbnail_url,omitempty"`
	HighResURL     *string `json:"high_res_url,omitempty"`

	// Supplemented from original_source/ (persister/src/orm/models.rs
	// NewLotImage.lot_vehicle_number): denormalized parent lot number so a
	// flattened slice of images can be persisted without re-threading it.
	LotNumber int32 `json:"lot_number,omitempty"`
}

// SyncedImagesResponse carries the object-store-backed images for one lot,
// produced by the image sync sink after downloading LotImage's source URLs.
type SyncedImagesResponse struct {
	LotNumber int32         `json:"lot_number"`
	Images    []SyncedImage `json:"images"`
}

// SyncedImage is one image that has been downloaded and uploaded to the
// object store under the key scheme in spec §6.5. Each of the three variant
// slots is nil when the corresponding source URL was absent or its download
// failed every retry (spec §7: a persistent failure leaves that slot None).
type SyncedImage struct {
	SequenceNumber int              `json:"sequence_number"`
	ImageType      string           `json:"image_type"`
	Standard       *SyncedImageSlot `json:"standard,omitempty"`
	Thumbnail      *SyncedImageSlot `json:"thumbnail,omitempty"`
	HighRes        *SyncedImageSlot `json:"high_res,omitempty"`
}

// SyncedImageSlot is one downloaded-and-uploaded variant of an image.
type SyncedImageSlot struct {
	ObjectKey string `json:"object_key"`
	SourceURL string `json:"source_url"`
	MimeType  string `json:"mime_type"`

	// Supplemented from original_source/: bytes downloaded, for the
	// persister's storage accounting.
	ContentLength int64 `json:"content_length,omitempty"`
}
