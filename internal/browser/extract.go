package browser

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/wonderooo/cars/internal/domain"
)

// upstreamVehicle mirrors the upstream search API's per-row shape. Field
// names follow the provider's own JSON, which is why they diverge from
// LotVehicle's normalized names.
type upstreamVehicle struct {
	LotNumber       int32   `json:"ln"`
	Make            string  `json:"mkn"`
	Model           string  `json:"lm"`
	Year            int     `json:"lcy"`
	VehicleType     string  `json:"bodyStyle"`
	VIN             *string `json:"fv"`
	RetailValue     string  `json:"frv"`
	RepairCost      string  `json:"erc"`
	Odometer        int64   `json:"orr"`
	OdometerStatus  string  `json:"ord"`
	EngineName      string  `json:"egn"`
	EngineCylinders int     `json:"cyl"`
	Currency        string  `json:"cuc"`
	SaleDate        *string `json:"ad"`
	MainDamage      string  `json:"dd"`
	OtherDamage     string  `json:"sd"`
	Country         string  `json:"cc"`
	State           string  `json:"vss"`
	Transmission    string  `json:"tmtp"`
	Color           string  `json:"clr"`
	FuelType        string  `json:"ft"`
	DriveType       string  `json:"drv"`
	KeysStatus      string  `json:"hk"`
	Description     *string `json:"ld"`
	AuctionHouse    string  `json:"sn"`
}

type upstreamSearchResponse struct {
	Results []upstreamVehicle `json:"results"`
}

type upstreamImage struct {
	SequenceNumber int     `json:"sequence"`
	ImageType      string  `json:"type"`
	StandardURL    *string `json:"url"`
	ThumbnailURL   *string `json:"thumbnailUrl"`
	HighResURL     *string `json:"highResUrl"`
}

type upstreamImagesResponse struct {
	Images []upstreamImage `json:"images"`
}

// ExtractResponse implements C4 (spec §4.4). hasCookie reflects whether the
// preserved request carried a Cookie header; rawURL is the response's
// originating request URL; body is the already-decoded response payload.
//
// It returns the Response to emit and whether it should be emitted at all —
// the preflight-artifact and "any other URL" cases both report emit=false,
// and the caller (the HTTP task) must still continue the underlying browser
// request in every case per invariant 1.
func ExtractResponse(rawURL string, hasCookie bool, body []byte, drift *SchemaDrift) (domain.Response, bool) {
	if !hasCookie {
		return domain.Response{}, false
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return domain.NewFailure(domain.ErrorKindMalformedPayload, fmt.Sprintf("parse response URL: %v", err)), true
	}

	switch {
	case strings.Contains(u.Path, "/lots/"):
		return extractLotSearch(u, body, drift)
	case strings.Contains(u.Path, "/solr/lotImages"):
		return extractLotImages(u, body)
	default:
		return domain.Response{}, false
	}
}

func extractLotSearch(u *url.URL, body []byte, drift *SchemaDrift) (domain.Response, bool) {
	pageNumber, err := strconv.Atoi(u.Query().Get("pageNumber"))
	if err != nil {
		return domain.NewFailure(domain.ErrorKindMalformedPayload, fmt.Sprintf("missing pageNumber: %v", err)), true
	}

	// Validate learns the baseline from the first body and diffs later bodies
	// against it. The mismatches are neither logged nor returned: this
	// function has no logger and its result carries no drift information.
	if drift != nil {
		if mismatches, err := drift.Validate(body); err == nil {
			for _, m := range mismatches {
				_ = m
			}
		}
	}

	var upstream upstreamSearchResponse
	if err := json.Unmarshal(body, &upstream); err != nil {
		return domain.NewFailure(domain.ErrorKindMalformedPayload, fmt.Sprintf("decode lot search body: %v", err)), true
	}

	vehicles := make([]domain.LotVehicle, 0, len(upstream.Results))
	for _, v := range upstream.Results {
		vehicles = append(vehicles, domain.LotVehicle{
			LotNumber:            v.LotNumber,
			Make:                 v.Make,
			Model:                v.Model,
			Year:                 v.Year,
			VehicleType:          v.VehicleType,
			VIN:                  v.VIN,
			EstimatedRetailValue: mustDecimal(v.RetailValue),
			EstimatedRepairCost:  mustDecimal(v.RepairCost),
			Odometer:             v.Odometer,
			OdometerStatus:       v.OdometerStatus,
			EngineName:           v.EngineName,
			EngineCylinders:      v.EngineCylinders,
			Currency:             v.Currency,
			SaleDate:             parseOptionalTime(v.SaleDate),
			MainDamage:           v.MainDamage,
			OtherDamage:          v.OtherDamage,
			Country:              v.Country,
			State:                v.State,
			Transmission:         v.Transmission,
			Color:                v.Color,
			FuelType:             v.FuelType,
			DriveType:            v.DriveType,
			KeysStatus:           v.KeysStatus,
			Description:          v.Description,
			AuctionHouse:         v.AuctionHouse,
		})
	}

	return domain.Response{
		Kind: domain.ResponseLotSearch,
		LotSearch: &domain.LotSearchResponse{
			PageNumber: pageNumber,
			Vehicles:   vehicles,
		},
	}, true
}

func extractLotImages(u *url.URL, body []byte) (domain.Response, bool) {
	lotNumber, err := strconv.Atoi(u.Query().Get("lotNumber"))
	if err != nil {
		return domain.NewFailure(domain.ErrorKindMalformedPayload, fmt.Sprintf("missing lotNumber: %v", err)), true
	}

	var upstream upstreamImagesResponse
	if err := json.Unmarshal(body, &upstream); err != nil {
		return domain.NewFailure(domain.ErrorKindMalformedPayload, fmt.Sprintf("decode lot images body: %v", err)), true
	}

	images := make([]domain.LotImage, 0, len(upstream.Images))
	for _, img := range upstream.Images {
		images = append(images, domain.LotImage{
			SequenceNumber: img.SequenceNumber,
			ImageType:      img.ImageType,
			StandardURL:    img.StandardURL,
			ThumbnailURL:   img.ThumbnailURL,
			HighResURL:     img.HighResURL,
			LotNumber:      int32(lotNumber),
		})
	}

	return domain.Response{
		Kind: domain.ResponseLotImages,
		LotImages: &domain.LotImagesResponse{
			LotNumber: int32(lotNumber),
			Images:    images,
		},
	}, true
}
