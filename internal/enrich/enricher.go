package enrich

import (
	"context"
	"log/slog"

	"lumen/internal/logging"
	"lumen/internal/workspace"
)

// Geocoder resolves coordinates to a place name.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}

// Enricher annotates items with EXIF capture metadata and, when coordinates
// are present, a reverse-geocoded place name. Enrichment is strictly
// best-effort: failures are logged and the item proceeds unannotated.
type Enricher struct {
	cache    *GeoCache
	geocoder Geocoder
	logger   *slog.Logger
}

// NewEnricher creates an enricher. Either cache or geocoder may be nil, in
// which case place resolution is skipped.
func NewEnricher(cache *GeoCache, geocoder Geocoder, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Enricher{
		cache:    cache,
		geocoder: geocoder,
		logger:   logging.NewComponentLogger(logger, "enrich"),
	}
}

// Enrich populates item metadata in place. It never returns an error;
// enrichment is not allowed to fail an item.
func (e *Enricher) Enrich(ctx context.Context, item *workspace.Item) {
	// Derived frames inherit nothing useful from ffmpeg output.
	if item.Kind == workspace.KindVideoFrame || item.Kind == workspace.KindVideo {
		return
	}

	meta, err := ReadEXIF(item.SourcePath)
	if err != nil {
		e.logger.Debug("no exif metadata",
			logging.String("item_id", item.ID),
			logging.Error(err))
		return
	}

	item.CapturedAt = meta.CapturedAt
	item.CameraMake = meta.CameraMake
	item.CameraModel = meta.CameraModel
	item.Latitude = meta.Latitude
	item.Longitude = meta.Longitude

	if meta.Latitude == nil || meta.Longitude == nil {
		return
	}
	item.Place = e.resolvePlace(ctx, *meta.Latitude, *meta.Longitude)
}

func (e *Enricher) resolvePlace(ctx context.Context, lat, lon float64) string {
	if e.cache != nil {
		if place, found, err := e.cache.Lookup(lat, lon); err != nil {
			e.logger.Warn("geocode cache lookup failed", logging.Error(err))
		} else if found {
			return place
		}
	}
	if e.geocoder == nil {
		return ""
	}
	place, err := e.geocoder.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		e.logger.Warn("reverse geocode failed",
			logging.Float64("lat", lat),
			logging.Float64("lon", lon),
			logging.Error(err))
		return ""
	}
	if e.cache != nil && place != "" {
		if err := e.cache.Store(lat, lon, place); err != nil {
			e.logger.Warn("geocode cache store failed", logging.Error(err))
		}
	}
	return place
}
