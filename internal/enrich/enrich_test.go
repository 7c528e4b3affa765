package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"lumen/internal/workspace"
)

func openTestCache(t *testing.T) *GeoCache {
	t.Helper()
	cache, err := OpenGeoCache(filepath.Join(t.TempDir(), "geocode.sqlite"), 100)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() {
		if err := cache.Close(); err != nil {
			t.Errorf("close cache: %v", err)
		}
	})
	return cache
}

func TestGeoCacheRoundTrip(t *testing.T) {
	cache := openTestCache(t)

	if _, found, err := cache.Lookup(37.7749, -122.4194); err != nil || found {
		t.Fatalf("lookup on empty cache: found=%v err=%v", found, err)
	}
	if err := cache.Store(37.7749, -122.4194, "San Francisco"); err != nil {
		t.Fatalf("store: %v", err)
	}
	place, found, err := cache.Lookup(37.7749, -122.4194)
	if err != nil || !found || place != "San Francisco" {
		t.Fatalf("lookup = %q, %v, %v", place, found, err)
	}
}

func TestGeoCacheGridRounding(t *testing.T) {
	cache := openTestCache(t)
	if err := cache.Store(37.77490, -122.41940, "San Francisco"); err != nil {
		t.Fatalf("store: %v", err)
	}
	// ~20 meters away: same 100m grid cell.
	place, found, err := cache.Lookup(37.77505, -122.41945)
	if err != nil || !found || place != "San Francisco" {
		t.Fatalf("nearby lookup = %q, %v, %v", place, found, err)
	}
	// ~10 km away: different cell.
	if _, found, err := cache.Lookup(37.8649, -122.4194); err != nil || found {
		t.Fatalf("distant lookup: found=%v err=%v", found, err)
	}
}

func TestGeoCacheCountAndClear(t *testing.T) {
	cache := openTestCache(t)
	for i := 0; i < 3; i++ {
		if err := cache.Store(float64(10+i), 20, "place"); err != nil {
			t.Fatalf("store: %v", err)
		}
	}
	count, err := cache.Count()
	if err != nil || count != 3 {
		t.Fatalf("count = %d, %v", count, err)
	}
	removed, err := cache.Clear()
	if err != nil || removed != 3 {
		t.Fatalf("clear = %d, %v", removed, err)
	}
	count, err = cache.Count()
	if err != nil || count != 0 {
		t.Fatalf("count after clear = %d, %v", count, err)
	}
}

func TestNominatimReverseGeocode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "lumen-test/1.0" {
			t.Errorf("user agent = %q", got)
		}
		if r.URL.Query().Get("format") != "jsonv2" {
			t.Errorf("format = %q", r.URL.Query().Get("format"))
		}
		if _, err := w.Write([]byte(`{"display_name": "Mission District, San Francisco, California"}`)); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	defer server.Close()

	client, err := NewNominatimClient(server.URL, "lumen-test/1.0")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	place, err := client.ReverseGeocode(context.Background(), 37.76, -122.42)
	if err != nil {
		t.Fatalf("reverse geocode: %v", err)
	}
	if place != "Mission District, San Francisco, California" {
		t.Fatalf("place = %q", place)
	}
}

func TestNominatimRequiresUserAgent(t *testing.T) {
	if _, err := NewNominatimClient("http://localhost", "  "); err == nil {
		t.Fatal("expected error for blank user agent")
	}
}

func TestNominatimRateLimitsSequentialCalls(t *testing.T) {
	var mu sync.Mutex
	var timestamps []time.Time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		timestamps = append(timestamps, time.Now())
		mu.Unlock()
		fmt.Fprint(w, `{"display_name": "x"}`)
	}))
	defer server.Close()

	client, err := NewNominatimClient(server.URL, "lumen-test/1.0")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := client.ReverseGeocode(context.Background(), 1, 2); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if len(timestamps) != 2 {
		t.Fatalf("request count = %d", len(timestamps))
	}
	if gap := timestamps[1].Sub(timestamps[0]); gap < 900*time.Millisecond {
		t.Fatalf("second request after %v, want >= ~1s", gap)
	}
}

type stubGeocoder struct {
	calls int
	place string
	err   error
}

func (s *stubGeocoder) ReverseGeocode(context.Context, float64, float64) (string, error) {
	s.calls++
	return s.place, s.err
}

func TestEnrichSkipsFilesWithoutEXIF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.jpg")
	if err := os.WriteFile(path, []byte("not a real jpeg"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	item := &workspace.Item{ID: "plain.jpg", SourcePath: path, Kind: workspace.KindImage}

	enricher := NewEnricher(nil, nil, nil)
	enricher.Enrich(context.Background(), item)
	if item.CapturedAt != nil || item.Place != "" {
		t.Fatalf("item unexpectedly enriched: %+v", item)
	}
}

func TestEnrichSkipsVideos(t *testing.T) {
	enricher := NewEnricher(nil, &stubGeocoder{place: "x"}, nil)
	item := &workspace.Item{ID: "a.mp4", SourcePath: "/nonexistent", Kind: workspace.KindVideo}
	enricher.Enrich(context.Background(), item)
	if item.Place != "" {
		t.Fatalf("video item enriched: %+v", item)
	}
}

func TestResolvePlacePrefersCacheAndStoresMisses(t *testing.T) {
	cache := openTestCache(t)
	geocoder := &stubGeocoder{place: "Oakland, California"}
	enricher := NewEnricher(cache, geocoder, nil)

	if place := enricher.resolvePlace(context.Background(), 37.8, -122.27); place != "Oakland, California" {
		t.Fatalf("place = %q", place)
	}
	if geocoder.calls != 1 {
		t.Fatalf("geocoder calls = %d", geocoder.calls)
	}

	// Second resolution of the same cell must hit the cache.
	if place := enricher.resolvePlace(context.Background(), 37.8, -122.27); place != "Oakland, California" {
		t.Fatalf("cached place = %q", place)
	}
	if geocoder.calls != 1 {
		t.Fatalf("geocoder called again: %d", geocoder.calls)
	}
}

func TestResolvePlaceGeocoderFailureIsNotFatal(t *testing.T) {
	geocoder := &stubGeocoder{err: fmt.Errorf("nominatim down")}
	enricher := NewEnricher(nil, geocoder, nil)
	if place := enricher.resolvePlace(context.Background(), 1, 2); place != "" {
		t.Fatalf("place = %q", place)
	}
}
