// Package enrich annotates items with EXIF capture metadata and cached
// reverse-geocoded place names. Everything here is best-effort; enrichment
// never fails an item.
package enrich
