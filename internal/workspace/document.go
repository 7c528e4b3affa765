package workspace

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// SchemaVersion is written into every new document. Loaders accept equal or
// older versions and refuse newer ones.
const SchemaVersion = 1

// RunConfig is the immutable configuration snapshot captured when a document
// is created. Later runs resume against this snapshot, not the live config.
type RunConfig struct {
	JobID       string    `json:"job_id,omitempty"`
	Root        string    `json:"root"`
	Recursive   bool      `json:"recursive"`
	Types       []string  `json:"types,omitempty"`
	Providers   []string  `json:"providers,omitempty"`
	PromptStyle string    `json:"prompt_style,omitempty"`
	PromptText  string    `json:"prompt_text,omitempty"`
	Workers     int       `json:"workers,omitempty"`

	// Conversion settings are pinned so a resumed run extracts the same
	// derived items a fresh run would have.
	FrameIntervalSeconds int `json:"frame_interval_seconds,omitempty"`
	MaxFrames            int `json:"max_frames,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Document is the durable record of one description job: every discovered
// item, every provider attempt, and the configuration the job started with.
// Items keep their discovery order, which is also the processing order.
// Unknown top-level JSON fields survive a load/save round trip so newer
// tools can annotate a document without older builds destroying the data.
type Document struct {
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
	Config    RunConfig

	items map[string]*Item
	order []string
	extra map[string]json.RawMessage
}

// NewDocument creates an empty document for a fresh job.
func NewDocument(cfg RunConfig) *Document {
	now := time.Now().UTC()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	return &Document{
		Version:   SchemaVersion,
		CreatedAt: now,
		UpdatedAt: now,
		Config:    cfg,
		items:     make(map[string]*Item),
	}
}

// Append adds an item if its id is not already present. It reports whether
// the item was added.
func (d *Document) Append(item *Item) bool {
	if item == nil || strings.TrimSpace(item.ID) == "" {
		return false
	}
	if _, exists := d.items[item.ID]; exists {
		return false
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = now
	}
	if item.Status == "" {
		item.Status = StatusPending
	}
	d.items[item.ID] = item
	d.order = append(d.order, item.ID)
	d.UpdatedAt = now
	return true
}

// Item returns the item with the given id, or nil.
func (d *Document) Item(id string) *Item {
	return d.items[id]
}

// Items returns the items in discovery order. The slice is fresh but the
// pointers are live; callers that mutate must persist through the store.
func (d *Document) Items() []*Item {
	out := make([]*Item, 0, len(d.order))
	for _, id := range d.order {
		if item, ok := d.items[id]; ok {
			out = append(out, item)
		}
	}
	return out
}

// Len returns the number of items.
func (d *Document) Len() int { return len(d.order) }

// ResetProcessing flips every processing item back to pending. Called on
// every load so work interrupted by a crash is picked up again.
func (d *Document) ResetProcessing() int {
	reset := 0
	for _, id := range d.order {
		item := d.items[id]
		if item != nil && item.Status == StatusProcessing {
			item.SetStatus(StatusPending)
			reset++
		}
	}
	if reset > 0 {
		d.UpdatedAt = time.Now().UTC()
	}
	return reset
}

// RetryFailed re-enqueues every failed item, clearing its error. Prior
// description records stay in place as history.
func (d *Document) RetryFailed() int {
	requeued := 0
	for _, id := range d.order {
		item := d.items[id]
		if item != nil && item.Status == StatusFailed {
			item.Error = ""
			item.SetStatus(StatusPending)
			requeued++
		}
	}
	if requeued > 0 {
		d.UpdatedAt = time.Now().UTC()
	}
	return requeued
}

// CountByStatus tallies items per status.
func (d *Document) CountByStatus() map[Status]int {
	counts := make(map[Status]int)
	for _, id := range d.order {
		if item := d.items[id]; item != nil {
			counts[item.Status]++
		}
	}
	return counts
}

type documentJSON struct {
	Version   int              `json:"version"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Config    RunConfig        `json:"configuration"`
	Items     map[string]*Item `json:"items"`
	ItemOrder []string         `json:"item_order"`
}

var knownDocumentKeys = map[string]bool{
	"version":       true,
	"created_at":    true,
	"updated_at":    true,
	"configuration": true,
	"items":         true,
	"item_order":    true,
}

// MarshalJSON emits the known document fields plus any unknown top-level
// fields captured at load time.
func (d *Document) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(documentJSON{
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
		Config:    d.Config,
		Items:     d.items,
		ItemOrder: d.order,
	})
	if err != nil {
		return nil, err
	}
	if len(d.extra) == 0 {
		return base, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for key, raw := range d.extra {
		if !knownDocumentKeys[key] {
			merged[key] = raw
		}
	}
	return json.Marshal(merged)
}

// UnmarshalJSON restores the known fields and stashes unknown top-level
// fields for the next save.
func (d *Document) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var known documentJSON
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	if known.Version > SchemaVersion {
		return fmt.Errorf("document schema version %d is newer than supported version %d", known.Version, SchemaVersion)
	}

	d.Version = known.Version
	d.CreatedAt = known.CreatedAt
	d.UpdatedAt = known.UpdatedAt
	d.Config = known.Config
	d.items = known.Items
	if d.items == nil {
		d.items = make(map[string]*Item)
	}

	// Rebuild order defensively: keep the recorded order for ids that still
	// exist, then append any items the order list missed.
	seen := make(map[string]bool, len(known.ItemOrder))
	d.order = d.order[:0]
	for _, id := range known.ItemOrder {
		if _, ok := d.items[id]; ok && !seen[id] {
			d.order = append(d.order, id)
			seen[id] = true
		}
	}
	if len(d.order) < len(d.items) {
		missing := make([]string, 0, len(d.items)-len(d.order))
		for id := range d.items {
			if !seen[id] {
				missing = append(missing, id)
			}
		}
		sort.Strings(missing)
		d.order = append(d.order, missing...)
	}

	d.extra = make(map[string]json.RawMessage)
	for key, raw := range fields {
		if !knownDocumentKeys[key] {
			d.extra[key] = raw
		}
	}
	return nil
}
