package items

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing annotation.
	ErrNotFound = errors.New("annotation not found")

	// ErrSheetNotFound signals a sheet missing from the workbook.
	ErrSheetNotFound = errors.New("sheet not found")

	// ErrItemNotFound signals an item ID missing from a sheet.
	ErrItemNotFound = errors.New("item not found")

	// ErrNoItems signals a sheet without rows.
	ErrNoItems = errors.New("sheet has no items")

	// ErrInvalidInput signals validation errors when saving annotations.
	ErrInvalidInput = errors.New("invalid annotation input")
)

// Status is derived from annotation existence and never persisted.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusAnnotated Status = "Annotated"
)

// Item is a single test sentence inside a sheet.
type Item struct {
	ID     string
	Text   string
	Sheet  string
	Status Status
}

// Annotation is a flat object of rating field to value.
type Annotation map[string]any

// SaveRequest is the wire shape accepted by the save endpoints. Sheet
// names and item IDs may arrive as JSON strings or numbers.
type SaveRequest struct {
	SheetName  string     `json:"sheet_name"`
	ItemID     string     `json:"item_id"`
	Annotation Annotation `json:"annotation"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *SaveRequest) UnmarshalJSON(data []byte) error {
	var wire struct {
		SheetName  json.RawMessage `json:"sheet_name"`
		ItemID     json.RawMessage `json:"item_id"`
		Annotation Annotation      `json:"annotation"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	sheet, err := keyString(wire.SheetName)
	if err != nil {
		return fmt.Errorf("sheet_name: %w", err)
	}
	itemID, err := keyString(wire.ItemID)
	if err != nil {
		return fmt.Errorf("item_id: %w", err)
	}
	*r = SaveRequest{SheetName: sheet, ItemID: itemID, Annotation: wire.Annotation}
	return nil
}

// keyString accepts a JSON string, a number (kept as written) or null.
func keyString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", err
		}
		return n.String(), nil
	default:
		return "", fmt.Errorf("want string or number, got %s", raw)
	}
}

// AudioInfo describes a playable audio asset.
type AudioInfo struct {
	URL        string
	Present    bool
	SampleRate int
	Channels   int
	Duration   float64
}

// AnnotateView carries everything the annotation form renders.
type AnnotateView struct {
	Sheet      string
	Item       Item
	Existing   Annotation
	PeerSheet  string
	PeerData   Annotation
	PrevID     string
	NextID     string
	Items      []Item
	Audio      AudioInfo
	SheetNames []string
}

// Row is a raw workbook row reduced to what the annotation flow needs.
type Row struct {
	ID   string
	Text string
}

// Store maps (sheet, item) to an annotation.
type Store interface {
	Get(ctx context.Context, sheet, itemID string) (Annotation, error)
	Put(ctx context.Context, sheet, itemID string, ann Annotation) error
	Exists(ctx context.Context, sheet, itemID string) (bool, error)
	Sheets(ctx context.Context) ([]string, error)
}

// SheetSource exposes the workbook's sheets and rows.
type SheetSource interface {
	SheetNames(ctx context.Context) ([]string, error)
	Rows(ctx context.Context, sheet string) ([]Row, error)
}

// AudioInspector reports on the audio asset for an item.
type AudioInspector interface {
	Inspect(sheet, itemID string) (AudioInfo, error)
}
