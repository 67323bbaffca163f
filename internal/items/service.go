package items

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// Service orchestrates item listing, navigation, and annotation persistence.
type Service struct {
	logger *slog.Logger
	sheets SheetSource
	store  Store
	audio  AudioInspector
}

// NewService constructs a Service. audio may be nil.
func NewService(logger *slog.Logger, sheets SheetSource, store Store, audio AudioInspector) *Service {
	return &Service{
		logger: logger,
		sheets: sheets,
		store:  store,
		audio:  audio,
	}
}

// SheetNames lists the workbook's sheets in workbook order.
func (s *Service) SheetNames(ctx context.Context) ([]string, error) {
	return s.sheets.SheetNames(ctx)
}

// DefaultSheet returns preferred when the workbook has it, else the first sheet.
func (s *Service) DefaultSheet(ctx context.Context, preferred string) (string, error) {
	names, err := s.sheets.SheetNames(ctx)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", ErrSheetNotFound
	}
	if contains(names, preferred) {
		return preferred, nil
	}
	return names[0], nil
}

// ListItems returns every row of sheet with its derived status. Rows
// without an item ID are left out.
func (s *Service) ListItems(ctx context.Context, sheet string) ([]Item, error) {
	rows, err := s.sheets.Rows(ctx, sheet)
	if err != nil {
		return nil, err
	}

	result := make([]Item, 0, len(rows))
	for i, row := range rows {
		if strings.TrimSpace(row.ID) == "" {
			if strings.TrimSpace(row.Text) != "" {
				s.logger.Warn("skipping row without item id",
					slog.String("sheet", sheet),
					slog.Int("row", i),
				)
			}
			continue
		}
		exists, err := s.store.Exists(ctx, sheet, row.ID)
		if err != nil {
			return nil, fmt.Errorf("check annotation %s/%s: %w", sheet, row.ID, err)
		}
		status := StatusPending
		if exists {
			status = StatusAnnotated
		}
		result = append(result, Item{
			ID:     row.ID,
			Text:   row.Text,
			Sheet:  sheet,
			Status: status,
		})
	}
	return result, nil
}

// FirstPending returns the first pending item, falling back to the first item.
func (s *Service) FirstPending(ctx context.Context, sheet string) (Item, error) {
	list, err := s.ListItems(ctx, sheet)
	if err != nil {
		return Item{}, err
	}
	if len(list) == 0 {
		return Item{}, ErrNoItems
	}
	for _, item := range list {
		if item.Status == StatusPending {
			return item, nil
		}
	}
	return list[0], nil
}

// AnnotateView assembles the annotation form for one item.
func (s *Service) AnnotateView(ctx context.Context, sheet, itemID string) (AnnotateView, error) {
	list, err := s.ListItems(ctx, sheet)
	if err != nil {
		return AnnotateView{}, err
	}

	pos := -1
	for i, item := range list {
		if item.ID == itemID {
			pos = i
			break
		}
	}
	if pos == -1 {
		return AnnotateView{}, fmt.Errorf("%w: %s/%s", ErrItemNotFound, sheet, itemID)
	}

	view := AnnotateView{
		Sheet:    sheet,
		Item:     list[pos],
		Items:    list,
		Existing: Annotation{},
		PeerData: Annotation{},
		Audio:    AudioInfo{URL: AudioURL(sheet, itemID)},
	}
	if pos > 0 {
		view.PrevID = list[pos-1].ID
	}
	if pos+1 < len(list) {
		view.NextID = list[pos+1].ID
	}

	if existing, err := s.lookup(ctx, sheet, itemID); err != nil {
		return AnnotateView{}, err
	} else if existing != nil {
		view.Existing = existing
	}

	names, err := s.sheets.SheetNames(ctx)
	if err != nil {
		return AnnotateView{}, err
	}
	view.SheetNames = names

	if peer, ok := ResolvePeer(sheet, names); ok {
		view.PeerSheet = peer
		peerData, err := s.lookup(ctx, peer, itemID)
		if err != nil {
			return AnnotateView{}, err
		}
		if peerData != nil {
			view.PeerData = peerData
		}
	}

	if s.audio != nil {
		info, err := s.audio.Inspect(sheet, itemID)
		if err != nil {
			s.logger.Warn("inspect audio failed",
				slog.String("sheet", sheet),
				slog.String("item_id", itemID),
				slog.String("error", err.Error()),
			)
			view.Audio.Present = info.Present
		} else {
			info.URL = view.Audio.URL
			view.Audio = info
		}
	}

	return view, nil
}

// Save validates and overwrites a single annotation.
func (s *Service) Save(ctx context.Context, req SaveRequest) error {
	if err := validateSaveRequest(req); err != nil {
		return err
	}
	if err := s.store.Put(ctx, req.SheetName, req.ItemID, req.Annotation); err != nil {
		return fmt.Errorf("persist annotation: %w", err)
	}
	return nil
}

// SaveMany saves every well-formed request. Requests without a sheet, item
// ID or annotation are skipped; the first store failure aborts the batch.
func (s *Service) SaveMany(ctx context.Context, reqs []SaveRequest) (int, error) {
	saved := 0
	for i, req := range reqs {
		if err := validateSaveRequest(req); err != nil {
			s.logger.Warn("skipping annotation entry",
				slog.Int("position", i),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := s.Save(ctx, req); err != nil {
			return saved, err
		}
		saved++
	}
	return saved, nil
}

func (s *Service) lookup(ctx context.Context, sheet, itemID string) (Annotation, error) {
	ann, err := s.store.Get(ctx, sheet, itemID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load annotation %s/%s: %w", sheet, itemID, err)
	}
	return ann, nil
}

// AudioURL is the server path of an item's audio file.
func AudioURL(sheet, itemID string) string {
	return "/audio/" + url.PathEscape(sheet) + "/" + url.PathEscape(itemID+".wav")
}

func validateSaveRequest(req SaveRequest) error {
	if strings.TrimSpace(req.SheetName) == "" || strings.TrimSpace(req.ItemID) == "" {
		return fmt.Errorf("%w: sheet_name and item_id are required", ErrInvalidInput)
	}
	if req.Annotation == nil {
		return fmt.Errorf("%w: annotation is required", ErrInvalidInput)
	}
	return nil
}
