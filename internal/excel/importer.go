package excel

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/example/srsbot/internal/apperr"
	"github.com/example/srsbot/internal/logger"
	"github.com/example/srsbot/pkg/models"
)

// Format is a card file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts a format name or a file name with a known extension.
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if ext := filepath.Ext(name); ext != "" {
		name = ext[1:]
	}
	switch Format(name) {
	case FormatCSV, FormatJSON, FormatXLSX:
		return Format(name), nil
	case "xls", "xlsm":
		return FormatXLSX, nil
	}
	return "", apperr.Invalid("unknown file format %q", s)
}

// Mode says what an import does with a card whose front already exists.
type Mode string

const (
	ModeSkip   Mode = "skip"
	ModeUpdate Mode = "update"
	ModeFail   Mode = "fail"
)

// ParseMode parses an import mode; empty means skip.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeSkip, nil
	case ModeSkip, ModeUpdate, ModeFail:
		return m, nil
	}
	return "", apperr.Invalid("unknown import mode %q", s)
}

// ImportConfig defines the import configuration
type ImportConfig struct {
	Format    Format
	Mode      Mode
	SheetName string // xlsx only; empty means the first sheet
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	DeckID   int64 `json:"deck_id"`
	Received int   `json:"received"`
	Created  int   `json:"created"`
	Updated  int   `json:"updated"`
	Skipped  int   `json:"skipped"`
	Mode     Mode  `json:"mode"`
}

// CardStore is the card storage an import writes to.
type CardStore interface {
	CardByFront(ctx context.Context, deckID int64, front string) (*models.Card, error)
	CreateCard(ctx context.Context, c *models.Card) error
	UpdateCard(ctx context.Context, c *models.Card) error
	Cards(ctx context.Context, deckID int64) ([]models.Card, error)
}

// Item is one card in an import or export file.
type Item struct {
	Front   string `json:"front"`
	Back    string `json:"back"`
	Example string `json:"example,omitempty"`

	row int
}

// Importer loads card files into decks.
type Importer struct {
	store CardStore
	log   *logger.Logger
}

// NewImporter creates an importer writing to store.
func NewImporter(store CardStore, log *logger.Logger) *Importer {
	if log == nil {
		log = logger.Nop()
	}
	return &Importer{store: store, log: log}
}

// Import reads every row of r, then applies them to the deck. A row without
// front or back rejects the whole file. In fail mode a duplicate front is
// found before anything is written.
func (im *Importer) Import(ctx context.Context, deckID int64, r io.Reader, cfg ImportConfig) (*ImportResult, error) {
	mode := cfg.Mode
	if mode == "" {
		mode = ModeSkip
	}
	items, err := ReadItems(r, cfg.Format, cfg.SheetName)
	if err != nil {
		return nil, err
	}

	if mode == ModeFail {
		if err := im.checkDuplicates(ctx, deckID, items); err != nil {
			return nil, err
		}
	}

	result := &ImportResult{DeckID: deckID, Received: len(items), Mode: mode}
	for _, it := range items {
		if err := im.apply(ctx, deckID, it, mode, result); err != nil {
			return result, err
		}
	}
	im.log.Info("Imported cards", "deck_id", deckID, "received", result.Received,
		"created", result.Created, "updated", result.Updated, "skipped", result.Skipped)
	return result, nil
}

func (im *Importer) checkDuplicates(ctx context.Context, deckID int64, items []Item) error {
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if seen[it.Front] {
			return apperr.Conflict(nil, "duplicate card %q at row %d", it.Front, it.row)
		}
		seen[it.Front] = true
		_, err := im.store.CardByFront(ctx, deckID, it.Front)
		if err == nil {
			return apperr.Conflict(nil, "duplicate card %q at row %d", it.Front, it.row)
		}
		if !apperr.IsNotFound(err) {
			return err
		}
	}
	return nil
}

func (im *Importer) apply(ctx context.Context, deckID int64, it Item, mode Mode, result *ImportResult) error {
	existing, err := im.store.CardByFront(ctx, deckID, it.Front)
	switch {
	case apperr.IsNotFound(err):
		card := &models.Card{DeckID: deckID, Front: it.Front, Back: it.Back, Example: it.Example}
		if err := im.store.CreateCard(ctx, card); err != nil {
			return errors.Wrapf(err, "row %d", it.row)
		}
		result.Created++
		return nil
	case err != nil:
		return err
	}

	switch mode {
	case ModeUpdate:
		existing.Back = it.Back
		existing.Example = it.Example
		if err := im.store.UpdateCard(ctx, existing); err != nil {
			return errors.Wrapf(err, "row %d", it.row)
		}
		result.Updated++
	case ModeFail:
		return apperr.Conflict(nil, "duplicate card %q at row %d", it.Front, it.row)
	default:
		result.Skipped++
	}
	return nil
}

// ReadItems parses a card file. Rows are numbered from 1 as in the file;
// for json the number is the item position.
func ReadItems(r io.Reader, format Format, sheet string) ([]Item, error) {
	switch format {
	case FormatCSV:
		return readCSV(r)
	case FormatJSON:
		return readJSON(r)
	case FormatXLSX:
		return readXLSX(r, sheet)
	}
	return nil, apperr.Invalid("unknown file format %q", format)
}

func readCSV(r io.Reader) ([]Item, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, apperr.Invalid("invalid csv: %v", err)
	}
	return itemsFromRows(records)
}

func readXLSX(r io.Reader, sheet string) ([]Item, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperr.Invalid("invalid xlsx file: %v", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return []Item{}, nil
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperr.Invalid("failed to read sheet %q: %v", sheet, err)
	}
	return itemsFromRows(rows)
}

type jsonFile struct {
	Items []Item `json:"items"`
}

// readJSON accepts either an export document or a bare list of items.
func readJSON(r io.Reader) ([]Item, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read json")
	}
	var items []Item
	if trimmed := strings.TrimSpace(string(data)); strings.HasPrefix(trimmed, "[") {
		err = json.Unmarshal(data, &items)
	} else {
		var doc jsonFile
		err = json.Unmarshal(data, &doc)
		items = doc.Items
	}
	if err != nil {
		return nil, apperr.Invalid("invalid json: %v", err)
	}

	out := make([]Item, 0, len(items))
	for i := range items {
		items[i].row = i + 1
		it, err := normalize(items[i])
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

// Header names per column, including the names older exports used.
var headerNames = map[string]string{
	"front":            "front",
	"text":             "front",
	"word":             "front",
	"back":             "back",
	"translation":      "back",
	"example":          "example",
	"example_sentence": "example",
}

// itemsFromRows maps a table to items. A first row naming the columns sets
// their order; otherwise columns are front, back, example.
func itemsFromRows(rows [][]string) ([]Item, error) {
	cols := map[string]int{"front": 0, "back": 1, "example": 2}
	start := 0
	if len(rows) > 0 {
		header := map[string]int{}
		for i, cell := range rows[0] {
			if name, ok := headerNames[strings.ToLower(strings.TrimSpace(cell))]; ok {
				if _, dup := header[name]; !dup {
					header[name] = i
				}
			}
		}
		if _, ok := header["front"]; ok {
			cols = header
			start = 1
		}
	}

	items := make([]Item, 0, len(rows))
	for i := start; i < len(rows); i++ {
		row := rows[i]
		if blank(row) {
			continue
		}
		it, err := normalize(Item{
			Front:   cell(row, cols, "front"),
			Back:    cell(row, cols, "back"),
			Example: cell(row, cols, "example"),
			row:     i + 1,
		})
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

func normalize(it Item) (Item, error) {
	it.Front = strings.TrimSpace(it.Front)
	it.Back = strings.TrimSpace(it.Back)
	it.Example = strings.TrimSpace(it.Example)
	if it.Front == "" || it.Back == "" {
		return Item{}, apperr.Invalid("row %d: front and back are required", it.row)
	}
	return it, nil
}

func cell(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
