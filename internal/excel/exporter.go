package excel

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/example/srsbot/internal/apperr"
)

var exportHeader = []string{"front", "back", "example"}

type exportDoc struct {
	DeckID int64  `json:"deck_id"`
	Count  int    `json:"count"`
	Items  []Item `json:"items"`
}

// Export writes every card of a deck to w and returns how many were written.
// The header row uses the names Import reads back.
func (im *Importer) Export(ctx context.Context, deckID int64, w io.Writer, format Format) (int, error) {
	cards, err := im.store.Cards(ctx, deckID)
	if err != nil {
		return 0, err
	}
	items := make([]Item, 0, len(cards))
	for _, c := range cards {
		items = append(items, Item{Front: c.Front, Back: c.Back, Example: c.Example})
	}

	switch format {
	case FormatCSV:
		err = writeCSV(w, items)
	case FormatJSON:
		err = json.NewEncoder(w).Encode(exportDoc{DeckID: deckID, Count: len(items), Items: items})
	case FormatXLSX:
		err = writeXLSX(w, items)
	default:
		return 0, apperr.Invalid("unknown file format %q", format)
	}
	if err != nil {
		return 0, errors.Wrapf(err, "failed to export deck %d", deckID)
	}
	im.log.Info("Exported cards", "deck_id", deckID, "format", format, "count", len(items))
	return len(items), nil
}

func writeCSV(w io.Writer, items []Item) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, it := range items {
		if err := cw.Write([]string{it.Front, it.Back, it.Example}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeXLSX(w io.Writer, items []Item) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := make([]interface{}, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, it := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{it.Front, it.Back, it.Example}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return f.Write(w)
}
