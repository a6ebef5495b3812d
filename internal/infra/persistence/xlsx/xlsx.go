package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/LouYuanbo1/listingwatch/internal/domain/model"
	"github.com/xuri/excelize/v2"
)

const (
	sheetName     = "Sheet1"
	maxTitleRunes = 50
)

var header = []any{
	"id", "title", "price", "address", "url", "seller_id",
	"is_promotion", "is_reserved", "published_at", "total_views", "today_views", "description",
}

// RunFileName is the per-run file: the white keywords joined by "-", or "all".
func RunFileName(dir string, whiteList []string) string {
	title := "all"
	if len(whiteList) > 0 {
		parts := make([]string, len(whiteList))
		for i, w := range whiteList {
			parts[i] = strings.ToLower(w)
		}
		title = strings.Join(parts, "-")
		if r := []rune(title); len(r) > maxTitleRunes {
			title = string(r[:maxTitleRunes])
		}
		title = strings.NewReplacer("/", "_", `\`, "_").Replace(title)
	}
	return filepath.Join(dir, title+".xlsx")
}

// LinkFileName is the file of the URL at index (1-based on disk).
func LinkFileName(dir string, index int) string {
	return filepath.Join(dir, strconv.Itoa(index+1)+".xlsx")
}

// Sink appends records to a workbook, creating it with a header row on first write.
type Sink struct {
	path    string
	baseURL string
}

func NewSink(path, baseURL string) *Sink {
	return &Sink{path: path, baseURL: baseURL}
}

func (s *Sink) Path() string { return s.path }

func (s *Sink) Append(_ context.Context, items []model.Item) error {
	if len(items) == 0 {
		return nil
	}
	f, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return fmt.Errorf("读取表格失败: %w", err)
	}
	next := len(rows) + 1
	for i := range items {
		cell, err := excelize.CoordinatesToCellName(1, next+i)
		if err != nil {
			return err
		}
		row := s.row(&items[i])
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("写入表格失败: %w", err)
		}
	}
	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("保存表格失败: %w", err)
	}
	return nil
}

func (s *Sink) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(s.path)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("打开表格失败: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("创建目录失败: %w", err)
	}
	f = excelize.NewFile()
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("写入表头失败: %w", err)
	}
	return f, nil
}

func (s *Sink) row(it *model.Item) []any {
	published := ""
	if t := it.PublishedAt(); !t.IsZero() {
		published = t.Format("2006-01-02 15:04:05")
	}
	return []any{
		it.ID.String(),
		it.Title,
		it.Price(),
		it.Address(),
		it.DetailURL(s.baseURL),
		it.SellerID,
		it.IsPromotion,
		it.IsReserved,
		published,
		optional(it.TotalViews),
		optional(it.TodayViews),
		it.Description,
	}
}

func optional(n *int) any {
	if n == nil {
		return ""
	}
	return *n
}
