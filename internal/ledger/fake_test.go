package ledger

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// fakeBackend is an in-memory spreadsheet implementing ValuesAPI and
// StructuralAPI for tests.
type fakeBackend struct {
	sheets map[string][][]string
	order  []string
}

func newFakeBackend(names ...string) *fakeBackend {
	f := &fakeBackend{sheets: make(map[string][][]string)}
	for _, n := range names {
		f.sheets[n] = nil
		f.order = append(f.order, n)
	}
	return f
}

var cellRe = regexp.MustCompile(`^([A-Z]+)(\d*)(?::([A-Z]+)(\d*))?$`)

func splitRange(rng string) (sheet string, m []string, err error) {
	sheet, cells, ok := strings.Cut(rng, "!")
	if !ok {
		return "", nil, fmt.Errorf("range without sheet: %s", rng)
	}
	m = cellRe.FindStringSubmatch(cells)
	if m == nil {
		return "", nil, fmt.Errorf("unsupported range: %s", rng)
	}
	return sheet, m, nil
}

func colNum(letters string) int {
	n := 0
	for _, c := range letters {
		n = n*26 + int(c-'A') + 1
	}
	return n
}

func (f *fakeBackend) Get(_ context.Context, rng string) ([][]string, error) {
	sheet, m, err := splitRange(rng)
	if err != nil {
		return nil, err
	}
	rows, ok := f.sheets[sheet]
	if !ok {
		return nil, fmt.Errorf("sheet %q not found", sheet)
	}
	if m[2] == "" { // column-only range, all rows
		return rows, nil
	}
	start, _ := strconv.Atoi(m[2])
	end := start
	if m[4] != "" {
		end, _ = strconv.Atoi(m[4])
	}
	var out [][]string
	for r := start; r <= end && r <= len(rows); r++ {
		out = append(out, rows[r-1])
	}
	return out, nil
}

func (f *fakeBackend) Update(_ context.Context, rng string, values [][]string) error {
	sheet, m, err := splitRange(rng)
	if err != nil {
		return err
	}
	if _, ok := f.sheets[sheet]; !ok {
		return fmt.Errorf("sheet %q not found", sheet)
	}
	startRow, _ := strconv.Atoi(m[2])
	startCol := colNum(m[1])
	for i, rowVals := range values {
		r := startRow + i
		for len(f.sheets[sheet]) < r {
			f.sheets[sheet] = append(f.sheets[sheet], nil)
		}
		row := f.sheets[sheet][r-1]
		for j, v := range rowVals {
			c := startCol + j
			for len(row) < c {
				row = append(row, "")
			}
			row[c-1] = v
		}
		f.sheets[sheet][r-1] = row
	}
	return nil
}

func (f *fakeBackend) SheetNames(context.Context) ([]string, error) {
	return append([]string(nil), f.order...), nil
}

func (f *fakeBackend) AddSheet(_ context.Context, title string) error {
	if _, ok := f.sheets[title]; ok {
		return fmt.Errorf("sheet %q exists", title)
	}
	f.sheets[title] = nil
	f.order = append(f.order, title)
	return nil
}

func (f *fakeBackend) InsertRows(_ context.Context, sheetTitle string, start, end int64) error {
	rows, ok := f.sheets[sheetTitle]
	if !ok {
		return fmt.Errorf("sheet %q not found", sheetTitle)
	}
	count := int(end - start)
	if int(start) > len(rows) {
		return nil
	}
	blank := make([][]string, count)
	out := append([][]string{}, rows[:start]...)
	out = append(out, blank...)
	out = append(out, rows[start:]...)
	f.sheets[sheetTitle] = out
	return nil
}

func (f *fakeBackend) rowCount(sheet string) int {
	return len(f.sheets[sheet])
}
