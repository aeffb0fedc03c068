package ledger

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// BugRow is one bug-ledger entry.
type BugRow struct {
	From              string
	Type              string
	Code              string
	Product           string
	Role              string
	Feature           string
	Reporter          string
	ReportingDateTime string
	Description       string
	Severity          string
	Urgency           string
	Link              string
}

// BugStore is the bug ticket ledger. Tickets carry sequential QR-NNN codes.
type BugStore struct {
	values ValuesAPI
	structural StructuralAPI
	links  *keyedMutex
}

func NewBugStore(values ValuesAPI, structural StructuralAPI) *BugStore {
	return &BugStore{values: values, structural: structural, links: newKeyedMutex()}
}

func (s *BugStore) EnsureHeaders(ctx context.Context, sheet string) error {
	return ensureHeaders(ctx, s.values, sheet, bugHeaders)
}

func (s *BugStore) AllLinks(ctx context.Context, sheet string) ([]string, error) {
	return allLinks(ctx, s.values, sheet, bugHeaders)
}

// AllCodes returns the numeric parts of every QR- code in the Code column.
func (s *BugStore) AllCodes(ctx context.Context, sheet string) ([]int, error) {
	rows, err := s.values.Get(ctx, dataRange(sheet, bugHeaders))
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, nil
	}
	codeIdx := headerIndex(rows[0], ColCode)
	if codeIdx < 0 {
		return nil, nil
	}
	var codes []int
	for _, row := range rows[1:] {
		if len(row) <= codeIdx {
			continue
		}
		v := row[codeIdx]
		if !strings.HasPrefix(v, "QR-") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimLeft(strings.TrimPrefix(v, "QR-"), "0"))
		if err != nil {
			continue
		}
		codes = append(codes, n)
	}
	return codes, nil
}

// NextCode allocates the next ticket code as max(existing)+1, so deleted
// rows never cause code reuse. Falls back to QR-001 on an empty or
// unreadable ledger.
func (s *BugStore) NextCode(ctx context.Context, sheet string) string {
	codes, err := s.AllCodes(ctx, sheet)
	if err != nil {
		log.Error().Err(err).Str("sheet", sheet).Msg("Reading ticket codes failed, starting from QR-001")
		return "QR-001"
	}
	max := 0
	for _, c := range codes {
		if c > max {
			max = c
		}
	}
	return fmt.Sprintf("QR-%03d", max+1)
}

// PrependRow inserts the bug row below the header, skipping duplicates by
// normalized permalink. Same contract as the main ledger's PrependRow.
func (s *BugStore) PrependRow(ctx context.Context, row BugRow, sheet string) (bool, error) {
	unlock := s.links.lock(NormalizeLink(row.Link))
	defer unlock()

	links, err := s.AllLinks(ctx, sheet)
	if err != nil {
		return false, err
	}
	clean := NormalizeLink(row.Link)
	for _, l := range links {
		if NormalizeLink(l) == clean {
			log.Info().Str("sheet", sheet).Str("link", row.Link).Msg("Duplicate bug, skipping prepend")
			return false, nil
		}
	}

	if err := s.EnsureHeaders(ctx, sheet); err != nil {
		return false, err
	}
	if err := s.structural.InsertRows(ctx, sheet, 1, 2); err != nil {
		return false, err
	}
	cells := []string{
		row.From,
		row.Type,
		row.Code,
		row.Product,
		row.Role,
		row.Feature,
		row.Reporter,
		row.ReportingDateTime,
		row.Description,
		"", // Step Reproduce
		row.Severity,
		row.Urgency,
		"", // Assignee
		"", // Status
		"", // Scheduled Release On
		row.Link,
		"", // Note
	}
	if err := s.values.Update(ctx, rowRange(sheet, bugHeaders, 2), [][]string{cells}); err != nil {
		return false, err
	}
	log.Info().Str("sheet", sheet).Str("code", row.Code).Msg("Bug row prepended")
	return true, nil
}
