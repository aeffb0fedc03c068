package ledger

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Row is one main-ledger entry. SLA columns are not part of the row: they
// are written as formulas at insert time.
type Row struct {
	From              string
	Type              string
	Product           string
	Role              string
	Feature           string
	Reporter          string
	ReportingDateTime string
	ResponseTime      string
	Responder         string
	Description       string
	Severity          string
	Urgency           string
	Link              string
}

// NormalizeLink strips the tracking suffix Slack appends to copied
// permalinks, so dedupe compares canonical values.
func NormalizeLink(link string) string {
	if i := strings.Index(link, "&cid="); i >= 0 {
		return link[:i]
	}
	return link
}

// keyedMutex serializes operations per key. The check-then-insert in
// PrependRow must not interleave for the same permalink.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// Store is the main intake ledger.
type Store struct {
	values     ValuesAPI
	structural StructuralAPI
	links      *keyedMutex
}

func NewStore(values ValuesAPI, structural StructuralAPI) *Store {
	return &Store{values: values, structural: structural, links: newKeyedMutex()}
}

// EnsureHeaders writes the header row when it is missing or shorter than
// the schema.
func (s *Store) EnsureHeaders(ctx context.Context, sheet string) error {
	return ensureHeaders(ctx, s.values, sheet, mainHeaders)
}

// CreateSheetIfAbsent adds the named sheet with headers when it does not
// exist yet. Idempotent.
func (s *Store) CreateSheetIfAbsent(ctx context.Context, sheet string) error {
	names, err := s.structural.SheetNames(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		if n == sheet {
			return nil
		}
	}
	if err := s.structural.AddSheet(ctx, sheet); err != nil {
		return err
	}
	return s.EnsureHeaders(ctx, sheet)
}

// SheetNames lists every sheet in the spreadsheet.
func (s *Store) SheetNames(ctx context.Context) ([]string, error) {
	return s.structural.SheetNames(ctx)
}

// AllLinks returns the Link Message column below the header, positionally,
// including empty cells for rows that have one.
func (s *Store) AllLinks(ctx context.Context, sheet string) ([]string, error) {
	return allLinks(ctx, s.values, sheet, mainHeaders)
}

// HasLink reports whether the normalized permalink is already recorded.
func (s *Store) HasLink(ctx context.Context, sheet, link string) (bool, error) {
	links, err := s.AllLinks(ctx, sheet)
	if err != nil {
		return false, err
	}
	clean := NormalizeLink(link)
	for _, l := range links {
		if NormalizeLink(l) == clean {
			return true, nil
		}
	}
	return false, nil
}

// PrependRow inserts the row directly below the header, keeping the ledger
// newest-first. Returns false without writing when the permalink is already
// present. The per-link lock makes the duplicate check and the insert
// atomic with respect to concurrent events for the same thread.
func (s *Store) PrependRow(ctx context.Context, row Row, sheet string) (bool, error) {
	unlock := s.links.lock(NormalizeLink(row.Link))
	defer unlock()

	dup, err := s.HasLink(ctx, sheet, row.Link)
	if err != nil {
		return false, err
	}
	if dup {
		log.Info().Str("sheet", sheet).Str("link", row.Link).Msg("Duplicate thread, skipping prepend")
		return false, nil
	}

	if err := s.EnsureHeaders(ctx, sheet); err != nil {
		return false, err
	}
	if err := s.structural.InsertRows(ctx, sheet, 1, 2); err != nil {
		return false, err
	}

	cells := row.cells(2)
	if err := s.values.Update(ctx, rowRange(sheet, mainHeaders, 2), [][]string{cells}); err != nil {
		return false, err
	}
	log.Info().Str("sheet", sheet).Str("link", row.Link).Msg("Row prepended")
	return true, nil
}

// UpdateColumnByLink finds the row whose Link Message matches the
// normalized link and writes value into the named column. Returns false
// when no row matches.
func (s *Store) UpdateColumnByLink(ctx context.Context, sheet, link, column, value string) (bool, error) {
	rows, err := s.values.Get(ctx, dataRange(sheet, mainHeaders))
	if err != nil {
		return false, err
	}
	if len(rows) < 2 {
		return false, nil
	}
	header := rows[0]
	linkIdx := headerIndex(header, ColLinkMessage)
	colIdx := headerIndex(header, column)
	if linkIdx < 0 || colIdx < 0 {
		return false, nil
	}

	clean := NormalizeLink(link)
	for i, row := range rows[1:] {
		if len(row) > linkIdx && row[linkIdx] != "" && NormalizeLink(row[linkIdx]) == clean {
			cell := columnLetter(colIdx+1) + strconv.Itoa(i+2)
			rng := sheet + "!" + cell
			if err := s.values.Update(ctx, rng, [][]string{{value}}); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

func (r Row) cells(rowNum int) []string {
	return []string{
		r.From,
		r.Type,
		"", // Number of Feedback
		r.Product,
		r.Role,
		r.Feature,
		r.Reporter,
		r.ReportingDateTime,
		r.ResponseTime,
		"", // Resolution Time
		"", // Deployment Time
		responseSLAFormula(rowNum),
		resolutionSLAFormula(rowNum),
		resolveSLAFormula(rowNum),
		slaStatusFormula(rowNum),
		r.Responder,
		r.Description,
		"", // Step Reproduce
		r.Severity,
		r.Urgency,
		slaTargetFormula(rowNum),
		"", // Assignee
		"", // Status
		"", // Scheduled Release On
		r.Link,
		"", // Related Ticket
	}
}

func ensureHeaders(ctx context.Context, values ValuesAPI, sheet string, headers []string) error {
	rows, err := values.Get(ctx, headerRange(sheet, headers))
	if err != nil {
		return err
	}
	if len(rows) > 0 && len(rows[0]) >= len(headers) {
		return nil
	}
	return values.Update(ctx, headerRange(sheet, headers), [][]string{headers})
}

func allLinks(ctx context.Context, values ValuesAPI, sheet string, headers []string) ([]string, error) {
	rows, err := values.Get(ctx, dataRange(sheet, headers))
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, nil
	}
	linkIdx := headerIndex(rows[0], ColLinkMessage)
	if linkIdx < 0 {
		return nil, nil
	}
	var links []string
	for _, row := range rows[1:] {
		if len(row) > linkIdx {
			links = append(links, row[linkIdx])
		}
	}
	return links, nil
}
