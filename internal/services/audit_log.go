package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/huangang/auditdesk/backend/internal/config"
	"github.com/huangang/auditdesk/backend/internal/logstore"
	"github.com/huangang/auditdesk/backend/internal/metrics"
)

const (
	// ActionAll is the filter value that disables the action predicate.
	ActionAll = "all"

	// DateLayout is the short date form accepted by ParseDate.
	DateLayout = "2006-01-02"

	defaultActor = "system"
	defaultIP    = "unknown"
)

var ErrInvalidCursor = logstore.ErrInvalidCursor

// LogEntry is the typed read model of one audit event.
type LogEntry struct {
	ID               string         `json:"id"`
	Action           string         `json:"action"`
	TargetID         string         `json:"targetId"`
	PerformedBy      string         `json:"performedBy"`
	PerformedByEmail string         `json:"performedByEmail"`
	Timestamp        time.Time      `json:"timestamp"`
	Details          string         `json:"details"`
	DetailsObject    map[string]any `json:"detailsObject"`
	IP               string         `json:"ip"`
}

// LogsFilter narrows audit log reads and deletions. SearchTerm is matched in
// memory against the fetched page only, never against the whole collection.
type LogsFilter struct {
	Action      string     `json:"action"`
	PerformedBy string     `json:"performedBy"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	SearchTerm  string     `json:"searchTerm"`
}

// LogPage is one window of a cursor-paginated read.
type LogPage struct {
	Entries []LogEntry `json:"entries"`
	HasMore bool       `json:"hasMore"`
	Cursor  string     `json:"cursor,omitempty"`
}

// RecordInput describes an audit action to append. Details is marshalled to
// JSON unless it is already a string or json.RawMessage.
type RecordInput struct {
	Action           string
	TargetID         string
	PerformedBy      string
	PerformedByEmail string
	IP               string
	Details          any
}

type AuditLogService struct {
	store  logstore.Store
	limits config.AuditConfig
	now    func() time.Time
}

func NewAuditLogService(store logstore.Store, limits config.AuditConfig) *AuditLogService {
	return &AuditLogService{
		store:  store,
		limits: limits.Normalized(),
		now:    time.Now,
	}
}

// Record appends one audit action. Entries are never updated afterwards.
func (s *AuditLogService) Record(ctx context.Context, in RecordInput) (*LogEntry, error) {
	details, err := encodeDetails(in.Details)
	if err != nil {
		return nil, fmt.Errorf("encode details: %w", err)
	}

	rec := &logstore.Record{
		Action:           in.Action,
		TargetID:         in.TargetID,
		PerformedBy:      orDefault(in.PerformedBy, defaultActor),
		PerformedByEmail: orDefault(in.PerformedByEmail, defaultActor),
		Timestamp:        s.now(),
		Details:          details,
		IP:               orDefault(in.IP, defaultIP),
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		return nil, err
	}
	metrics.AuditRecordsWritten.Inc()

	entry := toEntry(*rec)
	return &entry, nil
}

// FetchPage returns up to pageSize entries newest first, starting after cursor.
func (s *AuditLogService) FetchPage(ctx context.Context, pageSize int, filter *LogsFilter, cursor string) (*LogPage, error) {
	if pageSize <= 0 {
		pageSize = s.limits.PageSize
	}

	q := buildQuery(filter)
	if cursor != "" {
		pos, err := logstore.DecodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		q.After = &pos
	}
	q.Limit = pageSize + 1

	started := time.Now()
	records, err := s.store.Find(ctx, q)
	metrics.AuditQueryDuration.WithLabelValues("fetch_page").Observe(time.Since(started).Seconds())
	if err != nil {
		return nil, fmt.Errorf("fetch audit logs: %w", err)
	}

	page := &LogPage{Entries: []LogEntry{}}
	if len(records) > pageSize {
		page.HasMore = true
		records = records[:pageSize]
	}
	if len(records) > 0 {
		page.Cursor = logstore.EncodeCursor(records[len(records)-1].Position())
	}

	term := searchTerm(filter)
	for _, r := range records {
		entry := toEntry(r)
		if term == "" || entry.matchesSearch(term) {
			page.Entries = append(page.Entries, entry)
		}
	}
	return page, nil
}

// CountMatching counts every record matching filter. SearchTerm is ignored.
func (s *AuditLogService) CountMatching(ctx context.Context, filter *LogsFilter) (int64, error) {
	started := time.Now()
	n, err := s.store.Count(ctx, buildQuery(filter))
	metrics.AuditQueryDuration.WithLabelValues("count").Observe(time.Since(started).Seconds())
	if err != nil {
		return 0, fmt.Errorf("count audit logs: %w", err)
	}
	return n, nil
}

// ListDistinctActions samples the most recent records and returns their
// distinct actions sorted. Actions only present in older records are missed.
func (s *AuditLogService) ListDistinctActions(ctx context.Context) ([]string, error) {
	records, err := s.store.Find(ctx, logstore.Query{Limit: s.limits.ActionSampleSize})
	if err != nil {
		return nil, fmt.Errorf("sample audit actions: %w", err)
	}

	seen := make(map[string]struct{}, len(records))
	actions := make([]string, 0, len(records))
	for _, r := range records {
		if r.Action == "" {
			continue
		}
		if _, ok := seen[r.Action]; ok {
			continue
		}
		seen[r.Action] = struct{}{}
		actions = append(actions, r.Action)
	}
	sort.Strings(actions)
	return actions, nil
}

// ExportMatching returns at most ExportLimit entries newest first. The search
// term applies to that window.
func (s *AuditLogService) ExportMatching(ctx context.Context, filter *LogsFilter) ([]LogEntry, error) {
	q := buildQuery(filter)
	q.Limit = s.limits.ExportLimit

	started := time.Now()
	records, err := s.store.Find(ctx, q)
	metrics.AuditQueryDuration.WithLabelValues("export").Observe(time.Since(started).Seconds())
	if err != nil {
		return nil, fmt.Errorf("export audit logs: %w", err)
	}

	term := searchTerm(filter)
	entries := make([]LogEntry, 0, len(records))
	for _, r := range records {
		entry := toEntry(r)
		if term == "" || entry.matchesSearch(term) {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// buildQuery maps a filter to store predicates. A nil filter matches everything.
func buildQuery(filter *LogsFilter) logstore.Query {
	var q logstore.Query
	if filter == nil {
		return q
	}
	if filter.Action != "" && filter.Action != ActionAll {
		q.Action = filter.Action
	}
	q.PerformedBy = filter.PerformedBy
	q.Since = filter.StartDate
	q.Until = filter.EndDate
	return q
}

func searchTerm(filter *LogsFilter) string {
	if filter == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(filter.SearchTerm))
}

func (e LogEntry) matchesSearch(term string) bool {
	return strings.Contains(strings.ToLower(e.PerformedByEmail), term) ||
		strings.Contains(strings.ToLower(e.Action), term) ||
		strings.Contains(strings.ToLower(e.TargetID), term)
}

// toEntry converts a stored record into the read model. details is kept as
// stored; a payload that does not parse yields an empty DetailsObject.
func toEntry(r logstore.Record) LogEntry {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	obj := map[string]any{}
	if r.Details != "" {
		var parsed map[string]any
		if err := json.Unmarshal([]byte(r.Details), &parsed); err == nil && parsed != nil {
			obj = parsed
		}
	}

	return LogEntry{
		ID:               r.ID,
		Action:           r.Action,
		TargetID:         r.TargetID,
		PerformedBy:      orDefault(r.PerformedBy, defaultActor),
		PerformedByEmail: orDefault(r.PerformedByEmail, defaultActor),
		Timestamp:        ts.Local(),
		Details:          r.Details,
		DetailsObject:    obj,
		IP:               orDefault(r.IP, defaultIP),
	}
}

func encodeDetails(v any) (string, error) {
	switch d := v.(type) {
	case nil:
		return "{}", nil
	case string:
		return d, nil
	case json.RawMessage:
		return string(d), nil
	case []byte:
		return string(d), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// ParseDate reads a filter bound given as RFC 3339 or as a local
// YYYY-MM-DD date. With endOfDay a bare date covers that whole day. An
// empty value yields nil.
func ParseDate(v string, endOfDay bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation(DateLayout, v, time.Local)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// IsClientError reports whether err was caused by bad caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidCursor) || errors.Is(err, ErrInvalidRetention)
}
