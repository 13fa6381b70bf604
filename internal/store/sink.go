package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"opshub/internal/config"

	"github.com/supabase-community/supabase-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = errors.New("not found")

const defaultBatchSize = 200

// Sink is where sync jobs write the rows they fetched. rows must be a slice
// of models; conflict names the natural-key columns.
type Sink interface {
	Upsert(ctx context.Context, table string, conflict []string, rows interface{}) (int, error)
}

// NewSink picks the sink configured by STORE_BACKEND.
func NewSink(cfg *config.Config, db *gorm.DB) (Sink, error) {
	switch cfg.StoreBackend {
	case "supabase":
		return NewSupabaseSink(cfg.SupabaseURL, cfg.SupabaseServiceKey)
	default:
		return NewGormSink(db), nil
	}
}

type GormSink struct {
	db        *gorm.DB
	batchSize int
}

func NewGormSink(db *gorm.DB) *GormSink {
	return &GormSink{db: db, batchSize: defaultBatchSize}
}

func (s *GormSink) Upsert(ctx context.Context, table string, conflict []string, rows interface{}) (int, error) {
	n, err := sliceLen(rows)
	if err != nil || n == 0 {
		return 0, err
	}

	cols := make([]clause.Column, len(conflict))
	for i, name := range conflict {
		cols[i] = clause.Column{Name: name}
	}

	result := s.db.WithContext(ctx).
		Table(table).
		Clauses(clause.OnConflict{Columns: cols, UpdateAll: true}).
		CreateInBatches(rows, s.batchSize)
	if result.Error != nil {
		return 0, fmt.Errorf("upsert %s: %w", table, result.Error)
	}
	return n, nil
}

// SupabaseSink writes through PostgREST for deployments where the job runner
// only holds the service key, not a database connection.
type SupabaseSink struct {
	client    *supabase.Client
	batchSize int
}

func NewSupabaseSink(url, serviceKey string) (*SupabaseSink, error) {
	client, err := supabase.NewClient(url, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &SupabaseSink{client: client, batchSize: defaultBatchSize}, nil
}

func (s *SupabaseSink) Upsert(ctx context.Context, table string, conflict []string, rows interface{}) (int, error) {
	records, err := toRecords(rows)
	if err != nil {
		return 0, fmt.Errorf("upsert %s: %w", table, err)
	}

	onConflict := strings.Join(conflict, ",")
	written := 0
	for start := 0; start < len(records); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		end := start + s.batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]
		if _, _, err := s.client.From(table).Upsert(batch, onConflict, "minimal", "").Execute(); err != nil {
			return written, fmt.Errorf("upsert %s: %w", table, err)
		}
		written += len(batch)
	}
	return written, nil
}

// toRecords turns model structs into column maps without the keys the
// database owns, so an upsert never rewrites an existing primary key.
func toRecords(rows interface{}) ([]map[string]interface{}, error) {
	raw, err := json.Marshal(rows)
	if err != nil {
		return nil, err
	}
	var records []map[string]interface{}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range records {
		delete(r, "id")
		delete(r, "created_at")
		r["updated_at"] = now
	}
	return records, nil
}

func sliceLen(rows interface{}) (int, error) {
	v := reflect.ValueOf(rows)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Slice {
		return 0, fmt.Errorf("rows must be a slice, got %T", rows)
	}
	return v.Len(), nil
}
