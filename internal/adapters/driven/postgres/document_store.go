package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/docfield-core/internal/core/domain"
	"github.com/custodia-labs/docfield-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore implements driven.DocumentStore using PostgreSQL
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Get retrieves a document by ID
func (s *DocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	query := `
		SELECT id, tenant, object_key, status, pages, sha256, model_version,
		       error_message, processing_time, created_at, updated_at
		FROM documents
		WHERE id = $1
	`

	var doc domain.Document
	var modelVersion, errorMessage sql.NullString
	var processingTime sql.NullFloat64

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&doc.ID,
		&doc.Tenant,
		&doc.ObjectKey,
		&doc.Status,
		&doc.Pages,
		&doc.SHA256,
		&modelVersion,
		&errorMessage,
		&processingTime,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get document: %v", domain.ErrPersistence, err)
	}

	doc.ModelVersion = modelVersion.String
	doc.ErrorMessage = errorMessage.String
	doc.ProcessingTime = Float64Ptr(processingTime)
	return &doc, nil
}

// Create inserts a document in RECEIVED state. Inserting an existing ID is
// a no-op; the ingestion collaborator usually creates the row first and the
// worker only fills the gap.
func (s *DocumentStore) Create(ctx context.Context, doc *domain.Document) error {
	query := `
		INSERT INTO documents (id, tenant, object_key, status, sha256, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (id) DO NOTHING
	`

	status := doc.Status
	if status == "" {
		status = domain.StatusReceived
	}

	_, err := s.db.ExecContext(ctx, query, doc.ID, doc.Tenant, doc.ObjectKey, status, doc.SHA256)
	if err != nil {
		return fmt.Errorf("%w: create document: %v", domain.ErrPersistence, err)
	}
	return nil
}

// TransitionProcessing moves a document into PROCESSING with a guarded
// UPDATE: legal from RECEIVED and FAILED, and from a PROCESSING row whose
// updated_at is older than staleAfter (the previous worker died).
func (s *DocumentStore) TransitionProcessing(ctx context.Context, id string, staleAfter time.Duration) error {
	query := `
		UPDATE documents
		SET status = $1, updated_at = NOW()
		WHERE id = $2
		  AND (status IN ($3, $4)
		       OR (status = $1 AND updated_at < NOW() - $5::interval))
	`

	interval := fmt.Sprintf("%f seconds", staleAfter.Seconds())
	res, err := s.db.ExecContext(ctx, query,
		domain.StatusProcessing, id, domain.StatusReceived, domain.StatusFailed, interval)
	if err != nil {
		return fmt.Errorf("%w: transition to processing: %v", domain.ErrPersistence, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: transition to processing: %v", domain.ErrPersistence, err)
	}
	if affected == 0 {
		// Distinguish missing documents from illegal transitions.
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM documents WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("%w: transition to processing: %v", domain.ErrPersistence, err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrInvalidTransition
	}
	return nil
}

// CommitResult records one processing outcome atomically: the document row
// is updated and its field records replaced. Readers never observe a
// partial field set.
func (s *DocumentStore) CommitResult(ctx context.Context, id string, outcome domain.ProcessOutcome) error {
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		update := `
			UPDATE documents
			SET status = $1,
			    pages = GREATEST(pages, $2),
			    error_message = $3,
			    model_version = $4,
			    processing_time = $5,
			    updated_at = NOW()
			WHERE id = $6
		`
		res, err := tx.ExecContext(ctx, update,
			outcome.Status,
			outcome.Pages,
			NullString(strPtrOrNil(outcome.ErrorMessage)),
			NullString(strPtrOrNil(outcome.ModelVersion)),
			outcome.ProcessingTime,
			id,
		)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrNotFound
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM field_records WHERE document_id = $1`, id); err != nil {
			return err
		}
		if len(outcome.Fields) == 0 {
			return nil
		}

		insert := `
			INSERT INTO field_records (id, document_id, field_name, field_value, confidence, page, bbox, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		`
		stmt, err := tx.PrepareContext(ctx, insert)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, f := range outcome.Fields {
			var bboxJSON []byte
			if f.BBox != nil {
				bboxJSON, err = json.Marshal(f.BBox)
				if err != nil {
					return err
				}
			}

			var conf sql.NullFloat64
			if f.Confidence != nil {
				conf = sql.NullFloat64{Float64: domain.NormalizeConfidence(*f.Confidence), Valid: true}
			}

			recID := f.ID
			if recID == "" {
				recID = domain.GenerateID()
			}

			if _, err := stmt.ExecContext(ctx,
				recID, id, f.FieldName,
				NullString(f.FieldValue),
				conf,
				NullInt32(f.Page),
				bboxJSON,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("%w: commit result: %v", domain.ErrPersistence, err)
	}
	return nil
}

// Ping checks if the store is reachable
func (s *DocumentStore) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return nil
}

// GetFields retrieves all field records for a document
func (s *DocumentStore) GetFields(ctx context.Context, documentID string) ([]domain.FieldRecord, error) {
	query := `
		SELECT id, document_id, field_name, field_value, confidence, page, bbox, created_at
		FROM field_records
		WHERE document_id = $1
		ORDER BY page NULLS LAST, field_name
	`

	rows, err := s.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("%w: get fields: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var records []domain.FieldRecord
	for rows.Next() {
		var r domain.FieldRecord
		var value sql.NullString
		var conf sql.NullFloat64
		var page sql.NullInt32
		var bboxJSON []byte

		if err := rows.Scan(&r.ID, &r.DocumentID, &r.FieldName, &value, &conf, &page, &bboxJSON, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan field record: %v", domain.ErrPersistence, err)
		}
		r.FieldValue = StringPtr(value)
		r.Confidence = Float64Ptr(conf)
		r.Page = IntPtr(page)
		if len(bboxJSON) > 0 {
			var box domain.BoundingBox
			if err := json.Unmarshal(bboxJSON, &box); err != nil {
				return nil, fmt.Errorf("%w: decode bbox: %v", domain.ErrPersistence, err)
			}
			r.BBox = &box
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: get fields: %v", domain.ErrPersistence, err)
	}
	return records, nil
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
