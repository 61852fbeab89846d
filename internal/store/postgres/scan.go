package postgres

import (
	"github.com/alfredjeanlab/orggraph/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanProfile scans a single row into a model.Profile.
// The row must contain columns in the order defined by profileColumns.
func scanProfile(row scannable) (*model.Profile, error) {
	var p model.Profile
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.IsActive,
		&p.SchemaVersion,
		&p.RelationshipsCount,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// jsonbBytes passes a document through as JSONB, storing NULL when empty.
func jsonbBytes(doc []byte) any {
	if len(doc) == 0 {
		return nil
	}
	return string(doc)
}
