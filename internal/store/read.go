package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/metasync/internal/model"
)

const pendingExportColumns = `
	id, connected_system_id, connected_system_object_id, source_metaverse_object_id,
	change_type, status, created_at`

// GetPendingExportByTargetObjectID returns the single Pending Export targeting
// the given connected system object, or (nil, nil) if there is none.
func (s *Store) GetPendingExportByTargetObjectID(ctx context.Context, csoID uuid.UUID) (*model.PendingExport, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+pendingExportColumns+`
		FROM pending_exports
		WHERE connected_system_object_id = ?
	`, csoID.String())

	pe, err := scanPendingExport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pending export for cso %s: %w", csoID, err)
	}

	if err := s.loadChanges(ctx, pe); err != nil {
		return nil, fmt.Errorf("get pending export for cso %s: %w", csoID, err)
	}
	return pe, nil
}

// GetPendingExport returns a Pending Export by its own id.
// Returns ErrNotFound if it does not exist.
func (s *Store) GetPendingExport(ctx context.Context, id uuid.UUID) (*model.PendingExport, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+pendingExportColumns+`
		FROM pending_exports
		WHERE id = ?
	`, id.String())

	pe, err := scanPendingExport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get pending export %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get pending export %s: %w", id, err)
	}

	if err := s.loadChanges(ctx, pe); err != nil {
		return nil, fmt.Errorf("get pending export %s: %w", id, err)
	}
	return pe, nil
}

// ListPendingExports returns every Pending Export with its changes,
// ordered by created_at ASC, id ASC.
//
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListPendingExports(ctx context.Context) ([]*model.PendingExport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+pendingExportColumns+`
		FROM pending_exports
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query pending exports: %w", err)
	}

	exports := []*model.PendingExport{}
	for rows.Next() {
		pe, err := scanPendingExport(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan pending export: %w", err)
		}
		exports = append(exports, pe)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate pending exports: %w", err)
	}
	// Close before loading children: the store holds a single connection.
	rows.Close()

	for _, pe := range exports {
		if err := s.loadChanges(ctx, pe); err != nil {
			return nil, err
		}
	}
	return exports, nil
}

// CountPendingExports returns the number of stored Pending Exports.
func (s *Store) CountPendingExports(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_exports`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending exports: %w", err)
	}
	return n, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPendingExport(row rowScanner) (*model.PendingExport, error) {
	var (
		pe                   model.PendingExport
		id, csoID, createdAt string
		mvoID                sql.NullString
		changeType, status   int
	)
	if err := row.Scan(&id, &pe.ConnectedSystemID, &csoID, &mvoID, &changeType, &status, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if pe.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("pending export id: %w", err)
	}
	if pe.ConnectedSystemObjectID, err = uuid.Parse(csoID); err != nil {
		return nil, fmt.Errorf("connected system object id: %w", err)
	}
	if mvoID.Valid {
		u, err := uuid.Parse(mvoID.String)
		if err != nil {
			return nil, fmt.Errorf("source metaverse object id: %w", err)
		}
		pe.SourceMetaverseObjectID = &u
	}
	if pe.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	pe.ChangeType = model.PendingExportChangeType(changeType)
	pe.Status = model.PendingExportStatus(status)
	pe.AttributeChanges = []model.AttributeChange{}
	return &pe, nil
}

// loadChanges reads pe's attribute changes in collection order.
func (s *Store) loadChanges(ctx context.Context, pe *model.PendingExport) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, attribute_id, change_type, data_type,
		       string_value, int_value, long_value, datetime_value, bool_value, guid_value, byte_value, unresolved_reference_value,
		       status, export_attempt_count, last_exported_at, last_imported_value
		FROM pending_export_attribute_changes
		WHERE pending_export_id = ?
		ORDER BY position ASC
	`, pe.ID.String())
	if err != nil {
		return fmt.Errorf("query attribute changes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return err
		}
		c.PendingExportID = pe.ID
		pe.AttributeChanges = append(pe.AttributeChanges, c)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate attribute changes: %w", err)
	}
	return nil
}

func scanChange(rows *sql.Rows) (model.AttributeChange, error) {
	var (
		c                  model.AttributeChange
		id                 string
		changeType, status int
		cols               valueColumns
		lastExportedAt     sql.NullString
	)
	if err := rows.Scan(
		&id, &c.AttributeID, &changeType, &cols.DataType,
		&cols.String, &cols.Int, &cols.Long, &cols.DateTime, &cols.Bool, &cols.GUID, &cols.Bytes, &cols.UnresolvedRef,
		&status, &c.ExportAttemptCount, &lastExportedAt, &c.LastImportedValue,
	); err != nil {
		return model.AttributeChange{}, fmt.Errorf("scan attribute change: %w", err)
	}

	var err error
	if c.ID, err = uuid.Parse(id); err != nil {
		return model.AttributeChange{}, fmt.Errorf("attribute change id: %w", err)
	}
	c.ChangeType = model.AttributeChangeType(changeType)
	c.Status = model.AttributeChangeStatus(status)

	if c.Value, err = unmarshalValue(&cols); err != nil {
		return model.AttributeChange{}, fmt.Errorf("attribute change %s: %w", c.ID, err)
	}
	if lastExportedAt.Valid {
		ts, err := parseTime(lastExportedAt.String)
		if err != nil {
			return model.AttributeChange{}, err
		}
		c.LastExportedAt = &ts
	}
	return c, nil
}
