package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/metasync/internal/model"
)

// CreatePendingExport inserts a Pending Export and all of its attribute changes.
//
// Returns ErrPendingExportExists if the target connected system object
// already has a Pending Export.
func (s *Store) CreatePendingExport(ctx context.Context, pe *model.PendingExport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create pending export: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pending_exports
		(id, connected_system_id, connected_system_object_id, source_metaverse_object_id, change_type, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		pe.ID.String(),
		pe.ConnectedSystemID,
		pe.ConnectedSystemObjectID.String(),
		nullableUUID(pe.SourceMetaverseObjectID),
		int(pe.ChangeType),
		int(pe.Status),
		formatTime(pe.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create pending export for cso %s: %w", pe.ConnectedSystemObjectID, ErrPendingExportExists)
		}
		return fmt.Errorf("create pending export: insert: %w", err)
	}

	if err := insertChanges(ctx, tx, pe); err != nil {
		return fmt.Errorf("create pending export: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create pending export: commit: %w", err)
	}
	return nil
}

// UpdatePendingExport replaces the stored Pending Export with pe.
// The attribute change collection is rewritten in full, so changes removed
// from pe.AttributeChanges are removed from the store.
//
// Returns ErrNotFound if no Pending Export with pe.ID exists.
func (s *Store) UpdatePendingExport(ctx context.Context, pe *model.PendingExport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update pending export: begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE pending_exports
		SET connected_system_id = ?,
		    connected_system_object_id = ?,
		    source_metaverse_object_id = ?,
		    change_type = ?,
		    status = ?
		WHERE id = ?
	`,
		pe.ConnectedSystemID,
		pe.ConnectedSystemObjectID.String(),
		nullableUUID(pe.SourceMetaverseObjectID),
		int(pe.ChangeType),
		int(pe.Status),
		pe.ID.String(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update pending export %s: %w", pe.ID, ErrPendingExportExists)
		}
		return fmt.Errorf("update pending export: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update pending export: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("update pending export %s: %w", pe.ID, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM pending_export_attribute_changes WHERE pending_export_id = ?
	`, pe.ID.String()); err != nil {
		return fmt.Errorf("update pending export: clear changes: %w", err)
	}

	if err := insertChanges(ctx, tx, pe); err != nil {
		return fmt.Errorf("update pending export: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update pending export: commit: %w", err)
	}
	return nil
}

// DeletePendingExport removes a Pending Export and its attribute changes.
// Deleting a Pending Export that does not exist returns ErrNotFound.
func (s *Store) DeletePendingExport(ctx context.Context, pe *model.PendingExport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete pending export: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM pending_export_attribute_changes WHERE pending_export_id = ?
	`, pe.ID.String()); err != nil {
		return fmt.Errorf("delete pending export: changes: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM pending_exports WHERE id = ?`, pe.ID.String())
	if err != nil {
		return fmt.Errorf("delete pending export: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete pending export: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("delete pending export %s: %w", pe.ID, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete pending export: commit: %w", err)
	}
	return nil
}

// insertChanges writes every attribute change of pe in collection order.
func insertChanges(ctx context.Context, tx *sql.Tx, pe *model.PendingExport) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pending_export_attribute_changes
		(id, pending_export_id, position, attribute_id, change_type, data_type,
		 string_value, int_value, long_value, datetime_value, bool_value, guid_value, byte_value, unresolved_reference_value,
		 status, export_attempt_count, last_exported_at, last_imported_value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare change insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range pe.AttributeChanges {
		cols, err := marshalValue(c.Value)
		if err != nil {
			return fmt.Errorf("change %s: %w", c.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			c.ID.String(),
			pe.ID.String(),
			i,
			c.AttributeID,
			int(c.ChangeType),
			cols.DataType,
			cols.String,
			cols.Int,
			cols.Long,
			cols.DateTime,
			cols.Bool,
			cols.GUID,
			cols.Bytes,
			cols.UnresolvedRef,
			int(c.Status),
			c.ExportAttemptCount,
			nullableTime(c.LastExportedAt),
			c.LastImportedValue,
		)
		if err != nil {
			return fmt.Errorf("insert change %s: %w", c.ID, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
