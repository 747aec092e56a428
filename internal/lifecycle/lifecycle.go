// Package lifecycle holds the soft delete and ancestor touch steps shared by
// tasks, topics and comments. Callers invoke them explicitly inside the
// transaction that performs the mutation.
package lifecycle

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrAlreadyDeleted is returned when the row is missing or already soft-deleted.
var ErrAlreadyDeleted = errors.New("entity not found or already deleted")

// Ancestor is a row whose updated_at follows the activity of its children.
type Ancestor struct {
	Table string
	ID    uint64
}

// Project is the ancestor of a task.
func Project(id uint64) Ancestor { return Ancestor{Table: "projects", ID: id} }

// Topic is the ancestor of a comment.
func Topic(id uint64) Ancestor { return Ancestor{Table: "discussion_topics", ID: id} }

// Touch stamps the ancestor's updated_at with the transaction clock.
func Touch(tx *gorm.DB, a Ancestor) error {
	if err := tx.Table(a.Table).
		Where("id = ?", a.ID).
		UpdateColumn("updated_at", tx.NowFunc()).Error; err != nil {
		return fmt.Errorf("failed to touch %s %d: %w", a.Table, a.ID, err)
	}
	return nil
}

// MarkDeleted sets the deleted flag on model, which must carry its primary
// key. The row itself is kept.
func MarkDeleted(tx *gorm.DB, model any) error {
	res := tx.Model(model).Where("deleted = ?", false).Update("deleted", true)
	if res.Error != nil {
		return fmt.Errorf("failed to soft delete: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyDeleted
	}
	return nil
}

// SoftDelete marks model deleted and touches each ancestor.
func SoftDelete(tx *gorm.DB, model any, ancestors ...Ancestor) error {
	if err := MarkDeleted(tx, model); err != nil {
		return err
	}
	for _, a := range ancestors {
		if err := Touch(tx, a); err != nil {
			return err
		}
	}
	return nil
}
