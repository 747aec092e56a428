package database

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockRow takes an exclusive lock on the row of table with the given id until
// tx ends. It returns gorm.ErrRecordNotFound when the row does not exist.
func LockRow(tx *gorm.DB, table string, id uint64) error {
	return LockWhere(tx, table, "id = ?", id)
}

// LockWhere locks the rows of table matching query until tx ends, and returns
// gorm.ErrRecordNotFound when none match.
//
// SQLite has no row locks. There the rows are rewritten in place, which takes
// the database write lock; run it as the first statement of the transaction
// so a busy writer is waited for instead of failing the upgrade.
func LockWhere(tx *gorm.DB, table string, query string, args ...any) error {
	if tx.Dialector.Name() == "sqlite" {
		result := tx.Table(table).Where(query, args...).UpdateColumn("id", gorm.Expr("id"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	}

	var ids []uint64
	if err := tx.Table(table).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(query, args...).
		Pluck("id", &ids).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
