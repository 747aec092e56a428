// Package sequence hands out per-parent local ids. The next id of a parent is
// max(local_id)+1 over all of its children, soft-deleted ones included,
// computed while the parent row is locked. Where the store has row locks,
// allocations under different parents never wait for each other.
package sequence

import (
	"context"
	"errors"
	"fmt"

	"github.com/yukikurage/unica-api/internal/database"
	"github.com/yukikurage/unica-api/internal/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrParentNotFound is returned when the scope's parent row does not exist.
	ErrParentNotFound = errors.New("sequence parent not found")
	// ErrConcurrencyViolation means another transaction took the same local id.
	// It is retryable through database.Transact.
	ErrConcurrencyViolation = fmt.Errorf("%w: local id already taken", database.ErrRetry)
)

// Sequenced is a child row that receives a local id.
type Sequenced interface {
	SetLocalID(id int)
}

// Scope identifies the parent whose children share one local id namespace.
type Scope struct {
	ParentTable string
	ChildTable  string
	ForeignKey  string
	ParentID    uint64
}

func (s Scope) String() string {
	return fmt.Sprintf("%s(%s=%d)", s.ChildTable, s.ForeignKey, s.ParentID)
}

// Topics numbers the topics of a discussion.
func Topics(discussionID uint64) Scope {
	return Scope{ParentTable: "discussions", ChildTable: "discussion_topics", ForeignKey: "discussion_id", ParentID: discussionID}
}

// Comments numbers the comments of a topic.
func Comments(topicID uint64) Scope {
	return Scope{ParentTable: "discussion_topics", ChildTable: "discussion_comments", ForeignKey: "topic_id", ParentID: topicID}
}

// Categories numbers the categories of a discussion.
func Categories(discussionID uint64) Scope {
	return Scope{ParentTable: "discussions", ChildTable: "discussion_categories", ForeignKey: "discussion_id", ParentID: discussionID}
}

// Tasks numbers the tasks of a task collection.
func Tasks(collectionID uint64) Scope {
	return Scope{ParentTable: "task_collections", ChildTable: "tasks", ForeignKey: "collection_id", ParentID: collectionID}
}

// Lock takes the exclusive lock that serializes allocations under s. It must
// run inside a transaction, ahead of any read; the lock is held until it ends.
func Lock(tx *gorm.DB, s Scope) error {
	if err := database.LockRow(tx, s.ParentTable, s.ParentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s %d", ErrParentNotFound, s.ParentTable, s.ParentID)
		}
		return fmt.Errorf("failed to lock %s %d: %w", s.ParentTable, s.ParentID, err)
	}
	return nil
}

// Next locks the parent of s and returns the next free local id.
func Next(tx *gorm.DB, s Scope) (int, error) {
	if err := Lock(tx, s); err != nil {
		return 0, err
	}

	var max int
	if err := tx.Table(s.ChildTable).
		Where(s.ForeignKey+" = ?", s.ParentID).
		Select("COALESCE(MAX(local_id), 0)").
		Scan(&max).Error; err != nil {
		return 0, fmt.Errorf("failed to read max local id of %s: %w", s, err)
	}
	return max + 1, nil
}

// Insert assigns the next local id of s to child and inserts it with tx.
func Insert(tx *gorm.DB, s Scope, child Sequenced) (int, error) {
	id, err := Next(tx, s)
	if err != nil {
		return 0, err
	}
	if err := create(tx, s, child, id); err != nil {
		return 0, err
	}
	return id, nil
}

func create(tx *gorm.DB, s Scope, child Sequenced, id int) error {
	child.SetLocalID(id)
	if err := tx.Omit(clause.Associations).Create(child).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s local id %d", ErrConcurrencyViolation, s, id)
		}
		return fmt.Errorf("failed to insert into %s: %w", s.ChildTable, err)
	}
	return nil
}

// Hooks run inside the allocation transaction. Before runs once the parent is
// locked, ahead of the insert; After runs once the child has its row.
type Hooks struct {
	Before func(tx *gorm.DB) error
	After  func(tx *gorm.DB) error
}

// Allocator runs allocate-and-insert as its own retried transaction.
type Allocator struct {
	db      *gorm.DB
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewAllocator creates an Allocator. m may be nil.
func NewAllocator(db *gorm.DB, m *metrics.Metrics, logger *zap.Logger) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Allocator{db: db, metrics: m, logger: logger}
}

// Create inserts child under s with the next local id. An error from either
// hook rolls the whole allocation back.
func (a *Allocator) Create(ctx context.Context, s Scope, child Sequenced, hooks Hooks) (int, error) {
	var localID int
	err := database.Transact(ctx, a.db, func(tx *gorm.DB) error {
		id, err := Next(tx, s)
		if err != nil {
			return err
		}
		if hooks.Before != nil {
			if err := hooks.Before(tx); err != nil {
				return err
			}
		}
		if err := create(tx, s, child, id); err != nil {
			return err
		}
		if hooks.After != nil {
			if err := hooks.After(tx); err != nil {
				return err
			}
		}
		localID = id
		return nil
	})
	if err != nil {
		return 0, err
	}

	a.metrics.IncrementLocalIDAllocated(s.ChildTable)
	a.logger.Debug("Allocated local id",
		zap.String("table", s.ChildTable),
		zap.Uint64("parent_id", s.ParentID),
		zap.Int("local_id", localID),
	)
	return localID, nil
}
