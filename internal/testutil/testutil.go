// Package testutil builds the in-memory database and fixtures shared by tests.
package testutil

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yukikurage/unica-api/internal/database"
	"github.com/yukikurage/unica-api/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a migrated in-memory SQLite database and installs it as the
// default database. The pool holds one connection, so goroutines share the
// same database and their transactions run one at a time.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), database.GormConfig(logger.Silent))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(database.Models...))

	database.SetDB(db)
	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// NewConcurrentDB opens a migrated, file-backed SQLite database whose pool
// holds several connections, so concurrent transactions really overlap and
// only locks serialize them. Busy writers wait up to five seconds.
func NewConcurrentDB(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "concurrent.db")
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig(logger.Silent))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(8)

	require.NoError(t, db.AutoMigrate(database.Models...))

	database.SetDB(db)
	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// CountRetries installs a retry policy of attempts tries that counts every
// retried transaction. The default policy is restored when t ends.
func CountRetries(t testing.TB, attempts int) *atomic.Int32 {
	t.Helper()
	var retries atomic.Int32
	database.ConfigureRetries(attempts, func(int, error) { retries.Add(1) }, nil)
	t.Cleanup(func() {
		database.ConfigureRetries(3, nil, nil)
	})
	return &retries
}

func CreateUser(t testing.TB, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username:     username,
		DisplayName:  username,
		PasswordHash: "hashedpassword",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateOrganization creates an organization owned by ownerID.
func CreateOrganization(t testing.TB, db *gorm.DB, name string, ownerID uint64) *models.Organization {
	t.Helper()
	org := &models.Organization{Name: name}
	require.NoError(t, db.Create(org).Error)
	AddMember(t, db, org.ID, ownerID, models.RoleOwner)
	return org
}

func AddMember(t testing.TB, db *gorm.DB, orgID, userID uint64, role models.OrganizationRole) *models.OrganizationMember {
	t.Helper()
	member := &models.OrganizationMember{
		OrganizationID: orgID,
		UserID:         userID,
		Role:           role,
	}
	if role != models.RolePending {
		now := time.Now()
		member.JoinedAt = &now
	}
	require.NoError(t, db.Create(member).Error)
	return member
}

// CreateProject creates a project together with its task collection.
func CreateProject(t testing.TB, db *gorm.DB, name string, ownerType models.ProjectOwnerType, ownerID uint64) *models.Project {
	t.Helper()
	collection := &models.TaskCollection{}
	collection.SetDefinitions(nil)
	project := &models.Project{
		Name:       name,
		OwnerType:  ownerType,
		OwnerID:    ownerID,
		Collection: collection,
	}
	require.NoError(t, db.Create(project).Error)
	return project
}

// CreateDiscussion enables the discussion of an organization.
func CreateDiscussion(t testing.TB, db *gorm.DB, orgID uint64) *models.Discussion {
	t.Helper()
	discussion := &models.Discussion{OrganizationID: orgID}
	require.NoError(t, db.Create(discussion).Error)
	return discussion
}
