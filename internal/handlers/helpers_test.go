package handlers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/unica-api/internal/constants"
	"github.com/yukikurage/unica-api/internal/database"
	apierrors "github.com/yukikurage/unica-api/internal/errors"
	"github.com/yukikurage/unica-api/internal/models"
	"github.com/yukikurage/unica-api/internal/repository"
	"github.com/yukikurage/unica-api/internal/sequence"
	"github.com/yukikurage/unica-api/internal/services"
	"github.com/yukikurage/unica-api/internal/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	db *gorm.DB

	authService       *services.AuthService
	orgService        *services.OrganizationService
	projectService    *services.ProjectService
	taskService       *services.TaskService
	discussionService *services.DiscussionService

	auth        *AuthHandler
	orgs        *OrganizationHandler
	projects    *ProjectHandler
	tasks       *TaskHandler
	discussions *DiscussionHandler
}

func setupTestEnv(t *testing.T) testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	database.ConfigureRetries(3, nil, nil)

	log := zap.NewNop()
	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	discussionRepo := repository.NewDiscussionRepository(db)
	allocator := sequence.NewAllocator(db, nil, log)

	env := testEnv{
		db:                db,
		authService:       services.NewAuthService(userRepo, log),
		orgService:        services.NewOrganizationService(orgRepo, userRepo, log),
		projectService:    services.NewProjectService(projectRepo, orgRepo, log),
		taskService:       services.NewTaskService(taskRepo, allocator, nil, log, constants.MaxPinnedTasks),
		discussionService: services.NewDiscussionService(discussionRepo, allocator, log),
	}
	propertyService := services.NewPropertyService(projectRepo, nil, log)

	env.auth = NewAuthHandler(env.authService, log)
	env.orgs = NewOrganizationHandler(env.orgService, log)
	env.projects = NewProjectHandler(env.projectService, propertyService, env.taskService, log)
	env.tasks = NewTaskHandler(env.taskService, log)
	env.discussions = NewDiscussionHandler(env.discussionService, log)
	return env
}

// testContext builds a context as if RequireAuth had accepted userID.
func testContext(method, url string, body []byte, userID uint64) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Set(constants.ContextKeyUserID, userID)

	return c, w
}

func withParams(c *gin.Context, kv ...string) {
	for i := 0; i+1 < len(kv); i += 2 {
		c.Params = append(c.Params, gin.Param{Key: kv[i], Value: kv[i+1]})
	}
}

// withOrganization stands in for RequireOrganizationAccess.
func (env testEnv) withOrganization(t *testing.T, c *gin.Context, orgID, userID uint64) {
	t.Helper()
	org, err := env.orgService.GetOrganization(orgID)
	require.NoError(t, err)
	member, err := env.orgService.GetMembership(orgID, userID)
	require.NoError(t, err)
	c.Set(constants.ContextKeyOrganization, org)
	c.Set(constants.ContextKeyOrganizationMember, member)
}

// withProject stands in for RequireProjectAccess and always loads the
// current property definitions.
func (env testEnv) withProject(t *testing.T, c *gin.Context, projectID uint64) {
	t.Helper()
	project, err := env.projectService.GetProject(projectID)
	require.NoError(t, err)
	c.Set(constants.ContextKeyProject, project)
}

func (env testEnv) withDiscussion(t *testing.T, c *gin.Context, orgID uint64) {
	t.Helper()
	discussion, err := env.discussionService.GetDiscussion(orgID)
	require.NoError(t, err)
	c.Set(constants.ContextKeyDiscussion, discussion)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return body
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[apierrors.APIError](t, w).Code
}

func orgProject(t *testing.T, db *gorm.DB, orgID uint64) *models.Project {
	return testutil.CreateProject(t, db, "board", models.ProjectOwnerOrganization, orgID)
}
