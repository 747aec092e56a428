package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yukikurage/unica-api/internal/models"
	"github.com/yukikurage/unica-api/internal/properties"
	"github.com/yukikurage/unica-api/internal/testutil"
	"github.com/yukikurage/unica-api/internal/utils"
)

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func (s *serviceSuite) withStatusProperty(project *models.Project) {
	_, err := s.props.UpsertDefinition(context.Background(), project, []byte(`{"type":"label","name":"status","options":[
		{"id":1,"name":"Todo","color":"gray"},
		{"id":2,"name":"Done","color":"green"}
	]}`))
	s.Require().NoError(err)
	_, err = s.props.UpsertDefinition(context.Background(), project, []byte(`{"type":"number","name":"points"}`))
	s.Require().NoError(err)
}

func (s *serviceSuite) TestCreateTask_AssignsLocalIDsAndTouchesProject() {
	owner := s.user("alice")
	project := s.project(owner)
	s.Require().NoError(s.db.Model(&models.Project{}).Where("id = ?", project.ID).
		UpdateColumn("updated_at", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)).Error)

	first, err := s.tasks.CreateTask(context.Background(), project, CreateTaskInput{Title: "one"})
	s.Require().NoError(err)
	second, err := s.tasks.CreateTask(context.Background(), project, CreateTaskInput{Title: "two"})
	s.Require().NoError(err)

	s.Equal(1, first.LocalID)
	s.Equal(2, second.LocalID)

	reloaded, err := s.projects.GetProject(project.ID)
	s.Require().NoError(err)
	s.True(reloaded.UpdatedAt.After(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func (s *serviceSuite) TestCreateTask_ConcurrentCreatesAreGapFree() {
	s.useConcurrentDB()
	owner := s.user("alice")
	project := s.project(owner)
	retries := testutil.CountRetries(s.T(), 3)

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.tasks.CreateTask(context.Background(), project, CreateTaskInput{Title: fmt.Sprintf("task %d", i)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	tasks, total, err := s.tasks.ListTasks(project, utils.PaginationParams{Page: 1, Limit: 100})
	s.Require().NoError(err)
	s.EqualValues(n, total)
	for i, task := range tasks {
		s.Equal(i+1, task.LocalID)
	}
	s.Zero(retries.Load())
}

func (s *serviceSuite) TestCreateTask_ValidatesPropertyValues() {
	owner := s.user("alice")
	project := s.project(owner)
	s.withStatusProperty(project)

	task, err := s.tasks.CreateTask(context.Background(), project, CreateTaskInput{
		Title:      "with values",
		Properties: map[string]json.RawMessage{"status": raw(`2`), "points": raw(`"3"`)},
	})
	s.Require().NoError(err)
	s.Equal(properties.Values{"status": properties.LabelValue{2}, "points": properties.NumberValue(3)}, task.Values())

	_, err = s.tasks.CreateTask(context.Background(), project, CreateTaskInput{
		Title:      "bad",
		Properties: map[string]json.RawMessage{"status": raw(`9`)},
	})
	s.True(errors.Is(err, properties.ErrInvalidValue))

	_, err = s.tasks.CreateTask(context.Background(), project, CreateTaskInput{
		Title:      "unknown",
		Properties: map[string]json.RawMessage{"owner": raw(`1`)},
	})
	s.True(errors.Is(err, properties.ErrInvalidValue))
}

func (s *serviceSuite) TestUpdateTask_MergesValues() {
	owner := s.user("alice")
	project := s.project(owner)
	s.withStatusProperty(project)

	task, err := s.tasks.CreateTask(context.Background(), project, CreateTaskInput{
		Title:      "t",
		Properties: map[string]json.RawMessage{"status": raw(`1`), "points": raw(`1`)},
	})
	s.Require().NoError(err)

	title := "renamed"
	updated, err := s.tasks.UpdateTask(context.Background(), project, task.LocalID, UpdateTaskInput{
		Title:      &title,
		Properties: map[string]json.RawMessage{"points": raw(`null`), "status": raw(`[1,2]`)},
		LocalProperties: map[string]json.RawMessage{
			"effort": raw(`{"definition":{"type":"number","name":"effort"},"value":4}`),
		},
	})
	s.Require().NoError(err)
	s.Equal("renamed", updated.Title)
	s.Equal(properties.Values{"status": properties.LabelValue{1, 2}}, updated.Values())
	s.Equal(properties.NumberValue(4), updated.Locals()["effort"].Value)

	stored, err := s.tasks.GetTask(project, task.LocalID)
	s.Require().NoError(err)
	s.Equal(updated.Values(), stored.Values())
}

func (s *serviceSuite) TestDeleteTasks_SoftDeletesAndKeepsIDs() {
	owner := s.user("alice")
	project := s.project(owner)
	for i := 0; i < 3; i++ {
		_, err := s.tasks.CreateTask(context.Background(), project, CreateTaskInput{Title: "t"})
		s.Require().NoError(err)
	}
	s.Require().NoError(s.tasks.PinTask(context.Background(), owner.ID, project, 3))

	deleted, err := s.tasks.DeleteTasks(context.Background(), project, []int{2, 3, 99})
	s.Require().NoError(err)
	s.Equal(2, deleted)

	_, err = s.tasks.GetTask(project, 2)
	s.ErrorIs(err, ErrTaskNotFound)

	_, err = s.tasks.DeleteTasks(context.Background(), project, []int{2})
	s.ErrorIs(err, ErrTaskNotFound)

	pins, err := s.tasks.ListPinnedTasks(owner.ID)
	s.Require().NoError(err)
	s.Empty(pins)

	next, err := s.tasks.CreateTask(context.Background(), project, CreateTaskInput{Title: "after delete"})
	s.Require().NoError(err)
	s.Equal(4, next.LocalID)
}

func (s *serviceSuite) TestArchivedTasksAreHiddenFromList() {
	owner := s.user("alice")
	project := s.project(owner)
	for i := 0; i < 2; i++ {
		_, err := s.tasks.CreateTask(context.Background(), project, CreateTaskInput{Title: "t"})
		s.Require().NoError(err)
	}

	archived, err := s.tasks.SetArchived(context.Background(), project, 1, true)
	s.Require().NoError(err)
	s.True(archived.Archived)

	tasks, total, err := s.tasks.ListTasks(project, utils.PaginationParams{Page: 1, Limit: 20})
	s.Require().NoError(err)
	s.EqualValues(1, total)
	s.Equal(2, tasks[0].LocalID)

	_, err = s.tasks.GetTask(project, 1)
	s.NoError(err, "archived tasks stay readable")
}

func (s *serviceSuite) TestPinTask_LimitAndIdempotence() {
	owner := s.user("alice")
	project := s.project(owner)
	for i := 0; i < 6; i++ {
		_, err := s.tasks.CreateTask(context.Background(), project, CreateTaskInput{Title: "t"})
		s.Require().NoError(err)
	}

	for id := 1; id <= 5; id++ {
		s.Require().NoError(s.tasks.PinTask(context.Background(), owner.ID, project, id))
	}
	s.NoError(s.tasks.PinTask(context.Background(), owner.ID, project, 5), "repinning is a no-op")

	err := s.tasks.PinTask(context.Background(), owner.ID, project, 6)
	s.ErrorIs(err, ErrPinLimitExceeded)

	pins, err := s.tasks.ListPinnedTasks(owner.ID)
	s.Require().NoError(err)
	s.Len(pins, 5)

	s.Require().NoError(s.tasks.UnpinTask(owner.ID, project, 1))
	s.NoError(s.tasks.PinTask(context.Background(), owner.ID, project, 6))
}

func (s *serviceSuite) TestPinTask_ConcurrentPinsRespectLimit() {
	s.useConcurrentDB()
	owner := s.user("alice")
	project := s.project(owner)
	for i := 0; i < 8; i++ {
		_, err := s.tasks.CreateTask(context.Background(), project, CreateTaskInput{Title: "t"})
		s.Require().NoError(err)
	}
	retries := testutil.CountRetries(s.T(), 3)

	var wg sync.WaitGroup
	results := make(chan error, 8)
	for id := 1; id <= 8; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			results <- s.tasks.PinTask(context.Background(), owner.ID, project, id)
		}(id)
	}
	wg.Wait()
	close(results)

	var ok, limited int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrPinLimitExceeded):
			limited++
		default:
			s.Failf("unexpected error", "%v", err)
		}
	}
	s.Equal(5, ok)
	s.Equal(3, limited)
	s.Zero(retries.Load())
}

func (s *serviceSuite) TestUpdateTask_DeletedMeanwhile() {
	ctx := context.Background()
	owner := s.user("alice")
	project := s.project(owner)
	task, err := s.tasks.CreateTask(ctx, project, CreateTaskInput{Title: "t"})
	s.Require().NoError(err)

	fired := s.deleteBeforeWrite("tasks", task.ID)
	title := "renamed"
	_, err = s.tasks.UpdateTask(ctx, project, task.LocalID, UpdateTaskInput{Title: &title})
	s.True(fired.Load())
	s.ErrorIs(err, ErrTaskNotFound)

	fired = s.deleteBeforeWrite("tasks", task.ID)
	_, err = s.tasks.SetArchived(ctx, project, task.LocalID, true)
	s.True(fired.Load())
	s.ErrorIs(err, ErrTaskNotFound)
}

func (s *serviceSuite) TestCreateTask_ValidatesAgainstCurrentDefinitions() {
	ctx := context.Background()
	owner := s.user("alice")
	project := s.project(owner)
	stale, err := s.projects.GetProject(project.ID)
	s.Require().NoError(err)

	_, err = s.props.UpsertDefinition(ctx, project, []byte(`{"type":"number","name":"points"}`))
	s.Require().NoError(err)
	s.Empty(stale.Collection.Definitions())

	task, err := s.tasks.CreateTask(ctx, stale, CreateTaskInput{
		Title:      "t",
		Properties: map[string]json.RawMessage{"points": raw(`3`)},
	})
	s.Require().NoError(err)
	s.Equal(properties.NumberValue(3), task.Values()["points"])
}

func (s *serviceSuite) TestPurgeOrphanedValues_UsesCurrentDefinitions() {
	ctx := context.Background()
	owner := s.user("alice")
	project := s.project(owner)
	stale, err := s.projects.GetProject(project.ID)
	s.Require().NoError(err)

	_, err = s.props.UpsertDefinition(ctx, project, []byte(`{"type":"number","name":"points"}`))
	s.Require().NoError(err)
	_, err = s.tasks.CreateTask(ctx, project, CreateTaskInput{
		Title:      "t",
		Properties: map[string]json.RawMessage{"points": raw(`5`)},
	})
	s.Require().NoError(err)

	purged, err := s.tasks.PurgeOrphanedValues(ctx, stale)
	s.Require().NoError(err)
	s.Zero(purged)

	kept, err := s.tasks.GetTask(project, 1)
	s.Require().NoError(err)
	s.Equal(properties.NumberValue(5), kept.Values()["points"])
}

func (s *serviceSuite) TestPurgeOrphanedValues() {
	owner := s.user("alice")
	project := s.project(owner)
	s.withStatusProperty(project)

	task, err := s.tasks.CreateTask(context.Background(), project, CreateTaskInput{
		Title:      "t",
		Properties: map[string]json.RawMessage{"status": raw(`1`), "points": raw(`5`)},
	})
	s.Require().NoError(err)

	_, err = s.props.RemoveDefinition(context.Background(), project, "points")
	s.Require().NoError(err)

	stored, err := s.tasks.GetTask(project, task.LocalID)
	s.Require().NoError(err)
	s.Len(stored.Values(), 2, "removing a definition keeps stored values")
	s.Equal([]string{"points"}, stored.Values().Orphans(project.Collection.Definitions()))

	changed, err := s.tasks.PurgeOrphanedValues(context.Background(), project)
	s.Require().NoError(err)
	s.Equal(1, changed)

	stored, err = s.tasks.GetTask(project, task.LocalID)
	s.Require().NoError(err)
	s.Equal(properties.Values{"status": properties.LabelValue{1}}, stored.Values())
}
