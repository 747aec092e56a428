package services

import (
	"context"
	"errors"
	"time"

	"github.com/yukikurage/unica-api/internal/models"
	"github.com/yukikurage/unica-api/internal/properties"
)

func (s *serviceSuite) TestUpsertDefinition_TypeConflictLeavesDefinitions() {
	project := s.project(s.user("alice"))
	s.withStatusProperty(project)

	_, err := s.props.UpsertDefinition(context.Background(), project, []byte(`{"type":"number","name":"status"}`))
	s.True(errors.Is(err, properties.ErrTypeConflict))

	reloaded, err := s.projects.GetProject(project.ID)
	s.Require().NoError(err)
	s.Equal([]string{"status", "points"}, reloaded.Collection.Definitions().Names())
}

func (s *serviceSuite) TestUpsertDefinition_InvalidDocument() {
	project := s.project(s.user("alice"))

	_, err := s.props.UpsertDefinition(context.Background(), project, []byte(`{"type":"label","name":"status","options":[{"id":1,"name":"x","color":"black"}]}`))
	s.True(errors.Is(err, properties.ErrInvalidDefinition))

	var schemaErr *properties.SchemaError
	s.Require().True(errors.As(err, &schemaErr))
	s.Equal("options[0].color", schemaErr.Path)
}

func (s *serviceSuite) TestRemoveDefinition() {
	ctx := context.Background()
	project := s.project(s.user("alice"))
	s.withStatusProperty(project)

	collection, err := s.props.RemoveDefinition(ctx, project, "points")
	s.Require().NoError(err)
	s.Equal([]string{"status"}, collection.Definitions().Names())

	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Require().NoError(s.db.Model(&models.Project{}).Where("id = ?", project.ID).UpdateColumn("updated_at", past).Error)

	collection, err = s.props.RemoveDefinition(ctx, project, "missing")
	s.Require().NoError(err)
	s.Equal([]string{"status"}, collection.Definitions().Names())

	reloaded, err := s.projects.GetProject(project.ID)
	s.Require().NoError(err)
	s.True(reloaded.UpdatedAt.Equal(past), "a no-op removal does not touch the project")

	_, err = s.props.RemoveDefinition(ctx, project, " ")
	s.ErrorIs(err, ErrPropertyNameRequired)
}
