package services

import (
	"context"

	"github.com/yukikurage/unica-api/internal/models"
	"github.com/yukikurage/unica-api/internal/testutil"
)

func (s *serviceSuite) TestCreateOrganization_CreatorBecomesOwner() {
	alice := s.user("alice")

	org, err := s.orgs.CreateOrganization(CreateOrganizationInput{Name: "  Acme  ", Description: "d", OwnerID: alice.ID})
	s.Require().NoError(err)
	s.Equal("Acme", org.Name)

	member, err := s.orgs.GetMembership(org.ID, alice.ID)
	s.Require().NoError(err)
	s.Equal(models.RoleOwner, member.Role)
	s.NotNil(member.JoinedAt)
}

func (s *serviceSuite) TestCreateOrganization_ValidatesLengths() {
	alice := s.user("alice")

	_, err := s.orgs.CreateOrganization(CreateOrganizationInput{Name: "", OwnerID: alice.ID})
	s.ErrorIs(err, ErrInvalidOrganizationName)

	_, err = s.orgs.CreateOrganization(CreateOrganizationInput{Name: "abcdefghijklmnopqrstu", OwnerID: alice.ID})
	s.ErrorIs(err, ErrInvalidOrganizationName)

	long := make([]rune, 201)
	for i := range long {
		long[i] = 'あ'
	}
	_, err = s.orgs.CreateOrganization(CreateOrganizationInput{Name: "ok", Description: string(long), OwnerID: alice.ID})
	s.ErrorIs(err, ErrDescriptionTooLong)
}

func (s *serviceSuite) TestInvitationFlow() {
	alice := s.user("alice")
	bob := s.user("bob")
	org := testutil.CreateOrganization(s.T(), s.db, "acme", alice.ID)

	invitation, err := s.orgs.InviteMember(org.ID, "bob")
	s.Require().NoError(err)
	s.Equal(models.RolePending, invitation.Role)
	s.Nil(invitation.JoinedAt)

	_, err = s.orgs.InviteMember(org.ID, "bob")
	s.ErrorIs(err, ErrAlreadyOrganizationMember)

	_, err = s.orgs.InviteMember(org.ID, "nobody")
	s.ErrorIs(err, ErrUserNotFound)

	pending, err := s.orgs.ListInvitationsForUser(bob.ID)
	s.Require().NoError(err)
	s.Len(pending, 1)

	// Pending users are not listed as members.
	_, members, err := s.orgs.GetOrganizationWithMembers(org.ID)
	s.Require().NoError(err)
	s.Len(members, 1)

	member, err := s.orgs.RespondToInvitation(org.ID, bob.ID, true)
	s.Require().NoError(err)
	s.Equal(models.RoleMember, member.Role)
	s.NotNil(member.JoinedAt)

	_, err = s.orgs.RespondToInvitation(org.ID, bob.ID, true)
	s.ErrorIs(err, ErrInvitationNotFound)
}

func (s *serviceSuite) TestDeclineAndCancelInvitation() {
	alice := s.user("alice")
	bob := s.user("bob")
	carol := s.user("carol")
	org := testutil.CreateOrganization(s.T(), s.db, "acme", alice.ID)

	_, err := s.orgs.InviteMember(org.ID, "bob")
	s.Require().NoError(err)
	_, err = s.orgs.RespondToInvitation(org.ID, bob.ID, false)
	s.Require().NoError(err)
	_, err = s.orgs.GetMembership(org.ID, bob.ID)
	s.ErrorIs(err, ErrOrganizationMemberNotFound)

	_, err = s.orgs.InviteMember(org.ID, "carol")
	s.Require().NoError(err)
	s.Require().NoError(s.orgs.CancelInvitation(org.ID, carol.ID))

	invitations, err := s.orgs.ListInvitations(org.ID)
	s.Require().NoError(err)
	s.Empty(invitations)

	s.ErrorIs(s.orgs.CancelInvitation(org.ID, alice.ID), ErrInvitationNotFound)
}

func (s *serviceSuite) TestLastOwnerGuard() {
	ctx := context.Background()
	alice := s.user("alice")
	bob := s.user("bob")
	org := testutil.CreateOrganization(s.T(), s.db, "acme", alice.ID)
	testutil.AddMember(s.T(), s.db, org.ID, bob.ID, models.RoleMember)

	s.ErrorIs(s.orgs.LeaveOrganization(ctx, org.ID, alice.ID), ErrLastOwner)
	s.ErrorIs(s.orgs.RemoveMember(ctx, org.ID, alice.ID), ErrLastOwner)
	_, err := s.orgs.ChangeMemberRole(ctx, org.ID, alice.ID, models.RoleMember)
	s.ErrorIs(err, ErrLastOwner)

	promoted, err := s.orgs.ChangeMemberRole(ctx, org.ID, bob.ID, models.RoleOwner)
	s.Require().NoError(err)
	s.Equal(models.RoleOwner, promoted.Role)

	s.Require().NoError(s.orgs.LeaveOrganization(ctx, org.ID, alice.ID))
	s.ErrorIs(s.orgs.LeaveOrganization(ctx, org.ID, bob.ID), ErrLastOwner)

	_, err = s.orgs.ChangeMemberRole(ctx, org.ID, bob.ID, models.RolePending)
	s.ErrorIs(err, ErrInvalidRole)
}

func (s *serviceSuite) TestDeleteOrganization_RemovesProjectsAndDiscussion() {
	ctx := context.Background()
	alice := s.user("alice")
	org := testutil.CreateOrganization(s.T(), s.db, "acme", alice.ID)
	created := testutil.CreateProject(s.T(), s.db, "board", models.ProjectOwnerOrganization, org.ID)
	project, err := s.projects.GetProject(created.ID)
	s.Require().NoError(err)
	_, err = s.tasks.CreateTask(ctx, project, CreateTaskInput{Title: "t"})
	s.Require().NoError(err)
	s.Require().NoError(s.tasks.PinTask(ctx, alice.ID, project, 1))

	discussion := testutil.CreateDiscussion(s.T(), s.db, org.ID)
	_, err = s.discussions.CreateTopic(ctx, discussion, CreateTopicInput{Title: "hello", Content: "first", OpenerID: alice.ID})
	s.Require().NoError(err)

	s.Require().NoError(s.orgs.DeleteOrganization(org.ID))

	_, err = s.projects.GetProject(project.ID)
	s.ErrorIs(err, ErrProjectNotFound)
	_, err = s.discussions.GetDiscussion(org.ID)
	s.ErrorIs(err, ErrDiscussionNotFound)

	for _, model := range []any{&models.Task{}, &models.TaskPin{}, &models.DiscussionTopic{}, &models.DiscussionComment{}, &models.OrganizationMember{}} {
		var count int64
		s.Require().NoError(s.db.Model(model).Count(&count).Error)
		s.Zero(count)
	}
}

func (s *serviceSuite) TestProjectAccess() {
	alice := s.user("alice")
	bob := s.user("bob")
	carol := s.user("carol")
	org := testutil.CreateOrganization(s.T(), s.db, "acme", alice.ID)
	testutil.AddMember(s.T(), s.db, org.ID, bob.ID, models.RoleMember)
	testutil.AddMember(s.T(), s.db, org.ID, carol.ID, models.RolePending)

	orgProject := testutil.CreateProject(s.T(), s.db, "team", models.ProjectOwnerOrganization, org.ID)
	s.NoError(s.projects.CheckAccess(orgProject, alice.ID))
	s.NoError(s.projects.CheckAccess(orgProject, bob.ID))
	s.ErrorIs(s.projects.CheckAccess(orgProject, carol.ID), ErrProjectAccessDenied)
	s.NoError(s.projects.CheckAdmin(orgProject, alice.ID))
	s.ErrorIs(s.projects.CheckAdmin(orgProject, bob.ID), ErrNotOrganizationOwner)

	own := testutil.CreateProject(s.T(), s.db, "mine", models.ProjectOwnerUser, bob.ID)
	s.NoError(s.projects.CheckAdmin(own, bob.ID))
	s.ErrorIs(s.projects.CheckAccess(own, alice.ID), ErrProjectAccessDenied)
}
