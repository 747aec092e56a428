package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/yukikurage/unica-api/internal/categories"
	"github.com/yukikurage/unica-api/internal/models"
	"github.com/yukikurage/unica-api/internal/testutil"
	"github.com/yukikurage/unica-api/internal/utils"
)

func (s *serviceSuite) discussion() (*models.User, *models.Discussion) {
	owner := s.user("alice")
	org := testutil.CreateOrganization(s.T(), s.db, "acme", owner.ID)
	discussion, err := s.discussions.EnableDiscussion(org.ID)
	s.Require().NoError(err)
	return owner, discussion
}

func (s *serviceSuite) TestEnableDiscussionTwice() {
	_, discussion := s.discussion()
	_, err := s.discussions.EnableDiscussion(discussion.OrganizationID)
	s.ErrorIs(err, ErrDiscussionAlreadyEnabled)
}

func (s *serviceSuite) TestCreateTopic_ConcurrentCallsGetDistinctIDs() {
	s.useConcurrentDB()
	owner, discussion := s.discussion()
	retries := testutil.CountRetries(s.T(), 3)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids []int
	)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			topic, err := s.discussions.CreateTopic(context.Background(), discussion, CreateTopicInput{
				Title: "topic", Content: "opening", OpenerID: owner.ID,
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ids = append(ids, topic.LocalID)
			}
		}()
	}
	wg.Wait()

	sort.Ints(ids)
	s.Equal([]int{1, 2, 3}, ids)
	s.Zero(retries.Load())
}

func (s *serviceSuite) TestCreateTopic_CreatesOpeningComment() {
	owner, discussion := s.discussion()

	topic, err := s.discussions.CreateTopic(context.Background(), discussion, CreateTopicInput{
		Title: "hello", Content: "first post", OpenerID: owner.ID,
	})
	s.Require().NoError(err)

	comments, total, err := s.discussions.ListComments(discussion, topic.LocalID, utils.PaginationParams{Page: 1, Limit: 20})
	s.Require().NoError(err)
	s.EqualValues(1, total)
	s.Equal(1, comments[0].LocalID)
	s.Equal("first post", comments[0].Content)
	s.False(comments[0].Edited)
	s.Equal(owner.ID, comments[0].UserID)
}

func (s *serviceSuite) TestCreateTopic_Validation() {
	owner, discussion := s.discussion()

	_, err := s.discussions.CreateTopic(context.Background(), discussion, CreateTopicInput{
		Title: "this title is much longer than forty characters", Content: "x", OpenerID: owner.ID,
	})
	s.ErrorIs(err, ErrInvalidTopicTitle)

	_, err = s.discussions.CreateTopic(context.Background(), discussion, CreateTopicInput{Title: "t", Content: " ", OpenerID: owner.ID})
	s.ErrorIs(err, ErrCommentRequired)

	missing := 42
	_, err = s.discussions.CreateTopic(context.Background(), discussion, CreateTopicInput{
		Title: "t", Content: "x", OpenerID: owner.ID, CategoryID: &missing,
	})
	s.ErrorIs(err, ErrCategoryNotFound)
}

func (s *serviceSuite) TestEditComment_SetsEditedAndTouchesTopic() {
	ctx := context.Background()
	owner, discussion := s.discussion()
	other := s.user("bob")

	topic, err := s.discussions.CreateTopic(ctx, discussion, CreateTopicInput{Title: "t", Content: "x", OpenerID: owner.ID})
	s.Require().NoError(err)
	comment, err := s.discussions.CreateComment(ctx, discussion, topic.LocalID, owner.ID, "reply")
	s.Require().NoError(err)
	s.Equal(2, comment.LocalID)
	s.False(comment.Edited)

	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Require().NoError(s.db.Model(&models.DiscussionTopic{}).Where("id = ?", topic.ID).UpdateColumn("updated_at", past).Error)

	_, err = s.discussions.EditComment(ctx, discussion, topic.LocalID, comment.LocalID, other.ID, "hijack")
	s.ErrorIs(err, ErrNotCommentAuthor)

	edited, err := s.discussions.EditComment(ctx, discussion, topic.LocalID, comment.LocalID, owner.ID, "reply (fixed)")
	s.Require().NoError(err)
	s.True(edited.Edited)
	s.Equal("reply (fixed)", edited.Content)

	refreshed, err := s.discussions.GetTopic(discussion, topic.LocalID)
	s.Require().NoError(err)
	s.True(refreshed.UpdatedAt.After(past))
}

func (s *serviceSuite) TestEditComment_DeletedMeanwhile() {
	ctx := context.Background()
	owner, discussion := s.discussion()

	topic, err := s.discussions.CreateTopic(ctx, discussion, CreateTopicInput{Title: "t", Content: "x", OpenerID: owner.ID})
	s.Require().NoError(err)
	opening, err := s.discussions.GetComment(discussion, topic.LocalID, 1)
	s.Require().NoError(err)

	fired := s.deleteBeforeWrite("discussion_comments", opening.ID)
	_, err = s.discussions.EditComment(ctx, discussion, topic.LocalID, 1, owner.ID, "changed")

	s.True(fired.Load())
	s.ErrorIs(err, ErrCommentNotFound)
}

func (s *serviceSuite) TestUpdateTopic_DeletedMeanwhile() {
	ctx := context.Background()
	owner, discussion := s.discussion()

	topic, err := s.discussions.CreateTopic(ctx, discussion, CreateTopicInput{Title: "t", Content: "x", OpenerID: owner.ID})
	s.Require().NoError(err)

	fired := s.deleteBeforeWrite("discussion_topics", topic.ID)
	title := "renamed"
	_, err = s.discussions.UpdateTopic(ctx, discussion, topic.LocalID, UpdateTopicInput{Title: &title})

	s.True(fired.Load())
	s.ErrorIs(err, ErrTopicNotFound)
}

func (s *serviceSuite) TestDeleteComment_KeepsSequence() {
	ctx := context.Background()
	owner, discussion := s.discussion()

	topic, err := s.discussions.CreateTopic(ctx, discussion, CreateTopicInput{Title: "t", Content: "x", OpenerID: owner.ID})
	s.Require().NoError(err)
	reply, err := s.discussions.CreateComment(ctx, discussion, topic.LocalID, owner.ID, "reply")
	s.Require().NoError(err)

	s.Require().NoError(s.discussions.DeleteComment(ctx, discussion, topic.LocalID, reply.LocalID))
	_, err = s.discussions.GetComment(discussion, topic.LocalID, reply.LocalID)
	s.ErrorIs(err, ErrCommentNotFound)
	s.ErrorIs(s.discussions.DeleteComment(ctx, discussion, topic.LocalID, reply.LocalID), ErrCommentNotFound)

	next, err := s.discussions.CreateComment(ctx, discussion, topic.LocalID, owner.ID, "again")
	s.Require().NoError(err)
	s.Equal(3, next.LocalID)
}

func (s *serviceSuite) TestDeleteTopic_HidesTopicAndItsComments() {
	ctx := context.Background()
	owner, discussion := s.discussion()

	topic, err := s.discussions.CreateTopic(ctx, discussion, CreateTopicInput{Title: "t", Content: "x", OpenerID: owner.ID})
	s.Require().NoError(err)
	s.Require().NoError(s.discussions.DeleteTopic(ctx, discussion, topic.LocalID))

	_, err = s.discussions.GetTopic(discussion, topic.LocalID)
	s.ErrorIs(err, ErrTopicNotFound)
	_, err = s.discussions.CreateComment(ctx, discussion, topic.LocalID, owner.ID, "late")
	s.ErrorIs(err, ErrTopicNotFound)

	_, total, err := s.discussions.ListTopics(discussion, utils.PaginationParams{Page: 1, Limit: 20})
	s.Require().NoError(err)
	s.Zero(total)
}

func (s *serviceSuite) TestCategoryCRUD() {
	ctx := context.Background()
	owner, discussion := s.discussion()

	bugs, err := s.discussions.CreateCategory(ctx, discussion, categories.Fields{Name: "Bugs", Color: "red", Emoji: "🐛"})
	s.Require().NoError(err)
	s.Equal(1, bugs.LocalID)

	_, err = s.discussions.CreateCategory(ctx, discussion, categories.Fields{Name: "Bugs", Color: "red"})
	s.ErrorIs(err, ErrCategoryExists)

	// The same name with another color is a different category.
	other, err := s.discussions.CreateCategory(ctx, discussion, categories.Fields{Name: "Bugs", Color: "blue"})
	s.Require().NoError(err)
	s.Equal(2, other.LocalID)

	_, err = s.discussions.UpdateCategory(ctx, discussion, other.LocalID, categories.Fields{Name: "Bugs", Color: "red"})
	s.ErrorIs(err, ErrCategoryExists)

	_, err = s.discussions.CreateCategory(ctx, discussion, categories.Fields{Name: "x", Color: "black"})
	s.True(errors.Is(err, categories.ErrInvalidCategory))

	topic, err := s.discussions.CreateTopic(ctx, discussion, CreateTopicInput{
		Title: "crash", Content: "x", OpenerID: owner.ID, CategoryID: &bugs.LocalID,
	})
	s.Require().NoError(err)
	s.Require().NotNil(topic.Category)

	s.Require().NoError(s.discussions.DeleteCategory(ctx, discussion, bugs.LocalID))

	reloaded, err := s.discussions.GetTopic(discussion, topic.LocalID)
	s.Require().NoError(err)
	s.Nil(reloaded.CategoryID, "topics of a deleted category become uncategorized")
}

func (s *serviceSuite) TestReplaceCategories() {
	ctx := context.Background()
	_, discussion := s.discussion()

	_, err := s.discussions.CreateCategory(ctx, discussion, categories.Fields{Name: "Q&A", Color: "blue", Description: "questions"})
	s.Require().NoError(err)
	_, err = s.discussions.CreateCategory(ctx, discussion, categories.Fields{Name: "Bugs", Color: "red"})
	s.Require().NoError(err)

	_, err = s.discussions.ReplaceCategories(ctx, discussion, []byte(`[{"id":1,"name":"Q&A","color":"blue"},{"id":1,"name":"Bugs","color":"red"}]`))
	s.ErrorIs(err, categories.ErrDuplicateID)

	// Swap names between the two rows and add a third.
	list, err := s.discussions.ReplaceCategories(ctx, discussion, []byte(`[
		{"id":1,"name":"Bugs","color":"blue"},
		{"id":2,"name":"Q&A","color":"blue"},
		{"id":5,"name":"Ideas","color":"yellow","emoji":"💡"}
	]`))
	s.Require().NoError(err)
	s.Len(list, 3)

	stored, err := s.discussions.ListCategories(discussion)
	s.Require().NoError(err)
	s.Require().Len(stored, 3)
	s.Equal("Bugs", stored[0].Name)
	s.Equal("questions", stored[0].Description, "descriptions survive a replace")
	s.Equal("Q&A", stored[1].Name)
	s.Equal(5, stored[2].LocalID)

	list, err = s.discussions.ReplaceCategories(ctx, discussion, []byte(`[]`))
	s.Require().NoError(err)
	s.Empty(list)
}
