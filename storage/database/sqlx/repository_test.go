package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shuleboard/core"
	"github.com/trezcool/shuleboard/core/chatbot"
	"github.com/trezcool/shuleboard/core/school"
	sqlxrepos "github.com/trezcool/shuleboard/storage/database/sqlx"
	testutil "github.com/trezcool/shuleboard/tests"
)

func TestRepositories(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()

	schoolRepo := sqlxrepos.NewSchoolRepository(db)
	knowledgeRepo := sqlxrepos.NewKnowledgeRepository(db)
	exchangeRepo := sqlxrepos.NewExchangeRepository(db)
	feedbackRepo := sqlxrepos.NewFeedbackQueueRepository(db)

	t.Run("schools", func(t *testing.T) {
		s := testutil.CreateSchool(t, schoolRepo, "GHS", "Green Hills", "s3cret!pass")

		got, err := schoolRepo.GetSchoolByCode(ctx, "GHS")
		require.NoError(t, err)
		assert.Equal(t, s.ID, got.ID)
		assert.Equal(t, school.DefaultFeatures(), got.Features)
		assert.NoError(t, got.CheckPassword("s3cret!pass"))

		_, err = schoolRepo.CreateSchool(ctx, school.School{Code: "GHS", Name: "Dup", PasswordHash: []byte("x")})
		assert.Equal(t, school.ErrCodeExists, err)

		_, err = schoolRepo.GetSchoolByID(ctx, "not-a-uuid")
		assert.Equal(t, school.ErrNotFound, err)
		_, err = schoolRepo.GetSchoolByCode(ctx, "NOPE")
		assert.Equal(t, school.ErrNotFound, err)

		feats := school.DefaultFeatures()
		feats.Gallery = false
		got, err = schoolRepo.UpdateSchoolFeatures(ctx, s.ID, feats)
		require.NoError(t, err)
		assert.False(t, got.Features.Gallery)

		got, err = schoolRepo.UpdateSchoolPassword(ctx, s.ID, []byte("hash"))
		require.NoError(t, err)
		assert.Equal(t, []byte("hash"), got.PasswordHash)
	})

	t.Run("knowledge", func(t *testing.T) {
		old := time.Now().Add(-time.Hour)
		global := testutil.CreateKnowledge(t, knowledgeRepo, chatbot.ScopeGlobal, "add event", "Open Events.", chatbot.Keywords{"event"}, true)
		tenantOld := testutil.CreateKnowledge(t, knowledgeRepo, "KHS", "add event", "KHS events.", nil, true, old)
		tenantComma := testutil.CreateKnowledge(t, knowledgeRepo, "KHS,", "add event", "KHS events too.", nil, true)
		testutil.CreateKnowledge(t, knowledgeRepo, "KHS", "hidden", "Not approved.", nil, false)
		testutil.CreateKnowledge(t, knowledgeRepo, "OTHER", "add event", "Other school.", nil, true)

		entries, err := knowledgeRepo.FindApprovedKnowledge(ctx, chatbot.TenantScopes("KHS"), 500)
		require.NoError(t, err)
		ids := make([]string, 0, len(entries))
		for _, e := range entries {
			ids = append(ids, e.ID)
		}
		assert.Equal(t, []string{tenantComma.ID, tenantOld.ID, global.ID}, ids)
		assert.Equal(t, chatbot.Keywords{"event"}, entries[2].Keywords)

		entries, err = knowledgeRepo.FindApprovedKnowledge(ctx, chatbot.TenantScopes("KHS"), 1)
		require.NoError(t, err)
		assert.Len(t, entries, 1)

		require.NoError(t, knowledgeRepo.IncrementKnowledgeUsage(ctx, global.ID))
		require.NoError(t, knowledgeRepo.IncrementKnowledgeUsage(ctx, global.ID))
		var count int
		require.NoError(t, db.GetContext(ctx, &count, `SELECT usage_count FROM knowledge_entries WHERE id = $1`, global.ID))
		assert.Equal(t, 2, count)

		assert.Equal(t, chatbot.ErrKnowledgeNotFound, knowledgeRepo.IncrementKnowledgeUsage(ctx, "bad"))
	})

	t.Run("exchanges", func(t *testing.T) {
		e1 := testutil.CreateExchange(t, exchangeRepo, "EHS", "hi", chatbot.IntentGreeting, chatbot.ConfidenceHigh)
		e2 := testutil.CreateExchange(t, exchangeRepo, "EHS", "zzz", chatbot.IntentGenericFallback, chatbot.ConfidenceLow)
		testutil.CreateExchange(t, exchangeRepo, "EHS", "hello", chatbot.IntentGreeting, chatbot.ConfidenceHigh)
		testutil.CreateExchange(t, exchangeRepo, "OTHER", "zzz", chatbot.IntentGenericFallback, chatbot.ConfidenceLow)

		_, err := exchangeRepo.SetExchangeFeedback(ctx, e1.ID, "OTHER", chatbot.FeedbackUp)
		assert.Equal(t, chatbot.ErrExchangeNotFound, err)
		_, err = exchangeRepo.SetExchangeFeedback(ctx, "bad", "EHS", chatbot.FeedbackUp)
		assert.Equal(t, chatbot.ErrExchangeNotFound, err)

		got, err := exchangeRepo.SetExchangeFeedback(ctx, e1.ID, "EHS", chatbot.FeedbackUp)
		require.NoError(t, err)
		assert.Equal(t, chatbot.FeedbackUp, got.Feedback.String)
		_, err = exchangeRepo.SetExchangeFeedback(ctx, e2.ID, "EHS", chatbot.FeedbackDown)
		require.NoError(t, err)

		positive, err := exchangeRepo.FindRecentPositiveExchanges(ctx, "EHS", 150)
		require.NoError(t, err)
		require.Len(t, positive, 1)
		assert.Equal(t, e1.ID, positive[0].ID)

		total, err := exchangeRepo.CountExchanges(ctx, "EHS", chatbot.ExchangeFilter{})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		low, err := exchangeRepo.CountExchanges(ctx, "EHS", chatbot.ExchangeFilter{Confidence: chatbot.ConfidenceLow})
		require.NoError(t, err)
		assert.Equal(t, 1, low)

		intents, err := exchangeRepo.CountExchangesByIntent(ctx, "EHS", 10)
		require.NoError(t, err)
		assert.Equal(t, []chatbot.IntentCount{
			{IntentID: chatbot.IntentGreeting, Count: 2},
			{IntentID: chatbot.IntentGenericFallback, Count: 1},
		}, intents)

		feedbacks, err := exchangeRepo.CountExchangesByFeedback(ctx, "EHS")
		require.NoError(t, err)
		assert.Equal(t, []chatbot.FeedbackCount{
			{Feedback: chatbot.FeedbackDown, Count: 1},
			{Feedback: chatbot.FeedbackUp, Count: 1},
		}, feedbacks)
	})

	t.Run("feedback queue", func(t *testing.T) {
		exch := testutil.CreateExchange(t, exchangeRepo, "FHS", "zzz", chatbot.IntentGenericFallback, chatbot.ConfidenceLow)
		now := time.Now().UTC()
		for i, status := range []string{chatbot.StatusOpen, chatbot.StatusResolved} {
			_, err := feedbackRepo.CreateFeedbackEntry(ctx, chatbot.FeedbackEntry{
				SchoolCode:  "FHS",
				ExchangeID:  exch.ID,
				UserMessage: exch.UserMessage,
				BotReply:    exch.BotReply,
				IntentID:    exch.IntentID,
				Feedback:    chatbot.FeedbackDown,
				Status:      status,
				CreatedAt:   now.Add(time.Duration(i) * time.Second),
				UpdatedAt:   now,
			})
			require.NoError(t, err)
		}

		all, err := feedbackRepo.QueryFeedbackEntries(ctx, "FHS", chatbot.FeedbackQueueFilter{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, chatbot.StatusResolved, all[0].Status)
		assert.False(t, all[0].ExpectedAnswer.Valid)

		open, err := feedbackRepo.QueryFeedbackEntries(ctx, "FHS", chatbot.FeedbackQueueFilter{Status: chatbot.StatusOpen})
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, exch.ID, open[0].ExchangeID)
	})
}

func TestRepositories_closedDB(t *testing.T) {
	db, err := sqlx.Open("postgres", "postgres://shuleboard@localhost:5432/shuleboard?sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, db.Close())
	ctx := context.Background()

	_, err = sqlxrepos.NewSchoolRepository(db).GetSchoolByCode(ctx, "GHS")
	assert.True(t, core.IsShutdown(err), "got %v", err)

	_, err = sqlxrepos.NewKnowledgeRepository(db).FindApprovedKnowledge(ctx, chatbot.TenantScopes("GHS"), 500)
	assert.True(t, core.IsShutdown(err), "got %v", err)

	_, err = sqlxrepos.NewExchangeRepository(db).CreateExchange(ctx, chatbot.Exchange{
		SchoolCode:  "GHS",
		SessionID:   "s1",
		UserMessage: "hi",
		CreatedAt:   time.Now().UTC(),
	})
	assert.True(t, core.IsShutdown(err), "got %v", err)
}
