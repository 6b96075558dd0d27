package chatbot_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shuleboard/core"
	"github.com/trezcool/shuleboard/core/chatbot"
	inmemdb "github.com/trezcool/shuleboard/storage/database/inmem"
)

const schoolCode = "ABC"

type (
	repos struct {
		knowledge inmemKnowledge
		exchanges chatbot.ExchangeRepository
		feedback  chatbot.FeedbackQueueRepository
	}

	inmemKnowledge interface {
		chatbot.KnowledgeRepository
		GetKnowledge(id string) (chatbot.KnowledgeEntry, bool)
	}

	mailSvcMock struct {
		mu       sync.Mutex
		messages []*core.EmailMessage
	}

	failingKnowledge struct {
		chatbot.KnowledgeRepository
		findErr, incrErr error
	}

	failingExchanges struct {
		chatbot.ExchangeRepository
		findErr, createErr error
	}
)

func (repo failingKnowledge) FindApprovedKnowledge(ctx context.Context, scopes []string, limit int) ([]chatbot.KnowledgeEntry, error) {
	if repo.findErr != nil {
		return nil, repo.findErr
	}
	return repo.KnowledgeRepository.FindApprovedKnowledge(ctx, scopes, limit)
}

func (repo failingKnowledge) IncrementKnowledgeUsage(ctx context.Context, id string) error {
	if repo.incrErr != nil {
		return repo.incrErr
	}
	return repo.KnowledgeRepository.IncrementKnowledgeUsage(ctx, id)
}

func (repo failingExchanges) FindRecentPositiveExchanges(ctx context.Context, schoolCode string, limit int) ([]chatbot.Exchange, error) {
	if repo.findErr != nil {
		return nil, repo.findErr
	}
	return repo.ExchangeRepository.FindRecentPositiveExchanges(ctx, schoolCode, limit)
}

func (repo failingExchanges) CreateExchange(ctx context.Context, exch chatbot.Exchange) (chatbot.Exchange, error) {
	if repo.createErr != nil {
		return chatbot.Exchange{}, repo.createErr
	}
	return repo.ExchangeRepository.CreateExchange(ctx, exch)
}

func (m *mailSvcMock) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, messages...)
}

func setup(t *testing.T, mailSvc ...core.EmailService) (*chatbot.Service, repos) {
	t.Helper()
	db := inmemdb.Open()
	var k inmemKnowledge = inmemdb.NewKnowledgeRepository(db)
	r := repos{
		knowledge: k,
		exchanges: inmemdb.NewExchangeRepository(db),
		feedback:  inmemdb.NewFeedbackQueueRepository(db),
	}
	var ms core.EmailService
	if len(mailSvc) > 0 {
		ms = mailSvc[0]
	}
	svc := chatbot.NewService(k, r.exchanges, r.feedback, ms, chatbot.Options{
		AppName:       "Shuleboard",
		CuratorEmails: []string{"curator@shuleboard.test"},
	})
	return svc, r
}

func addKnowledge(t *testing.T, r repos, entry chatbot.KnowledgeEntry) chatbot.KnowledgeEntry {
	t.Helper()
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}
	entry.CreatedAt = entry.UpdatedAt
	entry, err := r.knowledge.CreateKnowledge(context.Background(), entry)
	require.NoError(t, err)
	return entry
}

func addExchange(t *testing.T, r repos, exch chatbot.Exchange) chatbot.Exchange {
	t.Helper()
	if exch.SchoolCode == "" {
		exch.SchoolCode = schoolCode
	}
	if exch.CreatedAt.IsZero() {
		exch.CreatedAt = time.Now().UTC()
	}
	exch, err := r.exchanges.CreateExchange(context.Background(), exch)
	require.NoError(t, err)
	return exch
}

func ask(question string) chatbot.NewQuestion {
	return chatbot.NewQuestion{Question: question, SessionID: "session-1"}
}

func countExchanges(t *testing.T, r repos, code string) int {
	t.Helper()
	n, err := r.exchanges.CountExchanges(context.Background(), code, chatbot.ExchangeFilter{})
	require.NoError(t, err)
	return n
}

func TestService_Reply_validation(t *testing.T) {
	svc, r := setup(t)
	ctx := context.Background()

	tests := []struct {
		name string
		nq   chatbot.NewQuestion
	}{
		{name: "empty question", nq: chatbot.NewQuestion{SessionID: "s"}},
		{name: "blank question", nq: chatbot.NewQuestion{Question: " \t ", SessionID: "s"}},
		{name: "blank session", nq: chatbot.NewQuestion{Question: "hi", SessionID: "  "}},
		{name: "session too long", nq: chatbot.NewQuestion{Question: "hi", SessionID: strings.Repeat("s", chatbot.MaxSessionIDLength+1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Reply(ctx, schoolCode, tt.nq)
			assert.True(t, core.IsValidationError(err), "got %v", err)
		})
	}
	assert.Equal(t, 0, countExchanges(t, r, schoolCode))
}

func TestService_Reply_storeErrors(t *testing.T) {
	errStore := errors.New("connection reset by peer")

	tests := []struct {
		name      string
		question  string
		knowledge failingKnowledge
		exchanges failingExchanges
	}{
		{name: "find knowledge", question: "how do I post news", knowledge: failingKnowledge{findErr: errStore}},
		{name: "increment usage", question: "how do I post news", knowledge: failingKnowledge{incrErr: errStore}},
		{name: "find history", question: "zzz unknown things", exchanges: failingExchanges{findErr: errStore}},
		{name: "save exchange", question: "hi", exchanges: failingExchanges{createErr: errStore}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, r := setup(t)
			addKnowledge(t, r, chatbot.KnowledgeEntry{
				Scope: chatbot.ScopeGlobal, QuestionPattern: "post news", AnswerText: "Open News.", Approved: true,
			})
			tt.knowledge.KnowledgeRepository = r.knowledge
			tt.exchanges.ExchangeRepository = r.exchanges
			svc := chatbot.NewService(tt.knowledge, tt.exchanges, r.feedback, nil, chatbot.Options{})

			_, err := svc.Reply(context.Background(), schoolCode, ask(tt.question))
			require.Error(t, err)
			assert.False(t, core.IsValidationError(err), "got %v", err)
			assert.Equal(t, errStore, errors.Cause(err))
		})
	}
}

func TestService_Reply_shortcuts(t *testing.T) {
	svc, r := setup(t)
	ctx := context.Background()

	// shortcuts win over a matching knowledge entry
	addKnowledge(t, r, chatbot.KnowledgeEntry{
		Scope: chatbot.ScopeGlobal, QuestionPattern: "library hello", AnswerText: "nope", Approved: true,
	})

	tests := []struct {
		question   string
		wantIntent string
	}{
		{question: "Hi", wantIntent: chatbot.IntentGreeting},
		{question: "how are you?", wantIntent: chatbot.IntentHowAreYou},
		{question: "what about the library timing", wantIntent: chatbot.IntentOutOfScope},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			res, err := svc.Reply(ctx, schoolCode, ask(tt.question))
			require.NoError(t, err)
			assert.Equal(t, tt.wantIntent, res.IntentID)
			assert.Equal(t, chatbot.ConfidenceHigh, res.Confidence)
			assert.Equal(t, chatbot.SourceFallback, res.Source)
			assert.False(t, res.Route.Valid)
			assert.False(t, res.RouteLabel.Valid)
			assert.NotEmpty(t, res.MessageID)
		})
	}
	assert.Equal(t, len(tests), countExchanges(t, r, schoolCode))
}

func TestService_Reply_knowledge(t *testing.T) {
	svc, r := setup(t)
	ctx := context.Background()

	entry := addKnowledge(t, r, chatbot.KnowledgeEntry{
		Scope:            chatbot.ScopeGlobal,
		QuestionPattern:  "add new event",
		Keywords:         chatbot.Keywords{"event", "create"},
		AnswerText:       "Go to Events and click Create Event.",
		IntentID:         "event_create",
		Route:            null.StringFrom("/events-create"),
		FollowUpQuestion: null.StringFrom("Do you want to notify parents?"),
		Approved:         true,
	})

	res, err := svc.Reply(ctx, schoolCode, ask("I want to add a new event"))
	require.NoError(t, err)
	assert.Equal(t, "Go to Events and click Create Event.", res.Reply)
	assert.Equal(t, "event_create", res.IntentID)
	assert.Equal(t, chatbot.ConfidenceHigh, res.Confidence)
	assert.Equal(t, chatbot.SourceKnowledge, res.Source)
	assert.Equal(t, null.StringFrom("/events-create"), res.Route)
	assert.Equal(t, null.StringFrom("Open events create"), res.RouteLabel)
	assert.Equal(t, null.StringFrom("Do you want to notify parents?"), res.FollowUp)

	got, ok := r.knowledge.GetKnowledge(entry.ID)
	require.True(t, ok)
	assert.Equal(t, 1, got.UsageCount)
	assert.Equal(t, 1, countExchanges(t, r, schoolCode))
}

func TestService_Reply_knowledgeThreshold(t *testing.T) {
	tests := []struct {
		name       string
		question   string
		wantSource string
		wantConf   string
	}{
		{name: "two tokens need one hit", question: "gallery photos", wantSource: chatbot.SourceKnowledge, wantConf: chatbot.ConfidenceMedium},
		{name: "three tokens need two hits", question: "gallery photos today", wantSource: chatbot.SourceFallback, wantConf: chatbot.ConfidenceLow},
		{name: "three tokens with two hits", question: "gallery upload today", wantSource: chatbot.SourceKnowledge, wantConf: chatbot.ConfidenceMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, r := setup(t)
			addKnowledge(t, r, chatbot.KnowledgeEntry{
				Scope: chatbot.ScopeGlobal, QuestionPattern: "gallery upload", AnswerText: "Open Gallery.", Approved: true,
			})

			res, err := svc.Reply(context.Background(), schoolCode, ask(tt.question))
			require.NoError(t, err)
			assert.Equal(t, tt.wantSource, res.Source)
			assert.Equal(t, tt.wantConf, res.Confidence)
			if tt.wantSource == chatbot.SourceFallback {
				assert.Equal(t, chatbot.IntentGenericFallback, res.IntentID)
			}
		})
	}
}

func TestService_Reply_tenantPrecedence(t *testing.T) {
	svc, r := setup(t)
	now := time.Now().UTC()

	addKnowledge(t, r, chatbot.KnowledgeEntry{
		Scope: chatbot.ScopeGlobal, QuestionPattern: "post news", AnswerText: "global", Approved: true,
		UpdatedAt: now,
	})
	addKnowledge(t, r, chatbot.KnowledgeEntry{
		Scope: "ABC,", QuestionPattern: "post news", AnswerText: "tenant", Approved: true,
		UpdatedAt: now.Add(-time.Hour),
	})
	addKnowledge(t, r, chatbot.KnowledgeEntry{
		Scope: "XYZ", QuestionPattern: "post news article", AnswerText: "other tenant", Approved: true,
		UpdatedAt: now.Add(time.Hour),
	})
	addKnowledge(t, r, chatbot.KnowledgeEntry{
		Scope: schoolCode, QuestionPattern: "post news article", AnswerText: "unapproved", Approved: false,
		UpdatedAt: now.Add(time.Hour),
	})

	res, err := svc.Reply(context.Background(), schoolCode, ask("post news article"))
	require.NoError(t, err)
	assert.Equal(t, "tenant", res.Reply)
	assert.Equal(t, chatbot.IntentKnowledgeMatch, res.IntentID)
}

func TestService_Reply_history(t *testing.T) {
	svc, r := setup(t)
	ctx := context.Background()

	addExchange(t, r, chatbot.Exchange{
		UserMessage: "publish sports day photos", BotReply: "Use Gallery > Upload.",
		IntentID: "gallery_upload", Route: null.StringFrom("/gallery-upload"),
		Confidence: chatbot.ConfidenceHigh, Source: chatbot.SourceKnowledge, Feedback: null.StringFrom(chatbot.FeedbackUp),
	})
	// not rated up, or from another school
	addExchange(t, r, chatbot.Exchange{
		UserMessage: "publish sports pics", BotReply: "unrated", Source: chatbot.SourceFallback,
	})
	addExchange(t, r, chatbot.Exchange{
		SchoolCode: "XYZ", UserMessage: "publish sports pics", BotReply: "other school",
		Source: chatbot.SourceFallback, Feedback: null.StringFrom(chatbot.FeedbackUp),
	})

	res, err := svc.Reply(ctx, schoolCode, ask("publish sports pics"))
	require.NoError(t, err)
	assert.Equal(t, "Use Gallery > Upload.", res.Reply)
	assert.Equal(t, "gallery_upload", res.IntentID)
	assert.Equal(t, chatbot.ConfidenceMedium, res.Confidence)
	assert.Equal(t, chatbot.SourceHistory, res.Source)
	assert.Equal(t, null.StringFrom("Open gallery upload"), res.RouteLabel)

	// a single common token is not enough
	res, err = svc.Reply(ctx, schoolCode, ask("publish timetable now"))
	require.NoError(t, err)
	assert.Equal(t, chatbot.SourceFallback, res.Source)
	assert.Equal(t, chatbot.ConfidenceLow, res.Confidence)
}

func TestService_Reply_truncatesQuestion(t *testing.T) {
	svc, r := setup(t)

	ctx := context.Background()

	res, err := svc.Reply(ctx, schoolCode, ask(strings.Repeat("z", 1500)))
	require.NoError(t, err)
	assert.Equal(t, chatbot.ConfidenceLow, res.Confidence)

	exch, err := r.exchanges.SetExchangeFeedback(ctx, res.MessageID, schoolCode, chatbot.FeedbackUp)
	require.NoError(t, err)
	assert.Len(t, exch.UserMessage, chatbot.MaxQuestionLength)
}

func TestService_SetFeedback(t *testing.T) {
	mailSvc := &mailSvcMock{}
	svc, r := setup(t, mailSvc)
	ctx := context.Background()

	exch := addExchange(t, r, chatbot.Exchange{
		UserMessage: "how to post news", BotReply: "I can help with settings", IntentID: chatbot.IntentGenericFallback,
		Confidence: chatbot.ConfidenceLow, Source: chatbot.SourceFallback,
	})
	other := addExchange(t, r, chatbot.Exchange{SchoolCode: "XYZ", UserMessage: "x", BotReply: "y"})

	expected := "  Open News and click Create.  "
	tests := []struct {
		name    string
		id      string
		update  chatbot.FeedbackUpdate
		wantErr func(err error) bool
	}{
		{name: "invalid", id: exch.ID, update: chatbot.FeedbackUpdate{Feedback: "meh"}, wantErr: core.IsValidationError},
		{name: "unknown exchange", id: "nope", update: chatbot.FeedbackUpdate{Feedback: chatbot.FeedbackUp},
			wantErr: func(err error) bool { return errors.Cause(err) == chatbot.ErrExchangeNotFound }},
		{name: "other school", id: other.ID, update: chatbot.FeedbackUpdate{Feedback: chatbot.FeedbackDown},
			wantErr: func(err error) bool { return errors.Cause(err) == chatbot.ErrExchangeNotFound }},
		{name: "up", id: exch.ID, update: chatbot.FeedbackUpdate{Feedback: chatbot.FeedbackUp}},
		{name: "down", id: exch.ID, update: chatbot.FeedbackUpdate{Feedback: chatbot.FeedbackDown, ExpectedAnswer: &expected}},
		{name: "down again", id: exch.ID, update: chatbot.FeedbackUpdate{Feedback: chatbot.FeedbackDown}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.SetFeedback(ctx, schoolCode, tt.id, tt.update)
			if tt.wantErr != nil {
				assert.True(t, tt.wantErr(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, null.StringFrom(tt.update.Feedback), got.Feedback)
		})
	}

	// no dedup: both thumbs down are queued
	entries, err := svc.FeedbackQueue(ctx, schoolCode, chatbot.FeedbackQueueFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, exch.ID, e.ExchangeID)
		assert.Equal(t, chatbot.StatusOpen, e.Status)
		assert.Equal(t, chatbot.FeedbackDown, e.Feedback)
		assert.Equal(t, "how to post news", e.UserMessage)
	}
	answers := []null.String{entries[0].ExpectedAnswer, entries[1].ExpectedAnswer}
	assert.ElementsMatch(t, []null.String{null.StringFrom("Open News and click Create."), {}}, answers)

	mailSvc.mu.Lock()
	defer mailSvc.mu.Unlock()
	require.Len(t, mailSvc.messages, 2)
	assert.Equal(t, "curator@shuleboard.test", mailSvc.messages[0].To[0].Address)
	assert.Equal(t, "[Shuleboard] Chatbot reply flagged by "+schoolCode, mailSvc.messages[0].Subject)
	assert.Contains(t, mailSvc.messages[0].TextContent, "how to post news")
}

func TestService_SetFeedback_truncatesExpectedAnswer(t *testing.T) {
	svc, r := setup(t)
	ctx := context.Background()
	exch := addExchange(t, r, chatbot.Exchange{UserMessage: "x", BotReply: "y"})

	long := strings.Repeat("a", 2500)
	_, err := svc.SetFeedback(ctx, schoolCode, exch.ID, chatbot.FeedbackUpdate{Feedback: chatbot.FeedbackDown, ExpectedAnswer: &long})
	require.NoError(t, err)

	entries, err := svc.FeedbackQueue(ctx, schoolCode, chatbot.FeedbackQueueFilter{Status: chatbot.StatusOpen})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].ExpectedAnswer.String, chatbot.MaxExpectedAnswerLength)
}

func TestService_FeedbackQueue_filter(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	entries, err := svc.FeedbackQueue(ctx, schoolCode, chatbot.FeedbackQueueFilter{Status: chatbot.StatusResolved})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NotNil(t, entries)

	_, err = svc.FeedbackQueue(ctx, schoolCode, chatbot.FeedbackQueueFilter{Status: "closed"})
	assert.True(t, core.IsValidationError(err))
}

func TestService_Insights(t *testing.T) {
	svc, r := setup(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		fb := null.String{}
		if i < 3 {
			fb = null.StringFrom(chatbot.FeedbackUp)
		}
		addExchange(t, r, chatbot.Exchange{IntentID: "news_create", Confidence: chatbot.ConfidenceHigh, Feedback: fb})
	}
	for i := 0; i < 3; i++ {
		addExchange(t, r, chatbot.Exchange{
			IntentID: chatbot.IntentGenericFallback, Confidence: chatbot.ConfidenceLow, Feedback: null.StringFrom(chatbot.FeedbackDown),
		})
	}
	addExchange(t, r, chatbot.Exchange{SchoolCode: "XYZ", IntentID: "other", Confidence: chatbot.ConfidenceLow})

	got, err := svc.Insights(ctx, schoolCode)
	require.NoError(t, err)
	assert.Equal(t, 10, got.TotalMessages)
	assert.Equal(t, 3, got.LowConfidenceCount)
	assert.Equal(t, 30.0, got.FallbackRate)
	assert.Equal(t, []chatbot.IntentCount{
		{IntentID: "news_create", Count: 7},
		{IntentID: chatbot.IntentGenericFallback, Count: 3},
	}, got.IntentBreakdown)
	assert.Equal(t, []chatbot.FeedbackCount{
		{Feedback: chatbot.FeedbackDown, Count: 3},
		{Feedback: chatbot.FeedbackUp, Count: 3},
	}, got.FeedbackBreakdown)

	empty, err := svc.Insights(ctx, "NONE")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalMessages)
	assert.Equal(t, 0.0, empty.FallbackRate)
	assert.NotNil(t, empty.IntentBreakdown)
}

func TestFallbackRate(t *testing.T) {
	tests := []struct {
		low, total int
		want       float64
	}{
		{low: 3, total: 10, want: 30},
		{low: 1, total: 3, want: 33.33},
		{low: 2, total: 3, want: 66.67},
		{low: 0, total: 0, want: 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, chatbot.FallbackRate(tt.low, tt.total))
	}
}

func TestService_AddKnowledge(t *testing.T) {
	svc, r := setup(t)

	entry, err := svc.AddKnowledge(context.Background(), chatbot.NewKnowledge{
		Scope:           chatbot.ScopeGlobal,
		QuestionPattern: "enable chatbot",
		Keywords:        chatbot.Keywords{" feature ", "", "toggle"},
		AnswerText:      "Go to Settings > Features.",
		Route:           "/settings",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.True(t, entry.Approved)
	assert.Equal(t, "friendly", entry.Tone)
	assert.Equal(t, "generic", entry.IntentID)
	assert.Equal(t, chatbot.Keywords{"feature", "toggle"}, entry.Keywords)
	assert.False(t, entry.FollowUpQuestion.Valid)

	found, err := r.knowledge.FindApprovedKnowledge(context.Background(), chatbot.TenantScopes(schoolCode), 500)
	require.NoError(t, err)
	assert.Len(t, found, 1)
}
