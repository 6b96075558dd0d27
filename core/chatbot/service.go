package chatbot

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/shuleboard/core"
)

var (
	// errors
	ErrExchangeNotFound  = errors.New("message not found")
	ErrKnowledgeNotFound = errors.New("knowledge entry not found")

	errInvalidFeedback = "invalid feedback"
	errInvalidStatus   = "invalid status"
)

const topIntentsLimit = 10

type (
	KnowledgeRepository interface {
		// FindApprovedKnowledge returns approved entries whose scope is one of `scopes`.
		// Entries of non-GLOBAL scopes come first, then the most recently updated ones.
		FindApprovedKnowledge(ctx context.Context, scopes []string, limit int) ([]KnowledgeEntry, error)
		// IncrementKnowledgeUsage atomically adds 1 to the entry's usage counter.
		IncrementKnowledgeUsage(ctx context.Context, id string) error
		CreateKnowledge(ctx context.Context, entry KnowledgeEntry) (KnowledgeEntry, error)
	}

	ExchangeRepository interface {
		CreateExchange(ctx context.Context, exch Exchange) (Exchange, error)
		// FindRecentPositiveExchanges returns the most recent thumbs-upped exchanges of a school.
		FindRecentPositiveExchanges(ctx context.Context, schoolCode string, limit int) ([]Exchange, error)
		// SetExchangeFeedback atomically sets the feedback of the exchange matching both id and schoolCode.
		// Returns ErrExchangeNotFound if there is none.
		SetExchangeFeedback(ctx context.Context, id, schoolCode, feedback string) (Exchange, error)
		CountExchanges(ctx context.Context, schoolCode string, filter ExchangeFilter) (int, error)
		// CountExchangesByIntent returns the `limit` most frequent intents.
		CountExchangesByIntent(ctx context.Context, schoolCode string, limit int) ([]IntentCount, error)
		// CountExchangesByFeedback only counts rated exchanges.
		CountExchangesByFeedback(ctx context.Context, schoolCode string) ([]FeedbackCount, error)
	}

	FeedbackQueueRepository interface {
		CreateFeedbackEntry(ctx context.Context, entry FeedbackEntry) (FeedbackEntry, error)
		QueryFeedbackEntries(ctx context.Context, schoolCode string, filter FeedbackQueueFilter) ([]FeedbackEntry, error)
	}

	Options struct {
		KnowledgeLimit int
		HistoryLimit   int
		AppName        string
		CuratorEmails  []string
	}

	Service struct {
		knowledge KnowledgeRepository
		exchanges ExchangeRepository
		feedback  FeedbackQueueRepository
		mailSvc   core.EmailService
		opts      Options
	}

	// question is a validated question, ready to be matched.
	question struct {
		schoolCode string
		sessionID  string
		text       string
		tokens     []string
	}

	// replyStep returns nil when it has no answer for the question.
	replyStep func(ctx context.Context, q question) (*Reply, error)
)

var nowFunc = time.Now // mockable

func NewOptions(conf *core.Config) Options {
	return Options{
		KnowledgeLimit: conf.Chatbot.KnowledgeLimit,
		HistoryLimit:   conf.Chatbot.HistoryLimit,
		AppName:        conf.AppName,
		CuratorEmails:  conf.CuratorEmails,
	}
}

func NewService(
	knowledge KnowledgeRepository,
	exchanges ExchangeRepository,
	feedback FeedbackQueueRepository,
	mailSvc core.EmailService,
	opts Options,
) *Service {
	if opts.KnowledgeLimit <= 0 {
		opts.KnowledgeLimit = 500
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 150
	}
	return &Service{
		knowledge: knowledge,
		exchanges: exchanges,
		feedback:  feedback,
		mailSvc:   mailSvc,
		opts:      opts,
	}
}

// Reply answers a dashboard user's question and records the exchange.
func (svc *Service) Reply(ctx context.Context, schoolCode string, nq NewQuestion) (ReplyResult, error) {
	text := core.CleanString(core.Truncate(core.CleanString(nq.Question), MaxQuestionLength))
	if text == "" {
		return ReplyResult{}, core.NewFieldValidationError("question", "question is required")
	}
	session := core.CleanString(nq.SessionID)
	if session == "" {
		return ReplyResult{}, core.NewFieldValidationError("session_id", "session ID is required")
	}
	if utf8.RuneCountInString(session) > MaxSessionIDLength {
		return ReplyResult{}, core.NewFieldValidationError("session_id", "session ID is too long")
	}

	q := question{
		schoolCode: schoolCode,
		sessionID:  session,
		text:       text,
		tokens:     Tokenize(text),
	}
	reply, err := svc.resolve(ctx, q)
	if err != nil {
		return ReplyResult{}, err
	}

	now := nowFunc().UTC()
	exch, err := svc.exchanges.CreateExchange(ctx, Exchange{
		SchoolCode:  schoolCode,
		SessionID:   session,
		UserMessage: text,
		BotReply:    reply.Text,
		IntentID:    reply.IntentID,
		Confidence:  reply.Confidence,
		Route:       null.NewString(reply.Route, reply.Route != ""),
		Source:      reply.Source,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return ReplyResult{}, errors.Wrap(err, "saving exchange")
	}

	res := ReplyResult{
		MessageID:  exch.ID,
		Reply:      reply.Text,
		FollowUp:   null.NewString(reply.FollowUp, reply.FollowUp != ""),
		IntentID:   reply.IntentID,
		Confidence: reply.Confidence,
		Source:     reply.Source,
	}
	if reply.Route != "" {
		res.Route = null.StringFrom(reply.Route)
		res.RouteLabel = null.StringFrom(RouteLabel(reply.Route))
	}
	return res, nil
}

// resolve runs the reply chain: the first step with an answer wins, fallback otherwise.
func (svc *Service) resolve(ctx context.Context, q question) (*Reply, error) {
	steps := []replyStep{
		svc.smallTalk,
		svc.outOfScope,
		svc.matchKnowledge,
		svc.matchHistory,
	}
	for _, step := range steps {
		reply, err := step(ctx, q)
		if err != nil {
			return nil, err
		}
		if reply != nil {
			return reply, nil
		}
	}
	return fallbackReply(), nil
}

func (svc *Service) smallTalk(_ context.Context, q question) (*Reply, error) {
	return smallTalkReply(q.text), nil
}

func (svc *Service) outOfScope(_ context.Context, q question) (*Reply, error) {
	return outOfScopeReply(q.text), nil
}

func (svc *Service) matchKnowledge(ctx context.Context, q question) (*Reply, error) {
	entries, err := svc.knowledge.FindApprovedKnowledge(ctx, TenantScopes(q.schoolCode), svc.opts.KnowledgeLimit)
	if err != nil {
		return nil, errors.Wrap(err, "finding approved knowledge")
	}

	entry, score, ok := bestKnowledge(q.tokens, entries)
	if !ok || score < knowledgeThreshold(len(q.tokens)) {
		return nil, nil
	}

	if err = svc.knowledge.IncrementKnowledgeUsage(ctx, entry.ID); err != nil {
		return nil, errors.Wrap(err, "incrementing knowledge usage")
	}
	return knowledgeReply(entry, score), nil
}

func (svc *Service) matchHistory(ctx context.Context, q question) (*Reply, error) {
	history, err := svc.exchanges.FindRecentPositiveExchanges(ctx, q.schoolCode, svc.opts.HistoryLimit)
	if err != nil {
		return nil, errors.Wrap(err, "finding positive exchanges")
	}

	exch, score, ok := bestExchange(q.tokens, history)
	if !ok || score < historyThreshold {
		return nil, nil
	}
	return historyReply(exch), nil
}

// SetFeedback rates a previous reply. A thumbs down also queues the exchange for curators,
// once per call: rating the same exchange down twice queues it twice.
func (svc *Service) SetFeedback(ctx context.Context, schoolCode, id string, fu FeedbackUpdate) (Exchange, error) {
	if fu.Feedback != FeedbackUp && fu.Feedback != FeedbackDown {
		return Exchange{}, core.NewFieldValidationError("feedback", errInvalidFeedback)
	}

	exch, err := svc.exchanges.SetExchangeFeedback(ctx, id, schoolCode, fu.Feedback)
	if err != nil {
		if errors.Cause(err) == ErrExchangeNotFound {
			return Exchange{}, ErrExchangeNotFound
		}
		return Exchange{}, errors.Wrap(err, "setting exchange feedback")
	}

	if fu.Feedback == FeedbackDown {
		var expected null.String
		if fu.ExpectedAnswer != nil {
			ans := core.CleanString(core.Truncate(core.CleanString(*fu.ExpectedAnswer), MaxExpectedAnswerLength))
			expected = null.NewString(ans, ans != "")
		}

		now := nowFunc().UTC()
		entry, err := svc.feedback.CreateFeedbackEntry(ctx, FeedbackEntry{
			SchoolCode:     schoolCode,
			ExchangeID:     exch.ID,
			UserMessage:    exch.UserMessage,
			BotReply:       exch.BotReply,
			IntentID:       exch.IntentID,
			Feedback:       FeedbackDown,
			ExpectedAnswer: expected,
			Status:         StatusOpen,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err != nil {
			return Exchange{}, errors.Wrap(err, "queueing feedback")
		}
		svc.notifyCurators(entry)
	}
	return exch, nil
}

func (svc *Service) notifyCurators(entry FeedbackEntry) {
	to := core.ParseAddresses(svc.opts.CuratorEmails)
	if svc.mailSvc == nil || len(to) == 0 {
		return
	}

	var body strings.Builder
	_, _ = fmt.Fprintf(&body, "School: %s\n", entry.SchoolCode)
	_, _ = fmt.Fprintf(&body, "Question: %s\n", entry.UserMessage)
	_, _ = fmt.Fprintf(&body, "Reply: %s\n", entry.BotReply)
	_, _ = fmt.Fprintf(&body, "Intent: %s\n", entry.IntentID)
	if entry.ExpectedAnswer.Valid {
		_, _ = fmt.Fprintf(&body, "Expected answer: %s\n", entry.ExpectedAnswer.String)
	}

	subject := fmt.Sprintf("Chatbot reply flagged by %s", entry.SchoolCode)
	if svc.opts.AppName != "" {
		subject = fmt.Sprintf("[%s] %s", svc.opts.AppName, subject)
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:          to,
		Subject:     subject,
		TextContent: body.String(),
	})
}

// Insights aggregates a school's exchanges.
func (svc *Service) Insights(ctx context.Context, schoolCode string) (Insights, error) {
	var (
		total, low int
		intents    []IntentCount
		feedbacks  []FeedbackCount
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		total, err = svc.exchanges.CountExchanges(gctx, schoolCode, ExchangeFilter{})
		return errors.Wrap(err, "counting exchanges")
	})
	g.Go(func() (err error) {
		intents, err = svc.exchanges.CountExchangesByIntent(gctx, schoolCode, topIntentsLimit)
		return errors.Wrap(err, "counting exchanges by intent")
	})
	g.Go(func() (err error) {
		low, err = svc.exchanges.CountExchanges(gctx, schoolCode, ExchangeFilter{Confidence: ConfidenceLow})
		return errors.Wrap(err, "counting low confidence exchanges")
	})
	g.Go(func() (err error) {
		feedbacks, err = svc.exchanges.CountExchangesByFeedback(gctx, schoolCode)
		return errors.Wrap(err, "counting exchanges by feedback")
	})
	if err := g.Wait(); err != nil {
		return Insights{}, err
	}

	if intents == nil {
		intents = []IntentCount{}
	}
	if feedbacks == nil {
		feedbacks = []FeedbackCount{}
	}
	return Insights{
		TotalMessages:      total,
		LowConfidenceCount: low,
		IntentBreakdown:    intents,
		FeedbackBreakdown:  feedbacks,
		FallbackRate:       FallbackRate(low, total),
	}, nil
}

// FallbackRate is the share of low confidence replies, in percent, rounded to 2 decimals.
func FallbackRate(low, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(low)/float64(total)*100*100) / 100
}

// FeedbackQueue lists the thumbs-down queue of a school, most recent first.
func (svc *Service) FeedbackQueue(ctx context.Context, schoolCode string, filter FeedbackQueueFilter) ([]FeedbackEntry, error) {
	filter.Status = core.CleanString(filter.Status, true /* lower */)
	if filter.Status != "" && !isStatus(filter.Status) {
		return nil, core.NewFieldValidationError("status", errInvalidStatus)
	}
	entries, err := svc.feedback.QueryFeedbackEntries(ctx, schoolCode, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying feedback queue")
	}
	if entries == nil {
		entries = []FeedbackEntry{}
	}
	return entries, nil
}

// AddKnowledge curates a new knowledge entry. `nk` is expected to be validated.
func (svc *Service) AddKnowledge(ctx context.Context, nk NewKnowledge) (KnowledgeEntry, error) {
	approved := true
	if nk.Approved != nil {
		approved = *nk.Approved
	}
	tone := nk.Tone
	if tone == "" {
		tone = "friendly"
	}
	intent := nk.IntentID
	if intent == "" {
		intent = "generic"
	}
	keywords := make(Keywords, 0, len(nk.Keywords))
	for _, kw := range nk.Keywords {
		if kw = core.CleanString(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}

	now := nowFunc().UTC()
	entry, err := svc.knowledge.CreateKnowledge(ctx, KnowledgeEntry{
		Scope:            nk.Scope,
		QuestionPattern:  nk.QuestionPattern,
		Keywords:         keywords,
		AnswerText:       nk.AnswerText,
		IntentID:         intent,
		Route:            null.NewString(nk.Route, nk.Route != ""),
		Tone:             tone,
		FollowUpQuestion: null.NewString(nk.FollowUpQuestion, nk.FollowUpQuestion != ""),
		Approved:         approved,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		return KnowledgeEntry{}, errors.Wrap(err, "creating knowledge entry")
	}
	return entry, nil
}

func isStatus(s string) bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}
