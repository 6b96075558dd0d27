package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/trezcool/shuleboard/core"
	"github.com/trezcool/shuleboard/core/chatbot"
)

type (
	knowledgeRepository struct {
		repository
	}

	exchangeRepository struct {
		repository
	}

	feedbackQueueRepository struct {
		repository
	}
)

var (
	// interface compliance checks
	_ chatbot.KnowledgeRepository     = (*knowledgeRepository)(nil)
	_ chatbot.ExchangeRepository      = (*exchangeRepository)(nil)
	_ chatbot.FeedbackQueueRepository = (*feedbackQueueRepository)(nil)
)

func NewKnowledgeRepository(exec core.DBExecutor) *knowledgeRepository {
	return &knowledgeRepository{repository{exec: exec}}
}

func NewExchangeRepository(exec core.DBExecutor) *exchangeRepository {
	return &exchangeRepository{repository{exec: exec}}
}

func NewFeedbackQueueRepository(exec core.DBExecutor) *feedbackQueueRepository {
	return &feedbackQueueRepository{repository{exec: exec}}
}

// Knowledge

func (repo knowledgeRepository) FindApprovedKnowledge(ctx context.Context, scopes []string, limit int) ([]chatbot.KnowledgeEntry, error) {
	q := `SELECT * FROM knowledge_entries
		WHERE approved AND scope = ANY($1)
		ORDER BY (scope IN ($2, $3)) ASC, updated_at DESC
		LIMIT $4`
	entries := make([]chatbot.KnowledgeEntry, 0)
	err := repo.exec.SelectContext(ctx, &entries, q,
		pq.Array(scopes), chatbot.ScopeGlobal, chatbot.ScopeGlobal+",", limit)
	if err != nil {
		return nil, dbError(err, "selecting approved knowledge")
	}
	return entries, nil
}

func (repo knowledgeRepository) IncrementKnowledgeUsage(ctx context.Context, id string) error {
	if !validID(id) {
		return chatbot.ErrKnowledgeNotFound
	}
	res, err := repo.exec.ExecContext(ctx, `UPDATE knowledge_entries SET usage_count = usage_count + 1 WHERE id = $1`, id)
	if err != nil {
		return dbError(err, "incrementing knowledge usage")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return chatbot.ErrKnowledgeNotFound
	}
	return nil
}

func (repo knowledgeRepository) CreateKnowledge(ctx context.Context, entry chatbot.KnowledgeEntry) (chatbot.KnowledgeEntry, error) {
	entry.ID = uuid.New().String()
	q := `INSERT INTO knowledge_entries (id, scope, question_pattern, keywords, answer_text, intent_id, route, tone,
			follow_up_question, approved, usage_count, created_at, updated_at)
		VALUES (:id, :scope, :question_pattern, :keywords, :answer_text, :intent_id, :route, :tone,
			:follow_up_question, :approved, :usage_count, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.exec, q, entry); err != nil {
		return chatbot.KnowledgeEntry{}, dbError(err, "inserting knowledge entry")
	}
	return entry, nil
}

// Exchanges

func (repo exchangeRepository) CreateExchange(ctx context.Context, exch chatbot.Exchange) (chatbot.Exchange, error) {
	exch.ID = uuid.New().String()
	q := `INSERT INTO exchanges (id, school_code, session_id, user_message, bot_reply, intent_id, confidence, route,
			source, feedback, created_at, updated_at)
		VALUES (:id, :school_code, :session_id, :user_message, :bot_reply, :intent_id, :confidence, :route,
			:source, :feedback, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.exec, q, exch); err != nil {
		return chatbot.Exchange{}, dbError(err, "inserting exchange")
	}
	return exch, nil
}

func (repo exchangeRepository) FindRecentPositiveExchanges(ctx context.Context, schoolCode string, limit int) ([]chatbot.Exchange, error) {
	q := `SELECT * FROM exchanges
		WHERE school_code = $1 AND feedback = $2
		ORDER BY created_at DESC
		LIMIT $3`
	exchanges := make([]chatbot.Exchange, 0)
	if err := repo.exec.SelectContext(ctx, &exchanges, q, schoolCode, chatbot.FeedbackUp, limit); err != nil {
		return nil, dbError(err, "selecting positive exchanges")
	}
	return exchanges, nil
}

func (repo exchangeRepository) SetExchangeFeedback(ctx context.Context, id, schoolCode, feedback string) (chatbot.Exchange, error) {
	if !validID(id) {
		return chatbot.Exchange{}, chatbot.ErrExchangeNotFound
	}
	q := `UPDATE exchanges SET feedback = $1, updated_at = now()
		WHERE id = $2 AND school_code = $3
		RETURNING *`
	var exch chatbot.Exchange
	if err := repo.exec.GetContext(ctx, &exch, q, feedback, id, schoolCode); err != nil {
		return chatbot.Exchange{}, trapNoRowsErr(err, chatbot.ErrExchangeNotFound, "updating exchange feedback")
	}
	return exch, nil
}

func (repo exchangeRepository) CountExchanges(ctx context.Context, schoolCode string, filter chatbot.ExchangeFilter) (int, error) {
	q := `SELECT COUNT(*) FROM exchanges WHERE school_code = $1`
	args := []interface{}{schoolCode}
	if filter.Confidence != "" {
		q += ` AND confidence = $2`
		args = append(args, filter.Confidence)
	}
	var count int
	if err := repo.exec.GetContext(ctx, &count, q, args...); err != nil {
		return 0, dbError(err, "counting exchanges")
	}
	return count, nil
}

func (repo exchangeRepository) CountExchangesByIntent(ctx context.Context, schoolCode string, limit int) ([]chatbot.IntentCount, error) {
	q := `SELECT intent_id, COUNT(*) AS count FROM exchanges
		WHERE school_code = $1
		GROUP BY intent_id
		ORDER BY count DESC, intent_id ASC
		LIMIT $2`
	counts := make([]chatbot.IntentCount, 0)
	if err := repo.exec.SelectContext(ctx, &counts, q, schoolCode, limit); err != nil {
		return nil, dbError(err, "counting exchanges by intent")
	}
	return counts, nil
}

func (repo exchangeRepository) CountExchangesByFeedback(ctx context.Context, schoolCode string) ([]chatbot.FeedbackCount, error) {
	q := `SELECT feedback, COUNT(*) AS count FROM exchanges
		WHERE school_code = $1 AND feedback IS NOT NULL
		GROUP BY feedback
		ORDER BY feedback ASC`
	counts := make([]chatbot.FeedbackCount, 0)
	if err := repo.exec.SelectContext(ctx, &counts, q, schoolCode); err != nil {
		return nil, dbError(err, "counting exchanges by feedback")
	}
	return counts, nil
}

// Feedback queue

func (repo feedbackQueueRepository) CreateFeedbackEntry(ctx context.Context, entry chatbot.FeedbackEntry) (chatbot.FeedbackEntry, error) {
	entry.ID = uuid.New().String()
	q := `INSERT INTO feedback_queue (id, school_code, exchange_id, user_message, bot_reply, intent_id, feedback,
			expected_answer, status, created_at, updated_at)
		VALUES (:id, :school_code, :exchange_id, :user_message, :bot_reply, :intent_id, :feedback,
			:expected_answer, :status, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.exec, q, entry); err != nil {
		return chatbot.FeedbackEntry{}, dbError(err, "inserting feedback entry")
	}
	return entry, nil
}

func (repo feedbackQueueRepository) QueryFeedbackEntries(ctx context.Context, schoolCode string, filter chatbot.FeedbackQueueFilter) ([]chatbot.FeedbackEntry, error) {
	q := `SELECT * FROM feedback_queue WHERE school_code = $1`
	args := []interface{}{schoolCode}
	if filter.Status != "" {
		q += ` AND status = $2`
		args = append(args, filter.Status)
	}
	q += ` ORDER BY created_at DESC`

	entries := make([]chatbot.FeedbackEntry, 0)
	if err := repo.exec.SelectContext(ctx, &entries, q, args...); err != nil {
		return nil, dbError(err, "querying feedback entries")
	}
	return entries, nil
}
