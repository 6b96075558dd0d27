package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/shuleboard/core/chatbot"
)

type (
	knowledgeRepository struct {
		db *knowledgeTable
	}

	exchangeRepository struct {
		db *exchangeTable
	}

	feedbackQueueRepository struct {
		db *feedbackTable
	}
)

var (
	// interface compliance checks
	_ chatbot.KnowledgeRepository     = (*knowledgeRepository)(nil)
	_ chatbot.ExchangeRepository      = (*exchangeRepository)(nil)
	_ chatbot.FeedbackQueueRepository = (*feedbackQueueRepository)(nil)
)

func NewKnowledgeRepository(db *DB) *knowledgeRepository {
	return &knowledgeRepository{db: db.knowledge}
}

func NewExchangeRepository(db *DB) *exchangeRepository {
	return &exchangeRepository{db: db.exchange}
}

func NewFeedbackQueueRepository(db *DB) *feedbackQueueRepository {
	return &feedbackQueueRepository{db: db.feedback}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// Knowledge

func (repo *knowledgeRepository) FindApprovedKnowledge(_ context.Context, scopes []string, limit int) ([]chatbot.KnowledgeEntry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	entries := make([]chatbot.KnowledgeEntry, 0)
	for _, e := range repo.db.rows {
		if e.Approved && contains(scopes, e.Scope) {
			entries = append(entries, *e)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		gi, gj := chatbot.IsGlobalScope(entries[i].Scope), chatbot.IsGlobalScope(entries[j].Scope)
		if gi != gj {
			return !gi
		}
		return entries[i].UpdatedAt.After(entries[j].UpdatedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (repo *knowledgeRepository) IncrementKnowledgeUsage(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, e := range repo.db.rows {
		if e.ID == id {
			e.UsageCount++
			return nil
		}
	}
	return chatbot.ErrKnowledgeNotFound
}

func (repo *knowledgeRepository) CreateKnowledge(_ context.Context, entry chatbot.KnowledgeEntry) (chatbot.KnowledgeEntry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	entry.ID = uuid.New().String()
	repo.db.rows = append(repo.db.rows, &entry)
	return entry, nil
}

// GetKnowledge is not part of chatbot.KnowledgeRepository; tests use it to check usage counts.
func (repo *knowledgeRepository) GetKnowledge(id string) (chatbot.KnowledgeEntry, bool) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, e := range repo.db.rows {
		if e.ID == id {
			return *e, true
		}
	}
	return chatbot.KnowledgeEntry{}, false
}

// Exchanges

func (repo *exchangeRepository) forSchool(schoolCode string) []chatbot.Exchange {
	exchanges := make([]chatbot.Exchange, 0)
	for _, e := range repo.db.rows {
		if e.SchoolCode == schoolCode {
			exchanges = append(exchanges, *e)
		}
	}
	return exchanges
}

func (repo *exchangeRepository) CreateExchange(_ context.Context, exch chatbot.Exchange) (chatbot.Exchange, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	exch.ID = uuid.New().String()
	repo.db.rows = append(repo.db.rows, &exch)
	return exch, nil
}

func (repo *exchangeRepository) FindRecentPositiveExchanges(_ context.Context, schoolCode string, limit int) ([]chatbot.Exchange, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	exchanges := make([]chatbot.Exchange, 0)
	for _, e := range repo.forSchool(schoolCode) {
		if e.Feedback.Valid && e.Feedback.String == chatbot.FeedbackUp {
			exchanges = append(exchanges, e)
		}
	}
	sort.SliceStable(exchanges, func(i, j int) bool {
		return exchanges[i].CreatedAt.After(exchanges[j].CreatedAt)
	})
	if limit > 0 && len(exchanges) > limit {
		exchanges = exchanges[:limit]
	}
	return exchanges, nil
}

func (repo *exchangeRepository) SetExchangeFeedback(_ context.Context, id, schoolCode, feedback string) (chatbot.Exchange, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, e := range repo.db.rows {
		if e.ID == id && e.SchoolCode == schoolCode {
			e.Feedback.SetValid(feedback)
			e.UpdatedAt = time.Now().UTC()
			return *e, nil
		}
	}
	return chatbot.Exchange{}, chatbot.ErrExchangeNotFound
}

func (repo *exchangeRepository) CountExchanges(_ context.Context, schoolCode string, filter chatbot.ExchangeFilter) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var count int
	for _, e := range repo.forSchool(schoolCode) {
		if filter.Confidence == "" || e.Confidence == filter.Confidence {
			count++
		}
	}
	return count, nil
}

func (repo *exchangeRepository) CountExchangesByIntent(_ context.Context, schoolCode string, limit int) ([]chatbot.IntentCount, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	byIntent := make(map[string]int)
	for _, e := range repo.forSchool(schoolCode) {
		byIntent[e.IntentID]++
	}
	counts := make([]chatbot.IntentCount, 0, len(byIntent))
	for intent, n := range byIntent {
		counts = append(counts, chatbot.IntentCount{IntentID: intent, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].IntentID < counts[j].IntentID
	})
	if limit > 0 && len(counts) > limit {
		counts = counts[:limit]
	}
	return counts, nil
}

func (repo *exchangeRepository) CountExchangesByFeedback(_ context.Context, schoolCode string) ([]chatbot.FeedbackCount, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	byFeedback := make(map[string]int)
	for _, e := range repo.forSchool(schoolCode) {
		if e.Feedback.Valid {
			byFeedback[e.Feedback.String]++
		}
	}
	counts := make([]chatbot.FeedbackCount, 0, len(byFeedback))
	for fb, n := range byFeedback {
		counts = append(counts, chatbot.FeedbackCount{Feedback: fb, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Feedback < counts[j].Feedback })
	return counts, nil
}

// Feedback queue

func (repo *feedbackQueueRepository) CreateFeedbackEntry(_ context.Context, entry chatbot.FeedbackEntry) (chatbot.FeedbackEntry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	entry.ID = uuid.New().String()
	repo.db.rows = append(repo.db.rows, &entry)
	return entry, nil
}

func (repo *feedbackQueueRepository) QueryFeedbackEntries(_ context.Context, schoolCode string, filter chatbot.FeedbackQueueFilter) ([]chatbot.FeedbackEntry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	entries := make([]chatbot.FeedbackEntry, 0)
	for _, e := range repo.db.rows {
		if e.SchoolCode == schoolCode && (filter.Status == "" || e.Status == filter.Status) {
			entries = append(entries, *e)
		}
	}
	// most recent first
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}
