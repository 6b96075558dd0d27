package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/trezcool/shuleboard/core/chatbot"
	"github.com/trezcool/shuleboard/core/school"
	"github.com/trezcool/shuleboard/storage/database"
)

// PrepareDB starts a disposable postgres container and migrates it.
// Skipped with -short or when docker is unavailable.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("shuleboard_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("PrepareDB() connection string: %v", err)
	}
	db, err := database.OpenURL(ctx, dsn)
	if err != nil {
		t.Fatalf("PrepareDB() open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(ctx, db.DB, "up"); err != nil {
		t.Fatalf("PrepareDB() migrate: %v", err)
	}
	return db
}

func CreateSchool(t *testing.T, repo school.Repository, code, name, pwd string) school.School {
	t.Helper()
	now := time.Now().UTC()
	s := school.School{
		Code:      code,
		Name:      name,
		Features:  school.DefaultFeatures(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.SetPassword(pwd); err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}
	s, err := repo.CreateSchool(context.Background(), s)
	if err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}
	return s
}

func CreateKnowledge(
	t *testing.T,
	repo chatbot.KnowledgeRepository,
	scope, pattern, answer string,
	keywords chatbot.Keywords,
	approved bool,
	updatedAt ...time.Time,
) chatbot.KnowledgeEntry {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(updatedAt) > 0 {
		tstamp = updatedAt[0].UTC()
	}
	entry, err := repo.CreateKnowledge(context.Background(), chatbot.KnowledgeEntry{
		Scope:           scope,
		QuestionPattern: pattern,
		Keywords:        keywords,
		AnswerText:      answer,
		IntentID:        "generic",
		Tone:            "friendly",
		Approved:        approved,
		CreatedAt:       tstamp,
		UpdatedAt:       tstamp,
	})
	if err != nil {
		t.Fatalf("CreateKnowledge() failed: %v", err)
	}
	return entry
}

func CreateExchange(t *testing.T, repo chatbot.ExchangeRepository, schoolCode, question, intent, confidence string) chatbot.Exchange {
	t.Helper()
	now := time.Now().UTC()
	exch, err := repo.CreateExchange(context.Background(), chatbot.Exchange{
		SchoolCode:  schoolCode,
		SessionID:   "session",
		UserMessage: question,
		BotReply:    "reply to " + question,
		IntentID:    intent,
		Confidence:  confidence,
		Source:      chatbot.SourceFallback,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateExchange() failed: %v", err)
	}
	return exch
}
