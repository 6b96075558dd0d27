package inmemdb

import (
	"sync"

	"github.com/trezcool/shuleboard/core/chatbot"
	"github.com/trezcool/shuleboard/core/school"
)

type (
	// DB is a process-local store. Handy for tests and demos; nothing is persisted.
	DB struct {
		school    *schoolTable
		knowledge *knowledgeTable
		exchange  *exchangeTable
		feedback  *feedbackTable
	}

	schoolTable struct {
		rows  []*school.School
		mutex sync.RWMutex
	}

	knowledgeTable struct {
		rows  []*chatbot.KnowledgeEntry
		mutex sync.RWMutex
	}

	exchangeTable struct {
		rows  []*chatbot.Exchange
		mutex sync.RWMutex
	}

	feedbackTable struct {
		rows  []*chatbot.FeedbackEntry
		mutex sync.RWMutex
	}
)

func Open() *DB {
	return &DB{
		school:    &schoolTable{},
		knowledge: &knowledgeTable{},
		exchange:  &exchangeTable{},
		feedback:  &feedbackTable{},
	}
}
