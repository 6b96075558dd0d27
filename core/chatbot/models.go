package chatbot

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shuleboard/core"
)

// Scopes
const (
	ScopeGlobal = "GLOBAL"
)

// Confidence tiers
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Sources
const (
	SourceKnowledge = "knowledge"
	SourceHistory   = "history"
	SourceFallback  = "fallback"
)

// Feedback values
const (
	FeedbackUp   = "up"
	FeedbackDown = "down"
)

// Feedback queue review statuses
const (
	StatusOpen     = "open"
	StatusReviewed = "reviewed"
	StatusResolved = "resolved"
)

// Intents
const (
	IntentKnowledgeMatch  = "knowledge_match"
	IntentHistoryMatch    = "history_match"
	IntentGenericFallback = "generic_fallback"
	IntentGreeting        = "smalltalk_greeting"
	IntentHowAreYou       = "smalltalk_how_are_you"
	IntentOutOfScope      = "out_of_scope"
)

const (
	MaxQuestionLength       = 1000
	MaxExpectedAnswerLength = 2000
	MaxSessionIDLength      = 120
)

var (
	Statuses = []string{StatusOpen, StatusReviewed, StatusResolved}
)

// Keywords holds the keyword list of a KnowledgeEntry.
// Stored data comes in two shapes: a JSON list of strings or a single "|"-separated string.
// Anything else degrades to an empty list.
type Keywords []string

// KeywordsFrom converts a decoded value of unknown shape into Keywords.
func KeywordsFrom(v interface{}) Keywords {
	switch val := v.(type) {
	case Keywords:
		return val
	case []string:
		return Keywords(val)
	case []interface{}:
		kws := make(Keywords, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return Keywords{}
			}
			kws = append(kws, s)
		}
		return kws
	case string:
		return ParseKeywords(val)
	default:
		return Keywords{}
	}
}

// ParseKeywords splits a "|"-separated keyword string, trimming each value and dropping empties.
func ParseKeywords(s string) Keywords {
	parts := strings.Split(s, "|")
	kws := make(Keywords, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kws = append(kws, p)
		}
	}
	return kws
}

func (kws *Keywords) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		*kws = Keywords{}
		return nil
	}
	*kws = KeywordsFrom(raw)
	return nil
}

// Scan implements sql.Scanner. Keywords are persisted as JSON.
func (kws *Keywords) Scan(src interface{}) error {
	switch val := src.(type) {
	case []byte:
		return kws.UnmarshalJSON(val)
	case string:
		return kws.UnmarshalJSON([]byte(val))
	default:
		*kws = Keywords{}
		return nil
	}
}

// Value implements driver.Valuer.
func (kws Keywords) Value() (driver.Value, error) {
	if kws == nil {
		kws = Keywords{}
	}
	return json.Marshal([]string(kws))
}

type KnowledgeEntry struct {
	ID               string      `db:"id" json:"id"`
	Scope            string      `db:"scope" json:"scope"`
	QuestionPattern  string      `db:"question_pattern" json:"question_pattern"`
	Keywords         Keywords    `db:"keywords" json:"keywords"`
	AnswerText       string      `db:"answer_text" json:"answer_text"`
	IntentID         string      `db:"intent_id" json:"intent_id"`
	Route            null.String `db:"route" json:"route"`
	Tone             string      `db:"tone" json:"tone"`
	FollowUpQuestion null.String `db:"follow_up_question" json:"follow_up_question"`
	Approved         bool        `db:"approved" json:"approved"`
	UsageCount       int         `db:"usage_count" json:"usage_count"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"` // UTC
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"` // UTC
}

// Exchange is one recorded question/reply interaction.
type Exchange struct {
	ID          string      `db:"id" json:"id"`
	SchoolCode  string      `db:"school_code" json:"school_code"`
	SessionID   string      `db:"session_id" json:"session_id"`
	UserMessage string      `db:"user_message" json:"user_message"`
	BotReply    string      `db:"bot_reply" json:"bot_reply"`
	IntentID    string      `db:"intent_id" json:"intent_id"`
	Confidence  string      `db:"confidence" json:"confidence"`
	Route       null.String `db:"route" json:"route"`
	Source      string      `db:"source" json:"source"`
	Feedback    null.String `db:"feedback" json:"feedback"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"` // UTC
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"` // UTC
}

// FeedbackEntry is queued for curators whenever a reply gets a thumbs down.
type FeedbackEntry struct {
	ID             string      `db:"id" json:"id"`
	SchoolCode     string      `db:"school_code" json:"school_code"`
	ExchangeID     string      `db:"exchange_id" json:"exchange_id"`
	UserMessage    string      `db:"user_message" json:"user_message"`
	BotReply       string      `db:"bot_reply" json:"bot_reply"`
	IntentID       string      `db:"intent_id" json:"intent_id"`
	Feedback       string      `db:"feedback" json:"feedback"`
	ExpectedAnswer null.String `db:"expected_answer" json:"expected_answer"`
	Status         string      `db:"status" json:"status"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"` // UTC
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"` // UTC
}

// Reply is a candidate answer produced by one step of the reply chain.
type Reply struct {
	Text       string
	Route      string
	IntentID   string
	Confidence string
	Source     string
	FollowUp   string
}

// ReplyResult is what the dashboard user gets back.
type ReplyResult struct {
	MessageID  string      `json:"message_id"`
	Reply      string      `json:"reply"`
	Route      null.String `json:"route"`
	RouteLabel null.String `json:"route_label"`
	FollowUp   null.String `json:"follow_up"`
	IntentID   string      `json:"intent_id"`
	Confidence string      `json:"confidence"`
	Source     string      `json:"source"`
}

// RouteLabel derives a human readable label from a dashboard route, eg. "/news-create" -> "Open news create".
func RouteLabel(route string) string {
	label := strings.Replace(route, "/", "", 1)
	label = strings.Replace(label, "-", " ", 1)
	return "Open " + label
}

type IntentCount struct {
	IntentID string `db:"intent_id" json:"intent_id"`
	Count    int    `db:"count" json:"count"`
}

type FeedbackCount struct {
	Feedback string `db:"feedback" json:"feedback"`
	Count    int    `db:"count" json:"count"`
}

type Insights struct {
	TotalMessages      int             `json:"total_messages"`
	LowConfidenceCount int             `json:"low_confidence_count"`
	IntentBreakdown    []IntentCount   `json:"intent_breakdown"`
	FeedbackBreakdown  []FeedbackCount `json:"feedback_breakdown"`
	FallbackRate       float64         `json:"fallback_rate"`
}

// ExchangeFilter narrows exchange counts. Zero values are ignored.
type ExchangeFilter struct {
	Confidence string
}

// NewQuestion contains what is needed to ask for a reply.
type NewQuestion struct {
	Question  string `json:"question" validate:"required,notblank"`
	SessionID string `json:"session_id" validate:"required,notblank,max=120"`
}

func (nq *NewQuestion) Validate(validate *validator.Validate) error {
	nq.Question = core.CleanString(nq.Question)
	nq.SessionID = core.CleanString(nq.SessionID)
	return validate.Struct(nq)
}

// FeedbackUpdate rates a previous reply.
type FeedbackUpdate struct {
	Feedback       string  `json:"feedback" validate:"required,oneof=up down"`
	ExpectedAnswer *string `json:"expected_answer"`
}

func (fu *FeedbackUpdate) Validate(validate *validator.Validate) error {
	return validate.Struct(fu)
}

// NewKnowledge contains information needed to curate a new KnowledgeEntry.
type NewKnowledge struct {
	Scope            string   `json:"scope" validate:"required"`
	QuestionPattern  string   `json:"question_pattern" validate:"required,max=400"`
	Keywords         Keywords `json:"keywords"`
	AnswerText       string   `json:"answer_text" validate:"required,max=2000"`
	IntentID         string   `json:"intent_id"`
	Route            string   `json:"route" validate:"omitempty,max=120"`
	Tone             string   `json:"tone"`
	FollowUpQuestion string   `json:"follow_up_question" validate:"omitempty,max=300"`
	Approved         *bool    `json:"approved"`
}

func (nk *NewKnowledge) Validate(validate *validator.Validate) error {
	nk.Scope = core.CleanString(nk.Scope)
	if nk.Scope == "" {
		nk.Scope = ScopeGlobal
	}
	nk.QuestionPattern = core.CleanString(nk.QuestionPattern)
	nk.AnswerText = core.CleanString(nk.AnswerText)
	nk.IntentID = core.CleanString(nk.IntentID)
	nk.Route = core.CleanString(nk.Route)
	nk.Tone = core.CleanString(nk.Tone)
	nk.FollowUpQuestion = core.CleanString(nk.FollowUpQuestion)
	return validate.Struct(nk)
}

// FeedbackQueueFilter narrows the feedback queue listing.
type FeedbackQueueFilter struct {
	Status string `json:"status" query:"status"`
}
