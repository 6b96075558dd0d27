package school

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/shuleboard/core"
)

// Dashboard features
const (
	FeatureNews    = "news"
	FeatureEvents  = "events"
	FeatureGallery = "gallery"
	FeatureChatbot = "chatbot"
)

// Features are the dashboard modules a school has turned on.
type Features struct {
	News    bool `json:"news"`
	Events  bool `json:"events"`
	Gallery bool `json:"gallery"`
	Chatbot bool `json:"chatbot"`
}

func DefaultFeatures() Features {
	return Features{News: true, Events: true, Gallery: true, Chatbot: true}
}

// Enabled reports whether the named feature is on. Unknown features are off.
func (f Features) Enabled(name string) bool {
	switch name {
	case FeatureNews:
		return f.News
	case FeatureEvents:
		return f.Events
	case FeatureGallery:
		return f.Gallery
	case FeatureChatbot:
		return f.Chatbot
	default:
		return false
	}
}

// Scan implements sql.Scanner. Features are persisted as JSON.
func (f *Features) Scan(src interface{}) error {
	var data []byte
	switch val := src.(type) {
	case []byte:
		data = val
	case string:
		data = []byte(val)
	case nil:
		*f = DefaultFeatures()
		return nil
	default:
		return errors.Errorf("unsupported features type %T", src)
	}
	feats := DefaultFeatures()
	if err := json.Unmarshal(data, &feats); err != nil {
		return errors.Wrap(err, "unmarshalling features")
	}
	*f = feats
	return nil
}

// Value implements driver.Valuer.
func (f Features) Value() (driver.Value, error) {
	return json.Marshal(f)
}

type School struct {
	ID           string    `db:"id" json:"id"`
	Code         string    `db:"code" json:"school_code"`
	Name         string    `db:"name" json:"school_name"`
	PasswordHash []byte    `db:"password_hash" json:"-"`
	Features     Features  `db:"features" json:"features"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"` // UTC
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"` // UTC
}

func (s *School) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.PasswordHash = hash
	return nil
}

func (s *School) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(s.PasswordHash, []byte(pwd))
}

// NewSchool contains information needed to sign a new School up.
type NewSchool struct {
	Code     string `json:"school_code" validate:"required,min=3,max=20,alphanum_"`
	Name     string `json:"school_name" validate:"required,min=3,max=100"`
	Password string `json:"password" validate:"required"`
}

func (ns *NewSchool) Validate(validate *validator.Validate) error {
	ns.Code = core.CleanString(ns.Code)
	ns.Name = core.CleanString(ns.Name)
	return validate.Struct(ns)
}

type Credentials struct {
	Code     string `json:"school_code" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (c *Credentials) Validate(validate *validator.Validate) error {
	c.Code = core.CleanString(c.Code)
	return validate.Struct(c)
}

// FeaturesUpdate toggles features. Omitted features are left as they are.
type FeaturesUpdate struct {
	News    *bool `json:"news"`
	Events  *bool `json:"events"`
	Gallery *bool `json:"gallery"`
	Chatbot *bool `json:"chatbot"`
}

func (fu FeaturesUpdate) apply(f Features) Features {
	if fu.News != nil {
		f.News = *fu.News
	}
	if fu.Events != nil {
		f.Events = *fu.Events
	}
	if fu.Gallery != nil {
		f.Gallery = *fu.Gallery
	}
	if fu.Chatbot != nil {
		f.Chatbot = *fu.Chatbot
	}
	return f
}
