package types

import (
	"strings"
	"time"

	"github.com/phrasebook-app/apiserver/internal/apperr"
)

// Message is a user-submitted example sentence built around a key phrase.
type Message struct {
	// ID is the unique identifier of the message.
	ID int `json:"id" db:"id"`

	// SentenceLang is the language tag of the sentence, e.g. "en".
	SentenceLang string `json:"sentenceLang" db:"sentence_lang"`

	// Category groups messages by kind, e.g. "idiom" or "phrasal verb".
	Category string `json:"category" db:"category"`

	// Keyword is an optional search keyword.
	Keyword string `json:"keyword" db:"keyword"`

	// OrgAuthor credits the original author of a quoted sentence.
	OrgAuthor string `json:"orgAuthor" db:"org_author"`

	// From is the username of the author at creation time.
	From string `json:"from" db:"from_user"`

	KeyPhrase        string `json:"keyPhrase" db:"key_phrase"`
	KeyPhraseMeaning string `json:"keyPhraseMeaning" db:"key_phrase_meaning"`
	Sentence         string `json:"sentence" db:"sentence"`
	SentenceMeaning  string `json:"sentenceMeaning" db:"sentence_meaning"`

	// Likes starts at zero and only grows.
	Likes int `json:"likes" db:"likes"`

	Favored    *int `json:"favored" db:"favored"`
	Difficulty *int `json:"difficulty" db:"difficulty"`

	// CreatedAt is assigned once on creation and is the pagination key.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UserID references the owning user.
	UserID int `json:"userId" db:"user_id"`
}

// MessageInput carries the fields of a new message. From and UserID
// always come from the authenticated caller, never from client input.
type MessageInput struct {
	SentenceLang     string `json:"sentenceLang"`
	Category         string `json:"category"`
	Keyword          string `json:"keyword"`
	OrgAuthor        string `json:"orgAuthor"`
	KeyPhrase        string `json:"keyPhrase"`
	KeyPhraseMeaning string `json:"keyPhraseMeaning"`
	Sentence         string `json:"sentence"`
	SentenceMeaning  string `json:"sentenceMeaning"`
	Difficulty       *int   `json:"difficulty"`
	From             string `json:"-"`
	UserID           int    `json:"-"`
}

// Validate reports the first required field that is empty.
func (in MessageInput) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"category", in.Category},
		{"from", in.From},
		{"keyPhrase", in.KeyPhrase},
		{"keyPhraseMeaning", in.KeyPhraseMeaning},
		{"sentence", in.Sentence},
		{"sentenceMeaning", in.SentenceMeaning},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return requiredField(r.field)
		}
	}
	if in.UserID < 1 {
		return requiredField("userId")
	}
	return nil
}

// MessagePatch is a targeted update. Nil fields are left untouched.
type MessagePatch struct {
	SentenceLang     *string `json:"sentenceLang"`
	Category         *string `json:"category"`
	Keyword          *string `json:"keyword"`
	OrgAuthor        *string `json:"orgAuthor"`
	KeyPhrase        *string `json:"keyPhrase"`
	KeyPhraseMeaning *string `json:"keyPhraseMeaning"`
	Sentence         *string `json:"sentence"`
	SentenceMeaning  *string `json:"sentenceMeaning"`
	Difficulty       *int    `json:"difficulty"`
}

// Empty reports whether the patch changes nothing.
func (p MessagePatch) Empty() bool {
	return p.SentenceLang == nil && p.Category == nil && p.Keyword == nil &&
		p.OrgAuthor == nil && p.KeyPhrase == nil && p.KeyPhraseMeaning == nil &&
		p.Sentence == nil && p.SentenceMeaning == nil && p.Difficulty == nil
}

// Validate rejects patches that would blank a required field.
func (p MessagePatch) Validate() error {
	required := []struct {
		field string
		value *string
	}{
		{"category", p.Category},
		{"keyPhrase", p.KeyPhrase},
		{"keyPhraseMeaning", p.KeyPhraseMeaning},
		{"sentence", p.Sentence},
		{"sentenceMeaning", p.SentenceMeaning},
	}
	for _, r := range required {
		if r.value != nil && strings.TrimSpace(*r.value) == "" {
			return requiredField(r.field)
		}
	}
	return nil
}

// Apply returns m with the patch's non-nil fields written over it.
func (p MessagePatch) Apply(m Message) Message {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&m.SentenceLang, p.SentenceLang)
	set(&m.Category, p.Category)
	set(&m.Keyword, p.Keyword)
	set(&m.OrgAuthor, p.OrgAuthor)
	set(&m.KeyPhrase, p.KeyPhrase)
	set(&m.KeyPhraseMeaning, p.KeyPhraseMeaning)
	set(&m.Sentence, p.Sentence)
	set(&m.SentenceMeaning, p.SentenceMeaning)
	if p.Difficulty != nil {
		d := *p.Difficulty
		m.Difficulty = &d
	}
	return m
}

func requiredField(field string) error {
	return apperr.Validation(field, field+" is required")
}
