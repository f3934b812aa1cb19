// Package conversation models the message thread between a listing's sharer
// and the user who started the thread. The sharer is persisted as an
// embedded copy of the user document rather than a foreign id, so the
// thread stays readable even when the account is later changed or removed.
package conversation

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"lendit/internal/user"
	"lendit/pkg/docstore"
	"lendit/pkg/domain"
	"lendit/pkg/platform/sentinel"
)

const CollectionName = "conversations"

// Conversation adapts one stored conversation document.
type Conversation struct {
	doc      *docstore.Document
	passport domain.Passport
	events   []domain.Event

	users docstore.Collection
}

func (c *Conversation) ID() string { return c.doc.ID() }

func (c *Conversation) Subject() string { return c.doc.GetString("subject") }

func (c *Conversation) SetSubject(v string) { c.doc.Set("subject", v) }

func (c *Conversation) CreatedAt() time.Time {
	v, _ := c.doc.Get("createdAt")
	t, _ := v.(time.Time)
	return t
}

// Sharer returns the embedded sharer copy wrapped in the variant adapter
// matching its discriminator. The copy reflects the sharer at embed time,
// not the live account.
func (c *Conversation) Sharer() (user.Reference, error) {
	rv, err := c.doc.Ref("sharer")
	if err != nil {
		return user.Reference{}, err
	}
	return user.FromRefValue(rv, c.passport)
}

// SetSharer embeds a copy of the sharer's stored document. A resolved
// aggregate is required; a bare reference has no document to copy.
func (c *Conversation) SetSharer(u user.User) error {
	if u == nil {
		return fmt.Errorf("set sharer: %w", sentinel.ErrMissingReferenceID)
	}
	return c.doc.SetEmbedded("sharer", u.Snapshot())
}

// Starter returns the reference to the user who opened the thread.
func (c *Conversation) Starter() (user.Reference, error) {
	rv, err := c.doc.Ref("starter")
	if err != nil {
		return user.Reference{}, err
	}
	return user.FromRefValue(rv, c.passport)
}

// LoadStarter resolves the starter reference. Idempotent.
func (c *Conversation) LoadStarter(ctx context.Context) (user.Reference, error) {
	if c.users == nil {
		return user.Reference{}, fmt.Errorf("load starter: collection not wired: %w", sentinel.ErrInvalidState)
	}
	rv, err := c.doc.LoadRef(ctx, "starter", c.users)
	if err != nil {
		return user.Reference{}, err
	}
	return user.FromRefValue(rv, c.passport)
}

// SetStarter accepts a minimal reference or a full user aggregate.
func (c *Conversation) SetStarter(v user.Referencer) error {
	if v == nil {
		return fmt.Errorf("set starter: %w", sentinel.ErrMissingReferenceID)
	}
	return c.doc.SetRef("starter", v.ID())
}

// Message is one entry of the embedded thread.
type Message struct {
	SenderID string
	Body     string
	SentAt   time.Time
}

// Messages returns the embedded thread in insertion order.
func (c *Conversation) Messages() []Message {
	v, _ := c.doc.Get("messages")
	raw, _ := v.([]any)
	out := make([]Message, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(bson.M)
		if !ok {
			continue
		}
		msg := Message{
			SenderID: docstore.IDString(m["sender"]),
		}
		msg.Body, _ = m["body"].(string)
		msg.SentAt, _ = m["sentAt"].(time.Time)
		out = append(out, msg)
	}
	return out
}

// AddMessage appends to the embedded thread and records the event.
func (c *Conversation) AddMessage(senderID, body string) error {
	if senderID == "" {
		return fmt.Errorf("add message: %w", sentinel.ErrMissingReferenceID)
	}
	v, _ := c.doc.Get("messages")
	raw, _ := v.([]any)
	raw = append(raw, bson.M{
		"sender": senderID,
		"body":   body,
		"sentAt": time.Now().UTC(),
	})
	c.doc.Set("messages", raw)
	c.Record(NewMessageAdded(c.ID(), senderID))
	return nil
}

func (c *Conversation) Record(e domain.Event) { c.events = append(c.events, e) }

func (c *Conversation) DrainEvents() []domain.Event {
	out := c.events
	c.events = nil
	return out
}

// Started is recorded when a new thread is opened.
type Started struct {
	domain.BaseEvent
	StarterID string `json:"starterId"`
}

func NewStarted(conversationID, starterID string) Started {
	return Started{
		BaseEvent: domain.NewBaseEvent("conversation.started", conversationID),
		StarterID: starterID,
	}
}

// MessageAdded is recorded for each appended message.
type MessageAdded struct {
	domain.BaseEvent
	SenderID string `json:"senderId"`
}

func NewMessageAdded(conversationID, senderID string) MessageAdded {
	return MessageAdded{
		BaseEvent: domain.NewBaseEvent("conversation.message_added", conversationID),
		SenderID:  senderID,
	}
}
