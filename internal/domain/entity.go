package domain

import "time"

type Kind string

const (
	KindTip     Kind = "tip"
	KindComment Kind = "comment"
)

// Entity is the current state of a versioned tip or comment.
type Entity struct {
	ID         uint64
	Kind       Kind
	Owner      string
	Content    string
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// Version is an immutable snapshot produced at creation and at every update.
type Version struct {
	Owner      string
	Content    string
	ModifiedAt time.Time
}

// Tip is a tip snapshot, optionally carrying its comments in creation order.
type Tip struct {
	Entity
	Comments []Entity
}
