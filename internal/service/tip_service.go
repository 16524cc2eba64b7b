package service

import (
	"context"
	"sort"
	"sync"

	"tips-service/internal/domain"
	"tips-service/internal/store"
)

// TipService links comments to their parent tips on top of two entity stores.
type TipService interface {
	NewTip(ctx context.Context, owner, message string) (domain.Entity, error)
	GetTip(ctx context.Context, tipID uint64, includeComments bool) (*domain.Tip, error)
	UpdateTip(ctx context.Context, tipID uint64, requester, message string) (domain.Entity, error)
	TipHistory(ctx context.Context, tipID uint64) ([]domain.Version, error)
	ListTips(ctx context.Context) ([]domain.Entity, error)

	NewComment(ctx context.Context, tipID uint64, owner, text string) (domain.Entity, error)
	CommentsOf(ctx context.Context, tipID uint64) ([]domain.Entity, error)
	GetComment(ctx context.Context, commentID uint64) (domain.Entity, error)
	UpdateComment(ctx context.Context, commentID uint64, requester, text string) (domain.Entity, error)
	CommentHistory(ctx context.Context, commentID uint64) ([]domain.Version, error)

	Snapshot(ctx context.Context) (Snapshot, error)
}

// Snapshot is a point-in-time copy of every tip and comment with history.
type Snapshot struct {
	Tips     []TipRecord
	Comments []CommentRecord
}

type TipRecord struct {
	Tip        domain.Entity
	CommentIDs []uint64
	Versions   []domain.Version
}

type CommentRecord struct {
	Comment  domain.Entity
	TipID    uint64
	Versions []domain.Version
}

type tipService struct {
	tips     *store.EntityStore
	comments *store.EntityStore

	// threads maps a tip id to its *thread.
	threads sync.Map
	// parents maps a comment id to its tip id.
	parents sync.Map
}

// thread holds the comment ids of one tip in creation order.
type thread struct {
	mu  sync.Mutex
	ids []uint64
}

func NewTipService(tips, comments *store.EntityStore) TipService {
	return &tipService{
		tips:     tips,
		comments: comments,
	}
}

func (s *tipService) NewTip(ctx context.Context, owner, message string) (domain.Entity, error) {
	if err := ctx.Err(); err != nil {
		return domain.Entity{}, err
	}
	return s.tips.Create(owner, message), nil
}

func (s *tipService) GetTip(ctx context.Context, tipID uint64, includeComments bool) (*domain.Tip, error) {
	tip, err := s.tips.Get(tipID)
	if err != nil {
		return nil, err
	}
	out := &domain.Tip{Entity: tip}
	if includeComments {
		comments, err := s.CommentsOf(ctx, tipID)
		if err != nil {
			return nil, err
		}
		out.Comments = comments
	}
	return out, nil
}

func (s *tipService) UpdateTip(ctx context.Context, tipID uint64, requester, message string) (domain.Entity, error) {
	if err := ctx.Err(); err != nil {
		return domain.Entity{}, err
	}
	return s.tips.Update(tipID, requester, message)
}

func (s *tipService) TipHistory(ctx context.Context, tipID uint64) ([]domain.Version, error) {
	return s.tips.History(tipID)
}

func (s *tipService) ListTips(ctx context.Context) ([]domain.Entity, error) {
	return s.tips.ListAll(), nil
}

// NewComment creates a comment under tipID. The thread lock is held across
// creation so the thread order matches comment id order.
func (s *tipService) NewComment(ctx context.Context, tipID uint64, owner, text string) (domain.Entity, error) {
	if err := ctx.Err(); err != nil {
		return domain.Entity{}, err
	}
	th, ok := s.thread(tipID)
	if !ok {
		return domain.Entity{}, domain.ErrNotFound
	}

	th.mu.Lock()
	comment := s.comments.Create(owner, text)
	th.ids = append(th.ids, comment.ID)
	th.mu.Unlock()

	s.parents.Store(comment.ID, tipID)
	return comment, nil
}

func (s *tipService) CommentsOf(ctx context.Context, tipID uint64) ([]domain.Entity, error) {
	th, ok := s.thread(tipID)
	if !ok {
		return nil, domain.ErrNotFound
	}

	th.mu.Lock()
	ids := append([]uint64(nil), th.ids...)
	th.mu.Unlock()

	out := make([]domain.Entity, 0, len(ids))
	for _, id := range ids {
		c, err := s.comments.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *tipService) GetComment(ctx context.Context, commentID uint64) (domain.Entity, error) {
	return s.comments.Get(commentID)
}

func (s *tipService) UpdateComment(ctx context.Context, commentID uint64, requester, text string) (domain.Entity, error) {
	if err := ctx.Err(); err != nil {
		return domain.Entity{}, err
	}
	return s.comments.Update(commentID, requester, text)
}

func (s *tipService) CommentHistory(ctx context.Context, commentID uint64) ([]domain.Version, error) {
	return s.comments.History(commentID)
}

func (s *tipService) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	for _, tip := range s.tips.ListAll() {
		if err := ctx.Err(); err != nil {
			return Snapshot{}, err
		}
		versions, err := s.tips.History(tip.ID)
		if err != nil {
			return Snapshot{}, err
		}
		rec := TipRecord{Tip: tip, Versions: versions}
		if th, ok := s.thread(tip.ID); ok {
			th.mu.Lock()
			rec.CommentIDs = append([]uint64(nil), th.ids...)
			th.mu.Unlock()
		}
		snap.Tips = append(snap.Tips, rec)
	}

	comments := s.comments.ListAll()
	sort.Slice(comments, func(i, j int) bool { return comments[i].ID < comments[j].ID })
	for _, c := range comments {
		versions, err := s.comments.History(c.ID)
		if err != nil {
			return Snapshot{}, err
		}
		rec := CommentRecord{Comment: c, Versions: versions}
		if v, ok := s.parents.Load(c.ID); ok {
			rec.TipID = v.(uint64)
		}
		snap.Comments = append(snap.Comments, rec)
	}

	return snap, nil
}

// thread returns the comment thread of tipID, creating it on first use.
// Tips are never deleted, so an existing tip always has a thread.
func (s *tipService) thread(tipID uint64) (*thread, bool) {
	if v, ok := s.threads.Load(tipID); ok {
		return v.(*thread), true
	}
	if !s.tips.Exists(tipID) {
		return nil, false
	}
	v, _ := s.threads.LoadOrStore(tipID, &thread{})
	return v.(*thread), true
}
