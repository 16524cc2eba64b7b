package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"tips-service/internal/domain"
	"tips-service/internal/service"
	"tips-service/internal/storage"
)

// Archiver periodically exports tip and comment snapshots to object storage.
type Archiver interface {
	Start(ctx context.Context) error
	Shutdown()
	ArchiveNow(ctx context.Context) (string, error)
}

// Source produces the data to archive.
type Source interface {
	Snapshot(ctx context.Context) (service.Snapshot, error)
}

type Config struct {
	Bucket    string
	KeyPrefix string
	Interval  time.Duration
	// Retain is the number of most recent snapshots kept; zero keeps all.
	Retain int
	Logger *logrus.Logger
	Now    func() time.Time
}

type archiver struct {
	cfg     Config
	source  Source
	storage storage.Service

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	// mu serializes uploads between the ticker and ArchiveNow.
	mu sync.Mutex
}

func NewArchiver(cfg Config, source Source, store storage.Service) Archiver {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.KeyPrefix = strings.Trim(cfg.KeyPrefix, "/")
	return &archiver{
		cfg:     cfg,
		source:  source,
		storage: store,
	}
}

func (a *archiver) Start(ctx context.Context) error {
	if a.cfg.Bucket == "" {
		return fmt.Errorf("storage bucket is required")
	}
	if a.storage == nil {
		return fmt.Errorf("storage service is required")
	}

	a.ctx, a.cancel = context.WithCancel(ctx)
	a.wg.Add(1)
	go a.loop()

	a.cfg.Logger.Infof("snapshot archiver started, bucket %s every %s", a.cfg.Bucket, a.cfg.Interval)
	return nil
}

// Shutdown stops the ticker and writes a final snapshot.
func (a *archiver) Shutdown() {
	if a.cancel == nil {
		return
	}
	a.cancel()
	a.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := a.ArchiveNow(ctx); err != nil {
		a.cfg.Logger.Warnf("final snapshot: %v", err)
	}
	a.cfg.Logger.Info("snapshot archiver stopped")
}

func (a *archiver) loop() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.ArchiveNow(a.ctx); err != nil {
				a.cfg.Logger.Warnf("archive snapshot: %v", err)
			}
		}
	}
}

func (a *archiver) ArchiveNow(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap, err := a.source.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("take snapshot: %w", err)
	}

	takenAt := a.cfg.Now().UTC()
	payload, err := json.Marshal(newDocument(snap, takenAt))
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	location, err := a.storage.PutObject(ctx, bytes.NewReader(payload), storage.PutOptions{
		Bucket:      a.cfg.Bucket,
		Key:         a.objectKey(takenAt),
		ContentType: "application/json",
	})
	if err != nil {
		return "", err
	}

	a.cfg.Logger.WithFields(logrus.Fields{
		"location": location,
		"tips":     len(snap.Tips),
		"comments": len(snap.Comments),
	}).Info("snapshot archived")

	if err := a.prune(ctx); err != nil {
		a.cfg.Logger.Warnf("prune snapshots: %v", err)
	}
	return location, nil
}

func (a *archiver) objectKey(t time.Time) string {
	name := "snapshot-" + t.Format("20060102T150405.000000000Z") + ".json"
	if a.cfg.KeyPrefix == "" {
		return name
	}
	return a.cfg.KeyPrefix + "/" + name
}

// prune deletes all but the newest Retain snapshots. Keys sort by time.
func (a *archiver) prune(ctx context.Context) error {
	if a.cfg.Retain <= 0 {
		return nil
	}

	prefix := "snapshot-"
	if a.cfg.KeyPrefix != "" {
		prefix = a.cfg.KeyPrefix + "/" + prefix
	}
	objects, err := a.storage.ListObjects(ctx, a.cfg.Bucket, prefix)
	if err != nil {
		return err
	}
	if len(objects) <= a.cfg.Retain {
		return nil
	}

	keys := make([]string, len(objects))
	for i := range objects {
		keys[i] = objects[i].Key
	}
	sort.Strings(keys)
	return a.storage.DeleteObjects(ctx, a.cfg.Bucket, keys[:len(keys)-a.cfg.Retain])
}

type document struct {
	TakenAt  time.Time         `json:"taken_at"`
	Tips     []tipDocument     `json:"tips"`
	Comments []commentDocument `json:"comments"`
}

type tipDocument struct {
	TipID      uint64            `json:"tipId"`
	Username   string            `json:"username"`
	Message    string            `json:"message"`
	Created    time.Time         `json:"created"`
	Modified   time.Time         `json:"modified"`
	CommentIDs []uint64          `json:"commentIds"`
	Versions   []versionDocument `json:"versions"`
}

type commentDocument struct {
	CommentID uint64            `json:"commentId"`
	TipID     uint64            `json:"tipId"`
	Username  string            `json:"username"`
	Comment   string            `json:"comment"`
	Created   time.Time         `json:"created"`
	Modified  time.Time         `json:"modified"`
	Versions  []versionDocument `json:"versions"`
}

type versionDocument struct {
	Username string    `json:"username"`
	Content  string    `json:"content"`
	Modified time.Time `json:"modified"`
}

func newDocument(snap service.Snapshot, takenAt time.Time) document {
	doc := document{
		TakenAt:  takenAt,
		Tips:     make([]tipDocument, len(snap.Tips)),
		Comments: make([]commentDocument, len(snap.Comments)),
	}
	for i, t := range snap.Tips {
		ids := t.CommentIDs
		if ids == nil {
			ids = []uint64{}
		}
		doc.Tips[i] = tipDocument{
			TipID:      t.Tip.ID,
			Username:   t.Tip.Owner,
			Message:    t.Tip.Content,
			Created:    t.Tip.CreatedAt,
			Modified:   t.Tip.ModifiedAt,
			CommentIDs: ids,
			Versions:   versionsToDocument(t.Versions),
		}
	}
	for i, c := range snap.Comments {
		doc.Comments[i] = commentDocument{
			CommentID: c.Comment.ID,
			TipID:     c.TipID,
			Username:  c.Comment.Owner,
			Comment:   c.Comment.Content,
			Created:   c.Comment.CreatedAt,
			Modified:  c.Comment.ModifiedAt,
			Versions:  versionsToDocument(c.Versions),
		}
	}
	return doc
}

func versionsToDocument(versions []domain.Version) []versionDocument {
	out := make([]versionDocument, len(versions))
	for i, v := range versions {
		out[i] = versionDocument{
			Username: v.Owner,
			Content:  v.Content,
			Modified: v.ModifiedAt,
		}
	}
	return out
}
