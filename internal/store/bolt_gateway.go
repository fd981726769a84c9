package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/crypto/bcrypt"

	"smartnotes/internal/apperr"
	"smartnotes/internal/logging"
	"smartnotes/internal/types"
)

var (
	bucketUsers  = []byte("users")
	bucketTokens = []byte("tokens")
)

// AIBackend handles AI requests for the local backend, which has no model of its own.
type AIBackend interface {
	ProcessText(ctx context.Context, text string, op types.AIOperation) (*types.TextResult, error)
	ProcessImage(ctx context.Context, upload types.ImageUpload, op types.AIOperation) (*types.ImageResult, error)
}

type userRecord struct {
	User         types.User     `json:"user"`
	PasswordHash []byte         `json:"password_hash"`
	Folders      []folderRecord `json:"folders"`
}

type folderRecord struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	CreatedAt time.Time     `json:"created_at"`
	Notes     []*types.Note `json:"notes"`
}

// BoltGateway keeps every user's folders and notes in a local bbolt database.
type BoltGateway struct {
	db     *bolt.DB
	ai     AIBackend
	logger logging.Logger
	now    func() time.Time
	cost   int

	mu    sync.RWMutex
	token string
}

type BoltOption func(*BoltGateway)

func WithAIBackend(ai AIBackend) BoltOption {
	return func(g *BoltGateway) {
		g.ai = ai
	}
}

func WithLogger(logger logging.Logger) BoltOption {
	return func(g *BoltGateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func WithClock(now func() time.Time) BoltOption {
	return func(g *BoltGateway) {
		if now != nil {
			g.now = now
		}
	}
}

// WithHashCost lowers the bcrypt cost, which keeps tests fast.
func WithHashCost(cost int) BoltOption {
	return func(g *BoltGateway) {
		g.cost = cost
	}
}

func OpenBoltGateway(path string, opts ...BoltOption) (*BoltGateway, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("local db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := initBboltSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	g := &BoltGateway{
		db:     db,
		logger: logging.Nop(),
		now:    time.Now,
		cost:   bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

func initBboltSchema(db *bolt.DB) error {
	return db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketUsers); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketTokens); err != nil {
			return err
		}
		return nil
	})
}

func (g *BoltGateway) Close() error {
	if g == nil || g.db == nil {
		return nil
	}
	return g.db.Close()
}

func (g *BoltGateway) SetToken(token string) {
	g.mu.Lock()
	g.token = strings.TrimSpace(token)
	g.mu.Unlock()
}

func (g *BoltGateway) currentToken() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.token
}

func (g *BoltGateway) Register(ctx context.Context, reg types.Registration) (*types.User, error) {
	const op = "register"
	if err := ctx.Err(); err != nil {
		return nil, apperr.NetworkUnavailable(op, err)
	}
	email := strings.TrimSpace(reg.Email)
	key := emailKey(email)
	if key == "" || reg.Password == "" {
		return nil, apperr.RemoteRejected(op, http.StatusBadRequest, "email and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), g.cost)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(reg.Name)
	if name == "" {
		name = email
	}
	record := userRecord{
		User: types.User{
			ID:    uuid.NewString(),
			Name:  name,
			Email: email,
		},
		PasswordHash: hash,
	}
	err = g.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		if b.Get([]byte(key)) != nil {
			return apperr.RemoteRejected(op, http.StatusBadRequest, "Email already registered")
		}
		return putRecord(b, key, &record)
	})
	if err != nil {
		return nil, err
	}
	user := record.User
	return &user, nil
}

func (g *BoltGateway) Login(ctx context.Context, creds types.Credentials) (*types.LoginResult, error) {
	const op = "login"
	if err := ctx.Err(); err != nil {
		return nil, apperr.NetworkUnavailable(op, err)
	}
	key := emailKey(creds.Email)
	var result *types.LoginResult
	err := g.db.Update(func(tx *bolt.Tx) error {
		record, err := getRecord(tx.Bucket(bucketUsers), key)
		if err != nil {
			return err
		}
		if record == nil {
			return apperr.InvalidCredentials(op)
		}
		if bcrypt.CompareHashAndPassword(record.PasswordHash, []byte(creds.Password)) != nil {
			return apperr.InvalidCredentials(op)
		}
		token := uuid.NewString()
		if err := tx.Bucket(bucketTokens).Put([]byte(token), []byte(key)); err != nil {
			return err
		}
		result = &types.LoginResult{
			Token:    token,
			Type:     "bearer",
			Username: record.User.Name,
			Email:    record.User.Email,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (g *BoltGateway) Profile(ctx context.Context) (*types.User, error) {
	var user types.User
	err := g.view(ctx, "profile", func(record *userRecord) error {
		user = record.User
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (g *BoltGateway) UpdateProfile(ctx context.Context, update types.ProfileUpdate) (*types.User, error) {
	const op = "update profile"
	if err := ctx.Err(); err != nil {
		return nil, apperr.NetworkUnavailable(op, err)
	}
	name := strings.TrimSpace(update.Name)
	email := strings.TrimSpace(update.Email)
	if name == "" || emailKey(email) == "" {
		return nil, apperr.RemoteRejected(op, http.StatusBadRequest, "name and email are required")
	}
	var hash []byte
	if update.Password != "" {
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(update.Password), g.cost)
		if err != nil {
			return nil, err
		}
	}
	var user types.User
	err := g.db.Update(func(tx *bolt.Tx) error {
		oldKey, record, err := g.authorize(tx, op)
		if err != nil {
			return err
		}
		users := tx.Bucket(bucketUsers)
		newKey := emailKey(email)
		if newKey != oldKey && users.Get([]byte(newKey)) != nil {
			return apperr.RemoteRejected(op, http.StatusBadRequest, "Email already registered")
		}
		record.User.Name = name
		record.User.Email = email
		if update.Avatar != "" {
			record.User.Avatar = update.Avatar
		}
		if hash != nil {
			record.PasswordHash = hash
		}
		if newKey != oldKey {
			if err := users.Delete([]byte(oldKey)); err != nil {
				return err
			}
			if err := rekeyTokens(tx.Bucket(bucketTokens), oldKey, newKey); err != nil {
				return err
			}
		}
		user = record.User
		return putRecord(users, newKey, record)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (g *BoltGateway) ListFolders(ctx context.Context) ([]*types.Folder, error) {
	var out []*types.Folder
	err := g.view(ctx, "list folders", func(record *userRecord) error {
		out = make([]*types.Folder, 0, len(record.Folders))
		for _, folder := range record.Folders {
			out = append(out, folder.toFolder())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (g *BoltGateway) CreateFolder(ctx context.Context, name string) (*types.Folder, error) {
	const op = "create folder"
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.RemoteRejected(op, http.StatusBadRequest, "Folder name is required")
	}
	var out *types.Folder
	err := g.update(ctx, op, func(record *userRecord) error {
		for _, folder := range record.Folders {
			if strings.EqualFold(folder.Name, name) {
				return apperr.RemoteRejected(op, http.StatusBadRequest, "Folder with this name already exists")
			}
		}
		folder := folderRecord{
			ID:        uuid.NewString(),
			Name:      name,
			CreatedAt: g.now().UTC(),
		}
		record.Folders = append(record.Folders, folder)
		out = folder.toFolder()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (g *BoltGateway) DeleteFolder(ctx context.Context, id string) error {
	const op = "delete folder"
	return g.update(ctx, op, func(record *userRecord) error {
		idx := record.folderIndex(id)
		if idx < 0 {
			return apperr.NotFound(op, "Folder not found")
		}
		record.Folders = append(record.Folders[:idx], record.Folders[idx+1:]...)
		return nil
	})
}

func (g *BoltGateway) ListNotes(ctx context.Context, folderID string) ([]*types.Note, error) {
	const op = "list notes"
	var out []*types.Note
	err := g.view(ctx, op, func(record *userRecord) error {
		idx := record.folderIndex(folderID)
		if idx < 0 {
			return apperr.NotFound(op, "Folder not found")
		}
		notes := record.Folders[idx].Notes
		out = make([]*types.Note, 0, len(notes))
		for _, note := range notes {
			out = append(out, cloneNote(note))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (g *BoltGateway) CreateNote(ctx context.Context, folderID string, draft types.NoteDraft) (*types.Note, error) {
	const op = "create note"
	title := strings.TrimSpace(draft.Title)
	if title == "" {
		return nil, apperr.RemoteRejected(op, http.StatusBadRequest, "Note title is required")
	}
	var out *types.Note
	err := g.update(ctx, op, func(record *userRecord) error {
		idx := record.folderIndex(folderID)
		if idx < 0 {
			return apperr.NotFound(op, "Folder not found")
		}
		now := g.now().UTC()
		note := &types.Note{
			ID:           uuid.NewString(),
			FolderID:     record.Folders[idx].ID,
			Title:        title,
			OriginalText: draft.OriginalText,
			Content:      draft.Content,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if note.OriginalText == "" {
			note.OriginalText = note.Content
		}
		record.Folders[idx].Notes = append(record.Folders[idx].Notes, note)
		out = cloneNote(note)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (g *BoltGateway) UpdateNote(ctx context.Context, id string, patch types.NotePatch) (*types.Note, error) {
	const op = "update note"
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, apperr.RemoteRejected(op, http.StatusBadRequest, "Note title is required")
	}
	var out *types.Note
	err := g.update(ctx, op, func(record *userRecord) error {
		note := record.findNote(id)
		if note == nil {
			return apperr.NotFound(op, "Note not found")
		}
		patch.Apply(note)
		note.UpdatedAt = g.now().UTC()
		out = cloneNote(note)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (g *BoltGateway) DeleteNote(ctx context.Context, id string) error {
	const op = "delete note"
	return g.update(ctx, op, func(record *userRecord) error {
		for i := range record.Folders {
			notes := record.Folders[i].Notes
			for j, note := range notes {
				if note.ID == id {
					record.Folders[i].Notes = append(notes[:j], notes[j+1:]...)
					return nil
				}
			}
		}
		return apperr.NotFound(op, "Note not found")
	})
}

func (g *BoltGateway) ProcessText(ctx context.Context, text string, op types.AIOperation) (*types.TextResult, error) {
	if _, err := g.Profile(ctx); err != nil {
		return nil, err
	}
	if g.ai == nil {
		return nil, errAIUnavailable("process text")
	}
	return g.ai.ProcessText(ctx, text, op)
}

func (g *BoltGateway) ProcessImage(ctx context.Context, upload types.ImageUpload, op types.AIOperation) (*types.ImageResult, error) {
	if _, err := g.Profile(ctx); err != nil {
		return nil, err
	}
	if g.ai == nil {
		return nil, errAIUnavailable("process image")
	}
	return g.ai.ProcessImage(ctx, upload, op)
}

func errAIUnavailable(op string) error {
	return apperr.RemoteRejected(op, http.StatusServiceUnavailable, "AI processing requires a configured API server")
}

func (g *BoltGateway) view(ctx context.Context, op string, fn func(*userRecord) error) error {
	if err := ctx.Err(); err != nil {
		return apperr.NetworkUnavailable(op, err)
	}
	return g.db.View(func(tx *bolt.Tx) error {
		_, record, err := g.authorize(tx, op)
		if err != nil {
			return err
		}
		return fn(record)
	})
}

func (g *BoltGateway) update(ctx context.Context, op string, fn func(*userRecord) error) error {
	if err := ctx.Err(); err != nil {
		return apperr.NetworkUnavailable(op, err)
	}
	return g.db.Update(func(tx *bolt.Tx) error {
		key, record, err := g.authorize(tx, op)
		if err != nil {
			return err
		}
		if err := fn(record); err != nil {
			return err
		}
		return putRecord(tx.Bucket(bucketUsers), key, record)
	})
}

func (g *BoltGateway) authorize(tx *bolt.Tx, op string) (string, *userRecord, error) {
	token := g.currentToken()
	if token == "" {
		return "", nil, apperr.NotAuthenticated(op)
	}
	key := tx.Bucket(bucketTokens).Get([]byte(token))
	if key == nil {
		return "", nil, apperr.NotAuthenticated(op)
	}
	record, err := getRecord(tx.Bucket(bucketUsers), string(key))
	if err != nil {
		return "", nil, err
	}
	if record == nil {
		return "", nil, apperr.NotAuthenticated(op)
	}
	return string(key), record, nil
}

func getRecord(b *bolt.Bucket, key string) (*userRecord, error) {
	if key == "" {
		return nil, nil
	}
	raw := b.Get([]byte(key))
	if len(raw) == 0 {
		return nil, nil
	}
	var record userRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func putRecord(b *bolt.Bucket, key string, record *userRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), data)
}

func rekeyTokens(b *bolt.Bucket, oldKey, newKey string) error {
	var tokens [][]byte
	err := b.ForEach(func(k, v []byte) error {
		if string(v) == oldKey {
			tokens = append(tokens, append([]byte(nil), k...))
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, token := range tokens {
		if err := b.Put(token, []byte(newKey)); err != nil {
			return err
		}
	}
	return nil
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *userRecord) folderIndex(id string) int {
	for i, folder := range r.Folders {
		if folder.ID == id {
			return i
		}
	}
	return -1
}

func (r *userRecord) findNote(id string) *types.Note {
	for _, folder := range r.Folders {
		for _, note := range folder.Notes {
			if note.ID == id {
				return note
			}
		}
	}
	return nil
}

func (f folderRecord) toFolder() *types.Folder {
	return &types.Folder{
		ID:        f.ID,
		Name:      f.Name,
		CreatedAt: f.CreatedAt,
		NoteCount: len(f.Notes),
	}
}

func cloneNote(note *types.Note) *types.Note {
	if note == nil {
		return nil
	}
	clone := *note
	return &clone
}
