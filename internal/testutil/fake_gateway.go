package testutil

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"smartnotes/internal/apperr"
	"smartnotes/internal/types"
)

// Call records one request received by FakeGateway.
type Call struct {
	Method string
	ID     string
	Patch  types.NotePatch
	Name   string
}

type fakeUser struct {
	user     types.User
	password string
}

// FakeGateway is an in-memory remote store with failure injection and call gating.
type FakeGateway struct {
	mu       sync.Mutex
	token    string
	users    map[string]*fakeUser
	folders  []*types.Folder
	notes    map[string][]*types.Note
	nextID   int
	tableIDs map[string]int
	calls    []Call
	failures map[string][]error
	holds    map[string]chan struct{}
	revoked  bool
	closed   bool

	Now func() time.Time
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		users:    make(map[string]*fakeUser),
		notes:    make(map[string][]*types.Note),
		failures: make(map[string][]error),
		holds:    make(map[string]chan struct{}),
		Now:      time.Now,
	}
}

// AddUser registers an account directly.
func (f *FakeGateway) AddUser(name, email, password string) types.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	user := types.User{ID: fmt.Sprintf("user-%d", f.nextID), Name: name, Email: email}
	f.users[strings.ToLower(email)] = &fakeUser{user: user, password: password}
	return user
}

// SeedFolder stores a folder without recording a call.
func (f *FakeGateway) SeedFolder(name string) *types.Folder {
	f.mu.Lock()
	defer f.mu.Unlock()
	folder := &types.Folder{ID: f.newID("folder"), Name: name, CreatedAt: f.Now()}
	f.folders = append(f.folders, folder)
	return cloneFolder(folder)
}

// SeedNote stores a note without recording a call.
func (f *FakeGateway) SeedNote(folderID, title, content string) *types.Note {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.Now()
	note := &types.Note{
		ID:           f.newID("note"),
		FolderID:     folderID,
		Title:        title,
		Content:      content,
		OriginalText: content,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.notes[folderID] = append(f.notes[folderID], note)
	return cloneNote(note)
}

// FailNext makes the next call of method return err.
func (f *FakeGateway) FailNext(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = append(f.failures[method], err)
}

// Hold blocks every call of method until the returned release func runs.
func (f *FakeGateway) Hold(method string) (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.holds[method] = gate
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.holds[method] == gate {
				delete(f.holds, method)
			}
			f.mu.Unlock()
			close(gate)
		})
	}
}

// RevokeToken makes authenticated calls fail as if the token expired.
func (f *FakeGateway) RevokeToken() {
	f.mu.Lock()
	f.revoked = true
	f.mu.Unlock()
}

func (f *FakeGateway) Calls(method string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, call := range f.calls {
		if method == "" || call.Method == method {
			out = append(out, call)
		}
	}
	return out
}

// WaitForCalls polls until method has been called n times.
func (f *FakeGateway) WaitForCalls(method string, n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if len(f.Calls(method)) >= n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}

func (f *FakeGateway) Folders() []*types.Folder {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*types.Folder, 0, len(f.folders))
	for _, folder := range f.folders {
		out = append(out, f.folderWithCount(folder))
	}
	return out
}

func (f *FakeGateway) Notes(folderID string) []*types.Note {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*types.Note, 0, len(f.notes[folderID]))
	for _, note := range f.notes[folderID] {
		out = append(out, cloneNote(note))
	}
	return out
}

func (f *FakeGateway) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *FakeGateway) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakeGateway) SetToken(token string) {
	f.mu.Lock()
	f.token = token
	f.mu.Unlock()
}

func (f *FakeGateway) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *FakeGateway) Register(ctx context.Context, reg types.Registration) (*types.User, error) {
	if err := f.enter(ctx, Call{Method: "Register", Name: reg.Email}, false); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.ToLower(strings.TrimSpace(reg.Email))
	if _, ok := f.users[key]; ok {
		return nil, apperr.RemoteRejected("register", http.StatusBadRequest, "Email already registered")
	}
	user := types.User{ID: f.newID("user"), Name: reg.Name, Email: strings.TrimSpace(reg.Email)}
	f.users[key] = &fakeUser{user: user, password: reg.Password}
	return &user, nil
}

func (f *FakeGateway) Login(ctx context.Context, creds types.Credentials) (*types.LoginResult, error) {
	if err := f.enter(ctx, Call{Method: "Login", Name: creds.Email}, false); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.users[strings.ToLower(strings.TrimSpace(creds.Email))]
	if !ok || account.password != creds.Password {
		return nil, apperr.InvalidCredentials("login")
	}
	f.revoked = false
	return &types.LoginResult{
		Token:    "token-" + account.user.ID,
		Type:     "bearer",
		Username: account.user.Name,
		Email:    account.user.Email,
	}, nil
}

func (f *FakeGateway) Profile(ctx context.Context) (*types.User, error) {
	if err := f.enter(ctx, Call{Method: "Profile"}, true); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	account := f.currentUser()
	if account == nil {
		return nil, apperr.NotAuthenticated("profile")
	}
	user := account.user
	return &user, nil
}

func (f *FakeGateway) UpdateProfile(ctx context.Context, update types.ProfileUpdate) (*types.User, error) {
	if err := f.enter(ctx, Call{Method: "UpdateProfile", Name: update.Name}, true); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	account := f.currentUser()
	if account == nil {
		return nil, apperr.NotAuthenticated("update profile")
	}
	oldKey := strings.ToLower(account.user.Email)
	account.user.Name = update.Name
	account.user.Email = update.Email
	if update.Password != "" {
		account.password = update.Password
	}
	delete(f.users, oldKey)
	f.users[strings.ToLower(update.Email)] = account
	user := account.user
	return &user, nil
}

func (f *FakeGateway) ListFolders(ctx context.Context) ([]*types.Folder, error) {
	if err := f.enter(ctx, Call{Method: "ListFolders"}, true); err != nil {
		return nil, err
	}
	return f.Folders(), nil
}

func (f *FakeGateway) CreateFolder(ctx context.Context, name string) (*types.Folder, error) {
	if err := f.enter(ctx, Call{Method: "CreateFolder", Name: name}, true); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, folder := range f.folders {
		if strings.EqualFold(folder.Name, strings.TrimSpace(name)) {
			return nil, apperr.RemoteRejected("create folder", http.StatusBadRequest, "Folder already exists")
		}
	}
	folder := &types.Folder{ID: f.newID("folder"), Name: strings.TrimSpace(name), CreatedAt: f.Now()}
	f.folders = append(f.folders, folder)
	return cloneFolder(folder), nil
}

func (f *FakeGateway) DeleteFolder(ctx context.Context, id string) error {
	if err := f.enter(ctx, Call{Method: "DeleteFolder", ID: id}, true); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, folder := range f.folders {
		if folder.ID == id {
			f.folders = append(f.folders[:i], f.folders[i+1:]...)
			delete(f.notes, id)
			return nil
		}
	}
	return apperr.NotFound("delete folder", "Folder not found")
}

func (f *FakeGateway) ListNotes(ctx context.Context, folderID string) ([]*types.Note, error) {
	if err := f.enter(ctx, Call{Method: "ListNotes", ID: folderID}, true); err != nil {
		return nil, err
	}
	f.mu.Lock()
	if f.folderIndex(folderID) < 0 {
		f.mu.Unlock()
		return nil, apperr.NotFound("list notes", "Folder not found")
	}
	f.mu.Unlock()
	return f.Notes(folderID), nil
}

func (f *FakeGateway) CreateNote(ctx context.Context, folderID string, draft types.NoteDraft) (*types.Note, error) {
	if err := f.enter(ctx, Call{Method: "CreateNote", ID: folderID, Name: draft.Title}, true); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.folderIndex(folderID) < 0 {
		return nil, apperr.NotFound("create note", "Folder not found")
	}
	now := f.Now()
	note := &types.Note{
		ID:           f.newID("note"),
		FolderID:     folderID,
		Title:        draft.Title,
		Content:      draft.Content,
		OriginalText: draft.OriginalText,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.notes[folderID] = append(f.notes[folderID], note)
	return cloneNote(note), nil
}

func (f *FakeGateway) UpdateNote(ctx context.Context, id string, patch types.NotePatch) (*types.Note, error) {
	if err := f.enter(ctx, Call{Method: "UpdateNote", ID: id, Patch: clonePatch(patch)}, true); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	note := f.findNote(id)
	if note == nil {
		return nil, apperr.NotFound("update note", "Note not found")
	}
	patch.Apply(note)
	note.UpdatedAt = f.Now()
	return cloneNote(note), nil
}

func (f *FakeGateway) DeleteNote(ctx context.Context, id string) error {
	if err := f.enter(ctx, Call{Method: "DeleteNote", ID: id}, true); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for folderID, notes := range f.notes {
		for i, note := range notes {
			if note.ID == id {
				f.notes[folderID] = append(notes[:i], notes[i+1:]...)
				return nil
			}
		}
	}
	return apperr.NotFound("delete note", "Note not found")
}

func (f *FakeGateway) ProcessText(ctx context.Context, text string, op types.AIOperation) (*types.TextResult, error) {
	if err := f.enter(ctx, Call{Method: "ProcessText", Name: string(op)}, true); err != nil {
		return nil, err
	}
	return &types.TextResult{ProcessedText: "enhanced: " + text}, nil
}

func (f *FakeGateway) ProcessImage(ctx context.Context, upload types.ImageUpload, op types.AIOperation) (*types.ImageResult, error) {
	if err := f.enter(ctx, Call{Method: "ProcessImage", Name: upload.Filename}, true); err != nil {
		return nil, err
	}
	return &types.ImageResult{Text: "ocr: " + upload.Filename, Confidence: 0.9}, nil
}

// enter records the call, waits on any hold and returns an injected failure.
func (f *FakeGateway) enter(ctx context.Context, call Call, requireAuth bool) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	gate := f.holds[call.Method]
	var injected error
	if queue := f.failures[call.Method]; len(queue) > 0 {
		injected = queue[0]
		f.failures[call.Method] = queue[1:]
	}
	unauthenticated := requireAuth && (f.token == "" || f.revoked)
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return apperr.NetworkUnavailable(strings.ToLower(call.Method), ctx.Err())
		}
	}
	if injected != nil {
		return injected
	}
	if unauthenticated {
		return apperr.FromStatus(strings.ToLower(call.Method), http.StatusUnauthorized, "Could not validate credentials")
	}
	return nil
}

func (f *FakeGateway) currentUser() *fakeUser {
	for _, account := range f.users {
		if "token-"+account.user.ID == f.token {
			return account
		}
	}
	return nil
}

// NumberPerTable makes ids plain integers counted per entity kind, the way a
// SQL backend assigns them. Folder "1" and note "1" can then coexist.
func (f *FakeGateway) NumberPerTable() {
	f.mu.Lock()
	f.tableIDs = make(map[string]int)
	f.mu.Unlock()
}

func (f *FakeGateway) newID(prefix string) string {
	if f.tableIDs != nil {
		f.tableIDs[prefix]++
		return strconv.Itoa(f.tableIDs[prefix])
	}
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *FakeGateway) folderIndex(id string) int {
	for i, folder := range f.folders {
		if folder.ID == id {
			return i
		}
	}
	return -1
}

func (f *FakeGateway) findNote(id string) *types.Note {
	for _, notes := range f.notes {
		for _, note := range notes {
			if note.ID == id {
				return note
			}
		}
	}
	return nil
}

func (f *FakeGateway) folderWithCount(folder *types.Folder) *types.Folder {
	out := cloneFolder(folder)
	out.NoteCount = len(f.notes[folder.ID])
	return out
}

func cloneFolder(folder *types.Folder) *types.Folder {
	clone := *folder
	return &clone
}

func cloneNote(note *types.Note) *types.Note {
	clone := *note
	return &clone
}

func clonePatch(patch types.NotePatch) types.NotePatch {
	var out types.NotePatch
	if patch.Title != nil {
		out.Title = types.StringPtr(*patch.Title)
	}
	if patch.OriginalText != nil {
		out.OriginalText = types.StringPtr(*patch.OriginalText)
	}
	if patch.Content != nil {
		out.Content = types.StringPtr(*patch.Content)
	}
	return out
}
