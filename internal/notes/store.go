// Package notes holds the client-side folder/note tree and keeps it in step with
// the remote store through optimistic mutations.
package notes

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"smartnotes/internal/apperr"
	"smartnotes/internal/gateway"
	"smartnotes/internal/logging"
	"smartnotes/internal/types"
)

const placeholderPrefix = "local-"

// Remote is the part of the gateway the store mutates.
type Remote interface {
	gateway.FolderGateway
	gateway.NoteGateway
}

type folderNode struct {
	ref     string
	folder  types.Folder
	notes   []*noteNode
	removed bool
	// index in the folder list at removal time, used to restore it.
	index int
}

type noteNode struct {
	ref       string
	folderRef string
	note      types.Note
	removed   bool
	index     int
	updates   []*pendingUpdate
}

// pendingUpdate holds the values a note update replaced, so the update can be
// undone if the remote rejects it.
type pendingUpdate struct {
	before   map[string]string
	rollback bool
}

type Store struct {
	remote      Remote
	logger      logging.Logger
	now         func() time.Time
	defaultName string
	loadLimit   int

	mu        sync.Mutex
	folders   []*folderNode
	folderMap map[string]*folderNode
	noteMap   map[string]*noteNode
	folderIDs map[string]string
	noteIDs   map[string]string
	aliases   map[string][]string
	serverIDs map[string]string
	creating  map[string]bool
	failed    map[string]bool
	inflight  int
	// gen counts mutations ever started; a load discards its fetch when it moved.
	gen    uint64
	loaded bool

	queue *entityQueue

	listeners map[int]Listener
	nextSub   int
	outbox    []Change
	flushing  bool
}

type Option func(*Store)

func WithLogger(logger logging.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDefaultFolder names the folder created for users without any.
func WithDefaultFolder(name string) Option {
	return func(s *Store) {
		s.defaultName = strings.TrimSpace(name)
	}
}

// WithLoadConcurrency bounds concurrent note fetches during Load.
func WithLoadConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.loadLimit = n
		}
	}
}

func New(remote Remote, opts ...Option) *Store {
	s := &Store{
		remote:    remote,
		logger:    logging.Nop(),
		now:       time.Now,
		loadLimit: 4,
		queue:     newEntityQueue(),
		listeners: make(map[int]Listener),
	}
	s.reset()
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Store) reset() {
	s.folders = nil
	s.folderMap = make(map[string]*folderNode)
	s.noteMap = make(map[string]*noteNode)
	s.folderIDs = make(map[string]string)
	s.noteIDs = make(map[string]string)
	s.aliases = make(map[string][]string)
	s.serverIDs = make(map[string]string)
	s.creating = make(map[string]bool)
	s.failed = make(map[string]bool)
}

// Subscribe registers fn for tree changes. Changes are delivered in order and
// never while the store lock is held. The returned func unsubscribes.
func (s *Store) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) ListFolders() []types.Folder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Folder, 0, len(s.folders))
	for _, node := range s.folders {
		out = append(out, s.folderCopy(node))
	}
	return out
}

func (s *Store) GetFolder(id string) (types.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node := s.visibleFolder(id)
	if node == nil {
		return types.Folder{}, apperr.NotFound("get folder", "folder not found")
	}
	return s.folderCopy(node), nil
}

func (s *Store) ListNotes(folderID string) ([]types.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node := s.visibleFolder(folderID)
	if node == nil {
		return nil, apperr.NotFound("list notes", "folder not found")
	}
	out := make([]types.Note, 0, len(node.notes))
	for _, n := range node.notes {
		out = append(out, s.noteCopy(n))
	}
	return out, nil
}

func (s *Store) GetNote(id string) (types.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node := s.visibleNote(id)
	if node == nil {
		return types.Note{}, apperr.NotFound("get note", "note not found")
	}
	return s.noteCopy(node), nil
}

// Stats counts visible folders and notes.
func (s *Store) Stats() types.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := types.Stats{Folders: len(s.folders)}
	for _, node := range s.folders {
		stats.Notes += len(node.notes)
	}
	return stats
}

// RecentNotes returns up to limit visible notes, most recently updated first.
func (s *Store) RecentNotes(limit int) []types.Note {
	s.mu.Lock()
	var out []types.Note
	for _, folder := range s.folders {
		for _, n := range folder.notes {
			out = append(out, s.noteCopy(n))
		}
	}
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Pending reports how many remote mutations have not completed yet.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight
}

// Resolve maps any id the entity ever had to its current id.
func (s *Store) Resolve(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if node := s.visibleFolder(id); node != nil {
		return node.folder.ID, true
	}
	if node := s.visibleNote(id); node != nil {
		return node.note.ID, true
	}
	return "", false
}

// AutosaveContent stores edited note content, keeping the local text if the
// remote rejects it.
func (s *Store) AutosaveContent(ctx context.Context, noteID, content string) error {
	_, err := s.UpdateNote(ctx, noteID, types.NotePatch{Content: types.StringPtr(content)}, WithoutRollback())
	return err
}

func (s *Store) visibleFolder(id string) *folderNode {
	ref, ok := s.folderIDs[id]
	if !ok {
		return nil
	}
	node := s.folderMap[ref]
	if node == nil || node.removed {
		return nil
	}
	return node
}

func (s *Store) visibleNote(id string) *noteNode {
	ref, ok := s.noteIDs[id]
	if !ok {
		return nil
	}
	node := s.noteMap[ref]
	if node == nil || node.removed {
		return nil
	}
	folder := s.folderMap[node.folderRef]
	if folder == nil || folder.removed {
		return nil
	}
	return node
}

func (s *Store) folderCopy(node *folderNode) types.Folder {
	out := node.folder
	out.NoteCount = len(node.notes)
	out.Pending = s.creating[node.ref]
	return out
}

func (s *Store) noteCopy(node *noteNode) types.Note {
	out := node.note
	out.Pending = s.creating[node.ref] || len(node.updates) > 0
	return out
}

// Folder and note ids are indexed separately: the remote numbers each table
// on its own, so a folder and a note may share an id.
func (s *Store) bindFolderID(id, ref string) {
	bindID(s.folderIDs, s.aliases, id, ref)
}

func (s *Store) bindNoteID(id, ref string) {
	bindID(s.noteIDs, s.aliases, id, ref)
}

func bindID(index map[string]string, aliases map[string][]string, id, ref string) {
	if id == "" {
		return
	}
	if _, ok := index[id]; !ok {
		aliases[ref] = append(aliases[ref], id)
	}
	index[id] = ref
}

func (s *Store) dropRef(ref string) {
	for _, id := range s.aliases[ref] {
		if s.folderIDs[id] == ref {
			delete(s.folderIDs, id)
		}
		if s.noteIDs[id] == ref {
			delete(s.noteIDs, id)
		}
	}
	delete(s.aliases, ref)
	delete(s.serverIDs, ref)
	delete(s.creating, ref)
	delete(s.failed, ref)
}

// settle releases a queue slot. A failed create is forgotten once nothing else
// is queued behind it.
func (s *Store) settle(ref string, release func()) {
	release()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed[ref] && s.queue.tail(ref) == nil {
		s.forget(ref)
	}
}

// forget drops every trace of ref, including notes placed in it.
func (s *Store) forget(ref string) {
	for noteRef, n := range s.noteMap {
		if n.folderRef == ref {
			delete(s.noteMap, noteRef)
			s.dropRef(noteRef)
		}
	}
	delete(s.folderMap, ref)
	delete(s.noteMap, ref)
	s.dropRef(ref)
}

// emit queues a change. Callers must hold s.mu and call flush after unlocking.
func (s *Store) emit(change Change) {
	s.outbox = append(s.outbox, change)
}

// flush delivers queued changes outside the lock. A flush already running on
// another goroutine delivers them instead, which keeps delivery ordered.
func (s *Store) flush() {
	s.mu.Lock()
	if s.flushing {
		s.mu.Unlock()
		return
	}
	s.flushing = true
	for len(s.outbox) > 0 {
		batch := s.outbox
		s.outbox = nil
		listeners := make([]Listener, 0, len(s.listeners))
		ids := make([]int, 0, len(s.listeners))
		for id := range s.listeners {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			listeners = append(listeners, s.listeners[id])
		}
		s.mu.Unlock()
		for _, change := range batch {
			for _, fn := range listeners {
				fn(change)
			}
		}
		s.mu.Lock()
	}
	s.flushing = false
	s.mu.Unlock()
}

func newRef() string {
	return placeholderPrefix + uuid.NewString()
}

// IsPlaceholder reports whether id was assigned locally and not yet confirmed.
func IsPlaceholder(id string) bool {
	return strings.HasPrefix(id, placeholderPrefix)
}

func (s *Store) begin() {
	s.inflight++
	s.gen++
}

func (s *Store) end() {
	if s.inflight > 0 {
		s.inflight--
	}
}
