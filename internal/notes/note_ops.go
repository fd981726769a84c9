package notes

import (
	"context"
	"strings"

	"smartnotes/internal/apperr"
	"smartnotes/internal/logging"
	"smartnotes/internal/types"
)

type updateOptions struct {
	rollback bool
}

type UpdateOption func(*updateOptions)

// WithoutRollback keeps the local values when the remote rejects the update.
func WithoutRollback() UpdateOption {
	return func(o *updateOptions) {
		o.rollback = false
	}
}

// CreateNote creates a note in folderID and waits for the remote to confirm it.
func (s *Store) CreateNote(ctx context.Context, folderID, title, originalText string) (types.Note, error) {
	op, err := s.BeginCreateNote(ctx, folderID, title, originalText)
	if err != nil {
		return types.Note{}, err
	}
	return op.Wait(ctx)
}

// BeginCreateNote inserts a placeholder note and sends the create once the
// folder has a server id.
func (s *Store) BeginCreateNote(ctx context.Context, folderID, title, originalText string) (*Op[types.Note], error) {
	const opName = "create note"
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperr.Validation(opName, "title", "note title is required")
	}

	s.mu.Lock()
	folder := s.visibleFolder(folderID)
	if folder == nil {
		s.mu.Unlock()
		return nil, apperr.NotFound(opName, "folder not found")
	}
	ref := newRef()
	now := s.now().UTC()
	node := &noteNode{
		ref:       ref,
		folderRef: folder.ref,
		note: types.Note{
			ID:           ref,
			FolderID:     folder.folder.ID,
			Title:        title,
			OriginalText: originalText,
			Content:      originalText,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
	folder.notes = append(folder.notes, node)
	s.noteMap[ref] = node
	s.bindNoteID(ref, ref)
	s.creating[ref] = true
	s.begin()
	folderReady := s.queue.tail(folder.ref)
	prev, release := s.queue.enqueue(ref)
	draft := types.NoteDraft{Title: title, Content: originalText, OriginalText: originalText}
	s.emit(Change{Kind: NoteAdded, FolderID: folder.folder.ID, NoteID: ref})
	s.mu.Unlock()
	s.flush()

	op := newOp[types.Note](ref)
	go func() {
		defer s.settle(ref, release)
		waitFor(prev)
		waitFor(folderReady)
		op.finish(s.sendCreateNote(ctx, ref, draft))
	}()
	return op, nil
}

func (s *Store) sendCreateNote(ctx context.Context, ref string, draft types.NoteDraft) (types.Note, error) {
	s.mu.Lock()
	var folderServerID string
	var err error
	if node := s.noteMap[ref]; node == nil || s.failed[node.folderRef] || s.folderMap[node.folderRef] == nil {
		err = apperr.NotFound("create note", "folder not found")
	} else if folderServerID = s.serverIDs[node.folderRef]; folderServerID == "" {
		err = apperr.NotFound("create note", "folder not found")
	}
	s.mu.Unlock()

	var remote *types.Note
	if err == nil {
		remote, err = s.remote.CreateNote(ctx, folderServerID, draft)
		if err == nil && remote == nil {
			err = apperr.RemoteRejected("create note", 0, "server returned no note")
		}
	}

	s.mu.Lock()
	defer s.flush()
	defer s.mu.Unlock()
	s.end()
	delete(s.creating, ref)
	node := s.noteMap[ref]

	if err != nil {
		s.failed[ref] = true
		if node != nil {
			visible := s.visibleNote(ref) != nil
			s.detachNote(node)
			delete(s.noteMap, ref)
			if visible {
				s.emit(Change{Kind: NoteRemoved, FolderID: node.note.FolderID, NoteID: node.note.ID, Err: err})
			}
		}
		s.logger.Info("note_create_rejected", logging.F("ref", ref), logging.Err(err))
		return types.Note{}, apperr.WithOp("create note", err)
	}

	s.serverIDs[ref] = remote.ID
	if node == nil {
		s.logger.Debug("stale_confirmation_discarded", logging.F("kind", "note"), logging.F("id", remote.ID))
		return *remote, nil
	}
	previous := node.note.ID
	node.note.ID = remote.ID
	if !remote.CreatedAt.IsZero() {
		node.note.CreatedAt = remote.CreatedAt
	}
	if !remote.UpdatedAt.IsZero() && len(node.updates) == 0 {
		node.note.UpdatedAt = remote.UpdatedAt
	}
	s.bindNoteID(remote.ID, ref)
	if s.visibleNote(ref) == nil {
		s.logger.Debug("stale_confirmation_discarded", logging.F("kind", "note"), logging.F("id", remote.ID))
	} else {
		s.emit(Change{Kind: NoteConfirmed, FolderID: node.note.FolderID, NoteID: remote.ID, PreviousID: previous})
	}
	return s.noteCopy(node), nil
}

// UpdateNote applies patch locally and waits for the remote.
func (s *Store) UpdateNote(ctx context.Context, id string, patch types.NotePatch, opts ...UpdateOption) (types.Note, error) {
	op, err := s.BeginUpdateNote(ctx, id, patch, opts...)
	if err != nil {
		return types.Note{}, err
	}
	return op.Wait(ctx)
}

// BeginUpdateNote merges patch into the note and sends the same partial update
// in the background. A rejection restores only the fields the patch changed.
func (s *Store) BeginUpdateNote(ctx context.Context, id string, patch types.NotePatch, opts ...UpdateOption) (*Op[types.Note], error) {
	const opName = "update note"
	options := updateOptions{rollback: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if patch.Title != nil {
		trimmed := strings.TrimSpace(*patch.Title)
		if trimmed == "" {
			return nil, apperr.Validation(opName, "title", "note title is required")
		}
		patch.Title = &trimmed
	}

	s.mu.Lock()
	node := s.visibleNote(id)
	if node == nil {
		s.mu.Unlock()
		return nil, apperr.NotFound(opName, "note not found")
	}
	if patch.Empty() {
		note := s.noteCopy(node)
		s.mu.Unlock()
		return completedOp(note.ID, note, nil), nil
	}
	ref := node.ref
	currentID := node.note.ID
	update := &pendingUpdate{before: fieldValues(node.note, patch), rollback: options.rollback}
	patch.Apply(&node.note)
	node.note.UpdatedAt = s.now().UTC()
	node.updates = append(node.updates, update)
	s.begin()
	prev, release := s.queue.enqueue(ref)
	s.emit(Change{Kind: NoteUpdated, FolderID: node.note.FolderID, NoteID: currentID})
	s.mu.Unlock()
	s.flush()

	op := newOp[types.Note](currentID)
	go func() {
		defer s.settle(ref, release)
		waitFor(prev)
		op.finish(s.sendUpdateNote(ctx, ref, update, patch))
	}()
	return op, nil
}

func (s *Store) sendUpdateNote(ctx context.Context, ref string, update *pendingUpdate, patch types.NotePatch) (types.Note, error) {
	s.mu.Lock()
	serverID := s.serverIDs[ref]
	var err error
	if s.failed[ref] || s.noteMap[ref] == nil || serverID == "" {
		err = apperr.NotFound("update note", "note not found")
	}
	s.mu.Unlock()

	var remote *types.Note
	if err == nil {
		remote, err = s.remote.UpdateNote(ctx, serverID, patch)
	}

	s.mu.Lock()
	defer s.flush()
	defer s.mu.Unlock()
	s.end()
	node := s.noteMap[ref]
	if node == nil {
		if err != nil {
			return types.Note{}, apperr.WithOp("update note", err)
		}
		s.logger.Debug("stale_confirmation_discarded", logging.F("kind", "note_update"), logging.F("id", serverID))
		if remote != nil {
			return *remote, nil
		}
		return types.Note{}, nil
	}
	idx := indexOfUpdate(node.updates, update)
	if idx >= 0 {
		node.updates = append(node.updates[:idx], node.updates[idx+1:]...)
	}
	visible := s.visibleNote(ref) != nil

	if err != nil {
		if update.rollback && idx >= 0 {
			s.rollbackUpdate(node, idx, update)
		}
		if visible {
			s.emit(Change{Kind: NoteUpdated, FolderID: node.note.FolderID, NoteID: node.note.ID, Err: err})
		}
		s.logger.Info("note_update_rejected",
			logging.F("id", node.note.ID),
			logging.F("rollback", update.rollback),
			logging.Err(err),
		)
		return s.noteCopy(node), apperr.WithOp("update note", err)
	}

	if remote != nil && !remote.UpdatedAt.IsZero() && len(node.updates) == 0 {
		node.note.UpdatedAt = remote.UpdatedAt
	}
	return s.noteCopy(node), nil
}

// rollbackUpdate undoes a rejected update. Fields changed again by a later
// pending update keep their value; that update inherits the old value as its
// own rollback target instead.
func (s *Store) rollbackUpdate(node *noteNode, idx int, update *pendingUpdate) {
	for field, value := range update.before {
		rebased := false
		for _, later := range node.updates[idx:] {
			if _, ok := later.before[field]; ok {
				later.before[field] = value
				rebased = true
				break
			}
		}
		if !rebased {
			setField(&node.note, field, value)
		}
	}
}

// DeleteNote removes a note and waits for the remote.
func (s *Store) DeleteNote(ctx context.Context, id string) error {
	op, err := s.BeginDeleteNote(ctx, id)
	if err != nil {
		return err
	}
	_, err = op.Wait(ctx)
	return err
}

// BeginDeleteNote removes the note locally and sends the delete in the
// background. A rejected delete puts the note back where it was.
func (s *Store) BeginDeleteNote(ctx context.Context, id string) (*Op[struct{}], error) {
	const opName = "delete note"
	s.mu.Lock()
	node := s.visibleNote(id)
	if node == nil {
		s.mu.Unlock()
		return nil, apperr.NotFound(opName, "note not found")
	}
	ref := node.ref
	currentID := node.note.ID
	s.detachNote(node)
	node.removed = true
	s.begin()
	prev, release := s.queue.enqueue(ref)
	s.emit(Change{Kind: NoteRemoved, FolderID: node.note.FolderID, NoteID: currentID})
	s.mu.Unlock()
	s.flush()

	op := newOp[struct{}](currentID)
	go func() {
		defer s.settle(ref, release)
		waitFor(prev)
		op.finish(struct{}{}, s.sendDeleteNote(ctx, ref))
	}()
	return op, nil
}

func (s *Store) sendDeleteNote(ctx context.Context, ref string) error {
	s.mu.Lock()
	failedCreate := s.failed[ref]
	serverID := s.serverIDs[ref]
	gone := s.noteMap[ref] == nil
	s.mu.Unlock()

	var err error
	switch {
	case failedCreate || gone:
	case serverID == "":
		err = apperr.NotFound("delete note", "note was never stored")
	default:
		err = s.remote.DeleteNote(ctx, serverID)
		if apperr.Is(err, apperr.KindNotFound) {
			s.logger.Debug("note_already_deleted", logging.F("id", serverID))
			err = nil
		}
	}

	s.mu.Lock()
	defer s.flush()
	defer s.mu.Unlock()
	s.end()
	node := s.noteMap[ref]
	if err == nil {
		s.forget(ref)
		return nil
	}
	if node != nil && node.removed {
		node.removed = false
		if folder := s.folderMap[node.folderRef]; folder != nil {
			insertNoteNode(folder, node)
			if !folder.removed {
				s.emit(Change{Kind: NoteRestored, FolderID: node.note.FolderID, NoteID: node.note.ID, Err: err})
			}
		}
	}
	s.logger.Info("note_delete_rejected", logging.F("id", serverID), logging.Err(err))
	return apperr.WithOp("delete note", err)
}

func (s *Store) detachNote(node *noteNode) {
	folder := s.folderMap[node.folderRef]
	if folder == nil {
		return
	}
	for i, candidate := range folder.notes {
		if candidate == node {
			node.index = i
			folder.notes = append(folder.notes[:i], folder.notes[i+1:]...)
			return
		}
	}
}

func insertNoteNode(folder *folderNode, node *noteNode) {
	idx := node.index
	if idx < 0 || idx > len(folder.notes) {
		idx = len(folder.notes)
	}
	folder.notes = append(folder.notes, nil)
	copy(folder.notes[idx+1:], folder.notes[idx:])
	folder.notes[idx] = node
}

func indexOfUpdate(updates []*pendingUpdate, target *pendingUpdate) int {
	for i, update := range updates {
		if update == target {
			return i
		}
	}
	return -1
}

func fieldValues(note types.Note, patch types.NotePatch) map[string]string {
	out := make(map[string]string, 3)
	if patch.Title != nil {
		out[types.FieldTitle] = note.Title
	}
	if patch.OriginalText != nil {
		out[types.FieldOriginalText] = note.OriginalText
	}
	if patch.Content != nil {
		out[types.FieldContent] = note.Content
	}
	return out
}

func setField(note *types.Note, field, value string) {
	switch field {
	case types.FieldTitle:
		note.Title = value
	case types.FieldOriginalText:
		note.OriginalText = value
	case types.FieldContent:
		note.Content = value
	}
}
