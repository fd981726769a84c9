package notes

import (
	"context"

	"golang.org/x/sync/errgroup"

	"smartnotes/internal/apperr"
	"smartnotes/internal/logging"
	"smartnotes/internal/types"
)

// Load fetches the whole tree and replaces local state. It creates the default
// folder for users who have none.
func (s *Store) Load(ctx context.Context) error {
	return s.load(ctx, "load", true)
}

// Refresh reloads the tree. It is refused while mutations are pending, since
// their rollbacks would refer to the replaced tree.
func (s *Store) Refresh(ctx context.Context) error {
	return s.load(ctx, "refresh", false)
}

func (s *Store) load(ctx context.Context, op string, createDefault bool) error {
	s.mu.Lock()
	if s.inflight > 0 {
		s.mu.Unlock()
		return errPendingChanges(op)
	}
	gen := s.gen
	s.mu.Unlock()

	folders, err := s.remote.ListFolders(ctx)
	if err != nil {
		return apperr.WithOp(op, err)
	}
	if len(folders) == 0 && createDefault && s.defaultName != "" {
		folder, err := s.remote.CreateFolder(ctx, s.defaultName)
		if err != nil {
			if apperr.Is(err, apperr.KindNotAuthenticated) {
				return apperr.WithOp(op, err)
			}
			s.logger.Warn("default_folder_create_failed", logging.F("name", s.defaultName), logging.Err(err))
		} else if folder != nil {
			folders = append(folders, folder)
		}
	}

	notes := make([][]*types.Note, len(folders))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.loadLimit)
	for i, folder := range folders {
		if folder == nil {
			continue
		}
		g.Go(func() error {
			items, err := s.remote.ListNotes(gctx, folder.ID)
			if err != nil {
				if apperr.Is(err, apperr.KindNotAuthenticated) {
					return err
				}
				s.logger.Warn("folder_notes_load_failed", logging.F("folder_id", folder.ID), logging.Err(err))
				return nil
			}
			notes[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return apperr.WithOp(op, err)
	}

	s.mu.Lock()
	// A mutation that started after the fetch began may already be confirmed
	// and missing from what was fetched.
	if s.inflight > 0 || s.gen != gen {
		s.mu.Unlock()
		return errPendingChanges(op)
	}
	s.reset()
	for i, folder := range folders {
		if folder == nil {
			continue
		}
		s.insertLoadedFolder(*folder, notes[i])
	}
	s.loaded = true
	s.emit(Change{Kind: Reloaded})
	count := len(s.folders)
	s.mu.Unlock()
	s.flush()
	s.logger.Debug("notes_loaded", logging.F("op", op), logging.F("folders", count))
	return nil
}

func errPendingChanges(op string) error {
	return apperr.Validation(op, "", "wait for pending changes to finish before refreshing")
}

func (s *Store) insertLoadedFolder(folder types.Folder, notes []*types.Note) {
	ref := newRef()
	folder.Pending = false
	node := &folderNode{ref: ref, folder: folder}
	s.folders = append(s.folders, node)
	s.folderMap[ref] = node
	s.bindFolderID(folder.ID, ref)
	s.serverIDs[ref] = folder.ID
	for _, note := range notes {
		if note == nil {
			continue
		}
		noteRef := newRef()
		n := &noteNode{ref: noteRef, folderRef: ref, note: *note}
		n.note.FolderID = folder.ID
		n.note.Pending = false
		node.notes = append(node.notes, n)
		s.noteMap[noteRef] = n
		s.bindNoteID(note.ID, noteRef)
		s.serverIDs[noteRef] = note.ID
	}
}

// Loaded reports whether the tree was fetched at least once.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}
