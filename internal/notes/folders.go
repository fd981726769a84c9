package notes

import (
	"context"
	"strings"

	"smartnotes/internal/apperr"
	"smartnotes/internal/logging"
	"smartnotes/internal/types"
)

// CreateFolder creates a folder and waits for the remote to confirm it.
func (s *Store) CreateFolder(ctx context.Context, name string) (types.Folder, error) {
	op, err := s.BeginCreateFolder(ctx, name)
	if err != nil {
		return types.Folder{}, err
	}
	return op.Wait(ctx)
}

// BeginCreateFolder inserts a placeholder folder and sends the create in the
// background. Validation errors are returned before anything changes.
func (s *Store) BeginCreateFolder(ctx context.Context, name string) (*Op[types.Folder], error) {
	const opName = "create folder"
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation(opName, "name", "folder name is required")
	}

	s.mu.Lock()
	if s.nameTaken(name) {
		s.mu.Unlock()
		return nil, apperr.Validation(opName, "name", "a folder with this name already exists")
	}
	ref := newRef()
	node := &folderNode{
		ref: ref,
		folder: types.Folder{
			ID:        ref,
			Name:      name,
			CreatedAt: s.now().UTC(),
		},
	}
	s.folders = append(s.folders, node)
	s.folderMap[ref] = node
	s.bindFolderID(ref, ref)
	s.creating[ref] = true
	s.begin()
	prev, release := s.queue.enqueue(ref)
	s.emit(Change{Kind: FolderAdded, FolderID: ref})
	s.mu.Unlock()
	s.flush()

	op := newOp[types.Folder](ref)
	go func() {
		defer s.settle(ref, release)
		waitFor(prev)
		folder, err := s.remote.CreateFolder(ctx, name)
		op.finish(s.completeCreateFolder(ref, folder, err))
	}()
	return op, nil
}

func (s *Store) completeCreateFolder(ref string, remote *types.Folder, err error) (types.Folder, error) {
	s.mu.Lock()
	defer s.flush()
	defer s.mu.Unlock()
	s.end()
	delete(s.creating, ref)
	node := s.folderMap[ref]

	if err == nil && remote == nil {
		err = apperr.RemoteRejected("create folder", 0, "server returned no folder")
	}
	if err != nil {
		s.failed[ref] = true
		if node != nil {
			s.removeFolderNode(node)
			delete(s.folderMap, ref)
			if !node.removed {
				s.emit(Change{Kind: FolderRemoved, FolderID: node.folder.ID, Err: err})
			}
		}
		s.logger.Info("folder_create_rejected", logging.F("ref", ref), logging.Err(err))
		return types.Folder{}, apperr.WithOp("create folder", err)
	}

	s.serverIDs[ref] = remote.ID
	if node == nil {
		s.logger.Debug("stale_confirmation_discarded", logging.F("kind", "folder"), logging.F("id", remote.ID))
		return *remote, nil
	}
	previous := node.folder.ID
	node.folder.ID = remote.ID
	if remote.Name != "" {
		node.folder.Name = remote.Name
	}
	if !remote.CreatedAt.IsZero() {
		node.folder.CreatedAt = remote.CreatedAt
	}
	s.bindFolderID(remote.ID, ref)
	for _, n := range s.noteMap {
		if n.folderRef == ref {
			n.note.FolderID = remote.ID
		}
	}
	if node.removed {
		s.logger.Debug("stale_confirmation_discarded", logging.F("kind", "folder"), logging.F("id", remote.ID))
	} else {
		s.emit(Change{Kind: FolderConfirmed, FolderID: remote.ID, PreviousID: previous})
	}
	return s.folderCopy(node), nil
}

// DeleteFolder removes a folder with its notes and waits for the remote.
func (s *Store) DeleteFolder(ctx context.Context, id string) error {
	op, err := s.BeginDeleteFolder(ctx, id)
	if err != nil {
		return err
	}
	_, err = op.Wait(ctx)
	return err
}

// BeginDeleteFolder removes the folder subtree locally and sends the delete in
// the background. A rejected delete restores the subtree at its old position.
func (s *Store) BeginDeleteFolder(ctx context.Context, id string) (*Op[struct{}], error) {
	const opName = "delete folder"
	s.mu.Lock()
	node := s.visibleFolder(id)
	if node == nil {
		s.mu.Unlock()
		return nil, apperr.NotFound(opName, "folder not found")
	}
	ref := node.ref
	currentID := node.folder.ID
	s.removeFolderNode(node)
	node.removed = true
	s.begin()
	prev, release := s.queue.enqueue(ref)
	s.emit(Change{Kind: FolderRemoved, FolderID: currentID})
	s.mu.Unlock()
	s.flush()

	op := newOp[struct{}](currentID)
	go func() {
		defer s.settle(ref, release)
		waitFor(prev)
		op.finish(struct{}{}, s.sendDeleteFolder(ctx, ref))
	}()
	return op, nil
}

func (s *Store) sendDeleteFolder(ctx context.Context, ref string) error {
	s.mu.Lock()
	failedCreate := s.failed[ref]
	serverID := s.serverIDs[ref]
	s.mu.Unlock()

	var err error
	switch {
	case failedCreate:
		// Nothing exists remotely.
	case serverID == "":
		err = apperr.NotFound("delete folder", "folder was never stored")
	default:
		err = s.remote.DeleteFolder(ctx, serverID)
		if apperr.Is(err, apperr.KindNotFound) {
			s.logger.Debug("folder_already_deleted", logging.F("id", serverID))
			err = nil
		}
	}

	s.mu.Lock()
	defer s.flush()
	defer s.mu.Unlock()
	s.end()
	node := s.folderMap[ref]
	if err == nil {
		s.forget(ref)
		return nil
	}
	if node != nil && node.removed {
		node.removed = false
		s.insertFolderNode(node)
		s.emit(Change{Kind: FolderRestored, FolderID: node.folder.ID, Err: err})
	}
	s.logger.Info("folder_delete_rejected", logging.F("id", serverID), logging.Err(err))
	return apperr.WithOp("delete folder", err)
}

func (s *Store) nameTaken(name string) bool {
	for _, node := range s.folderMap {
		if strings.EqualFold(strings.TrimSpace(node.folder.Name), name) {
			return true
		}
	}
	return false
}

func (s *Store) removeFolderNode(node *folderNode) {
	for i, candidate := range s.folders {
		if candidate == node {
			node.index = i
			s.folders = append(s.folders[:i], s.folders[i+1:]...)
			return
		}
	}
}

func (s *Store) insertFolderNode(node *folderNode) {
	idx := node.index
	if idx < 0 || idx > len(s.folders) {
		idx = len(s.folders)
	}
	s.folders = append(s.folders, nil)
	copy(s.folders[idx+1:], s.folders[idx:])
	s.folders[idx] = node
}
