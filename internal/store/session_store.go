package store

import (
	"errors"
	"os"
	"strings"
	"sync"

	"smartnotes/internal/types"
)

// FileSessionStore persists the active session between runs.
type FileSessionStore struct {
	path string
	mu   sync.Mutex
}

func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path}
}

// Load returns the persisted session, or nil when none was saved.
func (s *FileSessionStore) Load() (*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var session types.Session
	if err := readJSON(s.path, &session); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if strings.TrimSpace(session.Token) == "" {
		return nil, nil
	}
	return &session, nil
}

func (s *FileSessionStore) Save(session *types.Session) error {
	if session == nil {
		return errors.New("session is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONAtomic(s.path, session)
}

func (s *FileSessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeIfExists(s.path)
}

type rememberFile struct {
	Email string `json:"email"`
}

// FileRememberStore keeps the email of the last user who asked to be remembered.
type FileRememberStore struct {
	path string
	mu   sync.Mutex
}

func NewFileRememberStore(path string) *FileRememberStore {
	return &FileRememberStore{path: path}
}

func (s *FileRememberStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var file rememberFile
	if err := readJSON(s.path, &file); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(file.Email), nil
}

func (s *FileRememberStore) Save(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONAtomic(s.path, rememberFile{Email: strings.TrimSpace(email)})
}

func (s *FileRememberStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeIfExists(s.path)
}
