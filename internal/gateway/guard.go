package gateway

import (
	"context"

	"smartnotes/internal/apperr"
	"smartnotes/internal/types"
)

// SessionChecker is the slice of the session store the guard depends on.
type SessionChecker interface {
	Active() bool
	Expire(err error)
}

type guarded struct {
	next    Gateway
	session SessionChecker
}

// Guard rejects authenticated calls while no session is active and expires the
// session when the backend reports that the token is no longer accepted.
func Guard(next Gateway, session SessionChecker) Gateway {
	return &guarded{next: next, session: session}
}

func (g *guarded) check(op string) error {
	if g.session == nil || !g.session.Active() {
		return apperr.NotAuthenticated(op)
	}
	return nil
}

func (g *guarded) observe(err error) error {
	if err != nil && apperr.Is(err, apperr.KindNotAuthenticated) && g.session != nil {
		g.session.Expire(err)
	}
	return err
}

func (g *guarded) Register(ctx context.Context, reg types.Registration) (*types.User, error) {
	return g.next.Register(ctx, reg)
}

func (g *guarded) Login(ctx context.Context, creds types.Credentials) (*types.LoginResult, error) {
	return g.next.Login(ctx, creds)
}

func (g *guarded) SetToken(token string) {
	g.next.SetToken(token)
}

func (g *guarded) Close() error {
	return g.next.Close()
}

func (g *guarded) Profile(ctx context.Context) (*types.User, error) {
	if err := g.check("profile"); err != nil {
		return nil, err
	}
	user, err := g.next.Profile(ctx)
	return user, g.observe(err)
}

func (g *guarded) UpdateProfile(ctx context.Context, update types.ProfileUpdate) (*types.User, error) {
	if err := g.check("update profile"); err != nil {
		return nil, err
	}
	user, err := g.next.UpdateProfile(ctx, update)
	return user, g.observe(err)
}

func (g *guarded) ListFolders(ctx context.Context) ([]*types.Folder, error) {
	if err := g.check("list folders"); err != nil {
		return nil, err
	}
	folders, err := g.next.ListFolders(ctx)
	return folders, g.observe(err)
}

func (g *guarded) CreateFolder(ctx context.Context, name string) (*types.Folder, error) {
	if err := g.check("create folder"); err != nil {
		return nil, err
	}
	folder, err := g.next.CreateFolder(ctx, name)
	return folder, g.observe(err)
}

func (g *guarded) DeleteFolder(ctx context.Context, id string) error {
	if err := g.check("delete folder"); err != nil {
		return err
	}
	return g.observe(g.next.DeleteFolder(ctx, id))
}

func (g *guarded) ListNotes(ctx context.Context, folderID string) ([]*types.Note, error) {
	if err := g.check("list notes"); err != nil {
		return nil, err
	}
	notes, err := g.next.ListNotes(ctx, folderID)
	return notes, g.observe(err)
}

func (g *guarded) CreateNote(ctx context.Context, folderID string, draft types.NoteDraft) (*types.Note, error) {
	if err := g.check("create note"); err != nil {
		return nil, err
	}
	note, err := g.next.CreateNote(ctx, folderID, draft)
	return note, g.observe(err)
}

func (g *guarded) UpdateNote(ctx context.Context, id string, patch types.NotePatch) (*types.Note, error) {
	if err := g.check("update note"); err != nil {
		return nil, err
	}
	note, err := g.next.UpdateNote(ctx, id, patch)
	return note, g.observe(err)
}

func (g *guarded) DeleteNote(ctx context.Context, id string) error {
	if err := g.check("delete note"); err != nil {
		return err
	}
	return g.observe(g.next.DeleteNote(ctx, id))
}

func (g *guarded) ProcessText(ctx context.Context, text string, op types.AIOperation) (*types.TextResult, error) {
	if err := g.check("process text"); err != nil {
		return nil, err
	}
	result, err := g.next.ProcessText(ctx, text, op)
	return result, g.observe(err)
}

func (g *guarded) ProcessImage(ctx context.Context, upload types.ImageUpload, op types.AIOperation) (*types.ImageResult, error) {
	if err := g.check("process image"); err != nil {
		return nil, err
	}
	result, err := g.next.ProcessImage(ctx, upload, op)
	return result, g.observe(err)
}
