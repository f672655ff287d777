package interaction

import (
	"context"
	"errors"
	"fmt"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/models"
)

var (
	// ErrNotEditing is returned when the draft is touched outside edit mode.
	ErrNotEditing = errors.New("note is not being edited")
	// ErrAlreadyEditing is returned by Begin while a draft is open.
	ErrAlreadyEditing = errors.New("note is already being edited")
)

// NoteUpdater saves a note. pkg/client implements it.
type NoteUpdater interface {
	UpdateNote(ctx context.Context, noteID string, upd models.NoteUpdate) (*models.Note, error)
}

// EditorState is either Viewing or Editing.
type EditorState interface {
	isEditorState()
}

// Viewing shows the saved note.
type Viewing struct{}

// Editing holds an unsaved draft.
type Editing struct {
	Draft models.NoteUpdate
}

func (Viewing) isEditorState() {}
func (Editing) isEditorState() {}

// Editor is the view/edit state machine of one note.
type Editor struct {
	note  models.Note
	state EditorState
	save  NoteUpdater
}

// NewEditor shows note in viewing mode.
func NewEditor(note models.Note, save NoteUpdater) *Editor {
	return &Editor{note: note, state: Viewing{}, save: save}
}

func (ed *Editor) State() EditorState { return ed.state }
func (ed *Editor) Note() models.Note  { return ed.note }

// Begin opens a draft seeded with the saved fields.
func (ed *Editor) Begin() error {
	switch ed.state.(type) {
	case Viewing:
		ed.state = Editing{Draft: models.NoteUpdate{
			Title:    ed.note.Title,
			Content:  ed.note.Content,
			Metadata: ed.note.Metadata,
		}}
		return nil
	case Editing:
		return ErrAlreadyEditing
	default:
		panic(fmt.Sprintf("interaction: unknown editor state %T", ed.state))
	}
}

func (ed *Editor) edit(f func(d *models.NoteUpdate)) error {
	switch s := ed.state.(type) {
	case Viewing:
		return ErrNotEditing
	case Editing:
		f(&s.Draft)
		ed.state = s
		return nil
	default:
		panic(fmt.Sprintf("interaction: unknown editor state %T", s))
	}
}

func (ed *Editor) SetTitle(v string) error {
	return ed.edit(func(d *models.NoteUpdate) { d.Title = v })
}

func (ed *Editor) SetContent(v string) error {
	return ed.edit(func(d *models.NoteUpdate) { d.Content = v })
}

func (ed *Editor) SetMetadata(v string) error {
	return ed.edit(func(d *models.NoteUpdate) { d.Metadata = v })
}

// Cancel drops the draft.
func (ed *Editor) Cancel() {
	ed.state = Viewing{}
}

// SaveResult is the outcome of a write started by StartSave.
type SaveResult struct {
	Draft models.NoteUpdate
	Note  *models.Note
	Err   error
}

// StartSave sends the current draft in the background and returns at once.
// The result must be handed back to FinishSave on the goroutine that owns
// the Editor. The draft stays editable while the write is in flight.
func (ed *Editor) StartSave(ctx context.Context) (<-chan SaveResult, error) {
	s, ok := ed.state.(Editing)
	if !ok {
		return nil, ErrNotEditing
	}
	id, draft, up := ed.note.ID, s.Draft, ed.save
	done := make(chan SaveResult, 1)
	go func() {
		n, err := up.UpdateNote(ctx, id, draft)
		done <- SaveResult{Draft: draft, Note: n, Err: err}
	}()
	return done, nil
}

// FinishSave applies a finished write. A failed write keeps the draft. A
// successful one returns to viewing mode unless the draft changed after the
// write started, in which case the newer draft stays open.
func (ed *Editor) FinishSave(r SaveResult) error {
	if r.Err != nil {
		return fmt.Errorf("save note %s: %w", ed.note.ID, r.Err)
	}
	ed.note = *r.Note
	if s, ok := ed.state.(Editing); ok && s.Draft == r.Draft {
		ed.state = Viewing{}
	}
	return nil
}

// Save writes the draft and waits for the result. On error the draft is
// kept so the user can retry. Event loops use StartSave instead.
func (ed *Editor) Save(ctx context.Context) error {
	done, err := ed.StartSave(ctx)
	if err != nil {
		return err
	}
	select {
	case r := <-done:
		return ed.FinishSave(r)
	case <-ctx.Done():
		return ctx.Err()
	}
}
