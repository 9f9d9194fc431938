package quotations

type FrameKind string

const (
	// FrameEdit holds the row as it was before an edit.
	FrameEdit FrameKind = "edit"
	// FrameIntroduction marks a row added or replaced by the user. Its
	// snapshot is the row it replaced, or nil for a brand new row.
	FrameIntroduction FrameKind = "introduction"
)

type Frame struct {
	Kind     FrameKind `json:"kind"`
	Snapshot *LineItem `json:"snapshot,omitempty"`
	// Selection is the pending selection an introduction displaced.
	Selection *Selection `json:"selection,omitempty"`
}

// History is the per-row undo stack, keyed by row key. The introduction
// frame sits below any later edit frames, so a single pop undoes edits first.
type History map[string][]Frame

func (h History) PushEdit(key string, snapshot LineItem) {
	s := snapshot.Clone()
	h[key] = append(h[key], Frame{Kind: FrameEdit, Snapshot: &s})
}

func (h History) PushIntroduction(key string, original *LineItem, displaced *Selection) {
	frame := Frame{Kind: FrameIntroduction}
	if original != nil {
		s := original.Clone()
		frame.Snapshot = &s
	}
	if displaced != nil {
		frame.Selection = displaced.clone()
	}
	h[key] = append(h[key], frame)
}

// Pop removes and returns the top frame for key.
func (h History) Pop(key string) (Frame, bool) {
	frames := h[key]
	if len(frames) == 0 {
		return Frame{}, false
	}
	top := frames[len(frames)-1]
	if len(frames) == 1 {
		delete(h, key)
	} else {
		h[key] = frames[:len(frames)-1]
	}
	return top, true
}

func (h History) CanUndo(key string) bool {
	return len(h[key]) > 0
}

// UndoKind is the kind of frame the next undo of key would pop.
func (h History) UndoKind(key string) FrameKind {
	frames := h[key]
	if len(frames) == 0 {
		return ""
	}
	return frames[len(frames)-1].Kind
}

// Introduced reports whether the row was added or replaced by the user.
func (h History) Introduced(key string) bool {
	for _, f := range h[key] {
		if f.Kind == FrameIntroduction {
			return true
		}
	}
	return false
}

func (h History) Drop(key string) {
	delete(h, key)
}

func (h History) Clone() History {
	out := make(History, len(h))
	for k, frames := range h {
		cp := make([]Frame, len(frames))
		for i, f := range frames {
			if f.Snapshot != nil {
				s := f.Snapshot.Clone()
				f.Snapshot = &s
			}
			if f.Selection != nil {
				f.Selection = f.Selection.clone()
			}
			cp[i] = f
		}
		out[k] = cp
	}
	return out
}

// DeletedStack is the shared LIFO of removed rows.
type DeletedStack []LineItem

func (d *DeletedStack) Push(item LineItem) {
	*d = append(*d, item.Clone())
}

func (d *DeletedStack) Pop() (LineItem, bool) {
	n := len(*d)
	if n == 0 {
		return LineItem{}, false
	}
	item := (*d)[n-1]
	*d = (*d)[:n-1]
	return item, true
}

// FindLineNo returns the most recently deleted row with lineNo.
func (d DeletedStack) FindLineNo(lineNo int) (LineItem, bool) {
	for i := len(d) - 1; i >= 0; i-- {
		if d[i].LineNo == lineNo {
			return d[i].Clone(), true
		}
	}
	return LineItem{}, false
}

func (d DeletedStack) Clone() DeletedStack {
	if d == nil {
		return nil
	}
	return DeletedStack(cloneItems(d))
}
