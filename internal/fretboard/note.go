package fretboard

// NoteState is what the renderer needs for one position. IsRoot implies InScale.
//
// Interval, Label, Name and Pitch depend only on the tuning and key; the three
// flags depend on the mode, shape and edits.
type NoteState struct {
	InScale bool `json:"in_scale"`
	IsRoot  bool `json:"is_root"`
	Visible bool `json:"visible"`

	Interval int    `json:"interval"`
	Label    string `json:"label"`
	Name     string `json:"name"`
	Pitch    int    `json:"pitch"`
}

// Note pairs a position with its state.
type Note struct {
	Position
	NoteState
}

func (n *NoteState) clear() {
	n.InScale, n.IsRoot, n.Visible = false, false, false
}

// Display is the text a renderer draws for the note: "R" for any root,
// otherwise the interval label.
func (n NoteState) Display() string {
	if n.IsRoot {
		return "R"
	}
	return n.Label
}
