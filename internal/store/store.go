package store

// TutorialIndex is the tutorial side of the store. The library and the
// API depend on it rather than on *DB.
type TutorialIndex interface {
	UpsertTutorial(t TutorialRow, body string) error
	DeleteTutorial(path string) error
	GetTutorial(path string) (*TutorialRow, string, error)
	ListTutorials() ([]TutorialRow, error)
	AllChecksums() (map[string]string, error)
	Search(query string, limit int) ([]SearchResult, error)
}

// Verify *DB satisfies TutorialIndex at compile time.
var _ TutorialIndex = (*DB)(nil)
