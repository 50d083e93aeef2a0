package index

// MapIndex defines the interface for map indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type MapIndex interface {
	UpsertMap(r MapRow, labels string) error
	DeleteMap(id string) error
	GetMap(id string) (*MapRow, error)
	GetChecksum(id string) (string, error)
	ListMaps(status, query string) ([]MapRow, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllChecksums() (map[string]string, error)
	Count() (int, error)
	UpsertProject(p ProjectRow) error
	GetProject(id string) (*ProjectRow, error)
	Close() error
}

// Verify *DB satisfies MapIndex at compile time.
var _ MapIndex = (*DB)(nil)
