package storage

// ArtifactStore is the contract for persisting run artifacts: the collected
// data file and the per-run mention log.
type ArtifactStore interface {
	Store(name string, data []byte) error
	Retrieve(name string) ([]byte, error)
	List(prefix string) ([]string, error)
	Delete(name string) error
}
