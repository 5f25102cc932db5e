package repository

// Repositories holds all repository implementations.
// This struct provides a single point of access to all data access layers.
type Repositories struct {
	Products  ProductRepository
	Downloads DownloadRepository
	Users     UserRepository
	Health    HealthRepository

	DatabaseType DatabaseType

	// Cleanup releases the underlying connection or pool. May be nil.
	Cleanup func()
}

// Close runs Cleanup if set.
func (r *Repositories) Close() {
	if r != nil && r.Cleanup != nil {
		r.Cleanup()
	}
}
