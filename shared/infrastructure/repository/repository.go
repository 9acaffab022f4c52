package repository

import (
	"fmt"

	"mangadownloader/shared/application/ports"
)

type Repositories struct {
	metadata *MetadataRepository
}

// NewRepositories creates all repository instances
func NewRepositories(db ports.Database, obs ports.Observability) (*Repositories, error) {
	logger, metrics, err := obs.ComponentsScoped("repository")
	if err != nil {
		return nil, fmt.Errorf("failed to get observability: %w", err)
	}

	return &Repositories{
		metadata: newMetadataRepository(db, logger, metrics),
	}, nil
}

func (r *Repositories) Metadata() *MetadataRepository {
	return r.metadata
}
