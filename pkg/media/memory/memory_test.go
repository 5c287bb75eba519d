package memory

import (
	"testing"

	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/media"
	mediatesting "github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/media/testing"
)

func TestMemoryRepository(t *testing.T) {
	suite := &mediatesting.RepositoryTestSuite{
		NewRepository: func() media.Repository {
			return NewMemoryRepository()
		},
	}

	suite.Run(t)
}
