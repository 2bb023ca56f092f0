package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
)

// DocumentRepository stores rendered deal documents (reservation form and
// contract PDFs) in object storage.
type DocumentRepository interface {
	Upload(ctx context.Context, objectPath string, data io.Reader, contentType string, size int64) (string, error)
	Delete(ctx context.Context, objectPath string) error
	GeneratePresignedURL(ctx context.Context, objectPath string, expiry time.Duration) (string, error)
}

// DocumentObjectPath builds the object key for an entity document, e.g.
// contract/7f…/draft_2f….pdf. The random suffix keeps re-renders from
// overwriting the archived version.
func DocumentObjectPath(entity string, entityID uuid.UUID, variant string) string {
	filename := fmt.Sprintf("%s_%s.pdf", variant, uuid.New().String())
	return path.Join(entity, entityID.String(), filename)
}
