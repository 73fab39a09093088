package filegen

import (
	"github.com/pkg/errors"
	"github.com/shishobooks/libsync/pkg/errcodes"
	"github.com/shishobooks/libsync/pkg/models"
)

// Generator encodes a story and its assets into a single archive.
type Generator interface {
	// Generate returns the encoded archive. The documents' image sources are
	// rewritten in place to point at the embedded copies.
	Generate(story *models.Story, docs []*models.Document, cover *models.Image, images [][]*models.Image) ([]byte, error)

	// SupportedType returns the file type this generator produces.
	SupportedType() string
}

// GetGenerator returns the generator for a file type.
func GetGenerator(fileType string) (Generator, error) {
	switch fileType {
	case models.FileTypeEPUB:
		return NewEPUBGenerator(), nil
	default:
		return nil, errors.Errorf("unsupported file type: %s", fileType)
	}
}

func newGenerationError(fileType string, err error, message string) error {
	return errcodes.EncodingError(err, "failed to generate "+fileType+" file: "+message)
}
