// Package archive saves and loads design documents as compressed .cwx files.
//
// An archive holds exactly one document. Version history never leaves the
// session; reopening an archive starts a fresh history at the imported state.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/dshills/caseworks/internal/design"
)

// FormatVersion is the envelope version this build writes and the only one
// it reads.
const FormatVersion = 1

// Ext is the conventional archive file extension.
const Ext = ".cwx"

var (
	// ErrUnsupportedFormat means the archive was written by an incompatible
	// version of the tool.
	ErrUnsupportedFormat = errors.New("unsupported archive format")
	// ErrCorruptArchive means the file is not a readable archive.
	ErrCorruptArchive = errors.New("corrupt archive")
)

// envelope is the on-disk payload: JSON, zstd-compressed.
type envelope struct {
	FormatVersion int              `json:"format_version"`
	ArchiveID     string           `json:"archive_id"`
	SavedAt       time.Time        `json:"saved_at"`
	Design        *design.Document `json:"design"`
}

// EncodeAll and DecodeAll on shared codecs are safe for concurrent use.
var (
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
}

// Export writes doc to path, overwriting any existing file. Each export
// stamps a fresh archive ID and save time.
func Export(path string, doc *design.Document) error {
	if doc == nil {
		return fmt.Errorf("exporting %s: nil document", path)
	}

	env := envelope{
		FormatVersion: FormatVersion,
		ArchiveID:     uuid.NewString(),
		SavedAt:       time.Now().UTC(),
		Design:        doc,
	}
	raw, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding archive: %w", err)
	}
	if err := os.WriteFile(path, encoder.EncodeAll(raw, nil), 0o644); err != nil {
		return fmt.Errorf("writing archive: %w", err)
	}
	return nil
}

// Import reads the document from an archive written by Export.
func Import(path string) (*design.Document, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}
	raw, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptArchive, path, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptArchive, path, err)
	}
	if env.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%w: version %d, this build reads %d",
			ErrUnsupportedFormat, env.FormatVersion, FormatVersion)
	}
	if env.Design == nil {
		return nil, fmt.Errorf("%w: %s: envelope has no design", ErrCorruptArchive, path)
	}
	return env.Design, nil
}
