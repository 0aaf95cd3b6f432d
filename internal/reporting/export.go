package reporting

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/dialcheck/dialcheck/internal/models"
)

// ExportAudioFile is one audio attachment in an export archive.
type ExportAudioFile struct {
	Path string
	Data []byte
}

// WriteExportZip writes a reports.json plus any audio files as a zip
// archive. Audio is already compressed, so it is stored rather than
// deflated. Audio that could not be fetched is listed in a
// missing_audio.txt entry instead of failing the export.
func WriteExportZip(w io.Writer, reports []*models.Report, audio []ExportAudioFile, missing []string) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestSpeed)
	})

	manifest, err := zw.Create("reports.json")
	if err != nil {
		return fmt.Errorf("creating reports.json: %w", err)
	}
	enc := json.NewEncoder(manifest)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reports); err != nil {
		return fmt.Errorf("writing reports.json: %w", err)
	}

	for _, af := range audio {
		f, err := zw.CreateHeader(&zip.FileHeader{
			Name:   af.Path,
			Method: zip.Store,
		})
		if err != nil {
			return fmt.Errorf("creating %s: %w", af.Path, err)
		}
		if _, err := f.Write(af.Data); err != nil {
			return fmt.Errorf("writing %s: %w", af.Path, err)
		}
	}

	if len(missing) > 0 {
		f, err := zw.Create("missing_audio.txt")
		if err != nil {
			return fmt.Errorf("creating missing_audio.txt: %w", err)
		}
		for _, m := range missing {
			if _, err := fmt.Fprintln(f, m); err != nil {
				return fmt.Errorf("writing missing_audio.txt: %w", err)
			}
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing archive: %w", err)
	}
	return nil
}
