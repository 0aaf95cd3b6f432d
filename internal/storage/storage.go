// Package storage abstracts the object store holding test configs, call
// audio, and evaluation reports. Production uses Azure Blob Storage; local
// mode uses a directory on disk.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("storage: object not found")

// ObjectStore is the interface both backends implement.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error

	// URL returns the canonical (unsigned) URL for a key.
	URL(key string) string

	// PresignURL returns a time-limited URL granting read access to a key.
	PresignURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Key layout. All object keys are built here so the two backends and the
// report store agree on where things live.

// TestConfigKey is where a submitted test's config is stored.
func TestConfigKey(testID string) string {
	return path.Join("tests", testID, "config.json")
}

// TestStateKey is where a test's tracked execution state is stored.
func TestStateKey(testID string) string {
	return path.Join("tests", testID, "state.json")
}

// TestPrefix covers everything stored for one test.
func TestPrefix(testID string) string {
	return path.Join("tests", testID) + "/"
}

// TurnAudioKey is where one conversation turn's audio is stored.
func TurnAudioKey(testID, callID string, turn int, speaker string, ts time.Time) string {
	name := fmt.Sprintf("%d_%s_%s.wav", turn, speaker, ts.UTC().Format("20060102T150405"))
	return path.Join("tests", testID, "calls", callID, "audio", name)
}

// ReportKey is where a report is stored, partitioned by date.
func ReportKey(reportID string, date time.Time) string {
	return path.Join("reports", date.UTC().Format("20060102"), reportID+".json")
}

// ReportsPrefix covers all reports, or one day's when date is non-zero.
func ReportsPrefix(date time.Time) string {
	if date.IsZero() {
		return "reports/"
	}
	return path.Join("reports", date.UTC().Format("20060102")) + "/"
}

// ParsedURL is a storage URL resolved back to a key within our store.
type ParsedURL struct {
	Key   string
	Local bool
}

// ParseStorageURL resolves a stored audio/recording URL back to an object
// key. It accepts Azure blob HTTPS URLs for the configured account and
// container, and local:// URLs from local mode. Anything else is rejected so
// the presign endpoint can never be used to sign foreign URLs.
func ParseStorageURL(raw, account, container string) (*ParsedURL, error) {
	if strings.HasPrefix(raw, "local://") {
		key := strings.TrimPrefix(raw, "local://")
		if key == "" || strings.Contains(key, "..") {
			return nil, fmt.Errorf("invalid local storage url %q", raw)
		}
		return &ParsedURL{Key: key, Local: true}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid storage url: %w", err)
	}
	if u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported storage url scheme %q", u.Scheme)
	}
	wantHost := account + ".blob.core.windows.net"
	if !strings.EqualFold(u.Host, wantHost) {
		return nil, fmt.Errorf("storage url host %q does not match account %q", u.Host, account)
	}
	parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
	if len(parts) != 2 || parts[0] != container || parts[1] == "" {
		return nil, fmt.Errorf("storage url %q is outside container %q", raw, container)
	}
	if strings.Contains(parts[1], "..") {
		return nil, fmt.Errorf("invalid object key in storage url %q", raw)
	}
	return &ParsedURL{Key: parts[1]}, nil
}
