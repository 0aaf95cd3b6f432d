package storage

import (
	"fmt"
	"log/slog"

	"github.com/dialcheck/dialcheck/internal/config"
)

// Open picks the storage backend from settings: local directory in local
// mode, otherwise Azure Blob Storage by connection string or account.
func Open(settings *config.Settings) (ObjectStore, error) {
	if settings.LocalMode {
		slog.Info("using local storage", "dir", settings.LocalDir)
		return NewLocalStore(settings.LocalDir)
	}
	if settings.StorageConnStr != "" {
		slog.Info("using blob storage", "container", settings.StorageContainer, "auth", "connection_string")
		return NewBlobStoreFromConnectionString(settings.StorageConnStr, settings.StorageContainer)
	}
	if settings.StorageAccount != "" {
		slog.Info("using blob storage", "account", settings.StorageAccount, "container", settings.StorageContainer)
		return NewBlobStore(settings.StorageAccount, settings.StorageContainer)
	}
	return nil, fmt.Errorf("no storage configured: set LOCAL_MODE, STORAGE_CONNECTION_STRING, or STORAGE_ACCOUNT")
}
