package main

import (
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dialcheck/dialcheck/internal/config"
	"github.com/dialcheck/dialcheck/internal/judge"
	"github.com/dialcheck/dialcheck/internal/storage"
)

// newChatCompleter builds the OpenAI client for the judge. Tests swap it for
// a scripted completer.
var newChatCompleter = func(apiKey string) judge.ChatCompleter {
	return openai.NewClient(apiKey)
}

// storageBackend is the resolved object store plus what the presign endpoint
// needs to validate URLs.
type storageBackend struct {
	store     storage.ObjectStore
	local     bool
	localRoot string
	account   string
	container string
}

// newStorageBackend resolves the object store from environment settings,
// after applying the --local and --data-dir flag overrides. When no cloud
// credentials are configured it falls back to the local directory store.
func newStorageBackend(settings *config.Settings, dataDir string, forceLocal bool) (*storageBackend, error) {
	if forceLocal {
		settings.LocalMode = true
	}
	if settings.StorageConnStr == "" && settings.StorageAccount == "" {
		settings.LocalMode = true
	}
	if dataDir != "" {
		settings.LocalDir = dataDir
	}

	store, err := storage.Open(settings)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	if local, ok := store.(*storage.LocalStore); ok {
		return &storageBackend{store: store, local: true, localRoot: local.Root()}, nil
	}

	account := settings.StorageAccount
	if account == "" {
		account = accountFromConnString(settings.StorageConnStr)
	}
	return &storageBackend{store: store, account: account, container: settings.StorageContainer}, nil
}

// accountFromConnString pulls AccountName out of an Azure connection string.
func accountFromConnString(connStr string) string {
	for _, part := range strings.Split(connStr, ";") {
		if name, ok := strings.CutPrefix(part, "AccountName="); ok {
			return name
		}
	}
	return ""
}

// newJudge builds the LLM judge. The model flag wins over OPENAI_MODEL.
func newJudge(settings *config.Settings, model string) (*judge.Judge, error) {
	if settings.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	if model == "" {
		model = settings.OpenAIModel
	}
	opts := []judge.Option{}
	if model != "" {
		opts = append(opts, judge.WithModel(model))
	}
	return judge.New(newChatCompleter(settings.OpenAIAPIKey), opts...), nil
}

// twilioCreds validates the Twilio environment settings.
func twilioCreds(settings *config.Settings) (sid, token, from string, err error) {
	sid = settings.TwilioAccountSID
	token = settings.TwilioAuthToken
	from = settings.TwilioFromNumber
	if sid == "" || token == "" || from == "" {
		return "", "", "", fmt.Errorf("twilio engine requires TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, and TWILIO_FROM_NUMBER")
	}
	return sid, token, from, nil
}
