package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// Settings holds environment-derived runtime configuration for the server and
// the telephony engine. Secrets stay here and never enter RunConfig.
type Settings struct {
	OpenAIAPIKey string
	OpenAIModel  string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	TargetPhone      string

	StorageAccount   string
	StorageContainer string
	StorageConnStr   string

	LocalMode bool
	LocalDir  string

	Port       int
	PublicHost string
}

// LoadSettings reads configuration from the environment, applying defaults.
func LoadSettings() *Settings {
	s := &Settings{
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      envOr("OPENAI_MODEL", "gpt-4o"),
		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: os.Getenv("TWILIO_FROM_NUMBER"),
		TargetPhone:      os.Getenv("TARGET_PHONE_NUMBER"),
		StorageAccount:   os.Getenv("STORAGE_ACCOUNT"),
		StorageContainer: envOr("STORAGE_CONTAINER", "dialcheck"),
		StorageConnStr:   os.Getenv("STORAGE_CONNECTION_STRING"),
		LocalMode:        envBool("LOCAL_MODE"),
		LocalDir:         envOr("LOCAL_STORAGE_DIR", ".dialcheck-data"),
		Port:             envInt("PORT", 8080),
		PublicHost:       os.Getenv("PUBLIC_HOST"),
	}
	return s
}

// Validate reports every missing required variable at once. Local mode only
// needs the judge credentials; cloud mode needs storage and telephony too.
func (s *Settings) Validate() error {
	var errs []error
	if s.OpenAIAPIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required"))
	}
	if !s.LocalMode {
		if s.StorageAccount == "" && s.StorageConnStr == "" {
			errs = append(errs, errors.New("STORAGE_ACCOUNT or STORAGE_CONNECTION_STRING is required"))
		}
		if s.TwilioAccountSID == "" {
			errs = append(errs, errors.New("TWILIO_ACCOUNT_SID is required"))
		}
		if s.TwilioAuthToken == "" {
			errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required"))
		}
		if s.TwilioFromNumber == "" {
			errs = append(errs, errors.New("TWILIO_FROM_NUMBER is required"))
		}
		if s.TargetPhone == "" {
			errs = append(errs, errors.New("TARGET_PHONE_NUMBER is required"))
		}
		if s.PublicHost == "" {
			errs = append(errs, errors.New("PUBLIC_HOST is required for media stream callbacks"))
		}
	}
	return errors.Join(errs...)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("%s: invalid integer %q", key, v))
	}
	return n
}
