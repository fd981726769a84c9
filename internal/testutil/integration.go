package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"smartnotes/internal/config"
)

// IntegrationAccount describes a live API server used by opt-in integration tests.
type IntegrationAccount struct {
	BaseURL  string `json:"base_url"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a IntegrationAccount) Ready() bool {
	return a.BaseURL != "" && a.Email != "" && a.Password != ""
}

// LoadIntegrationAccount returns the account for integration tests.
// Lookup order:
// 1) SMARTNOTES_TEST_API_URL, SMARTNOTES_TEST_EMAIL, SMARTNOTES_TEST_PASSWORD
// 2) <data dir>/test-account.json
func LoadIntegrationAccount() IntegrationAccount {
	account := IntegrationAccount{
		BaseURL:  strings.TrimSpace(os.Getenv("SMARTNOTES_TEST_API_URL")),
		Email:    strings.TrimSpace(os.Getenv("SMARTNOTES_TEST_EMAIL")),
		Password: os.Getenv("SMARTNOTES_TEST_PASSWORD"),
	}
	if account.Ready() {
		return account
	}
	if file, ok := readAccountFile(); ok {
		return file
	}
	return account
}

func readAccountFile() (IntegrationAccount, bool) {
	dataDir, err := config.DataDir()
	if err != nil {
		return IntegrationAccount{}, false
	}
	data, err := os.ReadFile(filepath.Join(dataDir, "test-account.json"))
	if err != nil {
		return IntegrationAccount{}, false
	}
	var account IntegrationAccount
	if err := json.Unmarshal(data, &account); err != nil {
		return IntegrationAccount{}, false
	}
	account.BaseURL = strings.TrimSpace(account.BaseURL)
	account.Email = strings.TrimSpace(account.Email)
	return account, account.Ready()
}
