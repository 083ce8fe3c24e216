package messages

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Messages holds every reply the bot sends. Templates containing %s verbs
// are rendered with fmt.Sprintf by the caller.
type Messages struct {
	Welcome            string `json:"welcome"`
	RunAuthFirst       string `json:"run_auth_first"`
	NotSetUp           string `json:"not_set_up"`
	AuthorizeLink      string `json:"authorize_link"`
	AuthCodeInvalid    string `json:"auth_code_invalid"`
	AuthExchangeFailed string `json:"auth_exchange_failed"`
	AuthExpired        string `json:"auth_expired"`
	LoadBudgetsFailed  string `json:"load_budgets_failed"`
	SelectBudget       string `json:"select_budget"`
	SelectAccount      string `json:"select_account"`
	Ready              string `json:"ready"`
	TransactionHelp    string `json:"transaction_help"`
	CantParseEntry     string `json:"cant_parse_entry"`
	NoTransactions     string `json:"no_transactions"`
	FileParseFailed    string `json:"file_parse_failed"`
	FileTooLarge       string `json:"file_too_large"`
	DownloadFailed     string `json:"download_failed"`
	UnmappedSource     string `json:"unmapped_source"`
	NoMappings         string `json:"no_mappings"`
	SettingsInvalid    string `json:"settings_invalid"`
	InfoRemoved        string `json:"info_removed"`
	Busy               string `json:"busy"`
	InternalError      string `json:"internal_error"`
	AuthLanding        string `json:"auth_landing"`
	AuthDenied         string `json:"auth_denied"`
}

// Default returns the built-in English catalog.
func Default() *Messages {
	return &Messages{
		Welcome:            "Hi! I add bank transactions to your YNAB budget.\nRun /auth to connect your YNAB account.",
		RunAuthFirst:       "At first you should run /auth command",
		NotSetUp:           "Bot is not set up yet. Finish /auth and choose default budget and account first",
		AuthorizeLink:      "<a href=\"%s\">Please authorize bot</a> and click Start button after your return back to telegram",
		AuthCodeInvalid:    "Auth code parsing failed. Please try again",
		AuthExchangeFailed: "Cant get auth code from YNAB. Please try again",
		AuthExpired:        "YNAB authorization expired or was revoked",
		LoadBudgetsFailed:  "Cant load your budgets. Check your YNAB access and try again\n%s",
		SelectBudget:       "Select budget for adding transaction. You can easy change it later",
		SelectAccount:      "Select account for adding transaction. You can easy change it later",
		Ready:              "Congratulations!\nNow you can add transaction directly to your YNAB account %s/%s\n%s",
		TransactionHelp:    "Example transaction:\nApples 7,47",
		CantParseEntry:     "Cant parse transaction\n%s",
		NoTransactions:     "Cant find any transaction in file",
		FileParseFailed:    "Cant read file %s: %s",
		FileTooLarge:       "File %s is too large",
		DownloadFailed:     "Cant download file %s",
		UnmappedSource:     "Cant find bank account %s link to YNAB budget account",
		NoMappings:         "You haven't any bank accounts linked to YNAB accounts",
		SettingsInvalid:    "Cant apply settings file: %s",
		InfoRemoved:        "All your data was removed. Run /start to begin again",
		Busy:               "Bot is busy right now. Please try again in a minute",
		InternalError:      "Something went wrong. Please try again later",
		AuthLanding:        "Send this message to the bot to finish authorization:",
		AuthDenied:         "YNAB authorization was not granted: %s",
	}
}

var (
	loaded   *Messages
	loadOnce sync.Once
	loadErr  error
)

// Load reads the messages JSON file once and caches the result. Keys missing
// from the file keep their default text. An empty path yields the defaults.
// Safe to call from multiple goroutines.
func Load(path string) (*Messages, error) {
	loadOnce.Do(func() {
		loaded, loadErr = loadFile(path)
	})
	if loadErr != nil {
		return nil, loadErr
	}
	return loaded, nil
}

func loadFile(path string) (*Messages, error) {
	m := Default()
	if path == "" {
		return m, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read messages file: %w", err)
	}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse messages file: %w", err)
	}
	return m, nil
}
