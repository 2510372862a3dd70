package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"QueensProofBot/logger"
	"QueensProofBot/models"
)

const (
	storageVersion = "2"

	// Consecutive failures before an account is removed from the store.
	maxConsecutiveFailures = 3
)

// Store owns the account list and its JSON file. All mutation goes through
// it; callers receive copies. Processing is strictly sequential, so no
// locking is required.
type Store struct {
	path  string
	data  models.AccountsStorage
	dirty bool
}

// Load reads the account file at path, returning an empty store when the
// file does not exist yet. Duplicate account ids fail the load.
func Load(path string) (*Store, error) {
	s := &Store{
		path: path,
		data: models.AccountsStorage{Version: storageVersion},
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Log.Infof("No accounts file at %s, starting empty", path)
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts file: %w", err)
	}

	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("failed to parse accounts file: %w", err)
	}

	seen := make(map[string]bool, len(s.data.Accounts))
	for _, acc := range s.data.Accounts {
		if seen[acc.ID] {
			return nil, fmt.Errorf("duplicate account id %s in %s", acc.ID, path)
		}
		seen[acc.ID] = true
	}

	if s.data.Version == "" {
		s.data.Version = storageVersion
		s.dirty = true
	}

	logger.Log.Infof("Loaded %d account(s) from %s", len(s.data.Accounts), path)
	return s, nil
}

// Save writes the store to disk. The previous file contents are copied to
// <path>.backup before the overwrite.
func (s *Store) Save() error {
	s.data.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	s.data.Version = storageVersion

	if prev, err := os.ReadFile(s.path); err == nil {
		if err := os.WriteFile(s.path+".backup", prev, 0600); err != nil {
			logger.Log.WithError(err).Warn("Failed to write accounts backup")
		}
	}

	raw, err := json.MarshalIndent(&s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode accounts: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0600); err != nil {
		return fmt.Errorf("failed to write accounts file: %w", err)
	}

	s.dirty = false
	return nil
}

// SaveIfDirty persists only when something changed since the last save.
func (s *Store) SaveIfDirty() error {
	if !s.dirty {
		return nil
	}
	return s.Save()
}

func (s *Store) Len() int {
	return len(s.data.Accounts)
}

// Accounts returns a copy of the full account list in stored order.
func (s *Store) Accounts() []models.Account {
	out := make([]models.Account, len(s.data.Accounts))
	copy(out, s.data.Accounts)
	return out
}

// ByStatus returns copies of the accounts currently in the given status.
func (s *Store) ByStatus(status models.Status) []models.Account {
	var out []models.Account
	for _, acc := range s.data.Accounts {
		if acc.Status == status {
			out = append(out, acc)
		}
	}
	return out
}

// Get returns a copy of the account with the given id.
func (s *Store) Get(id string) (models.Account, bool) {
	for _, acc := range s.data.Accounts {
		if acc.ID == id {
			return acc, true
		}
	}
	return models.Account{}, false
}

// Upsert inserts the account or replaces the stored one with the same id.
func (s *Store) Upsert(acc models.Account) {
	for i := range s.data.Accounts {
		if s.data.Accounts[i].ID == acc.ID {
			s.data.Accounts[i] = acc
			s.dirty = true
			return
		}
	}
	s.data.Accounts = append(s.data.Accounts, acc)
	s.dirty = true
}

// Remove deletes the account with the given id, reporting whether it existed.
func (s *Store) Remove(id string) bool {
	for i := range s.data.Accounts {
		if s.data.Accounts[i].ID == id {
			s.data.Accounts = append(s.data.Accounts[:i], s.data.Accounts[i+1:]...)
			s.dirty = true
			return true
		}
	}
	return false
}

// MarkFailure increments the account's consecutive-failure counter and
// records the error. Reaching the threshold removes the account and returns
// true so the caller can surface the eviction.
func (s *Store) MarkFailure(id string, cause error) (evicted bool) {
	for i := range s.data.Accounts {
		if s.data.Accounts[i].ID != id {
			continue
		}
		s.data.Accounts[i].FailureCount++
		s.data.Accounts[i].LastError = cause.Error()
		s.dirty = true

		if s.data.Accounts[i].FailureCount >= maxConsecutiveFailures {
			username := s.data.Accounts[i].Username
			s.data.Accounts = append(s.data.Accounts[:i], s.data.Accounts[i+1:]...)
			logger.Log.Errorf("Account %s removed after %d consecutive failures; re-check it manually before adding it back", username, maxConsecutiveFailures)
			return true
		}
		return false
	}
	return false
}

// ResetFailures clears the consecutive-failure counter after any success.
func (s *Store) ResetFailures(id string) {
	for i := range s.data.Accounts {
		if s.data.Accounts[i].ID == id {
			if s.data.Accounts[i].FailureCount != 0 || s.data.Accounts[i].LastError != "" {
				s.data.Accounts[i].FailureCount = 0
				s.data.Accounts[i].LastError = ""
				s.dirty = true
			}
			return
		}
	}
}

// UpdateStats replaces the stored profile stats for the account.
func (s *Store) UpdateStats(id string, stats models.ProfileStats) {
	for i := range s.data.Accounts {
		if s.data.Accounts[i].ID == id {
			s.data.Accounts[i].Stats = stats
			s.dirty = true
			return
		}
	}
}
