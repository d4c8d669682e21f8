package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"custodial-wallet-service/internal/core/domain"
	"custodial-wallet-service/internal/core/ports"
	"custodial-wallet-service/pkg/apperror"
)

// document is the single persisted structure: the whole account map plus the
// sequence counter, written back as one unit on every mutation.
type document struct {
	Accounts       map[string]*domain.Account `json:"accounts"`
	LastSequenceID int64                      `json:"lastSequenceId"`
}

// Store is a file-backed AccountStore with a single-writer discipline: one
// process-wide mutex serializes every load-mutate-write cycle, so concurrent
// mutations can never interleave around the read/write pair.
type Store struct {
	path string
	mu   sync.Mutex
	log  zerolog.Logger
}

var _ ports.AccountStore = (*Store)(nil)

// NewStore creates a file-backed store. A missing file is not an error; it
// materializes on the first mutation.
func NewStore(path string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	return &Store{
		path: path,
		log:  log.With().Str("component", "jsonfile_store").Logger(),
	}, nil
}

func (s *Store) load() (*document, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &document{Accounts: make(map[string]*domain.Account)}, nil
		}
		return nil, fmt.Errorf("reading account document: %w", err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding account document: %w", err)
	}
	if doc.Accounts == nil {
		doc.Accounts = make(map[string]*domain.Account)
	}
	return &doc, nil
}

// save writes via a temp file and rename so a crash mid-write cannot leave a
// truncated document behind.
func (s *Store) save(doc *document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding account document: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("writing account document: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing account document: %w", err)
	}
	return nil
}

// CreateAccount assigns the next sequence id and persists the account. The
// counter increment and the account write are one atomic unit under the
// store mutex.
func (s *Store) CreateAccount(ctx context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return apperror.InternalError(err)
	}
	if _, exists := doc.Accounts[account.Identity]; exists {
		return apperror.ErrDuplicateIdentity()
	}

	doc.LastSequenceID++
	account.SequenceID = doc.LastSequenceID

	cp := *account
	doc.Accounts[account.Identity] = &cp

	if err := s.save(doc); err != nil {
		return apperror.InternalError(err)
	}
	return nil
}

// GetByIdentity returns a copy of the account for an identity.
func (s *Store) GetByIdentity(ctx context.Context, identity string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	account, ok := doc.Accounts[identity]
	if !ok {
		return nil, apperror.ErrAccountNotFound()
	}
	return copyAccount(account), nil
}

// GetBySequenceID returns a copy of the account with the given sequence id.
func (s *Store) GetBySequenceID(ctx context.Context, id int64) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	for _, account := range doc.Accounts {
		if account.SequenceID == id {
			return copyAccount(account), nil
		}
	}
	return nil, apperror.ErrAccountNotFound()
}

// MutateWallet applies mutate to the account and writes the document back as
// one unit. mutate returning an error aborts without writing.
func (s *Store) MutateWallet(ctx context.Context, identity string, mutate func(*domain.Account) error) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	account, ok := doc.Accounts[identity]
	if !ok {
		return nil, apperror.ErrAccountNotFound()
	}

	if err := mutate(account); err != nil {
		return nil, err
	}
	account.UpdatedAt = time.Now().UTC()

	if err := s.save(doc); err != nil {
		return nil, apperror.InternalError(err)
	}
	return copyAccount(account), nil
}

// List returns all accounts ordered by sequence id.
func (s *Store) List(ctx context.Context) ([]domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	accounts := make([]domain.Account, 0, len(doc.Accounts))
	for _, account := range doc.Accounts {
		accounts = append(accounts, *copyAccount(account))
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].SequenceID < accounts[j].SequenceID
	})
	return accounts, nil
}

// Ping implements ports.HealthChecker by probing the store directory.
func (s *Store) Ping(ctx context.Context) error {
	_, err := os.Stat(filepath.Dir(s.path))
	return err
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string {
	return "jsonfile"
}

func copyAccount(a *domain.Account) *domain.Account {
	cp := *a
	if a.Wallet != nil {
		w := *a.Wallet
		cp.Wallet = &w
	}
	return &cp
}
