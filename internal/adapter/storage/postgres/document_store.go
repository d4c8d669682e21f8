package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"custodial-wallet-service/internal/core/domain"
	"custodial-wallet-service/internal/core/ports"
	"custodial-wallet-service/pkg/apperror"
)

// casMaxRetries bounds the optimistic-lock retry loop. Contention on a
// single identity is already serialized upstream, so conflicts here come
// from unrelated identities mutating the shared document.
const casMaxRetries = 5

// document mirrors the persisted JSONB shape.
type document struct {
	Accounts       map[string]*domain.Account `json:"accounts"`
	LastSequenceID int64                      `json:"lastSequenceId"`
}

// DocumentStore is an AccountStore over a single JSONB row with a version
// column. Every mutation is load, apply, compare-and-swap on version; a
// concurrent writer forces a reload and reapply, never a lost update.
type DocumentStore struct {
	pool Pool
	log  zerolog.Logger
}

var _ ports.AccountStore = (*DocumentStore)(nil)

// NewDocumentStore creates a PostgreSQL-backed account document store.
func NewDocumentStore(pool Pool, log zerolog.Logger) *DocumentStore {
	return &DocumentStore{
		pool: pool,
		log:  log.With().Str("component", "document_store").Logger(),
	}
}

func (s *DocumentStore) load(ctx context.Context) (*document, int64, error) {
	var raw []byte
	var version int64
	err := s.pool.QueryRow(ctx, `SELECT doc, version FROM account_documents WHERE id = 1`).Scan(&raw, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &document{Accounts: make(map[string]*domain.Account)}, 0, nil
		}
		return nil, 0, fmt.Errorf("loading account document: %w", err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, 0, fmt.Errorf("decoding account document: %w", err)
	}
	if doc.Accounts == nil {
		doc.Accounts = make(map[string]*domain.Account)
	}
	return &doc, version, nil
}

// swap writes the document back if and only if the version is unchanged.
// Returns false on a version conflict.
func (s *DocumentStore) swap(ctx context.Context, doc *document, version int64) (bool, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("encoding account document: %w", err)
	}

	if version == 0 {
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO account_documents (id, doc, version) VALUES (1, $1, 1) ON CONFLICT (id) DO NOTHING`,
			raw)
		if err != nil {
			return false, fmt.Errorf("initializing account document: %w", err)
		}
		return tag.RowsAffected() == 1, nil
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE account_documents SET doc = $1, version = version + 1 WHERE id = 1 AND version = $2`,
		raw, version)
	if err != nil {
		return false, fmt.Errorf("writing account document: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// mutate runs the load-apply-swap cycle with bounded retry on conflicts.
func (s *DocumentStore) mutate(ctx context.Context, apply func(*document) error) (*document, error) {
	for attempt := 0; attempt < casMaxRetries; attempt++ {
		doc, version, err := s.load(ctx)
		if err != nil {
			return nil, apperror.InternalError(err)
		}
		if err := apply(doc); err != nil {
			return nil, err
		}

		ok, err := s.swap(ctx, doc, version)
		if err != nil {
			return nil, apperror.InternalError(err)
		}
		if ok {
			return doc, nil
		}
		s.log.Debug().Int("attempt", attempt+1).Msg("account document version conflict, retrying")
	}
	return nil, apperror.InternalError(fmt.Errorf("account document contention: %d failed swap attempts", casMaxRetries))
}

// CreateAccount assigns the next sequence id and persists the account. The
// counter increment rides in the same swap as the account write, so ids
// cannot collide under concurrent creates.
func (s *DocumentStore) CreateAccount(ctx context.Context, account *domain.Account) error {
	_, err := s.mutate(ctx, func(doc *document) error {
		if _, exists := doc.Accounts[account.Identity]; exists {
			return apperror.ErrDuplicateIdentity()
		}
		doc.LastSequenceID++
		account.SequenceID = doc.LastSequenceID
		cp := *account
		doc.Accounts[account.Identity] = &cp
		return nil
	})
	return err
}

// GetByIdentity returns the account for an identity.
func (s *DocumentStore) GetByIdentity(ctx context.Context, identity string) (*domain.Account, error) {
	doc, _, err := s.load(ctx)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	account, ok := doc.Accounts[identity]
	if !ok {
		return nil, apperror.ErrAccountNotFound()
	}
	return account, nil
}

// GetBySequenceID returns the account with the given sequence id.
func (s *DocumentStore) GetBySequenceID(ctx context.Context, id int64) (*domain.Account, error) {
	doc, _, err := s.load(ctx)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	for _, account := range doc.Accounts {
		if account.SequenceID == id {
			return account, nil
		}
	}
	return nil, apperror.ErrAccountNotFound()
}

// MutateWallet applies mutate to the account under the document CAS.
func (s *DocumentStore) MutateWallet(ctx context.Context, identity string, mutateFn func(*domain.Account) error) (*domain.Account, error) {
	doc, err := s.mutate(ctx, func(doc *document) error {
		account, ok := doc.Accounts[identity]
		if !ok {
			return apperror.ErrAccountNotFound()
		}
		if err := mutateFn(account); err != nil {
			return err
		}
		account.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc.Accounts[identity], nil
}

// List returns all accounts ordered by sequence id.
func (s *DocumentStore) List(ctx context.Context) ([]domain.Account, error) {
	doc, _, err := s.load(ctx)
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	accounts := make([]domain.Account, 0, len(doc.Accounts))
	for _, account := range doc.Accounts {
		accounts = append(accounts, *account)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].SequenceID < accounts[j].SequenceID
	})
	return accounts, nil
}
