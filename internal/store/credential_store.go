package store

import (
	"database/sql"
)

// Credential is the locally cached Google access token and its
// millisecond-epoch expiry.
type Credential struct {
	AccessToken string
	ExpiresAtMs int64
}

// GetCredential returns the cached credential, or nil when none is stored.
func (s *Store) GetCredential() (*Credential, error) {
	var cred Credential
	err := s.db.QueryRow(`SELECT access_token, expires_at_ms FROM credentials WHERE id = 1`).
		Scan(&cred.AccessToken, &cred.ExpiresAtMs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// PutCredential stores the credential, replacing any previous one.
func (s *Store) PutCredential(cred *Credential) error {
	_, err := s.db.Exec(`
        INSERT INTO credentials (id, access_token, expires_at_ms) VALUES (1, ?, ?)
        ON CONFLICT(id) DO UPDATE SET access_token = excluded.access_token, expires_at_ms = excluded.expires_at_ms
    `, cred.AccessToken, cred.ExpiresAtMs)
	return err
}

// DeleteCredential removes the cached credential. Deleting when none exists
// is not an error.
func (s *Store) DeleteCredential() error {
	_, err := s.db.Exec(`DELETE FROM credentials WHERE id = 1`)
	return err
}
