package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/tzurot/tzurot/internal/personality"
)

// PGPersonalityStore implements store.PersonalityStore backed by Postgres.
type PGPersonalityStore struct {
	db *sql.DB
}

func NewPGPersonalityStore(db *sql.DB) *PGPersonalityStore {
	return &PGPersonalityStore{db: db}
}

func (s *PGPersonalityStore) List(ctx context.Context) ([]personality.Personality, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, display_name, aliases, avatar_url, system_prompt, model, nsfw, error_message
		 FROM personalities ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []personality.Personality
	for rows.Next() {
		p, err := scanPersonality(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func (s *PGPersonalityStore) Get(ctx context.Context, name string) (personality.Personality, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, display_name, aliases, avatar_url, system_prompt, model, nsfw, error_message
		 FROM personalities WHERE name = $1`, name)

	p, err := scanPersonality(row)
	if errors.Is(err, sql.ErrNoRows) {
		return personality.Personality{}, false, nil
	}
	if err != nil {
		return personality.Personality{}, false, err
	}
	return p, true, nil
}

func (s *PGPersonalityStore) Upsert(ctx context.Context, p personality.Personality) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO personalities (id, name, display_name, aliases, avatar_url, system_prompt, model, nsfw, error_message, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		 ON CONFLICT (name) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			aliases = EXCLUDED.aliases,
			avatar_url = EXCLUDED.avatar_url,
			system_prompt = EXCLUDED.system_prompt,
			model = EXCLUDED.model,
			nsfw = EXCLUDED.nsfw,
			error_message = EXCLUDED.error_message,
			updated_at = now()`,
		uuid.Must(uuid.NewV7()), p.Name, p.DisplayName, pq.Array(p.Aliases),
		p.AvatarURL, p.SystemPrompt, p.Model, p.NSFW, p.ErrorMessage)
	return err
}

func (s *PGPersonalityStore) Delete(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM personalities WHERE name = $1`, name)
	return err
}

// Watch is a no-op: managed mode has no out-of-band file edits to pick
// up, writes go through Upsert/Delete.
func (s *PGPersonalityStore) Watch(func()) (func(), error) {
	return func() {}, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPersonality(row rowScanner) (personality.Personality, error) {
	var p personality.Personality
	var aliases pq.StringArray
	err := row.Scan(&p.Name, &p.DisplayName, &aliases, &p.AvatarURL,
		&p.SystemPrompt, &p.Model, &p.NSFW, &p.ErrorMessage)
	if err != nil {
		return personality.Personality{}, err
	}
	p.Aliases = []string(aliases)
	return p, nil
}
