package support

import (
	"context"
	"database/sql"
	"time"
)

type repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) Repo {
	return &repo{db: db}
}

func (r *repo) SaveMessage(ctx context.Context, msg *Message) error {
	if msg.CreatedAt == 0 {
		msg.CreatedAt = time.Now().Unix()
	}
	return r.db.QueryRowContext(ctx, `
		INSERT INTO messages (session_id, sender, text, category, reason, step, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, to_timestamp($7))
		RETURNING id
	`,
		msg.SessionID,
		string(msg.Sender),
		msg.Text,
		msg.Category,
		msg.Reason,
		msg.Step,
		msg.CreatedAt,
	).Scan(&msg.ID)
}

func (r *repo) GetHistory(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, sender, text, coalesce(category, ''), coalesce(reason, ''), step,
		       extract(epoch from created_at)::bigint
		FROM messages
		WHERE session_id = $1
		ORDER BY created_at ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var sender string
		if err := rows.Scan(
			&m.ID,
			&m.SessionID,
			&sender,
			&m.Text,
			&m.Category,
			&m.Reason,
			&m.Step,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		m.Sender = Sender(sender)
		out = append(out, m)
	}

	return out, rows.Err()
}
