package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) UpsertRoom(ctx context.Context, name string) (Room, error) {
	var room Room
	err := s.pool.QueryRow(ctx, `
		INSERT INTO rooms(name) VALUES($1)
		ON CONFLICT (name) DO UPDATE SET name=EXCLUDED.name
		RETURNING id, name, created_at
	`, name).Scan(&room.ID, &room.Name, &room.CreatedAt)
	if err != nil {
		return Room{}, fmt.Errorf("upsert room %q: %w", name, err)
	}
	return room, nil
}

func (s *Postgres) AddMember(ctx context.Context, roomName, username string) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO room_members(room_id, username)
		SELECT id, $2 FROM rooms WHERE name=$1
		ON CONFLICT (room_id, username) DO NOTHING
	`, roomName, username)
	if err != nil {
		return fmt.Errorf("add member %q to %q: %w", username, roomName, err)
	}
	// Zero rows and no conflict means the SELECT matched no room. A
	// conflict also reports zero rows, so double-check existence.
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM rooms WHERE name=$1)`, roomName).Scan(&exists); err != nil {
			return fmt.Errorf("check room %q: %w", roomName, err)
		}
		if !exists {
			return ErrRoomNotFound
		}
	}
	return nil
}

func (s *Postgres) AppendMessage(ctx context.Context, roomName, username, text string) (Message, error) {
	msg := Message{Room: roomName, Username: username, Text: text}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO messages(room_id, username, body)
		SELECT id, $2, $3 FROM rooms WHERE name=$1
		RETURNING id, created_at
	`, roomName, username, text).Scan(&msg.Seq, &msg.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrRoomNotFound
	}
	if err != nil {
		return Message{}, fmt.Errorf("append message to %q: %w", roomName, err)
	}
	return msg, nil
}

func (s *Postgres) History(ctx context.Context, roomName string, limit int) ([]Message, error) {
	var roomID int64
	err := s.pool.QueryRow(ctx, `SELECT id FROM rooms WHERE name=$1`, roomName).Scan(&roomID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup room %q: %w", roomName, err)
	}

	q := `SELECT id, username, body, created_at FROM messages WHERE room_id=$1 ORDER BY id ASC`
	args := []any{roomID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("history for %q: %w", roomName, err)
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		m := Message{Room: roomName}
		if err := rows.Scan(&m.Seq, &m.Username, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *Postgres) Members(ctx context.Context, roomName string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT rm.username FROM room_members rm
		JOIN rooms r ON r.id = rm.room_id
		WHERE r.name=$1
		ORDER BY rm.joined_at ASC, rm.username ASC
	`, roomName)
	if err != nil {
		return nil, fmt.Errorf("members of %q: %w", roomName, err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Postgres) Rooms(ctx context.Context) ([]Room, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, created_at FROM rooms ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var out []Room
	for rows.Next() {
		var r Room
		if err := rows.Scan(&r.ID, &r.Name, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
