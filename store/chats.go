package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Project groups related chats.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Chat is one conversation inside a project.
type Chat struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateProject inserts a project and returns it.
func (db *DB) CreateProject(ctx context.Context, name string) (Project, error) {
	p := Project{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	_, err := db.ExecContext(ctx,
		`INSERT INTO projects (id, name, created_at) VALUES (?, ?, ?)`,
		p.ID, p.Name, p.CreatedAt)
	return p, err
}

// Projects lists all projects, newest first.
func (db *DB) Projects(ctx context.Context) ([]Project, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, created_at FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateChat inserts a chat under projectID and returns it.
func (db *DB) CreateChat(ctx context.Context, projectID, title string) (Chat, error) {
	now := time.Now().UTC()
	c := Chat{ID: uuid.NewString(), ProjectID: projectID, Title: title, CreatedAt: now, UpdatedAt: now}
	_, err := db.ExecContext(ctx,
		`INSERT INTO chats (id, project_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.ProjectID, c.Title, c.CreatedAt, c.UpdatedAt)
	return c, err
}

// Chats lists the chats of a project by recency of activity.
func (db *DB) Chats(ctx context.Context, projectID string) ([]Chat, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, project_id, title, created_at, updated_at FROM chats
		 WHERE project_id = ? ORDER BY updated_at DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// TouchChat bumps a chat's activity timestamp.
func (db *DB) TouchChat(ctx context.Context, chatID string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE chats SET updated_at = ? WHERE id = ?`, time.Now().UTC(), chatID)
	return err
}
