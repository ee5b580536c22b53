// Package db is the sqlite-backed persistence gateway (§6): the
// sqlite3 driver, bcrypt password hashing, and an init/migrate/
// columnExists shape, schemaed around users/game_records.
package db

import (
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"gomoku-server/models"
)

var ErrNoRows = errors.New("no rows found")

type DB struct {
	conn *sql.DB
}

func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			rank TEXT NOT NULL DEFAULT 'Beginner',
			score INTEGER NOT NULL DEFAULT 0,
			win_count INTEGER NOT NULL DEFAULT 0,
			lose_count INTEGER NOT NULL DEFAULT 0,
			draw_count INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS game_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id INTEGER NOT NULL,
			black_player_id INTEGER NOT NULL,
			white_player_id INTEGER NOT NULL,
			winner_id INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			moves_json TEXT NOT NULL DEFAULT '[]',
			start_time TEXT NOT NULL,
			end_time TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_game_records_players
			ON game_records(black_player_id, white_player_id)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return err
		}
	}

	return db.migrate()
}

// migrate performs additive auto-migration for columns added after the
// initial schema, via a columnExists-guarded ALTER TABLE.
func (db *DB) migrate() error {
	if !db.columnExists("users", "ranking") {
		if _, err := db.conn.Exec(`ALTER TABLE users ADD COLUMN ranking INTEGER NOT NULL DEFAULT 0`); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) columnExists(table, column string) bool {
	query := "SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?"
	var count int
	err := db.conn.QueryRow(query, table, column).Scan(&count)
	if err != nil {
		return false
	}
	return count > 0
}

// CreateUser hashes password with bcrypt and inserts a new row,
// returning the persisted record with its minted id.
func (db *DB) CreateUser(username, password string) (*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	rank := models.RankForScore(0)
	res, err := db.conn.Exec(
		`INSERT INTO users (username, password_hash, rank, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		username, string(hashed), rank, now, now,
	)
	if err != nil {
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &models.User{ID: uint64(id), Username: username, PasswordHash: string(hashed), Rank: rank}, nil
}

// AuthenticateUser reports whether password matches the stored hash
// for username.
func (db *DB) AuthenticateUser(username, password string) (bool, error) {
	var hashedPassword string
	err := db.conn.QueryRow("SELECT password_hash FROM users WHERE username = ?", username).Scan(&hashedPassword)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	err = bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil, nil
}

// SetPassword rehashes and overwrites a user's password (EditPassword).
func (db *DB) SetPassword(userID uint64, newPassword string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec(
		"UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?",
		string(hashed), time.Now().UTC().Format(time.RFC3339), userID,
	)
	return err
}

func (db *DB) UserExists(username string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM users WHERE username = ?", username).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (db *DB) LookupUserIDByUsername(username string) (uint64, error) {
	var id uint64
	err := db.conn.QueryRow("SELECT id FROM users WHERE username = ?", username).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrNoRows
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// LoadAllUsers reads every persisted user row, used to warm the
// in-memory store on startup.
func (db *DB) LoadAllUsers() ([]*models.User, error) {
	rows, err := db.conn.Query(
		`SELECT id, username, password_hash, rank, score, ranking,
		        win_count, lose_count, draw_count, created_at, updated_at
		 FROM users`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u := &models.User{}
		var createdAt, updatedAt string
		if err := rows.Scan(
			&u.ID, &u.Username, &u.PasswordHash, &u.Rank, &u.Score, &u.Ranking,
			&u.WinCount, &u.LoseCount, &u.DrawCount, &createdAt, &updatedAt,
		); err != nil {
			return nil, err
		}
		u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		u.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser persists score/rank/win-loss bookkeeping changes made in
// memory (post-game finalization, renames).
func (db *DB) UpdateUser(u *models.User) error {
	_, err := db.conn.Exec(
		`UPDATE users SET username = ?, password_hash = ?, rank = ?, score = ?, ranking = ?,
		        win_count = ?, lose_count = ?, draw_count = ?, updated_at = ?
		 WHERE id = ?`,
		u.Username, u.PasswordHash, u.Rank, u.Score, u.Ranking,
		u.WinCount, u.LoseCount, u.DrawCount, time.Now().UTC().Format(time.RFC3339), u.ID,
	)
	return err
}

// InsertGameRecord persists a finished room's outcome (§6).
func (db *DB) InsertGameRecord(g *models.GameRecord) error {
	_, err := db.conn.Exec(
		`INSERT INTO game_records
		   (room_id, black_player_id, white_player_id, winner_id, status, moves_json, start_time, end_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.RoomID, g.BlackPlayerID, g.WhitePlayerID, g.WinnerID, g.Status, g.MovesJSON,
		g.StartTime.UTC().Format(time.RFC3339), g.EndTime.UTC().Format(time.RFC3339),
	)
	return err
}

// GameRecordsForUser returns a user's finished games, most recent
// first, bounded by limit.
func (db *DB) GameRecordsForUser(userID uint64, limit int) ([]*models.GameRecord, error) {
	rows, err := db.conn.Query(
		`SELECT id, room_id, black_player_id, white_player_id, winner_id, status, moves_json, start_time, end_time
		 FROM game_records
		 WHERE black_player_id = ? OR white_player_id = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		userID, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.GameRecord
	for rows.Next() {
		g := &models.GameRecord{}
		var startTime, endTime string
		if err := rows.Scan(
			&g.ID, &g.RoomID, &g.BlackPlayerID, &g.WhitePlayerID, &g.WinnerID, &g.Status,
			&g.MovesJSON, &startTime, &endTime,
		); err != nil {
			return nil, err
		}
		g.StartTime, _ = time.Parse(time.RFC3339, startTime)
		g.EndTime, _ = time.Parse(time.RFC3339, endTime)
		records = append(records, g)
	}
	return records, rows.Err()
}
