// Package models holds the plain data shapes shared across the
// store, db, and dispatch packages, grounded on the Gomoku User entity
// (originally src/game/User.h/.cpp).
package models

import "time"

// User is a persistent account (§3). PasswordHash is bcrypt output,
// never a plaintext password.
type User struct {
	ID           uint64
	Username     string
	PasswordHash string
	Rank         string
	Score        int64
	Ranking      int64
	WinCount     int64
	LoseCount    int64
	DrawCount    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// GameRecord is one row of the game_records table (§6): a finished
// room's outcome, persisted by the database gateway from room
// finalisation.
type GameRecord struct {
	ID            uint64
	RoomID        uint64
	BlackPlayerID uint64
	WhitePlayerID uint64
	WinnerID      uint64 // 0 on draw
	Status        string
	MovesJSON     string
	StartTime     time.Time
	EndTime       time.Time
}

// rankThreshold pairs a minimum score with the rank name awarded at or
// above it. Table is an Open Question resolution (SPEC_FULL.md) — the
// original C++ source names ranks but never lists the cutoffs used.
type rankThreshold struct {
	minScore int64
	name     string
}

var rankTable = []rankThreshold{
	{0, "Beginner"},
	{1200, "Novice"},
	{1600, "Amateur"},
	{2000, "Expert"},
	{2400, "Master"},
}

// RankForScore derives a named rank tier from a numeric score via the
// fixed threshold table above (GLOSSARY: Rank).
func RankForScore(score int64) string {
	rank := rankTable[0].name
	for _, t := range rankTable {
		if score >= t.minScore {
			rank = t.name
		} else {
			break
		}
	}
	return rank
}
