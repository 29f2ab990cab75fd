// Package storage persists reminders, payment schedules and the dispatch
// audit log in a single SQLite database.
package storage
