package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/device-diag-shell/backend/internal/db"
	"github.com/device-diag-shell/backend/internal/model"
)

// generateID generates a unique ID for testing.
func generateID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// For any session record, creating it and reading it back returns the same
// identity, slot, peer address, and status.
func TestSessionRoundTripProperty(t *testing.T) {
	testDB, err := db.NewTestDB()
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	defer testDB.Close()

	repo := NewSessionRepository(testDB)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	nonEmptyString := gen.AlphaString().SuchThat(func(s string) bool {
		return len(s) > 0 && len(s) <= 100
	})

	properties.Property("session record survives a create/get round trip", prop.ForAll(
		func(addr, username string, slot int) bool {
			sessionID := generateID()

			session := &model.Session{
				ID:          sessionID,
				Slot:        slot,
				RemoteAddr:  addr,
				Username:    username,
				Status:      model.SessionStatusActive,
				ConnectedAt: time.Now(),
			}

			if err := repo.Create(ctx, session); err != nil {
				t.Logf("failed to create session: %v", err)
				return false
			}

			retrieved, err := repo.GetByID(ctx, sessionID)
			if err != nil {
				t.Logf("failed to retrieve session: %v", err)
				return false
			}

			return retrieved.ID == session.ID &&
				retrieved.Slot == session.Slot &&
				retrieved.RemoteAddr == session.RemoteAddr &&
				retrieved.Username == session.Username &&
				retrieved.Status == session.Status &&
				retrieved.DisconnectedAt == nil
		},
		nonEmptyString,
		nonEmptyString,
		gen.IntRange(0, 7),
	))

	properties.TestingRun(t)
}

// For any sequence of logged command lines, the audit trail returns exactly
// those lines in execution order with their result codes.
func TestCommandAuditOrderProperty(t *testing.T) {
	testDB, err := db.NewTestDB()
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	defer testDB.Close()

	repo := NewSessionRepository(testDB)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	lineGen := gen.AlphaString().SuchThat(func(s string) bool {
		return len(s) > 0 && len(s) <= 64
	})

	properties.Property("audit trail preserves line order and result codes", prop.ForAll(
		func(lines []string, codes []int) bool {
			sessionID := generateID()
			session := &model.Session{
				ID:          sessionID,
				RemoteAddr:  "test",
				Status:      model.SessionStatusActive,
				ConnectedAt: time.Now(),
			}
			if err := repo.Create(ctx, session); err != nil {
				t.Logf("failed to create session: %v", err)
				return false
			}

			n := len(lines)
			if len(codes) < n {
				n = len(codes)
			}
			for i := 0; i < n; i++ {
				rec := &model.CommandRecord{
					SessionID:  sessionID,
					Line:       lines[i],
					ResultCode: codes[i],
					ExecutedAt: time.Now(),
				}
				if err := repo.LogCommand(ctx, rec); err != nil {
					t.Logf("failed to log command: %v", err)
					return false
				}
			}

			records, err := repo.ListCommands(ctx, sessionID)
			if err != nil {
				t.Logf("failed to list commands: %v", err)
				return false
			}
			if len(records) != n {
				return false
			}
			for i := 0; i < n; i++ {
				if records[i].Line != lines[i] || records[i].ResultCode != codes[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(lineGen),
		gen.SliceOf(gen.IntRange(-2, 0)),
	))

	properties.TestingRun(t)
}
