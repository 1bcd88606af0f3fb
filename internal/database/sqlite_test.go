package database_test

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/BhargaviGangoor/Wassup-Guard/internal/database"
	"github.com/BhargaviGangoor/Wassup-Guard/internal/guard"
	"github.com/BhargaviGangoor/Wassup-Guard/internal/testutil"
)

var baseTime = time.Date(2025, 3, 10, 9, 15, 0, 0, time.UTC)

func newRecord(id string, verdict guard.Verdict, createdAt time.Time) *guard.ScanRecord {
	return &guard.ScanRecord{
		ID:        id,
		FilePath:  "/media/downloads/" + id + ".jpg",
		FileName:  id + ".jpg",
		FileSize:  2048,
		Hash:      testutil.SHA256Hex([]byte(id)),
		Verdict:   verdict,
		Score:     75,
		Source:    guard.SourceRemote,
		CreatedAt: createdAt,
	}
}

func TestSQLiteDatabase_Signatures(t *testing.T) {
	t.Run("lookup miss returns nil without error", func(t *testing.T) {
		db := testutil.NewTestDatabase(t)

		entry, err := db.LookupSignature("deadbeef")
		if err != nil {
			t.Fatalf("LookupSignature() error = %v", err)
		}
		if entry != nil {
			t.Errorf("entry = %+v, want nil", entry)
		}
	})

	t.Run("round trips an entry", func(t *testing.T) {
		db := testutil.NewTestDatabase(t)

		want := &guard.SignatureEntry{
			Hash:        "abc123",
			ThreatLabel: "malicious:5",
			Source:      "remote",
			UpdatedAt:   baseTime,
		}
		if err := db.UpsertSignature(want); err != nil {
			t.Fatalf("UpsertSignature() error = %v", err)
		}

		got, err := db.LookupSignature("abc123")
		if err != nil {
			t.Fatalf("LookupSignature() error = %v", err)
		}
		if got == nil {
			t.Fatal("entry not found after upsert")
		}
		if got.ThreatLabel != want.ThreatLabel || got.Source != want.Source {
			t.Errorf("entry = %+v, want %+v", got, want)
		}
		if !got.UpdatedAt.Equal(want.UpdatedAt) {
			t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, want.UpdatedAt)
		}
	})

	t.Run("newer write replaces the older entry", func(t *testing.T) {
		db := testutil.NewTestDatabase(t)

		first := &guard.SignatureEntry{Hash: "h1", ThreatLabel: "suspicious:3", Source: "remote", UpdatedAt: baseTime}
		if err := db.UpsertSignature(first); err != nil {
			t.Fatalf("first UpsertSignature() error = %v", err)
		}

		second := &guard.SignatureEntry{Hash: "h1", ThreatLabel: "malicious:8", Source: "remote", UpdatedAt: baseTime.Add(time.Hour)}
		if err := db.UpsertSignature(second); err != nil {
			t.Fatalf("second UpsertSignature() error = %v", err)
		}

		got, err := db.LookupSignature("h1")
		if err != nil {
			t.Fatalf("LookupSignature() error = %v", err)
		}
		if got.ThreatLabel != "malicious:8" {
			t.Errorf("ThreatLabel = %s, want the newer value", got.ThreatLabel)
		}
		if !got.UpdatedAt.Equal(second.UpdatedAt) {
			t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, second.UpdatedAt)
		}
	})
}

func TestSQLiteDatabase_ScanLogs(t *testing.T) {
	t.Run("lists newest first", func(t *testing.T) {
		db := testutil.NewTestDatabase(t)

		for i := 0; i < 3; i++ {
			r := newRecord(fmt.Sprintf("rec-%d", i), guard.VerdictSafe, baseTime.Add(time.Duration(i)*time.Minute))
			if err := db.AppendScanLog(r); err != nil {
				t.Fatalf("AppendScanLog() error = %v", err)
			}
		}

		records, err := db.ListScanLogs(0)
		if err != nil {
			t.Fatalf("ListScanLogs() error = %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("got %d records, want 3", len(records))
		}
		for i, wantID := range []string{"rec-2", "rec-1", "rec-0"} {
			if records[i].ID != wantID {
				t.Errorf("records[%d].ID = %s, want %s", i, records[i].ID, wantID)
			}
		}
	})

	t.Run("limit truncates the listing", func(t *testing.T) {
		db := testutil.NewTestDatabase(t)

		for i := 0; i < 5; i++ {
			r := newRecord(fmt.Sprintf("rec-%d", i), guard.VerdictSafe, baseTime.Add(time.Duration(i)*time.Minute))
			if err := db.AppendScanLog(r); err != nil {
				t.Fatalf("AppendScanLog() error = %v", err)
			}
		}

		records, err := db.ListScanLogs(2)
		if err != nil {
			t.Fatalf("ListScanLogs(2) error = %v", err)
		}
		if len(records) != 2 || records[0].ID != "rec-4" {
			t.Errorf("records = %v", records)
		}
	})

	t.Run("filters by verdict", func(t *testing.T) {
		db := testutil.NewTestDatabase(t)

		verdicts := []guard.Verdict{guard.VerdictSafe, guard.VerdictMalicious, guard.VerdictSuspicious, guard.VerdictMalicious}
		for i, v := range verdicts {
			r := newRecord(fmt.Sprintf("rec-%d", i), v, baseTime.Add(time.Duration(i)*time.Minute))
			if err := db.AppendScanLog(r); err != nil {
				t.Fatalf("AppendScanLog() error = %v", err)
			}
		}

		records, err := db.ListScanLogsByVerdict(guard.VerdictMalicious, 0)
		if err != nil {
			t.Fatalf("ListScanLogsByVerdict() error = %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("got %d malicious records, want 2", len(records))
		}
		for _, r := range records {
			if r.Verdict != guard.VerdictMalicious {
				t.Errorf("record %s verdict = %v", r.ID, r.Verdict)
			}
		}
	})

	t.Run("preserves all record fields", func(t *testing.T) {
		db := testutil.NewTestDatabase(t)

		want := newRecord("full", guard.VerdictSuspicious, baseTime)
		want.Score = 12
		want.Source = guard.SourceLocal
		if err := db.AppendScanLog(want); err != nil {
			t.Fatalf("AppendScanLog() error = %v", err)
		}

		records, err := db.ListScanLogs(1)
		if err != nil {
			t.Fatalf("ListScanLogs() error = %v", err)
		}
		got := records[0]
		if got.FilePath != want.FilePath || got.FileName != want.FileName ||
			got.FileSize != want.FileSize || got.Hash != want.Hash ||
			got.Verdict != want.Verdict || got.Score != want.Score || got.Source != want.Source {
			t.Errorf("record = %+v, want %+v", got, want)
		}
		if !got.CreatedAt.Equal(want.CreatedAt) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
		}
	})

	t.Run("delete removes a single record", func(t *testing.T) {
		db := testutil.NewTestDatabase(t)

		if err := db.AppendScanLog(newRecord("keep", guard.VerdictSafe, baseTime)); err != nil {
			t.Fatal(err)
		}
		if err := db.AppendScanLog(newRecord("drop", guard.VerdictSafe, baseTime.Add(time.Minute))); err != nil {
			t.Fatal(err)
		}

		if err := db.DeleteScanLog("drop"); err != nil {
			t.Fatalf("DeleteScanLog() error = %v", err)
		}

		records, _ := db.ListScanLogs(0)
		if len(records) != 1 || records[0].ID != "keep" {
			t.Errorf("records after delete = %v", records)
		}

		if err := db.DeleteScanLog("drop"); !errors.Is(err, guard.ErrNotFound) {
			t.Errorf("DeleteScanLog() of a missing id = %v, want ErrNotFound", err)
		}
	})

	t.Run("clear empties the ledger", func(t *testing.T) {
		db := testutil.NewTestDatabase(t)

		for i := 0; i < 3; i++ {
			if err := db.AppendScanLog(newRecord(fmt.Sprintf("rec-%d", i), guard.VerdictSafe, baseTime)); err != nil {
				t.Fatal(err)
			}
		}

		if err := db.ClearScanLogs(); err != nil {
			t.Fatalf("ClearScanLogs() error = %v", err)
		}
		records, _ := db.ListScanLogs(0)
		if len(records) != 0 {
			t.Errorf("%d records after clear", len(records))
		}
	})

	t.Run("counts threats across verdicts", func(t *testing.T) {
		db := testutil.NewTestDatabase(t)

		verdicts := []guard.Verdict{
			guard.VerdictSafe, guard.VerdictMalicious, guard.VerdictSuspicious,
			guard.VerdictUnknown, guard.VerdictMalicious,
		}
		for i, v := range verdicts {
			if err := db.AppendScanLog(newRecord(fmt.Sprintf("rec-%d", i), v, baseTime)); err != nil {
				t.Fatal(err)
			}
		}

		count, err := db.CountThreats()
		if err != nil {
			t.Fatalf("CountThreats() error = %v", err)
		}
		if count != 3 {
			t.Errorf("CountThreats() = %d, want 3", count)
		}
	})
}

func TestSQLiteDatabase_RateLimitState(t *testing.T) {
	t.Run("load before any save returns nil", func(t *testing.T) {
		db := testutil.NewTestDatabase(t)

		state, err := db.LoadRateLimitState("reputation")
		if err != nil {
			t.Fatalf("LoadRateLimitState() error = %v", err)
		}
		if state != nil {
			t.Errorf("state = %+v, want nil", state)
		}
	})

	t.Run("round trips counters", func(t *testing.T) {
		db := testutil.NewTestDatabase(t)

		want := &guard.RateLimitState{
			DayKey:        "2025-03-10",
			DayCount:      17,
			MonthKey:      "2025-03",
			MonthCount:    412,
			LastGrantedAt: baseTime,
		}
		if err := db.SaveRateLimitState("reputation", want); err != nil {
			t.Fatalf("SaveRateLimitState() error = %v", err)
		}

		got, err := db.LoadRateLimitState("reputation")
		if err != nil {
			t.Fatalf("LoadRateLimitState() error = %v", err)
		}
		if got == nil {
			t.Fatal("state not found after save")
		}
		if got.DayKey != want.DayKey || got.DayCount != want.DayCount ||
			got.MonthKey != want.MonthKey || got.MonthCount != want.MonthCount {
			t.Errorf("state = %+v, want %+v", got, want)
		}
		if !got.LastGrantedAt.Equal(want.LastGrantedAt) {
			t.Errorf("LastGrantedAt = %v, want %v", got.LastGrantedAt, want.LastGrantedAt)
		}
	})

	t.Run("save replaces the previous state", func(t *testing.T) {
		db := testutil.NewTestDatabase(t)

		if err := db.SaveRateLimitState("reputation", &guard.RateLimitState{DayKey: "2025-03-10", DayCount: 1}); err != nil {
			t.Fatal(err)
		}
		if err := db.SaveRateLimitState("reputation", &guard.RateLimitState{DayKey: "2025-03-11", DayCount: 0}); err != nil {
			t.Fatal(err)
		}

		got, err := db.LoadRateLimitState("reputation")
		if err != nil {
			t.Fatalf("LoadRateLimitState() error = %v", err)
		}
		if got.DayKey != "2025-03-11" || got.DayCount != 0 {
			t.Errorf("state = %+v, want the replacement", got)
		}
	})

	t.Run("limiters are isolated by name", func(t *testing.T) {
		db := testutil.NewTestDatabase(t)

		if err := db.SaveRateLimitState("a", &guard.RateLimitState{DayKey: "2025-03-10", DayCount: 3}); err != nil {
			t.Fatal(err)
		}

		state, err := db.LoadRateLimitState("b")
		if err != nil {
			t.Fatalf("LoadRateLimitState() error = %v", err)
		}
		if state != nil {
			t.Errorf("state for unrelated name = %+v, want nil", state)
		}
	})
}

func TestSQLiteDatabase_ConcurrentWriters(t *testing.T) {
	check := func(t *testing.T, db guard.Database) {
		t.Helper()
		const workers = 16
		const perWorker = 20

		var wg sync.WaitGroup
		errs := make(chan error, workers*perWorker)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					id := fmt.Sprintf("rec-%d-%d", w, i)
					if err := db.AppendScanLog(newRecord(id, guard.VerdictSafe, baseTime.Add(time.Duration(i)*time.Second))); err != nil {
						errs <- err
						continue
					}
					if _, err := db.ListScanLogs(0); err != nil {
						errs <- err
					}
				}
			}(w)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Errorf("concurrent operation error = %v", err)
		}

		records, err := db.ListScanLogs(0)
		if err != nil {
			t.Fatalf("ListScanLogs() error = %v", err)
		}
		if len(records) != workers*perWorker {
			t.Errorf("len(records) = %d, want %d", len(records), workers*perWorker)
		}
	}

	t.Run("in-memory database", func(t *testing.T) {
		check(t, testutil.NewTestDatabase(t))
	})

	t.Run("file database", func(t *testing.T) {
		db, err := database.NewSQLiteDatabase(filepath.Join(t.TempDir(), "guard.db"))
		if err != nil {
			t.Fatalf("NewSQLiteDatabase() error = %v", err)
		}
		t.Cleanup(func() { db.Close() })
		check(t, db)
	})
}
