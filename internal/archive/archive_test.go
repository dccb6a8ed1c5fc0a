package archive

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/testutil"
)

func testDB(t *testing.T, interval time.Duration) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "raido-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name(), interval)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func snapshotAt(lat float32) models.Snapshot {
	var s models.Snapshot
	s.User.Registration = "D-EABC"
	s.User.Model = "C172"
	s.User.Position = models.Position{Lon: 11.78, Lat: lat, AltFt: 1500}
	s.User.GroundSpeedKts = 95

	ai := models.Aircraft{ObjectID: 7, Registration: "DLH4AB", Model: "A320"}
	ai.Position = models.Position{Lon: 11.9, Lat: 48.4, AltFt: 8000}
	ai.MarkUnavailable()
	s.AI = []models.Aircraft{ai}
	return s
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t, time.Second)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM track_points`).Scan(&count); err != nil {
		t.Fatalf("track_points table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM model_files`).Scan(&count); err != nil {
		t.Fatalf("model_files table missing: %v", err)
	}
}

func TestInsertAndTrack(t *testing.T) {
	db := testDB(t, time.Second)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if err := db.Insert(base.Add(time.Duration(i)*time.Second), snapshotAt(48.35+float32(i)*0.01)); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	user, err := db.Track("", 10)
	if err != nil {
		t.Fatalf("Track user: %v", err)
	}
	if len(user) != 3 {
		t.Fatalf("got %d user points, want 3", len(user))
	}
	if !user[0].IsUser || user[0].Lat < user[2].Lat {
		t.Errorf("want newest user point first, got %+v", user[0])
	}
	if user[0].GroundSpeed == nil || *user[0].GroundSpeed != 95 {
		t.Errorf("ground speed = %v, want 95", user[0].GroundSpeed)
	}

	traffic, err := db.Track("DLH4AB", 2)
	if err != nil {
		t.Fatalf("Track traffic: %v", err)
	}
	if len(traffic) != 2 {
		t.Fatalf("got %d traffic points, want 2 (limit)", len(traffic))
	}
	if traffic[0].ObjectID != 7 || traffic[0].IsUser {
		t.Errorf("unexpected traffic point %+v", traffic[0])
	}
	if traffic[0].GroundSpeed != nil {
		t.Errorf("unavailable speed should be NULL, got %v", *traffic[0].GroundSpeed)
	}
	if traffic[0].AltFt == nil || *traffic[0].AltFt != 8000 {
		t.Errorf("alt = %v, want 8000", traffic[0].AltFt)
	}
}

func TestOffer_Throttle(t *testing.T) {
	db := testDB(t, 5*time.Second)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return now }

	if !db.Offer(snapshotAt(48.35)) {
		t.Fatal("first offer should be accepted")
	}
	now = now.Add(time.Second)
	if db.Offer(snapshotAt(48.36)) {
		t.Error("offer inside the interval should be rejected")
	}
	now = now.Add(5 * time.Second)
	if !db.Offer(snapshotAt(48.37)) {
		t.Error("offer after the interval should be accepted")
	}
}

func TestRun_WritesOffered(t *testing.T) {
	db := testDB(t, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- db.Run(ctx, testutil.QuietLogger()) }()

	db.Offer(snapshotAt(48.35))

	testutil.Eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		pts, err := db.Track("", 10)
		return err == nil && len(pts) == 1
	}, "offered snapshot was not archived")

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRecordModel_Upsert(t *testing.T) {
	db := testDB(t, time.Second)

	if err := db.RecordModel("/acf/c172.acf", false); err != nil {
		t.Fatalf("RecordModel: %v", err)
	}
	if err := db.RecordModel("/acf/c172.acf", true); err != nil {
		t.Fatalf("RecordModel: %v", err)
	}
	if err := db.RecordModel("/acf/b738.acf", true); err != nil {
		t.Fatalf("RecordModel: %v", err)
	}

	files, err := db.ModelFiles(10)
	if err != nil {
		t.Fatalf("ModelFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d model files, want 2", len(files))
	}
	for _, f := range files {
		if f.Path == "/acf/c172.acf" && !f.Found {
			t.Error("upsert should overwrite found flag")
		}
	}
}
