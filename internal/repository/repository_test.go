package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/config"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/database"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
)

var baseTime = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := database.Open(context.Background(), config.DatabaseConfig{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "integrity.db"),
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	migrator, err := database.NewMigrator(db)
	if err != nil {
		t.Fatalf("create migrator: %v", err)
	}
	if err := migrator.Up(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testAnswer(id, attempt, participant, question string, at time.Time) *models.Answer {
	return &models.Answer{
		ID:            id,
		AssessmentID:  "exam-1",
		AttemptID:     attempt,
		ParticipantID: participant,
		QuestionID:    question,
		QuestionType:  models.QuestionTypeFreeText,
		Text:          "answer text of " + id,
		SubmittedAt:   at,
	}
}

func TestAnswerRepositoryQueries(t *testing.T) {
	ctx := context.Background()
	repo := NewAnswerRepository(newTestDB(t), zerolog.Nop())

	answers := []*models.Answer{
		testAnswer("a1", "att-1", "p1", "q1", baseTime),
		testAnswer("a2", "att-2", "p2", "q1", baseTime.Add(time.Minute)),
		testAnswer("a3", "att-3", "p3", "q1", baseTime.Add(2*time.Minute)),
		testAnswer("a4", "att-1", "p1", "q2", baseTime.Add(3*time.Minute)),
	}
	for _, a := range answers {
		if err := repo.Upsert(ctx, a); err != nil {
			t.Fatalf("upsert %s: %v", a.ID, err)
		}
	}

	updated := testAnswer("a2", "att-2", "p2", "q1", baseTime.Add(time.Minute))
	updated.Text = "corrected"
	if err := repo.Upsert(ctx, updated); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	got, err := repo.GetByID(ctx, "a2")
	if err != nil || got == nil || got.Text != "corrected" {
		t.Fatalf("expected corrected text, got %+v (%v)", got, err)
	}
	if !got.SubmittedAt.Equal(baseTime.Add(time.Minute)) {
		t.Fatalf("expected submitted_at round trip, got %v", got.SubmittedAt)
	}

	missing, err := repo.GetByID(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing answer, got %+v (%v)", missing, err)
	}

	recent, err := repo.ListByQuestionSince(ctx, "exam-1", "q1", baseTime.Add(30*time.Second), 10)
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "a3" {
		t.Fatalf("expected a3 then a2, got %+v", recent)
	}

	window, err := repo.ListByQuestionBetween(ctx, "exam-1", "q1", baseTime, baseTime.Add(time.Minute))
	if err != nil || len(window) != 2 {
		t.Fatalf("expected 2 answers in window, got %d (%v)", len(window), err)
	}

	byAttempt, err := repo.ListByAttempts(ctx, []string{"att-1"})
	if err != nil || len(byAttempt) != 2 {
		t.Fatalf("expected 2 answers for att-1, got %d (%v)", len(byAttempt), err)
	}

	corpus, err := repo.ListCorpus(ctx, "exam-1", "q1", "a3", "p1", 10)
	if err != nil {
		t.Fatalf("corpus: %v", err)
	}
	if len(corpus) != 1 || corpus[0].AnswerID != "a2" {
		t.Fatalf("expected corpus of a2 only, got %+v", corpus)
	}
}

func TestDeviceRepositoryListSince(t *testing.T) {
	ctx := context.Background()
	repo := NewDeviceRepository(newTestDB(t), zerolog.Nop())

	records := []models.DeviceRecord{
		{ID: "d1", AssessmentID: "exam-1", ParticipantID: "p1", NetworkOrigin: "10.0.0.1", ClientFingerprint: "fp", LoginAt: baseTime.Add(-4 * time.Hour)},
		{ID: "d2", AssessmentID: "exam-1", ParticipantID: "p2", NetworkOrigin: "10.0.0.1", ClientFingerprint: "fp", LoginAt: baseTime},
		{ID: "d3", AssessmentID: "exam-2", ParticipantID: "p3", NetworkOrigin: "10.0.0.1", ClientFingerprint: "fp", LoginAt: baseTime},
	}
	for i := range records {
		if err := repo.Create(ctx, &records[i]); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := repo.ListSince(ctx, "exam-1", baseTime.Add(-time.Hour))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "d2" {
		t.Fatalf("expected only d2, got %+v", got)
	}
}

func TestSimilarityMergeIsIdempotentAcrossOrder(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewSimilarityRepository(db, zerolog.Nop())

	first, err := repo.Merge(ctx, "exam-1", "att-b", "att-a", models.QuestionMatches{"q1": true, "q2": false})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if first.AttemptA != "att-a" {
		t.Fatalf("expected canonical order, got %s/%s", first.AttemptA, first.AttemptB)
	}

	if _, err := repo.Merge(ctx, "exam-1", "att-a", "att-b", models.QuestionMatches{"q1": true, "q2": false}); err != nil {
		t.Fatalf("second merge: %v", err)
	}

	var rows int
	if err := db.Get(&rows, `SELECT COUNT(*) FROM attempt_similarity`); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected one row per pair, got %d", rows)
	}

	stored, err := repo.Get(ctx, "exam-1", "att-b", "att-a")
	if err != nil || stored == nil {
		t.Fatalf("get: %+v (%v)", stored, err)
	}
	if stored.Score != 0.5 || stored.SharedCount != 2 || stored.MatchCount != 1 {
		t.Fatalf("expected score 0.5 over 2 shared, got %+v", stored)
	}
	if !stored.QuestionMatches["q1"] || stored.QuestionMatches["q2"] {
		t.Fatalf("expected question matches round trip, got %v", stored.QuestionMatches)
	}

	if _, err := repo.Merge(ctx, "exam-1", "x", "x", models.QuestionMatches{"q1": true}); err == nil {
		t.Fatal("expected error for self pair")
	}
}

func TestSimilarityMergeKeepsConcurrentQuestions(t *testing.T) {
	ctx := context.Background()
	repo := NewSimilarityRepository(newTestDB(t), zerolog.Nop())

	if _, err := repo.Merge(ctx, "exam-1", "att-a", "att-b", models.QuestionMatches{"q1": true, "q2": true, "q3": true}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for _, q := range []string{"q4", "q5", "q6", "q7"} {
		wg.Add(1)
		go func(q string) {
			defer wg.Done()
			_, err := repo.Merge(ctx, "exam-1", "att-b", "att-a", models.QuestionMatches{q: q != "q7"})
			errs <- err
		}(q)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent merge: %v", err)
		}
	}

	stored, err := repo.Get(ctx, "exam-1", "att-a", "att-b")
	if err != nil || stored == nil {
		t.Fatalf("get: %+v (%v)", stored, err)
	}
	if stored.SharedCount != 7 || stored.MatchCount != 6 {
		t.Fatalf("expected 6 of 7 questions matching, got %d of %d", stored.MatchCount, stored.SharedCount)
	}
}

func TestSimilarityMergeOrdersIDsByBytes(t *testing.T) {
	ctx := context.Background()
	repo := NewSimilarityRepository(newTestDB(t), zerolog.Nop())

	for _, pair := range [][2]string{{"att1", "att-10"}, {"att-a", "Att-B"}} {
		record, err := repo.Merge(ctx, "exam-1", pair[0], pair[1], models.QuestionMatches{"q1": true})
		if err != nil {
			t.Fatalf("merge %v: %v", pair, err)
		}
		if record.AttemptA != pair[1] || record.AttemptB != pair[0] {
			t.Fatalf("expected byte order %s < %s, got %s/%s", pair[1], pair[0], record.AttemptA, record.AttemptB)
		}

		stored, err := repo.Get(ctx, "exam-1", pair[0], pair[1])
		if err != nil || stored == nil || stored.SharedCount != 1 {
			t.Fatalf("expected stored pair %v, got %+v (%v)", pair, stored, err)
		}
	}
}

func TestSignalRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewSignalRepository(newTestDB(t), zerolog.Nop())

	signals := []models.CollaborationSignal{
		{ID: "s1", AssessmentID: "exam-1", Type: models.SignalTypeSimultaneous, Score: 0.4, Severity: models.SeverityInfo,
			Participants: models.StringList{"p1", "p2"}, WindowStart: baseTime, WindowEnd: baseTime, CreatedAt: baseTime},
		{ID: "s2", AssessmentID: "exam-1", Type: models.SignalTypeAnswerSimilarity, Score: 1, Severity: models.SeverityHigh,
			Participants: models.StringList{"p1", "p2"}, Evidence: models.JSONB{"shared": 5}, WindowStart: baseTime, WindowEnd: baseTime, CreatedAt: baseTime.Add(time.Minute)},
		{ID: "s3", AssessmentID: "exam-2", Type: models.SignalTypeSharedOrigin, Score: 0.75, Severity: models.SeverityWarn,
			WindowStart: baseTime, WindowEnd: baseTime, CreatedAt: baseTime},
	}
	for i := range signals {
		if err := repo.Create(ctx, &signals[i]); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	list, err := repo.ListByAssessment(ctx, "exam-1", models.SignalFilter{})
	if err != nil || len(list) != 2 || list[0].ID != "s2" {
		t.Fatalf("expected s2 first of 2, got %+v (%v)", list, err)
	}
	if list[0].Evidence["shared"] != float64(5) {
		t.Fatalf("expected evidence round trip, got %v", list[0].Evidence)
	}

	high, err := repo.ListByAssessment(ctx, "exam-1", models.SignalFilter{Severity: models.SeverityHigh})
	if err != nil || len(high) != 1 {
		t.Fatalf("expected one high signal, got %d (%v)", len(high), err)
	}

	ok, err := repo.Resolve(ctx, "s1", models.ResolutionDismissed, "staff-1", "lab seating", baseTime.Add(time.Hour))
	if err != nil || !ok {
		t.Fatalf("resolve: %v %v", ok, err)
	}
	resolved, _ := repo.GetByID(ctx, "s1")
	if resolved.ResolutionStatus != models.ResolutionDismissed || resolved.ResolvedBy == nil || *resolved.ResolvedBy != "staff-1" {
		t.Fatalf("expected dismissed by staff-1, got %+v", resolved)
	}

	ok, err = repo.Resolve(ctx, "missing", models.ResolutionConfirmed, "staff-1", "", baseTime)
	if err != nil || ok {
		t.Fatalf("expected missing signal not resolved, got %v (%v)", ok, err)
	}

	counts, err := repo.CountBySeveritySince(ctx, "", baseTime)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[models.SeverityInfo] != 1 || counts[models.SeverityHigh] != 1 || counts[models.SeverityWarn] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}

	scoped, _ := repo.CountBySeveritySince(ctx, "exam-2", baseTime)
	if scoped[models.SeverityWarn] != 1 || scoped[models.SeverityHigh] != 0 {
		t.Fatalf("unexpected scoped counts %v", scoped)
	}
}

func testAnalysis(answerID string, level models.RiskLevel, score float64) *models.PlagiarismAnalysis {
	return &models.PlagiarismAnalysis{
		AnswerID:       answerID,
		AttemptID:      "att-1",
		QuestionID:     "q1",
		AssessmentID:   "exam-1",
		ParticipantID:  "p1",
		OverallScore:   score,
		RiskLevel:      level,
		Confidence:     0.9,
		IsFlagged:      level == models.RiskLevelHigh || level == models.RiskLevelCritical,
		RequiresReview: level != models.RiskLevelLow,
		CreatedAt:      baseTime,
		Matches: []models.PlagiarismMatch{
			{SourceAnswerID: "src-1", TargetStart: 0, TargetEnd: 10, SourceStart: 5, SourceEnd: 15,
				MatchedText: "copied bit", SourceText: "copied bit", MatchType: models.MatchTypeExact, Algorithm: "cosine_tfidf", Confidence: 1},
		},
	}
}

func TestPlagiarismRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewPlagiarismRepository(db, zerolog.Nop())

	stored, created, err := repo.Create(ctx, testAnalysis("ans-1", models.RiskLevelCritical, 0.9))
	if err != nil || !created {
		t.Fatalf("create: %v %v", created, err)
	}

	again, created, err := repo.Create(ctx, testAnalysis("ans-1", models.RiskLevelLow, 0.1))
	if err != nil || created {
		t.Fatalf("expected duplicate to be ignored, got created=%v (%v)", created, err)
	}
	if again.ID != stored.ID || again.RiskLevel != models.RiskLevelCritical {
		t.Fatalf("expected stored analysis back, got %+v", again)
	}

	loaded, err := repo.GetByID(ctx, stored.ID)
	if err != nil || loaded == nil || len(loaded.Matches) != 1 {
		t.Fatalf("expected analysis with one match, got %+v (%v)", loaded, err)
	}
	if loaded.Matches[0].SourceStart != 5 || loaded.Matches[0].MatchType != models.MatchTypeExact {
		t.Fatalf("unexpected match %+v", loaded.Matches[0])
	}

	if _, _, err := repo.Create(ctx, testAnalysis("ans-2", models.RiskLevelMedium, 0.5)); err != nil {
		t.Fatalf("create second: %v", err)
	}

	queue, err := repo.ReviewQueue(ctx, 10)
	if err != nil || len(queue) != 2 || queue[0].AnswerID != "ans-1" {
		t.Fatalf("expected riskiest first in queue, got %+v (%v)", queue, err)
	}

	pending, err := repo.CountPendingReview(ctx, "exam-1")
	if err != nil || pending != 1 {
		t.Fatalf("expected 1 flagged pending review, got %d (%v)", pending, err)
	}

	ok, err := repo.Review(ctx, stored.ID, models.ReviewAccepted, "staff-1", "confirmed copy", baseTime.Add(time.Hour))
	if err != nil || !ok {
		t.Fatalf("review: %v %v", ok, err)
	}
	ok, err = repo.Review(ctx, stored.ID, models.ReviewRejected, "staff-2", "", baseTime.Add(2*time.Hour))
	if err != nil || ok {
		t.Fatalf("expected second review rejected, got %v (%v)", ok, err)
	}

	found, err := repo.Find(ctx, "att-1", "", "ans-1")
	if err != nil || len(found) != 1 || found[0].ReviewDecision == nil || *found[0].ReviewDecision != models.ReviewAccepted {
		t.Fatalf("expected reviewed analysis, got %+v (%v)", found, err)
	}
	if _, err := repo.Find(ctx, "", "", ""); err == nil {
		t.Fatal("expected error without filters")
	}

	deleted, err := repo.Delete(ctx, stored.ID)
	if err != nil || !deleted {
		t.Fatalf("delete: %v %v", deleted, err)
	}

	var matches int
	if err := db.Get(&matches, db.Rebind(`SELECT COUNT(*) FROM plagiarism_matches WHERE analysis_id = ?`), stored.ID); err != nil {
		t.Fatalf("count matches: %v", err)
	}
	if matches != 0 {
		t.Fatalf("expected matches removed with analysis, got %d", matches)
	}

	deleted, err = repo.Delete(ctx, stored.ID)
	if err != nil || deleted {
		t.Fatalf("expected second delete to report false, got %v (%v)", deleted, err)
	}
}
