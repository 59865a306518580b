// Package pipeline composes the résumé, question, speech and grading
// collaborators around the interview core into the candidate-facing flow:
// start an interview from an uploaded résumé, take a spoken answer and serve
// the next question, and report the grades.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MrWong99/intervox/internal/archive"
	"github.com/MrWong99/intervox/internal/interview"
	"github.com/MrWong99/intervox/internal/observe"
	"github.com/MrWong99/intervox/internal/resume"
	"github.com/MrWong99/intervox/pkg/audio"
)

// DefaultUnintelligibleAnswer is recorded when an answer cannot be
// transcribed.
const DefaultUnintelligibleAnswer = "[Audio Unintelligible]"

// archiveTimeout bounds an inline archive write during shutdown.
const archiveTimeout = 10 * time.Second

// Messages returned to the candidate.
const (
	StartedMessage  = "Interview started successfully."
	RecordedMessage = "Answer recorded."
	FinishedMessage = "Done"
)

var (
	// ErrNoQuestions is returned when no questions could be generated for
	// the résumé.
	ErrNoQuestions = errors.New("pipeline: no questions generated")

	// ErrSpeechUnavailable is returned when the first question cannot be
	// synthesised.
	ErrSpeechUnavailable = errors.New("pipeline: speech synthesis unavailable")

	// ErrEmptyAnswer is returned when an uploaded answer has no audio.
	ErrEmptyAnswer = errors.New("pipeline: empty answer audio")
)

// ProfileExtractor builds a structured profile from résumé text.
type ProfileExtractor interface {
	Extract(ctx context.Context, text string) (resume.Profile, error)
}

// QuestionSource generates interview questions. An empty result signals
// failure.
type QuestionSource interface {
	Generate(ctx context.Context, p resume.Profile) []string
}

// AnswerTranscriber turns a recorded answer into text, using vocabulary to
// fix technical terms. An empty result signals failure.
type AnswerTranscriber interface {
	Transcribe(ctx context.Context, clip audio.Clip, vocabulary []string) string
}

// StartResult is returned by [Service.Start].
type StartResult struct {
	SessionID       string `json:"session_id"`
	Message         string `json:"message"`
	CurrentQuestion string `json:"current_question"`
	AudioPath       string `json:"audio_path"`
	TotalQuestions  int    `json:"total_questions"`
}

// NextResult is returned by [Service.Next]. Progress is the 1-based position
// of Question.
type NextResult struct {
	IsFinished bool   `json:"is_finished"`
	Message    string `json:"message,omitempty"`
	Question   string `json:"question,omitempty"`
	AudioPath  string `json:"audio_path,omitempty"`
	Progress   int    `json:"progress,omitempty"`
	Total      int    `json:"total,omitempty"`
}

// Config wires a [Service]. Every field except Archive, AnswersDir and
// Unintelligible is required.
type Config struct {
	Orchestrator *interview.Orchestrator
	Scheduler    *interview.Scheduler
	Extractor    ProfileExtractor
	Questions    QuestionSource
	Speaker      interview.Synthesizer
	Transcriber  AnswerTranscriber

	// Archive receives every finished, fully graded interview. Nil discards.
	Archive archive.Store

	// AnswersDir receives the raw answer recordings. Empty skips saving.
	AnswersDir string

	// Unintelligible returns the text recorded for an answer that could not
	// be transcribed. It is read on every answer so it can change at
	// runtime. Nil uses [DefaultUnintelligibleAnswer].
	Unintelligible func() string
}

// Service runs the interview flow. It is safe for concurrent use.
type Service struct {
	orch           *interview.Orchestrator
	sched          *interview.Scheduler
	extractor      ProfileExtractor
	questions      QuestionSource
	speaker        interview.Synthesizer
	transcriber    AnswerTranscriber
	archive        archive.Store
	answersDir     string
	unintelligible func() string
	now            func() time.Time

	mu         sync.RWMutex
	vocabulary map[string][]string
}

// New returns a Service.
func New(cfg Config) (*Service, error) {
	switch {
	case cfg.Orchestrator == nil:
		return nil, fmt.Errorf("pipeline: orchestrator is required")
	case cfg.Scheduler == nil:
		return nil, fmt.Errorf("pipeline: scheduler is required")
	case cfg.Extractor == nil:
		return nil, fmt.Errorf("pipeline: profile extractor is required")
	case cfg.Questions == nil:
		return nil, fmt.Errorf("pipeline: question source is required")
	case cfg.Speaker == nil:
		return nil, fmt.Errorf("pipeline: speaker is required")
	case cfg.Transcriber == nil:
		return nil, fmt.Errorf("pipeline: transcriber is required")
	}
	s := &Service{
		orch:           cfg.Orchestrator,
		sched:          cfg.Scheduler,
		extractor:      cfg.Extractor,
		questions:      cfg.Questions,
		speaker:        cfg.Speaker,
		transcriber:    cfg.Transcriber,
		archive:        cfg.Archive,
		answersDir:     cfg.AnswersDir,
		unintelligible: cfg.Unintelligible,
		now:            time.Now,
		vocabulary:     make(map[string][]string),
	}
	if s.archive == nil {
		s.archive = archive.Multi{}
	}
	if s.unintelligible == nil {
		s.unintelligible = func() string { return DefaultUnintelligibleAnswer }
	}
	return s, nil
}

// Orchestrator returns the session orchestrator the service drives.
func (s *Service) Orchestrator() *interview.Orchestrator { return s.orch }

// Start creates an interview from an uploaded résumé and returns the first
// question with its audio. Errors from [resume.ExtractText] that
// [resume.IsUserError] accepts are caused by the upload.
func (s *Service) Start(ctx context.Context, filename string, data []byte) (StartResult, error) {
	text, err := resume.ExtractText(filename, data)
	if err != nil {
		return StartResult{}, err
	}
	profile, err := s.extractor.Extract(ctx, text)
	if err != nil {
		return StartResult{}, fmt.Errorf("pipeline: %w", err)
	}
	questions := s.questions.Generate(ctx, profile)
	if len(questions) == 0 {
		return StartResult{}, ErrNoQuestions
	}

	id, err := s.orch.CreateSession(questions)
	if err != nil {
		return StartResult{}, fmt.Errorf("pipeline: %w", err)
	}

	speech := s.speaker.Synthesize(ctx, questions[0], interview.QuestionHint(id, 0))
	if !speech.Valid {
		s.orch.Discard(id)
		return StartResult{}, ErrSpeechUnavailable
	}
	s.orch.RecordAudio(id, 0, speech.Ref)

	s.mu.Lock()
	s.vocabulary[id] = profile.Vocabulary()
	s.mu.Unlock()

	s.sched.SchedulePrefetch(id, questions)
	observe.Logger(observe.WithSession(ctx, id)).Info("interview started", "questions", len(questions), "skills", len(profile.Skills))

	return StartResult{
		SessionID:       id,
		Message:         StartedMessage,
		CurrentQuestion: questions[0],
		AudioPath:       speech.Ref,
		TotalQuestions:  len(questions),
	}, nil
}

// Next records a spoken answer for the current question and returns the
// following question, or a finished result after the last one. Returns
// [interview.ErrNotFound] for unknown or completed sessions.
func (s *Service) Next(ctx context.Context, sessionID, filename string, data []byte) (NextResult, error) {
	ctx = observe.WithSession(ctx, sessionID)
	log := observe.Logger(ctx)

	progress, err := s.orch.Progress(sessionID)
	if err != nil {
		return NextResult{}, err
	}
	if progress.Completed {
		return NextResult{}, fmt.Errorf("pipeline: session %q completed: %w", sessionID, interview.ErrNotFound)
	}
	if len(data) == 0 {
		return NextResult{}, ErrEmptyAnswer
	}

	clip := audio.NewClip(filename, data)
	if s.answersDir != "" {
		if err := s.saveAnswer(sessionID, progress.Index, clip); err != nil {
			log.Warn("could not save answer recording", "index", progress.Index, "err", err)
		}
	}

	answer := s.transcriber.Transcribe(ctx, clip, s.vocabularyFor(sessionID))
	if answer == "" {
		answer = s.unintelligible()
		log.Info("answer unintelligible", "index", progress.Index)
	}

	idx, err := s.orch.SubmitAnswer(sessionID, answer)
	if err != nil {
		return NextResult{}, err
	}
	question, err := s.orch.Question(sessionID, idx)
	if err != nil {
		return NextResult{}, err
	}
	s.sched.ScheduleGrading(sessionID, idx, question, answer)

	next := idx + 1
	if next >= progress.Total {
		s.Forget(sessionID)
		return NextResult{IsFinished: true, Message: FinishedMessage}, nil
	}

	text, err := s.orch.Question(sessionID, next)
	if err != nil {
		return NextResult{}, err
	}
	ref, ok := s.orch.CachedAudio(sessionID, next)
	if !ok {
		log.Debug("audio cache miss, synthesising", "index", next)
		res := s.speaker.Synthesize(ctx, text, interview.QuestionHint(sessionID, next))
		if res.Valid {
			ref = res.Ref
			s.orch.RecordAudio(sessionID, next, ref)
		} else {
			log.Warn("next question has no audio", "index", next)
		}
	}

	return NextResult{
		Message:   RecordedMessage,
		Question:  text,
		AudioPath: ref,
		Progress:  next + 1,
		Total:     progress.Total,
	}, nil
}

// Report returns the grades recorded so far, ordered by question index.
func (s *Service) Report(sessionID string) ([]interview.IndexedFeedback, error) {
	return s.orch.FeedbackReport(sessionID)
}

// Current returns the question the candidate should answer next.
func (s *Service) Current(sessionID string) (string, interview.Progress, error) {
	q, err := s.orch.CurrentQuestion(sessionID)
	if err != nil {
		return "", interview.Progress{}, err
	}
	p, err := s.orch.Progress(sessionID)
	if err != nil {
		return "", interview.Progress{}, err
	}
	return q, p, nil
}

// Archive queues snap for the archive store. It is intended as the
// orchestrator's report hook. Once the scheduler is closed the record is
// saved inline, so grades that land while draining are not lost.
func (s *Service) Archive(snap interview.Snapshot) {
	rec := archive.FromSnapshot(snap, s.now())
	err := s.sched.Go(observe.JobArchive, func(ctx context.Context) {
		s.save(observe.WithSession(ctx, rec.SessionID), rec)
	})
	if errors.Is(err, interview.ErrSchedulerClosed) {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		s.save(observe.WithSession(ctx, rec.SessionID), rec)
	}
}

func (s *Service) save(ctx context.Context, rec archive.Record) {
	log := observe.Logger(ctx)
	if err := s.archive.Save(ctx, rec); err != nil {
		log.Error("archive interview failed", "err", err)
		return
	}
	log.Info("interview archived", "items", len(rec.Items))
}

// Forget drops per-session state, typically after eviction.
func (s *Service) Forget(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.vocabulary, id)
	}
}

func (s *Service) vocabularyFor(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vocabulary[id]
}

// saveAnswer writes the raw recording to <dir>/answer_<sid>_<idx>.<ext>.
func (s *Service) saveAnswer(sessionID string, idx int, clip audio.Clip) error {
	if err := os.MkdirAll(s.answersDir, 0o755); err != nil {
		return err
	}
	ext := clip.Ext()
	if clip.Format == audio.FormatUnknown {
		ext = audio.FormatMP3
	}
	name := filepath.Join(s.answersDir, fmt.Sprintf("answer_%s_%d.%s", sessionID, idx, ext))
	return os.WriteFile(name, clip.Data, 0o644)
}
