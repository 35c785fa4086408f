package submission

import (
	"sync"
	"time"

	"github.com/trezcool/kazi/core"
)

type undoEntry struct {
	token        UndoToken
	assignmentID string
	studentID    string
	timer        *time.Timer
}

// undoScheduler keeps one cancellable expiry timer per submission id.
// An entry exists only while its token is unexpired and unconsumed.
type undoScheduler struct {
	mu      sync.Mutex
	pending map[string]*undoEntry
	logger  core.Logger
	closed  bool
}

func newUndoScheduler(logger core.Logger) *undoScheduler {
	return &undoScheduler{
		pending: make(map[string]*undoEntry),
		logger:  logger,
	}
}

// schedule registers `tok` for `sub` and arms its expiry; it replaces any older token of the same pair.
func (s *undoScheduler) schedule(sub Submission, tok UndoToken) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.cancelPairLocked(sub.AssignmentID, sub.StudentID)

	e := &undoEntry{token: tok, assignmentID: sub.AssignmentID, studentID: sub.StudentID}
	e.timer = time.AfterFunc(tok.ExpiresAt.Sub(core.NowFunc()), func() { s.expire(e) })
	s.pending[sub.ID] = e
	s.debug("undo window opened", map[string]interface{}{"submission": sub.ID, "expiresAt": tok.ExpiresAt})
}

func (s *undoScheduler) expire(e *undoEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := e.token.SubmissionID
	if cur, ok := s.pending[id]; ok && cur == e { // ignore superseded timers
		delete(s.pending, id)
		s.debug("undo window closed", map[string]interface{}{"submission": id})
	}
}

// valid reports whether submission `id` holds a token still valid at `now`.
func (s *undoScheduler) valid(id string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.pending[id]
	return ok && e.token.ValidAt(now)
}

// token returns the pending token of submission `id`, if any.
func (s *undoScheduler) token(id string) (UndoToken, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.pending[id]
	if !ok {
		return UndoToken{}, false
	}
	return e.token, true
}

// cancel stops and drops the tokens of the given submissions.
func (s *undoScheduler) cancel(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if e, ok := s.pending[id]; ok {
			e.timer.Stop()
			delete(s.pending, id)
			s.debug("undo window cancelled", map[string]interface{}{"submission": id})
		}
	}
}

func (s *undoScheduler) cancelPair(assignmentID, studentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelPairLocked(assignmentID, studentID)
}

func (s *undoScheduler) cancelPairLocked(assignmentID, studentID string) {
	for id, e := range s.pending {
		if e.assignmentID == assignmentID && e.studentID == studentID {
			e.timer.Stop()
			delete(s.pending, id)
		}
	}
}

func (s *undoScheduler) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// stop cancels every pending timer; later schedules are ignored.
func (s *undoScheduler) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.pending {
		e.timer.Stop()
		delete(s.pending, id)
	}
	s.closed = true
}

func (s *undoScheduler) debug(msg string, extras map[string]interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, extras)
	}
}
