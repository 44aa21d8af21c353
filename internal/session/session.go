package session

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/google/uuid"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub000/internal/interview"
)

// State of a session's lifecycle.
type State int

const (
	StateOpening State = iota
	StateListening
	StateProcessing
	StateSpeaking
	StateEnding
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	case StateEnding:
		return "ending"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

const (
	defaultDebounceWindow = time.Second
	connectTimeout        = 10 * time.Second
	collaboratorTimeout   = 5 * time.Second
)

// Options carries the dependencies for one interview session.
type Options struct {
	InterviewID string
	Transport   Transport
	Recognizer  Recognizer
	Generator   Generator
	Synthesizer Synthesizer
	Store       interview.Store
	Notifier    interview.Notifier
	Registry    *Registry
	// DebounceWindow is how long to wait after the last final transcript
	// before treating the utterance as complete. Defaults to one second.
	DebounceWindow time.Duration
}

// Session orchestrates one interview voice call: candidate audio in,
// transcripts from the recognizer, interviewer replies from the generator,
// synthesized audio back out. All state transitions happen under one mutex;
// the busy flag is the sole guard against concurrent generation cycles.
type Session struct {
	id     string
	callID string

	transport  Transport
	recognizer Recognizer
	generator  Generator
	synth      Synthesizer
	store      interview.Store
	notifier   interview.Notifier
	registry   *Registry

	debounce func(func())

	ctx    context.Context
	cancel context.CancelFunc

	// details is written once during Start, before any goroutine reads it.
	details interview.Details

	mu      sync.Mutex
	state   State
	busy    bool
	pending []string
	history []interview.Turn

	closeOnce sync.Once
}

// New constructs a session in the Opening state. Call Start to run it.
func New(opts Options) *Session {
	window := opts.DebounceWindow
	if window <= 0 {
		window = defaultDebounceWindow
	}
	return &Session{
		id:         opts.InterviewID,
		callID:     uuid.NewString(),
		transport:  opts.Transport,
		recognizer: opts.Recognizer,
		generator:  opts.Generator,
		synth:      opts.Synthesizer,
		store:      opts.Store,
		notifier:   opts.Notifier,
		registry:   opts.Registry,
		debounce:   debounce.New(window),
		state:      StateOpening,
	}
}

// InterviewID returns the stable external key for this session.
func (s *Session) InterviewID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start validates the interview, connects the recognizer and speaks the
// opening line. On success the session is Listening and transcript handling
// runs in the background; the caller keeps feeding HandleAudio and
// HandleControl until disconnect.
func (s *Session) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	fctx, cancel := context.WithTimeout(s.ctx, collaboratorTimeout)
	details, err := s.store.Fetch(fctx, s.id)
	cancel()
	if err != nil {
		s.send(errorMessage("interview not found"))
		s.Teardown()
		return fmt.Errorf("fetch interview %s: %w", s.id, err)
	}
	if details.Status != interview.StatusPending && details.Status != interview.StatusInProgress {
		s.send(errorMessage("interview is not active"))
		s.Teardown()
		return fmt.Errorf("interview %s has status %s", s.id, details.Status)
	}
	s.details = details

	cctx, cancel := context.WithTimeout(s.ctx, connectTimeout)
	err = s.recognizer.Connect(cctx)
	cancel()
	if err != nil {
		s.send(errorMessage("speech service unavailable"))
		s.Teardown()
		return fmt.Errorf("connect recognizer for %s: %w", s.id, err)
	}

	if details.Status == interview.StatusPending {
		sctx, cancel := context.WithTimeout(s.ctx, collaboratorTimeout)
		err = s.store.SetStatus(sctx, s.id, interview.StatusInProgress)
		cancel()
		if err != nil {
			log.Printf("[%s] mark interview in progress: %v", s.callID, err)
		} else if s.notifier != nil {
			s.notifier.Notify(details.OwnerID, "interview.started", map[string]any{"interview_id": s.id})
		}
	}

	s.mu.Lock()
	s.state = StateListening
	s.mu.Unlock()
	s.send(readyMessage(s.id))
	log.Printf("[%s] session open for interview %s", s.callID, s.id)

	go s.consumeEvents()
	go s.speakOpening()
	return nil
}

// HandleAudio forwards one raw client audio frame to the recognizer.
func (s *Session) HandleAudio(frame []byte) {
	_ = s.recognizer.SendAudio(frame)
}

// HandleControl processes one inbound control frame. Malformed input is
// ignored.
func (s *Session) HandleControl(raw []byte) {
	msg, ok := parseClientMessage(raw)
	if !ok {
		return
	}
	switch msg.Type {
	case msgTypePing:
		s.send(pongMessage())
	case msgTypeFinishSpeaking:
		s.flushPending()
	case msgTypeEnd:
		s.End()
	}
}

// HandleDisconnect tears the session down after the client went away.
func (s *Session) HandleDisconnect() {
	s.Teardown()
}

// End performs the orderly end-of-interview sequence: mark completed,
// notify the owner, acknowledge to the client, then tear down.
func (s *Session) End() {
	s.mu.Lock()
	if s.state == StateEnding || s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateEnding
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
	defer cancel()
	if err := s.store.SetStatus(ctx, s.id, interview.StatusCompleted); err != nil {
		log.Printf("[%s] mark interview completed: %v", s.callID, err)
	}
	if s.notifier != nil {
		s.notifier.Notify(s.details.OwnerID, "interview.completed", map[string]any{"interview_id": s.id})
	}
	s.send(endedMessage(s.id))
	s.Teardown()
}

// Teardown closes owned connections exactly once, removes the session from
// the registry and marks it Closed. Safe to call from any exit path,
// including concurrently with End.
func (s *Session) Teardown() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
		if s.cancel != nil {
			s.cancel()
		}
		if err := s.recognizer.Close(); err != nil {
			log.Printf("[%s] close recognizer: %v", s.callID, err)
		}
		if err := s.synth.Close(); err != nil {
			log.Printf("[%s] close synthesizer: %v", s.callID, err)
		}
		if s.registry != nil {
			s.registry.remove(s.id, s)
		}
		_ = s.transport.Close()
		log.Printf("[%s] session closed for interview %s", s.callID, s.id)
	})
}

// consumeEvents forwards transcripts to the client and accumulates final
// fragments into the pending buffer, restarting the debounce window on each.
func (s *Session) consumeEvents() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-s.recognizer.Events():
			if !ok {
				// A closed event stream outside an orderly shutdown means
				// the recognizer died mid-interview. The session cannot
				// hear the candidate anymore, so it must not linger.
				s.mu.Lock()
				ending := s.state == StateEnding || s.state == StateClosed
				s.mu.Unlock()
				if !ending {
					log.Printf("[%s] recognizer stream ended unexpectedly", s.callID)
					s.send(errorMessage("speech service unavailable"))
					s.Teardown()
				}
				return
			}
			text := strings.TrimSpace(ev.Text)
			if text == "" {
				continue
			}
			s.send(transcriptMessage(ev.Text, ev.IsFinal, ev.Confidence))
			if !ev.IsFinal {
				continue
			}
			s.mu.Lock()
			if s.state == StateEnding || s.state == StateClosed {
				s.mu.Unlock()
				continue
			}
			s.pending = append(s.pending, text)
			s.mu.Unlock()
			s.debounce(s.flushPending)
		}
	}
}

// flushPending starts a generation cycle for the buffered utterance. The
// busy check and the snapshot-and-clear are one atomic step under the
// session mutex, so a debounce firing during an in-flight cycle can never
// start a second one; the buffer keeps accumulating instead.
func (s *Session) flushPending() {
	s.mu.Lock()
	if s.busy || s.state != StateListening {
		s.mu.Unlock()
		return
	}
	text := strings.TrimSpace(strings.Join(s.pending, " "))
	if text == "" {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	s.busy = true
	s.state = StateProcessing
	s.mu.Unlock()
	go s.runCycle(text)
}

// runCycle executes one candidate -> interviewer exchange.
func (s *Session) runCycle(candidate string) {
	if !s.appendTurn(interview.RoleCandidate, candidate) {
		return
	}
	s.send(processingMessage())

	reply, err := s.generator.Generate(s.ctx, s.historySnapshot(), s.details)
	if err != nil {
		s.recoverCycle("generate reply", err)
		return
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		s.recoverCycle("generate reply", fmt.Errorf("empty reply"))
		return
	}
	if !s.appendTurn(interview.RoleInterviewer, reply) {
		return
	}
	s.send(responseMessage(reply))
	s.speak(reply)
	s.finishCycle()
}

// speakOpening runs the interviewer's greeting as a generation cycle with no
// candidate turn.
func (s *Session) speakOpening() {
	s.mu.Lock()
	if s.busy || s.state != StateListening {
		s.mu.Unlock()
		return
	}
	s.busy = true
	s.state = StateProcessing
	s.mu.Unlock()

	line, err := s.generator.OpeningLine(s.ctx, s.details)
	if err != nil {
		s.recoverCycle("opening line", err)
		return
	}
	line = strings.TrimSpace(line)
	if line == "" || !s.appendTurn(interview.RoleInterviewer, line) {
		s.finishCycle()
		return
	}
	s.send(responseMessage(line))
	s.speak(line)
	s.finishCycle()
}

// speak streams one utterance's audio to the client in synthesis order.
// A mid-stream synthesis failure abandons the utterance and is log-only.
func (s *Session) speak(text string) {
	s.mu.Lock()
	if s.state != StateProcessing {
		s.mu.Unlock()
		return
	}
	s.state = StateSpeaking
	s.mu.Unlock()

	frames, errs := s.synth.Speak(s.ctx, text)
	aborted := false
	for frames != nil || errs != nil {
		select {
		case f, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			if aborted || s.State() != StateSpeaking {
				continue
			}
			if err := s.transport.SendAudio(f); err != nil {
				log.Printf("[%s] send audio: %v", s.callID, err)
				aborted = true
			}
		case e, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if e != nil {
				log.Printf("[%s] synthesis error, abandoning utterance: %v", s.callID, e)
				aborted = true
			}
		case <-s.ctx.Done():
			return
		}
	}
	if !aborted && s.State() == StateSpeaking {
		s.send(audioCompleteMessage())
	}
}

// recoverCycle handles a recoverable cycle failure: apologize, return to
// Listening, keep the session alive.
func (s *Session) recoverCycle(op string, err error) {
	log.Printf("[%s] %s: %v", s.callID, op, err)
	if s.State() != StateClosed {
		s.send(errorMessage("Sorry, I had trouble with that. Please continue."))
	}
	s.finishCycle()
}

// finishCycle clears busy and resumes Listening. Finals that arrived during
// the cycle are picked up here immediately, so nothing waits for a debounce
// that already fired.
func (s *Session) finishCycle() {
	s.mu.Lock()
	s.busy = false
	if s.state == StateProcessing || s.state == StateSpeaking {
		s.state = StateListening
	}
	if s.state == StateListening {
		if text := strings.TrimSpace(strings.Join(s.pending, " ")); text != "" {
			s.pending = nil
			s.busy = true
			s.state = StateProcessing
			s.mu.Unlock()
			go s.runCycle(text)
			return
		}
	}
	s.mu.Unlock()
}

// appendTurn records a turn in the history and mirrors it to the store.
// Returns false when the session has already left the active states, in
// which case nothing is appended and the cycle's result is discarded.
func (s *Session) appendTurn(role, text string) bool {
	s.mu.Lock()
	if s.state == StateEnding || s.state == StateClosed {
		s.mu.Unlock()
		return false
	}
	s.history = append(s.history, interview.Turn{Role: role, Text: text, ObservedAt: time.Now()})
	s.mu.Unlock()

	if s.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
		defer cancel()
		if err := s.store.AppendTurn(ctx, s.id, role, text); err != nil {
			log.Printf("[%s] persist %s turn: %v", s.callID, role, err)
		}
	}
	return true
}

func (s *Session) historySnapshot() []interview.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]interview.Turn, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) send(msg ServerMessage) {
	if err := s.transport.SendControl(msg); err != nil {
		log.Printf("[%s] send %s: %v", s.callID, msg.Type, err)
	}
}
