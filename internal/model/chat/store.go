package chat

import "sync"

// Store holds one conversation: messages in chat order and analyses newest
// first. Every mutation notifies all subscribers after the state is updated.
type Store struct {
	// mutate serializes update+notify so subscribers observe mutations in order.
	mutate sync.Mutex

	mu          sync.RWMutex
	messages    []Message
	analyses    []AnalysisResult
	subscribers map[uint64]func()
	nextSubID   uint64
}

// NewStore returns a Store whose transcript starts with the supplied messages.
func NewStore(seed ...Message) *Store {
	messages := make([]Message, 0, len(seed)+16)
	messages = append(messages, seed...)
	return &Store{
		messages:    messages,
		subscribers: make(map[uint64]func()),
	}
}

// AppendMessage adds msg to the end of the transcript.
func (s *Store) AppendMessage(msg Message) {
	s.mutate.Lock()
	defer s.mutate.Unlock()

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.notify()
}

// AppendAnalysis puts result at the front of the analysis list.
func (s *Store) AppendAnalysis(result AnalysisResult) {
	s.mutate.Lock()
	defer s.mutate.Unlock()

	s.mu.Lock()
	analyses := make([]AnalysisResult, 0, len(s.analyses)+1)
	analyses = append(analyses, result)
	s.analyses = append(analyses, s.analyses...)
	s.mu.Unlock()

	s.notify()
}

// GetAnalysis returns the first analysis with the given id.
func (s *Store) GetAnalysis(id string) (AnalysisResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.analyses {
		if item.ID == id {
			return item, true
		}
	}
	return AnalysisResult{}, false
}

// Messages returns a copy of the transcript.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.messages...)
}

// Analyses returns a copy of the analysis list, newest first.
func (s *Store) Analyses() []AnalysisResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]AnalysisResult(nil), s.analyses...)
}

// Subscribe registers fn to run after every mutation. The returned function
// removes exactly this registration; calling it more than once is a no-op.
// fn must not mutate the same store.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}
}

// notify runs every subscriber registered at the time of the call. Callers
// hold s.mutate but not s.mu, so subscribers are free to read snapshots.
func (s *Store) notify() {
	s.mu.RLock()
	targets := make([]func(), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		targets = append(targets, fn)
	}
	s.mu.RUnlock()

	for _, fn := range targets {
		fn()
	}
}
