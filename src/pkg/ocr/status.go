package ocr

import "sync"

// Status tracks session-lifetime recognition counters. It is owned by one
// Gateway and injected wherever diagnostics need it; nothing here
// persists across restarts.
type Status struct {
	mu              sync.Mutex
	offlineReady    bool
	onlineFailCount int
	totalRecognized int
}

// StatusSnapshot is the read-only view served to diagnostics surfaces.
type StatusSnapshot struct {
	OfflineReady    bool `json:"offline_ready"`
	OnlineFailCount int  `json:"online_fail_count"`
	TotalRecognized int  `json:"total_recognized"`
}

// recordRemoteSuccess resets the consecutive-failure counter. The counter
// is diagnostics only; it never gates failover.
func (s *Status) recordRemoteSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onlineFailCount = 0
}

func (s *Status) recordRemoteFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onlineFailCount++
}

func (s *Status) recordOfflineReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offlineReady = true
}

func (s *Status) recordRecognized() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalRecognized++
}

func (s *Status) Snapshot() StatusSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatusSnapshot{
		OfflineReady:    s.offlineReady,
		OnlineFailCount: s.onlineFailCount,
		TotalRecognized: s.totalRecognized,
	}
}
