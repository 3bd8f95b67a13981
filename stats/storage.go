package stats

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// MonthlyStats represents usage statistics for a specific month
type MonthlyStats struct {
	Requests           int                  `json:"requests"`
	Processed          int                  `json:"processed"`
	ValidationFailures int                  `json:"validation_failures"`
	RateLimited        int                  `json:"rate_limited"`
	Errors             int                  `json:"errors"`
	TotalProcessingMs  float64              `json:"total_processing_ms"`
	TotalOverallScore  int                  `json:"total_overall_score"`
	ImportCacheHits    int                  `json:"import_hits"`
	ImportCacheMisses  int                  `json:"import_misses"`
	Visitors           map[string]time.Time `json:"visitors"` // hashed IP -> last visit
	LastUpdated        time.Time            `json:"last_updated"`
}

// AverageProcessingMs is the mean handling time of processing requests
func (m MonthlyStats) AverageProcessingMs() float64 {
	if m.Processed == 0 {
		return 0
	}
	return m.TotalProcessingMs / float64(m.Processed)
}

// AverageOverallScore is the mean overall SEO score of processed articles
func (m MonthlyStats) AverageOverallScore() float64 {
	if m.Processed == 0 {
		return 0
	}
	return float64(m.TotalOverallScore) / float64(m.Processed)
}

// ErrorRate is the share of requests answered with a server error, in percent
func (m MonthlyStats) ErrorRate() float64 {
	if m.Requests == 0 {
		return 0
	}
	return float64(m.Errors) / float64(m.Requests) * 100
}

// Storage handles persistent storage of statistics
type Storage struct {
	mutex       sync.RWMutex
	saveMutex   sync.Mutex
	stats       map[string]*MonthlyStats // key: "YYYY-MM"
	filePath    string
	lastWrite   time.Time
	writeBuffer chan struct{}
	done        chan struct{}
	stopped     chan struct{}
	closeOnce   sync.Once
	now         func() time.Time
}

// NewStorage creates a new statistics storage instance backed by
// dataDir/stats.json
func NewStorage(dataDir string) (*Storage, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &Storage{
		stats:       make(map[string]*MonthlyStats),
		filePath:    filepath.Join(dataDir, "stats.json"),
		writeBuffer: make(chan struct{}, 1),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
		now:         time.Now,
	}

	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}

	go s.backgroundWriter()

	return s, nil
}

func (s *Storage) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	return json.Unmarshal(data, &s.stats)
}

// save writes statistics to file through a temporary file and rename
func (s *Storage) save() error {
	s.saveMutex.Lock()
	defer s.saveMutex.Unlock()

	s.mutex.RLock()
	data, err := json.Marshal(s.stats)
	s.mutex.RUnlock()

	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := os.Rename(tempFile, s.filePath); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}

func (s *Storage) backgroundWriter() {
	defer close(s.stopped)

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.writeBuffer:
			s.save()
		case <-ticker.C:
			s.save()
		case <-s.done:
			return
		}
	}
}

func (s *Storage) currentMonth() string {
	return s.now().Format("2006-01")
}

// requestWrite signals that a write to disk is needed
func (s *Storage) requestWrite() {
	select {
	case s.writeBuffer <- struct{}{}:
	default:
		// write already pending
	}
}

// update applies fn to the current month's entry under the write lock
func (s *Storage) update(fn func(*MonthlyStats)) {
	month := s.currentMonth()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	stats, exists := s.stats[month]
	if !exists {
		stats = &MonthlyStats{}
		s.stats[month] = stats
	}
	if stats.Visitors == nil {
		stats.Visitors = make(map[string]time.Time)
	}

	fn(stats)
	stats.LastUpdated = s.now()

	if s.now().Sub(s.lastWrite) > time.Minute {
		s.requestWrite()
		s.lastWrite = s.now()
	}
}

// hashVisitor avoids persisting raw client addresses
func hashVisitor(ip string) string {
	hash := md5.Sum([]byte(ip))
	return hex.EncodeToString(hash[:])
}

// TrackRequest records one handled request from the given client
func (s *Storage) TrackRequest(ip string, status int) {
	s.update(func(m *MonthlyStats) {
		m.Requests++
		m.Visitors[hashVisitor(ip)] = s.now()
		switch {
		case status == 429:
			m.RateLimited++
		case status >= 500:
			m.Errors++
		}
	})
}

// TrackProcessed records a successfully processed article
func (s *Storage) TrackProcessed(duration time.Duration, overallScore int) {
	s.update(func(m *MonthlyStats) {
		m.Processed++
		m.TotalProcessingMs += float64(duration.Microseconds()) / 1000
		m.TotalOverallScore += overallScore
	})
}

// TrackValidationFailure records a rejected article
func (s *Storage) TrackValidationFailure() {
	s.update(func(m *MonthlyStats) {
		m.ValidationFailures++
	})
}

// TrackImportCache records an article import cache lookup
func (s *Storage) TrackImportCache(hit bool) {
	s.update(func(m *MonthlyStats) {
		if hit {
			m.ImportCacheHits++
		} else {
			m.ImportCacheMisses++
		}
	})
}

func copyStats(m *MonthlyStats) MonthlyStats {
	out := *m
	out.Visitors = make(map[string]time.Time, len(m.Visitors))
	for k, v := range m.Visitors {
		out.Visitors[k] = v
	}
	return out
}

// GetCurrentStats returns statistics for the current month
func (s *Storage) GetCurrentStats() MonthlyStats {
	month := s.currentMonth()

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if stats, exists := s.stats[month]; exists {
		return copyStats(stats)
	}
	return MonthlyStats{}
}

// UniqueVisitors counts visitors seen within the given period
func (s *Storage) UniqueVisitors(period time.Duration) int {
	cutoff := s.now().Add(-period)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	seen := make(map[string]struct{})
	for _, stats := range s.stats {
		for visitor, lastVisit := range stats.Visitors {
			if lastVisit.After(cutoff) {
				seen[visitor] = struct{}{}
			}
		}
	}
	return len(seen)
}

// Cleanup removes statistics older than retainMonths months, always keeping
// the current month
func (s *Storage) Cleanup(retainMonths int) {
	if retainMonths < 1 {
		retainMonths = 1
	}

	keep := make(map[string]bool, retainMonths)
	now := s.now()
	for i := 0; i < retainMonths; i++ {
		keep[now.AddDate(0, -i, 0).Format("2006-01")] = true
	}

	s.mutex.Lock()
	for key := range s.stats {
		if !keep[key] {
			delete(s.stats, key)
		}
	}
	s.mutex.Unlock()

	s.requestWrite()
}

// GetMonthlyStats returns statistics for a specific month
func (s *Storage) GetMonthlyStats(yearMonth string) (MonthlyStats, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if stats, exists := s.stats[yearMonth]; exists {
		return copyStats(stats), true
	}
	return MonthlyStats{}, false
}

// GetAllMonths returns all months that have statistics, newest first
func (s *Storage) GetAllMonths() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	months := make([]string, 0, len(s.stats))
	for month := range s.stats {
		months = append(months, month)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(months)))

	return months
}

// Summary returns the statistics exposed by the API. Per-month detail is
// only included when detailed is true.
func (s *Storage) Summary(detailed bool) map[string]any {
	current := s.GetCurrentStats()

	summary := map[string]any{
		"uniqueVisitors24h":   s.UniqueVisitors(24 * time.Hour),
		"totalRequests":       current.Requests,
		"processed":           current.Processed,
		"errorRate":           current.ErrorRate(),
		"averageProcessingMs": current.AverageProcessingMs(),
	}

	if detailed {
		summary["averageOverallScore"] = current.AverageOverallScore()
		summary["validationFailures"] = current.ValidationFailures
		summary["rateLimited"] = current.RateLimited
		summary["importCacheHits"] = current.ImportCacheHits
		summary["importCacheMisses"] = current.ImportCacheMisses
		summary["months"] = s.GetAllMonths()
	}

	return summary
}

// Shutdown stops the background writer and flushes statistics to disk
func (s *Storage) Shutdown() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	<-s.stopped

	return s.save()
}
