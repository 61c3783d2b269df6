// Package progress keeps the shared run progress state read by external observers.
package progress

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// MaxRecentErrors is the size of the recent errors ring
const MaxRecentErrors = 20

// ErrNegativeDelta is returned for deltas that would decrease a counter
var ErrNegativeDelta = errors.New("negative progress delta")

// State is the on-disk progress document
type State struct {
	RunID            string                `json:"run_id"`
	StartTime        time.Time             `json:"start_time"`
	UpdatedAt        time.Time             `json:"updated_at"`
	Finished         bool                  `json:"finished"`
	SourcesTotal     int                   `json:"sources_total"`
	SourcesProcessed int                   `json:"sources_processed"`
	NewsFound        int                   `json:"news_found"`
	NewsSaved        int                   `json:"news_saved"`
	NewsFiltered     int                   `json:"news_filtered"`
	ErrorsCount      int                   `json:"errors_count"`
	CurrentSource    string                `json:"current_source"`
	RecentErrors     []ErrorEntry          `json:"recent_errors"`
	SourceStats      map[string]SourceStat `json:"source_stats"`
	Categories       map[string]int        `json:"categories"`
	AIStats          AIStats               `json:"ai_stats"`
}

// ErrorEntry is one item of the recent errors ring
type ErrorEntry struct {
	Time    time.Time `json:"time"`
	Source  string    `json:"source"`
	Message string    `json:"message"`
}

// SourceStat aggregates per-source counters
type SourceStat struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Found    int    `json:"found"`
	Saved    int    `json:"saved"`
	Filtered int    `json:"filtered"`
	Errors   int    `json:"errors"`
}

// AIStats aggregates scorer verdicts of saved items
type AIStats struct {
	Scored         int     `json:"scored"`
	ImportanceSum  float64 `json:"importance_sum"`
	CredibilitySum float64 `json:"credibility_sum"`
}

// Delta is a named set of non-negative increments applied in one write
type Delta struct {
	SourcesProcessed int
	NewsFound        int
	NewsSaved        int
	NewsFiltered     int
	Errors           int
	Error            *ErrorEntry // appended to the ring, does not bump Errors by itself
	Source           *SourceStat // added to the stats of Source.Name
	Category         string      // NewsSaved is added to this category
	AI               *AIStats    // added to AIStats
}

// Validate rejects deltas with negative increments
func (d Delta) Validate() error {
	vals := []int{d.SourcesProcessed, d.NewsFound, d.NewsSaved, d.NewsFiltered, d.Errors}
	if d.Source != nil {
		vals = append(vals, d.Source.Found, d.Source.Saved, d.Source.Filtered, d.Source.Errors)
	}
	if d.AI != nil {
		if d.AI.ImportanceSum < 0 || d.AI.CredibilitySum < 0 {
			return fmt.Errorf("%w: ai stats", ErrNegativeDelta)
		}
		vals = append(vals, d.AI.Scored)
	}
	for _, v := range vals {
		if v < 0 {
			return fmt.Errorf("%w: %+v", ErrNegativeDelta, d)
		}
	}
	return nil
}

// apply adds a validated delta to the state
func (s *State) apply(d Delta, now time.Time) {
	s.SourcesProcessed += d.SourcesProcessed
	s.NewsFound += d.NewsFound
	s.NewsSaved += d.NewsSaved
	s.NewsFiltered += d.NewsFiltered
	s.ErrorsCount += d.Errors
	if d.Error != nil {
		e := *d.Error
		if e.Time.IsZero() {
			e.Time = now
		}
		s.RecentErrors = append(s.RecentErrors, e)
		if len(s.RecentErrors) > MaxRecentErrors {
			s.RecentErrors = append([]ErrorEntry(nil), s.RecentErrors[len(s.RecentErrors)-MaxRecentErrors:]...)
		}
	}
	if d.Source != nil && d.Source.Name != "" {
		if s.SourceStats == nil {
			s.SourceStats = map[string]SourceStat{}
		}
		st := s.SourceStats[d.Source.Name]
		st.Name = d.Source.Name
		if d.Source.Category != "" {
			st.Category = d.Source.Category
		}
		st.Found += d.Source.Found
		st.Saved += d.Source.Saved
		st.Filtered += d.Source.Filtered
		st.Errors += d.Source.Errors
		s.SourceStats[d.Source.Name] = st
	}
	if d.Category != "" && d.NewsSaved > 0 {
		if s.Categories == nil {
			s.Categories = map[string]int{}
		}
		s.Categories[d.Category] += d.NewsSaved
	}
	if d.AI != nil {
		s.AIStats.Scored += d.AI.Scored
		s.AIStats.ImportanceSum += d.AI.ImportanceSum
		s.AIStats.CredibilitySum += d.AI.CredibilitySum
	}
	s.UpdatedAt = now
}

// View is the derived read model of a state
type View struct {
	State
	Percent        float64       `json:"progress_percent"`
	Elapsed        time.Duration `json:"elapsed_ns"`
	ETA            time.Duration `json:"eta_ns"`
	TopSources     []SourceStat  `json:"top_sources"`
	LastErrors     []ErrorEntry  `json:"last_errors"`
	AvgImportance  float64       `json:"avg_importance"`
	AvgCredibility float64       `json:"avg_credibility"`
}

// NewView derives percent, ETA = elapsed/processed*remaining, top-N sources by saved and the last 10 errors
func NewView(s State, now time.Time, topN int) View {
	v := View{State: s}
	if s.SourcesTotal > 0 {
		v.Percent = float64(s.SourcesProcessed) / float64(s.SourcesTotal) * 100
	}
	if !s.StartTime.IsZero() {
		end := now
		if s.Finished && !s.UpdatedAt.IsZero() {
			end = s.UpdatedAt
		}
		v.Elapsed = end.Sub(s.StartTime)
	}
	if remaining := s.SourcesTotal - s.SourcesProcessed; s.SourcesProcessed > 0 && remaining > 0 && !s.Finished {
		v.ETA = time.Duration(float64(v.Elapsed) / float64(s.SourcesProcessed) * float64(remaining))
	}

	for _, st := range s.SourceStats {
		v.TopSources = append(v.TopSources, st)
	}
	sort.Slice(v.TopSources, func(i, j int) bool {
		if v.TopSources[i].Saved != v.TopSources[j].Saved {
			return v.TopSources[i].Saved > v.TopSources[j].Saved
		}
		return v.TopSources[i].Name < v.TopSources[j].Name
	})
	if topN > 0 && len(v.TopSources) > topN {
		v.TopSources = v.TopSources[:topN]
	}

	v.LastErrors = s.RecentErrors
	if len(v.LastErrors) > 10 {
		v.LastErrors = v.LastErrors[len(v.LastErrors)-10:]
	}
	if s.AIStats.Scored > 0 {
		v.AvgImportance = s.AIStats.ImportanceSum / float64(s.AIStats.Scored)
		v.AvgCredibility = s.AIStats.CredibilitySum / float64(s.AIStats.Scored)
	}
	return v
}
