package models

import "time"

// PeriodBucket accumulates activity for one truncated time unit.
type PeriodBucket struct {
	Period          string         `json:"period"`
	Count           int            `json:"count"`
	SuccessCount    int            `json:"success_count"`
	FailureCount    int            `json:"failure_count"`
	SuccessRate     string         `json:"success_rate"`
	UniqueUserCount int            `json:"unique_user_count"`
	ByType          map[string]int `json:"by_type"`
}

// PeriodSummary is the result of bucketing a time slice of records by
// hour, day, week or month.
type PeriodSummary struct {
	Period  string         `json:"period"`
	Start   time.Time      `json:"start"`
	End     time.Time      `json:"end"`
	Total   int            `json:"total"`
	Buckets []PeriodBucket `json:"buckets"`
}

// TypeBucket accumulates activity for one activity type.
type TypeBucket struct {
	ActivityType    string    `json:"activity_type"`
	Count           int       `json:"count"`
	SuccessCount    int       `json:"success_count"`
	FailureCount    int       `json:"failure_count"`
	SuccessRate     string    `json:"success_rate"`
	UniqueUserCount int       `json:"unique_user_count"`
	FirstSeen       time.Time `json:"first_seen"`
	LastSeen        time.Time `json:"last_seen"`
}

// TypeSummary groups a time slice of records by activity type.
type TypeSummary struct {
	Start time.Time    `json:"start"`
	End   time.Time    `json:"end"`
	Total int          `json:"total"`
	Types []TypeBucket `json:"types"`
}

// UserSummary describes one actor's activity over a trailing window.
type UserSummary struct {
	UserID        string         `json:"user_id"`
	WindowDays    int            `json:"window_days"`
	Total         int            `json:"total"`
	SuccessCount  int            `json:"success_count"`
	FailureCount  int            `json:"failure_count"`
	SuccessRate   string         `json:"success_rate"`
	ByType        map[string]int `json:"by_type"`
	SessionCount  int            `json:"session_count"`
	FirstActivity time.Time      `json:"first_activity"`
	LastActivity  time.Time      `json:"last_activity"`
}

// LoginAnalysis summarizes login traffic and flags basic anomalies.
type LoginAnalysis struct {
	WindowDays             int            `json:"window_days"`
	TotalLogins            int            `json:"total_logins"`
	SuccessfulLogins       int            `json:"successful_logins"`
	FailedLogins           int            `json:"failed_logins"`
	UniqueUsers            int            `json:"unique_users"`
	UniqueIPs              int            `json:"unique_ips"`
	DeviceBreakdown        map[string]int `json:"device_breakdown"`
	BrowserBreakdown       map[string]int `json:"browser_breakdown"`
	LocationBreakdown      map[string]int `json:"location_breakdown"`
	LoginsByHour           [24]int        `json:"logins_by_hour"`
	LoginsByDay            map[string]int `json:"logins_by_day"`
	MultipleFailedAttempts bool           `json:"multiple_failed_attempts"`
	UnusualIPActivity      bool           `json:"unusual_ip_activity"`
	PeakLoginHour          int            `json:"peak_login_hour"`
	AvgLoginsPerUser       float64        `json:"avg_logins_per_user"`
}

// CleanupResult is the audit record of one retention policy run.
type CleanupResult struct {
	Policy    string    `json:"policy"`
	Deleted   int       `json:"deleted"`
	Processed int       `json:"processed"`
	Errors    int       `json:"errors"`
	DryRun    bool      `json:"dry_run"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
}

// MonthlyReport is produced by the monthly retention tick.
type MonthlyReport struct {
	Month       string         `json:"month"`
	Activity    *TypeSummary   `json:"activity"`
	Logins      *LoginAnalysis `json:"logins"`
	GeneratedAt time.Time      `json:"generated_at"`
}
