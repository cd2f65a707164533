package models

import "time"

// ReportSnapshot is one cached fetch of the report list
type ReportSnapshot struct {
	ID        int64     `json:"id"`
	Source    string    `json:"source"`
	Count     int       `json:"count"`
	FetchedAt time.Time `json:"fetched_at"`
	Reports   []Report  `json:"reports,omitempty"`
}

// CategoryCount is the number of reports in one category
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}
