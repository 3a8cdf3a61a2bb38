package models

import "time"

// TargetRequest is the input of a single scrape run
type TargetRequest struct {
	EntityName string `json:"company"`
}

// ScrapeRequest is a batch of entities scraped under one proxy and concurrency bound
type ScrapeRequest struct {
	Companies      []string `json:"companies" yaml:"companies" validate:"required,min=1,dive,required,max=200"`
	MaxConcurrency int      `json:"max_concurrency,omitempty" yaml:"max_concurrency" validate:"omitempty,min=1,max=50"`
	ProxyURL       string   `json:"proxy_url,omitempty" yaml:"proxy_url" validate:"omitempty,url"`
}

// Targets converts the company names into target requests, keeping their order
func (r ScrapeRequest) Targets() []TargetRequest {
	targets := make([]TargetRequest, 0, len(r.Companies))
	for _, name := range r.Companies {
		targets = append(targets, TargetRequest{EntityName: name})
	}
	return targets
}

// BatchResult is the completion-ordered output of a batch
type BatchResult struct {
	RunID    string          `json:"run_id"`
	Count    int             `json:"count"`
	Items    []*ResultRecord `json:"items"`
	Duration time.Duration   `json:"duration_ns"`
}

// Candidate is a clickable element of the results view that mentions the target entity
type Candidate struct {
	Text string `json:"text"`
	Href string `json:"href,omitempty"`
	Path string `json:"path"` // Structural CSS path used to activate the element
}
