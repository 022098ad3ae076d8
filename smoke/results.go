package smoke

import (
	"strings"
	"sync"
)

type Results struct {
	mu       sync.Mutex
	Findings []Finding `json:"findings"`
}

type Finding struct {
	URL   string `json:"url"`
	Error string `json:"error"`
	Diff  string `json:"diff"`
}

func (r *Results) add(url, diff string, err string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Findings = append(r.Findings, Finding{
		URL:   url,
		Error: strings.TrimSpace(err),
		Diff:  diff,
	})
}

func (r *Results) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.Findings)
}
