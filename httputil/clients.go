package httputil

import (
	"net/http"
	"time"
)

type Clients struct {
	Mail *http.Client // mail provider REST calls
	LLM  *http.Client // optional code-extraction assist
}

func NewClients() *Clients {
	return &Clients{
		Mail: &http.Client{Timeout: 20 * time.Second},
		LLM:  &http.Client{Timeout: 45 * time.Second},
	}
}
