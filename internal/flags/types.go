// Package flags stores operator chain switches in Redis. A chain without a
// switch is enabled.
package flags

import (
	"errors"
	"time"

	"github.com/aman-zulfiqar/genius-solver/internal/models"
)

var ErrNotFound = errors.New("switch not found")

// Switch pauses or resumes fills into one destination chain.
type Switch struct {
	Chain     models.ChainID `json:"chainId"`
	Name      string         `json:"name"`
	Enabled   bool           `json:"enabled"`
	Reason    string         `json:"reason,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}
