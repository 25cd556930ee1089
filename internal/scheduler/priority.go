package scheduler

import (
	"hash/fnv"
	"strings"

	"github.com/skyfleet/fleetlink/internal/datastore"
)

const (
	priorityBase         = 0.5
	priorityUnknownBonus = 0.3
	priorityTypeBonus    = 0.1
	priorityJitterWeight = 0.05
)

// Airframe prefixes the rollout is known to reach first.
var priorityTypePrefixes = []string{"E17", "E75", "ERJ"}

// TailJitter maps a tail number to a stable fraction in [0, 1). The same
// tail always hashes to the same fraction, so repeated scoring and
// scheduling runs stay reproducible.
func TailJitter(tailNumber string) float64 {
	h := fnv.New32a()
	h.Write([]byte(strings.ToUpper(strings.TrimSpace(tailNumber))))
	return float64(h.Sum32()%10000) / 10000.0
}

// PriorityScore ranks an aircraft for candidate selection. Unverified
// aircraft outrank verified ones, likely airframe types get a fixed bonus,
// and a small hash-derived term breaks ties deterministically.
func PriorityScore(status datastore.Status, aircraftType, tailNumber string) float64 {
	score := priorityBase
	if status == datastore.StatusUnknown {
		score += priorityUnknownBonus
	}
	upperType := strings.ToUpper(strings.TrimSpace(aircraftType))
	for _, prefix := range priorityTypePrefixes {
		if strings.HasPrefix(upperType, prefix) {
			score += priorityTypeBonus
			break
		}
	}
	score += TailJitter(tailNumber) * priorityJitterWeight
	if score > 1.0 {
		score = 1.0
	}
	if score < 0.0 {
		score = 0.0
	}
	return score
}
