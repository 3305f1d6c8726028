package model

import "time"

// OfferSet is the set of translators currently allowed to accept a job. It is
// transient: rebuilt on every dispatch and destroyed when the race resolves or
// the job is cancelled. Offers carry no expiry; they stay open until claimed
// or withdrawn.
type OfferSet struct {
	JobID       string    `json:"job_id"`
	Translators []string  `json:"translators"`
	CreatedAt   time.Time `json:"created_at"`
}

// Contains reports membership of a translator in the offer set.
func (o *OfferSet) Contains(translatorID string) bool {
	for _, id := range o.Translators {
		if id == translatorID {
			return true
		}
	}
	return false
}
