package gateway

import "housing/pkg/domain"

// Outcome is the kind of a navigation decision.
type Outcome string

const (
	OutcomeAllow    Outcome = "allow"
	OutcomeRedirect Outcome = "redirect"
)

// Decision is the result of one navigation attempt. A redirect to the login
// area carries the area the caller originally asked for in Resume.
type Decision struct {
	Kind   Outcome     `json:"kind"`
	Target domain.Area `json:"target,omitempty"`
	Resume domain.Area `json:"resume,omitempty"`
}

func Allow() Decision { return Decision{Kind: OutcomeAllow} }

func RedirectToLogin(login, resume domain.Area) Decision {
	return Decision{Kind: OutcomeRedirect, Target: login, Resume: resume}
}

func RedirectTo(area domain.Area) Decision {
	return Decision{Kind: OutcomeRedirect, Target: area}
}

func (d Decision) Allowed() bool { return d.Kind == OutcomeAllow }

// label is the metrics/tracing outcome.
func (d Decision) label(login domain.Area) string {
	switch {
	case d.Allowed():
		return "allow"
	case d.Target == login:
		return "redirect_login"
	default:
		return "redirect_home"
	}
}
