package direction

import (
	"fmt"
	"time"

	"replay-director/internal/domain/race"
)

// Rule is one unit of camera policy. IsActive may advance the rule's own
// timers and markers; Direct issues camera commands for the sample.
type Rule interface {
	Name() string
	IsActive(sample race.TelemetrySample) bool
	Direct(sample race.TelemetrySample)
}

// Redirector is implemented by rules that can re-issue their camera command
// immediately, ignoring their reselection interval. The director uses it when
// control is handed back to a rule.
type Redirector interface {
	Redirect(sample race.TelemetrySample)
}

func redirect(r Rule, sample race.TelemetrySample) {
	if rd, ok := r.(Redirector); ok {
		rd.Redirect(sample)
		return
	}
	r.Direct(sample)
}

// Veto composes two rules. It is active when either is active; while the
// override is active it directs, otherwise the primary does.
type Veto struct {
	Primary  Rule
	Override Rule

	overrideActive bool
	overriding     bool
}

func WithVeto(primary, override Rule) *Veto {
	return &Veto{Primary: primary, Override: override}
}

func (v *Veto) Name() string {
	return v.Primary.Name()
}

// IsActive evaluates both rules every time so each keeps its latches current.
func (v *Veto) IsActive(sample race.TelemetrySample) bool {
	v.overrideActive = v.Override.IsActive(sample)
	primaryActive := v.Primary.IsActive(sample)
	return v.overrideActive || primaryActive
}

func (v *Veto) Direct(sample race.TelemetrySample) {
	if v.overrideActive {
		v.overriding = true
		v.Override.Direct(sample)
		return
	}
	if v.overriding {
		v.overriding = false
		redirect(v.Primary, sample)
		return
	}
	v.Primary.Direct(sample)
}

func (v *Veto) Redirect(sample race.TelemetrySample) {
	v.overriding = v.overrideActive
	if v.overrideActive {
		redirect(v.Override, sample)
		return
	}
	redirect(v.Primary, sample)
}

// Directing returns the rule that directs the last evaluated sample.
func (v *Veto) Directing() Rule {
	if v.overrideActive {
		if inner, ok := v.Override.(*Veto); ok {
			return inner.Directing()
		}
		return v.Override
	}
	if inner, ok := v.Primary.(*Veto); ok {
		return inner.Directing()
	}
	return v.Primary
}

// Describe renders a rule tree, e.g. "battle [veto: incident [veto: last_lap_period]]".
func Describe(r Rule) string {
	if v, ok := r.(*Veto); ok {
		return fmt.Sprintf("%s [veto: %s]", Describe(v.Primary), Describe(v.Override))
	}
	return r.Name()
}

// tick memoises a rule's activity per sample. A rule shared by several veto
// chains is asked more than once per sample but must advance only once.
type tick struct {
	seen   bool
	at     time.Duration
	active bool
}

func (t *tick) once(sample race.TelemetrySample, eval func() bool) bool {
	if t.seen && t.at == sample.Time() {
		return t.active
	}
	t.seen, t.at = true, sample.Time()
	t.active = eval()
	return t.active
}
