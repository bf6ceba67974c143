package logging

import (
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"presale/models"
)

// Field applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

func ProposalID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("proposal_id", id)
	}
}

func Stage(s models.Stage) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("stage", string(s))
	}
}

func FromStage(s models.Stage) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("from_stage", string(s))
	}
}

func ToStage(s models.Stage) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("to_stage", string(s))
	}
}

func PolicyNumber(n string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("policy_number", n)
	}
}

func PaymentStatus(s models.PaymentStatus) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("payment_status", string(s))
	}
}

func Component(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("component", name)
	}
}

func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

func Count(key string, n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int(key, n)
	}
}

// ErrorField adds an error field; nil errors are skipped.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}

func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(key, value)
	}
}
