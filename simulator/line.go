package simulator

import (
	"math/rand"
	"time"

	"github.com/joeycumines/peernetic/message"
)

// Sizer is implemented by payload types that want SimpleLine's
// MaxPacketBytes limit enforced against them. Payloads that don't
// implement it are never dropped for size.
type Sizer interface {
	Size() int
}

// SimpleLineConfig parameterizes SimpleLine. All probabilities are in
// [0, 1]; zero-valued MaxForwarded or MaxPacketBytes means unbounded.
type SimpleLineConfig struct {
	Seed                 int64
	MinDelay, MaxDelay   time.Duration
	DropProbability      float64
	DuplicateProbability float64
	// MaxForwarded caps the total number of Messages this Line will ever
	// forward (across its whole lifetime); every Message after the cap is
	// dropped. Zero means unbounded.
	MaxForwarded   int
	MaxPacketBytes int
}

// SimpleLine is a seeded, reproducible unreliable Line: for a fixed Seed
// and a fixed sequence of Process calls, it produces byte-identical
// decisions every run, since it draws only from its own *rand.Rand rather
// than any global or wall-clock source.
type SimpleLine struct {
	rng *rand.Rand
	cfg SimpleLineConfig

	forwarded int
}

// NewSimpleLine constructs a SimpleLine from cfg.
func NewSimpleLine(cfg SimpleLineConfig) *SimpleLine {
	return &SimpleLine{rng: rand.New(rand.NewSource(cfg.Seed)), cfg: cfg}
}

// Process implements Line.
func (l *SimpleLine) Process(_ time.Time, msg message.Message) []Transit {
	if l.cfg.MaxPacketBytes > 0 {
		if sz, ok := msg.Payload().(Sizer); ok && sz.Size() > l.cfg.MaxPacketBytes {
			return nil
		}
	}
	if l.cfg.MaxForwarded > 0 && l.forwarded >= l.cfg.MaxForwarded {
		return nil
	}
	if l.rng.Float64() < l.cfg.DropProbability {
		return nil
	}

	l.forwarded++
	transits := []Transit{{Message: msg, Delay: l.jitter()}}
	duplicate := l.rng.Float64() < l.cfg.DuplicateProbability
	if duplicate && (l.cfg.MaxForwarded <= 0 || l.forwarded < l.cfg.MaxForwarded) {
		l.forwarded++
		transits = append(transits, Transit{Message: msg, Delay: l.jitter()})
	}
	return transits
}

func (l *SimpleLine) jitter() time.Duration {
	if l.cfg.MaxDelay <= l.cfg.MinDelay {
		return l.cfg.MinDelay
	}
	span := l.cfg.MaxDelay - l.cfg.MinDelay
	return l.cfg.MinDelay + time.Duration(l.rng.Int63n(int64(span)))
}
