// Package journal implements the registry chain event journal.
//
// The registry never persists its own state. Confirmed chain events are
// appended to the journal in order, and the registry is rebuilt on start
// by replaying them.
package journal

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/kwvg/dash/common/cbor"
	"github.com/kwvg/dash/common/logging"
	"github.com/kwvg/dash/common/persistent"
	"github.com/kwvg/dash/registry/api"
)

const serviceName = "registry_journal"

// Journal is an append-only log of confirmed chain events.
type Journal struct {
	sync.Mutex

	logger *logging.Logger
	store  *persistent.ServiceStore

	next uint64
}

func encodeSeq(seq uint64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], seq)
	return key[:]
}

func decodeSeq(key []byte) (uint64, error) {
	if len(key) != 8 {
		return 0, fmt.Errorf("journal: malformed key %x", key)
	}
	return binary.BigEndian.Uint64(key), nil
}

// Append records a confirmed chain event.
func (j *Journal) Append(ev *api.ChainEvent) error {
	if err := ev.ValidateBasic(); err != nil {
		return err
	}

	j.Lock()
	defer j.Unlock()

	if err := j.store.PutCBOR(encodeSeq(j.next), ev); err != nil {
		j.logger.Error("failed to append event",
			"err", err,
			"seq", j.next,
			"kind", ev.Kind,
		)
		return fmt.Errorf("journal: failed to append event: %w", err)
	}
	j.next++

	return nil
}

// Len returns the number of recorded events.
func (j *Journal) Len() uint64 {
	j.Lock()
	defer j.Unlock()

	return j.next
}

// Events calls fn for every recorded event in append order.
func (j *Journal) Events(fn func(seq uint64, ev *api.ChainEvent) error) error {
	return j.store.Iterate(func(key, value []byte) error {
		seq, err := decodeSeq(key)
		if err != nil {
			return err
		}
		var ev api.ChainEvent
		if err = cbor.Unmarshal(value, &ev); err != nil {
			return fmt.Errorf("journal: malformed event %d: %w", seq, err)
		}
		return fn(seq, &ev)
	})
}

// Replay applies every recorded event to the backend in append order and
// returns the number of events applied.
func (j *Journal) Replay(ctx context.Context, backend api.Backend) (uint64, error) {
	var applied uint64
	err := j.Events(func(seq uint64, ev *api.ChainEvent) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := backend.ApplyEvent(ctx, ev); err != nil {
			j.logger.Error("failed to replay event",
				"err", err,
				"seq", seq,
				"kind", ev.Kind,
				"height", ev.Height,
			)
			return fmt.Errorf("journal: failed to replay event %d: %w", seq, err)
		}
		applied++
		return nil
	})
	if err != nil {
		return applied, err
	}

	j.logger.Info("replayed journal",
		"events", applied,
	)

	return applied, nil
}

// New opens the journal kept in the common store.
func New(cs *persistent.CommonStore) (*Journal, error) {
	store, err := cs.GetServiceStore(serviceName)
	if err != nil {
		return nil, err
	}

	j := &Journal{
		logger: logging.GetLogger("registry/journal"),
		store:  store,
	}

	last, err := store.Last()
	switch err {
	case nil:
		seq, err := decodeSeq(last)
		if err != nil {
			return nil, err
		}
		j.next = seq + 1
	case persistent.ErrNotFound:
	default:
		return nil, fmt.Errorf("journal: failed to find last event: %w", err)
	}

	return j, nil
}
