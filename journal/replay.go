package journal

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ByLCY/tessera/engine"
	"github.com/ByLCY/tessera/ipc"
)

// Mismatch is one recorded reply that the replayed scheduler did not
// reproduce byte-for-byte.
type Mismatch struct {
	// Seq is the journal sequence number, 0 for an extra replayed reply.
	Seq    int64
	Reason string
}

func (m Mismatch) String() string {
	if m.Seq == 0 {
		return m.Reason
	}
	return fmt.Sprintf("#%d %s", m.Seq, m.Reason)
}

// ReplayReport summarizes a replay.
type ReplayReport struct {
	// Messages counts the orchestrator messages fed to the scheduler.
	Messages   int
	Replies    int
	Mismatches []Mismatch
}

// OK reports whether every recorded reply was reproduced.
func (r ReplayReport) OK() bool { return len(r.Mismatches) == 0 }

// Replay feeds the recorded orchestrator messages of session id into a
// fresh scheduler built on p and compares its encoded replies with the
// recorded ones in order.
func Replay(ctx context.Context, j *Journal, id uuid.UUID, p *engine.Pipeline) (ReplayReport, error) {
	var report ReplayReport
	records, err := j.Messages(ctx, id)
	if err != nil {
		return report, err
	}
	if len(records) == 0 {
		return report, fmt.Errorf("journal: session %s has no messages", id)
	}

	s := engine.NewScheduler(p)
	type produced struct {
		name    string
		payload []byte
	}
	var pending []produced

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		switch rec.Direction {
		case ipc.ToEngine:
			env, err := ipc.Decode(ipc.ToEngine, rec.Payload)
			if err != nil {
				return report, fmt.Errorf("journal: decode #%d: %w", rec.Seq, err)
			}
			report.Messages++
			for _, reply := range s.Handle(ctx, env) {
				b, err := ipc.Encode(reply)
				if err != nil {
					return report, fmt.Errorf("journal: encode reply to #%d: %w", rec.Seq, err)
				}
				pending = append(pending, produced{name: ipc.Name(reply.Message), payload: b})
			}
		case ipc.ToBrowser:
			report.Replies++
			if len(pending) == 0 {
				report.Mismatches = append(report.Mismatches, Mismatch{Seq: rec.Seq, Reason: rec.Name + " not produced"})
				continue
			}
			got := pending[0]
			pending = pending[1:]
			if !bytes.Equal(got.payload, rec.Payload) {
				reason := fmt.Sprintf("%s differs from recorded %s", got.name, rec.Name)
				if got.name == rec.Name {
					reason = fmt.Sprintf("%s payload differs (%d vs %d bytes)", rec.Name, len(got.payload), len(rec.Payload))
				}
				report.Mismatches = append(report.Mismatches, Mismatch{Seq: rec.Seq, Reason: reason})
			}
		default:
			return report, fmt.Errorf("journal: record #%d has direction %s", rec.Seq, rec.Direction)
		}
	}
	for _, extra := range pending {
		report.Mismatches = append(report.Mismatches, Mismatch{Reason: "unrecorded reply " + extra.name})
	}
	return report, nil
}
