package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ByLCY/tessera/fault"
	"github.com/ByLCY/tessera/ipc"
)

// Serve runs s against ep until Shutdown is acknowledged, the peer closes,
// or ctx is cancelled. Messages are handled strictly one at a time and ctx
// is only checked between messages, so a pass is never interrupted.
//
// A message that fails to decode ends the session: the engine sends an
// error Log followed by AckShutdown and returns an error wrapping
// fault.ErrProtocol.
func Serve(ctx context.Context, ep ipc.Endpoint, s *Scheduler) error {
	log := s.logger()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		env, err := ep.Recv()
		if errors.Is(err, io.EOF) {
			log.Debug("peer closed the session")
			return nil
		}
		if errors.Is(err, fault.ErrProtocol) {
			log.Error("protocol error, tearing down session", "error", err)
			teardown := []ipc.Message{logMessage(ipc.LevelError, err), ipc.AckShutdown{}}
			for _, m := range teardown {
				if serr := ep.Send(ipc.Wrap(m)); serr != nil {
					log.Debug("teardown send failed", "error", serr)
					break
				}
			}
			return fmt.Errorf("engine: session aborted: %w", err)
		}
		if err != nil {
			return fmt.Errorf("engine: receive: %w", err)
		}

		for _, reply := range s.Handle(ctx, env) {
			if err := ep.Send(reply); err != nil {
				return fmt.Errorf("engine: send %s: %w", ipc.Name(reply.Message), err)
			}
		}
		if s.State() == StateStopped {
			return nil
		}
	}
}
