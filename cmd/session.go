package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ByLCY/tessera/binding"
	"github.com/ByLCY/tessera/browser"
	"github.com/ByLCY/tessera/config"
	"github.com/ByLCY/tessera/engine"
	"github.com/ByLCY/tessera/journal"
	"github.com/ByLCY/tessera/script"
)

// pipeline builds the content-side collaborators from configuration.
func (a *app) pipeline(dataPath string) (*engine.Pipeline, error) {
	p := &engine.Pipeline{
		Scripts: &script.Stub{},
		Overlay: a.cfg.Render.Overlay,
		Logger:  a.log,
		Tracer:  a.tracing.Tracer(),
	}
	if dataPath != "" {
		data, err := binding.LoadData(dataPath)
		if err != nil {
			return nil, err
		}
		p.Data = data
	}
	return p, nil
}

func (a *app) baseOptions() browser.Options {
	return browser.Options{
		Version:  a.cfg.IPC.Version,
		FrameTTL: a.cfg.Frames.CacheTTL,
		Logger:   a.log,
		Tracer:   a.tracing.Tracer(),
	}
}

// sessionOptions returns browser options plus a cleanup that closes the
// journal, if one is configured.
func (a *app) sessionOptions() (browser.Options, func() error, error) {
	opts := a.baseOptions()
	if a.cfg.Journal.Path == "" {
		return opts, func() error { return nil }, nil
	}
	j, err := journal.Open(a.cfg.Journal.Path)
	if err != nil {
		return opts, nil, err
	}
	opts.WrapEndpoint = j.Wrap(opts.Version, a.log)
	a.log.Info("recording session", "journal", a.cfg.Journal.Path)
	return opts, j.Close, nil
}

// startSession starts an engine according to ipc.mode. In process mode the
// engine is this executable's content command; it inherits --config so both
// sides agree on the configuration.
func (a *app) startSession(ctx context.Context, p *engine.Pipeline) (*browser.Session, func() error, error) {
	opts, closeJournal, err := a.sessionOptions()
	if err != nil {
		return nil, nil, err
	}
	switch a.cfg.IPC.Mode {
	case config.ModeProcess:
		exe, err := os.Executable()
		if err != nil {
			return nil, nil, errors.Join(fmt.Errorf("locating executable: %w", err), closeJournal())
		}
		var args []string
		if a.cfgFile != "" {
			args = append(args, "--config", a.cfgFile)
		}
		args = append(args, fmt.Sprintf("--overlay=%t", p.Overlay))
		s, err := browser.StartProcess(ctx, exe, args, opts)
		if err != nil {
			return nil, nil, errors.Join(err, closeJournal())
		}
		return s, closeJournal, nil
	default:
		return browser.StartInProcess(ctx, p, opts), closeJournal, nil
	}
}
