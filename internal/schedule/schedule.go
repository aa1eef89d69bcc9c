// Package schedule runs periodic watchlist scans over stored profiles.
package schedule

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/rdx-labs/rationale/internal/profile"
	"github.com/rdx-labs/rationale/internal/relay"
)

// scanTimeout bounds one full pass over all profiles.
const scanTimeout = 10 * time.Minute

// ProfileLister supplies the profiles to scan.
type ProfileLister interface {
	List() ([]*profile.Profile, error)
}

// BatchRunner produces verdicts for a set of tickers.
type BatchRunner interface {
	RunBatch(ctx context.Context, tickers []string, thesis string) []relay.BatchItem
}

// Scanner re-evaluates every profile's watchlist on a cron schedule
// and logs the tickers that come back BUY.
type Scanner struct {
	cron     *cron.Cron
	profiles ProfileLister
	runner   BatchRunner
	log      zerolog.Logger
}

// New creates a scanner. Call Schedule then Start to run it.
func New(log zerolog.Logger, profiles ProfileLister, runner BatchRunner) *Scanner {
	return &Scanner{
		cron:     cron.New(),
		profiles: profiles,
		runner:   runner,
		log:      log.With().Str("component", "scanner").Logger(),
	}
}

// Schedule registers the periodic scan. Spec accepts standard cron
// expressions and descriptors like "@every 6h" or "@hourly".
func (s *Scanner) Schedule(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
		defer cancel()
		s.ScanAll(ctx)
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("schedule", spec).Msg("watchlist scan registered")
	return nil
}

// Start begins running scheduled scans.
func (s *Scanner) Start() {
	s.cron.Start()
	s.log.Info().Msg("scanner started")
}

// Stop halts the schedule and waits for a running scan to finish.
func (s *Scanner) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("scanner stopped")
}

// ScanAll runs every profile's watchlist through the engine.
func (s *Scanner) ScanAll(ctx context.Context) {
	profiles, err := s.profiles.List()
	if err != nil {
		s.log.Error().Err(err).Msg("listing profiles failed")
		return
	}
	for _, p := range profiles {
		if len(p.Tickers) == 0 {
			continue
		}
		items := s.ScanProfile(ctx, p)
		buys := relay.Buys(items)
		s.log.Info().
			Str("profile", p.Name).
			Int("tickers", len(p.Tickers)).
			Strs("buys", buys).
			Msg("watchlist scan complete")
	}
}

// ScanProfile evaluates one profile's tickers.
func (s *Scanner) ScanProfile(ctx context.Context, p *profile.Profile) []relay.BatchItem {
	s.log.Debug().Str("profile", p.Name).Strs("tickers", p.Tickers).Msg("scanning profile")
	return s.runner.RunBatch(ctx, p.Tickers, "")
}
