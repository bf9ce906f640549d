package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/canny86/FilaCore/internal/filament"
	"github.com/canny86/FilaCore/internal/printer"
)

// Printers resolves the active printer. Implemented by printer.Registry.
type Printers interface {
	Active() (printer.Printer, error)
}

// Filaments resolves catalogue entries. Implemented by filament.Registry.
type Filaments interface {
	Get(fcid string) (filament.Filament, error)
}

// Timeouts are the reply deadlines per command kind.
type Timeouts struct {
	State    time.Duration
	Filament time.Duration
	Stream   time.Duration
}

// Service runs commands against the active printer.
type Service struct {
	bridge    *Bridge
	printers  Printers
	filaments Filaments
	timeouts  Timeouts
	seq       Sequencer
}

// NewService creates a service.
func NewService(bridge *Bridge, printers Printers, filaments Filaments, timeouts Timeouts) *Service {
	return &Service{
		bridge:    bridge,
		printers:  printers,
		filaments: filaments,
		timeouts:  timeouts,
	}
}

// QueryActiveState asks the active printer for its full state report.
func (s *Service) QueryActiveState(ctx context.Context) (Reply, error) {
	p, err := s.printers.Active()
	if err != nil {
		return nil, err
	}
	return s.bridge.Execute(ctx, p, QueryState(s.seq.Next()), s.timeouts.State)
}

// SetActiveFilamentSlot loads the filament fcid into AMS tray slot of the
// active printer and returns the printer's acknowledgement.
//
// The slot is checked before anything else, so an invalid slot never
// touches the network.
func (s *Service) SetActiveFilamentSlot(ctx context.Context, slot int, fcid string) (Reply, error) {
	if err := ValidateSlot(slot); err != nil {
		return nil, err
	}

	f, err := s.filaments.Get(fcid)
	if err != nil {
		if errors.Is(err, filament.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrFilamentNotFound, fcid)
		}
		return nil, err
	}

	p, err := s.printers.Active()
	if err != nil {
		return nil, err
	}

	cmd, err := SetFilamentSlot(s.seq.Next(), slot, f)
	if err != nil {
		return nil, err
	}
	return s.bridge.Execute(ctx, p, cmd, s.timeouts.Filament)
}

// StreamActive forwards reports of the active printer to fn for the
// configured stream duration.
func (s *Service) StreamActive(ctx context.Context, fn func(Reply) error) error {
	p, err := s.printers.Active()
	if err != nil {
		return err
	}
	return s.bridge.Stream(ctx, p, s.timeouts.Stream, fn)
}
