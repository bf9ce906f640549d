package command

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/canny86/FilaCore/internal/filament"
)

// Command names, as recorded in history and metrics.
const (
	NameQueryState      = "query_state"
	NameSetFilamentSlot = "set_filament_slot"
)

// Wire values understood by the printer firmware.
const (
	pushAllCommand         = "pushall"
	amsFilamentSettingName = "ams_filament_setting"
	defaultAMSID           = 0
	minSlot                = 1
	maxSlot                = 4
)

// Reply is a decoded report message. Reports are JSON objects; anything
// else on the report topic is skipped.
type Reply map[string]any

// Command is one request and the rule recognising its reply.
type Command struct {
	// Name identifies the command kind in logs and history.
	Name string

	// SequenceID is echoed by the printer in its acknowledgement.
	SequenceID string

	// Payload is published on the request topic as is.
	Payload []byte

	// Match reports whether a decoded report is the reply.
	Match func(Reply) bool
}

// Sequencer hands out sequence ids. The zero value starts at "0".
type Sequencer struct {
	next atomic.Uint64
}

// Next returns the next id.
func (s *Sequencer) Next() string {
	return strconv.FormatUint(s.next.Add(1)-1, 10)
}

type pushingEnvelope struct {
	Pushing pushingBody `json:"pushing"`
}

type pushingBody struct {
	SequenceID string `json:"sequence_id"`
	Command    string `json:"command"`
}

// QueryState asks the printer for a full state report and accepts the first
// report that decodes to a JSON object as the answer. Arrays, scalars and
// null are skipped, as is malformed JSON.
func QueryState(seq string) Command {
	body := pushingEnvelope{Pushing: pushingBody{SequenceID: seq, Command: pushAllCommand}}
	payload, _ := json.Marshal(body) //nolint:errcheck // strings only, cannot fail

	return Command{
		Name:       NameQueryState,
		SequenceID: seq,
		Payload:    payload,
		Match:      func(Reply) bool { return true },
	}
}

type printEnvelope struct {
	Print amsFilamentSetting `json:"print"`
}

type amsFilamentSetting struct {
	SequenceID    string `json:"sequence_id"`
	Command       string `json:"command"`
	AMSID         int    `json:"ams_id"`
	TrayID        int    `json:"tray_id"`
	TrayInfoIdx   string `json:"tray_info_idx"`
	TrayColor     string `json:"tray_color"`
	TrayType      string `json:"tray_type"`
	NozzleTempMin int    `json:"nozzle_temp_min"`
	NozzleTempMax int    `json:"nozzle_temp_max"`
}

// ValidateSlot checks that slot names one of the four AMS trays.
func ValidateSlot(slot int) error {
	if slot < minSlot || slot > maxSlot {
		return fmt.Errorf("%w: got %d", ErrInvalidSlot, slot)
	}
	return nil
}

// SetFilamentSlot loads filament f into AMS tray slot (1..4). The reply is the
// first report whose print.command is the filament setting command.
func SetFilamentSlot(seq string, slot int, f filament.Filament) (Command, error) {
	if err := ValidateSlot(slot); err != nil {
		return Command{}, err
	}

	low, high := f.NozzleRange()
	payload, err := json.Marshal(printEnvelope{Print: amsFilamentSetting{
		SequenceID:    seq,
		Command:       amsFilamentSettingName,
		AMSID:         defaultAMSID,
		TrayID:        slot - 1,
		TrayInfoIdx:   f.PrintProfile,
		TrayColor:     f.TrayColor(),
		TrayType:      f.Material,
		NozzleTempMin: low,
		NozzleTempMax: high,
	}})
	if err != nil {
		return Command{}, fmt.Errorf("encoding filament command: %w", err)
	}

	return Command{
		Name:       NameSetFilamentSlot,
		SequenceID: seq,
		Payload:    payload,
		Match:      isPrintCommand(amsFilamentSettingName),
	}, nil
}

// isPrintCommand matches reports shaped {"print":{"command":name,...}}.
func isPrintCommand(name string) func(Reply) bool {
	return func(r Reply) bool {
		body, ok := r["print"].(map[string]any)
		if !ok {
			return false
		}
		cmd, _ := body["command"].(string)
		return cmd == name
	}
}
