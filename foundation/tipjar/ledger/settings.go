package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNotConfigured is returned when no ledger address has been provided.
// Every read and write action is disabled in this state.
var ErrNotConfigured = errors.New("ledger address is not configured, set TIPJAR_LEDGER_ADDRESS")

// Settings identifies the deployed ledger. It is validated once at startup and
// then handed to each component at construction.
type Settings struct {
	Address string
}

// Validate checks the settings. An empty address returns ErrNotConfigured
// which callers treat as a warning. A malformed address is a hard error.
func (s Settings) Validate() error {
	addr := strings.TrimSpace(s.Address)
	if addr == "" {
		return ErrNotConfigured
	}

	if !common.IsHexAddress(addr) {
		return fmt.Errorf("ledger address %q is not a valid hex address", addr)
	}

	return nil
}

// Configured reports whether the settings name a usable ledger.
func (s Settings) Configured() bool {
	return s.Validate() == nil
}

// LedgerAddress returns the parsed ledger address. The zero address is
// returned when the settings are not valid.
func (s Settings) LedgerAddress() common.Address {
	if !s.Configured() {
		return common.Address{}
	}
	return common.HexToAddress(strings.TrimSpace(s.Address))
}

// Warning returns the message to present to users when the ledger is not
// configured, or an empty string when it is.
func (s Settings) Warning() string {
	if err := s.Validate(); err != nil {
		return err.Error()
	}
	return ""
}
