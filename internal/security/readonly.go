package security

import (
	"fmt"

	"github.com/rs/zerolog"
)

// OperationType represents the type of operation.
type OperationType string

const (
	// Read operations
	OpRead OperationType = "READ"

	// Write operations (blocked in read-only mode)
	OpPlaceOrder   OperationType = "PLACE_ORDER"
	OpModifyOrder  OperationType = "MODIFY_ORDER"
	OpCancelOrder  OperationType = "CANCEL_ORDER"
	OpPlaceGTT     OperationType = "PLACE_GTT"
	OpModifyGTT    OperationType = "MODIFY_GTT"
	OpDeleteGTT    OperationType = "DELETE_GTT"
	OpPlaceMFOrder OperationType = "PLACE_MF_ORDER"
	OpCancelMF     OperationType = "CANCEL_MF_ORDER"
	OpPlaceMFSIP   OperationType = "PLACE_MF_SIP"
	OpModifyMFSIP  OperationType = "MODIFY_MF_SIP"
	OpCancelMFSIP  OperationType = "CANCEL_MF_SIP"
)

// ReadOnlyError represents an error when attempting a write operation in read-only mode.
type ReadOnlyError struct {
	Operation OperationType
}

func (e *ReadOnlyError) Error() string {
	return fmt.Sprintf("operation %s blocked: read-only mode is enabled", e.Operation)
}

// AccessController manages read-only mode. Analysis sessions run with it
// enabled so that nothing downstream can place or alter orders.
type AccessController struct {
	readOnly bool
	logger   zerolog.Logger
}

// NewAccessController creates a new access controller.
func NewAccessController(readOnly bool, logger zerolog.Logger) *AccessController {
	return &AccessController{readOnly: readOnly, logger: logger}
}

// IsReadOnly returns whether read-only mode is enabled.
func (ac *AccessController) IsReadOnly() bool { return ac.readOnly }

// CheckPermission returns a ReadOnlyError for write operations while
// read-only mode is enabled.
func (ac *AccessController) CheckPermission(op OperationType) error {
	if op == OpRead || !ac.IsReadOnly() {
		return nil
	}
	ac.logger.Warn().Str("operation", string(op)).Msg("write operation blocked in read-only mode")
	return &ReadOnlyError{Operation: op}
}
