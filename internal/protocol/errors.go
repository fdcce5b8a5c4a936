package protocol

const (
	// Transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Command channel.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrUnknownTool   = "E_UNKNOWN_TOOL"
	ErrUnknownPlayer = "E_UNKNOWN_PLAYER"
	ErrPlayerDead    = "E_PLAYER_DEAD"
	ErrNoResource    = "E_NO_RESOURCE"
	ErrRespawnCap    = "E_RESPAWN_CAP"
	ErrRunEnded      = "E_RUN_ENDED"

	// Harness.
	ErrScenarioInvalid = "E_SCENARIO_INVALID"
	ErrNotFound        = "E_NOT_FOUND"
	ErrTimeout         = "E_TIMEOUT"
	ErrInternal        = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadRequest:      {},
	ErrUnknownTool:     {},
	ErrUnknownPlayer:   {},
	ErrPlayerDead:      {},
	ErrNoResource:      {},
	ErrRespawnCap:      {},
	ErrRunEnded:        {},
	ErrScenarioInvalid: {},
	ErrNotFound:        {},
	ErrTimeout:         {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// No-op reasons recorded on diffs that change nothing.
const (
	ReasonUnknownTool           = "unknown_tool"
	ReasonUnknownPlayer         = "unknown_player"
	ReasonPlayerDead            = "player_dead"
	ReasonInsufficientInventory = "insufficient_inventory"
	ReasonInvalidArgs           = "invalid_args"
	ReasonRespawnCap            = "respawn_cap"
	ReasonNarrativeOnly         = "narrative_only"
	ReasonNoEffect              = "no_effect"
	ReasonRunEnded              = "run_ended"
)

// reasonCodes maps a no-op reason to the command error code a live plugin would return.
// Reasons absent here are successful commands.
var reasonCodes = map[string]string{
	ReasonUnknownTool:           ErrUnknownTool,
	ReasonUnknownPlayer:         ErrUnknownPlayer,
	ReasonPlayerDead:            ErrPlayerDead,
	ReasonInsufficientInventory: ErrNoResource,
	ReasonInvalidArgs:           ErrBadRequest,
	ReasonRespawnCap:            ErrRespawnCap,
	ReasonRunEnded:              ErrRunEnded,
}

var knownReasons = map[string]struct{}{
	ReasonUnknownTool:           {},
	ReasonUnknownPlayer:         {},
	ReasonPlayerDead:            {},
	ReasonInsufficientInventory: {},
	ReasonInvalidArgs:           {},
	ReasonRespawnCap:            {},
	ReasonNarrativeOnly:         {},
	ReasonNoEffect:              {},
	ReasonRunEnded:              {},
}

func IsKnownReason(reason string) bool {
	if reason == "" {
		return true
	}
	_, ok := knownReasons[reason]
	return ok
}

// CodeForReason returns the error code for a failed command, or "" when the
// reason still counts as success.
func CodeForReason(reason string) string {
	return reasonCodes[reason]
}
