package model

import "strconv"

// Event names match the staker contract's event signatures.
const (
	EventPoolCreated      = "StakingPoolCreated"
	EventPoolConfigured   = "StakingPoolConfigured"
	EventStaked           = "Staked"
	EventUnstakeInitiated = "UnstakeInitiated"
	EventUnstaked         = "Unstaked"
	EventTransfer         = "Transfer"
)

// EventData is the payload of a ledger notification.
type EventData interface {
	EventName() string
}

// Event is a ledger notification emitted after a committed mutation.
type Event struct {
	Name      string    `json:"event_name"`
	Timestamp uint64    `json:"timestamp"`
	Data      EventData `json:"decoded"`
}

// NewEvent stamps a payload with its name.
func NewEvent(ts uint64, data EventData) Event {
	return Event{Name: data.EventName(), Timestamp: ts, Data: data}
}

// Key groups events of one pool (or one position token) together.
func (e Event) Key() string {
	switch d := e.Data.(type) {
	case PoolCreatedData:
		return "pool:" + strconv.FormatUint(d.PoolID, 10)
	case PoolConfiguredData:
		return "pool:" + strconv.FormatUint(d.PoolID, 10)
	case StakedData:
		return "pool:" + strconv.FormatUint(d.PoolID, 10)
	case UnstakedData:
		return "pool:" + strconv.FormatUint(d.PoolID, 10)
	case UnstakeInitiatedData:
		return "position:" + strconv.FormatUint(d.PositionTokenID, 10)
	case TransferData:
		return "position:" + strconv.FormatUint(d.TokenID, 10)
	default:
		return e.Name
	}
}

// PoolCreatedData is the StakingPoolCreated payload.
type PoolCreatedData struct {
	PoolID       uint64 `json:"pool_id"`
	TokenType    uint16 `json:"token_type"`
	TokenAddress string `json:"token_address"`
	TokenID      string `json:"token_id"`
}

func (PoolCreatedData) EventName() string { return EventPoolCreated }

// PoolConfiguredData is the StakingPoolConfigured payload.
type PoolConfiguredData struct {
	PoolID          uint64 `json:"pool_id"`
	Administrator   string `json:"administrator"`
	Transferable    bool   `json:"transferable"`
	LockupSeconds   uint64 `json:"lockup_seconds"`
	CooldownSeconds uint64 `json:"cooldown_seconds"`
}

func (PoolConfiguredData) EventName() string { return EventPoolConfigured }

// StakedData is the Staked payload.
type StakedData struct {
	PositionTokenID uint64 `json:"position_token_id"`
	Owner           string `json:"owner"`
	PoolID          uint64 `json:"pool_id"`
	AmountOrTokenID string `json:"amount_or_token_id"`
}

func (StakedData) EventName() string { return EventStaked }

// UnstakeInitiatedData is the UnstakeInitiated payload.
type UnstakeInitiatedData struct {
	PositionTokenID uint64 `json:"position_token_id"`
	Owner           string `json:"owner"`
}

func (UnstakeInitiatedData) EventName() string { return EventUnstakeInitiated }

// UnstakedData is the Unstaked payload.
type UnstakedData struct {
	PositionTokenID uint64 `json:"position_token_id"`
	Owner           string `json:"owner"`
	PoolID          uint64 `json:"pool_id"`
	AmountOrTokenID string `json:"amount_or_token_id"`
}

func (UnstakedData) EventName() string { return EventUnstaked }

// TransferData is the position token Transfer payload. From is the null
// address on mint and To is the null address on burn.
type TransferData struct {
	From    string `json:"from"`
	To      string `json:"to"`
	TokenID uint64 `json:"token_id"`
}

func (TransferData) EventName() string { return EventTransfer }
