package events

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"stakerLedger/internal/model"
)

// EncodeLog renders a ledger notification as the log the staker contract
// emits for it. Chain coordinates are left zero.
func EncodeLog(ev model.Event, emitter common.Address) (model.LogRecord, error) {
	stakerABI, err := StakerABI()
	if err != nil {
		return model.LogRecord{}, err
	}
	event, ok := stakerABI.Events[ev.Name]
	if !ok {
		return model.LogRecord{}, fmt.Errorf("unsupported event name: %s", ev.Name)
	}
	indexed, values, err := encodeArgs(ev.Data)
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("encode %s: %w", ev.Name, err)
	}
	data, err := event.Inputs.NonIndexed().Pack(values...)
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("pack %s: %w", ev.Name, err)
	}

	topics := make([]string, 0, len(indexed)+1)
	topics = append(topics, event.ID.Hex())
	for _, topic := range indexed {
		topics = append(topics, topic.Hex())
	}
	return model.LogRecord{
		Address:   emitter.Hex(),
		Topics:    topics,
		Data:      hexutil.Encode(data),
		Timestamp: ev.Timestamp,
	}, nil
}

func encodeArgs(data model.EventData) ([]common.Hash, []interface{}, error) {
	switch d := data.(type) {
	case model.PoolCreatedData:
		token, err := parseAddress(d.TokenAddress)
		if err != nil {
			return nil, nil, err
		}
		tokenID, err := parseUint256(d.TokenID)
		if err != nil {
			return nil, nil, err
		}
		return []common.Hash{uintTopic(d.PoolID), uintTopic(uint64(d.TokenType)), addressTopic(token)},
			[]interface{}{tokenID}, nil
	case model.PoolConfiguredData:
		admin, err := parseAddress(d.Administrator)
		if err != nil {
			return nil, nil, err
		}
		return []common.Hash{uintTopic(d.PoolID), addressTopic(admin)},
			[]interface{}{d.Transferable, new(big.Int).SetUint64(d.LockupSeconds), new(big.Int).SetUint64(d.CooldownSeconds)}, nil
	case model.StakedData:
		return encodePositionMove(d.PositionTokenID, d.Owner, d.PoolID, d.AmountOrTokenID)
	case model.UnstakedData:
		return encodePositionMove(d.PositionTokenID, d.Owner, d.PoolID, d.AmountOrTokenID)
	case model.UnstakeInitiatedData:
		owner, err := parseAddress(d.Owner)
		if err != nil {
			return nil, nil, err
		}
		return []common.Hash{addressTopic(owner)}, []interface{}{new(big.Int).SetUint64(d.PositionTokenID)}, nil
	case model.TransferData:
		from, err := parseAddress(d.From)
		if err != nil {
			return nil, nil, err
		}
		to, err := parseAddress(d.To)
		if err != nil {
			return nil, nil, err
		}
		return []common.Hash{addressTopic(from), addressTopic(to), uintTopic(d.TokenID)}, nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported payload %T", data)
	}
}

func encodePositionMove(positionID uint64, ownerHex string, poolID uint64, amountOrID string) ([]common.Hash, []interface{}, error) {
	owner, err := parseAddress(ownerHex)
	if err != nil {
		return nil, nil, err
	}
	amount, err := parseUint256(amountOrID)
	if err != nil {
		return nil, nil, err
	}
	return []common.Hash{addressTopic(owner), uintTopic(poolID)},
		[]interface{}{new(big.Int).SetUint64(positionID), amount}, nil
}

// Decoder turns staker contract logs into typed events.
type Decoder struct {
	stakerABI   abi.ABI
	topicToName map[string]string
}

func NewDecoder() (*Decoder, error) {
	stakerABI, err := StakerABI()
	if err != nil {
		return nil, err
	}
	topicToName := make(map[string]string, len(stakerABI.Events))
	for name, event := range stakerABI.Events {
		topicToName[strings.ToLower(event.ID.Hex())] = name
	}
	return &Decoder{stakerABI: stakerABI, topicToName: topicToName}, nil
}

// Topics returns the signature topics of every staker event.
func (d *Decoder) Topics() []common.Hash {
	out := make([]common.Hash, 0, len(d.topicToName))
	for _, event := range d.stakerABI.Events {
		out = append(out, event.ID)
	}
	return out
}

// CanDecode checks if the topic0 is supported.
func (d *Decoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent whose Decoded field holds
// the matching model payload.
func (d *Decoder) Decode(log model.LogRecord) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	event := d.stakerABI.Events[name]

	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return nil, err
	}
	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, err
	}

	var decoded model.EventData
	switch name {
	case model.EventPoolCreated:
		decoded, err = decodePoolCreated(event, indexedTopics, values)
	case model.EventPoolConfigured:
		decoded, err = decodePoolConfigured(event, indexedTopics, values)
	case model.EventStaked:
		var move positionMove
		move, err = decodePositionMove(event, indexedTopics, values)
		decoded = model.StakedData(move)
	case model.EventUnstaked:
		var move positionMove
		move, err = decodePositionMove(event, indexedTopics, values)
		decoded = model.UnstakedData(move)
	case model.EventUnstakeInitiated:
		decoded, err = decodeUnstakeInitiated(event, indexedTopics, values)
	case model.EventTransfer:
		decoded, err = decodeTransfer(event, indexedTopics)
	default:
		err = fmt.Errorf("unsupported event name: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}

	return &model.TypedEvent{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     log.Address,
		EventName:   name,
		Timestamp:   log.Timestamp,
		Decoded:     decoded,
		Raw:         &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data},
	}, nil
}

// positionMove mirrors the shared shape of Staked and Unstaked.
type positionMove struct {
	PositionTokenID uint64 `json:"position_token_id"`
	Owner           string `json:"owner"`
	PoolID          uint64 `json:"pool_id"`
	AmountOrTokenID string `json:"amount_or_token_id"`
}

func decodePoolCreated(event abi.Event, topics []common.Hash, values []interface{}) (model.PoolCreatedData, error) {
	var indexed struct {
		PoolID       *big.Int
		TokenType    *big.Int
		TokenAddress common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), topics); err != nil {
		return model.PoolCreatedData{}, fmt.Errorf("parse topics: %w", err)
	}
	if len(values) != 1 {
		return model.PoolCreatedData{}, fmt.Errorf("unexpected values: %d", len(values))
	}
	tokenID, err := asBigInt(values[0])
	if err != nil {
		return model.PoolCreatedData{}, err
	}
	poolID, err := asUint64(indexed.PoolID)
	if err != nil {
		return model.PoolCreatedData{}, err
	}
	if !indexed.TokenType.IsUint64() || indexed.TokenType.Uint64() > 0xffff {
		return model.PoolCreatedData{}, fmt.Errorf("token type out of range: %s", indexed.TokenType)
	}
	return model.PoolCreatedData{
		PoolID:       poolID,
		TokenType:    uint16(indexed.TokenType.Uint64()),
		TokenAddress: indexed.TokenAddress.Hex(),
		TokenID:      tokenID.String(),
	}, nil
}

func decodePoolConfigured(event abi.Event, topics []common.Hash, values []interface{}) (model.PoolConfiguredData, error) {
	var indexed struct {
		PoolID        *big.Int
		Administrator common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), topics); err != nil {
		return model.PoolConfiguredData{}, fmt.Errorf("parse topics: %w", err)
	}
	if len(values) != 3 {
		return model.PoolConfiguredData{}, fmt.Errorf("unexpected values: %d", len(values))
	}
	transferable, ok := values[0].(bool)
	if !ok {
		return model.PoolConfiguredData{}, fmt.Errorf("unsupported bool type %T", values[0])
	}
	lockup, err := bigUint64(values[1])
	if err != nil {
		return model.PoolConfiguredData{}, err
	}
	cooldown, err := bigUint64(values[2])
	if err != nil {
		return model.PoolConfiguredData{}, err
	}
	poolID, err := asUint64(indexed.PoolID)
	if err != nil {
		return model.PoolConfiguredData{}, err
	}
	return model.PoolConfiguredData{
		PoolID:          poolID,
		Administrator:   indexed.Administrator.Hex(),
		Transferable:    transferable,
		LockupSeconds:   lockup,
		CooldownSeconds: cooldown,
	}, nil
}

func decodePositionMove(event abi.Event, topics []common.Hash, values []interface{}) (positionMove, error) {
	var indexed struct {
		Owner  common.Address
		PoolID *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), topics); err != nil {
		return positionMove{}, fmt.Errorf("parse topics: %w", err)
	}
	if len(values) != 2 {
		return positionMove{}, fmt.Errorf("unexpected values: %d", len(values))
	}
	positionID, err := bigUint64(values[0])
	if err != nil {
		return positionMove{}, err
	}
	amount, err := asBigInt(values[1])
	if err != nil {
		return positionMove{}, err
	}
	poolID, err := asUint64(indexed.PoolID)
	if err != nil {
		return positionMove{}, err
	}
	return positionMove{
		PositionTokenID: positionID,
		Owner:           indexed.Owner.Hex(),
		PoolID:          poolID,
		AmountOrTokenID: amount.String(),
	}, nil
}

func decodeUnstakeInitiated(event abi.Event, topics []common.Hash, values []interface{}) (model.UnstakeInitiatedData, error) {
	var indexed struct {
		Owner common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), topics); err != nil {
		return model.UnstakeInitiatedData{}, fmt.Errorf("parse topics: %w", err)
	}
	if len(values) != 1 {
		return model.UnstakeInitiatedData{}, fmt.Errorf("unexpected values: %d", len(values))
	}
	positionID, err := bigUint64(values[0])
	if err != nil {
		return model.UnstakeInitiatedData{}, err
	}
	return model.UnstakeInitiatedData{PositionTokenID: positionID, Owner: indexed.Owner.Hex()}, nil
}

func decodeTransfer(event abi.Event, topics []common.Hash) (model.TransferData, error) {
	var indexed struct {
		From    common.Address
		To      common.Address
		TokenId *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), topics); err != nil {
		return model.TransferData{}, fmt.Errorf("parse topics: %w", err)
	}
	tokenID, err := asUint64(indexed.TokenId)
	if err != nil {
		return model.TransferData{}, err
	}
	return model.TransferData{From: indexed.From.Hex(), To: indexed.To.Hex(), TokenID: tokenID}, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	out := make([]common.Hash, 0, indexedCount)
	for _, topic := range topics[1:] {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func bigUint64(value interface{}) (uint64, error) {
	v, err := asBigInt(value)
	if err != nil {
		return 0, err
	}
	return asUint64(v)
}

func asUint64(v *big.Int) (uint64, error) {
	if v == nil || !v.IsUint64() {
		return 0, fmt.Errorf("value does not fit in uint64: %v", v)
	}
	return v.Uint64(), nil
}

func uintTopic(v uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(v))
}

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address: %q", s)
	}
	return common.HexToAddress(s), nil
}

func parseUint256(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 || v.BitLen() > 256 {
		return nil, fmt.Errorf("invalid uint256: %q", s)
	}
	return v, nil
}
