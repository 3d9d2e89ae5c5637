package events

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"stakerLedger/internal/model"
)

var emitter = common.HexToAddress("0xa6B0461b7E54Fa342Be6320D4938295A81f82Cd3")

func TestEncodeDecodeRoundTrip(t *testing.T) {
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	owner := common.HexToAddress("0x2222222222222222222222222222222222222222").Hex()
	token := common.HexToAddress("0x3333333333333333333333333333333333333333").Hex()
	null := common.Address{}.Hex()

	cases := []model.EventData{
		model.PoolCreatedData{PoolID: 3, TokenType: 1155, TokenAddress: token, TokenID: "42"},
		model.PoolConfiguredData{PoolID: 3, Administrator: owner, Transferable: true, LockupSeconds: 3600, CooldownSeconds: 1800},
		model.StakedData{PositionTokenID: 9, Owner: owner, PoolID: 3, AmountOrTokenID: "115792089237316195423570985008687907853269984665640564039457584007913129639935"},
		model.UnstakeInitiatedData{PositionTokenID: 9, Owner: owner},
		model.UnstakedData{PositionTokenID: 9, Owner: owner, PoolID: 3, AmountOrTokenID: "100"},
		model.TransferData{From: null, To: owner, TokenID: 9},
	}

	for _, data := range cases {
		ev := model.NewEvent(1700000000, data)
		record, err := EncodeLog(ev, emitter)
		if err != nil {
			t.Fatalf("encode %s: %v", ev.Name, err)
		}
		if !decoder.CanDecode(record.Topic0()) {
			t.Fatalf("decoder does not know %s", ev.Name)
		}
		typed, err := decoder.Decode(record)
		if err != nil {
			t.Fatalf("decode %s: %v", ev.Name, err)
		}
		if typed.EventName != ev.Name {
			t.Fatalf("name mismatch: %s != %s", typed.EventName, ev.Name)
		}
		if typed.Decoded != data {
			t.Fatalf("%s payload mismatch: %+v != %+v", ev.Name, typed.Decoded, data)
		}
		if typed.Timestamp != 1700000000 || typed.Address != emitter.Hex() {
			t.Fatalf("%s coordinates mismatch: %+v", ev.Name, typed)
		}
	}
}

func TestDecoderRejectsUnknownTopic(t *testing.T) {
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	record := model.LogRecord{Topics: []string{common.Hash{}.Hex()}, Data: "0x"}
	if decoder.CanDecode(record.Topic0()) {
		t.Fatalf("zero topic should not decode")
	}
	if _, err := decoder.Decode(record); err == nil {
		t.Fatalf("expected error for unknown topic")
	}
	if _, err := decoder.Decode(model.LogRecord{}); err == nil {
		t.Fatalf("expected error for missing topics")
	}
}

func TestDecoderRejectsTopicCountMismatch(t *testing.T) {
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	record, err := EncodeLog(model.NewEvent(1, model.TransferData{
		From:    common.Address{}.Hex(),
		To:      emitter.Hex(),
		TokenID: 1,
	}), emitter)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	record.Topics = record.Topics[:2]
	if _, err := decoder.Decode(record); err == nil {
		t.Fatalf("expected topic count error")
	}
}

func TestEncodeRejectsBadPayload(t *testing.T) {
	_, err := EncodeLog(model.NewEvent(1, model.StakedData{Owner: "nope", AmountOrTokenID: "1"}), emitter)
	if err == nil {
		t.Fatalf("expected invalid address error")
	}
	_, err = EncodeLog(model.NewEvent(1, model.StakedData{Owner: emitter.Hex(), AmountOrTokenID: "-1"}), emitter)
	if err == nil {
		t.Fatalf("expected invalid amount error")
	}
}
