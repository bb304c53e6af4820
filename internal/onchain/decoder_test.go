package onchain

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"smartpool/internal/model"
)

func TestDecoderSwap(t *testing.T) {
	poolABI, err := BPoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	caller := common.HexToAddress("0x2222222222222222222222222222222222222222")
	tokenIn := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tokenOut := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	data, err := poolABI.Events[model.EventSwap].Inputs.NonIndexed().Pack(big.NewInt(1000), big.NewInt(1987))
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}
	log := buildLog(pool, poolABI.Events[model.EventSwap].ID, data, topicFromAddress(caller), topicFromAddress(tokenIn), topicFromAddress(tokenOut))

	if !decoder.CanDecode(log) {
		t.Fatalf("swap topic should be decodable")
	}
	event, err := decoder.Decode(56, log, 1700000000)
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}

	swap, ok := event.Decoded.(model.SwapEventData)
	if !ok {
		t.Fatalf("decoded type mismatch: %T", event.Decoded)
	}
	if swap.AmountIn != "1000" || swap.AmountOut != "1987" {
		t.Fatalf("amounts mismatch: %+v", swap)
	}
	if swap.Caller != caller.Hex() || swap.TokenIn != tokenIn.Hex() || swap.TokenOut != tokenOut.Hex() {
		t.Fatalf("address mismatch: %+v", swap)
	}
	if event.ChainID != 56 || event.BlockNumber != 12345 || event.LogIndex != 1 || event.Timestamp != 1700000000 {
		t.Fatalf("envelope mismatch: %+v", event)
	}
	if event.Raw == nil || event.Raw.Topic0 != poolABI.Events[model.EventSwap].ID.Hex() {
		t.Fatalf("raw ref mismatch: %+v", event.Raw)
	}
}

func TestDecoderJoinExitTransfer(t *testing.T) {
	poolABI, err := BPoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	pool := common.HexToAddress("0x9999999999999999999999999999999999999999")
	who := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	token := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	joinData, err := poolABI.Events[model.EventJoin].Inputs.NonIndexed().Pack(big.NewInt(500))
	if err != nil {
		t.Fatalf("pack join: %v", err)
	}
	joinEvent, err := decoder.Decode(56, buildLog(pool, poolABI.Events[model.EventJoin].ID, joinData, topicFromAddress(who), topicFromAddress(token)), 0)
	if err != nil {
		t.Fatalf("decode join: %v", err)
	}
	join, ok := joinEvent.Decoded.(model.JoinEventData)
	if !ok || join.AmountIn != "500" || join.TokenIn != token.Hex() {
		t.Fatalf("join mismatch: %+v", joinEvent.Decoded)
	}

	exitData, err := poolABI.Events[model.EventExit].Inputs.NonIndexed().Pack(big.NewInt(300))
	if err != nil {
		t.Fatalf("pack exit: %v", err)
	}
	exitEvent, err := decoder.Decode(56, buildLog(pool, poolABI.Events[model.EventExit].ID, exitData, topicFromAddress(who), topicFromAddress(token)), 0)
	if err != nil {
		t.Fatalf("decode exit: %v", err)
	}
	exit, ok := exitEvent.Decoded.(model.ExitEventData)
	if !ok || exit.AmountOut != "300" || exit.Caller != who.Hex() {
		t.Fatalf("exit mismatch: %+v", exitEvent.Decoded)
	}

	transferData, err := poolABI.Events[model.EventTransfer].Inputs.NonIndexed().Pack(big.NewInt(7))
	if err != nil {
		t.Fatalf("pack transfer: %v", err)
	}
	transferEvent, err := decoder.Decode(56, buildLog(pool, poolABI.Events[model.EventTransfer].ID, transferData, topicFromAddress(pool), topicFromAddress(who)), 0)
	if err != nil {
		t.Fatalf("decode transfer: %v", err)
	}
	transfer, ok := transferEvent.Decoded.(model.TransferEventData)
	if !ok || transfer.From != pool.Hex() || transfer.To != who.Hex() || transfer.Amount != "7" {
		t.Fatalf("transfer mismatch: %+v", transferEvent.Decoded)
	}
}

func TestDecoderRejectsBadLogs(t *testing.T) {
	poolABI, err := BPoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	pool := common.HexToAddress("0x9999999999999999999999999999999999999999")

	unknown := buildLog(pool, common.HexToHash("0x01"), nil)
	if decoder.CanDecode(unknown) {
		t.Fatalf("unknown topic should not be decodable")
	}
	if _, err := decoder.Decode(56, unknown, 0); !errors.Is(err, ErrUnsupportedTopic) {
		t.Fatalf("expected ErrUnsupportedTopic, got %v", err)
	}

	// LOG_JOIN with a missing indexed topic
	data, _ := poolABI.Events[model.EventJoin].Inputs.NonIndexed().Pack(big.NewInt(1))
	short := buildLog(pool, poolABI.Events[model.EventJoin].ID, data, topicFromAddress(pool))
	if _, err := decoder.Decode(56, short, 0); err == nil {
		t.Fatalf("expected topic count error")
	}

	truncated := buildLog(pool, poolABI.Events[model.EventJoin].ID, []byte{1, 2}, topicFromAddress(pool), topicFromAddress(pool))
	if _, err := decoder.Decode(56, truncated, 0); err == nil {
		t.Fatalf("expected data error")
	}

	if len(decoder.Topics()) != 4 {
		t.Fatalf("topics mismatch: %d", len(decoder.Topics()))
	}
}

func buildLog(pool common.Address, topic0 common.Hash, data []byte, indexed ...common.Hash) types.Log {
	topics := append([]common.Hash{topic0}, indexed...)
	return types.Log{
		Address:     pool,
		Topics:      topics,
		Data:        data,
		BlockNumber: 12345,
		TxHash:      common.HexToHash("0xdef"),
		Index:       1,
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}
