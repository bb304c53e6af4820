package onchain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"smartpool/internal/model"
)

var ErrUnsupportedTopic = errors.New("onchain: unsupported topic0")

// Decoder turns pool logs into events using the same payload types the engine
// emits.
type Decoder struct {
	poolABI     abi.ABI
	topicToName map[common.Hash]string
}

func NewDecoder() (*Decoder, error) {
	poolABI, err := BPoolABI()
	if err != nil {
		return nil, err
	}
	topicToName := make(map[common.Hash]string, 4)
	for _, name := range []string{model.EventSwap, model.EventJoin, model.EventExit, model.EventTransfer} {
		event, ok := poolABI.Events[name]
		if !ok {
			return nil, fmt.Errorf("event %s missing from abi", name)
		}
		topicToName[event.ID] = name
	}
	return &Decoder{poolABI: poolABI, topicToName: topicToName}, nil
}

// Topics lists the topic0 values the decoder understands.
func (d *Decoder) Topics() []common.Hash {
	out := make([]common.Hash, 0, len(d.topicToName))
	for _, name := range []string{model.EventSwap, model.EventJoin, model.EventExit, model.EventTransfer} {
		out = append(out, d.poolABI.Events[name].ID)
	}
	return out
}

// TopicFor returns the topic0 of a decodable event by name, case-insensitively.
func (d *Decoder) TopicFor(name string) (common.Hash, bool) {
	for topic, known := range d.topicToName {
		if strings.EqualFold(known, name) {
			return topic, true
		}
	}
	return common.Hash{}, false
}

func (d *Decoder) CanDecode(log types.Log) bool {
	if len(log.Topics) == 0 {
		return false
	}
	_, ok := d.topicToName[log.Topics[0]]
	return ok
}

// Decode converts a raw log into an event. Seq is left zero; callers that
// persist events alongside engine output key chain events by tx hash and index.
func (d *Decoder) Decode(chainID uint64, log types.Log, timestamp uint64) (model.Event, error) {
	if len(log.Topics) == 0 {
		return model.Event{}, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[log.Topics[0]]
	if !ok {
		return model.Event{}, fmt.Errorf("%w: %s", ErrUnsupportedTopic, log.Topics[0].Hex())
	}

	var (
		decoded interface{}
		err     error
	)
	switch name {
	case model.EventSwap:
		decoded, err = d.decodeSwap(log)
	case model.EventJoin:
		decoded, err = d.decodeJoin(log)
	case model.EventExit:
		decoded, err = d.decodeExit(log)
	case model.EventTransfer:
		decoded, err = d.decodeTransfer(log)
	}
	if err != nil {
		return model.Event{}, fmt.Errorf("decode %s: %w", name, err)
	}

	return model.Event{
		ChainID:     chainID,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
		Address:     log.Address.Hex(),
		EventName:   name,
		Timestamp:   timestamp,
		Decoded:     decoded,
		Raw:         &model.RawLogRef{Topic0: log.Topics[0].Hex(), Data: hexutil.Encode(log.Data)},
	}, nil
}

func (d *Decoder) decodeSwap(log types.Log) (model.SwapEventData, error) {
	var indexed struct {
		Caller   common.Address
		TokenIn  common.Address
		TokenOut common.Address
	}
	values, err := d.unpack(model.EventSwap, log, &indexed, 2)
	if err != nil {
		return model.SwapEventData{}, err
	}
	return model.SwapEventData{
		Caller:    indexed.Caller.Hex(),
		TokenIn:   indexed.TokenIn.Hex(),
		TokenOut:  indexed.TokenOut.Hex(),
		AmountIn:  values[0].String(),
		AmountOut: values[1].String(),
	}, nil
}

func (d *Decoder) decodeJoin(log types.Log) (model.JoinEventData, error) {
	var indexed struct {
		Caller  common.Address
		TokenIn common.Address
	}
	values, err := d.unpack(model.EventJoin, log, &indexed, 1)
	if err != nil {
		return model.JoinEventData{}, err
	}
	return model.JoinEventData{
		Caller:   indexed.Caller.Hex(),
		TokenIn:  indexed.TokenIn.Hex(),
		AmountIn: values[0].String(),
	}, nil
}

func (d *Decoder) decodeExit(log types.Log) (model.ExitEventData, error) {
	var indexed struct {
		Caller   common.Address
		TokenOut common.Address
	}
	values, err := d.unpack(model.EventExit, log, &indexed, 1)
	if err != nil {
		return model.ExitEventData{}, err
	}
	return model.ExitEventData{
		Caller:    indexed.Caller.Hex(),
		TokenOut:  indexed.TokenOut.Hex(),
		AmountOut: values[0].String(),
	}, nil
}

func (d *Decoder) decodeTransfer(log types.Log) (model.TransferEventData, error) {
	var indexed struct {
		Src common.Address
		Dst common.Address
	}
	values, err := d.unpack(model.EventTransfer, log, &indexed, 1)
	if err != nil {
		return model.TransferEventData{}, err
	}
	return model.TransferEventData{
		From:   indexed.Src.Hex(),
		To:     indexed.Dst.Hex(),
		Amount: values[0].String(),
	}, nil
}

// unpack parses the indexed topics into out and returns the non-indexed
// uint256 values, checking there are exactly want of them.
func (d *Decoder) unpack(name string, log types.Log, out interface{}, want int) ([]*big.Int, error) {
	event := d.poolABI.Events[name]
	indexedArgs := indexedArguments(event.Inputs)
	if len(log.Topics) != len(indexedArgs)+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", len(indexedArgs)+1, len(log.Topics))
	}
	if err := abi.ParseTopics(out, indexedArgs, log.Topics[1:]); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}

	raw, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack data: %w", err)
	}
	if len(raw) != want {
		return nil, fmt.Errorf("unexpected %s values: %d", name, len(raw))
	}
	values := make([]*big.Int, 0, len(raw))
	for _, v := range raw {
		n, err := asBigInt(v)
		if err != nil {
			return nil, err
		}
		values = append(values, n)
	}
	return values, nil
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
