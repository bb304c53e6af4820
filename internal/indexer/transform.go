package indexer

import (
	"github.com/ethereum/go-ethereum/core/types"

	"smartpool/internal/model"
)

func decodeErrorFromLog(chainID uint64, log types.Log, err error) model.DecodeError {
	topic0 := ""
	if len(log.Topics) > 0 {
		topic0 = log.Topics[0].Hex()
	}
	return model.DecodeError{
		ChainID:     chainID,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
		Address:     log.Address.Hex(),
		Topic0:      topic0,
		Error:       err.Error(),
	}
}
