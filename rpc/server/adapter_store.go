package server

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/mappy/lib/store"
	"github.com/ValentinKolb/mappy/rpc/common"
)

func NewStoreServerAdapter() IRPCServerAdapter {
	return &storeServerAdapterImpl{}
}

type storeServerAdapterImpl struct{}

func (adapter *storeServerAdapterImpl) Handle(req *common.Message, s store.IStore) *common.Message {
	// Check for nil store
	if s == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	// Handle different message types
	switch req.MsgType {
	case common.MsgTKVInsert:
		err := s.Insert(req.Key, req.Value)
		return common.NewInsertResponse(err)
	case common.MsgTKVInsertE:
		err := s.InsertE(req.Key, req.Value, req.ExpireIn)
		return common.NewInsertEResponse(err)
	case common.MsgTKVQuery:
		val, ok, err := s.Query(req.Key)
		return common.NewQueryResponse(val, ok, err)
	case common.MsgTKVContains:
		ok, err := s.Contains(req.Key)
		return common.NewContainsResponse(ok, err)
	case common.MsgTKVDelete:
		ok, err := s.Delete(req.Key, req.Value)
		return common.NewDeleteResponse(ok, err)
	case common.MsgTKVStats:
		info, err := s.GetInfo()
		if err != nil {
			return common.NewStatsResponse(nil, err)
		}
		meta, err := json.Marshal(info)
		return common.NewStatsResponse(meta, err)
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC StoreAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}
