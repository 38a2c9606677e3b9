package game

import (
	"encoding/json"

	"go.uber.org/zap"
)

// 客户端请求类型
const (
	REQ_JOIN_SESSION  = "JoinSession"
	REQ_SET_READY     = "SetReady"
	REQ_START_GAME    = "StartGame"
	REQ_CAST_VOTE     = "CastVote"
	REQ_ADVANCE_ROUND = "AdvanceRound"
	REQ_LEAVE_SESSION = "LeaveSession"
	REQ_GET_STATE     = "GetState"
)

// 内部事件类型，仅通过 NativeData 注入，客户端不可见
const (
	REQ_TIMEOUT        = "Timeout"
	REQ_SCENARIO_READY = "ScenarioReady"
	REQ_OUTCOME_READY  = "OutcomeReady"
)

type RequestWrapper struct {
	ReqType string          `json:"request_type"`
	Data    json.RawMessage `json:"data"`

	// 服务端内部构造的请求直接携带原生数据，跳过序列化
	NativeData any `json:"-"`
}

func unwrap[T any](wrapper RequestWrapper, reqType string) *T {
	if wrapper.ReqType != reqType {
		return nil
	}

	if wrapper.NativeData != nil {
		if native, ok := wrapper.NativeData.(*T); ok {
			return native
		}

		return nil
	}

	var req T

	if err := json.Unmarshal(wrapper.Data, &req); err != nil {
		zap.L().Error(
			"Failed to unwrap request",
			zap.String("request_type", reqType),
			zap.Error(err),
		)
		return nil
	}

	return &req
}

func TryUnwrapJoinSessionRequest(wrapper RequestWrapper) *JoinSessionRequest {
	return unwrap[JoinSessionRequest](wrapper, REQ_JOIN_SESSION)
}

func TryUnwrapSetReadyRequest(wrapper RequestWrapper) *SetReadyRequest {
	return unwrap[SetReadyRequest](wrapper, REQ_SET_READY)
}

func TryUnwrapStartGameRequest(wrapper RequestWrapper) *StartGameRequest {
	return unwrap[StartGameRequest](wrapper, REQ_START_GAME)
}

func TryUnwrapCastVoteRequest(wrapper RequestWrapper) *CastVoteRequest {
	return unwrap[CastVoteRequest](wrapper, REQ_CAST_VOTE)
}

func TryUnwrapAdvanceRoundRequest(wrapper RequestWrapper) *AdvanceRoundRequest {
	return unwrap[AdvanceRoundRequest](wrapper, REQ_ADVANCE_ROUND)
}

func TryUnwrapLeaveSessionRequest(wrapper RequestWrapper) *LeaveSessionRequest {
	return unwrap[LeaveSessionRequest](wrapper, REQ_LEAVE_SESSION)
}

func TryUnwrapGetStateRequest(wrapper RequestWrapper) *GetStateRequest {
	return unwrap[GetStateRequest](wrapper, REQ_GET_STATE)
}

func TryUnwrapTimeoutEvent(wrapper RequestWrapper) *TimeoutEvent {
	return unwrap[TimeoutEvent](wrapper, REQ_TIMEOUT)
}

func TryUnwrapScenarioReadyEvent(wrapper RequestWrapper) *ScenarioReadyEvent {
	return unwrap[ScenarioReadyEvent](wrapper, REQ_SCENARIO_READY)
}

func TryUnwrapOutcomeReadyEvent(wrapper RequestWrapper) *OutcomeReadyEvent {
	return unwrap[OutcomeReadyEvent](wrapper, REQ_OUTCOME_READY)
}

// 响应类型
const (
	RESP_ERROR = "Error"

	RESP_ACK           = "Ack"
	RESP_JOIN_SESSION  = "JoinSession"
	RESP_LEAVE_SESSION = "LeaveSession"
	RESP_INCENTIVE     = "Incentive"
	RESP_SNAPSHOT      = "Snapshot"
)

type ResponseWrapper struct {
	RespType string `json:"response_type"`
	Data     any    `json:"data,omitempty"`
	ErrMsg   string `json:"error_message,omitempty"`
	ErrCode  string `json:"error_code,omitempty"`
}

func WrapResponse(respType string, data any) ResponseWrapper {
	return ResponseWrapper{
		RespType: respType,
		Data:     data,
	}
}

func WrapErrResponse(err error) ResponseWrapper {
	return ResponseWrapper{
		RespType: RESP_ERROR,
		ErrMsg:   err.Error(),
		ErrCode:  ErrCode(err),
	}
}
