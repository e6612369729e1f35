package handler

import (
	"context"
	"encoding/json"
	"net/http"

	apperrors "github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/rpc"
)

// RegisterRPC serves Parse and Validate to other services over s. Results
// have the same JSON shape as the HTTP responses.
func (h *Handler) RegisterRPC(s *rpc.Server) {
	s.Register(proto.MethodParse, func(ctx context.Context, params json.RawMessage) (any, error) {
		req, err := decodeRPCQuery(params)
		if err != nil {
			return nil, err
		}
		return h.analyzer.Analyze(ctx, req.Query)
	})
	s.Register(proto.MethodValidate, func(ctx context.Context, params json.RawMessage) (any, error) {
		req, err := decodeRPCQuery(params)
		if err != nil {
			return nil, err
		}
		return h.analyzer.Validate(ctx, req.Query), nil
	})
}

func decodeRPCQuery(params json.RawMessage) (proto.QueryRequest, error) {
	var req proto.QueryRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return req, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid params: %v", err)
	}
	return req, nil
}
