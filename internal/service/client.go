package service

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/carlo-colombo/cashsplitter/internal/calculator"
	"github.com/carlo-colombo/cashsplitter/internal/codec"
	"github.com/carlo-colombo/cashsplitter/internal/models"
)

// GroupSummary describes one group held by the relay.
type GroupSummary struct {
	Key         string
	Description string
	Timestamp   int64
	Revision    int64
}

// Client is a typed client for the sync relay.
type Client struct {
	push     *connect.Client[wrapperspb.BytesValue, wrapperspb.BytesValue]
	pull     *connect.Client[wrapperspb.StringValue, wrapperspb.BytesValue]
	list     *connect.Client[emptypb.Empty, structpb.ListValue]
	balances *connect.Client[wrapperspb.StringValue, structpb.ListValue]
	delete   *connect.Client[wrapperspb.StringValue, emptypb.Empty]
}

// NewClient creates a client for the relay at baseURL (e.g., http://localhost:8080).
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		push:     connect.NewClient[wrapperspb.BytesValue, wrapperspb.BytesValue](httpClient, baseURL+PushProcedure, opts...),
		pull:     connect.NewClient[wrapperspb.StringValue, wrapperspb.BytesValue](httpClient, baseURL+PullProcedure, opts...),
		list:     connect.NewClient[emptypb.Empty, structpb.ListValue](httpClient, baseURL+ListProcedure, opts...),
		balances: connect.NewClient[wrapperspb.StringValue, structpb.ListValue](httpClient, baseURL+BalancesProcedure, opts...),
		delete:   connect.NewClient[wrapperspb.StringValue, emptypb.Empty](httpClient, baseURL+DeleteProcedure, opts...),
	}
}

// Push sends g to the relay and returns the relay's merged copy.
func (c *Client) Push(ctx context.Context, g models.Group) (models.Group, error) {
	b, err := codec.EncodeBytes(g)
	if err != nil {
		return models.Group{}, err
	}
	resp, err := c.push.CallUnary(ctx, connect.NewRequest(wrapperspb.Bytes(b)))
	if err != nil {
		return models.Group{}, err
	}
	return codec.DecodeBytes(resp.Msg.GetValue())
}

// Pull fetches the relay's copy of the group with the given key.
func (c *Client) Pull(ctx context.Context, key string) (models.Group, error) {
	resp, err := c.pull.CallUnary(ctx, connect.NewRequest(wrapperspb.String(key)))
	if err != nil {
		return models.Group{}, err
	}
	return codec.DecodeBytes(resp.Msg.GetValue())
}

// List returns a summary of every group held by the relay.
func (c *Client) List(ctx context.Context) ([]GroupSummary, error) {
	resp, err := c.list.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return nil, err
	}
	var out []GroupSummary
	for _, v := range resp.Msg.GetValues() {
		fields := v.GetStructValue().GetFields()
		out = append(out, GroupSummary{
			Key:         fields["key"].GetStringValue(),
			Description: fields["description"].GetStringValue(),
			Timestamp:   int64(fields["timestamp"].GetNumberValue()),
			Revision:    int64(fields["revision"].GetNumberValue()),
		})
	}
	return out, nil
}

// Balances returns the relay-computed balances of the group with the given key.
func (c *Client) Balances(ctx context.Context, key string) ([]calculator.MemberBalance, error) {
	resp, err := c.balances.CallUnary(ctx, connect.NewRequest(wrapperspb.String(key)))
	if err != nil {
		return nil, err
	}
	var out []calculator.MemberBalance
	for _, v := range resp.Msg.GetValues() {
		fields := v.GetStructValue().GetFields()
		out = append(out, calculator.MemberBalance{
			MemberID: int64(fields["member_id"].GetNumberValue()),
			Name:     fields["name"].GetStringValue(),
			Balance:  int64(fields["balance"].GetNumberValue()),
		})
	}
	return out, nil
}

// Delete removes the group with the given key from the relay.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.delete.CallUnary(ctx, connect.NewRequest(wrapperspb.String(key)))
	return err
}
