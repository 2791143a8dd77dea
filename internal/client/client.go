// Package client scores texts against a running sentiment server.
package client

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/crimson-sun/sentiment/internal/httpclient"
	"github.com/crimson-sun/sentiment/internal/model"
)

const detailPath = "/api/predict/detail"

// Option configures a Remote.
type Option func(*options)

type options struct {
	token   string
	timeout time.Duration
	headers map[string]string
}

// WithToken sends the token as a Bearer Authorization header.
func WithToken(token string) Option {
	return func(o *options) { o.token = token }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithHeaders sets custom headers sent with every request.
func WithHeaders(h map[string]string) Option {
	return func(o *options) { o.headers = h }
}

type request struct {
	SentimentText string `json:"sentimentText"`
}

type detail struct {
	Text        string  `json:"text"`
	Prediction  string  `json:"prediction"`
	Label       bool    `json:"label"`
	Probability float64 `json:"probability"`
	Score       float64 `json:"score"`
}

// Remote predicts through a server's detail endpoint. The server serves a
// single model, so the model name passed to PredictBatch is only used in
// error messages.
type Remote struct {
	client *httpclient.Client
}

// New creates a Remote for the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Remote {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	var copts []httpclient.Option
	if o.timeout > 0 {
		copts = append(copts, httpclient.WithTimeout(o.timeout))
	}
	if len(o.headers) > 0 {
		copts = append(copts, httpclient.WithHeaders(o.headers))
	}
	return &Remote{client: httpclient.New(strings.TrimRight(baseURL, "/"), o.token, copts...)}
}

// Predict scores one input.
func (r *Remote) Predict(ctx context.Context, in model.Input) (model.Prediction, error) {
	var d detail
	if err := r.client.PostJSON(ctx, detailPath, request{SentimentText: in.Text}, &d); err != nil {
		return model.Prediction{}, err
	}
	return model.Prediction{
		Text:        in.Text,
		Label:       d.Label,
		Probability: d.Probability,
		Score:       d.Score,
	}, nil
}

// PredictBatch scores inputs in order, one request each. It stops at the
// first failure.
func (r *Remote) PredictBatch(ctx context.Context, name string, ins []model.Input) ([]model.Prediction, error) {
	out := make([]model.Prediction, len(ins))
	for i, in := range ins {
		p, err := r.Predict(ctx, in)
		if err != nil {
			return nil, errors.Wrapf(err, "remote %s: input %d", name, i)
		}
		out[i] = p
	}
	return out, nil
}
