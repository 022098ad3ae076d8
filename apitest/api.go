package apitest

import (
	"context"

	"github.com/phux/apiunit/apis"
	"github.com/stretchr/testify/require"
)

// LoadAPI loads the API description registered under name, bound to the
// suite's target, and fails the test when it cannot.
func (s *Suite) LoadAPI(name string, opts ...apis.AddOption) *apis.API {
	s.t.Helper()

	opts = append([]apis.AddOption{
		apis.WithHost(s.target.Host),
		apis.WithPort(s.target.Port),
		apis.WithSkipTLSVerify(s.target.SkipTLSVerify),
	}, opts...)

	api, err := s.apis.Add(context.Background(), name, opts...)
	require.NoErrorf(s.t, err, "could not load API %q", name)

	return api
}

// AssertOperationReturnJSON calls the operation operationID of api on the
// server api is bound to, with path parameters filled from params, and returns
// the decoded JSON body. OnPort does not apply.
func (s *Suite) AssertOperationReturnJSON(
	api *apis.API,
	operationID string,
	params map[string]string,
	body any,
	opts ...CallOption,
) any {
	s.t.Helper()

	method, path, err := api.Path(operationID, params)
	require.NoError(s.t, err)

	cfg := newCallConfig(opts)
	cfg.skipTLSVerify = cfg.skipTLSVerify || api.SkipTLSVerify

	return s.decodeJSON(method, s.callURL(method, api.URL(path), body, contentTypeJSON, cfg))
}
