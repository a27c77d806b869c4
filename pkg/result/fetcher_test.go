package result

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inklift/inklift/pkg/provider"
	"github.com/inklift/inklift/pkg/region"
	"github.com/inklift/inklift/pkg/registry"
)

type outputsClient struct {
	raw json.RawMessage
	err error
}

func (c *outputsClient) FetchOutputs(context.Context, region.Region, string) (json.RawMessage, error) {
	return c.raw, c.err
}

func (c *outputsClient) SubmitJob(context.Context, region.Region, string, []provider.FieldOverride) (*provider.SubmitResult, error) {
	return nil, errors.New("not implemented")
}

func (c *outputsClient) QueryStatus(context.Context, region.Region, string) (*provider.StatusResult, error) {
	return nil, errors.New("not implemented")
}

func (c *outputsClient) CancelJob(context.Context, region.Region, string) error {
	return errors.New("not implemented")
}

func (c *outputsClient) UploadFile(context.Context, region.Region, string, []byte) (string, error) {
	return "", errors.New("not implemented")
}

func testJob() registry.Job {
	return registry.Job{
		Ref:    "ref-1",
		TaskID: "task-1",
		Region: region.Region{ID: "global", APIBaseURL: "https://api.example.com"},
	}
}

func TestFetch_NormalizesAgainstRegionBase(t *testing.T) {
	c := &outputsClient{raw: json.RawMessage(`["/outputs/a.png"]`)}
	f := NewFetcher(c, nil)

	urls, err := f.Fetch(context.Background(), testJob())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://api.example.com/outputs/a.png"}, urls)
}

func TestFetch_ZeroResultsIsNotAnError(t *testing.T) {
	c := &outputsClient{raw: json.RawMessage(`{"status": "done"}`)}
	f := NewFetcher(c, nil)

	urls, err := f.Fetch(context.Background(), testJob())
	require.NoError(t, err, "an unrecognized payload shape must not fail the job")
	assert.Empty(t, urls)
}

func TestFetch_TransportErrorPropagates(t *testing.T) {
	c := &outputsClient{err: provider.ErrProviderUnavailable}
	f := NewFetcher(c, nil)

	_, err := f.Fetch(context.Background(), testJob())
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrProviderUnavailable)
}
