package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inklift/inklift/pkg/provider"
	"github.com/inklift/inklift/pkg/region"
)

// fakeClient implements provider.Client for upload tests; only UploadFile
// matters here.
type fakeClient struct {
	uploadCalls int
	uploadErrs  []error
	uploadName  string
}

func (f *fakeClient) SubmitJob(context.Context, region.Region, string, []provider.FieldOverride) (*provider.SubmitResult, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClient) QueryStatus(context.Context, region.Region, string) (*provider.StatusResult, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClient) FetchOutputs(context.Context, region.Region, string) (json.RawMessage, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClient) CancelJob(context.Context, region.Region, string) error {
	return errors.New("not implemented")
}

func (f *fakeClient) UploadFile(_ context.Context, _ region.Region, _ string, _ []byte) (string, error) {
	call := f.uploadCalls
	f.uploadCalls++
	if call < len(f.uploadErrs) && f.uploadErrs[call] != nil {
		return "", f.uploadErrs[call]
	}
	return f.uploadName, nil
}

type fakeStore struct {
	putCalls int
	putErrs  []error
	lastKey  string
	url      string
}

func (f *fakeStore) Put(_ context.Context, key string, _ io.Reader, _ int64, _ string) (string, error) {
	call := f.putCalls
	f.putCalls++
	f.lastKey = key
	if call < len(f.putErrs) && f.putErrs[call] != nil {
		return "", f.putErrs[call]
	}
	return f.url, nil
}

func noSleep(u *Uploader) { u.sleep = func(time.Duration) {} }

var testReg = region.Region{ID: "global", APIBaseURL: "https://api.test.example"}

func TestUpload_SmallGoesDirect(t *testing.T) {
	client := &fakeClient{uploadName: "api/small.png"}
	store := &fakeStore{url: "https://cdn.test.example/x"}
	u := NewUploader(client, store, nil, nil)
	noSleep(u)

	ref, err := u.Upload(context.Background(), testReg, "small.png", make([]byte, 1<<20))
	require.NoError(t, err)
	assert.Equal(t, "api/small.png", ref)
	assert.Equal(t, 1, client.uploadCalls)
	assert.Equal(t, 0, store.putCalls, "small payloads must not touch the object store")
}

func TestUpload_LargeGoesToObjectStore(t *testing.T) {
	client := &fakeClient{uploadName: "unused"}
	store := &fakeStore{url: "https://cdn.test.example/obj/big.png"}
	u := NewUploader(client, store, nil, nil)
	noSleep(u)

	ref, err := u.Upload(context.Background(), testReg, "big.png", make([]byte, 12<<20))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test.example/obj/big.png", ref)
	assert.Equal(t, 0, client.uploadCalls, "large payloads must not hit the direct endpoint")
	assert.Equal(t, 1, store.putCalls)
	assert.Contains(t, store.lastKey, "big.png")
}

func TestUpload_LargeWithoutStoreFailsFast(t *testing.T) {
	client := &fakeClient{}
	u := NewUploader(client, nil, nil, nil)
	noSleep(u)

	_, err := u.Upload(context.Background(), testReg, "big.png", make([]byte, 12<<20))
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrPayloadTooLarge)
	assert.Equal(t, 0, client.uploadCalls)
}

func TestUpload_DirectRetriesTransientErrors(t *testing.T) {
	client := &fakeClient{
		uploadName: "api/ok.png",
		uploadErrs: []error{provider.ErrProviderUnavailable, provider.ErrThrottled, nil},
	}
	u := NewUploader(client, nil, nil, nil)
	noSleep(u)

	ref, err := u.Upload(context.Background(), testReg, "ok.png", make([]byte, 1024))
	require.NoError(t, err)
	assert.Equal(t, "api/ok.png", ref)
	assert.Equal(t, 3, client.uploadCalls)
}

func TestUpload_DirectStopsOnNonTransientError(t *testing.T) {
	client := &fakeClient{
		uploadErrs: []error{provider.ErrInvalidCredentials},
	}
	u := NewUploader(client, nil, nil, nil)
	noSleep(u)

	_, err := u.Upload(context.Background(), testReg, "x.png", make([]byte, 1024))
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrInvalidCredentials)
	assert.Equal(t, 1, client.uploadCalls, "credential failures must not be retried")
}

func TestUpload_DirectExhaustionKeepsLastCause(t *testing.T) {
	transient := fmt.Errorf("edge hiccup: %w", provider.ErrProviderUnavailable)
	client := &fakeClient{
		uploadErrs: []error{transient, transient, transient},
	}
	u := NewUploader(client, nil, nil, nil)
	noSleep(u)

	_, err := u.Upload(context.Background(), testReg, "x.png", make([]byte, 1024))
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrProviderUnavailable)
	assert.Equal(t, 3, client.uploadCalls)
}

func TestUpload_OffloadRetriesTransientErrors(t *testing.T) {
	store := &fakeStore{
		url:     "https://cdn.test.example/obj/y.png",
		putErrs: []error{provider.ErrThrottled, nil},
	}
	u := NewUploader(&fakeClient{}, store, nil, nil)
	noSleep(u)

	ref, err := u.Upload(context.Background(), testReg, "y.png", make([]byte, 12<<20))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test.example/obj/y.png", ref)
	assert.Equal(t, 2, store.putCalls)
}
