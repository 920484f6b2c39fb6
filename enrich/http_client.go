package enrich

import (
	"context"
	"io/ioutil"
	"net/http"

	"github.com/pkg/errors"

	Logger "github.com/postmux/postmux/utils/log"
)

type HttpClient struct {
	header http.Header

	client *http.Client
}

func NewDefaultHttpClient() *HttpClient {
	return &HttpClient{header: http.Header{}, client: &http.Client{}}
}

func NewHttpClient(header http.Header) *HttpClient {
	return &HttpClient{header: header, client: &http.Client{}}
}

func (c *HttpClient) Get(ctx context.Context, uri string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", uri, nil)
	if err != nil {
		return nil, err
	}
	req.Header = c.header
	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	if IsNon200HttpResponse(res) {
		MaybeLogNon200HttpError(res)
		return nil, errors.Errorf("non-200 http code: %d", res.StatusCode)
	}

	return res, nil
}

// This method takes in an additional map from query key to query value, which
// will be appended to query uri as ?${KEY}=${VALUE}
func (c *HttpClient) GetWithQueryParams(ctx context.Context, uri string, params map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", uri, nil)
	if err != nil {
		return nil, err
	}
	req.Header = c.header
	q := req.URL.Query()
	for k, v := range params {
		q.Add(k, v)
	}
	req.URL.RawQuery = q.Encode()
	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if IsNon200HttpResponse(res) {
		MaybeLogNon200HttpError(res)
		return nil, errors.Errorf("non-200 http code: %d", res.StatusCode)
	}

	return res, nil
}

// Log http response if the error code is not 2XX
func MaybeLogNon200HttpError(res *http.Response) {
	if IsNon200HttpResponse(res) {
		Logger.Log.Errorf("non-200 http code: %d", res.StatusCode)
		LogHttpResponseBody(res)
	}
}

func IsNon200HttpResponse(res *http.Response) bool {
	return res.StatusCode >= 300
}

func LogHttpResponseBody(res *http.Response) {
	body, err := ioutil.ReadAll(res.Body)
	if err == nil {
		Logger.Log.Errorln("response body is: ", string(body))
	}
}
