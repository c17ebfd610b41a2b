package gateway

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"
)

// soapClient is a minimal SOAP 1.1 client for the two operations the PEC
// gateway exposes. The overall timeout covers connect, write and read.
type soapClient struct {
	httpClient *http.Client
}

func newSOAPClient(timeout time.Duration) *soapClient {
	return &soapClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type soapEnvelope struct {
	XMLName xml.Name `xml:"http://schemas.xmlsoap.org/soap/envelope/ Envelope"`
	Body    soapBody
}

type soapBody struct {
	XMLName xml.Name `xml:"http://schemas.xmlsoap.org/soap/envelope/ Body"`
	Content []byte   `xml:",innerxml"`
}

// Call posts a SOAP 1.1 envelope wrapping request and decodes the response
// body into response. Transport failures and undecodable responses are both
// reported as errors; mapping them onto the gateway taxonomy is the caller's
// job.
func (c *soapClient) Call(ctx context.Context, url, action string, request, response interface{}) error {
	payload, err := xml.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal soap request: %w", err)
	}

	envelope := soapEnvelope{Body: soapBody{Content: payload}}
	body, err := xml.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal soap envelope: %w", err)
	}
	body = append([]byte(xml.Header), body...)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create soap request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", action)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("soap call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read soap response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected soap status code: %d", resp.StatusCode)
	}

	var respEnvelope soapEnvelope
	if err := xml.Unmarshal(respBody, &respEnvelope); err != nil {
		return fmt.Errorf("failed to unmarshal soap envelope: %w", err)
	}

	if err := xml.Unmarshal(respEnvelope.Body.Content, response); err != nil {
		return fmt.Errorf("failed to unmarshal soap body: %w", err)
	}

	return nil
}
