package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

type registryClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newClient() *registryClient {
	return &registryClient{
		baseURL: resolvedServer(),
		apiKey:  resolvedKey(),
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *registryClient) do(method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return c.http.Do(req)
}

// getJSON performs a GET and decodes the response into v.
func (c *registryClient) getJSON(path string, v any) error {
	resp, err := c.do(http.MethodGet, path, nil, "")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return serverError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// postJSON performs a POST with a JSON body and decodes the response.
func (c *registryClient) postJSON(path string, payload, v any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := c.do(http.MethodPost, path, bytes.NewReader(data), "application/json")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return serverError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// uploadFile performs a multipart POST with the file and form fields.
func (c *registryClient) uploadFile(path, filePath string, fields map[string]string, v any) error {
	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return err
	}
	for k, val := range fields {
		if val == "" {
			continue
		}
		if err := mw.WriteField(k, val); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	resp, err := c.do(http.MethodPost, path, &buf, mw.FormDataContentType())
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return serverError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// deleteJSON performs a DELETE and decodes the response when there is one.
func (c *registryClient) deleteJSON(path string, v any) error {
	resp, err := c.do(http.MethodDelete, path, nil, "")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return serverError(resp)
	}
	if v == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// serverError renders the registry's {"detail": ...} error body.
func serverError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var detail struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &detail); err == nil && detail.Detail != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, detail.Detail)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
}
