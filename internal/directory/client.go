package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client calls the directory microservice over JSON/HTTP.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient creates a client with a short timeout; directory lookups sit on
// the scan path and must fail fast.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// EnrolledStudents fetches the enrollment set for a class.
func (c *Client) EnrolledStudents(ctx context.Context, classID string) ([]string, error) {
	u := c.BaseURL + "/v1/classes/" + url.PathEscape(classID) + "/students"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory returned %d for class %s", resp.StatusCode, classID)
	}
	var body struct {
		Students []string `json:"students"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("directory response decode: %w", err)
	}
	return body.Students, nil
}

// StudentInfo fetches display attributes for one student.
func (c *Client) StudentInfo(ctx context.Context, studentID string) (StudentInfo, error) {
	u := c.BaseURL + "/v1/students/" + url.PathEscape(studentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return StudentInfo{}, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return StudentInfo{}, fmt.Errorf("directory request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return StudentInfo{}, fmt.Errorf("directory returned %d for student %s", resp.StatusCode, studentID)
	}
	var info StudentInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return StudentInfo{}, fmt.Errorf("directory response decode: %w", err)
	}
	return info, nil
}
