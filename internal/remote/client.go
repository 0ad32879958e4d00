package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// Client talks to the upstream LMS API. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger

	mu    sync.RWMutex
	token string
}

// NewClient builds a client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "remote_client").Logger(),
	}
}

// SetToken installs the session token used for authenticated calls.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// SessionExpired reports whether the stored session token has passed its
// expiry claim. The token is not signature-verified here; the server remains
// the authority and will reject a forged token anyway.
func (c *Client) SessionExpired(now time.Time) bool {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	if token == "" {
		return true
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return true
	}

	expiry, err := parsed.Claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return false
	}
	return now.After(expiry.Time)
}

// Login exchanges credentials for a session token and installs it.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var result LoginResult
	body := map[string]string{"email": email, "password": password}
	if err := c.doJSON(ctx, http.MethodPost, "/login", body, &result); err != nil {
		return LoginResult{}, err
	}

	c.SetToken(result.Token)
	return result, nil
}

// Logout revokes the session token.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.doJSON(ctx, http.MethodPost, "/logout", nil, nil); err != nil {
		return err
	}

	c.SetToken("")
	return nil
}

// UserVerified fetches the account verification flag.
func (c *Client) UserVerified(ctx context.Context) (bool, error) {
	var status VerificationStatus
	if err := c.doJSON(ctx, http.MethodGet, "/user/verification-status", nil, &status); err != nil {
		return false, err
	}
	return status.IsVerified, nil
}

// MyCourses lists the enrolled courses.
func (c *Client) MyCourses(ctx context.Context) ([]CourseSummary, error) {
	var courses []CourseSummary
	if err := c.doJSON(ctx, http.MethodGet, "/my-courses", nil, &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// CourseDetail fetches the full course payload.
func (c *Client) CourseDetail(ctx context.Context, courseID uint) (CourseDetail, error) {
	var detail CourseDetail
	path := fmt.Sprintf("/courses/%d", courseID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &detail); err != nil {
		return CourseDetail{}, err
	}
	return detail, nil
}

// SaveQuestionAnswer performs the best-effort online per-question save.
func (c *Client) SaveQuestionAnswer(ctx context.Context, questionID uint, payload AnswerPayload) error {
	path := fmt.Sprintf("/submitted-questions/%d/answer", questionID)
	return c.doJSON(ctx, http.MethodPatch, path, payload, nil)
}

// FinalizeQuiz performs the authoritative online finalize.
func (c *Client) FinalizeQuiz(ctx context.Context, assessmentID uint, payload FinalizePayload) error {
	path := fmt.Sprintf("/submitted-assessments/%d/finalize-quiz", assessmentID)
	return c.doJSON(ctx, http.MethodPost, path, payload, nil)
}

// SyncQuizAttempt pushes a locally-completed attempt through the idempotent
// reconciliation endpoint.
func (c *Client) SyncQuizAttempt(ctx context.Context, payload QuizSyncPayload) error {
	path := fmt.Sprintf("/assessments/%d/sync-quiz", payload.AssessmentID)
	return c.doJSON(ctx, http.MethodPost, path, payload, nil)
}

// SyncFileSubmission uploads a queued offline file submission as multipart
// form data, detecting the content type from the file itself.
func (c *Client) SyncFileSubmission(ctx context.Context, meta FileSubmissionMeta) error {
	file, err := os.Open(meta.FilePath)
	if err != nil {
		return fmt.Errorf("failed to open queued file: %w", err)
	}
	defer file.Close()

	mime, err := mimetype.DetectFile(meta.FilePath)
	if err != nil {
		return fmt.Errorf("failed to detect file type: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename=%q`, meta.OriginalFilename))
	header.Set("Content-Type", mime.String())
	part, err := writer.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}

	if err := writer.WriteField("submitted_at", meta.SubmittedAt.Format(time.RFC3339)); err != nil {
		return err
	}
	if err := writer.WriteField("original_filename", meta.OriginalFilename); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	path := fmt.Sprintf("/assessments/%d/sync-submission", meta.AssessmentID)
	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.send(req, nil)
}

// SubmittedAssessment fetches the graded view of the latest submitted attempt.
func (c *Client) SubmittedAssessment(ctx context.Context, assessmentID uint) (SubmittedAssessmentInfo, error) {
	var info SubmittedAssessmentInfo
	path := fmt.Sprintf("/submitted-assessments/%d", assessmentID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &info); err != nil {
		return SubmittedAssessmentInfo{}, err
	}
	return info, nil
}

// AttemptStatus fetches the server-derived attempt summary.
func (c *Client) AttemptStatus(ctx context.Context, assessmentID uint) (AttemptStatusInfo, error) {
	var info AttemptStatusInfo
	path := fmt.Sprintf("/assessments/%d/attempt-status", assessmentID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &info); err != nil {
		return AttemptStatusInfo{}, err
	}
	return info, nil
}

// LatestAssignmentSubmission fetches the server-derived submission summary.
func (c *Client) LatestAssignmentSubmission(ctx context.Context, assessmentID uint) (SubmissionStatusInfo, error) {
	var info SubmissionStatusInfo
	path := fmt.Sprintf("/assessments/%d/latest-assignment-submission", assessmentID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &info); err != nil {
		return SubmissionStatusInfo{}, err
	}
	return info, nil
}

// ServerTime fetches the authoritative server clock.
func (c *Client) ServerTime(ctx context.Context) (time.Time, error) {
	var info ServerTimeInfo
	if err := c.doJSON(ctx, http.MethodGet, "/server-time", nil, &info); err != nil {
		return time.Time{}, err
	}
	return info.ServerTime, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")

	return req, nil
}

func (c *Client) send(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if len(raw) == 0 && resp.StatusCode < 400 {
		return nil
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			if resp.StatusCode >= 400 {
				return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
			}
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	if resp.StatusCode >= 400 || !env.Success {
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}

	return nil
}
