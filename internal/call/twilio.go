package call

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const twilioAPIBase = "https://api.twilio.com"

// TwilioEngine places calls through the Twilio REST API. Each call connects
// a bidirectional media stream back to our /media-stream endpoint, carrying
// the test ID as a stream parameter so the bridge can route it.
type TwilioEngine struct {
	accountSID string
	authToken  string
	from       string

	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// TwilioOption customizes a TwilioEngine.
type TwilioOption func(*TwilioEngine)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) TwilioOption {
	return func(e *TwilioEngine) { e.httpClient = c }
}

// WithBaseURL points the engine at a different API host. Used in tests.
func WithBaseURL(u string) TwilioOption {
	return func(e *TwilioEngine) { e.baseURL = strings.TrimSuffix(u, "/") }
}

// WithTwilioLogger overrides the logger.
func WithTwilioLogger(log *slog.Logger) TwilioOption {
	return func(e *TwilioEngine) { e.log = log }
}

// NewTwilioEngine creates a Twilio-backed call engine.
func NewTwilioEngine(accountSID, authToken, from string, opts ...TwilioOption) *TwilioEngine {
	e := &TwilioEngine{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    twilioAPIBase,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initialize verifies the engine has credentials.
func (e *TwilioEngine) Initialize(_ context.Context) error {
	if e.accountSID == "" || e.authToken == "" || e.from == "" {
		return fmt.Errorf("twilio engine requires account SID, auth token, and from number")
	}
	return nil
}

// twiml is the instruction document handed to Twilio for the call.
type twiml struct {
	XMLName xml.Name     `xml:"Response"`
	Connect twimlConnect `xml:"Connect"`
}

type twimlConnect struct {
	Stream twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL        string           `xml:"url,attr"`
	Parameters []twimlParameter `xml:"Parameter"`
}

type twimlParameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

func buildTwiML(streamURL, testID string) (string, error) {
	doc := twiml{
		Connect: twimlConnect{
			Stream: twimlStream{
				URL: streamURL,
				Parameters: []twimlParameter{
					{Name: "test_id", Value: testID},
				},
			},
		},
	}
	out, err := xml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshaling twiml: %w", err)
	}
	return xml.Header + string(out), nil
}

// twilioCallResponse is the subset of the call resource we care about.
type twilioCallResponse struct {
	Sid     string `json:"sid"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Dial places the call via POST /2010-04-01/Accounts/{sid}/Calls.json.
func (e *TwilioEngine) Dial(ctx context.Context, req DialRequest) (*Call, error) {
	doc, err := buildTwiML(req.StreamURL, req.TestID)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", e.from)
	form.Set("Twiml", doc)
	if req.MaxDuration > 0 {
		form.Set("TimeLimit", strconv.Itoa(int(req.MaxDuration.Seconds())))
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", e.baseURL, e.accountSID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building call request: %w", err)
	}
	httpReq.SetBasicAuth(e.accountSID, e.authToken)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("placing call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading call response: %w", err)
	}

	var callResp twilioCallResponse
	if err := json.Unmarshal(body, &callResp); err != nil {
		return nil, fmt.Errorf("decoding call response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("twilio rejected call (status %d, code %d): %s", resp.StatusCode, callResp.Code, callResp.Message)
	}

	e.log.Info("call placed", "test_id", req.TestID, "call_id", callResp.Sid, "to", req.To)

	return &Call{
		ID:        callResp.Sid,
		Status:    callResp.Status,
		StartedAt: time.Now().UTC(),
	}, nil
}

// Shutdown is a no-op; in-flight calls end on their own time limit.
func (e *TwilioEngine) Shutdown(_ context.Context) error { return nil }

// StatusUpdate is a parsed Twilio status callback webhook.
type StatusUpdate struct {
	CallID   string
	Status   string
	Duration time.Duration
}

// ParseStatusCallback reads a Twilio status callback form post.
func ParseStatusCallback(r *http.Request) (*StatusUpdate, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("parsing status callback: %w", err)
	}
	sid := r.PostFormValue("CallSid")
	if sid == "" {
		return nil, fmt.Errorf("status callback missing CallSid")
	}
	upd := &StatusUpdate{
		CallID: sid,
		Status: r.PostFormValue("CallStatus"),
	}
	if d := r.PostFormValue("CallDuration"); d != "" {
		secs, err := strconv.Atoi(d)
		if err != nil {
			return nil, fmt.Errorf("parsing CallDuration %q: %w", d, err)
		}
		upd.Duration = time.Duration(secs) * time.Second
	}
	return upd, nil
}
