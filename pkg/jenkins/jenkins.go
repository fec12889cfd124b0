// Package jenkins triggers parameterized Jenkins builds over the remote
// access API.
package jenkins

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/apictl/pkg/apierrors"
	"github.com/Sternrassler/apictl/pkg/client"
	"github.com/Sternrassler/apictl/pkg/logging"
)

// JobURLKey names the parameter-file entry holding the job path.
const JobURLKey = "__JOBURL__"

// MissingValue fills required parameters absent from a parameter file.
const MissingValue = "N/A"

// ErrNoJobURL is returned for parameter files without JobURLKey.
var ErrNoJobURL = errors.New("parameter file has no " + JobURLKey + " key")

// Client triggers builds on a Jenkins server.
type Client struct {
	client *client.Client
	header http.Header
	logger zerolog.Logger
}

// NewClient creates a Client. user is "name:token"; empty means anonymous.
func NewClient(c *client.Client, user string) (*Client, error) {
	header := make(http.Header)
	if user != "" {
		if !strings.Contains(user, ":") {
			return nil, fmt.Errorf("%w: jenkins user must be USER:TOKEN", apierrors.ErrUsage)
		}
		header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(user)))
	}
	return &Client{
		client: c,
		header: header,
		logger: logging.NewLogger("jenkins"),
	}, nil
}

// jobInfo is the part of <job>/api/json describing build parameters.
type jobInfo struct {
	Property []struct {
		ParameterDefinitions []struct {
			Name                  string `json:"name"`
			DefaultParameterValue *struct {
				Value any `json:"value"`
			} `json:"defaultParameterValue"`
		} `json:"parameterDefinitions"`
	} `json:"property"`
}

// RequiredParameters returns the names of the job parameters whose default
// value is empty or missing, in definition order.
func (c *Client) RequiredParameters(ctx context.Context, jobURL string) ([]string, error) {
	var info jobInfo
	if err := c.client.GetJSON(ctx, joinURL(jobURL, "api/json"), c.header, &info); err != nil {
		return nil, fmt.Errorf("get job details: %w", err)
	}

	var required []string
	for _, prop := range info.Property {
		for _, def := range prop.ParameterDefinitions {
			if def.DefaultParameterValue == nil || isEmptyValue(def.DefaultParameterValue.Value) {
				required = append(required, def.Name)
			}
		}
	}
	c.logger.Debug().Str("job", jobURL).Strs("required", required).Msg("Found required build values")
	return required, nil
}

func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	default:
		return false
	}
}

// Trigger describes one build request.
type Trigger struct {
	File     string
	URL      string
	Form     url.Values
	QueueURL string
}

// String renders the trigger as a one-line report.
func (t Trigger) String() string {
	s := fmt.Sprintf("POST %s %s", t.URL, t.Form.Encode())
	if t.QueueURL != "" {
		s += " -> " + t.QueueURL
	}
	return s
}

// RunWithDefaults submits a build of jobURL with params, filling every
// required parameter absent from params with MissingValue.
func (c *Client) RunWithDefaults(ctx context.Context, jobURL string, params map[string]any) (Trigger, error) {
	required, err := c.RequiredParameters(ctx, jobURL)
	if err != nil {
		return Trigger{}, err
	}

	form := Form(params)
	for _, name := range required {
		if _, ok := params[name]; !ok {
			form.Set(name, MissingValue)
		}
	}

	t := Trigger{URL: joinURL(jobURL, "buildWithParameters"), Form: form}
	return c.submit(ctx, t)
}

// TriggerFromFiles submits one build per parameter file. Each file names its
// job with JobURLKey relative to serverURL. All files are read and checked
// before the first build is submitted. With dryRun nothing is submitted.
func (c *Client) TriggerFromFiles(ctx context.Context, serverURL string, files []string, dryRun bool, report func(Trigger)) error {
	triggers := make([]Trigger, 0, len(files))
	for _, path := range files {
		params, err := LoadParams(path)
		if err != nil {
			return err
		}
		job, ok := params[JobURLKey]
		if !ok {
			return fmt.Errorf("%s: %w", path, ErrNoJobURL)
		}
		delete(params, JobURLKey)

		triggers = append(triggers, Trigger{
			File: path,
			URL:  joinURL(serverURL+stringValue(job), "buildWithParameters"),
			Form: Form(params),
		})
	}

	for _, t := range triggers {
		if !dryRun {
			var err error
			if t, err = c.submit(ctx, t); err != nil {
				return fmt.Errorf("%s: %w", t.File, err)
			}
		}
		if report != nil {
			report(t)
		}
	}
	return nil
}

func (c *Client) submit(ctx context.Context, t Trigger) (Trigger, error) {
	header, err := c.client.PostForm(ctx, t.URL, c.header, t.Form)
	if err != nil {
		return t, fmt.Errorf("submit build: %w", err)
	}
	t.QueueURL = header.Get("Location")
	c.logger.Info().Str("url", t.URL).Str("queue", t.QueueURL).Msg("Submitted build")
	return t, nil
}

// LoadParams reads a JSON object of build parameters from path.
func LoadParams(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read parameter file: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var params map[string]any
	if err := dec.Decode(&params); err != nil {
		return nil, fmt.Errorf("parse parameter file %s: %w", path, err)
	}
	if params == nil {
		params = map[string]any{}
	}
	return params, nil
}

// Form encodes params as build form values.
func Form(params map[string]any) url.Values {
	form := make(url.Values, len(params))
	for k, v := range params {
		form.Set(k, stringValue(v))
	}
	return form
}

func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool, float64, int, int64:
		return fmt.Sprint(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + path
}
